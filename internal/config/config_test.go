/*
 * Copyright 2025 Clidey, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package config

import (
	"strings"
	"testing"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"DB_HOST", "DB_PORT", "DB_USER", "DB_PASSWORD", "DB_NAME",
		"API_PORT", "NODE_ENV", "JWT_SECRET",
		"POOL_MAX_CONNS", "POOL_MIN_WARM", "POOL_IDLE_TIMEOUT",
		"POOL_CONNECT_TIMEOUT", "POOL_REQUEST_TIMEOUT", "POOL_DRAIN_TIMEOUT",
		"SINK_HIGH_WATER_MARK_BYTES", "MEMORY_SAMPLE_INTERVAL_ROWS",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadFromEnvMissingSecret(t *testing.T) {
	clearEnv(t)
	if _, err := LoadFromEnv(); err == nil {
		t.Fatal("expected error when JWT_SECRET is missing")
	}
}

func TestLoadFromEnvShortSecret(t *testing.T) {
	clearEnv(t)
	t.Setenv("JWT_SECRET", "too-short")
	if _, err := LoadFromEnv(); err == nil {
		t.Fatal("expected error for secret under 32 bytes")
	}
}

func TestLoadFromEnvDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("JWT_SECRET", strings.Repeat("a", 32))

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv failed: %v", err)
	}
	if cfg.DBPort != 1433 {
		t.Errorf("expected default DBPort 1433, got %d", cfg.DBPort)
	}
	if cfg.PoolMaxConns != 50 {
		t.Errorf("expected default PoolMaxConns 50, got %d", cfg.PoolMaxConns)
	}
	if cfg.NodeEnv != "production" {
		t.Errorf("expected default NodeEnv production, got %q", cfg.NodeEnv)
	}
	if cfg.IsDevelopment() {
		t.Error("expected IsDevelopment false by default")
	}
}

func TestLoadFromEnvInvalidNodeEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("JWT_SECRET", strings.Repeat("a", 32))
	t.Setenv("NODE_ENV", "bogus")

	if _, err := LoadFromEnv(); err == nil {
		t.Fatal("expected error for invalid NODE_ENV")
	}
}
