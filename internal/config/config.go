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

// Package config loads the export service's environment configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds the export service's runtime configuration.
type Config struct {
	DBHost     string
	DBPort     int
	DBUser     string
	DBPassword string
	DBName     string

	APIPort string
	NodeEnv string

	JWTSecret string

	PoolMaxConns      int
	PoolMinWarm       int
	PoolIdleTimeout   time.Duration
	PoolConnectTimeout time.Duration
	PoolRequestTimeout time.Duration
	PoolDrainTimeout   time.Duration

	SinkHighWaterMarkBytes   int
	MemorySampleIntervalRows uint64
}

// LoadFromEnv reads the export service configuration from the environment.
// JWT_SECRET is mandatory and must be at least 32 bytes; everything else
// falls back to a documented default.
func LoadFromEnv() (*Config, error) {
	secret := os.Getenv("JWT_SECRET")
	if len(secret) < 32 {
		return nil, fmt.Errorf("JWT_SECRET is required and must be at least 32 bytes, got %d", len(secret))
	}

	cfg := &Config{
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getInt("DB_PORT", 1433),
		DBUser:     os.Getenv("DB_USER"),
		DBPassword: os.Getenv("DB_PASSWORD"),
		DBName:     os.Getenv("DB_NAME"),

		APIPort: getEnv("API_PORT", "8090"),
		NodeEnv: getEnv("NODE_ENV", "production"),

		JWTSecret: secret,

		PoolMaxConns:       getInt("POOL_MAX_CONNS", 50),
		PoolMinWarm:        getInt("POOL_MIN_WARM", 5),
		PoolIdleTimeout:    getDuration("POOL_IDLE_TIMEOUT", 60*time.Second),
		PoolConnectTimeout: getDuration("POOL_CONNECT_TIMEOUT", 15*time.Second),
		PoolRequestTimeout: getDuration("POOL_REQUEST_TIMEOUT", 30*time.Second),
		PoolDrainTimeout:   getDuration("POOL_DRAIN_TIMEOUT", 30*time.Second),

		SinkHighWaterMarkBytes:   getInt("SINK_HIGH_WATER_MARK_BYTES", 64*1024),
		MemorySampleIntervalRows: uint64(getInt("MEMORY_SAMPLE_INTERVAL_ROWS", 5000)),
	}

	switch cfg.NodeEnv {
	case "development", "production", "test":
	default:
		return nil, fmt.Errorf("NODE_ENV must be one of development|production|test, got %q", cfg.NodeEnv)
	}

	return cfg, nil
}

// IsDevelopment reports whether error responses should include a stack trace.
func (c *Config) IsDevelopment() bool {
	return c.NodeEnv == "development"
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultValue
}
