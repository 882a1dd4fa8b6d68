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
	"fmt"
	"time"
)

// GatewayConfig holds the edge gateway's runtime configuration.
type GatewayConfig struct {
	AppPort string
	APIHost string
	APIPort string
	NodeEnv string

	CORSOrigin string

	JWTSecret    string
	JWTExpiresIn time.Duration
}

// LoadGatewayFromEnv reads the gateway configuration from the environment.
func LoadGatewayFromEnv() (*GatewayConfig, error) {
	secret := getEnv("JWT_SECRET", "")
	if len(secret) < 32 {
		return nil, fmt.Errorf("JWT_SECRET is required and must be at least 32 bytes, got %d", len(secret))
	}

	expiresIn, err := parseJWTExpiresIn(getEnv("JWT_EXPIRES_IN", "15m"))
	if err != nil {
		return nil, fmt.Errorf("invalid JWT_EXPIRES_IN: %w", err)
	}

	cfg := &GatewayConfig{
		AppPort: getEnv("APP_PORT", "8080"),
		APIHost: getEnv("API_HOST", "localhost"),
		APIPort: getEnv("API_PORT", "8090"),
		NodeEnv: getEnv("NODE_ENV", "production"),

		CORSOrigin: getEnv("CORS_ORIGIN", "*"),

		JWTSecret:    secret,
		JWTExpiresIn: expiresIn,
	}

	switch cfg.NodeEnv {
	case "development", "production", "test":
	default:
		return nil, fmt.Errorf("NODE_ENV must be one of development|production|test, got %q", cfg.NodeEnv)
	}

	return cfg, nil
}

// UpstreamBaseURL returns the base URL the gateway forwards export requests to.
func (c *GatewayConfig) UpstreamBaseURL() string {
	return fmt.Sprintf("http://%s:%s", c.APIHost, c.APIPort)
}

func parseJWTExpiresIn(raw string) (time.Duration, error) {
	return time.ParseDuration(raw)
}
