// SAGE - Secure Agent Guarantee Engine
// Copyright (C) 2025 SAGE-X-project
//
// This file is part of SAGE.
//
// SAGE is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// SAGE is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with SAGE. If not, see <https://www.gnu.org/licenses/>.

// Package config loads the gateway's GatewayConfig from a YAML or JSON
// file, applies environment-variable overrides, and fills defaults for
// every omitted section.
package config

import "time"

// Config is the gateway's top-level, YAML/JSON-loadable configuration.
type Config struct {
	Environment string          `yaml:"environment" json:"environment"`
	Server      *ServerConfig   `yaml:"server" json:"server"`
	KeyStore    *KeyStoreConfig `yaml:"keystore" json:"keystore"`
	Quota       *QuotaConfig    `yaml:"quota" json:"quota"`
	Provider    *ProviderConfig `yaml:"provider" json:"provider"`
	Identity    *IdentityConfig `yaml:"identity" json:"identity"`
	Logging     *LoggingConfig  `yaml:"logging" json:"logging"`
	Metrics     *MetricsConfig  `yaml:"metrics" json:"metrics"`
	Health      *HealthConfig   `yaml:"health" json:"health"`
}

// ServerConfig contains the HTTP API's bind address and timeouts.
type ServerConfig struct {
	Address         string        `yaml:"address" json:"address"`
	ReadTimeout     time.Duration `yaml:"read_timeout" json:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout" json:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" json:"shutdown_timeout"`
}

// KeyStoreConfig configures the server identity's on-disk path and
// rotation period.
type KeyStoreConfig struct {
	Path           string        `yaml:"path" json:"path"`
	RotationPeriod time.Duration `yaml:"rotation_period" json:"rotation_period"`
}

// QuotaConfig selects the QuotaLedger's storage backend and its tier
// ceilings. Exactly one of Postgres/Redis is read; Backend picks which.
type QuotaConfig struct {
	Backend            string `yaml:"backend" json:"backend"` // memory, postgres, redis
	PostgresDSN        string `yaml:"postgres_dsn" json:"postgres_dsn"`
	RedisAddr          string `yaml:"redis_addr" json:"redis_addr"`
	RedisDB            int    `yaml:"redis_db" json:"redis_db"`
	FreeDailyLimit     int64  `yaml:"free_daily_limit" json:"free_daily_limit"`
	ElevatedDailyLimit int64  `yaml:"elevated_daily_limit" json:"elevated_daily_limit"`
}

// ProviderConfig selects and configures the ProviderGateway's backend
// preference list. Backends are tried in the order listed; the first with
// a non-empty APIKey wins.
type ProviderConfig struct {
	Preference []string                   `yaml:"preference" json:"preference"` // e.g. ["openai", "anthropic", "echo"]
	Timeout    time.Duration              `yaml:"timeout" json:"timeout"`
	Backends   map[string]ProviderBackend `yaml:"backends" json:"backends"`
}

// ProviderBackend holds one named provider backend's connection details.
type ProviderBackend struct {
	BaseURL string `yaml:"base_url" json:"base_url"`
	Model   string `yaml:"model" json:"model"`
	APIKey  string `yaml:"api_key" json:"api_key"`
}

// IdentityConfig configures the bearer-token IdentityResolver.
type IdentityConfig struct {
	JWTSecretEnv string        `yaml:"jwt_secret_env" json:"jwt_secret_env"`
	Leeway       time.Duration `yaml:"leeway" json:"leeway"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
	Output string `yaml:"output" json:"output"`
}

// MetricsConfig represents metrics configuration
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Address string `yaml:"address" json:"address"`
}

// HealthConfig represents health check configuration
type HealthConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Address string `yaml:"address" json:"address"`
}
