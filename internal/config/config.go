// Copyright (C) 2025 sage-x-project
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.

// SPDX-License-Identifier: LGPL-3.0-or-later

package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// LoadFromFile loads configuration from a file, trying YAML then JSON.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &Config{}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file (tried YAML and JSON): %w", err)
		}
	}

	setDefaults(cfg)

	return cfg, nil
}

// SaveToFile saves configuration to a file, choosing the format by
// extension. Used by the echolia-keygen CLI's config scaffolding
// subcommand.
func SaveToFile(cfg *Config, path string) error {
	var data []byte
	var err error

	if strings.HasSuffix(path, ".json") {
		data, err = json.MarshalIndent(cfg, "", "  ")
	} else {
		data, err = yaml.Marshal(cfg)
	}
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// setDefaults fills every omitted section with the gateway's production
// defaults.
func setDefaults(cfg *Config) {
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}

	if cfg.Server == nil {
		cfg.Server = &ServerConfig{}
	}
	if cfg.Server.Address == "" {
		cfg.Server.Address = ":8443"
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 30 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 30 * time.Second
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 15 * time.Second
	}

	if cfg.KeyStore == nil {
		cfg.KeyStore = &KeyStoreConfig{}
	}
	if cfg.KeyStore.Path == "" {
		cfg.KeyStore.Path = ".echolia/identity.bin"
	}
	if cfg.KeyStore.RotationPeriod == 0 {
		cfg.KeyStore.RotationPeriod = 30 * 24 * time.Hour
	}

	if cfg.Quota == nil {
		cfg.Quota = &QuotaConfig{}
	}
	if cfg.Quota.Backend == "" {
		cfg.Quota.Backend = "memory"
	}
	if cfg.Quota.FreeDailyLimit == 0 {
		cfg.Quota.FreeDailyLimit = 50
	}
	if cfg.Quota.ElevatedDailyLimit == 0 {
		cfg.Quota.ElevatedDailyLimit = 500
	}

	if cfg.Provider == nil {
		cfg.Provider = &ProviderConfig{}
	}
	if len(cfg.Provider.Preference) == 0 {
		cfg.Provider.Preference = []string{"openai", "anthropic", "echo"}
	}
	if cfg.Provider.Timeout == 0 {
		cfg.Provider.Timeout = 30 * time.Second
	}
	if cfg.Provider.Backends == nil {
		cfg.Provider.Backends = make(map[string]ProviderBackend)
	}

	if cfg.Identity == nil {
		cfg.Identity = &IdentityConfig{}
	}
	if cfg.Identity.JWTSecretEnv == "" {
		cfg.Identity.JWTSecretEnv = "ECHOLIA_JWT_SECRET"
	}
	if cfg.Identity.Leeway == 0 {
		cfg.Identity.Leeway = 60 * time.Second
	}

	if cfg.Logging == nil {
		cfg.Logging = &LoggingConfig{}
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}

	if cfg.Metrics == nil {
		cfg.Metrics = &MetricsConfig{Enabled: true}
	}
	if cfg.Metrics.Address == "" {
		cfg.Metrics.Address = ":9090"
	}

	if cfg.Health == nil {
		cfg.Health = &HealthConfig{Enabled: true}
	}
	if cfg.Health.Address == "" {
		cfg.Health.Address = ":9091"
	}
}
