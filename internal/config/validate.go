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

package config

import "fmt"

// ValidationIssue is a single configuration problem. Level "error" fails
// Load; Level "warning" is reported but non-fatal.
type ValidationIssue struct {
	Field   string
	Message string
	Level   string
}

// ValidateConfiguration checks a loaded Config for internally-inconsistent
// or unusable values. It never mutates cfg.
func ValidateConfiguration(cfg *Config) []ValidationIssue {
	var issues []ValidationIssue

	if cfg.Quota != nil {
		switch cfg.Quota.Backend {
		case "memory":
		case "postgres":
			if cfg.Quota.PostgresDSN == "" {
				issues = append(issues, ValidationIssue{
					Field: "quota.postgres_dsn", Level: "error",
					Message: "postgres backend selected but no DSN configured",
				})
			}
		case "redis":
			if cfg.Quota.RedisAddr == "" {
				issues = append(issues, ValidationIssue{
					Field: "quota.redis_addr", Level: "error",
					Message: "redis backend selected but no address configured",
				})
			}
		default:
			issues = append(issues, ValidationIssue{
				Field: "quota.backend", Level: "error",
				Message: fmt.Sprintf("unknown quota backend %q", cfg.Quota.Backend),
			})
		}
		if cfg.Quota.FreeDailyLimit <= 0 {
			issues = append(issues, ValidationIssue{
				Field: "quota.free_daily_limit", Level: "error",
				Message: "free daily limit must be positive",
			})
		}
		if cfg.Quota.ElevatedDailyLimit < cfg.Quota.FreeDailyLimit {
			issues = append(issues, ValidationIssue{
				Field: "quota.elevated_daily_limit", Level: "warning",
				Message: "elevated tier ceiling is lower than the free tier ceiling",
			})
		}
	}

	if cfg.Provider != nil {
		if len(cfg.Provider.Preference) == 0 {
			issues = append(issues, ValidationIssue{
				Field: "provider.preference", Level: "error",
				Message: "no provider backend preference configured",
			})
		}
		for _, name := range cfg.Provider.Preference {
			if name == "echo" {
				continue // the test/mock backend needs no credentials
			}
			backend, ok := cfg.Provider.Backends[name]
			if !ok || backend.APIKey == "" {
				issues = append(issues, ValidationIssue{
					Field: "provider.backends." + name, Level: "warning",
					Message: "listed in preference but has no configured API key",
				})
			}
		}
	}

	if cfg.KeyStore != nil && cfg.KeyStore.RotationPeriod <= 0 {
		issues = append(issues, ValidationIssue{
			Field: "keystore.rotation_period", Level: "error",
			Message: "rotation period must be positive",
		})
	}

	return issues
}
