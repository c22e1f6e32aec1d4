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

package health

import (
	"context"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/echolia/inference-gateway/internal/keystore"
	"github.com/echolia/inference-gateway/internal/provider"
	"github.com/echolia/inference-gateway/internal/quota"
)

// probePrincipal is the sentinel principal used to exercise the quota
// store's round trip without attributing usage to a real caller.
const probePrincipal = "__healthcheck__"

// Checker performs the gateway's liveness and readiness checks against its
// three load-bearing dependencies: the server identity, the quota store,
// and the configured provider backend.
type Checker struct {
	keys     *keystore.KeyStore
	ledger   *quota.Ledger
	provider *provider.Gateway
	group    singleflight.Group
}

// NewChecker wires a Checker to the gateway's running components.
func NewChecker(keys *keystore.KeyStore, ledger *quota.Ledger, gw *provider.Gateway) *Checker {
	return &Checker{keys: keys, ledger: ledger, provider: gw}
}

// CheckAll runs every component check and folds them into one HealthStatus.
// Concurrent callers (a burst of /healthz probes) collapse onto a single
// in-flight run via singleflight rather than each hitting the quota store.
func (c *Checker) CheckAll(ctx context.Context) *HealthStatus {
	v, _, _ := c.group.Do("checkAll", func() (interface{}, error) {
		return c.checkAll(ctx), nil
	})
	return v.(*HealthStatus)
}

func (c *Checker) checkAll(ctx context.Context) *HealthStatus {
	status := &HealthStatus{
		Timestamp: time.Now(),
		Status:    StatusHealthy,
		Errors:    make([]string, 0),
	}

	status.KeyStore = c.checkKeyStore()
	status.QuotaLedger = c.checkQuotaLedger(ctx)
	status.Provider = c.checkProvider()
	status.SystemStatus = CheckSystem()

	status.Status = worstOf(
		status.Status,
		status.KeyStore.Status, status.QuotaLedger.Status,
		status.Provider.Status, status.SystemStatus.Status,
	)

	for name, c := range map[string]*ComponentHealth{
		"KeyStore":    status.KeyStore,
		"QuotaLedger": status.QuotaLedger,
		"Provider":    status.Provider,
	} {
		if c.Error != "" {
			status.Errors = append(status.Errors, name+": "+c.Error)
		}
	}
	if status.SystemStatus.Error != "" {
		status.Errors = append(status.Errors, "System: "+status.SystemStatus.Error)
	}

	return status
}

// worstOf returns the most severe status among current and the given
// component statuses: unhealthy beats degraded beats healthy.
func worstOf(current Status, statuses ...Status) Status {
	worst := current
	for _, s := range statuses {
		switch {
		case s == StatusUnhealthy:
			worst = StatusUnhealthy
		case s == StatusDegraded && worst != StatusUnhealthy:
			worst = StatusDegraded
		}
	}
	return worst
}

func (c *Checker) checkKeyStore() *ComponentHealth {
	id := c.keys.Current()
	if id == nil {
		return &ComponentHealth{Status: StatusUnhealthy, Error: "no active identity"}
	}
	if time.Now().After(id.ExpiresAt) {
		return &ComponentHealth{Status: StatusDegraded, Name: id.KeyID, Error: "identity past rotation deadline"}
	}
	return &ComponentHealth{Status: StatusHealthy, Name: id.KeyID}
}

func (c *Checker) checkQuotaLedger(ctx context.Context) *ComponentHealth {
	start := time.Now()
	_, err := c.ledger.Peek(ctx, probePrincipal, time.Now())
	if err != nil {
		return &ComponentHealth{Status: StatusUnhealthy, Error: err.Error()}
	}
	return &ComponentHealth{Status: StatusHealthy, Latency: time.Since(start).String()}
}

func (c *Checker) checkProvider() *ComponentHealth {
	return &ComponentHealth{Status: StatusHealthy, Name: c.provider.Name()}
}
