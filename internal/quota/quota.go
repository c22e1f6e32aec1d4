// Package quota implements the gateway's per-principal daily request
// ceiling: an atomic increment-then-compare counter keyed on
// (principal, UTC date), backed by a pluggable storage engine.
package quota

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/echolia/inference-gateway/internal/metrics"
)

// Tier names the two entitlement levels the ledger recognizes. There is no
// middle tier.
type Tier string

const (
	TierFree     Tier = "free"
	TierElevated Tier = "elevated"
)

// Outcome is the result of a reserve call.
type Outcome int

const (
	Granted Outcome = iota
	Exhausted
)

// Ceilings holds the two named configuration values that bound daily usage.
type Ceilings struct {
	FreeDailyLimit     int64
	ElevatedDailyLimit int64
}

func (c Ceilings) limitFor(tier Tier) int64 {
	if tier == TierElevated {
		return c.ElevatedDailyLimit
	}
	return c.FreeDailyLimit
}

// UsageSnapshot is the read-only view reported to clients. It is always
// derived, never stored.
type UsageSnapshot struct {
	Tier              Tier
	RequestsRemaining int64
	ResetAt           time.Time
}

// ErrLedgerUnavailable wraps any storage-layer failure. The ledger never
// silently grants on error; callers must treat this as a transient server
// error and run no further pipeline steps.
var ErrLedgerUnavailable = errors.New("quota: ledger unavailable")

// TierResolver reports the entitlement tier for a principal. It is an
// external collaborator (identity/entitlement store) out of this package's
// scope.
type TierResolver interface {
	TierOf(ctx context.Context, principalID string) (Tier, error)
}

// Store is the minimal atomic counter contract a storage engine must
// provide. Increment must execute as a single round-trip upsert
// (`ON CONFLICT DO UPDATE SET count = count + 1`, or the engine's
// equivalent) so concurrent reservations never lose an increment.
type Store interface {
	// Increment atomically increments the counter for (principalID, dateKey)
	// and returns the post-increment count.
	Increment(ctx context.Context, principalID, dateKey string) (int64, error)
	// Peek returns the current count without mutating it. Absence reads as 0.
	Peek(ctx context.Context, principalID, dateKey string) (int64, error)
}

// Ledger is the QuotaLedger component: it combines a Store, a TierResolver,
// and fixed ceilings into the reserve/peek operations the orchestrator uses.
type Ledger struct {
	store    Store
	resolver TierResolver
	ceilings Ceilings
}

func NewLedger(store Store, resolver TierResolver, ceilings Ceilings) *Ledger {
	return &Ledger{store: store, resolver: resolver, ceilings: ceilings}
}

// DateKey returns the deterministic YYYY-MM-DD UTC key the day's counter is
// stored under. Reset occurs at the UTC day boundary.
func DateKey(now time.Time) string {
	return now.UTC().Format("2006-01-02")
}

func nextUTCMidnight(now time.Time) time.Time {
	u := now.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, 1)
}

// Peek computes the caller's remaining requests and reset instant without
// mutating any state.
func (l *Ledger) Peek(ctx context.Context, principalID string, now time.Time) (UsageSnapshot, error) {
	tier, err := l.resolver.TierOf(ctx, principalID)
	if err != nil {
		return UsageSnapshot{}, fmt.Errorf("%w: tier lookup: %v", ErrLedgerUnavailable, err)
	}

	key := DateKey(now)
	count, err := l.store.Peek(ctx, principalID, key)
	if err != nil {
		return UsageSnapshot{}, fmt.Errorf("%w: %v", ErrLedgerUnavailable, err)
	}

	limit := l.ceilings.limitFor(tier)
	remaining := limit - count
	if remaining < 0 {
		remaining = 0
	}
	return UsageSnapshot{Tier: tier, RequestsRemaining: remaining, ResetAt: nextUTCMidnight(now)}, nil
}

// Reserve atomically increments today's counter for principalID and compares
// the post-increment count to the tier ceiling. The increment is never
// rolled back, even on Exhausted: a small, bounded over-count on rejected
// requests buys zero-contention atomicity.
func (l *Ledger) Reserve(ctx context.Context, principalID string, now time.Time) (Outcome, UsageSnapshot, error) {
	tier, err := l.resolver.TierOf(ctx, principalID)
	if err != nil {
		return Exhausted, UsageSnapshot{}, fmt.Errorf("%w: tier lookup: %v", ErrLedgerUnavailable, err)
	}

	key := DateKey(now)
	count, err := l.store.Increment(ctx, principalID, key)
	if err != nil {
		return Exhausted, UsageSnapshot{}, fmt.Errorf("%w: %v", ErrLedgerUnavailable, err)
	}

	limit := l.ceilings.limitFor(tier)
	remaining := limit - count
	outcome := Granted
	label := "granted"
	if remaining < 0 {
		remaining = 0
		outcome = Exhausted
		label = "exhausted"
	}

	metrics.QuotaReservations.WithLabelValues(string(tier), label).Inc()

	return outcome, UsageSnapshot{Tier: tier, RequestsRemaining: remaining, ResetAt: nextUTCMidnight(now)}, nil
}
