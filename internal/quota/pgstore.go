package quota

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGStore persists daily counters in Postgres. Increment is a single
// statement: an upsert with `ON CONFLICT DO UPDATE SET count = count + 1`
// followed by a `RETURNING` clause, so the increment and the read of the new
// count happen in one round-trip under the connection's default isolation.
type PGStore struct {
	pool *pgxpool.Pool
}

func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

const createQuotaTable = `
CREATE TABLE IF NOT EXISTS quota_counters (
	principal_id TEXT NOT NULL,
	date_key     TEXT NOT NULL,
	count        BIGINT NOT NULL DEFAULT 0,
	PRIMARY KEY (principal_id, date_key)
)`

// EnsureSchema creates the quota_counters table if it does not already
// exist. Call once at startup.
func (p *PGStore) EnsureSchema(ctx context.Context) error {
	_, err := p.pool.Exec(ctx, createQuotaTable)
	if err != nil {
		return fmt.Errorf("quota: ensure schema: %w", err)
	}
	return nil
}

func (p *PGStore) Increment(ctx context.Context, principalID, dateKey string) (int64, error) {
	const query = `
		INSERT INTO quota_counters (principal_id, date_key, count)
		VALUES ($1, $2, 1)
		ON CONFLICT (principal_id, date_key)
		DO UPDATE SET count = quota_counters.count + 1
		RETURNING count
	`
	var count int64
	if err := p.pool.QueryRow(ctx, query, principalID, dateKey).Scan(&count); err != nil {
		return 0, fmt.Errorf("quota: increment: %w", err)
	}
	return count, nil
}

func (p *PGStore) Peek(ctx context.Context, principalID, dateKey string) (int64, error) {
	const query = `SELECT count FROM quota_counters WHERE principal_id = $1 AND date_key = $2`
	var count int64
	err := p.pool.QueryRow(ctx, query, principalID, dateKey).Scan(&count)
	if err != nil {
		// No row yet means zero usage today, not an error.
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("quota: peek: %w", err)
	}
	return count, nil
}
