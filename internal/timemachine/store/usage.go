package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/bdobrica/timemachine/internal/timemachine/usage"
)

// LoadUsage returns the recorded character total for tenant in period, or
// zero when nothing was recorded.
func (s *Store) LoadUsage(ctx context.Context, tenant, period string) (int64, error) {
	var chars int64
	err := s.db.QueryRowContext(ctx,
		`SELECT chars_used FROM usage_periods WHERE tenant = ? AND period = ?`,
		tenant, period,
	).Scan(&chars)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("store: load usage: %w", err)
	}
	return chars, nil
}

// SaveUsage upserts the running total. A smaller total never overwrites a
// larger one, so concurrent writers cannot move the counter backwards.
func (s *Store) SaveUsage(ctx context.Context, tenant, period string, chars int64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO usage_periods (tenant, period, chars_used, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(tenant, period) DO UPDATE SET
			chars_used = MAX(chars_used, excluded.chars_used),
			updated_at = excluded.updated_at`,
		tenant, period, chars, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("store: save usage: %w", err)
	}
	return nil
}

// ResetUsage sets the stored total for tenant in period back to zero.
func (s *Store) ResetUsage(ctx context.Context, tenant, period string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO usage_periods (tenant, period, chars_used, updated_at)
		VALUES (?, ?, 0, ?)
		ON CONFLICT(tenant, period) DO UPDATE SET
			chars_used = 0,
			updated_at = excluded.updated_at`,
		tenant, period, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("store: reset usage: %w", err)
	}
	return nil
}

var _ usage.Persister = (*Store)(nil)
