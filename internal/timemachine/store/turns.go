package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Turn is one row of the turn log.
type Turn struct {
	ID            string
	Tenant        string
	Query         string
	ResponseType  string
	Tier          string
	Source        string
	MinChars      int
	MaxChars      int
	LengthChars   int
	EstimatedCost float64
	Shortened     bool
	Synthesized   bool
	AudioPath     string
	CreatedAt     time.Time
}

// RecordTurn appends t to the turn log.
func (s *Store) RecordTurn(ctx context.Context, t Turn) error {
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}
	var audio interface{}
	if t.AudioPath != "" {
		audio = t.AudioPath
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO turns
			(id, tenant, query, response_type, tier, source, min_chars, max_chars,
			 length_chars, estimated_cost, shortened, synthesized, audio_path, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.Tenant, t.Query, t.ResponseType, t.Tier, t.Source, t.MinChars, t.MaxChars,
		t.LengthChars, t.EstimatedCost, t.Shortened, t.Synthesized, audio,
		t.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("store: record turn: %w", err)
	}
	return nil
}

// Summary aggregates the turn log for one period.
type Summary struct {
	Period      string
	Turns       int
	Chars       int64
	Cost        float64
	Synthesized int
	Shortened   int
	AIPowered   int
}

// DailySummary aggregates every turn whose UTC date is period
// (YYYY-MM-DD). An empty tenant covers all tenants.
func (s *Store) DailySummary(ctx context.Context, period, tenant string) (Summary, error) {
	sum := Summary{Period: period}
	var (
		chars, synth, short, ai sql.NullInt64
		cost                    sql.NullFloat64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       SUM(length_chars),
		       SUM(estimated_cost),
		       SUM(synthesized),
		       SUM(shortened),
		       SUM(CASE WHEN source = 'ai_powered' THEN 1 ELSE 0 END)
		FROM turns
		WHERE substr(created_at, 1, 10) = ?
		  AND (? = '' OR tenant = ?)`,
		period, tenant, tenant,
	).Scan(&sum.Turns, &chars, &cost, &synth, &short, &ai)
	if err != nil {
		return Summary{}, fmt.Errorf("store: daily summary: %w", err)
	}
	sum.Chars = chars.Int64
	sum.Cost = cost.Float64
	sum.Synthesized = int(synth.Int64)
	sum.Shortened = int(short.Int64)
	sum.AIPowered = int(ai.Int64)
	return sum, nil
}

// RecentTurns returns up to limit turns, newest first.
func (s *Store) RecentTurns(ctx context.Context, limit int) ([]Turn, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, tenant, query, response_type, tier, source, min_chars, max_chars,
		       length_chars, estimated_cost, shortened, synthesized, audio_path, created_at
		FROM turns
		ORDER BY created_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("store: recent turns: %w", err)
	}
	defer rows.Close()

	var out []Turn
	for rows.Next() {
		var (
			t       Turn
			audio   sql.NullString
			created string
		)
		if err := rows.Scan(&t.ID, &t.Tenant, &t.Query, &t.ResponseType, &t.Tier, &t.Source,
			&t.MinChars, &t.MaxChars, &t.LengthChars, &t.EstimatedCost, &t.Shortened,
			&t.Synthesized, &audio, &created); err != nil {
			return nil, fmt.Errorf("store: scan turn: %w", err)
		}
		t.AudioPath = audio.String
		if t.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
			return nil, fmt.Errorf("store: parse created_at: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
