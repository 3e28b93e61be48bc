// Package postgres persists price snapshots for the batch price tracker.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cardlens/backend/internal/domain"
)

// Store is a pgx-backed snapshot store. Schema:
//
//	cards(id, domain, name, set_name, card_number, release_year, variant,
//	      is_foil, is_first_edition, is_reverse_holo, last_priced_at)
//	price_snapshots(card_id, product_id, product_name, console_name,
//	      raw_price, grades jsonb, score, confidence, is_fallback,
//	      used_cascade, captured_at; unique (card_id, captured_at))
type Store struct {
	pool   *pgxpool.Pool
	schema string
}

// Config holds connection settings for the store.
type Config struct {
	DSN      string
	Schema   string
	MaxConns int
}

// NewStore connects a snapshot store. The pool is sized small; the tracker
// writes one row per resolved card, not bulk loads.
func NewStore(ctx context.Context, cfg Config) (*Store, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres DSN: %w", err)
	}
	maxConns := cfg.MaxConns
	if maxConns <= 0 {
		maxConns = 2
	}
	poolCfg.MaxConns = int32(maxConns)

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	schema := cfg.Schema
	if schema == "" {
		schema = "public"
	}
	return &Store{pool: pool, schema: schema}, nil
}

// Close releases the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

// StaleCards selects up to limit cards that have never been priced or whose
// last snapshot is older than olderThan.
func (s *Store) StaleCards(ctx context.Context, olderThan time.Duration, limit int) ([]domain.TrackedCard, error) {
	if limit <= 0 {
		limit = 100
	}
	query := fmt.Sprintf(`
		SELECT id, domain, name, set_name, card_number, release_year, variant,
		       is_foil, is_first_edition, is_reverse_holo
		FROM %q.cards
		WHERE last_priced_at IS NULL OR last_priced_at < $1
		ORDER BY last_priced_at ASC NULLS FIRST
		LIMIT $2`, s.schema)

	cutoff := time.Now().UTC().Add(-olderThan)
	rows, err := s.pool.Query(ctx, query, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("select stale cards: %w", err)
	}
	defer rows.Close()

	var cards []domain.TrackedCard
	for rows.Next() {
		var card domain.TrackedCard
		q := &card.Query
		if err := rows.Scan(&card.ID, &q.Domain, &q.Name, &q.Set, &q.Number, &q.Year,
			&q.Variant, &q.IsFoil, &q.IsFirstEdition, &q.IsReverseHolo); err != nil {
			return nil, fmt.Errorf("scan stale card: %w", err)
		}
		cards = append(cards, card)
	}
	return cards, rows.Err()
}

// SaveSnapshot inserts one price snapshot (idempotent per card and capture
// time) and marks the card fresh.
func (s *Store) SaveSnapshot(ctx context.Context, snap *domain.PriceSnapshot) error {
	if snap == nil || snap.Result == nil {
		return fmt.Errorf("snapshot must carry a result")
	}

	grades, err := json.Marshal(snap.Result.Grades)
	if err != nil {
		return fmt.Errorf("marshal grades: %w", err)
	}

	capturedAt := snap.CapturedAt
	if capturedAt.IsZero() {
		capturedAt = time.Now().UTC()
	}

	insert := fmt.Sprintf(`
		INSERT INTO %q.price_snapshots
		(card_id, product_id, product_name, console_name, raw_price, grades,
		 score, confidence, is_fallback, used_cascade, captured_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		ON CONFLICT (card_id, captured_at) DO NOTHING`, s.schema)

	r := snap.Result
	if _, err := s.pool.Exec(ctx, insert,
		snap.CardID, r.ProductID, r.ProductName, r.ConsoleName, r.RawPrice,
		grades, r.Score, string(r.Confidence), r.IsFallback, r.UsedCascade,
		capturedAt,
	); err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}

	touch := fmt.Sprintf(`UPDATE %q.cards SET last_priced_at = $1 WHERE id = $2`, s.schema)
	if _, err := s.pool.Exec(ctx, touch, capturedAt, snap.CardID); err != nil {
		return fmt.Errorf("touch card: %w", err)
	}
	return nil
}
