// Package tracker drives periodic price refreshes across the tracked card
// set, pacing group concurrency against the catalog's cooperative rate
// limit.
package tracker

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/cardlens/backend/internal/domain"
)

// Resolver resolves one card query. Satisfied by *usecase.Resolver and
// *usecase.PriceService-backed adapters.
type Resolver interface {
	Resolve(ctx context.Context, q domain.CardQuery) (*domain.PriceResult, error)
}

// Config holds tunables for the batch tracker.
type Config struct {
	// GroupSize bounds how many cards are resolved concurrently; each
	// resolution is internally sequential against the upstream.
	GroupSize int

	// GroupDelay is the deliberate pause between groups, bounding the peak
	// request rate against the catalog.
	GroupDelay time.Duration

	// StaleAfter selects cards whose last snapshot is older than this.
	StaleAfter time.Duration

	// BatchLimit caps how many cards one pass refreshes.
	BatchLimit int
}

// Stats summarizes one tracker pass.
type Stats struct {
	Selected   int
	Resolved   int
	Unresolved int
	Failed     int
}

// Tracker refreshes price snapshots for stale cards in concurrency-bounded
// groups.
type Tracker struct {
	store    domain.SnapshotStore
	resolver Resolver
	cfg      Config
}

// New creates a tracker.
func New(store domain.SnapshotStore, resolver Resolver, cfg Config) *Tracker {
	if cfg.GroupSize <= 0 {
		cfg.GroupSize = 5
	}
	if cfg.GroupDelay <= 0 {
		cfg.GroupDelay = 5 * time.Second
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = 24 * time.Hour
	}
	if cfg.BatchLimit <= 0 {
		cfg.BatchLimit = 100
	}
	return &Tracker{store: store, resolver: resolver, cfg: cfg}
}

// Start runs refresh passes on a fixed cadence until the context is
// cancelled.
func (t *Tracker) Start(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		stats, err := t.Run(ctx)
		if err != nil {
			log.Printf("[TRACKER] pass failed: %v", err)
		} else {
			log.Printf("[TRACKER] pass done: selected=%d resolved=%d unresolved=%d failed=%d",
				stats.Selected, stats.Resolved, stats.Unresolved, stats.Failed)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Run executes one refresh pass. Cancellation stops scheduling new groups;
// in-flight resolutions complete and their snapshots persist, since each
// card's snapshot is all-or-nothing.
func (t *Tracker) Run(ctx context.Context) (Stats, error) {
	var stats Stats

	cards, err := t.store.StaleCards(ctx, t.cfg.StaleAfter, t.cfg.BatchLimit)
	if err != nil {
		return stats, err
	}
	stats.Selected = len(cards)
	if len(cards) == 0 {
		return stats, nil
	}

	var mu sync.Mutex

	// Only scheduling is gated on ctx; in-flight refreshes get a detached
	// context so cancellation never tears a resolution or snapshot write.
	refreshCtx := context.WithoutCancel(ctx)

	for start := 0; start < len(cards); start += t.cfg.GroupSize {
		if ctx.Err() != nil {
			log.Printf("[TRACKER] abort requested, %d cards left unscheduled", len(cards)-start)
			break
		}

		end := start + t.cfg.GroupSize
		if end > len(cards) {
			end = len(cards)
		}
		group := cards[start:end]

		var wg sync.WaitGroup
		for i := range group {
			card := group[i]
			wg.Add(1)
			go func() {
				defer wg.Done()
				t.refresh(refreshCtx, card, &mu, &stats)
			}()
		}
		wg.Wait()

		if end < len(cards) {
			select {
			case <-ctx.Done():
			case <-time.After(t.cfg.GroupDelay):
			}
		}
	}

	return stats, nil
}

func (t *Tracker) refresh(ctx context.Context, card domain.TrackedCard, mu *sync.Mutex, stats *Stats) {
	result, err := t.resolver.Resolve(ctx, card.Query)
	if err != nil {
		log.Printf("[TRACKER] resolve %s (%q) failed: %v", card.ID, card.Query.Name, err)
		mu.Lock()
		stats.Failed++
		mu.Unlock()
		return
	}
	if result == nil {
		mu.Lock()
		stats.Unresolved++
		mu.Unlock()
		return
	}

	snap := &domain.PriceSnapshot{
		CardID:     card.ID,
		Result:     result,
		CapturedAt: time.Now().UTC(),
	}
	if err := t.store.SaveSnapshot(ctx, snap); err != nil {
		log.Printf("[TRACKER] save snapshot %s failed: %v", card.ID, err)
		mu.Lock()
		stats.Failed++
		mu.Unlock()
		return
	}

	mu.Lock()
	stats.Resolved++
	mu.Unlock()
}
