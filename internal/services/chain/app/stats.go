package app

import (
	"context"
	"log"

	"github.com/gravemark/ink/internal/services/chain/domain/stats"
	"github.com/gravemark/ink/internal/services/chain/storage"
)

// StatsAggregator drains the stat event outbox into per-writer counters.
type StatsAggregator struct {
	store storage.Store
}

// NewStatsAggregator wires a stats aggregator.
func NewStatsAggregator(store storage.Store) *StatsAggregator {
	return &StatsAggregator{store: store}
}

// Drain applies up to limit pending events. Each event applies under its own
// transaction keyed by the event identity, so redelivery cannot double-count
// and one poisoned event never blocks the rest.
func (a *StatsAggregator) Drain(ctx context.Context, limit int) (int, error) {
	if limit <= 0 {
		limit = sweepBatchSize
	}
	events, err := a.store.ListPendingStatEvents(ctx, limit)
	if err != nil {
		return 0, err
	}

	applied := 0
	for _, event := range events {
		if err := a.store.ApplyStatEvent(ctx, event); err != nil {
			log.Printf("apply stat event %s: %v", event.Key, err)
			continue
		}
		applied++
	}
	return applied, nil
}

// UserStats returns the derived counters for one writer.
func (a *StatsAggregator) UserStats(ctx context.Context, userID string) (stats.UserStats, error) {
	return a.store.GetUserStats(ctx, userID)
}
