// Package app runs the background sweeper: custody expiry, invitation
// expiry, turn timeouts, and the stat outbox drain.
package app

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	chainapp "github.com/gravemark/ink/internal/services/chain/app"
	"github.com/gravemark/ink/internal/services/chain/storage"
	"github.com/gravemark/ink/internal/services/chain/storage/sqlite"
)

// RuntimeConfig controls sweeper startup and loop behavior.
type RuntimeConfig struct {
	DBPath       string
	PollInterval time.Duration
	StatBatch    int
}

const (
	defaultSweeperDB    = "data/chains.db"
	defaultPollInterval = 15 * time.Second
	defaultStatBatch    = 200
	minimumPollInterval = time.Second
)

// Run opens the store and drives the sweep loop until ctx is canceled.
func Run(ctx context.Context, cfg RuntimeConfig) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if strings.TrimSpace(cfg.DBPath) == "" {
		cfg.DBPath = defaultSweeperDB
	}

	if dir := filepath.Dir(cfg.DBPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create sweeper storage dir: %w", err)
		}
	}

	store, err := sqlite.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open sweeper sqlite store: %w", err)
	}
	defer func() {
		if closeErr := store.Close(); closeErr != nil {
			log.Printf("close sweeper sqlite store: %v", closeErr)
		}
	}()

	return NewLoop(store, cfg).Run(ctx)
}

// Loop sweeps one store on a fixed interval. Each sweep runs independently;
// one failing never starves the others.
type Loop struct {
	custody     *chainapp.CustodyService
	invitations *chainapp.InvitationService
	sessions    *chainapp.SessionEngine
	aggregator  *chainapp.StatsAggregator

	interval  time.Duration
	statBatch int
}

// NewLoop wires a sweep loop over an open store.
func NewLoop(store storage.Store, cfg RuntimeConfig) *Loop {
	interval := cfg.PollInterval
	if interval <= 0 {
		interval = defaultPollInterval
	}
	if interval < minimumPollInterval {
		interval = minimumPollInterval
	}
	statBatch := cfg.StatBatch
	if statBatch <= 0 {
		statBatch = defaultStatBatch
	}
	return &Loop{
		custody:     chainapp.NewCustodyService(store, nil, nil, nil),
		invitations: chainapp.NewInvitationService(store, nil, nil, nil),
		sessions:    chainapp.NewSessionEngine(store, nil, nil, nil, nil, nil),
		aggregator:  chainapp.NewStatsAggregator(store),
		interval:    interval,
		statBatch:   statBatch,
	}
}

// Run sweeps immediately, then on every tick until ctx is canceled.
func (l *Loop) Run(ctx context.Context) error {
	log.Printf("sweeper running every %s", l.interval)

	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	l.SweepOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			l.SweepOnce(ctx)
		}
	}
}

// SweepOnce runs every sweep a single time, logging failures instead of
// aborting the pass.
func (l *Loop) SweepOnce(ctx context.Context) {
	if swept, err := l.custody.SweepExpiredChains(ctx); err != nil {
		log.Printf("sweep expired chains: %v", err)
	} else if swept > 0 {
		log.Printf("expired %d chains", swept)
	}

	if swept, err := l.invitations.SweepExpiredInvitations(ctx); err != nil {
		log.Printf("sweep expired invitations: %v", err)
	} else if swept > 0 {
		log.Printf("expired %d invitations", swept)
	}

	if swept, err := l.sessions.SweepAllTurnTimeouts(ctx); err != nil {
		log.Printf("sweep turn timeouts: %v", err)
	} else if swept > 0 {
		log.Printf("rotated %d timed out turns", swept)
	}

	if applied, err := l.aggregator.Drain(ctx, l.statBatch); err != nil {
		log.Printf("drain stat events: %v", err)
	} else if applied > 0 {
		log.Printf("applied %d stat events", applied)
	}
}
