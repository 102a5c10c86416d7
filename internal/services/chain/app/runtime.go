package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gravemark/ink/internal/services/chain/storage/sqlite"
)

// RuntimeConfig controls chain service startup and dependencies.
type RuntimeConfig struct {
	Port         int
	DBPath       string
	TokenSecret  string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// NewHandler builds the HTTP surface over the wired services. The api
	// package supplies it; injecting it here keeps app free of an import
	// cycle with its own transport.
	NewHandler func(custody *CustodyService, invitations *InvitationService, sessions *SessionEngine, aggregator *StatsAggregator, notifier *Notifier) (http.Handler, error)
}

const (
	defaultChainPort = 8094
	defaultChainDB   = "data/chains.db"

	// Long polls park up to a minute, so the write timeout must outlast them.
	defaultReadTimeout  = 70 * time.Second
	defaultWriteTimeout = 70 * time.Second
)

// Run starts the chain service runtime and blocks until ctx is canceled or
// the server fails.
func Run(ctx context.Context, cfg RuntimeConfig) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if cfg.NewHandler == nil {
		return fmt.Errorf("handler constructor is required")
	}
	if strings.TrimSpace(cfg.TokenSecret) == "" {
		return fmt.Errorf("token secret is required")
	}
	if cfg.Port <= 0 {
		cfg.Port = defaultChainPort
	}
	if strings.TrimSpace(cfg.DBPath) == "" {
		cfg.DBPath = defaultChainDB
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = defaultReadTimeout
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = defaultWriteTimeout
	}

	if dir := filepath.Dir(cfg.DBPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create chain storage dir: %w", err)
		}
	}

	store, err := sqlite.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open chain sqlite store: %w", err)
	}
	defer func() {
		if closeErr := store.Close(); closeErr != nil {
			log.Printf("close chain sqlite store: %v", closeErr)
		}
	}()

	notifier := NewNotifier()
	custody := NewCustodyService(store, nil, nil, notifier)
	invitations := NewInvitationService(store, nil, nil, notifier)
	sessions := NewSessionEngine(store, nil, nil, nil, nil, notifier)
	aggregator := NewStatsAggregator(store)

	handler, err := cfg.NewHandler(custody, invitations, sessions, aggregator, notifier)
	if err != nil {
		return fmt.Errorf("build chain handler: %w", err)
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.ListenAndServe()
	}()
	log.Printf("chain server listening at %s", server.Addr)

	select {
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve chain http: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown chain http: %w", err)
	}
	<-serveErr
	return nil
}
