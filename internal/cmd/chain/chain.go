// Package chain parses chain command flags and launches the chain runtime.
package chain

import (
	"context"
	"flag"
	"net/http"
	"time"

	entrypoint "github.com/gravemark/ink/internal/platform/cmd"
	httpapi "github.com/gravemark/ink/internal/services/chain/api/http"
	chainserver "github.com/gravemark/ink/internal/services/chain/app"
)

// Config holds chain command configuration.
type Config struct {
	Port         int           `env:"GRAVEMARK_CHAIN_PORT" envDefault:"8094"`
	DBPath       string        `env:"GRAVEMARK_CHAIN_DB_PATH" envDefault:"data/chains.db"`
	TokenSecret  string        `env:"GRAVEMARK_CHAIN_TOKEN_SECRET"`
	ReadTimeout  time.Duration `env:"GRAVEMARK_CHAIN_READ_TIMEOUT" envDefault:"70s"`
	WriteTimeout time.Duration `env:"GRAVEMARK_CHAIN_WRITE_TIMEOUT" envDefault:"70s"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.IntVar(&cfg.Port, "port", cfg.Port, "The chain HTTP server port")
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "The chain SQLite database path")
	fs.StringVar(&cfg.TokenSecret, "token-secret", cfg.TokenSecret, "Shared secret for bearer token verification")
	fs.DurationVar(&cfg.ReadTimeout, "read-timeout", cfg.ReadTimeout, "HTTP read timeout, must outlast the long poll window")
	fs.DurationVar(&cfg.WriteTimeout, "write-timeout", cfg.WriteTimeout, "HTTP write timeout, must outlast the long poll window")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the chain runtime.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceChain, func(context.Context) error {
		return chainserver.Run(ctx, chainserver.RuntimeConfig{
			Port:         cfg.Port,
			DBPath:       cfg.DBPath,
			TokenSecret:  cfg.TokenSecret,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			NewHandler: func(custody *chainserver.CustodyService, invitations *chainserver.InvitationService, sessions *chainserver.SessionEngine, aggregator *chainserver.StatsAggregator, notifier *chainserver.Notifier) (http.Handler, error) {
				auth := httpapi.NewAuthenticator(cfg.TokenSecret)
				return httpapi.NewHandler(custody, invitations, sessions, aggregator, notifier, auth), nil
			},
		})
	})
}
