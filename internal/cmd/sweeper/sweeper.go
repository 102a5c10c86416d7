// Package sweeper parses sweeper command flags and launches the sweep loop.
package sweeper

import (
	"context"
	"flag"
	"time"

	entrypoint "github.com/gravemark/ink/internal/platform/cmd"
	sweeperserver "github.com/gravemark/ink/internal/services/sweeper/app"
)

// Config holds sweeper command configuration.
type Config struct {
	DBPath       string        `env:"GRAVEMARK_SWEEPER_DB_PATH" envDefault:"data/chains.db"`
	PollInterval time.Duration `env:"GRAVEMARK_SWEEPER_POLL_INTERVAL" envDefault:"15s"`
	StatBatch    int           `env:"GRAVEMARK_SWEEPER_STAT_BATCH" envDefault:"200"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "The chain SQLite database path")
	fs.DurationVar(&cfg.PollInterval, "poll-interval", cfg.PollInterval, "Sweep loop interval")
	fs.IntVar(&cfg.StatBatch, "stat-batch", cfg.StatBatch, "Stat events applied per sweep")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the sweeper runtime.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceSweeper, func(context.Context) error {
		return sweeperserver.Run(ctx, sweeperserver.RuntimeConfig{
			DBPath:       cfg.DBPath,
			PollInterval: cfg.PollInterval,
			StatBatch:    cfg.StatBatch,
		})
	})
}
