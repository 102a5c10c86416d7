package sweeper

import (
	"flag"
	"testing"
	"time"
)

func TestParseConfig_ParsesDefaultsAndFlags(t *testing.T) {
	fs := flag.NewFlagSet("sweeper", flag.ContinueOnError)
	t.Setenv("GRAVEMARK_SWEEPER_POLL_INTERVAL", "5s")

	cfg, err := ParseConfig(fs, []string{"-stat-batch", "50"})
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.PollInterval != 5*time.Second {
		t.Fatalf("poll interval = %v, want 5s", cfg.PollInterval)
	}
	if cfg.StatBatch != 50 {
		t.Fatalf("stat batch = %d, want 50", cfg.StatBatch)
	}
}

func TestParseConfig_Defaults(t *testing.T) {
	fs := flag.NewFlagSet("sweeper", flag.ContinueOnError)

	cfg, err := ParseConfig(fs, nil)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.DBPath != "data/chains.db" {
		t.Fatalf("db path = %q, want data/chains.db", cfg.DBPath)
	}
	if cfg.PollInterval != 15*time.Second {
		t.Fatalf("poll interval = %v, want 15s", cfg.PollInterval)
	}
	if cfg.StatBatch != 200 {
		t.Fatalf("stat batch = %d, want 200", cfg.StatBatch)
	}
}
