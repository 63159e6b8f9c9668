package config

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/cwygoda/fetchdata/internal/domain"
)

// LedgerOff disables the SQLite run ledger when passed as the ledger path.
const LedgerOff = "off"

// Config holds application configuration.
type Config struct {
	ManifestPath string
	Destination  string
	Force        bool
	LedgerPath   string
	Listen       string
	Timeout      time.Duration
	Strict       bool
}

// LedgerEnabled reports whether runs should be recorded.
func (c *Config) LedgerEnabled() bool {
	return c.LedgerPath != "" && c.LedgerPath != LedgerOff
}

// DefaultLedgerPath returns the default ledger path using XDG_CACHE_HOME.
func DefaultLedgerPath() string {
	cacheDir := os.Getenv("XDG_CACHE_HOME")
	if cacheDir == "" {
		home, _ := os.UserHomeDir()
		cacheDir = filepath.Join(home, ".cache")
	}
	return filepath.Join(cacheDir, "fetchdata", "runs.db")
}

// Load parses args and environment to build Config. A .env file in the
// working directory is applied first; variables already set win.
func Load(args []string) (*Config, error) {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			return nil, &domain.ConfigError{Source: ".env", Err: err}
		}
	}

	cfg := &Config{}

	fs := flag.NewFlagSet("fetchdata", flag.ContinueOnError)
	fs.StringVar(&cfg.ManifestPath, "config", "fetchdata.toml", "Dataset manifest (TOML or JSON)")
	fs.StringVar(&cfg.Destination, "dest", "", "Destination directory (overrides the manifest)")
	fs.BoolVar(&cfg.Force, "force", false, "Re-download entries that already exist")
	fs.StringVar(&cfg.LedgerPath, "ledger", DefaultLedgerPath(), `SQLite run ledger path ("off" disables)`)
	fs.StringVar(&cfg.Listen, "listen", "", "Status server address (empty disables)")
	fs.DurationVar(&cfg.Timeout, "timeout", 0, "Per-request HTTP timeout (0 means none)")
	fs.BoolVar(&cfg.Strict, "strict", false, "Exit with status 2 if any entry failed")
	if err := fs.Parse(args); err != nil {
		return nil, &domain.ConfigError{Source: "flags", Err: err}
	}

	// Env overrides
	if v := os.Getenv("FETCHDATA_CONFIG"); v != "" {
		cfg.ManifestPath = v
	}
	if v := os.Getenv("FETCHDATA_DEST"); v != "" {
		cfg.Destination = v
	}
	if v := os.Getenv("FETCHDATA_FORCE"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, &domain.ConfigError{Source: "FETCHDATA_FORCE", Err: err}
		}
		cfg.Force = b
	}
	if v := os.Getenv("FETCHDATA_LEDGER"); v != "" {
		cfg.LedgerPath = v
	}
	if v := os.Getenv("FETCHDATA_LISTEN"); v != "" {
		cfg.Listen = v
	}
	if v := os.Getenv("FETCHDATA_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, &domain.ConfigError{Source: "FETCHDATA_TIMEOUT", Err: err}
		}
		cfg.Timeout = d
	}
	if v := os.Getenv("FETCHDATA_STRICT"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, &domain.ConfigError{Source: "FETCHDATA_STRICT", Err: err}
		}
		cfg.Strict = b
	}

	if cfg.Timeout < 0 {
		return nil, &domain.ConfigError{Source: "timeout", Err: fmt.Errorf("negative duration %s", cfg.Timeout)}
	}
	return cfg, nil
}
