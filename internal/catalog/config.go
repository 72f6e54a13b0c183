// File path: internal/catalog/config.go
package catalog

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config controls the SQLite connection backing the job history catalog.
type Config struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	BusyTimeout     time.Duration
}

// DefaultConfig returns the baseline catalog configuration.
func DefaultConfig() Config {
	return Config{
		Path:            filepath.Join("data", "history.db"),
		MaxOpenConns:    4,
		MaxIdleConns:    2,
		ConnMaxLifetime: 30 * time.Minute,
		BusyTimeout:     5 * time.Second,
	}
}

// LoadConfig builds a Config from defaults and environment variables.
func LoadConfig() (Config, error) {
	cfg := DefaultConfig()
	if value := strings.TrimSpace(os.Getenv("DOCVERGE_HISTORY_PATH")); value != "" {
		cfg.Path = value
	}
	if value := strings.TrimSpace(os.Getenv("DOCVERGE_HISTORY_MAX_CONNS")); value != "" {
		conns, err := strconv.Atoi(value)
		if err != nil {
			return Config{}, fmt.Errorf("parse DOCVERGE_HISTORY_MAX_CONNS: %w", err)
		}
		if conns > 0 {
			cfg.MaxOpenConns = conns
		}
	}
	if value := strings.TrimSpace(os.Getenv("DOCVERGE_HISTORY_BUSY_TIMEOUT")); value != "" {
		dur, err := time.ParseDuration(value)
		if err != nil {
			return Config{}, fmt.Errorf("parse DOCVERGE_HISTORY_BUSY_TIMEOUT: %w", err)
		}
		cfg.BusyTimeout = dur
	}
	return cfg, nil
}
