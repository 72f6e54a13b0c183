// File path: internal/orchestrator/config.go
package orchestrator

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"docverge/internal/diff"
)

// Config controls the worker pool, retry policy, and job lifecycle limits.
type Config struct {
	Workers       int
	QueueSize     int
	MaxRetries    int
	RetryBackoff  time.Duration
	JobTTL        time.Duration
	SweepInterval time.Duration
	JobDeadline   time.Duration
	CallTimeout   time.Duration
	MaxFileSizeMB int
	ContextLines  int
}

// DefaultConfig returns the baseline configuration used when no overrides are
// supplied.
func DefaultConfig() Config {
	return Config{
		Workers:       4,
		QueueSize:     64,
		MaxRetries:    3,
		RetryBackoff:  2 * time.Second,
		JobTTL:        time.Hour,
		SweepInterval: time.Minute,
		JobDeadline:   10 * time.Minute,
		CallTimeout:   2 * time.Minute,
		MaxFileSizeMB: 50,
		ContextLines:  diff.DefaultContextLines,
	}
}

// LoadConfig builds a Config from defaults and environment variables.
func LoadConfig() (Config, error) {
	cfg := DefaultConfig()
	intVars := []struct {
		name  string
		value *int
	}{
		{"DOCVERGE_WORKERS", &cfg.Workers},
		{"DOCVERGE_QUEUE_SIZE", &cfg.QueueSize},
		{"DOCVERGE_MAX_RETRIES", &cfg.MaxRetries},
		{"DOCVERGE_MAX_FILE_SIZE_MB", &cfg.MaxFileSizeMB},
		{"DOCVERGE_CONTEXT_LINES", &cfg.ContextLines},
	}
	for _, v := range intVars {
		raw := strings.TrimSpace(os.Getenv(v.name))
		if raw == "" {
			continue
		}
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", v.name, err)
		}
		*v.value = parsed
	}
	durationVars := []struct {
		name  string
		value *time.Duration
	}{
		{"DOCVERGE_RETRY_BACKOFF", &cfg.RetryBackoff},
		{"DOCVERGE_JOB_TTL", &cfg.JobTTL},
		{"DOCVERGE_SWEEP_INTERVAL", &cfg.SweepInterval},
		{"DOCVERGE_JOB_DEADLINE", &cfg.JobDeadline},
		{"DOCVERGE_CALL_TIMEOUT", &cfg.CallTimeout},
	}
	for _, v := range durationVars {
		raw := strings.TrimSpace(os.Getenv(v.name))
		if raw == "" {
			continue
		}
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", v.name, err)
		}
		*v.value = parsed
	}
	return applyDefaults(cfg), nil
}

func applyDefaults(cfg Config) Config {
	defaults := DefaultConfig()
	if cfg.Workers <= 0 {
		cfg.Workers = defaults.Workers
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = defaults.QueueSize
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = defaults.MaxRetries
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = defaults.RetryBackoff
	}
	if cfg.JobTTL <= 0 {
		cfg.JobTTL = defaults.JobTTL
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = defaults.SweepInterval
	}
	if cfg.JobDeadline <= 0 {
		cfg.JobDeadline = defaults.JobDeadline
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = defaults.CallTimeout
	}
	if cfg.MaxFileSizeMB <= 0 {
		cfg.MaxFileSizeMB = defaults.MaxFileSizeMB
	}
	if cfg.ContextLines <= 0 {
		cfg.ContextLines = defaults.ContextLines
	}
	return cfg
}

func (c Config) validate() error {
	if c.Workers <= 0 {
		return fmt.Errorf("worker count must be positive")
	}
	if c.QueueSize <= 0 {
		return fmt.Errorf("queue size must be positive")
	}
	if c.JobDeadline <= 0 {
		return fmt.Errorf("job deadline must be positive")
	}
	if c.CallTimeout <= 0 {
		return fmt.Errorf("call timeout must be positive")
	}
	if c.MaxFileSizeMB <= 0 {
		return fmt.Errorf("file size cap must be positive")
	}
	return nil
}

// MaxFileSizeBytes converts the configured cap to bytes.
func (c Config) MaxFileSizeBytes() int {
	return c.MaxFileSizeMB << 20
}
