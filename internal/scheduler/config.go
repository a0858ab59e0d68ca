package scheduler

import (
	"time"

	"github.com/smallbiznis/vindesk/internal/config"
)

// Config controls scheduler intervals and batch sizes.
type Config struct {
	Enabled     bool
	RunInterval time.Duration
	BatchSize   int
	JobTimeout  time.Duration
	// PaymentTTL is how long a payment may stay pending before it is failed.
	// Zero disables expiry.
	PaymentTTL  time.Duration
	EnabledJobs []string
}

func DefaultConfig() Config {
	return Config{
		Enabled:     true,
		RunInterval: time.Minute,
		BatchSize:   50,
		JobTimeout:  30 * time.Second,
		PaymentTTL:  24 * time.Hour,
	}
}

func ProvideConfig(cfg config.Config) Config {
	return Config{
		Enabled:     cfg.Scheduler.Enabled,
		RunInterval: cfg.Scheduler.Interval,
		BatchSize:   cfg.Scheduler.BatchSize,
		PaymentTTL:  cfg.Scheduler.PaymentTTL,
		EnabledJobs: cfg.Scheduler.Jobs,
	}.withDefaults()
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.RunInterval <= 0 {
		c.RunInterval = defaults.RunInterval
	}
	if c.BatchSize <= 0 {
		c.BatchSize = defaults.BatchSize
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = defaults.JobTimeout
	}
	if c.PaymentTTL < 0 {
		c.PaymentTTL = 0
	}
	return c
}
