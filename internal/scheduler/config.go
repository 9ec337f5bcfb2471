package scheduler

import (
	"time"

	"github.com/smallbiznis/voucherportal/internal/config"
)

// Config controls scheduler intervals and batch sizes.
type Config struct {
	Enabled          bool
	RunInterval      time.Duration
	BatchSize        int
	SessionRetention time.Duration
	JobTimeout       time.Duration
}

func DefaultConfig() Config {
	return Config{
		Enabled:          true,
		RunInterval:      5 * time.Minute,
		BatchSize:        500,
		SessionRetention: 24 * time.Hour,
		JobTimeout:       30 * time.Second,
	}
}

func ProvideConfig(cfg config.Config) Config {
	return Config{
		Enabled:          cfg.Scheduler.Enabled,
		RunInterval:      time.Duration(cfg.Scheduler.IntervalSeconds) * time.Second,
		SessionRetention: time.Duration(cfg.Scheduler.SessionRetentionHours) * time.Hour,
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
	if c.SessionRetention < 0 {
		c.SessionRetention = defaults.SessionRetention
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = defaults.JobTimeout
	}
	return c
}
