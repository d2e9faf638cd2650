package scheduler

import (
	"time"

	"github.com/smallbiznis/identity/internal/config"
)

// Config controls job schedules and batch sizes. Specs use robfig/cron syntax,
// including descriptors such as "@every 5m". An empty spec disables the job.
type Config struct {
	Enabled             bool
	InvitationSweepSpec string
	OutboxRelaySpec     string
	PolicyReloadSpec    string
	BatchSize           int
	JobTimeout          time.Duration
	LockTTL             time.Duration
}

func DefaultConfig() Config {
	return Config{
		Enabled:             true,
		InvitationSweepSpec: "@every 5m",
		OutboxRelaySpec:     "@every 5s",
		BatchSize:           100,
		JobTimeout:          time.Minute,
		LockTTL:             2 * time.Minute,
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.BatchSize <= 0 {
		c.BatchSize = defaults.BatchSize
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = defaults.JobTimeout
	}
	if c.LockTTL <= 0 {
		c.LockTTL = defaults.LockTTL
	}
	if c.LockTTL < c.JobTimeout {
		c.LockTTL = c.JobTimeout
	}
	return c
}

func ProvideConfig(cfg config.Config) Config {
	return Config{
		Enabled:             cfg.Scheduler.Enabled,
		InvitationSweepSpec: cfg.Scheduler.InvitationSweepSpec,
		OutboxRelaySpec:     cfg.Scheduler.OutboxRelaySpec,
		PolicyReloadSpec:    cfg.Scheduler.PolicyReloadSpec,
		BatchSize:           cfg.Scheduler.BatchSize,
		JobTimeout:          cfg.Scheduler.JobTimeout,
		LockTTL:             cfg.Scheduler.LockTTL,
	}
}
