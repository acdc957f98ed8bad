package session

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// DefaultMaxIdle is how long a session may sit untouched before the
// janitor evicts it.
const DefaultMaxIdle = 2 * time.Hour

// Janitor periodically evicts idle sessions from a cache.
type Janitor struct {
	cache    *Cache
	maxIdle  time.Duration
	schedule string
	cron     *cron.Cron
	logger   zerolog.Logger
	running  bool
}

// NewJanitor creates a janitor for the cache. An empty schedule runs
// every ten minutes.
func NewJanitor(cache *Cache, maxIdle time.Duration, schedule string, logger zerolog.Logger) *Janitor {
	if maxIdle <= 0 {
		maxIdle = DefaultMaxIdle
	}
	if schedule == "" {
		schedule = "@every 10m"
	}

	return &Janitor{
		cache:    cache,
		maxIdle:  maxIdle,
		schedule: schedule,
		logger:   logger,
	}
}

// Start begins the eviction schedule.
func (j *Janitor) Start() error {
	if j.running {
		return fmt.Errorf("janitor is already running")
	}

	j.cron = cron.New()
	if _, err := j.cron.AddFunc(j.schedule, j.sweep); err != nil {
		return fmt.Errorf("invalid janitor schedule %q: %w", j.schedule, err)
	}
	j.cron.Start()
	j.running = true

	j.logger.Info().
		Str("schedule", j.schedule).
		Dur("max_idle", j.maxIdle).
		Msg("Session janitor started")
	return nil
}

// Stop halts the schedule, waiting for an in-flight sweep to finish.
func (j *Janitor) Stop() error {
	if !j.running {
		return fmt.Errorf("janitor is not running")
	}

	<-j.cron.Stop().Done()
	j.running = false

	j.logger.Info().Msg("Session janitor stopped")
	return nil
}

// Sweep runs one eviction pass immediately.
func (j *Janitor) Sweep() int {
	evicted := j.cache.EvictIdle(j.maxIdle)
	return evicted
}

func (j *Janitor) sweep() {
	j.Sweep()
}
