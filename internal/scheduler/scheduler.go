package scheduler

import (
	"time"

	"github.com/go-co-op/gocron"

	"github.com/dpoulos/hellas-grid-monitor/internal/logger"
)

// DefaultInterval is used when no positive interval is configured.
const DefaultInterval = 5 * time.Minute

// Purger drops expired entries and reports how many were removed.
type Purger interface {
	PurgeExpired() int
}

// Scheduler periodically evicts expired cache entries. It never fetches: all
// provider traffic stays driven by user requests.
type Scheduler struct {
	scheduler *gocron.Scheduler
	purger    Purger
	interval  time.Duration
}

// New creates a new Scheduler.
func New(purger Purger, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		purger:    purger,
		interval:  interval,
	}
}

// Start schedules the eviction job and starts the underlying scheduler.
func (s *Scheduler) Start() error {
	if s.purger == nil {
		logger.Info().Msg("scheduler: no cache configured; nothing to schedule")
		return nil
	}

	_, err := s.scheduler.Every(s.interval).SingletonMode().Do(s.runOnce)
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	logger.Info().Dur("interval", s.interval).Msg("scheduler: cache janitor started")
	return nil
}

func (s *Scheduler) runOnce() {
	removed := s.purger.PurgeExpired()
	logger.Debug().Int("removed", removed).Msg("scheduler: purged expired cache entries")
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
