// Package jobs runs the periodic housekeeping of the information system.
package jobs

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const jobTimeout = 5 * time.Minute

var errMissingPurger = errors.New("jobs: token purger is required")

// TokenPurger removes expired confirmation and password reset tokens.
type TokenPurger interface {
	PurgeExpiredTokens(ctx context.Context) (int64, error)
}

// Config wires the scheduler.
type Config struct {
	Purger   TokenPurger
	Schedule string
	Logger   *zap.Logger
}

// Scheduler runs background jobs on cron schedules in UTC.
type Scheduler struct {
	cron     *cron.Cron
	purger   TokenPurger
	schedule string
	logger   *zap.Logger
}

// NewScheduler validates the schedule and constructs a stopped scheduler.
func NewScheduler(cfg Config) (*Scheduler, error) {
	if cfg.Purger == nil {
		return nil, errMissingPurger
	}
	schedule := strings.TrimSpace(cfg.Schedule)
	if _, err := cron.ParseStandard(schedule); err != nil {
		return nil, err
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		cron:     cron.New(cron.WithLocation(time.UTC)),
		purger:   cfg.Purger,
		schedule: schedule,
		logger:   logger,
	}, nil
}

// Start registers the jobs and starts the cron loop.
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.schedule, s.PurgeTokens); err != nil {
		return err
	}
	s.cron.Start()
	s.logger.Info("job scheduler started", zap.String("token_cleanup_schedule", s.schedule))
	return nil
}

// Stop waits for running jobs and stops the scheduler.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("job scheduler stopped")
}

// PurgeTokens removes expired tokens once.
func (s *Scheduler) PurgeTokens() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	removed, err := s.purger.PurgeExpiredTokens(ctx)
	if err != nil {
		s.logger.Error("token cleanup failed", zap.Error(err))
		return
	}
	s.logger.Info("token cleanup finished", zap.Int64("removed", removed))
}
