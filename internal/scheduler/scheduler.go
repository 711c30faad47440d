package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/go-co-op/gocron"
	"go.uber.org/zap"
)

// DefaultInterval is used when no positive interval is configured.
const DefaultInterval = 60 * time.Second

// Poller is the single writer driven by the scheduler.
type Poller interface {
	Poll(ctx context.Context) (float64, error)
}

// Scheduler periodically polls the estimator. It is the only regular caller of Poll.
type Scheduler struct {
	scheduler *gocron.Scheduler
	poller    Poller
	interval  time.Duration
	timeout   time.Duration
	logger    *zap.SugaredLogger
}

// New creates a new Scheduler. timeout bounds a single job run.
func New(poller Poller, interval, timeout time.Duration, logger *zap.SugaredLogger) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if timeout <= 0 || timeout > interval {
		timeout = interval
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	s := gocron.NewScheduler(time.UTC)
	// A slow provider must never stack polls on top of each other.
	s.SingletonModeAll()

	return &Scheduler{
		scheduler: s,
		poller:    poller,
		interval:  interval,
		timeout:   timeout,
		logger:    logger,
	}
}

// Start schedules the periodic job and starts the underlying scheduler.
// The first poll runs immediately.
func (s *Scheduler) Start() error {
	if s.poller == nil {
		return errors.New("scheduler: no poller configured")
	}

	_, err := s.scheduler.Every(s.interval).Do(s.run)
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	s.logger.Infow("scheduler started", "interval", s.interval)
	return nil
}

func (s *Scheduler) run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	total, err := s.poller.Poll(ctx)
	if err != nil {
		s.logger.Warnw("scheduled poll failed", "error", err)
		return
	}
	s.logger.Debugw("scheduled poll completed", "totalAccumulated", total)
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
		s.logger.Infow("scheduler stopped")
	}
}
