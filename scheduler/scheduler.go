// Package scheduler drives the periodic analysis cycle for the signal
// server.
package scheduler

import (
	"context"
	"time"

	"github.com/go-co-op/gocron"

	"signalboard/pkg/logger"
)

// Scheduler runs the analysis cycle on a fixed interval.
type Scheduler struct {
	cron   *gocron.Scheduler
	runner *Runner
	every  int
}

// NewScheduler creates a scheduler that runs the cycle every
// intervalSeconds.
func NewScheduler(runner *Runner, intervalSeconds int) *Scheduler {
	if intervalSeconds < 5 {
		intervalSeconds = 5
	}
	return &Scheduler{
		cron:   gocron.NewScheduler(time.UTC),
		runner: runner,
		every:  intervalSeconds,
	}
}

// Start begins the scheduled cycle and runs the first pass immediately.
func (s *Scheduler) Start() {
	logger.Info("Starting scheduler...")

	s.cron.Every(s.every).Seconds().StartImmediately().Do(func() {
		if _, err := s.runner.RunCycle(context.Background()); err != nil {
			logger.Error("Analysis cycle failed")
		}
	})

	s.cron.StartAsync()
	logger.Info("Scheduler started successfully")
}

// Stop stops the scheduler.
func (s *Scheduler) Stop() {
	s.cron.Stop()
	logger.Info("Scheduler stopped")
}
