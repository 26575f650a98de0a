// Package scheduler provides cron-based background jobs for the nutrition
// bot, such as the periodic sweep of expired pending images.
package scheduler

import (
	"log/slog"

	"github.com/robfig/cron/v3"
)

// Scheduler wraps a cron runner for recurring maintenance jobs.
type Scheduler struct {
	cron *cron.Cron
}

// NewScheduler creates and starts a cron scheduler using the standard
// 5-field expression format. Panicking jobs are recovered and logged rather
// than taking the process down.
func NewScheduler() *Scheduler {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	c := cron.New(cron.WithParser(parser), cron.WithChain(cron.Recover(cron.DefaultLogger)))
	c.Start()
	slog.Debug("Scheduler started")
	return &Scheduler{cron: c}
}

// AddJob schedules a recurring task with a cron expression. It returns an
// error if the expression is invalid.
func (s *Scheduler) AddJob(expr string, task func()) error {
	if _, err := s.cron.AddFunc(expr, task); err != nil {
		slog.Error("Scheduler.AddJob: invalid cron expression", "expr", expr, "error", err)
		return err
	}
	slog.Debug("Scheduler.AddJob: job registered", "expr", expr)
	return nil
}

// Stop stops the scheduler and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	slog.Debug("Scheduler stopped")
}
