// Package scheduler provides cron-based job scheduling for SlimLine.
//
// It drives recurring background work such as the nightly usage summary
// push to the operator.
package scheduler

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// Scheduler provides cron-based job scheduling.
type Scheduler struct {
	cron *cron.Cron
}

// NewScheduler creates and starts a cron scheduler in the given timezone.
// A nil location schedules in the server's local time.
func NewScheduler(loc *time.Location) *Scheduler {
	// Standard 5-field cron parser (min, hour, dom, month, dow) with panic
	// recovery so a failing job never kills the scheduler.
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	opts := []cron.Option{cron.WithParser(parser), cron.WithChain(cron.Recover(cron.DefaultLogger))}
	if loc != nil {
		opts = append(opts, cron.WithLocation(loc))
	}
	c := cron.New(opts...)
	c.Start()
	return &Scheduler{cron: c}
}

// AddJob schedules a task using the provided cron expression.
// It returns an error if the expression is invalid.
func (s *Scheduler) AddJob(expr string, task func()) error {
	_, err := s.cron.AddFunc(expr, task)
	if err != nil {
		return fmt.Errorf("failed to schedule job: %w", err)
	}
	slog.Debug("Scheduler.AddJob: job scheduled", "expr", expr)
	return nil
}

// AddDailyJob schedules a task to run every day at the given HH:MM time.
func (s *Scheduler) AddDailyJob(hhmm string, task func()) error {
	hour, minute, err := parseClock(hhmm)
	if err != nil {
		return err
	}
	return s.AddJob(fmt.Sprintf("%d %d * * *", minute, hour), task)
}

// Stop stops the cron scheduler and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	slog.Debug("Scheduler.Stop: scheduler stopped")
}

// parseClock parses an HH:MM wall-clock time.
func parseClock(hhmm string) (int, int, error) {
	parts := strings.SplitN(hhmm, ":", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid time %q, expected HH:MM", hhmm)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("invalid hour in %q", hhmm)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("invalid minute in %q", hhmm)
	}
	return hour, minute, nil
}
