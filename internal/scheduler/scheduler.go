// Package scheduler runs the periodic jobs on cron triggers.
package scheduler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/fitflow/billing/internal/config"
	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"
)

// jobTimeout bounds a single job run.
const jobTimeout = 10 * time.Minute

// Jobs are the periodic tasks the scheduler triggers.
type Jobs interface {
	ExpirySweep(ctx context.Context) (int, error)
	SendMonthlyReport(ctx context.Context) error
}

// Scheduler owns the cron runner.
type Scheduler struct {
	cron *cron.Cron
	jobs Jobs
}

// New registers the expiry sweep and the monthly report on the configured specs.
func New(cfg config.SchedulerConfig, jobs Jobs) (*Scheduler, error) {
	if jobs == nil {
		return nil, fmt.Errorf("scheduler: nil jobs")
	}
	loc := time.UTC
	if tz := strings.TrimSpace(cfg.Timezone); tz != "" {
		loaded, errLoad := time.LoadLocation(tz)
		if errLoad != nil {
			return nil, fmt.Errorf("scheduler: load timezone %q: %w", tz, errLoad)
		}
		loc = loaded
	}

	logger := cronLogger{}
	c := cron.New(
		cron.WithLocation(loc),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
		cron.WithLogger(logger),
	)
	s := &Scheduler{cron: c, jobs: jobs}

	if _, errAdd := c.AddFunc(cfg.ExpirySweep, s.runExpirySweep); errAdd != nil {
		return nil, fmt.Errorf("scheduler: expiry sweep schedule %q: %w", cfg.ExpirySweep, errAdd)
	}
	if _, errAdd := c.AddFunc(cfg.MonthlyReport, s.runMonthlyReport); errAdd != nil {
		return nil, fmt.Errorf("scheduler: monthly report schedule %q: %w", cfg.MonthlyReport, errAdd)
	}
	return s, nil
}

// Start runs the scheduler until ctx is done.
func (s *Scheduler) Start(ctx context.Context) {
	if s == nil {
		return
	}
	s.cron.Start()
	log.Infof("scheduler started (%d jobs)", len(s.cron.Entries()))
	go func() {
		<-ctx.Done()
		<-s.Stop().Done()
	}()
}

// Stop halts the scheduler; the returned context is done once running jobs finish.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

// Next returns the upcoming trigger times, one per job.
func (s *Scheduler) Next() []time.Time {
	entries := s.cron.Entries()
	out := make([]time.Time, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Next)
	}
	return out
}

func (s *Scheduler) runExpirySweep() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()
	if _, errSweep := s.jobs.ExpirySweep(ctx); errSweep != nil {
		log.WithError(errSweep).Warn("scheduler: expiry sweep failed")
	}
}

func (s *Scheduler) runMonthlyReport() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()
	if errReport := s.jobs.SendMonthlyReport(ctx); errReport != nil {
		log.WithError(errReport).Warn("scheduler: monthly report failed")
	}
}

// cronLogger adapts logrus to cron.Logger.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...any) {
	log.WithFields(kvFields(keysAndValues)).Debug("cron: " + msg)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...any) {
	log.WithError(err).WithFields(kvFields(keysAndValues)).Error("cron: " + msg)
}

func kvFields(keysAndValues []any) log.Fields {
	fields := log.Fields{}
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		fields[fmt.Sprint(keysAndValues[i])] = keysAndValues[i+1]
	}
	return fields
}
