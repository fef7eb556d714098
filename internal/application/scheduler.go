package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/ericfisherdev/prreaper/internal/domain/model"
)

// CronParser accepts standard 5-field expressions and descriptors such as
// "@daily" or "@every 6h".
var CronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Schedule pairs an operation with its cron expression.
type Schedule struct {
	Operation model.Operation
	Spec      string
}

// Scheduler fires reaper operations on independent cron schedules.
type Scheduler struct {
	runner    *Runner
	schedules []Schedule
	logger    *slog.Logger
}

// NewScheduler creates a Scheduler. Expressions are parsed in Start.
func NewScheduler(runner *Runner, schedules []Schedule, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		runner:    runner,
		schedules: schedules,
		logger:    logger,
	}
}

// Start registers all schedules and blocks until ctx is canceled. Runs still
// in flight at shutdown are waited for; they observe ctx cancellation through
// their network calls.
func (s *Scheduler) Start(ctx context.Context) error {
	c := cron.New(
		cron.WithParser(CronParser),
		cron.WithLogger(cronLogger{logger: s.logger}),
	)

	for _, sched := range s.schedules {
		schedule, err := CronParser.Parse(sched.Spec)
		if err != nil {
			return fmt.Errorf("parse %s schedule %q: %w", sched.Operation, sched.Spec, err)
		}

		op := sched.Operation
		c.Schedule(schedule, cron.FuncJob(func() {
			_, err := s.runner.Run(ctx, op)
			if err != nil && !errors.Is(err, ErrRunInProgress) {
				s.logger.Error("scheduled run failed", "operation", string(op), "error", err)
			}
		}))

		s.logger.Info("operation scheduled",
			"operation", string(op),
			"spec", sched.Spec,
			"next_run", schedule.Next(time.Now()),
		)
	}

	c.Start()
	<-ctx.Done()

	stopped := c.Stop()
	<-stopped.Done()
	s.logger.Info("scheduler stopped")
	return nil
}

// cronLogger adapts slog to the cron.Logger interface.
type cronLogger struct {
	logger *slog.Logger
}

// Info logs cron's routine messages at debug level; they fire on every tick.
func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

// Error logs cron failures, including recovered job panics.
func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
