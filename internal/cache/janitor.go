package cache

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"threat-cache/internal/common/logging"
)

// Janitor runs Manager.Cleanup on a cron schedule so expired local entries
// are reclaimed even when nobody reads them again.
type Janitor struct {
	cron     *cron.Cron
	schedule string
	logger   logging.Logger
}

// NewJanitor validates schedule and registers the sweep. It does not start.
func NewJanitor(m *Manager, schedule string, logger logging.Logger) (*Janitor, error) {
	logger = logging.OrGlobal(logger)
	cl := cronLogger{logger}

	c := cron.New(cron.WithLogger(cl), cron.WithChain(
		cron.Recover(cl),
		cron.SkipIfStillRunning(cl),
	))
	if _, err := c.AddFunc(schedule, func() { m.Cleanup() }); err != nil {
		return nil, fmt.Errorf("invalid cleanup schedule %q: %w", schedule, err)
	}

	return &Janitor{cron: c, schedule: schedule, logger: logger}, nil
}

// Start begins running sweeps in the background.
func (j *Janitor) Start() {
	j.cron.Start()
	j.logger.Info("Cache janitor started", logging.Field{Key: "schedule", Value: j.schedule})
}

// Stop halts the schedule and waits for a running sweep, or for ctx.
func (j *Janitor) Stop(ctx context.Context) error {
	done := j.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// cronLogger adapts logging.Logger to cron.Logger.
type cronLogger struct {
	logger logging.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug("cron: "+msg, pairs(keysAndValues)...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error("cron: "+msg, err, pairs(keysAndValues)...)
}

func pairs(keysAndValues []interface{}) []logging.Field {
	fields := make([]logging.Field, 0, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		fields = append(fields, logging.Field{Key: fmt.Sprint(keysAndValues[i]), Value: keysAndValues[i+1]})
	}
	return fields
}
