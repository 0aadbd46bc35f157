package scheduler

import (
	"sync/atomic"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// skipCounter counts triggers dropped by cron.SkipIfStillRunning.
type skipCounter struct {
	n atomic.Int64
}

func (c *skipCounter) load() int64 {
	return c.n.Load()
}

// cronLogger adapts zap to the cron.Logger interface. Cron's routine
// messages are demoted to debug level.
type cronLogger struct {
	log   *zap.SugaredLogger
	skips *skipCounter
}

var _ cron.Logger = (*cronLogger)(nil)

func newCronLogger(log *zap.Logger, skips *skipCounter) *cronLogger {
	return &cronLogger{
		log:   log.Named("cron").Sugar(),
		skips: skips,
	}
}

func (l *cronLogger) Info(msg string, keysAndValues ...interface{}) {
	if msg == "skip" {
		l.skips.n.Add(1)
		l.log.Infow("trigger skipped, previous run still in progress", keysAndValues...)
		return
	}
	l.log.Debugw(msg, keysAndValues...)
}

func (l *cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Errorw(msg, append(keysAndValues, "error", err)...)
}
