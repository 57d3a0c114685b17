// Package heartbeat logs a periodic liveness line from inside the
// scheduler loop. It runs on the loop's own clock and never blocks.
package heartbeat

import (
	"log/slog"
	"time"

	"envnode-go/services/sched"
)

// Reporter fires at most once per interval. A nil Reporter is disabled.
type Reporter struct {
	timer *sched.PeriodicTimer
	start time.Duration
	log   *slog.Logger
}

// New returns nil when interval <= 0.
func New(interval, start time.Duration, log *slog.Logger) *Reporter {
	if interval <= 0 {
		return nil
	}
	return &Reporter{timer: sched.NewPeriodicTimer(interval, start), start: start, log: log}
}

// Tick logs "heartbeat" with the uptime and attrs when due.
func (r *Reporter) Tick(now time.Duration, attrs ...any) bool {
	if r == nil || !r.timer.Poll(now) {
		return false
	}
	r.log.Info("heartbeat", append([]any{"uptime", now - r.start}, attrs...)...)
	return true
}
