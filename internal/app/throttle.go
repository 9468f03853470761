package app

import (
	"time"
)

// Throttle allows at most limit events per sliding interval.
type Throttle struct {
	history  []time.Time
	limit    int
	interval time.Duration
}

func NewThrottle(limit int, interval time.Duration) *Throttle {
	if limit < 1 {
		limit = 1
	}
	return &Throttle{limit: limit, interval: interval}
}

// Allow records an attempt at now if it fits the window.
func (t *Throttle) Allow(now time.Time) bool {
	if t.interval <= 0 {
		return true
	}
	t.prune(now)
	if len(t.history) >= t.limit {
		return false
	}
	t.history = append(t.history, now)
	return true
}

// NextAllowed is the earliest time Allow can succeed.
func (t *Throttle) NextAllowed(now time.Time) time.Time {
	t.prune(now)
	if t.interval <= 0 || len(t.history) < t.limit {
		return now
	}
	return t.history[0].Add(t.interval)
}

func (t *Throttle) prune(now time.Time) {
	windowStart := now.Add(-t.interval)
	fresh := t.history[:0]
	for _, at := range t.history {
		if at.After(windowStart) {
			fresh = append(fresh, at)
		}
	}
	t.history = fresh
}
