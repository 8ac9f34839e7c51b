package handlers

import (
	"strings"
	"sync"
	"time"
)

type rateLimiter interface {
	Allow(key string) bool
}

// customerRateLimiter counts requests per customer inside a fixed window.
// A window starts on the first request after the previous one lapsed, so
// idle customers cost nothing and cleanup can stay incidental.
type customerRateLimiter struct {
	limit    int
	window   time.Duration
	clock    func() time.Time
	mu       sync.Mutex
	windows  map[string]*requestWindow
	sweepSeq int
}

type requestWindow struct {
	openedAt time.Time
	hits     int
}

// windows are swept every sweepInterval admissions rather than per call.
const sweepInterval = 64

func newCustomerRateLimiter(limit int, window time.Duration, clock func() time.Time) rateLimiter {
	if limit <= 0 || window <= 0 {
		return nil
	}
	if clock == nil {
		clock = time.Now
	}
	return &customerRateLimiter{
		limit:   limit,
		window:  window,
		clock:   clock,
		windows: make(map[string]*requestWindow),
	}
}

func (l *customerRateLimiter) Allow(key string) bool {
	if l == nil {
		return true
	}
	if key = strings.TrimSpace(key); key == "" {
		key = "anonymous"
	}

	now := l.clock()

	l.mu.Lock()
	defer l.mu.Unlock()

	w := l.windows[key]
	if w == nil || now.Sub(w.openedAt) >= l.window {
		l.windows[key] = &requestWindow{openedAt: now, hits: 1}
		l.maybeSweep(now)
		return true
	}

	if w.hits >= l.limit {
		return false
	}
	w.hits++
	return true
}

func (l *customerRateLimiter) maybeSweep(now time.Time) {
	l.sweepSeq++
	if l.sweepSeq%sweepInterval != 0 {
		return
	}
	for key, w := range l.windows {
		if now.Sub(w.openedAt) >= l.window {
			delete(l.windows, key)
		}
	}
}
