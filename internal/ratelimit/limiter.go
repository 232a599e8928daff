// Package ratelimit implements a per-identity sliding-window request
// limiter. State is process-local: each instance enforces its own
// budget, which is acceptable for abuse damping but not for a global
// quota. The Limiter is an injected component so a shared external
// counter can replace it without touching pipeline logic.
package ratelimit

import (
	"math"
	"sync"
	"time"
)

const (
	defaultWindow     = 15 * time.Minute
	defaultCap        = 100
	defaultSweepEvery = time.Minute
)

// Result is the outcome of one admission attempt. RetryAfter is only
// meaningful when the request was not admitted.
type Result struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// RetryAfterSeconds rounds the retry hint up to whole seconds for the
// Retry-After header and response body.
func (r Result) RetryAfterSeconds() int {
	return int(math.Ceil(r.RetryAfter.Seconds()))
}

// Limiter tracks admission timestamps per identity inside a trailing
// window. Safe for concurrent use.
type Limiter struct {
	mu      sync.Mutex
	windows map[string][]time.Time

	window time.Duration
	cap    int
	now    func() time.Time

	sweepEvery time.Duration
	done       chan struct{}
	closeOnce  sync.Once
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithWindow overrides the sliding window length.
func WithWindow(d time.Duration) Option {
	return func(l *Limiter) {
		if d > 0 {
			l.window = d
		}
	}
}

// WithCap overrides the admission cap per window.
func WithCap(n int) Option {
	return func(l *Limiter) {
		if n > 0 {
			l.cap = n
		}
	}
}

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) Option {
	return func(l *Limiter) {
		if fn != nil {
			l.now = fn
		}
	}
}

// WithSweepInterval overrides how often idle identities are evicted.
func WithSweepInterval(d time.Duration) Option {
	return func(l *Limiter) {
		if d > 0 {
			l.sweepEvery = d
		}
	}
}

// New constructs a Limiter and starts its idle-entry sweeper. Call
// Close to stop the sweeper.
func New(opts ...Option) *Limiter {
	l := &Limiter{
		windows:    make(map[string][]time.Time),
		window:     defaultWindow,
		cap:        defaultCap,
		now:        time.Now,
		sweepEvery: defaultSweepEvery,
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}
	go l.sweepLoop()
	return l
}

// Close stops the background sweeper.
func (l *Limiter) Close() {
	l.closeOnce.Do(func() { close(l.done) })
}

// Admit records an admission attempt for the identity. Timestamps older
// than the window are discarded first; when the remaining count reaches
// the cap the attempt is rejected with a hint for when the oldest
// counted admission leaves the window.
func (l *Limiter) Admit(identityID string) Result {
	now := l.now()
	cutoff := now.Add(-l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	stamps := l.windows[identityID]
	kept := stamps[:0]
	for _, ts := range stamps {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}

	if len(kept) >= l.cap {
		l.windows[identityID] = kept
		oldest := kept[0]
		return Result{
			Allowed:    false,
			RetryAfter: oldest.Add(l.window).Sub(now),
		}
	}

	kept = append(kept, now)
	l.windows[identityID] = kept
	return Result{Allowed: true, Remaining: l.cap - len(kept)}
}

func (l *Limiter) sweepLoop() {
	ticker := time.NewTicker(l.sweepEvery)
	defer ticker.Stop()
	for {
		select {
		case <-l.done:
			return
		case <-ticker.C:
			l.sweep()
		}
	}
}

// sweep drops identities whose every admission has left the window.
func (l *Limiter) sweep() {
	cutoff := l.now().Add(-l.window)
	l.mu.Lock()
	defer l.mu.Unlock()
	for id, stamps := range l.windows {
		if len(stamps) == 0 || !stamps[len(stamps)-1].After(cutoff) {
			delete(l.windows, id)
		}
	}
}
