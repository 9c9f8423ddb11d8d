// Package ratelimit implements the Rate-Limiter Middleware (C7): a
// per-identifier sliding-window limiter applied globally and per
// endpoint (§4.7).
//
// Grounded on original_source/back/src/middleware/rate_limit.py's
// RateLimiter — the deque-of-timestamps sliding window and the
// global-then-per-endpoint check order carry over directly; the
// windows are plain []time.Time slices trimmed from the front instead
// of a deque, since Go has no stdlib deque and the access pattern
// (trim-then-append) is just as cheap on a slice.
package ratelimit

import (
	"sync"
	"time"

	"github.com/quantdesk/tradedesk/pkg/config"
)

// window is one identifier's sliding request-time log.
type window struct {
	mu    sync.Mutex
	times []time.Time
}

// allow evicts entries older than windowDur, then admits the request
// if fewer than max remain; otherwise it returns how long until the
// oldest entry ages out.
func (w *window) allow(now time.Time, max int, windowDur time.Duration) (bool, time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()

	cutoff := now.Add(-windowDur)
	i := 0
	for i < len(w.times) && !w.times[i].After(cutoff) {
		i++
	}
	w.times = w.times[i:]

	if len(w.times) < max {
		w.times = append(w.times, now)
		return true, 0
	}

	retryAfter := w.times[0].Add(windowDur).Sub(now)
	if retryAfter < 0 {
		retryAfter = 0
	}
	return false, retryAfter
}

// Limiter holds a global rule and per-endpoint overrides, each keyed
// by identifier with its own independent window.
type Limiter struct {
	mu              sync.Mutex
	global          config.EndpointLimit
	perEndpoint     map[string]config.EndpointLimit
	skipPaths       map[string]bool
	globalWindows   map[string]*window
	endpointWindows map[string]map[string]*window
}

// New builds a Limiter from the Rate-Limiter Middleware's config.
func New(cfg config.RateLimitConfig) *Limiter {
	skip := make(map[string]bool, len(cfg.SkipPaths))
	for _, p := range cfg.SkipPaths {
		skip[p] = true
	}
	return &Limiter{
		global:          cfg.Global,
		perEndpoint:     cfg.PerEndpoint,
		skipPaths:       skip,
		globalWindows:   make(map[string]*window),
		endpointWindows: make(map[string]map[string]*window),
	}
}

// Allow checks identifier against the global limit and, if path has an
// override, that limit too. The stricter of the two decides; skipped
// paths always allow.
func (l *Limiter) Allow(identifier, path string, now time.Time) (bool, time.Duration) {
	if l.skipPaths[path] {
		return true, 0
	}

	gw := l.windowFor(l.globalWindows, identifier)
	if ok, retry := gw.allow(now, l.global.MaxRequests, l.global.Window); !ok {
		return false, retry
	}

	if rule, ok := l.perEndpoint[path]; ok {
		ew := l.endpointWindowFor(path, identifier)
		if ok2, retry := ew.allow(now, rule.MaxRequests, rule.Window); !ok2 {
			return false, retry
		}
	}

	return true, 0
}

func (l *Limiter) windowFor(m map[string]*window, identifier string) *window {
	l.mu.Lock()
	defer l.mu.Unlock()
	w, ok := m[identifier]
	if !ok {
		w = &window{}
		m[identifier] = w
	}
	return w
}

func (l *Limiter) endpointWindowFor(path, identifier string) *window {
	l.mu.Lock()
	defer l.mu.Unlock()
	pm, ok := l.endpointWindows[path]
	if !ok {
		pm = make(map[string]*window)
		l.endpointWindows[path] = pm
	}
	w, ok := pm[identifier]
	if !ok {
		w = &window{}
		pm[identifier] = w
	}
	return w
}
