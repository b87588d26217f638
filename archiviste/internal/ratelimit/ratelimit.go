// CLAUDE:SUMMARY Sliding-window request limiter partitioned by upstream endpoint category.
// Package ratelimit delays callers so that requests to each upstream endpoint
// category stay inside a fixed sliding window.
//
// Callers are never rejected: Acquire blocks until admission is safe, then
// records the admission. State is in-memory and process-local.
package ratelimit

import (
	"context"
	"strings"
	"sync"
	"time"
)

// Rule is the (max requests, window) pair for one endpoint category.
type Rule struct {
	MaxRequests int
	Window      time.Duration
}

// Default per-category rules. Category is chosen by substring match on the
// endpoint identifier; unknown endpoints fall under "default".
var defaultRules = map[string]Rule{
	"availability": {MaxRequests: 15, Window: time.Minute},
	"cdx":          {MaxRequests: 10, Window: time.Minute},
	"content":      {MaxRequests: 5, Window: time.Minute},
	"default":      {MaxRequests: 10, Window: time.Minute},
}

// categoryMatch fixes the substring-match order so classification is
// deterministic when an identifier matches more than one category. The
// availability probe matches on "available" so the real endpoint URL
// (/wayback/available) classifies the same as the bare identifier.
var categoryMatch = []struct{ substr, category string }{
	{"available", "availability"},
	{"cdx", "cdx"},
	{"content", "content"},
}

// Config configures a Limiter.
type Config struct {
	// Rules overrides the per-category limits. Nil entries fall back to the
	// defaults; the "default" category must always resolve.
	Rules map[string]Rule
	// Now returns the current time. Default: time.Now. Tests inject a fake.
	Now func() time.Time
	// Sleep blocks for d or until ctx is done. Default: timer-based sleep.
	Sleep func(ctx context.Context, d time.Duration) error
}

func (c *Config) defaults() {
	if c.Rules == nil {
		c.Rules = defaultRules
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	if c.Sleep == nil {
		c.Sleep = func(ctx context.Context, d time.Duration) error {
			t := time.NewTimer(d)
			defer t.Stop()
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-t.C:
				return nil
			}
		}
	}
}

// Limiter admits requests per endpoint category within a sliding window.
type Limiter struct {
	mu      sync.Mutex
	windows map[string][]time.Time // admission times, chronological
	config  Config
}

// New creates a Limiter.
func New(cfg Config) *Limiter {
	cfg.defaults()
	return &Limiter{
		windows: make(map[string][]time.Time),
		config:  cfg,
	}
}

// Category maps an endpoint identifier or URL to its rate category.
func Category(endpoint string) string {
	for _, m := range categoryMatch {
		if strings.Contains(endpoint, m.substr) {
			return m.category
		}
	}
	return "default"
}

// Acquire blocks until a request to endpoint is admissible, then records the
// admission. Returns early only when ctx is cancelled.
//
// Each pass prunes admissions older than the window, and if the category is
// still full, sleeps until the oldest retained admission exits the window and
// rechecks: another slot may have opened in the meantime, so the wait is a
// loop, not a single computed sleep.
func (l *Limiter) Acquire(ctx context.Context, endpoint string) error {
	category := Category(endpoint)
	rule := l.rule(category)

	for {
		wait, ok := l.tryAdmit(category, rule)
		if ok {
			return nil
		}
		if err := l.config.Sleep(ctx, wait); err != nil {
			return err
		}
	}
}

func (l *Limiter) rule(category string) Rule {
	if r, ok := l.config.Rules[category]; ok {
		return r
	}
	if r, ok := l.config.Rules["default"]; ok {
		return r
	}
	return defaultRules["default"]
}

// tryAdmit prunes the category window and either records an admission
// (ok=true) or reports how long to wait before rechecking.
func (l *Limiter) tryAdmit(category string, rule Rule) (wait time.Duration, ok bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.config.Now()
	cutoff := now.Add(-rule.Window)

	kept := l.windows[category][:0]
	for _, ts := range l.windows[category] {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	l.windows[category] = kept

	if len(kept) < rule.MaxRequests {
		l.windows[category] = append(kept, now)
		return 0, true
	}

	// Window full: wait until the oldest retained admission falls out.
	wait = kept[0].Add(rule.Window).Sub(now)
	if wait <= 0 {
		wait = time.Millisecond
	}
	return wait, false
}

// InFlight reports the current admission count for an endpoint's category
// (after pruning). Used by stats endpoints and tests.
func (l *Limiter) InFlight(endpoint string) int {
	category := Category(endpoint)
	rule := l.rule(category)

	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.config.Now().Add(-rule.Window)
	n := 0
	for _, ts := range l.windows[category] {
		if ts.After(cutoff) {
			n++
		}
	}
	return n
}
