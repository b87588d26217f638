// CLAUDE:SUMMARY Service wiring: upstream client, persisted cache, rate limiter, audit hook.
package archiviste

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hazyhaar/archiviste/archiviste/internal/cache"
	"github.com/hazyhaar/archiviste/archiviste/internal/ratelimit"
	"github.com/hazyhaar/archiviste/archiviste/internal/wbclient"
)

// Auditor records one completed tool call. Implementations must not block;
// the service calls Record on the request path.
type Auditor interface {
	Record(ctx context.Context, tool string, durationMS int64, errCode string)
}

// Service exposes Wayback Machine lookups as callable operations. All methods
// are safe for concurrent use.
type Service struct {
	client  *wbclient.Client
	cache   *cache.Cache
	limiter *ratelimit.Limiter
	logger  *slog.Logger
	config  Config
	audit   Auditor
}

// ServiceOption customizes Service construction.
type ServiceOption func(*Service)

// WithClient overrides the upstream client. Tests point it at an httptest
// server.
func WithClient(c *wbclient.Client) ServiceOption {
	return func(s *Service) { s.client = c }
}

// WithCache overrides the persisted response cache.
func WithCache(c *cache.Cache) ServiceOption {
	return func(s *Service) { s.cache = c }
}

// WithAudit attaches a tool-call audit sink.
func WithAudit(a Auditor) ServiceOption {
	return func(s *Service) { s.audit = a }
}

// New builds a Service from cfg. The cache file is loaded (and expired
// entries swept) before New returns.
func New(cfg Config, logger *slog.Logger, opts ...ServiceOption) (*Service, error) {
	cfg.defaults()
	if logger == nil {
		logger = slog.Default()
	}

	s := &Service{
		logger: logger,
		config: cfg,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.limiter == nil {
		s.limiter = ratelimit.New(ratelimit.Config{})
	}
	if s.client == nil {
		s.client = wbclient.New(wbclient.Config{
			Timeout:         cfg.Timeout,
			MaxBytes:        cfg.MaxBytes,
			UserAgent:       cfg.UserAgent,
			MaxRetries:      cfg.MaxRetries,
			AvailabilityURL: cfg.AvailabilityURL,
			CDXURL:          cfg.CDXURL,
			WebURL:          cfg.WebURL,
		}, s.limiter, logger)
	}
	if s.cache == nil {
		path := cfg.CachePath
		if path == "" {
			p, err := cache.DefaultPath()
			if err != nil {
				return nil, fmt.Errorf("archiviste: cache path: %w", err)
			}
			path = p
		}
		s.cache = cache.New(path)
	}
	if err := s.cache.Init(); err != nil {
		return nil, fmt.Errorf("archiviste: cache init: %w", err)
	}
	return s, nil
}

// cached runs fn unless the cache already holds key. fn fills out, which is
// then persisted with ttl. Cache read/write failures degrade to a log line,
// never to a request failure.
func (s *Service) cached(key string, ttl time.Duration, out any, fn func() error) error {
	if hit, err := s.cache.Get(key, out); err != nil {
		s.logger.Warn("cache read failed", "key", key, "error", err)
	} else if hit {
		return nil
	}

	if err := fn(); err != nil {
		return err
	}
	if err := s.cache.Set(key, out, ttl); err != nil {
		s.logger.Warn("cache write failed", "key", key, "error", err)
	}
	return nil
}
