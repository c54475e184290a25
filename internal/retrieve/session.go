package retrieve

import (
	"net/url"
	"slices"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/GriffinCanCode/monolith/internal/cache"
	"github.com/GriffinCanCode/monolith/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/monolith/internal/policy"
	"github.com/GriffinCanCode/monolith/internal/transport"
	"github.com/GriffinCanCode/monolith/internal/urls"
)

// Session carries everything one conversion needs to retrieve assets. The
// root session owns the client and cache; nested sessions created by Enter
// share them and only differ in frame depth and ancestry.
type Session struct {
	*shared

	depth     int
	ancestors []string
}

type shared struct {
	policy  policy.Policy
	client  *transport.Client
	cache   *cache.Cache
	logger  *zap.Logger
	metrics *monitoring.Metrics
	flight  singleflight.Group

	mu      sync.Mutex
	visited []string
	seen    map[string]struct{}
}

// Option configures a Session
type Option func(*shared)

// WithClient replaces the client built from the policy
func WithClient(c *transport.Client) Option {
	return func(s *shared) { s.client = c }
}

// WithCache sets the asset cache. Without it a memory-only cache is used.
func WithCache(c *cache.Cache) Option {
	return func(s *shared) { s.cache = c }
}

// WithLogger sets the diagnostics logger
func WithLogger(l *zap.Logger) Option {
	return func(s *shared) { s.logger = l }
}

// WithMetrics records retrievals into m
func WithMetrics(m *monitoring.Metrics) Option {
	return func(s *shared) { s.metrics = m }
}

// NewSession creates the root session for one conversion. The policy is
// copied and never modified afterwards.
func NewSession(p policy.Policy, opts ...Option) *Session {
	sh := &shared{
		policy: p.Clone(),
		seen:   make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(sh)
	}

	if sh.logger == nil || p.Silent {
		sh.logger = zap.NewNop()
	}
	if sh.cache == nil {
		sh.cache = cache.New(cache.WithLogger(sh.logger))
	}
	if sh.client == nil {
		sh.client = transport.NewClient(transport.Options{
			Timeout:   p.RequestTimeout(),
			Insecure:  p.Insecure,
			UserAgent: p.UserAgent,
			Logger:    sh.logger,
		})
	}

	return &Session{shared: sh}
}

// Policy returns the session's policy
func (s *Session) Policy() policy.Policy {
	return s.policy
}

// Logger returns the diagnostics logger
func (s *Session) Logger() *zap.Logger {
	return s.logger
}

// Metrics returns the metrics sink, possibly nil
func (s *Session) Metrics() *monitoring.Metrics {
	return s.metrics
}

// Depth is the number of frames between this session and the top-level
// document.
func (s *Session) Depth() int {
	return s.depth
}

// Enter returns a session for walking the nested document at u, one level
// deeper. It fails with ErrFrameCycle if u is already being walked further
// up the frame chain.
func (s *Session) Enter(u *url.URL) (*Session, error) {
	key := urls.Key(u)
	if slices.Contains(s.ancestors, key) {
		return nil, failure(ErrFrameCycle, key, nil)
	}

	ancestors := make([]string, len(s.ancestors), len(s.ancestors)+1)
	copy(ancestors, s.ancestors)

	return &Session{
		shared:    s.shared,
		depth:     s.depth + 1,
		ancestors: append(ancestors, key),
	}, nil
}

// Root marks u as the top-level document so frames pointing back at it are
// recognised as cycles.
func (s *Session) Root(u *url.URL) *Session {
	return &Session{
		shared:    s.shared,
		depth:     s.depth,
		ancestors: append(slices.Clone(s.ancestors), urls.Key(u)),
	}
}

// Visited lists every URL retrieval was attempted for, in first-seen order.
func (s *Session) Visited() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.visited)
}

func (s *Session) visit(u *url.URL) {
	raw := u.String()

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.seen[raw]; ok {
		return
	}
	s.seen[raw] = struct{}{}
	s.visited = append(s.visited, raw)
}

// Close wipes the asset cache. Call it once, on the root session, when the
// conversion finishes or fails.
func (s *Session) Close() {
	s.cache.Destroy()
}
