// Package tracker implements the two operations the HTTP layer calls:
// recording a page view and summarizing what has been recorded.
package tracker

import (
	"context"

	"github.com/runnerr0/pixelcount/internal/logging"
	"github.com/runnerr0/pixelcount/internal/storage"
)

const (
	DefaultLimit = 10
	MaxLimit     = 1000
)

// Options tunes a Service. Zero values select defaults.
type Options struct {
	DefaultLimit int
	MaxLimit     int
	Logger       *logging.Logger
}

// Service records views into, and reads summaries from, an event log.
// It is safe for concurrent use.
type Service struct {
	log          storage.EventLog
	defaultLimit int
	maxLimit     int
	logger       *logging.Logger
}

// StatsRequest selects what QueryStats summarizes. Domain is only applied
// when ByDomain is set, so the empty domain can be queried explicitly.
type StatsRequest struct {
	Domain   string
	ByDomain bool
	Limit    int // <= 0 selects the default
}

// StatsSummary is the answer to QueryStats.
type StatsSummary struct {
	TotalEvents int64
	UniquePages int64
	Latest      []storage.ViewEvent // newest first, never nil
}

// New creates a Service over log.
func New(log storage.EventLog, opts Options) *Service {
	if opts.DefaultLimit <= 0 {
		opts.DefaultLimit = DefaultLimit
	}
	if opts.MaxLimit <= 0 {
		opts.MaxLimit = MaxLimit
	}
	if opts.MaxLimit < opts.DefaultLimit {
		opts.MaxLimit = opts.DefaultLimit
	}
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	return &Service{
		log:          log,
		defaultLimit: opts.DefaultLimit,
		maxLimit:     opts.MaxLimit,
		logger:       opts.Logger,
	}
}

// RecordView appends one view. A missing domain or page is recorded as the
// empty string rather than rejected. It returns only after the view is
// durable, or a *WriteError.
func (s *Service) RecordView(ctx context.Context, domain, page string) error {
	event := &storage.ViewEvent{Domain: domain, Page: page}
	if err := s.log.Append(ctx, event); err != nil {
		werr := &WriteError{Domain: domain, Page: page, Err: err}
		s.logger.Errorf("%v (timeout=%t)", werr, IsTimeout(err))
		return werr
	}

	s.logger.Debugf("recorded view id=%d domain=%q page=%q", event.ID, domain, page)
	return nil
}

// QueryStats returns the event count, the distinct (domain, page) count
// and the most recent events for req, all from one consistent read.
func (s *Service) QueryStats(ctx context.Context, req StatsRequest) (*StatsSummary, error) {
	limit := s.EffectiveLimit(req.Limit)

	snap, err := s.log.Snapshot(ctx, req.filter(), limit)
	if err != nil {
		qerr := &QueryError{Op: "query stats", Err: err}
		s.logger.Errorf("%v", qerr)
		return nil, qerr
	}

	latest := snap.Latest
	if latest == nil {
		latest = []storage.ViewEvent{}
	}

	s.logger.Debugf("queried stats domain=%q by_domain=%t limit=%d total=%d",
		req.Domain, req.ByDomain, limit, snap.TotalEvents)

	return &StatsSummary{
		TotalEvents: snap.TotalEvents,
		UniquePages: snap.UniquePages,
		Latest:      latest,
	}, nil
}

// DailyViews returns per-day counts for each (domain, page) pair.
func (s *Service) DailyViews(ctx context.Context, req StatsRequest) ([]storage.DailyCount, error) {
	counts, err := s.log.Daily(ctx, req.filter())
	if err != nil {
		qerr := &QueryError{Op: "query daily views", Err: err}
		s.logger.Errorf("%v", qerr)
		return nil, qerr
	}
	return counts, nil
}

// Overview returns whole-log statistics.
func (s *Service) Overview(ctx context.Context) (*storage.Overview, error) {
	ov, err := s.log.Overview(ctx)
	if err != nil {
		qerr := &QueryError{Op: "query overview", Err: err}
		s.logger.Errorf("%v", qerr)
		return nil, qerr
	}
	return ov, nil
}

// Ping reports whether the underlying store is reachable.
func (s *Service) Ping(ctx context.Context) error {
	return s.log.Ping(ctx)
}

// EffectiveLimit applies the default and the cap to a requested limit.
func (s *Service) EffectiveLimit(requested int) int {
	switch {
	case requested <= 0:
		return s.defaultLimit
	case requested > s.maxLimit:
		return s.maxLimit
	default:
		return requested
	}
}

func (r StatsRequest) filter() storage.Filter {
	return storage.Filter{Domain: r.Domain, ByDomain: r.ByDomain}
}
