// Package discovery produces the set of filings to download. It implements
// three independent strategies (the per-company submissions record, the
// per-company paginated browse listing, and the global quarterly master
// index), all returning the same deduplicated, date-ordered reference
// slice, plus the policy that picks between the per-company sources.
package discovery

import (
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/edgar-mirror/internal/edgar"
)

const defaultBrowsePageSize = 100

// Service runs discovery strategies over one shared EDGAR client.
type Service struct {
	client   *edgar.Client
	logger   *zap.Logger
	pageSize int
	now      func() time.Time
}

// Option customizes a Service; used by tests to shrink page sizes and pin
// the clock.
type Option func(*Service)

// WithBrowsePageSize overrides the browse-edgar page size.
func WithBrowsePageSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.pageSize = n
		}
	}
}

// WithClock overrides the time source used to find the current quarter.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// New builds a discovery Service.
func New(client *edgar.Client, logger *zap.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{
		client:   client,
		logger:   logger,
		pageSize: defaultBrowsePageSize,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// yearQuarter identifies one calendar quarter of the bulk index.
type yearQuarter struct {
	Year    int
	Quarter int
}

// quartersThrough lists every quarter from startYear Q1 through the quarter
// containing now, inclusive.
func quartersThrough(startYear int, now time.Time) []yearQuarter {
	endYear := now.Year()
	endQuarter := int(now.Month()-1)/3 + 1
	var out []yearQuarter
	for y := startYear; y <= endYear; y++ {
		for q := 1; q <= 4; q++ {
			if y == endYear && q > endQuarter {
				break
			}
			out = append(out, yearQuarter{Year: y, Quarter: q})
		}
	}
	return out
}
