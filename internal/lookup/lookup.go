// Package lookup resolves a URL slug to a job by trying an ordered list of
// strategies.
package lookup

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/jobboard-prerender/internal/metrics"
	"github.com/JakeFAU/jobboard-prerender/internal/store"
	"github.com/JakeFAU/jobboard-prerender/internal/vacancy"
)

// ErrNotFound means every strategy ran cleanly and none matched.
var ErrNotFound = errors.New("job not found")

// Strategy names.
const (
	StrategySlugColumn = "slug_column"
	StrategyFullScan   = "full_scan"
)

// Strategy is one way of finding a job. ok is false when the strategy ran
// but found nothing.
type Strategy interface {
	Name() string
	Find(ctx context.Context, slug string) (job vacancy.Job, ok bool, err error)
}

// Result is a resolved job and the strategy that produced it.
type Result struct {
	Job      vacancy.Job
	Strategy string
}

// Finder composes strategies; the first hit wins.
type Finder struct {
	strategies []Strategy
	logger     *zap.Logger
}

// FirstSome builds a Finder trying strategies in order.
func FirstSome(logger *zap.Logger, strategies ...Strategy) *Finder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Finder{strategies: strategies, logger: logger}
}

// Find runs the strategies in order. A failure in any strategy but the last
// is logged and treated as a miss so the next one gets a chance. When nothing
// matches, the last strategy's error is returned, or ErrNotFound if it
// completed cleanly.
func (f *Finder) Find(ctx context.Context, slug string) (Result, error) {
	var lastErr error
	for i, s := range f.strategies {
		job, ok, err := s.Find(ctx, slug)
		switch {
		case err != nil:
			metrics.ObserveLookup(s.Name(), "error")
			f.logger.Warn("lookup strategy failed",
				zap.String("strategy", s.Name()), zap.String("slug", slug), zap.Error(err))
			if i == len(f.strategies)-1 {
				lastErr = fmt.Errorf("%s lookup: %w", s.Name(), err)
			}
		case ok:
			metrics.ObserveLookup(s.Name(), "hit")
			return Result{Job: job, Strategy: s.Name()}, nil
		default:
			metrics.ObserveLookup(s.Name(), "miss")
			f.logger.Debug("lookup strategy missed",
				zap.String("strategy", s.Name()), zap.String("slug", slug))
		}
	}
	if lastErr != nil {
		return Result{}, lastErr
	}
	return Result{}, ErrNotFound
}

// SlugColumn queries the indexed slug column.
type SlugColumn struct {
	jobs store.Jobs
}

// NewSlugColumn builds the indexed strategy.
func NewSlugColumn(jobs store.Jobs) *SlugColumn {
	return &SlugColumn{jobs: jobs}
}

// Name implements Strategy.
func (*SlugColumn) Name() string { return StrategySlugColumn }

// Find implements Strategy.
func (s *SlugColumn) Find(ctx context.Context, slug string) (vacancy.Job, bool, error) {
	jobs, err := s.jobs.FindBySlug(ctx, slug)
	if err != nil {
		return vacancy.Job{}, false, err
	}
	if len(jobs) == 0 {
		return vacancy.Job{}, false, nil
	}
	return jobs[0], true, nil
}

// FullScan loads every job and recomputes slugs from title, company and
// city. When several jobs derive the same slug the first in datastore order
// is returned.
type FullScan struct {
	jobs store.Jobs
}

// NewFullScan builds the fallback strategy.
func NewFullScan(jobs store.Jobs) *FullScan {
	return &FullScan{jobs: jobs}
}

// Name implements Strategy.
func (*FullScan) Name() string { return StrategyFullScan }

// Find implements Strategy.
func (s *FullScan) Find(ctx context.Context, slug string) (vacancy.Job, bool, error) {
	jobs, err := s.jobs.All(ctx)
	if err != nil {
		return vacancy.Job{}, false, err
	}
	for _, job := range jobs {
		if !job.Sluggable() {
			continue
		}
		if vacancy.Slug(job.Title, job.CompanyName, job.City) == slug {
			return job, true, nil
		}
	}
	return vacancy.Job{}, false, nil
}

// Default is the slug column followed by the full scan.
func Default(jobs store.Jobs, logger *zap.Logger) *Finder {
	return FirstSome(logger, NewSlugColumn(jobs), NewFullScan(jobs))
}
