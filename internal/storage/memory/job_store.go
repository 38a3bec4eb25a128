// Package memory provides in-process job and visit stores for development
// and tests.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/JakeFAU/jobboard-prerender/internal/store"
	"github.com/JakeFAU/jobboard-prerender/internal/vacancy"
)

// JobStore keeps jobs in insertion order and records visits.
type JobStore struct {
	mu     sync.RWMutex
	jobs   []vacancy.Job
	visits []store.Visit
}

// NewJobStore constructs a JobStore holding jobs.
func NewJobStore(jobs ...vacancy.Job) *JobStore {
	return &JobStore{jobs: append([]vacancy.Job(nil), jobs...)}
}

// LoadFile seeds a JobStore from a JSON array of job rows.
func LoadFile(path string) (*JobStore, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	var jobs []vacancy.Job
	if err := json.Unmarshal(data, &jobs); err != nil {
		return nil, fmt.Errorf("decode seed file: %w", err)
	}
	return NewJobStore(jobs...), nil
}

// Put appends a job, replacing any row with the same ID.
func (s *JobStore) Put(job vacancy.Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.jobs {
		if job.ID != "" && s.jobs[i].ID == job.ID {
			s.jobs[i] = job
			return
		}
	}
	s.jobs = append(s.jobs, job)
}

// FindBySlug matches the stored slug column only, like the hosted datastore.
func (s *JobStore) FindBySlug(_ context.Context, slug string) ([]vacancy.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, job := range s.jobs {
		if job.Slug != "" && job.Slug == slug {
			return []vacancy.Job{job}, nil
		}
	}
	return nil, nil
}

// All returns a copy of every job in insertion order.
func (s *JobStore) All(context.Context) ([]vacancy.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]vacancy.Job(nil), s.jobs...), nil
}

// Recent returns every job, newest created_at first.
func (s *JobStore) Recent(ctx context.Context) ([]vacancy.Job, error) {
	jobs, _ := s.All(ctx)
	sort.SliceStable(jobs, func(i, j int) bool {
		return jobs[i].CreatedAt.After(jobs[j].CreatedAt.Time)
	})
	return jobs, nil
}

// InsertVisits records visits.
func (s *JobStore) InsertVisits(_ context.Context, visits []store.Visit) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.visits = append(s.visits, visits...)
	return nil
}

// Visits returns the recorded visits.
func (s *JobStore) Visits() []store.Visit {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]store.Visit, len(s.visits))
	copy(out, s.visits)
	return out
}
