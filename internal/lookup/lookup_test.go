package lookup

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/jobboard-prerender/internal/vacancy"
)

type mockJobs struct {
	mock.Mock
}

func (m *mockJobs) FindBySlug(ctx context.Context, slug string) ([]vacancy.Job, error) {
	args := m.Called(ctx, slug)
	jobs, _ := args.Get(0).([]vacancy.Job)
	return jobs, args.Error(1)
}

func (m *mockJobs) All(ctx context.Context) ([]vacancy.Job, error) {
	args := m.Called(ctx)
	jobs, _ := args.Get(0).([]vacancy.Job)
	return jobs, args.Error(1)
}

func (m *mockJobs) Recent(ctx context.Context) ([]vacancy.Job, error) {
	args := m.Called(ctx)
	jobs, _ := args.Get(0).([]vacancy.Job)
	return jobs, args.Error(1)
}

const slug = "seo-manager-acme-berlin"

var acme = vacancy.Job{ID: "1", Title: "SEO Manager", CompanyName: "Acme", City: "Berlin"}

func TestSlugColumnHitSkipsScan(t *testing.T) {
	t.Parallel()

	jobs := &mockJobs{}
	stored := acme
	stored.Slug = slug
	jobs.On("FindBySlug", mock.Anything, slug).Return([]vacancy.Job{stored}, nil).Once()

	res, err := Default(jobs, nil).Find(context.Background(), slug)
	require.NoError(t, err)
	require.Equal(t, StrategySlugColumn, res.Strategy)
	require.Equal(t, "1", res.Job.ID)
	jobs.AssertExpectations(t)
	jobs.AssertNotCalled(t, "All", mock.Anything)
}

func TestFallsBackToFullScanOnMiss(t *testing.T) {
	t.Parallel()

	jobs := &mockJobs{}
	jobs.On("FindBySlug", mock.Anything, slug).Return([]vacancy.Job(nil), nil).Once()
	jobs.On("All", mock.Anything).Return([]vacancy.Job{
		{ID: "0", Title: "SEO Manager", CompanyName: "Acme"},
		acme,
	}, nil).Once()

	res, err := Default(jobs, nil).Find(context.Background(), slug)
	require.NoError(t, err)
	require.Equal(t, StrategyFullScan, res.Strategy)
	require.Equal(t, "1", res.Job.ID)
	jobs.AssertExpectations(t)
}

func TestFallsBackToFullScanOnSlugColumnError(t *testing.T) {
	t.Parallel()

	jobs := &mockJobs{}
	jobs.On("FindBySlug", mock.Anything, slug).Return(nil, errors.New("column slug does not exist")).Once()
	jobs.On("All", mock.Anything).Return([]vacancy.Job{acme}, nil).Once()

	res, err := Default(jobs, nil).Find(context.Background(), slug)
	require.NoError(t, err)
	require.Equal(t, StrategyFullScan, res.Strategy)
}

func TestFullScanFirstMatchWins(t *testing.T) {
	t.Parallel()

	dup := acme
	dup.ID = "2"
	jobs := &mockJobs{}
	jobs.On("All", mock.Anything).Return([]vacancy.Job{acme, dup}, nil)

	job, ok, err := NewFullScan(jobs).Find(context.Background(), slug)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "1", job.ID)
}

func TestNotFoundWhenAllStrategiesMiss(t *testing.T) {
	t.Parallel()

	jobs := &mockJobs{}
	jobs.On("FindBySlug", mock.Anything, slug).Return([]vacancy.Job{}, nil)
	jobs.On("All", mock.Anything).Return([]vacancy.Job{{ID: "9", Title: "Other", CompanyName: "X", City: "Y"}}, nil)

	_, err := Default(jobs, nil).Find(context.Background(), slug)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestUpstreamErrorWhenFinalStrategyFails(t *testing.T) {
	t.Parallel()

	boom := errors.New("timeout")
	jobs := &mockJobs{}
	jobs.On("FindBySlug", mock.Anything, slug).Return([]vacancy.Job{}, nil)
	jobs.On("All", mock.Anything).Return(nil, boom)

	_, err := Default(jobs, nil).Find(context.Background(), slug)
	require.ErrorIs(t, err, boom)
	require.NotErrorIs(t, err, ErrNotFound)
	require.Contains(t, err.Error(), StrategyFullScan)
}

func TestEmptyFinderIsNotFound(t *testing.T) {
	t.Parallel()

	_, err := FirstSome(nil).Find(context.Background(), slug)
	require.ErrorIs(t, err, ErrNotFound)
}
