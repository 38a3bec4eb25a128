package memory

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/jobboard-prerender/internal/store"
	"github.com/JakeFAU/jobboard-prerender/internal/vacancy"
)

func TestFindBySlugUsesStoredColumn(t *testing.T) {
	t.Parallel()

	s := NewJobStore(
		vacancy.Job{ID: "1", Title: "SEO Manager", CompanyName: "Acme", City: "Berlin"},
		vacancy.Job{ID: "2", Slug: "seo-lead-beta-paris"},
	)

	jobs, err := s.FindBySlug(context.Background(), "seo-manager-acme-berlin")
	require.NoError(t, err)
	require.Empty(t, jobs, "derived slugs are not indexed")

	jobs, err = s.FindBySlug(context.Background(), "seo-lead-beta-paris")
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	require.Equal(t, "2", jobs[0].ID)
}

func TestRecentOrdersNewestFirst(t *testing.T) {
	t.Parallel()

	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	s := NewJobStore(
		vacancy.Job{ID: "old", CreatedAt: vacancy.At(base)},
		vacancy.Job{ID: "new", CreatedAt: vacancy.At(base.Add(48 * time.Hour))},
		vacancy.Job{ID: "mid", CreatedAt: vacancy.At(base.Add(24 * time.Hour))},
	)
	jobs, err := s.Recent(context.Background())
	require.NoError(t, err)
	require.Equal(t, "new", jobs[0].ID)
	require.Equal(t, "mid", jobs[1].ID)
	require.Equal(t, "old", jobs[2].ID)

	all, err := s.All(context.Background())
	require.NoError(t, err)
	require.Equal(t, "old", all[0].ID, "All keeps insertion order")
}

func TestPutReplacesByID(t *testing.T) {
	t.Parallel()

	s := NewJobStore(vacancy.Job{ID: "1", Title: "A"})
	s.Put(vacancy.Job{ID: "1", Title: "B"})
	s.Put(vacancy.Job{ID: "2", Title: "C"})
	all, _ := s.All(context.Background())
	require.Len(t, all, 2)
	require.Equal(t, "B", all[0].Title)
}

func TestVisitsAreCopied(t *testing.T) {
	t.Parallel()

	s := NewJobStore()
	require.NoError(t, s.InsertVisits(context.Background(), []store.Visit{{BotType: "Google"}}))
	got := s.Visits()
	require.Len(t, got, 1)
	got[0].BotType = "mutated"
	require.Equal(t, "Google", s.Visits()[0].BotType)
}

func TestLoadFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "jobs.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"id":"1","title":"SEO Manager","slug":"x"}]`), 0o600))
	s, err := LoadFile(path)
	require.NoError(t, err)
	jobs, _ := s.FindBySlug(context.Background(), "x")
	require.Len(t, jobs, 1)

	require.NoError(t, os.WriteFile(path, []byte(`{`), 0o600))
	_, err = LoadFile(path)
	require.Error(t, err)
}
