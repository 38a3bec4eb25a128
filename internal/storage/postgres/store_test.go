package postgres

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/jobboard-prerender/internal/store"
)

func newMockStore(t *testing.T) (*Store, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	s, err := NewWithPool(mock, "jobs", "bot_visits")
	require.NoError(t, err)
	return s, mock
}

func TestFindBySlugDecodesRow(t *testing.T) {
	t.Parallel()

	s, mock := newMockStore(t)
	rows := pgxmock.NewRows([]string{"row_to_json"}).
		AddRow(`{"id":"42","title":"SEO Manager","company_name":"Acme","city":"Berlin","slug":"seo-manager-acme-berlin","expires_at":"2025-06-01T00:00:00+00:00"}`)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT row_to_json(j)::text FROM jobs j WHERE j.slug = $1 LIMIT 1")).
		WithArgs("seo-manager-acme-berlin").
		WillReturnRows(rows)

	jobs, err := s.FindBySlug(context.Background(), "seo-manager-acme-berlin")
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	require.Equal(t, "42", jobs[0].ID)
	require.Equal(t, time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), jobs[0].ExpiresAt.Time)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecentOrdersByCreatedAt(t *testing.T) {
	t.Parallel()

	s, mock := newMockStore(t)
	rows := pgxmock.NewRows([]string{"row_to_json"}).
		AddRow(`{"id":"2","title":"B"}`).
		AddRow(`{"id":"1","title":"A"}`)
	mock.ExpectQuery(regexp.QuoteMeta("FROM jobs j ORDER BY j.created_at DESC")).WillReturnRows(rows)

	jobs, err := s.Recent(context.Background())
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	require.Equal(t, "2", jobs[0].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAllPropagatesQueryError(t *testing.T) {
	t.Parallel()

	s, mock := newMockStore(t)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT row_to_json(j)::text FROM jobs j")).
		WillReturnError(errors.New("connection reset"))

	_, err := s.All(context.Background())
	require.ErrorContains(t, err, "connection reset")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAllRejectsMalformedRow(t *testing.T) {
	t.Parallel()

	s, mock := newMockStore(t)
	mock.ExpectQuery(regexp.QuoteMeta("FROM jobs j")).
		WillReturnRows(pgxmock.NewRows([]string{"row_to_json"}).AddRow(`not json`))

	_, err := s.All(context.Background())
	require.ErrorContains(t, err, "decode jobs row")
}

func TestInsertVisitsBuildsMultiRowInsert(t *testing.T) {
	t.Parallel()

	s, mock := newMockStore(t)
	at := time.Date(2025, 5, 1, 8, 0, 0, 0, time.UTC)
	slug := "seo-manager-acme-berlin"
	ip := "66.249.66.1"
	visits := []store.Visit{
		{JobSlug: slug, BotType: "Google", UserAgent: "Googlebot/2.1", IPAddress: ip, Prerendered: true, VisitedAt: at},
		{BotType: "Other", UserAgent: "DuckDuckBot", VisitedAt: at},
	}
	mock.ExpectExec(regexp.QuoteMeta(
		"INSERT INTO bot_visits (job_slug, bot_type, user_agent, ip_address, prerendered, visited_at, referrer) " +
			"VALUES ($1,$2,$3,$4,$5,$6,$7), ($8,$9,$10,$11,$12,$13,$14)")).
		WithArgs(
			&slug, "Google", "Googlebot/2.1", &ip, true, at, (*string)(nil),
			(*string)(nil), "Other", "DuckDuckBot", (*string)(nil), false, at, (*string)(nil),
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 2))

	require.NoError(t, s.InsertVisits(context.Background(), visits))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertVisitsNoRows(t *testing.T) {
	t.Parallel()

	s, mock := newMockStore(t)
	require.NoError(t, s.InsertVisits(context.Background(), nil))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNewWithPoolValidation(t *testing.T) {
	t.Parallel()

	_, err := NewWithPool(nil, "", "")
	require.Error(t, err)

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	_, err = NewWithPool(mock, "jobs;--", "")
	require.ErrorContains(t, err, "invalid table name")
}

func TestNilStoreIsNotConfigured(t *testing.T) {
	t.Parallel()

	var s *Store
	_, err := s.All(context.Background())
	require.ErrorIs(t, err, store.ErrNotConfigured)
	_, err = s.FindBySlug(context.Background(), "seo-manager")
	require.ErrorIs(t, err, store.ErrNotConfigured)
	_, err = s.Recent(context.Background())
	require.ErrorIs(t, err, store.ErrNotConfigured)
	require.ErrorIs(t, s.InsertVisits(context.Background(), nil), store.ErrNotConfigured)
	s.Close()
}

func TestNewRequiresDSN(t *testing.T) {
	t.Parallel()

	_, err := New(context.Background(), Config{})
	require.ErrorContains(t, err, "dsn is required")
}
