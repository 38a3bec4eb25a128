// Package postgres provides Postgres-backed implementations of the job and
// bot visit stores.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/jobboard-prerender/internal/store"
	"github.com/JakeFAU/jobboard-prerender/internal/vacancy"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

const (
	// visitColumns is the number of columns inserted per bot_visits row.
	visitColumns = 7
	// insertBatchSize is the maximum number of rows per INSERT statement.
	insertBatchSize = 100
)

// Config controls the Postgres connection pool.
type Config struct {
	DSN             string
	JobsTable       string
	VisitsTable     string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type pool interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	Close()
}

// Store reads jobs and writes bot visits directly against Postgres.
type Store struct {
	pool        pool
	jobsTable   string
	visitsTable string
}

// New connects a pool using cfg.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("datastore.postgres.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	p, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	s, err := NewWithPool(p, cfg.JobsTable, cfg.VisitsTable)
	if err != nil {
		p.Close()
		return nil, err
	}
	return s, nil
}

// NewWithPool constructs a store from an existing pool (primarily for testing).
func NewWithPool(p pool, jobsTable, visitsTable string) (*Store, error) {
	if p == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if jobsTable == "" {
		jobsTable = "jobs"
	}
	if visitsTable == "" {
		visitsTable = "bot_visits"
	}
	for _, name := range []string{jobsTable, visitsTable} {
		if !validTableName.MatchString(name) {
			return nil, fmt.Errorf("invalid table name %q", name)
		}
	}
	return &Store{pool: p, jobsTable: jobsTable, visitsTable: visitsTable}, nil
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// FindBySlug implements store.Jobs.
func (s *Store) FindBySlug(ctx context.Context, slug string) ([]vacancy.Job, error) {
	return s.queryJobs(ctx, `SELECT row_to_json(j)::text FROM %s j WHERE j.slug = $1 LIMIT 1`, slug)
}

// All implements store.Jobs.
func (s *Store) All(ctx context.Context) ([]vacancy.Job, error) {
	return s.queryJobs(ctx, `SELECT row_to_json(j)::text FROM %s j`)
}

// Recent implements store.Jobs.
func (s *Store) Recent(ctx context.Context) ([]vacancy.Job, error) {
	return s.queryJobs(ctx, `SELECT row_to_json(j)::text FROM %s j ORDER BY j.created_at DESC`)
}

// Rows travel as JSON so the column set can grow without touching this
// package; decoding matches the REST client. queryFormat takes the jobs
// table name as its only verb.
func (s *Store) queryJobs(ctx context.Context, queryFormat string, args ...any) ([]vacancy.Job, error) {
	if s == nil || s.pool == nil {
		return nil, store.ErrNotConfigured
	}
	query := fmt.Sprintf(queryFormat, s.jobsTable)
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", s.jobsTable, err)
	}
	defer rows.Close()
	var jobs []vacancy.Job
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan %s row: %w", s.jobsTable, err)
		}
		var job vacancy.Job
		if err := json.Unmarshal([]byte(raw), &job); err != nil {
			return nil, fmt.Errorf("decode %s row: %w", s.jobsTable, err)
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", s.jobsTable, err)
	}
	return jobs, nil
}

// InsertVisits implements store.VisitWriter using multi-row INSERTs.
func (s *Store) InsertVisits(ctx context.Context, visits []store.Visit) error {
	if s == nil || s.pool == nil {
		return store.ErrNotConfigured
	}
	for start := 0; start < len(visits); start += insertBatchSize {
		end := min(start+insertBatchSize, len(visits))
		if err := s.insertChunk(ctx, visits[start:end]); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) insertChunk(ctx context.Context, visits []store.Visit) error {
	args := make([]any, 0, len(visits)*visitColumns)
	var sb strings.Builder
	fmt.Fprintf(&sb, "INSERT INTO %s (job_slug, bot_type, user_agent, ip_address, prerendered, visited_at, referrer) VALUES ", s.visitsTable)
	for i, v := range visits {
		if i > 0 {
			sb.WriteString(", ")
		}
		writeValueTuple(&sb, i)
		args = append(args,
			nullable(v.JobSlug), v.BotType, v.UserAgent, nullable(v.IPAddress),
			v.Prerendered, v.VisitedAt, nullable(v.Referrer),
		)
	}
	if _, err := s.pool.Exec(ctx, sb.String(), args...); err != nil {
		return fmt.Errorf("insert visits: %w", err)
	}
	return nil
}

func writeValueTuple(sb *strings.Builder, row int) {
	base := row * visitColumns
	sb.WriteByte('(')
	for col := 1; col <= visitColumns; col++ {
		if col > 1 {
			sb.WriteByte(',')
		}
		fmt.Fprintf(sb, "$%d", base+col)
	}
	sb.WriteByte(')')
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
