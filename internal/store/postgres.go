package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/contact-cli/internal/model"
)

// pgxPool is the subset of pgxpool.Pool the store needs. pgxmock's pool
// satisfies it for tests.
type pgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Close()
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool pgxPool
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS jobs (
	id                TEXT PRIMARY KEY,
	filename          TEXT NOT NULL,
	total_records     INTEGER NOT NULL DEFAULT 0,
	processed_records INTEGER NOT NULL DEFAULT 0,
	found_count       INTEGER NOT NULL DEFAULT 0,
	not_found_count   INTEGER NOT NULL DEFAULT 0,
	error_count       INTEGER NOT NULL DEFAULT 0,
	status            TEXT NOT NULL DEFAULT 'PENDING',
	created_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at        TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS provider_records (
	id             BIGSERIAL PRIMARY KEY,
	job_id         TEXT NOT NULL REFERENCES jobs(id),
	project_id     TEXT NOT NULL,
	first_name     TEXT NOT NULL DEFAULT '',
	middle_name    TEXT NOT NULL DEFAULT '',
	last_name      TEXT NOT NULL DEFAULT '',
	address_line_1 TEXT NOT NULL DEFAULT '',
	address_line_2 TEXT NOT NULL DEFAULT '',
	city           TEXT NOT NULL DEFAULT '',
	state_code     TEXT NOT NULL DEFAULT '',
	phone          TEXT NOT NULL DEFAULT '',
	email          TEXT NOT NULL DEFAULT '',
	full_address   TEXT NOT NULL DEFAULT '',
	source_urls    JSONB NOT NULL DEFAULT '[]',
	confidence     INTEGER NOT NULL DEFAULT 0,
	match_status   TEXT NOT NULL DEFAULT 'PROCESSING',
	reasoning      TEXT NOT NULL DEFAULT '',
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (job_id, project_id)
);

CREATE INDEX IF NOT EXISTS idx_jobs_status ON jobs(status);
CREATE INDEX IF NOT EXISTS idx_provider_records_job_id ON provider_records(job_id);
CREATE INDEX IF NOT EXISTS idx_provider_records_status ON provider_records(match_status);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) CreateJob(ctx context.Context, filename string, providers []model.Provider) (*model.Job, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: begin create job")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	_, err = tx.Exec(ctx,
		`INSERT INTO jobs (id, filename, total_records, status, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		id, filename, len(providers), string(model.JobPending), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert job")
	}

	for _, p := range providers {
		_, err = tx.Exec(ctx,
			`INSERT INTO provider_records
			 (job_id, project_id, first_name, middle_name, last_name, address_line_1, address_line_2, city, state_code, match_status, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
			id, p.ProjectID, p.FirstName, p.MiddleName, p.LastName,
			p.AddressLine1, p.AddressLine2, p.City, p.StateCode,
			string(model.MatchProcessing), now, now,
		)
		if err != nil {
			return nil, eris.Wrapf(err, "postgres: insert record %s", p.ProjectID)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, eris.Wrap(err, "postgres: commit create job")
	}

	return &model.Job{
		ID:           id,
		Filename:     filename,
		TotalRecords: len(providers),
		Status:       model.JobPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

func (s *PostgresStore) GetJob(ctx context.Context, jobID string) (*model.Job, error) {
	var j model.Job
	err := s.pool.QueryRow(ctx,
		`SELECT id, filename, total_records, processed_records, found_count, not_found_count, error_count, status, created_at, updated_at
		 FROM jobs WHERE id = $1`,
		jobID,
	).Scan(
		&j.ID, &j.Filename, &j.TotalRecords, &j.ProcessedRecords,
		&j.FoundCount, &j.NotFoundCount, &j.ErrorCount,
		&j.Status, &j.CreatedAt, &j.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, eris.New("job not found")
		}
		return nil, eris.Wrapf(err, "postgres: get job %s", jobID)
	}
	return &j, nil
}

func (s *PostgresStore) ListJobs(ctx context.Context, filter JobFilter) ([]model.Job, error) {
	query := `SELECT id, filename, total_records, processed_records, found_count, not_found_count, error_count, status, created_at, updated_at
	          FROM jobs WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list jobs")
	}
	defer rows.Close()

	var jobs []model.Job
	for rows.Next() {
		var j model.Job
		if err := rows.Scan(
			&j.ID, &j.Filename, &j.TotalRecords, &j.ProcessedRecords,
			&j.FoundCount, &j.NotFoundCount, &j.ErrorCount,
			&j.Status, &j.CreatedAt, &j.UpdatedAt,
		); err != nil {
			return nil, eris.Wrap(err, "postgres: scan job")
		}
		jobs = append(jobs, j)
	}
	return jobs, eris.Wrap(rows.Err(), "postgres: list jobs iterate")
}

func (s *PostgresStore) UpdateJobStatus(ctx context.Context, jobID string, status model.JobStatus) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE jobs SET status = $1, updated_at = $2 WHERE id = $3`,
		string(status), time.Now().UTC(), jobID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update job status %s", jobID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("job not found: %s", jobID)
	}
	return nil
}

func (s *PostgresStore) UpdateJobCounters(ctx context.Context, jobID string, processed, found, notFound, errored int) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE jobs SET processed_records = $1, found_count = $2, not_found_count = $3, error_count = $4, updated_at = $5
		 WHERE id = $6`,
		processed, found, notFound, errored, time.Now().UTC(), jobID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update job counters %s", jobID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("job not found: %s", jobID)
	}
	return nil
}

func (s *PostgresStore) UpdateRecordResult(ctx context.Context, jobID, projectID string, result *model.RecordResult) error {
	urlsJSON, err := json.Marshal(sourceURLs(result))
	if err != nil {
		return eris.Wrap(err, "postgres: marshal source urls")
	}

	var phone, email, fullAddress string
	if result.Contact != nil {
		phone = result.Contact.Phone
		email = result.Contact.Email
		fullAddress = result.Contact.FullAddress
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE provider_records
		 SET phone = $1, email = $2, full_address = $3, source_urls = $4, confidence = $5, match_status = $6, reasoning = $7, updated_at = $8
		 WHERE job_id = $9 AND project_id = $10`,
		phone, email, fullAddress, urlsJSON,
		result.Confidence, string(result.Status), result.Reasoning,
		time.Now().UTC(), jobID, projectID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update record %s", projectID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("record not found: %s", projectID)
	}
	return nil
}

func (s *PostgresStore) ListRecords(ctx context.Context, jobID string, offset, limit int) ([]model.ProviderRecord, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, job_id, project_id, first_name, middle_name, last_name, address_line_1, address_line_2, city, state_code,
		        phone, email, full_address, source_urls, confidence, match_status, reasoning, created_at, updated_at
		 FROM provider_records WHERE job_id = $1 ORDER BY id LIMIT $2 OFFSET $3`,
		jobID, limit, offset,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list records")
	}
	defer rows.Close()

	var records []model.ProviderRecord
	for rows.Next() {
		var r model.ProviderRecord
		var urlsJSON []byte
		err := rows.Scan(
			&r.ID, &r.JobID, &r.ProjectID, &r.FirstName, &r.MiddleName, &r.LastName,
			&r.AddressLine1, &r.AddressLine2, &r.City, &r.StateCode,
			&r.Phone, &r.Email, &r.FullAddress, &urlsJSON,
			&r.Confidence, &r.Status, &r.Reasoning, &r.CreatedAt, &r.UpdatedAt,
		)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan record")
		}
		if err := json.Unmarshal(urlsJSON, &r.SourceURLs); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal source urls")
		}
		records = append(records, r)
	}
	return records, eris.Wrap(rows.Err(), "postgres: list records iterate")
}

func (s *PostgresStore) Stats(ctx context.Context) (*model.Stats, error) {
	var st model.Stats

	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM jobs`).Scan(&st.TotalJobs)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: count jobs")
	}

	rows, err := s.pool.Query(ctx,
		`SELECT match_status, COUNT(*) FROM provider_records
		 WHERE match_status != 'PROCESSING' GROUP BY match_status`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: stats")
	}
	defer rows.Close()

	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, eris.Wrap(err, "postgres: scan stats")
		}
		applyStatusCount(&st, model.MatchStatus(status), count)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: stats iterate")
	}

	finalizeStats(&st)
	return &st, nil
}
