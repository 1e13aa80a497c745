package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/contact-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS jobs (
	id                TEXT PRIMARY KEY,
	filename          TEXT NOT NULL,
	total_records     INTEGER NOT NULL DEFAULT 0,
	processed_records INTEGER NOT NULL DEFAULT 0,
	found_count       INTEGER NOT NULL DEFAULT 0,
	not_found_count   INTEGER NOT NULL DEFAULT 0,
	error_count       INTEGER NOT NULL DEFAULT 0,
	status            TEXT NOT NULL DEFAULT 'PENDING',
	created_at        DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at        DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS provider_records (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
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
	source_urls    TEXT NOT NULL DEFAULT '[]',
	confidence     INTEGER NOT NULL DEFAULT 0,
	match_status   TEXT NOT NULL DEFAULT 'PROCESSING',
	reasoning      TEXT NOT NULL DEFAULT '',
	created_at     DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at     DATETIME NOT NULL DEFAULT (datetime('now')),
	UNIQUE (job_id, project_id)
);

CREATE INDEX IF NOT EXISTS idx_jobs_status ON jobs(status);
CREATE INDEX IF NOT EXISTS idx_provider_records_job_id ON provider_records(job_id);
CREATE INDEX IF NOT EXISTS idx_provider_records_status ON provider_records(match_status);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateJob(ctx context.Context, filename string, providers []model.Provider) (*model.Job, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: begin create job")
	}
	defer tx.Rollback() //nolint:errcheck

	_, err = tx.ExecContext(ctx,
		`INSERT INTO jobs (id, filename, total_records, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		id, filename, len(providers), string(model.JobPending), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert job")
	}

	for _, p := range providers {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO provider_records
			 (job_id, project_id, first_name, middle_name, last_name, address_line_1, address_line_2, city, state_code, match_status, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			id, p.ProjectID, p.FirstName, p.MiddleName, p.LastName,
			p.AddressLine1, p.AddressLine2, p.City, p.StateCode,
			string(model.MatchProcessing), now, now,
		)
		if err != nil {
			return nil, eris.Wrapf(err, "sqlite: insert record %s", p.ProjectID)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, eris.Wrap(err, "sqlite: commit create job")
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

func (s *SQLiteStore) GetJob(ctx context.Context, jobID string) (*model.Job, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, filename, total_records, processed_records, found_count, not_found_count, error_count, status, created_at, updated_at
		 FROM jobs WHERE id = ?`,
		jobID,
	)
	return scanJob(row)
}

func (s *SQLiteStore) ListJobs(ctx context.Context, filter JobFilter) ([]model.Job, error) {
	query := `SELECT id, filename, total_records, processed_records, found_count, not_found_count, error_count, status, created_at, updated_at
	          FROM jobs WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list jobs")
	}
	defer rows.Close()

	var jobs []model.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *j)
	}
	return jobs, eris.Wrap(rows.Err(), "sqlite: list jobs iterate")
}

func (s *SQLiteStore) UpdateJobStatus(ctx context.Context, jobID string, status model.JobStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), time.Now().UTC(), jobID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update job status %s", jobID)
	}
	return checkRowsAffected(res, "job", jobID)
}

func (s *SQLiteStore) UpdateJobCounters(ctx context.Context, jobID string, processed, found, notFound, errored int) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET processed_records = ?, found_count = ?, not_found_count = ?, error_count = ?, updated_at = ?
		 WHERE id = ?`,
		processed, found, notFound, errored, time.Now().UTC(), jobID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update job counters %s", jobID)
	}
	return checkRowsAffected(res, "job", jobID)
}

func (s *SQLiteStore) UpdateRecordResult(ctx context.Context, jobID, projectID string, result *model.RecordResult) error {
	urlsJSON, err := json.Marshal(sourceURLs(result))
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal source urls")
	}

	var phone, email, fullAddress string
	if result.Contact != nil {
		phone = result.Contact.Phone
		email = result.Contact.Email
		fullAddress = result.Contact.FullAddress
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE provider_records
		 SET phone = ?, email = ?, full_address = ?, source_urls = ?, confidence = ?, match_status = ?, reasoning = ?, updated_at = ?
		 WHERE job_id = ? AND project_id = ?`,
		phone, email, fullAddress, string(urlsJSON),
		result.Confidence, string(result.Status), result.Reasoning,
		time.Now().UTC(), jobID, projectID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update record %s", projectID)
	}
	return checkRowsAffected(res, "record", projectID)
}

func (s *SQLiteStore) ListRecords(ctx context.Context, jobID string, offset, limit int) ([]model.ProviderRecord, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, job_id, project_id, first_name, middle_name, last_name, address_line_1, address_line_2, city, state_code,
		        phone, email, full_address, source_urls, confidence, match_status, reasoning, created_at, updated_at
		 FROM provider_records WHERE job_id = ? ORDER BY id LIMIT ? OFFSET ?`,
		jobID, limit, offset,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list records")
	}
	defer rows.Close()

	var records []model.ProviderRecord
	for rows.Next() {
		var r model.ProviderRecord
		var urlsJSON string
		err := rows.Scan(
			&r.ID, &r.JobID, &r.ProjectID, &r.FirstName, &r.MiddleName, &r.LastName,
			&r.AddressLine1, &r.AddressLine2, &r.City, &r.StateCode,
			&r.Phone, &r.Email, &r.FullAddress, &urlsJSON,
			&r.Confidence, &r.Status, &r.Reasoning, &r.CreatedAt, &r.UpdatedAt,
		)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan record")
		}
		if err := json.Unmarshal([]byte(urlsJSON), &r.SourceURLs); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal source urls")
		}
		records = append(records, r)
	}
	return records, eris.Wrap(rows.Err(), "sqlite: list records iterate")
}

func (s *SQLiteStore) Stats(ctx context.Context) (*model.Stats, error) {
	var st model.Stats

	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM jobs`).Scan(&st.TotalJobs)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: count jobs")
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT match_status, COUNT(*) FROM provider_records
		 WHERE match_status != 'PROCESSING' GROUP BY match_status`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: stats")
	}
	defer rows.Close()

	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan stats")
		}
		applyStatusCount(&st, model.MatchStatus(status), count)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: stats iterate")
	}

	finalizeStats(&st)
	return &st, nil
}

// helpers

func sourceURLs(result *model.RecordResult) []string {
	if result.SourceURLs == nil {
		return []string{}
	}
	return result.SourceURLs
}

func applyStatusCount(st *model.Stats, status model.MatchStatus, count int) {
	st.TotalProcessed += count
	switch status {
	case model.MatchFound:
		st.Found += count
	case model.MatchPartial:
		st.Partial += count
	case model.MatchNotFound:
		st.NotFound += count
	case model.MatchError:
		st.Errors += count
	}
}

func finalizeStats(st *model.Stats) {
	if st.TotalProcessed > 0 {
		st.SuccessRatePct = float64(st.Found) / float64(st.TotalProcessed) * 100
	}
}

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanJob(row scannable) (*model.Job, error) {
	var j model.Job
	err := row.Scan(
		&j.ID, &j.Filename, &j.TotalRecords, &j.ProcessedRecords,
		&j.FoundCount, &j.NotFoundCount, &j.ErrorCount,
		&j.Status, &j.CreatedAt, &j.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, eris.New("job not found")
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan job")
	}
	return &j, nil
}
