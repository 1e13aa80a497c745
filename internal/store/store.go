// Package store persists jobs and provider records.
package store

import (
	"context"

	"github.com/sells-group/contact-cli/internal/model"
)

// JobFilter specifies criteria for listing jobs.
type JobFilter struct {
	Status model.JobStatus `json:"status,omitempty"`
	Limit  int             `json:"limit,omitempty"`
	Offset int             `json:"offset,omitempty"`
}

// Store defines the persistence interface for the resolution pipeline.
type Store interface {
	// Jobs
	CreateJob(ctx context.Context, filename string, providers []model.Provider) (*model.Job, error)
	GetJob(ctx context.Context, jobID string) (*model.Job, error)
	ListJobs(ctx context.Context, filter JobFilter) ([]model.Job, error)
	UpdateJobStatus(ctx context.Context, jobID string, status model.JobStatus) error
	UpdateJobCounters(ctx context.Context, jobID string, processed, found, notFound, errored int) error

	// Records
	UpdateRecordResult(ctx context.Context, jobID, projectID string, result *model.RecordResult) error
	ListRecords(ctx context.Context, jobID string, offset, limit int) ([]model.ProviderRecord, error)

	// Aggregates
	Stats(ctx context.Context) (*model.Stats, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
