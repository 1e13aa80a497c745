package model

import "time"

// JobStatus is the lifecycle state of a batch processing job.
type JobStatus string

const (
	JobPending    JobStatus = "PENDING"
	JobProcessing JobStatus = "PROCESSING"
	JobCompleted  JobStatus = "COMPLETED"
	JobFailed     JobStatus = "FAILED"
)

// Job is one roster upload and its progress counters. PARTIAL matches count
// toward FoundCount.
type Job struct {
	ID               string    `json:"job_id"`
	Filename         string    `json:"filename"`
	TotalRecords     int       `json:"total_records"`
	ProcessedRecords int       `json:"processed_records"`
	FoundCount       int       `json:"found_count"`
	NotFoundCount    int       `json:"not_found_count"`
	ErrorCount       int       `json:"error_count"`
	Status           JobStatus `json:"status"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// ProgressPct returns processed/total as a percentage, 0 when the job is empty.
func (j Job) ProgressPct() float64 {
	if j.TotalRecords == 0 {
		return 0
	}
	return float64(j.ProcessedRecords) / float64(j.TotalRecords) * 100
}

// ProviderRecord is the persisted row for one provider: the roster input plus
// whatever the pipeline resolved for it.
type ProviderRecord struct {
	ID       int64  `json:"id"`
	JobID    string `json:"job_id"`
	Provider

	Phone       string      `json:"phone"`
	Email       string      `json:"email"`
	FullAddress string      `json:"full_address"`
	SourceURLs  []string    `json:"source_urls"`
	Confidence  int         `json:"confidence_score"`
	Status      MatchStatus `json:"match_status"`
	Reasoning   string      `json:"verification_reasoning"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Stats aggregates match outcomes across all jobs.
type Stats struct {
	TotalProcessed int     `json:"total_records_processed"`
	Found          int     `json:"found"`
	Partial        int     `json:"partial"`
	NotFound       int     `json:"not_found"`
	Errors         int     `json:"errors"`
	TotalJobs      int     `json:"total_jobs"`
	SuccessRatePct float64 `json:"success_rate_pct"`
	HoursSaved     float64 `json:"hours_saved"`
	DollarsSaved   float64 `json:"dollars_saved"`
}
