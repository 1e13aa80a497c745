package main

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/contact-cli/internal/config"
	"github.com/sells-group/contact-cli/internal/model"
	"github.com/sells-group/contact-cli/internal/store"
)

// fakeAPIStore backs router tests without a database.
type fakeAPIStore struct {
	store.Store

	jobs    map[string]*model.Job
	records map[string][]model.ProviderRecord
	stats   *model.Stats

	listFilter store.JobFilter
}

func newFakeAPIStore() *fakeAPIStore {
	return &fakeAPIStore{
		jobs:    map[string]*model.Job{},
		records: map[string][]model.ProviderRecord{},
		stats:   &model.Stats{},
	}
}

func (s *fakeAPIStore) CreateJob(_ context.Context, filename string, providers []model.Provider) (*model.Job, error) {
	job := &model.Job{
		ID:           "job-new",
		Filename:     filename,
		TotalRecords: len(providers),
		Status:       model.JobPending,
	}
	s.jobs[job.ID] = job
	return job, nil
}

func (s *fakeAPIStore) GetJob(_ context.Context, jobID string) (*model.Job, error) {
	job, ok := s.jobs[jobID]
	if !ok {
		return nil, eris.New("job not found")
	}
	return job, nil
}

func (s *fakeAPIStore) ListJobs(_ context.Context, filter store.JobFilter) ([]model.Job, error) {
	s.listFilter = filter
	out := make([]model.Job, 0, len(s.jobs))
	for _, j := range s.jobs {
		out = append(out, *j)
	}
	return out, nil
}

func (s *fakeAPIStore) ListRecords(_ context.Context, jobID string, offset, limit int) ([]model.ProviderRecord, error) {
	recs := s.records[jobID]
	if offset >= len(recs) {
		return nil, nil
	}
	end := offset + limit
	if end > len(recs) {
		end = len(recs)
	}
	return recs[offset:end], nil
}

func (s *fakeAPIStore) Stats(_ context.Context) (*model.Stats, error) {
	return s.stats, nil
}

type fakeSubmitter struct {
	jobs      []*model.Job
	providers [][]model.Provider
}

func (f *fakeSubmitter) Submit(_ context.Context, job *model.Job, providers []model.Provider) {
	f.jobs = append(f.jobs, job)
	f.providers = append(f.providers, providers)
}

func testRouter(st store.Store, submitter jobSubmitter) http.Handler {
	metrics := config.MetricsConfig{ManualMinutesPerRecord: 15, HourlyRateUSD: 50}
	return newAPIRouter(context.Background(), st, submitter, metrics, []string{"*"})
}

func rosterBytes(t *testing.T, rows [][]string) []byte {
	t.Helper()
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Roster")
	require.NoError(t, err)
	for _, rowData := range rows {
		row := sheet.AddRow()
		for _, cellData := range rowData {
			row.AddCell().SetString(cellData)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))
	return buf.Bytes()
}

func multipartUpload(t *testing.T, filename string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = fw.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &body, mw.FormDataContentType()
}

func TestServeHealth(t *testing.T) {
	router := testRouter(newFakeAPIStore(), &fakeSubmitter{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"ok"`)
}

func TestServeUpload(t *testing.T) {
	st := newFakeAPIStore()
	submitter := &fakeSubmitter{}
	router := testRouter(st, submitter)

	data := rosterBytes(t, [][]string{
		{"PROJECT_ID", "FIRST_NAME", "LAST_NAME", "CITY", "STATE_CODE"},
		{"P-1", "Jane", "Smith", "Springfield", "IL"},
		{"P-2", "John", "Doe", "Chicago", "IL"},
	})
	body, contentType := multipartUpload(t, "roster.xlsx", data)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/upload", body)
	req.Header.Set("Content-Type", contentType)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusAccepted, rr.Code)

	var job model.Job
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &job))
	assert.Equal(t, "roster.xlsx", job.Filename)
	assert.Equal(t, 2, job.TotalRecords)

	require.Len(t, submitter.jobs, 1)
	assert.Equal(t, job.ID, submitter.jobs[0].ID)
	assert.Len(t, submitter.providers[0], 2)
}

func TestServeUploadMissingFile(t *testing.T) {
	router := testRouter(newFakeAPIStore(), &fakeSubmitter{})

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "file field is required")
}

func TestServeUploadWrongExtension(t *testing.T) {
	st := newFakeAPIStore()
	submitter := &fakeSubmitter{}
	router := testRouter(st, submitter)

	body, contentType := multipartUpload(t, "roster.csv", []byte("PROJECT_ID\nP-1"))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/upload", body)
	req.Header.Set("Content-Type", contentType)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "only .xlsx and .xls files are supported")
	assert.Empty(t, submitter.jobs)
}

func TestServeUploadBadRoster(t *testing.T) {
	st := newFakeAPIStore()
	submitter := &fakeSubmitter{}
	router := testRouter(st, submitter)

	body, contentType := multipartUpload(t, "roster.xlsx", []byte("not an xlsx file"))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/upload", body)
	req.Header.Set("Content-Type", contentType)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Empty(t, submitter.jobs)
}

func TestServeGetJob(t *testing.T) {
	st := newFakeAPIStore()
	st.jobs["job-1"] = &model.Job{ID: "job-1", Status: model.JobCompleted}
	router := testRouter(st, &fakeSubmitter{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/jobs/job-1", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var job model.Job
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &job))
	assert.Equal(t, model.JobCompleted, job.Status)
}

func TestServeGetJobNotFound(t *testing.T) {
	router := testRouter(newFakeAPIStore(), &fakeSubmitter{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/jobs/missing", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestServeListJobsFilter(t *testing.T) {
	st := newFakeAPIStore()
	router := testRouter(st, &fakeSubmitter{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/jobs?status=COMPLETED&limit=10&offset=5", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, model.JobCompleted, st.listFilter.Status)
	assert.Equal(t, 10, st.listFilter.Limit)
	assert.Equal(t, 5, st.listFilter.Offset)

	// Empty result is an empty array, not null.
	assert.Equal(t, "[]\n", rr.Body.String())
}

func TestServeJobResults(t *testing.T) {
	st := newFakeAPIStore()
	st.records["job-1"] = []model.ProviderRecord{
		{JobID: "job-1", Provider: model.Provider{ProjectID: "P-1"}, Status: model.MatchFound, Confidence: 85},
		{JobID: "job-1", Provider: model.Provider{ProjectID: "P-2"}, Status: model.MatchNotFound},
	}
	router := testRouter(st, &fakeSubmitter{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/jobs/job-1/results?limit=1", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var records []model.ProviderRecord
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &records))
	require.Len(t, records, 1)
	assert.Equal(t, "P-1", records[0].ProjectID)
}

func TestServeJobExport(t *testing.T) {
	st := newFakeAPIStore()
	st.records["job-1"] = []model.ProviderRecord{
		{JobID: "job-1", Provider: model.Provider{ProjectID: "P-1"}, Status: model.MatchFound, Confidence: 85},
	}
	router := testRouter(st, &fakeSubmitter{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/jobs/job-1/export", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Type"), "spreadsheetml")
	assert.Contains(t, rr.Header().Get("Content-Disposition"), "attachment")
	assert.NotEmpty(t, rr.Body.Bytes())
}

func TestServeJobExportNoRecords(t *testing.T) {
	router := testRouter(newFakeAPIStore(), &fakeSubmitter{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/jobs/empty/export", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestServeStats(t *testing.T) {
	st := newFakeAPIStore()
	st.stats = &model.Stats{
		TotalProcessed: 100,
		Found:          60,
		Partial:        10,
		NotFound:       25,
		Errors:         5,
		TotalJobs:      4,
		SuccessRatePct: 60,
	}
	router := testRouter(st, &fakeSubmitter{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/stats", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var stats model.Stats
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &stats))

	// 100 records at 15 min each is 25 hours, at $50/h is $1250.
	assert.InDelta(t, 25.0, stats.HoursSaved, 0.001)
	assert.InDelta(t, 1250.0, stats.DollarsSaved, 0.001)
}
