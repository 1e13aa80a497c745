package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/contact-cli/internal/config"
	"github.com/sells-group/contact-cli/internal/ingest"
	"github.com/sells-group/contact-cli/internal/model"
	"github.com/sells-group/contact-cli/internal/store"
)

const maxUploadBytes = 32 << 20

var servePort int

// jobSubmitter starts background processing for a created job.
type jobSubmitter interface {
	Submit(ctx context.Context, job *model.Job, providers []model.Provider)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the REST API server",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		router := newAPIRouter(ctx, env.Store, env.Orchestrator, cfg.Metrics, cfg.Server.CORSOrigins)

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: router,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			srv.Shutdown(context.Background()) //nolint:errcheck
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

// newAPIRouter builds the API surface. baseCtx is the lifetime of background
// job processing, not of any one request.
func newAPIRouter(baseCtx context.Context, st store.Store, submitter jobSubmitter, metrics config.MetricsConfig, corsOrigins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: corsOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/upload", handleUpload(baseCtx, st, submitter))
		r.Get("/jobs", handleListJobs(st))
		r.Get("/jobs/{jobID}", handleGetJob(st))
		r.Get("/jobs/{jobID}/results", handleJobResults(st))
		r.Get("/jobs/{jobID}/export", handleJobExport(st))
		r.Get("/stats", handleStats(st, metrics))
	})

	return r
}

func handleUpload(baseCtx context.Context, st store.Store, submitter jobSubmitter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
			writeError(w, http.StatusBadRequest, "invalid multipart form")
			return
		}

		file, header, err := r.FormFile("file")
		if err != nil {
			writeError(w, http.StatusBadRequest, "file field is required")
			return
		}
		defer file.Close() //nolint:errcheck

		switch strings.ToLower(filepath.Ext(header.Filename)) {
		case ".xlsx", ".xls":
		default:
			writeError(w, http.StatusBadRequest, "only .xlsx and .xls files are supported")
			return
		}

		data, err := io.ReadAll(file)
		if err != nil {
			writeError(w, http.StatusBadRequest, "read upload")
			return
		}

		providers, err := ingest.ParseRosterBytes(data, header.Filename)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		job, err := st.CreateJob(r.Context(), header.Filename, providers)
		if err != nil {
			zap.L().Error("create job", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "create job")
			return
		}

		submitter.Submit(baseCtx, job, providers)
		writeJSON(w, http.StatusAccepted, job)
	}
}

func handleListJobs(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filter := store.JobFilter{
			Status: model.JobStatus(r.URL.Query().Get("status")),
			Limit:  queryInt(r, "limit", 50),
			Offset: queryInt(r, "offset", 0),
		}

		jobs, err := st.ListJobs(r.Context(), filter)
		if err != nil {
			zap.L().Error("list jobs", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "list jobs")
			return
		}
		if jobs == nil {
			jobs = []model.Job{}
		}
		writeJSON(w, http.StatusOK, jobs)
	}
}

func handleGetJob(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		job, err := st.GetJob(r.Context(), chi.URLParam(r, "jobID"))
		if err != nil {
			writeStoreError(w, err, "get job")
			return
		}
		writeJSON(w, http.StatusOK, job)
	}
}

func handleJobResults(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jobID := chi.URLParam(r, "jobID")

		records, err := st.ListRecords(r.Context(), jobID, queryInt(r, "offset", 0), queryInt(r, "limit", 100))
		if err != nil {
			writeStoreError(w, err, "list records")
			return
		}
		if records == nil {
			records = []model.ProviderRecord{}
		}
		writeJSON(w, http.StatusOK, records)
	}
}

func handleJobExport(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jobID := chi.URLParam(r, "jobID")

		records, err := collectRecords(r.Context(), st, jobID)
		if err != nil {
			writeStoreError(w, err, "collect records")
			return
		}
		if len(records) == 0 {
			writeError(w, http.StatusNotFound, "no records for job")
			return
		}

		var buf bytes.Buffer
		if err := ingest.WriteResults(&buf, records); err != nil {
			zap.L().Error("write results", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "write results")
			return
		}

		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "results_"+truncateID(jobID)+".xlsx"))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(buf.Bytes())
	}
}

func handleStats(st store.Store, metrics config.MetricsConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := st.Stats(r.Context())
		if err != nil {
			zap.L().Error("stats", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "stats")
			return
		}
		applyImpact(stats, metrics)
		writeJSON(w, http.StatusOK, stats)
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

// writeStoreError maps a not-found store error to 404, everything else to 500.
func writeStoreError(w http.ResponseWriter, err error, op string) {
	if strings.Contains(err.Error(), "not found") {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	zap.L().Error(op, zap.Error(err))
	writeError(w, http.StatusInternalServerError, op)
}

func queryInt(r *http.Request, key string, def int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return def
	}
	return n
}
