package pipeline

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/sells-group/contact-cli/internal/config"
	"github.com/sells-group/contact-cli/internal/model"
	"github.com/sells-group/contact-cli/internal/store"
)

// RecordResolver resolves a single provider record.
type RecordResolver interface {
	Resolve(ctx context.Context, p model.Provider) (*model.RecordResult, error)
}

// Orchestrator drives whole jobs through the resolver, one record at a time,
// persisting results and counters as it goes.
type Orchestrator struct {
	resolver RecordResolver
	store    store.Store
	cfg      config.PipelineConfig
}

// NewOrchestrator creates an Orchestrator.
func NewOrchestrator(resolver RecordResolver, st store.Store, cfg config.PipelineConfig) *Orchestrator {
	return &Orchestrator{resolver: resolver, store: st, cfg: cfg}
}

// Submit starts job processing in the background and returns immediately.
func (o *Orchestrator) Submit(ctx context.Context, job *model.Job, providers []model.Provider) {
	go func() {
		if err := o.ProcessJob(ctx, job, providers); err != nil {
			zap.L().Error("job processing aborted", zap.String("job_id", job.ID), zap.Error(err))
		}
	}()
}

// ProcessJob runs every provider in the job sequentially. A record failure
// is recorded as ERROR and processing continues; a store failure marks the
// job FAILED and stops.
func (o *Orchestrator) ProcessJob(ctx context.Context, job *model.Job, providers []model.Provider) error {
	log := zap.L().With(zap.String("job_id", job.ID))

	if err := o.store.UpdateJobStatus(ctx, job.ID, model.JobProcessing); err != nil {
		return err
	}

	processed, found, notFound, errored := 0, 0, 0, 0

	for i, p := range providers {
		// Pace records like a human operator, except the first.
		if i > 0 {
			if err := pacedSleep(ctx, o.cfg.RecordDelayMinSecs, o.cfg.RecordDelayMaxSecs); err != nil {
				return o.failJob(ctx, job.ID, err)
			}
		}

		result := o.processRecord(ctx, p, log)
		if ctx.Err() != nil {
			return o.failJob(ctx, job.ID, ctx.Err())
		}

		processed++
		switch result.Status {
		case model.MatchFound, model.MatchPartial:
			found++
		case model.MatchError:
			errored++
		default:
			notFound++
		}

		if err := o.store.UpdateRecordResult(ctx, job.ID, p.ProjectID, result); err != nil {
			return o.failJob(ctx, job.ID, err)
		}
		if err := o.store.UpdateJobCounters(ctx, job.ID, processed, found, notFound, errored); err != nil {
			return o.failJob(ctx, job.ID, err)
		}

		log.Info("record persisted",
			zap.String("project_id", p.ProjectID),
			zap.String("status", string(result.Status)),
			zap.Int("processed", processed),
			zap.Int("total", len(providers)),
		)
	}

	if err := o.store.UpdateJobStatus(ctx, job.ID, model.JobCompleted); err != nil {
		return err
	}
	log.Info("job complete",
		zap.Int("processed", processed),
		zap.Int("found", found),
		zap.Int("not_found", notFound),
		zap.Int("errors", errored),
	)
	return nil
}

// processRecord isolates one record: resolver errors and panics become an
// ERROR result instead of taking the job down.
func (o *Orchestrator) processRecord(ctx context.Context, p model.Provider, log *zap.Logger) (result *model.RecordResult) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("record panicked", zap.String("project_id", p.ProjectID), zap.Any("panic", r))
			result = errorResult(fmt.Sprint(r))
		}
	}()

	res, err := o.resolver.Resolve(ctx, p)
	if err != nil {
		if ctx.Err() == nil {
			log.Error("record failed", zap.String("project_id", p.ProjectID), zap.Error(err))
		}
		return errorResult(err.Error())
	}
	return res
}

func (o *Orchestrator) failJob(ctx context.Context, jobID string, cause error) error {
	// Best effort; the original failure is what callers need to see.
	if err := o.store.UpdateJobStatus(context.WithoutCancel(ctx), jobID, model.JobFailed); err != nil {
		zap.L().Error("mark job failed", zap.String("job_id", jobID), zap.Error(err))
	}
	return cause
}

// errorResult carries the failure message through as the record's visible
// reasoning.
func errorResult(reason string) *model.RecordResult {
	return &model.RecordResult{
		Status:    model.MatchError,
		Reasoning: reason,
	}
}
