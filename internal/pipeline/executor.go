package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/rvenkatesh9/outreach/internal/cache"
	"github.com/rvenkatesh9/outreach/internal/store"
	"github.com/rvenkatesh9/outreach/pkg/models"
)

const statusCacheTTL = 30 * time.Minute

// Executor advances a job through its stages. It owns the generic stage
// contract: entering a stage (status transition, stage index, start log),
// converting any stage failure into the job's terminal ERROR state, and
// dispatching the successor. Each stage is the final handler for its own
// work; errors never propagate past a single Execute call and nothing is
// retried.
type Executor struct {
	store        store.Store
	cache        cache.Cache
	dispatcher   Dispatcher
	stages       map[int]Stage
	stageTimeout time.Duration
}

// NewExecutor wires the executor with its stages, in stage-number order.
func NewExecutor(st store.Store, ca cache.Cache, d Dispatcher, stageTimeout time.Duration, stages ...Stage) *Executor {
	byNumber := make(map[int]Stage, len(stages))
	for _, s := range stages {
		byNumber[s.Number()] = s
	}
	return &Executor{
		store:        st,
		cache:        ca,
		dispatcher:   d,
		stages:       byNumber,
		stageTimeout: stageTimeout,
	}
}

// Execute runs one stage of one job. The entry transition is validated by
// the store against the monotonic status sequence, so a duplicated dispatch
// of the same stage fails here without re-running any work.
func (e *Executor) Execute(ctx context.Context, msg Message) error {
	stage, ok := e.stages[msg.Stage]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownStage, msg.Stage)
	}

	err := e.store.UpdateJob(ctx, msg.JobID,
		store.WithStatus(stage.Status()),
		store.WithStage(stage.Number()),
		store.WithLogEntry(stage.Number(), stage.StartLog()),
	)
	if err != nil {
		// Entry refused: job missing, already terminal, or a duplicate
		// dispatch. Job state is untouched.
		return fmt.Errorf("enter stage %d: %w", msg.Stage, err)
	}
	e.mirrorStatus(ctx, msg.JobID, stage.Status())

	runCtx := ctx
	if e.stageTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, e.stageTimeout)
		defer cancel()
	}

	next, err := stage.Run(runCtx, msg)
	if err != nil {
		e.failJob(ctx, msg.JobID, err)
		return fmt.Errorf("stage %d: %w", msg.Stage, err)
	}

	if next == nil {
		e.mirrorStatus(ctx, msg.JobID, models.StatusComplete)
		return nil
	}

	// Best-effort handoff: the current stage has already succeeded, so a
	// dispatch failure is logged, not surfaced as a stage failure.
	if derr := e.dispatcher.Dispatch(ctx, *next); derr != nil {
		slog.Error("failed to dispatch next stage",
			"job_id", msg.JobID,
			"next_stage", next.Stage,
			"error", derr,
		)
	}
	return nil
}

// failJob writes the terminal ERROR state. The chain halts here: no
// downstream stage is dispatched and nothing retries.
func (e *Executor) failJob(ctx context.Context, jobID uuid.UUID, cause error) {
	err := e.store.UpdateJob(ctx, jobID,
		store.WithStatus(models.StatusError),
		store.WithErrorMessage(cause.Error()),
	)
	if err != nil {
		slog.Error("failed to record job error", "job_id", jobID, "error", err, "cause", cause)
		return
	}
	e.mirrorStatus(ctx, jobID, models.StatusError)
}

func (e *Executor) mirrorStatus(ctx context.Context, jobID uuid.UUID, status string) {
	if e.cache == nil {
		return
	}
	_ = e.cache.SetJobStatus(ctx, jobID, status, statusCacheTTL)
}
