// Package orchestrator runs the asynchronous ingestion pipeline: a bounded
// worker pool consumes tasks, drives the five stages in order, persists
// progress on every transition and applies the per-class retry policy.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"

	"github.com/notegraph/notegraph/internal/config"
	"github.com/notegraph/notegraph/internal/graph"
	"github.com/notegraph/notegraph/internal/metrics"
	"github.com/notegraph/notegraph/internal/model"
	"github.com/notegraph/notegraph/internal/pipeline"
	"github.com/notegraph/notegraph/internal/store"
	"github.com/notegraph/notegraph/internal/taskerr"
)

// totalStages is the number of client-visible pipeline stages.
const totalStages = 5

type Orchestrator struct {
	cfg      config.OrchestratorConfig
	pool     *ants.Pool
	tasks    *store.TaskStore
	pipeline *pipeline.Pipeline
	graph    *graph.Adapter
	metrics  *metrics.Metrics
	logger   *slog.Logger

	queue        chan *model.Task
	dispatchDone chan struct{}

	mu        sync.Mutex
	closed    bool
	cancelled map[string]bool // taskID -> cancel requested
}

func New(cfg config.OrchestratorConfig, tasks *store.TaskStore, p *pipeline.Pipeline, g *graph.Adapter, m *metrics.Metrics, logger *slog.Logger) (*Orchestrator, error) {
	if logger == nil {
		logger = slog.Default()
	}
	pool, err := ants.NewPool(cfg.Workers)
	if err != nil {
		return nil, err
	}
	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = 64
	}
	o := &Orchestrator{
		cfg:          cfg,
		pool:         pool,
		tasks:        tasks,
		pipeline:     p,
		graph:        g,
		metrics:      m,
		logger:       logger,
		queue:        make(chan *model.Task, queueSize),
		dispatchDone: make(chan struct{}),
		cancelled:    make(map[string]bool),
	}
	go o.dispatch()
	return o, nil
}

// Release stops accepting work, drains the queue and tears down the pool.
// In-flight tasks run to completion.
func (o *Orchestrator) Release() {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	o.closed = true
	close(o.queue)
	o.mu.Unlock()

	<-o.dispatchDone
	o.pool.Release()
}

// Submit validates the request, claims the document's in-flight slot and
// enqueues the pipeline run. A document with a non-terminal task is
// rejected with a conflict error.
func (o *Orchestrator) Submit(ctx context.Context, documentID, moduleID, requesterID string) (string, error) {
	if documentID == "" || moduleID == "" {
		return "", taskerr.Validation("documentId and moduleId are required")
	}

	now := time.Now().UTC()
	task := &model.Task{
		ID:          uuid.New().String(),
		DocumentID:  documentID,
		ModuleID:    moduleID,
		RequesterID: requesterID,
		Class:       model.ClassDocument,
		State:       model.TaskPending,
		Progress:    model.Progress{Total: totalStages, Message: "queued"},
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := o.tasks.Create(task); err != nil {
		return "", err
	}

	doc := model.Document{
		ID:       documentID,
		ModuleID: moduleID,
		Status:   model.DocumentPending,
	}
	if err := o.graph.UpsertDocument(ctx, doc); err != nil {
		o.failTask(task, err)
		return "", err
	}

	o.metrics.TasksSubmitted.Inc()
	if err := o.enqueue(task); err != nil {
		o.failTask(task, err)
		return "", err
	}
	return task.ID, nil
}

// enqueue hands the task to the dispatcher without blocking. Submit must
// return as soon as the task is persisted; waiting for a free worker happens
// in dispatch, never on the caller.
func (o *Orchestrator) enqueue(task *model.Task) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return taskerr.Transient(errors.New("orchestrator is shutting down"))
	}
	select {
	case o.queue <- task:
		return nil
	default:
		return taskerr.Transient(fmt.Errorf("ingest queue is full (%d tasks waiting)", cap(o.queue)))
	}
}

// dispatch is the only goroutine that blocks waiting for pool capacity. It
// drains the queue in submission order.
func (o *Orchestrator) dispatch() {
	defer close(o.dispatchDone)
	for task := range o.queue {
		t := task
		err := o.pool.Submit(func() {
			o.metrics.TasksInFlight.Inc()
			defer o.metrics.TasksInFlight.Dec()
			o.process(t)
		})
		if err != nil {
			o.failTask(t, taskerr.Transient(fmt.Errorf("dispatch task: %w", err)))
		}
	}
}

// Recover re-enqueues tasks that were in flight when the process died.
// Redelivery is safe because the Store stage is idempotent.
func (o *Orchestrator) Recover() error {
	unfinished, err := o.tasks.ListUnfinished()
	if err != nil {
		return err
	}
	for _, task := range unfinished {
		task.Attempts++
		task.State = model.TaskPending
		task.Progress.Message = "redelivered after restart"
		if err := o.tasks.Update(task); err != nil {
			return err
		}
		o.logger.Info("redelivering task", "task", task.ID, "document", task.DocumentID)
		if err := o.enqueue(task); err != nil {
			return err
		}
	}
	return nil
}

// GetStatus returns the persisted task record. Expired tasks surface as not
// found.
func (o *Orchestrator) GetStatus(taskID string) (*model.Task, error) {
	return o.tasks.Get(taskID)
}

// Cancel requests cooperative cancellation. The in-flight stage completes;
// the task transitions to REVOKED at the next stage boundary. Nothing
// already written to the graph is rolled back.
func (o *Orchestrator) Cancel(taskID string) error {
	task, err := o.tasks.Get(taskID)
	if err != nil {
		return err
	}
	if task.State.Terminal() {
		return taskerr.Validation("task %s already finished in state %s", taskID, task.State)
	}
	o.mu.Lock()
	o.cancelled[taskID] = true
	o.mu.Unlock()
	return nil
}

func (o *Orchestrator) isCancelled(taskID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.cancelled[taskID]
}

func (o *Orchestrator) clearCancel(taskID string) {
	o.mu.Lock()
	delete(o.cancelled, taskID)
	o.mu.Unlock()
}

// process runs the whole pipeline for one task. It is the only goroutine
// mutating the task, so progress updates are strictly ordered.
func (o *Orchestrator) process(task *model.Task) {
	defer o.clearCancel(task.ID)

	// The hard limit forcibly terminates the task; stages receive a
	// slightly earlier soft deadline so they can return cleanly first.
	hardCtx, cancel := context.WithTimeout(context.Background(), o.cfg.HardTimeLimit)
	defer cancel()

	var parsed model.ParsedText
	var chunked model.ChunkSet
	var embedded model.EmbeddedChunkSet
	var extracted model.ExtractedGraph
	var stored model.StoreResult

	stages := []struct {
		state   model.TaskState
		stage   string
		message string
		run     func(ctx context.Context) error
	}{
		{model.TaskParsing, "parse", "parsing document", func(ctx context.Context) error {
			var err error
			parsed, err = o.pipeline.Parse.Run(ctx, task.DocumentID, task.ModuleID)
			return err
		}},
		{model.TaskChunking, "chunk", "chunking text", func(ctx context.Context) error {
			var err error
			chunked, err = o.pipeline.Chunker.Run(parsed)
			return err
		}},
		{model.TaskEmbedding, "embed", "embedding chunks", func(ctx context.Context) error {
			var err error
			embedded, err = o.pipeline.Embedder.Run(ctx, chunked)
			return err
		}},
		{model.TaskExtracting, "extract", "extracting entities", func(ctx context.Context) error {
			var err error
			extracted, err = o.pipeline.Extractor.Run(ctx, embedded)
			return err
		}},
		{model.TaskStoring, "store", "persisting graph", func(ctx context.Context) error {
			var err error
			stored, err = o.pipeline.Store(ctx, extracted)
			return err
		}},
	}

	if err := o.graph.SetDocumentStatus(hardCtx, task.DocumentID, model.DocumentProcessing, ""); err != nil {
		o.failTask(task, err)
		return
	}

	for i, s := range stages {
		if o.isCancelled(task.ID) {
			o.revokeTask(hardCtx, task)
			return
		}
		if err := o.transition(task, s.state, i+1, s.message); err != nil {
			o.failTask(task, err)
			return
		}
		if err := o.runStage(hardCtx, task, s.stage, s.run); err != nil {
			o.logger.Error("stage failed permanently",
				"task", task.ID, "stage", s.stage, "kind", taskerr.KindOf(err), "err", err)
			o.failDocument(task, err)
			return
		}
	}

	task.Result = &model.TaskResult{
		DocumentID:    stored.DocumentID,
		Chunks:        stored.Chunks,
		ParentChunks:  stored.ParentChunks,
		Entities:      stored.Entities,
		Relationships: stored.Relationships,
	}
	if err := o.transition(task, model.TaskCompleted, totalStages, "completed"); err != nil {
		o.failTask(task, err)
		return
	}
	if err := o.graph.SetDocumentStatus(hardCtx, task.DocumentID, model.DocumentCompleted, ""); err != nil {
		o.logger.Error("failed to mark document completed", "document", task.DocumentID, "err", err)
	}
	o.metrics.TasksCompleted.WithLabelValues(string(model.TaskCompleted)).Inc()
	o.logger.Info("task completed",
		"task", task.ID, "document", task.DocumentID,
		"chunks", stored.Chunks, "entities", stored.Entities)
}

// runStage executes one stage with the per-class retry budget. Validation
// errors fail immediately; transient and soft-timeout errors back off
// exponentially until the attempt cap.
func (o *Orchestrator) runStage(hardCtx context.Context, task *model.Task, stage string, run func(ctx context.Context) error) error {
	maxAttempts := o.maxAttempts(task.Class)
	delay := o.cfg.RetryBaseDelay
	if delay <= 0 {
		delay = 500 * time.Millisecond
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := hardCtx.Err(); err != nil {
			return taskerr.Timeout(fmt.Errorf("hard time limit exceeded in %s stage: %w", stage, err))
		}

		softCtx, cancel := o.softContext(hardCtx)
		err := run(softCtx)
		cancel()

		if err == nil {
			if task.Retrying {
				task.Retrying = false
				if uerr := o.tasks.Update(task); uerr != nil {
					return uerr
				}
			}
			return nil
		}

		if errors.Is(err, context.DeadlineExceeded) {
			if hardCtx.Err() != nil {
				return taskerr.Timeout(fmt.Errorf("hard time limit exceeded in %s stage", stage))
			}
			err = taskerr.Timeout(fmt.Errorf("soft time limit exceeded in %s stage", stage))
		}
		if !taskerr.Retryable(err) {
			return err
		}

		lastErr = err
		task.Attempts++
		task.Retrying = true
		task.Progress.Message = fmt.Sprintf("retrying %s (attempt %d/%d)", stage, attempt+1, maxAttempts)
		if uerr := o.tasks.Update(task); uerr != nil {
			return uerr
		}
		o.metrics.StageRetries.WithLabelValues(stage).Inc()
		o.logger.Warn("stage failed, will retry",
			"task", task.ID, "stage", stage, "attempt", attempt, "maxAttempts", maxAttempts, "err", err)

		if attempt == maxAttempts {
			break
		}
		timer := time.NewTimer(delay)
		select {
		case <-hardCtx.Done():
			timer.Stop()
			return taskerr.Timeout(fmt.Errorf("hard time limit exceeded while backing off in %s stage", stage))
		case <-timer.C:
		}
		delay *= 2
	}
	return lastErr
}

func (o *Orchestrator) softContext(hardCtx context.Context) (context.Context, context.CancelFunc) {
	if o.cfg.SoftTimeLimit <= 0 {
		return context.WithCancel(hardCtx)
	}
	return context.WithTimeout(hardCtx, o.cfg.SoftTimeLimit)
}

func (o *Orchestrator) maxAttempts(class model.TaskClass) int {
	switch class {
	case model.ClassBatch:
		if o.cfg.BatchMaxAttempts > 0 {
			return o.cfg.BatchMaxAttempts
		}
		return 3
	default:
		if o.cfg.DocumentMaxAttempts > 0 {
			return o.cfg.DocumentMaxAttempts
		}
		return 5
	}
}

// transition moves the task forward one state and persists the progress
// record. Backward transitions are a bug and reported as such.
func (o *Orchestrator) transition(task *model.Task, next model.TaskState, current int, message string) error {
	if !task.State.CanTransition(next) {
		return fmt.Errorf("illegal task transition %s -> %s", task.State, next)
	}
	task.State = next
	task.Retrying = false
	task.Progress = model.Progress{
		Current: current,
		Total:   totalStages,
		Percent: current * 100 / totalStages,
		Message: message,
	}
	task.UpdatedAt = time.Now().UTC()
	return o.tasks.Update(task)
}

func (o *Orchestrator) failTask(task *model.Task, err error) {
	task.State = model.TaskFailed
	task.Retrying = false
	task.ErrorKind = string(taskerr.KindOf(err))
	task.ErrorMsg = err.Error()
	task.UpdatedAt = time.Now().UTC()
	if uerr := o.tasks.Update(task); uerr != nil {
		o.logger.Error("failed to persist task failure", "task", task.ID, "err", uerr)
	}
	o.metrics.TasksCompleted.WithLabelValues(string(model.TaskFailed)).Inc()
}

// failDocument records the failure on both the task and the document node.
func (o *Orchestrator) failDocument(task *model.Task, err error) {
	o.failTask(task, err)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if derr := o.graph.SetDocumentStatus(ctx, task.DocumentID, model.DocumentFailed, err.Error()); derr != nil {
		o.logger.Error("failed to mark document failed", "document", task.DocumentID, "err", derr)
	}
}

func (o *Orchestrator) revokeTask(ctx context.Context, task *model.Task) {
	task.State = model.TaskRevoked
	task.Retrying = false
	task.Progress.Message = "cancelled"
	task.UpdatedAt = time.Now().UTC()
	if err := o.tasks.Update(task); err != nil {
		o.logger.Error("failed to persist task revocation", "task", task.ID, "err", err)
	}
	if err := o.graph.SetDocumentStatus(ctx, task.DocumentID, model.DocumentFailed, "processing cancelled"); err != nil {
		o.logger.Error("failed to mark document cancelled", "document", task.DocumentID, "err", err)
	}
	o.metrics.TasksCompleted.WithLabelValues(string(model.TaskRevoked)).Inc()
	o.logger.Info("task revoked", "task", task.ID, "document", task.DocumentID)
}
