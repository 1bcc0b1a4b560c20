/******************************************************************************
 * Copyright (c) 2025-2026 Tenebris Technologies Inc.                         *
 * Please see the LICENSE file for details                                    *
 ******************************************************************************/

// Package runner executes pipeline documents and tracks run state.
package runner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"github.com/PivotLLM/Conduit/config"
	"github.com/PivotLLM/Conduit/expression"
	"github.com/PivotLLM/Conduit/global"
	"github.com/PivotLLM/Conduit/logging"
	"github.com/PivotLLM/Conduit/pipeline"
	"github.com/PivotLLM/Conduit/registry"
)

// Runner executes pipelines against the tool registry
type Runner struct {
	config      *config.Config
	logger      *logging.Logger
	registry    *registry.Registry
	evaluator   *expression.Evaluator
	interp      *pipeline.Interpreter
	rateLimiter *RateLimiter
	sem         chan struct{} // bounds concurrent runs

	mu           sync.Mutex
	runs         map[string]*RunRecord
	order        []string // run IDs oldest first, for history trimming
	historyLimit int

	activeRuns sync.WaitGroup
}

// RunRequest describes a pipeline execution request
type RunRequest struct {
	Source       []byte                 // inline pipeline document (mutually exclusive with File)
	File         string                 // pipeline file name relative to the pipelines directory
	Seed         map[string]interface{} // namespace -> value, seeded into the run context
	ResultExpr   string                 // optional expression evaluated against the final context
	Wait         bool                   // block until the run completes
	FromListener bool                   // event-triggered runs are rate limited
}

// RunRecord tracks a single pipeline run
type RunRecord struct {
	ID         string      `json:"run_id"`
	Status     string      `json:"status"`
	Source     string      `json:"source"` // file name or "inline"
	StartedAt  time.Time   `json:"started_at"`
	FinishedAt *time.Time  `json:"finished_at,omitempty"`
	Outputs    interface{} `json:"outputs,omitempty"` // final context bindings
	Value      interface{} `json:"value,omitempty"`   // result expression value
	Failure    *Failure    `json:"failure,omitempty"`
}

// Failure describes why a run failed
type Failure struct {
	Kind    string `json:"kind"`
	Step    string `json:"step,omitempty"` // index path, e.g. "1.then.0"
	Tool    string `json:"tool,omitempty"`
	Message string `json:"message"`
}

// New creates a new Runner
func New(cfg *config.Config, logger *logging.Logger, reg *registry.Registry, ev *expression.Evaluator) *Runner {
	return &Runner{
		config:       cfg,
		logger:       logger,
		registry:     reg,
		evaluator:    ev,
		interp:       pipeline.NewInterpreter(reg, ev, logger),
		rateLimiter:  NewRateLimiter(cfg.RateLimitRequests(), cfg.RateLimitPeriod()),
		sem:          make(chan struct{}, cfg.MaxConcurrent()),
		runs:         make(map[string]*RunRecord),
		historyLimit: cfg.RunHistoryLimit(),
	}
}

// Execute runs a pipeline. With Wait set it blocks until the run finishes and
// returns the completed record; otherwise it returns immediately with the
// record in running status.
func (r *Runner) Execute(ctx context.Context, req *RunRequest) (*RunRecord, error) {
	data := req.Source
	source := "inline"
	if req.File != "" {
		if len(data) > 0 {
			return nil, fmt.Errorf("both inline pipeline and pipeline file provided")
		}
		var err error
		data, err = r.loadPipelineFile(req.File)
		if err != nil {
			return nil, err
		}
		source = req.File
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("no pipeline provided")
	}

	// Parse before recording the run so malformed documents are rejected
	// synchronously, regardless of wait mode.
	p, err := pipeline.Parse(data)
	if err != nil {
		return nil, err
	}

	record := &RunRecord{
		ID:        uuid.New().String(),
		Status:    global.RunStatusRunning,
		Source:    source,
		StartedAt: time.Now(),
	}
	r.addRecord(record)

	r.logger.Infof("Run %s: started (source=%s, steps=%d, wait=%v)", record.ID, source, len(p.Steps), req.Wait)

	if req.Wait {
		r.activeRuns.Add(1)
		r.executeRun(ctx, record, p, req)
		r.activeRuns.Done()
		return r.snapshot(record.ID)
	}

	r.activeRuns.Add(1)
	go func() {
		defer r.activeRuns.Done()
		// Detach from the caller's context: the MCP request returns
		// immediately but the run continues.
		r.executeRun(context.Background(), record, p, req)
	}()

	return r.snapshot(record.ID)
}

// executeRun performs the actual pipeline execution and updates the record
func (r *Runner) executeRun(ctx context.Context, record *RunRecord, p *pipeline.Pipeline, req *RunRequest) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Errorf("Run %s: panic: %v", record.ID, rec)
			r.finishRun(record.ID, nil, nil, &Failure{
				Kind:    pipeline.KindToolInvocation,
				Message: fmt.Sprintf("panic during run: %v", rec),
			})
		}
	}()

	if req.FromListener {
		if waited := r.rateLimiter.Wait(); waited > 0 {
			r.logger.Infof("Run %s: rate limited, waited %v", record.ID, waited)
		}
	}

	r.sem <- struct{}{}
	defer func() { <-r.sem }()

	rc := r.buildContext(req.Seed)

	if err := r.interp.Run(ctx, p, rc); err != nil {
		failure := failureFromError(err)
		r.logger.Errorf("Run %s: failed at step %s (%s): %s", record.ID, failure.Step, failure.Kind, failure.Message)
		r.finishRun(record.ID, rc, nil, failure)
		return
	}

	bindings := rc.Bindings()

	var value interface{}
	if req.ResultExpr != "" {
		v, err := r.evaluator.Resolve(req.ResultExpr, bindings)
		if err != nil {
			failure := failureFromError(err)
			failure.Message = fmt.Sprintf("result expression: %s", failure.Message)
			r.logger.Errorf("Run %s: %s", record.ID, failure.Message)
			r.finishRun(record.ID, rc, nil, failure)
			return
		}
		value = v
	}

	r.logger.Infof("Run %s: completed (%d context entries)", record.ID, rc.Len())
	r.finishRun(record.ID, rc, value, nil)
}

// buildContext creates a run context seeded with the env namespace and any
// request-supplied namespaces.
func (r *Runner) buildContext(seed map[string]interface{}) *pipeline.Context {
	rc := pipeline.NewContext()

	env := make(map[string]interface{})
	for _, kv := range os.Environ() {
		if idx := strings.Index(kv, "="); idx > 0 {
			env[kv[:idx]] = kv[idx+1:]
		}
	}
	rc.Set(global.NamespaceEnv, env)

	for name, value := range seed {
		rc.Set(name, value)
	}

	return rc
}

// loadPipelineFile reads a pipeline document from the pipelines directory,
// holding a shared lock so concurrent writers don't hand us a partial file.
func (r *Runner) loadPipelineFile(name string) ([]byte, error) {
	path, err := global.ResolveWithinDir(r.config.PipelinesDir(), name)
	if err != nil {
		return nil, fmt.Errorf("invalid pipeline file %q: %w", name, err)
	}

	// Check existence first: acquiring a flock creates the file
	if !global.FileExists(path) {
		return nil, fmt.Errorf("pipeline file not found: %s", name)
	}

	lock := flock.New(path)
	if err := lock.RLock(); err != nil {
		return nil, fmt.Errorf("failed to lock pipeline file %q: %w", name, err)
	}
	defer func() { _ = lock.Unlock() }()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("pipeline file not found: %s", name)
		}
		return nil, fmt.Errorf("failed to read pipeline file %q: %w", name, err)
	}
	return data, nil
}

// failureFromError converts an interpreter error into a Failure record
func failureFromError(err error) *Failure {
	f := &Failure{
		Kind:    pipeline.Classify(err),
		Message: err.Error(),
	}
	var stepErr *pipeline.StepError
	if errors.As(err, &stepErr) {
		f.Step = stepErr.Path
		f.Tool = stepErr.Tool
	}
	return f
}

// addRecord registers a new run and trims history beyond the limit
func (r *Runner) addRecord(record *RunRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.runs[record.ID] = record
	r.order = append(r.order, record.ID)

	// Evict oldest finished runs past the history limit. Running entries are
	// never evicted.
	for len(r.order) > r.historyLimit {
		evicted := false
		for i, id := range r.order {
			if rec, ok := r.runs[id]; ok && rec.Status != global.RunStatusRunning {
				delete(r.runs, id)
				r.order = append(r.order[:i], r.order[i+1:]...)
				evicted = true
				break
			}
		}
		if !evicted {
			break
		}
	}
}

// finishRun marks a run as completed or failed
func (r *Runner) finishRun(runID string, rc *pipeline.Context, value interface{}, failure *Failure) {
	r.mu.Lock()
	defer r.mu.Unlock()

	record, ok := r.runs[runID]
	if !ok {
		return
	}

	now := time.Now()
	record.FinishedAt = &now
	if rc != nil {
		record.Outputs = rc.Bindings()
	}
	record.Value = value
	record.Failure = failure
	if failure != nil {
		record.Status = global.RunStatusFailed
	} else {
		record.Status = global.RunStatusCompleted
	}
}

// snapshot returns a copy of a run record
func (r *Runner) snapshot(runID string) (*RunRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	record, ok := r.runs[runID]
	if !ok {
		return nil, fmt.Errorf("run not found: %s", runID)
	}
	cp := *record
	return &cp, nil
}

// Status returns the current record for a run
func (r *Runner) Status(runID string) (*RunRecord, error) {
	return r.snapshot(runID)
}

// Result returns the record for a finished run.
// Returns an error if the run is still in progress.
func (r *Runner) Result(runID string) (*RunRecord, error) {
	record, err := r.snapshot(runID)
	if err != nil {
		return nil, err
	}
	if record.Status == global.RunStatusRunning {
		return nil, fmt.Errorf("run %s is still running", runID)
	}
	return record, nil
}

// IsRunning returns true if any runs are currently in progress
func (r *Runner) IsRunning() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, record := range r.runs {
		if record.Status == global.RunStatusRunning {
			return true
		}
	}
	return false
}

// Wait blocks until all active runs complete. Used for graceful shutdown.
func (r *Runner) Wait() {
	r.activeRuns.Wait()
}
