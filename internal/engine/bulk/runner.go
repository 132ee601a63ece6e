// internal/engine/bulk/runner.go
// Package bulk drives a cancellable, progress-reporting sequence of
// remote treatment applications. Items run strictly sequentially: the
// remote apply endpoint is treated as non-batchable and potentially
// rate-limited, and callers need granular, monotonically increasing
// progress after each item.
package bulk

import (
	"context"
	"sync"
	"time"

	"retention-engine/internal/common/errors"
	"retention-engine/internal/common/logger"
	"retention-engine/internal/common/metrics"
	"retention-engine/internal/riskapi"

	"github.com/google/uuid"
)

// State is the orchestrator lifecycle: Idle -> Running -> {Completed, Cancelled}.
type State int

const (
	StateIdle State = iota
	StateRunning
	StateCompleted
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Item is one treatment application in a run.
type Item struct {
	ID           string // candidate id
	Label        string // human-readable name for progress updates
	TreatmentID  int
	HasTreatment bool
}

// Progress is emitted before and after each item.
type Progress struct {
	Completed    int
	Total        int
	CurrentLabel string
}

// FailedItem records one item's failure in the run summary.
type FailedItem struct {
	ID      string
	Message string
}

// Summary is the complete result every run returns; single-item
// failures never surface as errors to the caller.
type Summary struct {
	SuccessCount int
	FailureCount int
	Cancelled    bool
	FailedItems  []FailedItem
}

// Run is the ephemeral orchestration state, discarded on completion.
type Run struct {
	ID             string
	Total          int
	CompletedCount int
	SuccessCount   int
	FailureCount   int
	CurrentLabel   string
	Cancelled      bool
}

// Hooks connect the runner to the owning state store. Apply performs
// the remote call; OnSuccess/OnFailure reconcile the result into
// candidate state; OnProgress surfaces granular progress.
type Hooks struct {
	Apply      func(ctx context.Context, item Item) (*riskapi.TreatmentResult, error)
	OnSuccess  func(item Item, result *riskapi.TreatmentResult)
	OnFailure  func(item Item, err error)
	OnProgress func(p Progress)
}

// Runner executes bulk runs. Only one run may be active at a time.
type Runner struct {
	mu        sync.Mutex
	state     State
	cancelled bool
	run       *Run
	logger    logger.Logger
}

func NewRunner(log logger.Logger) *Runner {
	return &Runner{
		state:  StateIdle,
		logger: log.WithFields(map[string]interface{}{"component": "bulk-runner"}),
	}
}

// State returns the current lifecycle state.
func (r *Runner) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Snapshot returns a copy of the in-flight run state, or nil when no
// run has been started.
func (r *Runner) Snapshot() *Run {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.run == nil {
		return nil
	}
	out := *r.run
	return &out
}

// Cancel requests cooperative cancellation. The flag is polled at item
// boundaries; an in-flight remote call is allowed to finish.
func (r *Runner) Cancel() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cancelled = true
	if r.run != nil {
		r.run.Cancelled = true
	}
}

func (r *Runner) isCancelled(ctx context.Context) bool {
	if ctx.Err() != nil {
		return true
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cancelled
}

// Run processes items one at a time, in order. It returns ConflictError
// if a run is already active; otherwise it always returns a complete
// summary - per-item failures are recorded, counted and skipped past,
// never re-thrown.
func (r *Runner) Run(ctx context.Context, items []Item, hooks Hooks) (*Summary, error) {
	r.mu.Lock()
	if r.state == StateRunning {
		r.mu.Unlock()
		return nil, errors.NewConflictError("bulk treatment run already in progress")
	}
	runID := uuid.NewString()
	r.state = StateRunning
	r.cancelled = false
	r.run = &Run{ID: runID, Total: len(items)}
	r.mu.Unlock()

	log := r.logger.WithFields(map[string]interface{}{"runId": runID})
	log.Info("bulk run started", map[string]interface{}{"total": len(items)})

	metrics.BulkRunsActive.Set(1)
	defer metrics.BulkRunsActive.Set(0)
	started := time.Now()

	summary := &Summary{}

	for _, item := range items {
		// Cooperative cancellation, checked before each item starts.
		if r.isCancelled(ctx) {
			summary.Cancelled = true
			break
		}

		r.emitProgress(hooks, "→ "+item.Label)

		result, err := r.applyItem(ctx, item, hooks)

		r.mu.Lock()
		if err != nil {
			summary.FailureCount++
			summary.FailedItems = append(summary.FailedItems, FailedItem{ID: item.ID, Message: err.Error()})
			r.run.FailureCount++
		} else {
			summary.SuccessCount++
			r.run.SuccessCount++
		}
		r.run.CompletedCount++
		completed := r.run.CompletedCount
		r.mu.Unlock()

		if err != nil {
			metrics.TreatmentsApplied.WithLabelValues("failure").Inc()
			log.Warn("treatment application failed", map[string]interface{}{
				"candidateId": item.ID,
				"error":       err.Error(),
			})
			if hooks.OnFailure != nil {
				hooks.OnFailure(item, err)
			}
			r.emitProgress(hooks, "⚠ "+item.Label)
		} else {
			metrics.TreatmentsApplied.WithLabelValues("success").Inc()
			log.Info("treatment applied", map[string]interface{}{
				"candidateId": item.ID,
				"completed":   completed,
			})
			if hooks.OnSuccess != nil {
				hooks.OnSuccess(item, result)
			}
			r.emitProgress(hooks, "✓ "+item.Label)
		}

		// Checked again right after the in-flight call finished, so a
		// cancel lands mid-batch without aborting that call.
		if r.isCancelled(ctx) {
			summary.Cancelled = true
			break
		}
	}

	r.mu.Lock()
	r.run.CurrentLabel = ""
	if summary.Cancelled {
		r.state = StateCancelled
		r.run.Cancelled = true
	} else {
		r.state = StateCompleted
	}
	r.mu.Unlock()

	metrics.BulkRunDuration.Observe(time.Since(started).Seconds())
	r.emitProgress(hooks, "")

	log.Info("bulk run finished", map[string]interface{}{
		"success":   summary.SuccessCount,
		"failure":   summary.FailureCount,
		"cancelled": summary.Cancelled,
	})

	return summary, nil
}

// applyItem performs one remote apply. Items without a chosen treatment
// fail locally without a remote call.
func (r *Runner) applyItem(ctx context.Context, item Item, hooks Hooks) (*riskapi.TreatmentResult, error) {
	if !item.HasTreatment {
		return nil, errors.NewValidationError("no treatment chosen for candidate " + item.ID)
	}
	return hooks.Apply(ctx, item)
}

func (r *Runner) emitProgress(hooks Hooks, label string) {
	r.mu.Lock()
	r.run.CurrentLabel = label
	p := Progress{
		Completed:    r.run.CompletedCount,
		Total:        r.run.Total,
		CurrentLabel: label,
	}
	r.mu.Unlock()

	if hooks.OnProgress != nil {
		hooks.OnProgress(p)
	}
}
