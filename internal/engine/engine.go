// internal/engine/engine.go
// Package engine owns the mass-treatment decision state: the current
// cohort, the caller's selection and the display mode. All mutation is
// serialized behind one mutex so remote-call asynchrony can never
// produce lost updates.
package engine

import (
	"context"
	"sync"

	"retention-engine/internal/common/errors"
	"retention-engine/internal/common/logger"
	"retention-engine/internal/common/metrics"
	"retention-engine/internal/engine/bulk"
	"retention-engine/internal/engine/cohort"
	"retention-engine/internal/engine/scenario"
	"retention-engine/internal/models"
	"retention-engine/internal/riskapi"
	"retention-engine/internal/source"
)

const defaultPreselect = 3

// Config carries the engine's tunable settings.
type Config struct {
	DisplayMode  models.DisplayMode
	PreselectTop int
}

// Engine is the single-writer owner of cohort and selection state.
type Engine struct {
	mu        sync.Mutex
	logger    logger.Logger
	api       riskapi.Service
	src       source.Source
	selector  *cohort.Selector
	runner    *bulk.Runner
	scenarios *scenario.Manager

	mode      models.DisplayMode
	preselect int

	candidates []*models.Candidate
	byID       map[string]*models.Candidate
	selection  []string // ordered candidate ids
}

func New(src source.Source, api riskapi.Service, cfg Config, log logger.Logger) *Engine {
	mode := cfg.DisplayMode
	if mode == "" {
		mode = models.ModeQuantification
	}
	preselect := cfg.PreselectTop
	if preselect <= 0 {
		preselect = defaultPreselect
	}

	return &Engine{
		logger:    log.WithFields(map[string]interface{}{"component": "engine"}),
		api:       api,
		src:       src,
		selector:  cohort.NewSelector(api, log),
		runner:    bulk.NewRunner(log),
		scenarios: scenario.NewManager(api, log),
		mode:      mode,
		preselect: preselect,
		byID:      make(map[string]*models.Candidate),
	}
}

// RunAnalysis loads the population, selects a fresh cohort and
// pre-selects the top candidates. The previous cohort is discarded;
// any selection ids referencing it are dropped with it. Rejected while
// a bulk run is active.
func (e *Engine) RunAnalysis(ctx context.Context) (int, error) {
	if e.runner.State() == bulk.StateRunning {
		return 0, errors.NewConflictError("cannot replace cohort during an active bulk run")
	}

	population, err := e.src.Load(ctx)
	if err != nil {
		return 0, err
	}

	candidates, err := e.selector.Select(ctx, population)
	if err != nil {
		return 0, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.candidates = candidates
	e.byID = make(map[string]*models.Candidate, len(candidates))
	for _, c := range candidates {
		e.byID[c.Employee.ID] = c
	}

	// Rank order is significant: the default selection is the head of
	// the cohort.
	e.selection = e.selection[:0]
	for i := 0; i < len(candidates) && i < e.preselect; i++ {
		e.selection = append(e.selection, candidates[i].Employee.ID)
	}

	metrics.AnalysisPasses.Inc()
	metrics.CohortSize.Set(float64(len(candidates)))

	return len(candidates), nil
}

// Cohort returns a copy of the current cohort in rank order.
func (e *Engine) Cohort() []models.Candidate {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]models.Candidate, 0, len(e.candidates))
	for _, c := range e.candidates {
		out = append(out, *c)
	}
	return out
}

// Candidate returns a copy of one cohort member.
func (e *Engine) Candidate(id string) (models.Candidate, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	c, ok := e.byID[id]
	if !ok {
		return models.Candidate{}, errors.NewNotFoundError("candidate", id)
	}
	return *c, nil
}

// Select adds a candidate id to the selection.
func (e *Engine) Select(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.byID[id]; !ok {
		return errors.NewNotFoundError("candidate", id)
	}
	for _, existing := range e.selection {
		if existing == id {
			return nil
		}
	}
	e.selection = append(e.selection, id)
	return nil
}

// Deselect removes a candidate id from the selection; unknown ids are
// ignored.
func (e *Engine) Deselect(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.removeFromSelection(id)
}

// SelectAll selects the whole cohort in rank order.
func (e *Engine) SelectAll() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.selection = e.selection[:0]
	for _, c := range e.candidates {
		e.selection = append(e.selection, c.Employee.ID)
	}
}

// ClearSelection empties the selection.
func (e *Engine) ClearSelection() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.selection = e.selection[:0]
}

// Selection returns the selected candidate ids in iteration order.
func (e *Engine) Selection() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.selection...)
}

// removeFromSelection must be called with the mutex held.
func (e *Engine) removeFromSelection(id string) {
	for i, existing := range e.selection {
		if existing == id {
			e.selection = append(e.selection[:i], e.selection[i+1:]...)
			return
		}
	}
}

// ApplyToSelection runs one treatment application per selected
// candidate, strictly sequentially, in selection order. The treatment
// is the candidate's top suggestion unless overridden. Successful items
// are deselected; failed items stay selected for a manual re-run.
// Returns ConflictError when a run is already active.
func (e *Engine) ApplyToSelection(ctx context.Context, overrides map[string]int, onProgress func(bulk.Progress)) (*bulk.Summary, error) {
	e.mu.Lock()
	items := make([]bulk.Item, 0, len(e.selection))
	for _, id := range e.selection {
		c, ok := e.byID[id]
		if !ok {
			// Stale id; dropped silently.
			continue
		}
		item := bulk.Item{ID: id, Label: c.Employee.Label()}
		if tid, ok := overrides[id]; ok {
			item.TreatmentID = tid
			item.HasTreatment = true
		} else if c.Top != nil {
			item.TreatmentID = c.Top.ID
			item.HasTreatment = true
		}
		items = append(items, item)
	}
	e.mu.Unlock()

	hooks := bulk.Hooks{
		Apply:      e.applyOne,
		OnSuccess:  e.reconcileSuccess,
		OnFailure:  e.reconcileFailure,
		OnProgress: onProgress,
	}

	return e.runner.Run(ctx, items, hooks)
}

// CancelRun requests cooperative cancellation of the active bulk run.
func (e *Engine) CancelRun() {
	e.runner.Cancel()
}

// RunState returns the bulk orchestrator's lifecycle state.
func (e *Engine) RunState() bulk.State {
	return e.runner.State()
}

// RunProgress returns a copy of the in-flight run state, if any.
func (e *Engine) RunProgress() *bulk.Run {
	return e.runner.Snapshot()
}

// Scenarios exposes the what-if comparison manager.
func (e *Engine) Scenarios() *scenario.Manager {
	return e.scenarios
}

// AddScenarioFor creates a scenario from a cohort candidate's current
// risk profile.
func (e *Engine) AddScenarioFor(candidateID string) (*scenario.Scenario, error) {
	e.mu.Lock()
	c, ok := e.byID[candidateID]
	if !ok {
		e.mu.Unlock()
		return nil, errors.NewNotFoundError("candidate", candidateID)
	}
	employeeID := c.Employee.ID
	detail := c.Detail.Clone()
	e.mu.Unlock()

	return e.scenarios.Add(employeeID, detail)
}

// SetDisplayMode switches the surfaced gain figures. Scoring and
// orchestration are unaffected.
func (e *Engine) SetDisplayMode(mode models.DisplayMode) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.mode = mode
}

// applyOne performs the remote apply for one item. Re-applying the same
// treatment is safe: the call re-simulates and the result overwrites
// the previous one.
func (e *Engine) applyOne(ctx context.Context, item bulk.Item) (*riskapi.TreatmentResult, error) {
	e.mu.Lock()
	if c, ok := e.byID[item.ID]; ok {
		c.State.IsApplying = true
	}
	e.mu.Unlock()

	return e.api.SimulateTreatment(ctx, item.ID, item.TreatmentID)
}

func (e *Engine) reconcileSuccess(item bulk.Item, result *riskapi.TreatmentResult) {
	e.mu.Lock()
	defer e.mu.Unlock()

	c, ok := e.byID[item.ID]
	if !ok {
		return
	}
	c.State.IsApplying = false
	c.State.LastResult = result
	c.State.LastError = ""

	// Applied items are deselected to prevent an accidental double-apply.
	e.removeFromSelection(item.ID)
}

func (e *Engine) reconcileFailure(item bulk.Item, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	c, ok := e.byID[item.ID]
	if !ok {
		return
	}
	c.State.IsApplying = false
	c.State.LastError = err.Error()
	// The id stays selected so the caller can retry.
}
