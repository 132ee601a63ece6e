// internal/engine/scenario/manager.go
// Package scenario maintains the bounded what-if comparison set: each
// scenario holds an immutable baseline snapshot of one employee's risk
// profile next to a mutable treatment result.
package scenario

import (
	"context"
	"fmt"
	"sync"

	"retention-engine/internal/common/errors"
	"retention-engine/internal/common/logger"
	"retention-engine/internal/riskapi"

	"github.com/google/uuid"
)

// MaxScenarios bounds the live comparison set.
const MaxScenarios = 5

// curveMonths is the length of the month-indexed retention curve.
const curveMonths = 12

// colorPalette is the fixed cyclic palette assigned to new scenarios.
var colorPalette = [6]string{
	"#2563eb", // blue
	"#16a34a", // green
	"#d97706", // amber
	"#dc2626", // red
	"#7c3aed", // violet
	"#0d9488", // teal
}

// Scenario is one saved what-if comparison. Baseline is a deep,
// independent copy taken at creation time: it is the pre-treatment
// reference curve and must never alias the live detail object.
type Scenario struct {
	ID                string
	DisplayName       string
	ColorToken        string
	SourceEmployeeID  string
	ChosenTreatmentID *int
	Baseline          *riskapi.EmployeeDetail
	LastResult        *riskapi.TreatmentResult
}

// CurvePoint is one month of a scenario's retention curve.
type CurvePoint struct {
	Month    int
	Survival float64
}

// Manager owns the comparison set. All operations serialize on one
// mutex; treatment changes follow snapshot -> apply -> rollback-on-failure.
type Manager struct {
	mu        sync.Mutex
	api       riskapi.Service
	logger    logger.Logger
	scenarios []*Scenario
	nextColor int
}

func NewManager(api riskapi.Service, log logger.Logger) *Manager {
	return &Manager{
		api:    api,
		logger: log.WithFields(map[string]interface{}{"component": "scenario-manager"}),
	}
}

// Add creates a scenario from an employee's current detail. It is
// rejected once MaxScenarios are live. The baseline is deep-copied and
// the default name is deduplicated against existing names.
func (m *Manager) Add(sourceEmployeeID string, baseline *riskapi.EmployeeDetail) (*Scenario, error) {
	if baseline == nil {
		return nil, errors.NewValidationError("baseline detail is required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.scenarios) >= MaxScenarios {
		return nil, errors.NewScenarioLimitError(MaxScenarios)
	}

	sc := &Scenario{
		ID:               uuid.NewString(),
		DisplayName:      m.uniqueName(fmt.Sprintf("Scenario %d", len(m.scenarios)+1)),
		ColorToken:       colorPalette[m.nextColor%len(colorPalette)],
		SourceEmployeeID: sourceEmployeeID,
		Baseline:         baseline.Clone(),
	}
	m.nextColor++
	m.scenarios = append(m.scenarios, sc)

	m.logger.Info("scenario added", map[string]interface{}{
		"scenarioId": sc.ID,
		"employeeId": sourceEmployeeID,
		"name":       sc.DisplayName,
	})

	return m.snapshot(sc), nil
}

// SetTreatment changes a scenario's chosen treatment. A nil treatment
// reverts to baseline without a remote call. A non-nil treatment runs
// the remote simulation; on failure the scenario is restored to its
// exact pre-call state.
func (m *Manager) SetTreatment(ctx context.Context, scenarioID string, treatmentID *int) error {
	m.mu.Lock()
	sc := m.find(scenarioID)
	if sc == nil {
		m.mu.Unlock()
		return errors.NewNotFoundError("scenario", scenarioID)
	}

	if treatmentID == nil {
		sc.ChosenTreatmentID = nil
		sc.LastResult = nil
		m.mu.Unlock()
		return nil
	}

	// Snapshot previous sub-state, then apply optimistically.
	prevTreatment := sc.ChosenTreatmentID
	prevResult := sc.LastResult
	chosen := *treatmentID
	sc.ChosenTreatmentID = &chosen
	employeeID := sc.SourceEmployeeID
	m.mu.Unlock()

	result, err := m.api.SimulateTreatment(ctx, employeeID, chosen)

	m.mu.Lock()
	defer m.mu.Unlock()

	// The scenario may have been removed while the call was in flight.
	sc = m.find(scenarioID)
	if sc == nil {
		return errors.NewNotFoundError("scenario", scenarioID)
	}

	if err != nil {
		sc.ChosenTreatmentID = prevTreatment
		sc.LastResult = prevResult
		m.logger.Warn("treatment simulation failed, rolled back", map[string]interface{}{
			"scenarioId":  scenarioID,
			"treatmentId": chosen,
			"error":       err.Error(),
		})
		return err
	}

	sc.LastResult = result
	return nil
}

// Remove deletes a scenario unconditionally.
func (m *Manager) Remove(scenarioID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, sc := range m.scenarios {
		if sc.ID == scenarioID {
			m.scenarios = append(m.scenarios[:i], m.scenarios[i+1:]...)
			return nil
		}
	}
	return errors.NewNotFoundError("scenario", scenarioID)
}

// List returns copies of the live scenarios in creation order.
func (m *Manager) List() []*Scenario {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]*Scenario, 0, len(m.scenarios))
	for _, sc := range m.scenarios {
		out = append(out, m.snapshot(sc))
	}
	return out
}

// Count returns the number of live scenarios.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.scenarios)
}

// RetentionCurve derives the 12-point month-indexed comparison series.
// Without a treatment result it reads the baseline's survival map - the
// no-treatment reference - and with one it reads the post-treatment map.
func (m *Manager) RetentionCurve(scenarioID string) ([]CurvePoint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sc := m.find(scenarioID)
	if sc == nil {
		return nil, errors.NewNotFoundError("scenario", scenarioID)
	}

	probs := sc.Baseline.SurvivalProbabilities
	if sc.LastResult != nil && sc.LastResult.NewSurvivalProbabilities != nil {
		probs = sc.LastResult.NewSurvivalProbabilities
	}

	curve := make([]CurvePoint, curveMonths)
	last := 1.0
	for month := 1; month <= curveMonths; month++ {
		if v, ok := probs[monthKey(month)]; ok {
			last = v
		}
		curve[month-1] = CurvePoint{Month: month, Survival: last}
	}
	return curve, nil
}

func monthKey(month int) string {
	return fmt.Sprintf("month_%d", month)
}

// find must be called with the mutex held.
func (m *Manager) find(scenarioID string) *Scenario {
	for _, sc := range m.scenarios {
		if sc.ID == scenarioID {
			return sc
		}
	}
	return nil
}

// uniqueName must be called with the mutex held.
func (m *Manager) uniqueName(base string) string {
	name := base
	for n := 2; m.nameTaken(name); n++ {
		name = fmt.Sprintf("%s (%d)", base, n)
	}
	return name
}

func (m *Manager) nameTaken(name string) bool {
	for _, sc := range m.scenarios {
		if sc.DisplayName == name {
			return true
		}
	}
	return false
}

// snapshot must be called with the mutex held.
func (m *Manager) snapshot(sc *Scenario) *Scenario {
	out := &Scenario{
		ID:               sc.ID,
		DisplayName:      sc.DisplayName,
		ColorToken:       sc.ColorToken,
		SourceEmployeeID: sc.SourceEmployeeID,
		Baseline:         sc.Baseline.Clone(),
		LastResult:       sc.LastResult.Clone(),
	}
	if sc.ChosenTreatmentID != nil {
		chosen := *sc.ChosenTreatmentID
		out.ChosenTreatmentID = &chosen
	}
	return out
}
