// internal/engine/cohort/selector_test.go
package cohort

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"retention-engine/internal/common/errors"
	"retention-engine/internal/common/logger"
	"retention-engine/internal/models"
	"retention-engine/internal/riskapi"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

type fakeRiskAPI struct {
	mu          sync.Mutex
	detailCalls []string
	failDetail  map[string]error
	failSuggest map[string]error
	suggestions map[string][]riskapi.TreatmentSuggestion
}

func newFakeRiskAPI() *fakeRiskAPI {
	return &fakeRiskAPI{
		failDetail:  make(map[string]error),
		failSuggest: make(map[string]error),
		suggestions: make(map[string][]riskapi.TreatmentSuggestion),
	}
}

func (f *fakeRiskAPI) GetEmployeeDetail(ctx context.Context, employeeID string) (*riskapi.EmployeeDetail, error) {
	f.mu.Lock()
	f.detailCalls = append(f.detailCalls, employeeID)
	f.mu.Unlock()

	if err, ok := f.failDetail[employeeID]; ok {
		return nil, err
	}
	return &riskapi.EmployeeDetail{
		EmployeeID:            employeeID,
		ChurnProbability:      0.5,
		Eltv:                  150000,
		SurvivalProbabilities: map[string]float64{"month_1": 0.95},
	}, nil
}

func (f *fakeRiskAPI) GetTreatmentSuggestions(ctx context.Context, employeeID string) ([]riskapi.TreatmentSuggestion, error) {
	if err, ok := f.failSuggest[employeeID]; ok {
		return nil, err
	}
	if s, ok := f.suggestions[employeeID]; ok {
		return s, nil
	}
	return []riskapi.TreatmentSuggestion{
		{ID: 1, Name: "Salary adjustment", ProjectedROI: 1.8, ProjectedPostEltv: 180000},
		{ID: 2, Name: "Role change", ProjectedROI: 2.4, ProjectedPostEltv: 195000},
	}, nil
}

func (f *fakeRiskAPI) SimulateTreatment(ctx context.Context, employeeID string, treatmentID int) (*riskapi.TreatmentResult, error) {
	return &riskapi.TreatmentResult{}, nil
}

// highPriorityEmployee scores 86 and always clears the threshold.
func highPriorityEmployee(id string) models.EmployeeRecord {
	return models.EmployeeRecord{
		ID:               id,
		Name:             "Employee " + id,
		RiskLevel:        models.RiskMedium,
		ChurnProbability: 0.5,
		Salary:           100000,
		TenureYears:      3,
		CurrentELTV:      200000,
	}
}

// lowPriorityEmployee scores well under the threshold.
func lowPriorityEmployee(id string) models.EmployeeRecord {
	return models.EmployeeRecord{
		ID:               id,
		RiskLevel:        models.RiskLevel("none"),
		ChurnProbability: 0.01,
		Salary:           0,
		TenureYears:      0,
		CurrentELTV:      0,
	}
}

func manyEligible(n int) []models.EmployeeRecord {
	out := make([]models.EmployeeRecord, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, highPriorityEmployee(fmt.Sprintf("emp-%03d", i)))
	}
	return out
}

// ==========================
// Core Functionality Tests
// ==========================

func TestSelect_TopTenPercentOfLargePool(t *testing.T) {
	api := newFakeRiskAPI()
	s := NewSelector(api, logger.NewTestLogger(t))

	candidates, err := s.Select(context.Background(), manyEligible(60))
	require.NoError(t, err)

	// floor(0.10 * 60) = 6
	assert.Len(t, candidates, 6)
}

func TestSelect_MinimumBoundOfFive(t *testing.T) {
	api := newFakeRiskAPI()
	s := NewSelector(api, logger.NewTestLogger(t))

	candidates, err := s.Select(context.Background(), manyEligible(20))
	require.NoError(t, err)

	// floor(0.10 * 20) = 2, floored up to 5
	assert.Len(t, candidates, 5)
}

func TestSelect_NeverExceedsEligibleCount(t *testing.T) {
	api := newFakeRiskAPI()
	s := NewSelector(api, logger.NewTestLogger(t))

	candidates, err := s.Select(context.Background(), manyEligible(3))
	require.NoError(t, err)

	assert.Len(t, candidates, 3)
}

func TestSelect_FiltersInvalidAndLowPriority(t *testing.T) {
	api := newFakeRiskAPI()
	s := NewSelector(api, logger.NewTestLogger(t))

	population := []models.EmployeeRecord{
		highPriorityEmployee("keep-1"),
		lowPriorityEmployee("low-1"),
		{ID: "", ChurnProbability: 0.9, Salary: 50000}, // missing id
		func() models.EmployeeRecord {
			e := highPriorityEmployee("neg-salary")
			e.Salary = -1
			return e
		}(),
		highPriorityEmployee("keep-2"),
	}

	candidates, err := s.Select(context.Background(), population)
	require.NoError(t, err)

	ids := make([]string, 0, len(candidates))
	for _, c := range candidates {
		ids = append(ids, c.Employee.ID)
	}
	assert.ElementsMatch(t, []string{"keep-1", "keep-2"}, ids)
}

func TestSelect_RankOrdering(t *testing.T) {
	api := newFakeRiskAPI()
	s := NewSelector(api, logger.NewTestLogger(t))

	// Same priority, different churn probability: higher churn ranks first.
	// b's extra churn criticality (+4) is offset by a lower salary term (-4).
	a := highPriorityEmployee("emp-a")
	b := highPriorityEmployee("emp-b")
	b.ChurnProbability = 0.6
	b.Salary = 84000

	// Identical records: id ascending breaks the tie.
	c := highPriorityEmployee("emp-c")
	d := highPriorityEmployee("emp-d")

	candidates, err := s.Select(context.Background(), []models.EmployeeRecord{d, a, c, b})
	require.NoError(t, err)
	require.Len(t, candidates, 4)

	assert.Equal(t, "emp-b", candidates[0].Employee.ID)
	assert.Equal(t, "emp-a", candidates[1].Employee.ID)
	assert.Equal(t, "emp-c", candidates[2].Employee.ID)
	assert.Equal(t, "emp-d", candidates[3].Employee.ID)
}

func TestSelect_SingleLookupFailureDropsOnlyThatEmployee(t *testing.T) {
	api := newFakeRiskAPI()
	api.failDetail["emp-001"] = errors.NewUpstreamError("risk-api", fmt.Errorf("boom"))
	s := NewSelector(api, logger.NewTestLogger(t))

	candidates, err := s.Select(context.Background(), manyEligible(20))
	require.NoError(t, err)

	assert.Len(t, candidates, 4)
	for _, c := range candidates {
		assert.NotEqual(t, "emp-001", c.Employee.ID)
	}
}

func TestSelect_SuggestionFailureDropsEmployee(t *testing.T) {
	api := newFakeRiskAPI()
	api.failSuggest["emp-002"] = errors.NewUpstreamTimeoutError("risk-api")
	s := NewSelector(api, logger.NewTestLogger(t))

	candidates, err := s.Select(context.Background(), manyEligible(20))
	require.NoError(t, err)
	assert.Len(t, candidates, 4)
}

func TestSelect_TopTreatmentIsHighestROI(t *testing.T) {
	api := newFakeRiskAPI()
	s := NewSelector(api, logger.NewTestLogger(t))

	candidates, err := s.Select(context.Background(), []models.EmployeeRecord{highPriorityEmployee("emp-1")})
	require.NoError(t, err)
	require.Len(t, candidates, 1)

	require.NotNil(t, candidates[0].Top)
	assert.Equal(t, 2, candidates[0].Top.ID)
	assert.InDelta(t, 2.4, candidates[0].Top.ProjectedROI, 1e-9)
}

func TestSelect_NoSuggestionsLeavesTopNil(t *testing.T) {
	api := newFakeRiskAPI()
	api.suggestions["emp-1"] = []riskapi.TreatmentSuggestion{}
	s := NewSelector(api, logger.NewTestLogger(t))

	candidates, err := s.Select(context.Background(), []models.EmployeeRecord{highPriorityEmployee("emp-1")})
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Nil(t, candidates[0].Top)
}

func TestSelect_CancelledContextStopsMaterialization(t *testing.T) {
	api := newFakeRiskAPI()
	s := NewSelector(api, logger.NewTestLogger(t))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	candidates, err := s.Select(ctx, manyEligible(60))
	assert.Error(t, err)
	assert.Empty(t, candidates)
}

func TestSelect_EmptyPopulation(t *testing.T) {
	api := newFakeRiskAPI()
	s := NewSelector(api, logger.NewTestLogger(t))

	candidates, err := s.Select(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, candidates)
	assert.Empty(t, api.detailCalls)
}
