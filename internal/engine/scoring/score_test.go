// internal/engine/scoring/score_test.go
package scoring

import (
	"math"
	"testing"

	"retention-engine/internal/models"

	"github.com/stretchr/testify/assert"
)

func baseEmployee() models.EmployeeRecord {
	return models.EmployeeRecord{
		ID:               "emp-1",
		Name:             "Dana Reyes",
		RiskLevel:        models.RiskMedium,
		ChurnProbability: 0.5,
		Salary:           100000,
		TenureYears:      3,
		CurrentELTV:      200000,
	}
}

func TestScore_WorkedExample(t *testing.T) {
	// 40*0.5 + 25 + 20 + 15 = 80 criticality
	// 30 + 20 + 25 + 20 = 95 efficiency
	// 0.6*80 + 0.4*95 = 86 priority
	score := Score(baseEmployee())

	assert.InDelta(t, 80.0, score.Criticality, 1e-9)
	assert.InDelta(t, 95.0, score.Efficiency, 1e-9)
	assert.InDelta(t, 86.0, score.Priority, 1e-9)
}

func TestScore_Deterministic(t *testing.T) {
	e := baseEmployee()
	first := Score(e)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Score(e))
	}
}

func TestScore_NegativeInputsDefaultToZero(t *testing.T) {
	e := baseEmployee()
	e.ChurnProbability = -0.3
	e.Salary = -50000
	e.TenureYears = -1
	e.CurrentELTV = -10

	score := Score(e)

	// prob 0, salary 0, eltv 0, tenure band 5
	assert.InDelta(t, 5.0, score.Criticality, 1e-9)
	// medium 30 + tenure<=2 25 + sweet-spot miss 10 + base 20
	assert.InDelta(t, 85.0, score.Efficiency, 1e-9)
}

func TestScore_NaNInputsDefaultToZero(t *testing.T) {
	e := baseEmployee()
	e.ChurnProbability = math.NaN()
	e.Salary = math.NaN()

	score := Score(e)
	assert.False(t, math.IsNaN(score.Criticality))
	assert.False(t, math.IsNaN(score.Priority))
}

func TestScore_SalaryAndEltvContributionsCap(t *testing.T) {
	e := baseEmployee()
	e.Salary = 10000000
	e.CurrentELTV = 99999999

	score := Score(e)

	// Contributions saturate at 25 and 20; total stays within 0..100.
	assert.InDelta(t, 80.0, score.Criticality, 1e-9)
	assert.LessOrEqual(t, score.Criticality, 100.0)
}

func TestScore_TenureBands(t *testing.T) {
	tests := []struct {
		name        string
		tenure      float64
		criticality float64
	}{
		{"under one year", 0.5, 70},
		{"inside retention window", 3, 80},
		{"window boundary", 5, 80},
		{"long tenure", 8, 75},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := baseEmployee()
			e.TenureYears = tt.tenure
			assert.InDelta(t, tt.criticality, Score(e).Criticality, 1e-9)
		})
	}
}

func TestScore_RiskLevelBands(t *testing.T) {
	tests := []struct {
		name       string
		level      models.RiskLevel
		efficiency float64
	}{
		{"medium risk treats best", models.RiskMedium, 95},
		{"high risk", models.RiskHigh, 85},
		{"low risk", models.RiskLow, 75},
		{"unknown level contributes nothing", models.RiskLevel("weird"), 65},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := baseEmployee()
			e.RiskLevel = tt.level
			assert.InDelta(t, tt.efficiency, Score(e).Efficiency, 1e-9)
		})
	}
}

func TestScore_ProbabilitySweetSpot(t *testing.T) {
	tests := []struct {
		name  string
		prob  float64
		bonus float64
	}{
		{"center of sweet spot", 0.55, 25},
		{"lower sweet spot edge", 0.4, 25},
		{"upper sweet spot edge", 0.7, 25},
		{"outer band low", 0.35, 20},
		{"outer band high", 0.75, 20},
		{"far outside", 0.1, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := baseEmployee()
			e.ChurnProbability = tt.prob
			// medium 30 + tenure 20 + bonus + base 20
			assert.InDelta(t, 70+tt.bonus, Score(e).Efficiency, 1e-9)
		})
	}
}

func TestScore_ComponentsStayInRange(t *testing.T) {
	extremes := []models.EmployeeRecord{
		{ID: "a", ChurnProbability: 1.0, Salary: 1e9, TenureYears: 3, CurrentELTV: 1e9, RiskLevel: models.RiskMedium},
		{ID: "b"},
		{ID: "c", ChurnProbability: 0.99, RiskLevel: models.RiskHigh},
	}

	for _, e := range extremes {
		score := Score(e)
		assert.GreaterOrEqual(t, score.Criticality, 0.0)
		assert.LessOrEqual(t, score.Criticality, 100.0)
		assert.GreaterOrEqual(t, score.Efficiency, 0.0)
		assert.LessOrEqual(t, score.Efficiency, 100.0)
		assert.GreaterOrEqual(t, score.Priority, 0.0)
		assert.LessOrEqual(t, score.Priority, 100.0)
	}
}
