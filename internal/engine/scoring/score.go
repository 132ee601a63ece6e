// internal/engine/scoring/score.go
// Package scoring ranks employees for mass-treatment consideration.
// Score is a pure function: no I/O, deterministic, and scores carry no
// currency semantics of their own.
package scoring

import (
	"math"

	"retention-engine/internal/models"
)

const (
	criticalityWeight = 0.6
	efficiencyWeight  = 0.4

	// Constant treatability term in the efficiency blend.
	treatabilityBase = 20.0
)

// Score computes the priority score for one employee record. Negative
// or missing numeric inputs are treated as 0 before scoring; Score
// never fails.
func Score(e models.EmployeeRecord) models.PriorityScore {
	prob := nonNegative(e.ChurnProbability)
	salary := nonNegative(e.Salary)
	tenure := nonNegative(e.TenureYears)
	eltv := nonNegative(e.CurrentELTV)

	criticality := clamp(
		40*prob+
			math.Min(25, 25*salary/100000)+
			math.Min(20, 20*eltv/200000)+
			tenureBand(tenure),
		0, 100)

	efficiency := clamp(
		riskBand(e.RiskLevel)+
			tenureEfficiency(tenure)+
			probabilitySweetSpot(prob)+
			treatabilityBase,
		0, 100)

	return models.PriorityScore{
		Criticality: criticality,
		Efficiency:  efficiency,
		Priority:    criticalityWeight*criticality + efficiencyWeight*efficiency,
	}
}

// tenureBand rewards the 1-5 year window where churn is most costly.
func tenureBand(tenure float64) float64 {
	switch {
	case tenure >= 1 && tenure <= 5:
		return 15
	case tenure > 5:
		return 10
	default:
		return 5
	}
}

func riskBand(level models.RiskLevel) float64 {
	switch level {
	case models.RiskMedium:
		return 30
	case models.RiskHigh:
		return 20
	case models.RiskLow:
		return 10
	default:
		return 0
	}
}

func tenureEfficiency(tenure float64) float64 {
	switch {
	case tenure <= 2:
		return 25
	case tenure <= 5:
		return 20
	default:
		return 15
	}
}

// probabilitySweetSpot favors mid-range churn probabilities, where
// treatments move the needle most.
func probabilitySweetSpot(prob float64) float64 {
	switch {
	case prob >= 0.4 && prob <= 0.7:
		return 25
	case prob >= 0.3 && prob <= 0.8:
		return 20
	default:
		return 10
	}
}

func nonNegative(v float64) float64 {
	if v < 0 || math.IsNaN(v) {
		return 0
	}
	return v
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
