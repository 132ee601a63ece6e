// internal/engine/aggregates.go
package engine

import "retention-engine/internal/models"

// Aggregates summarizes the financial footprint of the current cohort.
// Every field is recomputed from candidate state on each call; nothing
// is accumulated incrementally, so the figures can never drift from
// the cohort they describe.
type Aggregates struct {
	TotalPotentialGain    float64 `json:"totalPotentialGain"`
	SelectedPotentialGain float64 `json:"selectedPotentialGain"`
	AppliedCount          int     `json:"appliedCount"`
	RealizedGain          float64 `json:"realizedGain"`
}

// Metrics recomputes cohort aggregates under the current display mode.
func (e *Engine) Metrics() Aggregates {
	e.mu.Lock()
	defer e.mu.Unlock()

	selected := make(map[string]bool, len(e.selection))
	for _, id := range e.selection {
		selected[id] = true
	}

	var agg Aggregates
	for _, c := range e.candidates {
		gain := potentialGain(c, e.mode)
		if gain < 0 {
			gain = 0
		}
		agg.TotalPotentialGain += gain
		if selected[c.Employee.ID] {
			agg.SelectedPotentialGain += gain
		}
		if c.State.LastResult != nil {
			agg.AppliedCount++
			agg.RealizedGain += realizedGain(c, e.mode)
		}
	}
	return agg
}

// potentialGain is the projected benefit of a candidate's top
// treatment. Quantification mode reports the ELTV delta; performance
// mode reports churn probability reduction in points.
func potentialGain(c *models.Candidate, mode models.DisplayMode) float64 {
	if c.Top == nil || c.Detail == nil {
		return 0
	}
	if mode == models.ModePerformance {
		return -c.Top.ProjectedChurnProbChange * 100
	}
	return c.Top.ProjectedPostEltv - c.Detail.Eltv
}

// realizedGain reads confirmed results only; projections never count.
func realizedGain(c *models.Candidate, mode models.DisplayMode) float64 {
	r := c.State.LastResult
	if r == nil {
		return 0
	}
	if mode == models.ModePerformance {
		return (r.PreChurnProbability - r.PostChurnProbability) * 100
	}
	return r.EltvPostTreatment - r.EltvPreTreatment
}
