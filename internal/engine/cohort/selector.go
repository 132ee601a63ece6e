// internal/engine/cohort/selector.go
// Package cohort bounds and filters the ranked employee set for one
// analysis pass.
package cohort

import (
	"context"
	"math"
	"sort"

	"retention-engine/internal/common/logger"
	"retention-engine/internal/engine/scoring"
	"retention-engine/internal/models"
	"retention-engine/internal/riskapi"
)

const (
	// Employees at or below this priority are not worth analyzing.
	priorityThreshold = 30.0

	// The cohort is the top 10% of eligible employees, floored at 5.
	topFraction = 0.10
	minCohort   = 5
)

// Selector materializes the bounded top-priority cohort from a raw
// employee population.
type Selector struct {
	api    riskapi.Service
	logger logger.Logger
}

func NewSelector(api riskapi.Service, log logger.Logger) *Selector {
	return &Selector{
		api:    api,
		logger: log.WithFields(map[string]interface{}{"component": "cohort-selector"}),
	}
}

type scored struct {
	employee models.EmployeeRecord
	score    models.PriorityScore
}

// Select filters, scores, ranks and truncates the population, then
// materializes one Candidate per retained employee via the remote
// detail and recommender lookups. A single lookup failure drops that
// employee and never aborts the pass. The returned slice is in rank
// order, which is significant for default-selection behavior.
func (s *Selector) Select(ctx context.Context, employees []models.EmployeeRecord) ([]*models.Candidate, error) {
	eligible := make([]scored, 0, len(employees))
	for _, e := range employees {
		if e.ID == "" || e.Salary < 0 {
			continue
		}
		sc := scoring.Score(e)
		if sc.Priority <= priorityThreshold {
			continue
		}
		eligible = append(eligible, scored{employee: e, score: sc})
	}

	sort.Slice(eligible, func(i, j int) bool {
		a, b := eligible[i], eligible[j]
		if a.score.Priority != b.score.Priority {
			return a.score.Priority > b.score.Priority
		}
		if a.employee.ChurnProbability != b.employee.ChurnProbability {
			return a.employee.ChurnProbability > b.employee.ChurnProbability
		}
		return a.employee.ID < b.employee.ID
	})

	limit := cohortBound(len(eligible))
	ranked := eligible[:limit]

	candidates := make([]*models.Candidate, 0, len(ranked))
	for _, item := range ranked {
		if err := ctx.Err(); err != nil {
			return candidates, err
		}

		candidate, err := s.materialize(ctx, item)
		if err != nil {
			s.logger.Warn("dropping employee from cohort", map[string]interface{}{
				"employeeId": item.employee.ID,
				"error":      err.Error(),
			})
			continue
		}
		candidates = append(candidates, candidate)
	}

	s.logger.Info("cohort selected", map[string]interface{}{
		"population": len(employees),
		"eligible":   len(eligible),
		"cohort":     len(candidates),
	})

	return candidates, nil
}

// materialize fetches the risk profile and treatment options for one
// retained employee.
func (s *Selector) materialize(ctx context.Context, item scored) (*models.Candidate, error) {
	detail, err := s.api.GetEmployeeDetail(ctx, item.employee.ID)
	if err != nil {
		return nil, err
	}

	suggestions, err := s.api.GetTreatmentSuggestions(ctx, item.employee.ID)
	if err != nil {
		return nil, err
	}

	return &models.Candidate{
		Employee:   item.employee,
		Score:      item.score,
		Detail:     detail,
		Treatments: suggestions,
		Top:        topTreatment(suggestions),
	}, nil
}

// topTreatment picks the suggestion with the highest projected ROI.
func topTreatment(suggestions []riskapi.TreatmentSuggestion) *riskapi.TreatmentSuggestion {
	var best *riskapi.TreatmentSuggestion
	for i := range suggestions {
		if best == nil || suggestions[i].ProjectedROI > best.ProjectedROI {
			best = &suggestions[i]
		}
	}
	if best == nil {
		return nil
	}
	out := *best
	return &out
}

// cohortBound returns max(minCohort, floor(topFraction*eligible)),
// never exceeding the eligible count.
func cohortBound(eligibleCount int) int {
	limit := int(math.Floor(float64(eligibleCount) * topFraction))
	if limit < minCohort {
		limit = minCohort
	}
	if limit > eligibleCount {
		limit = eligibleCount
	}
	return limit
}
