// internal/models/candidate.go
package models

import "retention-engine/internal/riskapi"

// PriorityScore is derived per analysis pass and never mutated in place.
// All three components are on a 0..100 scale; Priority is the ranking
// blend 0.6*Criticality + 0.4*Efficiency.
type PriorityScore struct {
	Criticality float64 `json:"criticality"`
	Efficiency  float64 `json:"efficiency"`
	Priority    float64 `json:"priority"`
}

// ApplicationState tracks one candidate's treatment-application history.
// It mutates only as a direct result of an apply attempt.
type ApplicationState struct {
	IsApplying bool                     `json:"isApplying"`
	LastResult *riskapi.TreatmentResult `json:"lastResult,omitempty"`
	LastError  string                   `json:"lastError,omitempty"`
}

// Candidate is one cohort member: an employee record, its priority
// score, the recommender's treatment options and the live application
// state. Candidates are discarded, not archived, when a new analysis
// pass replaces the cohort.
type Candidate struct {
	Employee   EmployeeRecord                `json:"employee"`
	Score      PriorityScore                 `json:"score"`
	Detail     *riskapi.EmployeeDetail       `json:"detail,omitempty"`
	Treatments []riskapi.TreatmentSuggestion `json:"treatments,omitempty"`
	Top        *riskapi.TreatmentSuggestion  `json:"topTreatment,omitempty"`
	State      ApplicationState              `json:"state"`
}
