// internal/riskapi/service.go
// Package riskapi consumes the remote churn-risk and treatment-simulation
// service. The engine owns none of these contracts; it only calls them.
package riskapi

import "context"

// Service is the collaborator contract the decision engine depends on.
type Service interface {
	// GetEmployeeDetail fetches the risk profile for one employee.
	// Fails with NOT_FOUND or UPSTREAM_ERROR.
	GetEmployeeDetail(ctx context.Context, employeeID string) (*EmployeeDetail, error)

	// GetTreatmentSuggestions fetches the recommender's treatment options.
	GetTreatmentSuggestions(ctx context.Context, employeeID string) ([]TreatmentSuggestion, error)

	// SimulateTreatment applies a treatment to an employee remotely.
	// Fails with UPSTREAM_ERROR (network/timeout) or VALIDATION_ERROR
	// (unknown treatment/employee).
	SimulateTreatment(ctx context.Context, employeeID string, treatmentID int) (*TreatmentResult, error)
}
