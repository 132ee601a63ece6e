// internal/models/employee.go
package models

// RiskLevel classifies an employee's churn-risk bucket.
type RiskLevel string

const (
	RiskLow    RiskLevel = "Low"
	RiskMedium RiskLevel = "Medium"
	RiskHigh   RiskLevel = "High"
)

// DisplayMode selects which derived gain figures are surfaced. It never
// changes scoring or orchestration behavior.
type DisplayMode string

const (
	ModePerformance    DisplayMode = "performance"
	ModeQuantification DisplayMode = "quantification"
)

// EmployeeRecord is the immutable raw input to scoring, owned by the
// external data source.
type EmployeeRecord struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	Department       string    `json:"department"`
	RiskLevel        RiskLevel `json:"riskLevel"`
	ChurnProbability float64   `json:"churnProbability"`
	Salary           float64   `json:"salary"`
	TenureYears      float64   `json:"tenureYears"`
	CurrentELTV      float64   `json:"currentEltv"`
}

// Label returns the human-readable identifier used in progress updates.
func (e EmployeeRecord) Label() string {
	if e.Name != "" {
		return e.Name
	}
	return e.ID
}
