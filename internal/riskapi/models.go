// internal/riskapi/models.go
package riskapi

// EmployeeDetail is the full risk profile returned by the prediction service.
type EmployeeDetail struct {
	EmployeeID            string                 `json:"employeeId"`
	ChurnProbability      float64                `json:"churnProbability"`
	Eltv                  float64                `json:"eltv"`
	SurvivalProbabilities map[string]float64     `json:"survivalProbabilities"`
	Features              map[string]interface{} `json:"features,omitempty"`
}

// Clone returns a structurally independent copy of the detail. Scenario
// baselines must never alias the live detail object, which later gets
// mutated by treatment application.
func (d *EmployeeDetail) Clone() *EmployeeDetail {
	if d == nil {
		return nil
	}
	out := &EmployeeDetail{
		EmployeeID:       d.EmployeeID,
		ChurnProbability: d.ChurnProbability,
		Eltv:             d.Eltv,
	}
	if d.SurvivalProbabilities != nil {
		out.SurvivalProbabilities = make(map[string]float64, len(d.SurvivalProbabilities))
		for k, v := range d.SurvivalProbabilities {
			out.SurvivalProbabilities[k] = v
		}
	}
	if d.Features != nil {
		out.Features = make(map[string]interface{}, len(d.Features))
		for k, v := range d.Features {
			out.Features[k] = v
		}
	}
	return out
}

// TreatmentSuggestion is one retention treatment proposed by the recommender.
type TreatmentSuggestion struct {
	ID                       int      `json:"id"`
	Name                     string   `json:"name"`
	Cost                     float64  `json:"cost"`
	ProjectedChurnProbChange float64  `json:"projectedChurnProbChange"`
	ProjectedROI             float64  `json:"projectedRoi"`
	ProjectedPostEltv        float64  `json:"projectedPostEltv"`
	RiskLevels               []string `json:"riskLevels,omitempty"`
}

// TreatmentResult is the outcome of simulating a treatment on an employee.
type TreatmentResult struct {
	PreChurnProbability      float64            `json:"preChurnProbability"`
	PostChurnProbability     float64            `json:"postChurnProbability"`
	EltvPreTreatment         float64            `json:"eltvPreTreatment"`
	EltvPostTreatment        float64            `json:"eltvPostTreatment"`
	NewSurvivalProbabilities map[string]float64 `json:"newSurvivalProbabilities"`
	TreatmentCost            float64            `json:"treatmentCost"`
	ROI                      float64            `json:"roi"`
}

// Clone returns an independent copy of the result.
func (r *TreatmentResult) Clone() *TreatmentResult {
	if r == nil {
		return nil
	}
	out := *r
	if r.NewSurvivalProbabilities != nil {
		out.NewSurvivalProbabilities = make(map[string]float64, len(r.NewSurvivalProbabilities))
		for k, v := range r.NewSurvivalProbabilities {
			out.NewSurvivalProbabilities[k] = v
		}
	}
	return &out
}
