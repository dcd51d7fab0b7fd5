package models

const (
	HealthStatusHealthy  = "Healthy"
	HealthStatusInfected = "Infected"
)

type HealthAssessment struct {
	Status          string   `json:"status"`
	Disease         *string  `json:"disease"`
	Confidence      float64  `json:"confidence"`
	Recommendations []string `json:"recommendations"`
}

// NutrientComparison is one line of the crop-need vs regional availability report.
type NutrientComparison struct {
	Nutrient       string  `json:"nutrient"`
	CropRequired   float64 `json:"crop_required"`
	StateAvailable float64 `json:"state_available"`
	Percentage     float64 `json:"percentage"`
	Status         string  `json:"status"`
}

type NutrientReport struct {
	State      string               `json:"state"`
	Crop       string               `json:"crop"`
	Comparison []NutrientComparison `json:"nutrient_comparison"`
}
