package models

type NutrientMode string

const (
	NutrientModeAuto   NutrientMode = "auto"
	NutrientModeManual NutrientMode = "manual"
)

// CropContext is the crop & soil form. In auto mode the nutrient values are fetched, not typed.
type CropContext struct {
	CropType     string       `json:"crop" binding:"required"`
	Season       string       `json:"season" binding:"required"`
	SoilType     string       `json:"soil_type" binding:"required"`
	NutrientMode NutrientMode `json:"input_mode" binding:"omitempty,oneof=auto manual"`
	N            *float64     `json:"N,omitempty"`
	P            *float64     `json:"P,omitempty"`
	K            *float64     `json:"K,omitempty"`
	PH           *float64     `json:"ph,omitempty"`
}

// DefaultCropContext mirrors the initial state of the crop form.
func DefaultCropContext() CropContext {
	return CropContext{
		CropType:     "Wheat",
		Season:       "Rabi",
		SoilType:     "Clayey",
		NutrientMode: NutrientModeAuto,
	}
}

// ManualNutrients returns the typed values when all four are present.
func (c CropContext) ManualNutrients() (Nutrients, bool) {
	if c.N == nil || c.P == nil || c.K == nil || c.PH == nil {
		return Nutrients{}, false
	}
	return Nutrients{N: *c.N, P: *c.P, K: *c.K, PH: *c.PH}, true
}

// NutrientKey identifies an automatic nutrient lookup.
type NutrientKey struct {
	CropType string
	SoilType string
}

func (c CropContext) NutrientKey() NutrientKey {
	return NutrientKey{CropType: c.CropType, SoilType: c.SoilType}
}
