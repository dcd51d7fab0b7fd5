package clients

import (
	"context"
	"fmt"
	"math"
	"strings"

	"yield-service/internal/models"
)

const fallbackSoilType = "Clayey"

var soilPresets = map[string]map[string]models.Nutrients{
	"Wheat": {
		"Clayey":   {N: 120, P: 60, K: 40, PH: 6.5},
		"Sandy":    {N: 130, P: 65, K: 45, PH: 6.8},
		"Loamy":    {N: 115, P: 55, K: 38, PH: 6.5},
		"Black":    {N: 125, P: 62, K: 42, PH: 7.0},
		"Red":      {N: 135, P: 68, K: 48, PH: 6.2},
		"Alluvial": {N: 120, P: 60, K: 40, PH: 6.8},
	},
	"Rice": {
		"Clayey":   {N: 100, P: 50, K: 50, PH: 5.5},
		"Sandy":    {N: 110, P: 55, K: 55, PH: 6.0},
		"Loamy":    {N: 95, P: 48, K: 48, PH: 6.0},
		"Black":    {N: 105, P: 52, K: 52, PH: 6.5},
		"Red":      {N: 115, P: 58, K: 58, PH: 5.8},
		"Alluvial": {N: 100, P: 50, K: 50, PH: 6.2},
	},
	"Maize": {
		"Clayey":   {N: 140, P: 60, K: 60, PH: 6.5},
		"Sandy":    {N: 150, P: 65, K: 65, PH: 6.8},
		"Loamy":    {N: 135, P: 58, K: 58, PH: 6.5},
		"Black":    {N: 145, P: 62, K: 62, PH: 7.0},
		"Red":      {N: 155, P: 68, K: 68, PH: 6.2},
		"Alluvial": {N: 140, P: 60, K: 60, PH: 6.8},
	},
	"Sugarcane": {
		"Clayey":   {N: 200, P: 80, K: 80, PH: 6.5},
		"Sandy":    {N: 220, P: 85, K: 85, PH: 7.0},
		"Loamy":    {N: 190, P: 75, K: 75, PH: 6.8},
		"Black":    {N: 210, P: 82, K: 82, PH: 7.5},
		"Red":      {N: 230, P: 88, K: 88, PH: 6.5},
		"Alluvial": {N: 200, P: 80, K: 80, PH: 7.2},
	},
	"Cotton": {
		"Clayey":   {N: 120, P: 60, K: 60, PH: 6.5},
		"Sandy":    {N: 130, P: 65, K: 65, PH: 7.0},
		"Loamy":    {N: 115, P: 58, K: 58, PH: 6.8},
		"Black":    {N: 125, P: 62, K: 62, PH: 7.5},
		"Red":      {N: 135, P: 68, K: 68, PH: 6.5},
		"Alluvial": {N: 120, P: 60, K: 60, PH: 7.0},
	},
}

// crop macronutrient need in kg/ha
var cropRequirements = map[string][3]float64{
	"Wheat":     {120, 60, 40},
	"Rice":      {100, 50, 50},
	"Maize":     {140, 60, 60},
	"Sugarcane": {250, 100, 120},
	"Cotton":    {150, 60, 60},
}

// regional availability as a share of crop need, until state-level NPK surveys are loaded
const regionalAvailabilityShare = 0.85

// NutrientTable is the local preset table used when no nutrient service is configured.
type NutrientTable struct{}

func NewNutrientTable() *NutrientTable {
	return &NutrientTable{}
}

// Preset returns the stored values for a crop and soil type. Unknown soil types fall back
// to clayey soil; unknown crops to the default preset.
func (t *NutrientTable) Preset(cropType, soilType string) models.Nutrients {
	bySoil, ok := soilPresets[canonicalName(cropType)]
	if !ok {
		return models.DefaultNutrients
	}
	if v, ok := bySoil[canonicalName(soilType)]; ok {
		return v
	}
	return bySoil[fallbackSoilType]
}

func (t *NutrientTable) LookupNutrients(_ context.Context, cropType, soilType string) (models.Nutrients, error) {
	if strings.TrimSpace(cropType) == "" {
		return models.Nutrients{}, fmt.Errorf("crop type is required")
	}
	return t.Preset(cropType, soilType), nil
}

// Compare reports each macronutrient need of the crop against what the state provides.
func (t *NutrientTable) Compare(state, cropType string) (*models.NutrientReport, error) {
	if models.IsUnknownRegion(state) {
		return nil, fmt.Errorf("%w: state %q soil data not found", models.ErrNotFound, state)
	}
	need, ok := cropRequirements[canonicalName(cropType)]
	if !ok {
		return nil, fmt.Errorf("%w: crop %q not found", models.ErrNotFound, cropType)
	}

	report := &models.NutrientReport{State: strings.TrimSpace(state), Crop: canonicalName(cropType)}
	for i, name := range []string{"Nitrogen", "Phosphorus", "Potassium"} {
		available := need[i] * regionalAvailabilityShare
		percentage := available / need[i] * 100
		report.Comparison = append(report.Comparison, models.NutrientComparison{
			Nutrient:       name,
			CropRequired:   need[i],
			StateAvailable: round2(available),
			Percentage:     round2(percentage),
			Status:         NutrientStatus(percentage),
		})
	}
	return report, nil
}

// NutrientStatus classifies availability as a percentage of need.
func NutrientStatus(percentage float64) string {
	switch {
	case percentage < 80:
		return "Low"
	case percentage <= 120:
		return "Sufficient"
	default:
		return "Excess"
	}
}

func canonicalName(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
