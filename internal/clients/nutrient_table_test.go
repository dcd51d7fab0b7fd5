package clients

import (
	"context"
	"testing"

	"yield-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNutrientTable_Preset(t *testing.T) {
	table := NewNutrientTable()

	cases := []struct {
		crop, soil string
		want       models.Nutrients
	}{
		{"Wheat", "Clayey", models.Nutrients{N: 120, P: 60, K: 40, PH: 6.5}},
		{"rice", "sandy", models.Nutrients{N: 110, P: 55, K: 55, PH: 6.0}},
		{"Sugarcane", "Black", models.Nutrients{N: 210, P: 82, K: 82, PH: 7.5}},
		{"Maize", "Peaty", models.Nutrients{N: 140, P: 60, K: 60, PH: 6.5}},
		{"Barley", "Clayey", models.DefaultNutrients},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, table.Preset(tc.crop, tc.soil), "%s/%s", tc.crop, tc.soil)
	}

	_, err := table.LookupNutrients(context.Background(), "", "Clayey")
	assert.Error(t, err)
}

func TestNutrientTable_Compare(t *testing.T) {
	report, err := NewNutrientTable().Compare("Gujarat", "wheat")

	require.NoError(t, err)
	assert.Equal(t, "Wheat", report.Crop)
	require.Len(t, report.Comparison, 3)

	nitrogen := report.Comparison[0]
	assert.Equal(t, "Nitrogen", nitrogen.Nutrient)
	assert.Equal(t, 120.0, nitrogen.CropRequired)
	assert.Equal(t, 102.0, nitrogen.StateAvailable)
	assert.Equal(t, 85.0, nitrogen.Percentage)
	assert.Equal(t, "Sufficient", nitrogen.Status)
}

func TestNutrientTable_CompareUnknown(t *testing.T) {
	_, err := NewNutrientTable().Compare("Gujarat", "Quinoa")
	assert.ErrorIs(t, err, models.ErrNotFound)

	_, err = NewNutrientTable().Compare("Unknown", "Wheat")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestNutrientStatus(t *testing.T) {
	assert.Equal(t, "Low", NutrientStatus(79.99))
	assert.Equal(t, "Sufficient", NutrientStatus(80))
	assert.Equal(t, "Sufficient", NutrientStatus(120))
	assert.Equal(t, "Excess", NutrientStatus(120.01))
}
