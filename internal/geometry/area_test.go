package geometry

import (
	"math"
	"testing"

	"yield-service/internal/models"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// metersToDegrees converts a ground distance along the equator to degrees.
func metersToDegrees(m float64) float64 {
	return m / (orb.EarthRadius * math.Pi / 180)
}

func square(lon, lat, side float64) []models.Vertex {
	return []models.Vertex{
		{Lon: lon, Lat: lat},
		{Lon: lon + side, Lat: lat},
		{Lon: lon + side, Lat: lat + side},
		{Lon: lon, Lat: lat + side},
	}
}

func TestComputeAreaHectares_HundredMeterSquare(t *testing.T) {
	side := metersToDegrees(100)

	area, err := ComputeAreaHectares(square(0, 0, side))

	require.NoError(t, err)
	assert.InEpsilon(t, 1.0, area, 0.01, "100m x 100m at the equator should be about 1 ha")
}

func TestComputeAreaHectares_EquatorRectangle(t *testing.T) {
	area, err := ComputeAreaHectares(square(36.80, 0, 0.01))

	require.NoError(t, err)
	degree := orb.EarthRadius * math.Pi / 180
	expected := (0.01 * degree) * (0.01 * degree) / squareMetersPerHectare
	assert.InEpsilon(t, expected, area, 0.005)
	assert.InDelta(t, 123.9, area, 0.5)
}

func TestComputeAreaHectares_LatitudeShrinksArea(t *testing.T) {
	equator, err := ComputeAreaHectares(square(78.0, 0, 0.01))
	require.NoError(t, err)
	north, err := ComputeAreaHectares(square(78.0, 60, 0.01))
	require.NoError(t, err)

	assert.InEpsilon(t, equator*math.Cos(60.005*math.Pi/180), north, 0.01)
}

func TestComputeAreaHectares_AlreadyClosedRing(t *testing.T) {
	open := square(72.5, 23.0, 0.005)
	closed := append(append([]models.Vertex{}, open...), open[0])

	a, err := ComputeAreaHectares(open)
	require.NoError(t, err)
	b, err := ComputeAreaHectares(closed)
	require.NoError(t, err)

	assert.Equal(t, a, b)
}

func TestComputeAreaHectares_WindingDoesNotMatter(t *testing.T) {
	cw := square(72.5, 23.0, 0.005)
	ccw := []models.Vertex{cw[3], cw[2], cw[1], cw[0]}

	a, err := ComputeAreaHectares(cw)
	require.NoError(t, err)
	b, err := ComputeAreaHectares(ccw)
	require.NoError(t, err)

	assert.Greater(t, a, 0.0)
	assert.InDelta(t, a, b, 1e-9)
}

func TestComputeAreaHectares_TooFewVertices(t *testing.T) {
	cases := map[string][]models.Vertex{
		"empty":               nil,
		"one":                 {{Lon: 1, Lat: 1}},
		"two":                 {{Lon: 1, Lat: 1}, {Lon: 2, Lat: 2}},
		"closed two":          {{Lon: 1, Lat: 1}, {Lon: 2, Lat: 2}, {Lon: 1, Lat: 1}},
		"repeated duplicates": {{Lon: 1, Lat: 1}, {Lon: 1, Lat: 1}, {Lon: 2, Lat: 2}, {Lon: 2, Lat: 2}},
	}

	for name, vertices := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ComputeAreaHectares(vertices)
			assert.ErrorIs(t, err, models.ErrInvalidGeometry)
		})
	}
}

func TestComputeAreaHectares_OutOfRangeCoordinate(t *testing.T) {
	_, err := ComputeAreaHectares([]models.Vertex{{Lon: 0, Lat: 0}, {Lon: 200, Lat: 0}, {Lon: 0, Lat: 1}})
	assert.ErrorIs(t, err, models.ErrInvalidGeometry)

	_, err = ComputeAreaHectares([]models.Vertex{{Lon: 0, Lat: 0}, {Lon: math.NaN(), Lat: 0}, {Lon: 0, Lat: 1}})
	assert.ErrorIs(t, err, models.ErrInvalidGeometry)
}

func TestComputeAreaHectares_DegenerateShapesMeasureZero(t *testing.T) {
	collinear := []models.Vertex{{Lon: 0, Lat: 0}, {Lon: 0.001, Lat: 0.001}, {Lon: 0.002, Lat: 0.002}}
	bowtie := []models.Vertex{{Lon: 0, Lat: 0}, {Lon: 0.01, Lat: 0.01}, {Lon: 0.01, Lat: 0}, {Lon: 0, Lat: 0.01}}

	area, err := ComputeAreaHectares(collinear)
	require.NoError(t, err)
	assert.InDelta(t, 0.0, area, 1e-6)

	area, err = ComputeAreaHectares(bowtie)
	require.NoError(t, err)
	assert.Equal(t, 0.0, area)
}

func TestComputeAreaHectares_ConcaveFieldIsNotSelfIntersecting(t *testing.T) {
	lshape := []models.Vertex{
		{Lon: 0, Lat: 0}, {Lon: 0.002, Lat: 0}, {Lon: 0.002, Lat: 0.001},
		{Lon: 0.001, Lat: 0.001}, {Lon: 0.001, Lat: 0.002}, {Lon: 0, Lat: 0.002},
	}

	area, err := ComputeAreaHectares(lshape)
	require.NoError(t, err)

	full, err := ComputeAreaHectares(square(0, 0, 0.002))
	require.NoError(t, err)
	assert.InEpsilon(t, full*0.75, area, 0.01)
}

func TestCentroid(t *testing.T) {
	c, err := Centroid(square(10, 20, 0.002))

	require.NoError(t, err)
	assert.InDelta(t, 20.001, c.Latitude, 1e-9)
	assert.InDelta(t, 10.001, c.Longitude, 1e-9)
}
