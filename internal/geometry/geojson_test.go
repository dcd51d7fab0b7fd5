package geometry

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseGeoJSONPolygon_Geometry(t *testing.T) {
	raw := `{"type":"Polygon","coordinates":[[[72.5,23.0],[72.51,23.0],[72.51,23.01],[72.5,23.0]]]}`

	vertices, err := ParseGeoJSONPolygon([]byte(raw))

	require.NoError(t, err)
	require.Len(t, vertices, 4)
	assert.Equal(t, 72.51, vertices[1].Lon)
	assert.Equal(t, 23.0, vertices[1].Lat)
}

func TestParseGeoJSONPolygon_Feature(t *testing.T) {
	raw := `{"type":"Feature","properties":{},"geometry":{"type":"Polygon","coordinates":[[[1,1],[2,1],[2,2],[1,1]]]}}`

	vertices, err := ParseGeoJSONPolygon([]byte(raw))

	require.NoError(t, err)
	assert.Len(t, vertices, 4)
}

func TestParseGeoJSONPolygon_Rejects(t *testing.T) {
	cases := map[string]string{
		"not json":   `{"type":`,
		"point":      `{"type":"Point","coordinates":[1,2]}`,
		"bad coords": `{"type":"Polygon","coordinates":"nope"}`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseGeoJSONPolygon([]byte(raw))
			assert.Error(t, err)
		})
	}
}

func TestBoundaryWKT(t *testing.T) {
	out, err := BoundaryWKT(square(106.0, 10.0, 0.1))

	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "SRID=4326;POLYGON"), out)
}
