package geometry

import (
	"encoding/json"
	"fmt"

	"yield-service/internal/models"

	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
	"github.com/twpayne/go-geom/encoding/wkt"
)

// ParseGeoJSONPolygon decodes the outer ring of a GeoJSON Polygon geometry or Feature.
//
// Flow:
// GeoJSON bytes → geom.T → *geom.Polygon → outer ring → []models.Vertex ([lon, lat] order)
func ParseGeoJSONPolygon(data []byte) ([]models.Vertex, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("failed to read GeoJSON type: %w", err)
	}

	var geometry geom.T
	switch head.Type {
	case "Feature":
		var feature geojson.Feature
		if err := json.Unmarshal(data, &feature); err != nil {
			return nil, fmt.Errorf("failed to unmarshal GeoJSON feature: %w", err)
		}
		geometry = feature.Geometry
	case "Polygon":
		if err := geojson.Unmarshal(data, &geometry); err != nil {
			return nil, fmt.Errorf("failed to unmarshal GeoJSON: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported GeoJSON type %q", head.Type)
	}

	polygon, ok := geometry.(*geom.Polygon)
	if !ok || polygon.NumLinearRings() == 0 {
		return nil, fmt.Errorf("geometry is not a Polygon")
	}

	coords := polygon.LinearRing(0).Coords()
	vertices := make([]models.Vertex, 0, len(coords))
	for _, c := range coords {
		vertices = append(vertices, models.Vertex{Lon: c.X(), Lat: c.Y()})
	}
	return vertices, nil
}

// BoundaryWKT renders the closed ring as "SRID=4326;POLYGON((...))" for PostGIS columns.
func BoundaryWKT(vertices []models.Vertex) (string, error) {
	open, err := Normalize(vertices)
	if err != nil {
		return "", err
	}

	ring := make([]geom.Coord, 0, len(open)+1)
	for _, v := range open {
		ring = append(ring, geom.Coord{v.Lon, v.Lat})
	}
	ring = append(ring, ring[0])

	polygon, err := geom.NewPolygon(geom.XY).SetCoords([][]geom.Coord{ring})
	if err != nil {
		return "", fmt.Errorf("failed to build polygon: %w", err)
	}
	polygon.SetSRID(4326)

	wktString, err := wkt.Marshal(polygon)
	if err != nil {
		return "", fmt.Errorf("failed to marshal to WKT: %w", err)
	}
	return fmt.Sprintf("SRID=%d;%s", polygon.SRID(), wktString), nil
}
