package models

import "github.com/google/uuid"

// Vertex is a (longitude, latitude) pair in WGS84 degrees.
type Vertex struct {
	Lon float64 `json:"lon"`
	Lat float64 `json:"lat"`
}

// Polygon is a field boundary. The ring is implicitly closed.
type Polygon struct {
	ID       uuid.UUID `json:"id"`
	Vertices []Vertex  `json:"vertices"`
}

type DrawState string

const (
	DrawStateEmpty  DrawState = "empty"
	DrawStateActive DrawState = "active"
)

// AreaChange is delivered to draw session listeners after every transition.
type AreaChange struct {
	State            DrawState  `json:"state"`
	AreaHectares     float64    `json:"area_hectares"`
	PolygonID        *uuid.UUID `json:"polygon_id,omitempty"`
	RetiredPolygonID *uuid.UUID `json:"retired_polygon_id,omitempty"`
	Vertices         []Vertex   `json:"vertices,omitempty"`
}
