// Package geometry measures user-drawn field boundaries on the sphere.
package geometry

import (
	"fmt"
	"math"

	"yield-service/internal/models"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/paulmach/orb/planar"
)

const squareMetersPerHectare = 10000.0

// ComputeAreaHectares returns the spherical area of the closed ring through vertices.
// Fewer than 3 distinct vertices fails with models.ErrInvalidGeometry. Self-intersecting
// and zero-area rings measure 0.
func ComputeAreaHectares(vertices []models.Vertex) (float64, error) {
	ring, err := closedRing(vertices)
	if err != nil {
		return 0, err
	}

	if selfIntersects(ring) {
		return 0, nil
	}

	area := math.Abs(geo.Area(orb.Polygon{ring})) / squareMetersPerHectare
	if math.IsNaN(area) || math.IsInf(area, 0) {
		return 0, nil
	}
	return area, nil
}

// Centroid returns the area-weighted centroid of the ring, or the vertex mean for a
// degenerate ring.
func Centroid(vertices []models.Vertex) (models.Coordinates, error) {
	ring, err := closedRing(vertices)
	if err != nil {
		return models.Coordinates{}, err
	}

	center, area := planar.CentroidArea(orb.Polygon{ring})
	if area == 0 || math.IsNaN(center.Lon()) || math.IsNaN(center.Lat()) {
		var sumLon, sumLat float64
		open := ring[:len(ring)-1]
		for _, p := range open {
			sumLon += p.Lon()
			sumLat += p.Lat()
		}
		n := float64(len(open))
		center = orb.Point{sumLon / n, sumLat / n}
	}

	return models.Coordinates{Latitude: center.Lat(), Longitude: center.Lon()}, nil
}

// Normalize drops consecutive duplicates and a closing vertex, then validates the remainder.
func Normalize(vertices []models.Vertex) ([]models.Vertex, error) {
	out := make([]models.Vertex, 0, len(vertices))
	for _, v := range vertices {
		if !validVertex(v) {
			return nil, fmt.Errorf("%w: coordinate out of range (%v, %v)", models.ErrInvalidGeometry, v.Lon, v.Lat)
		}
		if len(out) > 0 && out[len(out)-1] == v {
			continue
		}
		out = append(out, v)
	}
	for len(out) > 1 && out[0] == out[len(out)-1] {
		out = out[:len(out)-1]
	}
	if len(out) < 3 {
		return nil, fmt.Errorf("%w: got %d", models.ErrInvalidGeometry, len(out))
	}
	return out, nil
}

func closedRing(vertices []models.Vertex) (orb.Ring, error) {
	open, err := Normalize(vertices)
	if err != nil {
		return nil, err
	}

	ring := make(orb.Ring, 0, len(open)+1)
	for _, v := range open {
		ring = append(ring, orb.Point{v.Lon, v.Lat})
	}
	return append(ring, ring[0]), nil
}

func validVertex(v models.Vertex) bool {
	if math.IsNaN(v.Lon) || math.IsNaN(v.Lat) || math.IsInf(v.Lon, 0) || math.IsInf(v.Lat, 0) {
		return false
	}
	return v.Lon >= -180 && v.Lon <= 180 && v.Lat >= -90 && v.Lat <= 90
}
