package clients

import (
	"context"
	"fmt"
	"os"
	"strings"

	"yield-service/internal/models"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"
)

const DefaultRegionProperty = "NAME_1"

type boundary struct {
	name   string
	bound  orb.Bound
	region orb.Geometry
}

// BoundaryRegionLookup answers region lookups from administrative boundaries held in memory.
type BoundaryRegionLookup struct {
	boundaries []boundary
}

// LoadBoundaryRegionLookup reads a GeoJSON FeatureCollection from path.
func LoadBoundaryRegionLookup(path, property string) (*BoundaryRegionLookup, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read boundary file: %w", err)
	}
	return NewBoundaryRegionLookup(data, property)
}

// NewBoundaryRegionLookup indexes every Polygon or MultiPolygon feature by the given name property.
func NewBoundaryRegionLookup(data []byte, property string) (*BoundaryRegionLookup, error) {
	if property == "" {
		property = DefaultRegionProperty
	}

	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse boundary GeoJSON: %w", err)
	}

	lookup := &BoundaryRegionLookup{}
	for _, f := range fc.Features {
		name := strings.TrimSpace(f.Properties.MustString(property, ""))
		if name == "" {
			continue
		}
		switch g := f.Geometry.(type) {
		case orb.Polygon, orb.MultiPolygon:
			lookup.boundaries = append(lookup.boundaries, boundary{name: name, bound: g.Bound(), region: g})
		}
	}
	if len(lookup.boundaries) == 0 {
		return nil, fmt.Errorf("no polygon features with property %q", property)
	}
	return lookup, nil
}

func (l *BoundaryRegionLookup) Len() int {
	return len(l.boundaries)
}

// Regions lists the distinct region names in load order.
func (l *BoundaryRegionLookup) Regions() []string {
	seen := make(map[string]bool, len(l.boundaries))
	names := make([]string, 0, len(l.boundaries))
	for _, b := range l.boundaries {
		if !seen[b.name] {
			seen[b.name] = true
			names = append(names, b.name)
		}
	}
	return names
}

func (l *BoundaryRegionLookup) LookupRegion(ctx context.Context, coords models.Coordinates) (string, error) {
	point := orb.Point{coords.Longitude, coords.Latitude}
	for _, b := range l.boundaries {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		if !b.bound.Contains(point) {
			continue
		}
		switch g := b.region.(type) {
		case orb.Polygon:
			if planar.PolygonContains(g, point) {
				return b.name, nil
			}
		case orb.MultiPolygon:
			if planar.MultiPolygonContains(g, point) {
				return b.name, nil
			}
		}
	}
	return "", models.ErrRegionUnknown
}
