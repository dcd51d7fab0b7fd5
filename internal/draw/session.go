package draw

import (
	"log/slog"
	"sync"

	"yield-service/internal/geometry"
	"yield-service/internal/models"

	"github.com/google/uuid"
)

// Session keeps at most one polygon. A new polygon retires the previous one before any
// listener hears about it.
type Session struct {
	logger *slog.Logger

	mu        sync.Mutex
	polygon   *models.Polygon
	area      float64
	attached  map[string]func()
	listeners []func(models.AreaChange)
}

func NewSession(logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{
		logger:   logger.With("component", "draw-session"),
		attached: make(map[string]func()),
	}
}

// Attach subscribes to the surface's create and delete events. Attaching the same surface
// twice is a no-op and returns false.
func (s *Session) Attach(surface Surface) bool {
	s.mu.Lock()
	if _, ok := s.attached[surface.ID()]; ok {
		s.mu.Unlock()
		return false
	}
	// reserve the slot so a concurrent Attach of the same surface backs off
	s.attached[surface.ID()] = func() {}
	s.mu.Unlock()

	unsubscribe := surface.Subscribe(s.handleEvent)

	s.mu.Lock()
	s.attached[surface.ID()] = unsubscribe
	s.mu.Unlock()
	return true
}

// Detach stops listening to the surface.
func (s *Session) Detach(surface Surface) {
	s.mu.Lock()
	unsubscribe, ok := s.attached[surface.ID()]
	delete(s.attached, surface.ID())
	s.mu.Unlock()

	if ok {
		unsubscribe()
	}
}

// OnAreaChanged registers a listener for every area transition.
func (s *Session) OnAreaChanged(fn func(models.AreaChange)) {
	s.mu.Lock()
	s.listeners = append(s.listeners, fn)
	s.mu.Unlock()
}

// OnVertexSequenceCommitted replaces the current polygon with the committed ring.
// Invalid input leaves the session untouched.
func (s *Session) OnVertexSequenceCommitted(vertices []models.Vertex) (models.AreaChange, error) {
	area, err := geometry.ComputeAreaHectares(vertices)
	if err != nil {
		return models.AreaChange{}, err
	}
	normalized, err := geometry.Normalize(vertices)
	if err != nil {
		return models.AreaChange{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var retired *uuid.UUID
	if s.polygon != nil {
		id := s.polygon.ID
		retired = &id
	}
	polygon := &models.Polygon{ID: uuid.New(), Vertices: normalized}
	s.polygon = polygon
	s.area = area

	polygonID := polygon.ID
	change := models.AreaChange{
		State:            models.DrawStateActive,
		AreaHectares:     area,
		PolygonID:        &polygonID,
		RetiredPolygonID: retired,
		Vertices:         append([]models.Vertex(nil), normalized...),
	}
	s.logger.Info("polygon committed", "polygon_id", polygonID, "area_ha", area, "vertices", len(normalized))
	s.notifyLocked(change)
	return change, nil
}

// OnDeleted clears the polygon. Deleting in the empty state still reports area 0.
func (s *Session) OnDeleted() models.AreaChange {
	s.mu.Lock()
	defer s.mu.Unlock()

	var retired *uuid.UUID
	if s.polygon != nil {
		id := s.polygon.ID
		retired = &id
	}
	s.polygon = nil
	s.area = 0

	change := models.AreaChange{State: models.DrawStateEmpty, RetiredPolygonID: retired}
	s.notifyLocked(change)
	return change
}

// Reset drops the polygon without detaching surfaces.
func (s *Session) Reset() {
	s.OnDeleted()
}

func (s *Session) Area() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.area
}

func (s *Session) State() models.DrawState {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.polygon == nil {
		return models.DrawStateEmpty
	}
	return models.DrawStateActive
}

// Polygon returns a copy of the current polygon, if any.
func (s *Session) Polygon() (models.Polygon, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.polygon == nil {
		return models.Polygon{}, false
	}
	out := *s.polygon
	out.Vertices = append([]models.Vertex(nil), s.polygon.Vertices...)
	return out, true
}

func (s *Session) handleEvent(event SurfaceEvent) {
	switch event.Kind {
	case EventPolygonCreated:
		vertices := event.Vertices
		if len(vertices) == 0 && len(event.Geometry) > 0 {
			parsed, err := geometry.ParseGeoJSONPolygon(event.Geometry)
			if err != nil {
				s.logger.Warn("ignoring malformed polygon from surface", "error", err)
				return
			}
			vertices = parsed
		}
		if _, err := s.OnVertexSequenceCommitted(vertices); err != nil {
			s.logger.Warn("ignoring invalid polygon from surface", "error", err)
		}
	case EventPolygonRemoved:
		s.OnDeleted()
	default:
		s.logger.Warn("ignoring unknown surface event", "type", event.Kind)
	}
}

func (s *Session) notifyLocked(change models.AreaChange) {
	for _, fn := range s.listeners {
		fn(change)
	}
}
