// Package draw tracks the single field polygon a user draws on a map surface.
package draw

import (
	"encoding/json"
	"sync"

	"yield-service/internal/models"
)

type EventKind string

const (
	EventPolygonCreated EventKind = "polygon_created"
	EventPolygonRemoved EventKind = "polygon_removed"
)

// SurfaceEvent is one notification from a drawing surface. Created events carry either
// decoded Vertices or the raw GeoJSON geometry the surface produced.
type SurfaceEvent struct {
	Kind     EventKind       `json:"type" binding:"required,oneof=polygon_created polygon_removed"`
	Vertices []models.Vertex `json:"vertices,omitempty"`
	Geometry json.RawMessage `json:"geometry,omitempty"`
}

// Surface is a drawing surface that can be observed.
type Surface interface {
	ID() string
	Subscribe(fn func(SurfaceEvent)) (unsubscribe func())
}

// EventSurface is a Surface fed by explicit Publish calls, e.g. from an HTTP handler.
type EventSurface struct {
	id string

	mu          sync.Mutex
	nextID      int
	subscribers map[int]func(SurfaceEvent)
}

func NewEventSurface(id string) *EventSurface {
	return &EventSurface{id: id, subscribers: make(map[int]func(SurfaceEvent))}
}

func (s *EventSurface) ID() string {
	return s.id
}

func (s *EventSurface) Subscribe(fn func(SurfaceEvent)) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subscribers[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subscribers, id)
			s.mu.Unlock()
		})
	}
}

// Publish delivers the event to every subscriber before returning.
func (s *EventSurface) Publish(event SurfaceEvent) {
	s.mu.Lock()
	subs := make([]func(SurfaceEvent), 0, len(s.subscribers))
	for i := 0; i < s.nextID; i++ {
		if fn, ok := s.subscribers[i]; ok {
			subs = append(subs, fn)
		}
	}
	s.mu.Unlock()

	for _, fn := range subs {
		fn(event)
	}
}

// Subscribers reports how many handlers are attached.
func (s *EventSurface) Subscribers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subscribers)
}
