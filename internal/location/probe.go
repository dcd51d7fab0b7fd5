// Package location obtains a single best-effort device position.
package location

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"yield-service/internal/models"
)

// ErrSuperseded is returned to a request that was replaced by a newer one.
var ErrSuperseded = errors.New("location request superseded")

// Error is a classified location failure. The session always survives it.
type Error struct {
	Kind models.LocationFailureKind
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("location %s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("location %s", e.Kind)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Fail builds a classified failure, for use by Geolocator implementations.
func Fail(kind models.LocationFailureKind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}

// KindOf extracts the failure kind, if err is a classified failure.
func KindOf(err error) (models.LocationFailureKind, bool) {
	var le *Error
	if errors.As(err, &le) {
		return le.Kind, true
	}
	return "", false
}

// Geolocator is the platform that actually produces a position.
type Geolocator interface {
	Locate(ctx context.Context, highAccuracy bool) (models.Coordinates, error)
}

type result struct {
	coords models.Coordinates
	err    error
}

// Probe wraps a Geolocator with a timeout and at most one outstanding request.
type Probe struct {
	platform Geolocator
	logger   *slog.Logger

	mu         sync.Mutex
	generation uint64
	cancel     context.CancelCauseFunc
}

func NewProbe(platform Geolocator, logger *slog.Logger) *Probe {
	if logger == nil {
		logger = slog.Default()
	}
	return &Probe{
		platform: platform,
		logger:   logger.With("component", "location-probe"),
	}
}

// RequestLocation asks the platform for a fix, waiting at most timeout. A request
// still pending when a new one starts returns ErrSuperseded.
func (p *Probe) RequestLocation(ctx context.Context, timeout time.Duration, highAccuracy bool) (models.Coordinates, error) {
	if p.platform == nil {
		return models.Coordinates{}, Fail(models.LocationUnsupported, nil)
	}

	reqCtx, cancel := context.WithCancelCause(ctx)
	p.mu.Lock()
	if p.cancel != nil {
		p.cancel(ErrSuperseded)
	}
	p.generation++
	gen := p.generation
	p.cancel = cancel
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		if p.generation == gen {
			p.cancel = nil
		}
		p.mu.Unlock()
		cancel(nil)
	}()

	if timeout > 0 {
		var stop context.CancelFunc
		reqCtx, stop = context.WithTimeout(reqCtx, timeout)
		defer stop()
	}

	done := make(chan result, 1)
	go func() {
		coords, err := p.platform.Locate(reqCtx, highAccuracy)
		done <- result{coords: coords, err: err}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			return models.Coordinates{}, p.classify(reqCtx, ctx, res.err)
		}
		if reqCtx.Err() != nil {
			return models.Coordinates{}, p.classify(reqCtx, ctx, reqCtx.Err())
		}
		p.logger.Info("location fix obtained",
			"lat", res.coords.Latitude,
			"lon", res.coords.Longitude,
			"accuracy_m", res.coords.AccuracyMeters)
		return res.coords, nil
	case <-reqCtx.Done():
		return models.Coordinates{}, p.classify(reqCtx, ctx, reqCtx.Err())
	}
}

// Pending reports whether a request is outstanding.
func (p *Probe) Pending() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cancel != nil
}

func (p *Probe) classify(reqCtx, parent context.Context, err error) error {
	if errors.Is(context.Cause(reqCtx), ErrSuperseded) {
		p.logger.Debug("location request superseded")
		return ErrSuperseded
	}
	if parent.Err() != nil {
		return parent.Err()
	}
	if kind, ok := KindOf(err); ok {
		p.logger.Warn("location request failed", "kind", kind, "error", err)
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		p.logger.Warn("location request timed out")
		return Fail(models.LocationTimedOut, err)
	}
	p.logger.Warn("location unavailable", "error", err)
	return Fail(models.LocationUnavailable, err)
}
