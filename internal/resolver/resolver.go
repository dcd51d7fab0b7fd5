// Package resolver turns coordinates and crop choices into the auxiliary context a
// prediction needs: administrative region, current weather and soil nutrients.
package resolver

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"yield-service/internal/models"

	"golang.org/x/sync/errgroup"
)

type RegionLookup interface {
	LookupRegion(ctx context.Context, coords models.Coordinates) (string, error)
}

type WeatherLookup interface {
	LookupWeather(ctx context.Context, coords models.Coordinates) (models.WeatherReading, error)
}

type NutrientLookup interface {
	LookupNutrients(ctx context.Context, cropType, soilType string) (models.Nutrients, error)
}

// Resolver merges independent lookups into one ResolvedContext. Every lookup is tagged
// with the generation that spawned it; results for an outdated generation are dropped.
type Resolver struct {
	region    RegionLookup
	weather   WeatherLookup
	nutrients NutrientLookup
	logger    *slog.Logger

	mu             sync.Mutex
	state          models.ResolvedContext
	regionPinned   bool
	selections     uint64
	locationGen    uint64
	regionGen      uint64
	nutrientGen    uint64
	cancelLoc      context.CancelFunc
	cancelRegion   context.CancelFunc
	cancelNutrient context.CancelFunc
	listeners      []func(models.ResolvedContext)
}

func New(region RegionLookup, weather WeatherLookup, nutrients NutrientLookup, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		region:    region,
		weather:   weather,
		nutrients: nutrients,
		logger:    logger.With("component", "context-resolver"),
		state:     models.NewResolvedContext(),
	}
}

// OnChange registers a listener called with a copy of the context after each accepted update.
func (r *Resolver) OnChange(fn func(models.ResolvedContext)) {
	r.mu.Lock()
	r.listeners = append(r.listeners, fn)
	r.mu.Unlock()
}

// Snapshot returns a copy of the current context.
func (r *Resolver) Snapshot() models.ResolvedContext {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state.Clone()
}

// Resolve starts a new location generation for coords and runs the region, weather and
// (when crop is non-nil) nutrient lookups in parallel. It returns once all of them have
// settled; the returned snapshot may already include results of a newer generation.
func (r *Resolver) Resolve(ctx context.Context, coords models.Coordinates, crop *models.NutrientKey) models.ResolvedContext {
	resolved, _ := r.ResolveIf(ctx, coords, crop, nil)
	return resolved
}

// ResolveIf is Resolve gated by proceed, which runs under the resolver lock before the new
// generation starts. When proceed returns false nothing changes and ResolveIf reports false.
// proceed must not call back into the resolver.
func (r *Resolver) ResolveIf(ctx context.Context, coords models.Coordinates, crop *models.NutrientKey, proceed func() bool) (models.ResolvedContext, bool) {
	r.mu.Lock()
	if proceed != nil && !proceed() {
		snapshot := r.state.Clone()
		r.mu.Unlock()
		return snapshot, false
	}
	if r.cancelLoc != nil {
		r.cancelLoc()
	}
	locCtx, cancelLoc := context.WithCancel(ctx)
	r.cancelLoc = cancelLoc
	r.locationGen++
	locGen := r.locationGen

	c := coords
	r.state.Coordinates = &c
	r.state.Weather = nil

	var regionCtx context.Context
	var regionGen uint64
	if !r.regionPinned {
		if r.cancelRegion != nil {
			r.cancelRegion()
		}
		var cancelRegion context.CancelFunc
		regionCtx, cancelRegion = context.WithCancel(locCtx)
		r.cancelRegion = cancelRegion
		r.regionGen++
		regionGen = r.regionGen
		r.state.Region = models.RegionUnresolved
		r.state.RegionSource = models.RegionSourceNone
	}
	r.notifyLocked()
	r.mu.Unlock()

	var g errgroup.Group
	if regionCtx != nil {
		g.Go(func() error {
			r.resolveRegion(regionCtx, coords, regionGen)
			return nil
		})
	}
	g.Go(func() error {
		r.resolveWeather(locCtx, coords, locGen)
		return nil
	})
	if crop != nil {
		g.Go(func() error {
			r.ResolveNutrients(ctx, *crop)
			return nil
		})
	}
	_ = g.Wait()

	return r.Snapshot(), true
}

// ResolveNutrients looks up nutrient values for a crop and soil type under a fresh
// nutrient generation.
func (r *Resolver) ResolveNutrients(ctx context.Context, key models.NutrientKey) {
	if r.nutrients == nil {
		return
	}

	r.mu.Lock()
	if r.cancelNutrient != nil {
		r.cancelNutrient()
	}
	nCtx, cancel := context.WithCancel(ctx)
	r.cancelNutrient = cancel
	r.nutrientGen++
	gen := r.nutrientGen
	r.state.Nutrients = nil
	r.mu.Unlock()
	defer cancel()

	values, err := r.nutrients.LookupNutrients(nCtx, key.CropType, key.SoilType)

	r.mu.Lock()
	defer r.mu.Unlock()
	if gen != r.nutrientGen {
		r.logger.Debug("discarding stale nutrient result", "crop", key.CropType, "soil_type", key.SoilType)
		return
	}
	if err != nil {
		r.logger.Warn("nutrient lookup failed", "crop", key.CropType, "soil_type", key.SoilType, "error", err)
		return
	}
	r.state.Nutrients = &values
	r.notifyLocked()
}

// SelectRegion records a user-chosen region. It wins over any automatic resolution,
// in flight or completed, until ClearRegionOverride is called.
func (r *Resolver) SelectRegion(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cancelRegion != nil {
		r.cancelRegion()
		r.cancelRegion = nil
	}
	r.regionGen++
	r.selections++
	r.regionPinned = true
	r.state.Region = strings.TrimSpace(name)
	r.state.RegionSource = models.RegionSourceUser
	r.logger.Info("region selected by user", "region", r.state.Region)
	r.notifyLocked()
}

// ClearRegionOverride lets the next Resolve detect the region again.
func (r *Resolver) ClearRegionOverride() {
	r.mu.Lock()
	r.regionPinned = false
	r.mu.Unlock()
}

// RegionSelections counts SelectRegion calls so far.
func (r *Resolver) RegionSelections() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.selections
}

// ReleaseRegionSince clears the override only if the user has not selected a region since
// the given RegionSelections value.
func (r *Resolver) ReleaseRegionSince(selections uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.selections != selections {
		return false
	}
	r.regionPinned = false
	return true
}

// Reset discards everything and invalidates all in-flight lookups.
func (r *Resolver) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, cancel := range []context.CancelFunc{r.cancelLoc, r.cancelRegion, r.cancelNutrient} {
		if cancel != nil {
			cancel()
		}
	}
	r.cancelLoc, r.cancelRegion, r.cancelNutrient = nil, nil, nil
	r.locationGen++
	r.regionGen++
	r.nutrientGen++
	r.regionPinned = false
	r.state = models.NewResolvedContext()
	r.notifyLocked()
}

func (r *Resolver) resolveRegion(ctx context.Context, coords models.Coordinates, gen uint64) {
	if r.region == nil {
		return
	}
	name, err := r.region.LookupRegion(ctx, coords)

	r.mu.Lock()
	defer r.mu.Unlock()
	if gen != r.regionGen {
		r.logger.Debug("discarding stale region result", "region", name)
		return
	}
	if err != nil || models.IsUnknownRegion(name) {
		r.logger.Warn("region unresolved, manual selection required",
			"lat", coords.Latitude, "lon", coords.Longitude, "error", err)
		return
	}
	r.state.Region = strings.TrimSpace(name)
	r.state.RegionSource = models.RegionSourceDevice
	r.notifyLocked()
}

func (r *Resolver) resolveWeather(ctx context.Context, coords models.Coordinates, gen uint64) {
	if r.weather == nil {
		return
	}
	reading, err := r.weather.LookupWeather(ctx, coords)

	r.mu.Lock()
	defer r.mu.Unlock()
	if gen != r.locationGen {
		r.logger.Debug("discarding stale weather result")
		return
	}
	if err != nil {
		r.logger.Warn("weather lookup failed", "lat", coords.Latitude, "lon", coords.Longitude, "error", err)
		return
	}
	r.state.Weather = &reading
	r.notifyLocked()
}

// notifyLocked runs listeners with r.mu held so they observe updates in order.
// Listeners must not call back into the resolver.
func (r *Resolver) notifyLocked() {
	if len(r.listeners) == 0 {
		return
	}
	snapshot := r.state.Clone()
	for _, fn := range r.listeners {
		fn(snapshot)
	}
}
