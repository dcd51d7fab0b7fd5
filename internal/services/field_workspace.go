package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"yield-service/internal/draw"
	"yield-service/internal/geometry"
	"yield-service/internal/location"
	"yield-service/internal/models"
	"yield-service/internal/notification"
	"yield-service/internal/resolver"
	"yield-service/internal/worker"
)

const (
	LocationPlatformBrowser = "browser"
	LocationPlatformIP      = "ip"
	LocationPlatformNone    = "none"
)

// Notifier pushes workspace updates to connected map pages.
type Notifier interface {
	Notify(workspaceID string, kind notification.MessageType, data any)
}

// JobSubmitter runs background work. *worker.WorkingPool satisfies it.
type JobSubmitter interface {
	TrySubmit(job worker.Job) error
}

// PredictionOutcome is handed to the history recorder after a successful submission.
type PredictionOutcome struct {
	WorkspaceID string
	Submission  SubmittedPrediction
	Boundary    []models.Vertex
}

type LocationSettings struct {
	Platform     string
	IPAPIURL     string
	Timeout      time.Duration
	HighAccuracy bool
}

// WorkspaceDeps is everything a workspace needs that outlives it.
type WorkspaceDeps struct {
	Region        resolver.RegionLookup
	Weather       resolver.WeatherLookup
	Nutrients     resolver.NutrientLookup
	Predictor     PredictionClient
	Notifier      Notifier
	Jobs          JobSubmitter
	Location      LocationSettings
	RequireRegion bool
	Regions       []string
	OnPredicted   func(ctx context.Context, outcome PredictionOutcome) error
	Logger        *slog.Logger
}

// WorkspaceSnapshot is the JSON view of a workspace.
type WorkspaceSnapshot struct {
	ID              string                   `json:"id"`
	State           models.DrawState         `json:"state"`
	AreaHectares    float64                  `json:"area_hectares"`
	Polygon         *models.Polygon          `json:"polygon,omitempty"`
	Context         models.ResolvedContext   `json:"context"`
	Crop            models.CropContext       `json:"crop"`
	Coordinates     *models.Coordinates      `json:"coordinates,omitempty"`
	DeviceFix       bool                     `json:"device_fix"`
	LocationPending bool                     `json:"location_pending"`
	LastPrediction  *models.PredictionResult `json:"last_prediction,omitempty"`
	CreatedAt       time.Time                `json:"created_at"`
}

// FieldWorkspace is one open prediction page: the drawing surface feeds the session, the
// location probe feeds the resolver, and both feed the orchestrator.
type FieldWorkspace struct {
	ID        string
	CreatedAt time.Time

	Surface      *draw.EventSurface
	Session      *draw.Session
	Resolver     *resolver.Resolver
	Probe        *location.Probe
	Orchestrator *PredictionOrchestrator

	reporter    *location.ReportedGeolocator
	notifier    Notifier
	jobs        JobSubmitter
	onPredicted func(ctx context.Context, outcome PredictionOutcome) error
	locationCfg LocationSettings
	regions     map[string]string
	logger      *slog.Logger

	mu             sync.Mutex
	coords         *models.Coordinates
	deviceFix      bool
	lastPrediction *models.PredictionResult
	lastActive     time.Time
}

// NewFieldWorkspace builds and wires a workspace. clientIP feeds the IP platform.
func NewFieldWorkspace(id, clientIP string, deps WorkspaceDeps) *FieldWorkspace {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("workspace_id", id)

	now := time.Now()
	w := &FieldWorkspace{
		ID:          id,
		CreatedAt:   now,
		Surface:     draw.NewEventSurface(id),
		Session:     draw.NewSession(logger),
		Resolver:    resolver.New(deps.Region, deps.Weather, deps.Nutrients, logger),
		notifier:    deps.Notifier,
		jobs:        deps.Jobs,
		onPredicted: deps.OnPredicted,
		locationCfg: deps.Location,
		regions:     regionCatalog(deps.Regions),
		logger:      logger.With("component", "field-workspace"),
		lastActive:  now,
	}

	opts := []OrchestratorOption{WithOnSubmitted(w.afterSubmit)}
	if deps.RequireRegion {
		opts = append(opts, WithRequireRegion())
	}
	w.Orchestrator = NewPredictionOrchestrator(deps.Predictor, logger, opts...)

	var platform location.Geolocator
	switch deps.Location.Platform {
	case LocationPlatformIP:
		platform = location.NewIPGeolocator(deps.Location.IPAPIURL, clientIP)
	case LocationPlatformNone:
	default:
		w.reporter = location.NewReportedGeolocator(func(highAccuracy bool) {
			w.notify(notification.MessageLocationRequested, map[string]any{"high_accuracy": highAccuracy})
		})
		platform = w.reporter
	}
	w.Probe = location.NewProbe(platform, logger)

	w.Session.OnAreaChanged(w.areaChanged)
	w.Resolver.OnChange(w.contextChanged)
	w.Session.Attach(w.Surface)
	return w
}

// areaChanged runs under the session lock and must not call back into the session.
func (w *FieldWorkspace) areaChanged(change models.AreaChange) {
	w.Orchestrator.SetArea(change.AreaHectares)
	w.notify(notification.MessageAreaChanged, change)

	if change.State != models.DrawStateActive || len(change.Vertices) == 0 {
		return
	}
	w.mu.Lock()
	hasFix := w.deviceFix
	w.mu.Unlock()
	if hasFix {
		return
	}
	vertices := change.Vertices
	w.runAsync("resolve-at-centroid", func(ctx context.Context) error {
		w.resolveAtCentroid(ctx, vertices)
		return nil
	})
}

func (w *FieldWorkspace) contextChanged(c models.ResolvedContext) {
	w.Orchestrator.SetResolvedContext(c)
	w.notify(notification.MessageContextChanged, c)
}

func (w *FieldWorkspace) resolveAtCentroid(ctx context.Context, vertices []models.Vertex) {
	center, err := geometry.Centroid(vertices)
	if err != nil {
		w.logger.Warn("cannot compute field centroid", "error", err)
		return
	}

	// The fix check runs under the resolver lock so a device fix that lands meanwhile
	// always starts the newer generation.
	_, started := w.Resolver.ResolveIf(ctx, center, w.autoNutrientKey(), func() bool {
		w.mu.Lock()
		defer w.mu.Unlock()
		if w.deviceFix {
			return false
		}
		w.coords = &center
		return true
	})
	if started {
		w.logger.Info("resolved context at field centroid", "lat", center.Latitude, "lon", center.Longitude)
	}
}

// DetectLocation asks the platform for a fix and resolves context at it. An explicit
// detection releases a manually selected region, unless the user picks one while the
// detection is still waiting.
func (w *FieldWorkspace) DetectLocation(ctx context.Context, timeout time.Duration, highAccuracy bool) (models.ResolvedContext, error) {
	w.touch()
	if timeout <= 0 {
		timeout = w.locationCfg.Timeout
	}

	selections := w.Resolver.RegionSelections()
	coords, err := w.Probe.RequestLocation(ctx, timeout, highAccuracy)
	if err != nil {
		if kind, ok := location.KindOf(err); ok {
			w.notify(notification.MessageLocationFailed, map[string]string{
				"kind":    string(kind),
				"message": kind.UserMessage(),
			})
		}
		return models.ResolvedContext{}, err
	}

	w.mu.Lock()
	w.coords = &coords
	w.deviceFix = true
	w.mu.Unlock()

	if !w.Resolver.ReleaseRegionSince(selections) {
		w.logger.Info("keeping region selected during detection")
	}
	return w.Resolver.Resolve(ctx, coords, w.autoNutrientKey()), nil
}

// ReportPosition forwards a browser position report. False means no detection was waiting.
func (w *FieldWorkspace) ReportPosition(report models.PositionReport) bool {
	w.touch()
	if w.reporter == nil {
		return false
	}
	return w.reporter.Report(report)
}

// SelectRegion pins a region from the catalog; names match case-insensitively.
func (w *FieldWorkspace) SelectRegion(name string) error {
	w.touch()
	name = strings.TrimSpace(name)
	if name == "" || models.IsUnknownRegion(name) {
		return fmt.Errorf("%w: region name is required", models.ErrIncompletePrecondition)
	}
	canonical, ok := w.regions[strings.ToLower(name)]
	if !ok {
		return fmt.Errorf("%w: unknown region %q", models.ErrIncompletePrecondition, name)
	}
	w.Resolver.SelectRegion(canonical)
	return nil
}

func regionCatalog(names []string) map[string]string {
	if len(names) == 0 {
		names = models.IndianStates
	}
	catalog := make(map[string]string, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n != "" {
			catalog[strings.ToLower(n)] = n
		}
	}
	return catalog
}

// UpdateCrop stores the crop form. In auto mode the nutrient lookup reruns when crop or soil changed.
func (w *FieldWorkspace) UpdateCrop(ctx context.Context, crop models.CropContext) models.ResolvedContext {
	w.touch()
	if crop.NutrientMode == "" {
		crop.NutrientMode = models.NutrientModeAuto
	}
	previous := w.Orchestrator.CropContext()
	w.Orchestrator.SetCropContext(crop)

	if crop.NutrientMode != models.NutrientModeAuto {
		return w.Resolver.Snapshot()
	}
	current := w.Resolver.Snapshot()
	if previous.NutrientKey() != crop.NutrientKey() || current.Nutrients == nil || previous.NutrientMode != crop.NutrientMode {
		w.Resolver.ResolveNutrients(ctx, crop.NutrientKey())
	}
	return w.Resolver.Snapshot()
}

// Submit sends the prediction; the identity may be nil for anonymous users.
func (w *FieldWorkspace) Submit(ctx context.Context, identity *models.Identity) (*models.PredictionResult, error) {
	w.touch()
	return w.Orchestrator.Submit(ctx, identity)
}

func (w *FieldWorkspace) afterSubmit(submitted SubmittedPrediction) {
	result := submitted.Result
	w.mu.Lock()
	w.lastPrediction = &result
	coords := w.coords
	w.mu.Unlock()

	w.notify(notification.MessagePredictionResult, result)

	if w.onPredicted != nil {
		outcome := PredictionOutcome{WorkspaceID: w.ID, Submission: submitted}
		if polygon, ok := w.Session.Polygon(); ok {
			outcome.Boundary = polygon.Vertices
		}
		w.runAsync("record-prediction", func(ctx context.Context) error {
			return w.onPredicted(ctx, outcome)
		})
	}

	if coords == nil {
		return
	}
	at := *coords
	w.runAsync("refresh-context", func(ctx context.Context) error {
		w.Resolver.Resolve(ctx, at, w.autoNutrientKey())
		return nil
	})
}

// Publish feeds a drawing event into the surface.
func (w *FieldWorkspace) Publish(event draw.SurfaceEvent) {
	w.touch()
	w.Surface.Publish(event)
}

func (w *FieldWorkspace) Snapshot() WorkspaceSnapshot {
	snap := WorkspaceSnapshot{
		ID:              w.ID,
		State:           w.Session.State(),
		AreaHectares:    w.Session.Area(),
		Context:         w.Resolver.Snapshot(),
		Crop:            w.Orchestrator.CropContext(),
		LocationPending: w.Probe.Pending(),
		CreatedAt:       w.CreatedAt,
	}
	if polygon, ok := w.Session.Polygon(); ok {
		snap.Polygon = &polygon
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.coords != nil {
		c := *w.coords
		snap.Coordinates = &c
	}
	snap.DeviceFix = w.deviceFix
	if w.lastPrediction != nil {
		p := *w.lastPrediction
		snap.LastPrediction = &p
	}
	return snap
}

// Reset clears the drawing, the context and the last fix. The crop form is kept.
func (w *FieldWorkspace) Reset() {
	w.touch()
	w.Session.Reset()
	w.Resolver.Reset()
	w.Orchestrator.Reset()

	w.mu.Lock()
	w.coords = nil
	w.deviceFix = false
	w.lastPrediction = nil
	w.mu.Unlock()
}

// Close detaches the surface. The workspace must not be used afterwards.
func (w *FieldWorkspace) Close() {
	w.Session.Detach(w.Surface)
}

func (w *FieldWorkspace) LastActive() time.Time {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastActive
}

func (w *FieldWorkspace) touch() {
	w.mu.Lock()
	w.lastActive = time.Now()
	w.mu.Unlock()
}

func (w *FieldWorkspace) autoNutrientKey() *models.NutrientKey {
	crop := w.Orchestrator.CropContext()
	if crop.NutrientMode == models.NutrientModeManual {
		return nil
	}
	key := crop.NutrientKey()
	return &key
}

func (w *FieldWorkspace) notify(kind notification.MessageType, data any) {
	if w.notifier == nil {
		return
	}
	w.notifier.Notify(w.ID, kind, data)
}

// runAsync hands work to the job pool, or to a goroutine when there is none.
func (w *FieldWorkspace) runAsync(name string, job worker.Job) {
	logged := func(ctx context.Context) error {
		if err := job(ctx); err != nil && !errors.Is(err, context.Canceled) {
			w.logger.Error("workspace job failed", "job", name, "error", err)
			return err
		}
		return nil
	}
	if w.jobs != nil {
		if err := w.jobs.TrySubmit(logged); err != nil {
			w.logger.Warn("workspace job rejected", "job", name, "error", err)
		}
		return
	}
	go logged(context.Background())
}
