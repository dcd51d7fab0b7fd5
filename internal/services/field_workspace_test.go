package services

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"yield-service/internal/draw"
	"yield-service/internal/location"
	"yield-service/internal/models"
	"yield-service/internal/notification"
	"yield-service/internal/worker"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// TEST HELPERS
// ============================================================================

type regionStub struct {
	name  string
	err   error
	calls atomic.Int32
}

func (s *regionStub) LookupRegion(_ context.Context, _ models.Coordinates) (string, error) {
	s.calls.Add(1)
	return s.name, s.err
}

type weatherStub struct{}

func (weatherStub) LookupWeather(_ context.Context, _ models.Coordinates) (models.WeatherReading, error) {
	return models.WeatherReading{Rainfall: 80, Temperature: 31, Humidity: 55}, nil
}

type nutrientStub struct {
	mu   sync.Mutex
	keys []models.NutrientKey
}

func (s *nutrientStub) LookupNutrients(_ context.Context, cropType, soilType string) (models.Nutrients, error) {
	s.mu.Lock()
	s.keys = append(s.keys, models.NutrientKey{CropType: cropType, SoilType: soilType})
	s.mu.Unlock()
	return models.Nutrients{N: 90, P: 40, K: 35, PH: 7.1}, nil
}

func (s *nutrientStub) calls() []models.NutrientKey {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.NutrientKey(nil), s.keys...)
}

type recordingNotifier struct {
	mu    sync.Mutex
	kinds []notification.MessageType
}

func (n *recordingNotifier) Notify(_ string, kind notification.MessageType, _ any) {
	n.mu.Lock()
	n.kinds = append(n.kinds, kind)
	n.mu.Unlock()
}

func (n *recordingNotifier) has(kind notification.MessageType) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, k := range n.kinds {
		if k == kind {
			return true
		}
	}
	return false
}

// inlineJobs runs every job on the caller's goroutine.
type inlineJobs struct{}

func (inlineJobs) TrySubmit(job worker.Job) error {
	return job(context.Background())
}

// heldJobs keeps submitted jobs until the test runs them.
type heldJobs struct {
	mu   sync.Mutex
	jobs []worker.Job
}

func (h *heldJobs) TrySubmit(job worker.Job) error {
	h.mu.Lock()
	h.jobs = append(h.jobs, job)
	h.mu.Unlock()
	return nil
}

func (h *heldJobs) take() []worker.Job {
	h.mu.Lock()
	defer h.mu.Unlock()
	jobs := h.jobs
	h.jobs = nil
	return jobs
}

type workspaceFixture struct {
	region    *regionStub
	nutrients *nutrientStub
	client    *MockPredictionClient
	notifier  *recordingNotifier
	outcomes  chan PredictionOutcome
	deps      WorkspaceDeps
}

func newWorkspaceFixture(platform string) *workspaceFixture {
	f := &workspaceFixture{
		region:    &regionStub{name: "Gujarat"},
		nutrients: &nutrientStub{},
		client:    new(MockPredictionClient),
		notifier:  &recordingNotifier{},
		outcomes:  make(chan PredictionOutcome, 4),
	}
	f.deps = WorkspaceDeps{
		Region:    f.region,
		Weather:   weatherStub{},
		Nutrients: f.nutrients,
		Predictor: f.client,
		Notifier:  f.notifier,
		Jobs:      inlineJobs{},
		Location:  LocationSettings{Platform: platform, Timeout: 2 * time.Second},
		OnPredicted: func(_ context.Context, outcome PredictionOutcome) error {
			f.outcomes <- outcome
			return nil
		},
		Logger: discardLogger(),
	}
	return f
}

func rectangle() []models.Vertex {
	return []models.Vertex{
		{Lon: 72.50, Lat: 23.00},
		{Lon: 72.51, Lat: 23.00},
		{Lon: 72.51, Lat: 23.01},
		{Lon: 72.50, Lat: 23.01},
	}
}

func detectAsync(w *FieldWorkspace) <-chan error {
	done := make(chan error, 1)
	go func() {
		_, err := w.DetectLocation(context.Background(), 2*time.Second, true)
		done <- err
	}()
	return done
}

// ============================================================================
// DRAWING
// ============================================================================

func TestWorkspace_DrawingFeedsAreaAndCentroidContext(t *testing.T) {
	f := newWorkspaceFixture(LocationPlatformBrowser)
	w := NewFieldWorkspace("ws-1", "", f.deps)

	w.Publish(draw.SurfaceEvent{Kind: draw.EventPolygonCreated, Vertices: rectangle()})

	assert.Greater(t, w.Orchestrator.Area(), 100.0)
	snap := w.Snapshot()
	assert.Equal(t, models.DrawStateActive, snap.State)
	require.NotNil(t, snap.Polygon)
	require.NotNil(t, snap.Coordinates)
	assert.InDelta(t, 23.005, snap.Coordinates.Latitude, 1e-6)
	assert.InDelta(t, 72.505, snap.Coordinates.Longitude, 1e-6)
	assert.False(t, snap.DeviceFix)
	assert.Equal(t, "Gujarat", snap.Context.Region)
	require.NotNil(t, snap.Context.Nutrients)
	assert.True(t, f.notifier.has(notification.MessageAreaChanged))
	assert.True(t, f.notifier.has(notification.MessageContextChanged))

	w.Publish(draw.SurfaceEvent{Kind: draw.EventPolygonRemoved})

	assert.Zero(t, w.Orchestrator.Area())
	assert.Equal(t, models.DrawStateEmpty, w.Snapshot().State)
}

// ============================================================================
// LOCATION
// ============================================================================

func TestWorkspace_DetectLocationWithBrowserReport(t *testing.T) {
	f := newWorkspaceFixture(LocationPlatformBrowser)
	w := NewFieldWorkspace("ws-1", "", f.deps)
	require.NoError(t, w.SelectRegion("Punjab"))

	done := detectAsync(w)
	require.Eventually(t, func() bool { return f.notifier.has(notification.MessageLocationRequested) }, time.Second, 5*time.Millisecond)

	lat, lon := 21.17, 72.83
	require.True(t, w.ReportPosition(models.PositionReport{Latitude: &lat, Longitude: &lon, Accuracy: 12}))
	require.NoError(t, <-done)

	snap := w.Snapshot()
	assert.True(t, snap.DeviceFix)
	require.NotNil(t, snap.Coordinates)
	assert.Equal(t, lat, snap.Coordinates.Latitude)
	// explicit detection releases the manual region
	assert.Equal(t, "Gujarat", snap.Context.Region)
	assert.Equal(t, models.RegionSourceDevice, snap.Context.RegionSource)
	require.NotNil(t, snap.Context.Weather)

	// with a device fix, drawing no longer resolves at the centroid
	before := f.region.calls.Load()
	w.Publish(draw.SurfaceEvent{Kind: draw.EventPolygonCreated, Vertices: rectangle()})
	assert.Equal(t, before, f.region.calls.Load())
}

func TestWorkspace_RegionSelectedDuringDetectionPersists(t *testing.T) {
	f := newWorkspaceFixture(LocationPlatformBrowser)
	w := NewFieldWorkspace("ws-1", "", f.deps)

	done := detectAsync(w)
	require.Eventually(t, w.Probe.Pending, time.Second, 5*time.Millisecond)
	require.NoError(t, w.SelectRegion("Punjab"))

	lat, lon := 23.0, 72.5
	require.True(t, w.ReportPosition(models.PositionReport{Latitude: &lat, Longitude: &lon}))
	require.NoError(t, <-done)

	snap := w.Snapshot()
	assert.True(t, snap.DeviceFix)
	assert.Equal(t, "Punjab", snap.Context.Region)
	assert.Equal(t, models.RegionSourceUser, snap.Context.RegionSource)
	require.NotNil(t, snap.Context.Weather)
}

func TestWorkspace_DeviceFixWinsOverCentroid(t *testing.T) {
	for i := 0; i < 20; i++ {
		f := newWorkspaceFixture(LocationPlatformBrowser)
		jobs := &heldJobs{}
		f.deps.Jobs = jobs
		w := NewFieldWorkspace("ws-1", "", f.deps)

		w.Publish(draw.SurfaceEvent{Kind: draw.EventPolygonCreated, Vertices: rectangle()})
		centroid := jobs.take()
		require.Len(t, centroid, 1)

		done := detectAsync(w)
		require.Eventually(t, w.Probe.Pending, time.Second, time.Millisecond)

		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = centroid[0](context.Background())
		}()
		lat, lon := 10.0, 77.0
		require.True(t, w.ReportPosition(models.PositionReport{Latitude: &lat, Longitude: &lon}))
		require.NoError(t, <-done)
		wg.Wait()

		snap := w.Snapshot()
		require.True(t, snap.DeviceFix)
		require.NotNil(t, snap.Coordinates)
		require.NotNil(t, snap.Context.Coordinates)
		assert.Equal(t, lat, snap.Coordinates.Latitude)
		assert.Equal(t, lat, snap.Context.Coordinates.Latitude, "resolver follows the device fix")
		assert.Equal(t, lon, snap.Context.Coordinates.Longitude)
	}
}

func TestWorkspace_CentroidSkippedAfterDeviceFix(t *testing.T) {
	f := newWorkspaceFixture(LocationPlatformBrowser)
	jobs := &heldJobs{}
	f.deps.Jobs = jobs
	w := NewFieldWorkspace("ws-1", "", f.deps)

	w.Publish(draw.SurfaceEvent{Kind: draw.EventPolygonCreated, Vertices: rectangle()})
	centroid := jobs.take()
	require.Len(t, centroid, 1)

	done := detectAsync(w)
	require.Eventually(t, w.Probe.Pending, time.Second, 5*time.Millisecond)
	lat, lon := 10.0, 77.0
	require.True(t, w.ReportPosition(models.PositionReport{Latitude: &lat, Longitude: &lon}))
	require.NoError(t, <-done)
	calls := f.region.calls.Load()

	require.NoError(t, centroid[0](context.Background()))

	assert.Equal(t, calls, f.region.calls.Load())
	snap := w.Snapshot()
	require.NotNil(t, snap.Context.Coordinates)
	assert.Equal(t, lat, snap.Context.Coordinates.Latitude)
}

func TestWorkspace_DetectLocationFailureIsReported(t *testing.T) {
	f := newWorkspaceFixture(LocationPlatformBrowser)
	w := NewFieldWorkspace("ws-1", "", f.deps)

	done := detectAsync(w)
	require.Eventually(t, func() bool { return f.notifier.has(notification.MessageLocationRequested) }, time.Second, 5*time.Millisecond)
	require.True(t, w.ReportPosition(models.PositionReport{ErrorCode: models.LocationPermissionDenied}))

	err := <-done
	kind, ok := location.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, models.LocationPermissionDenied, kind)
	assert.True(t, f.notifier.has(notification.MessageLocationFailed))
	assert.False(t, w.Snapshot().DeviceFix)
}

func TestWorkspace_NoPlatformIsUnsupported(t *testing.T) {
	f := newWorkspaceFixture(LocationPlatformNone)
	w := NewFieldWorkspace("ws-1", "", f.deps)

	_, err := w.DetectLocation(context.Background(), time.Second, false)

	kind, ok := location.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, models.LocationUnsupported, kind)
	assert.False(t, w.ReportPosition(models.PositionReport{ErrorCode: models.LocationTimedOut}))
}

func TestWorkspace_SelectRegionRejectsBlank(t *testing.T) {
	f := newWorkspaceFixture(LocationPlatformBrowser)
	w := NewFieldWorkspace("ws-1", "", f.deps)

	assert.ErrorIs(t, w.SelectRegion("  "), models.ErrIncompletePrecondition)
	assert.ErrorIs(t, w.SelectRegion("unknown"), models.ErrIncompletePrecondition)

	require.NoError(t, w.SelectRegion(" kerala "))
	snap := w.Snapshot()
	assert.Equal(t, "Kerala", snap.Context.Region)
	assert.Equal(t, models.RegionSourceUser, snap.Context.RegionSource)
}

func TestWorkspace_SelectRegionUsesCatalog(t *testing.T) {
	f := newWorkspaceFixture(LocationPlatformBrowser)
	w := NewFieldWorkspace("ws-1", "", f.deps)
	assert.ErrorIs(t, w.SelectRegion("Atlantis"), models.ErrIncompletePrecondition)
	assert.Equal(t, models.RegionSourceNone, w.Snapshot().Context.RegionSource)

	f.deps.Regions = []string{"Gujarat", "Maharashtra"}
	w = NewFieldWorkspace("ws-2", "", f.deps)
	assert.ErrorIs(t, w.SelectRegion("Kerala"), models.ErrIncompletePrecondition)
	require.NoError(t, w.SelectRegion("MAHARASHTRA"))
	assert.Equal(t, "Maharashtra", w.Snapshot().Context.Region)
}

// ============================================================================
// CROP FORM
// ============================================================================

func TestWorkspace_UpdateCropRefreshesNutrientsInAutoMode(t *testing.T) {
	f := newWorkspaceFixture(LocationPlatformBrowser)
	w := NewFieldWorkspace("ws-1", "", f.deps)

	ctx := w.UpdateCrop(context.Background(), models.CropContext{CropType: "Rice", Season: "Kharif", SoilType: "Loamy"})

	require.NotNil(t, ctx.Nutrients)
	assert.Equal(t, []models.NutrientKey{{CropType: "Rice", SoilType: "Loamy"}}, f.nutrients.calls())
	assert.Equal(t, models.NutrientModeAuto, w.Orchestrator.CropContext().NutrientMode)

	// unchanged crop and soil does not refetch
	w.UpdateCrop(context.Background(), models.CropContext{CropType: "Rice", Season: "Zaid", SoilType: "Loamy"})
	assert.Len(t, f.nutrients.calls(), 1)

	w.UpdateCrop(context.Background(), models.CropContext{
		CropType: "Maize", Season: "Kharif", SoilType: "Sandy", NutrientMode: models.NutrientModeManual,
		N: floatPtr(1), P: floatPtr(2), K: floatPtr(3), PH: floatPtr(6),
	})
	assert.Len(t, f.nutrients.calls(), 1)
}

// ============================================================================
// SUBMISSION
// ============================================================================

func TestWorkspace_SubmitRecordsAndRefreshesContext(t *testing.T) {
	f := newWorkspaceFixture(LocationPlatformBrowser)
	w := NewFieldWorkspace("ws-1", "", f.deps)
	w.Publish(draw.SurfaceEvent{Kind: draw.EventPolygonCreated, Vertices: rectangle()})
	regionCalls := f.region.calls.Load()

	identity := &models.Identity{Email: "farmer@example.com", Token: "t"}
	f.client.On("Predict", mock.Anything, mock.Anything, identity).
		Return(models.PredictionResult{PerHectare: 3.1, Total: 400}, nil).Once()

	result, err := w.Submit(context.Background(), identity)

	require.NoError(t, err)
	assert.Equal(t, 3.1, result.PerHectare)

	select {
	case outcome := <-f.outcomes:
		assert.Equal(t, "ws-1", outcome.WorkspaceID)
		assert.Len(t, outcome.Boundary, 4)
		assert.Equal(t, identity, outcome.Submission.Identity)
	default:
		t.Fatal("prediction outcome was not recorded")
	}

	snap := w.Snapshot()
	require.NotNil(t, snap.LastPrediction)
	assert.Equal(t, 400.0, snap.LastPrediction.Total)
	// context was discarded and re-resolved at the same coordinates
	assert.Equal(t, regionCalls+1, f.region.calls.Load())
	assert.Equal(t, "Gujarat", snap.Context.Region)
	assert.True(t, f.notifier.has(notification.MessagePredictionResult))
	f.client.AssertExpectations(t)
}

func TestWorkspace_SubmitFailureDoesNotRecord(t *testing.T) {
	f := newWorkspaceFixture(LocationPlatformBrowser)
	w := NewFieldWorkspace("ws-1", "", f.deps)
	w.Publish(draw.SurfaceEvent{Kind: draw.EventPolygonCreated, Vertices: rectangle()})

	f.client.On("Predict", mock.Anything, mock.Anything, mock.Anything).
		Return(models.PredictionResult{}, errors.New("boom")).Once()

	_, err := w.Submit(context.Background(), nil)

	assert.ErrorIs(t, err, models.ErrPredictionFailed)
	assert.Empty(t, f.outcomes)
	assert.Nil(t, w.Snapshot().LastPrediction)
}

func TestWorkspace_ResetKeepsCropForm(t *testing.T) {
	f := newWorkspaceFixture(LocationPlatformBrowser)
	w := NewFieldWorkspace("ws-1", "", f.deps)
	w.UpdateCrop(context.Background(), models.CropContext{CropType: "Cotton", Season: "Kharif", SoilType: "Black"})
	w.Publish(draw.SurfaceEvent{Kind: draw.EventPolygonCreated, Vertices: rectangle()})

	w.Reset()

	snap := w.Snapshot()
	assert.Equal(t, models.DrawStateEmpty, snap.State)
	assert.Nil(t, snap.Polygon)
	assert.Nil(t, snap.Coordinates)
	assert.Equal(t, models.NewResolvedContext(), snap.Context)
	assert.Equal(t, "Cotton", snap.Crop.CropType)
	assert.Zero(t, w.Orchestrator.Area())
}

// ============================================================================
// REGISTRY
// ============================================================================

func TestWorkspaceRegistry_Lifecycle(t *testing.T) {
	f := newWorkspaceFixture(LocationPlatformNone)
	var removed []string
	r := NewWorkspaceRegistry(f.deps, time.Hour, func(id string) { removed = append(removed, id) })

	w := r.Create("10.0.0.1")
	got, err := r.Get(w.ID)
	require.NoError(t, err)
	assert.Same(t, w, got)
	assert.Equal(t, 1, r.Len())

	assert.True(t, r.Remove(w.ID))
	assert.False(t, r.Remove(w.ID))
	assert.Equal(t, []string{w.ID}, removed)
	assert.Zero(t, w.Surface.Subscribers())

	_, err = r.Get(w.ID)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestWorkspaceRegistry_SweepIdle(t *testing.T) {
	f := newWorkspaceFixture(LocationPlatformNone)
	r := NewWorkspaceRegistry(f.deps, time.Hour, nil)
	stale := r.Create("")
	fresh := r.Create("")

	stale.mu.Lock()
	stale.lastActive = time.Now().Add(-2 * time.Hour)
	stale.mu.Unlock()

	require.NoError(t, r.SweepIdle(context.Background()))

	_, err := r.Get(stale.ID)
	assert.ErrorIs(t, err, models.ErrNotFound)
	_, err = r.Get(fresh.ID)
	assert.NoError(t, err)
}
