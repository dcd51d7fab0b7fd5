package location

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"yield-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type geolocatorFunc func(ctx context.Context, highAccuracy bool) (models.Coordinates, error)

func (f geolocatorFunc) Locate(ctx context.Context, highAccuracy bool) (models.Coordinates, error) {
	return f(ctx, highAccuracy)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRequestLocation_Success(t *testing.T) {
	var gotHighAccuracy bool
	probe := NewProbe(geolocatorFunc(func(ctx context.Context, high bool) (models.Coordinates, error) {
		gotHighAccuracy = high
		return models.Coordinates{Latitude: 23.02, Longitude: 72.57, AccuracyMeters: 12}, nil
	}), quietLogger())

	coords, err := probe.RequestLocation(context.Background(), time.Second, true)

	require.NoError(t, err)
	assert.Equal(t, 23.02, coords.Latitude)
	assert.True(t, gotHighAccuracy)
	assert.False(t, probe.Pending())
}

func TestRequestLocation_NoPlatformIsUnsupported(t *testing.T) {
	probe := NewProbe(nil, quietLogger())

	_, err := probe.RequestLocation(context.Background(), time.Second, false)

	kind, ok := KindOf(err)
	require.True(t, ok)
	assert.Equal(t, models.LocationUnsupported, kind)
}

func TestRequestLocation_TimeoutEvenIfPlatformHangs(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	probe := NewProbe(geolocatorFunc(func(ctx context.Context, _ bool) (models.Coordinates, error) {
		<-release
		return models.Coordinates{}, nil
	}), quietLogger())

	start := time.Now()
	_, err := probe.RequestLocation(context.Background(), 30*time.Millisecond, true)

	kind, ok := KindOf(err)
	require.True(t, ok, "got %v", err)
	assert.Equal(t, models.LocationTimedOut, kind)
	assert.Less(t, time.Since(start), time.Second)
}

func TestRequestLocation_PlatformFailureKeepsKind(t *testing.T) {
	probe := NewProbe(geolocatorFunc(func(context.Context, bool) (models.Coordinates, error) {
		return models.Coordinates{}, Fail(models.LocationPermissionDenied, nil)
	}), quietLogger())

	_, err := probe.RequestLocation(context.Background(), time.Second, true)

	kind, _ := KindOf(err)
	assert.Equal(t, models.LocationPermissionDenied, kind)
}

func TestRequestLocation_UnclassifiedErrorIsUnavailable(t *testing.T) {
	probe := NewProbe(geolocatorFunc(func(context.Context, bool) (models.Coordinates, error) {
		return models.Coordinates{}, errors.New("gps chip on fire")
	}), quietLogger())

	_, err := probe.RequestLocation(context.Background(), time.Second, true)

	kind, _ := KindOf(err)
	assert.Equal(t, models.LocationUnavailable, kind)
}

func TestRequestLocation_NewRequestSupersedesPending(t *testing.T) {
	started := make(chan struct{}, 1)
	calls := 0
	probe := NewProbe(geolocatorFunc(func(ctx context.Context, _ bool) (models.Coordinates, error) {
		calls++
		if calls == 1 {
			started <- struct{}{}
			<-ctx.Done()
			return models.Coordinates{}, ctx.Err()
		}
		return models.Coordinates{Latitude: 1, Longitude: 2}, nil
	}), quietLogger())

	firstErr := make(chan error, 1)
	go func() {
		_, err := probe.RequestLocation(context.Background(), 5*time.Second, true)
		firstErr <- err
	}()
	<-started

	coords, err := probe.RequestLocation(context.Background(), 5*time.Second, true)
	require.NoError(t, err)
	assert.Equal(t, 1.0, coords.Latitude)

	select {
	case err := <-firstErr:
		assert.ErrorIs(t, err, ErrSuperseded)
	case <-time.After(time.Second):
		t.Fatal("first request never returned")
	}
}

func TestRequestLocation_CallerCancellation(t *testing.T) {
	probe := NewProbe(geolocatorFunc(func(ctx context.Context, _ bool) (models.Coordinates, error) {
		<-ctx.Done()
		return models.Coordinates{}, ctx.Err()
	}), quietLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := probe.RequestLocation(ctx, time.Second, false)

	assert.ErrorIs(t, err, context.Canceled)
	_, classified := KindOf(err)
	assert.False(t, classified)
}

func TestReportedGeolocator(t *testing.T) {
	prompted := make(chan bool, 1)
	g := NewReportedGeolocator(func(high bool) { prompted <- high })
	probe := NewProbe(g, quietLogger())

	assert.False(t, g.Report(models.PositionReport{}), "nobody is waiting yet")

	go func() {
		<-prompted
		lat, lon := 21.17, 72.83
		g.Report(models.PositionReport{Latitude: &lat, Longitude: &lon, Accuracy: 8})
	}()

	coords, err := probe.RequestLocation(context.Background(), time.Second, true)
	require.NoError(t, err)
	assert.Equal(t, 72.83, coords.Longitude)
	assert.Equal(t, 8.0, coords.AccuracyMeters)
}

func TestReportedGeolocator_ErrorCodes(t *testing.T) {
	cases := map[models.LocationFailureKind]models.LocationFailureKind{
		models.LocationPermissionDenied: models.LocationPermissionDenied,
		models.LocationUnavailable:      models.LocationUnavailable,
		models.LocationTimedOut:         models.LocationTimedOut,
		models.LocationUnsupported:      models.LocationUnsupported,
		"SOMETHING_ELSE":                models.LocationUnavailable,
	}

	for code, want := range cases {
		t.Run(string(code), func(t *testing.T) {
			_, err := fromReport(models.PositionReport{ErrorCode: code})
			kind, ok := KindOf(err)
			require.True(t, ok)
			assert.Equal(t, want, kind)
		})
	}
}

func TestIPGeolocator(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/json/8.8.8.8", r.URL.Path)
		_, _ = w.Write([]byte(`{"status":"success","lat":37.4,"lon":-122.1}`))
	}))
	defer srv.Close()

	coords, err := NewIPGeolocator(srv.URL, "8.8.8.8").Locate(context.Background(), true)

	require.NoError(t, err)
	assert.Equal(t, 37.4, coords.Latitude)
	assert.Equal(t, cityLevelAccuracy, coords.AccuracyMeters)
}

func TestIPGeolocator_PrivateAddress(t *testing.T) {
	_, err := NewIPGeolocator("http://unused", "192.168.1.4").Locate(context.Background(), true)

	kind, _ := KindOf(err)
	assert.Equal(t, models.LocationUnavailable, kind)
}
