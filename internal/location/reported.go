package location

import (
	"context"
	"fmt"
	"sync"

	"yield-service/internal/models"
)

// ReportedGeolocator bridges to geolocation running in the browser: Locate announces a
// request through the prompt callback and waits for the page to post a PositionReport.
type ReportedGeolocator struct {
	prompt func(highAccuracy bool)

	mu      sync.Mutex
	waiting chan models.PositionReport
}

func NewReportedGeolocator(prompt func(highAccuracy bool)) *ReportedGeolocator {
	return &ReportedGeolocator{prompt: prompt}
}

func (r *ReportedGeolocator) Locate(ctx context.Context, highAccuracy bool) (models.Coordinates, error) {
	ch := make(chan models.PositionReport, 1)

	r.mu.Lock()
	r.waiting = ch
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		if r.waiting == ch {
			r.waiting = nil
		}
		r.mu.Unlock()
	}()

	if r.prompt != nil {
		r.prompt(highAccuracy)
	}

	select {
	case report := <-ch:
		return fromReport(report)
	case <-ctx.Done():
		return models.Coordinates{}, ctx.Err()
	}
}

// Report hands a browser report to the pending Locate call. It returns false when no
// request is waiting, in which case the report is dropped.
func (r *ReportedGeolocator) Report(report models.PositionReport) bool {
	r.mu.Lock()
	ch := r.waiting
	r.waiting = nil
	r.mu.Unlock()

	if ch == nil {
		return false
	}
	ch <- report
	return true
}

func fromReport(report models.PositionReport) (models.Coordinates, error) {
	if report.ErrorCode != "" {
		switch report.ErrorCode {
		case models.LocationPermissionDenied, models.LocationUnavailable,
			models.LocationTimedOut, models.LocationUnsupported:
			return models.Coordinates{}, Fail(report.ErrorCode, nil)
		default:
			return models.Coordinates{}, Fail(models.LocationUnavailable, fmt.Errorf("unknown error code %q", report.ErrorCode))
		}
	}
	if report.Latitude == nil || report.Longitude == nil {
		return models.Coordinates{}, Fail(models.LocationUnavailable, fmt.Errorf("report carries no position"))
	}

	lat, lon := *report.Latitude, *report.Longitude
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return models.Coordinates{}, Fail(models.LocationUnavailable, fmt.Errorf("position out of range (%v, %v)", lat, lon))
	}
	return models.Coordinates{Latitude: lat, Longitude: lon, AccuracyMeters: report.Accuracy}, nil
}
