package models

// Coordinates is a single device position fix. It is never persisted.
type Coordinates struct {
	Latitude       float64 `json:"lat"`
	Longitude      float64 `json:"lon"`
	AccuracyMeters float64 `json:"accuracy"`
}

type LocationFailureKind string

const (
	LocationPermissionDenied LocationFailureKind = "PERMISSION_DENIED"
	LocationUnavailable      LocationFailureKind = "POSITION_UNAVAILABLE"
	LocationTimedOut         LocationFailureKind = "TIMEOUT"
	LocationUnsupported      LocationFailureKind = "UNSUPPORTED"
)

// UserMessage returns the actionable text shown next to the manual fallback.
func (k LocationFailureKind) UserMessage() string {
	switch k {
	case LocationPermissionDenied:
		return "Location permission denied. Please select state manually."
	case LocationUnavailable:
		return "Location unavailable. Please select state manually."
	case LocationTimedOut:
		return "Location request timed out. Please select state manually."
	case LocationUnsupported:
		return "Geolocation is not supported by your browser. Please select state manually."
	default:
		return "Unable to retrieve location. Please select state manually."
	}
}

// PositionReport is what the browser posts back after running device geolocation.
type PositionReport struct {
	Latitude  *float64            `json:"lat"`
	Longitude *float64            `json:"lon"`
	Accuracy  float64             `json:"accuracy"`
	ErrorCode LocationFailureKind `json:"error_code"`
}
