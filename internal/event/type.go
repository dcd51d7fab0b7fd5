package event

import "time"

const PredictionCompletedQueue string = "yield_prediction_events"

// PredictionCompletedEvent is emitted once per successful prediction.
type PredictionCompletedEvent struct {
	EventID      string    `json:"event_id"`
	WorkspaceID  string    `json:"workspace_id"`
	UserEmail    string    `json:"user_email,omitempty"`
	CropType     string    `json:"crop"`
	Season       string    `json:"season"`
	SoilType     string    `json:"soil_type"`
	Region       string    `json:"state,omitempty"`
	AreaHectares float64   `json:"area"`
	PerHectare   float64   `json:"predicted_yield_per_ha"`
	Total        float64   `json:"total_yield"`
	OccurredAt   time.Time `json:"occurred_at"`
}
