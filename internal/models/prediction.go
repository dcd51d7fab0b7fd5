package models

import (
	"time"

	"github.com/google/uuid"
)

// Identity is the authenticated user, passed explicitly into submissions.
type Identity struct {
	UserID string
	Email  string
	Token  string
}

// PredictionRequest is the outbound payload, assembled only at submission time.
type PredictionRequest struct {
	CropType     string       `json:"crop"`
	Season       string       `json:"season"`
	SoilType     string       `json:"soil_type"`
	N            float64      `json:"N"`
	P            float64      `json:"P"`
	K            float64      `json:"K"`
	PH           float64      `json:"ph"`
	NutrientMode NutrientMode `json:"input_mode"`
	AreaHectares float64      `json:"area"`
	Region       *string      `json:"state,omitempty"`
	Rainfall     *float64     `json:"rainfall,omitempty"`
	Temperature  *float64     `json:"temperature,omitempty"`
	Humidity     *float64     `json:"humidity,omitempty"`
	UserEmail    *string      `json:"user_email,omitempty"`
}

// PredictionResult carries the service's own figures unchanged.
type PredictionResult struct {
	PerHectare   float64         `json:"predicted_yield_per_ha"`
	Total        float64         `json:"total_yield"`
	AreaHectares float64         `json:"area_hectares"`
	Weather      *WeatherReading `json:"weather,omitempty"`
}

// PredictionRecord is a stored prediction of an identified user.
type PredictionRecord struct {
	ID           uuid.UUID `json:"id" db:"id"`
	UserEmail    string    `json:"user_email" db:"user_email"`
	CropType     string    `json:"crop" db:"crop"`
	SoilType     string    `json:"soil_type" db:"soil_type"`
	Season       string    `json:"season" db:"season"`
	AreaHectares float64   `json:"area" db:"area"`
	N            float64   `json:"N" db:"n"`
	P            float64   `json:"P" db:"p"`
	K            float64   `json:"K" db:"k"`
	PH           float64   `json:"ph" db:"ph"`
	Region       *string   `json:"state,omitempty" db:"state"`
	Boundary     *string   `json:"boundary_wkt,omitempty" db:"boundary"`
	PerHectare   float64   `json:"predicted_yield" db:"predicted_yield"`
	Total        float64   `json:"total_yield" db:"total_yield"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}
