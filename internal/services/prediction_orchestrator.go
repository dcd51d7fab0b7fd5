package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"yield-service/internal/models"
)

// PredictionClient is the remote yield model.
type PredictionClient interface {
	Predict(ctx context.Context, req models.PredictionRequest, identity *models.Identity) (models.PredictionResult, error)
}

// SubmittedPrediction describes one successful submission.
type SubmittedPrediction struct {
	Request  models.PredictionRequest
	Result   models.PredictionResult
	Identity *models.Identity
}

type OrchestratorOption func(*PredictionOrchestrator)

// WithRequireRegion rejects submissions whose region was neither detected nor selected.
func WithRequireRegion() OrchestratorOption {
	return func(o *PredictionOrchestrator) { o.requireRegion = true }
}

// WithOnSubmitted registers a hook run after every successful submission.
func WithOnSubmitted(fn func(SubmittedPrediction)) OrchestratorOption {
	return func(o *PredictionOrchestrator) { o.onSubmitted = fn }
}

// PredictionOrchestrator holds the latest area, resolved context and crop form, and
// assembles them into a single prediction request on Submit.
type PredictionOrchestrator struct {
	client        PredictionClient
	logger        *slog.Logger
	requireRegion bool
	onSubmitted   func(SubmittedPrediction)

	mu         sync.Mutex
	area       float64
	context    models.ResolvedContext
	contextVer uint64
	crop       models.CropContext
}

func NewPredictionOrchestrator(client PredictionClient, logger *slog.Logger, opts ...OrchestratorOption) *PredictionOrchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	o := &PredictionOrchestrator{
		client:  client,
		logger:  logger.With("component", "prediction-orchestrator"),
		context: models.NewResolvedContext(),
		crop:    models.DefaultCropContext(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func (o *PredictionOrchestrator) SetArea(hectares float64) {
	o.mu.Lock()
	o.area = hectares
	o.mu.Unlock()
}

func (o *PredictionOrchestrator) SetResolvedContext(c models.ResolvedContext) {
	o.mu.Lock()
	o.context = c.Clone()
	o.contextVer++
	o.mu.Unlock()
}

func (o *PredictionOrchestrator) SetCropContext(c models.CropContext) {
	o.mu.Lock()
	o.crop = c
	o.mu.Unlock()
}

func (o *PredictionOrchestrator) CropContext() models.CropContext {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.crop
}

func (o *PredictionOrchestrator) Area() float64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.area
}

// Reset forgets area and context but keeps the crop form.
func (o *PredictionOrchestrator) Reset() {
	o.mu.Lock()
	o.area = 0
	o.context = models.NewResolvedContext()
	o.contextVer++
	o.mu.Unlock()
}

// BuildRequest validates the held inputs and assembles the outbound payload.
func (o *PredictionOrchestrator) BuildRequest(identity *models.Identity) (models.PredictionRequest, error) {
	req, _, err := o.buildRequest(identity)
	return req, err
}

// buildRequest also returns the version of the context the request was built from.
func (o *PredictionOrchestrator) buildRequest(identity *models.Identity) (models.PredictionRequest, uint64, error) {
	o.mu.Lock()
	area, resolved, crop, version := o.area, o.context.Clone(), o.crop, o.contextVer
	o.mu.Unlock()

	if area <= 0 {
		return models.PredictionRequest{}, 0, &models.PreconditionError{Missing: "area", Message: "calculate field area first"}
	}
	for _, field := range []struct{ name, value string }{
		{"crop", crop.CropType},
		{"season", crop.Season},
		{"soil_type", crop.SoilType},
	} {
		if strings.TrimSpace(field.value) == "" {
			return models.PredictionRequest{}, 0, &models.PreconditionError{
				Missing: field.name,
				Message: fmt.Sprintf("select %s first", strings.ReplaceAll(field.name, "_", " ")),
			}
		}
	}

	mode := crop.NutrientMode
	if mode == "" {
		mode = models.NutrientModeAuto
	}

	var nutrients models.Nutrients
	switch mode {
	case models.NutrientModeManual:
		manual, ok := crop.ManualNutrients()
		if !ok {
			return models.PredictionRequest{}, 0, &models.PreconditionError{
				Missing: "nutrients",
				Message: "enter N, P, K and pH values or switch to auto mode",
			}
		}
		nutrients = manual
	default:
		if resolved.Nutrients != nil {
			nutrients = *resolved.Nutrients
		} else {
			o.logger.Warn("nutrients not resolved, using default preset",
				"crop", crop.CropType, "soil_type", crop.SoilType)
			nutrients = models.DefaultNutrients
		}
	}

	req := models.PredictionRequest{
		CropType:     crop.CropType,
		Season:       crop.Season,
		SoilType:     crop.SoilType,
		N:            nutrients.N,
		P:            nutrients.P,
		K:            nutrients.K,
		PH:           nutrients.PH,
		NutrientMode: mode,
		AreaHectares: area,
	}

	if resolved.HasRegion() {
		region := resolved.Region
		req.Region = &region
	} else if o.requireRegion {
		return models.PredictionRequest{}, 0, &models.PreconditionError{
			Missing: "region",
			Message: "select state manually or detect location first",
		}
	}

	if w := resolved.Weather; w != nil {
		req.Rainfall = &w.Rainfall
		req.Temperature = &w.Temperature
		req.Humidity = &w.Humidity
	}

	if identity != nil && identity.Email != "" {
		email := identity.Email
		req.UserEmail = &email
	}
	return req, version, nil
}

// Submit validates, then dispatches exactly one prediction request. Precondition failures
// never reach the client.
func (o *PredictionOrchestrator) Submit(ctx context.Context, identity *models.Identity) (*models.PredictionResult, error) {
	req, version, err := o.buildRequest(identity)
	if err != nil {
		o.logger.Info("submission blocked", "error", err)
		return nil, err
	}

	o.logger.Info("submitting prediction",
		"crop", req.CropType, "season", req.Season, "area_ha", req.AreaHectares, "input_mode", req.NutrientMode)

	result, err := o.client.Predict(ctx, req, identity)
	if err != nil {
		if errors.Is(err, models.ErrUnauthorized) {
			o.logger.Warn("prediction rejected, session invalid")
			return nil, models.ErrUnauthorized
		}
		o.logger.Error("prediction failed", "error", err)
		return nil, fmt.Errorf("%w: %v", models.ErrPredictionFailed, err)
	}
	result.AreaHectares = req.AreaHectares

	if result.Weather == nil && req.Rainfall != nil {
		result.Weather = &models.WeatherReading{
			Rainfall:    *req.Rainfall,
			Temperature: *req.Temperature,
			Humidity:    *req.Humidity,
		}
	}

	// Updates that arrived during the call describe the current location and are kept.
	o.mu.Lock()
	if o.contextVer == version {
		o.context = models.NewResolvedContext()
		o.contextVer++
	}
	o.mu.Unlock()

	o.logger.Info("prediction completed", "per_ha", result.PerHectare, "total", result.Total)
	if o.onSubmitted != nil {
		o.onSubmitted(SubmittedPrediction{Request: req, Result: result, Identity: identity})
	}
	return &result, nil
}
