package clients

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"yield-service/internal/models"
)

// HTTPPredictionClient posts assembled requests to the yield model service.
type HTTPPredictionClient struct {
	BaseURL string
	Client  *http.Client
}

func NewHTTPPredictionClient(baseURL string, client *http.Client) *HTTPPredictionClient {
	return &HTTPPredictionClient{BaseURL: baseURL, Client: newHTTPClient(client)}
}

type predictionResponse struct {
	PerHectare float64 `json:"predicted_yield_per_ha"`
	Total      float64 `json:"total_yield"`
}

// Predict forwards the caller's bearer token. A 401 or 403 answer maps to models.ErrUnauthorized.
func (p *HTTPPredictionClient) Predict(ctx context.Context, req models.PredictionRequest, identity *models.Identity) (models.PredictionResult, error) {
	header := http.Header{}
	if identity != nil && identity.Token != "" {
		header.Set("Authorization", "Bearer "+identity.Token)
	}

	var out predictionResponse
	err := doJSON(ctx, p.Client, "prediction service", http.MethodPost,
		joinURL(p.BaseURL, "/api/predict_yield"), req, header, &out)
	if err != nil {
		var se *StatusError
		if errors.As(err, &se) && (se.StatusCode == http.StatusUnauthorized || se.StatusCode == http.StatusForbidden) {
			return models.PredictionResult{}, fmt.Errorf("%w (status %d)", models.ErrUnauthorized, se.StatusCode)
		}
		return models.PredictionResult{}, err
	}
	return models.PredictionResult{PerHectare: out.PerHectare, Total: out.Total}, nil
}
