package clients

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	"yield-service/internal/models"
)

// HTTPNutrientLookup fetches preset nutrient values for a crop and soil type.
type HTTPNutrientLookup struct {
	BaseURL string
	Client  *http.Client
}

func NewHTTPNutrientLookup(baseURL string, client *http.Client) *HTTPNutrientLookup {
	return &HTTPNutrientLookup{BaseURL: baseURL, Client: newHTTPClient(client)}
}

func (n *HTTPNutrientLookup) LookupNutrients(ctx context.Context, cropType, soilType string) (models.Nutrients, error) {
	if cropType == "" {
		return models.Nutrients{}, errors.New("crop type is required")
	}
	query := url.Values{}
	query.Set("crop", cropType)
	if soilType != "" {
		query.Set("soil_type", soilType)
	}

	var values models.Nutrients
	err := doJSON(ctx, n.Client, "nutrient service", http.MethodGet,
		joinURL(n.BaseURL, "/api/soil_nutrients")+"?"+query.Encode(), nil, nil, &values)
	if err != nil {
		return models.Nutrients{}, err
	}
	return values, nil
}
