package clients

import (
	"context"
	"net/http"
	"strings"

	"yield-service/internal/models"
)

// HTTPRegionLookup resolves coordinates to a state name through the location endpoint.
// An "Unknown" answer is passed through; the resolver treats it as unresolved.
type HTTPRegionLookup struct {
	BaseURL string
	Client  *http.Client
}

func NewHTTPRegionLookup(baseURL string, client *http.Client) *HTTPRegionLookup {
	return &HTTPRegionLookup{BaseURL: baseURL, Client: newHTTPClient(client)}
}

type locationRequest struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

type locationResponse struct {
	District string `json:"district"`
	State    string `json:"state"`
}

func (l *HTTPRegionLookup) LookupRegion(ctx context.Context, coords models.Coordinates) (string, error) {
	var out locationResponse
	err := doJSON(ctx, l.Client, "region service", http.MethodPost, joinURL(l.BaseURL, "/api/location"),
		locationRequest{Lat: coords.Latitude, Lon: coords.Longitude}, nil, &out)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out.State), nil
}
