package location

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"yield-service/internal/models"
)

// cityLevelAccuracy is the accuracy radius reported for IP based fixes.
const cityLevelAccuracy = 25000.0

type ipAPIResponse struct {
	Status  string  `json:"status"`
	Message string  `json:"message"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
}

// IPGeolocator resolves a client address through an ip-api compatible endpoint.
// It never reaches high accuracy; the flag is ignored.
type IPGeolocator struct {
	BaseURL string
	Address string
	Client  *http.Client
}

func NewIPGeolocator(baseURL, address string) *IPGeolocator {
	return &IPGeolocator{
		BaseURL: baseURL,
		Address: address,
		Client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (g *IPGeolocator) Locate(ctx context.Context, _ bool) (models.Coordinates, error) {
	if g.BaseURL == "" {
		return models.Coordinates{}, Fail(models.LocationUnsupported, fmt.Errorf("ip geolocation not configured"))
	}
	ip := net.ParseIP(g.Address)
	if ip == nil || ip.IsLoopback() || ip.IsPrivate() {
		return models.Coordinates{}, Fail(models.LocationUnavailable, fmt.Errorf("address %q is not routable", g.Address))
	}

	url := fmt.Sprintf("%s/json/%s?fields=status,message,lat,lon", g.BaseURL, ip.String())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return models.Coordinates{}, fmt.Errorf("failed to create HTTP request: %w", err)
	}

	resp, err := g.Client.Do(req)
	if err != nil {
		return models.Coordinates{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return models.Coordinates{}, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return models.Coordinates{}, Fail(models.LocationUnavailable, fmt.Errorf("ip-api returned status %d", resp.StatusCode))
	}

	var out ipAPIResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return models.Coordinates{}, fmt.Errorf("failed to parse response: %w", err)
	}
	if out.Status != "success" {
		return models.Coordinates{}, Fail(models.LocationUnavailable, fmt.Errorf("ip-api: %s", out.Message))
	}

	return models.Coordinates{Latitude: out.Lat, Longitude: out.Lon, AccuracyMeters: cityLevelAccuracy}, nil
}
