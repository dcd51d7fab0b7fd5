package clients

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"yield-service/internal/models"
)

// HTTPWeatherLookup reads {rainfall, temperature, humidity} from a weather endpoint.
type HTTPWeatherLookup struct {
	BaseURL string
	Client  *http.Client
}

func NewHTTPWeatherLookup(baseURL string, client *http.Client) *HTTPWeatherLookup {
	return &HTTPWeatherLookup{BaseURL: baseURL, Client: newHTTPClient(client)}
}

func (w *HTTPWeatherLookup) LookupWeather(ctx context.Context, coords models.Coordinates) (models.WeatherReading, error) {
	query := url.Values{}
	query.Set("lat", strconv.FormatFloat(coords.Latitude, 'f', -1, 64))
	query.Set("lon", strconv.FormatFloat(coords.Longitude, 'f', -1, 64))

	var reading models.WeatherReading
	err := doJSON(ctx, w.Client, "weather service", http.MethodGet,
		joinURL(w.BaseURL, "/api/weather")+"?"+query.Encode(), nil, nil, &reading)
	if err != nil {
		return models.WeatherReading{}, err
	}
	return reading, nil
}

const openWeatherBaseURL = "https://api.openweathermap.org/data/3.0"

// OpenWeatherLookup reads current conditions from the OpenWeather One Call API.
// Rainfall is today's forecast precipitation in millimetres.
type OpenWeatherLookup struct {
	APIKey  string
	BaseURL string
	Client  *http.Client
}

func NewOpenWeatherLookup(apiKey, baseURL string, client *http.Client) *OpenWeatherLookup {
	if baseURL == "" {
		baseURL = openWeatherBaseURL
	}
	return &OpenWeatherLookup{APIKey: apiKey, BaseURL: baseURL, Client: newHTTPClient(client)}
}

type oneCallResponse struct {
	Current struct {
		Temp     float64            `json:"temp"`
		Humidity float64            `json:"humidity"`
		Rain     map[string]float64 `json:"rain,omitempty"`
	} `json:"current"`
	Daily []struct {
		Rain float64 `json:"rain"`
	} `json:"daily,omitempty"`
}

func (w *OpenWeatherLookup) LookupWeather(ctx context.Context, coords models.Coordinates) (models.WeatherReading, error) {
	if w.APIKey == "" {
		return models.WeatherReading{}, errors.New("weather API key not configured")
	}

	query := url.Values{}
	query.Set("lat", strconv.FormatFloat(coords.Latitude, 'f', -1, 64))
	query.Set("lon", strconv.FormatFloat(coords.Longitude, 'f', -1, 64))
	query.Set("exclude", "minutely,hourly,alerts")
	query.Set("units", "metric")
	query.Set("appid", w.APIKey)

	var resp oneCallResponse
	if err := doJSON(ctx, w.Client, "openweather", http.MethodGet,
		joinURL(w.BaseURL, "/onecall")+"?"+query.Encode(), nil, nil, &resp); err != nil {
		return models.WeatherReading{}, fmt.Errorf("failed to fetch weather data: %w", err)
	}

	reading := models.WeatherReading{
		Temperature: resp.Current.Temp,
		Humidity:    resp.Current.Humidity,
	}
	switch {
	case len(resp.Daily) > 0:
		reading.Rainfall = resp.Daily[0].Rain
	case resp.Current.Rain != nil:
		reading.Rainfall = resp.Current.Rain["1h"]
	}
	return reading, nil
}
