package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"yield-service/internal/models"
	"yield-service/internal/resolver"

	"github.com/redis/go-redis/v9"
)

const (
	weatherKeyPrefix  = "yield:weather:"
	nutrientKeyPrefix = "yield:nutrients:"
)

// CachedWeatherLookup memoizes weather readings per ~1 km grid cell.
type CachedWeatherLookup struct {
	next   resolver.WeatherLookup
	rdb    redis.UniversalClient
	ttl    time.Duration
	logger *slog.Logger
}

func NewCachedWeatherLookup(next resolver.WeatherLookup, rdb redis.UniversalClient, ttl time.Duration, logger *slog.Logger) *CachedWeatherLookup {
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedWeatherLookup{next: next, rdb: rdb, ttl: ttl, logger: logger.With("component", "weather-cache")}
}

func (c *CachedWeatherLookup) LookupWeather(ctx context.Context, coords models.Coordinates) (models.WeatherReading, error) {
	key := fmt.Sprintf("%s%.2f:%.2f", weatherKeyPrefix, roundCell(coords.Latitude), roundCell(coords.Longitude))

	var reading models.WeatherReading
	if hit := getJSON(ctx, c.rdb, key, &reading, c.logger); hit {
		return reading, nil
	}

	reading, err := c.next.LookupWeather(ctx, coords)
	if err != nil {
		return models.WeatherReading{}, err
	}
	setJSON(ctx, c.rdb, key, reading, c.ttl, c.logger)
	return reading, nil
}

// CachedNutrientLookup memoizes nutrient values per crop and soil type.
type CachedNutrientLookup struct {
	next   resolver.NutrientLookup
	rdb    redis.UniversalClient
	ttl    time.Duration
	logger *slog.Logger
}

func NewCachedNutrientLookup(next resolver.NutrientLookup, rdb redis.UniversalClient, ttl time.Duration, logger *slog.Logger) *CachedNutrientLookup {
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedNutrientLookup{next: next, rdb: rdb, ttl: ttl, logger: logger.With("component", "nutrient-cache")}
}

func (c *CachedNutrientLookup) LookupNutrients(ctx context.Context, cropType, soilType string) (models.Nutrients, error) {
	key := nutrientKeyPrefix + strings.ToLower(cropType) + ":" + strings.ToLower(soilType)

	var values models.Nutrients
	if hit := getJSON(ctx, c.rdb, key, &values, c.logger); hit {
		return values, nil
	}

	values, err := c.next.LookupNutrients(ctx, cropType, soilType)
	if err != nil {
		return models.Nutrients{}, err
	}
	setJSON(ctx, c.rdb, key, values, c.ttl, c.logger)
	return values, nil
}

func roundCell(v float64) float64 {
	return math.Round(v*100) / 100
}

// getJSON treats every cache error as a miss.
func getJSON(ctx context.Context, rdb redis.UniversalClient, key string, out any, logger *slog.Logger) bool {
	raw, err := rdb.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			logger.Warn("cache read failed", "key", key, "error", err)
		}
		return false
	}
	if err := json.Unmarshal(raw, out); err != nil {
		logger.Warn("dropping undecodable cache entry", "key", key, "error", err)
		return false
	}
	return true
}

func setJSON(ctx context.Context, rdb redis.UniversalClient, key string, value any, ttl time.Duration, logger *slog.Logger) {
	raw, err := json.Marshal(value)
	if err != nil {
		return
	}
	if err := rdb.Set(ctx, key, raw, ttl).Err(); err != nil {
		logger.Warn("cache write failed", "key", key, "error", err)
	}
}
