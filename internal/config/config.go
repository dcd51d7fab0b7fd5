package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type YieldServiceConfig struct {
	Port         string
	LogDir       string
	PostgresCfg  PostgresConfig
	RabbitMQCfg  RabbitMQConfig
	RedisCfg     RedisConfig
	MinioCfg     MinioConfig
	GeminiAPICfg GeminiAPIConfig
	UpstreamCfg  UpstreamConfig
	AuthCfg      AuthConfig
	LocationCfg  LocationConfig
	WorkspaceCfg WorkspaceConfig
}

type MinioConfig struct {
	MinioURL       string
	MinioAccessKey string
	MinioSecretKey string
	MinioLocation  string
	MinioSecure    string
}

type PostgresConfig struct {
	DBname   string
	Username string
	Password string
	Host     string
	Port     string
}

type RabbitMQConfig struct {
	Username string
	Password string
	Host     string
	Port     string
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	CacheTTL time.Duration
}

type GeminiAPIConfig struct {
	APIKeys     []string
	VisionName  string
	KeyCooldown time.Duration
}

// UpstreamConfig selects and locates the remote collaborators. Provider values:
// region "http" | "boundary", weather "http" | "openweather", nutrients "http" | "table",
// classifier "http" | "gemini".
type UpstreamConfig struct {
	PredictionURL      string
	RegionProvider     string
	RegionURL          string
	BoundaryFile       string
	BoundaryProperty   string
	WeatherProvider    string
	WeatherURL         string
	OpenWeatherAPIKey  string
	OpenWeatherURL     string
	NutrientProvider   string
	NutrientURL        string
	ClassifierProvider string
	ClassifierURL      string
	IPAPIURL           string
	RequireRegion      bool
	Timeout            time.Duration
}

type AuthConfig struct {
	JWTSecret string
	Required  bool
}

type LocationConfig struct {
	Platform     string // "browser" or "ip"
	Timeout      time.Duration
	HighAccuracy bool
}

type WorkspaceConfig struct {
	IdleTTL       time.Duration
	SweepInterval time.Duration
	HistoryJobs   int
}

func New() *YieldServiceConfig {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("failed to load .env file", "error", err)
	}

	return &YieldServiceConfig{
		Port:   getEnvOrDefault("PORT", "8090"),
		LogDir: getEnvOrDefault("LOG_DIR", "/agrisa/log/yield_service"),
		PostgresCfg: PostgresConfig{
			DBname:   getEnvOrDefault("POSTGRES_DB", "yield_service"),
			Username: getEnvOrDefault("POSTGRES_USER", "postgres"),
			Password: getEnvOrDefault("POSTGRES_PASSWORD", "postgres"),
			Host:     getEnvOrDefault("POSTGRES_HOST", "localhost"),
			Port:     getEnvOrDefault("POSTGRES_PORT", "5432"),
		},
		RabbitMQCfg: RabbitMQConfig{
			Username: getEnvOrDefault("RABBITMQ_USER", "admin"),
			Password: getEnvOrDefault("RABBITMQ_PWD", "admin"),
			Host:     getEnvOrDefault("RABBITMQ_HOST", "localhost"),
			Port:     getEnvOrDefault("RABBITMQ_PORT", "5672"),
		},
		RedisCfg: RedisConfig{
			Host:     getEnvOrDefault("REDIS_HOST", "localhost"),
			Port:     getEnvOrDefault("REDIS_PORT", "6379"),
			Password: getEnvOrDefault("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
			CacheTTL: getEnvDuration("REDIS_CACHE_TTL", 30*time.Minute),
		},
		MinioCfg: MinioConfig{
			MinioURL:       getEnvOrDefault("MINIO_ENDPOINT", "http://localhost:9407"),
			MinioAccessKey: getEnvOrDefault("MINIO_ACCESS_KEY", "minio"),
			MinioSecretKey: getEnvOrDefault("MINIO_SECRET_KEY", "minio123"),
			MinioLocation:  getEnvOrDefault("MINIO_LOCATION", "us-east-1"),
			MinioSecure:    getEnvOrDefault("MINIO_SECURE", "false"),
		},
		GeminiAPICfg: GeminiAPIConfig{
			APIKeys:     splitList(getEnvOrDefault("GEMINI_KEYS", getEnvOrDefault("GEMINI_KEY", ""))),
			VisionName:  getEnvOrDefault("GEMINI_VISION_MODEL", "gemini-2.5-flash"),
			KeyCooldown: getEnvDuration("GEMINI_KEY_COOLDOWN", time.Minute),
		},
		UpstreamCfg: UpstreamConfig{
			PredictionURL:      getEnvOrDefault("PREDICTION_SERVICE_URL", "http://localhost:5000"),
			RegionProvider:     getEnvOrDefault("REGION_PROVIDER", "http"),
			RegionURL:          getEnvOrDefault("REGION_SERVICE_URL", "http://localhost:5000"),
			BoundaryFile:       getEnvOrDefault("REGION_BOUNDARY_FILE", "india_district.geojson"),
			BoundaryProperty:   getEnvOrDefault("REGION_BOUNDARY_PROPERTY", "NAME_1"),
			WeatherProvider:    getEnvOrDefault("WEATHER_PROVIDER", "http"),
			WeatherURL:         getEnvOrDefault("WEATHER_SERVICE_URL", "http://localhost:5000"),
			OpenWeatherAPIKey:  getEnvOrDefault("WEATHER_API_KEY", ""),
			OpenWeatherURL:     getEnvOrDefault("OPENWEATHER_URL", "https://api.openweathermap.org/data/3.0"),
			NutrientProvider:   getEnvOrDefault("NUTRIENT_PROVIDER", "table"),
			NutrientURL:        getEnvOrDefault("NUTRIENT_SERVICE_URL", "http://localhost:5000"),
			ClassifierProvider: getEnvOrDefault("CLASSIFIER_PROVIDER", "http"),
			ClassifierURL:      getEnvOrDefault("CLASSIFIER_SERVICE_URL", "http://localhost:5000"),
			IPAPIURL:           getEnvOrDefault("IP_API_URL", "http://ip-api.com"),
			RequireRegion:      getEnvBool("REQUIRE_REGION", false),
			Timeout:            getEnvDuration("UPSTREAM_TIMEOUT", 15*time.Second),
		},
		AuthCfg: AuthConfig{
			JWTSecret: getEnvOrDefault("JWT_SECRET", ""),
			Required:  getEnvBool("AUTH_REQUIRED", false),
		},
		LocationCfg: LocationConfig{
			Platform:     getEnvOrDefault("LOCATION_PLATFORM", "browser"),
			Timeout:      getEnvDuration("LOCATION_TIMEOUT", 10*time.Second),
			HighAccuracy: getEnvBool("LOCATION_HIGH_ACCURACY", true),
		},
		WorkspaceCfg: WorkspaceConfig{
			IdleTTL:       getEnvDuration("WORKSPACE_IDLE_TTL", 2*time.Hour),
			SweepInterval: getEnvDuration("WORKSPACE_SWEEP_INTERVAL", 5*time.Minute),
			HistoryJobs:   getEnvInt("HISTORY_WORKERS", 4),
		},
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	value, err := strconv.Atoi(getEnvOrDefault(key, ""))
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvBool(key string, defaultValue bool) bool {
	value, err := strconv.ParseBool(getEnvOrDefault(key, ""))
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value, err := time.ParseDuration(getEnvOrDefault(key, ""))
	if err != nil || value <= 0 {
		return defaultValue
	}
	return value
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
