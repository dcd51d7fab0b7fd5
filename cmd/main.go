package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"yield-service/internal/ai/gemini"
	"yield-service/internal/clients"
	"yield-service/internal/config"
	"yield-service/internal/database/minio"
	"yield-service/internal/database/postgres"
	"yield-service/internal/database/redis"
	"yield-service/internal/event"
	"yield-service/internal/handlers"
	"yield-service/internal/notification"
	"yield-service/internal/repository"
	"yield-service/internal/resolver"
	"yield-service/internal/services"
	"yield-service/internal/worker"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
)

func setupLogging(logDir string) (*os.File, error) {
	defer func() {
		if r := recover(); r != nil {
			fmt.Printf("Recovered from panic: %v\n", r)
		}
	}()

	fmt.Println("Log directory:", logDir)
	err := os.MkdirAll(logDir, 0o755)
	if err != nil {
		return nil, fmt.Errorf("failed to create log directory: %v", err)
	}

	currentTime := time.Now()
	logFileName := fmt.Sprintf("log_%s.log", currentTime.Format("2006-01-02"))
	logFile := filepath.Join(logDir, logFileName)

	file, err := os.OpenFile(logFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %v", err)
	}

	if absPath, err := filepath.Abs(logFile); err == nil {
		fmt.Printf("Log file at absolute path: %s\n", absPath)
	}

	handler := slog.NewTextHandler(io.MultiWriter(file, os.Stdout), &slog.HandlerOptions{
		AddSource: true,
		Level:     slog.LevelInfo,
	})
	slog.SetDefault(slog.New(handler))

	return file, nil
}

type lookups struct {
	region    resolver.RegionLookup
	weather   resolver.WeatherLookup
	nutrients resolver.NutrientLookup
	regions   []string
}

func buildLookups(cfg config.UpstreamConfig, rdb *redis.Client, cacheTTL time.Duration, httpClient *http.Client) lookups {
	var l lookups

	switch cfg.RegionProvider {
	case "boundary":
		boundary, err := clients.LoadBoundaryRegionLookup(cfg.BoundaryFile, cfg.BoundaryProperty)
		if err != nil {
			slog.Error("failed to load region boundaries, falling back to region service", "file", cfg.BoundaryFile, "error", err)
			l.region = clients.NewHTTPRegionLookup(cfg.RegionURL, httpClient)
		} else {
			slog.Info("region boundaries loaded", "file", cfg.BoundaryFile, "regions", boundary.Len())
			l.region = boundary
			l.regions = boundary.Regions()
		}
	default:
		l.region = clients.NewHTTPRegionLookup(cfg.RegionURL, httpClient)
	}

	switch cfg.WeatherProvider {
	case "openweather":
		l.weather = clients.NewOpenWeatherLookup(cfg.OpenWeatherAPIKey, cfg.OpenWeatherURL, httpClient)
	default:
		l.weather = clients.NewHTTPWeatherLookup(cfg.WeatherURL, httpClient)
	}

	switch cfg.NutrientProvider {
	case "http":
		l.nutrients = clients.NewHTTPNutrientLookup(cfg.NutrientURL, httpClient)
	default:
		l.nutrients = clients.NewNutrientTable()
	}

	if rdb != nil {
		l.weather = clients.NewCachedWeatherLookup(l.weather, rdb.GetClient(), cacheTTL, slog.Default())
		if cfg.NutrientProvider == "http" {
			l.nutrients = clients.NewCachedNutrientLookup(l.nutrients, rdb.GetClient(), cacheTTL, slog.Default())
		}
	}
	return l
}

func buildClassifier(ctx context.Context, cfg *config.YieldServiceConfig, httpClient *http.Client) (services.HealthClassifier, func()) {
	if cfg.UpstreamCfg.ClassifierProvider == "gemini" {
		geminiClients, err := gemini.NewGenAIClients(ctx, cfg.GeminiAPICfg.APIKeys, cfg.GeminiAPICfg.VisionName)
		if err == nil {
			slog.Info("Gemini health classifier ready", "clients", len(geminiClients))
			keys := gemini.NewKeyPool(geminiClients, cfg.GeminiAPICfg.KeyCooldown, slog.Default())
			return gemini.NewHealthClassifier(keys), func() {
				for i := range geminiClients {
					geminiClients[i].Close()
				}
			}
		}
		slog.Error("Gemini classifier unavailable, using classifier service", "error", err)
	}
	return clients.NewHTTPHealthClassifier(cfg.UpstreamCfg.ClassifierURL, httpClient), func() {}
}

func main() {
	cfg := config.New()

	logFile, err := setupLogging(cfg.LogDir)
	if err != nil {
		log.Fatalf("Error setting up logging: %v", err)
	}
	defer logFile.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	httpClient := &http.Client{Timeout: cfg.UpstreamCfg.Timeout}

	// Optional infrastructure: every piece degrades to a reduced feature set when absent.
	var redisClient *redis.Client
	if rc, err := redis.NewRedisClient(cfg.RedisCfg); err != nil {
		slog.Warn("Redis unavailable, lookup cache disabled", "error", err)
	} else {
		redisClient = rc
		defer redisClient.Close()
	}

	var archive services.ImageArchive
	if mc, err := minio.NewMinioClient(cfg.MinioCfg); err != nil {
		slog.Warn("MinIO unavailable, health images will not be archived", "error", err)
	} else {
		archive = minio.HealthImageArchive{Client: mc}
	}

	var publisher services.PredictionEventPublisher
	if conn, err := event.ConnectRabbitMQ(cfg.RabbitMQCfg); err != nil {
		slog.Warn("RabbitMQ unavailable, prediction events disabled", "error", err)
	} else {
		defer conn.Close()
		publisher = event.NewPredictionPublisher(conn.Channel)
	}

	history := services.NewHistoryService(nil, publisher, slog.Default())
	var db *sqlx.DB
	if conn, err := postgres.ConnectAndCreateDB(cfg.PostgresCfg); err != nil {
		slog.Error("error connect to database, history disabled until reconnect", "error", err)
		go postgres.RetryConnectOnFailed(ctx, 30*time.Second, cfg.PostgresCfg, func(conn *sqlx.DB) {
			history.AttachStore(repository.NewPredictionRepository(conn))
		})
	} else {
		db = conn
		history.AttachStore(repository.NewPredictionRepository(db))
	}

	// Background work: prediction recording, centroid lookups, archive uploads and sweeps.
	var wg sync.WaitGroup
	pool := worker.NewWorkingPool("workspace-jobs", cfg.WorkspaceCfg.HistoryJobs, 256)
	wg.Add(1)
	go pool.Start(ctx, &wg)

	l := buildLookups(cfg.UpstreamCfg, redisClient, cfg.RedisCfg.CacheTTL, httpClient)
	classifier, closeClassifier := buildClassifier(ctx, cfg, httpClient)
	defer closeClassifier()

	var registry *services.WorkspaceRegistry
	manager := notification.NewManager(slog.Default(), handlers.SocketMessageRouter(func() *services.WorkspaceRegistry {
		return registry
	}, slog.Default()))
	defer manager.Close()

	registry = services.NewWorkspaceRegistry(services.WorkspaceDeps{
		Region:    l.region,
		Weather:   l.weather,
		Nutrients: l.nutrients,
		Predictor: clients.NewHTTPPredictionClient(cfg.UpstreamCfg.PredictionURL, httpClient),
		Notifier:  manager,
		Jobs:      pool,
		Location: services.LocationSettings{
			Platform:     cfg.LocationCfg.Platform,
			IPAPIURL:     cfg.UpstreamCfg.IPAPIURL,
			Timeout:      cfg.LocationCfg.Timeout,
			HighAccuracy: cfg.LocationCfg.HighAccuracy,
		},
		RequireRegion: cfg.UpstreamCfg.RequireRegion,
		Regions:       l.regions,
		OnPredicted:   history.Record,
		Logger:        slog.Default(),
	}, cfg.WorkspaceCfg.IdleTTL, manager.CloseWorkspace)

	sweeper := worker.NewJobScheduler("workspace-sweeper", cfg.WorkspaceCfg.SweepInterval, pool)
	sweeper.AddJob(registry.SweepIdle)
	go sweeper.Run(ctx)

	auth := handlers.NewMiddleware(cfg.AuthCfg.JWTSecret, cfg.AuthCfg.Required, slog.Default())
	table := clients.NewNutrientTable()

	r := gin.Default()
	r.GET("/checkhealth", func(c *gin.Context) {
		c.String(http.StatusOK, "Yield service is healthy")
	})
	handlers.NewFieldHandler(registry, manager, auth, cfg.LocationCfg.HighAccuracy, slog.Default()).RegisterRoutes(r)
	handlers.NewNutrientHandler(l.nutrients, table).RegisterRoutes(r)
	handlers.NewHealthHandler(services.NewHealthService(classifier, archive, pool, slog.Default())).RegisterRoutes(r)
	handlers.NewHistoryHandler(history, auth).RegisterRoutes(r)

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: r}
	go func() {
		slog.Info("Starting yield-service", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Failed to start server", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("Shutting down yield-service")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server shutdown failed", "error", err)
	}
	wg.Wait()
	if db != nil {
		db.Close()
	}
}
