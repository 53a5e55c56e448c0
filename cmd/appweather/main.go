package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	httpapi "github.com/i474232898/appweather/internal/api/http"
	"github.com/i474232898/appweather/internal/config"
	"github.com/i474232898/appweather/internal/observability"
	"github.com/i474232898/appweather/internal/publish"
	"github.com/i474232898/appweather/internal/scheduler"
	"github.com/i474232898/appweather/internal/store"
	"github.com/i474232898/appweather/internal/weather"
	"github.com/i474232898/appweather/internal/weather/providers"
)

const appName = "appweather"

type preferenceStore interface {
	weather.PreferenceStore
	Close() error
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	log := observability.NewLogger(os.Stdout, cfg.LogLevel, cfg.LogFormat, appName)
	slog.SetDefault(log)

	metrics := observability.NewMetrics()

	// Shared HTTP client for outbound provider calls.
	clock := clockwork.NewRealClock()

	httpClient := &http.Client{
		Timeout: cfg.HTTPTimeout,
	}

	var provider weather.Provider
	switch cfg.Provider {
	case config.ProviderWeatherAPI:
		provider = providers.NewWeatherAPIProvider(httpClient, cfg.WeatherAPIKey, cfg.Lang, clock)
	default:
		provider = providers.NewOpenWeatherProvider(httpClient, cfg.OpenWeatherAPIKey, cfg.Lang)
	}

	var prefs preferenceStore = store.NewMemoryStore()
	if cfg.PreferencesDB != "" {
		db, err := store.NewSQLite(cfg.PreferencesDB)
		if err != nil {
			log.Error("failed to open preferences database", "path", cfg.PreferencesDB, "error", err)
			os.Exit(1)
		}
		prefs = db
	}
	defer prefs.Close()

	service := weather.NewService(provider, prefs, weather.NewSession(), weather.ServiceConfig{
		Window:  cfg.HourlyWindow,
		Viewer:  cfg.Viewer,
		Clock:   clock,
		Logger:  log,
		Metrics: metrics,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.MQTTBroker != "" {
		client := publish.NewClient(cfg.MQTTBroker, cfg.MQTTClientID, log)
		connectCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		err := client.Connect(connectCtx)
		cancel()
		if err != nil {
			log.Error("mqtt unavailable; forecasts will not be published", "broker", cfg.MQTTBroker, "error", err)
		} else {
			defer client.Disconnect()
			updates, unsubscribe := service.Session().Subscribe()
			defer unsubscribe()
			publisher := publish.NewPublisher(client, cfg.MQTTTopic, cfg.HourlyWindow, clock, log, metrics.Published)
			go publisher.Run(ctx, updates)
		}
	}

	restoreCity(ctx, service, cfg, log)

	// Scheduler that periodically refetches the tracked city.
	sched := scheduler.New(service, cfg.RefreshInterval, 2*cfg.HTTPTimeout, log)
	if err := sched.Start(); err != nil {
		log.Error("failed to start scheduler", "error", err)
		os.Exit(1)
	}
	defer sched.Stop()

	app := fiber.New(fiber.Config{
		AppName:               appName,
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          2*cfg.HTTPTimeout + 5*time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			var e *fiber.Error
			if errors.As(err, &e) {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error":   true,
				"message": err.Error(),
			})
		},
	})

	app.Use(logger.New())
	app.Use(recover.New())

	app.Get("/health", func(c *fiber.Ctx) error {
		resp := fiber.Map{
			"status":   "ok",
			"service":  appName,
			"provider": provider.Name(),
		}
		if loc, ok := service.Tracked(); ok {
			resp["city"] = loc.Query()
		}
		return c.JSON(resp)
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	httpapi.RegisterRoutes(app, service, 2*cfg.HTTPTimeout)

	go func() {
		log.Info("listening", "port", cfg.Port, "provider", provider.Name())
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Error("fiber server stopped", "error", err)
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error("error during shutdown", "error", err)
	}
}

// restoreCity refreshes the last saved city, falling back to DEFAULT_CITY.
func restoreCity(ctx context.Context, service *weather.Service, cfg *config.AppConfig, log *slog.Logger) {
	city := cfg.DefaultCity
	if p, err := service.Preferences(); err != nil {
		log.Warn("failed to read saved city", "error", err)
	} else if p.City != "" {
		city = p.City
	}
	if city == "" {
		return
	}

	refreshCtx, cancel := context.WithTimeout(ctx, 2*cfg.HTTPTimeout)
	defer cancel()

	res, err := service.Refresh(refreshCtx, weather.ParseLocation(city))
	if err != nil {
		log.Warn("saved city rejected", "city", city, "error", err)
		return
	}
	if res.Failed() {
		log.Warn("initial refresh failed", "city", city, "current_error", res.CurrentErr, "forecast_error", res.ForecastErr)
		return
	}
	log.Info("restored city", "city", city, "snapshot", res.SnapshotID)
}
