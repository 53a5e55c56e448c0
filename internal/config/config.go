package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"

	"github.com/i474232898/appweather/internal/weather"
)

// Supported PROVIDER values.
const (
	ProviderOpenWeather = "openweather"
	ProviderWeatherAPI  = "weatherapi"
)

type AppConfig struct {
	Provider          string
	OpenWeatherAPIKey string
	WeatherAPIKey     string
	Lang              string
	HTTPTimeout       time.Duration

	// RefreshInterval controls how often the tracked city is refetched (0 disables).
	RefreshInterval time.Duration
	HourlyWindow    int

	// Viewer is the zone used for "today"; defaults to the host zone.
	Viewer *time.Location

	// PreferencesDB is the SQLite path; empty keeps preferences in memory.
	PreferencesDB string
	DefaultCity   string

	MQTTBroker   string
	MQTTTopic    string
	MQTTClientID string

	LogLevel  string
	LogFormat string
	Port      string
}

// Load reads configuration from environment with sensible defaults.
// A .env file in the working directory is honoured when present.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file loaded", "error", err)
	}
	cfg := &AppConfig{}

	cfg.Provider = getenvDefault("PROVIDER", ProviderOpenWeather)
	cfg.OpenWeatherAPIKey = os.Getenv("OPENWEATHER_API_KEY")
	cfg.WeatherAPIKey = os.Getenv("WEATHERAPI_API_KEY")
	cfg.Lang = os.Getenv("WEATHER_LANG")

	switch cfg.Provider {
	case ProviderOpenWeather:
		if cfg.OpenWeatherAPIKey == "" {
			return nil, fmt.Errorf("OPENWEATHER_API_KEY is required for provider %q", cfg.Provider)
		}
	case ProviderWeatherAPI:
		if cfg.WeatherAPIKey == "" {
			return nil, fmt.Errorf("WEATHERAPI_API_KEY is required for provider %q", cfg.Provider)
		}
	default:
		return nil, fmt.Errorf("invalid PROVIDER %q", cfg.Provider)
	}

	timeout, err := time.ParseDuration(getenvDefault("HTTP_TIMEOUT", "10s"))
	if err != nil {
		return nil, fmt.Errorf("invalid HTTP_TIMEOUT: %w", err)
	}
	if timeout <= 0 {
		return nil, fmt.Errorf("HTTP_TIMEOUT must be positive")
	}
	cfg.HTTPTimeout = timeout

	// Scheduler interval: default 15 minutes.
	interval, err := time.ParseDuration(getenvDefault("REFRESH_INTERVAL", "15m"))
	if err != nil {
		return nil, fmt.Errorf("invalid REFRESH_INTERVAL: %w", err)
	}
	if interval < 0 {
		return nil, fmt.Errorf("REFRESH_INTERVAL must not be negative")
	}
	cfg.RefreshInterval = interval

	cfg.HourlyWindow = getenvInt("HOURLY_WINDOW", weather.DefaultWindow)
	if cfg.HourlyWindow <= 0 {
		return nil, fmt.Errorf("HOURLY_WINDOW must be positive")
	}

	cfg.Viewer = time.Local
	if tz := os.Getenv("VIEWER_TZ"); tz != "" {
		loc, err := time.LoadLocation(tz)
		if err != nil {
			return nil, fmt.Errorf("invalid VIEWER_TZ: %w", err)
		}
		cfg.Viewer = loc
	}

	cfg.PreferencesDB = os.Getenv("PREFERENCES_DB")
	cfg.DefaultCity = os.Getenv("DEFAULT_CITY")

	cfg.MQTTBroker = os.Getenv("MQTT_BROKER")
	cfg.MQTTTopic = getenvDefault("MQTT_TOPIC", "appweather/forecast")
	cfg.MQTTClientID = getenvDefault("MQTT_CLIENT_ID", "appweather")

	cfg.LogLevel = getenvDefault("LOG_LEVEL", "info")
	cfg.LogFormat = getenvDefault("LOG_FORMAT", "json")
	cfg.Port = getenvDefault("PORT", "8080")

	return cfg, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}
