package weather

import (
	"context"
)

// Provider abstracts a weather data source (e.g. OpenWeatherMap, WeatherAPI).
// Both calls are independent; failures are reported as *TransportError.
type Provider interface {
	Name() string
	FetchCurrent(ctx context.Context, loc Location) (CurrentConditions, error)
	FetchForecast(ctx context.Context, loc Location) (Envelope, error)
}

// Preference keys understood by PreferenceStore implementations.
const (
	PrefCity  = "city"
	PrefTheme = "theme"
)

// PreferenceStore persists small user settings such as the last searched city.
type PreferenceStore interface {
	Get(key string) (string, error)
	Set(key, value string) error
}

// Metrics receives fetch outcomes. A nil Metrics is allowed.
type Metrics interface {
	ObserveFetch(provider, op string, err error, seconds float64)
	ObserveRefresh(outcome string)
}
