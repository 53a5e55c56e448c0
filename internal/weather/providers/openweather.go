package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/sony/gobreaker"

	"github.com/i474232898/appweather/internal/weather"
)

// OpenWeatherProvider implements the weather.Provider interface for OpenWeatherMap.
type OpenWeatherProvider struct {
	name    string
	apiKey  string
	lang    string
	baseURL string
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
}

func NewOpenWeatherProvider(client *http.Client, apiKey, lang string) *OpenWeatherProvider {
	return &OpenWeatherProvider{
		name:    "openweathermap",
		apiKey:  apiKey,
		lang:    lang,
		baseURL: "https://api.openweathermap.org/data/2.5",
		httpCfg: defaultHTTPConfig(client),
		circuit: newCircuitBreaker("openweather"),
	}
}

func (p *OpenWeatherProvider) Name() string {
	return p.name
}

type owmMain struct {
	Temp    float64 `json:"temp"`
	TempMin float64 `json:"temp_min"`
	TempMax float64 `json:"temp_max"`
}

type owmCondition struct {
	Description string `json:"description"`
	Icon        string `json:"icon"`
}

type owmCurrent struct {
	Name     string         `json:"name"`
	Timezone int            `json:"timezone"`
	Dt       int64          `json:"dt"`
	Main     owmMain        `json:"main"`
	Weather  []owmCondition `json:"weather"`
}

type owmForecast struct {
	List []struct {
		Dt      int64          `json:"dt"`
		Main    owmMain        `json:"main"`
		Weather []owmCondition `json:"weather"`
	} `json:"list"`
	City struct {
		Name     string `json:"name"`
		Timezone int    `json:"timezone"`
	} `json:"city"`
}

func (p *OpenWeatherProvider) FetchCurrent(ctx context.Context, loc weather.Location) (weather.CurrentConditions, error) {
	var payload owmCurrent
	if err := p.get(ctx, "current", "/weather", loc, &payload); err != nil {
		return weather.CurrentConditions{}, err
	}

	return weather.CurrentConditions{
		Name:           payload.Name,
		Sample:         owmSample(payload.Dt, payload.Main.Temp, payload.Weather),
		TimezoneOffset: payload.Timezone,
		MinTemperature: payload.Main.TempMin,
		MaxTemperature: payload.Main.TempMax,
	}, nil
}

func (p *OpenWeatherProvider) FetchForecast(ctx context.Context, loc weather.Location) (weather.Envelope, error) {
	var payload owmForecast
	if err := p.get(ctx, "forecast", "/forecast", loc, &payload); err != nil {
		return weather.Envelope{}, err
	}

	env := weather.Envelope{
		City:           payload.City.Name,
		TimezoneOffset: payload.City.Timezone,
		Samples:        make([]weather.Sample, 0, len(payload.List)),
	}
	for _, item := range payload.List {
		env.Samples = append(env.Samples, owmSample(item.Dt, item.Main.Temp, item.Weather))
	}
	return env, nil
}

func (p *OpenWeatherProvider) get(ctx context.Context, op, path string, loc weather.Location, out any) error {
	if p.apiKey == "" {
		return &weather.TransportError{
			Kind:     weather.URLConstructionFailed,
			Provider: p.name,
			Op:       op,
			Err:      fmt.Errorf("openweather api key is not configured"),
		}
	}

	buildRequest := func() (*http.Request, error) {
		u, err := url.Parse(p.baseURL + path)
		if err != nil {
			return nil, err
		}

		values := url.Values{}
		values.Set("appid", p.apiKey)
		values.Set("units", "metric")
		values.Set("q", loc.Query())
		if p.lang != "" {
			values.Set("lang", p.lang)
		}
		u.RawQuery = values.Encode()

		return http.NewRequest(http.MethodGet, u.String(), nil)
	}

	return getJSON(ctx, p.name, op, p.httpCfg, p.circuit, buildRequest, owmErrorMessage, out)
}

// owmSample converts one OpenWeather record; only the first condition is used.
func owmSample(dt int64, temp float64, conditions []owmCondition) weather.Sample {
	s := weather.Sample{
		Timestamp:   dt,
		Temperature: temp,
		Icon:        weather.DefaultIcon,
	}
	if len(conditions) > 0 {
		if conditions[0].Icon != "" {
			s.Icon = conditions[0].Icon
		}
		s.Description = conditions[0].Description
	}
	return s
}

func owmErrorMessage(body []byte) string {
	var e struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &e); err != nil {
		return ""
	}
	return e.Message
}
