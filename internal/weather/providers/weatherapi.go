package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"
	_ "time/tzdata"

	"github.com/jonboulle/clockwork"
	"github.com/sony/gobreaker"

	"github.com/i474232898/appweather/internal/weather"
)

// forecastDays is how far ahead WeatherAPI is asked to look; it matches the
// five days OpenWeather's free forecast covers.
const forecastDays = 5

// WeatherAPIProvider implements the weather.Provider interface for WeatherAPI.com.
type WeatherAPIProvider struct {
	name    string
	apiKey  string
	lang    string
	baseURL string
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
	clock   clockwork.Clock
}

// NewWeatherAPIProvider creates the provider. A nil clock uses the real one.
func NewWeatherAPIProvider(client *http.Client, apiKey, lang string, clock clockwork.Clock) *WeatherAPIProvider {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &WeatherAPIProvider{
		name:    "weatherapi",
		apiKey:  apiKey,
		lang:    lang,
		baseURL: "https://api.weatherapi.com/v1/forecast.json",
		httpCfg: defaultHTTPConfig(client),
		circuit: newCircuitBreaker("weatherapi"),
		clock:   clock,
	}
}

func (p *WeatherAPIProvider) Name() string {
	return p.name
}

type wapiCondition struct {
	Text string `json:"text"`
	Code int    `json:"code"`
}

type wapiPayload struct {
	Location struct {
		Name  string `json:"name"`
		TzID  string `json:"tz_id"`
		Epoch int64  `json:"localtime_epoch"`
	} `json:"location"`
	Current struct {
		LastUpdatedEpoch int64         `json:"last_updated_epoch"`
		TempC            float64       `json:"temp_c"`
		IsDay            int           `json:"is_day"`
		Condition        wapiCondition `json:"condition"`
	} `json:"current"`
	Forecast struct {
		ForecastDay []struct {
			Day struct {
				MinTempC float64 `json:"mintemp_c"`
				MaxTempC float64 `json:"maxtemp_c"`
			} `json:"day"`
			Hour []struct {
				TimeEpoch int64         `json:"time_epoch"`
				TempC     float64       `json:"temp_c"`
				IsDay     int           `json:"is_day"`
				Condition wapiCondition `json:"condition"`
			} `json:"hour"`
		} `json:"forecastday"`
	} `json:"forecast"`
}

func (p *WeatherAPIProvider) FetchCurrent(ctx context.Context, loc weather.Location) (weather.CurrentConditions, error) {
	var payload wapiPayload
	if err := p.get(ctx, "current", 1, loc, &payload); err != nil {
		return weather.CurrentConditions{}, err
	}

	cur := weather.CurrentConditions{
		Name: payload.Location.Name,
		Sample: wapiSample(
			payload.Current.LastUpdatedEpoch,
			payload.Current.TempC,
			payload.Current.IsDay,
			payload.Current.Condition,
		),
		TimezoneOffset: p.offset(payload.Location.TzID, payload.Current.LastUpdatedEpoch),
		MinTemperature: payload.Current.TempC,
		MaxTemperature: payload.Current.TempC,
	}
	if len(payload.Forecast.ForecastDay) > 0 {
		cur.MinTemperature = payload.Forecast.ForecastDay[0].Day.MinTempC
		cur.MaxTemperature = payload.Forecast.ForecastDay[0].Day.MaxTempC
	}
	return cur, nil
}

func (p *WeatherAPIProvider) FetchForecast(ctx context.Context, loc weather.Location) (weather.Envelope, error) {
	var payload wapiPayload
	if err := p.get(ctx, "forecast", forecastDays, loc, &payload); err != nil {
		return weather.Envelope{}, err
	}

	env := weather.Envelope{
		City:    payload.Location.Name,
		Samples: []weather.Sample{},
	}
	var first int64
	for _, day := range payload.Forecast.ForecastDay {
		for _, h := range day.Hour {
			env.Samples = append(env.Samples, wapiSample(h.TimeEpoch, h.TempC, h.IsDay, h.Condition))
			if first == 0 || h.TimeEpoch < first {
				first = h.TimeEpoch
			}
		}
	}
	env.TimezoneOffset = p.offset(payload.Location.TzID, first)
	return env, nil
}

func (p *WeatherAPIProvider) get(ctx context.Context, op string, days int, loc weather.Location, out any) error {
	if p.apiKey == "" {
		return &weather.TransportError{
			Kind:     weather.URLConstructionFailed,
			Provider: p.name,
			Op:       op,
			Err:      fmt.Errorf("weatherapi api key is not configured"),
		}
	}

	buildRequest := func() (*http.Request, error) {
		u, err := url.Parse(p.baseURL)
		if err != nil {
			return nil, err
		}

		values := url.Values{}
		values.Set("key", p.apiKey)
		values.Set("q", loc.Query())
		values.Set("days", strconv.Itoa(days))
		if p.lang != "" {
			values.Set("lang", p.lang)
		}
		u.RawQuery = values.Encode()

		return http.NewRequest(http.MethodGet, u.String(), nil)
	}

	return getJSON(ctx, p.name, op, p.httpCfg, p.circuit, buildRequest, wapiErrorMessage, out)
}

// offset resolves the IANA zone reported by WeatherAPI to its UTC offset at
// epoch, or at the clock's now when epoch is 0. Unknown zones fall back to UTC.
// A single offset covers the whole envelope, so days past a DST change are
// grouped one hour off.
func (p *WeatherAPIProvider) offset(tzID string, epoch int64) int {
	if tzID == "" {
		return 0
	}
	zone, err := time.LoadLocation(tzID)
	if err != nil {
		return 0
	}
	at := p.clock.Now()
	if epoch != 0 {
		at = time.Unix(epoch, 0)
	}
	_, off := at.In(zone).Zone()
	return off
}

// wapiSample maps a WeatherAPI condition code onto an icon code of the
// form "<code>d" / "<code>n".
func wapiSample(epoch int64, temp float64, isDay int, cond wapiCondition) weather.Sample {
	s := weather.Sample{
		Timestamp:   epoch,
		Temperature: temp,
		Icon:        weather.DefaultIcon,
		Description: cond.Text,
	}
	if cond.Code != 0 {
		suffix := "n"
		if isDay == 1 {
			suffix = "d"
		}
		s.Icon = strconv.Itoa(cond.Code) + suffix
	}
	return s
}

func wapiErrorMessage(body []byte) string {
	var e struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &e); err != nil {
		return ""
	}
	return e.Error.Message
}
