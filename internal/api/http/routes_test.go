package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/appweather/internal/store"
	"github.com/i474232898/appweather/internal/weather"
)

var now = time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)

type stubProvider struct {
	currentErr  error
	forecastErr error
}

func (p *stubProvider) Name() string { return "stub" }

func (p *stubProvider) FetchCurrent(_ context.Context, loc weather.Location) (weather.CurrentConditions, error) {
	if p.currentErr != nil {
		return weather.CurrentConditions{}, p.currentErr
	}
	return weather.CurrentConditions{
		Name:   loc.City,
		Sample: weather.Sample{Timestamp: now.Unix(), Temperature: 17, Icon: "01d", Description: "clear sky"},
	}, nil
}

func (p *stubProvider) FetchForecast(_ context.Context, loc weather.Location) (weather.Envelope, error) {
	if p.forecastErr != nil {
		return weather.Envelope{}, p.forecastErr
	}
	var samples []weather.Sample
	for h := 0; h < 5*24; h += 3 {
		samples = append(samples, weather.Sample{
			Timestamp:   now.Add(time.Duration(h) * time.Hour).Unix(),
			Temperature: float64(h % 24),
			Icon:        "03d",
		})
	}
	return weather.Envelope{City: loc.City, TimezoneOffset: 7200, Samples: samples}, nil
}

func testApp(p weather.Provider) *fiber.App {
	app := fiber.New()
	svc := weather.NewService(p, store.NewMemoryStore(), weather.NewSession(), weather.ServiceConfig{
		Viewer: time.UTC,
		Clock:  clockwork.NewFakeClockAt(now),
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	RegisterRoutes(app, svc, time.Second)
	return app
}

func do(t *testing.T, app *fiber.App, method, target string, body io.Reader) (*http.Response, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, target, body)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := app.Test(req)
	require.NoError(t, err)

	var out map[string]any
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &out)
	}
	return resp, out
}

func TestProjectionsBeforeRefresh(t *testing.T) {
	app := testApp(&stubProvider{})

	for _, path := range []string{"/api/v1/weather/current", "/api/v1/weather/hourly", "/api/v1/weather/daily", "/api/v1/weather/today"} {
		resp, _ := do(t, app, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode, path)
	}
}

func TestRefreshValidation(t *testing.T) {
	app := testApp(&stubProvider{})

	resp, _ := do(t, app, http.MethodPost, "/api/v1/weather/refresh", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = do(t, app, http.MethodPost, "/api/v1/weather/refresh?city="+strings.Repeat("x", 101), nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRefreshAndProjections(t *testing.T) {
	app := testApp(&stubProvider{})

	resp, body := do(t, app, http.MethodPost, "/api/v1/weather/refresh?city=Gdansk&country=PL", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["current"].(map[string]any)["ok"])
	assert.Equal(t, true, body["forecast"].(map[string]any)["ok"])
	assert.NotEmpty(t, body["snapshot"])

	resp, body = do(t, app, http.MethodGet, "/api/v1/weather/current", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Gdansk", body["name"])

	resp, body = do(t, app, http.MethodGet, "/api/v1/weather/hourly?limit=2", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	hours := body["hours"].([]any)
	require.Len(t, hours, 2)
	first := hours[0].(map[string]any)
	// 15:00 UTC at UTC+2.
	assert.Equal(t, "17:00", first["time"])
	assert.Equal(t, float64(now.Add(3*time.Hour).Unix()), first["timestamp"])

	resp, body = do(t, app, http.MethodGet, "/api/v1/weather/hourly", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, body["hours"].([]any), weather.DefaultWindow)

	resp, body = do(t, app, http.MethodGet, "/api/v1/weather/daily?skip=1&limit=5", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	days := body["days"].([]any)
	require.Len(t, days, 5)
	assert.Equal(t, "03d", days[0].(map[string]any)["icon"])

	resp, body = do(t, app, http.MethodGet, "/api/v1/weather/today", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	// 12:00 through 21:00 UTC.
	assert.Len(t, body["samples"].([]any), 4)

	resp, body = do(t, app, http.MethodGet, "/api/v1/preferences", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Gdansk,PL", body["city"])
	assert.Equal(t, "light", body["theme"])
}

func TestQueryValidation(t *testing.T) {
	app := testApp(&stubProvider{})
	_, _ = do(t, app, http.MethodPost, "/api/v1/weather/refresh?city=Gdansk", nil)

	resp, _ := do(t, app, http.MethodGet, "/api/v1/weather/hourly?limit=41", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = do(t, app, http.MethodGet, "/api/v1/weather/hourly?limit=abc", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = do(t, app, http.MethodGet, "/api/v1/weather/daily?skip=-1", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRefreshFailures(t *testing.T) {
	decodeErr := &weather.TransportError{Kind: weather.DecodeFailure, Provider: "stub", Op: "forecast"}
	netErr := &weather.TransportError{Kind: weather.NetworkFailure, Provider: "stub", Op: "current"}

	t.Run("partial", func(t *testing.T) {
		app := testApp(&stubProvider{forecastErr: decodeErr})

		resp, body := do(t, app, http.MethodPost, "/api/v1/weather/refresh?city=Atlantis", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, true, body["current"].(map[string]any)["ok"])
		forecast := body["forecast"].(map[string]any)
		assert.Equal(t, false, forecast["ok"])
		assert.Equal(t, "decode_failure", forecast["kind"])

		resp, _ = do(t, app, http.MethodGet, "/api/v1/weather/daily", nil)
		assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	})

	t.Run("both", func(t *testing.T) {
		app := testApp(&stubProvider{currentErr: netErr, forecastErr: decodeErr})

		resp, body := do(t, app, http.MethodPost, "/api/v1/weather/refresh?city=Atlantis", nil)
		require.Equal(t, http.StatusBadGateway, resp.StatusCode)
		assert.Equal(t, "network_failure", body["current"].(map[string]any)["kind"])
	})
}

func TestPreferences(t *testing.T) {
	app := testApp(&stubProvider{})

	resp, body := do(t, app, http.MethodPut, "/api/v1/preferences", strings.NewReader(`{"city":"Krakow","theme":"dark"}`))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Krakow", body["city"])
	assert.Equal(t, "dark", body["theme"])

	resp, _ = do(t, app, http.MethodPut, "/api/v1/preferences", strings.NewReader(`{"theme":"sepia"}`))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRefreshSupersededIsReported(t *testing.T) {
	resp := newRefreshResponse(weather.RefreshResult{
		Location:   weather.Location{City: "Old"},
		Superseded: true,
	})
	assert.True(t, resp.Superseded)
	assert.True(t, resp.Current.OK)
}
