package httpapi

import (
	"context"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/appweather/internal/weather"
)

var validate = validator.New()

// WeatherService is what the handlers need from weather.Service.
type WeatherService interface {
	Refresh(ctx context.Context, loc weather.Location) (weather.RefreshResult, error)
	Tracked() (weather.Location, bool)
	Current() (weather.CurrentConditions, error)
	Forecast() (weather.Envelope, error)
	Daily() ([]weather.DailySummary, error)
	HourlyForecast(n int) (weather.Envelope, []weather.Sample, error)
	Today() ([]weather.Sample, error)
	Preferences() (weather.Preferences, error)
	SetPreferences(p weather.Preferences) error
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
// refreshTimeout bounds the two provider calls of a refresh.
func RegisterRoutes(app *fiber.App, service WeatherService, refreshTimeout time.Duration) {
	v1 := app.Group("/api/v1")

	v1.Post("/weather/refresh", func(c *fiber.Ctx) error {
		var q locationQuery
		if err := q.bind(c); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		ctx, cancel := context.WithTimeout(c.UserContext(), refreshTimeout)
		defer cancel()

		res, err := service.Refresh(ctx, q.toLocation())
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		status := fiber.StatusOK
		if res.Failed() {
			status = fiber.StatusBadGateway
		}
		return c.Status(status).JSON(newRefreshResponse(res))
	})

	v1.Get("/weather/current", func(c *fiber.Ctx) error {
		cur, err := service.Current()
		if err != nil {
			return projectionError(err)
		}
		return c.JSON(cur)
	})

	v1.Get("/weather/hourly", func(c *fiber.Ctx) error {
		var q hourlyQuery
		if err := c.QueryParser(&q); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if err := validate.Struct(q); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		env, samples, err := service.HourlyForecast(q.Limit)
		if err != nil {
			return projectionError(err)
		}

		items := make([]hourlyItem, 0, len(samples))
		for _, s := range samples {
			items = append(items, hourlyItem{
				Sample: s,
				Time:   weather.TimeOfDay(s.Timestamp, env.TimezoneOffset),
			})
		}
		return c.JSON(fiber.Map{
			"city":           env.City,
			"timezoneOffset": env.TimezoneOffset,
			"hours":          items,
		})
	})

	v1.Get("/weather/daily", func(c *fiber.Ctx) error {
		var q dailyQuery
		if err := c.QueryParser(&q); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if err := validate.Struct(q); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		days, err := service.Daily()
		if err != nil {
			return projectionError(err)
		}
		return c.JSON(fiber.Map{
			"days": weather.Outlook(days, q.Skip, q.Limit),
		})
	})

	v1.Get("/weather/today", func(c *fiber.Ctx) error {
		samples, err := service.Today()
		if err != nil {
			return projectionError(err)
		}
		return c.JSON(fiber.Map{"samples": samples})
	})

	v1.Get("/preferences", func(c *fiber.Ctx) error {
		p, err := service.Preferences()
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to read preferences")
		}
		return c.JSON(p)
	})

	v1.Put("/preferences", func(c *fiber.Ctx) error {
		var body preferencesBody
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if err := validate.Struct(body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		if err := service.SetPreferences(weather.Preferences{City: body.City, Theme: body.Theme}); err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}

		p, err := service.Preferences()
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to read preferences")
		}
		return c.JSON(p)
	})
}

// projectionError maps service errors of read endpoints to HTTP errors.
func projectionError(err error) error {
	if errors.Is(err, weather.ErrNoData) {
		return fiber.NewError(fiber.StatusNotFound, "no weather data fetched yet")
	}
	if weather.KindOf(err) != 0 {
		return fiber.NewError(fiber.StatusBadGateway, err.Error())
	}
	return fiber.NewError(fiber.StatusInternalServerError, "failed to compute forecast")
}

// locationQuery holds query parameters for identifying a location.
type locationQuery struct {
	City    string `query:"city" validate:"required,max=100"`
	Country string `query:"country" validate:"omitempty,max=64"`
}

func (l *locationQuery) bind(c *fiber.Ctx) error {
	if err := c.QueryParser(l); err != nil {
		return err
	}
	return validate.Struct(l)
}

func (l locationQuery) toLocation() weather.Location {
	return weather.Location{
		City:    l.City,
		Country: l.Country,
	}
}

type hourlyQuery struct {
	Limit int `query:"limit" validate:"omitempty,min=1,max=40"`
}

type dailyQuery struct {
	Skip  int `query:"skip" validate:"min=0,max=16"`
	Limit int `query:"limit" validate:"omitempty,min=1,max=16"`
}

type preferencesBody struct {
	City  string `json:"city" validate:"omitempty,max=100"`
	Theme string `json:"theme" validate:"omitempty,oneof=light dark"`
}

type hourlyItem struct {
	weather.Sample
	Time string `json:"time"`
}

type partResponse struct {
	OK    bool   `json:"ok"`
	Kind  string `json:"kind,omitempty"`
	Error string `json:"error,omitempty"`
}

type refreshResponse struct {
	Snapshot string           `json:"snapshot"`
	Location weather.Location `json:"location"`
	Current  partResponse     `json:"current"`
	Forecast partResponse     `json:"forecast"`

	// Superseded results were not published; a newer refresh won.
	Superseded bool `json:"superseded,omitempty"`
}

func newPart(err error) partResponse {
	if err == nil {
		return partResponse{OK: true}
	}
	p := partResponse{Error: err.Error()}
	if kind := weather.KindOf(err); kind != 0 {
		p.Kind = kind.String()
	}
	return p
}

func newRefreshResponse(res weather.RefreshResult) refreshResponse {
	return refreshResponse{
		Snapshot:   res.SnapshotID.String(),
		Location:   res.Location,
		Current:    newPart(res.CurrentErr),
		Forecast:   newPart(res.ForecastErr),
		Superseded: res.Superseded,
	}
}
