package weather

import (
	"strings"
	"time"
)

// DefaultIcon is used when the provider returns a record without any condition.
const DefaultIcon = "01d"

// Location identifies the city the session is tracking.
// Country is optional and only narrows the provider lookup.
type Location struct {
	City    string `json:"city"`
	Country string `json:"country,omitempty"`
}

// Key returns a canonical, case-insensitive key for the location.
func (l Location) Key() string {
	k := strings.ToLower(strings.TrimSpace(l.City))
	if l.Country != "" {
		k += ":" + strings.ToLower(strings.TrimSpace(l.Country))
	}
	return k
}

// Query returns the "city,country" form accepted by the providers.
func (l Location) Query() string {
	if l.Country == "" {
		return strings.TrimSpace(l.City)
	}
	return strings.TrimSpace(l.City) + "," + strings.TrimSpace(l.Country)
}

// ParseLocation parses the "city" or "city,country" form produced by Query.
func ParseLocation(s string) Location {
	s = strings.TrimSpace(s)
	if i := strings.LastIndex(s, ","); i >= 0 {
		return Location{
			City:    strings.TrimSpace(s[:i]),
			Country: strings.TrimSpace(s[i+1:]),
		}
	}
	return Location{City: s}
}

// Sample is one forecast record as delivered by a provider.
type Sample struct {
	Timestamp   int64   `json:"timestamp"` // epoch seconds
	Temperature float64 `json:"temperatureC"`
	Icon        string  `json:"icon"`
	Description string  `json:"description,omitempty"`
}

// Time returns the sample instant in UTC.
func (s Sample) Time() time.Time {
	return time.Unix(s.Timestamp, 0).UTC()
}

// Envelope is a decoded forecast response.
// Samples are usually ascending but nothing here relies on that.
type Envelope struct {
	City           string   `json:"city,omitempty"`
	TimezoneOffset int      `json:"timezoneOffset"` // seconds east of UTC
	Samples        []Sample `json:"samples"`
}

// DailySummary aggregates the samples of one calendar day in the city's zone.
type DailySummary struct {
	Day            time.Time `json:"day"`
	MinTemperature float64   `json:"minTemperatureC"`
	MaxTemperature float64   `json:"maxTemperatureC"`
	Icon           string    `json:"icon"`
}

// CurrentConditions is the provider's "now" reading for the queried city.
type CurrentConditions struct {
	Name           string  `json:"name"`
	Sample         Sample  `json:"sample"`
	TimezoneOffset int     `json:"timezoneOffset"`
	MinTemperature float64 `json:"minTemperatureC"`
	MaxTemperature float64 `json:"maxTemperatureC"`
}
