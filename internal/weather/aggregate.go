package weather

import (
	"sort"
	"time"
)

// DefaultWindow is the number of upcoming samples shown in the hourly outlook.
const DefaultWindow = 10

// sortedSamples returns a chronologically sorted copy of samples.
// The input slice is never reordered.
func sortedSamples(samples []Sample) []Sample {
	out := make([]Sample, len(samples))
	copy(out, samples)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp < out[j].Timestamp
	})
	return out
}

// DailySummaries groups the envelope's samples by calendar day in the city's
// zone and returns one summary per day, ascending.
// The icon of a day is its most frequent icon; ties go to the icon that
// reached the winning count first in chronological order.
func DailySummaries(env Envelope) []DailySummary {
	if len(env.Samples) == 0 {
		return []DailySummary{}
	}

	type bucket struct {
		day     time.Time
		min     float64
		max     float64
		counts  map[string]int
		best    string
		bestCnt int
	}

	var (
		order   []int64
		buckets = make(map[int64]*bucket)
	)

	for _, s := range sortedSamples(env.Samples) {
		day := DayBoundary(s.Timestamp, env.TimezoneOffset)
		key := day.Unix()

		b, ok := buckets[key]
		if !ok {
			b = &bucket{
				day:    day,
				min:    s.Temperature,
				max:    s.Temperature,
				counts: make(map[string]int),
			}
			buckets[key] = b
			order = append(order, key)
		}

		if s.Temperature < b.min {
			b.min = s.Temperature
		}
		if s.Temperature > b.max {
			b.max = s.Temperature
		}

		icon := s.Icon
		if icon == "" {
			icon = DefaultIcon
		}
		b.counts[icon]++
		if c := b.counts[icon]; c > b.bestCnt {
			b.bestCnt = c
			b.best = icon
		}
	}

	// Samples were visited in time order, so keys are already ascending.
	out := make([]DailySummary, 0, len(order))
	for _, k := range order {
		b := buckets[k]
		out = append(out, DailySummary{
			Day:            b.day,
			MinTemperature: b.min,
			MaxTemperature: b.max,
			Icon:           b.best,
		})
	}
	return out
}

// Outlook slices days the way the daily view consumes them: skip leading
// entries (usually the partially elapsed current day), then take up to limit.
// A non-positive limit means no upper bound.
func Outlook(days []DailySummary, skip, limit int) []DailySummary {
	if skip < 0 {
		skip = 0
	}
	if skip >= len(days) {
		return []DailySummary{}
	}
	days = days[skip:]
	if limit > 0 && limit < len(days) {
		days = days[:limit]
	}
	out := make([]DailySummary, len(days))
	copy(out, days)
	return out
}

// NextHours returns up to n samples strictly after now, ascending.
func NextHours(env Envelope, now time.Time, n int) []Sample {
	out := []Sample{}
	if n <= 0 {
		return out
	}

	cutoff := now.Unix()
	for _, s := range sortedSamples(env.Samples) {
		if s.Timestamp <= cutoff {
			continue
		}
		out = append(out, s)
		if len(out) == n {
			break
		}
	}
	return out
}

// TodaysSamples returns the samples falling on now's calendar day in the
// viewer's zone, in input order. A nil viewer means UTC.
// Unlike DailySummaries, the city offset plays no part here.
func TodaysSamples(env Envelope, now time.Time, viewer *time.Location) []Sample {
	if viewer == nil {
		viewer = time.UTC
	}

	out := []Sample{}
	for _, s := range env.Samples {
		if sameDay(s.Time(), now, viewer) {
			out = append(out, s)
		}
	}
	return out
}
