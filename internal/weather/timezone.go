package weather

import "time"

// cityZone returns the fixed zone described by a UTC offset in seconds.
func cityZone(offset int) *time.Location {
	if offset == 0 {
		return time.UTC
	}
	return time.FixedZone("", offset)
}

// DayBoundary returns local midnight of ts in the zone implied by offset.
// The host's local timezone never takes part in the calculation.
func DayBoundary(ts int64, offset int) time.Time {
	t := time.Unix(ts, 0).In(cityZone(offset))
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// TimeOfDay formats the wall clock of ts as "HH:MM" under offset.
func TimeOfDay(ts int64, offset int) string {
	return time.Unix(ts, 0).In(cityZone(offset)).Format("15:04")
}

// sameDay reports whether a and b fall on the same calendar day in loc.
func sameDay(a, b time.Time, loc *time.Location) bool {
	a, b = a.In(loc), b.In(loc)
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
