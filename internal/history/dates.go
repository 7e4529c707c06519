package history

import (
	"time"

	"bridge/internal/model/enum"
)

// The exchange session clock. A full exchange calendar (holidays, short
// sessions) is an external concern; a weekday 09:30-16:00 New York
// window stands in at this boundary.

const (
	sessionOpenMinute  = 9*60 + 30
	sessionCloseMinute = 16 * 60
)

var locNY = mustLoadNY()

// injectable clock for tests
var timeNow = time.Now

func mustLoadNY() *time.Location {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		panic(err)
	}
	return loc
}

// NYLocation returns the exchange-local zone used for all emitted bars.
func NYLocation() *time.Location {
	return locNY
}

// MarketOpenAt reports whether the exchange session is open at the given
// minute.
func MarketOpenAt(t time.Time) bool {
	t = t.In(locNY)
	switch t.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	minute := t.Hour()*60 + t.Minute()
	return minute >= sessionOpenMinute && minute < sessionCloseMinute
}

// Normalize fills in missing date bounds and repairs impossible ones.
//
//   - nil end defaults to now
//   - for intraday granularities, an end outside trading hours is walked
//     back to 15:59 on the prior session
//   - nil begin defaults to end minus 30 days (daily or coarser) or
//     minus 3 days (minute/tick)
//   - a begin after end is walked back one day at a time
//
// Both results are returned in the exchange-local zone. Applying
// Normalize to already-normalized inputs returns the same instants.
func Normalize(begin, end *time.Time, g enum.Granularity) (time.Time, time.Time) {
	var e time.Time
	if end == nil {
		e = timeNow().In(locNY)
	} else {
		e = end.In(locNY)
	}

	if g.Intraday() {
		for !MarketOpenAt(e.Add(ceilToMinute(e))) {
			e = time.Date(e.Year(), e.Month(), e.Day(), 15, 59, 0, 0, locNY)
			e = e.AddDate(0, 0, -1)
		}
	}

	var b time.Time
	if begin == nil {
		days := 30
		if g.Intraday() {
			days = 3
		}
		b = e.AddDate(0, 0, -days)
	} else {
		b = begin.In(locNY)
	}

	// starting mid-session with a forward-dated begin resolves here
	for b.After(e) {
		b = b.AddDate(0, 0, -1)
	}
	return b, e
}

func ceilToMinute(t time.Time) time.Duration {
	rem := time.Duration(t.Second())*time.Second + time.Duration(t.Nanosecond())
	if rem == 0 {
		return 0
	}
	return time.Minute - rem
}

// GranularityUnit is the cursor step used when paginating backwards.
func GranularityUnit(g enum.Granularity) time.Duration {
	if g.Intraday() {
		return time.Minute
	}
	return 24 * time.Hour
}
