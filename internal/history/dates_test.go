package history

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bridge/internal/model/enum"
)

func nyTime(y int, m time.Month, d, hh, mm int) time.Time {
	return time.Date(y, m, d, hh, mm, 0, 0, locNY)
}

func withNow(t *testing.T, now time.Time) {
	t.Helper()
	prev := timeNow
	timeNow = func() time.Time { return now }
	t.Cleanup(func() { timeNow = prev })
}

func TestMarketOpenAt(t *testing.T) {
	testCases := []struct {
		desc string
		at   time.Time
		open bool
	}{
		{"wednesday midday", nyTime(2025, time.June, 11, 12, 0), true},
		{"session open edge", nyTime(2025, time.June, 11, 9, 30), true},
		{"one before open", nyTime(2025, time.June, 11, 9, 29), false},
		{"last session minute", nyTime(2025, time.June, 11, 15, 59), true},
		{"session close edge", nyTime(2025, time.June, 11, 16, 0), false},
		{"saturday", nyTime(2025, time.June, 14, 12, 0), false},
		{"sunday", nyTime(2025, time.June, 15, 12, 0), false},
	}
	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			assert.Equal(t, tc.open, MarketOpenAt(tc.at))
		})
	}
}

func TestNormalizeDefaults(t *testing.T) {
	// Wednesday midday, market open
	now := nyTime(2025, time.June, 11, 12, 0)
	withNow(t, now)

	b, e := Normalize(nil, nil, enum.GranularityDaily)
	assert.True(t, e.Equal(now), "daily end should default to now")
	assert.True(t, b.Equal(now.AddDate(0, 0, -30)), "daily begin should default to end minus 30 days")

	b, e = Normalize(nil, nil, enum.GranularityMinute)
	assert.True(t, e.Equal(now), "intraday end should stay at an open-market now")
	assert.True(t, b.Equal(now.AddDate(0, 0, -3)), "intraday begin should default to end minus 3 days")
}

func TestNormalizeClosedMarketWalkback(t *testing.T) {
	testCases := []struct {
		desc string
		end  time.Time
		want time.Time
	}{
		{
			"friday evening rolls to thursday close",
			nyTime(2025, time.June, 13, 20, 0),
			nyTime(2025, time.June, 12, 15, 59),
		},
		{
			"saturday rolls to friday close",
			nyTime(2025, time.June, 14, 12, 0),
			nyTime(2025, time.June, 13, 15, 59),
		},
		{
			"sunday rolls to friday close",
			nyTime(2025, time.June, 15, 12, 0),
			nyTime(2025, time.June, 13, 15, 59),
		},
		{
			"pre-open monday rolls to friday close",
			nyTime(2025, time.June, 16, 8, 0),
			nyTime(2025, time.June, 13, 15, 59),
		},
	}
	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			end := tc.end
			_, e := Normalize(nil, &end, enum.GranularityMinute)
			assert.True(t, e.Equal(tc.want), "got %s want %s", e, tc.want)
		})
	}
}

func TestNormalizeDailyIgnoresSessionHours(t *testing.T) {
	end := nyTime(2025, time.June, 14, 12, 0) // Saturday
	_, e := Normalize(nil, &end, enum.GranularityDaily)
	assert.True(t, e.Equal(end), "daily bounds are not session-adjusted")
}

func TestNormalizeBeginAfterEnd(t *testing.T) {
	end := nyTime(2025, time.June, 11, 12, 0)
	begin := end.Add(36 * time.Hour)
	b, e := Normalize(&begin, &end, enum.GranularityDaily)
	require.True(t, e.Equal(end))
	assert.False(t, b.After(e), "begin must be walked back to or before end")
}

func TestNormalizeIdempotent(t *testing.T) {
	end := nyTime(2025, time.June, 13, 20, 0)
	begin := nyTime(2025, time.June, 2, 9, 30)

	b1, e1 := Normalize(&begin, &end, enum.GranularityMinute)
	b2, e2 := Normalize(&b1, &e1, enum.GranularityMinute)
	assert.True(t, b1.Equal(b2))
	assert.True(t, e1.Equal(e2))
}
