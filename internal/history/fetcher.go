package history

import (
	"context"
	"time"

	"github.com/yanun0323/errors"

	"bridge/internal/model"
	"bridge/internal/model/enum"
)

// Pager fetches one page of bars ending at end, newest page first. The
// upstream caps page size, so a range larger than one page is walked
// backwards from end by the fetcher.
type Pager interface {
	Bars(ctx context.Context, symbol string, g enum.Granularity, start, end time.Time) ([]model.Bar, error)
}

// FetchRange retrieves the full [begin, end] range by issuing successive
// page requests with a shrinking end cursor set one granularity unit
// before the earliest bar already seen. Pages are concatenated and
// deduplicated by timestamp, first occurrence kept.
func FetchRange(ctx context.Context, pager Pager, symbol string, g enum.Granularity, begin, end time.Time) ([]model.Bar, error) {
	var all []model.Bar
	curr := end
	unit := GranularityUnit(g)

	for {
		page, err := pager.Bars(ctx, symbol, g, begin, curr)
		if err != nil {
			return nil, errors.Wrap(err, "fetch bars page")
		}
		if len(page) == 0 {
			// no more data upstream, return what accumulated
			break
		}
		all = append(append([]model.Bar{}, page...), all...)
		earliest := page[0].Time
		if !earliest.After(begin) {
			break
		}
		curr = earliest.Add(-unit)
	}
	return dedupe(all), nil
}

func dedupe(bars []model.Bar) []model.Bar {
	if len(bars) == 0 {
		return bars
	}
	seen := make(map[int64]struct{}, len(bars))
	out := bars[:0]
	for _, b := range bars {
		key := b.Time.UnixNano()
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, b)
	}
	return out
}

// Window clips bars to the [begin, end] range, inclusive.
func Window(bars []model.Bar, begin, end time.Time) []model.Bar {
	out := bars[:0]
	for _, b := range bars {
		if b.Time.Before(begin) || b.Time.After(end) {
			continue
		}
		out = append(out, b)
	}
	return out
}

// FilterSession keeps only samples inside the exchange session,
// 09:30-16:00 New York inclusive. Daily and coarser data bypasses this.
func FilterSession(bars []model.Bar) []model.Bar {
	out := bars[:0]
	for _, b := range bars {
		t := b.Time.In(locNY)
		minute := t.Hour()*60 + t.Minute()
		if minute < sessionOpenMinute || minute > sessionCloseMinute {
			continue
		}
		out = append(out, b)
	}
	return out
}
