package history

import (
	"sort"
	"time"

	"bridge/internal/model"
	"bridge/internal/model/enum"
)

// Resample aggregates unit bars into compression-sized windows:
// open=first, high=max, low=min, close=last, volume=sum. Window labels
// are the bucket start. Minute data is re-filtered to session hours
// afterwards, matching the upstream source behavior.
func Resample(bars []model.Bar, g enum.Granularity, compression int) []model.Bar {
	if compression <= 1 || len(bars) == 0 {
		return bars
	}

	buckets := make(map[int64]*model.Bar)
	order := make([]int64, 0, len(bars))
	for _, b := range bars {
		key := bucketStart(b.Time, g, compression).UnixNano()
		agg, ok := buckets[key]
		if !ok {
			copied := b
			copied.Time = time.Unix(0, key).In(locNY)
			buckets[key] = &copied
			order = append(order, key)
			continue
		}
		if b.High > agg.High {
			agg.High = b.High
		}
		if b.Low < agg.Low {
			agg.Low = b.Low
		}
		agg.Close = b.Close
		agg.Volume += b.Volume
	}

	sort.Slice(order, func(i, j int) bool { return order[i] < order[j] })
	out := make([]model.Bar, 0, len(order))
	for _, key := range order {
		out = append(out, *buckets[key])
	}
	if g.Intraday() {
		out = FilterSession(out)
	}
	return out
}

func bucketStart(t time.Time, g enum.Granularity, compression int) time.Time {
	t = t.In(locNY)
	if g.Intraday() {
		minute := t.Hour()*60 + t.Minute()
		minute -= minute % compression
		return time.Date(t.Year(), t.Month(), t.Day(), minute/60, minute%60, 0, 0, locNY)
	}
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, locNY)
	epochDays := int(day.Unix() / 86400)
	return day.AddDate(0, 0, -(epochDays % compression))
}
