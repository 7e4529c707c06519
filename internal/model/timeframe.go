package model

import "bridge/internal/model/enum"

type timeFrameKey struct {
	frame       enum.TimeFrame
	compression int
}

// supportedTimeFrames is the explicit allow-list of timeframe/compression
// pairs the upstream API accepts. Anything else is rejected at feed
// construction, never silently approximated.
var supportedTimeFrames = map[timeFrameKey]struct{}{
	{enum.TimeFrameTicks, 1}:     {},
	{enum.TimeFrameSeconds, 1}:   {},
	{enum.TimeFrameSeconds, 5}:   {},
	{enum.TimeFrameSeconds, 15}:  {},
	{enum.TimeFrameSeconds, 30}:  {},
	{enum.TimeFrameMinutes, 1}:   {},
	{enum.TimeFrameMinutes, 2}:   {},
	{enum.TimeFrameMinutes, 3}:   {},
	{enum.TimeFrameMinutes, 4}:   {},
	{enum.TimeFrameMinutes, 5}:   {},
	{enum.TimeFrameMinutes, 10}:  {},
	{enum.TimeFrameMinutes, 15}:  {},
	{enum.TimeFrameMinutes, 30}:  {},
	{enum.TimeFrameMinutes, 60}:  {},
	{enum.TimeFrameMinutes, 120}: {},
	{enum.TimeFrameMinutes, 180}: {},
	{enum.TimeFrameMinutes, 240}: {},
	{enum.TimeFrameMinutes, 360}: {},
	{enum.TimeFrameMinutes, 480}: {},
	{enum.TimeFrameDays, 1}:      {},
	{enum.TimeFrameWeeks, 1}:     {},
	{enum.TimeFrameMonths, 1}:    {},
}

// SupportedTimeFrame reports whether the timeframe/compression pair is in
// the allow-list.
func SupportedTimeFrame(frame enum.TimeFrame, compression int) bool {
	_, ok := supportedTimeFrames[timeFrameKey{frame, compression}]
	return ok
}

// GranularityOf maps a timeframe onto the upstream request granularity.
// Second-level and tick timeframes backfill from minute bars, the finest
// historical unit the API serves.
func GranularityOf(frame enum.TimeFrame) enum.Granularity {
	switch frame {
	case enum.TimeFrameTicks:
		return enum.GranularityTicks
	case enum.TimeFrameSeconds, enum.TimeFrameMinutes:
		return enum.GranularityMinute
	case enum.TimeFrameDays:
		return enum.GranularityDaily
	case enum.TimeFrameWeeks:
		return enum.GranularityWeekly
	case enum.TimeFrameMonths:
		return enum.GranularityMonthly
	default:
		return 0
	}
}
