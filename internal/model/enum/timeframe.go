package enum

// TimeFrame is the bar sampling unit before compression is applied.
type TimeFrame uint8

const (
	_time_frame_beg TimeFrame = iota
	TimeFrameTicks
	TimeFrameSeconds
	TimeFrameMinutes
	TimeFrameDays
	TimeFrameWeeks
	TimeFrameMonths
	_time_frame_end
)

func (tf TimeFrame) IsAvailable() bool {
	return tf > _time_frame_beg && tf < _time_frame_end
}

func (tf TimeFrame) String() string {
	switch tf {
	case TimeFrameTicks:
		return "ticks"
	case TimeFrameSeconds:
		return "seconds"
	case TimeFrameMinutes:
		return "minutes"
	case TimeFrameDays:
		return "days"
	case TimeFrameWeeks:
		return "weeks"
	case TimeFrameMonths:
		return "months"
	default:
		return "unknown"
	}
}

// Granularity is the upstream request unit a timeframe maps onto.
type Granularity uint8

const (
	_granularity_beg Granularity = iota
	GranularityTicks
	GranularityMinute
	GranularityDaily
	GranularityWeekly
	GranularityMonthly
	_granularity_end
)

func (g Granularity) IsAvailable() bool {
	return g > _granularity_beg && g < _granularity_end
}

// Intraday reports whether the granularity is finer than a day.
// Daily and coarser bypass session-hours filtering.
func (g Granularity) Intraday() bool {
	return g == GranularityTicks || g == GranularityMinute
}

// DataTier selects the market-data subscription tier.
type DataTier uint8

const (
	_data_tier_beg DataTier = iota
	DataTierIEX
	DataTierSIP
	_data_tier_end
)

func (t DataTier) IsAvailable() bool {
	return t > _data_tier_beg && t < _data_tier_end
}

func (t DataTier) String() string {
	switch t {
	case DataTierSIP:
		return "sip"
	default:
		return "iex"
	}
}
