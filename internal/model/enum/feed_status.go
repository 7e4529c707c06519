package enum

// FeedStatus is the coarse out-of-band state a feed reports to its consumer.
type FeedStatus uint8

const (
	_feed_status_beg FeedStatus = iota
	FeedStatusDelayed
	FeedStatusLive
	FeedStatusDisconnected
	FeedStatusConnBroken
	FeedStatusNotSubscribed
	FeedStatusNotSupportedTF
	_feed_status_end
)

func (s FeedStatus) IsAvailable() bool {
	return s > _feed_status_beg && s < _feed_status_end
}

func (s FeedStatus) String() string {
	switch s {
	case FeedStatusDelayed:
		return "DELAYED"
	case FeedStatusLive:
		return "LIVE"
	case FeedStatusDisconnected:
		return "DISCONNECTED"
	case FeedStatusConnBroken:
		return "CONNBROKEN"
	case FeedStatusNotSubscribed:
		return "NOTSUBSCRIBED"
	case FeedStatusNotSupportedTF:
		return "NOTSUPPORTED_TF"
	default:
		return "UNKNOWN"
	}
}
