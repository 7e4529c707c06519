package exception

import "errors"

var (
	ErrFeedUnsupportedTimeFrame = errors.New("feed: unsupported timeframe/compression")
	ErrFeedNilSource            = errors.New("feed: nil source")
	ErrFeedEmptySymbol          = errors.New("feed: empty symbol")
	ErrFeedAlreadyStarted       = errors.New("feed: already started")
)
