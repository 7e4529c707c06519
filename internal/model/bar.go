package model

import (
	"time"

	"bridge/internal/model/enum"
)

// Bar is one OHLCV sample. Time carries the exchange-local zone.
// Open interest is always zero for this source; feeds emit it as such.
type Bar struct {
	Time   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// Quote is one bid/ask tick. Volume is always zero.
type Quote struct {
	Time     time.Time
	BidPrice float64
	AskPrice float64
}

// Price returns the configured side of the quote.
func (q Quote) Price(useAsk bool) float64 {
	if useAsk {
		return q.AskPrice
	}
	return q.BidPrice
}

// Instrument is the broker's view of a tradable asset.
type Instrument struct {
	ID       string
	Symbol   string
	Class    enum.AssetClass
	Tradable bool
}
