package stream

import (
	"time"

	"bridge/internal/alpaca"
)

const (
	eventTypeBar          = "b"
	eventTypeQuote        = "q"
	eventTypeError        = "error"
	eventTypeSuccess      = "success"
	eventTypeSubscription = "subscription"

	authSuccessMsg = "authenticated"
)

// dataEvent is one element of a market-data stream frame. Frames arrive
// as JSON arrays of these.
type dataEvent struct {
	Type     string    `json:"T"`
	Symbol   string    `json:"S"`
	Open     float64   `json:"o"`
	High     float64   `json:"h"`
	Low      float64   `json:"l"`
	Close    float64   `json:"c"`
	Volume   float64   `json:"v"`
	BidPrice float64   `json:"bp"`
	AskPrice float64   `json:"ap"`
	Time     time.Time `json:"t"`
	Code     int       `json:"code"`
	Msg      string    `json:"msg"`
}

type authPayload struct {
	Action string `json:"action"`
	Key    string `json:"key"`
	Secret string `json:"secret"`
}

type subscribePayload struct {
	Action string   `json:"action"`
	Bars   []string `json:"bars,omitempty"`
	Quotes []string `json:"quotes,omitempty"`
}

// Trade-update stream framing, a separate protocol from market data.

type tradeAuthPayload struct {
	Action string `json:"action"`
	Data   struct {
		KeyID     string `json:"key_id"`
		SecretKey string `json:"secret_key"`
	} `json:"data"`
}

type tradeListenPayload struct {
	Action string `json:"action"`
	Data   struct {
		Streams []string `json:"streams"`
	} `json:"data"`
}

type tradeFrame struct {
	Stream string `json:"stream"`
	Data   struct {
		Event  string       `json:"event"`
		Status string       `json:"status"`
		Order  alpaca.Order `json:"order"`
	} `json:"data"`
}
