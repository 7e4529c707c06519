package alpaca

import (
	"strconv"
	"time"

	"github.com/yanun0323/decimal"
)

// The broker serializes money and quantity fields as decimal strings.

// Account is the broker account snapshot payload.
type Account struct {
	ID             string          `json:"id"`
	Status         string          `json:"status"`
	Currency       string          `json:"currency"`
	Cash           decimal.Decimal `json:"cash"`
	PortfolioValue decimal.Decimal `json:"portfolio_value"`
}

// Asset describes a tradable instrument.
type Asset struct {
	ID       string `json:"id"`
	Class    string `json:"class"`
	Symbol   string `json:"symbol"`
	Tradable bool   `json:"tradable"`
}

// Order is the broker's order payload, shared by submission responses
// and trade-stream events.
type Order struct {
	ID             string           `json:"id"`
	ClientOrderID  string           `json:"client_order_id"`
	Symbol         string           `json:"symbol"`
	Status         string           `json:"status"`
	Side           string           `json:"side"`
	Type           string           `json:"type"`
	Qty            decimal.Decimal  `json:"qty"`
	FilledQty      decimal.Decimal  `json:"filled_qty"`
	FilledAvgPrice *decimal.Decimal `json:"filled_avg_price"`
	Legs           []Order          `json:"legs"`
}

// Position is one open position row.
type Position struct {
	Symbol        string          `json:"symbol"`
	Side          string          `json:"side"`
	Qty           decimal.Decimal `json:"qty"`
	AvgEntryPrice decimal.Decimal `json:"avg_entry_price"`
	MarketValue   decimal.Decimal `json:"market_value"`
}

// StopLossSpec is the bracket stop-loss leg request field.
type StopLossSpec struct {
	StopPrice string `json:"stop_price"`
}

// TakeProfitSpec is the bracket take-profit leg request field.
type TakeProfitSpec struct {
	LimitPrice string `json:"limit_price"`
}

// OrderRequest is the order submission body. Optional fields are omitted
// rather than sent empty; the broker rejects unknown combinations.
type OrderRequest struct {
	Symbol        string          `json:"symbol"`
	Qty           string          `json:"qty"`
	Side          string          `json:"side"`
	Type          string          `json:"type"`
	TimeInForce   string          `json:"time_in_force"`
	LimitPrice    string          `json:"limit_price,omitempty"`
	StopPrice     string          `json:"stop_price,omitempty"`
	TrailPrice    string          `json:"trail_price,omitempty"`
	TrailPercent  string          `json:"trail_percent,omitempty"`
	OrderClass    string          `json:"order_class,omitempty"`
	ClientOrderID string          `json:"client_order_id,omitempty"`
	StopLoss      *StopLossSpec   `json:"stop_loss,omitempty"`
	TakeProfit    *TakeProfitSpec `json:"take_profit,omitempty"`
}

type apiErrorPayload struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type barPayload struct {
	Time   time.Time `json:"t"`
	Open   float64   `json:"o"`
	High   float64   `json:"h"`
	Low    float64   `json:"l"`
	Close  float64   `json:"c"`
	Volume float64   `json:"v"`
}

type stockBarsPage struct {
	Bars          []barPayload `json:"bars"`
	Symbol        string       `json:"symbol"`
	NextPageToken *string      `json:"next_page_token"`
}

type multiBarsPage struct {
	Bars          map[string][]barPayload `json:"bars"`
	NextPageToken *string                 `json:"next_page_token"`
}

// Float converts a wire decimal into a float64. The zero Decimal yields 0.
func Float(d decimal.Decimal) float64 {
	f, err := strconv.ParseFloat(d.String(), 64)
	if err != nil {
		return 0
	}
	return f
}

// FloatPtr converts an optional wire decimal into a float64.
func FloatPtr(d *decimal.Decimal) float64 {
	if d == nil {
		return 0
	}
	return Float(*d)
}

// FormatQty renders a quantity the way the order endpoint expects,
// rounded to two decimal places.
func FormatQty(qty float64) string {
	return strconv.FormatFloat(round2(qty), 'f', -1, 64)
}

// FormatPrice renders a price field for an order request.
func FormatPrice(p float64) string {
	return strconv.FormatFloat(p, 'f', -1, 64)
}

func round2(f float64) float64 {
	return float64(int64(f*100+0.5)) / 100
}
