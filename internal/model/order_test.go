package model

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"bridge/internal/model/enum"
	"bridge/pkg/exception"
)

func fptr(v float64) *float64 { return &v }

func TestOrderIntentValidate(t *testing.T) {
	testCases := []struct {
		desc   string
		intent OrderIntent
		want   error
	}{
		{
			"market ok",
			OrderIntent{Symbol: "AAPL", Side: enum.OrderSideBuy, Type: enum.OrderTypeMarket, Qty: 1},
			nil,
		},
		{
			"missing side",
			OrderIntent{Symbol: "AAPL", Type: enum.OrderTypeMarket, Qty: 1},
			exception.ErrOrderInvalidSide,
		},
		{
			"missing type",
			OrderIntent{Symbol: "AAPL", Side: enum.OrderSideBuy, Qty: 1},
			exception.ErrOrderInvalidType,
		},
		{
			"zero quantity",
			OrderIntent{Symbol: "AAPL", Side: enum.OrderSideBuy, Type: enum.OrderTypeMarket},
			exception.ErrOrderInvalidQty,
		},
		{
			"limit without price",
			OrderIntent{Symbol: "AAPL", Side: enum.OrderSideBuy, Type: enum.OrderTypeLimit, Qty: 1},
			exception.ErrOrderLimitNeedsPrice,
		},
		{
			"limit with price",
			OrderIntent{Symbol: "AAPL", Side: enum.OrderSideBuy, Type: enum.OrderTypeLimit, Qty: 1, LimitPrice: fptr(100)},
			nil,
		},
		{
			"stop without price",
			OrderIntent{Symbol: "AAPL", Side: enum.OrderSideSell, Type: enum.OrderTypeStop, Qty: 1},
			exception.ErrOrderStopNeedsPrice,
		},
		{
			"stop limit missing limit",
			OrderIntent{Symbol: "AAPL", Side: enum.OrderSideSell, Type: enum.OrderTypeStopLimit, Qty: 1, StopPrice: fptr(90)},
			exception.ErrOrderLimitNeedsPrice,
		},
		{
			"stop limit complete",
			OrderIntent{Symbol: "AAPL", Side: enum.OrderSideSell, Type: enum.OrderTypeStopLimit, Qty: 1, StopPrice: fptr(90), LimitPrice: fptr(89)},
			nil,
		},
		{
			"trailing both set",
			OrderIntent{Symbol: "AAPL", Side: enum.OrderSideSell, Type: enum.OrderTypeTrailingStop, Qty: 1, TrailPercent: fptr(1), TrailAmount: fptr(2)},
			exception.ErrOrderTrailBothSet,
		},
		{
			"trailing none set",
			OrderIntent{Symbol: "AAPL", Side: enum.OrderSideSell, Type: enum.OrderTypeTrailingStop, Qty: 1},
			exception.ErrOrderTrailNoneSet,
		},
		{
			"trailing percent only",
			OrderIntent{Symbol: "AAPL", Side: enum.OrderSideSell, Type: enum.OrderTypeTrailingStop, Qty: 1, TrailPercent: fptr(1.5)},
			nil,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			err := tc.intent.Validate()
			if tc.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestOrderIntentBracket(t *testing.T) {
	assert.False(t, OrderIntent{}.Bracket())
	assert.True(t, OrderIntent{StopLoss: &BracketLeg{Price: 90}}.Bracket())
	assert.True(t, OrderIntent{TakeProfit: &BracketLeg{Price: 110}}.Bracket())
}

func TestQuotePrice(t *testing.T) {
	q := Quote{BidPrice: 99.5, AskPrice: 100.5}
	assert.Equal(t, 99.5, q.Price(false))
	assert.Equal(t, 100.5, q.Price(true))
}
