package model

import (
	"bridge/internal/model/enum"
	"bridge/pkg/exception"
)

// BracketLeg is an attached stop-loss or take-profit child order.
type BracketLeg struct {
	Price float64
}

// OrderIntent is a consumer-level order request before it is mapped onto
// a broker request shape. Optional prices use pointers so "not set" is
// distinguishable from zero.
type OrderIntent struct {
	Symbol       string
	Side         enum.OrderSide
	Type         enum.OrderType
	Qty          float64
	LimitPrice   *float64
	StopPrice    *float64
	TrailPercent *float64
	TrailAmount  *float64
	StopLoss     *BracketLeg
	TakeProfit   *BracketLeg
}

// Bracket reports whether the intent carries child legs.
func (o OrderIntent) Bracket() bool {
	return o.StopLoss != nil || o.TakeProfit != nil
}

// Validate rejects malformed intents before they reach the network.
func (o OrderIntent) Validate() error {
	if !o.Side.IsAvailable() {
		return exception.ErrOrderInvalidSide
	}
	if !o.Type.IsAvailable() {
		return exception.ErrOrderInvalidType
	}
	if o.Qty <= 0 {
		return exception.ErrOrderInvalidQty
	}

	switch o.Type {
	case enum.OrderTypeLimit:
		if o.LimitPrice == nil {
			return exception.ErrOrderLimitNeedsPrice
		}
	case enum.OrderTypeStop:
		if o.StopPrice == nil {
			return exception.ErrOrderStopNeedsPrice
		}
	case enum.OrderTypeStopLimit:
		if o.StopPrice == nil {
			return exception.ErrOrderStopNeedsPrice
		}
		if o.LimitPrice == nil {
			return exception.ErrOrderLimitNeedsPrice
		}
	case enum.OrderTypeTrailingStop:
		if o.TrailPercent != nil && o.TrailAmount != nil {
			return exception.ErrOrderTrailBothSet
		}
		if o.TrailPercent == nil && o.TrailAmount == nil {
			return exception.ErrOrderTrailNoneSet
		}
	}
	return nil
}
