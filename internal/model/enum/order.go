package enum

// OrderSide buy, sell
type OrderSide uint8

const (
	_order_side_beg OrderSide = iota
	OrderSideBuy
	OrderSideSell
	_order_side_end
)

func (s OrderSide) IsAvailable() bool {
	return s > _order_side_beg && s < _order_side_end
}

func (s OrderSide) String() string {
	switch s {
	case OrderSideBuy:
		return "buy"
	case OrderSideSell:
		return "sell"
	default:
		return "unknown"
	}
}

// OrderType market, limit, stop, stop limit, trailing stop
type OrderType uint8

const (
	_order_type_beg OrderType = iota
	OrderTypeMarket
	OrderTypeLimit
	OrderTypeStop
	OrderTypeStopLimit
	OrderTypeTrailingStop
	_order_type_end
)

func (t OrderType) IsAvailable() bool {
	return t > _order_type_beg && t < _order_type_end
}

func (t OrderType) String() string {
	switch t {
	case OrderTypeMarket:
		return "market"
	case OrderTypeLimit:
		return "limit"
	case OrderTypeStop:
		return "stop"
	case OrderTypeStopLimit:
		return "stop_limit"
	case OrderTypeTrailingStop:
		return "trailing_stop"
	default:
		return "unknown"
	}
}

// OrderTimeInForce day, GTC
type OrderTimeInForce uint8

const (
	_order_time_in_force_beg OrderTimeInForce = iota
	OrderTimeInForceDay
	OrderTimeInForceGTC
	_order_time_in_force_end
)

func (s OrderTimeInForce) IsAvailable() bool {
	return s > _order_time_in_force_beg && s < _order_time_in_force_end
}

func (s OrderTimeInForce) String() string {
	switch s {
	case OrderTimeInForceGTC:
		return "gtc"
	default:
		return "day"
	}
}

// AssetClass us equity, crypto, us option
type AssetClass uint8

const (
	_asset_class_beg AssetClass = iota
	AssetClassUSEquity
	AssetClassCrypto
	AssetClassUSOption
	_asset_class_end
)

func (c AssetClass) IsAvailable() bool {
	return c > _asset_class_beg && c < _asset_class_end
}

func (c AssetClass) String() string {
	switch c {
	case AssetClassUSEquity:
		return "us_equity"
	case AssetClassCrypto:
		return "crypto"
	case AssetClassUSOption:
		return "us_option"
	default:
		return "unknown"
	}
}

// ParseAssetClass maps the broker's wire value onto AssetClass.
func ParseAssetClass(s string) AssetClass {
	switch s {
	case "us_equity":
		return AssetClassUSEquity
	case "crypto":
		return AssetClassCrypto
	case "us_option":
		return AssetClassUSOption
	default:
		return _asset_class_beg
	}
}
