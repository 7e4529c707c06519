package exception

import "errors"

var (
	ErrOrderInvalidSide        = errors.New("order: invalid side")
	ErrOrderInvalidType        = errors.New("order: invalid type")
	ErrOrderInvalidQty         = errors.New("order: quantity must be positive")
	ErrOrderLimitNeedsPrice    = errors.New("order: limit orders require a limit price")
	ErrOrderStopNeedsPrice     = errors.New("order: stop orders require a stop price")
	ErrOrderTrailBothSet       = errors.New("order: trailing stop accepts trail percent or trail amount, not both")
	ErrOrderTrailNoneSet       = errors.New("order: trailing stop requires trail percent or trail amount")
	ErrOrderStoreNotStarted    = errors.New("order: store not started")
	ErrOrderNoHandler          = errors.New("order: no execution handler bound")
	ErrOrderDuplicateReference = errors.New("order: duplicate local reference")
)
