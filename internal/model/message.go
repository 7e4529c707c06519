package model

import "bridge/internal/model/enum"

// MessageKind tags the variant carried by a data-queue Message.
type MessageKind uint8

const (
	_message_kind_beg MessageKind = iota
	MessageBar
	MessageQuote
	MessageError
	MessageDisconnect
	MessageEOF
	_message_kind_end
)

func (k MessageKind) IsAvailable() bool {
	return k > _message_kind_beg && k < _message_kind_end
}

// Message is the envelope pushed onto data queues by the streaming
// transport and the historical fetcher.
//
//   - MessageBar / MessageQuote carry a sample
//   - MessageError carries a transport error code
//   - MessageDisconnect signals a broken connection
//   - MessageEOF terminates a historical transmission
type Message struct {
	Kind  MessageKind
	Bar   Bar
	Quote Quote
	Code  int
}

// BarMessage wraps a bar sample.
func BarMessage(b Bar) Message {
	return Message{Kind: MessageBar, Bar: b}
}

// QuoteMessage wraps a quote tick.
func QuoteMessage(q Quote) Message {
	return Message{Kind: MessageQuote, Quote: q}
}

// ErrorMessage wraps a transport error code.
func ErrorMessage(code int) Message {
	return Message{Kind: MessageError, Code: code}
}

// TradeUpdate is the flattened trade-stream event the reconciliation
// engine consumes. A zero OrderID marks the listener shutdown sentinel.
type TradeUpdate struct {
	OrderID        string
	Status         string
	Side           enum.OrderSide
	FilledQty      float64
	FilledAvgPrice float64
}
