package stream

import (
	"context"
	"strings"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
	"github.com/yanun0323/pkg/sys"
	"github.com/yanun0323/pkg/ws"

	"bridge/internal/alpaca"
	"bridge/internal/bus"
	"bridge/internal/history"
	"bridge/internal/model"
	"bridge/internal/model/enum"
	"bridge/pkg/exception"
)

// Method selects which logical stream a Streamer carries.
type Method uint8

const (
	_method_beg Method = iota
	MethodAccountUpdate
	MethodBars
	MethodQuotes
	_method_end
)

func (m Method) IsAvailable() bool {
	return m > _method_beg && m < _method_end
}

// Config describes one subscription connection.
type Config struct {
	KeyID      string
	SecretKey  string
	Paper      bool
	Method     Method
	Instrument model.Instrument
	Tier       enum.DataTier

	// URL overrides for tests; empty values derive from Method/Paper.
	StreamURL string
}

// Streamer owns one long-lived subscription: either the trade-update
// stream or the market data of one instrument. It decodes broker events
// into the engine's message shapes and pushes them onto the consumer's
// queue. It never retries a broken connection; it signals the break and
// leaves policy to the consumer.
type Streamer struct {
	cfg Config
	wss *ws.WebSocket
}

// New builds a streamer for the configured method, deriving the endpoint
// from the instrument class and data tier.
func New(ctx context.Context, cfg Config) *Streamer {
	url := cfg.StreamURL
	if url == "" {
		url = endpointFor(cfg)
	}
	return &Streamer{
		cfg: cfg,
		wss: ws.New(ctx, url),
	}
}

func endpointFor(cfg Config) string {
	if cfg.Method == MethodAccountUpdate {
		if cfg.Paper {
			return alpaca.PaperStreamURL
		}
		return alpaca.LiveStreamURL
	}
	switch cfg.Instrument.Class {
	case enum.AssetClassCrypto:
		return alpaca.CryptoStream
	case enum.AssetClassUSOption:
		return alpaca.OptionStream
	default:
		return alpaca.DataStreamURL + "/" + cfg.Tier.String()
	}
}

// Start connects and authenticates.
func (s *Streamer) Start(ctx context.Context) error {
	if s.cfg.Method == MethodAccountUpdate {
		return s.startTradeStream(ctx)
	}
	return s.startDataStream(ctx)
}

func (s *Streamer) startDataStream(ctx context.Context) error {
	if err := s.wss.Start(ctx, ws.Sidecar{
		Sender: func(ctx context.Context, client *ws.WebSocket) error {
			if err := client.WriteJSON(authPayload{
				Action: "auth",
				Key:    s.cfg.KeyID,
				Secret: s.cfg.SecretKey,
			}); err != nil {
				return errors.Wrap(err, "write auth payload")
			}
			return nil
		},
		Waiter: func(ctx context.Context, m ws.Message) (bool, error) {
			events, ok := ws.ReadMessage[[]dataEvent](m)
			if !ok {
				return false, nil
			}
			for _, ev := range events {
				if ev.Type == eventTypeSuccess && ev.Msg == authSuccessMsg {
					return true, nil
				}
				if ev.Type == eventTypeError {
					return false, errors.Wrapf(exception.ErrStreamAuthFailed, "code: %d, msg: %s", ev.Code, ev.Msg)
				}
			}
			return false, nil
		},
	}); err != nil {
		return errors.Wrap(err, "start wss")
	}
	return nil
}

func (s *Streamer) startTradeStream(ctx context.Context) error {
	if err := s.wss.Start(ctx, ws.Sidecar{
		Sender: func(ctx context.Context, client *ws.WebSocket) error {
			payload := tradeAuthPayload{Action: "authenticate"}
			payload.Data.KeyID = s.cfg.KeyID
			payload.Data.SecretKey = s.cfg.SecretKey
			if err := client.WriteJSON(payload); err != nil {
				return errors.Wrap(err, "write auth payload")
			}
			return nil
		},
		Waiter: func(ctx context.Context, m ws.Message) (bool, error) {
			frame, ok := ws.ReadMessage[tradeFrame](m)
			if !ok || frame.Stream != "authorization" {
				return false, nil
			}
			if frame.Data.Status != "authorized" {
				return false, exception.ErrStreamAuthFailed
			}
			return true, nil
		},
	}); err != nil {
		return errors.Wrap(err, "start wss")
	}
	return nil
}

// Subscribe sends the subscription request for the configured method and
// waits for the acknowledgement.
func (s *Streamer) Subscribe(ctx context.Context) error {
	switch s.cfg.Method {
	case MethodAccountUpdate:
		return s.subscribeTradeUpdates(ctx)
	case MethodQuotes:
		return s.subscribeData(ctx, subscribePayload{
			Action: "subscribe",
			Quotes: []string{s.cfg.Instrument.Symbol},
		})
	default:
		return s.subscribeData(ctx, subscribePayload{
			Action: "subscribe",
			Bars:   []string{s.cfg.Instrument.Symbol},
		})
	}
}

func (s *Streamer) subscribeData(ctx context.Context, payload subscribePayload) error {
	if err := s.wss.SendAndWait(ctx, ws.Sidecar{
		Sender: func(ctx context.Context, client *ws.WebSocket) error {
			if err := client.WriteJSON(payload); err != nil {
				return errors.Wrap(err, "write subscribe payload")
			}
			return nil
		},
		Waiter: func(ctx context.Context, m ws.Message) (bool, error) {
			events, ok := ws.ReadMessage[[]dataEvent](m)
			if !ok {
				return false, nil
			}
			for _, ev := range events {
				if ev.Type == eventTypeSubscription {
					return true, nil
				}
				if ev.Type == eventTypeError {
					return false, errors.Wrapf(exception.ErrStreamSubFailed, "code: %d, msg: %s", ev.Code, ev.Msg)
				}
			}
			return false, nil
		},
	}); err != nil {
		return errors.Wrap(err, "send and wait")
	}
	return nil
}

func (s *Streamer) subscribeTradeUpdates(ctx context.Context) error {
	payload := tradeListenPayload{Action: "listen"}
	payload.Data.Streams = []string{"trade_updates"}
	if err := s.wss.SendAndWait(ctx, ws.Sidecar{
		Sender: func(ctx context.Context, client *ws.WebSocket) error {
			if err := client.WriteJSON(payload); err != nil {
				return errors.Wrap(err, "write listen payload")
			}
			return nil
		},
		Waiter: func(ctx context.Context, m ws.Message) (bool, error) {
			frame, ok := ws.ReadMessage[tradeFrame](m)
			if !ok || frame.Stream != "listening" {
				return false, nil
			}
			return true, nil
		},
	}); err != nil {
		return errors.Wrap(err, "send and wait")
	}
	return nil
}

// ObserveMarketData redelivers decoded bar/quote messages onto q from a
// dedicated goroutine. A closed connection pushes the disconnect
// sentinel; a stream-level error pushes an error-coded message. Returns
// an unsubscribe func.
func (s *Streamer) ObserveMarketData(ctx context.Context, q *bus.Queue[model.Message]) (unsubscribe func()) {
	ch, cancel := s.wss.Subscribe()
	go func() {
		defer cancel()
		for {
			select {
			case <-sys.Shutdown():
				return
			case <-ctx.Done():
				return
			case m, ok := <-ch:
				if !ok {
					_ = q.Push(model.Message{Kind: model.MessageDisconnect})
					return
				}

				events, ok := ws.ReadMessage[[]dataEvent](m)
				if !ok {
					continue
				}
				for _, ev := range events {
					switch ev.Type {
					case eventTypeBar:
						_ = q.Push(model.BarMessage(model.Bar{
							Time:   ev.Time.In(history.NYLocation()),
							Open:   ev.Open,
							High:   ev.High,
							Low:    ev.Low,
							Close:  ev.Close,
							Volume: ev.Volume,
						}))
					case eventTypeQuote:
						_ = q.Push(model.QuoteMessage(model.Quote{
							Time:     ev.Time.In(history.NYLocation()),
							BidPrice: ev.BidPrice,
							AskPrice: ev.AskPrice,
						}))
					case eventTypeError:
						logs.Warnf("market data stream error, code: %d, msg: %s", ev.Code, ev.Msg)
						_ = q.Push(model.ErrorMessage(alpaca.CodeStreamFailure))
					}
				}
			}
		}
	}()
	return cancel
}

// ObserveTradeUpdates redelivers flattened trade-update events onto q. A
// closed connection pushes the zero-value shutdown sentinel.
func (s *Streamer) ObserveTradeUpdates(ctx context.Context, q *bus.Queue[model.TradeUpdate]) (unsubscribe func()) {
	ch, cancel := s.wss.Subscribe()
	go func() {
		defer cancel()
		for {
			select {
			case <-sys.Shutdown():
				return
			case <-ctx.Done():
				return
			case m, ok := <-ch:
				if !ok {
					logs.Warnf("trade update stream closed")
					_ = q.Push(model.TradeUpdate{})
					return
				}

				frame, ok := ws.ReadMessage[tradeFrame](m)
				if !ok || frame.Stream != "trade_updates" {
					continue
				}
				order := frame.Data.Order
				if order.ID == "" {
					continue
				}
				_ = q.Push(FlattenOrder(order))
			}
		}
	}()
	return cancel
}

// FlattenOrder maps a broker order payload onto the engine's trade
// update shape.
func FlattenOrder(order alpaca.Order) model.TradeUpdate {
	side := enum.OrderSideBuy
	if strings.EqualFold(order.Side, "sell") {
		side = enum.OrderSideSell
	}
	return model.TradeUpdate{
		OrderID:        order.ID,
		Status:         order.Status,
		Side:           side,
		FilledQty:      alpaca.Float(order.FilledQty),
		FilledAvgPrice: alpaca.FloatPtr(order.FilledAvgPrice),
	}
}

// Len returns the subscriber count on the underlying connection.
func (s *Streamer) Len() int {
	return s.wss.Len()
}

// Close tears the connection down.
func (s *Streamer) Close() {
	s.wss.Close()
}
