package store

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/yanun0323/logs"

	"bridge/internal/alpaca"
	"bridge/internal/bus"
	"bridge/internal/history"
	"bridge/internal/model"
	"bridge/internal/model/enum"
	"bridge/internal/obs"
	"bridge/internal/stream"
	"bridge/pkg/exception"
)

const (
	defaultAccountTimeout    = 10 * time.Second
	defaultPendingTransLimit = 64
	tradeQueueCap            = 1024
	dataQueueCap             = 4096
)

// Config is the store's runtime configuration.
type Config struct {
	KeyID     string
	SecretKey string
	Paper     bool

	// AccountTimeout is the account value/cash refresh period.
	AccountTimeout time.Duration

	// RecoverableCodes drive the feeds' reconnection decision. Defaults
	// to alpaca.DefaultRecoverableCodes.
	RecoverableCodes map[int]struct{}

	// PendingTransLimit caps buffered trade events per unbound order id;
	// overflowing evicts the oldest.
	PendingTransLimit int

	// endpoint overrides, empty derives from Paper
	TradingURL string
	DataURL    string
	StreamURL  string
}

func (cfg Config) withDefaults() Config {
	if cfg.AccountTimeout <= 0 {
		cfg.AccountTimeout = defaultAccountTimeout
	}
	if cfg.RecoverableCodes == nil {
		cfg.RecoverableCodes = alpaca.DefaultRecoverableCodes()
	}
	if cfg.PendingTransLimit <= 0 {
		cfg.PendingTransLimit = defaultPendingTransLimit
	}
	return cfg
}

// restClient is the REST surface the store consumes; *alpaca.Client in
// production.
type restClient interface {
	Account(ctx context.Context) (alpaca.Account, error)
	Asset(ctx context.Context, symbol string) (alpaca.Asset, error)
	Positions(ctx context.Context) ([]alpaca.Position, error)
	SubmitOrder(ctx context.Context, req alpaca.OrderRequest) (alpaca.Order, error)
	CancelOrder(ctx context.Context, orderID string) error
	Bars(ctx context.Context, class enum.AssetClass, symbol string, g enum.Granularity, start, end time.Time, tier enum.DataTier) ([]model.Bar, error)
}

// Store coordinates the broker clients, the account snapshot and the
// order/event reconciliation state for one process. It is constructed
// explicitly by the entry point and passed to every feed and broker
// adapter; there is exactly one per process, giving a single account
// view and a single set of workers however many symbols subscribe.
type Store struct {
	cfg     Config
	client  restClient
	metrics *obs.Metrics

	// reconciliation state: local ref <-> broker order id and trade
	// events buffered for ids seen before their binding
	mu          sync.Mutex
	ordersByRef map[int]string
	refsByID    map[string]int
	transPend   map[string][]model.TradeUpdate
	replaying   map[string]struct{}
	pendingLive int

	handler ExecutionHandler

	instMu      sync.RWMutex
	instruments map[string]model.Instrument

	acctMu    sync.RWMutex
	cash      float64
	value     float64
	acctReady chan struct{}
	acctOnce  sync.Once

	notifMu sync.Mutex
	notifs  []string

	qCreate  chan *createRequest
	qCancel  chan *cancelRequest
	qAccount chan struct{}
	qTrade   *bus.Queue[model.TradeUpdate]

	// trade updates come through the queue directly when no live
	// listener is attached
	noTradeStream bool

	bound atomic.Bool
}

// NewStore builds a store and its REST client from config.
func NewStore(cfg Config) *Store {
	cfg = cfg.withDefaults()
	client := alpaca.NewClient(alpaca.Config{
		KeyID:      cfg.KeyID,
		SecretKey:  cfg.SecretKey,
		Paper:      cfg.Paper,
		TradingURL: cfg.TradingURL,
		DataURL:    cfg.DataURL,
	})
	return newStoreWithClient(cfg, client)
}

func newStoreWithClient(cfg Config, client restClient) *Store {
	return &Store{
		cfg:         cfg.withDefaults(),
		client:      client,
		metrics:     obs.NewMetrics(),
		ordersByRef: make(map[int]string),
		refsByID:    make(map[string]int),
		transPend:   make(map[string][]model.TradeUpdate),
		replaying:   make(map[string]struct{}),
		instruments: make(map[string]model.Instrument),
		acctReady:   make(chan struct{}),
		qCreate:     make(chan *createRequest, 64),
		qCancel:     make(chan *cancelRequest, 64),
		qAccount:    make(chan struct{}, 1),
		qTrade:      bus.NewQueue[model.TradeUpdate](tradeQueueCap),
	}
}

// Metrics exposes the store's metric set for serving.
func (s *Store) Metrics() *obs.Metrics {
	return s.metrics
}

// RecoverableCodes returns the transport error codes feeds may recover
// from by reconnecting.
func (s *Store) RecoverableCodes() map[int]struct{} {
	return s.cfg.RecoverableCodes
}

// Bind attaches the execution handler and starts the broker-side
// workers: account refresher, order submitter, order canceler and the
// trade-update listener. It blocks up to the account refresh period
// waiting for the first account snapshot.
func (s *Store) Bind(ctx context.Context, handler ExecutionHandler) error {
	if handler == nil {
		return exception.ErrOrderNoHandler
	}
	if s.bound.Swap(true) {
		return nil
	}
	s.handler = handler

	go s.accountWorker(ctx)
	go s.createWorker(ctx)
	go s.cancelWorker(ctx)
	go s.tradeDispatchWorker(ctx)
	if !s.noTradeStream {
		s.startTradeStream(ctx)
	}

	// force an immediate refresh and wait once for values to be set
	select {
	case s.qAccount <- struct{}{}:
	default:
	}
	select {
	case <-s.acctReady:
	case <-time.After(s.cfg.AccountTimeout):
	case <-ctx.Done():
	}
	return nil
}

func (s *Store) startTradeStream(ctx context.Context) {
	go func() {
		streamer := stream.New(ctx, stream.Config{
			KeyID:     s.cfg.KeyID,
			SecretKey: s.cfg.SecretKey,
			Paper:     s.cfg.Paper,
			Method:    stream.MethodAccountUpdate,
			StreamURL: s.cfg.StreamURL,
		})
		if err := streamer.Start(ctx); err != nil {
			logs.Errorf("start trade update stream, err: %+v", err)
			s.Notify("trade update stream unavailable: " + err.Error())
			return
		}
		if err := streamer.Subscribe(ctx); err != nil {
			logs.Errorf("subscribe trade updates, err: %+v", err)
			s.Notify("trade update subscription failed: " + err.Error())
			return
		}
		streamer.ObserveTradeUpdates(ctx, s.qTrade)
	}()
}

// Stop shuts the workers down.
func (s *Store) Stop() {
	if !s.bound.Load() {
		return
	}
	// nil is the universal worker shutdown signal
	select {
	case s.qCreate <- nil:
	default:
	}
	select {
	case s.qCancel <- nil:
	default:
	}
	s.qTrade.Close()
}

// Notify appends an out-of-band store notification for the consumer.
func (s *Store) Notify(msg string) {
	s.notifMu.Lock()
	s.notifs = append(s.notifs, msg)
	s.notifMu.Unlock()
}

// Notifications returns and clears the pending store notifications.
func (s *Store) Notifications() []string {
	s.notifMu.Lock()
	defer s.notifMu.Unlock()
	out := s.notifs
	s.notifs = nil
	return out
}

// Cash returns the last known account cash. Never blocks; a failed
// refresh leaves the previous value in place.
func (s *Store) Cash() float64 {
	s.acctMu.RLock()
	defer s.acctMu.RUnlock()
	return s.cash
}

// Value returns the last known portfolio value.
func (s *Store) Value() float64 {
	s.acctMu.RLock()
	defer s.acctMu.RUnlock()
	return s.value
}

// ForceAccountRefresh wakes the account worker ahead of its interval.
func (s *Store) ForceAccountRefresh() {
	select {
	case s.qAccount <- struct{}{}:
	default:
	}
}

// Positions fetches the open positions; lookup failure yields an empty
// slice, never an error, matching the consumer's tolerant contract.
func (s *Store) Positions(ctx context.Context) []alpaca.Position {
	positions, err := s.client.Positions(ctx)
	if err != nil {
		logs.Warnf("fetch positions, err: %+v", err)
		return nil
	}
	return positions
}

// Instrument resolves a symbol to its broker instrument, caching hits.
func (s *Store) Instrument(ctx context.Context, symbol string) (model.Instrument, bool) {
	s.instMu.RLock()
	inst, ok := s.instruments[symbol]
	s.instMu.RUnlock()
	if ok {
		return inst, true
	}

	asset, err := s.client.Asset(ctx, symbol)
	if err != nil {
		logs.Warnf("look up instrument %s, err: %+v", symbol, err)
		return model.Instrument{}, false
	}
	inst = model.Instrument{
		ID:       asset.ID,
		Symbol:   asset.Symbol,
		Class:    enum.ParseAssetClass(asset.Class),
		Tradable: asset.Tradable,
	}
	if !inst.Class.IsAvailable() {
		return model.Instrument{}, false
	}
	s.instMu.Lock()
	s.instruments[symbol] = inst
	s.instMu.Unlock()
	return inst, true
}

func (s *Store) accountWorker(ctx context.Context) {
	timer := time.NewTimer(s.cfg.AccountTimeout)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.qAccount:
		case <-timer.C:
		}
		timer.Reset(s.cfg.AccountTimeout)

		acct, err := s.client.Account(ctx)
		if err != nil {
			// stale-but-available: keep last known values
			logs.Warnf("refresh account, err: %+v", err)
			s.Notify("account refresh failed: " + err.Error())
			continue
		}

		cash := alpaca.Float(acct.Cash)
		value := alpaca.Float(acct.PortfolioValue)
		s.acctMu.Lock()
		s.cash = cash
		s.value = value
		s.acctMu.Unlock()
		s.metrics.SetAccount(cash, value)
		s.acctOnce.Do(func() { close(s.acctReady) })
	}
}

// Candles launches a historical range fetch and returns the queue its
// bars arrive on, terminated by an EOF message (or an error-coded
// message on failure).
func (s *Store) Candles(ctx context.Context, symbol string, begin, end *time.Time, frame enum.TimeFrame, compression int, tier enum.DataTier) *bus.Queue[model.Message] {
	q := bus.NewQueue[model.Message](dataQueueCap)
	go s.fetchCandles(ctx, q, symbol, begin, end, frame, compression, tier)
	return q
}

func (s *Store) fetchCandles(ctx context.Context, q *bus.Queue[model.Message], symbol string, begin, end *time.Time, frame enum.TimeFrame, compression int, tier enum.DataTier) {
	g := model.GranularityOf(frame)
	if !g.IsAvailable() {
		_ = q.Push(model.ErrorMessage(alpaca.CodeUnsupportedTimeFrame))
		return
	}
	dtbegin, dtend := history.Normalize(begin, end, g)

	inst, ok := s.Instrument(ctx, symbol)
	if !ok {
		_ = q.Push(model.ErrorMessage(alpaca.CodeRequestError))
		return
	}

	pager := clientPager{client: s.client, class: inst.Class, tier: tier}
	bars, err := history.FetchRange(ctx, pager, symbol, g, dtbegin, dtend)
	if err != nil {
		logs.Errorf("historical fetch %s, err: %+v", symbol, err)
		_ = q.Push(model.ErrorMessage(errorCode(err)))
		_ = q.Push(model.Message{Kind: model.MessageEOF})
		return
	}

	for i := range bars {
		bars[i].Time = bars[i].Time.In(history.NYLocation())
	}
	bars = history.Window(bars, dtbegin, dtend)
	if g.Intraday() {
		bars = history.FilterSession(bars)
	}
	if compression > 1 {
		bars = history.Resample(bars, g, compression)
	}

	for _, b := range bars {
		if err := q.Push(model.BarMessage(b)); err != nil {
			return
		}
	}
	_ = q.Push(model.Message{Kind: model.MessageEOF})
}

// StreamPrices opens the live subscription for one symbol and returns
// the queue its messages arrive on. delay postpones the connection
// attempt, serving as the reconnection cool-down.
func (s *Store) StreamPrices(ctx context.Context, symbol string, frame enum.TimeFrame, tier enum.DataTier, delay time.Duration) *bus.Queue[model.Message] {
	q := bus.NewQueue[model.Message](dataQueueCap)
	go func() {
		if delay > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
			}
		}

		inst, ok := s.Instrument(ctx, symbol)
		if !ok {
			_ = q.Push(model.ErrorMessage(alpaca.CodeRequestError))
			return
		}

		method := stream.MethodBars
		if frame == enum.TimeFrameTicks {
			method = stream.MethodQuotes
		}
		streamer := stream.New(ctx, stream.Config{
			KeyID:      s.cfg.KeyID,
			SecretKey:  s.cfg.SecretKey,
			Paper:      s.cfg.Paper,
			Method:     method,
			Instrument: inst,
			Tier:       tier,
		})
		if err := streamer.Start(ctx); err != nil {
			logs.Errorf("start price stream %s, err: %+v", symbol, err)
			_ = q.Push(model.ErrorMessage(alpaca.CodeStreamFailure))
			return
		}
		if err := streamer.Subscribe(ctx); err != nil {
			logs.Errorf("subscribe price stream %s, err: %+v", symbol, err)
			_ = q.Push(model.ErrorMessage(alpaca.CodeStreamFailure))
			return
		}
		streamer.ObserveMarketData(ctx, q)
	}()
	return q
}

type clientPager struct {
	client restClient
	class  enum.AssetClass
	tier   enum.DataTier
}

func (p clientPager) Bars(ctx context.Context, symbol string, g enum.Granularity, start, end time.Time) ([]model.Bar, error) {
	return p.client.Bars(ctx, p.class, symbol, g, start, end, p.tier)
}

func errorCode(err error) int {
	var apiErr *alpaca.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	return alpaca.CodeRequestError
}
