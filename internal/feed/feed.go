package feed

import (
	"context"
	"time"

	"github.com/yanun0323/logs"

	"bridge/internal/bus"
	"bridge/internal/model"
	"bridge/internal/model/enum"
	"bridge/internal/obs"
	"bridge/pkg/exception"
)

// State is the feed state machine cursor. Over is terminal.
type State uint8

const (
	_state_beg State = iota
	StateFrom
	StateStart
	StateLive
	StateHistorBack
	StateOver
	_state_end
)

func (s State) IsAvailable() bool {
	return s > _state_beg && s < _state_end
}

// PollResult tags the outcome of one Poll call.
type PollResult uint8

const (
	// PollBar delivers a sample.
	PollBar PollResult = iota + 1
	// PollPending means no data arrived within the poll interval.
	PollPending
	// PollEnd is terminal; the feed delivers nothing further.
	PollEnd
)

// Source provides the feed's data channels. Implemented by the
// connection store.
type Source interface {
	Instrument(ctx context.Context, symbol string) (model.Instrument, bool)
	Candles(ctx context.Context, symbol string, begin, end *time.Time, frame enum.TimeFrame, compression int, tier enum.DataTier) *bus.Queue[model.Message]
	StreamPrices(ctx context.Context, symbol string, frame enum.TimeFrame, tier enum.DataTier, delay time.Duration) *bus.Queue[model.Message]
	RecoverableCodes() map[int]struct{}
}

// SecondarySource is an optional already-local bar source replayed
// before any broker backfill, e.g. bars loaded from disk.
type SecondarySource interface {
	Next() (model.Bar, bool)
}

// Config are the feed construction parameters.
type Config struct {
	Symbol      string
	Frame       enum.TimeFrame
	Compression int
	Tier        enum.DataTier

	// Begin and End bound the historical range; nil bounds are derived.
	Begin *time.Time
	End   *time.Time

	// Historical stops the feed after the first download completes.
	Historical bool
	// BackfillStart backfills the gap up to the first live sample.
	BackfillStart bool
	// Backfill backfills the gap after a reconnection cycle.
	Backfill bool
	// Secondary replays a local source before any broker data.
	Secondary SecondarySource

	// UseAsk selects the ask side of tick quotes instead of the bid.
	UseAsk bool

	// QCheck bounds how long one Poll waits for live data.
	QCheck time.Duration

	Reconnect bool
	// Reconnections is the reconnect budget, -1 means forever.
	Reconnections int
	// ReconnTimeout is the cool-down before a reconnect attempt.
	ReconnTimeout time.Duration

	// OnStatus receives coarse status transitions. Called from Poll's
	// goroutine. Optional.
	OnStatus func(enum.FeedStatus)

	Metrics *obs.Metrics
}

// DefaultConfig returns the standard feed parameters for a symbol.
func DefaultConfig(symbol string, frame enum.TimeFrame, compression int) Config {
	return Config{
		Symbol:        symbol,
		Frame:         frame,
		Compression:   compression,
		Tier:          enum.DataTierIEX,
		BackfillStart: true,
		Backfill:      true,
		QCheck:        500 * time.Millisecond,
		Reconnect:     true,
		Reconnections: -1,
		ReconnTimeout: 5 * time.Second,
	}
}

// Feed drives one symbol through secondary replay, historical backfill,
// live streaming and reconnection cycles, delivering a strictly
// increasing bar timeline through Poll. All methods are single-threaded;
// one goroutine owns a feed.
type Feed struct {
	cfg Config
	src Source
	ctx context.Context

	state      State
	lastStatus enum.FeedStatus

	qlive *bus.Queue[model.Message]
	qhist *bus.Queue[model.Message]

	// live sample held aside while its gap backfill runs
	stored     *model.Message
	livereconn bool
	reconns    int

	lastTime time.Time
	emitted  bool
	started  bool
}

// New builds an unstarted feed over the given source.
func New(src Source, cfg Config) *Feed {
	if cfg.Compression <= 0 {
		cfg.Compression = 1
	}
	if cfg.QCheck <= 0 {
		cfg.QCheck = 500 * time.Millisecond
	}
	if !cfg.Tier.IsAvailable() {
		cfg.Tier = enum.DataTierIEX
	}
	return &Feed{cfg: cfg, src: src, state: StateOver}
}

// LastStatus returns the most recently announced feed status.
func (f *Feed) LastStatus() enum.FeedStatus {
	return f.lastStatus
}

// State returns the current state machine cursor.
func (f *Feed) State() State {
	return f.state
}

// HasLiveData reports whether a live sample is already buffered.
func (f *Feed) HasLiveData() bool {
	return f.stored != nil || (f.qlive != nil && f.qlive.Len() > 0)
}

// Start validates the configuration, resolves the instrument and opens
// the initial data path. Unsupported timeframes fail fast; an unknown
// instrument parks the feed in the terminal state with a NOTSUBSCRIBED
// status instead of returning an error.
func (f *Feed) Start(ctx context.Context) error {
	if f.src == nil {
		return exception.ErrFeedNilSource
	}
	if f.cfg.Symbol == "" {
		return exception.ErrFeedEmptySymbol
	}
	if f.started {
		return exception.ErrFeedAlreadyStarted
	}
	f.started = true
	f.ctx = ctx
	f.state = StateOver

	if !model.SupportedTimeFrame(f.cfg.Frame, f.cfg.Compression) {
		f.notify(enum.FeedStatusNotSupportedTF)
		return exception.ErrFeedUnsupportedTimeFrame
	}

	if _, ok := f.src.Instrument(ctx, f.cfg.Symbol); !ok {
		f.notify(enum.FeedStatusNotSubscribed)
		return nil
	}

	if f.cfg.Secondary != nil {
		f.state = StateFrom
		return nil
	}
	f.stStart(true, 0)
	return nil
}

// stStart opens the data path: the one-shot historical request in
// historical mode, the live subscription otherwise. instart marks the
// initial call; reconnect cycles pass false and a cool-down delay.
func (f *Feed) stStart(instart bool, delay time.Duration) {
	if f.cfg.Historical {
		f.notify(enum.FeedStatusDelayed)
		f.qhist = f.src.Candles(f.ctx, f.cfg.Symbol, f.cfg.Begin, f.cfg.End,
			f.cfg.Frame, f.cfg.Compression, f.cfg.Tier)
		f.state = StateHistorBack
		return
	}

	f.qlive = f.src.StreamPrices(f.ctx, f.cfg.Symbol, f.cfg.Frame, f.cfg.Tier, delay)

	if instart {
		f.livereconn = f.cfg.BackfillStart
	} else {
		f.livereconn = f.cfg.Backfill
	}
	if f.livereconn {
		f.notify(enum.FeedStatusDelayed)
	} else {
		f.notify(enum.FeedStatusLive)
	}

	f.state = StateLive
	if instart {
		f.reconns = f.cfg.Reconnections
	}
}

// Poll advances the state machine by at most one sample. It blocks for
// at most the qcheck interval; live-queue starvation yields PollPending
// so the caller's scheduler can service other feeds.
func (f *Feed) Poll() (model.Bar, PollResult) {
	for {
		switch f.state {
		case StateOver:
			return model.Bar{}, PollEnd

		case StateLive:
			bar, res, done := f.pollLive()
			if done {
				return bar, res
			}

		case StateHistorBack:
			bar, res, done := f.pollHistorical()
			if done {
				return bar, res
			}

		case StateFrom:
			bar, ok := f.cfg.Secondary.Next()
			if !ok {
				f.state = StateStart
				continue
			}
			if !f.emit(&bar) {
				continue
			}
			return bar, PollBar

		case StateStart:
			f.stStart(true, 0)

		default:
			return model.Bar{}, PollEnd
		}
	}
}

// pollLive handles one live-queue message. done is false when the loop
// should continue without delivering anything.
func (f *Feed) pollLive() (model.Bar, PollResult, bool) {
	var msg model.Message
	if f.stored != nil {
		msg = *f.stored
		f.stored = nil
	} else {
		var ok bool
		msg, ok = f.qlive.Pop(f.cfg.QCheck)
		if !ok {
			return model.Bar{}, PollPending, true
		}
	}

	switch msg.Kind {
	case model.MessageDisconnect:
		logs.Warnf("feed %s: connection broken", f.cfg.Symbol)
		f.notify(enum.FeedStatusConnBroken)
		return f.reconnect()

	case model.MessageError:
		logs.Warnf("feed %s: stream error code %d", f.cfg.Symbol, msg.Code)
		f.notify(enum.FeedStatusConnBroken)
		if _, ok := f.src.RecoverableCodes()[msg.Code]; !ok {
			f.notify(enum.FeedStatusDisconnected)
			f.state = StateOver
			return model.Bar{}, PollEnd, true
		}
		return f.reconnect()
	}

	// a good payload restores the full reconnect budget
	f.reconns = f.cfg.Reconnections

	if f.livereconn {
		// first live sample after (re)connect marks the gap's right
		// edge; fetch the gap, park the sample until backfill drains
		f.stored = &msg
		f.livereconn = false

		begin := f.cfg.Begin
		if !f.lastTime.IsZero() {
			t := f.lastTime
			begin = &t
		}
		end := f.sampleTime(msg)
		f.qhist = f.src.Candles(f.ctx, f.cfg.Symbol, begin, &end,
			f.cfg.Frame, f.cfg.Compression, f.cfg.Tier)
		f.state = StateHistorBack
		return model.Bar{}, 0, false
	}

	if f.lastStatus != enum.FeedStatusLive && f.qlive.Len() <= 1 {
		f.notify(enum.FeedStatusLive)
	}

	bar := f.sampleBar(msg)
	if !f.emit(&bar) {
		return model.Bar{}, 0, false
	}
	return bar, PollBar, true
}

func (f *Feed) reconnect() (model.Bar, PollResult, bool) {
	if !f.cfg.Reconnect || f.reconns == 0 {
		f.notify(enum.FeedStatusDisconnected)
		f.state = StateOver
		return model.Bar{}, PollEnd, true
	}
	if f.reconns > 0 {
		f.reconns--
	}
	f.cfg.Metrics.Reconnect(f.cfg.Symbol)
	f.stStart(false, f.cfg.ReconnTimeout)
	return model.Bar{}, 0, false
}

func (f *Feed) pollHistorical() (model.Bar, PollResult, bool) {
	msg, ok := f.qhist.PopWait()
	if !ok || msg.Kind == model.MessageDisconnect {
		f.notify(enum.FeedStatusDisconnected)
		f.state = StateOver
		return model.Bar{}, PollEnd, true
	}

	switch msg.Kind {
	case model.MessageError:
		f.notify(enum.FeedStatusNotSubscribed)
		f.notify(enum.FeedStatusDisconnected)
		f.state = StateOver
		return model.Bar{}, PollEnd, true

	case model.MessageEOF:
		if f.cfg.Historical {
			f.notify(enum.FeedStatusDisconnected)
			f.state = StateOver
			return model.Bar{}, PollEnd, true
		}
		f.state = StateLive
		return model.Bar{}, 0, false

	case model.MessageBar:
		if !f.emit(&msg.Bar) {
			return model.Bar{}, 0, false
		}
		return msg.Bar, PollBar, true

	default:
		return model.Bar{}, 0, false
	}
}

// emit enforces the strictly increasing timeline. Samples at or before
// the last emitted timestamp are dropped, never re-ordered.
func (f *Feed) emit(bar *model.Bar) bool {
	if !bar.Time.After(f.lastTime) {
		return false
	}
	f.lastTime = bar.Time
	f.emitted = true
	f.cfg.Metrics.BarEmitted(f.cfg.Symbol)
	return true
}

// Delivered reports whether the feed has emitted at least one sample.
func (f *Feed) Delivered() bool {
	return f.emitted
}

func (f *Feed) sampleTime(msg model.Message) time.Time {
	if msg.Kind == model.MessageQuote {
		return msg.Quote.Time
	}
	return msg.Bar.Time
}

// sampleBar flattens a live message into a bar. Quote ticks collapse to
// a flat bar at the configured side's price with zero volume.
func (f *Feed) sampleBar(msg model.Message) model.Bar {
	if msg.Kind == model.MessageQuote {
		p := msg.Quote.Price(f.cfg.UseAsk)
		return model.Bar{
			Time:  msg.Quote.Time,
			Open:  p,
			High:  p,
			Low:   p,
			Close: p,
		}
	}
	return msg.Bar
}

func (f *Feed) notify(status enum.FeedStatus) {
	f.lastStatus = status
	logs.Infof("feed %s: %s", f.cfg.Symbol, status)
	if f.cfg.OnStatus != nil {
		f.cfg.OnStatus(status)
	}
}
