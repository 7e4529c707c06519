package feed

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bridge/internal/alpaca"
	"bridge/internal/bus"
	"bridge/internal/model"
	"bridge/internal/model/enum"
	"bridge/pkg/exception"
)

type candleCall struct {
	begin *time.Time
	end   *time.Time
}

// fakeSource serves scripted queues: one candle queue per Candles call
// and one live queue per StreamPrices call, in order.
type fakeSource struct {
	instrumentOK bool

	candleQueues []*bus.Queue[model.Message]
	candleCalls  []candleCall

	liveQueues  []*bus.Queue[model.Message]
	streamCalls int
}

func (f *fakeSource) Instrument(context.Context, string) (model.Instrument, bool) {
	if !f.instrumentOK {
		return model.Instrument{}, false
	}
	return model.Instrument{ID: "a1", Symbol: "AAPL", Class: enum.AssetClassUSEquity, Tradable: true}, true
}

func (f *fakeSource) Candles(_ context.Context, _ string, begin, end *time.Time, _ enum.TimeFrame, _ int, _ enum.DataTier) *bus.Queue[model.Message] {
	f.candleCalls = append(f.candleCalls, candleCall{begin: begin, end: end})
	q := f.candleQueues[0]
	f.candleQueues = f.candleQueues[1:]
	return q
}

func (f *fakeSource) StreamPrices(_ context.Context, _ string, _ enum.TimeFrame, _ enum.DataTier, _ time.Duration) *bus.Queue[model.Message] {
	f.streamCalls++
	q := f.liveQueues[0]
	f.liveQueues = f.liveQueues[1:]
	return q
}

func (f *fakeSource) RecoverableCodes() map[int]struct{} {
	return alpaca.DefaultRecoverableCodes()
}

func queueOf(msgs ...model.Message) *bus.Queue[model.Message] {
	q := bus.NewQueue[model.Message](64)
	for _, m := range msgs {
		_ = q.Push(m)
	}
	return q
}

func barAt(t time.Time, close float64) model.Bar {
	return model.Bar{Time: t, Open: close, High: close, Low: close, Close: close, Volume: 1}
}

type statusRecorder struct {
	statuses []enum.FeedStatus
}

func (r *statusRecorder) record(s enum.FeedStatus) {
	r.statuses = append(r.statuses, s)
}

func testConfig(rec *statusRecorder) Config {
	cfg := DefaultConfig("AAPL", enum.TimeFrameMinutes, 1)
	cfg.QCheck = 10 * time.Millisecond
	cfg.ReconnTimeout = 0
	if rec != nil {
		cfg.OnStatus = rec.record
	}
	return cfg
}

func drain(t *testing.T, f *Feed, n int) []model.Bar {
	t.Helper()
	var bars []model.Bar
	for len(bars) < n {
		bar, res := f.Poll()
		switch res {
		case PollBar:
			bars = append(bars, bar)
		case PollEnd:
			t.Fatalf("feed ended after %d bars, want %d", len(bars), n)
		}
	}
	return bars
}

func requireEnd(t *testing.T, f *Feed) {
	t.Helper()
	_, res := f.Poll()
	require.Equal(t, PollEnd, res)
}

func TestStartUnsupportedTimeFrame(t *testing.T) {
	rec := &statusRecorder{}
	cfg := testConfig(rec)
	cfg.Compression = 7

	f := New(&fakeSource{instrumentOK: true}, cfg)
	err := f.Start(t.Context())
	assert.ErrorIs(t, err, exception.ErrFeedUnsupportedTimeFrame)
	assert.Equal(t, enum.FeedStatusNotSupportedTF, f.LastStatus())
	requireEnd(t, f)
}

func TestStartValidation(t *testing.T) {
	cfg := testConfig(nil)

	f := New(nil, cfg)
	assert.ErrorIs(t, f.Start(t.Context()), exception.ErrFeedNilSource)

	cfg.Symbol = ""
	f = New(&fakeSource{}, cfg)
	assert.ErrorIs(t, f.Start(t.Context()), exception.ErrFeedEmptySymbol)

	cfg = testConfig(nil)
	cfg.Historical = true
	src := &fakeSource{instrumentOK: true, candleQueues: []*bus.Queue[model.Message]{queueOf()}}
	f = New(src, cfg)
	require.NoError(t, f.Start(t.Context()))
	assert.ErrorIs(t, f.Start(t.Context()), exception.ErrFeedAlreadyStarted)
}

func TestStartUnknownInstrument(t *testing.T) {
	f := New(&fakeSource{}, testConfig(nil))
	require.NoError(t, f.Start(t.Context()))
	assert.Equal(t, enum.FeedStatusNotSubscribed, f.LastStatus())
	requireEnd(t, f)
}

func TestHistoricalOnly(t *testing.T) {
	base := time.Date(2025, time.June, 11, 9, 30, 0, 0, time.UTC)
	rec := &statusRecorder{}
	cfg := testConfig(rec)
	cfg.Historical = true

	src := &fakeSource{instrumentOK: true, candleQueues: []*bus.Queue[model.Message]{queueOf(
		model.BarMessage(barAt(base, 1)),
		model.BarMessage(barAt(base.Add(time.Minute), 2)),
		model.BarMessage(barAt(base.Add(2*time.Minute), 3)),
		model.Message{Kind: model.MessageEOF},
	)}}

	f := New(src, cfg)
	require.NoError(t, f.Start(t.Context()))
	assert.Equal(t, enum.FeedStatusDelayed, rec.statuses[0])

	bars := drain(t, f, 3)
	assert.Equal(t, 1.0, bars[0].Close)
	assert.Equal(t, 3.0, bars[2].Close)

	requireEnd(t, f)
	assert.True(t, f.Delivered())
	assert.Equal(t, enum.FeedStatusDisconnected, f.LastStatus())
	// terminal stays terminal
	requireEnd(t, f)
}

func TestHistoricalErrorEnds(t *testing.T) {
	rec := &statusRecorder{}
	cfg := testConfig(rec)
	cfg.Historical = true

	src := &fakeSource{instrumentOK: true, candleQueues: []*bus.Queue[model.Message]{queueOf(
		model.ErrorMessage(alpaca.CodeRequestError),
	)}}
	f := New(src, cfg)
	require.NoError(t, f.Start(t.Context()))

	requireEnd(t, f)
	assert.Contains(t, rec.statuses, enum.FeedStatusNotSubscribed)
	assert.Equal(t, enum.FeedStatusDisconnected, f.LastStatus())
	assert.False(t, f.Delivered())
}

func TestTimelineMonotonicity(t *testing.T) {
	base := time.Date(2025, time.June, 11, 9, 30, 0, 0, time.UTC)
	cfg := testConfig(nil)
	cfg.Historical = true

	src := &fakeSource{instrumentOK: true, candleQueues: []*bus.Queue[model.Message]{queueOf(
		model.BarMessage(barAt(base, 1)),
		model.BarMessage(barAt(base, 99)),                     // duplicate timestamp
		model.BarMessage(barAt(base.Add(-time.Minute), 100)),  // stale
		model.BarMessage(barAt(base.Add(time.Minute), 2)),
		model.Message{Kind: model.MessageEOF},
	)}}
	f := New(src, cfg)
	require.NoError(t, f.Start(t.Context()))

	bars := drain(t, f, 2)
	assert.Equal(t, 1.0, bars[0].Close)
	assert.Equal(t, 2.0, bars[1].Close)
	requireEnd(t, f)
}

func TestLiveWithoutBackfill(t *testing.T) {
	base := time.Date(2025, time.June, 11, 9, 30, 0, 0, time.UTC)
	rec := &statusRecorder{}
	cfg := testConfig(rec)
	cfg.BackfillStart = false

	src := &fakeSource{instrumentOK: true, liveQueues: []*bus.Queue[model.Message]{queueOf(
		model.BarMessage(barAt(base, 1)),
	)}}
	f := New(src, cfg)
	require.NoError(t, f.Start(t.Context()))
	assert.Equal(t, enum.FeedStatusLive, rec.statuses[0], "pure live mode announces LIVE immediately")

	bars := drain(t, f, 1)
	assert.Equal(t, 1.0, bars[0].Close)

	// empty queue yields Pending within the poll interval
	_, res := f.Poll()
	assert.Equal(t, PollPending, res)
}

func TestLiveGapBackfill(t *testing.T) {
	base := time.Date(2025, time.June, 11, 9, 30, 0, 0, time.UTC)
	liveTime := base.Add(5 * time.Minute)
	rec := &statusRecorder{}
	cfg := testConfig(rec)

	src := &fakeSource{
		instrumentOK: true,
		liveQueues: []*bus.Queue[model.Message]{queueOf(
			model.BarMessage(barAt(liveTime, 50)),
		)},
		candleQueues: []*bus.Queue[model.Message]{queueOf(
			model.BarMessage(barAt(base, 1)),
			model.BarMessage(barAt(base.Add(time.Minute), 2)),
			model.Message{Kind: model.MessageEOF},
		)},
	}
	f := New(src, cfg)
	require.NoError(t, f.Start(t.Context()))
	assert.Equal(t, enum.FeedStatusDelayed, rec.statuses[0], "backfill-before-live starts DELAYED")

	bars := drain(t, f, 3)
	assert.Equal(t, 1.0, bars[0].Close)
	assert.Equal(t, 2.0, bars[1].Close)
	assert.Equal(t, 50.0, bars[2].Close, "the stashed live sample follows the backfill")

	require.Len(t, src.candleCalls, 1)
	require.NotNil(t, src.candleCalls[0].end)
	assert.True(t, src.candleCalls[0].end.Equal(liveTime), "gap right edge is the first live sample")
	assert.Equal(t, enum.FeedStatusLive, f.LastStatus())
}

func TestLiveAnnouncedWhenQueueDrained(t *testing.T) {
	base := time.Date(2025, time.June, 11, 9, 30, 0, 0, time.UTC)
	rec := &statusRecorder{}
	cfg := testConfig(rec)

	liveQ := queueOf(
		model.BarMessage(barAt(base.Add(5*time.Minute), 50)),
		model.BarMessage(barAt(base.Add(6*time.Minute), 51)),
		model.BarMessage(barAt(base.Add(7*time.Minute), 52)),
	)
	src := &fakeSource{
		instrumentOK: true,
		liveQueues:   []*bus.Queue[model.Message]{liveQ},
		candleQueues: []*bus.Queue[model.Message]{queueOf(
			model.BarMessage(barAt(base, 1)),
			model.Message{Kind: model.MessageEOF},
		)},
	}
	f := New(src, cfg)
	require.NoError(t, f.Start(t.Context()))

	// backfill bar + stashed first live bar, still catching up
	drain(t, f, 2)
	assert.NotEqual(t, enum.FeedStatusLive, f.LastStatus(), "queue still deep, not yet LIVE")

	drain(t, f, 1) // depth reaches 1
	assert.Equal(t, enum.FeedStatusLive, f.LastStatus())
}

func TestReconnectBudgetExhausted(t *testing.T) {
	rec := &statusRecorder{}
	cfg := testConfig(rec)
	cfg.BackfillStart = false
	cfg.Backfill = false
	cfg.Reconnections = 1

	src := &fakeSource{instrumentOK: true, liveQueues: []*bus.Queue[model.Message]{
		queueOf(model.ErrorMessage(alpaca.CodeStreamFailure)),
		queueOf(model.ErrorMessage(alpaca.CodeStreamFailure)),
	}}
	f := New(src, cfg)
	require.NoError(t, f.Start(t.Context()))

	requireEnd(t, f)
	assert.Equal(t, 2, src.streamCalls, "one reconnect attempt before giving up")
	assert.Equal(t, enum.FeedStatusDisconnected, f.LastStatus())
	assert.Contains(t, rec.statuses, enum.FeedStatusConnBroken)
}

func TestReconnectDisabled(t *testing.T) {
	cfg := testConfig(nil)
	cfg.BackfillStart = false
	cfg.Reconnect = false

	src := &fakeSource{instrumentOK: true, liveQueues: []*bus.Queue[model.Message]{
		queueOf(model.Message{Kind: model.MessageDisconnect}),
	}}
	f := New(src, cfg)
	require.NoError(t, f.Start(t.Context()))

	requireEnd(t, f)
	assert.Equal(t, 1, src.streamCalls)
}

func TestUnrecoverableCodeEnds(t *testing.T) {
	cfg := testConfig(nil)
	cfg.BackfillStart = false

	src := &fakeSource{instrumentOK: true, liveQueues: []*bus.Queue[model.Message]{
		queueOf(model.ErrorMessage(alpaca.CodeUnsupportedTimeFrame)),
	}}
	f := New(src, cfg)
	require.NoError(t, f.Start(t.Context()))

	requireEnd(t, f)
	assert.Equal(t, 1, src.streamCalls, "unrecoverable codes never reconnect")
}

func TestUnlimitedReconnections(t *testing.T) {
	base := time.Date(2025, time.June, 11, 9, 30, 0, 0, time.UTC)
	cfg := testConfig(nil)
	cfg.BackfillStart = false
	cfg.Backfill = false
	cfg.Reconnections = -1

	// five consecutive failures without a single good sample would
	// exhaust any finite budget of that size
	queues := make([]*bus.Queue[model.Message], 0, 6)
	for i := 0; i < 5; i++ {
		queues = append(queues, queueOf(model.ErrorMessage(alpaca.CodeStreamFailure)))
	}
	queues = append(queues, queueOf(model.BarMessage(barAt(base, 1))))

	src := &fakeSource{instrumentOK: true, liveQueues: queues}
	f := New(src, cfg)
	require.NoError(t, f.Start(t.Context()))

	bars := drain(t, f, 1)
	assert.Equal(t, 1.0, bars[0].Close)
	assert.Equal(t, 6, src.streamCalls, "every failure retried")
}

func TestGoodSampleRestoresBudget(t *testing.T) {
	base := time.Date(2025, time.June, 11, 9, 30, 0, 0, time.UTC)
	cfg := testConfig(nil)
	cfg.BackfillStart = false
	cfg.Backfill = false
	cfg.Reconnections = 1

	src := &fakeSource{instrumentOK: true, liveQueues: []*bus.Queue[model.Message]{
		queueOf(model.ErrorMessage(alpaca.CodeStreamFailure)),
		queueOf(
			model.BarMessage(barAt(base, 1)),
			model.ErrorMessage(alpaca.CodeStreamFailure),
		),
		queueOf(model.BarMessage(barAt(base.Add(time.Minute), 2))),
	}}
	f := New(src, cfg)
	require.NoError(t, f.Start(t.Context()))

	bars := drain(t, f, 2)
	assert.Equal(t, 1.0, bars[0].Close)
	assert.Equal(t, 2.0, bars[1].Close)
	assert.Equal(t, 3, src.streamCalls, "budget was restored by the good sample")
}

type sliceSource struct {
	bars []model.Bar
}

func (s *sliceSource) Next() (model.Bar, bool) {
	if len(s.bars) == 0 {
		return model.Bar{}, false
	}
	b := s.bars[0]
	s.bars = s.bars[1:]
	return b, true
}

func TestSecondarySourceReplaysFirst(t *testing.T) {
	base := time.Date(2025, time.June, 11, 9, 30, 0, 0, time.UTC)
	cfg := testConfig(nil)
	cfg.Historical = true
	cfg.Secondary = &sliceSource{bars: []model.Bar{
		barAt(base, 1),
		barAt(base.Add(time.Minute), 2),
	}}

	src := &fakeSource{instrumentOK: true, candleQueues: []*bus.Queue[model.Message]{queueOf(
		model.BarMessage(barAt(base.Add(time.Minute), 98)), // overlaps the secondary, dropped
		model.BarMessage(barAt(base.Add(2*time.Minute), 3)),
		model.Message{Kind: model.MessageEOF},
	)}}
	f := New(src, cfg)
	require.NoError(t, f.Start(t.Context()))
	assert.Equal(t, StateFrom, f.State())

	bars := drain(t, f, 3)
	assert.Equal(t, 1.0, bars[0].Close)
	assert.Equal(t, 2.0, bars[1].Close)
	assert.Equal(t, 3.0, bars[2].Close)
	requireEnd(t, f)
}

func TestTickQuotes(t *testing.T) {
	base := time.Date(2025, time.June, 11, 9, 30, 0, 0, time.UTC)
	cfg := testConfig(nil)
	cfg.Frame = enum.TimeFrameTicks
	cfg.BackfillStart = false
	cfg.UseAsk = true

	src := &fakeSource{instrumentOK: true, liveQueues: []*bus.Queue[model.Message]{queueOf(
		model.QuoteMessage(model.Quote{Time: base, BidPrice: 99.5, AskPrice: 100.5}),
	)}}
	f := New(src, cfg)
	require.NoError(t, f.Start(t.Context()))

	bars := drain(t, f, 1)
	assert.Equal(t, 100.5, bars[0].Open)
	assert.Equal(t, 100.5, bars[0].Close)
	assert.Zero(t, bars[0].Volume)
}
