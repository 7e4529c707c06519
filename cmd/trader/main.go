package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/yanun0323/logs"
	"github.com/yanun0323/pkg/sys"

	"bridge/internal/feed"
	"bridge/internal/ops"
	"bridge/internal/replay"
	"bridge/internal/store"
)

func main() {
	metricsAddr := flag.String("metrics-addr", "", "Address for the metrics endpoint (overrides METRICS_ADDR)")
	historical := flag.Bool("historical", false, "Download the historical range and exit")
	flag.Parse()

	cfg, err := ops.Load()
	if err != nil {
		logs.Errorf("load config, err: %+v", err)
		return
	}
	if *metricsAddr != "" {
		cfg.MetricsAddr = *metricsAddr
	}
	if *historical {
		cfg.Historical = true
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st := store.NewStore(cfg.Store)
	if cfg.MetricsAddr != "" {
		go serveMetrics(cfg.MetricsAddr, st)
	}

	if err := st.Bind(ctx, &logHandler{}); err != nil {
		logs.Errorf("bind store, err: %+v", err)
		return
	}
	defer st.Stop()
	logs.Infof("account ready, cash: %.2f, value: %.2f", st.Cash(), st.Value())

	if cfg.RecordDir != "" {
		if err := os.MkdirAll(cfg.RecordDir, 0o755); err != nil {
			logs.Warnf("create record dir, err: %+v", err)
			cfg.RecordDir = ""
		}
	}

	var wg sync.WaitGroup
	for _, symbol := range cfg.Symbols {
		fc := withMetrics(cfg.FeedConfig(symbol), st)
		if cfg.ReplayDir != "" {
			player, err := replay.Open(filepath.Join(cfg.ReplayDir, symbol+".csv"))
			if err != nil {
				logs.Warnf("replay %s, err: %+v", symbol, err)
			} else {
				logs.Infof("replaying %d recorded bars for %s", player.Remaining(), symbol)
				fc.Secondary = player
			}
		}

		f := feed.New(st, fc)
		if err := f.Start(ctx); err != nil {
			logs.Errorf("start feed %s, err: %+v", symbol, err)
			continue
		}

		var rec *replay.Writer
		if cfg.RecordDir != "" {
			w, err := replay.NewWriter(filepath.Join(cfg.RecordDir, symbol+".csv"))
			if err != nil {
				logs.Warnf("record %s, err: %+v", symbol, err)
			} else {
				rec = w
			}
		}

		wg.Add(1)
		go func(symbol string, f *feed.Feed, rec *replay.Writer) {
			defer wg.Done()
			runFeed(ctx, symbol, f, st, rec)
		}(symbol, f, rec)
	}

	go func() {
		select {
		case <-sys.Shutdown():
			cancel()
		case <-ctx.Done():
		}
	}()

	wg.Wait()
	drainNotifications(st)
}

func withMetrics(fc feed.Config, st *store.Store) feed.Config {
	fc.Metrics = st.Metrics()
	return fc
}

// runFeed pumps one feed until it ends, logging bars and surfacing
// store notifications between polls.
func runFeed(ctx context.Context, symbol string, f *feed.Feed, st *store.Store, rec *replay.Writer) {
	if rec != nil {
		defer func() {
			if err := rec.Close(); err != nil {
				logs.Warnf("close record %s, err: %+v", symbol, err)
			}
		}()
	}

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		bar, res := f.Poll()
		switch res {
		case feed.PollBar:
			logs.Infof("%s %s o=%.2f h=%.2f l=%.2f c=%.2f v=%.0f",
				symbol, bar.Time.Format(time.RFC3339),
				bar.Open, bar.High, bar.Low, bar.Close, bar.Volume)
			if rec != nil {
				if err := rec.Append(bar); err != nil {
					logs.Warnf("record %s, err: %+v", symbol, err)
				}
			}
		case feed.PollPending:
			drainNotifications(st)
		case feed.PollEnd:
			logs.Infof("feed %s finished, status: %s, delivered: %t",
				symbol, f.LastStatus(), f.Delivered())
			return
		}
	}
}

func drainNotifications(st *store.Store) {
	for _, n := range st.Notifications() {
		logs.Warnf("store: %s", n)
	}
}

func serveMetrics(addr string, st *store.Store) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", st.Metrics().Handler())
	logs.Infof("metrics listening on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		logs.Errorf("metrics server, err: %+v", err)
	}
}

// logHandler reports order lifecycle callbacks to the log. A strategy
// embeds its own handler here.
type logHandler struct{}

func (logHandler) OnSubmitted(ref int) { logs.Infof("order %d submitted", ref) }
func (logHandler) OnAccepted(ref int)  { logs.Infof("order %d accepted", ref) }
func (logHandler) OnFill(ref int, size, price float64, partial bool) {
	logs.Infof("order %d fill, size: %.2f, price: %.2f, partial: %t", ref, size, price, partial)
}
func (logHandler) OnCanceled(ref int) { logs.Infof("order %d canceled", ref) }
func (logHandler) OnRejected(ref int) { logs.Warnf("order %d rejected", ref) }
func (logHandler) OnExpired(ref int)  { logs.Warnf("order %d expired", ref) }

var (
	_ store.ExecutionHandler = logHandler{}
	_ feed.Source            = (*store.Store)(nil)
	_ feed.SecondarySource   = (*replay.Player)(nil)
)
