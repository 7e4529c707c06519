package ops

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/yanun0323/errors"

	"bridge/internal/feed"
	"bridge/internal/model/enum"
	"bridge/internal/store"
	"bridge/pkg/exception"
)

// Config is the resolved process configuration, read from the
// environment with an optional .env overlay.
type Config struct {
	Store store.Config

	// Symbols are the instruments to subscribe.
	Symbols []string

	Frame       enum.TimeFrame
	Compression int
	Tier        enum.DataTier

	Historical    bool
	BackfillStart bool
	Backfill      bool
	UseAsk        bool

	QCheck        time.Duration
	Reconnect     bool
	Reconnections int
	ReconnTimeout time.Duration

	// MetricsAddr serves the metrics endpoint when non-empty.
	MetricsAddr string

	// ReplayDir holds per-symbol bar files replayed before broker data.
	ReplayDir string
	// RecordDir receives per-symbol bar files of everything emitted.
	RecordDir string
}

// Load reads configuration from the environment. A .env file in the
// working directory is overlaid when present.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		Store: store.Config{
			KeyID:     os.Getenv("ALPACA_KEY_ID"),
			SecretKey: os.Getenv("ALPACA_SECRET_KEY"),
		},
	}
	if cfg.Store.KeyID == "" || cfg.Store.SecretKey == "" {
		return Config{}, errors.New("ALPACA_KEY_ID and ALPACA_SECRET_KEY are required")
	}

	var err error
	if cfg.Store.Paper, err = envBool("ALPACA_PAPER", true); err != nil {
		return Config{}, err
	}
	if cfg.Store.AccountTimeout, err = envDuration("ACCOUNT_REFRESH", 10*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.Store.RecoverableCodes, err = envCodes("RECOVERABLE_CODES"); err != nil {
		return Config{}, err
	}
	if cfg.Store.PendingTransLimit, err = envInt("PENDING_TRANS_LIMIT", 0); err != nil {
		return Config{}, err
	}
	cfg.Store.TradingURL = envString("TRADING_URL", "")
	cfg.Store.DataURL = envString("DATA_URL", "")
	cfg.Store.StreamURL = envString("STREAM_URL", "")

	cfg.Symbols = splitList(envString("SYMBOLS", "AAPL"))
	if len(cfg.Symbols) == 0 {
		return Config{}, errors.New("SYMBOLS must name at least one instrument")
	}

	if cfg.Frame, err = parseFrame(envString("TIMEFRAME", "minutes")); err != nil {
		return Config{}, err
	}
	if cfg.Compression, err = envInt("COMPRESSION", 1); err != nil {
		return Config{}, err
	}
	cfg.Tier = enum.DataTierIEX
	if strings.EqualFold(envString("DATA_TIER", "iex"), "sip") {
		cfg.Tier = enum.DataTierSIP
	}

	if cfg.Historical, err = envBool("HISTORICAL", false); err != nil {
		return Config{}, err
	}
	if cfg.BackfillStart, err = envBool("BACKFILL_START", true); err != nil {
		return Config{}, err
	}
	if cfg.Backfill, err = envBool("BACKFILL", true); err != nil {
		return Config{}, err
	}
	if cfg.UseAsk, err = envBool("USE_ASK", false); err != nil {
		return Config{}, err
	}

	if cfg.QCheck, err = envDuration("QCHECK", 500*time.Millisecond); err != nil {
		return Config{}, err
	}
	if cfg.Reconnect, err = envBool("RECONNECT", true); err != nil {
		return Config{}, err
	}
	if cfg.Reconnections, err = envInt("RECONNECTIONS", -1); err != nil {
		return Config{}, err
	}
	if cfg.ReconnTimeout, err = envDuration("RECONNECT_TIMEOUT", 5*time.Second); err != nil {
		return Config{}, err
	}

	cfg.MetricsAddr = envString("METRICS_ADDR", "")
	cfg.ReplayDir = envString("REPLAY_DIR", "")
	cfg.RecordDir = envString("RECORD_DIR", "")
	return cfg, nil
}

// FeedConfig derives a per-symbol feed configuration.
func (c Config) FeedConfig(symbol string) feed.Config {
	fc := feed.DefaultConfig(symbol, c.Frame, c.Compression)
	fc.Tier = c.Tier
	fc.Historical = c.Historical
	fc.BackfillStart = c.BackfillStart
	fc.Backfill = c.Backfill
	fc.UseAsk = c.UseAsk
	fc.QCheck = c.QCheck
	fc.Reconnect = c.Reconnect
	fc.Reconnections = c.Reconnections
	fc.ReconnTimeout = c.ReconnTimeout
	return fc
}

func envString(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func envBool(key string, fallback bool) (bool, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, errors.Wrapf(err, "invalid %s", key)
	}
	return b, nil
}

func envInt(key string, fallback int) (int, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid %s", key)
	}
	return n, nil
}

func envDuration(key string, fallback time.Duration) (time.Duration, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid %s", key)
	}
	return d, nil
}

// envCodes parses a comma list of transport error codes. Unset leaves
// the store's default table in place.
func envCodes(key string) (map[int]struct{}, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil, nil
	}
	codes := make(map[int]struct{})
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p == "" {
			continue
		}
		n, err := strconv.Atoi(p)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid %s", key)
		}
		codes[n] = struct{}{}
	}
	return codes, nil
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, strings.ToUpper(p))
		}
	}
	return out
}

func parseFrame(v string) (enum.TimeFrame, error) {
	switch strings.ToLower(v) {
	case "ticks":
		return enum.TimeFrameTicks, nil
	case "seconds":
		return enum.TimeFrameSeconds, nil
	case "minutes":
		return enum.TimeFrameMinutes, nil
	case "days":
		return enum.TimeFrameDays, nil
	case "weeks":
		return enum.TimeFrameWeeks, nil
	case "months":
		return enum.TimeFrameMonths, nil
	default:
		return 0, errors.Wrapf(exception.ErrFeedUnsupportedTimeFrame, "TIMEFRAME %q", v)
	}
}
