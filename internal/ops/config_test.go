package ops

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bridge/internal/model/enum"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("ALPACA_KEY_ID", "key")
	t.Setenv("ALPACA_SECRET_KEY", "secret")
}

func TestLoadDefaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "key", cfg.Store.KeyID)
	assert.True(t, cfg.Store.Paper)
	assert.Equal(t, []string{"AAPL"}, cfg.Symbols)
	assert.Equal(t, enum.TimeFrameMinutes, cfg.Frame)
	assert.Equal(t, 1, cfg.Compression)
	assert.Equal(t, enum.DataTierIEX, cfg.Tier)
	assert.True(t, cfg.BackfillStart)
	assert.Equal(t, -1, cfg.Reconnections)
	assert.Equal(t, 500*time.Millisecond, cfg.QCheck)
	assert.Empty(t, cfg.ReplayDir)
	assert.Empty(t, cfg.RecordDir)
}

func TestLoadMissingCredentials(t *testing.T) {
	t.Setenv("ALPACA_KEY_ID", "")
	t.Setenv("ALPACA_SECRET_KEY", "")
	_, err := Load()
	assert.Error(t, err)
}

func TestLoadOverrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("ALPACA_PAPER", "false")
	t.Setenv("SYMBOLS", "msft, tsla")
	t.Setenv("TIMEFRAME", "days")
	t.Setenv("COMPRESSION", "1")
	t.Setenv("DATA_TIER", "sip")
	t.Setenv("HISTORICAL", "true")
	t.Setenv("RECONNECTIONS", "3")
	t.Setenv("RECONNECT_TIMEOUT", "2s")
	t.Setenv("QCHECK", "250ms")
	t.Setenv("REPLAY_DIR", "/tmp/bars")
	t.Setenv("RECORD_DIR", "/tmp/recorded")

	cfg, err := Load()
	require.NoError(t, err)
	assert.False(t, cfg.Store.Paper)
	assert.Equal(t, []string{"MSFT", "TSLA"}, cfg.Symbols)
	assert.Equal(t, enum.TimeFrameDays, cfg.Frame)
	assert.Equal(t, enum.DataTierSIP, cfg.Tier)
	assert.True(t, cfg.Historical)
	assert.Equal(t, 3, cfg.Reconnections)
	assert.Equal(t, 2*time.Second, cfg.ReconnTimeout)
	assert.Equal(t, 250*time.Millisecond, cfg.QCheck)
	assert.Equal(t, "/tmp/bars", cfg.ReplayDir)
	assert.Equal(t, "/tmp/recorded", cfg.RecordDir)
}

func TestLoadStoreTuning(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("RECOVERABLE_CODES", "599, 596")
	t.Setenv("PENDING_TRANS_LIMIT", "16")
	t.Setenv("TRADING_URL", "http://localhost:8080")
	t.Setenv("DATA_URL", "http://localhost:8081")
	t.Setenv("STREAM_URL", "ws://localhost:8082")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, map[int]struct{}{599: {}, 596: {}}, cfg.Store.RecoverableCodes)
	assert.Equal(t, 16, cfg.Store.PendingTransLimit)
	assert.Equal(t, "http://localhost:8080", cfg.Store.TradingURL)
	assert.Equal(t, "http://localhost:8081", cfg.Store.DataURL)
	assert.Equal(t, "ws://localhost:8082", cfg.Store.StreamURL)
}

func TestLoadStoreTuningDefaults(t *testing.T) {
	setRequiredEnv(t)
	cfg, err := Load()
	require.NoError(t, err)
	assert.Nil(t, cfg.Store.RecoverableCodes)
	assert.Zero(t, cfg.Store.PendingTransLimit)
}

func TestLoadInvalidValues(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("TIMEFRAME", "fortnights")
	_, err := Load()
	assert.Error(t, err)

	t.Setenv("TIMEFRAME", "minutes")
	t.Setenv("RECONNECTIONS", "many")
	_, err = Load()
	assert.Error(t, err)

	t.Setenv("RECONNECTIONS", "-1")
	t.Setenv("RECOVERABLE_CODES", "599,many")
	_, err = Load()
	assert.Error(t, err)
}

func TestFeedConfig(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("USE_ASK", "true")
	t.Setenv("BACKFILL", "false")

	cfg, err := Load()
	require.NoError(t, err)

	fc := cfg.FeedConfig("AAPL")
	assert.Equal(t, "AAPL", fc.Symbol)
	assert.True(t, fc.UseAsk)
	assert.False(t, fc.Backfill)
	assert.True(t, fc.BackfillStart)
	assert.Equal(t, cfg.QCheck, fc.QCheck)
}
