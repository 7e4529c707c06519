package alpaca

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecimalFields(t *testing.T) {
	raw := `{"id":"a1","cash":"10000.50","portfolio_value":"12345.67"}`
	var acct Account
	require.NoError(t, json.Unmarshal([]byte(raw), &acct))
	assert.Equal(t, 10000.50, Float(acct.Cash))
	assert.Equal(t, 12345.67, Float(acct.PortfolioValue))
}

func TestFloatPtr(t *testing.T) {
	assert.Equal(t, 0.0, FloatPtr(nil))

	var order Order
	require.NoError(t, json.Unmarshal([]byte(`{"filled_avg_price":"101.25"}`), &order))
	assert.Equal(t, 101.25, FloatPtr(order.FilledAvgPrice))
}

func TestFormatQty(t *testing.T) {
	assert.Equal(t, "1", FormatQty(1))
	assert.Equal(t, "2.5", FormatQty(2.5))
	assert.Equal(t, "0.33", FormatQty(0.333))
}

func TestOrderRequestOmitsUnsetFields(t *testing.T) {
	req := OrderRequest{Symbol: "AAPL", Qty: "1", Side: "buy", Type: "market", TimeInForce: "day"}
	raw, err := json.Marshal(req)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "limit_price")
	assert.NotContains(t, string(raw), "stop_loss")
	assert.NotContains(t, string(raw), "order_class")
}
