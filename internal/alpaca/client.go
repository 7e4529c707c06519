package alpaca

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/yanun0323/errors"

	"bridge/internal/model"
	"bridge/internal/model/enum"
)

// Fixed environment endpoints, selected by the paper/live flag.
const (
	PaperTradingURL = "https://paper-api.alpaca.markets"
	LiveTradingURL  = "https://api.alpaca.markets"
	DataURL         = "https://data.alpaca.markets"

	PaperStreamURL = "wss://paper-api.alpaca.markets/stream"
	LiveStreamURL  = "wss://api.alpaca.markets/stream"
	DataStreamURL  = "wss://stream.data.alpaca.markets/v2"
	CryptoStream   = "wss://stream.data.alpaca.markets/v1beta3/crypto/us"
	OptionStream   = "wss://stream.data.alpaca.markets/v1beta1"
)

// PageLimit is the upstream cap on bars per historical request.
const PageLimit = 1000

// Config selects credentials and endpoints for a Client.
type Config struct {
	KeyID      string
	SecretKey  string
	Paper      bool
	TradingURL string // override, default derives from Paper
	DataURL    string // override
	HTTPClient *http.Client
}

// Client is the REST boundary to the broker: account, assets, orders and
// historical bars. All blocking calls take a context.
type Client struct {
	keyID      string
	secretKey  string
	tradingURL string
	dataURL    string
	http       *http.Client
}

// NewClient builds a client from config, applying environment defaults.
func NewClient(cfg Config) *Client {
	tradingURL := cfg.TradingURL
	if tradingURL == "" {
		if cfg.Paper {
			tradingURL = PaperTradingURL
		} else {
			tradingURL = LiveTradingURL
		}
	}
	dataURL := cfg.DataURL
	if dataURL == "" {
		dataURL = DataURL
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		keyID:      cfg.KeyID,
		secretKey:  cfg.SecretKey,
		tradingURL: tradingURL,
		dataURL:    dataURL,
		http:       httpClient,
	}
}

// Account fetches the current account snapshot.
func (c *Client) Account(ctx context.Context) (Account, error) {
	var acct Account
	err := c.do(ctx, http.MethodGet, c.tradingURL+"/v2/account", nil, &acct)
	return acct, err
}

// Asset looks an instrument up by symbol.
func (c *Client) Asset(ctx context.Context, symbol string) (Asset, error) {
	var asset Asset
	err := c.do(ctx, http.MethodGet, c.tradingURL+"/v2/assets/"+url.PathEscape(symbol), nil, &asset)
	return asset, err
}

// Positions lists all open positions.
func (c *Client) Positions(ctx context.Context) ([]Position, error) {
	var positions []Position
	err := c.do(ctx, http.MethodGet, c.tradingURL+"/v2/positions", nil, &positions)
	return positions, err
}

// SubmitOrder posts an order request and returns the broker order.
func (c *Client) SubmitOrder(ctx context.Context, req OrderRequest) (Order, error) {
	var order Order
	err := c.do(ctx, http.MethodPost, c.tradingURL+"/v2/orders", req, &order)
	return order, err
}

// CancelOrder requests cancellation of a broker order id.
func (c *Client) CancelOrder(ctx context.Context, orderID string) error {
	return c.do(ctx, http.MethodDelete, c.tradingURL+"/v2/orders/"+url.PathEscape(orderID), nil, nil)
}

// Bars fetches one page of historical bars, newest-last, at most
// PageLimit rows ending at end. The caller drives pagination by walking
// end backwards (see internal/history).
func (c *Client) Bars(ctx context.Context, class enum.AssetClass, symbol string, g enum.Granularity, start, end time.Time, tier enum.DataTier) ([]model.Bar, error) {
	q := url.Values{}
	q.Set("timeframe", granularityParam(g))
	q.Set("start", start.UTC().Format(time.RFC3339))
	q.Set("end", end.UTC().Format(time.RFC3339))
	q.Set("limit", fmt.Sprint(PageLimit))
	q.Set("sort", "desc")

	switch class {
	case enum.AssetClassCrypto:
		q.Set("symbols", symbol)
		var page multiBarsPage
		u := c.dataURL + "/v1beta3/crypto/us/bars?" + q.Encode()
		if err := c.do(ctx, http.MethodGet, u, nil, &page); err != nil {
			return nil, err
		}
		return ascendingBars(page.Bars[symbol]), nil
	case enum.AssetClassUSOption:
		q.Set("symbols", symbol)
		var page multiBarsPage
		u := c.dataURL + "/v1beta1/options/bars?" + q.Encode()
		if err := c.do(ctx, http.MethodGet, u, nil, &page); err != nil {
			return nil, err
		}
		return ascendingBars(page.Bars[symbol]), nil
	default:
		q.Set("feed", tier.String())
		var page stockBarsPage
		u := c.dataURL + "/v2/stocks/" + url.PathEscape(symbol) + "/bars?" + q.Encode()
		if err := c.do(ctx, http.MethodGet, u, nil, &page); err != nil {
			return nil, err
		}
		return ascendingBars(page.Bars), nil
	}
}

func granularityParam(g enum.Granularity) string {
	switch g {
	case enum.GranularityDaily:
		return "1Day"
	case enum.GranularityWeekly:
		return "1Week"
	case enum.GranularityMonthly:
		return "1Month"
	default:
		// tick and minute feeds both backfill from minute bars
		return "1Min"
	}
}

func ascendingBars(payload []barPayload) []model.Bar {
	bars := make([]model.Bar, 0, len(payload))
	for i := len(payload) - 1; i >= 0; i-- {
		p := payload[i]
		bars = append(bars, model.Bar{
			Time:   p.Time,
			Open:   p.Open,
			High:   p.High,
			Low:    p.Low,
			Close:  p.Close,
			Volume: p.Volume,
		})
	}
	// pages requested sort=desc arrive newest-first; a server ignoring
	// the parameter returns ascending already
	if len(bars) > 1 && bars[0].Time.After(bars[len(bars)-1].Time) {
		for i, j := 0, len(bars)-1; i < j; i, j = i+1, j-1 {
			bars[i], bars[j] = bars[j], bars[i]
		}
	}
	return bars
}

func (c *Client) do(ctx context.Context, method, rawURL string, body, out any) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, "marshal request body")
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
	if err != nil {
		return errors.Wrap(err, "build request")
	}
	req.Header.Set("APCA-API-KEY-ID", c.keyID)
	req.Header.Set("APCA-API-SECRET-KEY", c.secretKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &APIError{Code: CodeNetworkError, Message: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var payload apiErrorPayload
		raw, _ := io.ReadAll(resp.Body)
		if json.Unmarshal(raw, &payload) == nil && payload.Message != "" {
			return &APIError{Code: CodeRequestError, Message: payload.Message}
		}
		return &APIError{Code: CodeRequestError, Message: resp.Status}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &APIError{Code: CodeRequestError, Message: err.Error()}
	}
	return nil
}
