package fetch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/tidwall/gjson"

	"github.com/captainplanet9000/cival-dashboard-sub013/shared"
)

const (
	marketDataPath = "/market-data"
)

// Quote represents a raw market data quote as served by the market data
// service. Bid, ask and the cumulative 24-hour volume are optional, a quote
// missing them still renders.
type Quote struct {
	Timestamp int64
	Price     float64
	Bid       float64
	Ask       float64
	Volume24h float64
}

// ClientConfig represents the configuration for the market data API client.
type ClientConfig struct {
	// BaseURL is the market data service base url.
	BaseURL string
	// APIKey is the optional market data service api key.
	APIKey string
}

// Validate asserts the config sane defaults are set.
func (cfg *ClientConfig) Validate() error {
	if cfg.BaseURL == "" {
		return fmt.Errorf("base url cannot be an empty string")
	}

	return nil
}

// Client represents the market data API client.
type Client struct {
	cfg   *ClientConfig
	httpc http.Client
}

// Ensure the Client implements the HistoryFetcher interface.
var _ shared.HistoryFetcher = (*Client)(nil)

// NewClient instantiates a new market data API client.
func NewClient(cfg *ClientConfig) (*Client, error) {
	err := cfg.Validate()
	if err != nil {
		return nil, fmt.Errorf("validating client config: %w", err)
	}

	return &Client{
		cfg:   cfg,
		httpc: http.Client{Timeout: time.Second * 5},
	}, nil
}

// ParseQuote parses a quote from the provided json payload. Payloads missing
// the timestamp or a positive price are malformed; missing bid and ask levels
// default to the quote price.
func ParseQuote(payload []byte, venue string, symbol string) (Quote, error) {
	timestamp := gjson.GetBytes(payload, "timestamp")
	if !timestamp.Exists() || timestamp.Int() <= 0 {
		return Quote{}, &shared.MalformedTickError{Venue: venue, Symbol: symbol, Reason: "missing timestamp"}
	}

	price := gjson.GetBytes(payload, "price")
	if !price.Exists() || price.Float() <= 0 {
		return Quote{}, &shared.MalformedTickError{Venue: venue, Symbol: symbol, Reason: "missing price"}
	}

	quote := Quote{
		Timestamp: timestamp.Int(),
		Price:     price.Float(),
		Bid:       price.Float(),
		Ask:       price.Float(),
	}

	if bid := gjson.GetBytes(payload, "bid"); bid.Exists() && bid.Float() > 0 {
		quote.Bid = bid.Float()
	}
	if ask := gjson.GetBytes(payload, "ask"); ask.Exists() && ask.Float() > 0 {
		quote.Ask = ask.Float()
	}
	if volume := gjson.GetBytes(payload, "volume24h"); volume.Exists() {
		quote.Volume24h = volume.Float()
	}

	return quote, nil
}

// ParseCandles parses candles from the provided json data.
func ParseCandles(data []gjson.Result, market string, granularity shared.Granularity) ([]shared.Candle, error) {
	candles := make([]shared.Candle, 0, len(data))

	for idx := range data {
		timestamp := data[idx].Get("timestamp")
		if !timestamp.Exists() || timestamp.Int() <= 0 {
			return nil, fmt.Errorf("parsing candle timestamp for %s: missing timestamp", market)
		}

		candles = append(candles, shared.Candle{
			Open:        data[idx].Get("open").Float(),
			Low:         data[idx].Get("low").Float(),
			High:        data[idx].Get("high").Float(),
			Close:       data[idx].Get("close").Float(),
			Volume:      data[idx].Get("volume").Float(),
			Market:      market,
			Granularity: granularity,
			PeriodStart: granularity.PeriodStart(timestamp.Int()),
			Complete:    true,
		})
	}

	return candles, nil
}

// FetchQuote fetches the current quote for the provided market. The request
// always bypasses server-side caching so polled quotes are live.
func (c *Client) FetchQuote(ctx context.Context, venue string, symbol string) (Quote, error) {
	params := url.Values{}
	params.Add("venue", venue)
	params.Add("symbol", symbol)
	params.Add("forceRefresh", "true")
	if c.cfg.APIKey != "" {
		params.Add("apikey", c.cfg.APIKey)
	}

	formedURL := fmt.Sprintf("%s%s?%s", c.cfg.BaseURL, marketDataPath, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, formedURL, nil)
	if err != nil {
		return Quote{}, fmt.Errorf("creating quote request for %s: %w", shared.MarketKey(venue, symbol), err)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return Quote{}, fmt.Errorf("fetching quote for %s: %w", shared.MarketKey(venue, symbol), err)
	}

	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Quote{}, fmt.Errorf("reading quote response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return Quote{}, fmt.Errorf("unexpected quote response status for %s: %d", shared.MarketKey(venue, symbol), resp.StatusCode)
	}

	return ParseQuote(body, venue, symbol)
}

// FetchCandleHistory fetches completed candles for the provided market,
// ordered oldest to newest.
func (c *Client) FetchCandleHistory(ctx context.Context, venue string, symbol string, granularity shared.Granularity, start int64, end int64, limit int) ([]shared.Candle, error) {
	market := shared.MarketKey(venue, symbol)

	payload, err := json.Marshal(struct {
		Venue       string `json:"venue"`
		Symbol      string `json:"symbol"`
		Granularity string `json:"granularity"`
		StartTime   int64  `json:"startTime"`
		EndTime     int64  `json:"endTime"`
		Limit       int    `json:"limit"`
	}{
		Venue:       venue,
		Symbol:      symbol,
		Granularity: granularity.String(),
		StartTime:   start,
		EndTime:     end,
		Limit:       limit,
	})
	if err != nil {
		return nil, fmt.Errorf("marshalling candle history request for %s: %w", market, err)
	}

	formedURL := c.cfg.BaseURL + marketDataPath
	if c.cfg.APIKey != "" {
		params := url.Values{}
		params.Add("apikey", c.cfg.APIKey)
		formedURL = fmt.Sprintf("%s?%s", formedURL, params.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, formedURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("creating candle history request for %s: %w", market, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching candle history for %s: %w", market, err)
	}

	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading candle history response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected candle history response status for %s: %d", market, resp.StatusCode)
	}

	data := gjson.GetBytes(body, "candles")
	if !data.Exists() {
		data = gjson.ParseBytes(body)
	}

	return ParseCandles(data.Array(), market, granularity)
}
