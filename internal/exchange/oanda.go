// Package exchange talks to the OANDA v3 REST API.
package exchange

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/moznion/go-optional"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"autogecko-go/internal/metrics"
	"autogecko-go/internal/signal"
	"autogecko-go/internal/util"
)

const (
	// DefaultBaseURL points at the OANDA practice environment.
	DefaultBaseURL = "https://api-fxpractice.oanda.com/v3"

	defaultRetries = 3
	defaultBackoff = 2 * time.Second
	defaultTimeout = 10 * time.Second
	maxRawExcerpt  = 512
)

// Client issues pricing and order requests with a bounded retry budget.
type Client struct {
	baseURL   string
	accountID string
	token     string
	http      *http.Client
	retries   int
	backoff   time.Duration
	timeout   time.Duration
	log       zerolog.Logger
	sleep     func(context.Context, time.Duration) error
	newID     func() string
}

// Option configures Client construction parameters.
type Option func(*Client)

// WithBaseURL overrides the API root, e.g. the live trading host.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		if baseURL != "" {
			c.baseURL = strings.TrimSuffix(baseURL, "/")
		}
	}
}

// WithHTTPClient swaps the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithRetries sets the number of attempts per call.
func WithRetries(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.retries = n
		}
	}
}

// WithBackoff sets the base wait; the client waits backoff*attempt between attempts.
func WithBackoff(d time.Duration) Option {
	return func(c *Client) {
		if d >= 0 {
			c.backoff = d
		}
	}
}

// WithTimeout bounds each individual attempt.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithLogger attaches a logger for per-attempt warnings.
func WithLogger(log zerolog.Logger) Option {
	return func(c *Client) { c.log = log }
}

// NewClient builds a client for one OANDA account.
func NewClient(accountID, token string, opts ...Option) *Client {
	c := &Client{
		baseURL:   DefaultBaseURL,
		accountID: accountID,
		token:     token,
		http:      &http.Client{},
		retries:   defaultRetries,
		backoff:   defaultBackoff,
		timeout:   defaultTimeout,
		log:       zerolog.Nop(),
		sleep:     util.Sleep,
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type priceBucket struct {
	Price     string `json:"price"`
	Liquidity int64  `json:"liquidity"`
}

type clientPrice struct {
	Instrument string        `json:"instrument"`
	Time       string        `json:"time"`
	Bids       []priceBucket `json:"bids"`
	Asks       []priceBucket `json:"asks"`
}

type pricingResponse struct {
	Prices []clientPrice `json:"prices"`
}

// FetchPrice returns the current mid-price of instrument rounded to 5 decimals.
func (c *Client) FetchPrice(ctx context.Context, instrument string) (signal.Sample, error) {
	path := fmt.Sprintf("/accounts/%s/pricing?%s", url.PathEscape(c.accountID), url.Values{"instruments": {instrument}}.Encode())

	var payload pricingResponse
	attempts, raw, err := c.do(ctx, OpFetchPrice, instrument, http.MethodGet, path, nil, &payload)
	if err != nil {
		return signal.Sample{}, c.fail(OpFetchPrice, instrument, err.Error(), attempts, raw, err)
	}
	if len(payload.Prices) == 0 || len(payload.Prices[0].Bids) == 0 || len(payload.Prices[0].Asks) == 0 {
		return signal.Sample{}, c.fail(OpFetchPrice, instrument, "response missing bids or asks", attempts, raw, nil)
	}
	quote := payload.Prices[0]
	bid, err := decimal.NewFromString(quote.Bids[0].Price)
	if err != nil {
		return signal.Sample{}, c.fail(OpFetchPrice, instrument, "unparseable bid "+strconv.Quote(quote.Bids[0].Price), attempts, raw, err)
	}
	ask, err := decimal.NewFromString(quote.Asks[0].Price)
	if err != nil {
		return signal.Sample{}, c.fail(OpFetchPrice, instrument, "unparseable ask "+strconv.Quote(quote.Asks[0].Price), attempts, raw, err)
	}
	mid := bid.Add(ask).Div(decimal.NewFromInt(2)).Round(5).InexactFloat64()

	ts := time.Now().UTC()
	if parsed, err := time.Parse(time.RFC3339Nano, quote.Time); err == nil {
		ts = parsed.UTC()
	}
	metrics.PriceSamplesTotal.WithLabelValues(instrument).Inc()
	return signal.Sample{Instrument: instrument, Price: mid, Ts: ts}, nil
}

type priceDetails struct {
	Price string `json:"price"`
}

type clientExtensions struct {
	ID string `json:"id"`
}

type marketOrder struct {
	Units            string            `json:"units"`
	Instrument       string            `json:"instrument"`
	TimeInForce      string            `json:"timeInForce"`
	Type             string            `json:"type"`
	PositionFill     string            `json:"positionFill"`
	StopLossOnFill   *priceDetails     `json:"stopLossOnFill,omitempty"`
	TakeProfitOnFill *priceDetails     `json:"takeProfitOnFill,omitempty"`
	ClientExtensions *clientExtensions `json:"clientExtensions,omitempty"`
}

type orderRequest struct {
	Order marketOrder `json:"order"`
}

type transaction struct {
	ID     string `json:"id"`
	Reason string `json:"reason"`
}

type orderResponse struct {
	OrderFillTransaction   *transaction `json:"orderFillTransaction"`
	OrderCancelTransaction *transaction `json:"orderCancelTransaction"`
}

// PlaceOrder submits a fill-or-kill market order and returns the fill
// transaction id. Positive units buy, negative units sell. Stop-loss and
// take-profit are attached only when both are present.
func (c *Client) PlaceOrder(ctx context.Context, instrument string, units int64, stopLoss, takeProfit optional.Option[float64]) (string, error) {
	if units == 0 {
		return "", c.fail(OpPlaceOrder, instrument, "order units must be non-zero", 0, "", nil)
	}
	order := marketOrder{
		Units:            strconv.FormatInt(units, 10),
		Instrument:       instrument,
		TimeInForce:      "FOK",
		Type:             "MARKET",
		PositionFill:     "DEFAULT",
		ClientExtensions: &clientExtensions{ID: c.newID()},
	}
	if stopLoss.IsSome() && takeProfit.IsSome() {
		order.StopLossOnFill = &priceDetails{Price: formatPrice(stopLoss.Unwrap())}
		order.TakeProfitOnFill = &priceDetails{Price: formatPrice(takeProfit.Unwrap())}
	}

	var payload orderResponse
	path := fmt.Sprintf("/accounts/%s/orders", url.PathEscape(c.accountID))
	attempts, raw, err := c.do(ctx, OpPlaceOrder, instrument, http.MethodPost, path, orderRequest{Order: order}, &payload)
	if err != nil {
		return "", c.fail(OpPlaceOrder, instrument, err.Error(), attempts, raw, err)
	}
	if payload.OrderFillTransaction != nil && payload.OrderFillTransaction.ID != "" {
		return payload.OrderFillTransaction.ID, nil
	}
	reason := "response has no fill confirmation"
	if payload.OrderCancelTransaction != nil && payload.OrderCancelTransaction.Reason != "" {
		reason = "order cancelled: " + payload.OrderCancelTransaction.Reason
	}
	return "", c.fail(OpPlaceOrder, instrument, reason, attempts, raw, nil)
}

func formatPrice(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(5)
}

// do runs one request with retries and decodes a 2xx body into out. It returns
// the number of attempts made and an excerpt of the last response body.
func (c *Client) do(ctx context.Context, op, instrument, method, path string, body any, out any) (int, string, error) {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return 0, "", fmt.Errorf("encode request: %w", err)
		}
	}

	var (
		lastErr error
		raw     string
	)
	for attempt := 1; attempt <= c.retries; attempt++ {
		var data []byte
		data, lastErr = c.once(ctx, method, path, payload)
		raw = excerpt(data)
		if lastErr == nil {
			if err := json.Unmarshal(data, out); err != nil {
				lastErr = fmt.Errorf("decode response: %w", err)
			} else {
				return attempt, raw, nil
			}
		}
		if ctx.Err() != nil {
			return attempt, raw, ctx.Err()
		}
		c.log.Warn().Err(lastErr).Str("op", op).Str("instrument", instrument).Int("attempt", attempt).Msg("broker attempt failed")
		if attempt == c.retries {
			return attempt, raw, lastErr
		}
		metrics.BrokerRetriesTotal.WithLabelValues(op).Inc()
		if err := c.sleep(ctx, c.backoff*time.Duration(attempt)); err != nil {
			return attempt, raw, err
		}
	}
	return c.retries, raw, lastErr
}

var errStatus = errors.New("unexpected status")

func (c *Client) once(ctx context.Context, method, path string, payload []byte) ([]byte, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(attemptCtx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept-Datetime-Format", "RFC3339")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http do: %w", err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return data, fmt.Errorf("%w %d", errStatus, resp.StatusCode)
	}
	return data, nil
}

func (c *Client) fail(op, instrument, reason string, attempts int, raw string, err error) *Failure {
	metrics.BrokerFailuresTotal.WithLabelValues(op).Inc()
	f := &Failure{Op: op, Instrument: instrument, Reason: reason, Attempts: attempts, Raw: raw, Err: err}
	c.log.Error().Str("op", op).Str("instrument", instrument).Int("attempts", attempts).Str("raw", raw).Msg(reason)
	return f
}

func excerpt(data []byte) string {
	if len(data) > maxRawExcerpt {
		return string(data[:maxRawExcerpt])
	}
	return string(data)
}
