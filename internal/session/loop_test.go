package session

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/moznion/go-optional"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autogecko-go/internal/notify"
	"autogecko-go/internal/risk"
	"autogecko-go/internal/signal"
	"autogecko-go/internal/strategy"
)

type fakePrices struct {
	mu     sync.Mutex
	series map[string][]float64
	errs   map[string]error
	panics map[string]bool
	calls  map[string]int
}

func newFakePrices() *fakePrices {
	return &fakePrices{
		series: map[string][]float64{},
		errs:   map[string]error{},
		panics: map[string]bool{},
		calls:  map[string]int{},
	}
}

func (f *fakePrices) FetchPrice(_ context.Context, instrument string) (signal.Sample, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := f.calls[instrument]
	f.calls[instrument] = n + 1
	if f.panics[instrument] {
		panic("bad quote")
	}
	if err := f.errs[instrument]; err != nil {
		return signal.Sample{}, err
	}
	prices := f.series[instrument]
	if len(prices) == 0 {
		return signal.Sample{}, errors.New("no prices")
	}
	if n >= len(prices) {
		n = len(prices) - 1
	}
	return signal.Sample{Instrument: instrument, Price: prices[n], Ts: time.Now()}, nil
}

func (f *fakePrices) Calls(instrument string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[instrument]
}

type placed struct {
	instrument string
	units      int64
	sl, tp     optional.Option[float64]
	ctxErr     error
}

type fakeOrders struct {
	mu      sync.Mutex
	orders  []placed
	err     error
	onPlace func()
}

func (f *fakeOrders) PlaceOrder(ctx context.Context, instrument string, units int64, sl, tp optional.Option[float64]) (string, error) {
	if f.onPlace != nil {
		f.onPlace()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.orders = append(f.orders, placed{instrument: instrument, units: units, sl: sl, tp: tp, ctxErr: ctx.Err()})
	if f.err != nil {
		return "", f.err
	}
	return "7001", nil
}

// fakeClock advances only when the loop sleeps.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
	return ctx.Err()
}

func testParams(instruments ...string) Params {
	return Params{
		Instruments:  instruments,
		PollInterval: time.Second,
		Duration:     3 * time.Second,
		RSIPeriod:    2,
		EMAPeriod:    2,
		Strategy: strategy.Params{
			Units:            1000,
			RSIBuyThreshold:  30,
			RSISellThreshold: 70,
			StopLossPct:      0.02,
			TakeProfitPct:    0.03,
		},
	}
}

func newTestLoop(params Params, prices PriceSource, orders OrderGateway, sink notify.Sink, opts ...Option) *Loop {
	clock := &fakeClock{now: time.Date(2024, 5, 6, 10, 0, 0, 0, time.UTC)}
	opts = append([]Option{WithClock(clock.Now), WithSleep(clock.Sleep), WithSessionID("s-test")}, opts...)
	return New(params, prices, orders, sink, zerolog.Nop(), opts...)
}

func TestZeroDurationEmitsOnlyLifecycle(t *testing.T) {
	prices := newFakePrices()
	mem := notify.NewMemory(0)
	params := testParams("EUR_USD")
	params.Duration = 0

	loop := newTestLoop(params, prices, &fakeOrders{}, mem)
	summary, err := loop.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{MsgStarted, MsgEnded}, mem.Messages())
	assert.Equal(t, 0, summary.Ticks)
	assert.Equal(t, 0, prices.Calls("EUR_USD"))
	assert.Equal(t, Ended, loop.State())
}

func TestBuySignalPlacesOrder(t *testing.T) {
	prices := newFakePrices()
	prices.series["EUR_USD"] = []float64{1.3, 1.2, 1.1}
	orders := &fakeOrders{}
	mem := notify.NewMemory(0)

	summary, err := newTestLoop(testParams("EUR_USD"), prices, orders, mem).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{
		MsgStarted,
		"EUR_USD | Price: 1.30000 | RSI: 50.00 | EMA: 1.30000",
		"EUR_USD | Price: 1.20000 | RSI: 50.00 | EMA: 1.22689",
		"EUR_USD | Price: 1.10000 | RSI: 0.00 | EMA: 1.12689",
		"Buy order placed: 7001",
		MsgEnded,
	}, mem.Messages())

	require.Len(t, orders.orders, 1)
	order := orders.orders[0]
	assert.Equal(t, int64(1000), order.units)
	assert.Equal(t, 1.078, order.sl.Unwrap())
	assert.Equal(t, 1.133, order.tp.Unwrap())

	assert.Equal(t, 3, summary.Ticks)
	assert.Equal(t, 3, summary.Samples)
	assert.Equal(t, 1, summary.Orders)
	assert.Equal(t, 0, summary.Errors)

	events := mem.Snapshot()
	assert.Equal(t, notify.KindOrderPlaced, events[4].Kind)
	assert.Equal(t, "s-test", events[4].SessionID)
	assert.Equal(t, 1.078, events[4].Fields["stop_loss"])
}

func TestSellSignalPlacesNegativeUnits(t *testing.T) {
	prices := newFakePrices()
	prices.series["EUR_USD"] = []float64{1.0, 1.1, 1.2}
	orders := &fakeOrders{}
	mem := notify.NewMemory(0)

	_, err := newTestLoop(testParams("EUR_USD"), prices, orders, mem).Run(context.Background())
	require.NoError(t, err)

	require.Len(t, orders.orders, 1)
	assert.Equal(t, int64(-1000), orders.orders[0].units)
	assert.Contains(t, mem.Messages(), "Sell order placed: 7001")
}

func TestFetchFailureIsIsolatedPerInstrument(t *testing.T) {
	prices := newFakePrices()
	prices.errs["EUR_USD"] = errors.New("fetch_price EUR_USD: unexpected status 503 (after 3 attempts)")
	prices.series["GBP_USD"] = []float64{1.25}
	mem := notify.NewMemory(0)
	params := testParams("EUR_USD", "GBP_USD")
	params.Duration = time.Second

	summary, err := newTestLoop(params, prices, &fakeOrders{}, mem).Run(context.Background())
	require.NoError(t, err)

	events := mem.Snapshot()
	require.Len(t, events, 4)
	assert.Equal(t, notify.KindError, events[1].Kind)
	assert.Equal(t, "EUR_USD", events[1].Instrument)
	assert.Equal(t, "EUR_USD trade error: fetch_price EUR_USD: unexpected status 503 (after 3 attempts)", events[1].Message)
	assert.Equal(t, notify.KindSnapshot, events[2].Kind)
	assert.Equal(t, "GBP_USD", events[2].Instrument)
	assert.Equal(t, 1, summary.Errors)
	assert.Equal(t, 1, summary.Samples)
}

func TestRepeatedMessagesReachSinkOnce(t *testing.T) {
	prices := newFakePrices()
	prices.series["EUR_USD"] = []float64{1.0}
	mem := notify.NewMemory(0)
	var logs bytes.Buffer
	params := testParams("EUR_USD")
	params.RSIPeriod = 14

	clock := &fakeClock{now: time.Unix(0, 0)}
	loop := New(params, prices, &fakeOrders{}, mem, zerolog.New(&logs), WithClock(clock.Now), WithSleep(clock.Sleep))
	_, err := loop.Run(context.Background())
	require.NoError(t, err)

	const snapshot = "EUR_USD | Price: 1.00000 | RSI: 50.00 | EMA: 1.00000"
	assert.Equal(t, []string{MsgStarted, snapshot, MsgEnded}, mem.Messages())
	assert.Equal(t, 3, strings.Count(logs.String(), snapshot), "the log keeps every event")
	assert.Equal(t, 3, prices.Calls("EUR_USD"))
}

func TestOrderFailureBecomesErrorEvent(t *testing.T) {
	prices := newFakePrices()
	prices.series["EUR_USD"] = []float64{1.3, 1.2, 1.1}
	orders := &fakeOrders{err: errors.New("order cancelled: MARKET_HALTED")}
	mem := notify.NewMemory(0)

	summary, err := newTestLoop(testParams("EUR_USD"), prices, orders, mem).Run(context.Background())
	require.NoError(t, err)

	assert.Contains(t, mem.Messages(), "EUR_USD trade error: order cancelled: MARKET_HALTED")
	assert.Equal(t, 1, summary.Errors)
	assert.Equal(t, 0, summary.Orders)
}

func TestPanicIsRecoveredPerInstrument(t *testing.T) {
	prices := newFakePrices()
	prices.panics["EUR_USD"] = true
	prices.series["GBP_USD"] = []float64{1.25}
	mem := notify.NewMemory(0)
	params := testParams("EUR_USD", "GBP_USD")
	params.Duration = time.Second

	_, err := newTestLoop(params, prices, &fakeOrders{}, mem).Run(context.Background())
	require.NoError(t, err)

	msgs := mem.Messages()
	require.Len(t, msgs, 4)
	assert.Equal(t, "EUR_USD trade error: panic: bad quote", msgs[1])
	assert.True(t, strings.HasPrefix(msgs[2], "GBP_USD | Price: 1.25000"))
}

func TestNotionalLimitBlocksOrder(t *testing.T) {
	prices := newFakePrices()
	prices.series["EUR_USD"] = []float64{1.3, 1.2, 1.1}
	orders := &fakeOrders{}
	mem := notify.NewMemory(0)
	params := testParams("EUR_USD")
	params.Limits = risk.Limits{MaxNotionalPerTrade: 100}

	summary, err := newTestLoop(params, prices, orders, mem).Run(context.Background())
	require.NoError(t, err)

	assert.Empty(t, orders.orders)
	assert.Equal(t, 1, summary.Errors)
	msgs := mem.Messages()
	assert.True(t, strings.HasPrefix(msgs[len(msgs)-2], "EUR_USD trade error: notional exceeds per-trade limit"))
}

func TestStopEndsSessionPromptly(t *testing.T) {
	prices := newFakePrices()
	prices.series["EUR_USD"] = []float64{1.1}
	mem := notify.NewMemory(0)
	params := testParams("EUR_USD")
	params.PollInterval = time.Hour
	params.Duration = 24 * time.Hour

	loop := New(params, prices, &fakeOrders{}, mem, zerolog.Nop())
	done := make(chan Summary, 1)
	go func() {
		summary, _ := loop.Run(context.Background())
		done <- summary
	}()

	require.Eventually(t, func() bool {
		return loop.State() == Running && prices.Calls("EUR_USD") == 1
	}, 2*time.Second, 5*time.Millisecond)
	loop.Stop()

	select {
	case summary := <-done:
		assert.True(t, summary.Cancelled)
		assert.Equal(t, 1, summary.Ticks)
	case <-time.After(2 * time.Second):
		t.Fatal("loop did not stop")
	}
	assert.Equal(t, Ended, loop.State())
	msgs := mem.Messages()
	assert.Equal(t, MsgStarted, msgs[0])
	assert.Equal(t, MsgEnded, msgs[len(msgs)-1])
	assert.Equal(t, 1, strings.Count(strings.Join(msgs, "\n"), MsgEnded))
}

func TestOrderCompletesWhenStoppedMidAction(t *testing.T) {
	prices := newFakePrices()
	prices.series["EUR_USD"] = []float64{1.3, 1.2, 1.1}
	prices.series["GBP_USD"] = []float64{1.3}
	mem := notify.NewMemory(0)
	orders := &fakeOrders{}
	params := testParams("EUR_USD", "GBP_USD")

	loop := newTestLoop(params, prices, orders, mem)
	orders.onPlace = loop.Stop

	summary, err := loop.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, orders.orders, 1)
	assert.NoError(t, orders.orders[0].ctxErr, "order context must not be cancelled")
	assert.Contains(t, mem.Messages(), "Buy order placed: 7001")
	assert.True(t, summary.Cancelled)
	// the stop lands before GBP_USD in the same tick
	assert.Equal(t, 3, prices.Calls("EUR_USD"))
	assert.Equal(t, 2, prices.Calls("GBP_USD"))
}

func TestRunTwiceFails(t *testing.T) {
	params := testParams("EUR_USD")
	params.Duration = 0
	loop := newTestLoop(params, newFakePrices(), &fakeOrders{}, nil)
	_, err := loop.Run(context.Background())
	require.NoError(t, err)
	_, err = loop.Run(context.Background())
	assert.ErrorIs(t, err, ErrAlreadyStarted)
}

func TestRunRejectsInvalidParams(t *testing.T) {
	params := testParams()
	loop := newTestLoop(params, newFakePrices(), &fakeOrders{}, nil)
	_, err := loop.Run(context.Background())
	assert.ErrorIs(t, err, ErrInvalidParams)
	assert.Equal(t, Idle, loop.State())
}

func TestStopBeforeRun(t *testing.T) {
	prices := newFakePrices()
	prices.series["EUR_USD"] = []float64{1.1}
	mem := notify.NewMemory(0)
	loop := newTestLoop(testParams("EUR_USD"), prices, &fakeOrders{}, mem)
	loop.Stop()

	summary, err := loop.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Ticks)
	assert.Equal(t, []string{MsgStarted, MsgEnded}, mem.Messages())
}
