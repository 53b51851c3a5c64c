// Package session runs the poll, compute, decide and act cycle for a bounded
// trading session.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/moznion/go-optional"
	"github.com/rs/zerolog"

	"autogecko-go/internal/indicator"
	"autogecko-go/internal/metrics"
	"autogecko-go/internal/notify"
	"autogecko-go/internal/risk"
	"autogecko-go/internal/series"
	"autogecko-go/internal/signal"
	"autogecko-go/internal/strategy"
	"autogecko-go/internal/util"
)

// State is the lifecycle position of a Loop.
type State int32

const (
	Idle State = iota
	Running
	Ended
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case Ended:
		return "ended"
	default:
		return "idle"
	}
}

var (
	// ErrAlreadyStarted is returned by a second call to Run.
	ErrAlreadyStarted = errors.New("session: already started")
	// ErrNotionalExceeded marks an order blocked by the per-trade notional cap.
	ErrNotionalExceeded = errors.New("notional exceeds per-trade limit")
)

// Event messages.
const (
	MsgStarted = "Trading session started."
	MsgEnded   = "Session ended."
)

// PriceSource returns the current mid-price of an instrument.
type PriceSource interface {
	FetchPrice(ctx context.Context, instrument string) (signal.Sample, error)
}

// OrderGateway places a market order and returns its id.
type OrderGateway interface {
	PlaceOrder(ctx context.Context, instrument string, units int64, stopLoss, takeProfit optional.Option[float64]) (string, error)
}

// Outcome is the result of processing one instrument in one tick.
type Outcome struct {
	Instrument string
	Sample     signal.Sample
	Snapshot   signal.Snapshot
	Decision   signal.Decision
	OrderID    string
	Err        error
	Cancelled  bool
}

// Summary aggregates the outcomes of a finished session.
type Summary struct {
	SessionID string
	Started   time.Time
	Ended     time.Time
	Ticks     int
	Samples   int
	Orders    int
	Errors    int
	Cancelled bool
}

func (s *Summary) add(o Outcome) {
	switch {
	case o.Cancelled:
	case o.Err != nil:
		s.Errors++
		if o.Sample.Price > 0 {
			s.Samples++
		}
	default:
		s.Samples++
		if o.OrderID != "" {
			s.Orders++
		}
	}
}

// Loop is a single-use session state machine: Idle, then Running, then Ended.
type Loop struct {
	params Params
	prices PriceSource
	orders OrderGateway
	sink   *notify.Dedup
	log    zerolog.Logger
	strat  strategy.Strategy
	id     string
	now    func() time.Time
	sleep  func(context.Context, time.Duration) error

	state   atomic.Int32
	windows map[string]*series.Window

	mu      sync.Mutex
	cancel  context.CancelFunc
	stopped bool
}

// Option configures a Loop.
type Option func(*Loop)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(l *Loop) {
		if now != nil {
			l.now = now
		}
	}
}

// WithSleep replaces the cancellable inter-tick sleep.
func WithSleep(sleep func(context.Context, time.Duration) error) Option {
	return func(l *Loop) {
		if sleep != nil {
			l.sleep = sleep
		}
	}
}

// WithSessionID sets the id stamped on every event.
func WithSessionID(id string) Option {
	return func(l *Loop) {
		if id != "" {
			l.id = id
		}
	}
}

// WithStrategy overrides the strategy built from Params.
func WithStrategy(s strategy.Strategy) Option {
	return func(l *Loop) {
		if s != nil {
			l.strat = s
		}
	}
}

// New builds an idle loop. The sink receives de-duplicated events; the logger
// receives every event.
func New(params Params, prices PriceSource, orders OrderGateway, sink notify.Sink, log zerolog.Logger, opts ...Option) *Loop {
	l := &Loop{
		params: params,
		prices: prices,
		orders: orders,
		sink:   notify.NewDedup(sink),
		log:    log,
		strat:  strategy.Build(params.Mode, params.Strategy),
		id:     uuid.NewString(),
		now:    time.Now,
		sleep:  util.Sleep,
	}
	for _, opt := range opts {
		opt(l)
	}
	l.log = l.log.With().Str("session_id", l.id).Logger()
	return l
}

// ID returns the session id.
func (l *Loop) ID() string { return l.id }

// State is safe to call from any goroutine.
func (l *Loop) State() State { return State(l.state.Load()) }

// Stop requests cancellation; the loop ends at its next suspend point.
func (l *Loop) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stopped = true
	if l.cancel != nil {
		l.cancel()
	}
}

// Run drives the session until its duration elapses or ctx is cancelled.
// Broker and per-instrument failures become error events, never a returned error.
func (l *Loop) Run(ctx context.Context) (Summary, error) {
	if err := l.params.Validate(); err != nil {
		return Summary{}, err
	}
	if !l.state.CompareAndSwap(int32(Idle), int32(Running)) {
		return Summary{}, ErrAlreadyStarted
	}
	metrics.SessionState.Set(float64(Running))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	l.mu.Lock()
	l.cancel = cancel
	if l.stopped {
		cancel()
	}
	l.mu.Unlock()

	l.windows = make(map[string]*series.Window, len(l.params.Instruments))
	start := l.now()
	end := start.Add(l.params.Duration)
	summary := Summary{SessionID: l.id, Started: start}

	l.log.Info().Strs("instruments", l.params.Instruments).Time("ends_at", end).Msg("session starting")
	l.emit(notify.Event{Kind: notify.KindSessionStarted, Message: MsgStarted})

	for l.now().Before(end) {
		if ctx.Err() != nil {
			break
		}
		for _, o := range l.tick(ctx) {
			summary.add(o)
		}
		summary.Ticks++
		metrics.SessionTicksTotal.Inc()
		if err := l.sleep(ctx, l.params.PollInterval); err != nil {
			break
		}
	}

	summary.Cancelled = ctx.Err() != nil
	summary.Ended = l.now()
	l.windows = nil
	l.state.Store(int32(Ended))
	metrics.SessionState.Set(float64(Ended))
	l.emit(notify.Event{Kind: notify.KindSessionEnded, Message: MsgEnded})
	l.log.Info().Int("ticks", summary.Ticks).Int("orders", summary.Orders).Int("errors", summary.Errors).
		Bool("cancelled", summary.Cancelled).Msg("session finished")
	return summary, nil
}

// tick processes every instrument in list order, stopping early on cancellation.
func (l *Loop) tick(ctx context.Context) []Outcome {
	outcomes := make([]Outcome, 0, len(l.params.Instruments))
	for _, inst := range l.params.Instruments {
		if ctx.Err() != nil {
			break
		}
		outcomes = append(outcomes, l.step(ctx, inst))
	}
	return outcomes
}

// step runs poll, buffer update, indicators, decision and the optional order
// for one instrument. Any failure, including a panic, is turned into an error event.
func (l *Loop) step(ctx context.Context, instrument string) (out Outcome) {
	out.Instrument = instrument
	defer func() {
		if r := recover(); r != nil {
			out.Err = fmt.Errorf("panic: %v", r)
			l.emitError(instrument, out.Err)
		}
	}()

	sample, err := l.prices.FetchPrice(ctx, instrument)
	if err != nil {
		out.Err = err
		if ctx.Err() != nil {
			out.Cancelled = true
			return out
		}
		l.emitError(instrument, err)
		return out
	}
	out.Sample = sample

	window := l.window(instrument)
	window.Append(sample)
	prices := window.Prices()
	snap := signal.Snapshot{
		RSI: indicator.RSI(prices, l.params.RSIPeriod),
		EMA: indicator.EMA(prices, l.params.EMAPeriod),
	}
	out.Snapshot = snap
	l.emit(notify.Event{
		Kind:       notify.KindSnapshot,
		Instrument: instrument,
		Message:    fmt.Sprintf("%s | Price: %.5f | RSI: %.2f | EMA: %.5f", instrument, sample.Price, snap.RSI, snap.EMA),
		Fields:     map[string]float64{"price": sample.Price, "rsi": snap.RSI, "ema": snap.EMA},
	})

	decision := l.strat.Decide(sample.Price, snap)
	out.Decision = decision
	if !decision.Actionable() {
		return out
	}
	if notional := risk.Notional(decision.Units, sample.Price); !l.params.Limits.Allow(notional) {
		out.Err = fmt.Errorf("%w: %.2f > %.2f", ErrNotionalExceeded, notional, l.params.Limits.MaxNotionalPerTrade)
		l.emitError(instrument, out.Err)
		return out
	}

	// The order and its event form one step: a stop request arriving now
	// takes effect after both.
	actCtx := context.WithoutCancel(ctx)
	id, err := l.orders.PlaceOrder(actCtx, instrument, decision.Units, decision.StopLoss, decision.TakeProfit)
	if err != nil {
		out.Err = err
		l.emitError(instrument, err)
		return out
	}
	out.OrderID = id
	fields := map[string]float64{"units": float64(decision.Units), "price": sample.Price}
	if decision.StopLoss.IsSome() && decision.TakeProfit.IsSome() {
		fields["stop_loss"] = decision.StopLoss.Unwrap()
		fields["take_profit"] = decision.TakeProfit.Unwrap()
	}
	l.emit(notify.Event{
		Kind:       notify.KindOrderPlaced,
		Instrument: instrument,
		Message:    fmt.Sprintf("%s order placed: %s", orderVerb(decision.Action), id),
		Fields:     fields,
	})
	return out
}

func (l *Loop) window(instrument string) *series.Window {
	w, ok := l.windows[instrument]
	if !ok {
		w = series.NewWindow(l.params.BufferCap)
		l.windows[instrument] = w
	}
	return w
}

func (l *Loop) emitError(instrument string, err error) {
	l.emit(notify.Event{
		Kind:       notify.KindError,
		Instrument: instrument,
		Message:    fmt.Sprintf("%s trade error: %v", instrument, err),
	})
}

// emit logs every event and forwards it to the sink unless it repeats the last message.
func (l *Loop) emit(e notify.Event) {
	e.Time = l.now().UTC()
	e.SessionID = l.id

	evt := l.log.Info()
	if e.Kind == notify.KindError {
		evt = l.log.Error()
	}
	evt = evt.Str("kind", string(e.Kind))
	if e.Instrument != "" {
		evt = evt.Str("instrument", e.Instrument)
	}
	for k, v := range e.Fields {
		evt = evt.Float64(k, v)
	}
	evt.Msg(e.Message)

	l.sink.Forward(e)
}

func orderVerb(a signal.Action) string {
	if a == signal.Sell {
		return "Sell"
	}
	return "Buy"
}
