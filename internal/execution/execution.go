// Package execution handles order submission on behalf of the session loop.
package execution

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/moznion/go-optional"
	"github.com/rs/zerolog"

	"autogecko-go/internal/metrics"
)

// Side enumerates order directions used by the executor.
type Side string

const (
	// Buy indicates a long order.
	Buy Side = "BUY"
	// Sell indicates a short order.
	Sell Side = "SELL"
)

// SideOf maps signed units to a side.
func SideOf(units int64) Side {
	if units < 0 {
		return Sell
	}
	return Buy
}

// Gateway places market orders at the broker.
type Gateway interface {
	PlaceOrder(ctx context.Context, instrument string, units int64, stopLoss, takeProfit optional.Option[float64]) (string, error)
}

// ErrNoGateway is returned by a live executor built without a gateway.
var ErrNoGateway = errors.New("execution: no order gateway configured")

// Executor forwards orders to a gateway, or only logs them in dry-run mode.
type Executor struct {
	gateway Gateway
	log     zerolog.Logger
	dryRun  bool
	newID   func() string
}

// Option configures an Executor.
type Option func(*Executor)

// WithDryRun logs orders and returns synthetic ids instead of calling the gateway.
func WithDryRun(enabled bool) Option {
	return func(e *Executor) { e.dryRun = enabled }
}

// NewExecutor wraps gateway with logging and order metrics.
func NewExecutor(gateway Gateway, log zerolog.Logger, opts ...Option) *Executor {
	e := &Executor{gateway: gateway, log: log, newID: uuid.NewString}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// DryRun reports whether orders are only simulated.
func (e *Executor) DryRun() bool { return e.dryRun }

// PlaceOrder submits the order and returns the broker's fill id.
func (e *Executor) PlaceOrder(ctx context.Context, instrument string, units int64, stopLoss, takeProfit optional.Option[float64]) (string, error) {
	side := SideOf(units)
	evt := e.log.Info().Str("instrument", instrument).Str("side", string(side)).Int64("units", units)
	if stopLoss.IsSome() && takeProfit.IsSome() {
		evt = evt.Float64("stop_loss", stopLoss.Unwrap()).Float64("take_profit", takeProfit.Unwrap())
	}

	if e.dryRun {
		id := "dry-" + e.newID()
		metrics.OrdersTotal.WithLabelValues(instrument, string(side)).Inc()
		evt.Str("order_id", id).Msg("submit order (dry run)")
		return id, nil
	}
	if e.gateway == nil {
		return "", ErrNoGateway
	}

	id, err := e.gateway.PlaceOrder(ctx, instrument, units, stopLoss, takeProfit)
	if err != nil {
		e.log.Error().Err(err).Str("instrument", instrument).Str("side", string(side)).Msg("order rejected")
		return "", err
	}
	metrics.OrdersTotal.WithLabelValues(instrument, string(side)).Inc()
	evt.Str("order_id", id).Msg("order filled")
	return id, nil
}
