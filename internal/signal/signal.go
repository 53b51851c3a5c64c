// Package signal standardizes payloads shared between price ingestion, strategy, and execution layers.
package signal

import (
	"time"

	"github.com/moznion/go-optional"
)

// Sample is one mid-price observation for an instrument.
type Sample struct {
	Instrument string
	Price      float64 // mid-price, 5 decimals
	Ts         time.Time
}

// Snapshot holds indicator values computed from a price window.
type Snapshot struct {
	RSI float64
	EMA float64
}

// Action is the outcome of the decision rule.
type Action int

const (
	Hold Action = iota
	Buy
	Sell
)

func (a Action) String() string {
	switch a {
	case Buy:
		return "BUY"
	case Sell:
		return "SELL"
	default:
		return "HOLD"
	}
}

// Decision expresses what to do with an instrument on this tick.
type Decision struct {
	Action     Action
	Units      int64 // positive buy, negative sell, zero for hold
	StopLoss   optional.Option[float64]
	TakeProfit optional.Option[float64]
}

// HoldDecision returns a decision that places no order.
func HoldDecision() Decision {
	return Decision{
		Action:     Hold,
		StopLoss:   optional.None[float64](),
		TakeProfit: optional.None[float64](),
	}
}

// Actionable reports whether the decision requires an order.
func (d Decision) Actionable() bool {
	return d.Action != Hold && d.Units != 0
}
