// Package strategy turns indicator snapshots into trade decisions.
package strategy

import (
	"github.com/moznion/go-optional"

	"autogecko-go/internal/indicator"
	"autogecko-go/internal/signal"
)

// RSIEMA buys oversold dips below the EMA and sells overbought spikes above it.
// It keeps no memory between calls, so a signal that persists across ticks
// produces an order on every tick.
type RSIEMA struct {
	params Params
}

// NewRSIEMA builds the rule. Negative percentages are clamped to zero.
func NewRSIEMA(params Params) *RSIEMA {
	if params.StopLossPct < 0 {
		params.StopLossPct = 0
	}
	if params.TakeProfitPct < 0 {
		params.TakeProfitPct = 0
	}
	return &RSIEMA{params: params}
}

// Name returns the configured identifier for logging.
func (r *RSIEMA) Name() string { return "RSIEMA" }

// Decide evaluates buy first, then sell, and holds otherwise.
func (r *RSIEMA) Decide(price float64, snap signal.Snapshot) signal.Decision {
	p := r.params
	switch {
	case snap.RSI < p.RSIBuyThreshold && price < snap.EMA:
		return signal.Decision{
			Action:     signal.Buy,
			Units:      p.Units,
			StopLoss:   optional.Some(indicator.Round(price*(1-p.StopLossPct), 5)),
			TakeProfit: optional.Some(indicator.Round(price*(1+p.TakeProfitPct), 5)),
		}
	case snap.RSI > p.RSISellThreshold && price > snap.EMA:
		return signal.Decision{
			Action:     signal.Sell,
			Units:      -p.Units,
			StopLoss:   optional.Some(indicator.Round(price*(1+p.StopLossPct), 5)),
			TakeProfit: optional.Some(indicator.Round(price*(1-p.TakeProfitPct), 5)),
		}
	default:
		return signal.HoldDecision()
	}
}
