package strategy

import (
	"strings"

	sig "autogecko-go/internal/signal"
)

// Strategy maps the latest price and indicator snapshot to a trade decision.
type Strategy interface {
	Decide(price float64, snap sig.Snapshot) sig.Decision
	Name() string
}

// Params expresses tunable knobs required by strategy constructors.
type Params struct {
	Units            int64
	RSIBuyThreshold  float64
	RSISellThreshold float64
	StopLossPct      float64
	TakeProfitPct    float64
}

// ModeRSIEMA names the RSI/EMA threshold rule.
const ModeRSIEMA = "rsi_ema"

// Build returns a strategy implementation matching the configured mode.
func Build(mode string, params Params) Strategy {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "", ModeRSIEMA, "rsi-ema", "rsiema":
		return NewRSIEMA(params)
	default:
		return NewRSIEMA(params)
	}
}
