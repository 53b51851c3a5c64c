package session

import (
	"errors"
	"fmt"
	"time"

	"autogecko-go/internal/config"
	"autogecko-go/internal/risk"
	"autogecko-go/internal/series"
	"autogecko-go/internal/strategy"
)

// ErrInvalidParams is returned by Run when the parameters cannot start a session.
var ErrInvalidParams = errors.New("session: invalid parameters")

// Params is the immutable configuration of one session.
type Params struct {
	Instruments  []string
	PollInterval time.Duration
	Duration     time.Duration
	RSIPeriod    int
	EMAPeriod    int
	Mode         string
	Strategy     strategy.Params
	Limits       risk.Limits
	BufferCap    int
}

// ParamsFromConfig copies what the loop needs out of a resolved configuration.
func ParamsFromConfig(cfg *config.Config) Params {
	tr := cfg.Trading
	instruments := make([]string, len(tr.Pairs))
	copy(instruments, tr.Pairs)
	return Params{
		Instruments:  instruments,
		PollInterval: time.Duration(tr.TradeIntervalSecs) * time.Second,
		Duration:     time.Duration(tr.SessionDurationSecs) * time.Second,
		RSIPeriod:    tr.RSIPeriod,
		EMAPeriod:    tr.EMAPeriod,
		Mode:         tr.Strategy,
		Strategy: strategy.Params{
			Units:            tr.TradeAmountUnits,
			RSIBuyThreshold:  tr.RSIBuyThreshold,
			RSISellThreshold: tr.RSISellThreshold,
			StopLossPct:      tr.StopLossPercentage,
			TakeProfitPct:    tr.TakeProfitPercentage,
		},
		Limits:    risk.Limits{MaxNotionalPerTrade: cfg.Risk.MaxNotionalPerTrade},
		BufferCap: series.DefaultCapacity,
	}
}

// Validate reports the first parameter that prevents a session from starting.
func (p Params) Validate() error {
	switch {
	case len(p.Instruments) == 0:
		return fmt.Errorf("%w: no instruments", ErrInvalidParams)
	case p.Strategy.Units <= 0:
		return fmt.Errorf("%w: trade units must be positive", ErrInvalidParams)
	case p.PollInterval <= 0:
		return fmt.Errorf("%w: poll interval must be positive", ErrInvalidParams)
	case p.Duration < 0:
		return fmt.Errorf("%w: session duration is negative", ErrInvalidParams)
	case p.RSIPeriod < 2:
		return fmt.Errorf("%w: rsi period must be at least 2", ErrInvalidParams)
	case p.EMAPeriod < 1:
		return fmt.Errorf("%w: ema period must be at least 1", ErrInvalidParams)
	}
	for _, inst := range p.Instruments {
		if inst == "" {
			return fmt.Errorf("%w: empty instrument name", ErrInvalidParams)
		}
	}
	return nil
}
