package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autogecko-go/internal/config"
	"autogecko-go/internal/series"
)

func TestParamsFromConfig(t *testing.T) {
	cfg := config.Defaults()
	cfg.Trading.Pairs = []string{"EUR_USD", "USD_JPY"}
	cfg.Risk.MaxNotionalPerTrade = 5000

	p := ParamsFromConfig(cfg)
	require.NoError(t, p.Validate())
	assert.Equal(t, []string{"EUR_USD", "USD_JPY"}, p.Instruments)
	assert.Equal(t, 30*time.Second, p.PollInterval)
	assert.Equal(t, time.Hour, p.Duration)
	assert.Equal(t, 14, p.RSIPeriod)
	assert.Equal(t, 20, p.EMAPeriod)
	assert.Equal(t, int64(1000), p.Strategy.Units)
	assert.Equal(t, 0.03, p.Strategy.TakeProfitPct)
	assert.Equal(t, 5000.0, p.Limits.MaxNotionalPerTrade)
	assert.Equal(t, series.DefaultCapacity, p.BufferCap)

	// the params own their instrument slice
	cfg.Trading.Pairs[0] = "GBP_USD"
	assert.Equal(t, "EUR_USD", p.Instruments[0])
}

func TestParamsValidate(t *testing.T) {
	base := testParams("EUR_USD")
	require.NoError(t, base.Validate())

	cases := map[string]func(*Params){
		"no instruments":   func(p *Params) { p.Instruments = nil },
		"empty instrument": func(p *Params) { p.Instruments = []string{""} },
		"zero units":       func(p *Params) { p.Strategy.Units = 0 },
		"zero interval":    func(p *Params) { p.PollInterval = 0 },
		"negative length":  func(p *Params) { p.Duration = -time.Second },
		"rsi period":       func(p *Params) { p.RSIPeriod = 1 },
		"ema period":       func(p *Params) { p.EMAPeriod = 0 },
	}
	for name, mutate := range cases {
		p := testParams("EUR_USD")
		mutate(&p)
		assert.ErrorIs(t, p.Validate(), ErrInvalidParams, name)
	}
}
