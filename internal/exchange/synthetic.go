package exchange

import (
	"context"
	"math"
	"sync"
	"time"

	"autogecko-go/internal/indicator"
	"autogecko-go/internal/metrics"
	"autogecko-go/internal/signal"
)

// Synthetic emits deterministic prices (useful for tests/offline work).
// Each instrument follows its own sine wave around base, so RSI and EMA swing
// through both thresholds within a few dozen samples.
type Synthetic struct {
	base      float64
	amplitude float64
	step      float64
	now       func() time.Time

	mu    sync.Mutex
	calls map[string]int
}

// NewSynthetic returns a source oscillating around base.
func NewSynthetic(base float64) *Synthetic {
	if base <= 0 {
		base = 1
	}
	return &Synthetic{
		base:      base,
		amplitude: 0.002,
		step:      0.35,
		now:       time.Now,
		calls:     make(map[string]int),
	}
}

// FetchPrice returns the next price for instrument.
func (s *Synthetic) FetchPrice(ctx context.Context, instrument string) (signal.Sample, error) {
	if err := ctx.Err(); err != nil {
		return signal.Sample{}, err
	}
	s.mu.Lock()
	n := s.calls[instrument]
	s.calls[instrument] = n + 1
	s.mu.Unlock()

	phase := float64(len(instrument) % 7)
	px := indicator.Round(s.base*(1+s.amplitude*math.Sin(phase+float64(n)*s.step)), 5)
	metrics.PriceSamplesTotal.WithLabelValues(instrument).Inc()
	return signal.Sample{Instrument: instrument, Price: px, Ts: s.now().UTC()}, nil
}
