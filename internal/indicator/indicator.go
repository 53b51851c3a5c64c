// Package indicator computes RSI and EMA over plain price sequences.
//
// Both functions are total: short inputs fall back to a neutral value
// instead of failing.
package indicator

import (
	"math"

	"github.com/shopspring/decimal"
)

// NeutralRSI is returned when there are not enough prices for a reading.
const NeutralRSI = 50.0

// RSI returns the relative strength index over the last period price changes,
// rounded to 2 decimals. It needs at least period+1 prices.
func RSI(prices []float64, period int) float64 {
	if period < 1 || len(prices) < period+1 {
		return NeutralRSI
	}

	var gainSum, lossSum float64
	for i := len(prices) - period; i < len(prices); i++ {
		delta := prices[i] - prices[i-1]
		if delta > 0 {
			gainSum += delta
		} else {
			lossSum -= delta
		}
	}
	avgGain := gainSum / float64(period)
	avgLoss := lossSum / float64(period)
	if avgLoss == 0 {
		return 100
	}
	rs := avgGain / avgLoss
	return Round(100-100/(1+rs), 2)
}

// EMA returns an exponentially weighted average of the last period prices,
// rounded to 5 decimals. Weights grow as exp(x) for x spaced evenly over [-1, 0],
// so the newest price weighs the most. With fewer than period prices it returns
// the plain mean of what is available.
func EMA(prices []float64, period int) float64 {
	if len(prices) == 0 {
		return 0
	}
	if period < 1 || len(prices) < period {
		return Round(mean(prices), 5)
	}

	weights := expWeights(period)
	window := prices[len(prices)-period:]
	var sum float64
	for i, p := range window {
		sum += p * weights[i]
	}
	return Round(sum, 5)
}

// Round rounds v half away from zero to the given number of decimal places.
func Round(v float64, places int32) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	return decimal.NewFromFloat(v).Round(places).InexactFloat64()
}

func expWeights(period int) []float64 {
	weights := make([]float64, period)
	var total float64
	for i := range weights {
		x := -1.0
		if period > 1 {
			x += float64(i) / float64(period-1)
		}
		weights[i] = math.Exp(x)
		total += weights[i]
	}
	for i := range weights {
		weights[i] /= total
	}
	return weights
}

func mean(prices []float64) float64 {
	var sum float64
	for _, p := range prices {
		sum += p
	}
	return sum / float64(len(prices))
}
