package risk

import "math"

// Limits caps the notional of a single order. Zero or negative disables the cap.
type Limits struct {
	MaxNotionalPerTrade float64
}

// Notional returns |units| * price.
func Notional(units int64, price float64) float64 {
	return math.Abs(float64(units) * price)
}

func (l Limits) Allow(notional float64) bool {
	if l.MaxNotionalPerTrade <= 0 {
		return true
	}
	return notional <= l.MaxNotionalPerTrade
}
