package exchange

import "fmt"

// Broker operation names carried by Failure.Op and the broker metrics.
const (
	OpFetchPrice = "fetch_price"
	OpPlaceOrder = "place_order"
)

// Failure is the single error type returned by the broker client. Transport
// errors, bad statuses, undecodable bodies and wrong response shapes all end here.
type Failure struct {
	Op         string
	Instrument string
	Reason     string
	Attempts   int
	Raw        string // response body excerpt, if any
	Err        error
}

func (f *Failure) Error() string {
	msg := fmt.Sprintf("%s %s: %s", f.Op, f.Instrument, f.Reason)
	if f.Attempts > 1 {
		msg = fmt.Sprintf("%s (after %d attempts)", msg, f.Attempts)
	}
	return msg
}

func (f *Failure) Unwrap() error { return f.Err }
