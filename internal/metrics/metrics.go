package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	PriceSamplesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "price_samples_total", Help: "Mid-price samples fetched from the broker"},
		[]string{"instrument"},
	)
	OrdersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "orders_total", Help: "Orders submitted"},
		[]string{"instrument", "side"},
	)
	BrokerFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "broker_failures_total", Help: "Broker calls that ended in a failure"},
		[]string{"op"},
	)
	BrokerRetriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "broker_retries_total", Help: "Broker attempts repeated after a transient error"},
		[]string{"op"},
	)
	SessionTicksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "session_ticks_total", Help: "Completed session loop ticks"},
	)
	// SessionState is 0 idle, 1 running, 2 ended.
	SessionState = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "session_state", Help: "Current session loop state"},
	)
)

func init() {
	prometheus.MustRegister(
		PriceSamplesTotal,
		OrdersTotal,
		BrokerFailuresTotal,
		BrokerRetriesTotal,
		SessionTicksTotal,
		SessionState,
	)
}

// Serve exposes /metrics on addr in the background.
func Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() { _ = srv.ListenAndServe() }()
	return srv
}
