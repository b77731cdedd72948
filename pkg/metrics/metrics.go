package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	SignalsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "metamorph_signals_total", Help: "Feed messages by parse result"},
		[]string{"result"},
	)
	TradesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "metamorph_trades_total", Help: "Finished trades by terminal state"},
		[]string{"symbol", "state"},
	)
	BracketsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "metamorph_brackets_total", Help: "Bracket orders by result"},
		[]string{"symbol", "result"},
	)
	InvestedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "metamorph_invested_quote_total", Help: "Quote amount spent on filled buys"},
		[]string{"symbol"},
	)
)

func init() {
	prometheus.MustRegister(SignalsTotal, TradesTotal, BracketsTotal, InvestedTotal)
}

// Server returns an http server exposing /metrics on addr.
func Server(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return &http.Server{Addr: addr, Handler: mux}
}
