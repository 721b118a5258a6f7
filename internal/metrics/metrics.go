package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"route", "method", "status"},
	)

	SpendsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "spends_total",
			Help: "Total committed spends",
		},
		[]string{"kind"},
	)
	SpendsDenied = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "spends_denied_total",
			Help: "Spends denied by balance or budget checks",
		},
		[]string{"stage", "reason"}, // precheck|postcheck
	)
	CoinsSpent = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "coins_spent_total",
			Help: "Total coins charged for committed spends",
		},
	)
	UpstreamErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "upstream_errors_total",
			Help: "Upstream generation calls that failed",
		},
	)
	DepositsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "deposits_total",
			Help: "Total confirmed deposits",
		},
	)
)

var Handler = promhttp.Handler

func Init() {
	prometheus.MustRegister(RequestsTotal)
	prometheus.MustRegister(SpendsTotal)
	prometheus.MustRegister(SpendsDenied)
	prometheus.MustRegister(CoinsSpent)
	prometheus.MustRegister(UpstreamErrors)
	prometheus.MustRegister(DepositsTotal)
}
