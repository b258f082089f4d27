package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics is safe to use as a nil pointer; every method is then a no-op.
type Metrics struct {
	mutations    *prometheus.CounterVec
	checkouts    *prometheus.CounterVec
	gatewayCalls *prometheus.HistogramVec
	gatherer     prometheus.Gatherer
}

func New(reg *prometheus.Registry) *Metrics {
	mutations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "checkout_engine",
		Subsystem: "basket",
		Name:      "mutations_total",
		Help:      "Basket mutations by operation and result.",
	}, []string{"operation", "result"})

	checkouts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "checkout_engine",
		Subsystem: "checkout",
		Name:      "outcomes_total",
		Help:      "Payment outcomes by state and error code.",
	}, []string{"state", "code"})

	gatewayCalls := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "checkout_engine",
		Subsystem: "gateway",
		Name:      "call_duration_ms",
		Help:      "Backend gateway call latency in milliseconds.",
		Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
	}, []string{"operation", "result"})

	reg.MustRegister(mutations, checkouts, gatewayCalls)

	return &Metrics{
		mutations:    mutations,
		checkouts:    checkouts,
		gatewayCalls: gatewayCalls,
		gatherer:     reg,
	}
}

func (m *Metrics) ObserveMutation(operation string, success bool) {
	if m == nil {
		return
	}

	m.mutations.WithLabelValues(operation, result(success)).Inc()
}

func (m *Metrics) ObserveCheckout(state, code string) {
	if m == nil {
		return
	}

	m.checkouts.WithLabelValues(state, code).Inc()
}

func (m *Metrics) ObserveGatewayCall(operation string, started time.Time, err error) {
	if m == nil {
		return
	}

	elapsed := float64(time.Since(started).Microseconds()) / 1000
	m.gatewayCalls.WithLabelValues(operation, result(err == nil)).Observe(elapsed)
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}

	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

func result(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}
