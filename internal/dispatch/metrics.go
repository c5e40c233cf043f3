package dispatch

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/linnemanlabs/recoup/internal/account"
)

// Metrics holds Prometheus metrics for notification dispatch.
type Metrics struct {
	TriggersTotal    *prometheus.CounterVec
	DeliveriesTotal  *prometheus.CounterVec
	DeliveryDuration *prometheus.HistogramVec
}

// NewMetrics registers and returns dispatch metrics on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		TriggersTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "recoup_triggers_total",
			Help: "Total account triggers by outcome.",
		}, []string{"outcome"}),
		DeliveriesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "recoup_deliveries_total",
			Help: "Total notification deliveries by outcome.",
		}, []string{"outcome"}),
		DeliveryDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "recoup_delivery_duration_seconds",
			Help:    "Duration of notification sends in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10), // 50ms .. ~25s
		}, []string{"outcome"}),
	}

	reg.MustRegister(
		m.TriggersTotal,
		m.DeliveriesTotal,
		m.DeliveryDuration,
	)

	return m
}

// Hooks returns dispatcher Hooks that update the corresponding metrics.
func (m *Metrics) Hooks() Hooks {
	return Hooks{
		OnTrigger: func(outcome string) {
			m.TriggersTotal.WithLabelValues(outcome).Inc()
		},
		OnDelivered: func(_ string, duration float64) {
			m.DeliveriesTotal.WithLabelValues("success").Inc()
			m.DeliveryDuration.WithLabelValues("success").Observe(duration)
		},
		OnFailed: func(_ *DeliveryError, duration float64) {
			m.DeliveriesTotal.WithLabelValues("error").Inc()
			m.DeliveryDuration.WithLabelValues("error").Observe(duration)
		},
	}
}

// RegisterStateGauges exposes in-flight sends and per-status account counts.
func RegisterStateGauges(reg prometheus.Registerer, inFlight func() int64, counts func() map[account.Status]int) {
	reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "recoup_deliveries_in_flight",
		Help: "Notification sends currently running.",
	}, func() float64 {
		return float64(inFlight())
	}))

	for _, st := range []account.Status{account.StatusUncontacted, account.StatusTriggered} {
		reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name:        "recoup_accounts",
			Help:        "Accounts currently held, by status.",
			ConstLabels: prometheus.Labels{"status": string(st)},
		}, func() float64 {
			return float64(counts()[st])
		}))
	}
}
