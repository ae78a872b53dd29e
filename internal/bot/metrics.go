package bot

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

type routerMetrics struct {
	dispatchTotal *prometheus.CounterVec
	guardDenials  *prometheus.CounterVec
}

var (
	metricsOnce sync.Once
	metrics     routerMetrics
)

func initMetrics() routerMetrics {
	metricsOnce.Do(func() {
		metrics.dispatchTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tipline",
			Subsystem: "bot",
			Name:      "dispatch_total",
			Help:      "Count of dispatched chat messages",
		}, []string{"command", "outcome"})

		metrics.guardDenials = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tipline",
			Subsystem: "bot",
			Name:      "guard_denials_total",
			Help:      "Commands rejected before handler invocation",
		}, []string{"guard"})

		collectors := []prometheus.Collector{metrics.dispatchTotal, metrics.guardDenials}
		for _, collector := range collectors {
			if err := prometheus.Register(collector); err != nil {
				if already, ok := err.(prometheus.AlreadyRegisteredError); ok {
					if existing, ok := already.ExistingCollector.(*prometheus.CounterVec); ok {
						if collector == metrics.dispatchTotal {
							metrics.dispatchTotal = existing
						} else {
							metrics.guardDenials = existing
						}
					}
				}
			}
		}
	})
	return metrics
}

func (m routerMetrics) recordDispatch(command, outcome string) {
	if m.dispatchTotal != nil {
		m.dispatchTotal.With(prometheus.Labels{"command": command, "outcome": outcome}).Inc()
	}
}

func (m routerMetrics) recordGuardDenial(guard string) {
	if m.guardDenials != nil {
		m.guardDenials.With(prometheus.Labels{"guard": guard}).Inc()
	}
}
