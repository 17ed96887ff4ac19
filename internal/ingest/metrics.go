package ingest

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	metricsOnce sync.Once

	reportsTotal    *prometheus.CounterVec
	incidentsTotal  *prometheus.CounterVec
	alertsTotal     *prometheus.CounterVec
	persistFailures prometheus.Counter
)

// initMetrics registers the ingestion collectors once per process. Collectors already
// registered by an earlier instance are reused.
func initMetrics() {
	metricsOnce.Do(func() {
		reportsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "downtime",
			Subsystem: "ingest",
			Name:      "reports_total",
			Help:      "Number of ingested report files by outcome",
		}, []string{"outcome"})

		incidentsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "downtime",
			Subsystem: "ingest",
			Name:      "incidents_total",
			Help:      "Number of incidents extracted from reports",
		}, []string{"source"})

		alertsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "downtime",
			Subsystem: "ingest",
			Name:      "critical_alerts_total",
			Help:      "Critical downtime alerts handed to the push workers",
		}, []string{"queued"})

		persistFailures = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "downtime",
			Subsystem: "ingest",
			Name:      "persist_failures_total",
			Help:      "Number of extraction results the store failed to write",
		})

		reportsTotal = registerCounterVec(reportsTotal)
		incidentsTotal = registerCounterVec(incidentsTotal)
		alertsTotal = registerCounterVec(alertsTotal)
		if err := prometheus.Register(persistFailures); err != nil {
			if already, ok := err.(prometheus.AlreadyRegisteredError); ok {
				if existing, ok := already.ExistingCollector.(prometheus.Counter); ok {
					persistFailures = existing
				}
			}
		}
	})
}

func registerCounterVec(c *prometheus.CounterVec) *prometheus.CounterVec {
	if err := prometheus.Register(c); err != nil {
		if already, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := already.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing
			}
		}
	}
	return c
}
