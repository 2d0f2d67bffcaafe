package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Manager struct {
	// counters
	CounterRequests           *prometheus.CounterVec
	CounterHandleRequestPanic prometheus.Counter
	CounterRecordsInserted    *prometheus.CounterVec
	CounterRecordsEvicted     *prometheus.CounterVec
	CounterRecordsDeleted     *prometheus.CounterVec
	CounterMalformedData      *prometheus.CounterVec
	CounterExports            *prometheus.CounterVec
	CounterPlansGenerated     *prometheus.CounterVec

	// gauges
	GaugeRequests   prometheus.Gauge
	GaugeLifeSignal prometheus.Gauge

	// histograms
	HistogramRequestDuration *prometheus.HistogramVec
}

func NewTestManager() *Manager {
	return NewManager("gideon", "test_server", prometheus.NewRegistry())
}

func NewTestManagerAndRegistry() (*Manager, *prometheus.Registry) {
	reg := prometheus.NewRegistry()
	return NewManager("gideon", "test_server", reg), reg
}

func NewManager(namespace, subsystem string, reg prometheus.Registerer) *Manager {
	factory := promauto.With(reg)

	counterRequests := factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "request",
		Help:      "The total number of incoming requests",
	}, []string{"method", "status"})
	counterHandleRequestPanic := factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "handle_request_panic",
		Help:      "The total number of serve request panics",
	})
	counterRecordsInserted := factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "records_inserted",
		Help:      "The total number of records inserted per collection",
	}, []string{"collection"})
	counterRecordsEvicted := factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "records_evicted",
		Help:      "The total number of records evicted by the collection cap",
	}, []string{"collection"})
	counterRecordsDeleted := factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "records_deleted",
		Help:      "The total number of explicitly deleted records",
	}, []string{"collection"})
	counterMalformedData := factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "malformed_persisted_data",
		Help:      "Persisted values that failed to parse and were treated as empty",
	}, []string{"key"})
	counterExports := factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "exports",
		Help:      "The total number of produced snapshots",
	}, []string{"kind"})
	counterPlansGenerated := factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "plans_generated",
		Help:      "Plans returned by the plan generation service",
	}, []string{"kind", "cached"})

	gaugeRequests := factory.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "current_requests",
		Help:      "Current number of requests served",
	})
	gaugeLifeSignal := factory.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "life_signal",
		Help:      "Shows whether the service is alive",
	})

	histogramRequestDuration := factory.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "request_duration_seconds",
		Help:      "Histogram of response time for requests in seconds",
		Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
	}, []string{"route", "method", "status_code"})

	return &Manager{
		CounterRequests:           counterRequests,
		CounterHandleRequestPanic: counterHandleRequestPanic,
		CounterRecordsInserted:    counterRecordsInserted,
		CounterRecordsEvicted:     counterRecordsEvicted,
		CounterRecordsDeleted:     counterRecordsDeleted,
		CounterMalformedData:      counterMalformedData,
		CounterExports:            counterExports,
		CounterPlansGenerated:     counterPlansGenerated,
		GaugeRequests:             gaugeRequests,
		GaugeLifeSignal:           gaugeLifeSignal,
		HistogramRequestDuration:  histogramRequestDuration,
	}
}

// The helpers below are safe to call on a nil *Manager, so stores can run without metrics.

func (m *Manager) RecordInserted(collection string) {
	if m == nil {
		return
	}
	m.CounterRecordsInserted.WithLabelValues(collection).Inc()
}

func (m *Manager) RecordsEvicted(collection string, count int) {
	if m == nil || count <= 0 {
		return
	}
	m.CounterRecordsEvicted.WithLabelValues(collection).Add(float64(count))
}

func (m *Manager) RecordDeleted(collection string) {
	if m == nil {
		return
	}
	m.CounterRecordsDeleted.WithLabelValues(collection).Inc()
}

func (m *Manager) MalformedData(key string) {
	if m == nil {
		return
	}
	m.CounterMalformedData.WithLabelValues(key).Inc()
}

func (m *Manager) Exported(kind string) {
	if m == nil {
		return
	}
	m.CounterExports.WithLabelValues(kind).Inc()
}

func (m *Manager) PlanGenerated(kind string, cached bool) {
	if m == nil {
		return
	}
	cachedLabel := "false"
	if cached {
		cachedLabel = "true"
	}
	m.CounterPlansGenerated.WithLabelValues(kind, cachedLabel).Inc()
}
