package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

// SetupPrometheus returns a fresh registry holding the build info, Go runtime and process collectors.
func SetupPrometheus(extraCollectors ...prometheus.Collector) *prometheus.Registry {
	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(
		collectors.NewBuildInfoCollector(),
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	for _, c := range extraCollectors {
		promRegistry.MustRegister(c)
	}
	return promRegistry
}

// Handler serves the registry on /metrics. Scrape errors are logged, and the
// scrape request and error counters are registered in the same registry.
func Handler(promRegistry *prometheus.Registry) http.Handler {
	return promhttp.InstrumentMetricHandler(
		promRegistry,
		promhttp.HandlerFor(promRegistry, promhttp.HandlerOpts{
			ErrorLog:      log.StandardLogger(),
			ErrorHandling: promhttp.ContinueOnError,
			Registry:      promRegistry,
		}),
	)
}
