// Package metrics exposes pipeline counters for Prometheus scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ProcessesCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "trailfetch_processes_created_total",
		Help: "Jobs accepted through the API.",
	})

	ProcessesCompleted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trailfetch_processes_completed_total",
		Help: "Jobs that reached a terminal status, by status.",
	}, []string{"status"})

	ProcessesInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "trailfetch_processes_in_flight",
		Help: "Jobs currently being worked on.",
	})

	ServiceLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trailfetch_service_lookups_total",
		Help: "Adapter lookups, by service and outcome.",
	}, []string{"service", "outcome"})
)

// Handler returns the /metrics scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
