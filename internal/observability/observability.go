package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	PipelineRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "solar_pipeline_runs_total",
			Help: "Batch pipeline runs by outcome status.",
		},
		[]string{"status"},
	)
	RecordsProcessed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "solar_records_processed_total",
			Help: "Staging records that completed dual-write and mark-processed.",
		},
	)
	RecordFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "solar_record_failures_total",
			Help: "Records routed to the failure handler.",
		},
	)
	RealtimeMessages = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "solar_realtime_messages_total",
			Help: "Raw messages received on the streaming path.",
		},
	)
)

func init() {
	prometheus.MustRegister(PipelineRuns, RecordsProcessed, RecordFailures, RealtimeMessages)
}

// Handler serves the prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
