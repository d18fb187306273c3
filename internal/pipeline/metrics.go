package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sift_pipeline_runs_total",
		Help: "Completed pipeline invocations by final status.",
	}, []string{"status"})

	stageItems = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sift_pipeline_stage_items_total",
		Help: "Items advanced per pipeline stage.",
	}, []string{"stage"})

	deliveryMessages = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sift_delivery_messages_total",
		Help: "Digest messages dispatched to recipients.",
	})

	deliveryFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sift_delivery_failures_total",
		Help: "Digest messages that failed for a recipient after retries.",
	})
)
