package scheduler

import "github.com/prometheus/client_golang/prometheus"

// Metrics are the collectors of this package.
var Metrics = []prometheus.Collector{jobRuns}

var jobRuns = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "scheduler_job_runs_total",
		Help: "How many scheduled jobs ran, partitioned by job and result.",
	},
	[]string{"job", "result"},
)
