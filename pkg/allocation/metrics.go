package allocation

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics are the collectors of this package. They are registered by the router.
var Metrics = []prometheus.Collector{
	operationCount,
	allocatedUnits,
}

var operationCount = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "allocation_operations_total",
		Help: "How many allocation operations ran, partitioned by operation and result.",
	},
	[]string{"operation", "result"},
)

var allocatedUnits = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "allocation_units_allocated",
		Help: "Units allocated by the most recent calculation.",
	},
)

func observe(operation string, err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	operationCount.WithLabelValues(operation, result).Inc()
}
