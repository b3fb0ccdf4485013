package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var engineLoad = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Namespace: "videomixer",
	Subsystem: "engine",
	Name:      "load",
	Help:      "2D blit engine core load percentage",
}, []string{"core"})

// SetEngineLoad sets the load percentage of a blit engine core.
func SetEngineLoad(core string, load float64) {
	engineLoad.WithLabelValues(core).Set(load)
}

// DeleteEngineMetrics removes all metrics for a core.
func DeleteEngineMetrics(core string) {
	engineLoad.DeleteLabelValues(core)
}
