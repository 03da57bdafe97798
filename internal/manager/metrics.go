package manager

import "github.com/prometheus/client_golang/prometheus"

var (
	modelLoaded = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "captiond",
		Name:      "model_loaded",
		Help:      "1 when the captioning model is resident in memory",
	})

	modelLoadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "captiond",
			Name:      "model_loads_total",
			Help:      "Model load attempts by result",
		},
		[]string{"result"},
	)

	modelUnloadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "captiond",
			Name:      "model_unloads_total",
			Help:      "Model unloads by reason (manual, idle, shutdown)",
		},
		[]string{"reason"},
	)

	generationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "captiond",
			Name:      "generations_total",
			Help:      "Caption generations by result",
		},
		[]string{"result"},
	)

	generationDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "captiond",
		Name:      "generation_duration_seconds",
		Help:      "Time spent inside the runtime per caption",
		Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
	})
)

func init() {
	prometheus.MustRegister(modelLoaded, modelLoadsTotal, modelUnloadsTotal, generationsTotal, generationDuration)
}
