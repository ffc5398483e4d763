package metrics

import (
	"github.com/baxromumarov/parfor"
	"github.com/prometheus/client_golang/prometheus"
)

// Observer turns scheduler events into histograms and counters.
type Observer struct {
	bundleSize    *prometheus.HistogramVec
	bundleSeconds *prometheus.HistogramVec
	bundleCPU     *prometheus.HistogramVec
	runSeconds    *prometheus.HistogramVec
	corrections   prometheus.Counter
	itemErrors    *prometheus.CounterVec
}

var _ prometheus.Collector = (*Observer)(nil)

// NewObserver creates an unregistered observer. Register it with a
// prometheus.Registerer and pass Observe to parfor.WithOnEvent.
func NewObserver(namespace string) *Observer {
	kind := []string{"collection"}
	return &Observer{
		bundleSize: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "bundle_items",
			Help:      "Items per finished bundle.",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 10),
		}, kind),
		bundleSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "bundle_duration_seconds",
			Help:      "Wall time per finished bundle, after clock correction.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 14),
		}, kind),
		bundleCPU: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "bundle_cpu_seconds",
			Help:      "Thread CPU time per finished bundle.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 14),
		}, kind),
		runSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_work_seconds",
			Help:      "Summed bundle wall time per completed run.",
			Buckets:   prometheus.DefBuckets,
		}, kind),
		corrections: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "clock_corrections_total",
			Help:      "Bundle durations replaced because the clock reading was implausible.",
		}),
		itemErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "item_errors_total",
			Help:      "Failed items of completed runs, including dropped errors.",
		}, kind),
	}
}

// Observe records e. It is safe to use as a parfor.WithOnEvent hook.
func (o *Observer) Observe(e parfor.Event) {
	kind := e.Run.Kind.String()

	switch e.Kind {
	case parfor.EventBundleDone:
		o.bundleSize.WithLabelValues(kind).Observe(float64(e.Size))
		o.bundleSeconds.WithLabelValues(kind).Observe(e.Elapsed.Seconds())
		o.bundleCPU.WithLabelValues(kind).Observe(e.CPU.Seconds())
	case parfor.EventRunDone:
		o.runSeconds.WithLabelValues(kind).Observe(e.Run.RunTime.Seconds())
		if n := e.Run.Errors + e.Run.DroppedErrors; n > 0 {
			o.itemErrors.WithLabelValues(kind).Add(float64(n))
		}
	case parfor.EventClockCorrected:
		o.corrections.Inc()
	}
}

// Describe implements prometheus.Collector.
func (o *Observer) Describe(ch chan<- *prometheus.Desc) {
	o.bundleSize.Describe(ch)
	o.bundleSeconds.Describe(ch)
	o.bundleCPU.Describe(ch)
	o.runSeconds.Describe(ch)
	o.corrections.Describe(ch)
	o.itemErrors.Describe(ch)
}

// Collect implements prometheus.Collector.
func (o *Observer) Collect(ch chan<- prometheus.Metric) {
	o.bundleSize.Collect(ch)
	o.bundleSeconds.Collect(ch)
	o.bundleCPU.Collect(ch)
	o.runSeconds.Collect(ch)
	o.corrections.Collect(ch)
	o.itemErrors.Collect(ch)
}
