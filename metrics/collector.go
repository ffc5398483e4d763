// Package metrics exposes parfor scheduler state to Prometheus.
//
// [Collector] reads [parfor.Scheduler.Stats] at scrape time. [Observer]
// records bundle and run events as histograms; register its Observe method
// with [parfor.WithOnEvent].
package metrics

import (
	"github.com/baxromumarov/parfor"
	"github.com/prometheus/client_golang/prometheus"
)

// StatsSource is implemented by [*parfor.Scheduler].
type StatsSource interface {
	Stats() parfor.Stats
}

// Collector is a prometheus.Collector over a scheduler's stats snapshot.
type Collector struct {
	src StatsSource

	workers    *prometheus.Desc
	created    *prometheus.Desc
	target     *prometheus.Desc
	runs       *prometheus.Desc
	runsDone   *prometheus.Desc
	dispatched *prometheus.Desc
	processed  *prometheus.Desc
	idleQueues *prometheus.Desc
}

var _ prometheus.Collector = (*Collector)(nil)

// NewCollector returns a collector reading src on every scrape. Metric names
// are prefixed with namespace.
func NewCollector(src StatsSource, namespace string) *Collector {
	desc := func(name, help string, labels ...string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, "", name), help, labels, nil)
	}
	return &Collector{
		src:        src,
		workers:    desc("workers", "Workers by pool membership.", "state"),
		created:    desc("workers_created", "Workers created since the scheduler started."),
		target:     desc("workers_target", "Target thread count of the scheduler."),
		runs:       desc("runs_active", "Runs currently in flight."),
		runsDone:   desc("runs_completed_total", "Runs completed."),
		dispatched: desc("bundles_dispatched_total", "Bundles handed to workers."),
		processed:  desc("items_processed_total", "Items whose bundle finished."),
		idleQueues: desc("reply_queues_idle", "Reply queues cached for reuse."),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.workers
	ch <- c.created
	ch <- c.target
	ch <- c.runs
	ch <- c.runsDone
	ch <- c.dispatched
	ch <- c.processed
	ch <- c.idleQueues
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	st := c.src.Stats()

	ch <- prometheus.MustNewConstMetric(c.workers, prometheus.GaugeValue, float64(st.Active), "active")
	ch <- prometheus.MustNewConstMetric(c.workers, prometheus.GaugeValue, float64(st.Ready), "ready")
	ch <- prometheus.MustNewConstMetric(c.workers, prometheus.GaugeValue, float64(st.Reserve), "reserve")
	ch <- prometheus.MustNewConstMetric(c.created, prometheus.GaugeValue, float64(st.Created))
	ch <- prometheus.MustNewConstMetric(c.target, prometheus.GaugeValue, float64(st.Workers))
	ch <- prometheus.MustNewConstMetric(c.runs, prometheus.GaugeValue, float64(st.Runs))
	ch <- prometheus.MustNewConstMetric(c.runsDone, prometheus.CounterValue, float64(st.RunsCompleted))
	ch <- prometheus.MustNewConstMetric(c.dispatched, prometheus.CounterValue, float64(st.BundlesDispatched))
	ch <- prometheus.MustNewConstMetric(c.processed, prometheus.CounterValue, float64(st.ItemsProcessed))
	ch <- prometheus.MustNewConstMetric(c.idleQueues, prometheus.GaugeValue, float64(st.IdleQueues))
}
