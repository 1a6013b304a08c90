package metrics

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
)

// DBPoolCollector exports pgx pool statistics on every scrape.
type DBPoolCollector struct {
	pool *pgxpool.Pool

	connections *prometheus.Desc
	acquires    *prometheus.Desc
	waitSeconds *prometheus.Desc
}

// NewDBPoolCollector creates a collector for pool. Register it with
// prometheus.Register and unregister it when the pool is closed.
func NewDBPoolCollector(pool *pgxpool.Pool) *DBPoolCollector {
	return &DBPoolCollector{
		pool: pool,
		connections: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "db", "pool_connections"),
			"Number of database connections by state",
			[]string{"state"}, nil,
		),
		acquires: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "db", "pool_acquires_total"),
			"Connection acquisitions by outcome",
			[]string{"outcome"}, nil,
		),
		waitSeconds: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "db", "pool_acquire_wait_seconds_total"),
			"Total time spent waiting for a connection",
			nil, nil,
		),
	}
}

// Describe implements prometheus.Collector.
func (c *DBPoolCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.connections
	ch <- c.acquires
	ch <- c.waitSeconds
}

// Collect implements prometheus.Collector.
func (c *DBPoolCollector) Collect(ch chan<- prometheus.Metric) {
	stats := c.pool.Stat()

	ch <- prometheus.MustNewConstMetric(c.connections, prometheus.GaugeValue, float64(stats.AcquiredConns()), "in_use")
	ch <- prometheus.MustNewConstMetric(c.connections, prometheus.GaugeValue, float64(stats.IdleConns()), "idle")
	ch <- prometheus.MustNewConstMetric(c.connections, prometheus.GaugeValue, float64(stats.MaxConns()), "max")
	ch <- prometheus.MustNewConstMetric(c.acquires, prometheus.CounterValue, float64(stats.AcquireCount()), "acquired")
	ch <- prometheus.MustNewConstMetric(c.acquires, prometheus.CounterValue, float64(stats.CanceledAcquireCount()), "canceled")
	ch <- prometheus.MustNewConstMetric(c.acquires, prometheus.CounterValue, float64(stats.EmptyAcquireCount()), "waited")
	ch <- prometheus.MustNewConstMetric(c.waitSeconds, prometheus.CounterValue, stats.AcquireDuration().Seconds())
}
