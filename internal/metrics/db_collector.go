package metrics

import "github.com/prometheus/client_golang/prometheus"

// PoolStats is a point-in-time view of a connection pool.
type PoolStats struct {
	Total    int32
	Idle     int32
	Acquired int32
	Max      int32
}

// DBPoolStatFunc returns database pool statistics without importing pgxpool.
type DBPoolStatFunc func() PoolStats

// dbPoolCollector exposes pool gauges, sampled on every scrape.
type dbPoolCollector struct {
	statFunc DBPoolStatFunc

	totalDesc    *prometheus.Desc
	idleDesc     *prometheus.Desc
	acquiredDesc *prometheus.Desc
	maxDesc      *prometheus.Desc
}

// NewDBPoolCollector creates a collector backed by statFunc.
func NewDBPoolCollector(statFunc DBPoolStatFunc) prometheus.Collector {
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc("planner_db_pool_"+name, help, nil, nil)
	}
	return &dbPoolCollector{
		statFunc:     statFunc,
		totalDesc:    desc("total_conns", "Total number of connections in the DB pool."),
		idleDesc:     desc("idle_conns", "Number of idle connections in the DB pool."),
		acquiredDesc: desc("acquired_conns", "Number of acquired connections in the DB pool."),
		maxDesc:      desc("max_conns", "Maximum size of the DB pool."),
	}
}

func (c *dbPoolCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.totalDesc
	ch <- c.idleDesc
	ch <- c.acquiredDesc
	ch <- c.maxDesc
}

func (c *dbPoolCollector) Collect(ch chan<- prometheus.Metric) {
	s := c.statFunc()
	for _, g := range []struct {
		desc  *prometheus.Desc
		value int32
	}{
		{c.totalDesc, s.Total},
		{c.idleDesc, s.Idle},
		{c.acquiredDesc, s.Acquired},
		{c.maxDesc, s.Max},
	} {
		ch <- prometheus.MustNewConstMetric(g.desc, prometheus.GaugeValue, float64(g.value))
	}
}
