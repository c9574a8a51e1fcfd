// Package metrics counts codec work in a Prometheus registry and writes it
// out in the node-exporter textfile format.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/wippyai/tbl/codec"
)

const (
	namespace = "tbl"
	subsystem = "codec"
)

// Collector implements codec.Observer over its own registry.
type Collector struct {
	Registry *prometheus.Registry

	tables    *prometheus.CounterVec
	entries   *prometheus.CounterVec
	bytes     *prometheus.CounterVec
	poolBytes *prometheus.CounterVec
	duration  *prometheus.CounterVec
}

var _ codec.Observer = (*Collector)(nil)

// New creates a Collector with all counters registered.
func New() *Collector {
	c := &Collector{
		Registry: prometheus.NewRegistry(),
		tables: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "tables_total",
				Help:      "Tables processed. Broken down by direction.",
			},
			[]string{"direction"},
		),
		entries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "entries_total",
				Help:      "Entries processed. Broken down by direction and table.",
			},
			[]string{"direction", "table"},
		),
		bytes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "container_bytes_total",
				Help:      "Container bytes read or written. Broken down by direction.",
			},
			[]string{"direction"},
		),
		poolBytes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "pool_bytes_total",
				Help:      "Pointer pool bytes read or written. Broken down by direction.",
			},
			[]string{"direction"},
		),
		duration: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "duration_seconds_total",
				Help:      "Time spent converting containers. Broken down by direction.",
			},
			[]string{"direction"},
		),
	}
	c.Registry.MustRegister(c.tables, c.entries, c.bytes, c.poolBytes, c.duration)
	return c
}

func (c *Collector) ObserveTable(dir codec.Direction, table string, entries int) {
	c.tables.WithLabelValues(string(dir)).Inc()
	c.entries.WithLabelValues(string(dir), table).Add(float64(entries))
}

func (c *Collector) ObserveContainer(dir codec.Direction, size, poolSize int) {
	c.bytes.WithLabelValues(string(dir)).Add(float64(size))
	c.poolBytes.WithLabelValues(string(dir)).Add(float64(poolSize))
}

// Since adds the time elapsed since start to the duration counter.
func (c *Collector) Since(dir codec.Direction, start time.Time) {
	c.duration.WithLabelValues(string(dir)).Add(time.Since(start).Seconds())
}

// WriteTextfile writes the registry to path atomically.
func (c *Collector) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, c.Registry)
}
