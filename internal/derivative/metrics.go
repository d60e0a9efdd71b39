package derivative

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "imghub"

// RegisterMetrics 将缓存计数器以 Prometheus 指标形式暴露到 reg。
func (c *Cache) RegisterMetrics(reg prometheus.Registerer) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	counter := func(name, help string, read func() uint64) prometheus.Collector {
		return prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "derivative_cache",
			Name:      name,
			Help:      help,
		}, func() float64 { return float64(read()) })
	}

	collectors := []prometheus.Collector{
		counter("hits_total", "Derivative lookups served from memory.", c.hits.Load),
		counter("misses_total", "Derivative lookups that required or awaited a computation.", c.misses.Load),
		counter("evictions_total", "Entries evicted because the cache was full.", c.evictions.Load),
		counter("compute_failures_total", "Derivative computations that returned an error.", c.failures.Load),
		counter("computes_total", "Derivative computations actually executed.", c.computes.Load),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "derivative_cache",
			Name:      "entries",
			Help:      "Entries currently held by the derivative cache.",
		}, func() float64 { return float64(c.Len()) }),
	}

	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			return fmt.Errorf("register derivative cache metrics: %w", err)
		}
	}
	return nil
}
