package metrics

import (
	"github.com/danielpatrickdp/arenalearn/internal/replay"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "arenalearn"

// #region collector
// Collector exposes replay, agent, and trainer telemetry. All instruments are
// registered on the registry passed to New so tests can use a private one.
type Collector struct {
	bufferSize    prometheus.Gauge
	totalPriority prometheus.Gauge
	beta          prometheus.Gauge
	maxPriority   prometheus.Gauge
	epsilon       prometheus.Gauge
	tableEntries  prometheus.Gauge
	steps         *prometheus.CounterVec
	absTD         prometheus.Histogram
}

// New registers the arena instruments on reg.
func New(reg prometheus.Registerer) *Collector {
	f := promauto.With(reg)
	return &Collector{
		bufferSize: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "replay",
			Name:      "size",
			Help:      "Experiences currently stored in the replay buffer",
		}),
		totalPriority: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "replay",
			Name:      "total_priority",
			Help:      "Sum of all stored priorities",
		}),
		beta: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "replay",
			Name:      "beta",
			Help:      "Current importance-sampling exponent",
		}),
		maxPriority: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "replay",
			Name:      "max_priority",
			Help:      "Largest priority ever assigned",
		}),
		epsilon: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "agent",
			Name:      "exploration_rate",
			Help:      "Current epsilon of the epsilon-greedy policy",
		}),
		tableEntries: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "agent",
			Name:      "table_entries",
			Help:      "Stored (state, action) values",
		}),
		steps: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "trainer",
			Name:      "steps_total",
			Help:      "Training steps by decision (train, skip)",
		}, []string{"decision"}),
		absTD: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "trainer",
			Name:      "abs_td_error",
			Help:      "Absolute temporal-difference error per learned sample",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 25},
		}),
	}
}

// #endregion collector

// #region recording
// ObserveStep counts one trainer step and records its per-sample |td|.
func (c *Collector) ObserveStep(decision string, absTDs []float64) {
	c.steps.WithLabelValues(decision).Inc()
	for _, v := range absTDs {
		c.absTD.Observe(v)
	}
}

// SetBufferStats mirrors a replay buffer snapshot.
func (c *Collector) SetBufferStats(s replay.Stats) {
	c.bufferSize.Set(float64(s.Size))
	c.totalPriority.Set(s.TotalPriority)
	c.beta.Set(s.Beta)
	c.maxPriority.Set(s.MaxPriority)
}

// SetAgentStats mirrors the agent's exploration rate and table size.
func (c *Collector) SetAgentStats(epsilon float64, entries int) {
	c.epsilon.Set(epsilon)
	c.tableEntries.Set(float64(entries))
}

// #endregion recording
