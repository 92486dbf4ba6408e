package metric

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "stagehand"

// Build results
const (
	BuildSucceeded = "success"
	BuildFailed    = "failure"
)

// Metrics contains the engine collectors.
type Metrics struct {
	FramesTotal   prometheus.Counter
	FrameDuration prometheus.Histogram

	Builds       *prometheus.CounterVec
	Reloads      *prometheus.CounterVec
	LoadFailures *prometheus.CounterVec
	GuestPanics  *prometheus.CounterVec
	Cooldown     *prometheus.GaugeVec
	Generation   *prometheus.GaugeVec
	LiveAtoms    *prometheus.GaugeVec
	ReapedAtoms  *prometheus.CounterVec
}

// NewMetrics creates unregistered collectors.
func NewMetrics() *Metrics {
	return &Metrics{
		FramesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "engine",
				Name:      "frames_total",
				Help:      "Total number of frames ticked",
			},
		),

		FrameDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "engine",
				Name:      "frame_duration_seconds",
				Help:      "Wall time spent in one frame",
				Buckets:   []float64{.001, .002, .004, .008, .016, .033, .066, .1, .25},
			},
		),

		Builds: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "module",
				Name:      "builds_total",
				Help:      "Module builds by result",
			},
			[]string{"module", "result"},
		),

		Reloads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "module",
				Name:      "reloads_total",
				Help:      "Successful module swaps",
			},
			[]string{"module"},
		),

		LoadFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "module",
				Name:      "load_failures_total",
				Help:      "Module loads that produced no tree",
			},
			[]string{"module"},
		),

		GuestPanics: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "module",
				Name:      "guest_panics_total",
				Help:      "Panics recovered from guest frame updates",
			},
			[]string{"module"},
		),

		Cooldown: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "module",
				Name:      "cooldown",
				Help:      "Module cooldown status (0=running, 1=paused)",
			},
			[]string{"module"},
		),

		Generation: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "module",
				Name:      "generation",
				Help:      "Current load generation of the module",
			},
			[]string{"module"},
		),

		LiveAtoms: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "tree",
				Name:      "live_atoms",
				Help:      "Atoms in the module tree",
			},
			[]string{"module"},
		),

		ReapedAtoms: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "tree",
				Name:      "reaped_atoms_total",
				Help:      "Atoms destroyed by the reaper sweep",
			},
			[]string{"module"},
		),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.FramesTotal,
		m.FrameDuration,
		m.Builds,
		m.Reloads,
		m.LoadFailures,
		m.GuestPanics,
		m.Cooldown,
		m.Generation,
		m.LiveAtoms,
		m.ReapedAtoms,
	}
}

// RecordFrame counts one frame and its duration.
func (m *Metrics) RecordFrame(d time.Duration) {
	if m == nil {
		return
	}
	m.FramesTotal.Inc()
	m.FrameDuration.Observe(d.Seconds())
}

// RecordBuild counts a finished build.
func (m *Metrics) RecordBuild(module string, err error) {
	if m == nil {
		return
	}
	result := BuildSucceeded
	if err != nil {
		result = BuildFailed
	}
	m.Builds.WithLabelValues(module, result).Inc()
}

// RecordReload counts a swap and records the new generation.
func (m *Metrics) RecordReload(module string, generation uint64) {
	if m == nil {
		return
	}
	m.Reloads.WithLabelValues(module).Inc()
	m.Generation.WithLabelValues(module).Set(float64(generation))
}

// RecordLoadFailure counts a load that left the module without a tree.
func (m *Metrics) RecordLoadFailure(module string) {
	if m == nil {
		return
	}
	m.LoadFailures.WithLabelValues(module).Inc()
}

// RecordGuestPanic counts a recovered guest panic.
func (m *Metrics) RecordGuestPanic(module string) {
	if m == nil {
		return
	}
	m.GuestPanics.WithLabelValues(module).Inc()
}

// RecordCooldown updates the cooldown status of a module.
func (m *Metrics) RecordCooldown(module string, paused bool) {
	if m == nil {
		return
	}
	value := 0.0
	if paused {
		value = 1.0
	}
	m.Cooldown.WithLabelValues(module).Set(value)
}

// RecordTree updates the atom count and reaped total of a module tree.
func (m *Metrics) RecordTree(module string, live, reaped int) {
	if m == nil {
		return
	}
	m.LiveAtoms.WithLabelValues(module).Set(float64(live))
	if reaped > 0 {
		m.ReapedAtoms.WithLabelValues(module).Add(float64(reaped))
	}
}
