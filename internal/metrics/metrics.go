// Package metrics collects composition and submission telemetry.
// Collectors live on a private registry so tests and embedders never
// collide with the global one.
package metrics

import (
	"sort"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Submission outcomes used as the "outcome" label.
const (
	OutcomeSucceeded     = "succeeded"
	OutcomeWarnings      = "succeeded_with_warnings"
	OutcomeQueuedOffline = "queued_offline"
)

// Collector holds the compose metrics. A nil *Collector is valid and
// records nothing.
type Collector struct {
	registry *prometheus.Registry

	submissions     *prometheus.CounterVec
	submitLatency   prometheus.Histogram
	persistWrites   prometheus.Counter
	offlineEnqueued prometheus.Counter
	queueDepth      prometheus.Gauge
	replays         *prometheus.CounterVec
}

// NewCollector creates a collector. namespace defaults to "compose".
func NewCollector(namespace string) *Collector {
	if namespace == "" {
		namespace = "compose"
	}

	c := &Collector{registry: prometheus.NewRegistry()}

	c.submissions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "submissions_total",
			Help:      "Submissions by reported outcome",
		},
		[]string{"outcome"},
	)

	c.submitLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "submit_duration_seconds",
			Help:      "Time from validation start to a terminal pipeline state",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to ~10s
		},
	)

	c.persistWrites = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "persist_writes_total",
			Help:      "Session snapshot writes",
		},
	)

	c.offlineEnqueued = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "offline_enqueued_total",
			Help:      "Submissions recorded in the offline queue",
		},
	)

	c.queueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "offline_queue_depth",
			Help:      "Entries waiting in the offline queue",
		},
	)

	c.replays = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "offline_replays_total",
			Help:      "Offline queue replay attempts by result",
		},
		[]string{"result"},
	)

	c.registry.MustRegister(
		c.submissions,
		c.submitLatency,
		c.persistWrites,
		c.offlineEnqueued,
		c.queueDepth,
		c.replays,
	)
	return c
}

// Registry returns the private registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// RecordSubmission records a terminal pipeline outcome.
func (c *Collector) RecordSubmission(outcome string, d time.Duration) {
	if c == nil {
		return
	}
	c.submissions.WithLabelValues(outcome).Inc()
	c.submitLatency.Observe(d.Seconds())
}

// RecordPersistWrite counts one snapshot write.
func (c *Collector) RecordPersistWrite() {
	if c == nil {
		return
	}
	c.persistWrites.Inc()
}

// RecordOfflineEnqueued counts one offline enqueue.
func (c *Collector) RecordOfflineEnqueued() {
	if c == nil {
		return
	}
	c.offlineEnqueued.Inc()
}

// SetQueueDepth sets the offline queue gauge.
func (c *Collector) SetQueueDepth(n int) {
	if c == nil {
		return
	}
	c.queueDepth.Set(float64(n))
}

// RecordReplay counts one replay attempt of a queued entry.
func (c *Collector) RecordReplay(err error) {
	if c == nil {
		return
	}
	result := "delivered"
	if err != nil {
		result = "failed"
	}
	c.replays.WithLabelValues(result).Inc()
}

// Snapshot returns current counter and gauge values keyed by
// name{label="value",...}. Histograms report their sample count.
func (c *Collector) Snapshot() (map[string]float64, error) {
	if c == nil {
		return map[string]float64{}, nil
	}
	families, err := c.registry.Gather()
	if err != nil {
		return nil, err
	}
	out := make(map[string]float64)
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			labels := make([]string, 0, len(m.GetLabel()))
			for _, lp := range m.GetLabel() {
				labels = append(labels, lp.GetName()+`="`+lp.GetValue()+`"`)
			}
			sort.Strings(labels)
			key := mf.GetName()
			if len(labels) > 0 {
				key += "{" + strings.Join(labels, ",") + "}"
			}
			switch {
			case m.GetCounter() != nil:
				out[key] = m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				out[key] = m.GetGauge().GetValue()
			case m.GetHistogram() != nil:
				out[key+"_count"] = float64(m.GetHistogram().GetSampleCount())
			}
		}
	}
	return out, nil
}
