// Package metrics keeps in process counters and duration histograms for
// the job queues.
package metrics

import (
	"container/ring"
	"math"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultMaxSamples bounds the samples each histogram keeps.
const DefaultMaxSamples = 1000

// Collector records per queue job outcomes.
type Collector struct {
	maxSamples int

	mu     sync.RWMutex
	queues map[string]*QueueMetrics
}

// NewCollector creates a collector keeping up to maxSamples durations per
// queue. A non-positive maxSamples selects DefaultMaxSamples.
func NewCollector(maxSamples int) *Collector {
	if maxSamples <= 0 {
		maxSamples = DefaultMaxSamples
	}
	return &Collector{
		maxSamples: maxSamples,
		queues:     make(map[string]*QueueMetrics),
	}
}

// QueueMetrics tracks one queue.
type QueueMetrics struct {
	submitted atomic.Int64
	rejected  atomic.Int64
	completed atomic.Int64
	failed    atomic.Int64
	durations *Histogram
}

func (c *Collector) queue(name string) *QueueMetrics {
	c.mu.RLock()
	q, ok := c.queues[name]
	c.mu.RUnlock()
	if ok {
		return q
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if q, ok = c.queues[name]; !ok {
		q = &QueueMetrics{durations: NewHistogram(c.maxSamples)}
		c.queues[name] = q
	}
	return q
}

// RecordSubmit counts a submission, or a rejected one when err is set.
func (c *Collector) RecordSubmit(queue string, err error) {
	q := c.queue(queue)
	if err != nil {
		q.rejected.Add(1)
		return
	}
	q.submitted.Add(1)
}

// RecordCompletion counts a finished job and samples its run time.
func (c *Collector) RecordCompletion(queue string, d time.Duration, success bool) {
	q := c.queue(queue)
	if success {
		q.completed.Add(1)
	} else {
		q.failed.Add(1)
	}
	q.durations.Add(d.Seconds())
}

// GetMetrics returns a snapshot keyed by queue name.
func (c *Collector) GetMetrics() map[string]any {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[string]any, len(c.queues))
	for name, q := range c.queues {
		out[name] = map[string]any{
			"submitted": q.submitted.Load(),
			"rejected":  q.rejected.Load(),
			"completed": q.completed.Load(),
			"failed":    q.failed.Load(),
			"duration":  q.durations.GetStats(),
		}
	}
	return out
}

// Histogram keeps the most recent samples in a ring along with running
// totals over every sample.
type Histogram struct {
	mu         sync.Mutex
	samples    *ring.Ring
	maxSamples int
	count      int64
	sum        float64
	min        float64
	max        float64
	buckets    []float64
}

// NewHistogram creates a new histogram reporting the given percentiles.
func NewHistogram(maxSamples int, buckets ...float64) *Histogram {
	if maxSamples <= 0 {
		maxSamples = DefaultMaxSamples
	}
	if len(buckets) == 0 {
		buckets = []float64{50, 90, 99}
	}
	return &Histogram{
		samples:    ring.New(maxSamples),
		maxSamples: maxSamples,
		buckets:    buckets,
		min:        math.Inf(1),
		max:        math.Inf(-1),
	}
}

// Add adds a value to the histogram
func (h *Histogram) Add(v float64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.count++
	h.sum += v
	h.min = math.Min(h.min, v)
	h.max = math.Max(h.max, v)
	h.samples.Value = v
	h.samples = h.samples.Next()
}

// HistogramStats returns histogram statistics
type HistogramStats struct {
	Count       int64              `json:"count"`
	Min         float64            `json:"min"`
	Max         float64            `json:"max"`
	Mean        float64            `json:"mean"`
	Percentiles map[string]float64 `json:"percentiles,omitempty"`
}

// GetStats returns current histogram statistics. Percentiles cover the
// retained samples only.
func (h *Histogram) GetStats() HistogramStats {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.count == 0 {
		return HistogramStats{}
	}

	samples := make([]float64, 0, h.maxSamples)
	h.samples.Do(func(v any) {
		if f, ok := v.(float64); ok {
			samples = append(samples, f)
		}
	})
	sort.Float64s(samples)

	stats := HistogramStats{
		Count:       h.count,
		Min:         h.min,
		Max:         h.max,
		Mean:        h.sum / float64(h.count),
		Percentiles: make(map[string]float64, len(h.buckets)),
	}
	for _, p := range h.buckets {
		idx := int(float64(len(samples)) * p / 100)
		if idx >= len(samples) {
			idx = len(samples) - 1
		}
		stats.Percentiles[percentileKey(p)] = samples[idx]
	}
	return stats
}

func percentileKey(p float64) string {
	return "p" + strconv.FormatFloat(p, 'f', -1, 64)
}
