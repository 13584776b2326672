package metrics

import (
	"errors"
	"sync"
	"testing"
	"time"
)

func TestCollector(t *testing.T) {
	c := NewCollector(0)

	c.RecordSubmit("case-digest", nil)
	c.RecordSubmit("case-digest", nil)
	c.RecordSubmit("case-digest", errors.New("queue full"))
	c.RecordCompletion("case-digest", 100*time.Millisecond, true)
	c.RecordCompletion("case-digest", 300*time.Millisecond, false)

	m, ok := c.GetMetrics()["case-digest"].(map[string]any)
	if !ok {
		t.Fatalf("expected metrics for case-digest, got %v", c.GetMetrics())
	}
	for key, want := range map[string]int64{"submitted": 2, "rejected": 1, "completed": 1, "failed": 1} {
		if m[key].(int64) != want {
			t.Errorf("%s = %d, want %d", key, m[key], want)
		}
	}

	st := m["duration"].(HistogramStats)
	if st.Count != 2 || st.Min != 0.1 || st.Max != 0.3 {
		t.Errorf("unexpected duration stats %+v", st)
	}
	if st.Mean < 0.199 || st.Mean > 0.201 {
		t.Errorf("expected mean 0.2, got %f", st.Mean)
	}
}

func TestHistogramRing(t *testing.T) {
	h := NewHistogram(3, 50)
	for _, v := range []float64{10, 1, 2, 3} {
		h.Add(v)
	}
	st := h.GetStats()
	if st.Count != 4 || st.Max != 10 || st.Min != 1 {
		t.Errorf("expected totals over every sample, got %+v", st)
	}
	// only 1, 2, 3 are retained
	if st.Percentiles["p50"] != 2 {
		t.Errorf("expected p50 of retained samples to be 2, got %v", st.Percentiles)
	}

	if empty := NewHistogram(3).GetStats(); empty.Count != 0 || empty.Percentiles != nil {
		t.Errorf("expected empty stats, got %+v", empty)
	}
}

func TestCollectorConcurrent(t *testing.T) {
	c := NewCollector(10)
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.RecordSubmit("reviewer", nil)
			c.RecordCompletion("reviewer", time.Millisecond, true)
		}()
	}
	wg.Wait()

	m := c.GetMetrics()["reviewer"].(map[string]any)
	if m["submitted"].(int64) != 20 || m["completed"].(int64) != 20 {
		t.Errorf("unexpected counts %v", m)
	}
}
