package analytics

import (
	"sync"

	"github.com/DataDog/sketches-go/ddsketch"
)

// Distribution maintains a streaming summary of observed temperatures
// using a DDSketch, giving approximate quantiles at a fixed relative
// accuracy without retaining samples. The ingestion path feeds it; the
// status endpoint reads it.
type Distribution struct {
	mu       sync.Mutex
	sketch   *ddsketch.DDSketch
	accuracy float64
	count    int64
}

// Quantiles is a snapshot of the distribution summary.
type Quantiles struct {
	Count int64   `json:"count"`
	P50   float64 `json:"p50"`
	P90   float64 `json:"p90"`
	P95   float64 `json:"p95"`
	P99   float64 `json:"p99"`
}

// NewDistribution creates a distribution with the given relative
// accuracy (e.g. 0.01 for 1%).
func NewDistribution(accuracy float64) *Distribution {
	if accuracy <= 0 || accuracy >= 1 {
		accuracy = 0.01
	}

	d := &Distribution{accuracy: accuracy}
	if sketch, err := ddsketch.NewDefaultDDSketch(accuracy); err == nil {
		d.sketch = sketch
	}
	return d
}

// Add records a temperature observation.
func (d *Distribution) Add(value float64) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.count++
	if d.sketch != nil {
		d.sketch.Add(value)
	}
}

// Snapshot returns the current quantiles. With no observations all
// quantiles are zero.
func (d *Distribution) Snapshot() Quantiles {
	d.mu.Lock()
	defer d.mu.Unlock()

	q := Quantiles{Count: d.count}
	if d.sketch == nil || d.count == 0 {
		return q
	}

	q.P50, _ = d.sketch.GetValueAtQuantile(0.50)
	q.P90, _ = d.sketch.GetValueAtQuantile(0.90)
	q.P95, _ = d.sketch.GetValueAtQuantile(0.95)
	q.P99, _ = d.sketch.GetValueAtQuantile(0.99)
	return q
}

// Reset discards all observations. DDSketch has no clear operation, so
// a fresh sketch replaces the old one.
func (d *Distribution) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.count = 0
	if sketch, err := ddsketch.NewDefaultDDSketch(d.accuracy); err == nil {
		d.sketch = sketch
	}
}
