package features

import (
	"math"
	"sync"
)

// Window is a fixed-size rolling buffer of observed feature maps. The
// monitoring loop compares its per-feature statistics against the
// distribution snapshots captured at training time.
type Window struct {
	mu      sync.RWMutex
	max     int
	samples []map[string]float64
}

// NewWindow creates a rolling window holding up to n samples.
func NewWindow(n int) *Window {
	if n <= 0 {
		n = 512
	}
	return &Window{max: n}
}

// Add appends one observation, evicting the oldest when full.
func (w *Window) Add(sample map[string]float64) {
	if len(sample) == 0 {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.samples) == w.max {
		w.samples = w.samples[1:]
	}
	w.samples = append(w.samples, sample)
}

// Len returns the number of buffered observations.
func (w *Window) Len() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.samples)
}

// Values returns every buffered value of one feature, oldest first.
func (w *Window) Values(feature string) []float64 {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]float64, 0, len(w.samples))
	for _, s := range w.samples {
		if v, ok := s[feature]; ok {
			out = append(out, v)
		}
	}
	return out
}

// Stats returns mean, standard deviation and count for one feature across
// the buffered observations.
func (w *Window) Stats(feature string) (mean, std float64, n int) {
	vals := w.Values(feature)
	n = len(vals)
	if n == 0 {
		return 0, 0, 0
	}
	var total float64
	for _, v := range vals {
		total += v
	}
	mean = total / float64(n)
	var ss float64
	for _, v := range vals {
		diff := v - mean
		ss += diff * diff
	}
	std = math.Sqrt(ss / float64(n))
	return mean, std, n
}

// Histogram buckets one feature's buffered values into bins normalized to
// sum to 1 over [min, max]. Out-of-range values clamp into the edge bins.
func (w *Window) Histogram(feature string, min, max float64, bins int) []float64 {
	if bins <= 0 {
		bins = 10
	}
	counts := make([]float64, bins)
	vals := w.Values(feature)
	if len(vals) == 0 || max <= min {
		return counts
	}
	width := (max - min) / float64(bins)
	for _, v := range vals {
		idx := int((v - min) / width)
		if idx < 0 {
			idx = 0
		}
		if idx >= bins {
			idx = bins - 1
		}
		counts[idx]++
	}
	total := float64(len(vals))
	for i := range counts {
		counts[i] /= total
	}
	return counts
}
