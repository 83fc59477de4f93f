package features

import (
	"math"
	"sync"
	"testing"
)

func TestWindow_AddEvictsOldest(t *testing.T) {
	w := NewWindow(3)

	for i := 1; i <= 4; i++ {
		w.Add(map[string]float64{"v": float64(i)})
	}

	if w.Len() != 3 {
		t.Fatalf("Len = %d, want 3", w.Len())
	}
	got := w.Values("v")
	want := []float64{2, 3, 4}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Values[%d] = %v, want %v (oldest first)", i, got[i], want[i])
		}
	}
}

func TestWindow_AddSkipsEmptySamples(t *testing.T) {
	w := NewWindow(8)

	w.Add(nil)
	w.Add(map[string]float64{})
	w.Add(map[string]float64{"v": 1})

	if w.Len() != 1 {
		t.Errorf("Len = %d, want 1 after skipping empty samples", w.Len())
	}
}

func TestWindow_DefaultCapacity(t *testing.T) {
	w := NewWindow(0)
	if w.max != 512 {
		t.Errorf("max = %d, want 512 default", w.max)
	}
	w = NewWindow(-4)
	if w.max != 512 {
		t.Errorf("max = %d, want 512 default for negative n", w.max)
	}
}

func TestWindow_ValuesSkipsSamplesMissingFeature(t *testing.T) {
	w := NewWindow(8)
	w.Add(map[string]float64{"a": 1})
	w.Add(map[string]float64{"b": 2})
	w.Add(map[string]float64{"a": 3})

	if got := w.Values("a"); len(got) != 2 || got[0] != 1 || got[1] != 3 {
		t.Errorf("Values(a) = %v, want [1 3]", got)
	}
	if got := w.Values("b"); len(got) != 1 || got[0] != 2 {
		t.Errorf("Values(b) = %v, want [2]", got)
	}
	if got := w.Values("absent"); len(got) != 0 {
		t.Errorf("Values(absent) = %v, want empty", got)
	}
}

func TestWindow_Stats(t *testing.T) {
	w := NewWindow(8)
	for _, v := range []float64{2, 4, 6} {
		w.Add(map[string]float64{"v": v})
	}

	mean, std, n := w.Stats("v")
	if n != 3 {
		t.Fatalf("n = %d, want 3", n)
	}
	if mean != 4 {
		t.Errorf("mean = %v, want 4", mean)
	}
	if want := math.Sqrt(8.0 / 3.0); !almostEqual(std, want) {
		t.Errorf("std = %v, want %v", std, want)
	}

	mean, std, n = w.Stats("absent")
	if mean != 0 || std != 0 || n != 0 {
		t.Errorf("Stats(absent) = %v/%v/%d, want zeros", mean, std, n)
	}
}

func TestWindow_Histogram(t *testing.T) {
	w := NewWindow(8)
	for _, v := range []float64{0.5, 1.5, 2.5, 5.0, -1.0} {
		w.Add(map[string]float64{"v": v})
	}

	got := w.Histogram("v", 0, 3, 3)

	// 5.0 clamps into the top bin, -1.0 into the bottom.
	want := []float64{0.4, 0.2, 0.4}
	if len(got) != 3 {
		t.Fatalf("bins = %d, want 3", len(got))
	}
	var sum float64
	for i := range want {
		if !almostEqual(got[i], want[i]) {
			t.Errorf("bin[%d] = %v, want %v", i, got[i], want[i])
		}
		sum += got[i]
	}
	if !almostEqual(sum, 1) {
		t.Errorf("histogram sums to %v, want 1", sum)
	}
}

func TestWindow_HistogramEdgeCases(t *testing.T) {
	w := NewWindow(8)

	if got := w.Histogram("v", 0, 1, 4); len(got) != 4 {
		t.Errorf("empty window bins = %d, want 4", len(got))
	} else {
		for i, c := range got {
			if c != 0 {
				t.Errorf("empty window bin[%d] = %v, want 0", i, c)
			}
		}
	}

	w.Add(map[string]float64{"v": 1})
	if got := w.Histogram("v", 5, 5, 4); got[0] != 0 {
		t.Errorf("degenerate range should produce zero counts, got %v", got)
	}
	if got := w.Histogram("v", 0, 10, 0); len(got) != 10 {
		t.Errorf("non-positive bins = %d, want fallback 10", len(got))
	}
}

func TestWindow_ConcurrentAddAndRead(t *testing.T) {
	w := NewWindow(64)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				w.Add(map[string]float64{"v": float64(g*50 + i)})
				w.Stats("v")
				w.Values("v")
			}
		}(g)
	}
	wg.Wait()

	if w.Len() != 64 {
		t.Errorf("Len = %d, want window capped at 64", w.Len())
	}
	if _, _, n := w.Stats("v"); n != 64 {
		t.Errorf("Stats n = %d, want 64", n)
	}
}
