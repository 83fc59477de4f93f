package predict

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"donorsense/internal/model"
)

func cachedPrediction(donorID, modelID string, generatedAt time.Time) model.DonorPrediction {
	return model.DonorPrediction{
		DonorID:     donorID,
		ModelID:     modelID,
		Type:        model.TypeLifetimeValue,
		Prediction:  42,
		Confidence:  0.5,
		GeneratedAt: generatedAt,
		ValidUntil:  generatedAt.Add(60 * 24 * time.Hour),
	}
}

func TestCache_PutGet(t *testing.T) {
	c := NewCache()
	now := time.Now().UTC()

	c.Put(cachedPrediction("d1", "m1", now))

	got, ok := c.Get("d1", "m1")
	if !ok {
		t.Fatal("expected cached prediction")
	}
	if got.Prediction != 42 {
		t.Errorf("prediction = %v, want 42", got.Prediction)
	}
	if _, ok := c.Get("d1", "m2"); ok {
		t.Error("unexpected hit for unknown model")
	}
	if _, ok := c.Get("d2", "m1"); ok {
		t.Error("unexpected hit for unknown donor")
	}
}

func TestCache_LastWriteWins(t *testing.T) {
	c := NewCache()
	now := time.Now().UTC()

	first := cachedPrediction("d1", "m1", now.Add(-time.Hour))
	first.Prediction = 1
	second := cachedPrediction("d1", "m1", now)
	second.Prediction = 2

	c.Put(first)
	c.Put(second)

	got, ok := c.Get("d1", "m1")
	if !ok {
		t.Fatal("expected cached prediction")
	}
	if got.Prediction != 2 {
		t.Errorf("prediction = %v, want the later write", got.Prediction)
	}
	if len(c.DonorPredictions("d1")) != 1 {
		t.Error("expected a single entry per donor and model")
	}
}

func TestCache_DonorPredictionsNewestFirst(t *testing.T) {
	c := NewCache()
	now := time.Now().UTC()

	c.Put(cachedPrediction("d1", "m-old", now.Add(-2*time.Hour)))
	c.Put(cachedPrediction("d1", "m-new", now))
	c.Put(cachedPrediction("d1", "m-mid", now.Add(-time.Hour)))
	c.Put(cachedPrediction("d2", "m-other", now))

	got := c.DonorPredictions("d1")
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	want := []string{"m-new", "m-mid", "m-old"}
	for i, id := range want {
		if got[i].ModelID != id {
			t.Errorf("position %d = %s, want %s", i, got[i].ModelID, id)
		}
	}
}

func TestCache_DonorPredictionsUnknown(t *testing.T) {
	c := NewCache()
	if got := c.DonorPredictions("nobody"); got != nil {
		t.Errorf("expected nil, got %v", got)
	}
}

func TestCache_ConcurrentAccess(t *testing.T) {
	c := NewCache()
	now := time.Now().UTC()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				donor := fmt.Sprintf("d%d", j%10)
				c.Put(cachedPrediction(donor, fmt.Sprintf("m%d", n), now))
				c.Get(donor, fmt.Sprintf("m%d", n))
				c.DonorPredictions(donor)
			}
		}(i)
	}
	wg.Wait()

	if c.Len() != 10 {
		t.Errorf("donors cached = %d, want 10", c.Len())
	}
}
