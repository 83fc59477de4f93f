package features

import (
	"math"
	"testing"
	"time"

	"donorsense/internal/model"
)

var extractNow = time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC)

func giftDaysAgo(days int, amount float64) model.Donation {
	return model.Donation{
		Date:   extractNow.AddDate(0, 0, -days),
		Amount: amount,
	}
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestExtract_NoHistory(t *testing.T) {
	d := model.Donor{
		ID: "d-empty",
		Attributes: map[string]model.Value{
			"engagement_score": model.Number(0.5),
		},
	}

	got := Extract(d, extractNow)

	zeros := []string{
		"total_donated", "donation_count", "max_donation_amount",
		"avg_donation_amount", "days_since_first_donation",
		"donation_frequency", "recent_donation_count",
		"recent_total_amount", "recent_avg_amount",
		"donation_growth_trend", "consistency_score",
	}
	for _, k := range zeros {
		if got[k] != 0 {
			t.Errorf("%s = %v, want 0", k, got[k])
		}
	}
	if got["days_since_last_donation"] != NeverDonatedSentinel {
		t.Errorf("days_since_last_donation = %v, want sentinel %d",
			got["days_since_last_donation"], NeverDonatedSentinel)
	}
	if got["engagement_score"] != 0.5 {
		t.Errorf("engagement_score = %v, want attribute passthrough 0.5", got["engagement_score"])
	}
}

func TestExtract_Aggregates(t *testing.T) {
	// Deliberately out of order; Extract must sort before computing
	// recency and trend features.
	d := model.Donor{
		ID: "d-agg",
		Donations: []model.Donation{
			giftDaysAgo(100, 300),
			giftDaysAgo(300, 100),
			giftDaysAgo(10, 400),
			giftDaysAgo(200, 200),
		},
	}

	got := Extract(d, extractNow)

	want := map[string]float64{
		"total_donated":             1000,
		"donation_count":            4,
		"max_donation_amount":       400,
		"avg_donation_amount":       250,
		"days_since_first_donation": 300,
		"days_since_last_donation":  10,
		"donation_frequency":        4 * 365.0 / 300.0,
		// Only the 10-day-old gift falls inside the 90 day window.
		"recent_donation_count": 1,
		"recent_total_amount":   400,
		"recent_avg_amount":     400,
		// Halves [100,200] vs [300,400]: (350-150)/150.
		"donation_growth_trend": 200.0 / 150.0,
		// mean 250, population std sqrt(12500).
		"consistency_score": 1 - math.Sqrt(12500)/250,
	}
	for k, w := range want {
		if !almostEqual(got[k], w) {
			t.Errorf("%s = %v, want %v", k, got[k], w)
		}
	}
}

func TestExtract_SameDayHistory(t *testing.T) {
	d := model.Donor{
		ID: "d-sameday",
		Donations: []model.Donation{
			giftDaysAgo(0, 50),
			giftDaysAgo(0, 50),
		},
	}

	got := Extract(d, extractNow)

	if got["days_since_first_donation"] != 0 {
		t.Errorf("days_since_first_donation = %v, want 0", got["days_since_first_donation"])
	}
	// Zero-day span clamps to one so annualized frequency stays finite.
	if !almostEqual(got["donation_frequency"], 730) {
		t.Errorf("donation_frequency = %v, want 730", got["donation_frequency"])
	}
	if got["consistency_score"] != 1 {
		t.Errorf("consistency_score = %v, want 1 for identical amounts", got["consistency_score"])
	}
	if got["donation_growth_trend"] != 0 {
		t.Errorf("donation_growth_trend = %v, want 0 for flat amounts", got["donation_growth_trend"])
	}
}

func TestExtract_FutureDatedGiftClamps(t *testing.T) {
	d := model.Donor{
		ID: "d-future",
		Donations: []model.Donation{
			giftDaysAgo(-5, 75),
		},
	}

	got := Extract(d, extractNow)

	if got["days_since_first_donation"] != 0 || got["days_since_last_donation"] != 0 {
		t.Errorf("day distances = %v/%v, want 0/0 for a future-dated gift",
			got["days_since_first_donation"], got["days_since_last_donation"])
	}
	if got["recent_donation_count"] != 1 {
		t.Errorf("recent_donation_count = %v, want 1", got["recent_donation_count"])
	}
}

func TestExtract_DerivedKeysWinOverAttributes(t *testing.T) {
	d := model.Donor{
		ID: "d-collide",
		Attributes: map[string]model.Value{
			"total_donated":    model.Number(999999),
			"region":           model.String("west"),
			"email_subscriber": model.Boolean(true),
		},
		Donations: []model.Donation{giftDaysAgo(30, 100)},
	}

	got := Extract(d, extractNow)

	if got["total_donated"] != 100 {
		t.Errorf("total_donated = %v, want the derived 100, not the attribute", got["total_donated"])
	}
	if got["region"] != float64(hashBucket("west")) {
		t.Errorf("region = %v, want hashed categorical %v", got["region"], hashBucket("west"))
	}
	if got["email_subscriber"] != 1 {
		t.Errorf("email_subscriber = %v, want 1", got["email_subscriber"])
	}
}

func TestExtract_SingleGiftHasNoTrend(t *testing.T) {
	d := model.Donor{
		ID:        "d-single",
		Donations: []model.Donation{giftDaysAgo(40, 250)},
	}

	got := Extract(d, extractNow)

	if got["donation_growth_trend"] != 0 {
		t.Errorf("donation_growth_trend = %v, want 0 with one gift", got["donation_growth_trend"])
	}
	if got["consistency_score"] != 0 {
		t.Errorf("consistency_score = %v, want 0 with one gift", got["consistency_score"])
	}
	if !almostEqual(got["donation_frequency"], 365.0/40.0) {
		t.Errorf("donation_frequency = %v, want %v", got["donation_frequency"], 365.0/40.0)
	}
}

func BenchmarkExtract(b *testing.B) {
	d := model.Donor{
		ID: "d-bench",
		Attributes: map[string]model.Value{
			"engagement_score":  model.Number(0.7),
			"preferred_channel": model.String("email"),
		},
	}
	for i := 0; i < 48; i++ {
		d.Donations = append(d.Donations, giftDaysAgo(i*30, float64(20+i)))
	}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		Extract(d, extractNow)
	}
}

func TestExtract_DeterministicForFixedNow(t *testing.T) {
	d := model.Donor{
		ID: "d-det",
		Attributes: map[string]model.Value{
			"preferred_channel": model.String("email"),
		},
		Donations: []model.Donation{
			giftDaysAgo(250, 20),
			giftDaysAgo(120, 35),
			giftDaysAgo(15, 60),
		},
	}

	first := Extract(d, extractNow)
	second := Extract(d, extractNow)

	if len(first) != len(second) {
		t.Fatalf("feature count changed between runs: %d vs %d", len(first), len(second))
	}
	for k, v := range first {
		if second[k] != v {
			t.Errorf("%s differs between runs: %v vs %v", k, v, second[k])
		}
	}
}
