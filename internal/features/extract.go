// Package features turns donor records and loosely typed attribute maps
// into the fixed-shape numeric feature maps the models consume, and keeps
// rolling windows of observed features for drift comparison.
package features

import (
	"math"
	"sort"
	"time"

	"donorsense/internal/model"
)

// NeverDonatedSentinel marks days_since_last_donation for a donor with no
// donation history, distinguishing "never active" from "just donated".
const NeverDonatedSentinel = 9999

// recentWindow is the trailing span covered by the recent_* aggregates.
const recentWindow = 90 * 24 * time.Hour

// Extract converts one donor record into its numeric feature map. The
// result is deterministic for a fixed now: derived donation aggregates
// first, then the donor's encoded attributes (derived keys win on
// collision).
func Extract(d model.Donor, now time.Time) map[string]float64 {
	out := make(map[string]float64, len(d.Attributes)+12)

	for k, v := range d.Attributes {
		out[k] = EncodeValue(v)
	}

	donations := sortedByDate(d.Donations)
	count := len(donations)

	var total, maxAmount float64
	for _, don := range donations {
		total += don.Amount
		if don.Amount > maxAmount {
			maxAmount = don.Amount
		}
	}

	out["total_donated"] = total
	out["donation_count"] = float64(count)
	out["max_donation_amount"] = maxAmount

	if count == 0 {
		out["avg_donation_amount"] = 0
		out["days_since_first_donation"] = 0
		out["days_since_last_donation"] = NeverDonatedSentinel
		out["donation_frequency"] = 0
		out["recent_donation_count"] = 0
		out["recent_total_amount"] = 0
		out["recent_avg_amount"] = 0
		out["donation_growth_trend"] = 0
		out["consistency_score"] = 0
		return out
	}

	out["avg_donation_amount"] = total / float64(count)

	daysFirst := daysBetween(donations[0].Date, now)
	daysLast := daysBetween(donations[count-1].Date, now)
	out["days_since_first_donation"] = float64(daysFirst)
	out["days_since_last_donation"] = float64(daysLast)

	// Same-day histories collapse the denominator to zero; treat them as a
	// one-day span so frequency stays finite.
	span := daysFirst
	if span < 1 {
		span = 1
	}
	out["donation_frequency"] = float64(count) * 365.0 / float64(span)

	cutoff := now.Add(-recentWindow)
	var recentCount int
	var recentTotal float64
	for _, don := range donations {
		if don.Date.After(cutoff) {
			recentCount++
			recentTotal += don.Amount
		}
	}
	out["recent_donation_count"] = float64(recentCount)
	out["recent_total_amount"] = recentTotal
	if recentCount > 0 {
		out["recent_avg_amount"] = recentTotal / float64(recentCount)
	} else {
		out["recent_avg_amount"] = 0
	}

	out["donation_growth_trend"] = growthTrend(donations)
	out["consistency_score"] = consistencyScore(donations)

	return out
}

// growthTrend is the relative change between the mean of the earlier half
// and the mean of the later half of the chronological history.
func growthTrend(donations []model.Donation) float64 {
	n := len(donations)
	if n < 2 {
		return 0
	}
	half := n / 2
	earlier := meanAmount(donations[:half])
	later := meanAmount(donations[half:])
	if earlier == 0 {
		return 0
	}
	return (later - earlier) / earlier
}

// consistencyScore is max(0, 1 - CV) over donation amounts. A donor giving
// the same amount every time scores 1.
func consistencyScore(donations []model.Donation) float64 {
	n := len(donations)
	if n < 2 {
		return 0
	}
	mean := meanAmount(donations)
	if mean == 0 {
		return 0
	}
	var ss float64
	for _, d := range donations {
		diff := d.Amount - mean
		ss += diff * diff
	}
	std := math.Sqrt(ss / float64(n))
	score := 1 - std/mean
	if score < 0 {
		return 0
	}
	return score
}

func meanAmount(donations []model.Donation) float64 {
	if len(donations) == 0 {
		return 0
	}
	var total float64
	for _, d := range donations {
		total += d.Amount
	}
	return total / float64(len(donations))
}

func sortedByDate(donations []model.Donation) []model.Donation {
	out := make([]model.Donation, len(donations))
	copy(out, donations)
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

func daysBetween(from, to time.Time) int {
	d := int(to.Sub(from).Hours() / 24)
	if d < 0 {
		return 0
	}
	return d
}
