package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"donorsense/internal/evaluation"
	"donorsense/internal/features"
	"donorsense/internal/model"
)

// behavior drives one simulated donor's giving pattern.
type behavior struct {
	baseAmount float64 // typical gift size
	cadence    float64 // mean days between gifts
	growth     float64 // per-gift amount drift
	lapseRisk  float64 // chance of lapsing after any gift
}

var (
	ageBrackets = []string{"18-24", "25-34", "35-44", "45-54", "55-64", "65+"}
	regions     = []string{"northeast", "southeast", "midwest", "southwest", "west"}
	channels    = []string{"email", "direct_mail", "event", "online"}
)

func main() {
	var (
		outPath = flag.String("out", "testdata", "Output directory")
		count   = flag.Int("donors", 500, "Number of donors to generate")
		seed    = flag.Int64("seed", 42, "Random seed (fixed seed reproduces the same files)")
		horizon = flag.Int("horizon", 400, "Days of simulated future used to label targets")
	)
	flag.Parse()

	fmt.Printf("Generating %d synthetic donors...\n", *count)
	fmt.Printf("  Seed: %d\n", *seed)
	fmt.Printf("  Output: %s\n", *outPath)

	if err := os.MkdirAll(*outPath, 0o755); err != nil {
		log.Fatalf("Failed to create output directory: %v", err)
	}

	rng := rand.New(rand.NewSource(*seed))
	now := time.Now().UTC().Truncate(24 * time.Hour)

	donors := make([]model.Donor, 0, *count)
	futures := make([][]model.Donation, 0, *count)
	for i := 0; i < *count; i++ {
		d, future := simulateDonor(rng, i, now, *horizon)
		if len(d.Donations) == 0 {
			continue
		}
		donors = append(donors, d)
		futures = append(futures, future)
	}
	fmt.Printf("  Simulated %d donors with at least one past gift\n", len(donors))

	if err := writeJSON(filepath.Join(*outPath, "donors.json"), donors); err != nil {
		log.Fatalf("Failed to write donors: %v", err)
	}

	for _, typ := range []model.ModelType{
		model.TypeNextAmount,
		model.TypeNextTiming,
		model.TypeChurnRisk,
		model.TypeLifetimeValue,
	} {
		ds := buildDataset(donors, futures, typ, now)
		name := fmt.Sprintf("dataset_%s.json", typ)
		if err := evaluation.SaveDataSet(filepath.Join(*outPath, name), ds); err != nil {
			log.Fatalf("Failed to write dataset %s: %v", name, err)
		}
		fmt.Printf("  %s: %d samples\n", name, len(ds.Samples))
	}

	fmt.Println("Done.")
}

// simulateDonor walks one donor's giving history from a random start up to
// now+horizon days. Donations up to now become the donor record; later ones
// are returned separately and only used to label targets.
func simulateDonor(rng *rand.Rand, idx int, now time.Time, horizon int) (model.Donor, []model.Donation) {
	engagement := rng.Float64()
	b := behavior{
		baseAmount: 10 + rng.ExpFloat64()*60,
		cadence:    20 + rng.Float64()*90,
		growth:     0.98 + rng.Float64()*0.06,
		lapseRisk:  0.02 + 0.15*(1-engagement),
	}

	start := now.AddDate(0, 0, -(180 + rng.Intn(900)))
	end := now.AddDate(0, 0, horizon)

	var past, future []model.Donation
	amount := b.baseAmount
	at := start.AddDate(0, 0, rng.Intn(30))
	for at.Before(end) {
		gift := model.Donation{
			Amount: round2(amount * (0.85 + rng.Float64()*0.3)),
			Date:   at,
		}
		if gift.Amount < 1 {
			gift.Amount = 1
		}
		if at.After(now) {
			future = append(future, gift)
		} else {
			past = append(past, gift)
		}

		if rng.Float64() < b.lapseRisk {
			break
		}
		amount *= b.growth
		gap := b.cadence * (0.6 + rng.Float64()*0.8)
		at = at.AddDate(0, 0, int(gap)+1)
	}

	d := model.Donor{
		ID: fmt.Sprintf("donor-%04d", idx),
		Attributes: map[string]model.Value{
			"age_bracket":       model.String(ageBrackets[rng.Intn(len(ageBrackets))]),
			"region":            model.String(regions[rng.Intn(len(regions))]),
			"preferred_channel": model.String(channels[rng.Intn(len(channels))]),
			"engagement_score":  model.Number(round2(engagement)),
			"email_subscriber":  model.Boolean(rng.Float64() < 0.7),
		},
		Donations: past,
	}
	return d, future
}

// buildDataset labels each donor's feature snapshot at now with what their
// simulated future holds, matching how live outcomes are judged.
func buildDataset(donors []model.Donor, futures [][]model.Donation, typ model.ModelType, now time.Time) *model.TrainingDataSet {
	ds := &model.TrainingDataSet{
		DateRange: model.DateRange{From: now.AddDate(0, 0, -1080), To: now},
	}

	for i, d := range donors {
		target, ok := labelFor(typ, d, futures[i], now)
		if !ok {
			continue
		}
		ds.Samples = append(ds.Samples, model.Sample{
			Features: features.AsValues(features.Extract(d, now)),
			Target:   target,
		})
	}
	return ds
}

// labelFor derives the training target from the donor's future gifts. The
// second return is false when the type has no defined target for this donor,
// such as a next gift amount for someone who never gives again.
func labelFor(typ model.ModelType, d model.Donor, future []model.Donation, now time.Time) (float64, bool) {
	switch typ {
	case model.TypeNextAmount:
		if len(future) == 0 {
			return 0, false
		}
		return future[0].Amount, true
	case model.TypeNextTiming:
		if len(future) == 0 {
			return 0, false
		}
		return float64(int(future[0].Date.Sub(now).Hours() / 24)), true
	case model.TypeChurnRisk:
		if len(future) == 0 || future[0].Date.Sub(now) > 365*24*time.Hour {
			return 1, true
		}
		return 0, true
	case model.TypeLifetimeValue:
		total := 0.0
		for _, g := range d.Donations {
			total += g.Amount
		}
		for _, g := range future {
			total += g.Amount
		}
		return round2(total), true
	default:
		return 0, false
	}
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func round2(f float64) float64 {
	return float64(int(f*100+0.5)) / 100
}
