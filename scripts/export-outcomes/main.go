package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math"
	"os"
	"time"

	bolt "go.etcd.io/bbolt"

	"donorsense/internal/model"
)

// OutcomeRecord flattens a stored outcome for offline analysis tooling.
type OutcomeRecord struct {
	ObservedAt int64   `json:"observed_at"`
	DonorID    string  `json:"donor_id"`
	ModelID    string  `json:"model_id"`
	Type       string  `json:"type"`
	Predicted  float64 `json:"predicted"`
	Actual     float64 `json:"actual"`
	Error      float64 `json:"error"`
	Segment    string  `json:"segment,omitempty"`
}

func main() {
	var (
		dbPath     = flag.String("db", "data/donorsense-data.db", "Path to BoltDB database")
		outputPath = flag.String("output", "scripts/outcomes.json", "Output JSON file path")
		modelID    = flag.String("model", "", "Model id to export (empty for all)")
		days       = flag.Int("days", 30, "Number of days to export (0 for all)")
	)
	flag.Parse()

	log.Printf("Exporting outcomes from %s to %s", *dbPath, *outputPath)
	if *modelID != "" {
		log.Printf("Filtering by model: %s", *modelID)
	}
	if *days > 0 {
		log.Printf("Exporting last %d days", *days)
	}

	// Open BoltDB
	db, err := bolt.Open(*dbPath, 0600, &bolt.Options{ReadOnly: true})
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	var cutoff time.Time
	if *days > 0 {
		cutoff = time.Now().AddDate(0, 0, -*days)
	}

	var records []OutcomeRecord
	err = db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte("outcomes"))
		if b == nil {
			return fmt.Errorf("outcomes bucket not found")
		}

		c := b.Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var o model.Outcome
			if err := json.Unmarshal(v, &o); err != nil {
				log.Printf("Failed to unmarshal outcome: %v", err)
				continue
			}

			if !cutoff.IsZero() && o.ObservedAt.Before(cutoff) {
				continue
			}
			if *modelID != "" && o.ModelID != *modelID {
				continue
			}

			records = append(records, OutcomeRecord{
				ObservedAt: o.ObservedAt.Unix(),
				DonorID:    o.DonorID,
				ModelID:    o.ModelID,
				Type:       string(o.Type),
				Predicted:  o.Predicted,
				Actual:     o.Actual,
				Error:      math.Abs(o.Predicted - o.Actual),
				Segment:    o.Segment,
			})
		}
		return nil
	})
	if err != nil {
		log.Fatalf("Failed to read from database: %v", err)
	}

	if len(records) == 0 {
		log.Println("Warning: No outcomes found matching criteria")
	}

	// Write to JSON file (newline-delimited format for notebook compatibility)
	outputFile, err := os.Create(*outputPath)
	if err != nil {
		log.Fatalf("Failed to create output file: %v", err)
	}
	defer outputFile.Close()

	encoder := json.NewEncoder(outputFile)
	for _, record := range records {
		if err := encoder.Encode(record); err != nil {
			log.Fatalf("Failed to write JSON record: %v", err)
		}
	}

	log.Printf("Successfully exported %d outcomes to %s", len(records), *outputPath)

	// Print some statistics
	if len(records) > 0 {
		counts := make(map[string]int)
		errSums := make(map[string]float64)
		for _, r := range records {
			counts[r.ModelID]++
			errSums[r.ModelID] += r.Error
		}

		log.Println("Outcomes by model:")
		for id, count := range counts {
			log.Printf("  %s: %d (mean abs error %.3f)", id, count, errSums[id]/float64(count))
		}
	}
}
