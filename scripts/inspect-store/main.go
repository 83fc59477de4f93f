package main

import (
	"flag"
	"fmt"
	"log"
	"strings"
	"time"

	"donorsense/internal/storage"
)

func main() {
	var dataPath = flag.String("data", "./data", "Data directory path")
	flag.Parse()

	fmt.Printf("Inspecting data in: %s\n", *dataPath)

	// Open storage
	store, err := storage.New(*dataPath)
	if err != nil {
		log.Fatalf("Failed to open storage: %v", err)
	}
	defer store.Close()

	models, err := store.LoadModels()
	if err != nil {
		log.Fatalf("Failed to load models: %v", err)
	}

	now := time.Now().UTC()
	fmt.Printf("\nModel catalog (%d entries)\n", len(models))
	fmt.Println(strings.Repeat("=", 60))

	totalOutcomes := 0
	for _, m := range models {
		fmt.Printf("📊 %s (%s)\n", m.ID, m.Name)
		fmt.Printf("   Type: %s, Algorithm: %s, Status: %s, Version: %d\n", m.Type, m.Algorithm, m.Status, m.Version)
		fmt.Printf("   Trained: %s (%.0f days ago), Samples: %d\n",
			m.LastTrainedAt.Format("2006-01-02 15:04:05"), m.Age(now).Hours()/24, m.TrainingData.SampleSize)

		if report, err := store.LatestReport(m.ID); err == nil && report != nil {
			fmt.Printf("   Last report: %s, %d recommendations, %d alerts\n",
				report.GeneratedAt.Format("2006-01-02 15:04:05"), len(report.Recommendations), len(report.Alerts))
		}

		outcomes, err := store.CountOutcomes(m.ID, now.AddDate(0, 0, -30), now)
		if err != nil {
			fmt.Printf("   Error counting outcomes: %v\n", err)
			continue
		}
		fmt.Printf("   Outcomes (30d): %d\n", outcomes)
		totalOutcomes += outcomes

		fmt.Println()
	}

	alerts, err := store.RecentAlerts(now.AddDate(0, 0, -7), 20)
	if err != nil {
		log.Fatalf("Failed to load alerts: %v", err)
	}
	fmt.Printf("Recent alerts (7d): %d\n", len(alerts))
	for _, a := range alerts {
		fmt.Printf("   [%s] %s %s: %s\n", a.Severity, a.CreatedAt.Format("2006-01-02 15:04"), a.Type, a.Message)
	}

	fmt.Printf("\n📈 TOTAL: %d models, %d outcomes in the last 30 days\n", len(models), totalOutcomes)

	if len(models) > 0 {
		fmt.Println("✅ Store contains trained models - the engine can serve predictions")
	} else {
		fmt.Println("⚠️  No models found - train one with cmd/train or the API first")
	}
}
