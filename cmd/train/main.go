package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"

	"donorsense/internal/evaluation"
	"donorsense/internal/model"
	"donorsense/internal/registry"
	"donorsense/internal/storage"
	"donorsense/internal/training"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	// Parse command line arguments
	var (
		datasetPath = flag.String("dataset", "", "Path to labeled JSON dataset (required)")
		name        = flag.String("name", "", "Model name (required)")
		modelType   = flag.String("type", "next_donation_amount", "Prediction type: next_donation_amount, next_donation_timing, churn_risk, lifetime_value, campaign_response_likelihood, upgrade_probability")
		algorithm   = flag.String("algorithm", "linear_regression", "Algorithm: linear_regression, logistic_regression, random_forest, gradient_boosting, neural_network")
		featureList = flag.String("features", "", "Comma-separated feature names (defaults to every feature in the dataset)")
		split       = flag.Float64("split", 0, "Validation split fraction (0 uses the default)")
		dataPath    = flag.String("data", "data", "Path to the engine data directory")
		outputPath  = flag.String("output", "reports", "Output directory for evaluation reports")
		logLevel    = flag.String("log-level", "info", "Log level: debug, info, warn, error")
	)
	flag.Parse()

	// Setup logging
	level, err := zerolog.ParseLevel(*logLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	if *datasetPath == "" || *name == "" {
		flag.Usage()
		os.Exit(2)
	}

	// Print configuration
	fmt.Println("=== Training Configuration ===")
	fmt.Printf("Dataset: %s\n", *datasetPath)
	fmt.Printf("Model Name: %s\n", *name)
	fmt.Printf("Type: %s\n", *modelType)
	fmt.Printf("Algorithm: %s\n", *algorithm)
	fmt.Printf("Data Path: %s\n", *dataPath)
	fmt.Printf("Output Directory: %s\n", *outputPath)
	fmt.Println("==============================")

	ds, err := evaluation.LoadDataSet(*datasetPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load dataset")
	}

	features := parseFeatures(*featureList)
	if len(features) == 0 {
		features = ds.CanonicalFeatures()
		sort.Strings(features)
	}

	store, err := storage.New(*dataPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open data directory")
	}
	defer store.Close()

	reg := registry.New(store, nil)
	trainer := training.NewTrainer(reg, nil, 0)

	config := model.TrainingConfig{
		Name:            *name,
		Type:            model.ModelType(*modelType),
		Algorithm:       model.Algorithm(*algorithm),
		Features:        features,
		ValidationSplit: *split,
	}

	log.Info().
		Int("samples", len(ds.Samples)).
		Int("features", len(features)).
		Msg("Starting training run...")

	result, err := trainer.Train(context.Background(), config, ds)
	if err != nil {
		log.Fatal().Err(err).Msg("Training failed")
	}

	// Score the fitted model against the full dataset, broken down by
	// donor value tier.
	breakdown, err := evaluation.OnDataset(result.Model, ds)
	if err != nil {
		log.Fatal().Err(err).Msg("Evaluation failed")
	}

	reporter := evaluation.NewReporter(result, breakdown, *outputPath)
	if err := reporter.GenerateReport(); err != nil {
		log.Error().Err(err).Msg("Failed to generate reports")
	}

	// Print summary to console
	reporter.PrintSummary()

	log.Info().
		Str("model_id", result.Model.ID).
		Str("output", *outputPath).
		Msg("Training completed successfully")
}

// parseFeatures parses comma-separated feature names
func parseFeatures(features string) []string {
	var result []string
	for _, f := range strings.Split(features, ",") {
		f = strings.TrimSpace(f)
		if f != "" {
			result = append(result, f)
		}
	}
	return result
}
