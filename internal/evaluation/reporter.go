package evaluation

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/rs/zerolog/log"

	"donorsense/internal/model"
)

// Reporter renders a training run and its dataset evaluation into files an
// operator can read and diff between runs.
type Reporter struct {
	result     *model.TrainingResult
	breakdown  model.PerformanceBreakdown
	outputPath string
}

// NewReporter creates a reporter writing into outputPath.
func NewReporter(result *model.TrainingResult, breakdown model.PerformanceBreakdown, outputPath string) *Reporter {
	return &Reporter{
		result:     result,
		breakdown:  breakdown,
		outputPath: outputPath,
	}
}

// GenerateReport writes every report format.
func (r *Reporter) GenerateReport() error {
	if err := os.MkdirAll(r.outputPath, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	if err := r.generateSummary(); err != nil {
		return err
	}
	if err := r.generateImportanceCSV(); err != nil {
		return err
	}
	if err := r.generateJSONReport(); err != nil {
		return err
	}
	return nil
}

// generateSummary writes the human-readable evaluation summary.
func (r *Reporter) generateSummary() error {
	summaryPath := filepath.Join(r.outputPath, "evaluation_summary.txt")
	file, err := os.Create(summaryPath)
	if err != nil {
		return fmt.Errorf("create summary file: %w", err)
	}
	defer file.Close()

	m := r.result.Model

	fmt.Fprintf(file, "MODEL EVALUATION SUMMARY\n")
	fmt.Fprintf(file, "========================\n\n")

	fmt.Fprintf(file, "Model: %s (%s)\n", m.Name, m.ID)
	fmt.Fprintf(file, "Type: %s\n", m.Type)
	fmt.Fprintf(file, "Algorithm: %s\n", m.Algorithm)
	fmt.Fprintf(file, "Version: %d\n", m.Version)
	fmt.Fprintf(file, "Trained: %s (%d samples, %s)\n\n",
		m.LastTrainedAt.Format("2006-01-02 15:04:05"),
		m.TrainingData.SampleSize,
		r.result.Duration.Round(time.Millisecond))

	fmt.Fprintf(file, "METRICS\n")
	fmt.Fprintf(file, "-------\n")
	for _, k := range sortedKeys(r.result.Metrics) {
		fmt.Fprintf(file, "%s: %.4f\n", k, r.result.Metrics[k])
	}
	fmt.Fprintf(file, "\nCONVERGENCE\n")
	fmt.Fprintf(file, "-----------\n")
	fmt.Fprintf(file, "Converged: %v\n", r.result.Convergence.Converged)
	fmt.Fprintf(file, "Iterations: %d\n", r.result.Convergence.Iterations)
	fmt.Fprintf(file, "Final Loss: %.6f\n\n", r.result.Convergence.FinalLoss)

	fmt.Fprintf(file, "FEATURE IMPORTANCES\n")
	fmt.Fprintf(file, "-------------------\n")
	for _, imp := range r.result.Importances {
		fmt.Fprintf(file, "%2d. %s: %.4f\n", imp.Rank, imp.Feature, imp.Importance)
	}

	if len(r.breakdown.BySegment) > 0 {
		fmt.Fprintf(file, "\nPERFORMANCE BY DONOR VALUE TIER\n")
		fmt.Fprintf(file, "-------------------------------\n")
		for _, tier := range []string{SegmentLow, SegmentMid, SegmentHigh} {
			scores, ok := r.breakdown.BySegment[tier]
			if !ok {
				continue
			}
			fmt.Fprintf(file, "%s:", tier)
			for _, k := range sortedKeys(scores) {
				fmt.Fprintf(file, " %s=%.4f", k, scores[k])
			}
			fmt.Fprintf(file, "\n")
		}
	}

	log.Info().Str("file", summaryPath).Msg("Summary report generated")
	return nil
}

// generateImportanceCSV writes the ranked importances for spreadsheet use.
func (r *Reporter) generateImportanceCSV() error {
	csvPath := filepath.Join(r.outputPath, "feature_importances.csv")
	file, err := os.Create(csvPath)
	if err != nil {
		return fmt.Errorf("create importance report: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	if err := writer.Write([]string{"Rank", "Feature", "Importance"}); err != nil {
		return err
	}
	for _, imp := range r.result.Importances {
		record := []string{
			fmt.Sprintf("%d", imp.Rank),
			imp.Feature,
			fmt.Sprintf("%.6f", imp.Importance),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	log.Info().Str("file", csvPath).Msg("Importance report generated")
	return nil
}

// generateJSONReport writes the full result for machine consumption.
func (r *Reporter) generateJSONReport() error {
	jsonPath := filepath.Join(r.outputPath, "evaluation_result.json")

	report := map[string]interface{}{
		"model":        r.result.Model,
		"metrics":      r.result.Metrics,
		"importances":  r.result.Importances,
		"convergence":  r.result.Convergence,
		"breakdown":    r.breakdown,
		"generated_at": time.Now().UTC(),
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("encode JSON report: %w", err)
	}
	if err := os.WriteFile(jsonPath, data, 0o644); err != nil {
		return fmt.Errorf("write JSON report: %w", err)
	}

	log.Info().Str("file", jsonPath).Msg("JSON report generated")
	return nil
}

// PrintSummary prints the headline numbers to the console.
func (r *Reporter) PrintSummary() {
	m := r.result.Model

	fmt.Println("\n=== MODEL EVALUATION ===")
	fmt.Printf("Model: %s (%s v%d)\n", m.Name, m.Type, m.Version)
	fmt.Printf("Algorithm: %s\n", m.Algorithm)
	fmt.Printf("Samples: %d\n", m.TrainingData.SampleSize)
	for _, k := range sortedKeys(r.result.Metrics) {
		fmt.Printf("%s: %.4f\n", k, r.result.Metrics[k])
	}
	fmt.Printf("Converged: %v after %d iterations\n",
		r.result.Convergence.Converged, r.result.Convergence.Iterations)
	fmt.Println("========================")
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
