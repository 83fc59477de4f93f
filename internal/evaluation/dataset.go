// Package evaluation holds the offline tooling around training runs:
// dataset files, dataset-level scoring and report rendering for the CLI.
package evaluation

import (
	"encoding/json"
	"fmt"
	"os"

	"donorsense/internal/model"
)

// LoadDataSet reads a JSON training dataset from disk.
func LoadDataSet(path string) (*model.TrainingDataSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read dataset: %w", err)
	}
	var ds model.TrainingDataSet
	if err := json.Unmarshal(data, &ds); err != nil {
		return nil, fmt.Errorf("parse dataset %s: %w", path, err)
	}
	if len(ds.Samples) == 0 {
		return nil, model.Validationf("dataset", "file %s holds no samples", path)
	}
	return &ds, nil
}

// SaveDataSet writes a dataset as indented JSON.
func SaveDataSet(path string, ds *model.TrainingDataSet) error {
	data, err := json.MarshalIndent(ds, "", "  ")
	if err != nil {
		return fmt.Errorf("encode dataset: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write dataset: %w", err)
	}
	return nil
}
