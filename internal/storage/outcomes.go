package storage

import (
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"donorsense/internal/model"
)

const outcomesBucket = "outcomes" // Bucket name for observed outcomes, keyed by model id + timestamp

// SaveOutcome stores an observed outcome for a prior prediction. Outcomes
// are keyed by model id and observation timestamp so that performance
// evaluation can scan a model's recent history in one range query.
func (s *Store) SaveOutcome(o model.Outcome) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(outcomesBucket))

		data, err := json.Marshal(o)
		if err != nil {
			return fmt.Errorf("marshal outcome: %w", err)
		}
		key := fmt.Sprintf("%s_%d", o.ModelID, o.ObservedAt.UnixNano())
		return b.Put([]byte(key), data)
	})
}

// OutcomesInRange retrieves observed outcomes for a model within a time
// range, oldest first.
func (s *Store) OutcomesInRange(modelID string, start, end time.Time) ([]model.Outcome, error) {
	records, err := s.getRecordsInRange(outcomesBucket, modelID, start, end, func(data []byte) (interface{}, error) {
		var o model.Outcome
		err := json.Unmarshal(data, &o)
		return o, err
	})
	if err != nil {
		return nil, err
	}

	outcomes := make([]model.Outcome, len(records))
	for i, record := range records {
		outcomes[i] = record.(model.Outcome)
	}
	return outcomes, nil
}

// CountOutcomes reports how many outcomes a model has accumulated inside
// the window. Used to decide whether observed performance is meaningful
// before comparing it against training metrics.
func (s *Store) CountOutcomes(modelID string, start, end time.Time) (int, error) {
	outcomes, err := s.OutcomesInRange(modelID, start, end)
	if err != nil {
		return 0, err
	}
	return len(outcomes), nil
}
