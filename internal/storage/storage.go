// Package storage provides persistent data storage for the prediction
// engine. It uses BoltDB as the underlying storage engine to store model
// definitions, performance reports, monitoring alerts, and observed
// outcome samples.
//
// The package provides thread-safe operations for storing and retrieving
// time-series data with efficient range queries and automatic bucket
// management.
package storage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"go.etcd.io/bbolt"

	"donorsense/internal/model"
)

const (
	modelsBucket  = "models"  // Bucket name for model definitions, keyed by id
	reportsBucket = "reports" // Bucket name for performance reports, keyed by model id + timestamp
	alertsBucket  = "alerts"  // Bucket name for monitoring alerts, keyed by model id + timestamp
)

// Store provides persistent storage for engine data using BoltDB.
type Store struct {
	db *bbolt.DB
}

// New creates a new storage instance with the specified data path.
// It initializes the BoltDB database and creates necessary buckets.
func New(dataPath string) (*Store, error) {
	dbPath := filepath.Join(dataPath, "donorsense-data.db")

	db, err := bbolt.Open(dbPath, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range []string{modelsBucket, reportsBucket, alertsBucket, outcomesBucket} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return fmt.Errorf("create %s bucket: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close closes the database connection gracefully.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// SaveModel persists a model definition, overwriting any previous state
// for the same id.
func (s *Store) SaveModel(m *model.PredictionModel) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(modelsBucket))

		data, err := json.Marshal(m)
		if err != nil {
			return fmt.Errorf("marshal model: %w", err)
		}
		return b.Put([]byte(m.ID), data)
	})
}

// GetModel loads one model by id. Returns nil without error when the id is
// unknown.
func (s *Store) GetModel(id string) (*model.PredictionModel, error) {
	var out *model.PredictionModel
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(modelsBucket))
		data := b.Get([]byte(id))
		if data == nil {
			return nil
		}
		var m model.PredictionModel
		if err := json.Unmarshal(data, &m); err != nil {
			return fmt.Errorf("unmarshal model %s: %w", id, err)
		}
		out = &m
		return nil
	})
	return out, err
}

// LoadModels returns every persisted model definition.
func (s *Store) LoadModels() ([]*model.PredictionModel, error) {
	var models []*model.PredictionModel
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(modelsBucket))
		return b.ForEach(func(k, v []byte) error {
			var m model.PredictionModel
			if err := json.Unmarshal(v, &m); err != nil {
				return nil // Skip malformed records
			}
			models = append(models, &m)
			return nil
		})
	})
	return models, err
}

// SaveReport stores a performance report keyed by model id and timestamp
// for time-range queries.
func (s *Store) SaveReport(r *model.ModelPerformanceReport) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(reportsBucket))

		data, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("marshal report: %w", err)
		}
		key := fmt.Sprintf("%s_%d", r.ModelID, r.GeneratedAt.UnixNano())
		return b.Put([]byte(key), data)
	})
}

// ReportsInRange retrieves performance reports for a model within a time
// range, oldest first. The range is inclusive of both ends.
func (s *Store) ReportsInRange(modelID string, start, end time.Time) ([]model.ModelPerformanceReport, error) {
	records, err := s.getRecordsInRange(reportsBucket, modelID, start, end, func(data []byte) (interface{}, error) {
		var r model.ModelPerformanceReport
		err := json.Unmarshal(data, &r)
		return r, err
	})
	if err != nil {
		return nil, err
	}

	reports := make([]model.ModelPerformanceReport, len(records))
	for i, record := range records {
		reports[i] = record.(model.ModelPerformanceReport)
	}
	return reports, nil
}

// LatestReport returns the most recent report for a model, or nil when
// none has been stored.
func (s *Store) LatestReport(modelID string) (*model.ModelPerformanceReport, error) {
	var out *model.ModelPerformanceReport
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(reportsBucket))
		c := b.Cursor()
		prefix := []byte(modelID + "_")

		var latest []byte
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			latest = v
		}
		if latest == nil {
			return nil
		}
		var r model.ModelPerformanceReport
		if err := json.Unmarshal(latest, &r); err != nil {
			return fmt.Errorf("unmarshal report: %w", err)
		}
		out = &r
		return nil
	})
	return out, err
}

// SaveAlert stores a monitoring alert keyed by model id and timestamp.
func (s *Store) SaveAlert(a model.Alert) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(alertsBucket))

		data, err := json.Marshal(a)
		if err != nil {
			return fmt.Errorf("marshal alert: %w", err)
		}
		key := fmt.Sprintf("%s_%d", a.ModelID, a.CreatedAt.UnixNano())
		return b.Put([]byte(key), data)
	})
}

// RecentAlerts returns alerts across all models since the cutoff, newest
// first, capped at limit. Keys are grouped by model id, so this scans the
// whole bucket; alert volume stays small enough for that.
func (s *Store) RecentAlerts(since time.Time, limit int) ([]model.Alert, error) {
	var alerts []model.Alert
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(alertsBucket))
		return b.ForEach(func(k, v []byte) error {
			var a model.Alert
			if err := json.Unmarshal(v, &a); err != nil {
				return nil // Skip malformed records
			}
			if a.CreatedAt.Before(since) {
				return nil
			}
			alerts = append(alerts, a)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(alerts, func(i, j int) bool { return alerts[i].CreatedAt.After(alerts[j].CreatedAt) })
	if limit > 0 && len(alerts) > limit {
		alerts = alerts[:limit]
	}
	return alerts, nil
}

// AlertsInRange retrieves alerts for a model within a time range.
func (s *Store) AlertsInRange(modelID string, start, end time.Time) ([]model.Alert, error) {
	records, err := s.getRecordsInRange(alertsBucket, modelID, start, end, func(data []byte) (interface{}, error) {
		var a model.Alert
		err := json.Unmarshal(data, &a)
		return a, err
	})
	if err != nil {
		return nil, err
	}

	alerts := make([]model.Alert, len(records))
	for i, record := range records {
		alerts[i] = record.(model.Alert)
	}
	return alerts, nil
}

// getRecordsInRange is a generic function to retrieve records from a bucket
// within a time range. It uses BoltDB cursors for efficient range scanning
// and applies the provided unmarshal function to deserialize each record.
func (s *Store) getRecordsInRange(bucketName, prefix string, start, end time.Time, unmarshalFunc func([]byte) (interface{}, error)) ([]interface{}, error) {
	var records []interface{}

	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		c := b.Cursor()

		keyPrefix := []byte(prefix + "_")
		startKey := []byte(fmt.Sprintf("%s_%d", prefix, start.UnixNano()))
		endKey := []byte(fmt.Sprintf("%s_%d", prefix, end.UnixNano()))

		for k, v := c.Seek(startKey); k != nil && compareKeys(k, endKey) <= 0; k, v = c.Next() {
			if !hasPrefix(k, keyPrefix) {
				continue
			}

			record, err := unmarshalFunc(v)
			if err != nil {
				continue // Skip malformed records
			}
			records = append(records, record)
		}

		return nil
	})

	return records, err
}

func hasPrefix(data, prefix []byte) bool {
	return bytes.HasPrefix(data, prefix)
}

func compareKeys(a, b []byte) int {
	return bytes.Compare(a, b)
}
