// Package registry holds the live catalog of prediction models. Reads are
// lock-free against an immutable snapshot; writes are serialized and
// publish a new snapshot atomically, so readers never observe a partially
// updated model.
package registry

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"donorsense/internal/metrics"
	"donorsense/internal/model"
	"donorsense/internal/storage"
)

// snapshot is an immutable view of the catalog. Models inside a snapshot
// are shared across readers and must not be mutated; every write path
// installs fresh copies.
type snapshot struct {
	byID map[string]*model.PredictionModel
}

// Registry is the model catalog. Models are never removed, only moved to
// the retired status.
type Registry struct {
	mu   sync.Mutex // serializes writers
	snap atomic.Pointer[snapshot]

	store *storage.Store
	mw    *metrics.MetricsWrapper
}

// New creates a registry, loading any persisted models from the store.
// Both store and mw may be nil, which disables persistence and the
// metrics census respectively.
func New(store *storage.Store, mw *metrics.MetricsWrapper) *Registry {
	r := &Registry{store: store, mw: mw}

	byID := make(map[string]*model.PredictionModel)
	if store != nil {
		models, err := store.LoadModels()
		if err != nil {
			log.Warn().Err(err).Msg("Failed to load persisted models, starting fresh")
		}
		for _, m := range models {
			byID[m.ID] = m
		}
		if len(byID) > 0 {
			log.Info().Int("models", len(byID)).Msg("Loaded model catalog")
		}
	}

	r.snap.Store(&snapshot{byID: byID})
	r.publishCensus(time.Now())
	return r
}

// Register adds a model or replaces the entry with the same id. The model
// is persisted before the new snapshot becomes visible.
func (r *Registry) Register(m *model.PredictionModel) error {
	if m == nil {
		return model.Validationf("model", "must not be nil")
	}
	if m.ID == "" {
		return model.Validationf("id", "must not be empty")
	}
	if !m.Type.Valid() {
		return model.Validationf("type", "unknown model type %q", m.Type)
	}
	if !m.Status.Valid() {
		return model.Validationf("status", "unknown status %q", m.Status)
	}

	cp := *m

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.store != nil {
		if err := r.store.SaveModel(&cp); err != nil {
			return fmt.Errorf("persist model %s: %w", cp.ID, err)
		}
	}

	r.swap(func(byID map[string]*model.PredictionModel) {
		byID[cp.ID] = &cp
	})

	log.Info().
		Str("model", cp.ID).
		Str("type", string(cp.Type)).
		Str("algorithm", string(cp.Algorithm)).
		Int("version", cp.Version).
		Msg("Model registered")

	r.publishCensus(time.Now())
	return nil
}

// Get returns the model with the given id, or nil when the id is unknown.
// The returned model is shared with other readers and must be treated as
// read-only.
func (r *Registry) Get(id string) *model.PredictionModel {
	return r.snap.Load().byID[id]
}

// All returns every model, newest training first.
func (r *Registry) All() []*model.PredictionModel {
	snap := r.snap.Load()
	out := make([]*model.PredictionModel, 0, len(snap.byID))
	for _, m := range snap.byID {
		out = append(out, m)
	}
	sortByTraining(out)
	return out
}

// ByType returns every model of the given type regardless of status,
// newest training first.
func (r *Registry) ByType(t model.ModelType) []*model.PredictionModel {
	snap := r.snap.Load()
	var out []*model.PredictionModel
	for _, m := range snap.byID {
		if m.Type == t {
			out = append(out, m)
		}
	}
	sortByTraining(out)
	return out
}

// ActiveByType returns models of the given type that are eligible to
// serve predictions, newest training first.
func (r *Registry) ActiveByType(t model.ModelType) []*model.PredictionModel {
	snap := r.snap.Load()
	var out []*model.PredictionModel
	for _, m := range snap.byID {
		if m.Type == t && m.Status == model.StatusActive {
			out = append(out, m)
		}
	}
	sortByTraining(out)
	return out
}

// LatestVersion reports the highest version registered under a model name
// and type. Returns 0 when no such model exists.
func (r *Registry) LatestVersion(name string, t model.ModelType) int {
	snap := r.snap.Load()
	latest := 0
	for _, m := range snap.byID {
		if m.Name == name && m.Type == t && m.Version > latest {
			latest = m.Version
		}
	}
	return latest
}

// SetStatus transitions a model to a new status. Unknown ids are an
// error on this write path.
func (r *Registry) SetStatus(id string, status model.ModelStatus) error {
	if !status.Valid() {
		return model.Validationf("status", "unknown status %q", status)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	cur := r.snap.Load().byID[id]
	if cur == nil {
		return &model.LookupError{Kind: "model", ID: id}
	}
	if cur.Status == status {
		return nil
	}

	cp := *cur
	cp.Status = status

	if r.store != nil {
		if err := r.store.SaveModel(&cp); err != nil {
			return fmt.Errorf("persist model %s: %w", id, err)
		}
	}

	r.swap(func(byID map[string]*model.PredictionModel) {
		byID[id] = &cp
	})

	log.Info().
		Str("model", id).
		Str("from", string(cur.Status)).
		Str("to", string(status)).
		Msg("Model status changed")

	r.publishCensus(time.Now())
	return nil
}

// Census counts active and retraining-flagged models and the age of the
// oldest non-retired model at the given instant.
func (r *Registry) Census(now time.Time) (active, needsRetraining int, oldestAge time.Duration) {
	snap := r.snap.Load()
	for _, m := range snap.byID {
		switch m.Status {
		case model.StatusActive:
			active++
		case model.StatusNeedsRetraining:
			needsRetraining++
		default:
			continue
		}
		if age := m.Age(now); age > oldestAge {
			oldestAge = age
		}
	}
	return active, needsRetraining, oldestAge
}

// swap clones the current snapshot, applies the mutation, and installs
// the result. Callers must hold r.mu.
func (r *Registry) swap(mutate func(map[string]*model.PredictionModel)) {
	old := r.snap.Load()
	byID := make(map[string]*model.PredictionModel, len(old.byID)+1)
	for k, v := range old.byID {
		byID[k] = v
	}
	mutate(byID)
	r.snap.Store(&snapshot{byID: byID})
}

func (r *Registry) publishCensus(now time.Time) {
	if r.mw == nil {
		return
	}
	active, needsRetraining, oldest := r.Census(now)
	r.mw.RegistryCounts(active, needsRetraining, oldest.Seconds())
}

func sortByTraining(models []*model.PredictionModel) {
	sort.Slice(models, func(i, j int) bool {
		if models[i].LastTrainedAt.Equal(models[j].LastTrainedAt) {
			return models[i].ID < models[j].ID
		}
		return models[i].LastTrainedAt.After(models[j].LastTrainedAt)
	})
}
