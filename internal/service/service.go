// Package service wires the engine's parts into the operations the API
// and daemon expose: training, prediction, ensembles, evaluation, outcome
// recording and operational insights.
package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"donorsense/internal/common"
	"donorsense/internal/donors"
	"donorsense/internal/ensemble"
	"donorsense/internal/evaluation"
	"donorsense/internal/features"
	"donorsense/internal/metrics"
	"donorsense/internal/model"
	"donorsense/internal/monitor"
	"donorsense/internal/predict"
	"donorsense/internal/registry"
	"donorsense/internal/storage"
	"donorsense/internal/stream"
	"donorsense/internal/training"
)

// Job states reported through insights.
const (
	JobQueued    = "queued"
	JobCompleted = "completed"
	JobFailed    = "failed"
)

const (
	maxTrackedJobs   = 64
	alertLookback    = 7 * 24 * time.Hour
	maxInsightAlerts = 20
)

// JobStatus tracks one queued training job from submission to completion.
type JobStatus struct {
	ID          string          `json:"id"`
	Type        model.ModelType `json:"type"`
	Algorithm   model.Algorithm `json:"algorithm"`
	State       string          `json:"state"`
	ModelID     string          `json:"model_id,omitempty"`
	Error       string          `json:"error,omitempty"`
	SubmittedAt time.Time       `json:"submitted_at"`
	FinishedAt  *time.Time      `json:"finished_at,omitempty"`
}

// Deps lists what the facade is built from. Donors and Feed are optional;
// without them feature resolution requires explicit request features and
// the stream section of insights reports unconfigured.
type Deps struct {
	Registry  *registry.Registry
	Store     *storage.Store
	Trainer   *training.Trainer
	Queue     *training.Queue
	Engine    *predict.Engine
	Combiner  *ensemble.Combiner
	Evaluator *monitor.Evaluator
	Window    *features.Window
	Donors    *donors.Client
	Feed      *stream.WS
	Metrics   *metrics.MetricsWrapper
}

// Service exposes the engine operations behind one facade.
type Service struct {
	reg       *registry.Registry
	store     *storage.Store
	trainer   *training.Trainer
	queue     *training.Queue
	engine    *predict.Engine
	combiner  *ensemble.Combiner
	evaluator *monitor.Evaluator
	window    *features.Window
	donors    *donors.Client
	feed      *stream.WS
	mw        *metrics.MetricsWrapper

	jobMu sync.Mutex
	jobs  map[string]*JobStatus
}

func New(d Deps) *Service {
	return &Service{
		reg:       d.Registry,
		store:     d.Store,
		trainer:   d.Trainer,
		queue:     d.Queue,
		engine:    d.Engine,
		combiner:  d.Combiner,
		evaluator: d.Evaluator,
		window:    d.Window,
		donors:    d.Donors,
		feed:      d.Feed,
		mw:        d.Metrics,
		jobs:      make(map[string]*JobStatus),
	}
}

// TrainModel runs one training job synchronously and returns its result.
func (s *Service) TrainModel(ctx context.Context, cfg model.TrainingConfig, ds *model.TrainingDataSet) (*model.TrainingResult, error) {
	return s.trainer.Train(ctx, cfg, ds)
}

// TrainModelAsync queues a training job and returns its id immediately.
// Completion is visible through Insights.
func (s *Service) TrainModelAsync(cfg model.TrainingConfig, ds *model.TrainingDataSet) (string, error) {
	if s.queue == nil {
		return "", fmt.Errorf("training queue not configured")
	}
	id, done, err := s.queue.Submit(cfg, ds)
	if err != nil {
		return "", err
	}

	st := &JobStatus{
		ID:          id,
		Type:        cfg.Type,
		Algorithm:   cfg.Algorithm,
		State:       JobQueued,
		SubmittedAt: time.Now().UTC(),
	}
	s.trackJob(st)
	go s.watchJob(st, done)
	return id, nil
}

func (s *Service) watchJob(st *JobStatus, done <-chan training.Result) {
	res := <-done

	s.jobMu.Lock()
	defer s.jobMu.Unlock()
	now := time.Now().UTC()
	st.FinishedAt = &now
	if res.Err != nil {
		st.State = JobFailed
		st.Error = res.Err.Error()
		return
	}
	st.State = JobCompleted
	st.ModelID = res.Result.Model.ID
}

func (s *Service) trackJob(st *JobStatus) {
	s.jobMu.Lock()
	defer s.jobMu.Unlock()
	s.jobs[st.ID] = st
	if len(s.jobs) <= maxTrackedJobs {
		return
	}

	var oldestID string
	var oldestAt time.Time
	for id, j := range s.jobs {
		if j.State == JobQueued {
			continue
		}
		if oldestID == "" || j.SubmittedAt.Before(oldestAt) {
			oldestID = id
			oldestAt = j.SubmittedAt
		}
	}
	if oldestID != "" {
		delete(s.jobs, oldestID)
	}
}

func (s *Service) trackedJobs() []JobStatus {
	s.jobMu.Lock()
	defer s.jobMu.Unlock()
	out := make([]JobStatus, 0, len(s.jobs))
	for _, j := range s.jobs {
		out = append(out, *j)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SubmittedAt.After(out[j].SubmittedAt) })
	return out
}

// PredictRequest asks for predictions about one donor. Features may be
// omitted when a donor datastore is configured; models may name specific
// registered models or be left empty with Type set to use every active
// model of that type.
type PredictRequest struct {
	DonorID  string                 `json:"donor_id"`
	Features map[string]model.Value `json:"features,omitempty"`
	ModelIDs []string               `json:"models,omitempty"`
	Type     model.ModelType        `json:"type,omitempty"`
	Ensemble bool                   `json:"ensemble,omitempty"`
}

// Predict runs the request's models against the donor. Unknown model ids
// are skipped with a warning; the request fails only when nothing can
// answer. With Ensemble set and two or more listed models of one type it
// delegates to the combiner and returns the member predictions.
func (s *Service) Predict(ctx context.Context, req PredictRequest) ([]model.DonorPrediction, error) {
	if req.DonorID == "" {
		return nil, model.Validationf("donor_id", "donor id must not be empty")
	}
	models, err := s.resolveModels(req)
	if err != nil {
		return nil, err
	}
	raw, err := s.resolveFeatures(ctx, req.DonorID, req.Features)
	if err != nil {
		return nil, err
	}

	if req.Ensemble && len(models) >= 2 {
		if t, ok := sharedType(models); ok {
			ep, err := s.combiner.Combine(req.DonorID, t, raw)
			if err == nil {
				return ep.Predictions, nil
			}
			var insufficient *model.InsufficientModelsError
			if !errors.As(err, &insufficient) {
				return nil, err
			}
			log.Debug().Str("type", string(t)).Msg("Ensemble not satisfiable, falling back to per-model predictions")
		}
	}

	out := make([]model.DonorPrediction, 0, len(models))
	var lastErr error
	for _, m := range models {
		p, err := s.engine.Predict(m, req.DonorID, raw)
		if err != nil {
			lastErr = err
			log.Warn().Err(err).Str("model", m.ID).Msg("Prediction failed, skipping model")
			continue
		}
		out = append(out, *p)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("all %d models failed: %w", len(models), lastErr)
	}
	return out, nil
}

// GenerateEnsemblePrediction combines every active model of the type into
// one confidence-weighted prediction for the donor.
func (s *Service) GenerateEnsemblePrediction(ctx context.Context, donorID string, t model.ModelType, feats map[string]model.Value) (*model.EnsemblePrediction, error) {
	if donorID == "" {
		return nil, model.Validationf("donor_id", "donor id must not be empty")
	}
	raw, err := s.resolveFeatures(ctx, donorID, feats)
	if err != nil {
		return nil, err
	}
	return s.combiner.Combine(donorID, t, raw)
}

// EvaluateModelPerformance runs one on-demand monitoring evaluation.
func (s *Service) EvaluateModelPerformance(modelID string) (*model.ModelPerformanceReport, error) {
	m := s.reg.Get(modelID)
	if m == nil {
		return nil, &model.LookupError{Kind: "model", ID: modelID}
	}
	return s.evaluator.Evaluate(m, time.Now().UTC())
}

// GetModels lists every registered model.
func (s *Service) GetModels() []*model.PredictionModel {
	return s.reg.All()
}

// GetModel returns one model, or nil when the id is unknown.
func (s *Service) GetModel(id string) *model.PredictionModel {
	return s.reg.Get(id)
}

// GetDonorPredictions serves the donor's cached predictions, newest first.
// Entries past validUntil are included; callers check validity themselves.
func (s *Service) GetDonorPredictions(donorID string) []model.DonorPrediction {
	return s.engine.DonorPredictions(donorID)
}

// RecordOutcome persists one observed ground-truth value. With no explicit
// model id it joins the donor's freshest cached prediction of the same
// type, so callers do not need to track which model answered.
func (s *Service) RecordOutcome(o model.Outcome) error {
	if o.DonorID == "" {
		return model.Validationf("donor_id", "donor id must not be empty")
	}
	if !o.Type.Valid() {
		return model.Validationf("type", "unknown prediction type %q", o.Type)
	}
	if o.ObservedAt.IsZero() {
		o.ObservedAt = time.Now().UTC()
	}

	if o.ModelID == "" {
		joined := false
		for _, p := range s.engine.DonorPredictions(o.DonorID) {
			if p.Type != o.Type {
				continue
			}
			o.ModelID = p.ModelID
			o.Predicted = p.Prediction
			joined = true
			break
		}
		if !joined {
			return model.Validationf("model_id", "no cached prediction for donor %s and type %s; model_id is required", o.DonorID, o.Type)
		}
	}

	if err := s.store.SaveOutcome(o); err != nil {
		if s.mw != nil {
			s.mw.DatastoreErrorsInc()
		}
		return fmt.Errorf("persist outcome: %w", err)
	}
	if s.mw != nil {
		s.mw.OutcomesRecordedInc()
	}
	log.Debug().
		Str("donor", o.DonorID).
		Str("model", o.ModelID).
		Str("type", string(o.Type)).
		Msg("Outcome recorded")
	return nil
}

// HandleDonation fans one live donation event into the drift window and
// the outcome history of the amount and timing models that had cached
// predictions for the donor.
func (s *Service) HandleDonation(ctx context.Context, ev stream.DonationEvent) {
	segment := ""
	if s.donors != nil && s.window != nil {
		d, err := s.donors.GetDonor(ctx, ev.DonorID)
		if err != nil {
			if s.mw != nil {
				s.mw.DatastoreErrorsInc()
			}
			log.Warn().Err(err).Str("donor", ev.DonorID).Msg("Donor refresh after donation failed")
		} else {
			feats := features.Extract(*d, time.Now().UTC())
			s.window.Add(feats)
			segment = evaluation.SegmentFor(feats["total_donated"], common.DonorLowValueMax, common.DonorHighValueMin)
		}
	}

	for _, p := range s.engine.DonorPredictions(ev.DonorID) {
		var actual float64
		switch p.Type {
		case model.TypeNextAmount:
			actual = ev.Amount
		case model.TypeNextTiming:
			days := ev.OccurredAt.Sub(p.GeneratedAt).Hours() / 24
			if days < 0 {
				days = 0
			}
			actual = math.Round(days)
		default:
			continue
		}

		o := model.Outcome{
			DonorID:    ev.DonorID,
			ModelID:    p.ModelID,
			Type:       p.Type,
			Predicted:  p.Prediction,
			Actual:     actual,
			Segment:    segment,
			ObservedAt: ev.OccurredAt,
		}
		if err := s.store.SaveOutcome(o); err != nil {
			if s.mw != nil {
				s.mw.DatastoreErrorsInc()
			}
			log.Warn().Err(err).Str("donor", ev.DonorID).Str("model", p.ModelID).Msg("Failed to record donation outcome")
			continue
		}
		if s.mw != nil {
			s.mw.OutcomesRecordedInc()
		}
	}
}

// RegistrySummary counts registered models by status and prediction type.
type RegistrySummary struct {
	Total         int            `json:"total"`
	ByStatus      map[string]int `json:"by_status"`
	ByType        map[string]int `json:"by_type"`
	OldestAgeDays float64        `json:"oldest_age_days"`
}

// QueueSummary reports training queue load and tracked jobs.
type QueueSummary struct {
	Depth int         `json:"depth"`
	Jobs  []JobStatus `json:"jobs"`
}

// StreamSummary reports donation feed liveness.
type StreamSummary struct {
	Configured  bool       `json:"configured"`
	Connected   bool       `json:"connected"`
	LastEventAt *time.Time `json:"last_event_at,omitempty"`
}

// Insights is the operational dashboard payload.
type Insights struct {
	GeneratedAt time.Time            `json:"generated_at"`
	Registry    RegistrySummary      `json:"registry"`
	Queue       QueueSummary         `json:"queue"`
	Stream      StreamSummary        `json:"stream"`
	LastPass    *monitor.PassSummary `json:"last_monitor_pass,omitempty"`
	Alerts      []model.Alert        `json:"alerts"`
}

// Insights assembles the operational snapshot served by the API.
func (s *Service) Insights() Insights {
	now := time.Now().UTC()

	byStatus := map[string]int{}
	byType := map[string]int{}
	var oldest time.Duration
	all := s.reg.All()
	for _, m := range all {
		byStatus[string(m.Status)]++
		byType[string(m.Type)]++
		if m.Status == model.StatusRetired {
			continue
		}
		if age := m.Age(now); age > oldest {
			oldest = age
		}
	}

	alerts, err := s.store.RecentAlerts(now.Add(-alertLookback), maxInsightAlerts)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to load recent alerts for insights")
	}

	queue := QueueSummary{Jobs: s.trackedJobs()}
	if s.queue != nil {
		queue.Depth = s.queue.Depth()
	}

	str := StreamSummary{}
	if s.feed != nil {
		str.Configured = true
		str.Connected = s.feed.Connected()
		if last := s.feed.LastEventAt(); !last.IsZero() {
			str.LastEventAt = &last
		}
	}

	var lastPass *monitor.PassSummary
	if s.evaluator != nil {
		lastPass = s.evaluator.LastPass()
	}

	return Insights{
		GeneratedAt: now,
		Registry: RegistrySummary{
			Total:         len(all),
			ByStatus:      byStatus,
			ByType:        byType,
			OldestAgeDays: oldest.Hours() / 24,
		},
		Queue:    queue,
		Stream:   str,
		LastPass: lastPass,
		Alerts:   alerts,
	}
}

func (s *Service) resolveModels(req PredictRequest) ([]*model.PredictionModel, error) {
	if len(req.ModelIDs) > 0 {
		models := make([]*model.PredictionModel, 0, len(req.ModelIDs))
		for _, id := range req.ModelIDs {
			m := s.reg.Get(id)
			if m == nil {
				log.Warn().Str("model", id).Msg("Skipping unknown model id in prediction request")
				continue
			}
			models = append(models, m)
		}
		if len(models) == 0 {
			return nil, model.Validationf("models", "no known model ids in request")
		}
		return models, nil
	}

	if req.Type != "" {
		if !req.Type.Valid() {
			return nil, model.Validationf("type", "unknown prediction type %q", req.Type)
		}
		models := s.reg.ActiveByType(req.Type)
		if len(models) == 0 {
			return nil, model.Validationf("type", "no active models for type %s", req.Type)
		}
		return models, nil
	}

	return nil, model.Validationf("models", "either models or type must be set")
}

// resolveFeatures uses request features when given, otherwise derives them
// from the donor's datastore record.
func (s *Service) resolveFeatures(ctx context.Context, donorID string, given map[string]model.Value) (map[string]model.Value, error) {
	if len(given) > 0 {
		return given, nil
	}
	if s.donors == nil {
		return nil, model.Validationf("features", "features are required when no donor datastore is configured")
	}

	d, err := s.donors.GetDonor(ctx, donorID)
	if err != nil {
		var lookupErr *model.LookupError
		if s.mw != nil && !errors.As(err, &lookupErr) {
			s.mw.DatastoreErrorsInc()
		}
		return nil, fmt.Errorf("fetch donor %s: %w", donorID, err)
	}
	return features.AsValues(features.Extract(*d, time.Now().UTC())), nil
}

func sharedType(models []*model.PredictionModel) (model.ModelType, bool) {
	if len(models) == 0 {
		return "", false
	}
	t := models[0].Type
	for _, m := range models[1:] {
		if m.Type != t {
			return "", false
		}
	}
	return t, true
}
