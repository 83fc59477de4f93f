// Package model defines the domain types shared across the prediction
// engine: model definitions and lifecycle status, training datasets and
// results, donor predictions, ensemble output, and performance reports.
package model

import (
	"time"
)

// ModelType identifies what a model predicts for a donor.
type ModelType string

const (
	TypeLifetimeValue      ModelType = "lifetime_value"
	TypeChurnRisk          ModelType = "churn_risk"
	TypeNextAmount         ModelType = "next_donation_amount"
	TypeNextTiming         ModelType = "next_donation_timing"
	TypeCampaignResponse   ModelType = "campaign_response_likelihood"
	TypeUpgradeProbability ModelType = "upgrade_probability"
)

// ModelTypes lists every supported prediction type.
var ModelTypes = []ModelType{
	TypeLifetimeValue,
	TypeChurnRisk,
	TypeNextAmount,
	TypeNextTiming,
	TypeCampaignResponse,
	TypeUpgradeProbability,
}

// Valid reports whether t is a known prediction type.
func (t ModelType) Valid() bool {
	switch t {
	case TypeLifetimeValue, TypeChurnRisk, TypeNextAmount,
		TypeNextTiming, TypeCampaignResponse, TypeUpgradeProbability:
		return true
	}
	return false
}

// IsProbability reports whether predictions of this type live in [0,1].
func (t ModelType) IsProbability() bool {
	switch t {
	case TypeChurnRisk, TypeCampaignResponse, TypeUpgradeProbability:
		return true
	}
	return false
}

// Clamp bounds a raw estimator output to the prediction domain of the type:
// non-negative currency for amounts, [0,1] for probabilities, non-negative
// day counts for timing.
func (t ModelType) Clamp(v float64) float64 {
	if t.IsProbability() {
		if v < 0 {
			return 0
		}
		if v > 1 {
			return 1
		}
		return v
	}
	if v < 0 {
		return 0
	}
	return v
}

// TTL returns how long a prediction of this type stays valid.
func (t ModelType) TTL() time.Duration {
	switch t {
	case TypeChurnRisk:
		return 30 * 24 * time.Hour
	case TypeNextTiming:
		return 14 * 24 * time.Hour
	case TypeCampaignResponse:
		return 7 * 24 * time.Hour
	default:
		return 60 * 24 * time.Hour
	}
}

// Algorithm identifies the estimator strategy used to fit a model.
type Algorithm string

const (
	AlgoLinearRegression   Algorithm = "linear_regression"
	AlgoRandomForest       Algorithm = "random_forest"
	AlgoGradientBoosting   Algorithm = "gradient_boosting"
	AlgoNeuralNetwork      Algorithm = "neural_network"
	AlgoLogisticRegression Algorithm = "logistic_regression"
)

// Valid reports whether a is a known algorithm.
func (a Algorithm) Valid() bool {
	switch a {
	case AlgoLinearRegression, AlgoRandomForest, AlgoGradientBoosting,
		AlgoNeuralNetwork, AlgoLogisticRegression:
		return true
	}
	return false
}

// ModelStatus is the lifecycle state of a registered model.
type ModelStatus string

const (
	StatusActive          ModelStatus = "active"
	StatusNeedsRetraining ModelStatus = "needs_retraining"
	StatusRetired         ModelStatus = "retired"
)

// Valid reports whether s is a known lifecycle state.
func (s ModelStatus) Valid() bool {
	switch s {
	case StatusActive, StatusNeedsRetraining, StatusRetired:
		return true
	}
	return false
}

// DateRange marks the span of time a dataset covers.
type DateRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// TrainingDescriptor summarizes the data a model was fitted on.
type TrainingDescriptor struct {
	SampleSize        int                `json:"sample_size"`
	DateRange         DateRange          `json:"date_range"`
	FeatureImportance map[string]float64 `json:"feature_importance"`
}

// PredictionModel is a trained, versioned model held by the registry.
// Models are only ever created by a training run; afterwards their status
// may change but the fitted parameters never do. A replacement training run
// produces a new model with a new id.
type PredictionModel struct {
	ID              string             `json:"id"`
	Name            string             `json:"name"`
	Type            ModelType          `json:"type"`
	Algorithm       Algorithm          `json:"algorithm"`
	Features        []string           `json:"features"`
	Performance     map[string]float64 `json:"performance"`
	TrainingData    TrainingDescriptor `json:"training_data"`
	Status          ModelStatus        `json:"status"`
	LastTrainedAt   time.Time          `json:"last_trained_at"`
	NextTrainingDue time.Time          `json:"next_training_due"`
	Version         int                `json:"version"`

	// Parameters holds the fitted estimator state in the codec of its
	// algorithm strategy. Opaque to everything but the estimator.
	Parameters []byte `json:"parameters,omitempty"`

	// Baseline captures per-feature distribution statistics over the
	// training set, used later for drift scoring.
	Baseline map[string]FeatureBaseline `json:"baseline,omitempty"`
}

// FeatureBaseline is the training-time distribution snapshot of one feature.
type FeatureBaseline struct {
	Mean    float64   `json:"mean"`
	StdDev  float64   `json:"std_dev"`
	Min     float64   `json:"min"`
	Max     float64   `json:"max"`
	Buckets []float64 `json:"buckets,omitempty"` // normalized 10-bin histogram
}

// ValidationMetric returns the model's primary validation-quality metric:
// accuracy for probability models, r2 for the rest. Falls back across the
// two so older reports stay readable.
func (m *PredictionModel) ValidationMetric() float64 {
	if m == nil || m.Performance == nil {
		return 0
	}
	keys := []string{"validation_r2", "validation_accuracy", "r2", "accuracy"}
	if m.Type.IsProbability() {
		keys = []string{"validation_accuracy", "validation_r2", "accuracy", "r2"}
	}
	for _, k := range keys {
		if v, ok := m.Performance[k]; ok {
			return v
		}
	}
	return 0
}

// Age returns how long ago the model was trained.
func (m *PredictionModel) Age(now time.Time) time.Duration {
	return now.Sub(m.LastTrainedAt)
}

// Sample is one labeled observation in a training dataset.
type Sample struct {
	Features map[string]Value `json:"features"`
	Target   float64          `json:"target"`
}

// TrainingDataSet is an ordered collection of labeled samples. Ordering is
// meaningful: the train/validation split is positional, so a fixed dataset
// always reproduces the same split.
type TrainingDataSet struct {
	Samples   []Sample  `json:"samples"`
	DateRange DateRange `json:"date_range"`
}

// CanonicalFeatures returns the feature keys of the first sample, the
// reference set used for completeness checking.
func (d *TrainingDataSet) CanonicalFeatures() []string {
	if len(d.Samples) == 0 {
		return nil
	}
	keys := make([]string, 0, len(d.Samples[0].Features))
	for k := range d.Samples[0].Features {
		keys = append(keys, k)
	}
	return keys
}

// TrainingConfig describes one training run.
type TrainingConfig struct {
	Name            string             `json:"name"`
	Type            ModelType          `json:"type"`
	Algorithm       Algorithm          `json:"algorithm"`
	Features        []string           `json:"features"`
	ValidationSplit float64            `json:"validation_split"`
	Hyperparameters map[string]float64 `json:"hyperparameters,omitempty"`
}

// Convergence describes how a fitting run ended.
type Convergence struct {
	Converged  bool    `json:"converged"`
	Iterations int     `json:"iterations"`
	FinalLoss  float64 `json:"final_loss"`
}

// FeatureImportance is one entry of a ranked importance list.
type FeatureImportance struct {
	Feature    string  `json:"feature"`
	Importance float64 `json:"importance"`
	Rank       int     `json:"rank"`
}

// TrainingResult is the output of a successful training run.
type TrainingResult struct {
	Model       *PredictionModel    `json:"model"`
	Metrics     map[string]float64  `json:"metrics"`
	Importances []FeatureImportance `json:"importances"`
	Convergence Convergence         `json:"convergence"`
	Duration    time.Duration       `json:"duration"`
}

// Factor explains one feature's contribution to a prediction.
type Factor struct {
	Feature string  `json:"feature"`
	Impact  float64 `json:"impact"` // [-1, 1]
	Value   float64 `json:"value"`
}

// DonorPrediction is a single model's prediction for one donor.
type DonorPrediction struct {
	DonorID     string    `json:"donor_id"`
	ModelID     string    `json:"model_id"`
	Type        ModelType `json:"type"`
	Prediction  float64   `json:"prediction"`
	Confidence  float64   `json:"confidence"`
	Reasoning   []string  `json:"reasoning"`
	Factors     []Factor  `json:"factors"`
	GeneratedAt time.Time `json:"generated_at"`
	ValidUntil  time.Time `json:"valid_until"`
}

// Stale reports whether the prediction is past its validity window.
func (p *DonorPrediction) Stale(now time.Time) bool {
	return now.After(p.ValidUntil)
}

// EnsembleResult is the combined outcome of an ensemble.
type EnsembleResult struct {
	Value      float64 `json:"value"`
	Confidence float64 `json:"confidence"`
	Method     string  `json:"method"`
}

// ModelContribution records one model's share of an ensemble.
type ModelContribution struct {
	ModelID    string  `json:"model_id"`
	Weight     float64 `json:"weight"`
	Prediction float64 `json:"prediction"`
	Confidence float64 `json:"confidence"`
}

// EnsemblePrediction merges predictions from several models of one type.
type EnsemblePrediction struct {
	DonorID            string              `json:"donor_id"`
	Type               ModelType           `json:"type"`
	Predictions        []DonorPrediction   `json:"predictions"`
	EnsembleResult     EnsembleResult      `json:"ensemble_result"`
	ModelContributions []ModelContribution `json:"model_contributions"`
	GeneratedAt        time.Time           `json:"generated_at"`
}

// AlertType classifies a monitoring alert.
type AlertType string

const (
	AlertPerformanceDegradation AlertType = "performance_degradation"
	AlertDataDrift              AlertType = "data_drift"
	AlertConceptDrift           AlertType = "concept_drift"
)

// Severity grades alerts and recommendation priorities.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Alert is a monitoring finding that may require operator action.
type Alert struct {
	ID             string    `json:"id"`
	ModelID        string    `json:"model_id"`
	Type           AlertType `json:"type"`
	Severity       Severity  `json:"severity"`
	Message        string    `json:"message"`
	ActionRequired bool      `json:"action_required"`
	CreatedAt      time.Time `json:"created_at"`
}

// RecommendationType classifies a monitoring recommendation.
type RecommendationType string

const (
	RecommendRetraining     RecommendationType = "retraining"
	RecommendFeatureEng     RecommendationType = "feature_engineering"
	RecommendHyperparamTune RecommendationType = "hyperparameter_tuning"
)

// Recommendation suggests a concrete follow-up for a model.
type Recommendation struct {
	Type                RecommendationType `json:"type"`
	Priority            Severity           `json:"priority"`
	Description         string             `json:"description"`
	ExpectedImprovement float64            `json:"expected_improvement"`
}

// PerformanceBreakdown holds metric values at several granularities.
type PerformanceBreakdown struct {
	Overall      map[string]float64            `json:"overall"`
	BySegment    map[string]map[string]float64 `json:"by_segment"`
	ByTimeWindow map[string]map[string]float64 `json:"by_time_window"`
}

// ModelPerformanceReport is the outcome of evaluating one model.
type ModelPerformanceReport struct {
	ModelID         string               `json:"model_id"`
	GeneratedAt     time.Time            `json:"generated_at"`
	Performance     PerformanceBreakdown `json:"performance"`
	Recommendations []Recommendation     `json:"recommendations"`
	Alerts          []Alert              `json:"alerts"`
}

// Donation is one donation event in a donor's history.
type Donation struct {
	Amount float64   `json:"amount"`
	Date   time.Time `json:"date"`
}

// Donor is the external datastore's record for one individual: identity,
// loosely typed demographic and engagement attributes, and the ordered
// donation history.
type Donor struct {
	ID         string           `json:"id"`
	Attributes map[string]Value `json:"attributes"`
	Donations  []Donation       `json:"donations"`
}

// Outcome is an observed ground-truth value for a donor and prediction
// type, recorded after the fact to measure live model quality.
type Outcome struct {
	DonorID    string    `json:"donor_id"`
	ModelID    string    `json:"model_id,omitempty"`
	Type       ModelType `json:"type"`
	Predicted  float64   `json:"predicted"`
	Actual     float64   `json:"actual"`
	Segment    string    `json:"segment,omitempty"`
	ObservedAt time.Time `json:"observed_at"`
}
