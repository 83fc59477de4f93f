package common

import "time"

// Environment variable keys
const (
	EnvConfigFile        = "CONFIG_FILE"
	EnvDonorAPIKey       = "DONOR_API_KEY"
	EnvDonorAPISecret    = "DONOR_API_SECRET"
	EnvDonorBaseURL      = "DONOR_BASE_URL"
	EnvDonorStreamURL    = "DONOR_STREAM_URL"
	EnvDataPath          = "DATA_PATH"
	EnvAPIPort           = "API_PORT"
	EnvMetricsPort       = "METRICS_PORT"
	EnvDashboardPort     = "DASHBOARD_PORT"
	EnvMonitorSchedule   = "MONITOR_SCHEDULE"
	EnvTrainingWorkers   = "TRAINING_WORKERS"
	EnvDriftWindowSize   = "DRIFT_WINDOW_SIZE"
	EnvRESTTimeout       = "REST_TIMEOUT"
	EnvPingInterval      = "PING_INTERVAL"
	EnvRequestsPerSecond = "DONOR_API_RPS"
	EnvValidationSplit   = "VALIDATION_SPLIT"
)

// Configuration defaults
const (
	DefaultAPIPort          = 8090
	DefaultMetricsPort      = 8080
	DefaultMonitorSchedule  = "@hourly"
	DefaultTrainingWorkers  = 2
	DefaultDriftWindowSize  = 512
	DefaultValidationSplit  = 0.2
	DefaultRESTTimeout      = 5 * time.Second
	DefaultPingInterval     = 15 * time.Second
	DefaultDonorAPIRPS      = 10.0
)

// Model lifecycle windows
const (
	RetrainAfter       = 90 * 24 * time.Hour  // age at which a model is flagged for retraining
	RetrainUrgentAfter = 180 * 24 * time.Hour // age at which the flag escalates
)

// Alert thresholds
const (
	DegradationMedium = 0.10 // relative drop vs validation metric
	DegradationAction = 0.15
	DegradationHigh   = 0.20
	DriftMedium       = 0.6 // drift score in [0,1]
	DriftAction       = 0.75
	DriftHigh         = 0.8
)

// Confidence bounds for generated predictions
const (
	MinConfidence = 0.10
	MaxConfidence = 0.95
)

// Donor value tiers for live outcome segmentation, in total donated.
// Offline evaluation derives tiers from the dataset instead.
const (
	DonorLowValueMax  = 100.0
	DonorHighValueMin = 1000.0
)

// Ensemble weighting
const (
	EnsembleBaseWeight  = 0.5
	EnsemblePerfWeight  = 0.3
	EnsembleMaxAgeCut   = 0.3
	EnsembleWeightFloor = 0.1
)

// Validation constants
const (
	MinPort               = 1024
	MaxPort               = 65535
	MaxValidationSplit    = 0.5
	MinDatasetCompletion  = 0.8 // field-completeness warning threshold
	MaxTrainingWorkers    = 16
	MinDriftWindow        = 16
	MaxDriftWindow        = 65536
)

// Common error messages
const (
	ErrMsgDonorAPIRequired = "donor datastore base URL requires API key and secret"
	ErrMsgDataPathRequired = "data path is required"
)
