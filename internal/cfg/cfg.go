package cfg

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"donorsense/internal/common"
)

type Settings struct {
	DonorBaseURL   string
	DonorStreamURL string
	DonorAPIKey    string
	DonorAPISecret string
	DonorAPIRPS    float64

	DataPath      string
	APIPort       int
	MetricsPort   int
	DashboardPort int // 0 disables the operations dashboard

	MonitorSchedule string
	TrainingWorkers int
	DriftWindowSize int
	ValidationSplit float64

	RESTTimeout  time.Duration
	PingInterval time.Duration
}

type ConfigFile struct {
	Donors struct {
		BaseURL   string  `yaml:"baseURL"`
		StreamURL string  `yaml:"streamURL"`
		Key       string  `yaml:"key"`
		Secret    string  `yaml:"secret"`
		RPS       float64 `yaml:"rps"`
	} `yaml:"donors"`

	Engine struct {
		ValidationSplit float64 `yaml:"validationSplit"`
		TrainingWorkers int     `yaml:"trainingWorkers"`
		DriftWindowSize int     `yaml:"driftWindowSize"`
	} `yaml:"engine"`

	Monitor struct {
		Schedule string `yaml:"schedule"`
	} `yaml:"monitor"`

	System struct {
		DataPath      string `yaml:"dataPath"`
		APIPort       int    `yaml:"apiPort"`
		MetricsPort   int    `yaml:"metricsPort"`
		DashboardPort int    `yaml:"dashboardPort"`
		RESTTimeout   string `yaml:"restTimeout"`
		PingInterval  string `yaml:"pingInterval"`
	} `yaml:"system"`
}

func Load() (Settings, error) {
	if configPath := os.Getenv(common.EnvConfigFile); configPath != "" {
		return loadFromYAML(configPath)
	}
	return loadFromEnv()
}

func loadFromYAML(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var config ConfigFile
	if err := yaml.Unmarshal(data, &config); err != nil {
		return Settings{}, fmt.Errorf("failed to parse config file: %w", err)
	}

	restTimeout, err := time.ParseDuration(config.System.RESTTimeout)
	if err != nil {
		restTimeout = common.DefaultRESTTimeout
	}
	ping, err := time.ParseDuration(config.System.PingInterval)
	if err != nil {
		ping = common.DefaultPingInterval
	}

	settings := Settings{
		DonorBaseURL:    getEnvOrDefault(common.EnvDonorBaseURL, config.Donors.BaseURL),
		DonorStreamURL:  getEnvOrDefault(common.EnvDonorStreamURL, config.Donors.StreamURL),
		DonorAPIKey:     getEnvOrDefault(common.EnvDonorAPIKey, config.Donors.Key),
		DonorAPISecret:  getEnvOrDefault(common.EnvDonorAPISecret, config.Donors.Secret),
		DonorAPIRPS:     getFloatFromEnvOrConfig(common.EnvRequestsPerSecond, config.Donors.RPS, common.DefaultDonorAPIRPS),
		DataPath:        getEnvOrDefault(common.EnvDataPath, config.System.DataPath),
		APIPort:         getIntFromEnvOrConfig(common.EnvAPIPort, config.System.APIPort, common.DefaultAPIPort),
		MetricsPort:     getIntFromEnvOrConfig(common.EnvMetricsPort, config.System.MetricsPort, common.DefaultMetricsPort),
		DashboardPort:   getIntFromEnvOrConfig(common.EnvDashboardPort, config.System.DashboardPort, 0),
		MonitorSchedule: getEnvOrDefault(common.EnvMonitorSchedule, config.Monitor.Schedule),
		TrainingWorkers: getIntFromEnvOrConfig(common.EnvTrainingWorkers, config.Engine.TrainingWorkers, common.DefaultTrainingWorkers),
		DriftWindowSize: getIntFromEnvOrConfig(common.EnvDriftWindowSize, config.Engine.DriftWindowSize, common.DefaultDriftWindowSize),
		ValidationSplit: getFloatFromEnvOrConfig(common.EnvValidationSplit, config.Engine.ValidationSplit, common.DefaultValidationSplit),
		RESTTimeout:     restTimeout,
		PingInterval:    ping,
	}
	if settings.MonitorSchedule == "" {
		settings.MonitorSchedule = common.DefaultMonitorSchedule
	}

	if err := validateSettings(&settings); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}
	return settings, nil
}

func loadFromEnv() (Settings, error) {
	dataPath, err := getEnvRequired(common.EnvDataPath)
	if err != nil {
		return Settings{}, err
	}

	settings := Settings{
		DonorBaseURL:    os.Getenv(common.EnvDonorBaseURL),
		DonorStreamURL:  os.Getenv(common.EnvDonorStreamURL),
		DonorAPIKey:     os.Getenv(common.EnvDonorAPIKey),
		DonorAPISecret:  os.Getenv(common.EnvDonorAPISecret),
		DonorAPIRPS:     getFloatOrDefault(common.EnvRequestsPerSecond, common.DefaultDonorAPIRPS),
		DataPath:        dataPath,
		APIPort:         getIntOrDefault(common.EnvAPIPort, common.DefaultAPIPort),
		MetricsPort:     getIntOrDefault(common.EnvMetricsPort, common.DefaultMetricsPort),
		DashboardPort:   getIntOrDefault(common.EnvDashboardPort, 0),
		MonitorSchedule: getEnvOrDefault(common.EnvMonitorSchedule, common.DefaultMonitorSchedule),
		TrainingWorkers: getIntOrDefault(common.EnvTrainingWorkers, common.DefaultTrainingWorkers),
		DriftWindowSize: getIntOrDefault(common.EnvDriftWindowSize, common.DefaultDriftWindowSize),
		ValidationSplit: getFloatOrDefault(common.EnvValidationSplit, common.DefaultValidationSplit),
		RESTTimeout:     getDurationOrDefault(common.EnvRESTTimeout, common.DefaultRESTTimeout),
		PingInterval:    getDurationOrDefault(common.EnvPingInterval, common.DefaultPingInterval),
	}

	if err := validateSettings(&settings); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}
	return settings, nil
}

// StreamEnabled reports whether a donation event stream is configured.
func (s *Settings) StreamEnabled() bool { return s.DonorStreamURL != "" }

// DonorAPIEnabled reports whether the donor datastore client is configured.
func (s *Settings) DonorAPIEnabled() bool { return s.DonorBaseURL != "" }

// DashboardEnabled reports whether the operations dashboard should start.
func (s *Settings) DashboardEnabled() bool { return s.DashboardPort != 0 }

func getEnvRequired(key string) (string, error) {
	v := os.Getenv(key)
	if v == "" {
		return "", fmt.Errorf("required environment variable %s is missing", key)
	}
	return v, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultValue
}

func getFloatOrDefault(key string, defaultValue float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getIntFromEnvOrConfig(key string, configValue, defaultValue int) int {
	if env := os.Getenv(key); env != "" {
		if val, err := strconv.Atoi(env); err == nil {
			return val
		}
	}
	if configValue != 0 {
		return configValue
	}
	return defaultValue
}

func getFloatFromEnvOrConfig(key string, configValue, defaultValue float64) float64 {
	if env := os.Getenv(key); env != "" {
		if val, err := strconv.ParseFloat(env, 64); err == nil {
			return val
		}
	}
	if configValue != 0 {
		return configValue
	}
	return defaultValue
}

// validateSettings performs range validation of configuration values
func validateSettings(settings *Settings) error {
	if settings.DataPath == "" {
		return fmt.Errorf("%s", common.ErrMsgDataPathRequired)
	}

	if settings.DonorBaseURL != "" {
		if settings.DonorAPIKey == "" || settings.DonorAPISecret == "" {
			return fmt.Errorf("%s", common.ErrMsgDonorAPIRequired)
		}
	}

	if settings.APIPort < common.MinPort || settings.APIPort > common.MaxPort {
		return fmt.Errorf("API port must be between %d and %d, got %d", common.MinPort, common.MaxPort, settings.APIPort)
	}
	if settings.MetricsPort < common.MinPort || settings.MetricsPort > common.MaxPort {
		return fmt.Errorf("metrics port must be between %d and %d, got %d", common.MinPort, common.MaxPort, settings.MetricsPort)
	}
	if settings.APIPort == settings.MetricsPort {
		return fmt.Errorf("API port and metrics port must differ, both are %d", settings.APIPort)
	}
	if settings.DashboardPort != 0 {
		if settings.DashboardPort < common.MinPort || settings.DashboardPort > common.MaxPort {
			return fmt.Errorf("dashboard port must be between %d and %d, got %d", common.MinPort, common.MaxPort, settings.DashboardPort)
		}
		if settings.DashboardPort == settings.APIPort || settings.DashboardPort == settings.MetricsPort {
			return fmt.Errorf("dashboard port must differ from API and metrics ports, got %d", settings.DashboardPort)
		}
	}

	if settings.ValidationSplit <= 0 || settings.ValidationSplit > common.MaxValidationSplit {
		return fmt.Errorf("validation split must be between 0 and %.1f, got %f", common.MaxValidationSplit, settings.ValidationSplit)
	}
	if settings.TrainingWorkers < 1 || settings.TrainingWorkers > common.MaxTrainingWorkers {
		return fmt.Errorf("training workers must be between 1 and %d, got %d", common.MaxTrainingWorkers, settings.TrainingWorkers)
	}
	if settings.DriftWindowSize < common.MinDriftWindow || settings.DriftWindowSize > common.MaxDriftWindow {
		return fmt.Errorf("drift window size must be between %d and %d, got %d", common.MinDriftWindow, common.MaxDriftWindow, settings.DriftWindowSize)
	}

	if settings.RESTTimeout < time.Second || settings.RESTTimeout > time.Minute {
		return fmt.Errorf("REST timeout must be between 1s and 1m, got %v", settings.RESTTimeout)
	}
	if settings.PingInterval < time.Second || settings.PingInterval > 5*time.Minute {
		return fmt.Errorf("ping interval must be between 1s and 5m, got %v", settings.PingInterval)
	}

	if settings.DonorAPIRPS <= 0 || settings.DonorAPIRPS > 1000 {
		return fmt.Errorf("donor API rate must be between 0 and 1000 requests/s, got %f", settings.DonorAPIRPS)
	}

	if settings.MonitorSchedule == "" {
		return fmt.Errorf("monitor schedule cannot be empty")
	}

	return nil
}
