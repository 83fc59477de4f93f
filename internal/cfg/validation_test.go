package cfg

import (
	"testing"
	"time"
)

// createValidSettings creates a valid Settings struct for testing
func createValidSettings() *Settings {
	return &Settings{
		DonorBaseURL:    "https://donors.example.org",
		DonorStreamURL:  "wss://donors.example.org/stream",
		DonorAPIKey:     "valid_key",
		DonorAPISecret:  "valid_secret",
		DonorAPIRPS:     10,
		DataPath:        "/tmp/donorsense",
		APIPort:         8090,
		MetricsPort:     8080,
		MonitorSchedule: "@hourly",
		TrainingWorkers: 2,
		DriftWindowSize: 512,
		ValidationSplit: 0.2,
		RESTTimeout:     5 * time.Second,
		PingInterval:    15 * time.Second,
	}
}

func TestValidateSettings_ValidConfig(t *testing.T) {
	settings := createValidSettings()

	err := validateSettings(settings)
	if err != nil {
		t.Errorf("Expected valid config to pass, got error: %v", err)
	}
}

func TestValidateSettings_MissingDataPath(t *testing.T) {
	settings := createValidSettings()
	settings.DataPath = ""

	err := validateSettings(settings)
	if err == nil {
		t.Error("Expected error for missing data path")
	}
}

func TestValidateSettings_DonorAPIWithoutCredentials(t *testing.T) {
	t.Run("missing key", func(t *testing.T) {
		settings := createValidSettings()
		settings.DonorAPIKey = ""

		if err := validateSettings(settings); err == nil {
			t.Error("Expected error for missing API key")
		}
	})

	t.Run("missing secret", func(t *testing.T) {
		settings := createValidSettings()
		settings.DonorAPISecret = ""

		if err := validateSettings(settings); err == nil {
			t.Error("Expected error for missing API secret")
		}
	})

	t.Run("no donor API configured", func(t *testing.T) {
		settings := createValidSettings()
		settings.DonorBaseURL = ""
		settings.DonorAPIKey = ""
		settings.DonorAPISecret = ""

		if err := validateSettings(settings); err != nil {
			t.Errorf("Expected no error without a donor API, got: %v", err)
		}
	})
}

func TestValidateSettings_InvalidAPIPort(t *testing.T) {
	testCases := []struct {
		name    string
		port    int
		wantErr bool
	}{
		{"too low", 1023, true},
		{"minimum valid", 1024, false},
		{"normal", 8090, false},
		{"maximum valid", 65535, false},
		{"too high", 65536, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			settings := createValidSettings()
			settings.APIPort = tc.port

			err := validateSettings(settings)
			if tc.wantErr && err == nil {
				t.Error("Expected error for invalid API port")
			}
			if !tc.wantErr && err != nil {
				t.Errorf("Expected no error for valid API port, got: %v", err)
			}
		})
	}
}

func TestValidateSettings_PortsMustDiffer(t *testing.T) {
	settings := createValidSettings()
	settings.APIPort = 9090
	settings.MetricsPort = 9090

	err := validateSettings(settings)
	if err == nil {
		t.Error("Expected error when API and metrics ports collide")
	}
}

func TestValidateSettings_DashboardPort(t *testing.T) {
	testCases := []struct {
		name    string
		port    int
		wantErr bool
	}{
		{"disabled", 0, false},
		{"too low", 1023, true},
		{"normal", 9600, false},
		{"too high", 65536, true},
		{"collides with API port", 8090, true},
		{"collides with metrics port", 8080, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			settings := createValidSettings()
			settings.DashboardPort = tc.port

			err := validateSettings(settings)
			if tc.wantErr && err == nil {
				t.Error("Expected error for invalid dashboard port")
			}
			if !tc.wantErr && err != nil {
				t.Errorf("Expected no error for valid dashboard port, got: %v", err)
			}
		})
	}
}

func TestValidateSettings_InvalidValidationSplit(t *testing.T) {
	testCases := []struct {
		name    string
		split   float64
		wantErr bool
	}{
		{"zero", 0.0, true},
		{"negative", -0.1, true},
		{"small valid", 0.05, false},
		{"normal", 0.2, false},
		{"maximum valid", 0.5, false},
		{"too large", 0.51, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			settings := createValidSettings()
			settings.ValidationSplit = tc.split

			err := validateSettings(settings)
			if tc.wantErr && err == nil {
				t.Error("Expected error for invalid validation split")
			}
			if !tc.wantErr && err != nil {
				t.Errorf("Expected no error for valid validation split, got: %v", err)
			}
		})
	}
}

func TestValidateSettings_InvalidTrainingWorkers(t *testing.T) {
	testCases := []struct {
		name    string
		workers int
		wantErr bool
	}{
		{"zero", 0, true},
		{"negative", -1, true},
		{"minimum valid", 1, false},
		{"normal", 2, false},
		{"maximum valid", 16, false},
		{"too many", 17, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			settings := createValidSettings()
			settings.TrainingWorkers = tc.workers

			err := validateSettings(settings)
			if tc.wantErr && err == nil {
				t.Error("Expected error for invalid training workers")
			}
			if !tc.wantErr && err != nil {
				t.Errorf("Expected no error for valid training workers, got: %v", err)
			}
		})
	}
}

func TestValidateSettings_InvalidDriftWindowSize(t *testing.T) {
	testCases := []struct {
		name    string
		size    int
		wantErr bool
	}{
		{"zero", 0, true},
		{"too small", 15, true},
		{"minimum valid", 16, false},
		{"normal", 512, false},
		{"maximum valid", 65536, false},
		{"too large", 65537, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			settings := createValidSettings()
			settings.DriftWindowSize = tc.size

			err := validateSettings(settings)
			if tc.wantErr && err == nil {
				t.Error("Expected error for invalid drift window size")
			}
			if !tc.wantErr && err != nil {
				t.Errorf("Expected no error for valid drift window size, got: %v", err)
			}
		})
	}
}

func TestValidateSettings_InvalidRESTTimeout(t *testing.T) {
	testCases := []struct {
		name        string
		restTimeout time.Duration
		wantErr     bool
	}{
		{"too short", 500 * time.Millisecond, true},
		{"minimum valid", 1 * time.Second, false},
		{"normal", 10 * time.Second, false},
		{"maximum valid", 1 * time.Minute, false},
		{"too long", 2 * time.Minute, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			settings := createValidSettings()
			settings.RESTTimeout = tc.restTimeout

			err := validateSettings(settings)
			if tc.wantErr && err == nil {
				t.Error("Expected error for invalid REST timeout")
			}
			if !tc.wantErr && err != nil {
				t.Errorf("Expected no error for valid REST timeout, got: %v", err)
			}
		})
	}
}

func TestValidateSettings_InvalidPingInterval(t *testing.T) {
	testCases := []struct {
		name    string
		ping    time.Duration
		wantErr bool
	}{
		{"too short", 500 * time.Millisecond, true},
		{"minimum valid", 1 * time.Second, false},
		{"normal", 30 * time.Second, false},
		{"maximum valid", 5 * time.Minute, false},
		{"too long", 10 * time.Minute, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			settings := createValidSettings()
			settings.PingInterval = tc.ping

			err := validateSettings(settings)
			if tc.wantErr && err == nil {
				t.Error("Expected error for invalid ping interval")
			}
			if !tc.wantErr && err != nil {
				t.Errorf("Expected no error for valid ping interval, got: %v", err)
			}
		})
	}
}

func TestValidateSettings_InvalidDonorAPIRPS(t *testing.T) {
	testCases := []struct {
		name    string
		rps     float64
		wantErr bool
	}{
		{"zero", 0, true},
		{"negative", -1, true},
		{"small valid", 0.5, false},
		{"normal", 10, false},
		{"maximum valid", 1000, false},
		{"too high", 1001, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			settings := createValidSettings()
			settings.DonorAPIRPS = tc.rps

			err := validateSettings(settings)
			if tc.wantErr && err == nil {
				t.Error("Expected error for invalid donor API rate")
			}
			if !tc.wantErr && err != nil {
				t.Errorf("Expected no error for valid donor API rate, got: %v", err)
			}
		})
	}
}

func TestValidateSettings_EmptyMonitorSchedule(t *testing.T) {
	settings := createValidSettings()
	settings.MonitorSchedule = ""

	err := validateSettings(settings)
	if err == nil {
		t.Error("Expected error for empty monitor schedule")
	}
}
