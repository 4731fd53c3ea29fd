// Package config provides configuration management for the odds-watch application.
package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const (
	validConfigPath              = "testdata/valid_config.yaml"
	expansionConfigPath          = "testdata/expansion_config.yaml"
	nonexistentConfigPath        = "testdata/nonexistent_config.yaml"
	expectedNoErrorLoadingConfig = "expected no error loading config, got %v"
	expectedNoErrorMsg           = "expected no error, got %v"
	expectedNonNilConfig         = "expected non-nil config"
	oddsWatchName                = "odds-watch"
	developmentEnv               = "development"
	invalidEnv                   = "invalid"
	redisAddr                    = "localhost:6379"
	postgresPrefix               = "postgres://"
	testAppName                  = "test-app"
	testDBPassword               = "TEST_DB_PASSWORD"
	expandedSecretValue          = "expanded_secret_value"
)

// TestLoadConfigSuccess tests loading a valid configuration file
func TestLoadConfigSuccess(t *testing.T) {
	cfg, err := Load(validConfigPath)
	if err != nil {
		t.Fatalf(expectedNoErrorMsg, err)
	}

	if cfg == nil {
		t.Fatal(expectedNonNilConfig)
	}

	if cfg.App.Name != oddsWatchName {
		t.Errorf("expected app name '%s', got '%s'", oddsWatchName, cfg.App.Name)
	}

	if cfg.App.Environment != developmentEnv {
		t.Errorf("expected environment '%s', got '%s'", developmentEnv, cfg.App.Environment)
	}

	if cfg.Redis.Addr != redisAddr {
		t.Errorf("expected redis addr '%s', got '%s'", redisAddr, cfg.Redis.Addr)
	}

	if len(cfg.Sources) != 2 {
		t.Fatalf("expected 2 sources, got %d", len(cfg.Sources))
	}

	if cfg.Tracker.EvictionThreshold != 2000 {
		t.Errorf("expected eviction threshold 2000, got %d", cfg.Tracker.EvictionThreshold)
	}

	if cfg.Handover.GraceDelay() != 60*time.Second {
		t.Errorf("expected grace delay 60s, got %s", cfg.Handover.GraceDelay())
	}
}

// TestLoadConfigSources tests league mapping and per-source start delays
func TestLoadConfigSources(t *testing.T) {
	cfg, err := Load(validConfigPath)
	if err != nil {
		t.Fatalf(expectedNoErrorLoadingConfig, err)
	}

	fb, ok := cfg.Source("fb")
	if !ok {
		t.Fatal("expected fb source")
	}
	if fb.StartDelay() != 30*time.Second {
		t.Errorf("expected fb start delay 30s, got %s", fb.StartDelay())
	}

	names := fb.LeagueNames()
	if names["IPBL篮球专业组"] != "IPBL Pro Division" {
		t.Errorf("unexpected league mapping: %v", names)
	}

	akty, ok := cfg.Source("akty")
	if !ok {
		t.Fatal("expected akty source")
	}
	if akty.StartDelay() != 90*time.Second {
		t.Errorf("expected akty start delay 90s, got %s", akty.StartDelay())
	}

	if len(cfg.Telegram.Leagues) == 0 || len(cfg.Telegram.Leagues[0].Teams) != 20 {
		t.Errorf("expected IPBL team split with 20 teams, got %+v", cfg.Telegram.Leagues)
	}
}

// TestLoadConfigFileNotFound tests handling of missing configuration file
func TestLoadConfigFileNotFound(t *testing.T) {
	_, err := Load(nonexistentConfigPath)
	if err == nil {
		t.Fatal("expected error for missing config file")
	}
}

// TestLoadConfigEnvironmentVariables tests environment variable override
func TestLoadConfigEnvironmentVariables(t *testing.T) {
	t.Setenv("ODDS_WATCH_APP_NAME", testAppName)

	cfg, err := Load(validConfigPath)
	if err != nil {
		t.Fatalf(expectedNoErrorMsg, err)
	}

	if cfg.App.Name != testAppName {
		t.Errorf("expected app name '%s' from environment, got '%s'", testAppName, cfg.App.Name)
	}
}

// TestLoadConfigEnvironmentVariableExpansion tests environment variable expansion in config file
func TestLoadConfigEnvironmentVariableExpansion(t *testing.T) {
	t.Setenv(testDBPassword, expandedSecretValue)

	cfg, err := Load(expansionConfigPath)
	if err != nil {
		t.Fatalf("expected no error loading config with expansion, got %v", err)
	}

	if cfg.Database.Password != expandedSecretValue {
		t.Errorf("expected password '%s' from environment expansion, got '%s'", expandedSecretValue, cfg.Database.Password)
	}
}

// TestLoadWithDefaultsNoFile tests that defaults cover the engine constants
func TestLoadWithDefaultsNoFile(t *testing.T) {
	cfg, err := LoadWithDefaults(nonexistentConfigPath)
	if err != nil {
		t.Fatalf(expectedNoErrorMsg, err)
	}

	if cfg.Storage.ListCap != 2400 {
		t.Errorf("expected list cap 2400, got %d", cfg.Storage.ListCap)
	}
	if cfg.Cycle.StaleCycleLimit != 3600 {
		t.Errorf("expected stale cycle limit 3600, got %d", cfg.Cycle.StaleCycleLimit)
	}
	if cfg.Alerts.AlertCeiling != 1.68 || cfg.Alerts.StoreCeiling != 1.73 {
		t.Errorf("unexpected ceilings %v/%v", cfg.Alerts.AlertCeiling, cfg.Alerts.StoreCeiling)
	}
	if cfg.Handover.StopRetries != 5 || cfg.Handover.RunRetries != 5 {
		t.Errorf("expected 5 retries, got stop=%d run=%d", cfg.Handover.StopRetries, cfg.Handover.RunRetries)
	}
}

// TestLoadDotEnv tests loading variables from a .env file
func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("ODDS_WATCH_DOTENV_PROBE=loaded\n"), 0o600); err != nil {
		t.Fatalf(expectedNoErrorMsg, err)
	}
	t.Cleanup(func() { os.Unsetenv("ODDS_WATCH_DOTENV_PROBE") })

	if err := LoadDotEnv(path, filepath.Join(dir, "missing.env")); err != nil {
		t.Fatalf(expectedNoErrorMsg, err)
	}

	if got := os.Getenv("ODDS_WATCH_DOTENV_PROBE"); got != "loaded" {
		t.Errorf("expected variable from .env, got %q", got)
	}
}

// TestValidateSuccess tests validation of a valid configuration
func TestValidateSuccess(t *testing.T) {
	cfg, err := Load(validConfigPath)
	if err != nil {
		t.Fatalf(expectedNoErrorLoadingConfig, err)
	}

	if err := Validate(cfg); err != nil {
		t.Fatalf("expected no validation error, got %v", err)
	}
}

// TestValidateInvalidEnvironment tests validation of invalid environment
func TestValidateInvalidEnvironment(t *testing.T) {
	cfg, err := Load(validConfigPath)
	if err != nil {
		t.Fatalf(expectedNoErrorLoadingConfig, err)
	}

	cfg.App.Environment = invalidEnv
	if err := Validate(cfg); err == nil {
		t.Fatal("expected validation error for invalid environment")
	}
}

// TestValidateUnknownSource tests validation of source names
func TestValidateUnknownSource(t *testing.T) {
	cfg, err := Load(validConfigPath)
	if err != nil {
		t.Fatalf(expectedNoErrorLoadingConfig, err)
	}

	cfg.Sources[1].Name = "bet365"
	err = Validate(cfg)
	if err == nil {
		t.Fatal("expected validation error for unknown source")
	}
	if !strings.Contains(err.Error(), "known source") {
		t.Errorf("expected source validation error, got: %v", err)
	}
}

// TestValidateDuplicateSource tests that a source can only be configured once
func TestValidateDuplicateSource(t *testing.T) {
	cfg, err := Load(validConfigPath)
	if err != nil {
		t.Fatalf(expectedNoErrorLoadingConfig, err)
	}

	cfg.Sources[1].Name = "fb"
	if err := Validate(cfg); err == nil {
		t.Fatal("expected validation error for duplicate source")
	}
}

// TestValidateBandOrdering tests cross-field validation of alert bands
func TestValidateBandOrdering(t *testing.T) {
	cfg, err := Load(validConfigPath)
	if err != nil {
		t.Fatalf(expectedNoErrorLoadingConfig, err)
	}

	cfg.Alerts.OrangeMin = 1.50
	if err := Validate(cfg); err == nil {
		t.Fatal("expected validation error for unordered bands")
	}
}

// TestValidateCeilings tests that alerts cannot be looser than storage
func TestValidateCeilings(t *testing.T) {
	cfg, err := Load(validConfigPath)
	if err != nil {
		t.Fatalf(expectedNoErrorLoadingConfig, err)
	}

	cfg.Alerts.AlertCeiling = 1.80
	if err := Validate(cfg); err == nil {
		t.Fatal("expected validation error for alert ceiling above store ceiling")
	}
}

// TestValidateTelegramRequiresToken tests conditional requirements
func TestValidateTelegramRequiresToken(t *testing.T) {
	cfg, err := Load(validConfigPath)
	if err != nil {
		t.Fatalf(expectedNoErrorLoadingConfig, err)
	}

	cfg.Telegram.Token = ""
	if err := Validate(cfg); err == nil {
		t.Fatal("expected validation error for missing telegram token")
	}

	cfg.Telegram.Enabled = false
	if err := Validate(cfg); err != nil {
		t.Fatalf("expected disabled telegram to skip token check, got %v", err)
	}
}

// TestValidateSupervisionSchedule tests cron schedule validation
func TestValidateSupervisionSchedule(t *testing.T) {
	cfg, err := Load(validConfigPath)
	if err != nil {
		t.Fatalf(expectedNoErrorLoadingConfig, err)
	}

	cfg.Supervision.Schedule = "every now and then"
	if err := Validate(cfg); err == nil {
		t.Fatal("expected validation error for bad schedule")
	}
}

// TestValidateEnvironmentProduction tests production-only requirements
func TestValidateEnvironmentProduction(t *testing.T) {
	cfg, err := Load(validConfigPath)
	if err != nil {
		t.Fatalf(expectedNoErrorLoadingConfig, err)
	}

	cfg.App.Environment = "production"
	cfg.Storage.Backend = "memory"
	if err := ValidateEnvironment(cfg); err == nil {
		t.Fatal("expected memory backend to be rejected in production")
	}
}

// TestGetDatabaseDSN tests DSN generation
func TestGetDatabaseDSN(t *testing.T) {
	cfg, err := Load(validConfigPath)
	if err != nil {
		t.Fatalf(expectedNoErrorLoadingConfig, err)
	}

	dsn := cfg.GetDatabaseDSN()
	if !strings.HasPrefix(dsn, postgresPrefix) {
		t.Errorf("expected DSN to start with '%s', got '%s'", postgresPrefix, dsn)
	}
}

// TestIsDevelopment tests environment check function
func TestIsDevelopment(t *testing.T) {
	cfg := &Config{
		App: AppConfig{Environment: developmentEnv},
	}

	if !cfg.IsDevelopment() {
		t.Error("expected IsDevelopment() to return true")
	}

	if cfg.IsProduction() {
		t.Error("expected IsProduction() to return false")
	}
}

// TestIsStaging tests staging environment check
func TestIsStaging(t *testing.T) {
	cfg := &Config{
		App: AppConfig{Environment: "staging"},
	}

	if !cfg.IsStaging() {
		t.Error("expected IsStaging() to return true")
	}
}

// TestOverlaySecrets tests applying AWS secrets to the configuration
func TestOverlaySecrets(t *testing.T) {
	cfg := &Config{}
	cfg.Telegram.Token = "from-file"

	overlaySecretsOnConfig(cfg, &SecretsOverlay{
		RedisPassword: "redis-pass",
		TelegramToken: "from-aws",
	})

	if cfg.Redis.Password != "redis-pass" {
		t.Errorf("expected redis password overlay, got %q", cfg.Redis.Password)
	}
	if cfg.Telegram.Token != "from-aws" {
		t.Errorf("expected telegram token overlay, got %q", cfg.Telegram.Token)
	}
	if cfg.Database.Password != "" {
		t.Errorf("expected empty secrets to leave values alone, got %q", cfg.Database.Password)
	}
}
