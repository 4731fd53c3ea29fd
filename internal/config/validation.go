// Package config provides configuration management for the odds-watch application.
package config

import (
	"fmt"
	"regexp"

	"github.com/go-playground/validator/v10"
	"github.com/robfig/cron/v3"

	"github.com/yourusername/odds-watch/internal/models"
)

// CustomValidator wraps the validator with custom validation rules
type CustomValidator struct {
	validator *validator.Validate
}

// NewValidator creates a new validator with custom validation functions
func NewValidator() *CustomValidator {
	v := validator.New()

	// Register custom validation functions
	_ = v.RegisterValidation("environment", validateEnvironment)
	_ = v.RegisterValidation("loglevel", validateLogLevel)
	_ = v.RegisterValidation("source", validateSource)

	return &CustomValidator{validator: v}
}

// Validate validates the entire configuration
func Validate(cfg *Config) error {
	cv := NewValidator()
	return cv.Validate(cfg)
}

// Validate validates the configuration using registered validation rules
func (cv *CustomValidator) Validate(cfg *Config) error {
	err := cv.validator.Struct(cfg)
	if err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			return formatValidationErrors(validationErrors)
		}
		return fmt.Errorf("validation failed: %w", err)
	}

	// Additional cross-field validations
	if err := validateCrossField(cfg); err != nil {
		return err
	}

	return nil
}

// validateEnvironment validates the environment field
func validateEnvironment(fl validator.FieldLevel) bool {
	env := fl.Field().String()
	switch env {
	case "development", "staging", "production":
		return true
	default:
		return false
	}
}

// validateLogLevel validates the log level field
func validateLogLevel(fl validator.FieldLevel) bool {
	level := fl.Field().String()
	switch level {
	case "debug", "info", "warn", "error":
		return true
	default:
		return false
	}
}

// validateSource checks the source name against the built-in sources
func validateSource(fl validator.FieldLevel) bool {
	_, err := models.SourceByName(fl.Field().String())
	return err == nil
}

// validateCrossField performs cross-field validations
func validateCrossField(cfg *Config) error {
	a := cfg.Alerts
	bounds := []struct {
		name  string
		value float64
	}{
		{"violet_max", a.VioletMax},
		{"red_min", a.RedMin},
		{"red_max", a.RedMax},
		{"orange_min", a.OrangeMin},
		{"orange_max", a.OrangeMax},
		{"yellow_min", a.YellowMin},
		{"yellow_max", a.YellowMax},
	}
	for i := 1; i < len(bounds); i++ {
		if bounds[i].value < bounds[i-1].value {
			return fmt.Errorf("alerts.%s (%v) must not be below alerts.%s (%v)",
				bounds[i].name, bounds[i].value, bounds[i-1].name, bounds[i-1].value)
		}
	}

	// Alerts are a subset of what gets stored
	if a.AlertCeiling > a.StoreCeiling {
		return fmt.Errorf("alerts.alert_ceiling cannot exceed alerts.store_ceiling")
	}

	seen := make(map[string]bool, len(cfg.Sources))
	for _, s := range cfg.Sources {
		if seen[s.Name] {
			return fmt.Errorf("source %q is configured more than once", s.Name)
		}
		seen[s.Name] = true
	}

	if cfg.Supervision.Enabled {
		if _, err := cron.ParseStandard(cfg.Supervision.Schedule); err != nil {
			return fmt.Errorf("invalid supervision schedule %q: %w", cfg.Supervision.Schedule, err)
		}
	}

	// Validate connection pool settings
	if cfg.Database.MaxIdleConnections > cfg.Database.MaxConnections {
		return fmt.Errorf("max_idle_connections cannot exceed max_connections")
	}

	// Validate production environment requirements
	if cfg.IsProduction() {
		if cfg.Database.Enabled && cfg.Database.SSLMode == "disable" {
			return fmt.Errorf("production environment requires SSL mode to be 'require' or 'verify-full'")
		}
		if cfg.App.Debug {
			return fmt.Errorf("debug mode cannot be enabled in production")
		}
	}

	return nil
}

// formatValidationErrors formats validation errors into a readable string
func formatValidationErrors(validationErrors validator.ValidationErrors) error {
	var errMsg string
	for _, fieldError := range validationErrors {
		field := fieldError.Namespace()
		tag := fieldError.Tag()
		value := fieldError.Value()

		switch tag {
		case "required", "required_if":
			errMsg += fmt.Sprintf("- Field '%s' is required\n", field)
		case "url":
			errMsg += fmt.Sprintf("- Field '%s' must be a valid URL, got '%v'\n", field, value)
		case "min", "max":
			errMsg += fmt.Sprintf("- Field '%s' validation failed: %s constraint violated\n", field, tag)
		case "gt", "gte", "lt", "lte":
			errMsg += fmt.Sprintf("- Field '%s' validation failed: numeric constraint %s violated\n", field, tag)
		case "environment":
			errMsg += fmt.Sprintf("- Field '%s' must be one of: development, staging, production\n", field)
		case "loglevel":
			errMsg += fmt.Sprintf("- Field '%s' must be one of: debug, info, warn, error\n", field)
		case "source":
			errMsg += fmt.Sprintf("- Field '%s' must name a known source (fb, akty), got '%v'\n", field, value)
		case "oneof":
			errMsg += fmt.Sprintf("- Field '%s' has invalid value '%v'\n", field, value)
		default:
			errMsg += fmt.Sprintf("- Field '%s' failed validation: %s\n", field, tag)
		}
	}
	return fmt.Errorf("configuration validation failed:\n%s", errMsg)
}

// ValidateEnvironment validates environment-specific requirements
func ValidateEnvironment(cfg *Config) error {
	if cfg.IsProduction() {
		// Production should not have placeholder credentials
		if cfg.Telegram.Enabled && isTestCredential(cfg.Telegram.Token) {
			return fmt.Errorf("production environment should not use a placeholder telegram token")
		}
		if cfg.Storage.Backend == "memory" {
			return fmt.Errorf("production environment requires the redis storage backend")
		}
	}

	return nil
}

// isTestCredential checks if a credential looks like a test credential
func isTestCredential(credential string) bool {
	testPatterns := []string{
		"test", "demo", "example", "placeholder", "YOUR_",
	}

	for _, pattern := range testPatterns {
		if match, _ := regexp.MatchString("(?i)"+pattern, credential); match {
			return true
		}
	}

	return false
}
