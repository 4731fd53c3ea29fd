// Package config provides configuration management for the odds-watch application.
package config

import (
	"fmt"
	"time"
)

// Config represents the complete application configuration
type Config struct {
	App         AppConfig         `mapstructure:"app" validate:"required"`
	Redis       RedisConfig       `mapstructure:"redis" validate:"required"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Sources     []SourceConfig    `mapstructure:"sources" validate:"required,min=1,dive"`
	Cycle       CycleConfig       `mapstructure:"cycle" validate:"required"`
	Tracker     TrackerConfig     `mapstructure:"tracker" validate:"required"`
	Alerts      AlertsConfig      `mapstructure:"alerts" validate:"required"`
	Storage     StorageConfig     `mapstructure:"storage" validate:"required"`
	Handover    HandoverConfig    `mapstructure:"handover" validate:"required"`
	Telegram    TelegramConfig    `mapstructure:"telegram"`
	Publisher   PublisherConfig   `mapstructure:"publisher"`
	Translate   TranslateConfig   `mapstructure:"translate"`
	Browser     BrowserConfig     `mapstructure:"browser" validate:"required"`
	Metrics     MetricsConfig     `mapstructure:"metrics" validate:"required"`
	Health      HealthConfig      `mapstructure:"health" validate:"required"`
	Supervision SupervisionConfig `mapstructure:"supervision"`
	Secrets     SecretsConfig     `mapstructure:"secrets"`
}

// AppConfig represents application-level configuration
type AppConfig struct {
	Name        string `mapstructure:"name" validate:"required"`
	Environment string `mapstructure:"environment" validate:"required,environment"`
	LogLevel    string `mapstructure:"log_level" validate:"required,loglevel"`
	// Debug keeps everything in process memory and sends nothing out.
	Debug bool `mapstructure:"debug"`
}

// RedisConfig represents the shared key-value store connection
type RedisConfig struct {
	Addr               string `mapstructure:"addr" validate:"required,hostname_port"`
	Password           string `mapstructure:"password"`
	DB                 int    `mapstructure:"db" validate:"gte=0,lte=15"`
	PoolSize           int    `mapstructure:"pool_size" validate:"required,gt=0"`
	DialTimeoutSeconds int    `mapstructure:"dial_timeout_seconds" validate:"required,gt=0"`
}

// DatabaseConfig represents the match history database connection
type DatabaseConfig struct {
	Enabled            bool   `mapstructure:"enabled"`
	Host               string `mapstructure:"host" validate:"required_if=Enabled true"`
	Port               int    `mapstructure:"port" validate:"required_if=Enabled true,omitempty,min=1,max=65535"`
	Name               string `mapstructure:"name" validate:"required_if=Enabled true"`
	User               string `mapstructure:"user" validate:"required_if=Enabled true"`
	Password           string `mapstructure:"password"`
	SSLMode            string `mapstructure:"ssl_mode" validate:"omitempty,oneof=disable require verify-full"`
	MaxConnections     int    `mapstructure:"max_connections" validate:"gte=0"`
	MaxIdleConnections int    `mapstructure:"max_idle_connections" validate:"gte=0"`
}

// SourceConfig represents one monitored bookmaker site
type SourceConfig struct {
	Name              string         `mapstructure:"name" validate:"required,source"`
	Enabled           bool           `mapstructure:"enabled"`
	URL               string         `mapstructure:"url" validate:"required,url"`
	StartDelaySeconds int            `mapstructure:"start_delay_seconds" validate:"gte=0"`
	Leagues           []LeagueConfig `mapstructure:"leagues" validate:"required,min=1,dive"`
}

// LeagueConfig maps a league name as printed on the site to its display name
type LeagueConfig struct {
	Site    string `mapstructure:"site" validate:"required"`
	Display string `mapstructure:"display" validate:"required"`
}

// CycleConfig represents cycle runner timing and failure limits
type CycleConfig struct {
	IntervalMillis      int `mapstructure:"interval_millis" validate:"required,gt=0"`
	RetryDelaySeconds   int `mapstructure:"retry_delay_seconds" validate:"required,gt=0"`
	MaxRetries          int `mapstructure:"max_retries" validate:"required,gt=0"`
	MaxConnectionErrors int `mapstructure:"max_connection_errors" validate:"required,gt=0"`
	StaleCycleLimit     int `mapstructure:"stale_cycle_limit" validate:"required,gt=0"`
	PageTimeoutSeconds  int `mapstructure:"page_timeout_seconds" validate:"required,gt=0"`
}

// TrackerConfig represents ended-game tracking configuration
type TrackerConfig struct {
	EvictionThreshold int `mapstructure:"eviction_threshold" validate:"required,gt=0"`
}

// AlertsConfig represents alert band boundaries and ceilings
type AlertsConfig struct {
	VioletMax    float64 `mapstructure:"violet_max" validate:"required,gt=0"`
	RedMin       float64 `mapstructure:"red_min" validate:"required,gt=0"`
	RedMax       float64 `mapstructure:"red_max" validate:"required,gt=0"`
	OrangeMin    float64 `mapstructure:"orange_min" validate:"required,gt=0"`
	OrangeMax    float64 `mapstructure:"orange_max" validate:"required,gt=0"`
	YellowMin    float64 `mapstructure:"yellow_min" validate:"required,gt=0"`
	YellowMax    float64 `mapstructure:"yellow_max" validate:"required,gt=0"`
	StoreCeiling float64 `mapstructure:"store_ceiling" validate:"required,gt=0"`
	AlertCeiling float64 `mapstructure:"alert_ceiling" validate:"required,gt=0"`
}

// StorageConfig represents list storage configuration
type StorageConfig struct {
	Backend string `mapstructure:"backend" validate:"required,oneof=redis memory"`
	ListCap int64  `mapstructure:"list_cap" validate:"required,gt=0"`
}

// HandoverConfig represents run registration and handover configuration
type HandoverConfig struct {
	GraceDelaySeconds     int    `mapstructure:"grace_delay_seconds" validate:"required,gt=0"`
	StopRetries           int    `mapstructure:"stop_retries" validate:"required,gt=0"`
	StopRetryDelaySeconds int    `mapstructure:"stop_retry_delay_seconds" validate:"required,gt=0"`
	RunRetries            int    `mapstructure:"run_retries" validate:"required,gt=0"`
	RunRetryDelaySeconds  int    `mapstructure:"run_retry_delay_seconds" validate:"required,gt=0"`
	RegisterAttempts      int    `mapstructure:"register_attempts" validate:"required,gt=0"`
	HeartbeatTTLSeconds   int    `mapstructure:"heartbeat_ttl_seconds" validate:"required,gt=0"`
	RevokeChannel         string `mapstructure:"revoke_channel" validate:"required"`
}

// TelegramConfig represents chat alert delivery configuration
type TelegramConfig struct {
	Enabled           bool               `mapstructure:"enabled"`
	Token             string             `mapstructure:"token" validate:"required_if=Enabled true"`
	MainChatID        int64              `mapstructure:"main_chat_id" validate:"required_if=Enabled true"`
	MinIntervalMillis int                `mapstructure:"min_interval_millis" validate:"gte=0"`
	Leagues           []LeagueChatConfig `mapstructure:"leagues" validate:"dive"`
}

// LeagueChatConfig routes a league's alerts to its own chat
type LeagueChatConfig struct {
	League    string   `mapstructure:"league" validate:"required"`
	ChatID    int64    `mapstructure:"chat_id" validate:"required"`
	Teams     []string `mapstructure:"teams"`
	AltChatID int64    `mapstructure:"alt_chat_id"`
}

// PublisherConfig represents the downstream websocket feed
type PublisherConfig struct {
	Enabled               bool   `mapstructure:"enabled"`
	URL                   string `mapstructure:"url" validate:"required_if=Enabled true"`
	WriteTimeoutSeconds   int    `mapstructure:"write_timeout_seconds" validate:"gte=0"`
	ReconnectDelaySeconds int    `mapstructure:"reconnect_delay_seconds" validate:"gte=0"`
	PersistHistory        bool   `mapstructure:"persist_history"`
}

// TranslateConfig represents the team name translation service
type TranslateConfig struct {
	Enabled           bool    `mapstructure:"enabled"`
	URL               string  `mapstructure:"url" validate:"required_if=Enabled true"`
	APIKey            string  `mapstructure:"api_key"`
	SourceLang        string  `mapstructure:"source_lang"`
	TargetLang        string  `mapstructure:"target_lang"`
	TimeoutSeconds    int     `mapstructure:"timeout_seconds" validate:"gte=0"`
	RetryAttempts     int     `mapstructure:"retry_attempts" validate:"gte=0"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second" validate:"gte=0"`
	CacheTTLMinutes   int     `mapstructure:"cache_ttl_minutes" validate:"gte=0"`
}

// BrowserConfig represents the headless browser session
type BrowserConfig struct {
	Headless           bool   `mapstructure:"headless"`
	ExecPath           string `mapstructure:"exec_path"`
	UserAgent          string `mapstructure:"user_agent"`
	WaitTimeoutSeconds int    `mapstructure:"wait_timeout_seconds" validate:"required,gt=0"`
	WindowWidth        int    `mapstructure:"window_width" validate:"gte=0"`
	WindowHeight       int    `mapstructure:"window_height" validate:"gte=0"`
}

// MetricsConfig represents metrics and monitoring configuration
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path" validate:"required"`
}

// HealthConfig represents the health server configuration
type HealthConfig struct {
	Port int `mapstructure:"port" validate:"required,min=1,max=65535"`
}

// SupervisionConfig represents periodic run supervision
type SupervisionConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Schedule string `mapstructure:"schedule" validate:"required_if=Enabled true"`
}

// SecretsConfig represents the optional AWS Secrets Manager overlay
type SecretsConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	Region     string `mapstructure:"region" validate:"required_if=Enabled true"`
	SecretName string `mapstructure:"secret_name" validate:"required_if=Enabled true"`
}

// IsDevelopment checks if the application is running in development mode
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}

// IsStaging checks if the application is running in staging mode
func (c *Config) IsStaging() bool {
	return c.App.Environment == "staging"
}

// IsProduction checks if the application is running in production mode
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// GetDatabaseDSN returns a PostgreSQL DSN string
func (c *Config) GetDatabaseDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
		c.Database.SSLMode,
	)
}

// Source returns the configuration of a source by name
func (c *Config) Source(name string) (SourceConfig, bool) {
	for _, s := range c.Sources {
		if s.Name == name {
			return s, true
		}
	}
	return SourceConfig{}, false
}

// LeagueNames returns the site-to-display league mapping of a source
func (s SourceConfig) LeagueNames() map[string]string {
	names := make(map[string]string, len(s.Leagues))
	for _, l := range s.Leagues {
		names[l.Site] = l.Display
	}
	return names
}

// StartDelay returns how long to wait before starting the source
func (s SourceConfig) StartDelay() time.Duration {
	return time.Duration(s.StartDelaySeconds) * time.Second
}

// Interval returns the pause between two cycles
func (c CycleConfig) Interval() time.Duration {
	return time.Duration(c.IntervalMillis) * time.Millisecond
}

// RetryDelay returns the back-off after a failed cycle
func (c CycleConfig) RetryDelay() time.Duration {
	return time.Duration(c.RetryDelaySeconds) * time.Second
}

// PageTimeout returns the bound on waiting for page elements
func (c CycleConfig) PageTimeout() time.Duration {
	return time.Duration(c.PageTimeoutSeconds) * time.Second
}

// GraceDelay returns the overlap allowed before a superseded run is stopped
func (h HandoverConfig) GraceDelay() time.Duration {
	return time.Duration(h.GraceDelaySeconds) * time.Second
}

// StopRetryDelay returns the pause between failed stop attempts
func (h HandoverConfig) StopRetryDelay() time.Duration {
	return time.Duration(h.StopRetryDelaySeconds) * time.Second
}

// RunRetryDelay returns the pause between run attempts
func (h HandoverConfig) RunRetryDelay() time.Duration {
	return time.Duration(h.RunRetryDelaySeconds) * time.Second
}

// HeartbeatTTL returns the lifetime of a run heartbeat
func (h HandoverConfig) HeartbeatTTL() time.Duration {
	return time.Duration(h.HeartbeatTTLSeconds) * time.Second
}
