package config

import "time"

// Config represents the complete configuration structure
type Config struct {
	Client  ClientConfig  `mapstructure:"client" json:"client"`
	Request RequestConfig `mapstructure:"request" json:"request"`
	Result  ResultConfig  `mapstructure:"result" json:"result"`
	Upload  UploadConfig  `mapstructure:"upload" json:"upload"`
	Auth    AuthConfig    `mapstructure:"auth" json:"auth"`
	Redis   RedisConfig   `mapstructure:"redis" json:"redis"`
	Metrics MetricsConfig `mapstructure:"metrics" json:"metrics"`
	Logging LoggingConfig `mapstructure:"logging" json:"logging"`
}

// ClientConfig holds pipeline timing settings
type ClientConfig struct {
	Timeout       time.Duration `mapstructure:"timeout" json:"timeout"`
	RepeatWindow  time.Duration `mapstructure:"repeat_window" json:"repeat_window"`
	ThrottleDelay time.Duration `mapstructure:"throttle_delay" json:"throttle_delay"`
	UserAgent     string        `mapstructure:"user_agent" json:"user_agent"`
	// MaxEntries caps the in-memory repeat-suppression store; <= 0 is unbounded
	MaxEntries int `mapstructure:"max_entries" json:"max_entries"`
}

// RequestConfig describes the request side of every call
type RequestConfig struct {
	Origin      string            `mapstructure:"origin" json:"origin"`
	Path        string            `mapstructure:"path" json:"path"`
	ContentType string            `mapstructure:"content_type" json:"content_type"`
	Header      map[string]string `mapstructure:"header" json:"header"`
	Data        map[string]any    `mapstructure:"data" json:"data"`
	GetData     map[string]any    `mapstructure:"get_data" json:"get_data"`
}

// ResultConfig describes how responses are decoded. Field values accept a
// key, a path list, or a map with one of expr, jq or path.
type ResultConfig struct {
	SuccessCode any `mapstructure:"success_code" json:"success_code"`
	ErrorCode   any `mapstructure:"error_code" json:"error_code"`
	Code        any `mapstructure:"code" json:"code"`
	Message     any `mapstructure:"message" json:"message"`
	Data        any `mapstructure:"data" json:"data"`
}

// UploadConfig describes file uploads
type UploadConfig struct {
	API          string `mapstructure:"api" json:"api"`
	RequestField string `mapstructure:"request_field" json:"request_field"`
	ResultField  any    `mapstructure:"result_field" json:"result_field"`
	Concurrency  int    `mapstructure:"concurrency" json:"concurrency"`
}

// AuthConfig controls how a stored token becomes a request header
type AuthConfig struct {
	Header string `mapstructure:"header" json:"header"`
	Scheme string `mapstructure:"scheme" json:"scheme"`
	// Profile selects the keyring entry
	Profile string `mapstructure:"profile" json:"profile"`
}

// Redacted returns a copy safe to print
func (c Config) Redacted() Config {
	if c.Redis.Password != "" {
		c.Redis.Password = "********"
	}
	return c
}

// RedisConfig enables a shared repeat-suppression store
type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled" json:"enabled"`
	Addr     string `mapstructure:"addr" json:"addr"`
	Password string `mapstructure:"password" json:"password,omitempty"`
	DB       int    `mapstructure:"db" json:"db"`
	Prefix   string `mapstructure:"prefix" json:"prefix"`
}

// MetricsConfig controls the Prometheus endpoint
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" json:"enabled"`
	Addr    string `mapstructure:"addr" json:"addr"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level" json:"level"`
	Format string `mapstructure:"format" json:"format"`
	Color  bool   `mapstructure:"color" json:"color"`
	// File enables a rotating log file next to the console output
	File       string `mapstructure:"file" json:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb" json:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups" json:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days" json:"max_age_days"`
}
