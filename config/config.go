package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/s0up4200/reqflow/field"
	"github.com/s0up4200/reqflow/reqconfig"
)

// EnvPrefix prefixes environment overrides, e.g. REQFLOW_REQUEST_ORIGIN
const EnvPrefix = "REQFLOW"

// Load loads the configuration from file. With no explicit path a missing
// file is not an error and defaults apply.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set default values
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("reqflow")
		v.SetConfigType("yaml")

		v.AddConfigPath(".")
		if dir, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(filepath.Join(dir, "reqflow"))
		}
		v.AddConfigPath("/etc/reqflow/")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) || configPath != "" {
			return nil, fmt.Errorf("error reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Client defaults
	v.SetDefault("client.timeout", "30s")
	v.SetDefault("client.repeat_window", "500ms")
	v.SetDefault("client.throttle_delay", "200ms")
	v.SetDefault("client.user_agent", "reqflow")
	v.SetDefault("client.max_entries", 4096)

	// Request and result defaults
	v.SetDefault("request.origin", "")
	v.SetDefault("request.path", "api")
	v.SetDefault("request.content_type", reqconfig.ContentTypeJSON)
	v.SetDefault("result.success_code", 200)
	v.SetDefault("result.error_code", 500)
	v.SetDefault("result.code", "code")
	v.SetDefault("result.message", "message")
	v.SetDefault("result.data", "data")

	// Upload defaults
	v.SetDefault("upload.api", "")
	v.SetDefault("upload.request_field", "file")
	v.SetDefault("upload.result_field", "image")

	// Auth defaults
	v.SetDefault("auth.header", "Authorization")
	v.SetDefault("auth.scheme", "Bearer")
	v.SetDefault("auth.profile", "default")

	// Redis defaults
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.prefix", "reqflow:debounce:")

	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.addr", ":9090")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.color", true)
	v.SetDefault("logging.max_size_mb", 10)
	v.SetDefault("logging.max_backups", 3)
	v.SetDefault("logging.max_age_days", 28)
}

// validate checks if the configuration is valid
func validate(cfg *Config) error {
	if cfg.Client.Timeout < 0 {
		return fmt.Errorf("client.timeout must not be negative")
	}
	if cfg.Client.RepeatWindow < 0 {
		return fmt.Errorf("client.repeat_window must not be negative")
	}
	if cfg.Client.ThrottleDelay < 0 {
		return fmt.Errorf("client.throttle_delay must not be negative")
	}

	validContentTypes := map[string]bool{
		reqconfig.ContentTypeJSON: true,
		reqconfig.ContentTypeForm: true,
	}
	if !validContentTypes[cfg.Request.ContentType] {
		return fmt.Errorf("invalid request.content_type: %s", cfg.Request.ContentType)
	}

	for name, d := range map[string]any{
		"result.code":         cfg.Result.Code,
		"result.message":      cfg.Result.Message,
		"result.data":         cfg.Result.Data,
		"upload.result_field": cfg.Upload.ResultField,
	} {
		if _, err := field.Parse(d); err != nil {
			return fmt.Errorf("invalid %s: %w", name, err)
		}
	}

	if cfg.Upload.Concurrency < 0 {
		return fmt.Errorf("upload.concurrency must not be negative")
	}
	if cfg.Redis.Enabled && cfg.Redis.Addr == "" {
		return fmt.Errorf("redis.addr is required when redis is enabled")
	}

	// Validate logging level
	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[cfg.Logging.Level] {
		return fmt.Errorf("invalid logging level: %s", cfg.Logging.Level)
	}

	// Validate logging format
	validFormats := map[string]bool{
		"console": true,
		"json":    true,
	}
	if !validFormats[cfg.Logging.Format] {
		return fmt.Errorf("invalid logging format: %s", cfg.Logging.Format)
	}

	return nil
}

// Partial converts the file settings into a configuration overlay. Field
// descriptors are compiled here, so expression errors surface at load time.
func (c *Config) Partial() (reqconfig.Partial, error) {
	code, err := field.Parse(c.Result.Code)
	if err != nil {
		return reqconfig.Partial{}, fmt.Errorf("result.code: %w", err)
	}
	message, err := field.Parse(c.Result.Message)
	if err != nil {
		return reqconfig.Partial{}, fmt.Errorf("result.message: %w", err)
	}
	data, err := field.Parse(c.Result.Data)
	if err != nil {
		return reqconfig.Partial{}, fmt.Errorf("result.data: %w", err)
	}
	resultField, err := field.Parse(c.Upload.ResultField)
	if err != nil {
		return reqconfig.Partial{}, fmt.Errorf("upload.result_field: %w", err)
	}

	req := &reqconfig.RequestPartial{
		Origin:      reqconfig.Literal(c.Request.Origin),
		Path:        reqconfig.Ptr(c.Request.Path),
		ContentType: reqconfig.Ptr(c.Request.ContentType),
	}
	if len(c.Request.Header) > 0 {
		req.Header = reqconfig.Literal(c.Request.Header)
	}
	if len(c.Request.Data) > 0 {
		req.Data = reqconfig.Literal(c.Request.Data)
	}
	if len(c.Request.GetData) > 0 {
		req.GetData = reqconfig.Literal(c.Request.GetData)
	}

	return reqconfig.Partial{
		Request: req,
		Result: &reqconfig.ResultPartial{
			SuccessCode: c.Result.SuccessCode,
			ErrorCode:   c.Result.ErrorCode,
			Code:        &code,
			Message:     &message,
			Data:        &data,
		},
		Upload: &reqconfig.UploadPartial{
			API:          reqconfig.Ptr(c.Upload.API),
			RequestField: reqconfig.Ptr(c.Upload.RequestField),
			ResultField:  &resultField,
		},
	}, nil
}
