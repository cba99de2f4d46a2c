package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"precioverdadero/internal/constants"
	"precioverdadero/internal/models"
	"precioverdadero/internal/security"

	"gopkg.in/yaml.v3"
)

var (
	ErrMissingDBURL       = models.ConfigError{Message: "missing database url for postgres driver"}
	ErrUnknownDBDriver    = models.ConfigError{Message: "unknown database driver"}
	ErrInvalidAPIURL      = models.ConfigError{Message: "client api_url must be an absolute http(s) URL"}
	ErrUnknownQueueStore  = models.ConfigError{Message: "client queue_backend must be file, sqlite or memory"}
	ErrInvalidSampleRate  = models.ConfigError{Message: "tracing sample_rate must be between 0 and 1"}
	ErrNegativeRetryValue = models.ConfigError{Message: "retry settings must not be negative"}
)

// LoadConfig reads a JSON or YAML (by extension) configuration file,
// applies defaults and environment overrides, and validates the result.
func LoadConfig(path string) (*models.Config, error) {
	if err := security.ValidateFilePath(path); err != nil {
		return nil, fmt.Errorf("invalid config path: %w", err)
	}

	file, err := os.ReadFile(path) // #nosec G304 - validated above
	if err != nil {
		return nil, err
	}

	config, err := Parse(file, filepath.Ext(path))
	if err != nil {
		return nil, err
	}

	applyEnvironmentOverrides(config)

	if err := validate(config); err != nil {
		return nil, err
	}
	if err := validateSecurity(config); err != nil {
		return nil, err
	}
	return config, nil
}

// Default returns a configuration built from defaults and the environment
// alone, for running without a config file.
func Default() (*models.Config, error) {
	config := &models.Config{}
	applyEnvironmentOverrides(config)
	if err := validate(config); err != nil {
		return nil, err
	}
	return config, nil
}

// Parse decodes raw configuration bytes. ext selects the format.
func Parse(data []byte, ext string) (*models.Config, error) {
	var config models.Config
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("parse yaml config: %w", err)
		}
	default:
		if err := json.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("parse json config: %w", err)
		}
	}
	return &config, nil
}

func validate(c *models.Config) error {
	if c.Server.Port <= 0 {
		c.Server.Port = constants.DefaultServerPort
	}
	if c.Server.ReadTimeoutSec <= 0 {
		c.Server.ReadTimeoutSec = constants.DefaultServerReadTimeoutSec
	}
	if c.Server.WriteTimeoutSec <= 0 {
		c.Server.WriteTimeoutSec = constants.DefaultServerWriteTimeoutSec
	}
	if c.Server.IdleTimeoutSec <= 0 {
		c.Server.IdleTimeoutSec = constants.DefaultServerIdleTimeoutSec
	}
	if c.Server.MaxBodyBytes <= 0 {
		c.Server.MaxBodyBytes = constants.DefaultMaxBodyBytes
	}
	if c.Server.CleanupIntervalHours <= 0 {
		c.Server.CleanupIntervalHours = constants.DefaultCleanupIntervalHours
	}
	if c.RetentionDays <= 0 {
		c.RetentionDays = constants.DefaultRetentionDays
	}

	if c.Database.Driver == "" {
		c.Database.Driver = constants.DefaultDatabaseDriver
	}
	switch c.Database.Driver {
	case "sqlite3":
		if c.Database.Path == "" {
			c.Database.Path = constants.DefaultDatabasePath
		}
	case "postgres":
		if c.Database.URL == "" {
			return ErrMissingDBURL
		}
	default:
		return models.ConfigError{Message: fmt.Sprintf("%s: %s", ErrUnknownDBDriver.Message, c.Database.Driver)}
	}

	if c.Assistant.Model == "" {
		c.Assistant.Model = constants.DefaultAssistantModel
	}
	if c.Assistant.TimeoutSec <= 0 {
		c.Assistant.TimeoutSec = constants.DefaultAssistantTimeoutSec
	}
	if c.Assistant.PromptFile != "" {
		if err := security.ValidateFilePath(c.Assistant.PromptFile); err != nil {
			return models.ConfigError{Message: fmt.Sprintf("invalid prompt_file: %v", err)}
		}
	}

	if c.Twilio.APIBaseURL == "" {
		c.Twilio.APIBaseURL = constants.DefaultTwilioAPIBaseURL
	}
	if c.Twilio.TimeoutSec <= 0 {
		c.Twilio.TimeoutSec = constants.DefaultTwilioTimeoutSec
	}
	if c.AMQP.Queue == "" {
		c.AMQP.Queue = constants.DefaultAMQPQueue
	}

	if c.Tracing.ServiceName == "" {
		c.Tracing.ServiceName = "precioverdadero"
	}
	if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
		return ErrInvalidSampleRate
	}

	if c.Retry.InitialBackoffMs < 0 || c.Retry.MaxBackoffMs < 0 || c.Retry.MaxAttempts < 0 {
		return ErrNegativeRetryValue
	}
	if c.Retry.InitialBackoffMs == 0 {
		c.Retry.InitialBackoffMs = constants.DefaultRetryBackoffMs
	}
	if c.Retry.MaxBackoffMs == 0 {
		c.Retry.MaxBackoffMs = constants.DefaultMaxBackoffMs
	}
	if c.Retry.MaxAttempts == 0 {
		c.Retry.MaxAttempts = constants.DefaultMaxAttempts
	}

	return validateClient(&c.Client)
}

func validateClient(c *models.ClientConfig) error {
	if c.APIURL == "" {
		c.APIURL = constants.DefaultClientAPIURL
	}
	u, err := url.Parse(c.APIURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return ErrInvalidAPIURL
	}

	if c.QueueBackend == "" {
		c.QueueBackend = constants.DefaultQueueBackend
	}
	switch c.QueueBackend {
	case "file", "sqlite", "memory":
	default:
		return ErrUnknownQueueStore
	}
	if c.QueuePath == "" {
		c.QueuePath = constants.DefaultQueueFile
	}
	if c.QueueBackend != "memory" {
		if err := security.ValidateFilePath(c.QueuePath); err != nil {
			return models.ConfigError{Message: fmt.Sprintf("invalid queue_path: %v", err)}
		}
	}

	if c.RequestTimeoutMs <= 0 {
		c.RequestTimeoutMs = constants.DefaultRequestTimeoutMs
	}
	if c.MinSyncIntervalMs < 0 {
		c.MinSyncIntervalMs = 0
	} else if c.MinSyncIntervalMs == 0 {
		c.MinSyncIntervalMs = constants.DefaultMinSyncIntervalMs
	}
	if c.MaxSyncBackoffMs <= 0 {
		c.MaxSyncBackoffMs = constants.DefaultMaxSyncBackoffMs
	}
	if c.MaxSyncBackoffMs < c.MinSyncIntervalMs {
		c.MaxSyncBackoffMs = c.MinSyncIntervalMs
	}
	return nil
}

func applyEnvironmentOverrides(c *models.Config) {
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			c.Server.Port = p
		}
	}
	if driver := os.Getenv("DB_DRIVER"); driver != "" {
		c.Database.Driver = driver
	}
	if path := os.Getenv("DB_PATH"); path != "" {
		c.Database.Path = path
	}
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		c.Database.URL = dsn
	}

	// Secrets are expected from the environment rather than the file.
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		c.Assistant.APIKey = key
	}
	if sid := os.Getenv("TWILIO_ACCOUNT_SID"); sid != "" {
		c.Twilio.AccountSID = sid
	}
	if token := os.Getenv("TWILIO_AUTH_TOKEN"); token != "" {
		c.Twilio.AuthToken = token
	}
	if from := os.Getenv("TWILIO_WHATSAPP_FROM"); from != "" {
		c.Twilio.WhatsAppFrom = from
	}
	if amqpURL := os.Getenv("AMQP_URL"); amqpURL != "" {
		c.AMQP.URL = amqpURL
	}

	if apiURL := os.Getenv("PRECIO_API_URL"); apiURL != "" {
		c.Client.APIURL = apiURL
	}
	if queuePath := os.Getenv("PRECIO_QUEUE_PATH"); queuePath != "" {
		c.Client.QueuePath = queuePath
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		c.LogLevel = level
	}
}

// validateSecurity performs security-specific validation
func validateSecurity(c *models.Config) error {
	if os.Getenv("PRECIO_ENV") != "production" {
		return nil
	}
	if c.LogLevel == "debug" {
		return models.ConfigError{Message: "debug logging should not be used in production (logs contain submitted text)"}
	}
	if strings.HasPrefix(c.Client.APIURL, "http://") && !isLocalURL(c.Client.APIURL) {
		return models.ConfigError{Message: "client api_url must use https in production"}
	}
	return nil
}

func isLocalURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	host := u.Hostname()
	return host == "localhost" || host == "127.0.0.1" || host == "::1"
}
