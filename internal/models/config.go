package models

// Config holds the application configuration. The server and the
// commentctl client read the same file; each ignores the other's sections.
type Config struct {
	Server        ServerConfig    `json:"server" yaml:"server"`
	Database      DatabaseConfig  `json:"database" yaml:"database"`
	Assistant     AssistantConfig `json:"assistant" yaml:"assistant"`
	Twilio        TwilioConfig    `json:"twilio" yaml:"twilio"`
	AMQP          AMQPConfig      `json:"amqp" yaml:"amqp"`
	Tracing       TracingConfig   `json:"tracing" yaml:"tracing"`
	Retry         RetryConfig     `json:"retry" yaml:"retry"`
	Client        ClientConfig    `json:"client" yaml:"client"`
	LogLevel      string          `json:"log_level" yaml:"log_level"`
	LogFile       string          `json:"log_file" yaml:"log_file"`
	RetentionDays int             `json:"retentionDays" yaml:"retentionDays"`
}

type ServerConfig struct {
	Port                 int      `json:"port" yaml:"port"`
	ReadTimeoutSec       int      `json:"readTimeoutSec" yaml:"readTimeoutSec"`
	WriteTimeoutSec      int      `json:"writeTimeoutSec" yaml:"writeTimeoutSec"`
	IdleTimeoutSec       int      `json:"idleTimeoutSec" yaml:"idleTimeoutSec"`
	MaxBodyBytes         int64    `json:"maxBodyBytes" yaml:"maxBodyBytes"`
	CleanupIntervalHours int      `json:"cleanupIntervalHours" yaml:"cleanupIntervalHours"`
	AllowedOrigins       []string `json:"allowedOrigins" yaml:"allowedOrigins"`
	TrustProxyHeaders    bool     `json:"trustProxyHeaders" yaml:"trustProxyHeaders"`
	DetailedLogging      bool     `json:"detailedLogging" yaml:"detailedLogging"`
	TimeZone             string   `json:"timeZone" yaml:"timeZone"`
	// Verbose logs personal data unmasked. Set from the command line only.
	Verbose bool `json:"-" yaml:"-"`
}

// DatabaseConfig selects the comment store. Driver is "sqlite3" (Path) or
// "postgres" (URL).
type DatabaseConfig struct {
	Driver string `json:"driver" yaml:"driver"`
	Path   string `json:"path" yaml:"path"`
	URL    string `json:"url" yaml:"url"`
}

type AssistantConfig struct {
	APIKey     string `json:"api_key" yaml:"api_key"`
	Model      string `json:"model" yaml:"model"`
	PromptFile string `json:"prompt_file" yaml:"prompt_file"`
	TimeoutSec int    `json:"timeoutSec" yaml:"timeoutSec"`
}

type TwilioConfig struct {
	AccountSID   string `json:"account_sid" yaml:"account_sid"`
	AuthToken    string `json:"auth_token" yaml:"auth_token"`
	WhatsAppFrom string `json:"whatsapp_from" yaml:"whatsapp_from"`
	APIBaseURL   string `json:"api_base_url" yaml:"api_base_url"`
	TimeoutSec   int    `json:"timeoutSec" yaml:"timeoutSec"`
}

// Configured reports whether every credential needed to send is present.
func (t TwilioConfig) Configured() bool {
	return t.AccountSID != "" && t.AuthToken != "" && t.WhatsAppFrom != ""
}

type AMQPConfig struct {
	URL   string `json:"url" yaml:"url"`
	Queue string `json:"queue" yaml:"queue"`
}

type TracingConfig struct {
	Enabled      bool    `json:"enabled" yaml:"enabled"`
	ServiceName  string  `json:"service_name" yaml:"service_name"`
	OTLPEndpoint string  `json:"otlp_endpoint" yaml:"otlp_endpoint"`
	SampleRate   float64 `json:"sample_rate" yaml:"sample_rate"`
	UseConsole   bool    `json:"use_console" yaml:"use_console"`
}

// RetryConfig holds retry related configurations
type RetryConfig struct {
	InitialBackoffMs int `json:"initialBackoffMs" yaml:"initialBackoffMs"`
	MaxBackoffMs     int `json:"maxBackoffMs" yaml:"maxBackoffMs"`
	MaxAttempts      int `json:"maxAttempts" yaml:"maxAttempts"`
}

// ClientConfig configures the offline-capable comment client.
type ClientConfig struct {
	APIURL            string `json:"api_url" yaml:"api_url"`
	QueueBackend      string `json:"queue_backend" yaml:"queue_backend"`
	QueuePath         string `json:"queue_path" yaml:"queue_path"`
	RequestTimeoutMs  int    `json:"requestTimeoutMs" yaml:"requestTimeoutMs"`
	MinSyncIntervalMs int    `json:"minSyncIntervalMs" yaml:"minSyncIntervalMs"`
	MaxSyncBackoffMs  int    `json:"maxSyncBackoffMs" yaml:"maxSyncBackoffMs"`
}

type ConfigError struct {
	Message string
}

func (e ConfigError) Error() string {
	return e.Message
}
