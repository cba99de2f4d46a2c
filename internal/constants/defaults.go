package constants

// Server defaults
const (
	DefaultServerPort            = 3000
	DefaultServerReadTimeoutSec  = 15
	DefaultServerWriteTimeoutSec = 60
	DefaultServerIdleTimeoutSec  = 60
	DefaultMaxBodyBytes          = 1 << 20
	DefaultGracefulShutdownSec   = 30
	DefaultCleanupIntervalHours  = 24
	DefaultRetentionDays         = 90
	DefaultCommentListLimit      = 50
	DefaultDatabaseDriver        = "sqlite3"
	DefaultDatabasePath          = "precioverdadero.db"
)

// Retry defaults
const (
	DefaultRetryBackoffMs         = 1000
	DefaultMaxBackoffMs           = 60000
	DefaultMaxAttempts            = 5
	DefaultDatabaseRetryAttempts  = 3
	DefaultBackoffInitialMs       = 500
	DefaultBackoffMaxSec          = 5
	DefaultStreamReconnectInitial = 1000
	DefaultStreamReconnectMaxMs   = 30000
)

// Assistant and relay defaults
const (
	DefaultAssistantModel      = "gemini-2.5-flash"
	DefaultAssistantTimeoutSec = 60
	DefaultTwilioAPIBaseURL    = "https://api.twilio.com"
	DefaultTwilioTimeoutSec    = 15
	DefaultSupportMessage      = "Necesito ayuda"
	DefaultAMQPQueue           = "comment_events"
)

// Client defaults
const (
	DefaultClientAPIURL         = "http://localhost:3000"
	DefaultQueueBackend         = "file"
	DefaultQueueFile            = "pending_comments.json"
	DefaultRequestTimeoutMs     = 10000
	DefaultMinSyncIntervalMs    = 5000
	DefaultMaxSyncBackoffMs     = 300000
	PendingCommentsKey          = "precio_verdadero_pending_comments"
	DefaultFilePermissions      = 0600
	DefaultDirectoryPermissions = 0750
)

// Privacy settings
const (
	DefaultEmailMaskLength = 2
)

// Encryption settings
const (
	EncryptionSalt         = "precio-verdadero-email-salt-v1"
	EnvEnableEncryption    = "PRECIO_ENABLE_ENCRYPTION"
	EnvEncryptionSecret    = "PRECIO_ENCRYPTION_SECRET"
	MinEncryptionSecretLen = 32
)
