package service

// Logging Standards for Precio Verdadero
//
// This file defines standard field names, log levels, and patterns
// to ensure consistent logging across the server and the commentctl client.

// Standard field names. Personal fields are masked unless verbose.
const (
	LogFieldCommentID      = "comment_id"
	LogFieldKnowledgeID    = "knowledge_id"
	LogFieldRequestID      = "request_id"
	LogFieldTraceID        = "trace_id"
	LogFieldIdempotencyKey = "idempotency_key"
	LogFieldMessageSID     = "message_sid"

	LogFieldOperation = "operation"
	LogFieldMethod    = "method"

	LogFieldAuthor   = "author"
	LogFieldEmail    = "email"
	LogFieldNumber   = "number"
	LogFieldCategory = "category"
	LogFieldReason   = "reason"

	LogFieldDuration = "duration_ms"
	LogFieldCount    = "count"
	LogFieldSize     = "size_bytes"

	LogFieldURL        = "url"
	LogFieldStatusCode = "status_code"
	LogFieldRemoteIP   = "remote_ip"
	LogFieldUserAgent  = "user_agent"

	LogFieldDriver        = "driver"
	LogFieldRetentionDays = "retention_days"
)

// Log Level Usage Guidelines
//
// DEBUG: Detailed information for diagnosing problems. Only use in development or verbose mode.
//   - Rejected input and its reason
//   - Stream frames and reconnects
//   - Raw request/response data (sanitized)
//
// INFO: General information about application flow and key events.
//   - Application startup/shutdown
//   - Comments saved, sync passes finished
//   - Configuration loaded or reloaded
//
// WARN: Something unexpected happened, but the application can continue.
//   - Event publishing failed
//   - Chat history could not be saved
//   - Comment kept in the local queue after a failed send
//
// ERROR: Error events that might still allow the application to continue.
//   - Database reads and writes that failed
//   - Assistant or relay failures
//   - Local queue writes that failed
//
// FATAL: Very severe error events that will presumably lead the application to abort.
//   - Configuration required for startup is missing
//   - Database cannot be opened or migrated

// Standard Log Message Patterns
//
// Starting operations: "Starting [operation]"
// Completed operations: "Completed [operation]" or "[Operation] completed successfully"
// Failed operations: "Failed to [operation]"
// Skipping operations: "Skipping [operation]: [reason]"
// Configuration: "Loaded [config type] configuration" / "Using default [setting]"

// Example Usage:
//
// logger.WithFields(logrus.Fields{
//     LogFieldCommentID: comment.ID,
//     LogFieldAuthor:    privacy.MaskName(in.Name),
//     LogFieldEmail:     privacy.MaskEmail(in.Email),
// }).Info("Comment saved")
