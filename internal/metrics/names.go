package metrics

// Metric names shared by the server and the client.
const (
	HTTPRequestsTotal   = "http_requests_total"
	HTTPRequestDuration = "http_request_duration"

	CommentsCreated    = "comments_created_total"
	CommentsDuplicated = "comments_duplicate_total"
	ChatRequests       = "chat_requests_total"
	SupportMessages    = "support_messages_total"
	EventsPublished    = "events_published_total"
	StreamClients      = "stream_clients"
	RetentionSweeps    = "retention_sweeps_total"
	RecordsPurged      = "records_purged_total"

	CircuitBreakerState = "circuit_breaker_state"

	SyncPasses      = "sync_passes_total"
	SyncItemsSynced = "sync_items_synced_total"
	SyncItemsFailed = "sync_items_failed_total"
	SyncDuration    = "sync_pass_duration"
	PendingComments = "pending_comments"
	SubmitOutcomes  = "submit_outcomes_total"
)
