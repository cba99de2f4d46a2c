package database

// Queries use ? placeholders; rebind rewrites them for postgres.

// Comment queries
const (
	InsertCommentQuery = `
		INSERT INTO comments (name, email, text)
		VALUES (?, ?, ?)
		RETURNING id
	`

	SelectCommentByIDQuery = `
		SELECT id, name, email, text, created_at
		FROM comments
		WHERE id = ?
	`

	SelectRecentCommentsQuery = `
		SELECT id, name, email, text, created_at
		FROM comments
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`
)

// Idempotency queries
const (
	SelectIdempotencyKeyQuery = `
		SELECT comment_id FROM idempotency_keys WHERE key = ?
	`

	InsertIdempotencyKeyQuery = `
		INSERT INTO idempotency_keys (key, comment_id) VALUES (?, ?)
	`
)

// Knowledge queries
const (
	InsertKnowledgeQuery = `
		INSERT INTO ai_knowledge (title, content, category)
		VALUES (?, ?, ?)
		RETURNING id
	`

	SelectKnowledgeByIDQuery = `
		SELECT id, title, content, category, created_at, updated_at
		FROM ai_knowledge
		WHERE id = ?
	`

	SelectAllKnowledgeQuery = `
		SELECT id, title, content, category, created_at, updated_at
		FROM ai_knowledge
		ORDER BY category, created_at DESC, id DESC
	`

	CountKnowledgeQuery = `SELECT COUNT(*) FROM ai_knowledge`
)

// Chat queries
const (
	InsertChatExchangeQuery = `
		INSERT INTO chat_conversations (user_message, ai_response)
		VALUES (?, ?)
	`

	SelectRecentChatExchangesQuery = `
		SELECT id, user_message, ai_response, created_at
		FROM chat_conversations
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`
)

// Retention queries, one per dialect.
const (
	DeleteOldChatExchangesSQLite = `
		DELETE FROM chat_conversations
		WHERE created_at < datetime('now', '-' || ? || ' days')
	`

	DeleteOldIdempotencyKeysSQLite = `
		DELETE FROM idempotency_keys
		WHERE created_at < datetime('now', '-' || ? || ' days')
	`

	DeleteOldChatExchangesPostgres = `
		DELETE FROM chat_conversations
		WHERE created_at < NOW() - make_interval(days => ?)
	`

	DeleteOldIdempotencyKeysPostgres = `
		DELETE FROM idempotency_keys
		WHERE created_at < NOW() - make_interval(days => ?)
	`
)
