package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"precioverdadero/internal/constants"
	"precioverdadero/internal/migrations"
	"precioverdadero/internal/models"
	"precioverdadero/internal/security"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

type Database struct {
	db      *sql.DB
	dialect string
	sealer  *emailSealer
}

// New opens the configured database and brings its schema up to date.
func New(ctx context.Context, cfg models.DatabaseConfig) (*Database, error) {
	db, dialect, err := Open(cfg)
	if err != nil {
		return nil, err
	}

	closeWith := func(err error) (*Database, error) {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("%w (close error: %v)", err, closeErr)
		}
		return nil, err
	}

	if err := db.PingContext(ctx); err != nil {
		return closeWith(fmt.Errorf("failed to ping database: %w", err))
	}

	if _, err := migrations.Apply(ctx, db, dialect); err != nil {
		return closeWith(fmt.Errorf("failed to initialize schema: %w", err))
	}

	sealer, err := sealerFromEnv()
	if err != nil {
		return closeWith(fmt.Errorf("failed to initialize email encryption: %w", err))
	}

	return &Database{db: db, dialect: dialect, sealer: sealer}, nil
}

// Open opens the configured database without touching its schema and
// returns the migration dialect for it.
func Open(cfg models.DatabaseConfig) (*sql.DB, string, error) {
	switch cfg.Driver {
	case "", migrations.DialectSQLite:
		path := cfg.Path
		if path == "" {
			path = constants.DefaultDatabasePath
		}
		if err := security.ValidateFilePath(path); err != nil {
			return nil, "", fmt.Errorf("invalid database path: %w", err)
		}

		file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, constants.DefaultFilePermissions)
		if err != nil {
			return nil, "", fmt.Errorf("failed to create database file: %w", err)
		}
		if err := file.Close(); err != nil {
			return nil, "", fmt.Errorf("failed to close database file: %w", err)
		}

		db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_busy_timeout=5000")
		if err != nil {
			return nil, "", fmt.Errorf("failed to open database: %w", err)
		}
		// One writer at a time; sqlite serializes anyway.
		db.SetMaxOpenConns(1)
		return db, migrations.DialectSQLite, nil

	case migrations.DialectPostgres:
		if cfg.URL == "" {
			return nil, "", fmt.Errorf("database url is required for postgres")
		}
		db, err := sql.Open("postgres", cfg.URL)
		if err != nil {
			return nil, "", fmt.Errorf("failed to open database: %w", err)
		}
		db.SetMaxOpenConns(10)
		return db, migrations.DialectPostgres, nil

	default:
		return nil, "", fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

func (d *Database) Close() error {
	return d.db.Close()
}

func (d *Database) Ping(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

func (d *Database) Dialect() string {
	return d.dialect
}

// rebind rewrites ? placeholders as $1, $2, ... for postgres.
func (d *Database) rebind(query string) string {
	if d.dialect != migrations.DialectPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Comment operations

// SaveComment stores a comment. When idempotencyKey is set and was seen
// before, the earlier comment is returned with duplicate=true and nothing
// is written.
func (d *Database) SaveComment(ctx context.Context, in models.CommentInput, idempotencyKey string) (comment *models.Comment, duplicate bool, err error) {
	email, err := d.sealer.seal(in.Email)
	if err != nil {
		return nil, false, fmt.Errorf("failed to encrypt email: %w", err)
	}

	var id int64
	err = withRetry(ctx, "save comment", func() error {
		tx, err := d.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback() }()

		duplicate = false
		if idempotencyKey != "" {
			err := tx.QueryRowContext(ctx, d.rebind(SelectIdempotencyKeyQuery), idempotencyKey).Scan(&id)
			if err == nil {
				duplicate = true
				return tx.Commit()
			}
			if !errors.Is(err, sql.ErrNoRows) {
				return err
			}
		}

		if err := tx.QueryRowContext(ctx, d.rebind(InsertCommentQuery), in.Name, email, in.Text).Scan(&id); err != nil {
			return err
		}
		if idempotencyKey != "" {
			if _, err := tx.ExecContext(ctx, d.rebind(InsertIdempotencyKeyQuery), idempotencyKey, id); err != nil {
				return err
			}
		}
		return tx.Commit()
	})
	if err != nil && idempotencyKey != "" {
		// A concurrent request with the same key may have won the insert.
		if existing, lookupErr := d.commentIDForKey(ctx, idempotencyKey); lookupErr == nil {
			id, duplicate, err = existing, true, nil
		}
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to save comment: %w", err)
	}

	comment, err = d.GetComment(ctx, id)
	if err != nil {
		return nil, false, err
	}
	return comment, duplicate, nil
}

func (d *Database) commentIDForKey(ctx context.Context, key string) (int64, error) {
	var id int64
	err := d.db.QueryRowContext(ctx, d.rebind(SelectIdempotencyKeyQuery), key).Scan(&id)
	return id, err
}

// GetComment returns nil, nil when no comment has the id.
func (d *Database) GetComment(ctx context.Context, id int64) (*models.Comment, error) {
	var c models.Comment
	var encryptedEmail string
	err := d.db.QueryRowContext(ctx, d.rebind(SelectCommentByIDQuery), id).
		Scan(&c.ID, &c.Name, &encryptedEmail, &c.Text, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get comment: %w", err)
	}

	c.Email, err = d.sealer.open(encryptedEmail)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt email: %w", err)
	}
	return &c, nil
}

// ListComments returns the newest comments first.
func (d *Database) ListComments(ctx context.Context, limit int) ([]models.Comment, error) {
	if limit <= 0 {
		limit = constants.DefaultCommentListLimit
	}

	rows, err := d.db.QueryContext(ctx, d.rebind(SelectRecentCommentsQuery), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list comments: %w", err)
	}
	defer rows.Close()

	comments := make([]models.Comment, 0, limit)
	for rows.Next() {
		var c models.Comment
		var encryptedEmail string
		if err := rows.Scan(&c.ID, &c.Name, &encryptedEmail, &c.Text, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan comment: %w", err)
		}
		if c.Email, err = d.sealer.open(encryptedEmail); err != nil {
			return nil, fmt.Errorf("failed to decrypt email: %w", err)
		}
		comments = append(comments, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list comments: %w", err)
	}
	return comments, nil
}

// Knowledge operations

func (d *Database) AddKnowledge(ctx context.Context, title, content, category string) (*models.KnowledgeEntry, error) {
	if category == "" {
		category = models.CategoryGeneral
	}

	var id int64
	err := withRetry(ctx, "add knowledge", func() error {
		return d.db.QueryRowContext(ctx, d.rebind(InsertKnowledgeQuery), title, content, category).Scan(&id)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to add knowledge: %w", err)
	}

	var k models.KnowledgeEntry
	err = d.db.QueryRowContext(ctx, d.rebind(SelectKnowledgeByIDQuery), id).
		Scan(&k.ID, &k.Title, &k.Content, &k.Category, &k.CreatedAt, &k.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to read knowledge entry: %w", err)
	}
	return &k, nil
}

// ListKnowledge returns every entry grouped by category, newest first
// within a category.
func (d *Database) ListKnowledge(ctx context.Context) ([]models.KnowledgeEntry, error) {
	rows, err := d.db.QueryContext(ctx, SelectAllKnowledgeQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to list knowledge: %w", err)
	}
	defer rows.Close()

	var entries []models.KnowledgeEntry
	for rows.Next() {
		var k models.KnowledgeEntry
		if err := rows.Scan(&k.ID, &k.Title, &k.Content, &k.Category, &k.CreatedAt, &k.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan knowledge entry: %w", err)
		}
		entries = append(entries, k)
	}
	return entries, rows.Err()
}

func (d *Database) CountKnowledge(ctx context.Context) (int, error) {
	var n int
	if err := d.db.QueryRowContext(ctx, CountKnowledgeQuery).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count knowledge: %w", err)
	}
	return n, nil
}

// Chat operations

func (d *Database) SaveChatExchange(ctx context.Context, userMessage, aiResponse string) error {
	return withRetry(ctx, "save chat exchange", func() error {
		_, err := d.db.ExecContext(ctx, d.rebind(InsertChatExchangeQuery), userMessage, aiResponse)
		return err
	})
}

func (d *Database) RecentChatExchanges(ctx context.Context, limit int) ([]models.ChatExchange, error) {
	rows, err := d.db.QueryContext(ctx, d.rebind(SelectRecentChatExchangesQuery), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list chat exchanges: %w", err)
	}
	defer rows.Close()

	var out []models.ChatExchange
	for rows.Next() {
		var c models.ChatExchange
		if err := rows.Scan(&c.ID, &c.UserMessage, &c.AIResponse, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan chat exchange: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// CleanupOldRecords removes chat history and idempotency keys older than
// retentionDays. Comments and knowledge are never expired.
func (d *Database) CleanupOldRecords(ctx context.Context, retentionDays int) (int64, error) {
	queries := []string{DeleteOldChatExchangesSQLite, DeleteOldIdempotencyKeysSQLite}
	if d.dialect == migrations.DialectPostgres {
		queries = []string{DeleteOldChatExchangesPostgres, DeleteOldIdempotencyKeysPostgres}
	}

	var total int64
	for _, q := range queries {
		var res sql.Result
		err := withRetry(ctx, "cleanup old records", func() error {
			var err error
			res, err = d.db.ExecContext(ctx, d.rebind(q), retentionDays)
			return err
		})
		if err != nil {
			return total, fmt.Errorf("failed to cleanup old records: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil {
			total += n
		}
	}
	return total, nil
}
