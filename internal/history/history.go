// Package history keeps a local SQLite ledger of published posts.
//
// It records what was posted, not how the session was obtained: the
// session store stays a single slot and is never written here.
package history

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite" // Pure Go SQLite driver, registers as "sqlite".

	"github.com/tonimelisma/reelpost/internal/media"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const (
	dirPerms = 0o700

	sqlInsertPost = `INSERT INTO posts
		(account, media_path, kind, reel, caption, media_id, url, posted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	sqlListPosts = `SELECT id, account, media_path, kind, reel, caption, media_id, url, posted_at
		FROM posts
		WHERE (? = '' OR account = ?)
		ORDER BY posted_at DESC, id DESC
		LIMIT ?`
)

// Post is one published item.
type Post struct {
	ID        int64
	Account   string
	MediaPath string
	Kind      media.Kind
	Reel      bool
	Caption   string
	MediaID   string
	URL       string
	PostedAt  time.Time
}

// Ledger is the post history database.
type Ledger struct {
	db      *sql.DB
	logger  *slog.Logger
	nowFunc func() time.Time
}

// Open opens (creating if needed) the ledger at dbPath and applies pending
// migrations.
func Open(ctx context.Context, dbPath string, logger *slog.Logger) (*Ledger, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), dirPerms); err != nil {
		return nil, fmt.Errorf("history: creating directory for %s: %w", dbPath, err)
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", dbPath)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("history: opening database %s: %w", dbPath, err)
	}

	db.SetMaxOpenConns(1)

	if err := migrate(ctx, db, logger); err != nil {
		db.Close()
		return nil, err
	}

	logger.Debug("history opened", slog.String("db_path", dbPath))

	return &Ledger{db: db, logger: logger, nowFunc: time.Now}, nil
}

func migrate(ctx context.Context, db *sql.DB, logger *slog.Logger) error {
	subFS, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("history: creating migration sub-filesystem: %w", err)
	}

	provider, err := goose.NewProvider(goose.DialectSQLite3, db, subFS)
	if err != nil {
		return fmt.Errorf("history: creating migration provider: %w", err)
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("history: running migrations: %w", err)
	}

	for _, r := range results {
		logger.Info("applied migration",
			slog.String("source", r.Source.Path),
			slog.Int64("duration_ms", r.Duration.Milliseconds()),
		)
	}

	return nil
}

// Record inserts p and returns its row ID. A zero PostedAt is stamped with
// the current time.
func (l *Ledger) Record(ctx context.Context, p Post) (int64, error) {
	if p.PostedAt.IsZero() {
		p.PostedAt = l.nowFunc()
	}

	res, err := l.db.ExecContext(ctx, sqlInsertPost,
		p.Account, p.MediaPath, string(p.Kind), p.Reel, p.Caption, p.MediaID, p.URL,
		p.PostedAt.UnixNano(),
	)
	if err != nil {
		return 0, fmt.Errorf("history: recording post %s: %w", p.MediaID, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("history: reading post id: %w", err)
	}

	l.logger.Debug("post recorded", slog.Int64("id", id), slog.String("media_id", p.MediaID))

	return id, nil
}

// List returns up to limit posts, newest first. A limit of zero or less
// returns every post. An empty account lists every account.
func (l *Ledger) List(ctx context.Context, account string, limit int) ([]Post, error) {
	if limit <= 0 {
		limit = -1 // SQLite treats a negative LIMIT as no limit.
	}

	rows, err := l.db.QueryContext(ctx, sqlListPosts, account, account, limit)
	if err != nil {
		return nil, fmt.Errorf("history: listing posts: %w", err)
	}
	defer rows.Close()

	var posts []Post

	for rows.Next() {
		var (
			p        Post
			kind     string
			postedAt int64
		)

		if err := rows.Scan(&p.ID, &p.Account, &p.MediaPath, &kind, &p.Reel,
			&p.Caption, &p.MediaID, &p.URL, &postedAt); err != nil {
			return nil, fmt.Errorf("history: scanning post: %w", err)
		}

		p.Kind = media.Kind(kind)
		p.PostedAt = time.Unix(0, postedAt).UTC()
		posts = append(posts, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history: iterating posts: %w", err)
	}

	return posts, nil
}

// Close closes the database.
func (l *Ledger) Close() error {
	return l.db.Close()
}
