package collection

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/starford/vidmark/internal/models"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS videos (
	seq         INTEGER PRIMARY KEY,
	id          TEXT NOT NULL UNIQUE,
	title       TEXT NOT NULL DEFAULT '',
	url         TEXT NOT NULL DEFAULT '',
	duration_ms INTEGER NOT NULL DEFAULT 0,
	created_at  TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS annotations (
	seq          INTEGER PRIMARY KEY,
	id           TEXT NOT NULL UNIQUE,
	video_id     TEXT NOT NULL,
	timestamp_ms INTEGER NOT NULL,
	timecode     TEXT NOT NULL,
	image_path   TEXT NOT NULL,
	thumb_path   TEXT NOT NULL,
	notes        TEXT NOT NULL DEFAULT '',
	created_at   TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_annotations_video ON annotations(video_id, timestamp_ms);
`

// SQLite stores the document in two tables. seq preserves insertion order.
type SQLite struct {
	conn *sql.DB
}

// OpenSQLite opens (or creates) the database and applies the schema.
func OpenSQLite(dsn string) (*SQLite, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("collection: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("collection: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("collection: apply schema: %w", err)
	}
	return &SQLite{conn: conn}, nil
}

func (s *SQLite) Close() error {
	return s.conn.Close()
}

func (s *SQLite) Load(ctx context.Context) (*Document, error) {
	doc := Empty()

	rows, err := s.conn.QueryContext(ctx,
		`SELECT id, title, url, duration_ms, created_at FROM videos ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("collection: query videos: %w", err)
	}
	for rows.Next() {
		var v models.Video
		var created string
		if err := rows.Scan(&v.ID, &v.Title, &v.URL, &v.DurationMs, &created); err != nil {
			rows.Close()
			return nil, fmt.Errorf("collection: scan video: %w", err)
		}
		if v.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
			rows.Close()
			return nil, fmt.Errorf("collection: video %s created_at: %w", v.ID, err)
		}
		doc.Videos = append(doc.Videos, v)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("collection: iterate videos: %w", err)
	}

	rows, err = s.conn.QueryContext(ctx, `
		SELECT id, video_id, timestamp_ms, timecode, image_path, thumb_path, notes, created_at
		FROM annotations ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("collection: query annotations: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var a models.Annotation
		var created string
		if err := rows.Scan(&a.ID, &a.VideoID, &a.TimestampMs, &a.Timecode,
			&a.ImagePath, &a.ThumbPath, &a.Notes, &created); err != nil {
			return nil, fmt.Errorf("collection: scan annotation: %w", err)
		}
		if a.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
			return nil, fmt.Errorf("collection: annotation %s created_at: %w", a.ID, err)
		}
		doc.Annotations = append(doc.Annotations, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("collection: iterate annotations: %w", err)
	}
	return doc, nil
}

// Save replaces both tables inside one transaction.
func (s *SQLite) Save(ctx context.Context, doc *Document) error {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("collection: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if _, err := tx.ExecContext(ctx, `DELETE FROM videos`); err != nil {
		return fmt.Errorf("collection: clear videos: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM annotations`); err != nil {
		return fmt.Errorf("collection: clear annotations: %w", err)
	}

	vstmt, err := tx.PrepareContext(ctx,
		`INSERT INTO videos (seq, id, title, url, duration_ms, created_at) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("collection: prepare video insert: %w", err)
	}
	defer vstmt.Close()
	for i, v := range doc.Videos {
		if _, err := vstmt.ExecContext(ctx, i+1, v.ID, v.Title, v.URL, v.DurationMs,
			v.CreatedAt.UTC().Format(time.RFC3339Nano)); err != nil {
			return fmt.Errorf("collection: insert video %s: %w", v.ID, err)
		}
	}

	astmt, err := tx.PrepareContext(ctx, `
		INSERT INTO annotations
			(seq, id, video_id, timestamp_ms, timecode, image_path, thumb_path, notes, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("collection: prepare annotation insert: %w", err)
	}
	defer astmt.Close()
	for i, a := range doc.Annotations {
		if _, err := astmt.ExecContext(ctx, i+1, a.ID, a.VideoID, a.TimestampMs, a.Timecode,
			a.ImagePath, a.ThumbPath, a.Notes, a.CreatedAt.UTC().Format(time.RFC3339Nano)); err != nil {
			return fmt.Errorf("collection: insert annotation %s: %w", a.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("collection: commit: %w", err)
	}
	return nil
}
