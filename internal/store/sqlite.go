package store

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrations embed.FS

const timeLayout = time.RFC3339Nano

type SQLite struct {
	db *sql.DB
}

func OpenSQLite(ctx context.Context, path string) (*SQLite, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create sqlite dir: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if _, err := db.ExecContext(ctx, `PRAGMA journal_mode = WAL;`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set sqlite WAL: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	if err := applyMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &SQLite{db: db}, nil
}

func (s *SQLite) RecordDownload(ctx context.Context, rec DownloadRecord) error {
	ts := rec.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO manga_downloads (url, output_name, created_at) VALUES (?, ?, ?)`,
		rec.URL, rec.OutputName, ts.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("record download: %w", err)
	}

	return nil
}

func (s *SQLite) ListDownloads(ctx context.Context) ([]DownloadRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, url, output_name, created_at FROM manga_downloads ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list downloads: %w", err)
	}
	defer rows.Close()

	var out []DownloadRecord
	for rows.Next() {
		var (
			id      int64
			rec     DownloadRecord
			created string
		)
		if err := rows.Scan(&id, &rec.URL, &rec.OutputName, &created); err != nil {
			return nil, fmt.Errorf("scan download: %w", err)
		}

		rec.ID = strconv.FormatInt(id, 10)
		if ts, err := time.Parse(timeLayout, created); err == nil {
			rec.Timestamp = ts
		}

		out = append(out, rec)
	}

	return out, rows.Err()
}

func (s *SQLite) ListUsers(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT username, secret FROM auth_users`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	out := map[string]string{}
	for rows.Next() {
		var name, secret string
		if err := rows.Scan(&name, &secret); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		out[name] = secret
	}

	return out, rows.Err()
}

func (s *SQLite) AddUser(ctx context.Context, username, secret string) error {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO auth_users (username, secret, created_at) VALUES (?, ?, ?)
		 ON CONFLICT(username) DO NOTHING`,
		username, secret, time.Now().UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("add user: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("add user: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrUserExists, username)
	}

	return nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

func applyMigrations(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS schema_migrations (
    version TEXT PRIMARY KEY,
    applied_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);`); err != nil {
		return fmt.Errorf("ensure schema_migrations: %w", err)
	}

	entries, err := fs.ReadDir(migrations, "migrations")
	if err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	for _, name := range names {
		var exists int
		if err := db.QueryRowContext(ctx,
			`SELECT COUNT(1) FROM schema_migrations WHERE version = ?`, name).Scan(&exists); err != nil {
			return fmt.Errorf("check migration %s: %w", name, err)
		}
		if exists > 0 {
			continue
		}

		content, err := fs.ReadFile(migrations, "migrations/"+name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin migration tx: %w", err)
		}

		if _, err := tx.ExecContext(ctx, string(content)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("apply migration %s: %w", name, err)
		}

		if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations(version) VALUES (?)`, name); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record migration %s: %w", name, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %s: %w", name, err)
		}
	}

	return nil
}
