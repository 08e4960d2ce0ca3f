package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed migrations.sql
var migrations string

type sqliteBackend struct {
	db *sql.DB
}

func openSQLite(cfg Config) (*sqliteBackend, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if cfg.BusyTimeout > 0 {
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds()))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	if _, err := db.ExecContext(context.Background(), migrations); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &sqliteBackend{db: db}, nil
}

func (s *sqliteBackend) Load(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT ssid FROM blacklist ORDER BY ssid`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var ssid string
		if err := rows.Scan(&ssid); err != nil {
			return nil, err
		}
		out = append(out, ssid)
	}
	return out, rows.Err()
}

// Save replaces the table contents in one transaction. Existing rows keep
// their added_at.
func (s *sqliteBackend) Save(ctx context.Context, ssids []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `CREATE TEMP TABLE IF NOT EXISTS keep(ssid TEXT PRIMARY KEY)`); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM keep`); err != nil {
		return err
	}

	now := time.Now().UnixMilli()
	for _, ssid := range ssids {
		if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO keep(ssid) VALUES(?)`, ssid); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO blacklist(ssid, added_at) VALUES(?, ?) ON CONFLICT(ssid) DO NOTHING`,
			ssid, now,
		); err != nil {
			return err
		}
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM blacklist WHERE ssid NOT IN (SELECT ssid FROM keep)`); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *sqliteBackend) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}
