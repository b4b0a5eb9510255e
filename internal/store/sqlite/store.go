/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package sqlite provides a SQLite-backed session store.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/Seednode/duet/internal/duet"
	"github.com/Seednode/duet/internal/store/sqlite/migrations"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

// Store persists sessions in SQLite. Each session is one row holding the
// JSON record and its version.
type Store struct {
	sqlDB *sql.DB
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

// Open opens a SQLite session store and applies embedded migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := applyMigrations(sqlDB, migrations.FS); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func (s *Store) Create(ctx context.Context, g *duet.Session) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(g.ID) == "" {
		return fmt.Errorf("session id is required")
	}

	payload, err := json.Marshal(g)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	_, err = s.sqlDB.ExecContext(ctx,
		`INSERT INTO sessions (id, code, version, data, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		g.ID,
		g.Code,
		g.Version,
		string(payload),
		toMillis(g.CreatedAt),
		toMillis(g.UpdatedAt),
	)
	if err != nil {
		if isCodeUniqueViolation(err) {
			return duet.ErrCodeTaken
		}
		return fmt.Errorf("insert session: %w", err)
	}

	return nil
}

func (s *Store) Get(ctx context.Context, id string) (*duet.Session, error) {
	return s.getOne(ctx, `SELECT data, version FROM sessions WHERE id = ?`, id)
}

func (s *Store) GetByCode(ctx context.Context, code string) (*duet.Session, error) {
	return s.getOne(ctx, `SELECT data, version FROM sessions WHERE code = ?`, code)
}

func (s *Store) getOne(ctx context.Context, query, key string) (*duet.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}

	var (
		payload string
		version int64
	)
	err := s.sqlDB.QueryRowContext(ctx, query, key).Scan(&payload, &version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("session %s: %w", key, duet.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}

	var g duet.Session
	if err := json.Unmarshal([]byte(payload), &g); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	g.Version = version

	return &g, nil
}

// Update writes g only if the stored version still equals expected.
func (s *Store) Update(ctx context.Context, g *duet.Session, expected int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}

	payload, err := json.Marshal(g)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	res, err := s.sqlDB.ExecContext(ctx,
		`UPDATE sessions SET version = ?, data = ?, updated_at = ?
		 WHERE id = ? AND version = ?`,
		g.Version,
		string(payload),
		toMillis(g.UpdatedAt),
		g.ID,
		expected,
	)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	if n == 1 {
		return nil
	}

	var exists int
	err = s.sqlDB.QueryRowContext(ctx, `SELECT 1 FROM sessions WHERE id = ?`, g.ID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("session %s: %w", g.ID, duet.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("check session: %w", err)
	}

	return duet.ErrStale
}

// DeleteIdle removes sessions not updated since cutoff.
func (s *Store) DeleteIdle(ctx context.Context, cutoff time.Time) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if s == nil || s.sqlDB == nil {
		return 0, fmt.Errorf("storage is not configured")
	}

	res, err := s.sqlDB.ExecContext(ctx, `DELETE FROM sessions WHERE updated_at < ?`, toMillis(cutoff))
	if err != nil {
		return 0, fmt.Errorf("delete idle sessions: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete idle sessions: %w", err)
	}

	return int(n), nil
}

func isCodeUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	message := strings.ToLower(err.Error())
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return strings.Contains(message, "sessions.code")
		}
	}
	return strings.Contains(message, "unique constraint failed") &&
		strings.Contains(message, "sessions.code")
}

var _ duet.Store = (*Store)(nil)
