/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	applog "designeditor/internal/log"
	"designeditor/internal/version"

	// Pure-Go SQLite driver (CGO-free)
	_ "modernc.org/sqlite"
)

const (
	StoreFileName = "designeditor.sqlite"

	// EnvPreviewsMaxBytes overrides the preview cache cap.
	EnvPreviewsMaxBytes = "DSE_PREVIEWS_MAX_BYTES"

	// schemaVersion tracks the local SQLite schema. Bump it and add a migration step for
	// breaking changes.
	schemaVersion = 2

	defaultPreviewCap = 64 << 20
)

// Store is the embedded database. Safe for concurrent use.
type Store struct {
	db         *sql.DB
	path       string
	previewCap int64
	now        func() time.Time
	log        *slog.Logger
}

// Option configures Open.
type Option func(*Store)

// WithPreviewCap bounds the preview cache; <= 0 disables eviction.
func WithPreviewCap(n int64) Option { return func(s *Store) { s.previewCap = n } }

// WithClock replaces time.Now for journal and cache timestamps.
func WithClock(now func() time.Time) Option { return func(s *Store) { s.now = now } }

// StorePath returns the database path inside dataDir.
func StorePath(dataDir string) string { return filepath.Join(dataDir, StoreFileName) }

// Open creates or opens the store in dataDir, enables WAL mode and brings the schema up
// to date.
func Open(ctx context.Context, dataDir string, opts ...Option) (*Store, error) {
	l := applog.WithOperation(applog.WithComponent("storage"), "open").With(slog.String("dir", dataDir))
	if strings.TrimSpace(dataDir) == "" {
		return nil, errors.New("data dir is required")
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		l.Error("create data dir failed", slog.Any("err", err))
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	path := StorePath(dataDir)
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)", filepath.ToSlash(path))
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		l.Error("sqlite open failed", slog.Any("err", err))
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &Store{db: db, path: path, previewCap: MaxPreviewsBytesFromEnv(), now: time.Now, log: applog.WithComponent("storage")}
	for _, o := range opts {
		o(s)
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL;"); err != nil {
		_ = db.Close()
		l.Error("enable WAL failed", slog.Any("err", err))
		return nil, fmt.Errorf("enable WAL: %w", err)
	}
	if err := ensureMetaAndVersion(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := ensureSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := runMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	l.Debug("store ready", slog.String("path", path))
	return s, nil
}

// OpenOrRecover opens the store and, if it cannot be opened or fails an integrity check,
// moves the file aside as a timestamped backup and starts a fresh one. recovered reports
// whether that happened.
func OpenOrRecover(ctx context.Context, dataDir string, opts ...Option) (s *Store, recovered bool, err error) {
	s, err = Open(ctx, dataDir, opts...)
	if err == nil {
		if s.healthy(ctx) {
			return s, false, nil
		}
		_ = s.Close()
	}
	applog.WithComponent("storage").Warn("store unusable, rebuilding", slog.Any("err", err))
	backupFile(StorePath(dataDir))
	for _, suffix := range []string{"", "-wal", "-shm"} {
		_ = os.Remove(StorePath(dataDir) + suffix)
	}
	s, err = Open(ctx, dataDir, opts...)
	if err != nil {
		return nil, false, fmt.Errorf("rebuild store: %w", err)
	}
	return s, true, nil
}

func (s *Store) healthy(ctx context.Context) bool {
	var chk string
	if err := s.db.QueryRowContext(ctx, `PRAGMA quick_check;`).Scan(&chk); err != nil || !strings.EqualFold(strings.TrimSpace(chk), "ok") {
		return false
	}
	_, err := s.db.ExecContext(ctx, `SELECT 1 FROM journal LIMIT 1;`)
	return err == nil
}

// Close releases the database.
func (s *Store) Close() error { return s.db.Close() }

// Path is the database file.
func (s *Store) Path() string { return s.path }

func ensureMetaAndVersion(ctx context.Context, db *sql.DB) error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS version (
			id          INTEGER PRIMARY KEY CHECK(id=1),
			schema      INTEGER NOT NULL,
			app         TEXT,
			created_at  TEXT NOT NULL,
			updated_at  TEXT NOT NULL
		);`,
	}
	for _, q := range ddl {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}
	now := time.Now().UTC().Format(time.RFC3339)
	appv := version.String()
	var cur int
	err := db.QueryRowContext(ctx, `SELECT schema FROM version WHERE id=1`).Scan(&cur)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if _, err := db.ExecContext(ctx, `INSERT INTO version (id, schema, app, created_at, updated_at) VALUES(1, ?, ?, ?, ?)`, schemaVersion, appv, now, now); err != nil {
			return fmt.Errorf("insert version: %w", err)
		}
	case err != nil:
		return fmt.Errorf("read version: %w", err)
	default:
		if _, err := db.ExecContext(ctx, `UPDATE version SET app=?, updated_at=? WHERE id=1`, appv, now); err != nil {
			return fmt.Errorf("update version: %w", err)
		}
	}
	return nil
}

// SchemaVersion reports the schema recorded in the database.
func (s *Store) SchemaVersion(ctx context.Context) (int, error) {
	var v int
	err := s.db.QueryRowContext(ctx, `SELECT schema FROM version WHERE id=1`).Scan(&v)
	return v, err
}

func ensureSchema(ctx context.Context, db *sql.DB) error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS journal (
			id         TEXT PRIMARY KEY,
			design_id  TEXT    NOT NULL,
			ts         TEXT    NOT NULL,
			kind       TEXT    NOT NULL,
			url        TEXT,
			width      INTEGER NOT NULL,
			height     INTEGER NOT NULL,
			doc        BLOB    NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_journal_design ON journal(design_id, id);`,
		`CREATE TABLE IF NOT EXISTS previews (
			key         TEXT PRIMARY KEY,
			format      TEXT    NOT NULL,
			w           INTEGER NOT NULL DEFAULT 0,
			h           INTEGER NOT NULL DEFAULT 0,
			blob        BLOB    NOT NULL,
			size        INTEGER NOT NULL DEFAULT 0,
			updated_at  TEXT    NOT NULL,
			last_access TEXT
		);`,
	}
	for _, q := range ddl {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// runMigrations applies incremental schema migrations up to schemaVersion.
func runMigrations(ctx context.Context, db *sql.DB) error {
	var cur int
	if err := db.QueryRowContext(ctx, `SELECT schema FROM version WHERE id=1`).Scan(&cur); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if cur > schemaVersion {
		return nil
	}
	for cur < schemaVersion {
		next := cur + 1
		var stmts []string
		switch next {
		case 2:
			stmts = []string{`CREATE INDEX IF NOT EXISTS idx_previews_access ON previews(last_access);`}
		}
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", next, err)
		}
		for _, q := range stmts {
			if _, err := tx.ExecContext(ctx, q); err != nil {
				_ = tx.Rollback()
				return fmt.Errorf("migration %d stmt failed: %w", next, err)
			}
		}
		if _, err := tx.ExecContext(ctx, `UPDATE version SET schema=?, updated_at=? WHERE id=1`, next, time.Now().UTC().Format(time.RFC3339)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d update version: %w", next, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("migration %d commit: %w", next, err)
		}
		cur = next
	}
	return nil
}

// backupFile copies path into a timestamped backup in a sibling backups/ folder.
func backupFile(path string) {
	bdir := filepath.Join(filepath.Dir(path), BackupsDirName)
	_ = os.MkdirAll(bdir, 0o755)
	stamp := time.Now().Format("20060102-150405")
	bak := filepath.Join(bdir, fmt.Sprintf("%s.%s.bak", filepath.Base(path), stamp))
	if data, err := os.ReadFile(path); err == nil {
		_ = os.WriteFile(bak, data, 0o644)
	}
}

// MaxPreviewsBytesFromEnv reads DSE_PREVIEWS_MAX_BYTES, defaulting to 64MB if unset.
func MaxPreviewsBytesFromEnv() int64 {
	v := os.Getenv(EnvPreviewsMaxBytes)
	if v == "" {
		return defaultPreviewCap
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n <= 0 {
		return defaultPreviewCap
	}
	return n
}
