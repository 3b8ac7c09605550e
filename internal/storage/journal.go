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
	"time"

	"github.com/oklog/ulid/v2"
)

// Journal entry kinds.
const (
	KindFirst    = "first"
	KindAutosave = "autosave"
	KindCrash    = "crash"
)

// JournalEntry is one persisted save of a design.
type JournalEntry struct {
	ID       string
	DesignID string
	TS       time.Time
	Kind     string
	// URL is the uploaded preview, or a data URL when the upload fell back to local.
	URL    string
	Width  int
	Height int
	Doc    []byte
}

// language=SQL
// dialect=SQLite
const insertJournalSQL = `INSERT INTO journal(id, design_id, ts, kind, url, width, height, doc) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

// language=SQL
// dialect=SQLite
const selectJournalSQL = `SELECT id, design_id, ts, kind, COALESCE(url, ''), width, height, doc FROM journal`

// language=SQL
// dialect=SQLite
const pruneJournalSQL = `DELETE FROM journal WHERE design_id = ? AND id NOT IN (
	SELECT id FROM journal WHERE design_id = ? ORDER BY id DESC LIMIT ?
)`

// Append stores e and returns its id. Ids are ULIDs so they sort by time.
func (s *Store) Append(ctx context.Context, e JournalEntry) (string, error) {
	if e.DesignID == "" {
		return "", errors.New("design id is required")
	}
	if len(e.Doc) == 0 {
		return "", errors.New("empty document")
	}
	if e.Kind == "" {
		e.Kind = KindAutosave
	}
	if e.TS.IsZero() {
		e.TS = s.now()
	}
	if e.ID == "" {
		e.ID = ulid.MustNew(ulid.Timestamp(e.TS), ulid.DefaultEntropy()).String()
	}
	if _, err := s.db.ExecContext(ctx, insertJournalSQL, e.ID, e.DesignID, e.TS.UTC().Format(tsLayout), e.Kind, e.URL, e.Width, e.Height, e.Doc); err != nil {
		return "", fmt.Errorf("insert journal entry: %w", err)
	}
	return e.ID, nil
}

// Latest returns the newest entry for designID, or nil if there is none.
func (s *Store) Latest(ctx context.Context, designID string) (*JournalEntry, error) {
	row := s.db.QueryRowContext(ctx, selectJournalSQL+` WHERE design_id = ? ORDER BY id DESC LIMIT 1`, designID)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return e, nil
}

// Entry returns the entry with id.
func (s *Store) Entry(ctx context.Context, id string) (*JournalEntry, error) {
	e, err := scanEntry(s.db.QueryRowContext(ctx, selectJournalSQL+` WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("journal entry %q not found", id)
	}
	return e, err
}

// List returns up to limit entries for designID, newest first. An empty designID lists
// every design.
func (s *Store) List(ctx context.Context, designID string, limit int) ([]JournalEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	var (
		rows *sql.Rows
		err  error
	)
	if designID == "" {
		rows, err = s.db.QueryContext(ctx, selectJournalSQL+` ORDER BY id DESC LIMIT ?`, limit)
	} else {
		rows, err = s.db.QueryContext(ctx, selectJournalSQL+` WHERE design_id = ? ORDER BY id DESC LIMIT ?`, designID, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("list journal: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var out []JournalEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

// Prune keeps at most keepLast entries for designID and deletes older ones.
func (s *Store) Prune(ctx context.Context, designID string, keepLast int) (int64, error) {
	if keepLast <= 0 {
		return 0, nil
	}
	res, err := s.db.ExecContext(ctx, pruneJournalSQL, designID, designID, keepLast)
	if err != nil {
		return 0, fmt.Errorf("prune journal: %w", err)
	}
	return res.RowsAffected()
}

type scanner interface{ Scan(dest ...any) error }

func scanEntry(r scanner) (*JournalEntry, error) {
	var e JournalEntry
	var ts string
	if err := r.Scan(&e.ID, &e.DesignID, &ts, &e.Kind, &e.URL, &e.Width, &e.Height, &e.Doc); err != nil {
		return nil, err
	}
	// keep the entry even if the timestamp does not parse
	e.TS, _ = time.Parse(tsLayout, ts)
	return &e, nil
}
