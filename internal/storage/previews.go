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
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// tsLayout keeps timestamps lexicographically sortable.
const tsLayout = "2006-01-02T15:04:05.000000000Z"

// Preview is a cached rendering of a document.
type Preview struct {
	Key    string
	Format string
	W, H   int
	Blob   []byte
}

// PreviewKey identifies a rendering of the serialised document doc in format at scale.
func PreviewKey(doc []byte, format string, scale float64) string {
	h := sha256.New()
	h.Write(doc)
	h.Write([]byte("|" + strings.ToLower(format) + "|" + strconv.FormatFloat(scale, 'g', -1, 64)))
	return hex.EncodeToString(h.Sum(nil))
}

func (s *Store) stamp() string { return s.now().UTC().Format(tsLayout) }

// GetPreview returns the cached preview for key and marks it used. A miss returns nil, nil.
func (s *Store) GetPreview(ctx context.Context, key string) (*Preview, error) {
	p := Preview{Key: key}
	err := s.db.QueryRowContext(ctx, `SELECT format, w, h, blob FROM previews WHERE key=?`, key).Scan(&p.Format, &p.W, &p.H, &p.Blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query preview: %w", err)
	}
	_, _ = s.db.ExecContext(ctx, `UPDATE previews SET last_access=? WHERE key=?`, s.stamp(), key)
	return &p, nil
}

// PutPreview upserts p and enforces the cache cap via LRU eviction.
func (s *Store) PutPreview(ctx context.Context, p Preview) error {
	if p.Key == "" {
		return errors.New("preview key is required")
	}
	now := s.stamp()
	_, err := s.db.ExecContext(ctx, `INSERT INTO previews(key,format,w,h,blob,size,updated_at,last_access)
		VALUES(?,?,?,?,?,?,?,?)
		ON CONFLICT(key) DO UPDATE SET format=excluded.format, w=excluded.w, h=excluded.h, blob=excluded.blob,
			size=excluded.size, updated_at=excluded.updated_at, last_access=excluded.last_access`,
		p.Key, p.Format, p.W, p.H, p.Blob, len(p.Blob), now, now)
	if err != nil {
		return fmt.Errorf("upsert preview: %w", err)
	}
	if s.previewCap > 0 {
		return s.EvictPreviewsToFit(ctx, s.previewCap)
	}
	return nil
}

// GetOrCreatePreview fetches a preview or generates and stores it with gen.
func (s *Store) GetOrCreatePreview(ctx context.Context, key string, gen func(context.Context) (Preview, error)) (*Preview, error) {
	if p, err := s.GetPreview(ctx, key); err != nil || p != nil {
		return p, err
	}
	if gen == nil {
		return nil, nil
	}
	p, err := gen(ctx)
	if err != nil {
		return nil, err
	}
	p.Key = key
	if err := s.PutPreview(ctx, p); err != nil {
		return nil, err
	}
	return &p, nil
}

// EvictPreviewsToFit deletes least-recently-used rows until total size <= capBytes.
func (s *Store) EvictPreviewsToFit(ctx context.Context, capBytes int64) error {
	total, err := s.TotalPreviewBytes(ctx)
	if err != nil {
		return err
	}
	if total <= capBytes {
		return nil
	}
	rows, err := s.db.QueryContext(ctx, `SELECT key, size FROM previews ORDER BY
		CASE WHEN last_access IS NULL THEN 0 ELSE 1 END ASC, last_access ASC, rowid ASC`)
	if err != nil {
		return fmt.Errorf("select victims: %w", err)
	}
	var victims []any
	cur := total
	for rows.Next() {
		var key string
		var sz int64
		if err := rows.Scan(&key, &sz); err != nil {
			_ = rows.Close()
			return err
		}
		victims = append(victims, key)
		cur -= sz
		if cur <= capBytes {
			break
		}
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return err
	}
	// the single connection is held by the cursor until it is closed
	if err := rows.Close(); err != nil {
		return err
	}
	if len(victims) == 0 {
		return nil
	}
	q := `DELETE FROM previews WHERE key IN (?` + strings.Repeat(",?", len(victims)-1) + `)`
	if _, err := s.db.ExecContext(ctx, q, victims...); err != nil {
		return fmt.Errorf("evict delete: %w", err)
	}
	return nil
}

// TotalPreviewBytes returns the bytes held by the preview cache.
func (s *Store) TotalPreviewBytes(ctx context.Context) (int64, error) {
	var total int64
	if err := s.db.QueryRowContext(ctx, `SELECT COALESCE(SUM(size),0) FROM previews`).Scan(&total); err != nil {
		return 0, fmt.Errorf("sum previews size: %w", err)
	}
	return total, nil
}
