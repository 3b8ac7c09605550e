/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	applog "designeditor/internal/log"
	"designeditor/internal/scene"
)

const (
	DocumentExt    = ".design.json"
	BackupsDirName = "backups"

	// DefaultKeepBackups bounds the timestamped backups kept per document.
	DefaultKeepBackups = 20
)

// DocumentFile is a design document on disk.
type DocumentFile struct {
	Path     string
	Document scene.Document
	// FromBackup is set when the file itself was unreadable and a backup was loaded.
	FromBackup string
}

// SaveDocument writes doc to path with transactional semantics. The previous content, if
// any, is copied to a timestamped backup first.
func SaveDocument(path string, doc scene.Document) error {
	if strings.TrimSpace(path) == "" {
		return errors.New("document path is required")
	}
	raw, err := scene.EncodeDocument(doc)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return fmt.Errorf("indent document: %w", err)
	}
	buf.WriteByte('\n')
	return writeWithBackup(path, buf.Bytes())
}

func writeWithBackup(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create document dir: %w", err)
	}
	bdir := filepath.Join(dir, BackupsDirName)
	if err := os.MkdirAll(bdir, 0o755); err != nil {
		return fmt.Errorf("ensure backups dir: %w", err)
	}

	if _, statErr := os.Stat(path); statErr == nil {
		stamp := time.Now().Format("20060102-150405")
		bpath := filepath.Join(bdir, fmt.Sprintf("%s.%s.bak", filepath.Base(path), stamp))
		if cerr := copyFile(path, bpath); cerr != nil {
			return fmt.Errorf("backup current document: %w", cerr)
		}
	}

	temp := filepath.Join(dir, fmt.Sprintf(".%s.tmp-%d-%d", filepath.Base(path), os.Getpid(), rand.Int()))
	if werr := writeFileSync(temp, data); werr != nil {
		return fmt.Errorf("write temp document: %w", werr)
	}
	// On Windows, replace by removing destination first if needed
	if _, err := os.Stat(path); err == nil {
		_ = os.Remove(path)
	}
	if rerr := os.Rename(temp, path); rerr != nil {
		_ = os.Remove(temp)
		return fmt.Errorf("replace document: %w", rerr)
	}
	return nil
}

// OpenDocument loads and validates the document at path. If the file cannot be read or
// does not parse, the newest backup that does is used instead.
func OpenDocument(path string) (*DocumentFile, error) {
	l := applog.WithOperation(applog.WithComponent("storage"), "openDocument").With(slog.String("path", path))
	b, err := os.ReadFile(path)
	if err == nil {
		doc, perr := scene.ParseDocument(b)
		if perr == nil {
			return &DocumentFile{Path: path, Document: doc}, nil
		}
		err = perr
	}
	doc, bak, berr := openFromLatestBackup(path)
	if berr != nil {
		return nil, fmt.Errorf("open document: %w; backup attempt: %v", err, berr)
	}
	l.Warn("document unreadable, restored from backup", slog.String("backup", bak), slog.Any("err", err))
	return &DocumentFile{Path: path, Document: *doc, FromBackup: bak}, nil
}

// Backups lists the backups of the document at path, oldest first.
func Backups(path string) ([]string, error) {
	bdir := filepath.Join(filepath.Dir(path), BackupsDirName)
	ents, err := os.ReadDir(bdir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read backups dir: %w", err)
	}
	prefix := filepath.Base(path) + "."
	var out []string
	for _, e := range ents {
		name := e.Name()
		if strings.HasPrefix(name, prefix) && strings.HasSuffix(name, ".bak") {
			out = append(out, filepath.Join(bdir, name))
		}
	}
	sort.Strings(out) // timestamp in name yields lexicographic order
	return out, nil
}

// PruneBackups keeps the newest keep backups of path and removes the rest.
func PruneBackups(path string, keep int) (int, error) {
	if keep <= 0 {
		return 0, nil
	}
	all, err := Backups(path)
	if err != nil {
		return 0, err
	}
	n := 0
	for len(all)-n > keep {
		if err := os.Remove(all[n]); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

func openFromLatestBackup(path string) (*scene.Document, string, error) {
	candidates, err := Backups(path)
	if err != nil {
		return nil, "", err
	}
	if len(candidates) == 0 {
		return nil, "", errors.New("no backups found")
	}
	var lastErr error
	for i := len(candidates) - 1; i >= 0; i-- {
		b, err := os.ReadFile(candidates[i])
		if err != nil {
			lastErr = err
			continue
		}
		doc, err := scene.ParseDocument(b)
		if err != nil {
			lastErr = err
			continue
		}
		return &doc, candidates[i], nil
	}
	return nil, "", fmt.Errorf("no readable backup: %w", lastErr)
}

// writeFileSync writes data to a file and flushes it to disk.
func writeFileSync(path string, data []byte) (err error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	if _, err := f.Write(data); err != nil {
		return err
	}
	return f.Sync()
}

// copyFile copies src to dst, overwriting dst.
func copyFile(src, dst string) (err error) {
	sf, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := sf.Close(); err == nil {
			err = cerr
		}
	}()
	df, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := df.Close(); err == nil {
			err = cerr
		}
	}()
	if _, err := io.Copy(df, sf); err != nil {
		return err
	}
	return df.Sync()
}
