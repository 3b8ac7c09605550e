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
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"designeditor/internal/scene"
)

type tick struct{ t time.Time }

func (c *tick) now() time.Time {
	c.t = c.t.Add(time.Second)
	return c.t
}

func openStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	clk := &tick{t: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	opts = append([]Option{WithClock(clk.now)}, opts...)
	s, err := Open(context.Background(), t.TempDir(), opts...)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestOpenCreatesSchema(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(context.Background(), dir)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := os.Stat(StorePath(dir)); err != nil {
		t.Fatalf("db file missing: %v", err)
	}
	v, err := s.SchemaVersion(context.Background())
	if err != nil || v != schemaVersion {
		t.Fatalf("schema version = %d, %v", v, err)
	}
	// reopening is idempotent
	_ = s.Close()
	s2, err := Open(context.Background(), dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	_ = s2.Close()
}

func TestOpenRequiresDir(t *testing.T) {
	if _, err := Open(context.Background(), " "); err == nil {
		t.Fatalf("expected error for empty dir")
	}
}

func TestOpenOrRecoverRebuildsGarbage(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(StorePath(dir), []byte("definitely not sqlite"), 0o644); err != nil {
		t.Fatal(err)
	}
	s, recovered, err := OpenOrRecover(context.Background(), dir)
	if err != nil {
		t.Fatalf("recover: %v", err)
	}
	defer s.Close()
	if !recovered {
		t.Fatalf("expected recovery")
	}
	baks, _ := filepath.Glob(filepath.Join(dir, BackupsDirName, StoreFileName+".*.bak"))
	if len(baks) != 1 {
		t.Fatalf("expected one backup of the broken store, got %v", baks)
	}
	if _, err := s.Append(context.Background(), JournalEntry{DesignID: "d", Doc: []byte("{}")}); err != nil {
		t.Fatalf("append after rebuild: %v", err)
	}
}

func TestJournalAppendLatestListPrune(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	var ids []string
	for i, doc := range []string{`{"v":1}`, `{"v":2}`, `{"v":3}`} {
		kind := KindAutosave
		if i == 0 {
			kind = KindFirst
		}
		id, err := s.Append(ctx, JournalEntry{DesignID: "menu", Kind: kind, URL: "https://cdn/x.png", Width: 800, Height: 600, Doc: []byte(doc)})
		if err != nil {
			t.Fatalf("append: %v", err)
		}
		ids = append(ids, id)
	}
	if _, err := s.Append(ctx, JournalEntry{DesignID: "other", Doc: []byte(`{}`)}); err != nil {
		t.Fatal(err)
	}

	latest, err := s.Latest(ctx, "menu")
	if err != nil || latest == nil {
		t.Fatalf("latest: %v %v", latest, err)
	}
	if latest.ID != ids[2] || string(latest.Doc) != `{"v":3}` || latest.Kind != KindAutosave {
		t.Fatalf("unexpected latest: %+v", latest)
	}
	if latest.Width != 800 || latest.URL != "https://cdn/x.png" {
		t.Fatalf("fields not round-tripped: %+v", latest)
	}

	list, err := s.List(ctx, "menu", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 3 || list[0].ID != ids[2] || list[2].Kind != KindFirst {
		t.Fatalf("unexpected list order: %+v", list)
	}
	if !list[0].TS.After(list[2].TS) {
		t.Fatalf("timestamps not increasing: %v %v", list[2].TS, list[0].TS)
	}
	all, _ := s.List(ctx, "", 10)
	if len(all) != 4 {
		t.Fatalf("list all = %d", len(all))
	}

	n, err := s.Prune(ctx, "menu", 1)
	if err != nil || n != 2 {
		t.Fatalf("prune = %d, %v", n, err)
	}
	if e, err := s.Entry(ctx, ids[2]); err != nil || e.ID != ids[2] {
		t.Fatalf("newest entry should survive: %v", err)
	}
	if _, err := s.Entry(ctx, ids[0]); err == nil {
		t.Fatalf("oldest entry should be pruned")
	}
	if other, _ := s.List(ctx, "other", 10); len(other) != 1 {
		t.Fatalf("prune touched another design")
	}
}

func TestJournalValidation(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	if _, err := s.Append(ctx, JournalEntry{Doc: []byte("{}")}); err == nil {
		t.Fatalf("expected error without design id")
	}
	if _, err := s.Append(ctx, JournalEntry{DesignID: "d"}); err == nil {
		t.Fatalf("expected error for empty doc")
	}
	if e, err := s.Latest(ctx, "missing"); err != nil || e != nil {
		t.Fatalf("latest on empty journal = %v, %v", e, err)
	}
}

func TestPreviewCacheLRU(t *testing.T) {
	s := openStore(t, WithPreviewCap(25))
	ctx := context.Background()
	blob := bytes.Repeat([]byte{1}, 10)
	for _, k := range []string{"a", "b"} {
		if err := s.PutPreview(ctx, Preview{Key: k, Format: "png", W: 4, H: 4, Blob: blob}); err != nil {
			t.Fatalf("put %s: %v", k, err)
		}
	}
	// touch a so b is the least recently used
	if p, err := s.GetPreview(ctx, "a"); err != nil || p == nil || p.W != 4 {
		t.Fatalf("get a = %+v, %v", p, err)
	}
	if err := s.PutPreview(ctx, Preview{Key: "c", Format: "png", Blob: blob}); err != nil {
		t.Fatal(err)
	}
	if p, _ := s.GetPreview(ctx, "b"); p != nil {
		t.Fatalf("b should be evicted")
	}
	for _, k := range []string{"a", "c"} {
		if p, _ := s.GetPreview(ctx, k); p == nil {
			t.Fatalf("%s should be cached", k)
		}
	}
	total, err := s.TotalPreviewBytes(ctx)
	if err != nil || total != 20 {
		t.Fatalf("total = %d, %v", total, err)
	}
}

func TestGetOrCreatePreview(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	calls := 0
	gen := func(context.Context) (Preview, error) {
		calls++
		return Preview{Format: "jpeg", W: 2, H: 1, Blob: []byte("jpg")}, nil
	}
	key := PreviewKey([]byte(`{"objects":[]}`), "JPEG", 0.25)
	for i := 0; i < 2; i++ {
		p, err := s.GetOrCreatePreview(ctx, key, gen)
		if err != nil || p == nil || string(p.Blob) != "jpg" {
			t.Fatalf("get or create = %+v, %v", p, err)
		}
	}
	if calls != 1 {
		t.Fatalf("generator called %d times", calls)
	}
	if key == PreviewKey([]byte(`{"objects":[]}`), "jpeg", 0.5) {
		t.Fatalf("scale must change the key")
	}
	if key != PreviewKey([]byte(`{"objects":[]}`), "jpeg", 0.25) {
		t.Fatalf("format case must not change the key")
	}
}

func testDocument(fill string) scene.Document {
	o := scene.NewObject(scene.KindRect)
	o.ID = "r1"
	o.Fill = fill
	return scene.Document{
		Version:   scene.DocumentVersion,
		Workspace: scene.Workspace{Width: 800, Height: 600, Background: "#ffffff"},
		Objects:   []scene.Object{o},
	}
}

func TestSaveAndOpenDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "menu"+DocumentExt)
	if err := SaveDocument(path, testDocument("#ff0000")); err != nil {
		t.Fatalf("save: %v", err)
	}
	f, err := OpenDocument(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if f.FromBackup != "" || len(f.Document.Objects) != 1 || f.Document.Objects[0].Fill != "#ff0000" {
		t.Fatalf("unexpected document: %+v", f)
	}
	if baks, _ := Backups(path); len(baks) != 0 {
		t.Fatalf("first save should not create backups: %v", baks)
	}
}

func TestOpenDocumentFallsBackToBackup(t *testing.T) {
	path := filepath.Join(t.TempDir(), "menu"+DocumentExt)
	if err := SaveDocument(path, testDocument("#ff0000")); err != nil {
		t.Fatal(err)
	}
	if err := SaveDocument(path, testDocument("#00ff00")); err != nil {
		t.Fatal(err)
	}
	baks, err := Backups(path)
	if err != nil || len(baks) != 1 {
		t.Fatalf("backups = %v, %v", baks, err)
	}
	if err := os.WriteFile(path, []byte(`{"version":"1","workspace":`), 0o644); err != nil {
		t.Fatal(err)
	}
	f, err := OpenDocument(path)
	if err != nil {
		t.Fatalf("open with backup: %v", err)
	}
	if f.FromBackup != baks[0] || f.Document.Objects[0].Fill != "#ff0000" {
		t.Fatalf("expected the backed-up version, got %+v", f)
	}
}

func TestOpenDocumentWithoutBackupFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing"+DocumentExt)
	if _, err := OpenDocument(path); err == nil {
		t.Fatalf("expected error")
	}
}

func TestPruneBackups(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "menu"+DocumentExt)
	bdir := filepath.Join(dir, BackupsDirName)
	if err := os.MkdirAll(bdir, 0o755); err != nil {
		t.Fatal(err)
	}
	for _, stamp := range []string{"20250101-000001", "20250101-000002", "20250101-000003"} {
		if err := os.WriteFile(filepath.Join(bdir, "menu"+DocumentExt+"."+stamp+".bak"), []byte("{}"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	n, err := PruneBackups(path, 1)
	if err != nil || n != 2 {
		t.Fatalf("prune = %d, %v", n, err)
	}
	left, _ := Backups(path)
	if len(left) != 1 || filepath.Base(left[0]) != "menu"+DocumentExt+".20250101-000003.bak" {
		t.Fatalf("unexpected survivors: %v", left)
	}
}
