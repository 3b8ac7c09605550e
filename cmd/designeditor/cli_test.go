/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/zalando/go-keyring"

	"designeditor/internal/config"
	"designeditor/internal/crash"
	"designeditor/internal/scene"
	"designeditor/internal/storage"
)

func init() { keyring.MockInit() }

func testState(t *testing.T) *appState {
	t.Helper()
	cfg := config.Defaults()
	cfg.Storage.DataDir = t.TempDir()
	return &appState{cfg: cfg, crash: &crash.Target{}, configPath: filepath.Join(t.TempDir(), "config.yaml")}
}

func writeDesign(t *testing.T) string {
	t.Helper()
	o := scene.NewObject(scene.KindRect)
	o.ID = "r1"
	o.Fill = "#ff0000"
	doc := scene.Document{
		Version:   scene.DocumentVersion,
		Workspace: scene.Workspace{Width: 200, Height: 100, Background: "#ffffff"},
		Objects:   []scene.Object{o},
	}
	path := filepath.Join(t.TempDir(), "menu"+storage.DocumentExt)
	if err := storage.SaveDocument(path, doc); err != nil {
		t.Fatalf("save: %v", err)
	}
	return path
}

func run(t *testing.T, a *appState, args ...string) (string, error) {
	t.Helper()
	app := newCLIApp(a)
	var buf bytes.Buffer
	app.Writer = &buf
	err := app.Run(append([]string{"designeditor"}, args...))
	return buf.String(), err
}

func TestValidateCommand(t *testing.T) {
	a := testState(t)
	out, err := run(t, a, "validate", writeDesign(t))
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	var res map[string]any
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("output not JSON: %v\n%s", err, out)
	}
	if res["valid"] != true || res["objects"] != 1.0 {
		t.Fatalf("unexpected result: %v", res)
	}

	bad := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(bad, []byte(`{"workspace":{"width":"wide"}}`), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := run(t, a, "validate", bad); err == nil || !strings.Contains(err.Error(), "SERIALIZATION") {
		t.Fatalf("want serialization error, got %v", err)
	}
}

func TestValidateRequiresFile(t *testing.T) {
	if _, err := run(t, testState(t), "validate"); err == nil {
		t.Fatalf("validate without a file must fail")
	}
}

func TestRenderSVG(t *testing.T) {
	a := testState(t)
	in := writeDesign(t)
	out := filepath.Join(t.TempDir(), "menu.svg")
	if _, err := run(t, a, "render", "--format", "svg", "--out", out, in); err != nil {
		t.Fatalf("render: %v", err)
	}
	b, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(string(b), "<svg") || !strings.Contains(strings.ToLower(string(b)), "#ff0000") {
		t.Fatalf("svg output unexpected:\n%s", b)
	}
}

func TestRenderPNGUsesPreviewCache(t *testing.T) {
	a := testState(t)
	in := writeDesign(t)
	out := filepath.Join(t.TempDir(), "menu.png")
	for i := 0; i < 2; i++ {
		if _, err := run(t, a, "render", "--out", out, in); err != nil {
			t.Fatalf("render %d: %v", i, err)
		}
	}
	b, err := os.ReadFile(out)
	if err != nil || len(b) < 8 || string(b[1:4]) != "PNG" {
		t.Fatalf("png not written: %v", err)
	}

	st, err := storage.Open(context.Background(), a.cfg.Storage.DataDir)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer st.Close()
	total, err := st.TotalPreviewBytes(context.Background())
	if err != nil {
		t.Fatalf("total: %v", err)
	}
	if total != int64(len(b)) {
		t.Fatalf("cache holds %d bytes, want one preview of %d", total, len(b))
	}
}

func TestBatchCommand(t *testing.T) {
	a := testState(t)
	in := writeDesign(t)
	dir := t.TempDir()
	out, err := run(t, a, "batch", "--formats", "png,svg", "--out-dir", dir, in)
	if err != nil {
		t.Fatalf("batch: %v", err)
	}
	for _, name := range []string{"menu.png", "menu.svg"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Fatalf("missing %s: %v\n%s", name, err, out)
		}
	}
}

func TestJournalListAndRestore(t *testing.T) {
	a := testState(t)
	st, err := storage.Open(context.Background(), a.cfg.Storage.DataDir)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	b, err := os.ReadFile(writeDesign(t))
	if err != nil {
		t.Fatal(err)
	}
	id, err := st.Append(context.Background(), storage.JournalEntry{DesignID: "menu", Kind: storage.KindAutosave, Doc: b, Width: 200, Height: 100})
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	st.Close()

	out, err := run(t, a, "journal", "list", "--design", "menu")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	var rows []journalRow
	if err := json.Unmarshal([]byte(out), &rows); err != nil {
		t.Fatalf("output not JSON: %v\n%s", err, out)
	}
	if len(rows) != 1 || rows[0].ID != id || rows[0].Kind != storage.KindAutosave {
		t.Fatalf("unexpected rows: %+v", rows)
	}

	target := filepath.Join(t.TempDir(), "restored"+storage.DocumentExt)
	if _, err := run(t, a, "journal", "restore", id, target); err != nil {
		t.Fatalf("restore: %v", err)
	}
	f, err := storage.OpenDocument(target)
	if err != nil {
		t.Fatalf("open restored: %v", err)
	}
	if len(f.Document.Objects) != 1 || f.Document.Objects[0].Fill != "#ff0000" {
		t.Fatalf("restored document mismatch: %+v", f.Document)
	}

	if _, err := run(t, a, "journal", "restore", "missing", target); err == nil || !strings.Contains(err.Error(), "NOT_FOUND") {
		t.Fatalf("want not found, got %v", err)
	}
}

func TestTokenSetAndForget(t *testing.T) {
	a := testState(t)
	if _, err := run(t, a, "token", "set", "s3cret"); err != nil {
		t.Fatalf("set: %v", err)
	}
	_, token, err := config.LoadFrom(a.configPath)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if token != "s3cret" {
		t.Fatalf("token = %q", token)
	}
	if _, err := run(t, a, "token", "forget"); err != nil {
		t.Fatalf("forget: %v", err)
	}
	if _, token, _ = config.LoadFrom(a.configPath); token != "" {
		t.Fatalf("token survived forget: %q", token)
	}
}

func TestEditRejectsUnknownTools(t *testing.T) {
	_, err := run(t, testState(t), "edit", "--disable", "design_bogus")
	if err == nil || !strings.Contains(err.Error(), "design_bogus") {
		t.Fatalf("want unknown tool error, got %v", err)
	}
}

func TestVersionCommand(t *testing.T) {
	out, err := run(t, testState(t), "version")
	if err != nil || !strings.HasPrefix(out, "Design Editor ") {
		t.Fatalf("version: %q %v", out, err)
	}
}
