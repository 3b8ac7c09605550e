/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package history

import (
	"fmt"
	"testing"
	"time"
)

func entry(s string) Entry { return Entry{Blob: []byte(s), TS: time.Now()} }

func TestUndoRedoBasic(t *testing.T) {
	m := NewManager(Config{}, entry("s0"))
	m.Push(entry("s1"))
	m.Push(entry("s2"))
	if _, n, cur := m.Stats(); n != 3 || cur != 2 {
		t.Fatalf("expected 3 entries at cursor 2, got n=%d cursor=%d", n, cur)
	}
	e, ok := m.Undo()
	if !ok || string(e.Blob) != "s1" {
		t.Fatalf("undo expected s1, got ok=%v blob=%q", ok, e.Blob)
	}
	e, ok = m.Redo()
	if !ok || string(e.Blob) != "s2" {
		t.Fatalf("redo expected s2, got ok=%v blob=%q", ok, e.Blob)
	}
	if m.CanRedo() {
		t.Fatalf("nothing left to redo")
	}
}

func TestUndoAtStartIsNoop(t *testing.T) {
	m := NewManager(Config{}, entry("s0"))
	if m.CanUndo() {
		t.Fatalf("fresh timeline cannot undo")
	}
	if _, ok := m.Undo(); ok {
		t.Fatalf("undo at cursor 0 must report false")
	}
	if string(m.Current().Blob) != "s0" {
		t.Fatalf("current changed")
	}
}

func TestPushTruncatesRedoBranch(t *testing.T) {
	m := NewManager(Config{}, entry("s0"))
	m.Push(entry("s1"))
	m.Push(entry("s2"))
	m.Undo()
	m.Push(entry("s3"))
	if m.CanRedo() {
		t.Fatalf("redo branch should be gone")
	}
	if _, n, cur := m.Stats(); n != 3 || cur != 2 {
		t.Fatalf("expected [s0 s1 s3], got n=%d cursor=%d", n, cur)
	}
	e, _ := m.Undo()
	if string(e.Blob) != "s1" {
		t.Fatalf("expected s1 under s3, got %q", e.Blob)
	}
}

func TestPushIgnoresIdenticalSnapshot(t *testing.T) {
	m := NewManager(Config{}, entry("s0"))
	if m.Push(entry("s0")) {
		t.Fatalf("identical snapshot must not be pushed")
	}
	if !m.Push(entry("s1")) {
		t.Fatalf("new snapshot must be pushed")
	}
}

func TestTargetsDoNotMove(t *testing.T) {
	m := NewManager(Config{}, entry("s0"))
	m.Push(entry("s1"))
	if e, ok := m.UndoTarget(); !ok || string(e.Blob) != "s0" {
		t.Fatalf("undo target mismatch")
	}
	if _, _, cur := m.Stats(); cur != 1 {
		t.Fatalf("target must not move the cursor")
	}
	if _, ok := m.RedoTarget(); ok {
		t.Fatalf("no redo target expected")
	}
}

func TestEntryCap(t *testing.T) {
	m := NewManager(Config{MaxEntries: 3}, entry("s0"))
	for i := 1; i <= 10; i++ {
		m.Push(entry(fmt.Sprintf("s%d", i)))
	}
	_, n, cur := m.Stats()
	if n != 3 || cur != 2 {
		t.Fatalf("expected cap of 3 entries, got n=%d cursor=%d", n, cur)
	}
	if string(m.Current().Blob) != "s10" {
		t.Fatalf("current must survive pruning")
	}
	m.Undo()
	m.Undo()
	if m.CanUndo() {
		t.Fatalf("oldest entries should have been pruned")
	}
}

func TestByteCapKeepsCurrent(t *testing.T) {
	m := NewManager(Config{MaxBytes: 12}, entry("aaaaa"))
	m.Push(entry("bbbbb"))
	m.Push(entry("ccccc"))
	size, n, _ := m.Stats()
	if size > 12 || n != 2 {
		t.Fatalf("expected byte cap to prune to 2 entries, got size=%d n=%d", size, n)
	}
	m.Push(entry("a much longer snapshot than the cap allows"))
	if _, n, cur := m.Stats(); n != 1 || cur != 0 {
		t.Fatalf("oversized current entry must be kept alone, got n=%d cursor=%d", n, cur)
	}
}

func TestReset(t *testing.T) {
	m := NewManager(Config{}, entry("s0"))
	m.Push(entry("s1"))
	m.Reset(entry("loaded"))
	if m.CanUndo() || m.CanRedo() || string(m.Current().Blob) != "loaded" {
		t.Fatalf("reset did not restart the timeline")
	}
}
