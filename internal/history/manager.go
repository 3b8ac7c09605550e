/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package history keeps the linear undo/redo timeline of scene snapshots and the
// recorder that decides when a burst of mutations becomes one entry.
package history

import (
	"bytes"
	"sync"
	"time"
)

// Entry is an immutable serialized scene snapshot.
type Entry struct {
	Blob []byte
	TS   time.Time
}

// Config caps the timeline. Pruning drops the oldest entries and never the current one.
type Config struct {
	// MaxEntries limits the number of snapshots (0 means the default of 100).
	MaxEntries int
	// MaxBytes is a soft memory cap over all blobs (0 means the default of 32 MiB).
	MaxBytes int
}

const (
	DefaultMaxEntries = 100
	DefaultMaxBytes   = 32 * 1024 * 1024
)

// Manager is a snapshot list with a cursor: entries[cursor] is the state on screen,
// earlier entries are undoable, later ones redoable. Safe for concurrent use.
type Manager struct {
	cfg        Config
	mu         sync.Mutex
	entries    []Entry
	cursor     int
	totalBytes int
}

// NewManager starts a timeline whose only entry is initial.
func NewManager(cfg Config, initial Entry) *Manager {
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = DefaultMaxEntries
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = DefaultMaxBytes
	}
	m := &Manager{cfg: cfg}
	m.resetLocked(initial)
	return m
}

// Push drops the redo branch, appends e and makes it current. An entry identical to
// the current one is ignored; the result reports whether e was appended.
func (m *Manager) Push(e Entry) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if bytes.Equal(m.entries[m.cursor].Blob, e.Blob) {
		return false
	}
	for _, dropped := range m.entries[m.cursor+1:] {
		m.totalBytes -= len(dropped.Blob)
	}
	m.entries = append(m.entries[:m.cursor+1], e)
	m.cursor = len(m.entries) - 1
	m.totalBytes += len(e.Blob)
	m.enforceCapsLocked()
	return true
}

// UndoTarget returns the entry Undo would restore, without moving.
func (m *Manager) UndoTarget() (Entry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cursor == 0 {
		return Entry{}, false
	}
	return m.entries[m.cursor-1], true
}

// RedoTarget returns the entry Redo would restore, without moving.
func (m *Manager) RedoTarget() (Entry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cursor >= len(m.entries)-1 {
		return Entry{}, false
	}
	return m.entries[m.cursor+1], true
}

// Undo moves the cursor back and returns the new current entry.
func (m *Manager) Undo() (Entry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cursor == 0 {
		return Entry{}, false
	}
	m.cursor--
	return m.entries[m.cursor], true
}

// Redo moves the cursor forward and returns the new current entry.
func (m *Manager) Redo() (Entry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cursor >= len(m.entries)-1 {
		return Entry{}, false
	}
	m.cursor++
	return m.entries[m.cursor], true
}

func (m *Manager) CanUndo() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cursor > 0
}

func (m *Manager) CanRedo() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cursor < len(m.entries)-1
}

// Current is the entry at the cursor.
func (m *Manager) Current() Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.entries[m.cursor]
}

// Reset discards the timeline and starts over from initial.
func (m *Manager) Reset(initial Entry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resetLocked(initial)
}

func (m *Manager) resetLocked(initial Entry) {
	m.entries = []Entry{initial}
	m.cursor = 0
	m.totalBytes = len(initial.Blob)
}

// Stats returns current sizes for diagnostics.
func (m *Manager) Stats() (totalBytes, entries, cursor int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.totalBytes, len(m.entries), m.cursor
}

func (m *Manager) enforceCapsLocked() {
	drop := 0
	for m.cursor-drop > 0 && (len(m.entries)-drop > m.cfg.MaxEntries || m.totalBytes > m.cfg.MaxBytes) {
		m.totalBytes -= len(m.entries[drop].Blob)
		drop++
	}
	if drop > 0 {
		m.entries = append([]Entry(nil), m.entries[drop:]...)
		m.cursor -= drop
	}
}
