/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package history

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"designeditor/internal/debounce"
	applog "designeditor/internal/log"
)

// Commit is published to subscribers at every settled boundary. Replay marks a
// restore by undo/redo; those entries are not pushed again.
type Commit struct {
	Entry
	Replay bool
}

// Recorder turns scene mutations into history entries. Notify arms a debounce timer;
// when it settles the scene is captured once and pushed.
type Recorder struct {
	hist    *Manager
	capture func() ([]byte, error)
	deb     *debounce.Debouncer
	now     func() time.Time
	log     *slog.Logger

	// commitMu serialises commits with undo/redo/rebase so a late timer can never
	// push a snapshot in the middle of a restore.
	commitMu  sync.Mutex
	replaying atomic.Bool

	subMu   sync.Mutex
	subs    map[int]func(Commit)
	nextSub int
}

type RecorderOption func(*Recorder)

// WithAfterFunc replaces the debounce scheduler.
func WithAfterFunc(a debounce.AfterFunc) RecorderOption {
	return func(r *Recorder) { r.deb.WithAfterFunc(a) }
}

// WithClock replaces time.Now for entry timestamps.
func WithClock(now func() time.Time) RecorderOption { return func(r *Recorder) { r.now = now } }

// NewRecorder records into h. capture must serialise the current scene; it is
// called without any recorder lock held. delay <= 0 commits synchronously.
func NewRecorder(h *Manager, capture func() ([]byte, error), delay time.Duration, opts ...RecorderOption) *Recorder {
	r := &Recorder{
		hist:    h,
		capture: capture,
		now:     time.Now,
		log:     applog.WithComponent("history"),
		subs:    map[int]func(Commit){},
	}
	r.deb = debounce.New(delay, r.commit)
	for _, o := range opts {
		o(r)
	}
	return r
}

func (r *Recorder) History() *Manager { return r.hist }

// Subscribe registers fn for commits and returns its removal func.
func (r *Recorder) Subscribe(fn func(Commit)) (unsubscribe func()) {
	r.subMu.Lock()
	id := r.nextSub
	r.nextSub++
	r.subs[id] = fn
	r.subMu.Unlock()
	return func() {
		r.subMu.Lock()
		delete(r.subs, id)
		r.subMu.Unlock()
	}
}

func (r *Recorder) publish(c Commit) {
	r.subMu.Lock()
	fns := make([]func(Commit), 0, len(r.subs))
	for i := 0; i < r.nextSub; i++ {
		if fn, ok := r.subs[i]; ok {
			fns = append(fns, fn)
		}
	}
	r.subMu.Unlock()
	for _, fn := range fns {
		fn(c)
	}
}

// Replaying reports whether a restore is in progress.
func (r *Recorder) Replaying() bool { return r.replaying.Load() }

// Notify marks the scene dirty. Ignored while a restore is replaying.
func (r *Recorder) Notify() {
	if r.replaying.Load() {
		return
	}
	r.deb.Trigger()
}

// Flush commits a pending mutation immediately.
func (r *Recorder) Flush() bool { return r.deb.Flush() }

// Pending reports whether a mutation waits for the debounce to settle.
func (r *Recorder) Pending() bool { return r.deb.Pending() }

func (r *Recorder) commit() {
	r.commitMu.Lock()
	blob, err := r.capture()
	if err != nil {
		r.commitMu.Unlock()
		applog.WithOperation(r.log, "commit").Error("capture snapshot failed", slog.Any("err", err))
		return
	}
	e := Entry{Blob: blob, TS: r.now()}
	pushed := r.hist.Push(e)
	r.commitMu.Unlock()
	if !pushed {
		return
	}
	if r.log.Enabled(context.Background(), slog.LevelDebug) {
		size, n, cursor := r.hist.Stats()
		applog.WithOperation(r.log, "commit").Debug("history entry", slog.Int("entries", n), slog.Int("cursor", cursor), slog.Int("bytes", size))
	}
	r.publish(Commit{Entry: e})
}

// Undo restores the previous entry through restore. On error (a corrupt snapshot)
// neither the cursor nor anything else moves. ok is false when there is nothing to undo.
func (r *Recorder) Undo(restore func(blob []byte) error) (bool, error) {
	return r.step(restore, r.hist.UndoTarget, r.hist.Undo)
}

// Redo restores the next entry through restore.
func (r *Recorder) Redo(restore func(blob []byte) error) (bool, error) {
	return r.step(restore, r.hist.RedoTarget, r.hist.Redo)
}

func (r *Recorder) step(restore func([]byte) error, target func() (Entry, bool), move func() (Entry, bool)) (bool, error) {
	r.deb.Flush()
	r.commitMu.Lock()
	e, ok := target()
	if !ok {
		r.commitMu.Unlock()
		return false, nil
	}
	r.replaying.Store(true)
	err := restore(e.Blob)
	r.replaying.Store(false)
	if err != nil {
		r.commitMu.Unlock()
		return false, err
	}
	move()
	r.commitMu.Unlock()
	r.publish(Commit{Entry: e, Replay: true})
	return true, nil
}

// Rebase runs apply with recording suspended, then restarts the timeline from the
// snapshot apply returns. Used when a document is loaded wholesale.
func (r *Recorder) Rebase(apply func() ([]byte, error)) error {
	r.deb.Cancel()
	r.commitMu.Lock()
	defer r.commitMu.Unlock()
	r.replaying.Store(true)
	blob, err := apply()
	r.replaying.Store(false)
	if err != nil {
		return err
	}
	r.deb.Cancel()
	r.hist.Reset(Entry{Blob: blob, TS: r.now()})
	return nil
}

// Close stops the debounce timer; pending mutations are dropped.
func (r *Recorder) Close() { r.deb.Stop() }
