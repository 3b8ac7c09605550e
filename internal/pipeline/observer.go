/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"designeditor/internal/debounce"
	"designeditor/internal/history"
	applog "designeditor/internal/log"
)

// Committer publishes settled history commits. *editor.Editor implements it.
type Committer interface {
	Subscribe(fn func(history.Commit)) (unsubscribe func())
}

// Observer saves the newest committed snapshot once commits settle. It is a subscriber
// independent of history: history never waits on a save.
type Observer struct {
	p     *Pipeline
	ctx   context.Context
	deb   *debounce.Debouncer
	unsub func()
	log   *slog.Logger

	mu     sync.Mutex
	latest []byte

	// OnResult, if set, receives every save outcome.
	OnResult func(Payload, error)
}

type ObserverOption func(*Observer)

// WithObserverAfterFunc replaces the debounce scheduler.
func WithObserverAfterFunc(a debounce.AfterFunc) ObserverOption {
	return func(o *Observer) { o.deb.WithAfterFunc(a) }
}

// WithResult registers fn for save outcomes.
func WithResult(fn func(Payload, error)) ObserverOption {
	return func(o *Observer) { o.OnResult = fn }
}

// Observe subscribes to c and saves through p, delay after the last commit. Undo and redo
// commits are saved too; they change what the user sees.
func Observe(ctx context.Context, c Committer, p *Pipeline, delay time.Duration, opts ...ObserverOption) *Observer {
	o := &Observer{p: p, ctx: ctx, log: applog.WithComponent("pipeline")}
	o.deb = debounce.New(delay, o.save)
	for _, opt := range opts {
		opt(o)
	}
	o.unsub = c.Subscribe(o.onCommit)
	return o
}

func (o *Observer) onCommit(c history.Commit) {
	o.mu.Lock()
	o.latest = c.Blob
	o.mu.Unlock()
	o.deb.Trigger()
}

func (o *Observer) save() {
	o.mu.Lock()
	blob := o.latest
	o.mu.Unlock()
	if blob == nil {
		return
	}
	pl, err := o.p.Save(o.ctx, blob)
	if err != nil && err != ErrClosed {
		applog.WithOperation(o.log, "observer").Warn("save failed", slog.Any("err", err))
	}
	if o.OnResult != nil {
		o.OnResult(pl, err)
	}
}

// Flush saves a pending snapshot now and reports whether there was one.
func (o *Observer) Flush() bool { return o.deb.Flush() }

// Pending reports whether a save waits for commits to settle.
func (o *Observer) Pending() bool { return o.deb.Pending() }

// Close unsubscribes and drops a pending save.
func (o *Observer) Close() {
	o.unsub()
	o.deb.Stop()
}
