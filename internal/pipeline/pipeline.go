/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package pipeline turns settled editor state into saved artifacts. The first save of a
// session uploads a rendered PNG to durable storage; later saves are local autosaves.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	apperr "designeditor/internal/errors"
	"designeditor/internal/export"
	applog "designeditor/internal/log"
	"designeditor/internal/scene"
	"designeditor/internal/storage"
	"designeditor/internal/telemetry"

	"github.com/oklog/ulid/v2"
)

// Uploader stores data under key and returns its durable URL.
type Uploader interface {
	Upload(ctx context.Context, key, contentType string, data []byte) (string, error)
}

// Journal records saves. *storage.Store implements it.
type Journal interface {
	Append(ctx context.Context, e storage.JournalEntry) (string, error)
}

type Kind string

const (
	KindFirst    Kind = "first"
	KindAutosave Kind = "autosave"
)

// Payload is handed to the save callback.
type Payload struct {
	Kind   Kind
	JSON   []byte
	Width  int
	Height int
	// Preview is the durable URL when Uploaded, otherwise a data: URL of the local rendering.
	Preview  string
	Uploaded bool
	Key      string
	// Warning is the upload failure a first save fell back from.
	Warning error
}

// SaveFunc persists a payload outside the editor core.
type SaveFunc func(ctx context.Context, p Payload) error

// ErrClosed is returned by Save after Close.
var ErrClosed = errors.New("pipeline closed")

type Options struct {
	Uploader Uploader
	OnSave   SaveFunc
	// OnWarning receives each upload failure once.
	OnWarning func(error)
	Sink      telemetry.Sink
	Journal   Journal
	DesignID  string

	// KeyPrefix is prepended to generated upload keys; NewKey replaces the generator.
	KeyPrefix string
	NewKey    func() string

	UploadScale  float64
	PreviewScale float64
	Loader       export.ImageLoader
	Fonts        *export.FontLibrary
}

func (o Options) withDefaults() Options {
	if o.UploadScale <= 0 {
		o.UploadScale = 2
	}
	if o.PreviewScale <= 0 {
		o.PreviewScale = 1
	}
	if o.Sink == nil {
		o.Sink = telemetry.Nop{}
	}
	if o.NewKey == nil {
		prefix := o.KeyPrefix
		o.NewKey = func() string { return DefaultKey(prefix) }
	}
	if o.DesignID == "" {
		o.DesignID = "default"
	}
	return o
}

// DefaultKey returns a fresh time-ordered object key under prefix.
func DefaultKey(prefix string) string {
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return prefix + strings.ToLower(ulid.Make().String()) + ".png"
}

type Pipeline struct {
	opts Options
	log  *slog.Logger

	// firstDone is claimed by the save that performs the upload; a save arriving while
	// that upload runs is an autosave.
	firstDone atomic.Bool
	closed    atomic.Bool

	ctx    context.Context
	cancel context.CancelFunc
	mu     sync.Mutex // orders wg.Add against Close
	wg     sync.WaitGroup
}

// New creates a pipeline whose uploads are bound to ctx; Close cancels them.
func New(ctx context.Context, opts Options) *Pipeline {
	ctx, cancel := context.WithCancel(ctx)
	return &Pipeline{opts: opts.withDefaults(), log: applog.WithComponent("pipeline"), ctx: ctx, cancel: cancel}
}

// FirstSaveDone reports whether the first save has been claimed.
func (p *Pipeline) FirstSaveDone() bool { return p.firstDone.Load() }

// Save turns the serialised scene blob into a payload and hands it to OnSave.
// Upload failures do not fail the save; they come back as Payload.Warning.
func (p *Pipeline) Save(ctx context.Context, blob []byte) (Payload, error) {
	if !p.enter() {
		return Payload{}, ErrClosed
	}
	defer p.wg.Done()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(p.ctx, cancel)
	defer stop()

	l := applog.WithOperation(p.log, "save")
	doc, err := scene.ParseDocument(blob)
	if err != nil {
		l.Error("save rejected", slog.Any("err", err))
		return Payload{}, err
	}
	pl := Payload{Kind: KindAutosave, JSON: blob, Width: doc.Workspace.Width, Height: doc.Workspace.Height}

	if p.firstDone.CompareAndSwap(false, true) {
		pl.Kind = KindFirst
		if err := p.first(ctx, doc, &pl); err != nil {
			// nothing was persisted; the next save is first again
			p.firstDone.Store(false)
			return Payload{}, err
		}
	} else {
		url, err := export.PreviewDataURL(ctx, doc, export.RasterOptions{Format: export.FormatPNG, Scale: p.opts.PreviewScale, Loader: p.opts.Loader, Fonts: p.opts.Fonts})
		if err != nil {
			l.Error("autosave preview failed", slog.Any("err", err))
			return Payload{}, err
		}
		pl.Preview = url
		p.opts.Sink.Event(telemetry.EventAutosave, map[string]any{"bytes": len(blob), "objects": len(doc.Objects)})
	}

	if p.closed.Load() {
		return pl, ErrClosed
	}
	p.journal(ctx, pl)
	if p.opts.OnSave != nil {
		if err := p.opts.OnSave(ctx, pl); err != nil {
			l.Error("save callback failed", slog.String("kind", string(pl.Kind)), slog.Any("err", err))
			return pl, fmt.Errorf("save callback: %w", err)
		}
	}
	l.Debug("saved", slog.String("kind", string(pl.Kind)), slog.Bool("uploaded", pl.Uploaded), slog.Int("bytes", len(blob)))
	return pl, nil
}

// first renders at the upload scale and uploads. On upload failure the local rendering
// becomes the preview and a warning is reported; there is no retry.
func (p *Pipeline) first(ctx context.Context, doc scene.Document, pl *Payload) error {
	l := applog.WithOperation(p.log, "firstSave")
	png, err := export.Rasterize(ctx, doc, export.RasterOptions{Format: export.FormatPNG, Scale: p.opts.UploadScale, Loader: p.opts.Loader, Fonts: p.opts.Fonts})
	if err != nil {
		l.Error("rasterize failed", slog.Any("err", err))
		return err
	}
	pl.Key = p.opts.NewKey()

	var url string
	if p.opts.Uploader == nil {
		err = errors.New("no uploader configured")
	} else {
		url, err = p.opts.Uploader.Upload(ctx, pl.Key, export.FormatPNG.MimeType(), png)
	}
	if err == nil {
		pl.Preview, pl.Uploaded = url, true
		p.opts.Sink.Event(telemetry.EventSaveFirst, map[string]any{"bytes": len(png), "width": pl.Width, "height": pl.Height})
		l.Info("first save uploaded", slog.String("key", pl.Key))
		return nil
	}
	if p.closed.Load() {
		return ErrClosed
	}
	warn := apperr.NewUploadFailure(pl.Key, err)
	pl.Preview = export.DataURL(export.FormatPNG.MimeType(), png)
	pl.Warning = warn
	l.Warn("upload failed, using local preview", slog.String("key", pl.Key), slog.Any("err", err))
	p.opts.Sink.Event(telemetry.EventUploadFailed, map[string]any{"bytes": len(png)})
	if p.opts.OnWarning != nil {
		p.opts.OnWarning(warn)
	}
	return nil
}

func (p *Pipeline) journal(ctx context.Context, pl Payload) {
	if p.opts.Journal == nil {
		return
	}
	kind := storage.KindAutosave
	if pl.Kind == KindFirst {
		kind = storage.KindFirst
	}
	url := ""
	if pl.Uploaded {
		url = pl.Preview
	}
	if _, err := p.opts.Journal.Append(ctx, storage.JournalEntry{
		DesignID: p.opts.DesignID, Kind: kind, URL: url, Width: pl.Width, Height: pl.Height, Doc: pl.JSON,
	}); err != nil {
		applog.WithOperation(p.log, "journal").Warn("journal append failed", slog.Any("err", err))
	}
}

func (p *Pipeline) enter() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed.Load() {
		return false
	}
	p.wg.Add(1)
	return true
}

// Close cancels in-flight uploads and waits for running saves. Their callbacks are
// suppressed, and later saves return ErrClosed. Must not be called from OnSave.
func (p *Pipeline) Close() {
	p.mu.Lock()
	if p.closed.Load() {
		p.mu.Unlock()
		return
	}
	p.closed.Store(true)
	p.mu.Unlock()
	p.cancel()
	p.wg.Wait()
}
