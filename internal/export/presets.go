/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	apperr "designeditor/internal/errors"
	applog "designeditor/internal/log"
	"designeditor/internal/scene"
)

// PresetName represents a named export preset.
type PresetName string

const (
	PresetWeb       PresetName = "web"
	PresetPrint     PresetName = "print"
	PresetThumbnail PresetName = "thumbnail"
)

// Formats understood by Encode and Batch.
const (
	KindPNG  = "png"
	KindJPEG = "jpeg"
	KindSVG  = "svg"
	KindPDF  = "pdf"
)

// EncodeOptions applies to every format; Scale and Quality only affect raster output.
type EncodeOptions struct {
	Scale   float64
	Quality int
	Loader  ImageLoader
	Fonts   *FontLibrary
	Title   string
}

// Encode renders doc in the named format and returns the bytes and media type.
func Encode(ctx context.Context, doc scene.Document, format string, opt EncodeOptions) ([]byte, string, error) {
	switch f := strings.ToLower(strings.TrimSpace(format)); f {
	case KindSVG:
		b, err := Vectorize(doc, SVGOptions{Fonts: opt.Fonts})
		return b, "image/svg+xml", err
	case KindPDF:
		var buf bytes.Buffer
		if err := WritePDF(ctx, doc, &buf, PDFOptions{Title: opt.Title, Loader: opt.Loader}); err != nil {
			return nil, "", err
		}
		return buf.Bytes(), "application/pdf", nil
	default:
		rf, err := ParseFormat(f)
		if err != nil {
			return nil, "", err
		}
		b, err := Rasterize(ctx, doc, RasterOptions{Format: rf, Scale: opt.Scale, Quality: opt.Quality, Loader: opt.Loader, Fonts: opt.Fonts})
		return b, rf.MimeType(), err
	}
}

// BatchOptions controls Batch.
//
// Files are named <BaseName>.<ext> inside OutDir, which is created if missing. An empty
// Formats list uses the preset's defaults; Scale <= 0 uses the preset's scale.
type BatchOptions struct {
	Preset      PresetName
	Formats     []string
	OutDir      string
	BaseName    string
	Scale       float64
	Quality     int
	Loader      ImageLoader
	Concurrency int
}

// Output describes one written file.
type Output struct {
	Format string
	Path   string
	Size   int
}

// Batch renders doc in every requested format concurrently. The first failure cancels
// the remaining renders.
func Batch(ctx context.Context, doc scene.Document, opt BatchOptions) ([]Output, error) {
	formats := opt.Formats
	if len(formats) == 0 {
		formats = presetDefaultFormats(opt.Preset)
	}
	norm := make([]string, 0, len(formats))
	seen := map[string]bool{}
	for _, f := range formats {
		f = strings.ToLower(strings.TrimSpace(f))
		if f == "jpg" {
			f = KindJPEG
		}
		switch f {
		case KindPNG, KindJPEG, KindSVG, KindPDF:
		default:
			return nil, apperr.Validationf("batchExport", "unknown format: %s", f)
		}
		if !seen[f] {
			seen[f] = true
			norm = append(norm, f)
		}
	}
	if opt.OutDir == "" {
		opt.OutDir = filepath.Join("exports", string(opt.Preset))
	}
	if opt.BaseName == "" {
		opt.BaseName = "design"
	}
	scale := opt.Scale
	if scale <= 0 {
		scale = presetScale(opt.Preset)
	}
	if opt.Loader == nil {
		opt.Loader = NewSourceLoader("")
	}
	if err := os.MkdirAll(opt.OutDir, 0o755); err != nil {
		return nil, fmt.Errorf("ensure out dir: %w", err)
	}

	log := applog.WithOperation(applog.WithComponent("export"), "batch")
	out := make([]Output, len(norm))
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	if opt.Concurrency > 0 {
		g.SetLimit(opt.Concurrency)
	}
	for i, f := range norm {
		g.Go(func() error {
			b, _, err := Encode(gctx, doc, f, EncodeOptions{Scale: scale, Quality: opt.Quality, Loader: opt.Loader, Title: opt.BaseName})
			if err != nil {
				return fmt.Errorf("%s: %w", f, err)
			}
			path := filepath.Join(opt.OutDir, opt.BaseName+"."+extension(f))
			if err := os.WriteFile(path, b, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", f, err)
			}
			mu.Lock()
			out[i] = Output{Format: f, Path: path, Size: len(b)}
			mu.Unlock()
			log.Debug("exported", "format", f, "path", path, "bytes", len(b))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func extension(format string) string {
	if format == KindJPEG {
		return "jpg"
	}
	return format
}

func presetDefaultFormats(p PresetName) []string {
	switch p {
	case PresetWeb:
		return []string{KindPNG, KindSVG}
	case PresetPrint:
		return []string{KindPDF, KindPNG}
	case PresetThumbnail:
		return []string{KindJPEG}
	default:
		return []string{KindPNG}
	}
}

func presetScale(p PresetName) float64 {
	switch p {
	case PresetPrint:
		return 3
	case PresetThumbnail:
		return 0.25
	default:
		return 1
	}
}
