/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"fmt"
	"strings"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/gobolditalic"
	"golang.org/x/image/font/gofont/goitalic"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/gofont/gomonobold"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
)

// FontSpec selects a face. Family names are matched loosely: monospace families map to
// Go Mono, everything else to Go Regular in the requested weight and slant.
type FontSpec struct {
	Family string
	Weight int
	Italic bool
	Size   float64
}

func (s FontSpec) bold() bool { return s.Weight >= 600 }

func (s FontSpec) mono() bool {
	f := strings.ToLower(s.Family)
	for _, m := range []string{"mono", "courier", "consolas", "menlo"} {
		if strings.Contains(f, m) {
			return true
		}
	}
	return false
}

type fontKey struct {
	mono, bold, italic bool
}

type faceKey struct {
	fontKey
	size float64
}

// FontLibrary caches parsed fonts. Safe for concurrent use. Faces are not, so every
// render keeps its own faceCache.
type FontLibrary struct {
	mu    sync.Mutex
	fonts map[fontKey]*opentype.Font
}

var (
	defaultFonts     *FontLibrary
	defaultFontsOnce sync.Once
)

// DefaultFonts is the process-wide library backed by the embedded Go fonts.
func DefaultFonts() *FontLibrary {
	defaultFontsOnce.Do(func() { defaultFonts = NewFontLibrary() })
	return defaultFonts
}

func NewFontLibrary() *FontLibrary {
	return &FontLibrary{fonts: map[fontKey]*opentype.Font{}}
}

func ttfFor(k fontKey) []byte {
	switch {
	case k.mono && k.bold:
		return gomonobold.TTF
	case k.mono:
		return gomono.TTF
	case k.bold && k.italic:
		return gobolditalic.TTF
	case k.bold:
		return gobold.TTF
	case k.italic:
		return goitalic.TTF
	}
	return goregular.TTF
}

func (l *FontLibrary) font(k fontKey) (*opentype.Font, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if ft, ok := l.fonts[k]; ok {
		return ft, nil
	}
	ft, err := opentype.Parse(ttfFor(k))
	if err != nil {
		return nil, fmt.Errorf("parse font: %w", err)
	}
	l.fonts[k] = ft
	return ft, nil
}

// NewFace returns a fresh face for spec at spec.Size pixels.
func (l *FontLibrary) NewFace(spec FontSpec) (font.Face, error) {
	if spec.Size <= 0 {
		spec.Size = 12
	}
	ft, err := l.font(fontKey{mono: spec.mono(), bold: spec.bold(), italic: spec.Italic})
	if err != nil {
		return nil, err
	}
	face, err := opentype.NewFace(ft, &opentype.FaceOptions{Size: spec.Size, DPI: 72, Hinting: font.HintingNone})
	if err != nil {
		return nil, fmt.Errorf("new face: %w", err)
	}
	return face, nil
}

// faceCache holds the faces of one render.
type faceCache struct {
	lib   *FontLibrary
	faces map[faceKey]font.Face
}

func newFaceCache(lib *FontLibrary) *faceCache {
	if lib == nil {
		lib = DefaultFonts()
	}
	return &faceCache{lib: lib, faces: map[faceKey]font.Face{}}
}

func (c *faceCache) face(spec FontSpec) (font.Face, error) {
	k := faceKey{fontKey: fontKey{mono: spec.mono(), bold: spec.bold(), italic: spec.Italic}, size: spec.Size}
	if f, ok := c.faces[k]; ok {
		return f, nil
	}
	f, err := c.lib.NewFace(spec)
	if err != nil {
		return nil, err
	}
	c.faces[k] = f
	return f, nil
}

func (c *faceCache) close() {
	for _, f := range c.faces {
		_ = f.Close()
	}
}
