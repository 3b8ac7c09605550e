/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"image"
	"image/color"
	"testing"

	"golang.org/x/image/font/basicfont"

	"designeditor/internal/scene"
)

func solid(c color.NRGBA, w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
	}
	return img
}

func TestEveryFilterIsImplemented(t *testing.T) {
	src := solid(color.NRGBA{200, 100, 50, 255}, 9, 9)
	for _, f := range scene.Filters {
		if f == scene.FilterNone {
			continue
		}
		if _, err := ApplyFilters(src, []string{f}); err != nil {
			t.Fatalf("%s: %v", f, err)
		}
	}
	if _, err := ApplyFilters(src, []string{"warp"}); err == nil {
		t.Fatalf("unknown filter must fail")
	}
	if c := src.NRGBAAt(0, 0); c.R != 200 {
		t.Fatalf("source mutated: %v", c)
	}
}

func TestGreyscaleAndInvert(t *testing.T) {
	src := solid(color.NRGBA{255, 0, 0, 255}, 2, 2)
	g, _ := ApplyFilters(src, []string{"greyscale"})
	if c := g.NRGBAAt(0, 0); c.R != c.G || c.G != c.B {
		t.Fatalf("greyscale: %v", c)
	}
	inv, _ := ApplyFilters(src, []string{"invert"})
	if c := inv.NRGBAAt(1, 1); c != (color.NRGBA{0, 255, 255, 255}) {
		t.Fatalf("invert: %v", c)
	}
}

func TestPixelateKeepsBlocks(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 16, 16))
	src.SetNRGBA(0, 0, color.NRGBA{255, 255, 255, 255})
	out, _ := ApplyFilters(src, []string{"pixelate"})
	if c := out.NRGBAAt(7, 7); c.R != 255 {
		t.Fatalf("block not filled: %v", c)
	}
	if c := out.NRGBAAt(8, 8); c.R != 0 {
		t.Fatalf("next block changed: %v", c)
	}
}

func TestWrapText(t *testing.T) {
	face := basicfont.Face7x13
	lines := WrapText(face, "one two three\nfour", 7*8)
	want := []string{"one two", "three", "four"}
	if len(lines) != len(want) {
		t.Fatalf("got %q", lines)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Fatalf("line %d: got %q want %q", i, lines[i], want[i])
		}
	}
	if got := WrapText(face, "a b", 0); len(got) != 1 {
		t.Fatalf("maxW 0 must not wrap: %q", got)
	}
}

func TestDataURLRoundTrip(t *testing.T) {
	u := DataURL("image/png", []byte{1, 2, 3})
	mime, b, err := ParseDataURL(u)
	if err != nil || mime != "image/png" || len(b) != 3 || b[2] != 3 {
		t.Fatalf("round trip: %q %v %v", mime, b, err)
	}
	if _, b, err := ParseDataURL("data:,hello%20world"); err != nil || string(b) != "hello world" {
		t.Fatalf("plain data url: %q %v", b, err)
	}
	if _, _, err := ParseDataURL("https://x"); err == nil {
		t.Fatalf("non data url must fail")
	}
}
