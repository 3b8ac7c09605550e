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
	"image"
	"image/color"
	"image/draw"
	"math"
)

// ColorMatrix is a 4x5 row-major matrix over RGBA in [0,1]; the fifth column is an offset.
type ColorMatrix [20]float64

var colorMatrices = map[string]ColorMatrix{
	"sepia": {
		0.393, 0.769, 0.189, 0, 0,
		0.349, 0.686, 0.168, 0, 0,
		0.272, 0.534, 0.131, 0, 0,
		0, 0, 0, 1, 0,
	},
	"brownie": {
		0.59970, 0.34553, -0.27082, 0, 0.186,
		-0.03770, 0.86095, 0.15059, 0, -0.1449,
		0.24113, -0.07441, 0.44972, 0, -0.02965,
		0, 0, 0, 1, 0,
	},
	"vintage": {
		0.62793, 0.32021, -0.03965, 0, 0.03784,
		0.02578, 0.64411, 0.03259, 0, 0.02926,
		0.04660, -0.08512, 0.52416, 0, 0.02023,
		0, 0, 0, 1, 0,
	},
	"kodachrome": {
		1.12855, -0.39673, -0.03992, 0, 0.24991,
		-0.16404, 1.08352, -0.05498, 0, 0.09698,
		-0.16786, -0.56034, 1.60148, 0, 0.13972,
		0, 0, 0, 1, 0,
	},
	"technicolor": {
		1.91252, -0.85453, -0.09155, 0, 0.04624,
		-0.30878, 1.76589, -0.10601, 0, -0.27589,
		-0.23110, -0.75018, 1.84759, 0, 0.12137,
		0, 0, 0, 1, 0,
	},
	"polaroid": {
		1.438, -0.062, -0.062, 0, 0,
		-0.122, 1.378, -0.122, 0, 0,
		-0.016, -0.016, 1.483, 0, 0,
		0, 0, 0, 1, 0,
	},
	"greyscale": {
		0.299, 0.587, 0.114, 0, 0,
		0.299, 0.587, 0.114, 0, 0,
		0.299, 0.587, 0.114, 0, 0,
		0, 0, 0, 1, 0,
	},
	"blacknwhite": {
		1.5, 1.5, 1.5, 0, -1,
		1.5, 1.5, 1.5, 0, -1,
		1.5, 1.5, 1.5, 0, -1,
		0, 0, 0, 1, 0,
	},
	"invert": {
		-1, 0, 0, 0, 1,
		0, -1, 0, 0, 1,
		0, 0, -1, 0, 1,
		0, 0, 0, 1, 0,
	},
	"brightness": {
		1, 0, 0, 0, 0.1,
		0, 1, 0, 0, 0.1,
		0, 0, 1, 0, 0.1,
		0, 0, 0, 1, 0,
	},
	"contrast":   contrastMatrix(0.25),
	"saturation": saturationMatrix(1.5),
}

var kernels = map[string][9]float64{
	"sharpen": {0, -1, 0, -1, 5, -1, 0, -1, 0},
	"emboss":  {1, 1, 1, 1, 0.7, -1, -1, -1, -1},
	"blur":    {1.0 / 9, 1.0 / 9, 1.0 / 9, 1.0 / 9, 1.0 / 9, 1.0 / 9, 1.0 / 9, 1.0 / 9, 1.0 / 9},
}

const pixelateBlock = 8

func contrastMatrix(c float64) ColorMatrix {
	s := 1 + c
	o := (1 - s) / 2
	return ColorMatrix{
		s, 0, 0, 0, o,
		0, s, 0, 0, o,
		0, 0, s, 0, o,
		0, 0, 0, 1, 0,
	}
}

func saturationMatrix(s float64) ColorMatrix {
	const lr, lg, lb = 0.2126, 0.7152, 0.0722
	i := 1 - s
	return ColorMatrix{
		lr*i + s, lg * i, lb * i, 0, 0,
		lr * i, lg*i + s, lb * i, 0, 0,
		lr * i, lg * i, lb*i + s, 0, 0,
		0, 0, 0, 1, 0,
	}
}

// FilterMatrix returns the colour matrix of a matrix-based filter.
func FilterMatrix(name string) (ColorMatrix, bool) {
	m, ok := colorMatrices[name]
	return m, ok
}

func toNRGBA(src image.Image) *image.NRGBA {
	if n, ok := src.(*image.NRGBA); ok && n.Rect.Min == (image.Point{}) {
		return n
	}
	b := src.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
	return dst
}

// ApplyFilters runs the named filters in order and returns a new image.
func ApplyFilters(src image.Image, names []string) (*image.NRGBA, error) {
	out := toNRGBA(src)
	if len(names) > 0 && out == src {
		out = cloneNRGBA(out)
	}
	for _, n := range names {
		switch {
		case n == "pixelate":
			pixelate(out, pixelateBlock)
		case hasKernel(n):
			out = convolve(out, kernels[n])
		default:
			m, ok := colorMatrices[n]
			if !ok {
				return nil, fmt.Errorf("unknown filter %q", n)
			}
			applyMatrix(out, m)
		}
	}
	return out, nil
}

func hasKernel(n string) bool { _, ok := kernels[n]; return ok }

func cloneNRGBA(src *image.NRGBA) *image.NRGBA {
	dst := image.NewNRGBA(src.Rect)
	copy(dst.Pix, src.Pix)
	return dst
}

func clamp8(v float64) uint8 {
	v = math.Round(v * 255)
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}

func applyMatrix(img *image.NRGBA, m ColorMatrix) {
	for i := 0; i+3 < len(img.Pix); i += 4 {
		r := float64(img.Pix[i]) / 255
		g := float64(img.Pix[i+1]) / 255
		b := float64(img.Pix[i+2]) / 255
		a := float64(img.Pix[i+3]) / 255
		img.Pix[i] = clamp8(m[0]*r + m[1]*g + m[2]*b + m[3]*a + m[4])
		img.Pix[i+1] = clamp8(m[5]*r + m[6]*g + m[7]*b + m[8]*a + m[9])
		img.Pix[i+2] = clamp8(m[10]*r + m[11]*g + m[12]*b + m[13]*a + m[14])
		img.Pix[i+3] = clamp8(m[15]*r + m[16]*g + m[17]*b + m[18]*a + m[19])
	}
}

func convolve(src *image.NRGBA, k [9]float64) *image.NRGBA {
	b := src.Bounds()
	dst := image.NewNRGBA(b)
	at := func(x, y int) color.NRGBA {
		x = min(max(x, b.Min.X), b.Max.X-1)
		y = min(max(y, b.Min.Y), b.Max.Y-1)
		return src.NRGBAAt(x, y)
	}
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			var r, g, bl float64
			for j := 0; j < 3; j++ {
				for i := 0; i < 3; i++ {
					c := at(x+i-1, y+j-1)
					w := k[j*3+i]
					r += w * float64(c.R)
					g += w * float64(c.G)
					bl += w * float64(c.B)
				}
			}
			dst.SetNRGBA(x, y, color.NRGBA{R: clamp8(r / 255), G: clamp8(g / 255), B: clamp8(bl / 255), A: src.NRGBAAt(x, y).A})
		}
	}
	return dst
}

func pixelate(img *image.NRGBA, block int) {
	b := img.Bounds()
	for by := b.Min.Y; by < b.Max.Y; by += block {
		for bx := b.Min.X; bx < b.Max.X; bx += block {
			c := img.NRGBAAt(bx, by)
			for y := by; y < min(by+block, b.Max.Y); y++ {
				for x := bx; x < min(bx+block, b.Max.X); x++ {
					img.SetNRGBA(x, y, c)
				}
			}
		}
	}
}
