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
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"image/png"
	"log/slog"
	"math"
	"strings"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/math/f64"
	xvector "golang.org/x/image/vector"

	apperr "designeditor/internal/errors"
	applog "designeditor/internal/log"
	"designeditor/internal/scene"
	"designeditor/internal/vector"
)

// Format is a raster encoding.
type Format string

const (
	FormatPNG  Format = "png"
	FormatJPEG Format = "jpeg"
)

// MaxPixels bounds the output canvas.
const MaxPixels = 100_000_000

// RasterOptions controls Rasterize. Zero values mean PNG at scale 1, JPEG quality 90,
// a SourceLoader rooted at the working directory and the default fonts.
type RasterOptions struct {
	Format  Format
	Scale   float64
	Quality int
	Loader  ImageLoader
	Fonts   *FontLibrary
}

func (o RasterOptions) withDefaults() RasterOptions {
	if o.Format == "" {
		o.Format = FormatPNG
	}
	if o.Scale == 0 {
		o.Scale = 1
	}
	if o.Quality <= 0 || o.Quality > 100 {
		o.Quality = 90
	}
	if o.Loader == nil {
		o.Loader = NewSourceLoader("")
	}
	return o
}

// MimeType is the media type of the encoded output.
func (f Format) MimeType() string {
	if f == FormatJPEG {
		return "image/jpeg"
	}
	return "image/png"
}

// ParseFormat accepts png, jpeg and jpg.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "png", "":
		return FormatPNG, nil
	case "jpeg", "jpg":
		return FormatJPEG, nil
	}
	return "", apperr.Validationf("parseFormat", "unknown raster format %q", s)
}

// Rasterize renders exactly the workspace frame of doc and encodes it.
func Rasterize(ctx context.Context, doc scene.Document, opt RasterOptions) ([]byte, error) {
	opt = opt.withDefaults()
	img, err := Render(ctx, doc, opt)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	switch opt.Format {
	case FormatPNG:
		err = png.Encode(&buf, img)
	case FormatJPEG:
		err = jpeg.Encode(&buf, img, &jpeg.Options{Quality: opt.Quality})
	default:
		return nil, apperr.Validationf("rasterize", "unknown raster format %q", opt.Format)
	}
	if err != nil {
		return nil, apperr.NewInternal("rasterize", err)
	}
	return buf.Bytes(), nil
}

// PreviewDataURL rasterizes doc and wraps the result in a data: URL.
func PreviewDataURL(ctx context.Context, doc scene.Document, opt RasterOptions) (string, error) {
	opt = opt.withDefaults()
	b, err := Rasterize(ctx, doc, opt)
	if err != nil {
		return "", err
	}
	return DataURL(opt.Format.MimeType(), b), nil
}

// Render draws the background then every visible object bottom to top. Content outside
// the workspace frame is clipped.
func Render(ctx context.Context, doc scene.Document, opt RasterOptions) (*image.RGBA, error) {
	opt = opt.withDefaults()
	if math.IsNaN(opt.Scale) || opt.Scale <= 0 || math.IsInf(opt.Scale, 0) {
		return nil, apperr.NewValidation("render", "scale must be positive", map[string]any{"scale": opt.Scale})
	}
	fw := math.Round(float64(doc.Workspace.Width) * opt.Scale)
	fh := math.Round(float64(doc.Workspace.Height) * opt.Scale)
	if !(fw >= 1 && fh >= 1 && fw*fh <= MaxPixels) {
		return nil, apperr.NewValidation("render", "output size out of range", map[string]any{"width": fw, "height": fh})
	}
	w, h := int(fw), int(fh)
	r := &renderer{
		ctx:    ctx,
		dst:    image.NewRGBA(image.Rect(0, 0, w, h)),
		base:   vector.Scale(opt.Scale, opt.Scale),
		loader: opt.Loader,
		faces:  newFaceCache(opt.Fonts),
		log:    applog.WithComponent("export"),
	}
	defer r.faces.close()
	if bg, err := vector.ParseColor(doc.Workspace.Background); err == nil && bg.A > 0 {
		draw.Draw(r.dst, r.dst.Bounds(), image.NewUniform(bg.NRGBA()), image.Point{}, draw.Src)
	}
	for i := range doc.Objects {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		o := &doc.Objects[i]
		if !o.Visible || o.Opacity <= 0 {
			continue
		}
		if err := r.object(o); err != nil {
			return nil, err
		}
	}
	return r.dst, nil
}

type renderer struct {
	ctx    context.Context
	dst    *image.RGBA
	base   vector.Affine2D
	loader ImageLoader
	faces  *faceCache
	log    *slog.Logger
}

func (r *renderer) object(o *scene.Object) error {
	m := r.base.Mul(o.Matrix())
	switch o.Kind {
	case scene.KindText:
		return r.text(o, m)
	case scene.KindImage:
		r.image(o, m)
		return nil
	}
	r.shape(o, m)
	return nil
}

func (r *renderer) shape(o *scene.Object, m vector.Affine2D) {
	pls := o.LocalPath().Transform(m).Flatten(0.25)
	if o.Kind != scene.KindPath {
		if fill, err := vector.ParseColor(o.Fill); err == nil && fill.A > 0 {
			r.fill(pls, fill.WithOpacity(o.Opacity))
		}
	}
	if o.StrokeWidth <= 0 {
		return
	}
	stroke, err := vector.ParseColor(o.Stroke)
	if err != nil || stroke.A == 0 {
		return
	}
	k := m.MeanScale()
	dash := make([]float64, len(o.StrokeDash))
	for i, d := range o.StrokeDash {
		dash[i] = d * k
	}
	r.stroke(pls, o.StrokeWidth*k, dash, stroke.WithOpacity(o.Opacity))
}

func (r *renderer) rasterizer() *xvector.Rasterizer {
	b := r.dst.Bounds()
	return xvector.NewRasterizer(b.Dx(), b.Dy())
}

func (r *renderer) paint(z *xvector.Rasterizer, c vector.Color) {
	z.DrawOp = draw.Over
	z.Draw(r.dst, r.dst.Bounds(), image.NewUniform(c.NRGBA()), image.Point{})
}

// addPolygon clips pts to the canvas and feeds it to z as one closed contour.
func (r *renderer) addPolygon(z *xvector.Rasterizer, pts []vector.Pt) {
	b := r.dst.Bounds()
	pts = clipPolygon(pts, vector.R(-1, -1, float64(b.Dx()+2), float64(b.Dy()+2)))
	if len(pts) < 3 {
		return
	}
	z.MoveTo(float32(pts[0].X), float32(pts[0].Y))
	for _, p := range pts[1:] {
		z.LineTo(float32(p.X), float32(p.Y))
	}
	z.ClosePath()
}

func (r *renderer) fill(pls []vector.Polyline, c vector.Color) {
	z := r.rasterizer()
	for _, pl := range pls {
		r.addPolygon(z, pl.Pts)
	}
	r.paint(z, c)
}

// stroke outlines every segment as a quad and every joint as a disc. All contours share
// one orientation so overlaps saturate instead of cancelling.
func (r *renderer) stroke(pls []vector.Polyline, width float64, dash []float64, c vector.Color) {
	hw := width / 2
	if hw <= 0 {
		return
	}
	z := r.rasterizer()
	for _, pl := range pls {
		for _, seg := range vector.DashSegments(pl, dash) {
			pts := seg.Pts
			if seg.Closed && len(pts) > 2 {
				pts = append(append([]vector.Pt(nil), pts...), pts[0])
			}
			for i := 1; i < len(pts); i++ {
				a, b := pts[i-1], pts[i]
				l := math.Hypot(b.X-a.X, b.Y-a.Y)
				if l == 0 {
					continue
				}
				nx, ny := -(b.Y-a.Y)/l*hw, (b.X-a.X)/l*hw
				r.addPolygon(z, []vector.Pt{
					{X: a.X + nx, Y: a.Y + ny}, {X: b.X + nx, Y: b.Y + ny},
					{X: b.X - nx, Y: b.Y - ny}, {X: a.X - nx, Y: a.Y - ny},
				})
				if i < len(pts)-1 || seg.Closed {
					r.addPolygon(z, disc(b, hw))
				}
			}
		}
	}
	r.paint(z, c)
}

func disc(c vector.Pt, radius float64) []vector.Pt {
	const n = 16
	out := make([]vector.Pt, n)
	for i := range out {
		a := -2 * math.Pi * float64(i) / n
		out[i] = vector.Pt{X: c.X + radius*math.Cos(a), Y: c.Y + radius*math.Sin(a)}
	}
	return out
}

// clipPolygon is Sutherland-Hodgman against an axis-aligned rectangle.
func clipPolygon(pts []vector.Pt, clip vector.Rect) []vector.Pt {
	minX, minY, maxX, maxY := clip.X, clip.Y, clip.X+clip.W, clip.Y+clip.H
	edges := []struct {
		inside func(p vector.Pt) bool
		cross  func(a, b vector.Pt) vector.Pt
	}{
		{func(p vector.Pt) bool { return p.X >= minX }, func(a, b vector.Pt) vector.Pt { return atX(a, b, minX) }},
		{func(p vector.Pt) bool { return p.X <= maxX }, func(a, b vector.Pt) vector.Pt { return atX(a, b, maxX) }},
		{func(p vector.Pt) bool { return p.Y >= minY }, func(a, b vector.Pt) vector.Pt { return atY(a, b, minY) }},
		{func(p vector.Pt) bool { return p.Y <= maxY }, func(a, b vector.Pt) vector.Pt { return atY(a, b, maxY) }},
	}
	out := pts
	for _, e := range edges {
		if len(out) == 0 {
			return nil
		}
		in := out
		out = make([]vector.Pt, 0, len(in)+2)
		prev := in[len(in)-1]
		for _, cur := range in {
			switch {
			case e.inside(cur) && e.inside(prev):
				out = append(out, cur)
			case e.inside(cur):
				out = append(out, e.cross(prev, cur), cur)
			case e.inside(prev):
				out = append(out, e.cross(prev, cur))
			}
			prev = cur
		}
	}
	return out
}

func atX(a, b vector.Pt, x float64) vector.Pt {
	t := (x - a.X) / (b.X - a.X)
	return vector.Pt{X: x, Y: a.Y + (b.Y-a.Y)*t}
}

func atY(a, b vector.Pt, y float64) vector.Pt {
	t := (y - a.Y) / (b.Y - a.Y)
	return vector.Pt{X: a.X + (b.X-a.X)*t, Y: y}
}

// composite draws src (in its own pixel space) onto the canvas through m.
func (r *renderer) composite(src image.Image, m vector.Affine2D, opacity float64, q xdraw.Transformer) {
	var opts *xdraw.Options
	if opacity < 1 {
		opts = &xdraw.Options{SrcMask: image.NewUniform(color.Alpha{A: uint8(math.Round(opacity * 255))})}
	}
	aff := f64.Aff3{m.A, m.C, m.E, m.B, m.D, m.F}
	q.Transform(r.dst, aff, src, src.Bounds(), xdraw.Over, opts)
}

func (r *renderer) image(o *scene.Object, m vector.Affine2D) {
	if o.Image == nil {
		return
	}
	src, err := r.loader.Load(r.ctx, o.Image.Src)
	if err == nil {
		src, err = ApplyFilters(src, o.Image.Filters)
	}
	if err != nil {
		r.log.Warn("image placeholder", slog.String("id", o.ID), slog.Any("err", err))
		r.fill(o.LocalPath().Transform(m).Flatten(0.25), vector.Color{R: 0xd0, G: 0xd0, B: 0xd0, A: 0xff}.WithOpacity(o.Opacity))
		return
	}
	b := src.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 || o.Width <= 0 || o.Height <= 0 {
		return
	}
	fit := vector.Scale(o.Width/float64(b.Dx()), o.Height/float64(b.Dy())).Mul(vector.Translate(-float64(b.Min.X), -float64(b.Min.Y)))
	r.composite(src, m.Mul(fit), o.Opacity, xdraw.CatmullRom)
}

// text lays out the text box at device resolution, then composites it through the
// object transform so rotation and skew apply to the glyphs.
func (r *renderer) text(o *scene.Object, m vector.Affine2D) error {
	td := o.Text
	if td == nil {
		return nil
	}
	fill, err := vector.ParseColor(o.Fill)
	if err != nil || fill.A == 0 || strings.TrimSpace(td.Text) == "" {
		return nil
	}
	k := m.MeanScale()
	if k <= 0 {
		return nil
	}
	size := td.FontSize * k
	face, err := r.faces.face(FontSpec{Family: td.FontFamily, Weight: td.FontWeight, Italic: td.Italic, Size: size})
	if err != nil {
		return apperr.NewInternal("renderText", err)
	}
	boxW := o.Width * k
	lines := WrapText(face, td.Text, boxW)
	lineH := td.FontSize * scene.LineHeight * k
	fw := math.Ceil(boxW)
	fh := math.Ceil(math.Max(o.Height*k, lineH*float64(len(lines))))
	if !(fw >= 1 && fh >= 1 && fw*fh <= MaxPixels) {
		return nil
	}
	w, h := int(fw), int(fh)
	local := image.NewRGBA(image.Rect(0, 0, w, h))
	ink := image.NewUniform(fill.NRGBA())
	met := face.Metrics()
	asc, desc := fixedToFloat(met.Ascent), fixedToFloat(met.Descent)
	d := &font.Drawer{Dst: local, Src: ink, Face: face}
	for i, line := range lines {
		adv := fixedToFloat(font.MeasureString(face, line))
		x := 0.0
		switch td.TextAlign {
		case "center":
			x = (boxW - adv) / 2
		case "right":
			x = boxW - adv
		}
		base := float64(i)*lineH + (lineH-(asc+desc))/2 + asc
		d.Dot = floatToFixed(x, base)
		d.DrawString(line)
		thick := math.Max(1, size/15)
		if td.Underline {
			fillRect(local, x, base+size*0.1, adv, thick, ink)
		}
		if td.Linethrough {
			fillRect(local, x, base-size*0.3, adv, thick, ink)
		}
	}
	r.composite(local, m.Mul(vector.Scale(1/k, 1/k)), o.Opacity, xdraw.BiLinear)
	return nil
}

func fillRect(dst *image.RGBA, x, y, w, h float64, src image.Image) {
	rect := image.Rect(int(math.Round(x)), int(math.Round(y)), int(math.Round(x+w)), int(math.Round(y+h)))
	draw.Draw(dst, rect, src, image.Point{}, draw.Over)
}
