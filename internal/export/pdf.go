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
	"image/png"
	"io"
	"log/slog"
	"strings"

	"github.com/jung-kurt/gofpdf"

	apperr "designeditor/internal/errors"
	applog "designeditor/internal/log"
	"designeditor/internal/scene"
	"designeditor/internal/vector"
	"designeditor/internal/version"
)

// PDFOptions controls WritePDF.
// Units are points; one workspace unit maps to one point and the page is exactly the
// workspace. Text uses the core PDF fonts so nothing is embedded.
type PDFOptions struct {
	Title  string
	Loader ImageLoader
}

// WritePDF renders doc as a single-page PDF.
func WritePDF(ctx context.Context, doc scene.Document, w io.Writer, opt PDFOptions) error {
	if opt.Loader == nil {
		opt.Loader = NewSourceLoader("")
	}
	ws := doc.Workspace
	pw, ph := float64(ws.Width), float64(ws.Height)
	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		UnitStr: "pt",
		Size:    gofpdf.SizeType{Wd: pw, Ht: ph},
	})
	pdf.SetMargins(0, 0, 0)
	pdf.SetAutoPageBreak(false, 0)
	if opt.Title != "" {
		pdf.SetTitle(opt.Title, true)
	}
	pdf.SetCreator("designeditor "+version.String(), true)
	pdf.AddPage()

	p := &pdfPainter{ctx: ctx, pdf: pdf, pageH: ph, loader: opt.Loader, tr: pdf.UnicodeTranslatorFromDescriptor(""), log: applog.WithComponent("export")}
	pdf.ClipRect(0, 0, pw, ph, false)
	if bg, err := vector.ParseColor(ws.Background); err == nil && bg.A > 0 {
		p.alpha(float64(bg.A) / 255)
		pdf.SetFillColor(int(bg.R), int(bg.G), int(bg.B))
		pdf.Rect(0, 0, pw, ph, "F")
	}
	for i := range doc.Objects {
		if err := ctx.Err(); err != nil {
			return err
		}
		o := &doc.Objects[i]
		if !o.Visible || o.Opacity <= 0 {
			continue
		}
		switch o.Kind {
		case scene.KindText:
			p.text(o)
		case scene.KindImage:
			p.image(o)
		default:
			p.shape(o)
		}
	}
	pdf.ClipEnd()
	p.alpha(1)
	if err := pdf.Output(w); err != nil {
		return apperr.NewInternal("writePDF", fmt.Errorf("write pdf: %w", err))
	}
	return nil
}

type pdfPainter struct {
	ctx    context.Context
	pdf    *gofpdf.Fpdf
	pageH  float64
	loader ImageLoader
	tr     func(string) string
	log    *slog.Logger
	images int
}

func (p *pdfPainter) alpha(a float64) { p.pdf.SetAlpha(a, "Normal") }

// begin applies m (top-left, y down) as a PDF content transform.
func (p *pdfPainter) begin(m vector.Affine2D) {
	flip := vector.Affine2D{A: 1, D: -1, F: p.pageH}
	n := flip.Mul(m).Mul(flip)
	p.pdf.TransformBegin()
	p.pdf.Transform(gofpdf.TransformMatrix{A: n.A, B: n.B, C: n.C, D: n.D, E: n.E, F: n.F})
}

func (p *pdfPainter) path(pls []vector.Polyline, style string) {
	for _, pl := range pls {
		if len(pl.Pts) < 2 {
			continue
		}
		p.pdf.MoveTo(pl.Pts[0].X, pl.Pts[0].Y)
		for _, pt := range pl.Pts[1:] {
			p.pdf.LineTo(pt.X, pt.Y)
		}
		if pl.Closed {
			p.pdf.ClosePath()
		}
	}
	p.pdf.DrawPath(style)
}

func (p *pdfPainter) shape(o *scene.Object) {
	m := o.Matrix()
	pls := o.LocalPath().Transform(m).Flatten(0.25)
	if fill, err := vector.ParseColor(o.Fill); err == nil && fill.A > 0 && o.Kind != scene.KindPath {
		p.alpha(o.Opacity * float64(fill.A) / 255)
		p.pdf.SetFillColor(int(fill.R), int(fill.G), int(fill.B))
		p.path(pls, "F")
	}
	stroke, err := vector.ParseColor(o.Stroke)
	if err != nil || stroke.A == 0 || o.StrokeWidth <= 0 {
		return
	}
	k := m.MeanScale()
	p.alpha(o.Opacity * float64(stroke.A) / 255)
	p.pdf.SetDrawColor(int(stroke.R), int(stroke.G), int(stroke.B))
	p.pdf.SetLineWidth(o.StrokeWidth * k)
	if len(o.StrokeDash) > 0 {
		dash := make([]float64, len(o.StrokeDash))
		for i, d := range o.StrokeDash {
			dash[i] = d * k
		}
		p.pdf.SetDashPattern(dash, 0)
	}
	if o.Kind == scene.KindPath {
		p.pdf.SetLineCapStyle("round")
		p.pdf.SetLineJoinStyle("round")
	}
	p.path(pls, "D")
	p.pdf.SetDashPattern([]float64{}, 0)
	p.pdf.SetLineCapStyle("butt")
	p.pdf.SetLineJoinStyle("miter")
}

func pdfFamily(family string) string {
	f := strings.ToLower(family)
	switch {
	case (FontSpec{Family: family}).mono():
		return "Courier"
	case strings.Contains(f, "times"), strings.Contains(f, "georgia"), strings.Contains(f, "serif") && !strings.Contains(f, "sans"):
		return "Times"
	}
	return "Helvetica"
}

func (p *pdfPainter) text(o *scene.Object) {
	td := o.Text
	fill, err := vector.ParseColor(o.Fill)
	if td == nil || err != nil || fill.A == 0 || strings.TrimSpace(td.Text) == "" {
		return
	}
	style := ""
	if td.FontWeight >= 600 {
		style += "B"
	}
	if td.Italic {
		style += "I"
	}
	pdf := p.pdf
	pdf.SetFont(pdfFamily(td.FontFamily), style, td.FontSize)
	pdf.SetTextColor(int(fill.R), int(fill.G), int(fill.B))
	pdf.SetDrawColor(int(fill.R), int(fill.G), int(fill.B))
	pdf.SetLineWidth(max(0.5, td.FontSize/15))
	p.alpha(o.Opacity * float64(fill.A) / 255)

	lineH := td.FontSize * scene.LineHeight
	p.begin(o.Matrix())
	defer pdf.TransformEnd()
	measure := func(s string) float64 { return pdf.GetStringWidth(p.tr(s)) }
	for i, line := range wrapLines(td.Text, o.Width, measure) {
		s := p.tr(line)
		adv := pdf.GetStringWidth(s)
		x := 0.0
		switch td.TextAlign {
		case "center":
			x = (o.Width - adv) / 2
		case "right":
			x = o.Width - adv
		}
		base := float64(i)*lineH + (lineH-td.FontSize)/2 + td.FontSize*0.8
		pdf.Text(x, base, s)
		if td.Underline {
			pdf.Line(x, base+td.FontSize*0.1, x+adv, base+td.FontSize*0.1)
		}
		if td.Linethrough {
			pdf.Line(x, base-td.FontSize*0.3, x+adv, base-td.FontSize*0.3)
		}
	}
}

func (p *pdfPainter) image(o *scene.Object) {
	if o.Image == nil || o.Width <= 0 || o.Height <= 0 {
		return
	}
	src, err := p.loader.Load(p.ctx, o.Image.Src)
	if err == nil {
		src, err = ApplyFilters(src, o.Image.Filters)
	}
	var buf bytes.Buffer
	if err == nil {
		err = png.Encode(&buf, src)
	}
	if err != nil {
		p.log.Warn("image placeholder", slog.String("id", o.ID), slog.Any("err", err))
		p.alpha(o.Opacity)
		p.pdf.SetFillColor(0xd0, 0xd0, 0xd0)
		p.path(o.LocalPath().Transform(o.Matrix()).Flatten(0.25), "F")
		return
	}
	p.images++
	name := fmt.Sprintf("img%d", p.images)
	opts := gofpdf.ImageOptions{ImageType: "PNG"}
	p.pdf.RegisterImageOptionsReader(name, opts, &buf)
	p.alpha(o.Opacity)
	p.begin(o.Matrix())
	p.pdf.ImageOptions(name, 0, 0, o.Width, o.Height, false, opts, 0, "")
	p.pdf.TransformEnd()
}
