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
	"fmt"
	"sort"
	"strconv"
	"strings"

	apperr "designeditor/internal/errors"
	"designeditor/internal/scene"
	"designeditor/internal/vector"
)

// SVGOptions controls Vectorize.
type SVGOptions struct {
	// Fonts is used to wrap text the same way the rasterizer does.
	Fonts *FontLibrary
}

const clipID = "workspace"

// Vectorize renders doc as a standalone SVG document clipped to the workspace frame.
// Objects entirely outside the frame are omitted.
func Vectorize(doc scene.Document, opt SVGOptions) ([]byte, error) {
	ws := doc.Workspace
	frame := vector.R(0, 0, float64(ws.Width), float64(ws.Height))
	faces := newFaceCache(opt.Fonts)
	defer faces.close()

	var buf bytes.Buffer
	var werr error
	wf := func(format string, args ...any) {
		if werr != nil {
			return
		}
		_, werr = fmt.Fprintf(&buf, format, args...)
	}

	var visible []*scene.Object
	filters := map[string][]string{}
	for i := range doc.Objects {
		o := &doc.Objects[i]
		if !o.Visible || !o.Bounds().Intersects(frame) {
			continue
		}
		visible = append(visible, o)
		if o.IsImage() && len(o.Image.Filters) > 0 {
			filters[filterID(o.Image.Filters)] = o.Image.Filters
		}
	}

	wf("<?xml version=\"1.0\" encoding=\"UTF-8\"?>\n")
	wf("<svg xmlns=\"http://www.w3.org/2000/svg\" xmlns:xlink=\"http://www.w3.org/1999/xlink\" version=\"1.1\" width=\"%d\" height=\"%d\" viewBox=\"0 0 %d %d\">\n", ws.Width, ws.Height, ws.Width, ws.Height)
	wf("  <defs>\n")
	wf("    <clipPath id=\"%s\"><rect x=\"0\" y=\"0\" width=\"%d\" height=\"%d\"/></clipPath>\n", clipID, ws.Width, ws.Height)
	ids := make([]string, 0, len(filters))
	for id := range filters {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		wf("%s", svgFilter(id, filters[id]))
	}
	wf("  </defs>\n")
	wf("  <g clip-path=\"url(#%s)\">\n", clipID)
	if bg, err := vector.ParseColor(ws.Background); err == nil && bg.A > 0 {
		wf("    <rect x=\"0\" y=\"0\" width=\"%d\" height=\"%d\" fill=\"%s\"%s/>\n", ws.Width, ws.Height, svgColor(bg), alphaAttr("fill-opacity", bg))
	}
	for _, o := range visible {
		switch o.Kind {
		case scene.KindText:
			s, err := svgText(o, faces)
			if err != nil {
				return nil, err
			}
			wf("%s", s)
		case scene.KindImage:
			wf("%s", svgImage(o))
		default:
			wf("%s", svgShape(o))
		}
	}
	wf("  </g>\n")
	wf("</svg>\n")
	if werr != nil {
		return nil, apperr.NewInternal("vectorize", werr)
	}
	return buf.Bytes(), nil
}

func num(v float64) string {
	return strconv.FormatFloat(vector.FloatRound(v, 3), 'f', -1, 64)
}

func matrixAttr(m vector.Affine2D) string {
	return fmt.Sprintf(" transform=\"matrix(%s %s %s %s %s %s)\"", num(m.A), num(m.B), num(m.C), num(m.D), num(m.E), num(m.F))
}

func alphaAttr(name string, c vector.Color) string {
	if c.A == 0xff {
		return ""
	}
	return fmt.Sprintf(" %s=\"%s\"", name, num(float64(c.A)/255))
}

func opacityAttr(o *scene.Object) string {
	if o.Opacity >= 1 {
		return ""
	}
	return fmt.Sprintf(" opacity=\"%s\"", num(o.Opacity))
}

func paintAttrs(o *scene.Object) string {
	var b strings.Builder
	fill, err := vector.ParseColor(o.Fill)
	if o.Kind == scene.KindPath || err != nil || fill.A == 0 {
		b.WriteString(" fill=\"none\"")
	} else {
		fmt.Fprintf(&b, " fill=\"%s\"%s", svgColor(fill), alphaAttr("fill-opacity", fill))
	}
	stroke, err := vector.ParseColor(o.Stroke)
	if err != nil || stroke.A == 0 || o.StrokeWidth <= 0 {
		return b.String()
	}
	fmt.Fprintf(&b, " stroke=\"%s\" stroke-width=\"%s\"%s", svgColor(stroke), num(o.StrokeWidth), alphaAttr("stroke-opacity", stroke))
	if len(o.StrokeDash) > 0 {
		parts := make([]string, len(o.StrokeDash))
		for i, d := range o.StrokeDash {
			parts[i] = num(d)
		}
		fmt.Fprintf(&b, " stroke-dasharray=\"%s\"", strings.Join(parts, " "))
	}
	if o.Kind == scene.KindPath {
		b.WriteString(" stroke-linecap=\"round\" stroke-linejoin=\"round\"")
	}
	return b.String()
}

func svgShape(o *scene.Object) string {
	return fmt.Sprintf("    <path id=\"%s\" d=\"%s\"%s%s%s/>\n", escAttr(o.ID), o.LocalPath().SVGData(), matrixAttr(o.Matrix()), paintAttrs(o), opacityAttr(o))
}

func svgImage(o *scene.Object) string {
	filter := ""
	if len(o.Image.Filters) > 0 {
		filter = fmt.Sprintf(" filter=\"url(#%s)\"", filterID(o.Image.Filters))
	}
	return fmt.Sprintf("    <image id=\"%s\" x=\"0\" y=\"0\" width=\"%s\" height=\"%s\" preserveAspectRatio=\"none\" xlink:href=\"%s\"%s%s%s/>\n",
		escAttr(o.ID), num(o.Width), num(o.Height), escAttr(o.Image.Src), matrixAttr(o.Matrix()), opacityAttr(o), filter)
}

func svgText(o *scene.Object, faces *faceCache) (string, error) {
	td := o.Text
	face, err := faces.face(FontSpec{Family: td.FontFamily, Weight: td.FontWeight, Italic: td.Italic, Size: td.FontSize})
	if err != nil {
		return "", apperr.NewInternal("vectorize", err)
	}
	met := face.Metrics()
	asc, desc := fixedToFloat(met.Ascent), fixedToFloat(met.Descent)
	lineH := td.FontSize * scene.LineHeight

	anchor, x := "start", 0.0
	switch td.TextAlign {
	case "center":
		anchor, x = "middle", o.Width/2
	case "right":
		anchor, x = "end", o.Width
	}
	var deco []string
	if td.Underline {
		deco = append(deco, "underline")
	}
	if td.Linethrough {
		deco = append(deco, "line-through")
	}
	style := "normal"
	if td.Italic {
		style = "italic"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "    <text id=\"%s\" xml:space=\"preserve\" font-family=\"%s\" font-size=\"%s\" font-weight=\"%d\" font-style=\"%s\" text-anchor=\"%s\"",
		escAttr(o.ID), escAttr(td.FontFamily), num(td.FontSize), td.FontWeight, style, anchor)
	if len(deco) > 0 {
		fmt.Fprintf(&b, " text-decoration=\"%s\"", strings.Join(deco, " "))
	}
	fill, err := vector.ParseColor(o.Fill)
	if err != nil || fill.A == 0 {
		b.WriteString(" fill=\"none\"")
	} else {
		fmt.Fprintf(&b, " fill=\"%s\"%s", svgColor(fill), alphaAttr("fill-opacity", fill))
	}
	b.WriteString(matrixAttr(o.Matrix()))
	b.WriteString(opacityAttr(o))
	b.WriteString(">")
	for i, line := range WrapText(face, td.Text, o.Width) {
		base := float64(i)*lineH + (lineH-(asc+desc))/2 + asc
		fmt.Fprintf(&b, "<tspan x=\"%s\" y=\"%s\">%s</tspan>", num(x), num(base), escText(line))
	}
	b.WriteString("</text>\n")
	return b.String(), nil
}

func filterID(names []string) string { return "filter-" + strings.Join(names, "-") }

func svgFilter(id string, names []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "    <filter id=\"%s\" color-interpolation-filters=\"sRGB\">", id)
	for _, n := range names {
		if m, ok := colorMatrices[n]; ok {
			vals := make([]string, len(m))
			for i, v := range m {
				vals[i] = num(v)
			}
			fmt.Fprintf(&b, "<feColorMatrix type=\"matrix\" values=\"%s\"/>", strings.Join(vals, " "))
			continue
		}
		switch n {
		case "blur":
			b.WriteString("<feGaussianBlur stdDeviation=\"1.5\"/>")
		case "sharpen", "emboss":
			k := kernels[n]
			vals := make([]string, len(k))
			for i, v := range k {
				vals[i] = num(v)
			}
			fmt.Fprintf(&b, "<feConvolveMatrix order=\"3\" preserveAlpha=\"true\" kernelMatrix=\"%s\"/>", strings.Join(vals, " "))
		}
	}
	b.WriteString("</filter>\n")
	return b.String()
}

func escAttr(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		ch := s[i]
		switch ch {
		case '"':
			out = append(out, "&quot;"...)
		case '&':
			out = append(out, "&amp;"...)
		case '<':
			out = append(out, "&lt;"...)
		case '\n':
			out = append(out, ' ')
		case '\r':
		default:
			out = append(out, ch)
		}
	}
	return string(out)
}

func escText(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		ch := s[i]
		switch ch {
		case '&':
			out = append(out, "&amp;"...)
		case '<':
			out = append(out, "&lt;"...)
		case '>':
			out = append(out, "&gt;"...)
		default:
			out = append(out, ch)
		}
	}
	return string(out)
}

func svgColor(c vector.Color) string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}
