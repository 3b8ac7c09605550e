/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package vector

import (
	"math"
	"strconv"
	"strings"
)

type PathOp uint8

const (
	MoveTo PathOp = iota
	LineTo
	QuadTo  // quadratic bezier (cx, cy, x, y)
	CubicTo // cubic bezier (cx1, cy1, cx2, cy2, x, y)
	Close
)

type PathCmd struct {
	Op   PathOp
	Data [6]float64 // enough for cubic; unused slots are zero
}

type Path struct{ Cmds []PathCmd }

func (p *Path) MoveTo(x, y float64) {
	p.Cmds = append(p.Cmds, PathCmd{Op: MoveTo, Data: [6]float64{x, y}})
}
func (p *Path) LineTo(x, y float64) {
	p.Cmds = append(p.Cmds, PathCmd{Op: LineTo, Data: [6]float64{x, y}})
}
func (p *Path) QuadTo(cx, cy, x, y float64) {
	p.Cmds = append(p.Cmds, PathCmd{Op: QuadTo, Data: [6]float64{cx, cy, x, y}})
}
func (p *Path) CubicTo(cx1, cy1, cx2, cy2, x, y float64) {
	p.Cmds = append(p.Cmds, PathCmd{Op: CubicTo, Data: [6]float64{cx1, cy1, cx2, cy2, x, y}})
}
func (p *Path) Close() { p.Cmds = append(p.Cmds, PathCmd{Op: Close}) }

// Bounds approximates the bounding box using end and control points.
func (p *Path) Bounds() Rect {
	var pts []Pt
	for _, c := range p.Cmds {
		switch c.Op {
		case MoveTo, LineTo:
			pts = append(pts, Pt{c.Data[0], c.Data[1]})
		case QuadTo:
			pts = append(pts, Pt{c.Data[0], c.Data[1]}, Pt{c.Data[2], c.Data[3]})
		case CubicTo:
			pts = append(pts, Pt{c.Data[0], c.Data[1]}, Pt{c.Data[2], c.Data[3]}, Pt{c.Data[4], c.Data[5]})
		}
	}
	return BoundsOf(pts)
}

// Transform returns a copy of the path with every point mapped through m.
func (p *Path) Transform(m Affine2D) *Path {
	out := &Path{Cmds: make([]PathCmd, len(p.Cmds))}
	for i, c := range p.Cmds {
		n := c
		for j := 0; j+1 < len(c.Data); j += 2 {
			q := m.Apply(Pt{c.Data[j], c.Data[j+1]})
			n.Data[j], n.Data[j+1] = q.X, q.Y
		}
		if c.Op == Close {
			n.Data = [6]float64{}
		}
		out.Cmds[i] = n
	}
	return out
}

// Polyline is one flattened subpath.
type Polyline struct {
	Pts    []Pt
	Closed bool
}

// Flatten converts curves to line segments no further than tol from the curve.
func (p *Path) Flatten(tol float64) []Polyline {
	if tol <= 0 {
		tol = 0.25
	}
	var out []Polyline
	var cur Polyline
	var pos, start Pt
	flush := func() {
		if len(cur.Pts) > 0 {
			out = append(out, cur)
		}
		cur = Polyline{}
	}
	for _, c := range p.Cmds {
		switch c.Op {
		case MoveTo:
			flush()
			pos = Pt{c.Data[0], c.Data[1]}
			start = pos
			cur.Pts = append(cur.Pts, pos)
		case LineTo:
			if len(cur.Pts) == 0 {
				cur.Pts = append(cur.Pts, pos)
			}
			pos = Pt{c.Data[0], c.Data[1]}
			cur.Pts = append(cur.Pts, pos)
		case QuadTo:
			if len(cur.Pts) == 0 {
				cur.Pts = append(cur.Pts, pos)
			}
			ctrl, end := Pt{c.Data[0], c.Data[1]}, Pt{c.Data[2], c.Data[3]}
			n := segments(dist(pos, ctrl)+dist(ctrl, end), tol)
			for i := 1; i <= n; i++ {
				t := float64(i) / float64(n)
				mt := 1 - t
				cur.Pts = append(cur.Pts, Pt{
					X: mt*mt*pos.X + 2*mt*t*ctrl.X + t*t*end.X,
					Y: mt*mt*pos.Y + 2*mt*t*ctrl.Y + t*t*end.Y,
				})
			}
			pos = end
		case CubicTo:
			if len(cur.Pts) == 0 {
				cur.Pts = append(cur.Pts, pos)
			}
			c1, c2, end := Pt{c.Data[0], c.Data[1]}, Pt{c.Data[2], c.Data[3]}, Pt{c.Data[4], c.Data[5]}
			n := segments(dist(pos, c1)+dist(c1, c2)+dist(c2, end), tol)
			for i := 1; i <= n; i++ {
				t := float64(i) / float64(n)
				mt := 1 - t
				a, b, cc, d := mt*mt*mt, 3*mt*mt*t, 3*mt*t*t, t*t*t
				cur.Pts = append(cur.Pts, Pt{
					X: a*pos.X + b*c1.X + cc*c2.X + d*end.X,
					Y: a*pos.Y + b*c1.Y + cc*c2.Y + d*end.Y,
				})
			}
			pos = end
		case Close:
			cur.Closed = true
			pos = start
			flush()
		}
	}
	flush()
	return out
}

func dist(a, b Pt) float64 { return math.Hypot(b.X-a.X, b.Y-a.Y) }

func segments(length, tol float64) int {
	n := int(math.Ceil(math.Sqrt(length / tol)))
	if n < 1 {
		return 1
	}
	if n > 256 {
		return 256
	}
	return n
}

// SVGData renders the path as an SVG "d" attribute.
func (p *Path) SVGData() string {
	var b strings.Builder
	num := func(v float64) {
		b.WriteString(strconv.FormatFloat(FloatRound(v, 3), 'f', -1, 64))
	}
	for i, c := range p.Cmds {
		if i > 0 {
			b.WriteByte(' ')
		}
		var n int
		switch c.Op {
		case MoveTo:
			b.WriteByte('M')
			n = 2
		case LineTo:
			b.WriteByte('L')
			n = 2
		case QuadTo:
			b.WriteByte('Q')
			n = 4
		case CubicTo:
			b.WriteByte('C')
			n = 6
		case Close:
			b.WriteByte('Z')
		}
		for j := 0; j < n; j++ {
			if j > 0 {
				b.WriteByte(' ')
			}
			num(c.Data[j])
		}
	}
	return b.String()
}

// RectPath is the closed outline of r.
func RectPath(r Rect) *Path {
	p := &Path{}
	p.MoveTo(r.X, r.Y)
	p.LineTo(r.X+r.W, r.Y)
	p.LineTo(r.X+r.W, r.Y+r.H)
	p.LineTo(r.X, r.Y+r.H)
	p.Close()
	return p
}

// kappa places cubic control points for a quarter ellipse.
const kappa = 0.5522847498

// EllipsePath is the ellipse inscribed in r, as four cubic segments.
func EllipsePath(r Rect) *Path {
	cx, cy := r.X+r.W/2, r.Y+r.H/2
	rx, ry := r.W/2, r.H/2
	ox, oy := rx*kappa, ry*kappa
	p := &Path{}
	p.MoveTo(cx+rx, cy)
	p.CubicTo(cx+rx, cy+oy, cx+ox, cy+ry, cx, cy+ry)
	p.CubicTo(cx-ox, cy+ry, cx-rx, cy+oy, cx-rx, cy)
	p.CubicTo(cx-rx, cy-oy, cx-ox, cy-ry, cx, cy-ry)
	p.CubicTo(cx+ox, cy-ry, cx+rx, cy-oy, cx+rx, cy)
	p.Close()
	return p
}

// PolygonPath joins pts; closed adds a closing segment.
func PolygonPath(pts []Pt, closed bool) *Path {
	p := &Path{}
	for i, q := range pts {
		if i == 0 {
			p.MoveTo(q.X, q.Y)
			continue
		}
		p.LineTo(q.X, q.Y)
	}
	if closed && len(pts) > 0 {
		p.Close()
	}
	return p
}
