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
	"testing"
)

func near(a, b float64) bool { return math.Abs(a-b) < 1e-6 }

func TestRectContainsAndInset(t *testing.T) {
	r := R(10, 20, 100, 50)
	if !r.Contains(Pt{10, 20}) || !r.Contains(Pt{110, 70}) {
		t.Fatalf("expected edge points to be contained")
	}
	in := r.Inset(5, 5)
	if in.X != 15 || in.Y != 25 || in.W != 90 || in.H != 40 {
		t.Fatalf("unexpected inset: %+v", in)
	}
	if !r.Intersects(R(100, 60, 50, 50)) || r.Intersects(R(200, 200, 5, 5)) {
		t.Fatalf("intersects mismatch")
	}
}

func TestAffineBasic(t *testing.T) {
	m := Translate(10, 5).Mul(Scale(2, 3))
	p := m.Apply(Pt{1, 1})
	if p.X != 12 || p.Y != 8 {
		t.Fatalf("unexpected transform result: %+v", p)
	}
}

func TestAffineInvertRoundTrip(t *testing.T) {
	m := Compose(40, 30, 2, 0.5, 30, 10, 0)
	inv, ok := m.Invert()
	if !ok {
		t.Fatalf("expected invertible matrix")
	}
	p := Pt{17, -3}
	q := inv.Apply(m.Apply(p))
	if !near(p.X, q.X) || !near(p.Y, q.Y) {
		t.Fatalf("round trip mismatch: %+v vs %+v", p, q)
	}
	if _, ok := Scale(0, 1).Invert(); ok {
		t.Fatalf("zero scale must be singular")
	}
}

func TestComposeRotatesAroundOrigin(t *testing.T) {
	m := Compose(100, 100, 1, 1, 90, 0, 0)
	p := m.Apply(Pt{10, 0})
	if !near(p.X, 100) || !near(p.Y, 110) {
		t.Fatalf("unexpected rotated point: %+v", p)
	}
}

func TestApplyRectBounds(t *testing.T) {
	b := Translate(10, 20).ApplyRect(R(0, 0, 100, 50))
	if b.X != 10 || b.Y != 20 || b.W != 100 || b.H != 50 {
		t.Fatalf("unexpected bounds: %+v", b)
	}
}

func TestFloatRound(t *testing.T) {
	if FloatRound(1.23456, 2) != 1.23 || FloatRound(2.5, -1) != 2.5 {
		t.Fatalf("FloatRound mismatch")
	}
}
