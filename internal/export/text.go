/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"math"
	"strings"

	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"
)

// WrapText breaks s into lines no wider than maxW pixels. Explicit newlines always break;
// a single word wider than maxW gets a line of its own. maxW <= 0 disables wrapping.
func WrapText(face font.Face, s string, maxW float64) []string {
	return wrapLines(s, maxW, func(t string) float64 { return fixedToFloat(font.MeasureString(face, t)) })
}

func wrapLines(s string, maxW float64, measure func(string) float64) []string {
	var out []string
	for _, para := range strings.Split(s, "\n") {
		words := strings.Fields(para)
		if len(words) == 0 || maxW <= 0 {
			out = append(out, para)
			continue
		}
		line := words[0]
		for _, w := range words[1:] {
			cand := line + " " + w
			if measure(cand) <= maxW {
				line = cand
				continue
			}
			out = append(out, line)
			line = w
		}
		out = append(out, line)
	}
	return out
}

func fixedToFloat(v fixed.Int26_6) float64 { return float64(v) / 64 }

func floatToFixed(x, y float64) fixed.Point26_6 {
	return fixed.Point26_6{X: fixed.Int26_6(math.Round(x * 64)), Y: fixed.Int26_6(math.Round(y * 64))}
}
