/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package scene

// FilterNone clears the filter list of an image.
const FilterNone = "none"

// Filters are the image filter names accepted by ChangeImageFilter, in menu order.
var Filters = []string{
	FilterNone,
	"polaroid",
	"sepia",
	"kodachrome",
	"contrast",
	"brightness",
	"greyscale",
	"brownie",
	"vintage",
	"technicolor",
	"pixelate",
	"invert",
	"blur",
	"sharpen",
	"emboss",
	"blacknwhite",
	"saturation",
}

var filterSet = func() map[string]bool {
	m := make(map[string]bool, len(Filters))
	for _, f := range Filters {
		m[f] = true
	}
	return m
}()

// ValidFilter reports whether name is a known filter. "none" is only valid as a command argument.
func ValidFilter(name string) bool { return name != FilterNone && filterSet[name] }
