/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package version carries the build version, set via -ldflags "-X designeditor/internal/version.Version=...".
package version

// Version of the build. "dev" for local builds.
var Version = "dev"

// DocumentFormat is the scene document format written by this build.
const DocumentFormat = "1"

// String returns the human readable version.
func String() string {
	if Version == "" {
		return "dev"
	}
	return Version + " (doc v" + DocumentFormat + ")"
}
