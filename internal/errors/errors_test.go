/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package errors

import (
	stderrors "errors"
	"fmt"
	"testing"
)

func TestEditorError_Error(t *testing.T) {
	err := NewValidation("changeOpacity", "opacity must be within [0,1]", map[string]any{"value": 1.5})
	want := "VALIDATION: changeOpacity: opacity must be within [0,1]"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
	if err.Details["value"] != 1.5 {
		t.Errorf("Details[value] = %v", err.Details["value"])
	}
}

func TestNewUploadFailureUnwraps(t *testing.T) {
	cause := fmt.Errorf("dial tcp: refused")
	err := NewUploadFailure("previews/abc.png", cause)
	if err.Code != ErrUploadFailed {
		t.Errorf("Code = %q", err.Code)
	}
	if !stderrors.Is(err, cause) {
		t.Errorf("expected upload failure to unwrap to cause")
	}
	if err.Details["key"] != "previews/abc.png" {
		t.Errorf("Details[key] = %v", err.Details["key"])
	}
}

func TestIsThroughWrapping(t *testing.T) {
	inner := NewSerialization("undo", fmt.Errorf("unexpected EOF"))
	wrapped := fmt.Errorf("restore snapshot: %w", inner)

	if !Is(wrapped, ErrSerialization) {
		t.Errorf("Is(wrapped, SERIALIZATION) = false")
	}
	if Is(wrapped, ErrValidation) {
		t.Errorf("Is(wrapped, VALIDATION) = true")
	}
	if Is(fmt.Errorf("plain"), ErrInternal) {
		t.Errorf("plain error must not match")
	}
	if CodeOf(wrapped) != ErrSerialization || CodeOf(nil) != "" {
		t.Errorf("CodeOf mismatch")
	}
}

func TestConstructorsSetCodes(t *testing.T) {
	cases := []struct {
		err  *EditorError
		code ErrorCode
	}{
		{Validationf("setWorkspace", "width %d out of range", 0), ErrValidation},
		{NewNotFound("remove", "id-1"), ErrNotFound},
		{NewInternal("export", fmt.Errorf("boom")), ErrInternal},
	}
	for _, c := range cases {
		if c.err.Code != c.code {
			t.Errorf("%v: code %q, want %q", c.err, c.err.Code, c.code)
		}
	}
}
