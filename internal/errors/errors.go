/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package errors defines the coded error taxonomy surfaced by the editor core.
package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode classifies an EditorError.
type ErrorCode string

const (
	ErrValidation    ErrorCode = "VALIDATION"    // bad property value or scene mutation input
	ErrSerialization ErrorCode = "SERIALIZATION" // snapshot or document cannot be decoded
	ErrUploadFailed  ErrorCode = "UPLOAD_FAILED" // first-save upload failed, local preview used
	ErrNotFound      ErrorCode = "NOT_FOUND"
	ErrInternal      ErrorCode = "INTERNAL"
)

// EditorError is a structured error with a code, the failing operation and optional details.
type EditorError struct {
	Code    ErrorCode
	Op      string
	Message string
	Details map[string]any
	Err     error
}

func (e *EditorError) Error() string {
	msg := e.Message
	if e.Err != nil {
		if msg == "" {
			msg = e.Err.Error()
		} else {
			msg = msg + ": " + e.Err.Error()
		}
	}
	if e.Op != "" {
		return fmt.Sprintf("%s: %s: %s", e.Code, e.Op, msg)
	}
	return fmt.Sprintf("%s: %s", e.Code, msg)
}

func (e *EditorError) Unwrap() error { return e.Err }

// NewValidation reports rejected input. details may be nil.
func NewValidation(op, msg string, details map[string]any) *EditorError {
	return &EditorError{Code: ErrValidation, Op: op, Message: msg, Details: details}
}

// Validationf is NewValidation with a format string and no details.
func Validationf(op, format string, args ...any) *EditorError {
	return &EditorError{Code: ErrValidation, Op: op, Message: fmt.Sprintf(format, args...)}
}

// NewSerialization wraps a decode or encode failure.
func NewSerialization(op string, err error) *EditorError {
	return &EditorError{Code: ErrSerialization, Op: op, Message: "malformed document", Err: err}
}

// NewUploadFailure reports a failed object-storage upload for key.
func NewUploadFailure(key string, err error) *EditorError {
	return &EditorError{
		Code:    ErrUploadFailed,
		Op:      "upload",
		Message: "upload failed, using local preview",
		Details: map[string]any{"key": key},
		Err:     err,
	}
}

// NewNotFound reports a missing object id.
func NewNotFound(op, id string) *EditorError {
	return &EditorError{
		Code:    ErrNotFound,
		Op:      op,
		Message: fmt.Sprintf("object not found: %s", id),
		Details: map[string]any{"id": id},
	}
}

// NewInternal wraps an unexpected failure.
func NewInternal(op string, err error) *EditorError {
	return &EditorError{Code: ErrInternal, Op: op, Message: "internal error", Err: err}
}

// Is reports whether err, or anything it wraps, is an EditorError with the given code.
func Is(err error, code ErrorCode) bool {
	var e *EditorError
	if stderrors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// CodeOf returns the code of the first EditorError in err's chain, or "" if none.
func CodeOf(err error) ErrorCode {
	var e *EditorError
	if stderrors.As(err, &e) {
		return e.Code
	}
	return ""
}
