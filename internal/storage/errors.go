/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"errors"
	"fmt"
	"io/fs"

	"novelist/internal/manuscript"
)

// Kind classifies persistence failures. Callers branch on it to decide
// between reporting an error and offering backup recovery.
type Kind int

const (
	KindNone Kind = iota
	KindNotFound
	KindPermissionDenied
	KindOversized
	KindArchiveCorrupt
	KindManifestCorrupt
	KindInvariantViolation
	KindUnexpected
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "None"
	case KindNotFound:
		return "NotFound"
	case KindPermissionDenied:
		return "PermissionDenied"
	case KindOversized:
		return "Oversized"
	case KindArchiveCorrupt:
		return "ArchiveCorrupt"
	case KindManifestCorrupt:
		return "ManifestCorrupt"
	case KindInvariantViolation:
		return "StructuralInvariantViolation"
	default:
		return "UnexpectedFailure"
	}
}

// Corrupt reports whether a backup could help.
func (k Kind) Corrupt() bool { return k == KindArchiveCorrupt || k == KindManifestCorrupt }

// Error is the typed failure returned by every storage operation.
type Error struct {
	Kind Kind
	Op   string
	Path string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Path != "" {
		msg += " (" + e.Path + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return "storage: " + msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches sentinel errors of the same kind, so errors.Is(err, ErrArchiveCorrupt) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Op == "" && t.Path == "" && t.Err == nil && t.Kind == e.Kind
}

// Sentinels for errors.Is.
var (
	ErrNotFound           = &Error{Kind: KindNotFound}
	ErrPermissionDenied   = &Error{Kind: KindPermissionDenied}
	ErrOversized          = &Error{Kind: KindOversized}
	ErrArchiveCorrupt     = &Error{Kind: KindArchiveCorrupt}
	ErrManifestCorrupt    = &Error{Kind: KindManifestCorrupt}
	ErrInvariantViolation = &Error{Kind: KindInvariantViolation}
	ErrUnexpected         = &Error{Kind: KindUnexpected}
)

func newError(kind Kind, op, path string, err error) *Error {
	return &Error{Kind: kind, Op: op, Path: path, Err: err}
}

func errorf(kind Kind, op, path, format string, args ...any) *Error {
	return newError(kind, op, path, fmt.Errorf(format, args...))
}

// fsError classifies a filesystem error.
func fsError(op, path string, err error) *Error {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return newError(KindNotFound, op, path, err)
	case errors.Is(err, fs.ErrPermission):
		return newError(KindPermissionDenied, op, path, err)
	default:
		return newError(KindUnexpected, op, path, err)
	}
}

// KindOf classifies any error returned by the engine's lower layers.
func KindOf(err error) Kind {
	if err == nil {
		return KindNone
	}
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	switch {
	case errors.Is(err, manuscript.ErrInvariant):
		return KindInvariantViolation
	case errors.Is(err, fs.ErrNotExist):
		return KindNotFound
	case errors.Is(err, fs.ErrPermission):
		return KindPermissionDenied
	}
	return KindUnexpected
}
