/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package manuscript

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when an identifier does not resolve in the tree.
	ErrNotFound = errors.New("manuscript: not found")
	// ErrInvariant marks a rejected structural change. The tree is unchanged.
	ErrInvariant = errors.New("manuscript: structural invariant violation")

	ErrLastScene       = fmt.Errorf("%w: a chapter must keep at least one scene", ErrInvariant)
	ErrLastPart        = fmt.Errorf("%w: the only part cannot be deleted", ErrInvariant)
	ErrReorderMismatch = fmt.Errorf("%w: identifiers do not match the sibling set", ErrInvariant)
	ErrWrongMode       = fmt.Errorf("%w: not available in this structure mode", ErrInvariant)
)

func notFound(what, id string) error {
	return fmt.Errorf("%s %q: %w", what, id, ErrNotFound)
}

func errWrongMode(msg string) error {
	return fmt.Errorf("%s: %w", msg, ErrWrongMode)
}
