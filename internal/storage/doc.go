/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package storage implements project persistence.
// A project is a single .tnp file: a zip archive holding manifest.json,
// manuscript_structure.json, one JSON member per auxiliary collection and an
// images/ folder. Archives are written to a temporary sibling and renamed over
// the destination only after the data is flushed. Opening an archive verifies
// every member, extracts it into a per-session working directory, upgrades the
// manifest to the current schema and writes the upgraded copy back there.
// The package also keeps a per-session SQLite full-text index that is derived
// from the open project and is disposable.
package storage
