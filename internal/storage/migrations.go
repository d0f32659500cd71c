/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"novelist/internal/domain"
	applog "novelist/internal/log"
)

const (
	// CurrentManifestVersion is the manifest schema written by this build.
	// Bump it together with a new manifestVN shape and its upgrade step.
	CurrentManifestVersion = 3

	// DefaultLanguage is assigned to manifests written before the language field existed.
	DefaultLanguage = "it"

	// First-format manifests could be saved without a title or an author.
	DefaultTitle  = "Untitled"
	DefaultAuthor = "Unknown"
)

// manifestShape is one known manifest version. upgrade is total: it never
// fails and adds the fields introduced by the next version. The first step
// also names untitled and anonymous projects.
type manifestShape interface {
	schemaVersion() int
	upgrade() manifestShape
}

// manifestV1: the first shipped format.
type manifestV1 struct {
	Title    string           `json:"title"`
	Author   string           `json:"author"`
	Created  domain.Timestamp `json:"created_date"`
	Modified domain.Timestamp `json:"modified_date"`
}

// manifestV2 adds the manuscript language.
type manifestV2 struct {
	manifestV1
	Language string `json:"language"`
}

// manifestV3 adds the project kind and its metadata.
type manifestV3 struct {
	manifestV2
	ProjectType     string   `json:"project_type"`
	Genre           string   `json:"genre"`
	TargetWordCount int      `json:"target_word_count"`
	Tags            []string `json:"tags"`
}

func (m manifestV1) schemaVersion() int { return 1 }
func (m manifestV2) schemaVersion() int { return 2 }
func (m manifestV3) schemaVersion() int { return 3 }

func (m manifestV1) upgrade() manifestShape {
	if strings.TrimSpace(m.Title) == "" {
		m.Title = DefaultTitle
	}
	if strings.TrimSpace(m.Author) == "" {
		m.Author = DefaultAuthor
	}
	return manifestV2{manifestV1: m, Language: DefaultLanguage}
}

func (m manifestV2) upgrade() manifestShape {
	return manifestV3{manifestV2: m, ProjectType: string(domain.KindNovel), Tags: []string{}}
}

func (m manifestV3) upgrade() manifestShape { return m }

// fill supplies defaults for fields a hand-edited or partially written
// manifest left empty. Present values are kept.
func (m manifestV3) fill() manifestV3 {
	if strings.TrimSpace(m.Language) == "" {
		m.Language = DefaultLanguage
	}
	if m.ProjectType == "" {
		m.ProjectType = string(domain.KindNovel)
	}
	if m.Tags == nil {
		m.Tags = []string{}
	}
	return m
}

// Migration is the outcome of upgrading one manifest document.
type Migration struct {
	Manifest domain.Manifest
	// Data is the encoded current-version manifest.
	Data []byte
	// From is the version the document was written with.
	From int
	// UnknownKind holds a project_type this build does not know; it was replaced by novel.
	UnknownKind string
}

// Upgraded reports whether the document was older than the current version.
func (m *Migration) Upgraded() bool { return m.From < CurrentManifestVersion }

// DetectManifestVersion reads the explicit version field, or infers the
// version from the fields present when the field is absent.
func DetectManifestVersion(raw []byte) (int, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return 0, fmt.Errorf("manifest is not a JSON object: %w", err)
	}
	if fields == nil {
		return 0, fmt.Errorf("manifest is null")
	}
	return detectVersion(fields)
}

func detectVersion(fields map[string]json.RawMessage) (int, error) {
	if v, ok := fields["version"]; ok {
		return parseVersion(v)
	}
	for _, k := range []string{"project_type", "genre", "target_word_count", "tags"} {
		if _, ok := fields[k]; ok {
			return 3, nil
		}
	}
	if _, ok := fields["language"]; ok {
		return 2, nil
	}
	return 1, nil
}

func parseVersion(raw json.RawMessage) (int, error) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return 0, fmt.Errorf("version: %w", err)
	}
	var n int
	switch t := v.(type) {
	case float64:
		if t != math.Trunc(t) {
			return 0, fmt.Errorf("version %v is not an integer", t)
		}
		n = int(t)
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(t))
		if err != nil {
			return 0, fmt.Errorf("version %q is not an integer", t)
		}
		n = i
	default:
		return 0, fmt.Errorf("version has unsupported type %T", v)
	}
	if n < 1 {
		return 0, fmt.Errorf("version %d is not valid", n)
	}
	if n > CurrentManifestVersion {
		return 0, fmt.Errorf("version %d is newer than supported version %d", n, CurrentManifestVersion)
	}
	return n, nil
}

func decodeShape(version int, raw []byte) (manifestShape, error) {
	var (
		shape manifestShape
		err   error
	)
	switch version {
	case 1:
		var m manifestV1
		err = json.Unmarshal(raw, &m)
		shape = m
	case 2:
		var m manifestV2
		err = json.Unmarshal(raw, &m)
		shape = m
	case 3:
		var m manifestV3
		err = json.Unmarshal(raw, &m)
		shape = m
	default:
		return nil, fmt.Errorf("no decoder for manifest version %d", version)
	}
	if err != nil {
		return nil, fmt.Errorf("decode manifest v%d: %w", version, err)
	}
	return shape, nil
}

// MigrateManifest upgrades raw to the current version and validates the
// result against the embedded schema. Running it on its own output is a no-op.
func MigrateManifest(raw []byte) (*Migration, error) {
	from, err := DetectManifestVersion(raw)
	if err != nil {
		return nil, err
	}
	shape, err := decodeShape(from, raw)
	if err != nil {
		return nil, err
	}
	for shape.schemaVersion() < CurrentManifestVersion {
		shape = shape.upgrade()
	}
	cur := shape.(manifestV3).fill()

	mig := &Migration{From: from}
	kind, known := domain.ParseProjectKind(cur.ProjectType)
	if !known {
		mig.UnknownKind = cur.ProjectType
		applog.WithComponent("storage").Warn("unknown project type, using novel",
			slog.String("project_type", cur.ProjectType))
	}
	mig.Manifest = domain.Manifest{
		Version:         CurrentManifestVersion,
		Title:           cur.Title,
		Author:          cur.Author,
		Language:        cur.Language,
		ProjectType:     kind,
		Genre:           cur.Genre,
		TargetWordCount: cur.TargetWordCount,
		Tags:            cur.Tags,
		Created:         cur.Created,
		Modified:        cur.Modified,
	}
	data, err := EncodeManifest(mig.Manifest)
	if err != nil {
		return nil, err
	}
	if err := ValidateManifestJSON(data); err != nil {
		return nil, err
	}
	mig.Data = data
	return mig, nil
}

// Migrate is MigrateManifest reduced to bytes in, bytes out.
func Migrate(raw []byte) ([]byte, error) {
	m, err := MigrateManifest(raw)
	if err != nil {
		return nil, err
	}
	return m.Data, nil
}

// EncodeManifest renders m in the on-disk form (indented, trailing newline).
func EncodeManifest(m domain.Manifest) ([]byte, error) {
	if m.Tags == nil {
		m.Tags = []string{}
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal manifest: %w", err)
	}
	return append(data, '\n'), nil
}
