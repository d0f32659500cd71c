/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"novelist/internal/collections"
	"novelist/internal/domain"
	applog "novelist/internal/log"
	"novelist/internal/manuscript"
)

const (
	Extension = ".tnp"

	ManifestFileName  = "manifest.json"
	StructureFileName = "manuscript_structure.json"
	// LegacyTextFileName is the single-text manuscript of old archives. It is
	// still written on save so older readers see the text.
	LegacyTextFileName = "manuscript.txt"

	DefaultMaxArchiveBytes int64 = 100 << 20
	// DefaultMaxUncompressedBytes bounds the extracted size of one archive.
	DefaultMaxUncompressedBytes int64 = 1 << 30
)

// Project is the in-memory form of an open archive.
type Project struct {
	Manifest    domain.Manifest
	Structure   *manuscript.Structure
	Collections *collections.Set
}

// NewProject returns a project with a default manuscript tree and the
// collections that apply to the manifest's kind.
func NewProject(m domain.Manifest, mode manuscript.Mode) *Project {
	m.Version = CurrentManifestVersion
	if m.Tags == nil {
		m.Tags = []string{}
	}
	return &Project{
		Manifest:    m,
		Structure:   manuscript.NewDefault(mode),
		Collections: collections.ForProject(m.ProjectType),
	}
}

// Pack writes p and the attachments in wd to dest. The archive is built in a
// temporary sibling file and renamed over dest once it is flushed, so a
// failed pack leaves dest untouched.
func Pack(dest string, p *Project, wd *WorkDir) error {
	const op = "pack"
	l := applog.WithOperation(applog.WithComponent("storage"), op).With(slog.String("path", dest))
	if p == nil || p.Structure == nil || p.Collections == nil {
		return errorf(KindUnexpected, op, dest, "incomplete project")
	}
	if err := p.Structure.Validate(); err != nil {
		return newError(KindInvariantViolation, op, dest, err)
	}
	m := p.Manifest
	m.Version = CurrentManifestVersion
	manifest, err := EncodeManifest(m)
	if err != nil {
		return newError(KindUnexpected, op, dest, err)
	}
	structure, err := json.MarshalIndent(p.Structure, "", "  ")
	if err != nil {
		return newError(KindUnexpected, op, dest, fmt.Errorf("marshal structure: %w", err))
	}
	var attachments []string
	if wd != nil {
		if attachments, err = wd.Attachments(); err != nil {
			return fsError(op, dest, err)
		}
	}

	started := time.Now()
	err = AtomicWrite(dest, func(w io.Writer) error {
		zw := zip.NewWriter(w)
		add := func(name string, data []byte) error {
			fw, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Deflate, Modified: started})
			if err != nil {
				return err
			}
			_, err = fw.Write(data)
			return err
		}
		if err := add(ManifestFileName, manifest); err != nil {
			return err
		}
		if err := add(StructureFileName, structure); err != nil {
			return err
		}
		if err := add(LegacyTextFileName, []byte(p.Structure.FullText())); err != nil {
			return err
		}
		for _, k := range p.Collections.EnabledKinds() {
			data, err := p.Collections.Marshal(k)
			if err != nil {
				return err
			}
			if err := add(k.FileName(), data); err != nil {
				return err
			}
		}
		for _, name := range attachments {
			if err := addFile(zw, name, wd.Path(name), started); err != nil {
				return err
			}
		}
		return zw.Close()
	})
	if err != nil {
		l.Error("pack failed", slog.Any("err", err))
		return fsError(op, dest, err)
	}
	l.Debug("packed", slog.Int("attachments", len(attachments)), slog.Duration("took", time.Since(started)))
	return nil
}

func addFile(zw *zip.Writer, name, src string, mod time.Time) (err error) {
	f, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	fw, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Deflate, Modified: mod})
	if err != nil {
		return err
	}
	_, err = io.Copy(fw, f)
	return err
}

// UnpackOptions bounds what Unpack accepts. Zero values select the defaults.
type UnpackOptions struct {
	MaxArchiveBytes      int64
	MaxUncompressedBytes int64
}

func (o UnpackOptions) withDefaults() UnpackOptions {
	if o.MaxArchiveBytes <= 0 {
		o.MaxArchiveBytes = DefaultMaxArchiveBytes
	}
	if o.MaxUncompressedBytes <= 0 {
		o.MaxUncompressedBytes = DefaultMaxUncompressedBytes
	}
	return o
}

// LoadResult is a decoded project plus what had to be repaired on the way in.
type LoadResult struct {
	Project *Project
	// FromVersion is the manifest version found in the archive.
	FromVersion int
	// CreatedCollections lists applicable collections that were missing and were created empty.
	CreatedCollections []collections.Kind
	// LegacyText is set when the tree was rebuilt from manuscript.txt.
	LegacyText bool
	// UnknownKind is a project_type that was replaced by novel.
	UnknownKind string
}

// Unpack verifies the archive at path, extracts it into wd and decodes it.
// The manifest is migrated to the current version and the upgraded copy,
// together with any collection created for the project kind, is written
// back into wd.
func Unpack(path string, wd *WorkDir, opts UnpackOptions) (*LoadResult, error) {
	const op = "unpack"
	opts = opts.withDefaults()
	l := applog.WithOperation(applog.WithComponent("storage"), op).With(slog.String("path", path))

	info, err := os.Stat(path)
	if err != nil {
		return nil, fsError(op, path, err)
	}
	if info.IsDir() {
		return nil, errorf(KindUnexpected, op, path, "is a directory")
	}
	if info.Size() > opts.MaxArchiveBytes {
		return nil, errorf(KindOversized, op, path, "archive is %d bytes, limit is %d", info.Size(), opts.MaxArchiveBytes)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fsError(op, path, err)
	}
	defer f.Close()
	zr, err := zip.NewReader(f, info.Size())
	if err != nil {
		return nil, newError(KindArchiveCorrupt, op, path, err)
	}

	members, err := extract(zr, wd, opts.MaxUncompressedBytes)
	if err != nil {
		var se *Error
		if errors.As(err, &se) {
			se.Op, se.Path = op, path
			return nil, se
		}
		return nil, newError(KindArchiveCorrupt, op, path, err)
	}

	rawManifest, ok := members[ManifestFileName]
	if !ok {
		return nil, errorf(KindManifestCorrupt, op, path, "missing %s", ManifestFileName)
	}
	if _, ok := members[collections.Characters.FileName()]; !ok {
		return nil, errorf(KindManifestCorrupt, op, path, "missing %s", collections.Characters.FileName())
	}
	mig, err := MigrateManifest(rawManifest)
	if err != nil {
		return nil, newError(KindManifestCorrupt, op, path, err)
	}
	if err := wd.WriteMember(ManifestFileName, mig.Data); err != nil {
		return nil, fsError(op, path, err)
	}

	res := &LoadResult{FromVersion: mig.From, UnknownKind: mig.UnknownKind}
	structure, legacy, err := decodeStructure(members)
	if err != nil {
		return nil, newError(KindManifestCorrupt, op, path, err)
	}
	res.LegacyText = legacy

	set := collections.NewSet()
	for _, k := range collections.All() {
		data, ok := members[k.FileName()]
		if !ok {
			continue
		}
		if err := set.Unmarshal(k, data); err != nil {
			return nil, newError(KindManifestCorrupt, op, path, fmt.Errorf("%s: %w", k.FileName(), err))
		}
	}
	res.CreatedCollections = set.EnsureFor(mig.Manifest.ProjectType)
	for _, k := range res.CreatedCollections {
		data, err := set.Marshal(k)
		if err != nil {
			return nil, newError(KindUnexpected, op, path, err)
		}
		if err := wd.WriteMember(k.FileName(), data); err != nil {
			return nil, fsError(op, path, err)
		}
	}

	res.Project = &Project{Manifest: mig.Manifest, Structure: structure, Collections: set}
	l.Info("unpacked",
		slog.Int("from_version", mig.From),
		slog.Bool("legacy_text", legacy),
		slog.Int("created_collections", len(res.CreatedCollections)),
	)
	return res, nil
}

// decodeStructure builds the tree from its member, or from the legacy text
// when the member is absent.
func decodeStructure(members map[string][]byte) (*manuscript.Structure, bool, error) {
	data, ok := members[StructureFileName]
	if !ok {
		return manuscript.FromText(string(members[LegacyTextFileName])), true, nil
	}
	var s manuscript.Structure
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, false, fmt.Errorf("%s: %w", StructureFileName, err)
	}
	s.Normalize()
	if err := s.Validate(); err != nil {
		return nil, false, fmt.Errorf("%s: %w", StructureFileName, err)
	}
	return &s, false, nil
}

// extract copies every member into wd, verifying checksums, and returns the
// top-level non-attachment members in memory.
func extract(zr *zip.Reader, wd *WorkDir, limit int64) (map[string][]byte, error) {
	members := make(map[string][]byte)
	var total int64
	for _, zf := range zr.File {
		name := zf.Name
		if !safeMemberName(name) {
			return nil, fmt.Errorf("unsafe member name %q", name)
		}
		if strings.HasSuffix(name, "/") {
			if err := os.MkdirAll(wd.Path(name), 0o755); err != nil {
				return nil, fsError("extract", name, err)
			}
			continue
		}
		if zf.UncompressedSize64 > uint64(limit-total) {
			return nil, errorf(KindOversized, "", "", "extracted size exceeds %d bytes", limit)
		}
		n, data, err := extractMember(zf, wd, limit-total)
		if err != nil {
			return nil, err
		}
		total += n
		if data != nil {
			members[name] = data
		}
	}
	return members, nil
}

func extractMember(zf *zip.File, wd *WorkDir, remaining int64) (int64, []byte, error) {
	rc, err := zf.Open()
	if err != nil {
		return 0, nil, fmt.Errorf("%s: %w", zf.Name, err)
	}
	defer rc.Close()
	var buf bytes.Buffer
	// One extra byte detects members whose header understates their size.
	n, err := io.Copy(&buf, io.LimitReader(rc, remaining+1))
	if err != nil {
		return 0, nil, fmt.Errorf("%s: %w", zf.Name, err)
	}
	if n > remaining {
		return 0, nil, errorf(KindOversized, "", "", "extracted size exceeds limit at %s", zf.Name)
	}
	if err := wd.WriteMember(zf.Name, buf.Bytes()); err != nil {
		return 0, nil, fsError("extract", zf.Name, err)
	}
	if strings.Contains(zf.Name, "/") {
		return n, nil, nil
	}
	return n, buf.Bytes(), nil
}

// safeMemberName rejects absolute paths, parent references and the
// reserved session index folder.
func safeMemberName(name string) bool {
	if name == "" || strings.Contains(name, "\\") || strings.HasPrefix(name, "/") {
		return false
	}
	clean := path.Clean(strings.TrimSuffix(name, "/"))
	if clean == "." || clean != strings.TrimSuffix(name, "/") {
		return false
	}
	if !filepath.IsLocal(filepath.FromSlash(clean)) {
		return false
	}
	return clean != indexDirName && !strings.HasPrefix(clean, indexDirName+"/")
}

// ReadManifest returns the raw manifest member of the archive at path
// without extracting anything else.
func ReadManifest(path string) ([]byte, error) {
	const op = "read_manifest"
	zr, err := zip.OpenReader(path)
	if err != nil {
		if _, serr := os.Stat(path); serr != nil {
			return nil, fsError(op, path, serr)
		}
		return nil, newError(KindArchiveCorrupt, op, path, err)
	}
	defer zr.Close()
	for _, zf := range zr.File {
		if zf.Name != ManifestFileName {
			continue
		}
		rc, err := zf.Open()
		if err != nil {
			return nil, newError(KindArchiveCorrupt, op, path, err)
		}
		defer rc.Close()
		data, err := io.ReadAll(io.LimitReader(rc, DefaultMaxArchiveBytes))
		if err != nil {
			return nil, newError(KindArchiveCorrupt, op, path, err)
		}
		return data, nil
	}
	return nil, errorf(KindManifestCorrupt, op, path, "missing %s", ManifestFileName)
}

// AtomicWrite streams fn's output into a temporary file next to dest, syncs
// it and renames it over dest. On failure the temporary file is removed and
// dest is left as it was.
func AtomicWrite(dest string, fn func(w io.Writer) error) (err error) {
	dir := filepath.Dir(dest)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	temp := filepath.Join(dir, fmt.Sprintf(".%s.tmp-%d-%d", filepath.Base(dest), os.Getpid(), rand.Int()))
	f, err := os.OpenFile(temp, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	closed := false
	defer func() {
		if err == nil {
			return
		}
		if !closed {
			_ = f.Close()
		}
		_ = os.Remove(temp)
	}()
	if err = fn(f); err != nil {
		return err
	}
	if err = f.Sync(); err != nil {
		return err
	}
	closed = true
	if err = f.Close(); err != nil {
		return err
	}
	return os.Rename(temp, dest)
}

// writeFileSync writes data to a file, ensures it is flushed to disk.
func writeFileSync(path string, data []byte) (err error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	if _, err := f.Write(data); err != nil {
		return err
	}
	return f.Sync()
}

// CopyFile copies a file from src to dst (overwrites dst if exists) and syncs it.
func CopyFile(src, dst string) (err error) {
	sf, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := sf.Close(); err == nil {
			err = cerr
		}
	}()
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	df, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := df.Close(); err == nil {
			err = cerr
		}
	}()
	if _, err := io.Copy(df, sf); err != nil {
		return err
	}
	return df.Sync()
}
