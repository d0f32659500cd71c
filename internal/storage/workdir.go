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
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const (
	ImagesDirName = "images"
	// indexDirName holds the session search index; it is never packed.
	indexDirName = ".index"
)

// WorkDir is the per-session extraction directory of an open project.
// Attachments live here between open and save.
type WorkDir struct {
	Root string
}

// NewWorkDir creates a fresh session directory under the OS temp dir.
func NewWorkDir() (*WorkDir, error) {
	dir, err := os.MkdirTemp("", "novelist-session-*")
	if err != nil {
		return nil, fmt.Errorf("create session dir: %w", err)
	}
	return &WorkDir{Root: dir}, nil
}

// Path maps an archive member name to its location in the session directory.
func (w *WorkDir) Path(member string) string {
	return filepath.Join(w.Root, filepath.FromSlash(member))
}

func (w *WorkDir) ImagesDir() string { return filepath.Join(w.Root, ImagesDirName) }

// WriteMember stores data under member, replacing any previous copy.
func (w *WorkDir) WriteMember(member string, data []byte) error {
	p := w.Path(member)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	return writeFileSync(p, data)
}

// ReadMember returns the session copy of member.
func (w *WorkDir) ReadMember(member string) ([]byte, error) {
	return os.ReadFile(w.Path(member))
}

// AddAttachment copies src into images/ and returns its member name.
// A numeric suffix is added when the name is taken.
func (w *WorkDir) AddAttachment(src string) (string, error) {
	if err := os.MkdirAll(w.ImagesDir(), 0o755); err != nil {
		return "", err
	}
	base := filepath.Base(src)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	name := base
	for i := 1; ; i++ {
		_, err := os.Stat(filepath.Join(w.ImagesDir(), name))
		if errors.Is(err, fs.ErrNotExist) {
			break
		}
		if err != nil {
			return "", err
		}
		name = fmt.Sprintf("%s_%d%s", stem, i, ext)
	}
	if err := CopyFile(src, filepath.Join(w.ImagesDir(), name)); err != nil {
		return "", err
	}
	return ImagesDirName + "/" + name, nil
}

// Attachments lists the member names below images/ in lexical order.
func (w *WorkDir) Attachments() ([]string, error) {
	var out []string
	err := filepath.WalkDir(w.ImagesDir(), func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(w.Root, p)
		if err != nil {
			return err
		}
		out = append(out, filepath.ToSlash(rel))
		return nil
	})
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	sort.Strings(out)
	return out, err
}

func (w *WorkDir) indexPath() string { return filepath.Join(w.Root, indexDirName, "index.sqlite") }

// Release removes the session directory. It is safe to call more than once.
func (w *WorkDir) Release() error {
	if w == nil || w.Root == "" {
		return nil
	}
	err := os.RemoveAll(w.Root)
	w.Root = ""
	return err
}
