/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"novelist/internal/domain"
	applog "novelist/internal/log"
	"novelist/internal/manuscript"
	"novelist/internal/version"

	// Pure-Go SQLite driver (CGO-free)
	_ "modernc.org/sqlite"
)

// schemaVersion tracks the local SQLite schema for the session index.
// Bump this when you perform breaking schema changes and add migrations.
const schemaVersion = 2

// Index is the full-text index of one open project. It is derived data:
// it lives in the session directory and is rebuilt from the project.
type Index struct {
	db   *sql.DB
	path string
}

// OpenIndex ensures the SQLite index exists at path, opens it, enables WAL
// mode, creates the schema and runs pending migrations.
func OpenIndex(ctx context.Context, path string) (*Index, error) {
	l := applog.WithOperation(applog.WithComponent("storage"), "index_init").With(
		slog.String("path", path),
	)
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("index path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		l.Error("create index dir failed", slog.Any("err", err))
		return nil, fmt.Errorf("create index dir: %w", err)
	}

	// Use a URI with shared cache and set busy timeout. Convert to forward slashes for SQLite URI.
	dsn := fmt.Sprintf("file:%s?cache=shared&_pragma=busy_timeout(5000)", filepath.ToSlash(path))
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		l.Error("sqlite open failed", slog.Any("err", err))
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL;"); err != nil {
		_ = db.Close()
		l.Error("enable WAL failed", slog.Any("err", err))
		return nil, fmt.Errorf("enable WAL: %w", err)
	}
	if err := ensureMetaAndVersion(ctx, db); err != nil {
		_ = db.Close()
		l.Error("ensure meta/version failed", slog.Any("err", err))
		return nil, err
	}
	if err := ensureIndexSchema(ctx, db); err != nil {
		_ = db.Close()
		l.Error("ensure index schema failed", slog.Any("err", err))
		return nil, err
	}
	if err := runMigrations(ctx, db); err != nil {
		_ = db.Close()
		l.Error("run migrations failed", slog.Any("err", err))
		return nil, err
	}
	l.Debug("index ready")
	return &Index{db: db, path: path}, nil
}

// OpenSessionIndex opens the index inside wd and fills it from p. A damaged
// index file is discarded and built again.
func OpenSessionIndex(ctx context.Context, wd *WorkDir, p *Project) (*Index, error) {
	path := wd.indexPath()
	ix, err := OpenIndex(ctx, path)
	if err == nil {
		if err = ix.Check(ctx); err != nil {
			_ = ix.Close()
		}
	}
	if err != nil {
		applog.WithComponent("storage").Warn("index unusable, recreating", slog.Any("err", err))
		for _, suffix := range []string{"", "-wal", "-shm"} {
			_ = os.Remove(path + suffix)
		}
		if ix, err = OpenIndex(ctx, path); err != nil {
			return nil, err
		}
	}
	if err := ix.Rebuild(ctx, p); err != nil {
		_ = ix.Close()
		return nil, err
	}
	return ix, nil
}

func (ix *Index) Path() string { return ix.path }

func (ix *Index) Close() error {
	if ix == nil || ix.db == nil {
		return nil
	}
	err := ix.db.Close()
	ix.db = nil
	return err
}

// SchemaVersion reports the schema recorded in the version table.
func (ix *Index) SchemaVersion(ctx context.Context) (int, error) {
	var v int
	err := ix.db.QueryRowContext(ctx, `SELECT schema FROM version WHERE id=1`).Scan(&v)
	return v, err
}

// Check runs quick_check and probes the documents table.
func (ix *Index) Check(ctx context.Context) error {
	var chk string
	if err := ix.db.QueryRowContext(ctx, `PRAGMA quick_check;`).Scan(&chk); err != nil {
		return fmt.Errorf("quick_check: %w", err)
	}
	if !strings.EqualFold(strings.TrimSpace(chk), "ok") {
		return fmt.Errorf("quick_check: %s", chk)
	}
	if _, err := ix.db.ExecContext(ctx, `SELECT 1 FROM documents LIMIT 1;`); err != nil {
		return fmt.Errorf("probe documents: %w", err)
	}
	return nil
}

// Count returns the number of indexed documents.
func (ix *Index) Count(ctx context.Context) (int, error) {
	var n int
	if err := ix.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM documents;").Scan(&n); err != nil {
		return 0, fmt.Errorf("count documents: %w", err)
	}
	return n, nil
}

func ensureMetaAndVersion(ctx context.Context, db *sql.DB) error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS version (
			id          INTEGER PRIMARY KEY CHECK(id=1),
			schema      INTEGER NOT NULL,
			app         TEXT,
			created_at  TEXT NOT NULL,
			updated_at  TEXT NOT NULL
		);`,
	}
	for _, q := range ddl {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}
	now := time.Now().UTC().Format(time.RFC3339)
	appv := version.String()
	var curSchema int
	err := db.QueryRowContext(ctx, `SELECT schema FROM version WHERE id=1`).Scan(&curSchema)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		// A fresh database starts at schema 1 and is brought forward by runMigrations.
		if _, err := db.ExecContext(ctx, `INSERT INTO version (id, schema, app, created_at, updated_at) VALUES(1, 1, ?, ?, ?)`, appv, now, now); err != nil {
			return fmt.Errorf("insert version: %w", err)
		}
	case err != nil:
		return fmt.Errorf("read version: %w", err)
	default:
		if _, err := db.ExecContext(ctx, `UPDATE version SET app=?, updated_at=? WHERE id=1`, appv, now); err != nil {
			return fmt.Errorf("update version: %w", err)
		}
	}
	return nil
}

// runMigrations applies incremental schema migrations up to schemaVersion.
func runMigrations(ctx context.Context, db *sql.DB) error {
	var cur int
	if err := db.QueryRowContext(ctx, `SELECT schema FROM version WHERE id=1`).Scan(&cur); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if cur > schemaVersion {
		return fmt.Errorf("index schema %d is newer than %d", cur, schemaVersion)
	}
	for cur < schemaVersion {
		next := cur + 1
		var stmts []string
		switch next {
		case 2:
			stmts = []string{
				`CREATE INDEX IF NOT EXISTS idx_documents_node ON documents(node_id);`,
				`CREATE INDEX IF NOT EXISTS idx_documents_type ON documents(type);`,
			}
		}
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", next, err)
		}
		for _, q := range stmts {
			if _, err := tx.ExecContext(ctx, q); err != nil {
				_ = tx.Rollback()
				return fmt.Errorf("migration %d stmt failed: %w", next, err)
			}
		}
		if _, err := tx.ExecContext(ctx, `UPDATE version SET schema=?, updated_at=? WHERE id=1`, next, time.Now().UTC().Format(time.RFC3339)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d update version: %w", next, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("migration %d commit: %w", next, err)
		}
		cur = next
	}
	return nil
}

// ensureIndexSchema creates the documents table and its external-content FTS table.
func ensureIndexSchema(ctx context.Context, db *sql.DB) error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS documents (
			doc_id   INTEGER PRIMARY KEY,
			type     TEXT NOT NULL,
			path     TEXT NOT NULL,
			node_id  TEXT,
			title    TEXT,
			text     TEXT
		);`,
		`CREATE INDEX IF NOT EXISTS idx_documents_path ON documents(path);`,
		`CREATE VIRTUAL TABLE IF NOT EXISTS fts_documents USING fts5(
			title,
			text,
			content='documents',
			content_rowid='doc_id',
			tokenize = 'unicode61 remove_diacritics 2'
		);`,
	}
	for _, q := range ddl {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("ensure index schema: %w", err)
		}
	}
	triggers := []string{
		`CREATE TRIGGER IF NOT EXISTS documents_ai AFTER INSERT ON documents BEGIN
			INSERT INTO fts_documents(rowid, title, text) VALUES (new.doc_id, new.title, new.text);
		END;`,
		`CREATE TRIGGER IF NOT EXISTS documents_ad AFTER DELETE ON documents BEGIN
			INSERT INTO fts_documents(fts_documents, rowid, title, text) VALUES ('delete', old.doc_id, old.title, old.text);
		END;`,
		`CREATE TRIGGER IF NOT EXISTS documents_au AFTER UPDATE ON documents BEGIN
			INSERT INTO fts_documents(fts_documents, rowid, title, text) VALUES ('delete', old.doc_id, old.title, old.text);
			INSERT INTO fts_documents(rowid, title, text) VALUES (new.doc_id, new.title, new.text);
		END;`,
	}
	for _, q := range triggers {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("ensure fts triggers: %w", err)
		}
	}
	return nil
}

// Document types stored in the index besides the collection kinds.
const (
	DocProject = "project"
	DocPart    = "part"
	DocChapter = "chapter"
	DocScene   = "scene"
)

type indexRow struct {
	typ    string
	path   string
	nodeID string
	title  string
	text   string
}

// Rebuild replaces the indexed documents with the current content of p.
func (ix *Index) Rebuild(ctx context.Context, p *Project) error {
	rows := projectRows(p)
	tx, err := ix.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM documents;"); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("clear documents: %w", err)
	}
	ins, err := tx.PrepareContext(ctx, "INSERT INTO documents(type, path, node_id, title, text) VALUES(?,?,?,?,?);")
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer ins.Close()
	for _, r := range rows {
		if _, err := ins.ExecContext(ctx, r.typ, r.path, r.nodeID, r.title, r.text); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("insert document: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func projectRows(p *Project) []indexRow {
	rows := make([]indexRow, 0, 64)
	m := p.Manifest
	meta := strings.TrimSpace(strings.Join(append([]string{m.Author, m.Genre}, m.Tags...), " "))
	rows = append(rows, indexRow{typ: DocProject, path: "project", title: m.Title, text: meta})

	chapterRows := func(prefix string, ch *manuscript.Chapter) {
		cpath := prefix + "chapter:" + ch.ID
		rows = append(rows, indexRow{typ: DocChapter, path: cpath, nodeID: ch.ID, title: ch.Title, text: joinText(ch.Synopsis, ch.Notes)})
		for _, sc := range ch.Scenes {
			rows = append(rows, indexRow{
				typ:    DocScene,
				path:   cpath + "/scene:" + sc.ID,
				nodeID: sc.ID,
				title:  sc.Title,
				text:   joinText(sc.PlainText(), sc.Synopsis, sc.Notes),
			})
		}
	}
	if p.Structure.UseParts {
		for _, part := range p.Structure.Parts {
			ppath := "part:" + part.ID
			rows = append(rows, indexRow{typ: DocPart, path: ppath, nodeID: part.ID, title: part.Title, text: joinText(part.Synopsis, part.Notes)})
			for _, ch := range part.Chapters {
				chapterRows(ppath+"/", ch)
			}
		}
	} else {
		for _, ch := range p.Structure.Chapters {
			chapterRows("", ch)
		}
	}

	for _, k := range p.Collections.EnabledKinds() {
		for _, rec := range p.Collections.Records(k) {
			rows = append(rows, indexRow{
				typ:    string(k),
				path:   string(k) + ":" + rec.RecordID(),
				nodeID: rec.RecordID(),
				title:  rec.Label(),
				text:   recordText(rec),
			})
		}
	}
	return rows
}

func joinText(parts ...string) string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return strings.Join(out, "\n")
}

// skipFields are record keys that carry no searchable prose.
var skipFields = map[string]bool{"id": true, "created_date": true, "modified_date": true, "color": true}

// recordText flattens every string value of a record in key order.
func recordText(rec domain.Record) string {
	data, err := json.Marshal(rec)
	if err != nil {
		return ""
	}
	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		return ""
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		if !skipFields[k] {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	var parts []string
	for _, k := range keys {
		switch v := fields[k].(type) {
		case string:
			parts = append(parts, v)
		case []any:
			for _, e := range v {
				if s, ok := e.(string); ok {
					parts = append(parts, s)
				}
			}
		}
	}
	return joinText(parts...)
}
