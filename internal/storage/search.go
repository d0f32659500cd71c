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
	"errors"
	"fmt"
	"strings"
)

// SearchQuery describes an in-app search request.
// Text uses SQLite FTS5 syntax unless it has been passed through MatchTerms.
// Types restricts results to document types (scene, chapter, part, project or
// a collection kind such as characters). Limit/Offset implement pagination;
// reasonable defaults applied if zero.
type SearchQuery struct {
	Text   string
	Types  []string
	Limit  int
	Offset int
}

// SearchResult represents a single match row.
// Snippet is a highlighted excerpt using [ ] markers when FTS text is used.
type SearchResult struct {
	DocID   int64
	Type    string
	Path    string
	NodeID  string
	Title   string
	Snippet string
}

// MatchTerms turns free text into an FTS5 query that matches documents
// containing every word, so user punctuation cannot break the syntax.
func MatchTerms(text string) string {
	fields := strings.Fields(text)
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		out = append(out, `"`+strings.ReplaceAll(f, `"`, `""`)+`"`)
	}
	return strings.Join(out, " ")
}

// Search performs full-text search over the index. With empty Text it lists
// documents of the requested types in insertion order.
func (ix *Index) Search(ctx context.Context, q SearchQuery) ([]SearchResult, error) {
	if ix == nil || ix.db == nil {
		return nil, errors.New("index is closed")
	}
	var args []any
	var sb strings.Builder
	useFTS := strings.TrimSpace(q.Text) != ""
	if useFTS {
		sb.WriteString("SELECT d.doc_id, d.type, d.path, COALESCE(d.node_id,''), COALESCE(d.title,''), snippet(fts_documents, -1, '[', ']', '…', 10)\n")
		sb.WriteString("FROM fts_documents JOIN documents d ON fts_documents.rowid = d.doc_id\n")
		sb.WriteString("WHERE fts_documents MATCH ?\n")
		args = append(args, q.Text)
	} else {
		sb.WriteString("SELECT d.doc_id, d.type, d.path, COALESCE(d.node_id,''), COALESCE(d.title,''), ''\n")
		sb.WriteString("FROM documents d\nWHERE 1=1\n")
	}
	if len(q.Types) > 0 {
		sb.WriteString(" AND d.type IN (" + placeholders(len(q.Types)) + ")\n")
		for _, t := range q.Types {
			args = append(args, t)
		}
	}
	limit := q.Limit
	if limit <= 0 {
		limit = 100
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	if useFTS {
		sb.WriteString("ORDER BY bm25(fts_documents), d.doc_id\n")
	} else {
		sb.WriteString("ORDER BY d.doc_id\n")
	}
	sb.WriteString("LIMIT ? OFFSET ?")
	args = append(args, limit, q.Offset)

	rows, err := ix.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("search query: %w", err)
	}
	defer rows.Close()
	var out []SearchResult
	for rows.Next() {
		var r SearchResult
		var sn sql.NullString
		if err := rows.Scan(&r.DocID, &r.Type, &r.Path, &r.NodeID, &r.Title, &sn); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		if sn.Valid {
			r.Snippet = sn.String
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	b := strings.Builder{}
	for i := 0; i < n; i++ {
		if i > 0 {
			b.WriteString(",")
		}
		b.WriteString("?")
	}
	return b.String()
}
