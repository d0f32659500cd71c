/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package domain

import (
	"strings"

	"golang.org/x/net/html"
)

// PlainText projects rich scene content to plain text. Only content that
// opens with a document or block tag is treated as markup; anything else,
// including prose that merely mentions a <tag>, is returned unchanged. Block
// level elements become line breaks so words on either side never merge.
func PlainText(content string) string {
	if !IsMarkup(content) {
		return content
	}
	z := html.NewTokenizer(strings.NewReader(content))
	var b strings.Builder
	skip := 0
	for {
		switch z.Next() {
		case html.ErrorToken:
			return strings.TrimSpace(b.String())
		case html.TextToken:
			if skip == 0 {
				b.Write(z.Text())
			}
		case html.StartTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			switch string(name) {
			case "script", "style", "head":
				skip++
			case "br", "p", "div", "li", "h1", "h2", "h3", "h4", "h5", "h6", "tr", "blockquote":
				b.WriteByte('\n')
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			switch string(name) {
			case "script", "style", "head":
				if skip > 0 {
					skip--
				}
			case "p", "div", "li", "h1", "h2", "h3", "h4", "h5", "h6", "tr", "blockquote":
				b.WriteByte('\n')
			}
		}
	}
}

var markupOpeners = map[string]bool{
	"!doctype": true, "html": true, "head": true, "body": true, "meta": true, "style": true,
	"p": true, "div": true, "br": true, "span": true, "blockquote": true, "pre": true,
	"ul": true, "ol": true, "li": true, "table": true, "tr": true, "hr": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"b": true, "i": true, "u": true, "em": true, "strong": true, "font": true,
}

// IsMarkup reports whether content is a rich-text document: its first
// non-blank character opens a known document or block tag.
func IsMarkup(content string) bool {
	t := strings.TrimSpace(content)
	if !strings.HasPrefix(t, "<") {
		return false
	}
	t = t[1:]
	end := strings.IndexFunc(t, func(r rune) bool {
		return !(r == '!' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9')
	})
	if end <= 0 {
		return false
	}
	return markupOpeners[strings.ToLower(t[:end])]
}

// CountWords counts whitespace separated tokens of the plain-text projection.
func CountWords(content string) int {
	return len(strings.Fields(PlainText(content)))
}
