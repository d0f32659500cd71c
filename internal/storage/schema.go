/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"sync"

	gojsonschema "github.com/xeipuuv/gojsonschema"
)

//go:embed schema/manifest.schema.json
var manifestSchemaJSON []byte

var manifestSchema = sync.OnceValues(func() (*gojsonschema.Schema, error) {
	return gojsonschema.NewSchema(gojsonschema.NewBytesLoader(manifestSchemaJSON))
})

// ManifestSchema returns the embedded JSON schema of the current manifest version.
func ManifestSchema() []byte { return append([]byte(nil), manifestSchemaJSON...) }

// ValidateManifestJSON checks a current-version manifest document against the embedded schema.
func ValidateManifestJSON(data []byte) error {
	sch, err := manifestSchema()
	if err != nil {
		return fmt.Errorf("load manifest schema: %w", err)
	}
	res, err := sch.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return fmt.Errorf("validate manifest: %w", err)
	}
	if res.Valid() {
		return nil
	}
	msgs := make([]string, 0, len(res.Errors()))
	for _, e := range res.Errors() {
		msgs = append(msgs, e.String())
	}
	return errors.New("manifest does not match schema: " + strings.Join(msgs, "; "))
}
