/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package telemetry

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

func TestClient_EventAndUploadCrash(t *testing.T) {
	var mu sync.Mutex
	var events [][]byte
	var crashes [][]byte

	mux := http.NewServeMux()
	mux.HandleFunc("/events", func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		_ = r.Body.Close()
		mu.Lock()
		events = append(events, append([]byte(nil), b...))
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/crash", func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		_ = r.Body.Close()
		mu.Lock()
		crashes = append(crashes, append([]byte(nil), b...))
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := New(Config{OptIn: true, BaseURL: srv.URL, Timeout: 2 * time.Second})
	defer c.Close()

	if !c.Enabled() {
		t.Fatalf("expected client to be enabled")
	}

	c.Event(EventProjectOpened, map[string]any{"kind": "novel"})
	c.Flush(context.Background())

	deadline := time.Now().Add(2 * time.Second)
	for {
		mu.Lock()
		n := len(events)
		mu.Unlock()
		if n > 0 || time.Now().After(deadline) {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	mu.Lock()
	if len(events) == 0 {
		mu.Unlock()
		t.Fatalf("expected at least one event to be sent")
	}
	var m map[string]any
	if err := json.Unmarshal(events[0], &m); err != nil {
		mu.Unlock()
		t.Fatalf("bad event json: %v", err)
	}
	mu.Unlock()
	if m["name"] != EventProjectOpened || m["kind"] != "novel" {
		t.Fatalf("event mismatch: %v", m)
	}
	if _, ok := m["ts"].(string); !ok {
		t.Fatalf("missing ts field")
	}

	// Close waits for the crash upload goroutine.
	c.UploadCrash([]byte("STACKTRACE"))
	c.Close()
	mu.Lock()
	defer mu.Unlock()
	if len(crashes) != 1 || string(crashes[0]) != "STACKTRACE" {
		t.Fatalf("expected crash upload to be sent, got %q", crashes)
	}
}

func TestDefaultClient(t *testing.T) {
	defer SetDefault(nil)
	if Enabled() {
		t.Fatalf("no default client means disabled")
	}
	SetDefault(New(Config{OptIn: true, BaseURL: "http://127.0.0.1:0", Timeout: 100 * time.Millisecond}))
	if !Enabled() {
		t.Fatalf("default Enabled should be true")
	}
}
