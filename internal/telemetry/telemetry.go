/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package telemetry provides a tiny, privacy‑respecting, opt‑in event sender
// for anonymous usage metrics and optional crash uploads.
package telemetry

import (
	"context"
	"log/slog"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"

	"novelist/internal/config"
	applog "novelist/internal/log"
	"novelist/internal/version"
)

// Event names sent by the engine. Properties never carry titles, paths or text.
const (
	EventProjectCreated   = "project_created"
	EventProjectOpened    = "project_opened"
	EventProjectRecovered = "project_recovered"
	EventOpenFailed       = "project_open_failed"
)

// Config holds runtime configuration for telemetry and crash uploads.
// All telemetry is strictly opt‑in and disabled by default. Events are
// posted to <BaseURL>/events and crash reports to <BaseURL>/crash.
// Without a BaseURL every call is a no‑op, even if opt‑in is true.
type Config struct {
	OptIn        bool
	BaseURL      string
	Timeout      time.Duration
	DebugLogging bool
}

// FromConfig derives the telemetry settings from the user configuration
// (which already carries the NOV_TELEMETRY_* overrides).
func FromConfig(app config.AppConfig) Config {
	return Config{
		OptIn:        app.General.TelemetryOptIn,
		BaseURL:      strings.TrimRight(strings.TrimSpace(app.Telemetry.URL), "/"),
		Timeout:      app.Telemetry.Timeout(),
		DebugLogging: strings.EqualFold(app.Logging.Level, "debug"),
	}
}

// Client is a minimal async sender; it drops events silently on errors.
// It never blocks the caller; the queue is bounded.
type Client struct {
	cfg    Config
	log    *slog.Logger
	http   *resty.Client
	q      chan map[string]any
	once   sync.Once
	closed chan struct{}
	wg     sync.WaitGroup
}

var (
	defaultMu     sync.Mutex
	defaultClient *Client
)

// SetDefault installs c as the package‑level client and closes the previous one.
func SetDefault(c *Client) {
	defaultMu.Lock()
	prev := defaultClient
	defaultClient = c
	defaultMu.Unlock()
	if prev != nil && prev != c {
		prev.Close()
	}
}

// Default returns the package‑level client; nil until SetDefault is called.
func Default() *Client {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	return defaultClient
}

// New constructs a client.
func New(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 1500 * time.Millisecond
	}
	c := &Client{
		cfg: cfg,
		log: applog.WithComponent("telemetry"),
		http: resty.New().
			SetBaseURL(cfg.BaseURL).
			SetTimeout(cfg.Timeout).
			SetHeader("User-Agent", "novelist/"+version.String()),
		q:      make(chan map[string]any, 64),
		closed: make(chan struct{}),
	}
	go c.loop()
	return c
}

// Enabled reports whether anonymous telemetry is enabled and an endpoint is configured.
func (c *Client) Enabled() bool { return c != nil && c.cfg.OptIn && c.cfg.BaseURL != "" }

// Enabled reports whether the default client sends anything.
func Enabled() bool { return Default().Enabled() }

// Event queues a small JSON event if enabled. Safe to call from anywhere,
// including on a nil client.
func (c *Client) Event(name string, props map[string]any) {
	if !c.Enabled() || name == "" {
		return
	}
	payload := map[string]any{
		"name":    name,
		"ts":      time.Now().UTC().Format(time.RFC3339Nano),
		"version": version.String(),
		"os":      runtime.GOOS,
		"arch":    runtime.GOARCH,
	}
	for k, v := range props {
		// best‑effort shallow copy, props must be non‑PII
		payload[k] = v
	}
	select {
	case c.q <- payload:
	default:
		// drop if queue full
	}
}

// Event using default client.
func Event(name string, props map[string]any) { Default().Event(name, props) }

// Flush waits briefly for the queue to drain.
func (c *Client) Flush(ctx context.Context) {
	if c == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	deadline := time.Now().Add(500 * time.Millisecond)
	for {
		if len(c.q) == 0 || time.Now().After(deadline) {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(25 * time.Millisecond):
		}
	}
}

// Close stops the background goroutine and waits for pending crash uploads.
func (c *Client) Close() {
	if c == nil {
		return
	}
	c.once.Do(func() { close(c.closed) })
	c.wg.Wait()
}

func (c *Client) loop() {
	for {
		select {
		case <-c.closed:
			return
		case item := <-c.q:
			c.send(item)
		}
	}
}

func (c *Client) send(item map[string]any) {
	resp, err := c.http.R().SetBody(item).Post("/events")
	if err != nil {
		if c.cfg.DebugLogging {
			c.log.Debug("telemetry send failed", slog.Any("err", err))
		}
		return
	}
	if c.cfg.DebugLogging {
		c.log.Debug("telemetry event sent", slog.Int("status", resp.StatusCode()))
	}
}

// UploadCrash posts an already‑serialized crash report if opt‑in.
func (c *Client) UploadCrash(report []byte) {
	if !c.Enabled() {
		return
	}
	c.wg.Add(1)
	go func(b []byte) {
		defer c.wg.Done()
		_, err := c.http.R().
			SetHeader("Content-Type", "text/plain; charset=utf-8").
			SetBody(b).
			Post("/crash")
		if err != nil {
			if c.cfg.DebugLogging {
				c.log.Debug("crash upload failed", slog.Any("err", err))
			}
			return
		}
		if c.cfg.DebugLogging {
			c.log.Debug("crash report uploaded")
		}
	}(append([]byte(nil), report...))
}

// UploadCrash using default client.
func UploadCrash(report []byte) { Default().UploadCrash(report) }
