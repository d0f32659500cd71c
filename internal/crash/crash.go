/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package crash turns a fatal panic into a crash report plus a crash backup
// of the open project.
package crash

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"time"

	applog "novelist/internal/log"
	"novelist/internal/telemetry"
	"novelist/internal/version"
)

// exitFn is used to allow testing of Recover without terminating the test process.
var exitFn = os.Exit

// Snapshotter is implemented by whatever holds the open project. CrashSnapshot
// writes a backup with reason "crash" and returns its path.
type Snapshotter interface {
	CrashSnapshot() (string, error)
	ProjectPath() string
}

// Recover captures a panic, logs an error with stacktrace, writes an error
// report into reportDir and attempts a crash backup through s (if provided).
// An empty reportDir means s.BackupDir() when s has one, else the temp dir.
//
// Usage: defer crash.Recover(engine, backupDir)
func Recover(s Snapshotter, reportDir string) {
	if r := recover(); r != nil {
		l := applog.WithComponent("crash")
		stack := debug.Stack()
		l.Error("panic recovered", slog.Any("panic", r), slog.String("stack", string(stack)))

		reportPath, _ := writeReport(s, reportDir, r, stack)
		if s != nil {
			if path, err := s.CrashSnapshot(); err != nil {
				l.Error("crash backup failed", slog.Any("err", err))
			} else if path != "" {
				l.Info("crash backup written", slog.String("path", path))
			}
		}

		if _, err := fmt.Fprintf(os.Stderr, "A fatal error occurred. A crash report was saved to: %s\n", reportPath); err != nil {
			l.Error("failed to write crash message to stderr", slog.Any("err", err))
		}
		if _, err := fmt.Fprintf(os.Stderr, "Version: %s\nOS/Arch: %s/%s\n", version.String(), runtime.GOOS, runtime.GOARCH); err != nil {
			l.Error("failed to write version info to stderr", slog.Any("err", err))
		}
		exitFn(2)
	}
}

func writeReport(s Snapshotter, dir string, panicVal any, stack []byte) (string, error) {
	if dir == "" {
		if b, ok := s.(interface{ BackupDir() string }); ok {
			dir = b.BackupDir()
		}
	}
	if dir == "" {
		dir = os.TempDir()
	}
	_ = os.MkdirAll(dir, 0o755)
	now := time.Now()
	path := filepath.Join(dir, fmt.Sprintf("crash-%s.log", now.Format("20060102-150405")))

	var buf bytes.Buffer
	_, _ = fmt.Fprintf(&buf, "Novelist Crash Report\n")
	_, _ = fmt.Fprintf(&buf, "Timestamp: %s\n", now.Format(time.RFC3339))
	_, _ = fmt.Fprintf(&buf, "Version: %s\n", version.String())
	_, _ = fmt.Fprintf(&buf, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
	if s != nil && s.ProjectPath() != "" {
		_, _ = fmt.Fprintf(&buf, "Project: %s\n", s.ProjectPath())
	}
	_, _ = fmt.Fprintf(&buf, "\nPanic: %v\n\n", panicVal)
	_, _ = fmt.Fprintf(&buf, "Stack:\n%s\n", string(stack))

	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return path, err
	}
	defer func() {
		if err := f.Close(); err != nil {
			applog.WithComponent("crash").Error("failed to close crash report file", slog.Any("err", err), slog.String("path", path))
		}
	}()
	if _, err := f.Write(buf.Bytes()); err != nil {
		return path, err
	}
	_ = f.Sync()

	// the report carries no manuscript text; uploading still needs opt-in
	telemetry.UploadCrash(buf.Bytes())
	return path, nil
}
