/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package engine

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"novelist/internal/backup"
	"novelist/internal/collections"
	applog "novelist/internal/log"
	"novelist/internal/storage"
	"novelist/internal/telemetry"
)

// Outcome is the terminal state of an open attempt.
type Outcome string

const (
	Success           Outcome = "Success"
	ArchiveCorrupt    Outcome = "ArchiveCorrupt"
	ManifestCorrupt   Outcome = "ManifestCorrupt"
	NotFound          Outcome = "NotFound"
	Oversized         Outcome = "Oversized"
	PermissionDenied  Outcome = "PermissionDenied"
	UnexpectedFailure Outcome = "UnexpectedFailure"
)

func outcomeFor(k storage.Kind) Outcome {
	switch k {
	case storage.KindNone:
		return Success
	case storage.KindArchiveCorrupt:
		return ArchiveCorrupt
	case storage.KindManifestCorrupt, storage.KindInvariantViolation:
		// a tree that fails validation on load is a damaged manifest member
		return ManifestCorrupt
	case storage.KindNotFound:
		return NotFound
	case storage.KindOversized:
		return Oversized
	case storage.KindPermissionDenied:
		return PermissionDenied
	default:
		return UnexpectedFailure
	}
}

// RecoveryOffer is handed to the caller when a damaged archive has backups.
type RecoveryOffer struct {
	// Path is the damaged archive.
	Path    string
	Outcome Outcome
	Cause   error
	// Backups of the project, newest first.
	Backups []backup.Info
}

// Newest is the most recent backup.
func (o *RecoveryOffer) Newest() backup.Info { return o.Backups[0] }

// OpenResult reports how an open attempt ended.
type OpenResult struct {
	Outcome Outcome
	// Offer is set for corrupt archives that have at least one backup.
	Offer *RecoveryOffer
	// FromVersion is the manifest version found in the archive.
	FromVersion int
	// Upgraded is true when the manifest was migrated to the current version.
	Upgraded           bool
	CreatedCollections []collections.Kind
	LegacyText         bool
	UnknownKind        string
}

// OpenProject closes the open project, if any, and opens path. On failure
// the result carries the outcome, and for corrupt archives with backups a
// RecoveryOffer; the error is the classified storage error.
func (e *Engine) OpenProject(ctx context.Context, path string) (res OpenResult, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	defer func() {
		if err != nil && res.Outcome == "" {
			res.Outcome = outcomeFor(storage.KindOf(err))
		}
	}()
	defer e.guard("open", &err)
	return e.openLocked(ctx, path)
}

func (e *Engine) openLocked(ctx context.Context, path string) (OpenResult, error) {
	l := applog.WithOperation(e.log, "open").With(slog.String("path", path))
	e.closeLocked()
	if err := ctx.Err(); err != nil {
		return OpenResult{Outcome: UnexpectedFailure}, err
	}

	wd, err := storage.NewWorkDir()
	if err != nil {
		return OpenResult{Outcome: UnexpectedFailure}, err
	}
	lr, err := storage.Unpack(path, wd, e.opts.Unpack)
	if err != nil {
		_ = wd.Release()
		kind := storage.KindOf(err)
		res := OpenResult{Outcome: outcomeFor(kind)}
		l.Error("open failed", slog.String("outcome", string(res.Outcome)), slog.Any("err", err))
		if res.Outcome == ArchiveCorrupt || res.Outcome == ManifestCorrupt {
			res.Offer = e.offerLocked(path, res.Outcome, err)
		}
		e.events().Event(telemetry.EventOpenFailed, map[string]any{
			"outcome":  string(res.Outcome),
			"recovery": res.Offer != nil,
		})
		return res, err
	}

	e.attachLocked(ctx, path, lr.Project, wd)
	res := OpenResult{
		Outcome:            Success,
		FromVersion:        lr.FromVersion,
		Upgraded:           lr.FromVersion < storage.CurrentManifestVersion,
		CreatedCollections: lr.CreatedCollections,
		LegacyText:         lr.LegacyText,
		UnknownKind:        lr.UnknownKind,
	}
	// repairs made on the way in are only persisted by the next save
	e.dirty = res.Upgraded || res.LegacyText || len(res.CreatedCollections) > 0 || res.UnknownKind != ""
	if res.Upgraded {
		l.Info("manifest upgraded", slog.Int("from", res.FromVersion), slog.Int("to", storage.CurrentManifestVersion))
	}
	if res.LegacyText {
		l.Info("structure rebuilt from legacy text")
	}
	l.Info("project opened",
		slog.String("title", lr.Project.Manifest.Title),
		slog.Int("scenes", len(lr.Project.Structure.Scenes())))
	e.events().Event(telemetry.EventProjectOpened, map[string]any{
		"kind":     string(lr.Project.Manifest.ProjectType),
		"upgraded": res.Upgraded,
	})
	return res, nil
}

func (e *Engine) offerLocked(path string, outcome Outcome, cause error) *RecoveryOffer {
	infos, err := e.backups.List(backup.ProjectName(path))
	if err != nil {
		e.log.Warn("list backups for recovery failed", slog.Any("err", err))
		return nil
	}
	if len(infos) == 0 {
		return nil
	}
	return &RecoveryOffer{Path: path, Outcome: outcome, Cause: cause, Backups: infos}
}

// Recover restores the chosen backup over the damaged archive and opens it
// again. The damaged file itself is kept as a before_restore backup.
func (e *Engine) Recover(ctx context.Context, offer *RecoveryOffer, choice backup.Info) (res OpenResult, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	defer e.guard("recover", &err)
	if offer == nil {
		return OpenResult{Outcome: UnexpectedFailure}, fmt.Errorf("recover: %w", ErrNotOffered)
	}
	if !slices.ContainsFunc(offer.Backups, func(b backup.Info) bool { return b.Path == choice.Path }) {
		return OpenResult{Outcome: UnexpectedFailure}, fmt.Errorf("recover %s: %w", choice.FileName, ErrNotOffered)
	}
	e.closeLocked()
	if _, err := e.backups.Restore(choice.Path, offer.Path); err != nil {
		return OpenResult{Outcome: UnexpectedFailure}, fmt.Errorf("recover from %s: %w", choice.FileName, err)
	}
	e.log.Info("project restored from backup", slog.String("path", offer.Path), slog.String("backup", choice.FileName))
	res, err = e.openLocked(ctx, offer.Path)
	if err == nil {
		e.events().Event(telemetry.EventProjectRecovered, map[string]any{"outcome": string(offer.Outcome)})
	}
	return res, err
}
