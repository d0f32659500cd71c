/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"novelist/internal/collections"
	"novelist/internal/domain"
	"novelist/internal/engine"
	"novelist/internal/manuscript"
	"novelist/internal/storage"
)

func newNewCommand(a *app) *cobra.Command {
	var np engine.NewProject
	var kind string
	var parts bool

	cmd := &cobra.Command{
		Use:   "new <path>",
		Short: "Create a project archive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := filepath.Abs(args[0])
			if err != nil {
				return err
			}
			np.Kind = domain.ProjectKind(kind)
			if parts {
				np.Mode = manuscript.ThreeLevel
			}
			if err := a.engine.CreateProject(cmd.Context(), path, np); err != nil {
				return err
			}
			_, err = success.Fprintf(cmd.OutOrStdout(), "Created %s\n", a.engine.ProjectPath())
			return err
		},
	}
	cmd.Flags().StringVar(&np.Title, "title", "", "project title (required)")
	cmd.Flags().StringVar(&np.Author, "author", "", "author name")
	cmd.Flags().StringVar(&kind, "kind", "", "project kind: "+kindList())
	cmd.Flags().StringVar(&np.Language, "language", "", "language tag (default from config)")
	cmd.Flags().StringVar(&np.Genre, "genre", "", "genre")
	cmd.Flags().IntVar(&np.TargetWordCount, "target", 0, "target word count")
	cmd.Flags().StringSliceVar(&np.Tags, "tags", nil, "comma separated tags")
	cmd.Flags().BoolVar(&parts, "parts", false, "organize chapters into parts")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func kindList() string {
	kinds := domain.AllKinds()
	names := make([]string, len(kinds))
	for i, k := range kinds {
		names[i] = string(k)
	}
	return strings.Join(names, ", ")
}

func newOpenCommand(a *app) *cobra.Command {
	var recoverNewest bool

	cmd := &cobra.Command{
		Use:   "open <path>",
		Short: "Open a project, report repairs and offer recovery from backups",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			res, err := a.open(cmd, args[0])
			if err != nil {
				if res.Offer == nil || !recoverNewest {
					return fmt.Errorf("%s: %w", res.Outcome, err)
				}
				choice := res.Offer.Newest()
				res, err = a.engine.Recover(cmd.Context(), res.Offer, choice)
				if err != nil {
					return fmt.Errorf("recovery failed: %w", err)
				}
				if _, err := success.Fprintf(out, "Restored from %s\n", choice.FileName); err != nil {
					return err
				}
			}
			printOpenNotes(out, res)
			return printSummary(out, a.engine)
		},
	}
	cmd.Flags().BoolVar(&recoverNewest, "recover", false, "restore the newest backup when the archive is damaged")
	return cmd
}

func printOpenNotes(w io.Writer, res engine.OpenResult) {
	if res.Upgraded {
		warn.Fprintf(w, "Manifest upgraded from version %d to %d (save to keep it)\n", res.FromVersion, storage.CurrentManifestVersion)
	}
	if res.LegacyText {
		warn.Fprintln(w, "Chapters and scenes rebuilt from the legacy plain-text manuscript")
	}
	if res.UnknownKind != "" {
		warn.Fprintf(w, "Unknown project type %q, treated as novel\n", res.UnknownKind)
	}
	for _, k := range res.CreatedCollections {
		faint.Fprintf(w, "Created empty %s\n", k.FileName())
	}
}

func printOffer(w io.Writer, offer *engine.RecoveryOffer) {
	warn.Fprintf(w, "%s is damaged (%s). Backups available:\n", filepath.Base(offer.Path), offer.Outcome)
	for _, b := range offer.Backups {
		fmt.Fprintf(w, "  %s  %-14s %8s  %s\n", b.Time.Format("2006-01-02 15:04:05"), b.Reason, humanize.Bytes(uint64(b.Size)), b.Path)
	}
	faint.Fprintln(w, "Run `novelist open --recover` to restore the newest one.")
}

func printSummary(w io.Writer, e *engine.Engine) error {
	s, err := e.Summary()
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "Title:     %s\n", s.Title)
	if s.Author != "" {
		fmt.Fprintf(w, "Author:    %s\n", s.Author)
	}
	fmt.Fprintf(w, "Type:      %s (%s)\n", s.KindName, s.Language)
	fmt.Fprintf(w, "Structure: %d parts, %d chapters, %d scenes\n", s.Stats.Parts, s.Stats.Chapters, s.Stats.Scenes)
	words := humanize.Comma(int64(s.Stats.Words))
	switch {
	case s.TargetWords > 0:
		fmt.Fprintf(w, "Words:     %s of %s\n", words, humanize.Comma(int64(s.TargetWords)))
	case s.Target.Max > 0:
		fmt.Fprintf(w, "Words:     %s (typical %s to %s)\n", words, humanize.Comma(int64(s.Target.Min)), humanize.Comma(int64(s.Target.Max)))
	default:
		fmt.Fprintf(w, "Words:     %s\n", words)
	}
	kinds := make([]collections.Kind, 0, len(s.Collections))
	for k := range s.Collections {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	for _, k := range kinds {
		fmt.Fprintf(w, "  %-14s %d\n", k, s.Collections[k])
	}
	fmt.Fprintf(w, "Modified:  %s\n", humanize.Time(s.Modified))
	return nil
}

func newInfoCommand(a *app) *cobra.Command {
	var raw bool

	cmd := &cobra.Command{
		Use:   "info <path>",
		Short: "Print a project summary",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if raw {
				// the archive is only read, never extracted or migrated
				data, err := storage.ReadManifest(engine.WithExtension(args[0]))
				if err != nil {
					return err
				}
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}
			if _, err := a.open(cmd, args[0]); err != nil {
				return err
			}
			return printSummary(cmd.OutOrStdout(), a.engine)
		},
	}
	cmd.Flags().BoolVar(&raw, "manifest", false, "print the stored manifest without opening the project")
	return cmd
}

func newTextCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "text <path>",
		Short: "Print the manuscript as plain text",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := a.open(cmd, args[0]); err != nil {
				return err
			}
			text, err := a.engine.FullText()
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), text)
			return err
		},
	}
}

func newSearchCommand(a *app) *cobra.Command {
	var q storage.SearchQuery

	cmd := &cobra.Command{
		Use:   "search <path> <words...>",
		Short: "Search the manuscript and collections",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := a.open(cmd, args[0]); err != nil {
				return err
			}
			q.Text = strings.Join(args[1:], " ")
			results, err := a.engine.Search(cmd.Context(), q)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(results) == 0 {
				_, err := faint.Fprintln(out, "No matches")
				return err
			}
			for _, r := range results {
				fmt.Fprintf(out, "%-10s %s\n", r.Type, r.Title)
				if r.Snippet != "" {
					faint.Fprintf(out, "           %s\n", r.Snippet)
				}
			}
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&q.Types, "type", nil, "restrict to document types (scene, chapter, part, project, characters, ...)")
	cmd.Flags().IntVar(&q.Limit, "limit", 20, "maximum number of results")
	return cmd
}

func newSaveCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "save <path>",
		Short: "Rewrite a project in the current format (backs up the old file)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.mutate(cmd, args[0], func() error { return nil }); err != nil {
				return err
			}
			_, err := success.Fprintf(cmd.OutOrStdout(), "Saved %s\n", a.engine.ProjectPath())
			return err
		},
	}
}

func newSaveAsCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "save-as <path> <new-path>",
		Short: "Write a copy of a project under a new name",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := a.open(cmd, args[0]); err != nil {
				return err
			}
			dest, err := filepath.Abs(args[1])
			if err != nil {
				return err
			}
			if err := a.engine.SaveProjectAs(cmd.Context(), dest); err != nil {
				return err
			}
			_, err = success.Fprintf(cmd.OutOrStdout(), "Saved %s\n", a.engine.ProjectPath())
			return err
		},
	}
}
