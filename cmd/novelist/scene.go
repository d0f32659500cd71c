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
	"os"

	"github.com/spf13/cobra"

	"novelist/internal/collections"
	"novelist/internal/manuscript"
)

func newSceneCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scene",
		Short: "List and edit scenes",
	}
	cmd.AddCommand(
		newSceneListCommand(a),
		newSceneAddCommand(a),
		newSceneRenameCommand(a),
		newSceneDeleteCommand(a),
		newSceneMoveCommand(a),
		newSceneWriteCommand(a),
	)
	return cmd
}

func newSceneListCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list <path>",
		Short: "Print the tree with identifiers",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := a.open(cmd, args[0]); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			return a.engine.View(func(s *manuscript.Structure, _ *collections.Set) error {
				printTree(out, s)
				return nil
			})
		},
	}
}

func printTree(w io.Writer, s *manuscript.Structure) {
	chapter := func(indent string, c *manuscript.Chapter) {
		fmt.Fprintf(w, "%s%s  ", indent, c.Title)
		faint.Fprintln(w, c.ID)
		for _, sc := range c.Scenes {
			fmt.Fprintf(w, "%s  %s (%d words)  ", indent, sc.Title, sc.WordCount)
			faint.Fprintln(w, sc.ID)
		}
	}
	if s.Mode() == manuscript.ThreeLevel {
		for _, p := range s.Parts {
			fmt.Fprintf(w, "%s  ", p.Title)
			faint.Fprintln(w, p.ID)
			for _, c := range p.Chapters {
				chapter("  ", c)
			}
		}
		return
	}
	for _, c := range s.Chapters {
		chapter("", c)
	}
}

func newSceneAddCommand(a *app) *cobra.Command {
	var title string
	var order int

	cmd := &cobra.Command{
		Use:   "add <path> <chapter-id>",
		Short: "Add a scene to a chapter",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var id string
			err := a.mutate(cmd, args[0], func() error {
				return a.engine.Edit(func(s *manuscript.Structure, _ *collections.Set) error {
					sc, err := s.AddScene(args[1], title, order)
					if err != nil {
						return err
					}
					id = sc.ID
					return nil
				})
			})
			if err != nil {
				return err
			}
			_, err = success.Fprintf(cmd.OutOrStdout(), "Added scene %s\n", id)
			return err
		},
	}
	cmd.Flags().StringVar(&title, "title", "New scene", "scene title")
	cmd.Flags().IntVar(&order, "order", manuscript.Append, "position among the chapter's scenes (-1 appends)")
	return cmd
}

func newSceneRenameCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "rename <path> <scene-id> <title>",
		Short: "Rename a scene",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.mutate(cmd, args[0], func() error {
				return a.engine.Edit(func(s *manuscript.Structure, _ *collections.Set) error {
					return s.RenameScene(args[1], args[2])
				})
			})
		},
	}
}

func newSceneDeleteCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <path> <scene-id>",
		Short: "Delete a scene (a chapter keeps at least one)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.mutate(cmd, args[0], func() error {
				return a.engine.Edit(func(s *manuscript.Structure, _ *collections.Set) error {
					return s.DeleteScene(args[1])
				})
			})
		},
	}
}

func newSceneMoveCommand(a *app) *cobra.Command {
	var order int

	cmd := &cobra.Command{
		Use:   "move <path> <scene-id> <chapter-id>",
		Short: "Move a scene to another position or chapter",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.mutate(cmd, args[0], func() error {
				return a.engine.Edit(func(s *manuscript.Structure, _ *collections.Set) error {
					return s.MoveScene(args[1], args[2], order)
				})
			})
		},
	}
	cmd.Flags().IntVar(&order, "order", manuscript.Append, "position in the target chapter (-1 appends)")
	return cmd
}

func newSceneWriteCommand(a *app) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "write <path> <scene-id>",
		Short: "Replace a scene's content from a file or stdin",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var data []byte
			var err error
			if file == "" || file == "-" {
				data, err = io.ReadAll(cmd.InOrStdin())
			} else {
				data, err = os.ReadFile(file)
			}
			if err != nil {
				return err
			}
			return a.mutate(cmd, args[0], func() error {
				return a.engine.UpdateSceneContent(args[1], string(data))
			})
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "content file (default stdin)")
	return cmd
}
