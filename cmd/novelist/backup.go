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
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"novelist/internal/backup"
)

func newBackupCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Manage project backups",
	}
	cmd.AddCommand(
		newBackupCreateCommand(a),
		newBackupListCommand(a),
		newBackupRestoreCommand(a),
		newBackupDeleteCommand(a),
		newBackupPurgeCommand(a),
	)
	return cmd
}

func newBackupCreateCommand(a *app) *cobra.Command {
	var reason string

	cmd := &cobra.Command{
		Use:   "create <path>",
		Short: "Back up a project archive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := a.open(cmd, args[0]); err != nil {
				return err
			}
			info, err := a.engine.CreateBackup(reason)
			if err != nil {
				return err
			}
			_, err = success.Fprintf(cmd.OutOrStdout(), "Backup %s (%s)\n", info.Path, humanize.Bytes(uint64(info.Size)))
			return err
		},
	}
	cmd.Flags().StringVar(&reason, "reason", backup.ReasonManual, "reason tag")
	return cmd
}

func newBackupListCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list <path-or-name>",
		Short: "List backups of a project, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			infos, err := a.engine.Backups(backup.ProjectName(args[0]))
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(infos) == 0 {
				_, err := faint.Fprintln(out, "No backups")
				return err
			}
			for _, b := range infos {
				fmt.Fprintf(out, "%s  %-14s %8s  %s\n",
					humanize.Time(b.Time), b.Reason, humanize.Bytes(uint64(b.Size)), b.FileName)
			}
			total, err := a.engine.BackupsSize()
			if err != nil {
				return err
			}
			_, err = faint.Fprintf(out, "%d backups; %s holds %s in total\n", len(infos), a.engine.BackupDir(), humanize.Bytes(uint64(total)))
			return err
		},
	}
}

func newBackupRestoreCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "restore <backup> <dest>",
		Short: "Replace dest with a backup (dest is backed up first)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			src := args[0]
			if filepath.Dir(src) == "." {
				src = filepath.Join(a.engine.BackupDir(), src)
			}
			dest, err := filepath.Abs(args[1])
			if err != nil {
				return err
			}
			prev, err := a.engine.RestoreBackup(cmd.Context(), src, dest)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if prev != nil {
				faint.Fprintf(out, "Previous file kept as %s\n", prev.FileName)
			}
			_, err = success.Fprintf(out, "Restored %s\n", dest)
			return err
		},
	}
}

func newBackupDeleteCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <backup>",
		Short: "Delete one backup file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			if filepath.Dir(path) == "." {
				path = filepath.Join(a.engine.BackupDir(), path)
			}
			return a.engine.DeleteBackup(path)
		},
	}
}

func newBackupPurgeCommand(a *app) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Delete every backup of every project",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return fmt.Errorf("refusing to delete all backups in %s without --yes", a.engine.BackupDir())
			}
			n, err := a.engine.PurgeBackups()
			if err != nil {
				return err
			}
			_, err = success.Fprintf(cmd.OutOrStdout(), "Deleted %d backups\n", n)
			return err
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm deleting all backups")
	return cmd
}
