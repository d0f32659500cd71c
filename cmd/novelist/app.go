/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"novelist/internal/config"
	"novelist/internal/engine"
	applog "novelist/internal/log"
	"novelist/internal/telemetry"
	"novelist/internal/version"
)

// app carries what the commands share. It implements crash.Snapshotter so a
// panic in a command still saves the open project.
type app struct {
	configFile string
	debug      bool
	// logOut overrides the console log writer (tests).
	logOut io.Writer

	cfg    config.AppConfig
	engine *engine.Engine
	tel    *telemetry.Client
}

func (a *app) setup() error {
	var err error
	if a.configFile != "" {
		a.cfg, err = config.LoadFrom(a.configFile)
	} else {
		a.cfg, err = config.Load()
	}
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	lo := applog.Options{
		Level:     a.cfg.Logging.Level,
		Format:    a.cfg.Logging.Format,
		AddSource: a.cfg.Logging.Source,
		File:      a.cfg.Logging.File,
		Console:   a.logOut,
	}
	if a.debug {
		lo.Level = "debug"
	}
	applog.Init(lo)

	a.tel = telemetry.New(telemetry.FromConfig(a.cfg))
	telemetry.SetDefault(a.tel)

	opts, err := engine.OptionsFromConfig(a.cfg)
	if err != nil {
		return err
	}
	opts.Telemetry = a.tel
	a.engine = engine.New(opts)
	applog.WithComponent("cli").Debug("ready",
		slog.String("version", version.String()),
		slog.String("backups", opts.BackupDir))
	return nil
}

func (a *app) close() {
	if a.engine != nil {
		if err := a.engine.CloseProject(); err != nil {
			applog.WithComponent("cli").Warn("close project", slog.Any("err", err))
		}
	}
	if a.tel != nil {
		a.tel.Flush(context.Background())
		telemetry.SetDefault(nil)
		a.tel.Close()
	}
	_ = applog.Close()
}

func (a *app) CrashSnapshot() (string, error) {
	if a.engine == nil {
		return "", nil
	}
	return a.engine.CrashSnapshot()
}

func (a *app) ProjectPath() string {
	if a.engine == nil {
		return ""
	}
	return a.engine.ProjectPath()
}

func (a *app) BackupDir() string {
	if a.engine == nil {
		return ""
	}
	return a.engine.BackupDir()
}

// open opens path and explains a failure. A recovery offer is printed, not
// accepted; `open --recover` does that.
func (a *app) open(cmd *cobra.Command, path string) (engine.OpenResult, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return engine.OpenResult{}, err
	}
	res, err := a.engine.OpenProject(cmd.Context(), abs)
	if err != nil && res.Offer != nil {
		printOffer(cmd.OutOrStdout(), res.Offer)
	}
	return res, err
}

// mutate opens path, runs fn and saves the project.
func (a *app) mutate(cmd *cobra.Command, path string, fn func() error) error {
	if _, err := a.open(cmd, path); err != nil {
		return err
	}
	if err := fn(); err != nil {
		return err
	}
	return a.engine.SaveProject(cmd.Context())
}

func newRootCommand(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "novelist",
		Short:         "Create, inspect and repair .tnp writing projects",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
	}
	root.PersistentFlags().StringVar(&a.configFile, "config", "", "config file path (default: per-user config)")
	root.PersistentFlags().BoolVar(&a.debug, "debug", false, "enable debug logging")

	root.AddCommand(
		newNewCommand(a),
		newOpenCommand(a),
		newInfoCommand(a),
		newTextCommand(a),
		newSearchCommand(a),
		newSaveCommand(a),
		newSaveAsCommand(a),
		newSceneCommand(a),
		newBackupCommand(a),
		newVersionCommand(),
	)
	return root
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		// no config needed
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "novelist %s\n", version.String())
			return err
		},
	}
}

var (
	warn    = color.New(color.FgYellow)
	success = color.New(color.FgGreen)
	faint   = color.New(color.Faint)
)
