// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/jeranaias/counsellor/internal/config"
)

// Version information (set by main at build time)
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// runtime is the state shared by one command invocation.
type runtime struct {
	configPath string
	verbose    bool

	cfg     *config.Config
	logger  *logrus.Logger
	logFile *os.File
}

// NewRootCommand builds the counsellor command tree.
func NewRootCommand() *cobra.Command {
	rt := &runtime{}

	root := &cobra.Command{
		Use:   "counsellor",
		Short: "Chat with your AI study-abroad counsellor",
		Long: `counsellor is a terminal client for the AI Counsellor service.

Run it without arguments to open the chat. Conversations are stored
locally and can be listed, reopened, renamed and exported.`,
		Version:       fmt.Sprintf("%s (commit %s, built %s)", Version, GitCommit, BuildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return rt.setup()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			rt.teardown()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return rt.runChat(cmd, false)
		},
	}

	root.PersistentFlags().StringVar(&rt.configPath, "config", "", "config file (default is $COUNSELLOR_HOME/config.toml)")
	root.PersistentFlags().BoolVarP(&rt.verbose, "verbose", "v", false, "log debug output")

	root.AddCommand(
		newChatCommand(rt),
		newAskCommand(rt),
		newHistoryCommand(rt),
		newHealthCommand(rt),
		newConfigCommand(rt),
	)
	return root
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	root := NewRootCommand()
	if err := root.ExecuteContext(ctx); err != nil {
		DisplayError(os.Stderr, err)
		return GetExitCode(err)
	}
	return ExitSuccess
}

// =============================================================================
// SETUP
// =============================================================================

// loadConfig reads the config file named by --config or the default one.
func (rt *runtime) loadConfig() (*config.Config, error) {
	if rt.configPath != "" {
		return config.LoadFromPath(rt.configPath)
	}
	return config.Load()
}

// setup loads and validates the config and opens the log file.
func (rt *runtime) setup() error {
	cfg, err := rt.loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	rt.cfg = cfg
	config.SetGlobal(cfg)

	rt.logger = newLogger(cfg.Log, rt.verbose)
	if f, err := openLogFile(cfg.Log.Path); err == nil {
		rt.logFile = f
		rt.logger.SetOutput(f)
	}
	rt.logger.WithFields(logrus.Fields{
		"component": "cli",
		"version":   Version,
		"api":       cfg.API.BaseURL,
	}).Debug("starting")
	return nil
}

func (rt *runtime) teardown() {
	if rt.logFile != nil {
		rt.logFile.Close()
		rt.logFile = nil
	}
}

// log returns the entry for a component.
func (rt *runtime) log(component string) *logrus.Entry {
	if rt.logger == nil {
		rt.logger = newLogger(config.LogConfig{Level: "info"}, rt.verbose)
	}
	return rt.logger.WithField("component", component)
}

// newLogger builds a logger that discards output until a file is attached.
// The chat owns the terminal, so logs never go to stdout or stderr.
func newLogger(cfg config.LogConfig, verbose bool) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, DisableColors: true})

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	if verbose {
		level = logrus.DebugLevel
	}
	logger.SetLevel(level)
	return logger
}

func openLogFile(path string) (*os.File, error) {
	if path == "" {
		return nil, os.ErrNotExist
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, err
	}
	return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
}
