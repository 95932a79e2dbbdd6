// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/peterh/liner"
	"github.com/spf13/cobra"

	"github.com/jeranaias/counsellor/internal/config"
	"github.com/jeranaias/counsellor/internal/ui/chat"
	"github.com/jeranaias/counsellor/internal/ui/styles"
)

func newChatCommand(rt *runtime) *cobra.Command {
	var plain bool
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Open the counsellor chat",
		Long: `Open the counsellor chat.

In a terminal this starts the full-screen chat. With --plain, ui.plain set,
or when input or output is redirected, a line-based chat is used instead.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rt.runChat(cmd, plain)
		},
	}
	cmd.Flags().BoolVar(&plain, "plain", false, "use the line-based chat")
	return cmd
}

// runChat starts the full-screen or line-based chat.
func (rt *runtime) runChat(cmd *cobra.Command, plain bool) error {
	a, err := rt.openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	go a.prober.Run(ctx)

	if plain || rt.cfg.UI.Plain || !Interactive() {
		return rt.runPlainChat(ctx, cmd, a)
	}

	fwd := chat.NewForwarder()
	defer fwd.Stop()

	sess, err := a.newSession(fwd.Notify)
	if err != nil {
		return err
	}
	defer sess.Close()
	defer a.watchSignIn(fwd.Notify)()

	m := chat.New(sess, a.prober, styles.NewTheme())
	p := tea.NewProgram(m, tea.WithAltScreen())
	fwd.Attach(p)

	rt.log("cli").Info("chat started")
	_, err = p.Run()
	return err
}

// =============================================================================
// INPUT HISTORY
// =============================================================================

// inputHistory provides line editing and persistent history for the plain
// chat.
type inputHistory struct {
	line        *liner.State
	historyFile string
}

func newInputHistory() *inputHistory {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	dir, err := config.ConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	h := &inputHistory{
		line:        line,
		historyFile: filepath.Join(dir, "chat_history"),
	}
	if f, err := os.Open(h.historyFile); err == nil {
		h.line.ReadHistory(f)
		f.Close()
	}
	return h
}

// Prompt reads a line and records it in the history.
func (h *inputHistory) Prompt(prompt string) (string, error) {
	input, err := h.line.Prompt(prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(input) != "" {
		h.line.AppendHistory(input)
	}
	return input, nil
}

// Close saves the history with owner-only permissions and restores the
// terminal.
func (h *inputHistory) Close() error {
	if err := config.EnsureConfigDir(); err == nil {
		if f, err := os.OpenFile(h.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600); err == nil {
			h.line.WriteHistory(f)
			f.Close()
		}
	}
	return h.line.Close()
}
