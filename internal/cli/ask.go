// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/jeranaias/counsellor/internal/api"
	"github.com/jeranaias/counsellor/internal/counsellor"
	"github.com/jeranaias/counsellor/internal/markdown"
	"github.com/jeranaias/counsellor/internal/model"
)

func newAskCommand(rt *runtime) *cobra.Command {
	var (
		wait         bool
		waitTimeout  time.Duration
		conversation string
	)
	cmd := &cobra.Command{
		Use:   "ask [message]",
		Short: "Ask one question and print the reply",
		Long: `Ask one question and print the reply.

The message is read from the arguments, or from stdin when there are none.
The exchange is saved like any other conversation.`,
		Example: `  counsellor ask "Which universities suit a 3.6 GPA?"
  echo "What should I improve?" | counsellor ask --wait
  counsellor ask --conversation 1 "And what about scholarships?"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.Join(args, " ")
			if text == "" && !IsTTY() {
				data, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return err
				}
				text = string(data)
			}
			if strings.TrimSpace(text) == "" {
				return usageErrorf("nothing to ask; pass a message or pipe one on stdin")
			}
			return rt.runAsk(cmd, text, conversation, wait, waitTimeout)
		},
	}
	cmd.Flags().BoolVarP(&wait, "wait", "w", false, "wait for the service to wake up before asking")
	cmd.Flags().DurationVar(&waitTimeout, "wait-timeout", 3*time.Minute, "how long --wait waits")
	cmd.Flags().StringVarP(&conversation, "conversation", "c", "", "continue a saved conversation")
	return cmd
}

func (rt *runtime) runAsk(cmd *cobra.Command, text, conversation string, wait bool, waitTimeout time.Duration) error {
	a, err := rt.openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	if !a.client.SignedIn(ctx) {
		return api.ErrNotSignedIn
	}
	if wait {
		if err := waitReady(ctx, a, waitTimeout, cmd.ErrOrStderr()); err != nil {
			return err
		}
	}

	notices := &noticeLog{}
	sess, err := a.newSession(notices.Notify)
	if err != nil {
		return err
	}
	defer sess.Close()

	if conversation != "" {
		conv, err := a.store.Lookup(ctx, conversation)
		if err != nil {
			return err
		}
		if err := sess.Select(ctx, conv.ID); err != nil {
			return err
		}
	}

	before := len(sess.Messages())
	state, err := sess.Send(ctx, text)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	switch state {
	case counsellor.StateDelivered:
		reply, ok := lastReply(sess.Messages()[before:])
		if !ok {
			return errNoReply
		}
		printAnswer(out, reply, replyWidth(rt.cfg.UI.MarkdownWidth))
		return nil
	case counsellor.StateWaking:
		return fmt.Errorf("%w: %s (try again with --wait)", errBackendWaking, notices.lastStateNotice())
	}

	if n := notices.lastStateNotice(); n != "" {
		return fmt.Errorf("%w: %s", errNoReply, n)
	}
	return errNoReply
}

// waitReady probes until the backend answers or timeout passes.
func waitReady(ctx context.Context, a *app, timeout time.Duration, progress io.Writer) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	go a.prober.Run(ctx)
	select {
	case <-a.prober.Ready():
		return nil
	case <-time.After(2 * time.Second):
		fmt.Fprintf(progress, "%s Waiting for the counsellor service to wake up...\n", warnMark())
	case <-ctx.Done():
	}

	select {
	case <-a.prober.Ready():
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: still unavailable after %s", errBackendWaking, timeout)
	}
}

func printAnswer(w io.Writer, reply model.Message, width int) {
	fmt.Fprint(w, markdown.RenderTerminal(reply.Content, width))
	for _, act := range reply.Actions {
		fmt.Fprintf(w, "  %s %s\n", okMark(), act.Label())
	}
}
