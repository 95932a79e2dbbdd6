// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/jeranaias/counsellor/internal/export"
	"github.com/jeranaias/counsellor/internal/markdown"
	"github.com/jeranaias/counsellor/internal/model"
	"github.com/jeranaias/counsellor/internal/util"
)

func newHistoryCommand(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "history",
		Aliases: []string{"hist"},
		Short:   "Manage saved conversations",
		Long: `Manage saved conversations.

Conversations are referred to by their number in "history list", by
their id, or by a unique id prefix.`,
	}
	cmd.AddCommand(
		newHistoryListCommand(rt),
		newHistoryShowCommand(rt),
		newHistoryRenameCommand(rt),
		newHistoryDeleteCommand(rt),
		newHistoryExportCommand(rt),
	)
	return cmd
}

func newHistoryListCommand(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List conversations, most recent first",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := rt.openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			convs, err := a.store.ListConversations(cmd.Context())
			if err != nil {
				return err
			}
			printConversationList(cmd.OutOrStdout(), convs, "", time.Now())
			return nil
		},
	}
}

func newHistoryShowCommand(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "show <conversation>",
		Short: "Print a conversation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := rt.openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := cmd.Context()
			conv, err := a.store.Lookup(ctx, args[0])
			if err != nil {
				return err
			}
			msgs, err := a.store.LoadTranscript(ctx, conv.ID)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			width := replyWidth(rt.cfg.UI.MarkdownWidth)
			fmt.Fprintln(out, TitleStyle.Render(conv.Title))
			fmt.Fprintln(out, DimStyle.Render(conv.CreatedAt.Local().Format("Jan 2, 2006 3:04 PM")))
			fmt.Fprintln(out)
			for _, m := range msgs {
				if m.IsUser() {
					fmt.Fprintf(out, "%s %s\n\n", UserStyle.Render(m.Role.DisplayName()+":"), m.Content)
					continue
				}
				fmt.Fprintln(out, AssistantStyle.Render(m.Role.DisplayName()+":"))
				fmt.Fprint(out, markdown.RenderTerminal(m.Content, width))
				for _, act := range m.Actions {
					fmt.Fprintf(out, "  %s %s\n", okMark(), act.Label())
				}
				fmt.Fprintln(out)
			}
			return nil
		},
	}
}

func newHistoryRenameCommand(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "rename <conversation> <title>",
		Short: "Rename a conversation",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := rt.openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := cmd.Context()
			conv, err := a.store.Lookup(ctx, args[0])
			if err != nil {
				return err
			}
			title := strings.Join(args[1:], " ")
			if err := a.store.RenameConversation(ctx, conv.ID, title); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s Renamed %s\n", okMark(), color.CyanString(model.DeriveTitle(title)))
			return nil
		},
	}
}

func newHistoryDeleteCommand(rt *runtime) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:     "delete <conversation>",
		Aliases: []string{"rm"},
		Short:   "Delete a conversation and its messages",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := rt.openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := cmd.Context()
			conv, err := a.store.Lookup(ctx, args[0])
			if err != nil {
				return err
			}

			ok, err := RequireConfirmation(cmd.InOrStdin(), cmd.OutOrStdout(), yes, IsTTY(),
				fmt.Sprintf("delete %q", conv.Title))
			if err != nil || !ok {
				return err
			}
			if _, err := a.store.DeleteConversation(ctx, conv.ID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s Deleted %s\n", okMark(), color.CyanString(conv.Title))
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")
	return cmd
}

func newHistoryExportCommand(rt *runtime) *cobra.Command {
	var (
		format       string
		outputDir    string
		noMetadata   bool
		noTimestamps bool
	)
	cmd := &cobra.Command{
		Use:   "export <conversation>",
		Short: "Export a conversation to a file",
		Long: fmt.Sprintf(`Export a conversation to a file.

Supported formats: %s. The file is written to the output directory
with owner-only permissions.`, strings.Join(export.Formats, ", ")),
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := export.DefaultOptions()
			opts.OutputDir = outputDir
			opts.IncludeMetadata = !noMetadata
			opts.IncludeTimestamps = !noTimestamps

			exporter, err := export.ForFormat(format, opts)
			if err != nil {
				return &UsageError{Reason: err.Error()}
			}

			a, err := rt.openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := cmd.Context()
			conv, err := a.store.Lookup(ctx, args[0])
			if err != nil {
				return err
			}
			msgs, err := a.store.LoadTranscript(ctx, conv.ID)
			if err != nil {
				return err
			}

			path, err := export.ExportToFile(export.Document{Conversation: conv, Messages: msgs}, exporter, opts)
			if err != nil {
				return err
			}
			rt.log("cli").WithField("path", path).Info("conversation exported")
			fmt.Fprintf(cmd.OutOrStdout(), "%s Exported to %s\n", okMark(), color.CyanString(path))
			return nil
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "md", "output format ("+strings.Join(export.Formats, ", ")+")")
	cmd.Flags().StringVarP(&outputDir, "output", "o", ".", "output directory")
	cmd.Flags().BoolVar(&noMetadata, "no-metadata", false, "omit the Markdown front matter")
	cmd.Flags().BoolVar(&noTimestamps, "no-timestamps", false, "omit per-message times")
	return cmd
}

// printConversationList prints conversations grouped by day and numbered
// in list order. activeID is marked when non-empty.
func printConversationList(w io.Writer, convs []model.Conversation, activeID string, now time.Time) {
	if len(convs) == 0 {
		fmt.Fprintln(w, DimStyle.Render("No conversations yet."))
		return
	}

	n := 0
	for _, group := range model.GroupByDay(convs, now) {
		fmt.Fprintln(w, SectionStyle.Render(group.Label))
		for _, c := range group.Conversations {
			n++
			marker := " "
			if c.ID == activeID {
				marker = color.GreenString("*")
			}
			fmt.Fprintf(w, "%s %3d  %s  %s\n",
				marker, n,
				util.PadWidth(util.TruncateWidth(c.Title, 48), 48),
				DimStyle.Render(shortID(c.ID)))
		}
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
