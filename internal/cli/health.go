// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/jeranaias/counsellor/internal/health"
)

func newHealthCommand(rt *runtime) *cobra.Command {
	var (
		wait        bool
		waitTimeout time.Duration
	)
	cmd := &cobra.Command{
		Use:     "health",
		Aliases: []string{"status"},
		Short:   "Check whether the counsellor service is up",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := rt.openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := cmd.Context()
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s %s\n", RenderLabel("Service:"), color.CyanString(a.client.BaseURL()))

			signedIn := okMark() + " signed in"
			if !a.client.SignedIn(ctx) {
				signedIn = warnMark() + " not signed in"
			}
			fmt.Fprintf(out, "%s %s\n", RenderLabel("Account:"), signedIn)

			start := time.Now()
			if wait {
				if err := waitReady(ctx, a, waitTimeout, cmd.ErrOrStderr()); err != nil {
					fmt.Fprintf(out, "%s %s waking up\n", RenderLabel("Status:"), failMark())
					return err
				}
			} else if a.prober.Probe(ctx) != health.Ready {
				fmt.Fprintf(out, "%s %s %s\n", RenderLabel("Status:"), warnMark(), health.WakingMessage)
				return errBackendWaking
			}

			fmt.Fprintf(out, "%s %s ready %s\n", RenderLabel("Status:"), okMark(),
				DimStyle.Render(fmt.Sprintf("(%s)", time.Since(start).Round(time.Millisecond))))
			return nil
		},
	}
	cmd.Flags().BoolVarP(&wait, "wait", "w", false, "keep checking until the service is up")
	cmd.Flags().DurationVar(&waitTimeout, "wait-timeout", 3*time.Minute, "how long --wait waits")
	return cmd
}
