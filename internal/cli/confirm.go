// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// RequireConfirmation asks before a destructive action. The --yes flag
// skips the prompt; without it stdin must be a terminal.
func RequireConfirmation(in io.Reader, out io.Writer, yes, interactive bool, action string) (bool, error) {
	if yes {
		return true, nil
	}
	if !interactive {
		return false, usageErrorf("confirmation required but stdin is not a terminal; use --yes")
	}

	fmt.Fprintf(out, "Are you sure you want to %s? [y/N]: ", action)
	input, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && input == "" {
		return false, fmt.Errorf("failed to read confirmation: %w", err)
	}

	response := strings.ToLower(strings.TrimSpace(input))
	return response == "y" || response == "yes", nil
}
