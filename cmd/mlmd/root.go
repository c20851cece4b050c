// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stirlingmouse/mlm/internal/buildinfo"
)

// newRootCmd builds the mlmd command tree, grounded on the teacher's
// cmd/qui/db_command.go cobra construction idiom (sub-commands added via
// AddCommand, flags bound with cmd.Flags()).
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "mlmd",
		Short:         "mlmd grabs, downloads, links, and reconciles audiobook torrents against a tracker and library",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(newServeCommand())
	cmd.AddCommand(newVersionCommand())

	return cmd
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		RunE: func(cmd *cobra.Command, _ []string) error {
			fmt.Fprint(cmd.OutOrStdout(), buildinfo.String())
			return nil
		},
	}
}
