// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/embersai/embersd/services/orchestrator/handlers"
)

// buildVersion is set at link time via -ldflags "-X main.buildVersion=...".
var buildVersion = "dev"

var rootCmd = &cobra.Command{
	Use:   "embersd",
	Short: "embersd is the local-first AI assistant daemon",
	Long: `embersd runs one conversational turn at a time: it resolves
pronoun and ordinal references against recently-touched files, dispatches
at most one verified filesystem tool per turn, and routes everything else
to a local or cloud worker model behind a loopback HTTP API.`,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the embersd version",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Fprintln(cmd.OutOrStdout(), buildVersion)
		return nil
	},
}

func init() {
	handlers.Version = buildVersion
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
}
