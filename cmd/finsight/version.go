package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ternarybob/finsight/internal/common"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	// no configuration needed
	PersistentPreRun: func(cmd *cobra.Command, args []string) {},
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "FinSight version %s\n", common.GetFullVersion())
	},
}
