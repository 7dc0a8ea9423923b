package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var stylesCmd = &cobra.Command{
	Use:   "styles",
	Short: "List style ids for snap --mode",
	Run: func(cmd *cobra.Command, args []string) {
		o := booth.Orchestrator
		current := o.Snapshot().Mode
		for _, s := range o.Catalog().All() {
			marker := " "
			if s.ID == current {
				marker = "*"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s %-14s %s\n", marker, s.Emoji, s.ID, s.Name)
		}
	},
}
