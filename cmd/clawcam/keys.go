package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fpang/claw-cam/internal/auth"
	"github.com/fpang/claw-cam/internal/cli"
)

var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Manage the API key slots",
}

var keysCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate every configured key with a minimal request",
	RunE: func(cmd *cobra.Command, args []string) error {
		keys := booth.Client.Keys().Keys()
		if len(keys) == 0 {
			return errors.New("no API keys configured")
		}
		statuses := auth.ValidateKeys(cmd.Context(), keys, booth.Orchestrator.Settings().APIURL)
		if cli.WriteKeyReport(cmd.OutOrStdout(), statuses) == 0 {
			return errors.New("no usable API keys")
		}
		return nil
	},
}

var keysSetCmd = &cobra.Command{
	Use:   "set <key>...",
	Short: "Replace the stored key slots (up to five)",
	Args:  cobra.RangeArgs(0, 5),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := booth.Orchestrator.SetAPIKeys(args); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%d key slot(s) stored\n", booth.Client.Keys().Len())
		return nil
	},
}

func init() {
	keysCmd.AddCommand(keysCheckCmd, keysSetCmd)
}
