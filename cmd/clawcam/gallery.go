package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/fpang/claw-cam/internal/cli"
	"github.com/fpang/claw-cam/internal/photo"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Show the gallery, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		o := booth.Orchestrator
		photos := o.Photos()
		if len(photos) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "Gallery is empty.")
			return nil
		}
		return cli.WritePhotoTable(cmd.OutOrStdout(), photos, o.Favorites(), o.Selection(), time.Now())
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <id>...",
	Short: "Delete photos",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, id := range args {
			if !booth.Orchestrator.DeletePhoto(id) {
				return fmt.Errorf("%w: %s", photo.ErrNotFound, id)
			}
		}
		return nil
	},
}

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every photo and reset favorites and selection",
	Run: func(cmd *cobra.Command, args []string) {
		booth.Orchestrator.ClearAll()
		fmt.Fprintln(cmd.OutOrStdout(), "Gallery cleared.")
	},
}

var favoriteCmd = &cobra.Command{
	Use:   "favorite <id>",
	Short: "Toggle a photo's favorite flag",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		on, err := booth.Orchestrator.ToggleFavorite(args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s favorite: %v\n", args[0], on)
		return nil
	},
}

var selectCmd = &cobra.Command{
	Use:   "select <id>",
	Short: "Toggle a photo's selection (selection order is GIF and replay order)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		on, err := booth.Orchestrator.ToggleSelection(args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s selected: %v\n", args[0], on)
		return nil
	},
}
