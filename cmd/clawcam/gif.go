package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fpang/claw-cam/internal/cli"
	"github.com/fpang/claw-cam/internal/filehandler"
)

var (
	gifOut      string
	gifSelected bool
	gifUpload   bool
)

var gifCmd = &cobra.Command{
	Use:   "gif [id...]",
	Short: "Export completed photos as an animated GIF",
	Long: `gif assembles up to five completed photos. Without ids it uses the most
recent ones, oldest first; --selected uses the selection in order.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		o := booth.Orchestrator
		ids := args
		if gifSelected {
			ids = o.Selection()
		}
		data, err := o.MakeGIF(cmd.Context(), ids)
		if err != nil {
			return err
		}

		if gifUpload {
			if booth.Exporter == nil {
				return errors.New("--upload needs CLAWCAM_S3_BUCKET")
			}
			url, err := booth.Exporter.PublishGIF(cmd.Context(), data)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), url)
			return nil
		}

		if err := filehandler.WriteFile(gifOut, data); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s (%s)\n", gifOut, cli.FormatBytes(len(data)))
		return nil
	},
}

func init() {
	gifCmd.Flags().StringVarP(&gifOut, "out", "o", "claw-cam.gif", "output file")
	gifCmd.Flags().BoolVar(&gifSelected, "selected", false, "use the selected photos in selection order")
	gifCmd.Flags().BoolVar(&gifUpload, "upload", false, "upload to S3 and print a presigned link")
}
