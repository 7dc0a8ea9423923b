package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/fpang/claw-cam/internal/cli"
	"github.com/fpang/claw-cam/internal/filehandler"
	"github.com/fpang/claw-cam/internal/styles"
)

var (
	snapMode   string
	snapPrompt string
	snapOut    string
	snapPick   bool
	snapDir    string
)

var snapCmd = &cobra.Command{
	Use:   "snap [capture...]",
	Short: "Restyle one or more captures",
	Long: `snap sends each capture to the image model and writes the styled result
to --out. Without arguments it opens a file picker (--pick) or asks for a path.`,
	RunE: runSnap,
}

func init() {
	snapCmd.Flags().StringVar(&snapMode, "mode", "", "style id (see 'clawcam styles'); keeps the current mode when empty")
	snapCmd.Flags().StringVar(&snapPrompt, "prompt", "", "instruction for --mode custom")
	snapCmd.Flags().StringVarP(&snapOut, "out", "o", ".", "directory for styled images")
	snapCmd.Flags().BoolVar(&snapPick, "pick", false, "choose captures with the native file dialog")
	snapCmd.Flags().StringVarP(&snapDir, "directory", "d", "", "restyle every image in this directory")
}

func runSnap(cmd *cobra.Command, args []string) error {
	paths, err := capturePaths(cmd, args)
	if err != nil {
		return err
	}

	o := booth.Orchestrator
	if snapPrompt != "" && snapMode == "" {
		snapMode = styles.Custom
	}
	if snapMode != "" {
		if err := o.SetMode(snapMode); err != nil {
			return err
		}
	}
	if snapPrompt != "" {
		o.SetCustomPrompt(snapPrompt)
	}

	g, ctx := errgroup.WithContext(cmd.Context())
	for _, path := range paths {
		g.Go(func() error {
			c, err := filehandler.LoadCapture(path)
			if err != nil {
				return err
			}
			start := time.Now()
			p, err := o.SnapPhoto(ctx, c.DataURL)
			if err != nil {
				return fmt.Errorf("%s: %w", filepath.Base(path), err)
			}
			out, _ := o.Output(p.ID)
			saved, err := filehandler.SaveImage(out, filepath.Join(snapOut, p.ID))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s  %-12s  %6s  %s\n", p.ID, p.Mode, cli.FormatDurationShort(time.Since(start)), saved)
			return nil
		})
	}
	err = g.Wait()
	for _, n := range o.Notices().List() {
		log.Warn().Str("kind", string(n.Kind)).Str("detail", n.Detail).Msg(n.Message)
	}
	return err
}

func capturePaths(cmd *cobra.Command, args []string) ([]string, error) {
	switch {
	case len(args) > 0:
		return args, nil
	case snapDir != "":
		paths, err := filehandler.ScanCaptures(cli.ValidateAndResolveDirectory(snapDir), 0)
		if err != nil {
			return nil, err
		}
		if len(paths) == 0 {
			return nil, fmt.Errorf("no images in %s", snapDir)
		}
		return paths, nil
	case snapPick:
		paths, err := cli.PickCaptures()
		if errors.Is(err, cli.ErrCanceled) {
			return nil, errors.New("no captures selected")
		}
		return paths, err
	}
	path := cli.PromptForPath(os.Stdin, cmd.OutOrStdout(), "Capture", "")
	if path == "" {
		return nil, errors.New("a capture path is required")
	}
	return []string{path}, nil
}
