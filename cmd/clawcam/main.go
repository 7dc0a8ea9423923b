// Command clawcam drives the photo booth from a terminal. The gallery
// persists in the configured storage between invocations.
package main

import (
	"context"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/fpang/claw-cam/internal/bootstrap"
	"github.com/fpang/claw-cam/internal/cli"
	"github.com/fpang/claw-cam/internal/config"
	"github.com/fpang/claw-cam/internal/logging"
)

var (
	cfg   = config.FromEnv()
	booth *bootstrap.Booth
)

var rootCmd = &cobra.Command{
	Use:   "clawcam",
	Short: "Restyle photos with an image model, photo-booth style",
	Long: `clawcam sends captures to the configured image model with a style prompt,
keeps the results in a small gallery and exports them as animated GIFs.

Examples:
  clawcam snap selfie.jpg --mode comic
  clawcam snap --pick --out ./styled
  clawcam list
  clawcam gif -o booth.gif
  clawcam keys check`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		booth = cli.OpenBooth(cmd.Context(), cfg)
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if booth == nil {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := booth.Orchestrator.Shutdown(ctx); err != nil {
			log.Warn().Err(err).Msg("Booth shutdown incomplete")
		}
		if err := booth.Store.Close(ctx); err != nil {
			log.Warn().Err(err).Msg("Storage did not flush before exit")
		}
	},
}

func init() {
	logging.Init()
	cfg.BindFlags(rootCmd.PersistentFlags())
	rootCmd.AddCommand(snapCmd, listCmd, deleteCmd, clearCmd, favoriteCmd, selectCmd, gifCmd, stylesCmd, keysCmd)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
