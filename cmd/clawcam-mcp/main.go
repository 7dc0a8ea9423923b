// Command clawcam-mcp serves the booth's MCP tools over stdio.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/fpang/claw-cam/internal/cli"
	"github.com/fpang/claw-cam/internal/config"
	"github.com/fpang/claw-cam/internal/logging"
	"github.com/fpang/claw-cam/internal/mcptools"
)

var (
	commitHash = "dev"
	cfg        = config.FromEnv()
)

var rootCmd = &cobra.Command{
	Use:   "clawcam-mcp",
	Short: "MCP server exposing the Claw Cam booth as tools",
	Long: `clawcam-mcp speaks the Model Context Protocol on stdin/stdout. Logs go to
stderr so they never corrupt the protocol stream.

Tools: snap_photo, list_photos, delete_photo, make_gif, list_styles`,
	Run: runMain,
}

func init() {
	logging.Init()
	cfg.BindFlags(rootCmd.Flags())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runMain(cmd *cobra.Command, args []string) {
	initStart := time.Now()
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	booth := cli.OpenBooth(ctx, cfg)
	booth.StartupLog("clawcam-mcp", initStart).Version(commitHash).Log()

	server := mcptools.NewServer(booth.Orchestrator, commitHash)
	runErr := server.Run(ctx, &mcp.StdioTransport{})

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := booth.Orchestrator.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("Booth shutdown incomplete")
	}
	if err := booth.Store.Close(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("Storage did not flush before exit")
	}
	if runErr != nil && ctx.Err() == nil {
		log.Fatal().Err(runErr).Msg("MCP server failed")
	}
}
