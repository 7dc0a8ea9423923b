// Command clawcam-server runs the booth's HTTP API on a local listener.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/fpang/claw-cam/internal/cli"
	"github.com/fpang/claw-cam/internal/config"
	"github.com/fpang/claw-cam/internal/logging"
	"github.com/fpang/claw-cam/internal/server"
)

var (
	cfg          = config.FromEnv()
	originSecret string
)

var rootCmd = &cobra.Command{
	Use:   "clawcam-server",
	Short: "HTTP API for the Claw Cam photo booth",
	Long: `clawcam-server serves the booth over HTTP: capture frames, restyle them
with the configured image model, manage the gallery and export GIFs.

Examples:
  clawcam-server
  clawcam-server --storage none --provider agent --agent-endpoint http://localhost:8787/agent-run
  clawcam-server --max-concurrent 4 --timeout 90s`,
	Run: runMain,
}

func init() {
	logging.Init()
	cfg.BindFlags(rootCmd.Flags())
	rootCmd.Flags().StringVar(&cfg.ListenAddr, "addr", cfg.ListenAddr, "listen address")
	rootCmd.Flags().StringVar(&originSecret, "origin-secret", os.Getenv("ORIGIN_VERIFY_SECRET"), "required x-origin-verify header value")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runMain(cmd *cobra.Command, args []string) {
	initStart := time.Now()
	gin.SetMode(gin.ReleaseMode)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	booth := cli.OpenBooth(ctx, cfg)
	handler := server.New(booth.Orchestrator, server.Options{
		OriginSecret: originSecret,
		LocalCORS:    true,
		Version:      commitHash,
	})

	srv := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.Timeout + 30*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	booth.StartupLog("clawcam-server", initStart).
		Version(commitHash+"@"+buildTime).
		Config("addr", cfg.ListenAddr).
		Feature("originVerify", originSecret != "").
		Log()

	go func() {
		<-ctx.Done()
		log.Info().Msg("Shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("HTTP shutdown incomplete")
		}
		if err := booth.Orchestrator.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("Booth shutdown incomplete")
		}
		if err := booth.Store.Close(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("Storage did not flush before exit")
		}
	}()

	fmt.Printf("\n  Claw Cam API: http://localhost%s/api/health\n\n", cfg.ListenAddr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("Server failed")
	}
	<-ctx.Done()
}
