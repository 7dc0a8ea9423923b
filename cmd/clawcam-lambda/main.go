// Command clawcam-lambda serves the booth's HTTP API behind API Gateway.
//
// Storage defaults to S3 payloads plus a DynamoDB settings table, and API
// keys come from SSM Parameter Store when not set in the environment.
// POST /api/gif accepts {"delivery":"url"} to return a presigned S3 link
// instead of the GIF body, which keeps large exports under the response
// payload limit.
package main

import (
	"context"
	"os"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/awslabs/aws-lambda-go-api-proxy/httpadapter"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/fpang/claw-cam/internal/bootstrap"
	"github.com/fpang/claw-cam/internal/config"
	"github.com/fpang/claw-cam/internal/logging"
	"github.com/fpang/claw-cam/internal/server"
)

var (
	commitHash = "dev"
	buildTime  = "unknown"
)

var adapter *httpadapter.HandlerAdapterV2

func init() {
	initStart := time.Now()
	logging.Init()
	gin.SetMode(gin.ReleaseMode)

	cfg := config.FromEnv()
	if os.Getenv("CLAWCAM_STORAGE") == "" {
		cfg.Storage = config.StorageAWS
	}
	if cfg.SSMKeysParam == "" {
		cfg.SSMKeysParam = "/claw-cam/prod/gemini-api-keys"
	}

	booth, err := bootstrap.NewBooth(context.Background(), cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to start the booth")
	}

	originSecret := os.Getenv("ORIGIN_VERIFY_SECRET")
	if originSecret == "" {
		log.Warn().Msg("ORIGIN_VERIFY_SECRET not set, origin verification disabled")
	}
	opts := server.Options{
		OriginSecret: originSecret,
		Flusher:      booth.Store,
		Version:      commitHash,
	}
	if booth.Exporter != nil {
		opts.Publisher = booth.Exporter
	}
	adapter = httpadapter.NewV2(server.New(booth.Orchestrator, opts))

	booth.StartupLog("clawcam-lambda", initStart).
		Version(commitHash+"@"+buildTime).
		Feature("originVerify", originSecret != "").
		Log()
}

func main() {
	lambda.Start(adapter.ProxyWithContext)
}
