// Command mock-agent runs a loopback image-editing agent on localhost for
// trying the agent provider without a real agent:
//
//	OPENCLAW_MOCK_PORT=8787 mock-agent
//	clawcam-server --provider agent --agent-endpoint http://localhost:8787/agent-run
package main

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/fpang/claw-cam/internal/logging"
	"github.com/fpang/claw-cam/internal/mockagent"
)

func main() {
	logging.Init()
	gin.SetMode(gin.ReleaseMode)

	port := logging.EnvOrDefault("OPENCLAW_MOCK_PORT", mockagent.DefaultPort)
	srv := &http.Server{
		Addr:              "127.0.0.1:" + port,
		Handler:           mockagent.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	fmt.Printf("[mock-agent] listening on http://localhost:%s%s\n", port, mockagent.Path)
	fmt.Println("[mock-agent] accepts: POST /agent-run with { prompt, image }")
	if err := srv.ListenAndServe(); err != nil {
		log.Fatal().Err(err).Msg("Mock agent failed")
	}
}
