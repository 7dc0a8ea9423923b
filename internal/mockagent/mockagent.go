// Package mockagent is a loopback image-editing agent for local runs: it
// accepts the agent provider's {prompt, image} request and answers with the
// input image unchanged.
package mockagent

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

const (
	// Path is the route the agent listens on.
	Path = "/agent-run"
	// DefaultPort is used when OPENCLAW_MOCK_PORT is unset.
	DefaultPort = "8787"
)

type runRequest struct {
	Prompt *string `json:"prompt"`
	Image  *string `json:"image"`
}

// Handler returns the gin engine serving POST /agent-run.
func Handler() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Next()
	})
	router.POST(Path, run)
	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
	})
	return router
}

func run(c *gin.Context) {
	var req runRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Image == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing image"})
		return
	}

	image := *req.Image
	if !strings.HasPrefix(image, "data:image/") {
		image = "data:image/jpeg;base64," + image
	}
	var prompt any
	if req.Prompt != nil && *req.Prompt != "" {
		prompt = *req.Prompt
	}

	log.Debug().Int("bytes", len(image)).Msg("Mock agent echoing image")
	c.JSON(http.StatusOK, gin.H{
		"image":  image,
		"prompt": prompt,
		"status": "ok",
	})
}
