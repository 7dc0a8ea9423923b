package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// POST /api/gif
func (s *Server) makeGIF(c *gin.Context) {
	var req struct {
		IDs []string `json:"ids"`
		// Delivery "url" uploads the GIF and answers with a link.
		Delivery string `json:"delivery"`
	}
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "invalid request body")
			return
		}
	}

	data, err := s.booth.MakeGIF(c.Request.Context(), req.IDs)
	if err != nil {
		abortWithError(c, err)
		return
	}

	if req.Delivery == "url" {
		if s.opts.Publisher == nil {
			badRequest(c, "url delivery is not configured")
			return
		}
		url, err := s.opts.Publisher.PublishGIF(c.Request.Context(), data)
		if err != nil {
			log.Error().Err(err).Msg("Failed to publish GIF")
			c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"error": "failed to publish GIF"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"url": url, "bytes": len(data)})
		return
	}

	c.Header("Content-Disposition", `attachment; filename="claw-cam.gif"`)
	c.Data(http.StatusOK, "image/gif", data)
}
