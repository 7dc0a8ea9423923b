package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/fpang/claw-cam/internal/dataurl"
	"github.com/fpang/claw-cam/internal/photo"
	"github.com/fpang/claw-cam/internal/styles"
)

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "claw-cam",
		"version": s.opts.Version,
	})
}

func (s *Server) state(c *gin.Context) {
	c.JSON(http.StatusOK, s.booth.Snapshot())
}

func (s *Server) listPhotos(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"photos": s.booth.Photos()})
}

type snapRequest struct {
	Image        string `json:"image" binding:"required"`
	Mode         string `json:"mode"`
	CustomPrompt string `json:"customPrompt"`
	// Wait blocks until generation ends instead of answering 202 at once.
	Wait bool `json:"wait"`
}

// POST /api/photos
func (s *Server) snapPhoto(c *gin.Context) {
	var req snapRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "image is required")
		return
	}
	if req.Mode != "" {
		if err := s.booth.SetMode(req.Mode); err != nil {
			abortWithError(c, err)
			return
		}
	}
	if req.Mode == styles.Custom && req.CustomPrompt != "" {
		s.booth.SetCustomPrompt(req.CustomPrompt)
	}

	if !req.Wait {
		p, err := s.booth.StartSnap(req.Image)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"photo": p})
		return
	}

	p, err := s.booth.SnapPhoto(c.Request.Context(), req.Image)
	if err != nil {
		abortWithError(c, err)
		return
	}
	out, _ := s.booth.Output(p.ID)
	c.JSON(http.StatusOK, gin.H{"photo": p, "output": out})
}

// POST /api/photos/burst
func (s *Server) burst(c *gin.Context) {
	var req struct {
		Frames []string `json:"frames" binding:"required,min=1"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "frames are required")
		return
	}
	started, err := s.booth.StartBurst(req.Frames)
	if err != nil && len(started) == 0 {
		abortWithError(c, err)
		return
	}
	if err != nil {
		log.Warn().Err(err).Int("started", len(started)).Msg("Burst stopped early")
	}
	c.JSON(http.StatusAccepted, gin.H{"photos": started})
}

// DELETE /api/photos
func (s *Server) clearAll(c *gin.Context) {
	s.booth.ClearAll()
	c.Status(http.StatusNoContent)
}

// DELETE /api/photos/:id
func (s *Server) deletePhoto(c *gin.Context) {
	if !s.booth.DeletePhoto(c.Param("id")) {
		abortWithError(c, photo.ErrNotFound)
		return
	}
	c.Status(http.StatusNoContent)
}

// POST /api/photos/:id/cancel answers {"cancelled": false} for photos that
// were not generating; cancelling twice is not an error.
func (s *Server) cancelPhoto(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"cancelled": s.booth.CancelPhotoGeneration(c.Param("id"))})
}

// POST /api/photos/delete-selected
func (s *Server) deleteSelected(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"deleted": s.booth.DeleteSelected()})
}

func (s *Server) photoInput(c *gin.Context) {
	payload, ok := s.booth.Input(c.Param("id"))
	writeImage(c, c.Param("id"), payload, ok)
}

func (s *Server) photoOutput(c *gin.Context) {
	payload, ok := s.booth.Output(c.Param("id"))
	writeImage(c, c.Param("id"), payload, ok)
}

// writeImage answers with the decoded image, or with the data URL itself
// when ?format=dataurl.
func writeImage(c *gin.Context, id, payload string, ok bool) {
	if !ok {
		abortWithError(c, photo.ErrNotFound)
		return
	}
	if c.Query("format") == "dataurl" {
		c.JSON(http.StatusOK, gin.H{"id": id, "dataUrl": payload})
		return
	}
	mimeType, data, err := dataurl.Decode(payload)
	if err != nil {
		log.Warn().Err(err).Str("id", id).Msg("Stored payload is not decodable")
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "stored image is corrupt"})
		return
	}
	c.Header("Cache-Control", "private, max-age=3600")
	c.Data(http.StatusOK, mimeType, data)
}

// POST /api/photos/:id/favorite
func (s *Server) toggleFavorite(c *gin.Context) {
	on, err := s.booth.ToggleFavorite(c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": c.Param("id"), "favorite": on})
}

// POST /api/photos/:id/select
func (s *Server) toggleSelection(c *gin.Context) {
	on, err := s.booth.ToggleSelection(c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": c.Param("id"), "selected": on, "selection": s.booth.Selection()})
}

// DELETE /api/selection
func (s *Server) clearSelection(c *gin.Context) {
	s.booth.ClearSelection()
	c.Status(http.StatusNoContent)
}

func (s *Server) replayPhotos(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"photos": s.booth.ReplayPhotos()})
}
