package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fpang/claw-cam/internal/styles"
)

func (s *Server) listStyles(c *gin.Context) {
	snap := s.booth.Snapshot()
	c.JSON(http.StatusOK, gin.H{
		"styles":       s.booth.Catalog().All(),
		"mode":         snap.Mode,
		"customPrompt": snap.CustomPrompt,
	})
}

// PUT /api/mode
func (s *Server) setMode(c *gin.Context) {
	var req struct {
		Mode         string  `json:"mode" binding:"required"`
		CustomPrompt *string `json:"customPrompt"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "mode is required")
		return
	}
	if err := s.booth.SetMode(req.Mode); err != nil {
		abortWithError(c, err)
		return
	}
	if req.CustomPrompt != nil {
		s.booth.SetCustomPrompt(*req.CustomPrompt)
	}
	snap := s.booth.Snapshot()
	resp := gin.H{"mode": snap.Mode}
	if snap.Mode == styles.Custom {
		resp["customPrompt"] = snap.CustomPrompt
	}
	c.JSON(http.StatusOK, resp)
}

type toggleRequest struct {
	Enabled bool `json:"enabled"`
}

// PUT /api/live
func (s *Server) setLive(c *gin.Context) {
	var req toggleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	s.booth.SetLiveMode(req.Enabled)
	c.JSON(http.StatusOK, gin.H{"liveMode": req.Enabled, "autoCaptureInterval": s.booth.Settings().AutoCaptureInterval})
}

// PUT /api/replay
func (s *Server) setReplay(c *gin.Context) {
	var req toggleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	s.booth.SetReplayMode(req.Enabled)
	c.JSON(http.StatusOK, gin.H{"replayMode": req.Enabled, "photos": s.booth.ReplayPhotos()})
}

func (s *Server) settingsResponse() gin.H {
	snap := s.booth.Snapshot()
	return gin.H{
		"settings":  snap.Settings,
		"apiKeys":   snap.APIKeys,
		"providers": s.booth.Providers(),
	}
}

func (s *Server) getSettings(c *gin.Context) {
	c.JSON(http.StatusOK, s.settingsResponse())
}

// settingsUpdate carries only the fields a PUT changes.
type settingsUpdate struct {
	Provider            *string   `json:"provider"`
	APIURL              *string   `json:"apiUrl"`
	Model               *string   `json:"model"`
	APIKeys             *[]string `json:"apiKeys"`
	AutoCaptureInterval *int      `json:"autoCaptureInterval"`
	BurstCount          *int      `json:"burstCount"`
}

// PUT /api/settings
func (s *Server) putSettings(c *gin.Context) {
	var req settingsUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	if req.Provider != nil {
		if err := s.booth.SetProvider(*req.Provider); err != nil {
			badRequest(c, err.Error())
			return
		}
	}
	if req.APIKeys != nil {
		if err := s.booth.SetAPIKeys(*req.APIKeys); err != nil {
			badRequest(c, err.Error())
			return
		}
	}
	if req.APIURL != nil {
		s.booth.SetAPIURL(*req.APIURL)
	}
	if req.Model != nil {
		s.booth.SetModel(*req.Model)
	}
	if req.AutoCaptureInterval != nil {
		s.booth.SetAutoCaptureInterval(*req.AutoCaptureInterval)
	}
	if req.BurstCount != nil {
		s.booth.SetBurstCount(*req.BurstCount)
	}
	c.JSON(http.StatusOK, s.settingsResponse())
}

func (s *Server) listNotices(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"notices": s.booth.Notices().List()})
}

func (s *Server) dismissNotice(c *gin.Context) {
	s.booth.Notices().Dismiss(c.Param("id"))
	c.Status(http.StatusNoContent)
}
