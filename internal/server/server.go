// Package server exposes the booth over HTTP with gin. The same engine runs
// behind a local listener and behind API Gateway in the Lambda binary.
//
// Endpoints:
//
//	GET    /api/health
//	GET    /api/state                    full snapshot (keys masked)
//	GET    /api/photos                   gallery, newest first
//	POST   /api/photos                   capture {"image","mode?","wait?"}
//	POST   /api/photos/burst             capture {"frames":[...]}
//	DELETE /api/photos                   clear everything
//	DELETE /api/photos/:id               delete one photo
//	POST   /api/photos/:id/cancel        cancel a pending generation
//	GET    /api/photos/:id/input         captured frame
//	GET    /api/photos/:id/output        generated image
//	POST   /api/photos/:id/favorite      toggle favorite
//	POST   /api/photos/:id/select        toggle selection
//	POST   /api/photos/delete-selected   delete the selection
//	DELETE /api/selection                clear the selection
//	GET    /api/replay                   replay slideshow set
//	GET    /api/styles                   style catalog
//	PUT    /api/mode                     {"mode","customPrompt?"}
//	PUT    /api/live                     {"enabled"}
//	PUT    /api/replay                   {"enabled"}
//	GET    /api/settings
//	PUT    /api/settings
//	POST   /api/gif                      {"ids?","delivery?"} -> image/gif or {"url"}
//	GET    /api/notices
//	DELETE /api/notices/:id
package server

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/fpang/claw-cam/internal/photo"
)

// Publisher hands out a link to an uploaded GIF.
type Publisher interface {
	PublishGIF(ctx context.Context, data []byte) (string, error)
}

// Flusher drains pending durable writes.
type Flusher interface {
	Flush(ctx context.Context) error
}

// Options configures the HTTP surface.
type Options struct {
	// OriginSecret, when set, is required in the x-origin-verify header.
	OriginSecret string
	// Publisher enables {"delivery":"url"} on POST /api/gif.
	Publisher Publisher
	// Flusher, when set, is flushed after every mutating request. The
	// Lambda binary sets it so writes land before the runtime freezes.
	Flusher Flusher
	// LocalCORS admits browser front ends on localhost ports.
	LocalCORS bool
	Version   string
}

// Server holds the handlers' dependencies.
type Server struct {
	booth *photo.Orchestrator
	opts  Options
}

// New builds the gin engine for booth.
func New(booth *photo.Orchestrator, opts Options) *gin.Engine {
	s := &Server{booth: booth, opts: opts}

	router := gin.New()
	router.Use(requestLogger())
	router.Use(gin.CustomRecovery(handlePanics()))
	router.Use(requestMetrics())
	if opts.LocalCORS {
		router.Use(localCORS())
	}
	if opts.Flusher != nil {
		router.Use(flushWrites(opts.Flusher))
	}

	router.GET("/api/health", s.health)

	api := router.Group("/api")
	api.Use(originVerify(opts.OriginSecret))
	{
		api.GET("/state", s.state)

		photos := api.Group("/photos")
		photos.GET("", s.listPhotos)
		photos.POST("", s.snapPhoto)
		photos.POST("/burst", s.burst)
		photos.DELETE("", s.clearAll)
		photos.POST("/delete-selected", s.deleteSelected)
		photos.DELETE("/:id", s.deletePhoto)
		photos.POST("/:id/cancel", s.cancelPhoto)
		photos.GET("/:id/input", s.photoInput)
		photos.GET("/:id/output", s.photoOutput)
		photos.POST("/:id/favorite", s.toggleFavorite)
		photos.POST("/:id/select", s.toggleSelection)

		api.DELETE("/selection", s.clearSelection)
		api.GET("/replay", s.replayPhotos)

		api.GET("/styles", s.listStyles)
		api.PUT("/mode", s.setMode)
		api.PUT("/live", s.setLive)
		api.PUT("/replay", s.setReplay)

		api.GET("/settings", s.getSettings)
		api.PUT("/settings", s.putSettings)

		api.POST("/gif", s.makeGIF)

		api.GET("/notices", s.listNotices)
		api.DELETE("/notices/:id", s.dismissNotice)
	}
	return router
}
