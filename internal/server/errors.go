package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fpang/claw-cam/internal/generation"
	"github.com/fpang/claw-cam/internal/gifmaker"
	"github.com/fpang/claw-cam/internal/photo"
)

// statusFor maps a booth error to an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, photo.ErrInvalidInput), errors.Is(err, photo.ErrUnknownMode):
		return http.StatusBadRequest
	case errors.Is(err, photo.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, photo.ErrPhotoRemoved):
		return http.StatusConflict
	case errors.Is(err, gifmaker.ErrEncoding):
		return http.StatusUnprocessableEntity
	}
	switch generation.KindOf(err) {
	case generation.KindConfig:
		return http.StatusUnprocessableEntity
	case generation.KindRateLimited:
		return http.StatusTooManyRequests
	case generation.KindTimeout:
		return http.StatusGatewayTimeout
	case generation.KindCancelled:
		return http.StatusConflict
	case generation.KindProvider, generation.KindInvalidResponse:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// abortWithError writes err as {"error","kind?"}.
func abortWithError(c *gin.Context, err error) {
	body := gin.H{"error": err.Error()}
	if kind := generation.KindOf(err); kind != generation.KindUnknown {
		body["kind"] = kind.String()
	}
	c.AbortWithStatusJSON(statusFor(err), body)
}

func badRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": msg})
}
