package app

import (
	"errors"
	"github.com/gin-gonic/gin"
	"github.com/tezoscommons/geopin/internal/geopin/pinkey"
	"github.com/tezoscommons/geopin/internal/geopin/registry"
)

func errorBody(msg string) gin.H {
	return gin.H{"error": msg}
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, registry.ErrPinNotFound):
		return 404
	case errors.Is(err, registry.ErrNotAuthorized):
		return 403
	case errors.Is(err, registry.ErrPinLocked), errors.Is(err, registry.ErrPinNotLocked):
		return 409
	case errors.Is(err, registry.ErrInvalidFileHash),
		errors.Is(err, pinkey.ErrInvalidKey),
		errors.Is(err, pinkey.ErrSentinelTimestamp):
		return 400
	case errors.Is(err, registry.ErrKeySpaceExhausted):
		return 507
	}
	return 500
}

func (a *API) fail(c *gin.Context, err error) {
	status := statusFor(err)
	if status == 500 {
		a.log.WithError(err).WithField("path", c.FullPath()).Error("request failed")
	}
	c.JSON(status, errorBody(err.Error()))
}
