package controllers

import (
	"errors"
	"net/http"
	"strconv"

	"sysaura/internal/logger"
	"sysaura/internal/services"

	"github.com/gin-gonic/gin"
)

// StatusFor maps service errors onto HTTP status codes.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, services.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrAccessDenied):
		return http.StatusForbidden
	case errors.Is(err, services.ErrInvalidInput), errors.Is(err, services.ErrMalformedMessage):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrAuthFailure):
		return http.StatusUnauthorized
	case errors.Is(err, services.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, services.ErrSamplerFailure):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// publicMessage is the error text a caller may see. 5xx details stay in the log.
func publicMessage(status int, err error) string {
	switch {
	case status == http.StatusServiceUnavailable:
		return "metrics unavailable"
	case status >= http.StatusInternalServerError:
		return "server error"
	}
	return err.Error()
}

// respondError writes the error body. Server-side failures are logged and
// hidden from the caller.
func respondError(c *gin.Context, log logger.Logger, err error) {
	status := StatusFor(err)
	switch {
	case status == http.StatusServiceUnavailable:
		log.Warn("%s %s: %v", c.Request.Method, c.Request.URL.Path, err)
	case status >= http.StatusInternalServerError:
		log.Error("%s %s: %v", c.Request.Method, c.Request.URL.Path, err)
	}
	c.JSON(status, gin.H{"error": publicMessage(status, err)})
}

// queryInt reads a non-negative integer query parameter.
func queryInt(c *gin.Context, name string, def int) (int, bool) {
	raw := c.Query(name)
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return n, true
}
