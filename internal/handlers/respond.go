// Package handlers exposes the REST API over the domain services.
package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"propertyhub/internal/apperr"
)

// respondError writes err with the status its kind maps to. Unclassified
// errors are logged and hidden from the client.
func respondError(c *gin.Context, logger *zap.Logger, err error) {
	status := apperr.HTTPStatus(err)
	if status == http.StatusInternalServerError {
		logger.Error("request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
	}
	c.JSON(status, gin.H{"error": apperr.Public(err)})
}

// paramID parses a positive numeric path parameter
func paramID(c *gin.Context, name string) (uint, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("%w: invalid %s %q", apperr.ErrValidation, name, c.Param(name))
	}
	return uint(id), nil
}

// queryInt reads an integer query parameter, falling back to def
func queryInt(c *gin.Context, name string, def int) int {
	v, err := strconv.Atoi(c.DefaultQuery(name, strconv.Itoa(def)))
	if err != nil {
		return def
	}
	return v
}
