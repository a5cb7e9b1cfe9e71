package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"propertyhub/internal/storage"
)

// MediaStore opens stored images
type MediaStore interface {
	Open(ctx context.Context, key string) (*storage.File, error)
}

// MediaHandler serves listing images
type MediaHandler struct {
	store  MediaStore
	logger *zap.Logger
}

// NewMediaHandler creates a media handler
func NewMediaHandler(store MediaStore, logger *zap.Logger) *MediaHandler {
	return &MediaHandler{store: store, logger: logger.Named("http.media")}
}

// Get streams one image. Object ids never change content, so responses
// are cacheable for a long time.
func (h *MediaHandler) Get(c *gin.Context) {
	f, err := h.store.Open(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.Header("Cache-Control", "public, max-age=31536000, immutable")
	c.Data(http.StatusOK, http.DetectContentType(f.Data), f.Data)
}
