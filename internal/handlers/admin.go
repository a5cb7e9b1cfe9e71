package handlers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"propertyhub/internal/apperr"
	"propertyhub/internal/auth"
	"propertyhub/internal/cache"
	"propertyhub/internal/cleanup"
	"propertyhub/internal/listing"
	"propertyhub/internal/properties"
	"propertyhub/internal/snapshot"
	"propertyhub/internal/users"
)

// maintenanceTimeout bounds a manually triggered maintenance job
const maintenanceTimeout = 10 * time.Minute

// Maintenance runs the scheduled jobs on demand
type Maintenance interface {
	RunReindex(ctx context.Context) error
	RenewTokens(ctx context.Context) error
}

// AdminHandler handles admin-related requests
type AdminHandler struct {
	query           *properties.Query
	listings        *listing.Service
	snapshotService *snapshot.Service
	cleanupService  *cleanup.Service
	users           *users.Service
	maintenance     Maintenance
	cache           *cache.PropertyCache
	logger          *zap.Logger
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(
	query *properties.Query,
	listings *listing.Service,
	snapshotService *snapshot.Service,
	cleanupService *cleanup.Service,
	us *users.Service,
	maintenance Maintenance,
	c *cache.PropertyCache,
	logger *zap.Logger,
) *AdminHandler {
	return &AdminHandler{
		query:           query,
		listings:        listings,
		snapshotService: snapshotService,
		cleanupService:  cleanupService,
		users:           us,
		maintenance:     maintenance,
		cache:           c,
		logger:          logger.Named("http.admin"),
	}
}

// GetStats returns review queue and deletion statistics
func (h *AdminHandler) GetStats(c *gin.Context) {
	ctx := c.Request.Context()
	pending, err := h.query.Pending(ctx, auth.Actor(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	stats := gin.H{"pending_properties": len(pending)}
	deleteStats, err := h.cleanupService.GetDeleteStats(ctx)
	if err != nil {
		h.logger.Warn("failed to get delete stats", zap.Error(err))
	} else {
		stats["deletions"] = deleteStats
	}
	c.JSON(http.StatusOK, stats)
}

// PendingProperties lists listings awaiting approval
func (h *AdminHandler) PendingProperties(c *gin.Context) {
	list, err := h.query.Pending(c.Request.Context(), auth.Actor(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"properties": list, "count": len(list)})
}

// ApproveProperty publishes a pending listing
func (h *AdminHandler) ApproveProperty(c *gin.Context) {
	id, err := paramID(c, "id")
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	ctx := c.Request.Context()
	actor := auth.Actor(c)

	existing, err := h.query.Get(ctx, id, actor)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	updated, err := h.listings.Approve(ctx, existing, actor)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	h.cache.Invalidate(id)
	c.JSON(http.StatusOK, updated)
}

// PinProperty promotes or demotes a listing on the home page
func (h *AdminHandler) PinProperty(c *gin.Context) {
	id, err := paramID(c, "id")
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	var req struct {
		Pinned *bool `json:"pinned"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Pinned == nil {
		respondError(c, h.logger, fmt.Errorf("%w: pinned is required", apperr.ErrValidation))
		return
	}
	ctx := c.Request.Context()
	actor := auth.Actor(c)

	existing, err := h.query.Get(ctx, id, actor)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	updated, err := h.listings.SetPinned(ctx, existing, *req.Pinned, actor)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	h.cache.Invalidate(id)
	c.JSON(http.StatusOK, updated)
}

// RemoveProperty physically deletes a listing. The body is optional.
func (h *AdminHandler) RemoveProperty(c *gin.Context) {
	id, err := paramID(c, "id")
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	var opts cleanup.Options
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&opts); err != nil {
			respondError(c, h.logger, fmt.Errorf("%w: invalid request body: %v", apperr.ErrValidation, err))
			return
		}
	}
	if c.Query("dry_run") == "true" {
		opts.DryRun = true
	}

	result, err := h.cleanupService.Remove(c.Request.Context(), id, auth.Actor(c), opts)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if !result.DryRun {
		h.cache.Invalidate(id)
	}
	c.JSON(http.StatusOK, result)
}

// GetDeleteLogs returns recent delete log entries
func (h *AdminHandler) GetDeleteLogs(c *gin.Context) {
	logs, err := h.cleanupService.GetRecentDeleteLogs(c.Request.Context(), queryInt(c, "limit", 100))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"logs":  logs,
		"count": len(logs),
	})
}

// GetPropertyHistory returns change history for a property
func (h *AdminHandler) GetPropertyHistory(c *gin.Context) {
	id, err := paramID(c, "id")
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	changes, err := h.snapshotService.GetPropertyHistory(c.Request.Context(), id, queryInt(c, "limit", 30))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"property_id": id,
		"changes":     changes,
		"count":       len(changes),
	})
}

// GetRecentChanges returns recent property changes
func (h *AdminHandler) GetRecentChanges(c *gin.Context) {
	changes, err := h.snapshotService.GetRecentChanges(c.Request.Context(), queryInt(c, "limit", 100))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"changes": changes,
		"count":   len(changes),
	})
}

// MakeAdmin grants administrator rights to a user
func (h *AdminHandler) MakeAdmin(c *gin.Context) {
	id, err := paramID(c, "id")
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	user, err := h.users.MakeAdmin(c.Request.Context(), auth.Actor(c), id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// TriggerReindex rebuilds the search index in the background
func (h *AdminHandler) TriggerReindex(c *gin.Context) {
	h.runInBackground(c, "search_reindex", h.maintenance.RunReindex)
}

// TriggerTokenRenewal refreshes the social feed tokens in the background
func (h *AdminHandler) TriggerTokenRenewal(c *gin.Context) {
	h.runInBackground(c, "social_token_renewal", h.maintenance.RenewTokens)
}

func (h *AdminHandler) runInBackground(c *gin.Context, job string, run func(ctx context.Context) error) {
	h.logger.Info("manual job trigger requested", zap.String("job", job), zap.Uint("user_id", auth.Actor(c).UserID))

	// Run in goroutine to avoid blocking
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), maintenanceTimeout)
		defer cancel()
		if err := run(ctx); err != nil {
			h.logger.Error("manual job failed", zap.String("job", job), zap.Error(err))
			return
		}
		h.logger.Info("manual job completed", zap.String("job", job))
	}()

	c.JSON(http.StatusAccepted, gin.H{
		"message": job + " started",
		"status":  "running",
	})
}
