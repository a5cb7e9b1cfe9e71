package cleanup

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"propertyhub/internal/apperr"
	"propertyhub/internal/approval"
	"propertyhub/internal/models"
	"propertyhub/internal/sideeffect"
)

// Store is the persistence a removal needs
type Store interface {
	FindPropertyByID(ctx context.Context, id uint) (*models.Property, error)
	CountDependents(ctx context.Context, propertyID uint) (bookings, favorites int64, err error)
	// DeletePropertyCascade deletes the property, its bookings, favorite
	// links and images and inserts entry in one transaction, filling the
	// removed counts on entry
	DeletePropertyCascade(ctx context.Context, entry *models.DeleteLog) error
	FindRecentDeleteLogs(ctx context.Context, limit int) ([]models.DeleteLog, error)
	DeleteStats(ctx context.Context, since time.Time) (*models.DeleteStats, error)
}

// ObjectStorage deletes stored images
type ObjectStorage interface {
	Delete(ctx context.Context, key string) error
}

// Indexer removes search documents
type Indexer interface {
	DeleteProperty(ctx context.Context, id uint) error
}

// Service handles physical deletion of properties by administrators
type Service struct {
	store   Store
	storage ObjectStorage
	indexer Indexer
	effects *sideeffect.Runner
	logger  *zap.Logger
}

// NewService creates a new cleanup service
func NewService(store Store, storage ObjectStorage, indexer Indexer, effects *sideeffect.Runner, logger *zap.Logger) *Service {
	return &Service{store: store, storage: storage, indexer: indexer, effects: effects, logger: logger.Named("cleanup")}
}

// Options controls a removal
type Options struct {
	Reason string `json:"reason"`
	DryRun bool   `json:"dry_run"` // If true, only report what would be deleted
}

// Result holds the outcome of a removal
type Result struct {
	PropertyID       uint      `json:"property_id"`
	Title            string    `json:"title"`
	BookingsRemoved  int       `json:"bookings_removed"`
	FavoritesRemoved int       `json:"favorites_removed"`
	ImagesRemoved    int       `json:"images_removed"`
	DryRun           bool      `json:"dry_run"`
	ExecutedAt       time.Time `json:"executed_at"`
}

func validReason(reason string) bool {
	switch reason {
	case models.DeleteReasonManual, models.DeleteReasonDuplicate, models.DeleteReasonSpam:
		return true
	}
	return false
}

// Remove hard-deletes a property. Rows go in one transaction together with
// the delete log; stored images and the search document are removed
// afterwards on a best-effort basis.
func (s *Service) Remove(ctx context.Context, propertyID uint, actor *approval.Actor, opts Options) (*Result, error) {
	if !approval.Decide(actor) {
		return nil, fmt.Errorf("%w: only administrators can remove listings", apperr.ErrForbidden)
	}
	if opts.Reason == "" {
		opts.Reason = models.DeleteReasonManual
	}
	if !validReason(opts.Reason) {
		return nil, fmt.Errorf("%w: unknown delete reason %q", apperr.ErrValidation, opts.Reason)
	}

	prop, err := s.store.FindPropertyByID(ctx, propertyID)
	if err != nil {
		return nil, fmt.Errorf("failed to load property %d: %w", propertyID, err)
	}
	if prop == nil {
		return nil, fmt.Errorf("%w: property %d", apperr.ErrNotFound, propertyID)
	}
	images := prop.ImageURLs()

	result := &Result{
		PropertyID:    prop.ID,
		Title:         prop.Title,
		ImagesRemoved: len(images),
		DryRun:        opts.DryRun,
		ExecutedAt:    time.Now(),
	}

	if opts.DryRun {
		bookings, favorites, err := s.store.CountDependents(ctx, prop.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to count dependents of property %d: %w", prop.ID, err)
		}
		result.BookingsRemoved = int(bookings)
		result.FavoritesRemoved = int(favorites)
		s.logger.Info("dry run: would delete property",
			zap.Uint("property_id", prop.ID),
			zap.Int64("bookings", bookings),
			zap.Int64("favorites", favorites),
			zap.Int("images", len(images)),
		)
		return result, nil
	}

	entry := &models.DeleteLog{
		PropertyID:    prop.ID,
		Title:         prop.Title,
		DeletedBy:     actor.UserID,
		ImagesRemoved: len(images),
		Reason:        opts.Reason,
	}
	if err := s.store.DeletePropertyCascade(ctx, entry); err != nil {
		return nil, fmt.Errorf("failed to delete property %d: %w", prop.ID, err)
	}
	result.BookingsRemoved = entry.BookingsRemoved
	result.FavoritesRemoved = entry.FavoritesRemoved

	s.logger.Info("physically deleted property",
		zap.Uint("property_id", prop.ID),
		zap.Uint("deleted_by", actor.UserID),
		zap.String("reason", opts.Reason),
		zap.Int("bookings", entry.BookingsRemoved),
		zap.Int("favorites", entry.FavoritesRemoved),
	)

	s.effects.Go(ctx, "image_delete", func(ctx context.Context) error {
		var failed int
		for _, err := range sideeffect.Settle(ctx, s.imageDeletes(images)...) {
			if err != nil {
				failed++
			}
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d images could not be deleted", failed, len(images))
		}
		return nil
	})
	if prop.Approved {
		s.effects.Go(ctx, "search_unindex", func(ctx context.Context) error {
			return s.indexer.DeleteProperty(ctx, prop.ID)
		})
	}
	return result, nil
}

func (s *Service) imageDeletes(keys []string) []func(context.Context) error {
	fns := make([]func(context.Context) error, len(keys))
	for i, key := range keys {
		key := key
		fns[i] = func(ctx context.Context) error {
			return s.storage.Delete(ctx, key)
		}
	}
	return fns
}

// GetDeleteStats returns statistics about deleted properties
func (s *Service) GetDeleteStats(ctx context.Context) (*models.DeleteStats, error) {
	return s.store.DeleteStats(ctx, time.Now().AddDate(0, 0, -30))
}

// GetRecentDeleteLogs returns recent delete log entries
func (s *Service) GetRecentDeleteLogs(ctx context.Context, limit int) ([]models.DeleteLog, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.store.FindRecentDeleteLogs(ctx, limit)
}
