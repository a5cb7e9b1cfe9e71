// Package favorites lets users follow listings. Followers are told when an
// approved listing changes.
package favorites

import (
	"context"
	"fmt"

	"propertyhub/internal/apperr"
	"propertyhub/internal/approval"
	"propertyhub/internal/models"
)

// Store persists favorite links
type Store interface {
	FindPropertyByID(ctx context.Context, id uint) (*models.Property, error)
	// AddFavorite is a no-op when the link already exists
	AddFavorite(ctx context.Context, userID, propertyID uint) error
	RemoveFavorite(ctx context.Context, userID, propertyID uint) error
	FindFavoriteProperties(ctx context.Context, userID uint) ([]models.Property, error)
}

// Service handles favorites of the session user
type Service struct {
	store Store
}

// NewService creates a favorites service
func NewService(store Store) *Service {
	return &Service{store: store}
}

// Add follows an approved listing
func (s *Service) Add(ctx context.Context, actor *approval.Actor, propertyID uint) error {
	if actor == nil {
		return apperr.ErrUnauthorized
	}
	p, err := s.store.FindPropertyByID(ctx, propertyID)
	if err != nil {
		return fmt.Errorf("failed to load property %d: %w", propertyID, err)
	}
	if p == nil || !p.Approved {
		return fmt.Errorf("%w: property %d", apperr.ErrNotFound, propertyID)
	}
	return s.store.AddFavorite(ctx, actor.UserID, propertyID)
}

// Remove unfollows a listing
func (s *Service) Remove(ctx context.Context, actor *approval.Actor, propertyID uint) error {
	if actor == nil {
		return apperr.ErrUnauthorized
	}
	return s.store.RemoveFavorite(ctx, actor.UserID, propertyID)
}

// List returns the listings the actor follows
func (s *Service) List(ctx context.Context, actor *approval.Actor) ([]models.Property, error) {
	if actor == nil {
		return nil, apperr.ErrUnauthorized
	}
	return s.store.FindFavoriteProperties(ctx, actor.UserID)
}
