package listing

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"propertyhub/internal/apperr"
	"propertyhub/internal/approval"
	"propertyhub/internal/models"
	"propertyhub/internal/sideeffect"
)

// Service handles listing submission and edits
type Service struct {
	*Propagator
}

// NewService wraps a propagator with the submission path
func NewService(p *Propagator) *Service {
	return &Service{Propagator: p}
}

// Create submits a new listing. Admin submissions are published right away
// and mirrored to the social feed and search.
func (s *Service) Create(ctx context.Context, draft Draft, actor *approval.Actor, uploads []Upload) (*models.Property, error) {
	if actor == nil {
		return nil, fmt.Errorf("%w: login required to submit listings", apperr.ErrUnauthorized)
	}
	approved, err := approval.ForCreate(actor, draft.Approved)
	if err != nil {
		return nil, err
	}

	property := draft.property()
	property.Approved = approved
	owner := actor.UserID
	property.CreatedByID = &owner
	if err := validate(property); err != nil {
		return nil, err
	}
	if err := s.ensureTitleFree(ctx, property.Title, 0); err != nil {
		return nil, err
	}

	_, added := s.reconcileImages(ctx, nil, nil, uploads)
	property.SetImageURLs(added)

	if err := s.store.CreateProperty(ctx, property); err != nil {
		s.discardImages(ctx, added)
		return nil, fmt.Errorf("failed to create property: %w", err)
	}
	s.logger.Info("listing created",
		zap.Uint("property_id", property.ID),
		zap.Bool("approved", property.Approved),
		zap.Int("images", len(added)),
	)

	if property.Approved {
		result := property.Clone()
		s.effects.Go(ctx, "social_mirror", func(ctx context.Context) error {
			return s.publish(ctx, result)
		})
		s.effects.Go(ctx, "search_index", func(ctx context.Context) error {
			return s.indexer.IndexProperty(ctx, result)
		})
	}
	return property, nil
}

// Approve publishes a listing awaiting review
func (s *Service) Approve(ctx context.Context, existing *models.Property, actor *approval.Actor) (*models.Property, error) {
	approved := true
	return s.ApplyUpdate(ctx, existing, Patch{Approved: &approved}, actor, nil, nil)
}

// SetPinned promotes or demotes a listing on the home page
func (s *Service) SetPinned(ctx context.Context, existing *models.Property, pinned bool, actor *approval.Actor) (*models.Property, error) {
	return s.ApplyUpdate(ctx, existing, Patch{Pinned: &pinned}, actor, nil, nil)
}

func (s *Service) publish(ctx context.Context, property *models.Property) error {
	postID, err := s.feed.CreatePost(ctx, property.SocialMessage(), s.link(property))
	if err != nil {
		return fmt.Errorf("failed to create social post: %w", err)
	}
	s.rememberPost(ctx, property, postID)
	return nil
}

func (s *Service) discardImages(ctx context.Context, refs []string) {
	fns := make([]func(context.Context) error, 0, len(refs))
	for _, ref := range refs {
		ref := ref
		fns = append(fns, func(ctx context.Context) error {
			return s.effects.Do(ctx, "image_delete", func(ctx context.Context) error {
				return s.storage.Delete(ctx, ref)
			})
		})
	}
	sideeffect.Settle(context.WithoutCancel(ctx), fns...)
}
