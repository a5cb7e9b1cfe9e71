package listing

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"propertyhub/internal/models"
)

// mirror publishes the listing to the social feed. The target post is the
// stored post id when known, otherwise the post whose message still reads
// like the listing did before this update. Legacy rows only have the latter.
func (p *Propagator) mirror(ctx context.Context, property *models.Property, previousMessage string) error {
	message := property.SocialMessage()

	postID := ""
	if p.cfg.PreferStoredPostID {
		postID = property.SocialPostID
	}
	if postID == "" {
		found, err := p.findPost(ctx, previousMessage)
		if err != nil {
			return err
		}
		postID = found
	}

	if postID != "" {
		if err := p.feed.UpdatePost(ctx, postID, message, p.link(property)); err != nil {
			return fmt.Errorf("failed to update social post %s: %w", postID, err)
		}
	} else {
		created, err := p.feed.CreatePost(ctx, message, p.link(property))
		if err != nil {
			return fmt.Errorf("failed to create social post: %w", err)
		}
		postID = created
		p.logger.Info("social post created", zap.Uint("property_id", property.ID), zap.String("post_id", postID))
	}

	p.rememberPost(ctx, property, postID)
	return nil
}

func (p *Propagator) findPost(ctx context.Context, message string) (string, error) {
	posts, err := p.feed.ListPosts(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to list social posts: %w", err)
	}
	for _, post := range posts {
		if post.Message == message {
			return post.ID, nil
		}
	}
	return "", nil
}

// rememberPost stores the post id on the listing. Failure only costs a
// content search on the next update.
func (p *Propagator) rememberPost(ctx context.Context, property *models.Property, postID string) {
	if postID == "" || postID == property.SocialPostID {
		return
	}
	if err := p.store.SetSocialPostID(ctx, property.ID, postID); err != nil {
		p.logger.Warn("failed to store social post id",
			zap.Uint("property_id", property.ID),
			zap.String("post_id", postID),
			zap.Error(err),
		)
	}
}

func (p *Propagator) link(property *models.Property) string {
	if p.cfg.FrontendURL == "" {
		return ""
	}
	return fmt.Sprintf("%s/properties/%d", p.cfg.FrontendURL, property.ID)
}
