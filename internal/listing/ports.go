package listing

import (
	"context"

	"propertyhub/internal/models"
	"propertyhub/internal/social"
)

// Store is the persistence the listing core needs. Finders return nil and no
// error when nothing matches.
type Store interface {
	FindPropertyByID(ctx context.Context, id uint) (*models.Property, error)
	FindPropertyByTitle(ctx context.Context, title string) (*models.Property, error)
	// CreateProperty and SaveProperty return apperr.ErrConflict on a duplicate title
	CreateProperty(ctx context.Context, p *models.Property) error
	// SaveProperty writes every field and replaces the image list
	SaveProperty(ctx context.Context, p *models.Property) error
	SetSocialPostID(ctx context.Context, propertyID uint, postID string) error
	FindUsersFavoriting(ctx context.Context, propertyID uint) ([]models.User, error)
}

// History keeps the audit trail of listing edits
type History interface {
	Record(ctx context.Context, changes []models.PropertyChange) error
}

// ObjectStorage holds listing images
type ObjectStorage interface {
	Upload(ctx context.Context, data []byte, name string) (string, error)
	Delete(ctx context.Context, key string) error
}

// SocialFeed is the external page the listing is mirrored to
type SocialFeed interface {
	ListPosts(ctx context.Context) ([]social.Post, error)
	CreatePost(ctx context.Context, message, link string) (string, error)
	UpdatePost(ctx context.Context, postID, message, link string) error
}

// Messenger reaches users who follow a listing
type Messenger interface {
	SendMail(ctx context.Context, to, subject, body string) error
	SendDirectMessage(ctx context.Context, phone, body string) error
}

// Indexer keeps the search index in step with approved listings
type Indexer interface {
	IndexProperty(ctx context.Context, p *models.Property) error
	DeleteProperty(ctx context.Context, id uint) error
}
