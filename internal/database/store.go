package database

import (
	"context"

	"propertyhub/internal/auth"
	"propertyhub/internal/booking"
	"propertyhub/internal/cleanup"
	"propertyhub/internal/favorites"
	"propertyhub/internal/listing"
	"propertyhub/internal/models"
	"propertyhub/internal/properties"
	"propertyhub/internal/snapshot"
	"propertyhub/internal/users"
)

// Store is everything the application persists. Both the MySQL and the
// PostgreSQL backends implement it.
type Store interface {
	booking.Store
	listing.Store
	users.Store
	favorites.Store
	snapshot.Store
	properties.Store
	cleanup.Store
	auth.UserFinder

	FindAllApproved(ctx context.Context) ([]models.Property, error)
	InitSchema() error
	Close() error
}

var (
	_ Store = (*GormDB)(nil)
	_ Store = (*DB)(nil)
)
