package booking

import (
	"context"
	"time"

	"propertyhub/internal/models"
)

// Store is the persistence the booking core needs. Finders return nil and
// no error when the record does not exist.
type Store interface {
	FindPropertyByID(ctx context.Context, id uint) (*models.Property, error)
	FindUserByEmail(ctx context.Context, email string) (*models.User, error)
	FindBookingsOverlapping(ctx context.Context, propertyID uint, checkIn, checkOut time.Time) ([]models.Booking, error)
	// CreateBooking inserts b only if no overlapping booking exists at
	// commit time, returning apperr.ErrConflict otherwise.
	CreateBooking(ctx context.Context, b *models.Booking) error
	FindBookingByID(ctx context.Context, id uint) (*models.Booking, error)
	ApproveBooking(ctx context.Context, id uint) error
	FindBookingsByUser(ctx context.Context, userID uint) ([]models.Booking, error)
	FindPendingBookings(ctx context.Context) ([]models.Booking, error)
}

// Mailer sends one email
type Mailer interface {
	SendMail(ctx context.Context, to, subject, body string) error
}
