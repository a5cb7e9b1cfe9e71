package booking

import (
	"context"
	"fmt"
	"time"

	"propertyhub/internal/models"
)

// OverlapFinder is the slice of Store the checker reads
type OverlapFinder interface {
	FindBookingsOverlapping(ctx context.Context, propertyID uint, checkIn, checkOut time.Time) ([]models.Booking, error)
}

// Checker decides whether a stay collides with existing bookings
type Checker struct {
	store OverlapFinder
}

// NewChecker creates an availability checker
func NewChecker(store OverlapFinder) *Checker {
	return &Checker{store: store}
}

// HasConflict reports whether any booking of the property overlaps r.
// Pending bookings block dates the same as approved ones.
func (c *Checker) HasConflict(ctx context.Context, propertyID uint, r DateRange) (bool, error) {
	existing, err := c.store.FindBookingsOverlapping(ctx, propertyID, r.CheckIn, r.CheckOut)
	if err != nil {
		return false, fmt.Errorf("failed to load bookings for property %d: %w", propertyID, err)
	}
	return ConflictsWith(r, existing), nil
}

// ConflictsWith evaluates the overlap predicate against each booking
func ConflictsWith(r DateRange, existing []models.Booking) bool {
	for _, b := range existing {
		if r.Overlaps(NewDateRange(b.CheckIn, b.CheckOut)) {
			return true
		}
	}
	return false
}
