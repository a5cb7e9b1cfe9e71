package booking

import (
	"fmt"
	"time"

	"propertyhub/internal/apperr"
)

// DateLayout is the wire format for check-in and check-out dates
const DateLayout = "2006-01-02"

// DateRange is the half-open stay [CheckIn, CheckOut) in whole calendar days
type DateRange struct {
	CheckIn  time.Time
	CheckOut time.Time
}

// NewDateRange normalises both ends to UTC midnight of their calendar date
func NewDateRange(checkIn, checkOut time.Time) DateRange {
	return DateRange{CheckIn: toDate(checkIn), CheckOut: toDate(checkOut)}
}

// ParseDateRange parses two YYYY-MM-DD dates
func ParseDateRange(checkIn, checkOut string) (DateRange, error) {
	in, err := time.Parse(DateLayout, checkIn)
	if err != nil {
		return DateRange{}, fmt.Errorf("%w: invalid check-in date %q", apperr.ErrValidation, checkIn)
	}
	out, err := time.Parse(DateLayout, checkOut)
	if err != nil {
		return DateRange{}, fmt.Errorf("%w: invalid check-out date %q", apperr.ErrValidation, checkOut)
	}
	return NewDateRange(in, out), nil
}

// Validate rejects empty and inverted ranges. A zero-length stay is invalid.
func (r DateRange) Validate() error {
	if r.CheckIn.IsZero() || r.CheckOut.IsZero() {
		return fmt.Errorf("%w: check-in and check-out are required", apperr.ErrValidation)
	}
	if !r.CheckIn.Before(r.CheckOut) {
		return fmt.Errorf("%w: check-in must be before check-out", apperr.ErrValidation)
	}
	return nil
}

const secondsPerDay = 24 * 60 * 60

// Nights is the number of whole days between check-in and check-out. Ranges
// longer than a time.Duration can hold are counted correctly.
func (r DateRange) Nights() int {
	return int((r.CheckOut.Unix() - r.CheckIn.Unix()) / secondsPerDay)
}

// Overlaps reports whether two half-open ranges share at least one night.
// Touching ranges, where one checks out the day the other checks in, do not.
func (r DateRange) Overlaps(other DateRange) bool {
	return r.CheckIn.Before(other.CheckOut) && r.CheckOut.After(other.CheckIn)
}

func (r DateRange) String() string {
	return r.CheckIn.Format(DateLayout) + "/" + r.CheckOut.Format(DateLayout)
}

func toDate(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
