package booking

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"propertyhub/internal/apperr"
	"propertyhub/internal/approval"
	"propertyhub/internal/metrics"
	"propertyhub/internal/models"
	"propertyhub/internal/sideeffect"
)

// Request is a booking submission as received from the API layer
type Request struct {
	PropertyID uint
	Range      DateRange
	// Email is the contact address for guest checkout; a session email wins
	Email string
}

// Workflow admits, prices and persists bookings
type Workflow struct {
	store   Store
	checker *Checker
	mailer  Mailer
	effects *sideeffect.Runner
	logger  *zap.Logger
}

// NewWorkflow creates a booking workflow
func NewWorkflow(store Store, mailer Mailer, effects *sideeffect.Runner, logger *zap.Logger) *Workflow {
	return &Workflow{
		store:   store,
		checker: NewChecker(store),
		mailer:  mailer,
		effects: effects,
		logger:  logger.Named("booking"),
	}
}

// CreateBooking runs every admission check in order and persists the
// booking. The confirmation email is dispatched afterwards and its failure
// never affects the result.
func (w *Workflow) CreateBooking(ctx context.Context, req Request, actor *approval.Actor) (*models.Booking, error) {
	if err := req.Range.Validate(); err != nil {
		return nil, err
	}

	property, err := w.store.FindPropertyByID(ctx, req.PropertyID)
	if err != nil {
		return nil, fmt.Errorf("failed to load property %d: %w", req.PropertyID, err)
	}
	if property == nil {
		return nil, fmt.Errorf("%w: property %d", apperr.ErrNotFound, req.PropertyID)
	}
	if !property.IsRentable() {
		return nil, fmt.Errorf("%w: property %d is not available for rent", apperr.ErrNotFound, req.PropertyID)
	}
	// listings under review are invisible to everyone but administrators
	if !property.Approved && !approval.Decide(actor) {
		return nil, fmt.Errorf("%w: property %d", apperr.ErrNotFound, req.PropertyID)
	}

	email, err := contactEmail(req, actor)
	if err != nil {
		return nil, err
	}
	var userID *uint
	if actor != nil && actor.UserID != 0 {
		id := actor.UserID
		userID = &id
	} else {
		user, err := w.store.FindUserByEmail(ctx, email)
		if err != nil {
			return nil, fmt.Errorf("failed to look up user %s: %w", email, err)
		}
		if user != nil {
			userID = &user.ID
		}
	}

	conflict, err := w.checker.HasConflict(ctx, property.ID, req.Range)
	if err != nil {
		return nil, err
	}
	if conflict {
		metrics.BookingConflicts.Inc()
		return nil, fmt.Errorf("%w: property %d is already booked for %s", apperr.ErrConflict, property.ID, req.Range)
	}

	b := &models.Booking{
		PropertyID: property.ID,
		UserID:     userID,
		Email:      email,
		CheckIn:    req.Range.CheckIn,
		CheckOut:   req.Range.CheckOut,
		Price:      Price(property.Price, req.Range),
		// trust comes from the session only, never from a claimed email
		Approved: approval.Decide(actor),
	}

	if err := w.store.CreateBooking(ctx, b); err != nil {
		if errors.Is(err, apperr.ErrConflict) {
			metrics.BookingConflicts.Inc()
			return nil, err
		}
		return nil, fmt.Errorf("failed to save booking: %w", err)
	}
	metrics.BookingsCreated.WithLabelValues(strconv.FormatBool(b.Approved)).Inc()

	w.logger.Info("booking created",
		zap.Uint("booking_id", b.ID),
		zap.Uint("property_id", property.ID),
		zap.Stringer("range", req.Range),
		zap.Bool("approved", b.Approved),
	)

	subject, body := confirmationMessage(property, b)
	w.effects.Go(ctx, "booking_confirmation_mail", func(ctx context.Context) error {
		return w.mailer.SendMail(ctx, b.Email, subject, body)
	})

	return b, nil
}

// Approve moves a pending booking to approved. Only administrators may.
func (w *Workflow) Approve(ctx context.Context, bookingID uint, actor *approval.Actor) (*models.Booking, error) {
	if !approval.Decide(actor) {
		return nil, fmt.Errorf("%w: only administrators can approve bookings", apperr.ErrForbidden)
	}

	b, err := w.store.FindBookingByID(ctx, bookingID)
	if err != nil {
		return nil, fmt.Errorf("failed to load booking %d: %w", bookingID, err)
	}
	if b == nil {
		return nil, fmt.Errorf("%w: booking %d", apperr.ErrNotFound, bookingID)
	}
	if !b.IsPending() {
		return b, nil
	}

	if err := w.store.ApproveBooking(ctx, bookingID); err != nil {
		return nil, fmt.Errorf("failed to approve booking %d: %w", bookingID, err)
	}
	b.Approved = true
	w.logger.Info("booking approved", zap.Uint("booking_id", b.ID), zap.Uint("admin_id", actor.UserID))
	return b, nil
}

// ListByUser returns the bookings owned by the actor
func (w *Workflow) ListByUser(ctx context.Context, actor *approval.Actor) ([]models.Booking, error) {
	if actor == nil {
		return nil, apperr.ErrUnauthorized
	}
	return w.store.FindBookingsByUser(ctx, actor.UserID)
}

// ListPending returns bookings awaiting review
func (w *Workflow) ListPending(ctx context.Context, actor *approval.Actor) ([]models.Booking, error) {
	if !approval.Decide(actor) {
		return nil, fmt.Errorf("%w: only administrators can review bookings", apperr.ErrForbidden)
	}
	return w.store.FindPendingBookings(ctx)
}

// contactEmail picks the session email, else the guest's, which must be a
// bare address
func contactEmail(req Request, actor *approval.Actor) (string, error) {
	if actor != nil && actor.Email != "" {
		return strings.TrimSpace(strings.ToLower(actor.Email)), nil
	}
	email := strings.TrimSpace(strings.ToLower(req.Email))
	if email == "" {
		return "", fmt.Errorf("%w: a session or a contact email is required", apperr.ErrUnauthorized)
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", fmt.Errorf("%w: invalid contact email %q", apperr.ErrValidation, req.Email)
	}
	return email, nil
}

func confirmationMessage(p *models.Property, b *models.Booking) (subject, body string) {
	state := "pending review"
	if b.Approved {
		state = "confirmed"
	}
	subject = fmt.Sprintf("Reservation %s: %s", state, p.Title)
	body = fmt.Sprintf(
		"Your reservation for %q from %s to %s (%d nights) is %s.\nTotal: %s",
		p.Title,
		b.CheckIn.Format(DateLayout),
		b.CheckOut.Format(DateLayout),
		NewDateRange(b.CheckIn, b.CheckOut).Nights(),
		state,
		b.Price.StringFixed(2),
	)
	return subject, body
}
