package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"propertyhub/internal/apperr"
	"propertyhub/internal/auth"
	"propertyhub/internal/booking"
)

// BookingHandler serves booking requests
type BookingHandler struct {
	workflow *booking.Workflow
	logger   *zap.Logger
}

// NewBookingHandler creates a booking handler
func NewBookingHandler(workflow *booking.Workflow, logger *zap.Logger) *BookingHandler {
	return &BookingHandler{workflow: workflow, logger: logger.Named("http.bookings")}
}

type createBookingRequest struct {
	PropertyID uint   `json:"property_id"`
	CheckIn    string `json:"check_in"`
	CheckOut   string `json:"check_out"`
	Email      string `json:"email"`
}

// Create books a stay. Guests give an email; a session's email wins.
func (h *BookingHandler) Create(c *gin.Context) {
	var req createBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, h.logger, fmt.Errorf("%w: invalid request body: %v", apperr.ErrValidation, err))
		return
	}
	r, err := booking.ParseDateRange(req.CheckIn, req.CheckOut)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	b, err := h.workflow.CreateBooking(c.Request.Context(), booking.Request{
		PropertyID: req.PropertyID,
		Range:      r,
		Email:      req.Email,
	}, auth.Actor(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, b)
}

// Mine lists the session user's bookings
func (h *BookingHandler) Mine(c *gin.Context) {
	list, err := h.workflow.ListByUser(c.Request.Context(), auth.Actor(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"bookings": list, "count": len(list)})
}

// Pending lists bookings awaiting approval
func (h *BookingHandler) Pending(c *gin.Context) {
	list, err := h.workflow.ListPending(c.Request.Context(), auth.Actor(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"bookings": list, "count": len(list)})
}

// Approve confirms a pending booking
func (h *BookingHandler) Approve(c *gin.Context) {
	id, err := paramID(c, "id")
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	b, err := h.workflow.Approve(c.Request.Context(), id, auth.Actor(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, b)
}
