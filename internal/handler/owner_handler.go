package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/autovoyage/service-rental/internal/application"
	"github.com/autovoyage/service-rental/internal/platform/auth"
	"github.com/autovoyage/service-rental/internal/platform/middleware"
	"github.com/autovoyage/service-rental/internal/platform/response"
)

// OwnerBookingHandler handles car owner requests for bookings on their cars.
type OwnerBookingHandler struct {
	service *application.BookingService
}

// NewOwnerBookingHandler creates a new OwnerBookingHandler.
func NewOwnerBookingHandler(service *application.BookingService) *OwnerBookingHandler {
	return &OwnerBookingHandler{service: service}
}

// RegisterRoutes registers owner booking routes.
func (h *OwnerBookingHandler) RegisterRoutes(r *gin.RouterGroup, authMW gin.HandlerFunc) {
	owner := r.Group("/owner/bookings")
	owner.Use(authMW)
	{
		owner.GET("", h.ListBookings)
		owner.GET("/stats", h.BookingStats)
		owner.POST("/:id/confirm", h.transition("Booking confirmed", h.service.ConfirmBooking))
		owner.POST("/:id/complete", h.transition("Booking completed", h.service.CompleteBooking))
		owner.POST("/:id/reject", h.transition("Booking rejected", h.service.RejectBooking))
	}
}

// ListBookings handles GET /owner/bookings.
func (h *OwnerBookingHandler) ListBookings(c *gin.Context) {
	caller, ok := middleware.GetIdentity(c)
	if !ok {
		response.Unauthorized(c, "unauthorized")
		return
	}

	result, err := h.service.ListOwnerBookings(c.Request.Context(), caller, c.Query("sort"), c.Query("order"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}

// BookingStats handles GET /owner/bookings/stats.
func (h *OwnerBookingHandler) BookingStats(c *gin.Context) {
	caller, ok := middleware.GetIdentity(c)
	if !ok {
		response.Unauthorized(c, "unauthorized")
		return
	}

	stats, err := h.service.GetOwnerBookingStats(c.Request.Context(), caller)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, stats)
}

type ownerAction func(ctx context.Context, caller auth.Identity, id uuid.UUID) (*application.BookingDTO, error)

func (h *OwnerBookingHandler) transition(msg string, action ownerAction) gin.HandlerFunc {
	return func(c *gin.Context) {
		caller, ok := middleware.GetIdentity(c)
		if !ok {
			response.Unauthorized(c, "unauthorized")
			return
		}

		bookingID, err := uuid.Parse(c.Param("id"))
		if err != nil {
			response.BadRequest(c, "invalid booking ID")
			return
		}

		result, err := action(c.Request.Context(), caller, bookingID)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.Message(c, msg, gin.H{"booking": result})
	}
}
