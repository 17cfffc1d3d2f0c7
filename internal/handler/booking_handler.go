package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/autovoyage/service-rental/internal/application"
	"github.com/autovoyage/service-rental/internal/platform/middleware"
	"github.com/autovoyage/service-rental/internal/platform/response"
)

// BookingHandler handles HTTP requests for renter booking operations.
type BookingHandler struct {
	service *application.BookingService
}

// NewBookingHandler creates a new BookingHandler.
func NewBookingHandler(service *application.BookingService) *BookingHandler {
	return &BookingHandler{service: service}
}

// RegisterRoutes registers all booking routes on the given router group.
// writeLimit guards the mutating endpoints and runs after authMW so it can key on the caller.
func (h *BookingHandler) RegisterRoutes(r *gin.RouterGroup, authMW, writeLimit gin.HandlerFunc) {
	bookings := r.Group("/bookings")
	bookings.Use(authMW)
	{
		bookings.GET("", h.ListBookings)
		bookings.GET("/check/:carId/:email", h.CheckActiveBooking)
		bookings.POST("", writeLimit, h.CreateBooking)
		bookings.PUT("/:id", writeLimit, h.UpdateBooking)
		bookings.DELETE("/:id", writeLimit, h.DeleteBooking)
	}
}

// CreateBooking handles POST /bookings.
func (h *BookingHandler) CreateBooking(c *gin.Context) {
	caller, ok := middleware.GetIdentity(c)
	if !ok {
		response.Unauthorized(c, "unauthorized")
		return
	}

	var req application.CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.service.CreateBooking(c.Request.Context(), caller, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Message(c, "Booking created successfully", gin.H{
		"insertedId": result.ID,
		"booking":    result,
	})
}

// ListBookings handles GET /bookings?sort&order.
func (h *BookingHandler) ListBookings(c *gin.Context) {
	caller, ok := middleware.GetIdentity(c)
	if !ok {
		response.Unauthorized(c, "unauthorized")
		return
	}

	result, err := h.service.ListMyBookings(c.Request.Context(), caller, c.Query("sort"), c.Query("order"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}

// CheckActiveBooking handles GET /bookings/check/:carId/:email.
func (h *BookingHandler) CheckActiveBooking(c *gin.Context) {
	caller, ok := middleware.GetIdentity(c)
	if !ok {
		response.Unauthorized(c, "unauthorized")
		return
	}

	result, err := h.service.CheckActiveBooking(c.Request.Context(), caller, c.Param("carId"), c.Param("email"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}

// UpdateBooking handles PUT /bookings/:id. The body is either a cancellation
// or a new period.
func (h *BookingHandler) UpdateBooking(c *gin.Context) {
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

	var req application.UpdateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.service.UpdateBooking(c.Request.Context(), caller, bookingID, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	msg := "Booking updated successfully"
	if !result.Modified {
		msg = "Booking already cancelled"
	}
	response.Message(c, msg, gin.H{
		"modifiedCount": boolCount(result.Modified),
		"booking":       result.Booking,
	})
}

// DeleteBooking handles DELETE /bookings/:id.
func (h *BookingHandler) DeleteBooking(c *gin.Context) {
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

	if err := h.service.DeleteBooking(c.Request.Context(), caller, bookingID); err != nil {
		response.Error(c, err)
		return
	}

	response.Message(c, "Booking deleted successfully", gin.H{"deletedCount": 1})
}
