package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/autovoyage/service-rental/internal/application"
	"github.com/autovoyage/service-rental/internal/platform/middleware"
	"github.com/autovoyage/service-rental/internal/platform/response"
)

// CarHandler handles HTTP requests for car listings.
type CarHandler struct {
	service *application.CarService
}

// NewCarHandler creates a new CarHandler.
func NewCarHandler(service *application.CarService) *CarHandler {
	return &CarHandler{service: service}
}

// RegisterRoutes registers all car routes. Browsing is public; writes need authMW.
func (h *CarHandler) RegisterRoutes(r *gin.RouterGroup, authMW gin.HandlerFunc) {
	cars := r.Group("/cars")
	{
		cars.GET("", h.SearchCars)
		cars.GET("/mine", authMW, h.GetMyCars)
		cars.GET("/:id", h.GetCar)
		cars.POST("", authMW, h.CreateCar)
		cars.PUT("/:id", authMW, h.UpdateCar)
		cars.DELETE("/:id", authMW, h.DeleteCar)
	}
}

// SearchCars handles GET /cars?search&sort&order.
func (h *CarHandler) SearchCars(c *gin.Context) {
	result, err := h.service.SearchCars(c.Request.Context(), c.Query("search"), c.Query("sort"), c.Query("order"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}

// GetMyCars handles GET /cars/mine.
func (h *CarHandler) GetMyCars(c *gin.Context) {
	caller, ok := middleware.GetIdentity(c)
	if !ok {
		response.Unauthorized(c, "unauthorized")
		return
	}

	result, err := h.service.GetMyCars(c.Request.Context(), caller)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}

// GetCar handles GET /cars/:id.
func (h *CarHandler) GetCar(c *gin.Context) {
	carID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid car ID")
		return
	}

	result, err := h.service.GetCar(c.Request.Context(), carID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}

// CreateCar handles POST /cars. The caller becomes the listing owner.
func (h *CarHandler) CreateCar(c *gin.Context) {
	caller, ok := middleware.GetIdentity(c)
	if !ok {
		response.Unauthorized(c, "unauthorized")
		return
	}

	var req application.CreateCarRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.service.CreateCar(c.Request.Context(), caller, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Message(c, "Car added successfully", gin.H{"insertedId": result.ID})
}

// UpdateCar handles PUT /cars/:id.
func (h *CarHandler) UpdateCar(c *gin.Context) {
	caller, ok := middleware.GetIdentity(c)
	if !ok {
		response.Unauthorized(c, "unauthorized")
		return
	}

	carID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid car ID")
		return
	}

	var req application.UpdateCarRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	modified, err := h.service.UpdateCar(c.Request.Context(), caller, carID, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Message(c, "Car updated successfully", gin.H{"modifiedCount": boolCount(modified)})
}

// DeleteCar handles DELETE /cars/:id.
func (h *CarHandler) DeleteCar(c *gin.Context) {
	caller, ok := middleware.GetIdentity(c)
	if !ok {
		response.Unauthorized(c, "unauthorized")
		return
	}

	carID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid car ID")
		return
	}

	if err := h.service.DeleteCar(c.Request.Context(), caller, carID); err != nil {
		response.Error(c, err)
		return
	}

	response.Message(c, "Car deleted successfully", gin.H{"deletedCount": 1})
}

func boolCount(b bool) int {
	if b {
		return 1
	}
	return 0
}
