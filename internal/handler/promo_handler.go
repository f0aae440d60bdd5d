package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ministry-platform/service-enrollment/internal/application"
	"github.com/ministry-platform/service-enrollment/internal/platform/middleware"
	"github.com/ministry-platform/service-enrollment/internal/platform/response"
)

// PromoHandler handles HTTP requests for promo code management.
type PromoHandler struct {
	service *application.PromoService
}

// NewPromoHandler creates a new PromoHandler.
func NewPromoHandler(service *application.PromoService) *PromoHandler {
	return &PromoHandler{service: service}
}

// RegisterRoutes registers promo routes on the router group.
func (h *PromoHandler) RegisterRoutes(r *gin.RouterGroup) {
	promos := r.Group("/promos")
	promos.Use(middleware.Identity())
	{
		promos.POST("", middleware.RequireRole(middleware.RoleAdmin), h.CreateStaffCode)
		promos.GET("", middleware.RequireRole(middleware.RoleAdmin), h.ListActiveCodes)
		promos.POST("/validate", h.ValidateCode)
	}
}

// CreateStaffCode handles POST /api/v1/promos
func (h *PromoHandler) CreateStaffCode(c *gin.Context) {
	var req application.CreateStaffCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	dto, err := h.service.CreateStaffCode(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto)
}

// ListActiveCodes handles GET /api/v1/promos
func (h *PromoHandler) ListActiveCodes(c *gin.Context) {
	dtos, err := h.service.ListActiveCodes(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, dtos)
}

// ValidateCode handles POST /api/v1/promos/validate
func (h *PromoHandler) ValidateCode(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req application.ValidatePromoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	dto, err := h.service.Validate(c.Request.Context(), userID, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, dto)
}
