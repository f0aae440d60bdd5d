package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/ministry-platform/service-enrollment/internal/application"
	"github.com/ministry-platform/service-enrollment/internal/platform/middleware"
	"github.com/ministry-platform/service-enrollment/internal/platform/response"
)

// AdminHandler exposes the staff dashboard surface.
type AdminHandler struct {
	checkout *application.CheckoutService
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(checkout *application.CheckoutService) *AdminHandler {
	return &AdminHandler{checkout: checkout}
}

// RegisterRoutes registers admin routes on the router group.
func (h *AdminHandler) RegisterRoutes(r *gin.RouterGroup) {
	admin := r.Group("/admin")
	admin.Use(middleware.Identity(), middleware.RequireRole(middleware.RoleAdmin))
	{
		admin.GET("/purchases", h.ListPurchases)
		admin.GET("/stats/purchases", h.GetPurchaseStats)
	}
}

// ListPurchases handles GET /api/v1/admin/purchases
func (h *AdminHandler) ListPurchases(c *gin.Context) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		page = 1
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit < 1 || limit > 100 {
		limit = 20
	}

	dtos, total, err := h.checkout.ListAllPurchases(c.Request.Context(), page, limit)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Paginated(c, dtos, page, limit, total)
}

// GetPurchaseStats handles GET /api/v1/admin/stats/purchases
func (h *AdminHandler) GetPurchaseStats(c *gin.Context) {
	dto, err := h.checkout.GetPurchaseStats(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, dto)
}
