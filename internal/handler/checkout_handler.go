// Package handler holds the gin HTTP handlers. Handlers bind and validate
// input, delegate to application services, and map results through the
// response helpers.
package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ministry-platform/service-enrollment/internal/application"
	"github.com/ministry-platform/service-enrollment/internal/platform/middleware"
	"github.com/ministry-platform/service-enrollment/internal/platform/response"
)

// CheckoutHandler handles HTTP requests for the purchase lifecycle.
type CheckoutHandler struct {
	checkout *application.CheckoutService
	refunds  *application.RefundService
}

// NewCheckoutHandler creates a new CheckoutHandler.
func NewCheckoutHandler(checkout *application.CheckoutService, refunds *application.RefundService) *CheckoutHandler {
	return &CheckoutHandler{checkout: checkout, refunds: refunds}
}

// RegisterRoutes registers checkout and purchase routes on the router group.
func (h *CheckoutHandler) RegisterRoutes(r *gin.RouterGroup) {
	authed := r.Group("")
	authed.Use(middleware.Identity())
	{
		authed.POST("/checkout", h.CreateCheckout)
		authed.DELETE("/checkout/:purchaseId", h.CancelCheckout)
		authed.GET("/purchases", h.ListPurchases)
		authed.GET("/purchases/:id", h.GetPurchase)
		authed.POST("/purchases/:id/refund", h.RequestRefund)
	}
}

// CreateCheckout handles POST /api/v1/checkout
func (h *CheckoutHandler) CreateCheckout(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req application.CreateCheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	dto, err := h.checkout.CreateCheckoutSession(c.Request.Context(), userID, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto)
}

// CancelCheckout handles DELETE /api/v1/checkout/:purchaseId
func (h *CheckoutHandler) CancelCheckout(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	purchaseID, err := uuid.Parse(c.Param("purchaseId"))
	if err != nil {
		response.BadRequest(c, "invalid purchase ID")
		return
	}

	if err := h.checkout.CancelPendingPurchase(c.Request.Context(), userID, purchaseID); err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, gin.H{"cancelled": true})
}

// ListPurchases handles GET /api/v1/purchases
func (h *CheckoutHandler) ListPurchases(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	dtos, err := h.checkout.ListPurchases(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, dtos)
}

// GetPurchase handles GET /api/v1/purchases/:id
func (h *CheckoutHandler) GetPurchase(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	purchaseID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid purchase ID")
		return
	}

	dto, err := h.checkout.GetPurchase(c.Request.Context(), userID, purchaseID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, dto)
}

// RequestRefund handles POST /api/v1/purchases/:id/refund
func (h *CheckoutHandler) RequestRefund(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	purchaseID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid purchase ID")
		return
	}

	dto, err := h.refunds.RequestRefund(c.Request.Context(), userID, purchaseID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, dto)
}
