// Package response standardizes the JSON envelope and the mapping from
// domain errors to HTTP status codes.
package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ministry-platform/service-enrollment/internal/domain"
)

// Envelope is the standard success wrapper.
type Envelope struct {
	Success bool `json:"success"`
	Data    any  `json:"data,omitempty"`
}

// ErrorBody is the standard error wrapper.
type ErrorBody struct {
	Success bool   `json:"success"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Pagination carries page metadata alongside list payloads.
type Pagination struct {
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Total int64 `json:"total"`
}

// Success writes 200 with the data payload.
func Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, Envelope{Success: true, Data: data})
}

// Created writes 201 with the data payload.
func Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, Envelope{Success: true, Data: data})
}

// Paginated writes 200 with a list payload and page metadata.
func Paginated(c *gin.Context, data any, page, limit int, total int64) {
	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"data":       data,
		"pagination": Pagination{Page: page, Limit: limit, Total: total},
	})
}

// BadRequest writes 400 with a validation message.
func BadRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, ErrorBody{
		Code:    string(domain.CodeValidation),
		Message: message,
	})
}

// statusFor maps a domain error code onto an HTTP status.
func statusFor(code domain.ErrorCode) int {
	switch code {
	case domain.CodeValidation,
		domain.CodeAlreadyPurchased,
		domain.CodeInvalidPromoCode,
		domain.CodeClassRepSlotsFull,
		domain.CodeBelowMinimumCharge:
		return http.StatusBadRequest
	case domain.CodeNotFound:
		return http.StatusNotFound
	case domain.CodeConflict, domain.CodeInvalidState:
		return http.StatusConflict
	case domain.CodeLockTimeout:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Error maps a (possibly wrapped) domain error to its HTTP response.
// Non-domain errors surface as an opaque 500; their details stay in the logs.
func Error(c *gin.Context, err error) {
	var derr *domain.DomainError
	if errors.As(err, &derr) {
		c.JSON(statusFor(derr.Code), ErrorBody{
			Code:    string(derr.Code),
			Message: derr.Message,
		})
		return
	}

	c.JSON(http.StatusInternalServerError, ErrorBody{
		Code:    "internal_error",
		Message: "an internal error occurred",
	})
}
