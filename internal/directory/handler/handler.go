// Package handler handles HTTP requests for the directory module.
package handler

import (
	"net/http"

	"apalloc_backend/internal/directory/service"
	"apalloc_backend/internal/directory/transport"
	"apalloc_backend/platform/httpkit"
	"apalloc_backend/platform/validator"

	"github.com/gin-gonic/gin"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
)

// Handler handles HTTP requests for directory users.
type Handler struct {
	svc *service.Service
	val *validator.Validator
}

// New creates a new directory handler.
func New(svc *service.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

// RegisterRoutes registers directory routes.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/:vendor/users", h.List)
	rg.POST("/:vendor/users/save", h.Save)
	rg.POST("/:vendor/users/deactivate", h.Deactivate)
}

func (h *Handler) List(c *gin.Context) {
	result, err := h.svc.List(c.Request.Context(), c.Param("vendor"))
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

func (h *Handler) Save(c *gin.Context) {
	var req transport.SaveUsersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	result, err := h.svc.Save(c.Request.Context(), c.Param("vendor"), req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

func (h *Handler) Deactivate(c *gin.Context) {
	var req transport.DeactivateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	result, err := h.svc.Deactivate(c.Request.Context(), c.Param("vendor"), req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}
