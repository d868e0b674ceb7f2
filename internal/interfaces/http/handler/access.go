package handler

import (
	"github.com/gin-gonic/gin"

	appent "github.com/govcon/backend/internal/application/entitlement"
	"github.com/govcon/backend/internal/domain/catalog"
)

// AccessHandler answers access queries from the storefront and product apps
type AccessHandler struct {
	BaseHandler
	access *appent.AccessService
}

// NewAccessHandler creates an access handler
func NewAccessHandler(access *appent.AccessService) *AccessHandler {
	return &AccessHandler{access: access}
}

// RegisterRoutes registers access routes on the API group
func (h *AccessHandler) RegisterRoutes(rg *gin.RouterGroup) {
	access := rg.Group("/access")
	access.GET("", h.GetAccess)
	access.POST("/activate", h.Activate)
	access.POST("/check", h.Check)
}

type activateRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type checkRequest struct {
	Email   string `json:"email" binding:"required,email"`
	Product string `json:"productId" binding:"required"`
}

type checkResponse struct {
	Email      string `json:"email"`
	Product    string `json:"productId"`
	HasAccess  bool   `json:"hasAccess"`
	AccessType string `json:"accessType,omitempty"`
	BundleID   string `json:"bundleId,omitempty"`
}

// GetAccess returns the full access summary for ?email=
func (h *AccessHandler) GetAccess(c *gin.Context) {
	emailAddr := c.Query("email")
	if emailAddr == "" {
		h.BadRequest(c, "email query parameter is required")
		return
	}

	summary, err := h.access.GetAccessForEmail(c.Request.Context(), emailAddr)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, summary)
}

// Activate resolves everything an email is entitled to for account activation
func (h *AccessHandler) Activate(c *gin.Context) {
	var req activateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "email is required")
		return
	}

	result, err := h.access.ActivateByEmail(c.Request.Context(), req.Email)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// Check answers a yes/no access question for one product
func (h *AccessHandler) Check(c *gin.Context) {
	var req checkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "email and productId are required")
		return
	}

	check, err := h.access.CheckAccess(c.Request.Context(), req.Email, catalog.ProductID(req.Product))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, checkResponse{
		Email:      req.Email,
		Product:    string(check.ProductID),
		HasAccess:  check.HasAccess,
		AccessType: check.AccessType,
		BundleID:   string(check.BundleID),
	})
}
