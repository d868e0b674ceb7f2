package handler

import (
	"crypto/subtle"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/govcon/backend/internal/application/admin"
)

// AdminHandler exposes the operator repair and audit tools. Every route is
// gated by the shared admin password: POST bodies carry it in the password
// field, GET requests send it in the X-Admin-Password header.
type AdminHandler struct {
	BaseHandler
	password string
	backfill *admin.BackfillService
	cleanup  *admin.CleanupService
	repair   *admin.RepairService
	verify   *admin.VerifyService
	report   *admin.ReportService
	bulkmail *admin.BulkMailService
	listing  *admin.ListingService
}

// NewAdminHandler creates an admin handler
func NewAdminHandler(
	password string,
	backfill *admin.BackfillService,
	cleanup *admin.CleanupService,
	repair *admin.RepairService,
	verify *admin.VerifyService,
	report *admin.ReportService,
	bulkmail *admin.BulkMailService,
	listing *admin.ListingService,
) *AdminHandler {
	return &AdminHandler{
		password: password,
		backfill: backfill,
		cleanup:  cleanup,
		repair:   repair,
		verify:   verify,
		report:   report,
		bulkmail: bulkmail,
		listing:  listing,
	}
}

// RegisterRoutes registers admin routes on the API group
func (h *AdminHandler) RegisterRoutes(rg *gin.RouterGroup) {
	adminGroup := rg.Group("/admin")
	adminGroup.POST("/backfill", h.BackfillPurchases)
	adminGroup.POST("/cleanup", h.CleanupPurchases)
	adminGroup.POST("/fix-access-flags", h.FixAccessFlags)
	adminGroup.POST("/verify-access", h.VerifyAccess)
	adminGroup.POST("/send-access-emails", h.SendAccessEmails)
	adminGroup.GET("/purchases-report", h.PurchasesReport)
	adminGroup.GET("/list-access", h.ListAccess)
}

// authorized does a constant-time comparison against the configured admin
// password. An unconfigured password rejects everything.
func (h *AdminHandler) authorized(supplied string) bool {
	if h.password == "" || supplied == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(h.password), []byte(supplied)) == 1
}

func (h *AdminHandler) authorizeHeader(c *gin.Context) bool {
	if !h.authorized(c.GetHeader("X-Admin-Password")) {
		h.Unauthorized(c, "Invalid admin password")
		return false
	}
	return true
}

type backfillRequest struct {
	Password string `json:"password" binding:"required"`
	Days     int    `json:"days"`
	TestMode bool   `json:"test_mode"`
	DryRun   bool   `json:"dry_run"`
}

// BackfillPurchases rebuilds missing ledger rows from provider history
func (h *AdminHandler) BackfillPurchases(c *gin.Context) {
	var req backfillRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "password is required")
		return
	}
	if !h.authorized(req.Password) {
		h.Unauthorized(c, "Invalid admin password")
		return
	}

	result, err := h.backfill.Run(c.Request.Context(), req.Days, req.TestMode, req.DryRun)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

type cleanupRequest struct {
	Password string `json:"password" binding:"required"`
	DryRun   bool   `json:"dry_run"`
}

// CleanupPurchases fixes legacy product IDs and removes unresolvable rows
func (h *AdminHandler) CleanupPurchases(c *gin.Context) {
	var req cleanupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "password is required")
		return
	}
	if !h.authorized(req.Password) {
		h.Unauthorized(c, "Invalid admin password")
		return
	}

	result, err := h.cleanup.Run(c.Request.Context(), req.DryRun)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

type repairRequest struct {
	Password string   `json:"password" binding:"required"`
	Emails   []string `json:"emails"`
	DryRun   bool     `json:"dry_run"`
}

// FixAccessFlags rebuilds flags and cache entries from the ledger
func (h *AdminHandler) FixAccessFlags(c *gin.Context) {
	var req repairRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "password is required")
		return
	}
	if !h.authorized(req.Password) {
		h.Unauthorized(c, "Invalid admin password")
		return
	}

	result, err := h.repair.Run(c.Request.Context(), req.Emails, req.DryRun)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

type verifyRequest struct {
	Password string   `json:"password" binding:"required"`
	Emails   []string `json:"emails"`
}

// VerifyAccess runs the read-only drift audit
func (h *AdminHandler) VerifyAccess(c *gin.Context) {
	var req verifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "password is required")
		return
	}
	if !h.authorized(req.Password) {
		h.Unauthorized(c, "Invalid admin password")
		return
	}

	result, err := h.verify.Run(c.Request.Context(), req.Emails)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

type bulkMailRequest struct {
	Password string `json:"password" binding:"required"`
	DryRun   bool   `json:"dry_run"`
}

// SendAccessEmails mails database access links to every entitled buyer
func (h *AdminHandler) SendAccessEmails(c *gin.Context) {
	var req bulkMailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "password is required")
		return
	}
	if !h.authorized(req.Password) {
		h.Unauthorized(c, "Invalid admin password")
		return
	}

	result, err := h.bulkmail.SendDatabaseAccessEmails(c.Request.Context(), req.DryRun)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// PurchasesReport returns the revenue report for ?days= (default 14, max 90)
func (h *AdminHandler) PurchasesReport(c *gin.Context) {
	if !h.authorizeHeader(c) {
		return
	}

	days, _ := strconv.Atoi(c.DefaultQuery("days", "0"))
	result, err := h.report.Recent(c.Request.Context(), days)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// ListAccess enumerates cache grants for ?family=
func (h *AdminHandler) ListAccess(c *gin.Context) {
	if !h.authorizeHeader(c) {
		return
	}

	family := c.Query("family")
	if family == "" {
		h.BadRequest(c, "family query parameter is required")
		return
	}
	result, err := h.listing.ListAccess(c.Request.Context(), family)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}
