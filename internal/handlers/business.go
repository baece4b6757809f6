package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"glowspa/api/internal/audit"
	"glowspa/api/internal/middleware"
)

// Representative business surfaces guarded by the permission engine. The
// payloads are stubs; the scheduling and billing services own the real data
// and call through the same checks.

type appointmentStub struct {
	ID           string `json:"id"`
	PatientName  string `json:"patientName"`
	OwnerStaffID string `json:"ownerStaffId"`
	StartsAt     string `json:"startsAt"`
}

var stubAppointments = []appointmentStub{
	{ID: "appt-42", PatientName: "J. Rivera", OwnerStaffID: "staff-1", StartsAt: "2026-09-01T10:00:00Z"},
	{ID: "appt-99", PatientName: "M. Chen", OwnerStaffID: "staff-2", StartsAt: "2026-09-01T11:30:00Z"},
}

type invoiceStub struct {
	ID     string `json:"id"`
	Amount string `json:"amount"`
	Status string `json:"status"`
}

var stubInvoices = []invoiceStub{
	{ID: "inv-1001", Amount: "250.00", Status: "open"},
	{ID: "inv-1002", Amount: "780.00", Status: "paid"},
}

func (h HandlerSet) ListAppointments(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"appointments": stubAppointments})
}

// UpdateAppointment fills the record-level ownership fields before asking
// the engine, so provider-level roles can only touch their own schedule.
func (h HandlerSet) UpdateAppointment(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	id := c.Param("appointmentId")
	var target *appointmentStub
	for i := range stubAppointments {
		if stubAppointments[i].ID == id {
			target = &stubAppointments[i]
			break
		}
	}
	if target == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
		return
	}

	pctx := middleware.ContextFromRequest(c)
	pctx.ResourceID = target.ID
	pctx.OwnerStaffID = target.OwnerStaffID

	decision := h.engine.CheckPermission(user.ID, middleware.CurrentAssignments(c), "appointment", "manage", pctx)
	if !decision.Allowed {
		h.auditor.Record(audit.Event{
			Actor:     user.ID,
			Action:    audit.ActionPermissionDenied,
			Resource:  "appointment:manage",
			Decision:  "deny",
			Reason:    string(decision.Reason),
			IPAddress: c.ClientIP(),
		})
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden", "help": decision.Suggestion})
		return
	}

	c.JSON(http.StatusOK, gin.H{"appointment": target, "updated": true})
}

func (h HandlerSet) ListInvoices(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"invoices": stubInvoices})
}
