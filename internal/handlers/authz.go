package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"glowspa/api/internal/audit"
	"glowspa/api/internal/authz"
	"glowspa/api/internal/middleware"
	"glowspa/api/internal/models"
)

type checkPermissionRequest struct {
	Resource string `json:"resource" binding:"required"`
	Action   string `json:"action" binding:"required"`
	Context  struct {
		LocationID   string `json:"locationId"`
		Device       string `json:"device"`
		ResourceID   string `json:"resourceId"`
		OwnerStaffID string `json:"ownerStaffId"`
	} `json:"context"`
}

// CheckPermission is the authorization boundary for the surrounding
// dashboard and reporting services: they ask before touching business
// logic. The response carries the generic help text; the specific denial
// reason goes to the audit trail only.
func (h HandlerSet) CheckPermission(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req checkPermissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	pctx := authz.PermissionContext{
		Timestamp:    time.Now(),
		LocationID:   req.Context.LocationID,
		Device:       models.DeviceClass(req.Context.Device),
		ResourceID:   req.Context.ResourceID,
		OwnerStaffID: req.Context.OwnerStaffID,
	}
	if pctx.Device == "" {
		pctx.Device = middleware.ClassifyDevice(c.GetHeader("User-Agent"))
	}

	decision := h.engine.CheckPermission(user.ID, middleware.CurrentAssignments(c), req.Resource, req.Action, pctx)
	if !decision.Allowed {
		h.auditor.Record(audit.Event{
			Actor:     user.ID,
			Action:    audit.ActionPermissionDenied,
			Resource:  req.Resource + ":" + req.Action,
			Decision:  "deny",
			Reason:    string(decision.Reason),
			IPAddress: c.ClientIP(),
		})
		c.JSON(http.StatusOK, gin.H{
			"allowed": false,
			"help":    decision.Suggestion,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"allowed":     true,
		"matchedRole": decision.MatchedRole,
	})
}
