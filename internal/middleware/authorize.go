package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"glowspa/api/internal/audit"
	"glowspa/api/internal/authz"
)

const locationHeader = "X-Practice-Location"

// ContextFromRequest builds the permission context the engine narrows on:
// request time, the practice location the client is operating at, and the
// device class inferred from the User-Agent. Record-level ownership fields
// are filled in by handlers that know the target resource.
func ContextFromRequest(c *gin.Context) authz.PermissionContext {
	location := c.GetHeader(locationHeader)
	if location == "" {
		location = c.Query("location")
	}
	return authz.PermissionContext{
		Timestamp:  time.Now(),
		LocationID: location,
		Device:     ClassifyDevice(c.GetHeader("User-Agent")),
	}
}

// RequirePermission gates a route on resource:action for the authenticated
// user. Denials are audited with their specific reason; the response body
// stays generic so resource structure is not leaked to the caller.
func RequirePermission(engine *authz.Engine, auditor *audit.Recorder, resource, action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := CurrentUser(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		decision := engine.CheckPermission(user.ID, CurrentAssignments(c), resource, action, ContextFromRequest(c))
		if !decision.Allowed {
			auditor.Record(audit.Event{
				Actor:     user.ID,
				Action:    audit.ActionPermissionDenied,
				Resource:  resource + ":" + action,
				Decision:  "deny",
				Reason:    string(decision.Reason),
				RequestID: c.Writer.Header().Get(requestIDHeader),
				IPAddress: c.ClientIP(),
			})
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": "forbidden",
				"help":  decision.Suggestion,
			})
			return
		}

		c.Next()
	}
}
