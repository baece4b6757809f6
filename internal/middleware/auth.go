package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"glowspa/api/internal/models"
	"glowspa/api/internal/service"
)

const (
	ctxKeyUser        = "current_user"
	ctxKeyAssignments = "role_assignments"
	ctxKeySessionID   = "session_id"
)

// Auth resolves the bearer token to a live session and loads the principal.
// Session resolution extends the sliding TTL; a revoked session fails here
// no matter how fresh the token's own expiry is.
func Auth(auth *service.AuthService, users service.CredentialStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing_token"})
			return
		}
		tokenStr := strings.TrimPrefix(authHeader, "Bearer ")

		sessionCtx, err := auth.ValidateAccessToken(c.Request.Context(), tokenStr)
		if err != nil {
			if errors.Is(err, service.ErrInfrastructure) {
				c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "temporarily_unavailable"})
				return
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid_or_expired_session"})
			return
		}

		user, err := users.GetByID(c.Request.Context(), sessionCtx.UserID)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid_or_expired_session"})
			return
		}
		if user.Status != models.UserStatusActive {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "account_disabled"})
			return
		}

		assignments, err := users.Assignments(c.Request.Context(), user.ID)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "temporarily_unavailable"})
			return
		}

		c.Set(ctxKeyUser, user)
		c.Set(ctxKeyAssignments, assignments)
		c.Set(ctxKeySessionID, sessionCtx.SessionID)

		c.Next()
	}
}

// CurrentUser returns the authenticated user placed by Auth.
func CurrentUser(c *gin.Context) (models.User, bool) {
	val, ok := c.Get(ctxKeyUser)
	if !ok {
		return models.User{}, false
	}
	user, ok := val.(models.User)
	return user, ok
}

// CurrentAssignments returns the role assignments placed by Auth.
func CurrentAssignments(c *gin.Context) []models.RoleAssignment {
	val, ok := c.Get(ctxKeyAssignments)
	if !ok {
		return nil
	}
	assignments, _ := val.([]models.RoleAssignment)
	return assignments
}

// CurrentSessionID returns the session id placed by Auth.
func CurrentSessionID(c *gin.Context) string {
	val, ok := c.Get(ctxKeySessionID)
	if !ok {
		return ""
	}
	id, _ := val.(string)
	return id
}
