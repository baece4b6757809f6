package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"glowspa/api/internal/middleware"
	"glowspa/api/internal/service"
)

type loginRequest struct {
	Identifier        string `json:"identifier" binding:"required,email"`
	Password          string `json:"password" binding:"required"`
	DeviceFingerprint string `json:"deviceFingerprint"`
}

type authResponse struct {
	AccessToken      string       `json:"accessToken"`
	RefreshToken     string       `json:"refreshToken"`
	ExpiresInSeconds int64        `json:"expiresInSeconds"`
	User             userResponse `json:"user"`
}

type userResponse struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
	Status      string `json:"status"`
}

func (h HandlerSet) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.authService.Authenticate(c.Request.Context(), service.AuthenticateInput{
		Identifier:        req.Identifier,
		Password:          req.Password,
		DeviceFingerprint: req.DeviceFingerprint,
		DeviceClass:       middleware.ClassifyDevice(c.GetHeader("User-Agent")),
		IPAddress:         c.ClientIP(),
		UserAgent:         c.GetHeader("User-Agent"),
	})
	if err != nil {
		h.sendAuthError(c, err)
		return
	}

	sendAuthResponse(c, result)
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

func (h HandlerSet) Refresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.authService.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		h.sendAuthError(c, err)
		return
	}

	sendAuthResponse(c, result)
}

// sendAuthError keeps credential failures and lockouts indistinguishable on
// the wire; the distinction lives only in logs and the audit trail.
func (h HandlerSet) sendAuthError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInfrastructure):
		h.log.Error().Err(err).Msg("auth backend unavailable")
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "temporarily_unavailable"})
	case errors.Is(err, service.ErrAccountLocked):
		h.log.Warn().Msg("login attempt against locked identifier")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid_credentials", "message": "too many attempts, try again later"})
	case errors.Is(err, service.ErrUserDisabled):
		c.JSON(http.StatusForbidden, gin.H{"error": "account_disabled"})
	case errors.Is(err, service.ErrRefreshTokenReuse):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "session_revoked"})
	case errors.Is(err, service.ErrSessionExpired), errors.Is(err, service.ErrInvalidToken):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid_or_expired_session"})
	default:
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid_credentials"})
	}
}

func sendAuthResponse(c *gin.Context, result service.AuthResult) {
	c.JSON(http.StatusOK, authResponse{
		AccessToken:      result.AccessToken,
		RefreshToken:     result.RefreshToken,
		ExpiresInSeconds: result.ExpiresInSeconds,
		User: userResponse{
			ID:          result.User.ID,
			Email:       result.User.Email,
			DisplayName: result.User.DisplayName,
			Status:      string(result.User.Status),
		},
	})
}

func (h HandlerSet) Logout(c *gin.Context) {
	sessionID := middleware.CurrentSessionID(c)
	if sessionID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	if err := h.authService.RevokeSession(c.Request.Context(), sessionID); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "temporarily_unavailable"})
		return
	}

	c.Status(http.StatusNoContent)
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" binding:"required"`
	NewPassword     string `json:"newPassword" binding:"required,min=10"`
}

func (h HandlerSet) ChangePassword(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req changePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err := h.authService.ChangePassword(c.Request.Context(), user.ID, req.CurrentPassword, req.NewPassword)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidCredential):
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid_credentials"})
		case errors.Is(err, service.ErrInfrastructure):
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "temporarily_unavailable"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_server_error"})
		}
		return
	}

	c.Status(http.StatusNoContent)
}

func (h HandlerSet) Me(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	assignments := middleware.CurrentAssignments(c)
	roles := make([]gin.H, 0, len(assignments))
	for _, a := range assignments {
		roles = append(roles, gin.H{"role": a.Role, "locationId": a.LocationID})
	}

	c.JSON(http.StatusOK, gin.H{
		"user": userResponse{
			ID:          user.ID,
			Email:       user.Email,
			DisplayName: user.DisplayName,
			Status:      string(user.Status),
		},
		"roles": roles,
	})
}

type sessionResponse struct {
	ID          string    `json:"id"`
	DeviceClass string    `json:"deviceClass"`
	IPAddress   string    `json:"ipAddress"`
	UserAgent   string    `json:"userAgent"`
	CreatedAt   time.Time `json:"createdAt"`
	LastSeenAt  time.Time `json:"lastSeenAt"`
	Current     bool      `json:"current"`
}

func (h HandlerSet) ListSessions(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	sessions, err := h.authService.ListSessions(c.Request.Context(), user.ID)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "temporarily_unavailable"})
		return
	}

	current := middleware.CurrentSessionID(c)
	resp := make([]sessionResponse, 0, len(sessions))
	for _, session := range sessions {
		resp = append(resp, sessionResponse{
			ID:          session.ID,
			DeviceClass: string(session.DeviceClass),
			IPAddress:   session.IPAddress,
			UserAgent:   session.UserAgent,
			CreatedAt:   session.CreatedAt,
			LastSeenAt:  session.LastSeenAt,
			Current:     session.ID == current,
		})
	}

	c.JSON(http.StatusOK, gin.H{"sessions": resp})
}

func (h HandlerSet) RevokeSession(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	sessionID := c.Param("sessionId")
	if sessionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "sessionId required"})
		return
	}

	// Only the owner's sessions are revocable through this route.
	sessions, err := h.authService.ListSessions(c.Request.Context(), user.ID)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "temporarily_unavailable"})
		return
	}
	owned := false
	for _, session := range sessions {
		if session.ID == sessionID {
			owned = true
			break
		}
	}
	if !owned {
		// Idempotent: a session that is gone (or never was) is a no-op.
		c.Status(http.StatusNoContent)
		return
	}

	if err := h.authService.RevokeSession(c.Request.Context(), sessionID); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "temporarily_unavailable"})
		return
	}

	c.Status(http.StatusNoContent)
}

func (h HandlerSet) RevokeAllSessions(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	if err := h.authService.RevokeAllSessions(c.Request.Context(), user.ID); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "temporarily_unavailable"})
		return
	}

	c.Status(http.StatusNoContent)
}
