package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ClearLockout lets an operator reset a locked identifier before its window
// expires. Guarded by staff:manage.
func (h HandlerSet) ClearLockout(c *gin.Context) {
	identifier := c.Param("identifier")
	if identifier == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "identifier required"})
		return
	}

	if err := h.authService.ClearLockout(c.Request.Context(), identifier); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "temporarily_unavailable"})
		return
	}

	c.Status(http.StatusNoContent)
}
