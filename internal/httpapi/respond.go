package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/notionclone/notionclone/internal/apperr"
	log "github.com/sirupsen/logrus"
)

// writeError maps an error to an HTTP response. Application errors carry
// their own status and code; anything else becomes an opaque 500.
func writeError(c *gin.Context, err error) {
	if appErr, ok := apperr.As(err); ok {
		body := gin.H{"error": appErr.Code, "message": appErr.Message}
		if len(appErr.Details) > 0 {
			body["details"] = appErr.Details
		}
		c.JSON(appErr.HTTPStatus(), body)
		return
	}
	log.WithError(err).Error("request failed")
	c.JSON(http.StatusInternalServerError, gin.H{
		"error":   "internal_error",
		"message": "internal server error",
	})
}

// bindError reports a malformed request body.
func bindError(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{
		"error":   "invalid_request",
		"message": err.Error(),
	})
}
