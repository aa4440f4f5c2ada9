package httpapi

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/notionclone/notionclone/internal/apperr"
	"github.com/notionclone/notionclone/internal/models"
	"github.com/notionclone/notionclone/internal/security"
	"gorm.io/gorm"
)

// ctxUserKey is the gin context key for the authenticated user.
const ctxUserKey = "auth.user"

// BearerAuth validates the Authorization header and loads the account.
// Deleted, suspended, and still-blocked accounts are rejected.
func BearerAuth(conn *gorm.DB, secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			unauthorized(c, "missing_token", "missing bearer token")
			return
		}
		claims, errParse := security.ParseAccessToken(secret, strings.TrimPrefix(header, "Bearer "))
		if errParse != nil {
			unauthorized(c, "invalid_token", "invalid or expired token")
			return
		}

		var user models.User
		errFind := conn.WithContext(c.Request.Context()).
			Where("id = ? AND deleted_at IS NULL AND status NOT IN ?", claims.UserID(),
				[]string{models.StatusDeleted, models.StatusSuspended}).
			First(&user).Error
		if errFind != nil {
			if errors.Is(errFind, gorm.ErrRecordNotFound) {
				unauthorized(c, "invalid_token", "invalid or expired token")
				return
			}
			writeError(c, fmt.Errorf("httpapi: load user: %w", errFind))
			c.Abort()
			return
		}
		if user.Status == models.StatusBlocked &&
			user.BlockedUntil != nil && user.BlockedUntil.After(time.Now().UTC()) {
			unauthorized(c, "account_blocked", "account is temporarily blocked")
			return
		}

		c.Set(ctxUserKey, &user)
		c.Next()
	}
}

// unauthorized aborts the request through the shared error mapping.
func unauthorized(c *gin.Context, code, message string) {
	writeError(c, apperr.Unauthorized(code, message))
	c.Abort()
}

// CurrentUser returns the authenticated user set by BearerAuth.
func CurrentUser(c *gin.Context) *models.User {
	value, ok := c.Get(ctxUserKey)
	if !ok {
		return nil
	}
	user, _ := value.(*models.User)
	return user
}
