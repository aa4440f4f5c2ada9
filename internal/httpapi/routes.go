// Package httpapi registers the HTTP surface of the service.
package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/notionclone/notionclone/internal/authflow"
	"github.com/notionclone/notionclone/internal/document"
	"gorm.io/gorm"
)

// Deps bundles what the route tree needs.
type Deps struct {
	DB        *gorm.DB
	JWTSecret string
	Auth      *authflow.Service
	Documents *document.Service
}

// RegisterRoutes wires all endpoints onto the engine.
func RegisterRoutes(engine *gin.Engine, deps Deps) {
	authHandler := NewAuthHandler(deps.Auth)
	docHandler := NewDocumentHandler(deps.Documents)
	requireAuth := BearerAuth(deps.DB, deps.JWTSecret)

	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := engine.Group("/api")

	auth := api.Group("/auth")
	{
		auth.POST("/register", authHandler.Register)
		auth.POST("/login", authHandler.Login)
		auth.POST("/resend-code", authHandler.ResendCode)
		auth.POST("/forgot-password", authHandler.ForgotPassword)
		auth.POST("/reset-password", authHandler.ResetPassword)
		auth.POST("/refresh-token", authHandler.Refresh)

		auth.POST("/verify-email", requireAuth, authHandler.VerifyEmail)
		auth.POST("/logout", requireAuth, authHandler.Logout)
	}

	api.GET("/public/documents/:slug", docHandler.GetPublic)

	docs := api.Group("/documents", requireAuth)
	{
		docs.POST("", docHandler.Create)
		docs.GET("", docHandler.ListMain)
		docs.GET("/favorites", docHandler.Favorites)
		docs.GET("/archived", docHandler.Archived)
		docs.GET("/search", docHandler.Search)
		docs.GET("/shared-with-me", docHandler.SharedWithMe)

		docs.GET("/:id", docHandler.Get)
		docs.PATCH("/:id", docHandler.Update)
		docs.DELETE("/:id", docHandler.Delete)
		docs.GET("/:id/sub-pages", docHandler.SubPages)
		docs.PATCH("/:id/public", docHandler.SetPublic)

		docs.POST("/:id/shares", docHandler.Share)
		docs.GET("/:id/shares", docHandler.Shares)
		docs.DELETE("/:id/shares/:userId", docHandler.Unshare)
	}
}
