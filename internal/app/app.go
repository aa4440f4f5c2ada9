// Package app boots the API server with database-backed components.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/notionclone/notionclone/internal/authflow"
	"github.com/notionclone/notionclone/internal/config"
	"github.com/notionclone/notionclone/internal/db"
	"github.com/notionclone/notionclone/internal/document"
	"github.com/notionclone/notionclone/internal/housekeeping"
	"github.com/notionclone/notionclone/internal/httpapi"
	"github.com/notionclone/notionclone/internal/mail"
	internalsettings "github.com/notionclone/notionclone/internal/settings"
	"github.com/notionclone/notionclone/internal/verification"
	log "github.com/sirupsen/logrus"
)

const shutdownTimeout = 10 * time.Second

// Migrate opens the database and runs migrations.
func Migrate(ctx context.Context, cfg config.AppConfig) error {
	configPath := config.ResolveConfigPath(cfg.ConfigPath)
	dsn, err := config.LoadDatabaseDSN(configPath)
	if err != nil {
		return err
	}
	conn, err := db.Open(dsn)
	if err != nil {
		return err
	}
	return db.Migrate(conn)
}

// RunServer boots the HTTP server and blocks until the context ends.
func RunServer(ctx context.Context, cfg config.AppConfig, port int) error {
	configPath := config.ResolveConfigPath(cfg.ConfigPath)
	dsn, err := config.LoadDatabaseDSN(configPath)
	if err != nil {
		return err
	}
	conn, err := db.Open(dsn)
	if err != nil {
		return err
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		return errMigrate
	}

	jwtConfig, errJWT := config.LoadJWTConfig(configPath)
	if errJWT != nil {
		return errJWT
	}
	if strings.TrimSpace(jwtConfig.Secret) == "" {
		return fmt.Errorf("jwt secret is required, set %s or the config file", config.EnvJWTSecret)
	}
	smtpConfig, errSMTP := config.LoadSMTPConfig(configPath)
	if errSMTP != nil {
		return errSMTP
	}

	siteName := db.StringSetting(conn, internalsettings.SiteNameKey, internalsettings.DefaultSiteName)
	sender := mail.NewSender(smtpConfig, siteName)

	codes := verification.NewService(conn)
	authSvc := authflow.NewService(conn, jwtConfig, codes, sender)
	docSvc := document.NewService(conn)

	engine := gin.New()
	engine.Use(gin.Recovery(), requestLogger())
	httpapi.RegisterRoutes(engine, httpapi.Deps{
		DB:        conn,
		JWTSecret: jwtConfig.Secret,
		Auth:      authSvc,
		Documents: docSvc,
	})

	housekeeping.NewSweeper(conn, codes, authSvc).Start(ctx)

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: engine,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("starting server on %s with config=%s", server.Addr, cfg.ConfigPath)
		if errServe := server.ListenAndServe(); errServe != nil && !errors.Is(errServe, http.ErrServerClosed) {
			errCh <- errServe
			return
		}
		errCh <- nil
	}()

	select {
	case errServe := <-errCh:
		return errServe
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if errShutdown := server.Shutdown(shutdownCtx); errShutdown != nil {
		return errShutdown
	}
	return <-errCh
}

// requestLogger emits one structured line per request.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.WithFields(log.Fields{
			"method":  c.Request.Method,
			"path":    c.Request.URL.Path,
			"status":  c.Writer.Status(),
			"elapsed": time.Since(start).String(),
		}).Debug("request")
	}
}
