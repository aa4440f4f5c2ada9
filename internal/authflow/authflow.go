// Package authflow implements registration, login, verification, and
// token lifecycle on top of the user store.
package authflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/notionclone/notionclone/internal/apperr"
	"github.com/notionclone/notionclone/internal/config"
	"github.com/notionclone/notionclone/internal/mail"
	"github.com/notionclone/notionclone/internal/models"
	"github.com/notionclone/notionclone/internal/security"
	"github.com/notionclone/notionclone/internal/verification"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Service wires the auth operations over the database, the verification
// code service, and the mail sender.
type Service struct {
	db     *gorm.DB
	jwt    config.JWTConfig
	codes  *verification.Service
	mailer mail.Sender
}

// NewService constructs an auth service.
func NewService(db *gorm.DB, jwt config.JWTConfig, codes *verification.Service, mailer mail.Sender) *Service {
	return &Service{db: db, jwt: jwt, codes: codes, mailer: mailer}
}

// RegisterInput carries the registration request fields.
type RegisterInput struct {
	Name     string
	Username string
	Email    string
	Phone    string
	Password string
	Plan     string // Optional, defaults to FREE.
}

// DeviceInfo carries optional client metadata recorded on refresh tokens.
type DeviceInfo struct {
	UserAgent string
	IPAddress string
}

// TokenPair is an issued access/refresh token pair.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    int64 // Access token lifetime in seconds.
}

// normalizeEmail lowercases and trims an email address.
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates a PENDING_VERIFICATION account, emails a verification
// code, and issues a token pair so the client is signed in right away.
// Email and username must be unique among non-deleted accounts.
func (s *Service) Register(ctx context.Context, in RegisterInput, device DeviceInfo) (*models.User, *TokenPair, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Username = strings.TrimSpace(in.Username)
	in.Email = normalizeEmail(in.Email)

	if in.Name == "" || in.Username == "" || in.Email == "" || in.Password == "" {
		return nil, nil, apperr.Validation("missing_fields", "name, username, email, and password are required")
	}
	if violations := security.ValidatePasswordStrength(in.Password, in.Name, in.Username); len(violations) > 0 {
		return nil, nil, apperr.Validation("weak_password", "password does not meet the requirements").
			WithDetails(map[string]any{"violations": violations})
	}

	plan := strings.ToUpper(strings.TrimSpace(in.Plan))
	switch plan {
	case "":
		plan = models.PlanFree
	case models.PlanFree, models.PlanPro, models.PlanTeam, models.PlanEnterprise:
	default:
		return nil, nil, apperr.Validation("invalid_plan", "unknown plan")
	}

	hash, errHash := security.HashPassword(in.Password)
	if errHash != nil {
		return nil, nil, fmt.Errorf("authflow: hash password: %w", errHash)
	}

	now := time.Now().UTC()
	user := &models.User{
		ID:                 uuid.NewString(),
		Name:               in.Name,
		Username:           in.Username,
		Email:              in.Email,
		Phone:              strings.TrimSpace(in.Phone),
		Password:           hash,
		Plan:               plan,
		Status:             models.StatusPendingVerification,
		FirstLogin:         true,
		EmailNotifications: true,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	var code string
	var pair *TokenPair
	errTx := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if errCount := tx.Model(&models.User{}).
			Where("email = ? AND deleted_at IS NULL", in.Email).
			Count(&count).Error; errCount != nil {
			return fmt.Errorf("authflow: check email: %w", errCount)
		}
		if count > 0 {
			return apperr.Business("email_taken", "email is already registered")
		}
		if errCount := tx.Model(&models.User{}).
			Where("username = ? AND deleted_at IS NULL", in.Username).
			Count(&count).Error; errCount != nil {
			return fmt.Errorf("authflow: check username: %w", errCount)
		}
		if count > 0 {
			return apperr.Business("username_taken", "username is already taken")
		}
		if errCreate := tx.Create(user).Error; errCreate != nil {
			return fmt.Errorf("authflow: create user: %w", errCreate)
		}
		issued, errIssue := s.codes.Issue(ctx, tx, user.ID, models.CodeTypeEmailVerification)
		if errIssue != nil {
			return errIssue
		}
		code = issued
		issuedPair, errPair := s.issueTokenPair(ctx, tx, user, device, now)
		if errPair != nil {
			return errPair
		}
		pair = issuedPair
		return nil
	})
	if errTx != nil {
		return nil, nil, errTx
	}

	s.deliver(func() error {
		return s.mailer.SendVerificationEmail(user.Email, user.Name, code)
	})
	return user, pair, nil
}

// Login checks credentials and returns a token pair. Five consecutive
// failures block the account for fifteen minutes.
func (s *Service) Login(ctx context.Context, email, password string, device DeviceInfo) (*models.User, *TokenPair, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, nil, apperr.Validation("missing_fields", "email and password are required")
	}

	var user models.User
	errFind := s.db.WithContext(ctx).
		Where("email = ? AND deleted_at IS NULL", email).
		First(&user).Error
	if errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, nil, apperr.Unauthorized("invalid_credentials", "invalid email or password")
		}
		return nil, nil, fmt.Errorf("authflow: find user: %w", errFind)
	}

	now := time.Now().UTC()
	if user.Status == models.StatusDeleted {
		return nil, nil, apperr.Unauthorized("account_deleted", "account has been deleted")
	}
	if user.Status == models.StatusSuspended {
		return nil, nil, apperr.Forbidden("account_suspended", "account is suspended")
	}
	if user.Status == models.StatusBlocked {
		if user.BlockedUntil != nil && user.BlockedUntil.After(now) {
			return nil, nil, apperr.Unauthorized("account_blocked", "account is temporarily blocked").
				WithDetails(map[string]any{"blocked_until": user.BlockedUntil.Format(time.RFC3339)})
		}
		// Lockout expired, the account becomes usable again below.
	}

	if !security.CheckPassword(password, user.Password) {
		if errFail := s.recordFailedLogin(ctx, &user, now); errFail != nil {
			log.WithError(errFail).Warn("authflow: record failed login")
		}
		if user.Status == models.StatusBlocked && user.BlockedUntil != nil {
			return nil, nil, apperr.Unauthorized("account_blocked", "account is temporarily blocked").
				WithDetails(map[string]any{"blocked_until": user.BlockedUntil.Format(time.RFC3339)})
		}
		return nil, nil, apperr.Unauthorized("invalid_credentials", "invalid email or password")
	}

	var pair *TokenPair
	errTx := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		issued, errPair := s.issueTokenPair(ctx, tx, &user, device, now)
		if errPair != nil {
			return errPair
		}
		pair = issued

		updates := map[string]any{
			"failed_login_attempts": 0,
			"blocked_until":         nil,
			"updated_at":            now,
		}
		if user.Status == models.StatusBlocked {
			updates["status"] = models.StatusActive
			user.Status = models.StatusActive
		}
		if errReset := tx.Model(&models.User{}).
			Where("id = ?", user.ID).
			Updates(updates).Error; errReset != nil {
			return fmt.Errorf("authflow: reset failed attempts: %w", errReset)
		}
		return nil
	})
	if errTx != nil {
		return nil, nil, errTx
	}
	user.FailedLoginAttempts = 0
	user.BlockedUntil = nil
	return &user, pair, nil
}

// recordFailedLogin bumps the failure counter with a conditional update
// and blocks the account once the limit is reached. The passed user is
// refreshed with the new counters.
func (s *Service) recordFailedLogin(ctx context.Context, user *models.User, now time.Time) error {
	res := s.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ? AND failed_login_attempts < ?", user.ID, security.MaxFailedLoginAttempts).
		Updates(map[string]any{
			"failed_login_attempts": gorm.Expr("failed_login_attempts + 1"),
			"updated_at":            now,
		})
	if res.Error != nil {
		return fmt.Errorf("authflow: bump failed attempts: %w", res.Error)
	}
	user.FailedLoginAttempts++

	if user.FailedLoginAttempts >= security.MaxFailedLoginAttempts {
		until := now.Add(security.LockoutMinutes * time.Minute)
		errBlock := s.db.WithContext(ctx).Model(&models.User{}).
			Where("id = ?", user.ID).
			Updates(map[string]any{
				"status":        models.StatusBlocked,
				"blocked_until": until,
				"updated_at":    now,
			}).Error
		if errBlock != nil {
			return fmt.Errorf("authflow: block account: %w", errBlock)
		}
		user.Status = models.StatusBlocked
		user.BlockedUntil = &until
	}
	return nil
}

// issueTokenPair signs an access/refresh pair and persists the refresh token.
func (s *Service) issueTokenPair(ctx context.Context, tx *gorm.DB, user *models.User, device DeviceInfo, now time.Time) (*TokenPair, error) {
	access, errAccess := security.IssueAccessToken(s.jwt.Secret, user.ID, user.Email, s.jwt.Expiry)
	if errAccess != nil {
		return nil, fmt.Errorf("authflow: issue access token: %w", errAccess)
	}
	refresh, errRefresh := security.IssueRefreshToken(s.jwt.Secret, user.ID, s.jwt.RefreshExpiry)
	if errRefresh != nil {
		return nil, fmt.Errorf("authflow: issue refresh token: %w", errRefresh)
	}

	record := models.RefreshToken{
		ID:         uuid.NewString(),
		Token:      refresh,
		UserID:     user.ID,
		ExpiresAt:  now.Add(s.jwt.RefreshExpiry),
		DeviceInfo: device.UserAgent,
		IPAddress:  device.IPAddress,
		CreatedAt:  now,
	}
	if errCreate := tx.WithContext(ctx).Create(&record).Error; errCreate != nil {
		return nil, fmt.Errorf("authflow: store refresh token: %w", errCreate)
	}
	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int64(s.jwt.Expiry.Seconds()),
	}, nil
}

// VerifyEmail consumes an email verification code for the current user
// and activates the account. Wrong guesses count against the outstanding
// code until its attempt budget is spent.
func (s *Service) VerifyEmail(ctx context.Context, userID, code string) error {
	errTx := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, errConsume := s.codes.Consume(ctx, tx, code, models.CodeTypeEmailVerification, userID); errConsume != nil {
			return errConsume
		}
		updates := map[string]any{
			"email_verified": true,
			"updated_at":     time.Now().UTC(),
		}
		res := tx.Model(&models.User{}).
			Where("id = ? AND deleted_at IS NULL", userID).
			Updates(updates)
		if res.Error != nil {
			return fmt.Errorf("authflow: mark verified: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return apperr.NotFound("user_not_found", "user not found")
		}
		// Activation only applies while the account is still pending.
		errActivate := tx.Model(&models.User{}).
			Where("id = ? AND status = ?", userID, models.StatusPendingVerification).
			Update("status", models.StatusActive).Error
		if errActivate != nil {
			return fmt.Errorf("authflow: activate user: %w", errActivate)
		}
		return nil
	})
	if errTx != nil {
		// The rollback discarded any in-transaction attempt count, so the
		// wrong guess is recorded here.
		if appErr, ok := apperr.As(errTx); ok && appErr.Code == "invalid_code" {
			s.codes.RegisterFailedAttempt(ctx, userID, models.CodeTypeEmailVerification)
		}
		return errTx
	}
	return nil
}

// ResendCode issues a fresh verification code for an unverified account.
func (s *Service) ResendCode(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	var user models.User
	errFind := s.db.WithContext(ctx).
		Where("email = ? AND deleted_at IS NULL", email).
		First(&user).Error
	if errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return apperr.NotFound("user_not_found", "no account for this email")
		}
		return fmt.Errorf("authflow: find user: %w", errFind)
	}
	if user.EmailVerified {
		return apperr.Business("already_verified", "email is already verified")
	}

	code, errIssue := s.codes.Issue(ctx, nil, user.ID, models.CodeTypeEmailVerification)
	if errIssue != nil {
		return errIssue
	}
	s.deliver(func() error {
		return s.mailer.SendVerificationEmail(user.Email, user.Name, code)
	})
	return nil
}

// ForgotPassword issues a password recovery code. Unknown emails are
// ignored so account existence is not leaked.
func (s *Service) ForgotPassword(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	var user models.User
	errFind := s.db.WithContext(ctx).
		Where("email = ? AND deleted_at IS NULL AND status <> ?", email, models.StatusDeleted).
		First(&user).Error
	if errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil
		}
		return fmt.Errorf("authflow: find user: %w", errFind)
	}

	code, errIssue := s.codes.Issue(ctx, nil, user.ID, models.CodeTypePasswordRecovery)
	if errIssue != nil {
		return errIssue
	}
	s.deliver(func() error {
		return s.mailer.SendPasswordRecoveryEmail(user.Email, user.Name, code)
	})
	return nil
}

// ResetPassword consumes a recovery code, replaces the owning account's
// password, clears any lockout, and revokes every outstanding refresh
// token. The account is resolved from the code itself.
func (s *Service) ResetPassword(ctx context.Context, code, newPassword string) error {
	now := time.Now().UTC()
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		userID, errConsume := s.codes.Consume(ctx, tx, code, models.CodeTypePasswordRecovery, "")
		if errConsume != nil {
			return errConsume
		}

		var user models.User
		errFind := tx.Where("id = ? AND deleted_at IS NULL", userID).First(&user).Error
		if errFind != nil {
			if errors.Is(errFind, gorm.ErrRecordNotFound) {
				return apperr.Unauthorized("invalid_code", "invalid or expired verification code")
			}
			return fmt.Errorf("authflow: find user: %w", errFind)
		}

		if violations := security.ValidatePasswordStrength(newPassword, user.Name, user.Username); len(violations) > 0 {
			return apperr.Validation("weak_password", "password does not meet the requirements").
				WithDetails(map[string]any{"violations": violations})
		}
		hash, errHash := security.HashPassword(newPassword)
		if errHash != nil {
			return fmt.Errorf("authflow: hash password: %w", errHash)
		}

		updates := map[string]any{
			"password":              hash,
			"failed_login_attempts": 0,
			"blocked_until":         nil,
			"updated_at":            now,
		}
		if user.Status == models.StatusBlocked {
			updates["status"] = models.StatusActive
		}
		if errUpdate := tx.Model(&models.User{}).
			Where("id = ?", user.ID).
			Updates(updates).Error; errUpdate != nil {
			return fmt.Errorf("authflow: update password: %w", errUpdate)
		}
		return revokeRefreshTokens(ctx, tx, user.ID, now)
	})
}

// Refresh validates a refresh token and issues a brand-new token pair.
// The presented token is not revoked and stays valid until it expires.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	claims, errParse := security.ParseToken(s.jwt.Secret, refreshToken)
	if errParse != nil || claims.TokenType != security.TokenTypeRefresh {
		return nil, apperr.Unauthorized("invalid_refresh_token", "invalid refresh token")
	}

	now := time.Now().UTC()
	var record models.RefreshToken
	errFind := s.db.WithContext(ctx).
		Where("token = ? AND revoked = ? AND expires_at > ?", refreshToken, false, now).
		First(&record).Error
	if errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, apperr.Unauthorized("invalid_refresh_token", "invalid refresh token")
		}
		return nil, fmt.Errorf("authflow: find refresh token: %w", errFind)
	}

	var user models.User
	errUser := s.db.WithContext(ctx).
		Where("id = ? AND deleted_at IS NULL AND status NOT IN ?", record.UserID,
			[]string{models.StatusDeleted, models.StatusSuspended}).
		First(&user).Error
	if errUser != nil {
		if errors.Is(errUser, gorm.ErrRecordNotFound) {
			return nil, apperr.Unauthorized("invalid_refresh_token", "invalid refresh token")
		}
		return nil, fmt.Errorf("authflow: find token owner: %w", errUser)
	}

	var pair *TokenPair
	errTx := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		issued, errPair := s.issueTokenPair(ctx, tx, &user, DeviceInfo{
			UserAgent: record.DeviceInfo,
			IPAddress: record.IPAddress,
		}, now)
		if errPair != nil {
			return errPair
		}
		pair = issued
		return nil
	})
	if errTx != nil {
		return nil, errTx
	}
	return pair, nil
}

// Logout revokes every refresh token of the user.
func (s *Service) Logout(ctx context.Context, userID string) error {
	return revokeRefreshTokens(ctx, s.db, userID, time.Now().UTC())
}

// revokeRefreshTokens marks all live tokens of the user revoked.
func revokeRefreshTokens(ctx context.Context, tx *gorm.DB, userID string, now time.Time) error {
	errRevoke := tx.WithContext(ctx).Model(&models.RefreshToken{}).
		Where("user_id = ? AND revoked = ?", userID, false).
		Updates(map[string]any{"revoked": true, "revoked_at": now}).Error
	if errRevoke != nil {
		return fmt.Errorf("authflow: revoke refresh tokens: %w", errRevoke)
	}
	return nil
}

// PurgeRefreshTokens removes expired or revoked refresh tokens.
func (s *Service) PurgeRefreshTokens(ctx context.Context) (int64, error) {
	res := s.db.WithContext(ctx).
		Where("expires_at < ? OR revoked = ?", time.Now().UTC(), true).
		Delete(&models.RefreshToken{})
	if res.Error != nil {
		return 0, fmt.Errorf("authflow: purge refresh tokens: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// deliver runs a mail send after the surrounding transaction has
// committed. Delivery failures are logged, never surfaced to callers.
func (s *Service) deliver(send func() error) {
	if s.mailer == nil {
		return
	}
	if errSend := send(); errSend != nil {
		log.WithError(errSend).Warn("authflow: mail delivery failed")
	}
}
