package authflow

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/notionclone/notionclone/internal/apperr"
	"github.com/notionclone/notionclone/internal/config"
	"github.com/notionclone/notionclone/internal/db"
	"github.com/notionclone/notionclone/internal/mail"
	"github.com/notionclone/notionclone/internal/models"
	"github.com/notionclone/notionclone/internal/security"
	"github.com/notionclone/notionclone/internal/verification"
	"gorm.io/gorm"
)

const testPassword = "Sup3r$ecret!"

func newTestService(t *testing.T) (*Service, *gorm.DB, *mail.LogSender) {
	t.Helper()
	conn, errOpen := db.Open("file:" + t.TempDir() + "/authflow.db")
	if errOpen != nil {
		t.Fatalf("open database: %v", errOpen)
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate database: %v", errMigrate)
	}
	jwtCfg := config.JWTConfig{
		Secret:        "test-secret",
		Expiry:        15 * time.Minute,
		RefreshExpiry: 7 * 24 * time.Hour,
	}
	sender := &mail.LogSender{SiteName: "Test"}
	svc := NewService(conn, jwtCfg, verification.NewService(conn), sender)
	return svc, conn, sender
}

func registerTestUser(t *testing.T, svc *Service, sender *mail.LogSender) (*models.User, string) {
	t.Helper()
	user, _, errRegister := svc.Register(context.Background(), RegisterInput{
		Name:     "Ada",
		Username: "ada",
		Email:    "ada@example.com",
		Password: testPassword,
	}, DeviceInfo{})
	if errRegister != nil {
		t.Fatalf("register: %v", errRegister)
	}
	if len(sender.Sent) == 0 {
		t.Fatalf("expected a verification email")
	}
	return user, sender.Sent[len(sender.Sent)-1].Code
}

func TestRegisterCreatesPendingUser(t *testing.T) {
	svc, conn, sender := newTestService(t)
	user, pair, errRegister := svc.Register(context.Background(), RegisterInput{
		Name:     "Ada",
		Username: "ada",
		Email:    "ada@example.com",
		Password: testPassword,
	}, DeviceInfo{})
	if errRegister != nil {
		t.Fatalf("register: %v", errRegister)
	}

	if user.Status != models.StatusPendingVerification {
		t.Fatalf("expected pending status, got %q", user.Status)
	}
	if user.Plan != models.PlanFree {
		t.Fatalf("expected free plan, got %q", user.Plan)
	}
	if user.Password == testPassword {
		t.Fatal("password stored in plaintext")
	}
	if pair == nil || pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Fatal("expected a token pair at registration")
	}

	var tokens int64
	if errCount := conn.Model(&models.RefreshToken{}).
		Where("user_id = ?", user.ID).
		Count(&tokens).Error; errCount != nil {
		t.Fatalf("count refresh tokens: %v", errCount)
	}
	if tokens != 1 {
		t.Fatalf("expected one refresh token row, got %d", tokens)
	}

	code := sender.Sent[len(sender.Sent)-1].Code
	if len(code) != verification.CodeLength {
		t.Fatalf("expected %d-digit code, got %q", verification.CodeLength, code)
	}
	var count int64
	if errCount := conn.Model(&models.VerificationCode{}).
		Where("user_id = ? AND type = ?", user.ID, models.CodeTypeEmailVerification).
		Count(&count).Error; errCount != nil {
		t.Fatalf("count codes: %v", errCount)
	}
	if count != 1 {
		t.Fatalf("expected one verification code, got %d", count)
	}
}

func TestRegisterRejectsDuplicateEmail(t *testing.T) {
	svc, _, sender := newTestService(t)
	registerTestUser(t, svc, sender)

	_, _, errRegister := svc.Register(context.Background(), RegisterInput{
		Name:     "Other",
		Username: "other",
		Email:    "ADA@example.com",
		Password: testPassword,
	}, DeviceInfo{})
	appErr, ok := apperr.As(errRegister)
	if !ok || appErr.Code != "email_taken" {
		t.Fatalf("expected email_taken, got %v", errRegister)
	}
}

func TestRegisterRejectsWeakPassword(t *testing.T) {
	svc, _, _ := newTestService(t)
	_, _, errRegister := svc.Register(context.Background(), RegisterInput{
		Name:     "Ada",
		Username: "ada",
		Email:    "ada@example.com",
		Password: "short",
	}, DeviceInfo{})
	appErr, ok := apperr.As(errRegister)
	if !ok || appErr.Code != "weak_password" {
		t.Fatalf("expected weak_password, got %v", errRegister)
	}
	if appErr.Details["violations"] == nil {
		t.Fatal("expected violations detail")
	}
}

func TestLoginReturnsTokenPair(t *testing.T) {
	svc, _, sender := newTestService(t)
	registerTestUser(t, svc, sender)

	user, pair, errLogin := svc.Login(context.Background(), "ada@example.com", testPassword, DeviceInfo{})
	if errLogin != nil {
		t.Fatalf("login: %v", errLogin)
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Fatal("expected both tokens issued")
	}
	if user.FailedLoginAttempts != 0 {
		t.Fatalf("expected reset counter, got %d", user.FailedLoginAttempts)
	}

	claims, errParse := security.ParseAccessToken("test-secret", pair.AccessToken)
	if errParse != nil {
		t.Fatalf("parse access token: %v", errParse)
	}
	if claims.UserID() != user.ID {
		t.Fatalf("expected subject %q, got %q", user.ID, claims.UserID())
	}
}

func TestLoginBlocksAfterRepeatedFailures(t *testing.T) {
	svc, conn, sender := newTestService(t)
	user, _ := registerTestUser(t, svc, sender)
	ctx := context.Background()

	for i := 0; i < security.MaxFailedLoginAttempts; i++ {
		_, _, errLogin := svc.Login(ctx, "ada@example.com", "Wrong$Pass1", DeviceInfo{})
		if errLogin == nil {
			t.Fatal("expected login failure")
		}
	}

	var reloaded models.User
	if errFind := conn.First(&reloaded, "id = ?", user.ID).Error; errFind != nil {
		t.Fatalf("reload user: %v", errFind)
	}
	if reloaded.Status != models.StatusBlocked {
		t.Fatalf("expected blocked status, got %q", reloaded.Status)
	}
	if reloaded.BlockedUntil == nil || !reloaded.BlockedUntil.After(time.Now().UTC()) {
		t.Fatal("expected a future blocked_until")
	}

	_, _, errBlocked := svc.Login(ctx, "ada@example.com", testPassword, DeviceInfo{})
	appErr, ok := apperr.As(errBlocked)
	if !ok || appErr.Code != "account_blocked" {
		t.Fatalf("expected account_blocked, got %v", errBlocked)
	}
}

func TestLoginUnblocksAfterLockoutExpiry(t *testing.T) {
	svc, conn, sender := newTestService(t)
	user, _ := registerTestUser(t, svc, sender)
	ctx := context.Background()

	past := time.Now().UTC().Add(-time.Minute)
	if errSet := conn.Model(&models.User{}).Where("id = ?", user.ID).
		Updates(map[string]any{
			"status":                models.StatusBlocked,
			"blocked_until":         past,
			"failed_login_attempts": security.MaxFailedLoginAttempts,
		}).Error; errSet != nil {
		t.Fatalf("seed lockout: %v", errSet)
	}

	loggedIn, _, errLogin := svc.Login(ctx, "ada@example.com", testPassword, DeviceInfo{})
	if errLogin != nil {
		t.Fatalf("login after expiry: %v", errLogin)
	}
	if loggedIn.Status != models.StatusActive {
		t.Fatalf("expected reactivated account, got %q", loggedIn.Status)
	}
}

func TestVerifyEmailActivatesAccount(t *testing.T) {
	svc, conn, sender := newTestService(t)
	user, code := registerTestUser(t, svc, sender)
	ctx := context.Background()

	if errVerify := svc.VerifyEmail(ctx, user.ID, code); errVerify != nil {
		t.Fatalf("verify email: %v", errVerify)
	}

	var reloaded models.User
	if errFind := conn.First(&reloaded, "id = ?", user.ID).Error; errFind != nil {
		t.Fatalf("reload user: %v", errFind)
	}
	if !reloaded.EmailVerified {
		t.Fatal("expected email_verified")
	}
	if reloaded.Status != models.StatusActive {
		t.Fatalf("expected active status, got %q", reloaded.Status)
	}

	errAgain := svc.VerifyEmail(ctx, user.ID, code)
	appErr, ok := apperr.As(errAgain)
	if !ok || appErr.Kind != apperr.KindUnauthorized {
		t.Fatalf("expected rejection on reuse, got %v", errAgain)
	}
}

func TestVerifyEmailLocksAfterWrongCodes(t *testing.T) {
	svc, _, sender := newTestService(t)
	user, code := registerTestUser(t, svc, sender)
	ctx := context.Background()

	wrong := "000000"
	if wrong == code {
		wrong = "111111"
	}
	for i := 0; i < verification.MaxAttempts; i++ {
		errWrong := svc.VerifyEmail(ctx, user.ID, wrong)
		appErr, ok := apperr.As(errWrong)
		if !ok || appErr.Code != "invalid_code" {
			t.Fatalf("guess %d: expected invalid_code, got %v", i, errWrong)
		}
	}

	errLocked := svc.VerifyEmail(ctx, user.ID, code)
	appErr, ok := apperr.As(errLocked)
	if !ok || appErr.Code != "too_many_attempts" {
		t.Fatalf("expected too_many_attempts with the correct code, got %v", errLocked)
	}
}

func TestResendCodeReplacesCode(t *testing.T) {
	svc, _, sender := newTestService(t)
	_, first := registerTestUser(t, svc, sender)

	if errResend := svc.ResendCode(context.Background(), "ada@example.com"); errResend != nil {
		t.Fatalf("resend: %v", errResend)
	}
	second := sender.Sent[len(sender.Sent)-1].Code
	if first == second {
		t.Fatalf("expected a fresh code, got %q twice", first)
	}
}

func TestForgotPasswordIgnoresUnknownEmail(t *testing.T) {
	svc, _, sender := newTestService(t)
	if errForgot := svc.ForgotPassword(context.Background(), "nobody@example.com"); errForgot != nil {
		t.Fatalf("expected silent no-op, got %v", errForgot)
	}
	if len(sender.Sent) != 0 {
		t.Fatalf("expected no mail, got %d", len(sender.Sent))
	}
}

func TestResetPasswordRevokesRefreshTokens(t *testing.T) {
	svc, conn, sender := newTestService(t)
	registerTestUser(t, svc, sender)
	ctx := context.Background()

	_, pair, errLogin := svc.Login(ctx, "ada@example.com", testPassword, DeviceInfo{})
	if errLogin != nil {
		t.Fatalf("login: %v", errLogin)
	}

	if errForgot := svc.ForgotPassword(ctx, "ada@example.com"); errForgot != nil {
		t.Fatalf("forgot password: %v", errForgot)
	}
	last := sender.Sent[len(sender.Sent)-1]
	if last.Kind != "recovery" {
		t.Fatalf("expected recovery mail, got %q", last.Kind)
	}

	newPassword := "N3w$ecret!Pass"
	if errReset := svc.ResetPassword(ctx, last.Code, newPassword); errReset != nil {
		t.Fatalf("reset password: %v", errReset)
	}

	var live int64
	if errCount := conn.Model(&models.RefreshToken{}).
		Where("revoked = ?", false).Count(&live).Error; errCount != nil {
		t.Fatalf("count tokens: %v", errCount)
	}
	if live != 0 {
		t.Fatalf("expected all refresh tokens revoked, got %d live", live)
	}

	if _, errRefresh := svc.Refresh(ctx, pair.RefreshToken); errRefresh == nil {
		t.Fatal("expected revoked refresh token to be rejected")
	}

	if _, _, errOld := svc.Login(ctx, "ada@example.com", testPassword, DeviceInfo{}); errOld == nil {
		t.Fatal("expected old password to be rejected")
	}
	if _, _, errNew := svc.Login(ctx, "ada@example.com", newPassword, DeviceInfo{}); errNew != nil {
		t.Fatalf("login with new password: %v", errNew)
	}
}

func TestRefreshIssuesNewPair(t *testing.T) {
	svc, _, sender := newTestService(t)
	registerTestUser(t, svc, sender)
	ctx := context.Background()

	_, pair, errLogin := svc.Login(ctx, "ada@example.com", testPassword, DeviceInfo{})
	if errLogin != nil {
		t.Fatalf("login: %v", errLogin)
	}

	refreshed, errRefresh := svc.Refresh(ctx, pair.RefreshToken)
	if errRefresh != nil {
		t.Fatalf("refresh: %v", errRefresh)
	}
	if refreshed.AccessToken == "" || refreshed.RefreshToken == "" {
		t.Fatal("expected a full token pair")
	}
	if refreshed.RefreshToken == pair.RefreshToken {
		t.Fatal("expected a brand-new refresh token")
	}

	// The presented token is not revoked by a refresh.
	if _, errOld := svc.Refresh(ctx, pair.RefreshToken); errOld != nil {
		t.Fatalf("expected old refresh token to stay valid: %v", errOld)
	}
	if _, errNew := svc.Refresh(ctx, refreshed.RefreshToken); errNew != nil {
		t.Fatalf("refresh with new token: %v", errNew)
	}

	if _, errBogus := svc.Refresh(ctx, pair.AccessToken); errBogus == nil {
		t.Fatal("expected access token to be rejected as refresh token")
	}
}

func TestLogoutRevokesAllSessions(t *testing.T) {
	svc, _, sender := newTestService(t)
	user, _ := registerTestUser(t, svc, sender)
	ctx := context.Background()

	_, first, errFirst := svc.Login(ctx, "ada@example.com", testPassword, DeviceInfo{})
	if errFirst != nil {
		t.Fatalf("first login: %v", errFirst)
	}
	_, second, errSecond := svc.Login(ctx, "ada@example.com", testPassword, DeviceInfo{})
	if errSecond != nil {
		t.Fatalf("second login: %v", errSecond)
	}

	if errLogout := svc.Logout(ctx, user.ID); errLogout != nil {
		t.Fatalf("logout: %v", errLogout)
	}
	if _, errRefresh := svc.Refresh(ctx, first.RefreshToken); errRefresh == nil {
		t.Fatal("expected first session revoked")
	}
	if _, errRefresh := svc.Refresh(ctx, second.RefreshToken); errRefresh == nil {
		t.Fatal("expected second session revoked")
	}
}

func TestPurgeRefreshTokens(t *testing.T) {
	svc, _, sender := newTestService(t)
	user, _ := registerTestUser(t, svc, sender)
	ctx := context.Background()

	if _, _, errLogin := svc.Login(ctx, "ada@example.com", testPassword, DeviceInfo{}); errLogin != nil {
		t.Fatalf("login: %v", errLogin)
	}
	if errLogout := svc.Logout(ctx, user.ID); errLogout != nil {
		t.Fatalf("logout: %v", errLogout)
	}

	// One token from registration, one from login, both revoked.
	removed, errPurge := svc.PurgeRefreshTokens(ctx)
	if errPurge != nil {
		t.Fatalf("purge: %v", errPurge)
	}
	if removed != 2 {
		t.Fatalf("expected two purged tokens, got %d", removed)
	}
}

func TestPasswordRejectsNameSubstring(t *testing.T) {
	svc, _, _ := newTestService(t)
	_, _, errRegister := svc.Register(context.Background(), RegisterInput{
		Name:     "Ada",
		Username: "ada",
		Email:    "ada@example.com",
		Password: "Ada$ecret1!xy",
	}, DeviceInfo{})
	appErr, ok := apperr.As(errRegister)
	if !ok || appErr.Code != "weak_password" {
		t.Fatalf("expected weak_password, got %v", errRegister)
	}
	violations, _ := appErr.Details["violations"].([]string)
	found := false
	for _, v := range violations {
		if strings.Contains(v, "name") || strings.Contains(v, "username") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a name/username violation, got %v", violations)
	}
}
