package verification

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/notionclone/notionclone/internal/apperr"
	"github.com/notionclone/notionclone/internal/db"
	"github.com/notionclone/notionclone/internal/models"
	"gorm.io/gorm"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, errOpen := db.Open("file:" + t.TempDir() + "/verification.db")
	if errOpen != nil {
		t.Fatalf("open database: %v", errOpen)
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate database: %v", errMigrate)
	}
	return conn
}

func TestGenerateCodeFormat(t *testing.T) {
	code, errGenerate := GenerateCode(CodeLength)
	if errGenerate != nil {
		t.Fatalf("generate code: %v", errGenerate)
	}
	if len(code) != CodeLength {
		t.Fatalf("expected %d digits, got %q", CodeLength, code)
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			t.Fatalf("expected digits only, got %q", code)
		}
	}
}

func TestIssueReplacesPriorCode(t *testing.T) {
	conn := openTestDB(t)
	svc := NewService(conn)
	ctx := context.Background()
	userID := uuid.NewString()

	first, errFirst := svc.Issue(ctx, nil, userID, models.CodeTypeEmailVerification)
	if errFirst != nil {
		t.Fatalf("issue first code: %v", errFirst)
	}
	second, errSecond := svc.Issue(ctx, nil, userID, models.CodeTypeEmailVerification)
	if errSecond != nil {
		t.Fatalf("issue second code: %v", errSecond)
	}
	if first == second {
		t.Fatalf("expected distinct codes, got %q twice", first)
	}

	var count int64
	if errCount := conn.Model(&models.VerificationCode{}).
		Where("user_id = ?", userID).Count(&count).Error; errCount != nil {
		t.Fatalf("count codes: %v", errCount)
	}
	if count != 1 {
		t.Fatalf("expected exactly one outstanding code, got %d", count)
	}
}

func TestConsumeHappyPath(t *testing.T) {
	conn := openTestDB(t)
	svc := NewService(conn)
	ctx := context.Background()
	userID := uuid.NewString()

	code, errIssue := svc.Issue(ctx, nil, userID, models.CodeTypePasswordRecovery)
	if errIssue != nil {
		t.Fatalf("issue code: %v", errIssue)
	}
	gotUser, errConsume := svc.Consume(ctx, nil, code, models.CodeTypePasswordRecovery, "")
	if errConsume != nil {
		t.Fatalf("consume code: %v", errConsume)
	}
	if gotUser != userID {
		t.Fatalf("expected user %q, got %q", userID, gotUser)
	}

	_, errAgain := svc.Consume(ctx, nil, code, models.CodeTypePasswordRecovery, "")
	appErr, ok := apperr.As(errAgain)
	if !ok || appErr.Code != "code_already_used" {
		t.Fatalf("expected code_already_used on reuse, got %v", errAgain)
	}
}

func TestConsumeRejectsWrongOwner(t *testing.T) {
	conn := openTestDB(t)
	svc := NewService(conn)
	ctx := context.Background()
	ownerID := uuid.NewString()
	claimerID := uuid.NewString()

	code, errIssue := svc.Issue(ctx, nil, ownerID, models.CodeTypeEmailVerification)
	if errIssue != nil {
		t.Fatalf("issue code: %v", errIssue)
	}
	if _, errIssue = svc.Issue(ctx, nil, claimerID, models.CodeTypeEmailVerification); errIssue != nil {
		t.Fatalf("issue claimer code: %v", errIssue)
	}

	_, errConsume := svc.Consume(ctx, nil, code, models.CodeTypeEmailVerification, claimerID)
	appErr, ok := apperr.As(errConsume)
	if !ok || appErr.Code != "invalid_code" {
		t.Fatalf("expected invalid_code for owner mismatch, got %v", errConsume)
	}

	// The guess counts against the claimer's own code, not the owner's.
	var claimerCode models.VerificationCode
	if errFind := conn.Where("user_id = ?", claimerID).First(&claimerCode).Error; errFind != nil {
		t.Fatalf("reload claimer code: %v", errFind)
	}
	if claimerCode.Attempts != 1 {
		t.Fatalf("expected attempt counted for claimer, got %d", claimerCode.Attempts)
	}
	var ownerCode models.VerificationCode
	if errFind := conn.Where("user_id = ?", ownerID).First(&ownerCode).Error; errFind != nil {
		t.Fatalf("reload owner code: %v", errFind)
	}
	if ownerCode.Attempts != 0 {
		t.Fatalf("expected owner code untouched, got %d attempts", ownerCode.Attempts)
	}
}

func TestConsumeLocksAfterWrongGuesses(t *testing.T) {
	conn := openTestDB(t)
	svc := NewService(conn)
	ctx := context.Background()
	userID := uuid.NewString()

	code, errIssue := svc.Issue(ctx, nil, userID, models.CodeTypeEmailVerification)
	if errIssue != nil {
		t.Fatalf("issue code: %v", errIssue)
	}
	wrong := "000000"
	if wrong == code {
		wrong = "111111"
	}

	for i := 0; i < MaxAttempts; i++ {
		_, errGuess := svc.Consume(ctx, nil, wrong, models.CodeTypeEmailVerification, userID)
		appErr, ok := apperr.As(errGuess)
		if !ok || appErr.Code != "invalid_code" {
			t.Fatalf("guess %d: expected invalid_code, got %v", i, errGuess)
		}
	}

	// The budget is spent: the correct code no longer works either.
	_, errLocked := svc.Consume(ctx, nil, code, models.CodeTypeEmailVerification, userID)
	appErr, ok := apperr.As(errLocked)
	if !ok || appErr.Code != "too_many_attempts" {
		t.Fatalf("expected too_many_attempts with the correct code, got %v", errLocked)
	}
	_, errWrong := svc.Consume(ctx, nil, wrong, models.CodeTypeEmailVerification, userID)
	appErr, ok = apperr.As(errWrong)
	if !ok || appErr.Code != "too_many_attempts" {
		t.Fatalf("expected too_many_attempts with a wrong code, got %v", errWrong)
	}
}

func TestConsumeRejectsAfterMaxAttempts(t *testing.T) {
	conn := openTestDB(t)
	svc := NewService(conn)
	ctx := context.Background()
	userID := uuid.NewString()

	code, errIssue := svc.Issue(ctx, nil, userID, models.CodeTypeEmailVerification)
	if errIssue != nil {
		t.Fatalf("issue code: %v", errIssue)
	}
	if errBump := conn.Model(&models.VerificationCode{}).
		Where("user_id = ?", userID).
		Update("attempts", MaxAttempts).Error; errBump != nil {
		t.Fatalf("set attempts: %v", errBump)
	}

	_, errConsume := svc.Consume(ctx, nil, code, models.CodeTypeEmailVerification, userID)
	appErr, ok := apperr.As(errConsume)
	if !ok || appErr.Code != "too_many_attempts" {
		t.Fatalf("expected too_many_attempts, got %v", errConsume)
	}
}

func TestConsumeRejectsExpiredCode(t *testing.T) {
	conn := openTestDB(t)
	svc := NewService(conn)
	ctx := context.Background()
	userID := uuid.NewString()

	code, errIssue := svc.Issue(ctx, nil, userID, models.CodeTypeEmailVerification)
	if errIssue != nil {
		t.Fatalf("issue code: %v", errIssue)
	}
	if errExpire := conn.Model(&models.VerificationCode{}).
		Where("user_id = ?", userID).
		Update("expires_at", time.Now().UTC().Add(-time.Minute)).Error; errExpire != nil {
		t.Fatalf("expire code: %v", errExpire)
	}

	_, errConsume := svc.Consume(ctx, nil, code, models.CodeTypeEmailVerification, userID)
	appErr, ok := apperr.As(errConsume)
	if !ok || appErr.Code != "invalid_code" {
		t.Fatalf("expected invalid_code for expired code, got %v", errConsume)
	}
}

func TestPurgeExpiredAndUsed(t *testing.T) {
	conn := openTestDB(t)
	svc := NewService(conn)
	ctx := context.Background()

	liveUser := uuid.NewString()
	if _, errIssue := svc.Issue(ctx, nil, liveUser, models.CodeTypeEmailVerification); errIssue != nil {
		t.Fatalf("issue live code: %v", errIssue)
	}

	staleUser := uuid.NewString()
	code, errIssue := svc.Issue(ctx, nil, staleUser, models.CodeTypeEmailVerification)
	if errIssue != nil {
		t.Fatalf("issue stale code: %v", errIssue)
	}
	if _, errConsume := svc.Consume(ctx, nil, code, models.CodeTypeEmailVerification, staleUser); errConsume != nil {
		t.Fatalf("consume stale code: %v", errConsume)
	}

	removed, errPurge := svc.PurgeExpiredAndUsed(ctx)
	if errPurge != nil {
		t.Fatalf("purge: %v", errPurge)
	}
	if removed != 1 {
		t.Fatalf("expected one purged code, got %d", removed)
	}

	var remaining int64
	if errCount := conn.Model(&models.VerificationCode{}).Count(&remaining).Error; errCount != nil {
		t.Fatalf("count remaining: %v", errCount)
	}
	if remaining != 1 {
		t.Fatalf("expected one remaining code, got %d", remaining)
	}
}
