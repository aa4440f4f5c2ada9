// Package verification manages short-lived numeric one-time codes.
package verification

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/notionclone/notionclone/internal/apperr"
	"github.com/notionclone/notionclone/internal/models"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Code lifetime and attempt policy.
const (
	// CodeLength is the number of digits in a generated code.
	CodeLength = 6
	// CodeTTL is how long a code stays valid after issuance.
	CodeTTL = 15 * time.Minute
	// MaxAttempts is the number of verification attempts before rejection.
	MaxAttempts = 3
)

// Service issues, consumes, and purges verification codes.
type Service struct {
	db *gorm.DB
}

// NewService constructs a verification code service.
func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// GenerateCode returns a cryptographically random numeric code.
func GenerateCode(length int) (string, error) {
	if length <= 0 {
		length = CodeLength
	}
	var sb strings.Builder
	for i := 0; i < length; i++ {
		digit, errRand := rand.Int(rand.Reader, big.NewInt(10))
		if errRand != nil {
			return "", fmt.Errorf("verification: generate code: %w", errRand)
		}
		sb.WriteString(digit.String())
	}
	return sb.String(), nil
}

// Issue deletes any prior code of the given type for the user and creates a
// fresh one with a 15-minute expiry. The plaintext code is returned for
// delivery by the caller.
func (s *Service) Issue(ctx context.Context, tx *gorm.DB, userID, codeType string) (string, error) {
	if tx == nil {
		tx = s.db
	}

	code, errGenerate := GenerateCode(CodeLength)
	if errGenerate != nil {
		return "", errGenerate
	}

	if errDelete := tx.WithContext(ctx).
		Where("user_id = ? AND type = ?", userID, codeType).
		Delete(&models.VerificationCode{}).Error; errDelete != nil {
		return "", fmt.Errorf("verification: delete prior codes: %w", errDelete)
	}

	now := time.Now().UTC()
	record := models.VerificationCode{
		ID:        uuid.NewString(),
		UserID:    userID,
		Code:      code,
		Type:      codeType,
		ExpiresAt: now.Add(CodeTTL),
		CreatedAt: now,
	}
	if errCreate := tx.WithContext(ctx).Create(&record).Error; errCreate != nil {
		return "", fmt.Errorf("verification: create code: %w", errCreate)
	}
	return code, nil
}

// Consume validates and marks a code used, returning the owning user ID.
// When expectedUserID is non-empty the code must belong to that user, and
// every wrong guess counts against the user's outstanding code until the
// attempt budget is exhausted.
func (s *Service) Consume(ctx context.Context, tx *gorm.DB, code, codeType, expectedUserID string) (string, error) {
	if tx == nil {
		tx = s.db
	}

	now := time.Now().UTC()
	var record models.VerificationCode
	errFind := tx.WithContext(ctx).
		Where("code = ? AND type = ?", code, codeType).
		First(&record).Error
	if errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return "", s.rejectGuess(ctx, tx, codeType, expectedUserID)
		}
		return "", fmt.Errorf("verification: find code: %w", errFind)
	}

	if expectedUserID != "" && record.UserID != expectedUserID {
		// An owner mismatch reads like a wrong guess so code existence
		// is not leaked.
		return "", s.rejectGuess(ctx, tx, codeType, expectedUserID)
	}
	if record.Used {
		return "", apperr.Unauthorized("code_already_used", "verification code already used")
	}
	if !record.ExpiresAt.After(now) {
		return "", apperr.Unauthorized("invalid_code", "invalid or expired verification code")
	}
	if record.Attempts >= MaxAttempts {
		return "", apperr.Unauthorized("too_many_attempts", "too many verification attempts")
	}

	// Conditional update is the atomic gate against double consumption.
	res := tx.WithContext(ctx).Model(&models.VerificationCode{}).
		Where("id = ? AND used = ?", record.ID, false).
		Updates(map[string]any{"used": true, "used_at": now})
	if res.Error != nil {
		return "", fmt.Errorf("verification: consume code: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return "", apperr.Unauthorized("code_already_used", "verification code already used")
	}
	return record.UserID, nil
}

// rejectGuess counts a wrong guess against the user's outstanding code.
// Once the attempt budget is spent, further guesses fail as
// too_many_attempts no matter what code is presented.
func (s *Service) rejectGuess(ctx context.Context, tx *gorm.DB, codeType, userID string) error {
	invalid := apperr.Unauthorized("invalid_code", "invalid or expired verification code")
	if userID == "" {
		return invalid
	}

	var outstanding models.VerificationCode
	errFind := tx.WithContext(ctx).
		Where("user_id = ? AND type = ? AND used = ?", userID, codeType, false).
		First(&outstanding).Error
	if errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return invalid
		}
		return fmt.Errorf("verification: find outstanding code: %w", errFind)
	}
	if outstanding.Attempts >= MaxAttempts {
		return apperr.Unauthorized("too_many_attempts", "too many verification attempts")
	}
	if errBump := tx.WithContext(ctx).Model(&models.VerificationCode{}).
		Where("id = ?", outstanding.ID).
		Update("attempts", gorm.Expr("attempts + 1")).Error; errBump != nil {
		log.WithError(errBump).Warn("verification: bump attempts failed")
	}
	return invalid
}

// RegisterFailedAttempt counts a failed verification against the outstanding
// unused code for a user and type, if one exists.
func (s *Service) RegisterFailedAttempt(ctx context.Context, userID, codeType string) {
	errBump := s.db.WithContext(ctx).Model(&models.VerificationCode{}).
		Where("user_id = ? AND type = ? AND used = ?", userID, codeType, false).
		Update("attempts", gorm.Expr("attempts + 1")).Error
	if errBump != nil {
		log.WithError(errBump).Warn("verification: register failed attempt")
	}
}

// PurgeExpiredAndUsed removes expired or consumed codes. Safe to run repeatedly.
func (s *Service) PurgeExpiredAndUsed(ctx context.Context) (int64, error) {
	res := s.db.WithContext(ctx).
		Where("expires_at < ? OR used = ?", time.Now().UTC(), true).
		Delete(&models.VerificationCode{})
	if res.Error != nil {
		return 0, fmt.Errorf("verification: purge: %w", res.Error)
	}
	return res.RowsAffected, nil
}
