package models

import "time"

// Verification code types.
const (
	CodeTypeEmailVerification = "EMAIL_VERIFICATION"
	CodeTypePasswordRecovery  = "PASSWORD_RECOVERY"
)

// VerificationCode stores a short-lived numeric one-time code.
type VerificationCode struct {
	ID string `gorm:"type:text;primaryKey"` // UUID primary key.

	UserID string `gorm:"type:text;not null;index"` // Owning user ID.
	Code   string `gorm:"type:text;not null;index"` // Numeric code.
	Type   string `gorm:"type:text;not null"`       // EMAIL_VERIFICATION or PASSWORD_RECOVERY.

	ExpiresAt time.Time  `gorm:"not null"`               // Expiry, 15 minutes from creation.
	Used      bool       `gorm:"not null;default:false"` // Consumption flag.
	UsedAt    *time.Time // Consumption timestamp.
	Attempts  int        `gorm:"not null;default:0"` // Verification attempts against this code.

	CreatedAt time.Time `gorm:"not null"` // Creation timestamp.
}
