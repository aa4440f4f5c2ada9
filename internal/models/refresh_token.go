package models

import "time"

// RefreshToken stores an issued refresh token and its revocation state.
type RefreshToken struct {
	ID string `gorm:"type:text;primaryKey"` // UUID primary key.

	Token  string `gorm:"type:text;not null;uniqueIndex"` // Signed token string.
	UserID string `gorm:"type:text;not null;index"`       // Owning user ID.

	ExpiresAt time.Time  `gorm:"not null"`               // Expiry timestamp.
	Revoked   bool       `gorm:"not null;default:false"` // Revocation flag.
	RevokedAt *time.Time // Revocation timestamp.

	DeviceInfo string `gorm:"type:text"` // Optional device metadata.
	IPAddress  string `gorm:"type:text"` // Optional client IP.

	CreatedAt time.Time `gorm:"not null"` // Creation timestamp.
}
