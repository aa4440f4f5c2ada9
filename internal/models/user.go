package models

import "time"

// Plan tiers gating page-count quotas.
const (
	PlanFree       = "FREE"
	PlanPro        = "PRO"
	PlanTeam       = "TEAM"
	PlanEnterprise = "ENTERPRISE"
)

// User account statuses.
const (
	StatusPendingVerification = "PENDING_VERIFICATION"
	StatusActive              = "ACTIVE"
	StatusBlocked             = "BLOCKED"
	StatusSuspended           = "SUSPENDED"
	StatusDeleted             = "DELETED"
)

// User represents an end-user account stored in the database.
type User struct {
	ID string `gorm:"type:text;primaryKey"` // UUID primary key.

	Name     string `gorm:"type:text;not null"`       // Display name.
	Username string `gorm:"type:text;not null;index"` // Login name, unique among non-deleted users.
	Email    string `gorm:"type:text;not null;index"` // Email address, unique among non-deleted users.
	Phone    string `gorm:"type:text"`                      // Optional phone number.
	Password string `gorm:"type:text;not null"`             // Bcrypt password hash.

	Plan   string `gorm:"type:text;not null;default:FREE"`                 // Subscription plan.
	Avatar string `gorm:"type:text"`                                       // Avatar URL.
	Status string `gorm:"type:text;not null;default:PENDING_VERIFICATION"` // Account lifecycle status.

	EmailVerified       bool       `gorm:"not null;default:false"` // Whether the email was confirmed.
	FirstLogin          bool       `gorm:"not null;default:true"`  // Cleared by the frontend after onboarding.
	FailedLoginAttempts int        `gorm:"not null;default:0"`     // Consecutive failed password checks.
	BlockedUntil        *time.Time // Lockout expiry, nil when not blocked.

	EmailNotifications bool `gorm:"not null;default:true"`  // Transactional email opt-in.
	MarketingEmails    bool `gorm:"not null;default:false"` // Marketing email opt-in.

	CreatedAt time.Time  `gorm:"not null"` // Creation timestamp.
	UpdatedAt time.Time  `gorm:"not null"` // Last update timestamp.
	DeletedAt *time.Time `gorm:"index"`    // Soft-delete marker.
}

// MaxMainPages returns the main-page quota for a plan, -1 for unlimited.
func MaxMainPages(plan string) int64 {
	switch plan {
	case PlanFree:
		return 1
	case PlanPro:
		return 100
	default:
		return -1
	}
}

// MaxSubPages returns the per-parent sub-page quota for a plan, -1 for unlimited.
func MaxSubPages(plan string) int64 {
	switch plan {
	case PlanFree:
		return 3
	case PlanPro:
		return 10
	default:
		return -1
	}
}
