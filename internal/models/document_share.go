package models

import "time"

// Share permissions.
const (
	PermissionView = "VIEW"
	PermissionEdit = "EDIT"
)

// DocumentShare grants a user VIEW or EDIT access to another user's document.
type DocumentShare struct {
	ID string `gorm:"type:text;primaryKey"` // UUID primary key.

	DocumentID   string `gorm:"type:text;not null;index;uniqueIndex:uk_document_user"` // Shared document ID.
	SharedWithID string `gorm:"type:text;not null;index;uniqueIndex:uk_document_user"` // Recipient user ID.
	SharedByID   string `gorm:"type:text;not null"`                                    // Granting user ID.

	Permission string `gorm:"type:text;not null;default:VIEW"` // VIEW or EDIT.

	SharedAt time.Time `gorm:"not null"` // Grant timestamp.
}
