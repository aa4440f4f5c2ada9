package models

import "time"

// Document represents a page or sub-page in the workspace hierarchy.
type Document struct {
	ID string `gorm:"type:text;primaryKey"` // UUID primary key.

	Title   string `gorm:"type:text;not null"` // Page title.
	Content string `gorm:"type:text"`          // Sanitized HTML content.
	Icon    string `gorm:"type:text"`          // Emoji or icon URL.
	Cover   string `gorm:"type:text"`          // Cover image URL.

	OwnerID  string  `gorm:"type:text;not null;index"` // Owning user ID.
	ParentID *string `gorm:"type:text;index"`          // Parent document ID, nil for main pages.

	IsFavorite bool    `gorm:"not null;default:false"` // Favorite flag.
	IsArchived bool    `gorm:"not null;default:false"` // Archive flag.
	IsPublic   bool    `gorm:"not null;default:false"` // Public publishing flag.
	PublicSlug *string `gorm:"type:text;uniqueIndex"`  // Public URL slug, set iff IsPublic.

	AllowComments  bool    `gorm:"not null;default:true"` // Comment toggle for public pages.
	LastEditedByID *string `gorm:"type:text"`             // User who last edited the document.

	CreatedAt time.Time  `gorm:"not null"` // Creation timestamp.
	UpdatedAt time.Time  `gorm:"not null"` // Last update timestamp.
	DeletedAt *time.Time `gorm:"index"`    // Soft-delete marker.
}
