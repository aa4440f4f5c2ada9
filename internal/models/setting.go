package models

import (
	"time"

	"gorm.io/datatypes"
)

// Setting stores a keyed JSON configuration value.
type Setting struct {
	Key   string         `gorm:"type:text;primaryKey"` // Setting key.
	Value datatypes.JSON `gorm:"type:jsonb"`           // JSON-encoded value.

	UpdatedAt time.Time `gorm:"not null"` // Last update timestamp.
}
