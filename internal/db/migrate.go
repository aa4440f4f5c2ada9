package db

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/notionclone/notionclone/internal/models"
	internalsettings "github.com/notionclone/notionclone/internal/settings"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Migrate runs database migrations for the current dialect.
func Migrate(conn *gorm.DB) error {
	if conn == nil {
		return fmt.Errorf("db: nil connection")
	}
	switch DialectName(conn) {
	case DialectSQLite, DialectPostgres, "":
		return migrate(conn)
	default:
		return fmt.Errorf("db: unsupported dialect: %s", DialectName(conn))
	}
}

// migrate applies the schema, indexes, and setting seeds.
func migrate(conn *gorm.DB) error {
	if errAutoMigrate := conn.AutoMigrate(
		&models.User{},
		&models.RefreshToken{},
		&models.VerificationCode{},
		&models.Document{},
		&models.DocumentShare{},
		&models.Setting{},
	); errAutoMigrate != nil {
		return fmt.Errorf("db: migrate: %w", errAutoMigrate)
	}

	// ddl defines an index or DDL statement to apply.
	type ddl struct {
		name string // Human-readable name for error reporting.
		sql  string // SQL to execute.
	}
	ddls := []ddl{
		{
			name: "idx_users_email_active_unique",
			sql: `
				CREATE UNIQUE INDEX IF NOT EXISTS idx_users_email_active_unique
				ON users (email)
				WHERE deleted_at IS NULL
			`,
		},
		{
			name: "idx_users_username_active_unique",
			sql: `
				CREATE UNIQUE INDEX IF NOT EXISTS idx_users_username_active_unique
				ON users (username)
				WHERE deleted_at IS NULL
			`,
		},
		{
			name: "idx_refresh_tokens_user_id_revoked",
			sql: `
				CREATE INDEX IF NOT EXISTS idx_refresh_tokens_user_id_revoked
				ON refresh_tokens (user_id, revoked)
			`,
		},
		{
			name: "idx_refresh_tokens_expires_at",
			sql: `
				CREATE INDEX IF NOT EXISTS idx_refresh_tokens_expires_at
				ON refresh_tokens (expires_at)
			`,
		},
		{
			name: "idx_verification_codes_user_id_type_used",
			sql: `
				CREATE INDEX IF NOT EXISTS idx_verification_codes_user_id_type_used
				ON verification_codes (user_id, type, used)
			`,
		},
		{
			name: "idx_verification_codes_expires_at",
			sql: `
				CREATE INDEX IF NOT EXISTS idx_verification_codes_expires_at
				ON verification_codes (expires_at)
			`,
		},
		{
			name: "idx_documents_owner_id_parent_id_active",
			sql: `
				CREATE INDEX IF NOT EXISTS idx_documents_owner_id_parent_id_active
				ON documents (owner_id, parent_id)
				WHERE deleted_at IS NULL
			`,
		},
		{
			name: "idx_documents_public_active",
			sql: `
				CREATE INDEX IF NOT EXISTS idx_documents_public_active
				ON documents (public_slug)
				WHERE is_public = true AND deleted_at IS NULL
			`,
		},
		{
			name: "idx_document_shares_shared_with_id",
			sql: `
				CREATE INDEX IF NOT EXISTS idx_document_shares_shared_with_id
				ON document_shares (shared_with_id)
			`,
		},
		{
			name: "idx_settings_updated_at_key",
			sql: `
				CREATE INDEX IF NOT EXISTS idx_settings_updated_at_key
				ON settings (updated_at DESC, key DESC)
			`,
		},
	}
	for _, item := range ddls {
		if errDDL := conn.Exec(item.sql).Error; errDDL != nil {
			return fmt.Errorf("db: create index %s: %w", item.name, errDDL)
		}
	}

	if !IsSQLite(conn) {
		_ = conn.Exec(`CREATE EXTENSION IF NOT EXISTS pg_trgm`).Error

		// trgmIndex defines trigram and fallback index statements.
		type trgmIndex struct {
			name     string // Logical index name.
			trgmSQL  string // Trigram index SQL.
			lowerSQL string // Lowercase fallback index SQL.
		}
		trgmIndexes := []trgmIndex{
			{
				name: "idx_documents_title",
				trgmSQL: `
					CREATE INDEX IF NOT EXISTS idx_documents_title_trgm
					ON documents USING gin (LOWER(title) gin_trgm_ops)
				`,
				lowerSQL: `
					CREATE INDEX IF NOT EXISTS idx_documents_title_lower
					ON documents (LOWER(title))
				`,
			},
			{
				name: "idx_users_email",
				trgmSQL: `
					CREATE INDEX IF NOT EXISTS idx_users_email_trgm
					ON users USING gin (email gin_trgm_ops)
				`,
				lowerSQL: `
					CREATE INDEX IF NOT EXISTS idx_users_email_lower
					ON users (LOWER(email))
				`,
			},
		}
		for _, item := range trgmIndexes {
			if errIdx := conn.Exec(item.trgmSQL).Error; errIdx != nil {
				if errLower := conn.Exec(item.lowerSQL).Error; errLower != nil {
					return fmt.Errorf("db: create index %s: %w", item.name, errLower)
				}
			}
		}
	}

	if errSeed := ensureStringSetting(conn, internalsettings.SiteNameKey, internalsettings.DefaultSiteName); errSeed != nil {
		return errSeed
	}
	if errSeed := ensureIntSetting(
		conn,
		internalsettings.HousekeepingIntervalSecondsKey,
		internalsettings.DefaultHousekeepingIntervalSeconds,
	); errSeed != nil {
		return errSeed
	}
	return nil
}

// ensureStringSetting ensures a string setting exists and defaults when empty.
func ensureStringSetting(conn *gorm.DB, key, value string) error {
	return ensureSetting(conn, key, value)
}

// ensureIntSetting ensures an integer setting exists and defaults when empty.
func ensureIntSetting(conn *gorm.DB, key string, value int) error {
	return ensureSetting(conn, key, value)
}

// ensureSetting ensures a setting exists with the given default value.
func ensureSetting(conn *gorm.DB, key string, value any) error {
	payload, errMarshal := json.Marshal(value)
	if errMarshal != nil {
		return fmt.Errorf("db: marshal %s setting: %w", key, errMarshal)
	}
	rawValue := json.RawMessage(payload)

	var existing models.Setting
	if errFind := conn.Where("key = ?", key).First(&existing).Error; errFind == nil {
		trimmed := strings.TrimSpace(string(existing.Value))
		if len(existing.Value) == 0 || trimmed == "" || trimmed == "null" {
			if errUpdate := conn.Model(&existing).Updates(map[string]any{
				"value":      rawValue,
				"updated_at": time.Now().UTC(),
			}).Error; errUpdate != nil {
				return fmt.Errorf("db: update %s setting: %w", key, errUpdate)
			}
		}
		return nil
	} else if !errors.Is(errFind, gorm.ErrRecordNotFound) {
		return fmt.Errorf("db: query %s setting: %w", key, errFind)
	}

	now := time.Now().UTC()
	setting := models.Setting{
		Key:       key,
		Value:     datatypes.JSON(payload),
		UpdatedAt: now,
	}
	if errCreate := conn.Create(&setting).Error; errCreate != nil {
		return fmt.Errorf("db: create %s setting: %w", key, errCreate)
	}
	return nil
}

// StringSetting reads a string setting, falling back to the default.
func StringSetting(conn *gorm.DB, key, fallback string) string {
	var setting models.Setting
	if errFind := conn.Where("key = ?", key).First(&setting).Error; errFind != nil {
		return fallback
	}
	var value string
	if errUnmarshal := json.Unmarshal(setting.Value, &value); errUnmarshal != nil || strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}

// IntSetting reads an integer setting, falling back to the default.
func IntSetting(conn *gorm.DB, key string, fallback int) int {
	var setting models.Setting
	if errFind := conn.Where("key = ?", key).First(&setting).Error; errFind != nil {
		return fallback
	}
	var value int
	if errUnmarshal := json.Unmarshal(setting.Value, &value); errUnmarshal != nil || value <= 0 {
		return fallback
	}
	return value
}
