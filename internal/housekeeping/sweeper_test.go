package housekeeping

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/notionclone/notionclone/internal/db"
	"github.com/notionclone/notionclone/internal/models"
	"github.com/notionclone/notionclone/internal/settings"
	"gorm.io/gorm"
)

type countingPurger struct {
	calls int
}

func (p *countingPurger) PurgeExpiredAndUsed(ctx context.Context) (int64, error) {
	p.calls++
	return 0, nil
}

func (p *countingPurger) PurgeRefreshTokens(ctx context.Context) (int64, error) {
	p.calls++
	return 0, nil
}

type dbPurgers struct {
	conn *gorm.DB
}

func (p dbPurgers) PurgeExpiredAndUsed(ctx context.Context) (int64, error) {
	res := p.conn.WithContext(ctx).
		Where("expires_at < ? OR used = ?", time.Now().UTC(), true).
		Delete(&models.VerificationCode{})
	return res.RowsAffected, res.Error
}

func (p dbPurgers) PurgeRefreshTokens(ctx context.Context) (int64, error) {
	res := p.conn.WithContext(ctx).
		Where("expires_at < ? OR revoked = ?", time.Now().UTC(), true).
		Delete(&models.RefreshToken{})
	return res.RowsAffected, res.Error
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, errOpen := db.Open("file:" + t.TempDir() + "/housekeeping.db")
	if errOpen != nil {
		t.Fatalf("open database: %v", errOpen)
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate database: %v", errMigrate)
	}
	return conn
}

func TestIntervalReadsSetting(t *testing.T) {
	conn := openTestDB(t)
	sweeper := NewSweeper(conn, &countingPurger{}, &countingPurger{})

	if got := sweeper.Interval(); got != settings.DefaultHousekeepingIntervalSeconds*time.Second {
		t.Fatalf("expected seeded default interval, got %s", got)
	}

	if errSet := conn.Model(&models.Setting{}).
		Where("key = ?", settings.HousekeepingIntervalSecondsKey).
		Update("value", []byte("120")).Error; errSet != nil {
		t.Fatalf("update setting: %v", errSet)
	}
	if got := sweeper.Interval(); got != 120*time.Second {
		t.Fatalf("expected 120s interval, got %s", got)
	}
}

func TestSweepOncePurgesStaleRows(t *testing.T) {
	conn := openTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC()

	stale := []any{
		&models.VerificationCode{
			ID: uuid.NewString(), UserID: uuid.NewString(), Code: "111111",
			Type: models.CodeTypeEmailVerification, ExpiresAt: now.Add(-time.Hour), CreatedAt: now,
		},
		&models.RefreshToken{
			ID: uuid.NewString(), Token: uuid.NewString(), UserID: uuid.NewString(),
			ExpiresAt: now.Add(time.Hour), Revoked: true, CreatedAt: now,
		},
	}
	for _, row := range stale {
		if errCreate := conn.Create(row).Error; errCreate != nil {
			t.Fatalf("seed stale row: %v", errCreate)
		}
	}
	live := &models.RefreshToken{
		ID: uuid.NewString(), Token: uuid.NewString(), UserID: uuid.NewString(),
		ExpiresAt: now.Add(time.Hour), CreatedAt: now,
	}
	if errCreate := conn.Create(live).Error; errCreate != nil {
		t.Fatalf("seed live row: %v", errCreate)
	}

	sweeper := NewSweeper(conn, dbPurgers{conn}, dbPurgers{conn})
	sweeper.SweepOnce(ctx)

	var codes, tokens int64
	if errCount := conn.Model(&models.VerificationCode{}).Count(&codes).Error; errCount != nil {
		t.Fatalf("count codes: %v", errCount)
	}
	if errCount := conn.Model(&models.RefreshToken{}).Count(&tokens).Error; errCount != nil {
		t.Fatalf("count tokens: %v", errCount)
	}
	if codes != 0 {
		t.Fatalf("expected codes purged, got %d", codes)
	}
	if tokens != 1 {
		t.Fatalf("expected only the live token, got %d", tokens)
	}
}
