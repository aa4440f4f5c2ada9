// Package housekeeping runs the periodic purge of expired verification
// codes and dead refresh tokens.
package housekeeping

import (
	"context"
	"time"

	"github.com/notionclone/notionclone/internal/db"
	"github.com/notionclone/notionclone/internal/settings"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Purger removes stale rows of one kind and reports how many went away.
type Purger interface {
	PurgeExpiredAndUsed(ctx context.Context) (int64, error)
}

// TokenPurger removes dead refresh tokens.
type TokenPurger interface {
	PurgeRefreshTokens(ctx context.Context) (int64, error)
}

// Sweeper periodically purges stale verification codes and refresh tokens.
type Sweeper struct {
	db     *gorm.DB
	codes  Purger
	tokens TokenPurger
}

// NewSweeper constructs a sweeper over the given purgers.
func NewSweeper(conn *gorm.DB, codes Purger, tokens TokenPurger) *Sweeper {
	return &Sweeper{db: conn, codes: codes, tokens: tokens}
}

// Interval reads the sweep interval from settings.
func (s *Sweeper) Interval() time.Duration {
	seconds := db.IntSetting(s.db, settings.HousekeepingIntervalSecondsKey, settings.DefaultHousekeepingIntervalSeconds)
	if seconds <= 0 {
		seconds = settings.DefaultHousekeepingIntervalSeconds
	}
	return time.Duration(seconds) * time.Second
}

// Start launches the sweep loop. It runs once immediately, then on every
// tick, until the context is cancelled.
func (s *Sweeper) Start(ctx context.Context) {
	go func() {
		s.SweepOnce(ctx)
		ticker := time.NewTicker(s.Interval())
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.SweepOnce(ctx)
			}
		}
	}()
}

// SweepOnce runs a single purge pass. Failures are logged and do not
// stop the loop.
func (s *Sweeper) SweepOnce(ctx context.Context) {
	codes, errCodes := s.codes.PurgeExpiredAndUsed(ctx)
	if errCodes != nil {
		log.WithError(errCodes).Warn("housekeeping: purge verification codes failed")
	}
	tokens, errTokens := s.tokens.PurgeRefreshTokens(ctx)
	if errTokens != nil {
		log.WithError(errTokens).Warn("housekeeping: purge refresh tokens failed")
	}
	if codes > 0 || tokens > 0 {
		log.Debugf("housekeeping: purged %d verification codes, %d refresh tokens", codes, tokens)
	}
}
