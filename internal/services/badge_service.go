package services

import (
	"context"
	"log"
	"time"

	"talktime/internal/models"
	"talktime/internal/repository"

	"github.com/shopspring/decimal"
)

// BadgeService assigns daily listener badges from the previous day's
// completed-call minutes and resolves the earning rate billing uses.
type BadgeService struct {
	repo *repository.Repository
}

func NewBadgeService(repo *repository.Repository) *BadgeService {
	return &BadgeService{repo: repo}
}

// dateOnly truncates a timestamp to its calendar day in UTC.
func dateOnly(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// AssignBadgesForDate computes every listener's badge for the given day
// from completed-call durations on the previous day. Idempotent:
// re-running for the same date upserts the same rows.
func (s *BadgeService) AssignBadgesForDate(ctx context.Context, date time.Time) (map[uint]*models.Badge, error) {
	day := dateOnly(date)
	prevDay := day.AddDate(0, 0, -1)

	totals, err := s.repo.SumCompletedSecondsByListener(ctx, prevDay, day)
	if err != nil {
		return nil, err
	}

	assigned := make(map[uint]*models.Badge, len(totals))
	for listenerID, seconds := range totals {
		hours := float64(seconds) / 3600.0
		rate := TierForHours(hours)

		badge := &models.Badge{
			ListenerID:         listenerID,
			BadgeDate:          day,
			Badge:              rate.Badge,
			AudioRatePerMinute: rate.AudioRatePerMinute,
			VideoRatePerMinute: rate.VideoRatePerMinute,
		}
		if err := s.repo.UpsertBadge(ctx, badge); err != nil {
			return nil, err
		}
		assigned[listenerID] = badge

		log.Printf("[Badges] Assigned %s to listener %d for %s (%.2fh completed)",
			rate.Badge, listenerID, day.Format("2006-01-02"), hours)
	}

	return assigned, nil
}

// CurrentRate resolves a listener's per-minute earning rate for a call
// type on a given day. A listener with no badge row for the day earns at
// the basic tier; a missing badge is never an error.
func (s *BadgeService) CurrentRate(ctx context.Context, listenerID uint, callType models.CallType, date time.Time) (decimal.Decimal, error) {
	badge, err := s.repo.GetBadgeForDate(ctx, listenerID, dateOnly(date))
	if err != nil {
		return decimal.Zero, err
	}
	if badge == nil {
		return RateForTier(models.BadgeTierBasic).EarningRate(callType), nil
	}
	if callType == models.CallTypeVideo {
		return badge.VideoRatePerMinute, nil
	}
	return badge.AudioRatePerMinute, nil
}

// CurrentBadge returns the listener's badge for a day, substituting the
// basic tier when none was assigned.
func (s *BadgeService) CurrentBadge(ctx context.Context, listenerID uint, date time.Time) (*models.Badge, error) {
	day := dateOnly(date)
	badge, err := s.repo.GetBadgeForDate(ctx, listenerID, day)
	if err != nil {
		return nil, err
	}
	if badge == nil {
		basic := RateForTier(models.BadgeTierBasic)
		badge = &models.Badge{
			ListenerID:         listenerID,
			BadgeDate:          day,
			Badge:              basic.Badge,
			AudioRatePerMinute: basic.AudioRatePerMinute,
			VideoRatePerMinute: basic.VideoRatePerMinute,
		}
	}
	return badge, nil
}

// History returns a page of the listener's past badges.
func (s *BadgeService) History(ctx context.Context, listenerID uint, limit, offset int) ([]models.Badge, int64, error) {
	return s.repo.GetBadgeHistory(ctx, listenerID, limit, offset)
}
