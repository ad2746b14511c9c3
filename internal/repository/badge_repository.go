package repository

import (
	"context"
	"errors"
	"time"

	"talktime/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// UpsertBadge writes a listener's badge for a day. Re-running assignment
// for the same day overwrites the row deterministically instead of
// duplicating it.
func (r *Repository) UpsertBadge(ctx context.Context, badge *models.Badge) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "listener_id"}, {Name: "badge_date"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"badge":                 badge.Badge,
			"audio_rate_per_minute": badge.AudioRatePerMinute,
			"video_rate_per_minute": badge.VideoRatePerMinute,
			"updated_at":            time.Now(),
		}),
	}).Create(badge).Error
}

// GetBadgeForDate retrieves a listener's badge for a specific day.
// Returns nil without error when no badge was assigned for that day.
func (r *Repository) GetBadgeForDate(ctx context.Context, listenerID uint, date time.Time) (*models.Badge, error) {
	var badge models.Badge
	err := r.db.WithContext(ctx).
		Where("listener_id = ? AND badge_date = ?", listenerID, date).
		First(&badge).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &badge, nil
}

// GetBadgeHistory retrieves a listener's badges, newest first.
func (r *Repository) GetBadgeHistory(ctx context.Context, listenerID uint, limit, offset int) ([]models.Badge, int64, error) {
	var total int64
	err := r.db.WithContext(ctx).Model(&models.Badge{}).
		Where("listener_id = ?", listenerID).
		Count(&total).Error
	if err != nil {
		return nil, 0, err
	}

	var badges []models.Badge
	err = r.db.WithContext(ctx).
		Where("listener_id = ?", listenerID).
		Order("badge_date DESC").
		Limit(limit).
		Offset(offset).
		Find(&badges).Error
	if err != nil {
		return nil, 0, err
	}

	return badges, total, nil
}
