package repository

import (
	"context"
	"errors"
	"time"

	"talktime/internal/models"

	"gorm.io/gorm"
)

// GetOrCreatePresence retrieves a user's presence row, creating a fresh
// offline one on first touch.
func (r *Repository) GetOrCreatePresence(ctx context.Context, userID uint) (*models.PresenceStatus, error) {
	var presence models.PresenceStatus
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&presence).Error
	if err == nil {
		return &presence, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	presence = models.PresenceStatus{
		UserID:   userID,
		LastSeen: time.Now(),
	}
	if err := r.db.WithContext(ctx).Create(&presence).Error; err != nil {
		return nil, err
	}
	return &presence, nil
}

// UpdatePresence applies a partial update to a user's presence row.
func (r *Repository) UpdatePresence(ctx context.Context, userID uint, updates map[string]interface{}) error {
	if _, err := r.GetOrCreatePresence(ctx, userID); err != nil {
		return err
	}
	return r.db.WithContext(ctx).Model(&models.PresenceStatus{}).
		Where("user_id = ?", userID).
		Updates(updates).Error
}

// MarkOfflineIfStale sets is_online=false for every user whose last_seen
// is older than the cutoff. Returns the number of rows flipped.
func (r *Repository) MarkOfflineIfStale(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Model(&models.PresenceStatus{}).
		Where("is_online = ? AND last_seen < ?", true, cutoff).
		Update("is_online", false)
	return result.RowsAffected, result.Error
}

// ClearOrphanBusy force-clears is_busy for users who are marked busy but
// have no ongoing call. Recovers presence rows orphaned by a crash
// between a call transition and its presence flip.
func (r *Repository) ClearOrphanBusy(ctx context.Context) (int64, error) {
	sub := r.db.Model(&models.Call{}).
		Select("caller_id").
		Where("status = ?", models.CallStatusOngoing)
	sub2 := r.db.Model(&models.Call{}).
		Select("listener_id").
		Where("status = ?", models.CallStatusOngoing)

	result := r.db.WithContext(ctx).Model(&models.PresenceStatus{}).
		Where("is_busy = ? AND user_id NOT IN (?) AND user_id NOT IN (?)", true, sub, sub2).
		Updates(map[string]interface{}{
			"is_busy":   false,
			"wait_time": 0,
		})
	return result.RowsAffected, result.Error
}
