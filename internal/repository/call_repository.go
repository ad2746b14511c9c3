package repository

import (
	"context"
	"errors"
	"time"

	"talktime/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// CreateCallExclusive creates a call after verifying inside the same
// database transaction that neither party is already on an ongoing call.
func (r *Repository) CreateCallExclusive(ctx context.Context, call *models.Call) error {
	return r.Transaction(ctx, func(tx *Repository) error {
		var count int64
		err := tx.db.WithContext(ctx).Model(&models.Call{}).
			Where("(caller_id IN ? OR listener_id IN ?) AND status = ?",
				[]uint{call.CallerID, call.ListenerID},
				[]uint{call.CallerID, call.ListenerID},
				models.CallStatusOngoing).
			Count(&count).Error
		if err != nil {
			return err
		}
		if count > 0 {
			return ErrCallAlreadyOngoing
		}
		return tx.db.WithContext(ctx).Create(call).Error
	})
}

// GetCallByID retrieves a call by ID
func (r *Repository) GetCallByID(ctx context.Context, callID uuid.UUID) (*models.Call, error) {
	var call models.Call
	err := r.db.WithContext(ctx).Where("id = ?", callID).First(&call).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrCallNotFound
	}
	if err != nil {
		return nil, err
	}
	return &call, nil
}

// GetOngoingCallByUser retrieves the user's ongoing call, if any.
func (r *Repository) GetOngoingCallByUser(ctx context.Context, userID uint) (*models.Call, error) {
	var call models.Call
	err := r.db.WithContext(ctx).
		Where("(caller_id = ? OR listener_id = ?) AND status = ?",
			userID, userID, models.CallStatusOngoing).
		First(&call).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &call, nil
}

// GetOngoingCalls retrieves all ongoing calls, oldest first, for the
// billing sweep.
func (r *Repository) GetOngoingCalls(ctx context.Context, limit int) ([]*models.Call, error) {
	var calls []*models.Call
	err := r.db.WithContext(ctx).
		Where("status = ?", models.CallStatusOngoing).
		Order("start_time ASC").
		Limit(limit).
		Find(&calls).Error
	if err != nil {
		return nil, err
	}
	return calls, nil
}

// GetStalledCalls retrieves ongoing calls that have not been touched by
// billing since the cutoff. These are orphans left behind by a dead
// ticker or a crashed request and are emergency-ended by the cleanup job.
func (r *Repository) GetStalledCalls(ctx context.Context, cutoff time.Time, limit int) ([]*models.Call, error) {
	var calls []*models.Call
	err := r.db.WithContext(ctx).
		Where("status = ? AND updated_at < ?", models.CallStatusOngoing, cutoff).
		Order("updated_at ASC").
		Limit(limit).
		Find(&calls).Error
	if err != nil {
		return nil, err
	}
	return calls, nil
}

// AdvanceBilledMinute claims the next billing slot for a call with a
// compare-and-swap on the billed-minute counter. Two billers racing for
// the same slot serialize here: the loser sees zero rows affected and
// reports claimed=false, making the duplicate tick a no-op.
func (r *Repository) AdvanceBilledMinute(ctx context.Context, callID uuid.UUID, fromMinute int, coins int64, earned decimal.Decimal) (bool, error) {
	result := r.db.WithContext(ctx).Model(&models.Call{}).
		Where("id = ? AND billed_minutes = ? AND status = ?",
			callID, fromMinute, models.CallStatusOngoing).
		Updates(map[string]interface{}{
			"billed_minutes":        fromMinute + 1,
			"coins_spent":           gorm.Expr("coins_spent + ?", coins),
			"listener_money_earned": gorm.Expr("listener_money_earned + ?", earned),
			"updated_at":            time.Now(),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// TerminateCall moves an ongoing call to a terminal status. The status
// guard makes the transition race-safe: only one of a concurrent
// End/End or End/BillMinute pair wins, the other observes claimed=false.
func (r *Repository) TerminateCall(ctx context.Context, callID uuid.UUID, status models.CallStatus, endTime time.Time, durationSeconds int) (bool, error) {
	result := r.db.WithContext(ctx).Model(&models.Call{}).
		Where("id = ? AND status = ?", callID, models.CallStatusOngoing).
		Updates(map[string]interface{}{
			"status":           status,
			"end_time":         endTime,
			"duration_seconds": durationSeconds,
			"updated_at":       time.Now(),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// CallHistoryFilter narrows GetCallHistory results.
type CallHistoryFilter struct {
	Status   models.CallStatus
	CallType models.CallType
}

// GetCallHistory retrieves a user's calls, newest first, with total count.
func (r *Repository) GetCallHistory(ctx context.Context, userID uint, filter CallHistoryFilter, limit, offset int) ([]*models.Call, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Call{}).
		Where("caller_id = ? OR listener_id = ?", userID, userID)
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.CallType != "" {
		query = query.Where("call_type = ?", filter.CallType)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var calls []*models.Call
	err := query.
		Order("start_time DESC").
		Limit(limit).
		Offset(offset).
		Find(&calls).Error
	if err != nil {
		return nil, 0, err
	}

	return calls, total, nil
}

// SumCompletedSecondsByListener aggregates completed-call durations per
// listener for calls started within [from, to). Input to daily badge
// assignment.
func (r *Repository) SumCompletedSecondsByListener(ctx context.Context, from, to time.Time) (map[uint]int64, error) {
	type row struct {
		ListenerID uint
		Total      int64
	}
	var rows []row
	err := r.db.WithContext(ctx).Model(&models.Call{}).
		Select("listener_id, SUM(duration_seconds) AS total").
		Where("status = ? AND start_time >= ? AND start_time < ?",
			models.CallStatusCompleted, from, to).
		Group("listener_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	totals := make(map[uint]int64, len(rows))
	for _, rw := range rows {
		totals[rw.ListenerID] = rw.Total
	}
	return totals, nil
}
