package services

import (
	"context"
	"testing"
	"time"

	"talktime/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// seedCompletedCall inserts a completed call of the given duration that
// started on the given day.
func (ts *testStack) seedCompletedCall(t *testing.T, listenerID uint, day time.Time, seconds int) {
	call := models.Call{
		ID:              uuid.New(),
		CallerID:        900,
		ListenerID:      listenerID,
		CallType:        models.CallTypeAudio,
		Status:          models.CallStatusCompleted,
		StartTime:       day.Add(2 * time.Hour),
		DurationSeconds: seconds,
	}
	if err := ts.db.Create(&call).Error; err != nil {
		t.Fatalf("failed to seed call: %v", err)
	}
}

func TestAssignBadgesThresholdsInclusive(t *testing.T) {
	ts := newTestStack(t)
	ctx := context.Background()

	today := time.Date(2026, 8, 23, 0, 0, 0, 0, time.UTC)
	yesterday := today.AddDate(0, 0, -1)

	// Exactly 6.0 hours must yield silver, not bronze.
	ts.seedCompletedCall(t, 1, yesterday, 6*3600)
	// 3.5 hours yields bronze.
	ts.seedCompletedCall(t, 2, yesterday, 3*3600+1800)
	// 20 minutes yields basic.
	ts.seedCompletedCall(t, 3, yesterday, 1200)
	// 9 hours across two calls yields gold.
	ts.seedCompletedCall(t, 4, yesterday, 5*3600)
	ts.seedCompletedCall(t, 4, yesterday, 4*3600)

	assigned, err := ts.badges.AssignBadgesForDate(ctx, today)
	if err != nil {
		t.Fatalf("AssignBadgesForDate failed: %v", err)
	}

	expected := map[uint]models.BadgeTier{
		1: models.BadgeTierSilver,
		2: models.BadgeTierBronze,
		3: models.BadgeTierBasic,
		4: models.BadgeTierGold,
	}
	for listenerID, tier := range expected {
		badge, ok := assigned[listenerID]
		if !ok {
			t.Fatalf("listener %d got no badge", listenerID)
		}
		if badge.Badge != tier {
			t.Errorf("listener %d: expected %s, got %s", listenerID, tier, badge.Badge)
		}
	}

	silver := assigned[1]
	if !silver.AudioRatePerMinute.Equal(decimal.NewFromFloat(1.50)) {
		t.Errorf("expected silver audio rate 1.50, got %s", silver.AudioRatePerMinute)
	}
}

func TestAssignBadgesIsIdempotent(t *testing.T) {
	ts := newTestStack(t)
	ctx := context.Background()

	today := time.Date(2026, 8, 23, 0, 0, 0, 0, time.UTC)
	ts.seedCompletedCall(t, 1, today.AddDate(0, 0, -1), 4*3600)

	if _, err := ts.badges.AssignBadgesForDate(ctx, today); err != nil {
		t.Fatalf("first assignment failed: %v", err)
	}
	if _, err := ts.badges.AssignBadgesForDate(ctx, today); err != nil {
		t.Fatalf("second assignment failed: %v", err)
	}

	var count int64
	if err := ts.db.Model(&models.Badge{}).Where("listener_id = ?", 1).Count(&count).Error; err != nil {
		t.Fatalf("failed to count badges: %v", err)
	}
	if count != 1 {
		t.Errorf("expected one badge row after rerun, got %d", count)
	}
}

func TestCurrentRateDefaultsToBasic(t *testing.T) {
	ts := newTestStack(t)
	ctx := context.Background()

	rate, err := ts.badges.CurrentRate(ctx, 42, models.CallTypeAudio, time.Now())
	if err != nil {
		t.Fatalf("CurrentRate failed: %v", err)
	}

	basic := RateForTier(models.BadgeTierBasic).AudioRatePerMinute
	if !rate.Equal(basic) {
		t.Errorf("expected basic rate %s for unbadged listener, got %s", basic, rate)
	}
}

func TestCurrentRateUsesAssignedBadge(t *testing.T) {
	ts := newTestStack(t)
	ctx := context.Background()

	today := time.Date(2026, 8, 23, 0, 0, 0, 0, time.UTC)
	ts.seedCompletedCall(t, 7, today.AddDate(0, 0, -1), 7*3600)
	if _, err := ts.badges.AssignBadgesForDate(ctx, today); err != nil {
		t.Fatalf("assignment failed: %v", err)
	}

	rate, err := ts.badges.CurrentRate(ctx, 7, models.CallTypeVideo, today)
	if err != nil {
		t.Fatalf("CurrentRate failed: %v", err)
	}

	silverVideo := RateForTier(models.BadgeTierSilver).VideoRatePerMinute
	if !rate.Equal(silverVideo) {
		t.Errorf("expected silver video rate %s, got %s", silverVideo, rate)
	}
}
