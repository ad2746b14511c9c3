package services

import (
	"context"
	"testing"
	"time"

	"talktime/internal/models"

	"github.com/google/uuid"
)

func TestHeartbeatNeverTouchesBusy(t *testing.T) {
	ts := newTestStack(t)
	ctx := context.Background()

	if err := ts.presence.SetBusy(ctx, 1, 5); err != nil {
		t.Fatalf("SetBusy failed: %v", err)
	}

	if err := ts.presence.Heartbeat(ctx, 1); err != nil {
		t.Fatalf("Heartbeat failed: %v", err)
	}

	presence := ts.presenceOf(t, 1)
	if !presence.IsBusy {
		t.Error("heartbeat must not clear the busy flag")
	}
	if !presence.IsOnline {
		t.Error("heartbeat must mark the user online")
	}
}

func TestMarkOfflineIfStale(t *testing.T) {
	ts := newTestStack(t)
	ctx := context.Background()

	// Fresh user stays online, stale user goes offline.
	if err := ts.presence.Heartbeat(ctx, 1); err != nil {
		t.Fatalf("Heartbeat failed: %v", err)
	}
	stale := models.PresenceStatus{
		UserID:   2,
		IsOnline: true,
		LastSeen: time.Now().Add(-30 * time.Minute),
	}
	if err := ts.db.Create(&stale).Error; err != nil {
		t.Fatalf("failed to seed stale presence: %v", err)
	}

	offline, _, err := ts.presence.MarkOfflineIfStale(ctx, 5*time.Minute)
	if err != nil {
		t.Fatalf("MarkOfflineIfStale failed: %v", err)
	}
	if offline != 1 {
		t.Errorf("expected 1 user marked offline, got %d", offline)
	}

	if p := ts.presenceOf(t, 1); !p.IsOnline {
		t.Error("fresh user must stay online")
	}
	if p := ts.presenceOf(t, 2); p.IsOnline {
		t.Error("stale user must be offline")
	}
}

func TestCleanupClearsOrphanedBusyFlags(t *testing.T) {
	ts := newTestStack(t)
	ctx := context.Background()

	// User 1 is busy with a real ongoing call; user 2 is busy with no
	// backing call (orphan).
	call := models.Call{
		ID:         uuid.New(),
		CallerID:   1,
		ListenerID: 3,
		CallType:   models.CallTypeAudio,
		Status:     models.CallStatusOngoing,
		StartTime:  time.Now(),
	}
	if err := ts.db.Create(&call).Error; err != nil {
		t.Fatalf("failed to seed call: %v", err)
	}
	if err := ts.presence.SetBusy(ctx, 1, 3); err != nil {
		t.Fatalf("SetBusy failed: %v", err)
	}
	if err := ts.presence.SetBusy(ctx, 2, 3); err != nil {
		t.Fatalf("SetBusy failed: %v", err)
	}

	_, orphans, err := ts.presence.MarkOfflineIfStale(ctx, time.Hour)
	if err != nil {
		t.Fatalf("MarkOfflineIfStale failed: %v", err)
	}
	if orphans != 1 {
		t.Errorf("expected 1 orphan cleared, got %d", orphans)
	}

	if p := ts.presenceOf(t, 1); !p.IsBusy {
		t.Error("user on an ongoing call must stay busy")
	}
	if p := ts.presenceOf(t, 2); p.IsBusy {
		t.Error("orphaned busy flag must be cleared")
	}
}
