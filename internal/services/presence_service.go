package services

import (
	"context"
	"log"
	"time"

	"talktime/internal/models"
	"talktime/internal/repository"
)

// PresenceService is the single authority for online/busy state. Busy
// transitions are invoked only by the call service around a call's
// open/close boundary, so presence never diverges from call state.
type PresenceService struct {
	repo *repository.Repository
}

func NewPresenceService(repo *repository.Repository) *PresenceService {
	return &PresenceService{repo: repo}
}

// GetStatus returns a user's presence row, creating one on first touch.
func (s *PresenceService) GetStatus(ctx context.Context, userID uint) (*models.PresenceStatus, error) {
	return s.repo.GetOrCreatePresence(ctx, userID)
}

// SetBusy marks a user busy with an estimated remaining wait in minutes.
// Called only by the call service.
func (s *PresenceService) SetBusy(ctx context.Context, userID uint, waitTime int) error {
	return s.repo.UpdatePresence(ctx, userID, map[string]interface{}{
		"is_busy":   true,
		"is_online": true,
		"wait_time": waitTime,
		"last_seen": time.Now(),
	})
}

// SetAvailable clears a user's busy flag. Called only by the call
// service.
func (s *PresenceService) SetAvailable(ctx context.Context, userID uint) error {
	return s.repo.UpdatePresence(ctx, userID, map[string]interface{}{
		"is_busy":   false,
		"wait_time": 0,
		"last_seen": time.Now(),
	})
}

// UpdateWaitTime refreshes the busy-wait estimate without touching the
// busy flag.
func (s *PresenceService) UpdateWaitTime(ctx context.Context, userID uint, waitTime int) error {
	return s.repo.UpdatePresence(ctx, userID, map[string]interface{}{
		"wait_time": waitTime,
	})
}

// Heartbeat bumps last_seen and marks the user online. Never touches
// is_busy.
func (s *PresenceService) Heartbeat(ctx context.Context, userID uint) error {
	return s.repo.UpdatePresence(ctx, userID, map[string]interface{}{
		"is_online": true,
		"last_seen": time.Now(),
	})
}

// MarkOfflineIfStale flips is_online off for users unseen since the
// threshold and force-clears busy flags with no backing ongoing call.
func (s *PresenceService) MarkOfflineIfStale(ctx context.Context, threshold time.Duration) (offline, orphans int64, err error) {
	cutoff := time.Now().Add(-threshold)

	offline, err = s.repo.MarkOfflineIfStale(ctx, cutoff)
	if err != nil {
		return 0, 0, err
	}

	orphans, err = s.repo.ClearOrphanBusy(ctx)
	if err != nil {
		return offline, 0, err
	}

	if offline > 0 || orphans > 0 {
		log.Printf("[Presence] Cleanup: %d marked offline, %d orphaned busy flags cleared", offline, orphans)
	}
	return offline, orphans, nil
}
