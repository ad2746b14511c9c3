package jobs

import (
	"context"
	"log"
	"time"

	"talktime/internal/services"
)

// PresenceCleanup periodically marks stale users offline, clears
// orphaned busy flags, and emergency-ends ongoing calls whose billing
// has stalled.
type PresenceCleanup struct {
	presenceService *services.PresenceService
	callService     *services.CallService
	interval        time.Duration
	staleAfter      time.Duration
	stalledAfter    time.Duration
	stopChan        chan struct{}
}

// NewPresenceCleanup creates a new presence cleanup job
func NewPresenceCleanup(
	presenceService *services.PresenceService,
	callService *services.CallService,
	interval time.Duration,
	staleAfter time.Duration,
	stalledAfter time.Duration,
) *PresenceCleanup {
	return &PresenceCleanup{
		presenceService: presenceService,
		callService:     callService,
		interval:        interval,
		staleAfter:      staleAfter,
		stalledAfter:    stalledAfter,
		stopChan:        make(chan struct{}),
	}
}

// Start begins the cleanup loop
func (pc *PresenceCleanup) Start() {
	log.Printf("[PresenceCleanup] Starting cleanup job (interval: %v, stale after: %v)", pc.interval, pc.staleAfter)

	ticker := time.NewTicker(pc.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			pc.Run(context.Background())
		case <-pc.stopChan:
			log.Println("[PresenceCleanup] Stopping cleanup job")
			return
		}
	}
}

// Stop stops the cleanup loop
func (pc *PresenceCleanup) Stop() {
	close(pc.stopChan)
}

// Run performs one cleanup pass. Stalled calls are ended first so their
// parties' busy flags are cleared through the normal End path rather
// than by the orphan sweep.
func (pc *PresenceCleanup) Run(ctx context.Context) {
	ended, err := pc.callService.EndStalled(ctx, pc.stalledAfter, 100)
	if err != nil {
		log.Printf("[PresenceCleanup] Error ending stalled calls: %v", err)
	} else if ended > 0 {
		log.Printf("[PresenceCleanup] Emergency-ended %d stalled calls", ended)
	}

	if _, _, err := pc.presenceService.MarkOfflineIfStale(ctx, pc.staleAfter); err != nil {
		log.Printf("[PresenceCleanup] Error during presence cleanup: %v", err)
	}
}
