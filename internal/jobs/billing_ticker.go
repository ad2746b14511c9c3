package jobs

import (
	"context"
	"log"
	"time"

	"talktime/internal/services"
)

// BillingTicker advances billing for every ongoing call once per
// interval. One call's billing failure never blocks the others; each
// call's ledger mutation is independently atomic.
type BillingTicker struct {
	callService *services.CallService
	interval    time.Duration
	batchSize   int
	stopChan    chan struct{}
}

// NewBillingTicker creates a new billing ticker job
func NewBillingTicker(callService *services.CallService, interval time.Duration) *BillingTicker {
	return &BillingTicker{
		callService: callService,
		interval:    interval,
		batchSize:   1000,
		stopChan:    make(chan struct{}),
	}
}

// Start begins the billing loop
func (bt *BillingTicker) Start() {
	log.Printf("[BillingTicker] Starting billing job (interval: %v)", bt.interval)

	ticker := time.NewTicker(bt.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			bt.Sweep(context.Background())
		case <-bt.stopChan:
			log.Println("[BillingTicker] Stopping billing job")
			return
		}
	}
}

// Stop stops the billing loop
func (bt *BillingTicker) Stop() {
	close(bt.stopChan)
}

// Sweep bills one minute for every ongoing call. Exported so tests can
// simulate ticks without a running loop. Returns how many calls were
// processed and how many failed.
func (bt *BillingTicker) Sweep(ctx context.Context) (processed, failed int) {
	calls, err := bt.callService.ListOngoing(ctx, bt.batchSize)
	if err != nil {
		log.Printf("[BillingTicker] Error fetching ongoing calls: %v", err)
		return 0, 0
	}

	if len(calls) == 0 {
		return 0, 0
	}

	for _, call := range calls {
		if err := bt.callService.BillMinute(ctx, call.ID); err != nil {
			failed++
			log.Printf("[BillingTicker] Error billing call %s: %v", call.ID, err)
			continue
		}
		processed++
	}

	if failed > 0 {
		log.Printf("[BillingTicker] Sweep finished: %d billed, %d failed", processed, failed)
	}
	return processed, failed
}
