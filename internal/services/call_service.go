package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"talktime/internal/hub"
	"talktime/internal/models"
	"talktime/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotParticipant is returned when a user tries to end a call they
	// are not a party to.
	ErrNotParticipant = errors.New("user is not a party to this call")

	// ErrSelfCall is returned when a caller dials themselves.
	ErrSelfCall = errors.New("caller and listener must be different users")

	// ErrInvalidEndReason is returned for an unknown terminal status.
	ErrInvalidEndReason = errors.New("invalid end reason")

	// errSlotAlreadyBilled marks a billing race loss inside the billing
	// transaction; the caller treats it as a no-op.
	errSlotAlreadyBilled = errors.New("minute slot already billed")
)

// EventPublisher receives committed state transitions for broadcast.
type EventPublisher interface {
	Publish(event hub.Event)
}

// CallService owns the call lifecycle and mediates every ledger and
// presence mutation for a call. All transitions publish to the hub
// synchronously after commit, so call_started always precedes later
// events for the same call.
type CallService struct {
	repo      *repository.Repository
	ledger    *LedgerService
	badges    *BadgeService
	presence  *PresenceService
	publisher EventPublisher

	// now is swappable so billing scenarios can advance time in tests.
	now func() time.Time
}

func NewCallService(
	repo *repository.Repository,
	ledger *LedgerService,
	badges *BadgeService,
	presence *PresenceService,
	publisher EventPublisher,
) *CallService {
	return &CallService{
		repo:      repo,
		ledger:    ledger,
		badges:    badges,
		presence:  presence,
		publisher: publisher,
		now:       time.Now,
	}
}

// StartResult is the response to a successful call start.
type StartResult struct {
	Call                *models.Call `json:"call"`
	MaxDurationEstimate int          `json:"max_duration_estimate"`
	RemainingCoins      int64        `json:"remaining_coins"`
}

// Start opens a billed call. Ordering inside the atomic unit: wallet
// reservation happens before call-row creation; if creation fails the
// rollback returns the reserved coins. The minimum charge pays for
// minute one, so billed_minutes starts at 1.
func (s *CallService) Start(ctx context.Context, callerID, listenerID uint, callType models.CallType) (*StartResult, error) {
	if callerID == listenerID {
		return nil, ErrSelfCall
	}
	if callType != models.CallTypeAudio && callType != models.CallTypeVideo {
		return nil, fmt.Errorf("unknown call type %q", callType)
	}

	now := s.now()
	minCharge := MinimumCharge(callType)

	earnRate, err := s.badges.CurrentRate(ctx, listenerID, callType, now)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve listener rate: %w", err)
	}

	call := &models.Call{
		ID:                  uuid.New(),
		CallerID:            callerID,
		ListenerID:          listenerID,
		CallType:            callType,
		Status:              models.CallStatusOngoing,
		StartTime:           now,
		BilledMinutes:       1,
		CoinsSpent:          minCharge,
		ListenerMoneyEarned: earnRate,
	}

	err = s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		for _, userID := range []uint{callerID, listenerID} {
			ongoing, err := tx.GetOngoingCallByUser(ctx, userID)
			if err != nil {
				return err
			}
			if ongoing != nil {
				return repository.ErrCallAlreadyOngoing
			}
		}

		if _, err := tx.DebitWallet(ctx, callerID, minCharge, models.TransactionTypeSpend, &call.ID); err != nil {
			return err
		}
		if err := tx.CreateCallExclusive(ctx, call); err != nil {
			return err
		}
		if _, err := tx.CreditWallet(ctx, listenerID, 0, earnRate, models.TransactionTypeEarn, &call.ID); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	wallet, err := s.ledger.Balance(ctx, callerID)
	if err != nil {
		return nil, err
	}
	waitMinutes := s.estimateWaitMinutes(wallet.BalanceCoins, callType)

	for _, userID := range []uint{callerID, listenerID} {
		if err := s.presence.SetBusy(ctx, userID, waitMinutes); err != nil {
			s.compensateStart(ctx, call, minCharge, earnRate)
			return nil, fmt.Errorf("failed to mark user %d busy: %w", userID, err)
		}
	}

	s.publisher.Publish(hub.CallStartedEvent{Call: hub.NewCallSnapshot(call)})
	s.publishPresence(ctx, callerID, listenerID)

	log.Printf("[Calls] Started %s call %s: caller %d -> listener %d (%d coins reserved)",
		callType, call.ID, callerID, listenerID, minCharge)

	return &StartResult{
		Call:                call,
		MaxDurationEstimate: waitMinutes,
		RemainingCoins:      wallet.BalanceCoins,
	}, nil
}

// compensateStart unwinds a start whose presence flip failed after the
// ledger and call row committed: terminate the call, return the reserved
// coins, reverse the listener's minute-one credit.
func (s *CallService) compensateStart(ctx context.Context, call *models.Call, minCharge int64, earnRate decimal.Decimal) {
	if _, err := s.repo.TerminateCall(ctx, call.ID, models.CallStatusCancelled, s.now(), 0); err != nil {
		log.Printf("[Calls] Compensation: failed to cancel call %s: %v", call.ID, err)
	}
	if _, err := s.ledger.Refund(ctx, call.CallerID, minCharge, &call.ID); err != nil {
		log.Printf("[Calls] Compensation: failed to refund caller %d: %v", call.CallerID, err)
	}
	if _, err := s.ledger.Credit(ctx, call.ListenerID, 0, earnRate.Neg(), &call.ID); err != nil {
		log.Printf("[Calls] Compensation: failed to reverse listener credit for call %s: %v", call.ID, err)
	}
	for _, userID := range []uint{call.CallerID, call.ListenerID} {
		if err := s.presence.SetAvailable(ctx, userID); err != nil {
			log.Printf("[Calls] Compensation: failed to clear busy for user %d: %v", userID, err)
		}
	}
}

// BillMinute advances billing for a call by exactly one elapsed-minute
// slot. Idempotent per slot: the billed-minute counter is advanced with
// a compare-and-swap, so concurrent billers charge each minute at most
// once. An insufficient balance is a forcing function: the call is ended
// as dropped with the coins accrued so far, never partially billed.
func (s *CallService) BillMinute(ctx context.Context, callID uuid.UUID) error {
	call, err := s.repo.GetCallByID(ctx, callID)
	if err != nil {
		return err
	}
	if call.IsTerminal() {
		return nil
	}

	now := s.now()
	elapsed := now.Sub(call.StartTime)
	if elapsed < time.Duration(call.BilledMinutes)*time.Minute {
		// The call has not entered the next minute yet. Never bill
		// beyond elapsed wall-clock time.
		return nil
	}

	coinRate := CoinsPerMinute(call.CallType)
	earnRate, err := s.badges.CurrentRate(ctx, call.ListenerID, call.CallType, now)
	if err != nil {
		return fmt.Errorf("failed to resolve listener rate: %w", err)
	}

	err = s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		claimed, err := tx.AdvanceBilledMinute(ctx, call.ID, call.BilledMinutes, coinRate, earnRate)
		if err != nil {
			return err
		}
		if !claimed {
			return errSlotAlreadyBilled
		}
		if _, err := tx.DebitWallet(ctx, call.CallerID, coinRate, models.TransactionTypeSpend, &call.ID); err != nil {
			return err
		}
		if _, err := tx.CreditWallet(ctx, call.ListenerID, 0, earnRate, models.TransactionTypeEarn, &call.ID); err != nil {
			return err
		}
		return nil
	})

	switch {
	case errors.Is(err, errSlotAlreadyBilled):
		return nil
	case errors.Is(err, repository.ErrInsufficientCoins):
		log.Printf("[Calls] Caller %d out of coins on call %s, dropping", call.CallerID, call.ID)
		if _, endErr := s.End(ctx, callID, models.CallStatusDropped); endErr != nil {
			return fmt.Errorf("failed to drop call after insufficient coins: %w", endErr)
		}
		return nil
	case err != nil:
		return err
	}

	// Refresh the busy-wait estimate from the caller's remaining balance.
	wallet, err := s.ledger.Balance(ctx, call.CallerID)
	if err != nil {
		return err
	}
	waitMinutes := s.estimateWaitMinutes(wallet.BalanceCoins, call.CallType)
	for _, userID := range []uint{call.CallerID, call.ListenerID} {
		if err := s.presence.UpdateWaitTime(ctx, userID, waitMinutes); err != nil {
			log.Printf("[Calls] Failed to update wait time for user %d: %v", userID, err)
		}
	}

	return nil
}

var terminalReasons = map[models.CallStatus]bool{
	models.CallStatusCompleted:      true,
	models.CallStatusDropped:        true,
	models.CallStatusCancelled:      true,
	models.CallStatusEmergencyEnded: true,
}

// End moves a call to a terminal state. Idempotent: ending an already
// terminal call returns the existing snapshot without mutating ledger or
// presence, because an explicit client End and a forced drop from
// billing may arrive concurrently.
func (s *CallService) End(ctx context.Context, callID uuid.UUID, reason models.CallStatus) (*models.Call, error) {
	if !terminalReasons[reason] {
		return nil, ErrInvalidEndReason
	}

	call, err := s.repo.GetCallByID(ctx, callID)
	if err != nil {
		return nil, err
	}
	if call.IsTerminal() {
		return call, nil
	}

	now := s.now()
	duration := int(now.Sub(call.StartTime).Seconds())
	if duration < 0 {
		duration = 0
	}

	claimed, err := s.repo.TerminateCall(ctx, callID, reason, now, duration)
	if err != nil {
		return nil, err
	}
	if !claimed {
		// Lost the race against another terminator; return whatever
		// terminal state won.
		return s.repo.GetCallByID(ctx, callID)
	}

	for _, userID := range []uint{call.CallerID, call.ListenerID} {
		if err := s.presence.SetAvailable(ctx, userID); err != nil {
			log.Printf("[Calls] Failed to clear busy for user %d on call %s: %v", userID, call.ID, err)
		}
	}

	call, err = s.repo.GetCallByID(ctx, callID)
	if err != nil {
		return nil, err
	}

	s.publisher.Publish(hub.CallEndedEvent{Call: hub.NewCallSnapshot(call)})
	s.publishPresence(ctx, call.CallerID, call.ListenerID)

	log.Printf("[Calls] Ended call %s as %s: %ds, %d coins, %s earned",
		call.ID, reason, call.DurationSeconds, call.CoinsSpent, call.ListenerMoneyEarned)

	return call, nil
}

// EndByUser ends a call on behalf of one of its parties.
func (s *CallService) EndByUser(ctx context.Context, callID uuid.UUID, userID uint, reason models.CallStatus) (*models.Call, error) {
	call, err := s.repo.GetCallByID(ctx, callID)
	if err != nil {
		return nil, err
	}
	if call.CallerID != userID && call.ListenerID != userID {
		return nil, ErrNotParticipant
	}
	return s.End(ctx, callID, reason)
}

// EmergencyEnd ends a call without party authorization. Used by admins
// and by orphan cleanup.
func (s *CallService) EmergencyEnd(ctx context.Context, callID uuid.UUID) (*models.Call, error) {
	return s.End(ctx, callID, models.CallStatusEmergencyEnded)
}

// GetOngoing returns the user's current ongoing call, or nil.
func (s *CallService) GetOngoing(ctx context.Context, userID uint) (*models.Call, error) {
	return s.repo.GetOngoingCallByUser(ctx, userID)
}

// GetHistory returns a page of the user's past calls.
func (s *CallService) GetHistory(ctx context.Context, userID uint, filter repository.CallHistoryFilter, limit, offset int) ([]*models.Call, int64, error) {
	return s.repo.GetCallHistory(ctx, userID, filter, limit, offset)
}

// ListOngoing enumerates ongoing calls for the billing sweep.
func (s *CallService) ListOngoing(ctx context.Context, limit int) ([]*models.Call, error) {
	return s.repo.GetOngoingCalls(ctx, limit)
}

// EndStalled emergency-ends ongoing calls whose billing has not advanced
// since the threshold. Returns the number of calls ended.
func (s *CallService) EndStalled(ctx context.Context, threshold time.Duration, limit int) (int, error) {
	cutoff := s.now().Add(-threshold)
	stalled, err := s.repo.GetStalledCalls(ctx, cutoff, limit)
	if err != nil {
		return 0, err
	}

	ended := 0
	for _, call := range stalled {
		if _, err := s.EmergencyEnd(ctx, call.ID); err != nil {
			log.Printf("[Calls] Failed to emergency-end stalled call %s: %v", call.ID, err)
			continue
		}
		ended++
	}
	return ended, nil
}

// RateTable is the static rate card exposed to clients.
type RateTable struct {
	AudioCoinsPerMinute int64       `json:"audio_coins_per_minute"`
	VideoCoinsPerMinute int64       `json:"video_coins_per_minute"`
	AudioMinimumCharge  int64       `json:"audio_minimum_charge"`
	VideoMinimumCharge  int64       `json:"video_minimum_charge"`
	BadgeRates          []BadgeRate `json:"badge_rates"`
}

// Rates returns the static rate table.
func (s *CallService) Rates() RateTable {
	return RateTable{
		AudioCoinsPerMinute: AudioCoinsPerMinute,
		VideoCoinsPerMinute: VideoCoinsPerMinute,
		AudioMinimumCharge:  MinimumCharge(models.CallTypeAudio),
		VideoMinimumCharge:  MinimumCharge(models.CallTypeVideo),
		BadgeRates:          BadgeRates,
	}
}

// estimateWaitMinutes projects how many more minutes the caller can
// afford, plus the minute already paid for.
func (s *CallService) estimateWaitMinutes(balanceCoins int64, callType models.CallType) int {
	return int(balanceCoins/CoinsPerMinute(callType)) + 1
}

// publishPresence emits fresh presence snapshots for both call parties.
func (s *CallService) publishPresence(ctx context.Context, userIDs ...uint) {
	for _, userID := range userIDs {
		presence, err := s.presence.GetStatus(ctx, userID)
		if err != nil {
			log.Printf("[Calls] Failed to load presence for user %d: %v", userID, err)
			continue
		}
		s.publisher.Publish(hub.PresenceUpdateEvent{Presence: hub.NewPresenceSnapshot(presence)})
	}
}
