package hub

import (
	"time"

	"talktime/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type EventKind string

const (
	EventCallStarted    EventKind = "call_started"
	EventCallEnded      EventKind = "call_ended"
	EventPresenceUpdate EventKind = "presence_update"
)

// Event is a broadcastable state-change notification. Each kind is a
// closed struct type so consumers get compile-time coverage of the
// payload instead of an open dictionary.
type Event interface {
	Kind() EventKind
	Recipients() []uint
}

// CallSnapshot is the call state carried on call events.
type CallSnapshot struct {
	CallID              uuid.UUID         `json:"call_id"`
	CallerID            uint              `json:"caller_id"`
	ListenerID          uint              `json:"listener_id"`
	CallType            models.CallType   `json:"call_type"`
	Status              models.CallStatus `json:"status"`
	StartTime           time.Time         `json:"start_time"`
	EndTime             *time.Time        `json:"end_time,omitempty"`
	DurationSeconds     int               `json:"duration_seconds"`
	CoinsSpent          int64             `json:"coins_spent"`
	ListenerMoneyEarned decimal.Decimal   `json:"listener_money_earned"`
}

// PresenceSnapshot is the presence state carried on presence events.
type PresenceSnapshot struct {
	UserID   uint      `json:"user_id"`
	IsOnline bool      `json:"is_online"`
	IsBusy   bool      `json:"is_busy"`
	WaitTime int       `json:"wait_time"`
	LastSeen time.Time `json:"last_seen"`
}

// NewCallSnapshot builds a snapshot from a call row.
func NewCallSnapshot(call *models.Call) CallSnapshot {
	return CallSnapshot{
		CallID:              call.ID,
		CallerID:            call.CallerID,
		ListenerID:          call.ListenerID,
		CallType:            call.CallType,
		Status:              call.Status,
		StartTime:           call.StartTime,
		EndTime:             call.EndTime,
		DurationSeconds:     call.DurationSeconds,
		CoinsSpent:          call.CoinsSpent,
		ListenerMoneyEarned: call.ListenerMoneyEarned,
	}
}

// NewPresenceSnapshot builds a snapshot from a presence row.
func NewPresenceSnapshot(p *models.PresenceStatus) PresenceSnapshot {
	return PresenceSnapshot{
		UserID:   p.UserID,
		IsOnline: p.IsOnline,
		IsBusy:   p.IsBusy,
		WaitTime: p.WaitTime,
		LastSeen: p.LastSeen,
	}
}

// CallStartedEvent announces a new ongoing call to both parties.
type CallStartedEvent struct {
	Call CallSnapshot `json:"call"`
}

func (e CallStartedEvent) Kind() EventKind { return EventCallStarted }

func (e CallStartedEvent) Recipients() []uint {
	return []uint{e.Call.CallerID, e.Call.ListenerID}
}

// CallEndedEvent announces a terminal call transition to both parties.
type CallEndedEvent struct {
	Call CallSnapshot `json:"call"`
}

func (e CallEndedEvent) Kind() EventKind { return EventCallEnded }

func (e CallEndedEvent) Recipients() []uint {
	return []uint{e.Call.CallerID, e.Call.ListenerID}
}

// PresenceUpdateEvent announces a presence change for one user.
type PresenceUpdateEvent struct {
	Presence PresenceSnapshot `json:"presence"`
}

func (e PresenceUpdateEvent) Kind() EventKind { return EventPresenceUpdate }

func (e PresenceUpdateEvent) Recipients() []uint {
	return []uint{e.Presence.UserID}
}
