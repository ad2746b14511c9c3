package hub

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"talktime/internal/models"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// dialSubscriber spins up a test server that subscribes the incoming
// connection for the given user, then dials it.
func dialSubscriber(t *testing.T, h *Hub, userID uint) *websocket.Conn {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(*http.Request) bool { return true },
	}
	ready := make(chan struct{})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade failed: %v", err)
			return
		}
		h.Subscribe(userID, conn)
		close(ready)
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	select {
	case <-ready:
	case <-time.After(2 * time.Second):
		t.Fatal("subscriber was never registered")
	}
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) wsMessage {
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, payload, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	var msg wsMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		t.Fatalf("failed to decode message: %v", err)
	}
	return msg
}

func TestPublishDeliversToRecipientsInOrder(t *testing.T) {
	h := NewHub()
	conn := dialSubscriber(t, h, 1)

	call := &models.Call{
		ID:         uuid.New(),
		CallerID:   1,
		ListenerID: 2,
		CallType:   models.CallTypeAudio,
		Status:     models.CallStatusOngoing,
		StartTime:  time.Now(),
	}
	h.Publish(CallStartedEvent{Call: NewCallSnapshot(call)})
	h.Publish(PresenceUpdateEvent{Presence: PresenceSnapshot{UserID: 1, IsBusy: true}})

	first := readMessage(t, conn)
	if first.Type != EventCallStarted {
		t.Fatalf("expected call_started first, got %s", first.Type)
	}
	second := readMessage(t, conn)
	if second.Type != EventPresenceUpdate {
		t.Fatalf("expected presence_update second, got %s", second.Type)
	}
}

func TestPublishSkipsNonRecipients(t *testing.T) {
	h := NewHub()
	conn := dialSubscriber(t, h, 3)

	// A presence update for user 1 must not reach user 3's connection.
	h.Publish(PresenceUpdateEvent{Presence: PresenceSnapshot{UserID: 1}})
	h.Publish(PresenceUpdateEvent{Presence: PresenceSnapshot{UserID: 3}})

	msg := readMessage(t, conn)
	if msg.Type != EventPresenceUpdate {
		t.Fatalf("expected presence_update, got %s", msg.Type)
	}
	var snapshot PresenceSnapshot
	raw, _ := json.Marshal(msg.Data)
	if err := json.Unmarshal(raw, &struct {
		Presence *PresenceSnapshot `json:"presence"`
	}{Presence: &snapshot}); err != nil {
		t.Fatalf("failed to decode presence payload: %v", err)
	}
	if snapshot.UserID != 3 {
		t.Errorf("expected first delivered event to target user 3, got %d", snapshot.UserID)
	}
}

func TestPublishWithoutSubscribersIsSafe(t *testing.T) {
	h := NewHub()
	h.Publish(PresenceUpdateEvent{Presence: PresenceSnapshot{UserID: 1}})

	if count := h.SubscriberCount(1); count != 0 {
		t.Errorf("expected no subscribers, got %d", count)
	}
}

func TestPublishEvictsDeadConnections(t *testing.T) {
	h := NewHub()
	upgrader := websocket.Upgrader{
		CheckOrigin: func(*http.Request) bool { return true },
	}
	registered := make(chan *websocket.Conn, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade failed: %v", err)
			return
		}
		h.Subscribe(9, conn)
		registered <- conn
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	client, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer client.Close()

	var serverConn *websocket.Conn
	select {
	case serverConn = <-registered:
	case <-time.After(2 * time.Second):
		t.Fatal("subscriber was never registered")
	}

	// Kill the server side of the connection without unsubscribing, as a
	// crashed peer would. The next publish must fail the write and evict.
	serverConn.Close()

	h.Publish(PresenceUpdateEvent{Presence: PresenceSnapshot{UserID: 9}})

	if count := h.SubscriberCount(9); count != 0 {
		t.Errorf("expected dead connection evicted, got %d subscribers", count)
	}
}

func TestUnsubscribeRemovesConnection(t *testing.T) {
	h := NewHub()
	upgrader := websocket.Upgrader{
		CheckOrigin: func(*http.Request) bool { return true },
	}
	registered := make(chan *websocket.Conn, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade failed: %v", err)
			return
		}
		h.Subscribe(5, conn)
		registered <- conn
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	client, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer client.Close()

	var serverConn *websocket.Conn
	select {
	case serverConn = <-registered:
	case <-time.After(2 * time.Second):
		t.Fatal("subscriber was never registered")
	}

	if count := h.SubscriberCount(5); count != 1 {
		t.Fatalf("expected 1 subscriber, got %d", count)
	}

	h.Unsubscribe(5, serverConn)
	if count := h.SubscriberCount(5); count != 0 {
		t.Errorf("expected 0 subscribers after unsubscribe, got %d", count)
	}
}
