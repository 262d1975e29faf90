package ws

import (
	"encoding/json"
	"testing"

	"github.com/ozanbudak/ikmesaj/models"
)

// newTestClient, conn'suz bir test session'ı oluşturur ve Hub'a ekler.
// Event'ler send channel'ından okunur — gerçek socket gerekmez.
func newTestClient(h *Hub, participantID, sessionID string, role models.Role) *Client {
	c := &Client{
		hub:       h,
		sessionID: sessionID,
		principal: models.Principal{
			ParticipantID: participantID,
			DisplayName:   participantID,
			Role:          role,
		},
		send:   make(chan []byte, sendBufferSize),
		done:   make(chan struct{}),
		joined: make(map[string]bool),
	}
	h.addClient(c)
	return c
}

// drainOne, client'ın send channel'ından bir event okur; yoksa nil döner.
func drainOne(t *testing.T, c *Client) *Event {
	t.Helper()
	select {
	case data := <-c.send:
		var ev Event
		if err := json.Unmarshal(data, &ev); err != nil {
			t.Fatalf("failed to unmarshal event: %v", err)
		}
		return &ev
	default:
		return nil
	}
}

func TestJoinRoomIdempotent(t *testing.T) {
	h := NewHub()
	c := newTestClient(h, "applicant-1", "s1", models.RoleApplicant)

	h.JoinRoom(c, "conv-1")
	h.JoinRoom(c, "conv-1")

	h.BroadcastToConversation("conv-1", Event{Op: OpMessageReceived})

	if ev := drainOne(t, c); ev == nil || ev.Op != OpMessageReceived {
		t.Fatal("expected one message_received event")
	}
	// İkinci join kopya üyelik yaratmamalı — event bir kez gelir
	if ev := drainOne(t, c); ev != nil {
		t.Fatalf("duplicate delivery after double join: %+v", ev)
	}
}

func TestBroadcastIncludesSenderAndSkipsNonMembers(t *testing.T) {
	h := NewHub()
	sender := newTestClient(h, "applicant-1", "s1", models.RoleApplicant)
	receiver := newTestClient(h, "recruiter-1", "s2", models.RoleRecruiter)
	outsider := newTestClient(h, "applicant-2", "s3", models.RoleApplicant)

	h.JoinRoom(sender, "conv-1")
	h.JoinRoom(receiver, "conv-1")

	h.BroadcastToConversation("conv-1", Event{Op: OpMessageReceived})

	// Gönderen de event'i alır (multi-tab / reconciliation echo'su)
	if ev := drainOne(t, sender); ev == nil {
		t.Error("sender should receive its own broadcast")
	}
	if ev := drainOne(t, receiver); ev == nil {
		t.Error("receiver should receive the broadcast")
	}
	if ev := drainOne(t, outsider); ev != nil {
		t.Error("non-member should not receive the broadcast")
	}
}

func TestBroadcastToEmptyRoomIsNoop(t *testing.T) {
	h := NewHub()
	// Panic veya hata olmamalı — alıcı offline olabilir
	h.BroadcastToConversation("conv-unknown", Event{Op: OpMessageReceived})
}

func TestBroadcastExceptExcludesAllSessionsOfParticipant(t *testing.T) {
	h := NewHub()
	tab1 := newTestClient(h, "applicant-1", "s1", models.RoleApplicant)
	tab2 := newTestClient(h, "applicant-1", "s2", models.RoleApplicant)
	other := newTestClient(h, "recruiter-1", "s3", models.RoleRecruiter)

	h.JoinRoom(tab1, "conv-1")
	h.JoinRoom(tab2, "conv-1")
	h.JoinRoom(other, "conv-1")

	h.BroadcastToConversationExcept("conv-1", "applicant-1", Event{Op: OpUserTyping})

	if ev := drainOne(t, tab1); ev != nil {
		t.Error("excluded participant tab1 should not receive the event")
	}
	if ev := drainOne(t, tab2); ev != nil {
		t.Error("excluded participant tab2 should not receive the event")
	}
	if ev := drainOne(t, other); ev == nil {
		t.Error("other participant should receive the event")
	}
}

func TestBroadcastToParticipantReachesAllSessions(t *testing.T) {
	h := NewHub()
	tab1 := newTestClient(h, "recruiter-1", "s1", models.RoleRecruiter)
	tab2 := newTestClient(h, "recruiter-1", "s2", models.RoleRecruiter)

	h.BroadcastToParticipant("recruiter-1", Event{Op: OpUnreadUpdate})

	if ev := drainOne(t, tab1); ev == nil {
		t.Error("tab1 should receive participant broadcast")
	}
	if ev := drainOne(t, tab2); ev == nil {
		t.Error("tab2 should receive participant broadcast")
	}
}

func TestIsActivelyViewingAnySession(t *testing.T) {
	h := NewHub()
	tab1 := newTestClient(h, "applicant-1", "s1", models.RoleApplicant)
	tab2 := newTestClient(h, "applicant-1", "s2", models.RoleApplicant)

	if h.IsActivelyViewing("applicant-1", "conv-1") {
		t.Fatal("no session views conv-1 yet")
	}

	h.SetActiveView(tab2, "conv-1")
	if !h.IsActivelyViewing("applicant-1", "conv-1") {
		t.Fatal("one session views conv-1, should be true")
	}

	// tab2 görünümü kapatır, tab1 hiç açmadı
	h.SetActiveView(tab2, "")
	if h.IsActivelyViewing("applicant-1", "conv-1") {
		t.Fatal("no session views conv-1 anymore")
	}
	_ = tab1
}

func TestRemoveClientCleansRoomsAndPresence(t *testing.T) {
	h := NewHub()
	c := newTestClient(h, "applicant-1", "s1", models.RoleApplicant)

	h.JoinRoom(c, "conv-1")
	h.SetActiveView(c, "conv-1")

	if !h.IsOnline("applicant-1") {
		t.Fatal("participant should be online")
	}

	h.removeClient(c)

	if h.IsOnline("applicant-1") {
		t.Error("participant should be offline after disconnect")
	}
	if h.IsActivelyViewing("applicant-1", "conv-1") {
		t.Error("active view should be cleared on disconnect")
	}

	// Oda üyeliği ephemeral — bağlantı kopunca silinir, broadcast no-op olur
	h.BroadcastToConversation("conv-1", Event{Op: OpMessageReceived})
}

func TestJoinAfterUnregisterIsIgnored(t *testing.T) {
	h := NewHub()
	c := newTestClient(h, "applicant-1", "s1", models.RoleApplicant)

	h.removeClient(c)
	// Async callback unregister ile yarışabilir — join sessizce düşmeli
	h.JoinRoom(c, "conv-1")

	h.mu.RLock()
	_, exists := h.rooms["conv-1"]
	h.mu.RUnlock()
	if exists {
		t.Fatal("unregistered session must not be added to a room")
	}
}

func TestEvictedSessionHeartbeatIsSafe(t *testing.T) {
	h := NewHub()
	c := newTestClient(h, "applicant-1", "s1", models.RoleApplicant)
	h.JoinRoom(c, "conv-1")

	// Client okumayı bırakmış: buffer'ı oda broadcast'leriyle doldur
	for i := 0; i < sendBufferSize; i++ {
		h.BroadcastToConversation("conv-1", Event{Op: OpMessageReceived})
	}

	// Hub yavaş client'ı çıkarır — ReadPump'ı hâlâ çalışıyor ve
	// heartbeat göndermeye devam ediyor olabilir
	h.removeClient(c)

	// Çıkarılmış session'a geç kalmış bir ack: sessizce düşmeli,
	// process'i düşürmemeli ve unregister'da bloklanmamalı
	c.sendEvent(Event{Op: OpHeartbeatAck})

	if h.IsOnline("applicant-1") {
		t.Error("evicted session must stay removed")
	}
}

func TestSendEventAfterShutdownIsSafe(t *testing.T) {
	h := NewHub()
	c := newTestClient(h, "applicant-1", "s1", models.RoleApplicant)

	h.Shutdown()

	// Shutdown ile yarışan in-flight heartbeat ack
	c.sendEvent(Event{Op: OpHeartbeatAck})

	if h.IsOnline("applicant-1") {
		t.Error("no session may remain after shutdown")
	}
}

func TestEventSeqMonotonic(t *testing.T) {
	h := NewHub()
	c := newTestClient(h, "applicant-1", "s1", models.RoleApplicant)
	h.JoinRoom(c, "conv-1")

	h.BroadcastToConversation("conv-1", Event{Op: OpMessageReceived})
	h.BroadcastToConversation("conv-1", Event{Op: OpMessageReceived})

	first := drainOne(t, c)
	second := drainOne(t, c)
	if first == nil || second == nil {
		t.Fatal("expected two events")
	}
	if second.Seq <= first.Seq {
		t.Errorf("seq must increase: first=%d second=%d", first.Seq, second.Seq)
	}
}
