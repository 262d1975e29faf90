package services

import (
	"context"
	"sync"
	"testing"

	"github.com/ozanbudak/ikmesaj/database"
	"github.com/ozanbudak/ikmesaj/models"
	"github.com/ozanbudak/ikmesaj/repository"
	"github.com/ozanbudak/ikmesaj/ws"
)

// recordedEvent, mock publisher'ın yakaladığı tek bir broadcast çağrısı.
type recordedEvent struct {
	Target         string // "room", "room_except", "participant"
	ConversationID string
	ParticipantID  string // hedef veya hariç tutulan katılımcı
	Event          ws.Event
}

// mockPublisher, ws.EventPublisher'ın test kaydı tutan implementasyonu.
type mockPublisher struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (m *mockPublisher) BroadcastToConversation(conversationID string, event ws.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, recordedEvent{Target: "room", ConversationID: conversationID, Event: event})
}

func (m *mockPublisher) BroadcastToConversationExcept(conversationID, excludeParticipantID string, event ws.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, recordedEvent{Target: "room_except", ConversationID: conversationID, ParticipantID: excludeParticipantID, Event: event})
}

func (m *mockPublisher) BroadcastToParticipant(participantID string, event ws.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, recordedEvent{Target: "participant", ParticipantID: participantID, Event: event})
}

// all, kaydedilen event'lerin kopyasını döner.
func (m *mockPublisher) all() []recordedEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]recordedEvent, len(m.events))
	copy(out, m.events)
	return out
}

// byOp, verilen op'taki event'leri döner.
func (m *mockPublisher) byOp(op string) []recordedEvent {
	var out []recordedEvent
	for _, ev := range m.all() {
		if ev.Event.Op == op {
			out = append(out, ev)
		}
	}
	return out
}

// mockPresence, ws.PresenceTracker'ın test stub'u.
type mockPresence struct {
	mu      sync.Mutex
	viewing map[string]string // participantID → aktif görüntülenen conversationID
	online  map[string]bool
}

func newMockPresence() *mockPresence {
	return &mockPresence{
		viewing: make(map[string]string),
		online:  make(map[string]bool),
	}
}

func (m *mockPresence) setViewing(participantID, conversationID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.viewing[participantID] = conversationID
	m.online[participantID] = true
}

func (m *mockPresence) setOnline(participantID string, online bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.online[participantID] = online
}

func (m *mockPresence) IsActivelyViewing(participantID, conversationID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.viewing[participantID] == conversationID && conversationID != ""
}

func (m *mockPresence) IsOnline(participantID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online[participantID]
}

// setupTestStore, in-memory SQLite üzerinde repo çifti ve örnek konuşma kurar.
func setupTestStore(t *testing.T) (repository.MessageRepository, repository.ConversationRepository, *models.Conversation) {
	t.Helper()

	db, err := database.New(":memory:", database.EmbeddedMigrations)
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	messageRepo := repository.NewSQLiteMessageRepo(db.Conn)
	convRepo := repository.NewSQLiteConversationRepo(db.Conn)

	conv := &models.Conversation{
		ID:            "app-123",
		JobTitle:      "Backend Developer",
		ApplicantID:   "applicant-1",
		ApplicantName: "Ayşe Yılmaz",
		RecruiterID:   "recruiter-1",
		RecruiterName: "Mehmet Demir",
	}
	if err := convRepo.Create(context.Background(), conv); err != nil {
		t.Fatalf("failed to create conversation: %v", err)
	}

	return messageRepo, convRepo, conv
}

var (
	applicantPrincipal = models.Principal{ParticipantID: "applicant-1", DisplayName: "Ayşe Yılmaz", Role: models.RoleApplicant}
	recruiterPrincipal = models.Principal{ParticipantID: "recruiter-1", DisplayName: "Mehmet Demir", Role: models.RoleRecruiter}
)
