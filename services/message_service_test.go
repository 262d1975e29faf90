package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ozanbudak/ikmesaj/models"
	"github.com/ozanbudak/ikmesaj/pkg"
	"github.com/ozanbudak/ikmesaj/repository"
	"github.com/ozanbudak/ikmesaj/ws"
)

// setupMessageService, gerçek typing ve unread servisleriyle tam bir
// mesaj servisi kurar — event sıralamasını uçtan uca test edebilmek için.
func setupMessageService(t *testing.T) (MessageService, *mockPublisher, *mockPresence, repository.MessageRepository, *models.Conversation) {
	t.Helper()

	messageRepo, convRepo, conv := setupTestStore(t)
	pub := &mockPublisher{}
	presence := newMockPresence()

	typing := NewTypingService(pub, time.Minute)
	t.Cleanup(typing.Close)
	unread := NewUnreadService(messageRepo, pub, presence, nil, time.Hour)
	t.Cleanup(unread.Close)

	svc := NewMessageService(messageRepo, convRepo, pub, typing, unread)
	return svc, pub, presence, messageRepo, conv
}

func TestSendPersistsBeforeBroadcast(t *testing.T) {
	svc, pub, _, messageRepo, conv := setupMessageService(t)

	msg, err := svc.Send(context.Background(), conv, applicantPrincipal, &models.CreateMessageRequest{Content: "merhaba"})
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if msg.ID == "" || msg.CreatedAt.IsZero() {
		t.Fatal("returned message must carry store-assigned ID and timestamp")
	}

	// Broadcast edilen mesaj store'daki satırı temsil etmeli
	stored, err := messageRepo.GetByID(context.Background(), msg.ID)
	if err != nil {
		t.Fatalf("broadcast message not found in store: %v", err)
	}
	if stored.Content != "merhaba" || stored.SenderID != "applicant-1" {
		t.Errorf("stored message mismatch: %+v", stored)
	}

	events := pub.all()
	if len(events) == 0 || events[0].Event.Op != ws.OpMessageReceived {
		t.Fatal("first event must be message_received to the room")
	}
	if events[0].Target != "room" || events[0].ConversationID != conv.ID {
		t.Errorf("message_received must go to the whole room, got %+v", events[0])
	}
	broadcast, ok := events[0].Event.Data.(*models.Message)
	if !ok || broadcast.ID != msg.ID {
		t.Error("broadcast payload must be the persisted message")
	}
}

func TestSendRejectsInvalidAndForeign(t *testing.T) {
	svc, pub, _, _, conv := setupMessageService(t)

	_, err := svc.Send(context.Background(), conv, applicantPrincipal, &models.CreateMessageRequest{Content: "   "})
	if !errors.Is(err, pkg.ErrBadRequest) {
		t.Errorf("empty content must fail with bad request, got %v", err)
	}

	stranger := models.Principal{ParticipantID: "stranger-1", DisplayName: "Davetsiz", Role: models.RoleApplicant}
	_, err = svc.Send(context.Background(), conv, stranger, &models.CreateMessageRequest{Content: "selam"})
	if !errors.Is(err, pkg.ErrForbidden) {
		t.Errorf("non-participant must be rejected, got %v", err)
	}

	if len(pub.all()) != 0 {
		t.Error("failed sends must not broadcast anything")
	}
}

func TestSendAutoReadsForViewingRecipient(t *testing.T) {
	svc, pub, presence, messageRepo, conv := setupMessageService(t)

	presence.setViewing("recruiter-1", conv.ID)

	msg, err := svc.Send(context.Background(), conv, applicantPrincipal, &models.CreateMessageRequest{Content: "bakıyor musun"})
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	// message_received her zaman message_marked_read'den önce sıraya girer
	var receivedIdx, readIdx = -1, -1
	for i, ev := range pub.all() {
		switch ev.Event.Op {
		case ws.OpMessageReceived:
			receivedIdx = i
		case ws.OpMessageMarkedRead:
			readIdx = i
		}
	}
	if receivedIdx == -1 || readIdx == -1 || readIdx < receivedIdx {
		t.Fatalf("expected message_received before message_marked_read, got order %d/%d", receivedIdx, readIdx)
	}

	if got := len(pub.byOp(ws.OpUnreadUpdate)); got != 0 {
		t.Errorf("actively viewing recipient must not accumulate unread, got %d updates", got)
	}
	if got := len(pub.byOp(ws.OpNotification)); got != 0 {
		t.Errorf("no notification for actively viewing recipient, got %d", got)
	}

	stored, err := messageRepo.GetByID(context.Background(), msg.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !stored.Read || stored.ReadAt == nil {
		t.Error("auto-read must be persisted, not just broadcast")
	}
}

func TestSendStopsTypingIndicator(t *testing.T) {
	messageRepo, convRepo, conv := setupTestStore(t)
	pub := &mockPublisher{}
	typing := NewTypingService(pub, time.Minute)
	t.Cleanup(typing.Close)
	unread := NewUnreadService(messageRepo, pub, newMockPresence(), nil, time.Hour)
	t.Cleanup(unread.Close)
	svc := NewMessageService(messageRepo, convRepo, pub, typing, unread)

	// Gösterge açıkken gönderim implicit stop'tur
	typing.Start(conv.ID, applicantPrincipal)
	if _, err := svc.Send(context.Background(), conv, applicantPrincipal, &models.CreateMessageRequest{Content: "gönderiyorum"}); err != nil {
		t.Fatal(err)
	}
	if got := len(pub.byOp(ws.OpUserStoppedTyping)); got != 1 {
		t.Fatalf("send with active typing must emit one stopped_typing, got %d", got)
	}

	// Gösterge kapalıyken ikinci gönderim: stop no-op, sahte event yok
	if _, err := svc.Send(context.Background(), conv, applicantPrincipal, &models.CreateMessageRequest{Content: "bir daha"}); err != nil {
		t.Fatal(err)
	}
	if got := len(pub.byOp(ws.OpUserStoppedTyping)); got != 1 {
		t.Errorf("send without active typing must not emit stopped_typing, got %d", got)
	}
}

func TestBacklogPagination(t *testing.T) {
	svc, _, _, _, conv := setupMessageService(t)

	for i := 0; i < 5; i++ {
		if _, err := svc.Send(context.Background(), conv, applicantPrincipal, &models.CreateMessageRequest{Content: "mesaj"}); err != nil {
			t.Fatal(err)
		}
	}

	page, err := svc.Backlog(context.Background(), conv, recruiterPrincipal, "", 3, false)
	if err != nil {
		t.Fatalf("Backlog failed: %v", err)
	}
	if len(page.Messages) != 3 || !page.HasMore {
		t.Fatalf("expected 3 newest messages with has_more, got %d/%v", len(page.Messages), page.HasMore)
	}

	older, err := svc.Backlog(context.Background(), conv, recruiterPrincipal, page.Messages[0].ID, 3, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(older.Messages) != 2 || older.HasMore {
		t.Fatalf("expected final 2 messages without has_more, got %d/%v", len(older.Messages), older.HasMore)
	}
}

func TestBacklogMarkReadSinglePass(t *testing.T) {
	svc, pub, _, messageRepo, conv := setupMessageService(t)

	for i := 0; i < 3; i++ {
		if _, err := svc.Send(context.Background(), conv, applicantPrincipal, &models.CreateMessageRequest{Content: "okunmamış"}); err != nil {
			t.Fatal(err)
		}
	}

	page, err := svc.Backlog(context.Background(), conv, recruiterPrincipal, "", 50, true)
	if err != nil {
		t.Fatalf("Backlog failed: %v", err)
	}

	// Tek geçiş: tüm ID'ler tek bir conversation_read event'inde
	reads := pub.byOp(ws.OpConversationRead)
	if len(reads) != 1 {
		t.Fatalf("expected a single conversation_read event, got %d", len(reads))
	}
	data := reads[0].Event.Data.(ws.ConversationReadData)
	if len(data.MessageIDs) != 3 {
		t.Errorf("conversation_read must carry all 3 flipped IDs, got %d", len(data.MessageIDs))
	}

	// Dönen sayfa flag'leri güncellenmiş olmalı — event beklemeden
	for _, m := range page.Messages {
		if !m.Read || m.ReadAt == nil {
			t.Errorf("page message %s must be flagged read", m.ID)
		}
	}

	// Store kalıcı olarak güncellendi
	if n, err := messageRepo.CountUnread(context.Background(), "recruiter-1"); err != nil || len(n) != 0 {
		t.Errorf("store must have no unread left, got %v (%v)", n, err)
	}

	// İkinci açılış: okunacak mesaj yok, yeni event yok
	if _, err := svc.Backlog(context.Background(), conv, recruiterPrincipal, "", 50, true); err != nil {
		t.Fatal(err)
	}
	if got := len(pub.byOp(ws.OpConversationRead)); got != 1 {
		t.Errorf("re-opening a read conversation must not re-broadcast, got %d events", got)
	}
}

func TestMarkMessageReadIdempotent(t *testing.T) {
	svc, pub, _, _, conv := setupMessageService(t)

	msg, err := svc.Send(context.Background(), conv, applicantPrincipal, &models.CreateMessageRequest{Content: "oku beni"})
	if err != nil {
		t.Fatal(err)
	}

	updated, err := svc.MarkMessageRead(context.Background(), recruiterPrincipal, msg.ID)
	if err != nil {
		t.Fatalf("MarkMessageRead failed: %v", err)
	}
	if !updated.Read || updated.ReadAt == nil {
		t.Fatal("marked message must carry read flag and timestamp")
	}
	if got := len(pub.byOp(ws.OpMessageMarkedRead)); got != 1 {
		t.Fatalf("expected one message_marked_read, got %d", got)
	}

	// İkinci çağrı: mevcut hali döner, yeni event yok
	again, err := svc.MarkMessageRead(context.Background(), recruiterPrincipal, msg.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !again.Read {
		t.Error("repeated mark must return the read message")
	}
	if got := len(pub.byOp(ws.OpMessageMarkedRead)); got != 1 {
		t.Errorf("repeated mark must not re-broadcast, got %d events", got)
	}
}

func TestConcurrentMarkMessageReadBroadcastsOnce(t *testing.T) {
	svc, pub, _, _, conv := setupMessageService(t)

	msg, err := svc.Send(context.Background(), conv, applicantPrincipal, &models.CreateMessageRequest{Content: "yarış"})
	if err != nil {
		t.Fatal(err)
	}

	// İki tab aynı anda okundu işaretler: okunmuşluk kontrolü konuşma
	// lock'u altında taze satırdan yapıldığı için yalnızca biri geçiş yapar
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.MarkMessageRead(context.Background(), recruiterPrincipal, msg.ID); err != nil {
				t.Errorf("MarkMessageRead failed: %v", err)
			}
		}()
	}
	wg.Wait()

	if got := len(pub.byOp(ws.OpMessageMarkedRead)); got != 1 {
		t.Errorf("concurrent marks must broadcast exactly once, got %d", got)
	}
}

func TestMarkMessageReadRejectsOwnAndForeign(t *testing.T) {
	svc, _, _, _, conv := setupMessageService(t)

	msg, err := svc.Send(context.Background(), conv, applicantPrincipal, &models.CreateMessageRequest{Content: "benim mesajım"})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := svc.MarkMessageRead(context.Background(), applicantPrincipal, msg.ID); !errors.Is(err, pkg.ErrBadRequest) {
		t.Errorf("marking own message must fail with bad request, got %v", err)
	}

	stranger := models.Principal{ParticipantID: "stranger-1", DisplayName: "Davetsiz", Role: models.RoleRecruiter}
	if _, err := svc.MarkMessageRead(context.Background(), stranger, msg.ID); !errors.Is(err, pkg.ErrForbidden) {
		t.Errorf("non-participant must be rejected, got %v", err)
	}

	if _, err := svc.MarkMessageRead(context.Background(), recruiterPrincipal, "yok-boyle-mesaj"); !errors.Is(err, pkg.ErrNotFound) {
		t.Errorf("unknown message must fail with not found, got %v", err)
	}
}
