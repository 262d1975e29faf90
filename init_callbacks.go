// Package main — WebSocket Hub callback wire-up.
//
// Bu callback'ler neden burada (main package'da)?
// Hub ws paketinde yaşıyor, ama membership kontrolü ve okundu işaretleme
// service katmanında. Hub'ın service'lere bağımlı olmasını istemiyoruz
// (Dependency Inversion). main package wire-up noktasıdır — tüm
// katmanları birbirine bağlar.
//
// Callback'ler client ReadPump goroutine'lerinden `go callback()` ile
// çağrılır — DB'ye inen membership kontrolü socket okumayı bloklamaz.
package main

import (
	"context"
	"log"
	"time"

	"github.com/ozanbudak/ikmesaj/models"
	"github.com/ozanbudak/ikmesaj/services"
	"github.com/ozanbudak/ikmesaj/ws"
)

// callbackTimeout, tek bir WS event'inin tetiklediği DB işlemleri için üst sınır.
const callbackTimeout = 5 * time.Second

// registerHubCallbacks, tüm Hub callback'lerini register eder.
func registerHubCallbacks(
	hub *ws.Hub,
	conversationService services.ConversationService,
	messageService services.MessageService,
	typingService services.TypingService,
) {
	// join_conversation: membership doğrulanmadan odaya kimse giremez —
	// aksi halde herhangi bir katılımcı rastgele conversationID ile
	// başkalarının mesaj akışını dinleyebilirdi.
	hub.OnJoinRequest(func(c *ws.Client, conversationID string) {
		ctx, cancel := context.WithTimeout(context.Background(), callbackTimeout)
		defer cancel()

		principal := c.Principal()
		if _, _, err := conversationService.GetForParticipant(ctx, conversationID, principal.ParticipantID); err != nil {
			log.Printf("[ws] join denied (participant=%s conversation=%s): %v", principal.ParticipantID, conversationID, err)
			return
		}

		hub.JoinRoom(c, conversationID)
	})

	// set_active_view: aktif görünüm değişimi. Boş conversationID görünümün
	// kapandığını bildirir. Görünüm açıldığında oda üyeliği garanti edilir
	// (aktif bakmak canlı event almayı gerektirir) ve backlog tek geçişte
	// okundu işaretlenir.
	hub.OnActiveView(func(c *ws.Client, conversationID string) {
		principal := c.Principal()

		if conversationID == "" {
			hub.SetActiveView(c, "")
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), callbackTimeout)
		defer cancel()

		conversation, _, err := conversationService.GetForParticipant(ctx, conversationID, principal.ParticipantID)
		if err != nil {
			log.Printf("[ws] active view denied (participant=%s conversation=%s): %v", principal.ParticipantID, conversationID, err)
			return
		}

		hub.JoinRoom(c, conversationID)
		hub.SetActiveView(c, conversationID)

		if err := messageService.MarkConversationRead(ctx, conversation, principal); err != nil {
			log.Printf("[ws] mark conversation read failed (conversation=%s): %v", conversationID, err)
		}
	})

	// typing_start / typing_stop: typing göstergesi yalnızca üyesi olunan
	// konuşmalar için yayınlanır. Kontrol cache'li lookup'tan geçer,
	// keystroke başına DB'ye inilmez.
	hub.OnTypingStart(func(principal models.Principal, conversationID string) {
		ctx, cancel := context.WithTimeout(context.Background(), callbackTimeout)
		defer cancel()

		if _, _, err := conversationService.GetForParticipant(ctx, conversationID, principal.ParticipantID); err != nil {
			return
		}

		typingService.Start(conversationID, principal)
	})

	hub.OnTypingStop(func(principal models.Principal, conversationID string) {
		typingService.Stop(conversationID, principal.Role)
	})
}
