// Package email, uygulama genelinde email gönderimi için soyutlama katmanı sağlar.
//
// EmailSender interface'i ile email gönderim detayları soyutlanır.
// Şu anki implementasyon Resend API kullanır. İleride farklı bir sağlayıcıya
// geçmek için sadece yeni bir implementasyon yazıp constructor'da değiştirmek yeterli.
//
// Bu paket dışarıya iki şey sunar:
// 1. EmailSender interface — service'ler buna bağımlı olur
// 2. NewResendSender constructor — main.go'da wire-up için
package email

import (
	"context"
	"fmt"

	"github.com/resend/resend-go/v3"
)

// EmailSender, email gönderimi için interface.
// Service katmanı bu interface'e bağımlıdır, concrete Resend implementasyonuna değil.
type EmailSender interface {
	// SendUnreadNotification, offline katılımcıya yeni mesaj bildirimi gönderir.
	// toEmail/toName: alıcı, senderName: mesajı gönderen, jobTitle: ilan başlığı,
	// conversationID: email'deki link'in hedefi, unreadCount: o görüşmedeki
	// okunmamış mesaj sayısı.
	SendUnreadNotification(ctx context.Context, toEmail, toName, senderName, jobTitle, conversationID string, unreadCount int) error
}

// resendSender, Resend API ile email gönderen EmailSender implementasyonu.
type resendSender struct {
	client    *resend.Client
	fromEmail string // Gönderici adresi (ör: noreply@ikmesaj.app)
	appURL    string // Uygulamanın public URL'i (ör: https://app.ikmesaj.app)
}

// NewResendSender, Resend API client'ı ile yeni bir EmailSender oluşturur.
//
// apiKey: Resend dashboard'dan alınan API key (re_xxxxxxxx formatında).
// fromEmail: Gönderici email adresi — Resend'de doğrulanmış domain altında olmalı.
// appURL: Uygulamanın public URL'i — görüşme link'lerinde kullanılır.
func NewResendSender(apiKey, fromEmail, appURL string) EmailSender {
	return &resendSender{
		client:    resend.NewClient(apiKey),
		fromEmail: fromEmail,
		appURL:    appURL,
	}
}

// SendUnreadNotification, okunmamış mesaj bildirimi gönderir.
//
// Email içeriği:
// - Subject: "{senderName} size mesaj gönderdi — ikmesaj"
// - Body: Görüşme linki içeren basit HTML
// - Link format: {appURL}/conversations/{conversationID}
func (s *resendSender) SendUnreadNotification(ctx context.Context, toEmail, toName, senderName, jobTitle, conversationID string, unreadCount int) error {
	conversationLink := fmt.Sprintf("%s/conversations/%s", s.appURL, conversationID)

	countLine := fmt.Sprintf("%d okunmamış mesajınız var.", unreadCount)
	if unreadCount == 1 {
		countLine = "1 okunmamış mesajınız var."
	}

	html := fmt.Sprintf(`<!DOCTYPE html>
<html>
<head>
  <meta charset="utf-8">
  <meta name="viewport" content="width=device-width, initial-scale=1.0">
</head>
<body style="margin:0;padding:0;background-color:#f8fafc;font-family:Arial,Helvetica,sans-serif;">
  <table width="100%%" cellpadding="0" cellspacing="0" style="background-color:#f8fafc;padding:40px 0;">
    <tr>
      <td align="center">
        <table width="480" cellpadding="0" cellspacing="0" style="background-color:#ffffff;border-radius:8px;padding:40px;border:1px solid #e2e8f0;">
          <tr>
            <td>
              <h1 style="color:#0f172a;font-size:24px;margin:0 0 8px 0;">ikmesaj</h1>
              <h2 style="color:#0f172a;font-size:18px;margin:0 0 24px 0;">%s size mesaj gönderdi</h2>
              <p style="color:#475569;font-size:15px;line-height:1.6;margin:0 0 8px 0;">
                İlan: <strong>%s</strong>
              </p>
              <p style="color:#475569;font-size:15px;line-height:1.6;margin:0 0 24px 0;">
                %s
              </p>
              <table cellpadding="0" cellspacing="0" style="margin:0 0 24px 0;">
                <tr>
                  <td style="background-color:#2563eb;border-radius:6px;padding:12px 32px;">
                    <a href="%s" style="color:#ffffff;text-decoration:none;font-size:15px;font-weight:600;">
                      Görüşmeyi Aç
                    </a>
                  </td>
                </tr>
              </table>
              <p style="color:#64748b;font-size:13px;line-height:1.6;margin:0;word-break:break-all;">
                Buton çalışmıyorsa bu linki kopyalayın:<br>
                <a href="%s" style="color:#2563eb;">%s</a>
              </p>
            </td>
          </tr>
        </table>
      </td>
    </tr>
  </table>
</body>
</html>`, senderName, jobTitle, countLine, conversationLink, conversationLink, conversationLink)

	params := &resend.SendEmailRequest{
		From:    fmt.Sprintf("ikmesaj <%s>", s.fromEmail),
		To:      []string{toEmail},
		Subject: fmt.Sprintf("%s size mesaj gönderdi — ikmesaj", senderName),
		Html:    html,
	}

	_, err := s.client.Emails.SendWithContext(ctx, params)
	if err != nil {
		return fmt.Errorf("failed to send unread notification email: %w", err)
	}

	return nil
}
