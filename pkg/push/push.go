// Package push, kapanış bildirimlerinin Web Push ile gönderimini soyutlar.
//
// Sender interface'i ile gönderim detayları soyutlanır — service katmanı
// concrete webpush implementasyonuna değil interface'e bağımlıdır, testlerde
// fake Sender kullanılır.
//
// Web Push akışı:
// Tarayıcı PushManager.subscribe() ile bir endpoint + şifreleme anahtarları
// üretir, katılımcı bunu subscribe çağrısıyla kaydeder. Havuz kapanınca
// server bu endpoint'e VAPID imzalı, şifreli bir payload POST'lar;
// tarayıcının push servisi (FCM, Mozilla autopush vb.) bildirimi cihaza iletir.
package push

import (
	"context"
	"fmt"
	"net/http"
	"time"

	webpush "github.com/SherClockHolmes/webpush-go"

	"github.com/nexora/vcfpool/models"
)

// Sender, tek bir push bildirimi gönderimi için interface.
type Sender interface {
	// Send, payload'ı verilen subscription endpoint'ine iletir.
	// Dönen hata sadece loglanır — dispatch döngüsü devam eder.
	Send(ctx context.Context, sub *models.PushSubscription, payload []byte) error
}

// disabledSender, VAPID anahtarları yapılandırılmamışsa kullanılan no-op Sender.
// Push olmadan da sistem çalışır — katılımcılar export linkini WS event'inden
// veya havuz sayfasından alır.
type disabledSender struct{}

// NewDisabledSender, hiçbir şey göndermeyen Sender döner.
func NewDisabledSender() Sender {
	return disabledSender{}
}

func (disabledSender) Send(ctx context.Context, sub *models.PushSubscription, payload []byte) error {
	return nil
}

// webpushSender, SherClockHolmes/webpush-go ile gönderen Sender implementasyonu.
type webpushSender struct {
	vapidPublicKey  string
	vapidPrivateKey string
	subject         string // mailto: adresi — push servisi sahibi ulaşmak isterse kullanır
}

// NewWebPushSender, VAPID anahtarlarıyla yeni bir Sender oluşturur.
func NewWebPushSender(vapidPublicKey, vapidPrivateKey, subject string) Sender {
	return &webpushSender{
		vapidPublicKey:  vapidPublicKey,
		vapidPrivateKey: vapidPrivateKey,
		subject:         subject,
	}
}

// Send, payload'ı Web Push protokolü ile endpoint'e gönderir.
// TTL 12 saat: cihaz kapalıysa push servisi bildirimi bu kadar bekletir —
// export penceresi 48 saat olduğu için bayat bildirim riski düşüktür.
func (s *webpushSender) Send(ctx context.Context, sub *models.PushSubscription, payload []byte) error {
	wsub := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.Keys.P256dh,
			Auth:   sub.Keys.Auth,
		},
	}

	resp, err := webpush.SendNotificationWithContext(ctx, payload, wsub, &webpush.Options{
		Subscriber:      s.subject,
		VAPIDPublicKey:  s.vapidPublicKey,
		VAPIDPrivateKey: s.vapidPrivateKey,
		TTL:             int((12 * time.Hour).Seconds()),
	})
	if err != nil {
		return fmt.Errorf("webpush send failed: %w", err)
	}
	defer resp.Body.Close()

	// 404/410: subscription artık geçersiz (kullanıcı izni kaldırmış veya
	// tarayıcı subscription'ı rotate etmiş). Caller için normal bir hata —
	// retry edilmez.
	if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone {
		return fmt.Errorf("subscription expired (status %d)", resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("push service rejected notification (status %d)", resp.StatusCode)
	}

	return nil
}
