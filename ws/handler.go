package ws

import (
	"context"
	"log"
	"net/http"

	"github.com/gorilla/websocket"
)

// SessionVerifier, WS handler'ın havuz varlık kontrolü için kullandığı interface.
//
// Neden services.PoolService yerine kendi interface'imizi tanımlıyoruz?
// Circular dependency'yi önlemek için:
// - services paketi ws.EventPublisher'ı kullanıyor (yayın için)
// - ws paketi services.PoolService'i kullansaydı → ws → services → ws döngüsü
//
// Interface Segregation: handler'ın ihtiyacı tek bir metod — havuz var mı?
// main.go'da poolService bu interface'i implicit olarak karşılar.
type SessionVerifier interface {
	VerifySession(ctx context.Context, sessionID string) error
}

// upgrader, HTTP bağlantısını WebSocket bağlantısına yükseltir.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Observer sayfaları herkese açık — origin kısıtlaması CORS katmanında
	// HTTP API için geçerli, WS upgrade'inde tüm origin'lere izin verilir.
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Handler, WebSocket bağlantı isteklerini işleyen HTTP handler'ı.
type Handler struct {
	hub      *Hub
	verifier SessionVerifier
}

// NewHandler, yeni bir WebSocket handler oluşturur.
func NewHandler(hub *Hub, verifier SessionVerifier) *Handler {
	return &Handler{
		hub:      hub,
		verifier: verifier,
	}
}

// HandleConnection, bağlantıyı WebSocket'e yükseltir ve client'ı havuzun
// topic'ine kaydeder.
//
// Abonelik auth gerektirmez — topic'te sadece sayı akar, PII akmaz.
// Havuz ID'si query parameter ile gelir:
//
//	ws://server/ws?session=A1B2C3D4
//
// Flow:
// 1. Query'den session ID al, havuzun varlığını doğrula
// 2. HTTP → WebSocket upgrade
// 3. Client oluştur, Hub'a kaydet
// 4. ReadPump ve WritePump goroutine'lerini başlat
func (h *Handler) HandleConnection(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session")
	if sessionID == "" {
		http.Error(w, "missing session", http.StatusBadRequest)
		return
	}

	if err := h.verifier.VerifySession(r.Context(), sessionID); err != nil {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[ws] upgrade failed for session %s: %v", sessionID, err)
		return
	}

	client := &Client{
		hub:       h.hub,
		conn:      conn,
		sessionID: sessionID,
		send:      make(chan []byte, sendBufferSize),
	}

	h.hub.register <- client

	go client.WritePump()
	go client.ReadPump()
}
