package ws

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// WebSocket bağlantı sabitleri
const (
	// writeWait: Bir mesajı yazmak için maksimum bekleme süresi.
	writeWait = 10 * time.Second

	// pongWait: Client'ın heartbeat göndermesi için beklenen maksimum süre.
	// 3 heartbeat kaçırma = 30s × 3 = 90s.
	pongWait = 90 * time.Second

	// maxMessageSize: Client'tan kabul edilen maksimum mesaj boyutu (byte).
	// Observer'lar sadece heartbeat gönderir — küçük limit yeterli.
	maxMessageSize = 512

	// sendBufferSize: Her client'ın send channel'ının buffer boyutu.
	sendBufferSize = 64
)

// Client, tek bir WebSocket bağlantısını (bir havuz observer'ını) temsil eder.
//
// Her bağlantı için iki goroutine çalışır:
// - ReadPump: heartbeat'leri okur, read deadline'ı yeniler
// - WritePump: Hub'dan gelen event'leri bağlantıya yazar
//
// gorilla/websocket aynı anda tek okuma ve tek yazma destekler —
// iki ayrı goroutine ile okuma ve yazma birbirini bloklamaz.
type Client struct {
	hub       *Hub
	conn      *websocket.Conn
	sessionID string

	// send, client'a gönderilecek mesajların buffer'landığı channel.
	// Hub `client.send <- data` yazar, WritePump okur.
	send chan []byte

	mu sync.Mutex // conn.WriteMessage çağrılarını korur
}

// ReadPump, bağlantıdan gelen mesajları okur ve işler.
// Bağlantı kapanana kadar döngüde kalır; kapanınca Hub'dan çıkış yapar.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)

	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		log.Printf("[ws] failed to set read deadline for session %s: %v", c.sessionID, err)
		return
	}

	for {
		_, rawMessage, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[ws] unexpected close for session %s: %v", c.sessionID, err)
			}
			return
		}

		var event Event
		if err := json.Unmarshal(rawMessage, &event); err != nil {
			log.Printf("[ws] invalid message for session %s: %v", c.sessionID, err)
			continue
		}

		c.handleEvent(event)
	}
}

// handleEvent, client'tan gelen event'leri türüne göre işler.
// Observer'lardan beklenen tek operasyon heartbeat'tir.
func (c *Client) handleEvent(event Event) {
	switch event.Op {
	case OpHeartbeat:
		// Heartbeat geldi — deadline'ı yenile ve ack gönder.
		if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
			log.Printf("[ws] failed to set read deadline for session %s: %v", c.sessionID, err)
			return
		}
		c.sendEvent(Event{Op: OpHeartbeatAck})

	default:
		log.Printf("[ws] unknown op for session %s: %s", c.sessionID, event.Op)
	}
}

// sendEvent, client'a tek bir event gönderir.
func (c *Client) sendEvent(event Event) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("[ws] failed to marshal event for session %s: %v", c.sessionID, err)
		return
	}

	select {
	case c.send <- data:
	default:
		// Buffer dolu — client muhtemelen donmuş, bağlantıyı kapat
		log.Printf("[ws] send buffer full for session %s, dropping connection", c.sessionID)
		c.hub.unregister <- c
	}
}

// WritePump, send channel'dan gelen mesajları WebSocket bağlantısına yazar.
func (c *Client) WritePump() {
	defer c.conn.Close()

	for {
		message, ok := <-c.send
		if !ok {
			// Channel kapatıldı — Hub client'ı çıkardı
			c.writeMessage(websocket.CloseMessage, nil)
			return
		}

		if err := c.writeMessage(websocket.TextMessage, message); err != nil {
			return
		}
	}
}

// writeMessage, WebSocket'e mesaj yazar (mutex ile korunur).
// gorilla/websocket conn'a aynı anda birden fazla yazma yasaktır.
func (c *Client) writeMessage(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.conn.WriteMessage(messageType, data)
}
