package ws

import (
	"encoding/json"
	"log"
	"sync"
	"sync/atomic"
)

// EventPublisher, service katmanının event yayınlamak için kullandığı interface.
//
// Dependency Inversion: Service'ler Hub'ın concrete struct'ına değil,
// bu interface'e bağımlıdır — testlerde fake publisher kullanılır.
type EventPublisher interface {
	PublishToSession(sessionID string, event Event)
}

// Hub, havuz topic'lerine abone tüm WebSocket bağlantılarını yöneten
// merkezi yapıdır (Observer pattern).
//
// Her client tek bir havuz ID'sine abonedir: yaratıcının dashboard'u ve
// açık katılım sayfaları o havuzun topic'ini dinler. Event yayını sadece
// o topic'in client'larına gider.
type Hub struct {
	// clients: sessionID → Client set.
	// Go'da set yoktur — map[*Client]bool kullanılır, bool her zaman true'dur.
	clients map[string]map[*Client]bool

	// mu: clients map'ini koruyan read-write mutex.
	// Publish çoğunluktadır (RLock), register/unregister yazar (Lock).
	mu sync.RWMutex

	// register/unregister: Client giriş/çıkış sinyalleri.
	// Run() goroutine'i bu channel'lardan select ile okur.
	register   chan *Client
	unregister chan *Client

	// seq: Her outbound event'e verilen artan sayaç.
	seq atomic.Int64
}

// NewHub, yeni bir Hub oluşturur.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

// Run, Hub'ın ana event loop'udur. main.go'da `go hub.Run()` ile başlatılır.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.addClient(client)

		case client := <-h.unregister:
			h.removeClient(client)
		}
	}
}

// addClient, yeni bir client'ı havuz topic'ine ekler.
func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client.sessionID]; !ok {
		h.clients[client.sessionID] = make(map[*Client]bool)
	}
	h.clients[client.sessionID][client] = true

	log.Printf("[ws] observer connected: session=%s (observers: %d)",
		client.sessionID, len(h.clients[client.sessionID]))
}

// removeClient, bir client'ı topic'ten çıkarır ve send channel'ını kapatır.
func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if clients, ok := h.clients[client.sessionID]; ok {
		if _, exists := clients[client]; exists {
			delete(clients, client)
			close(client.send)

			// Topic'in başka observer'ı kalmadıysa map'ten sil
			if len(clients) == 0 {
				delete(h.clients, client.sessionID)
			}

			log.Printf("[ws] observer disconnected: session=%s (remaining: %d)",
				client.sessionID, len(clients))
		}
	}
}

// PublishToSession, event'i verilen havuzun tüm observer'larına gönderir.
//
// Best-effort: abone yoksa sessizce no-op, buffer'ı dolu (yavaş) client
// disconnect edilir. Yayın, tetikleyen request/timer'ı asla bloklamaz.
func (h *Hub) PublishToSession(sessionID string, event Event) {
	event.Seq = h.seq.Add(1)

	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("[ws] failed to marshal event for session %s: %v", sessionID, err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients[sessionID] {
		select {
		case client.send <- data:
		default:
			// Buffer dolu — bu client yavaş, kapat
			go func(c *Client) { h.unregister <- c }(client)
		}
	}
}

// ObserverCount, bir havuzun anlık observer sayısını döner.
func (h *Hub) ObserverCount(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[sessionID])
}

// Shutdown, tüm client bağlantılarını kapatır (graceful shutdown).
func (h *Hub) Shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, clients := range h.clients {
		for client := range clients {
			close(client.send)
		}
	}
	h.clients = make(map[string]map[*Client]bool)
	log.Println("[ws] hub shut down, all connections closed")
}
