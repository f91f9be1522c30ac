package ws

import (
	"encoding/json"
	"testing"
	"time"
)

// newTestClient, conn'suz bir client oluşturur — Hub testleri bağlantıya
// dokunmaz, sadece register/publish/unregister akışını sınar.
func newTestClient(h *Hub, sessionID string, buffer int) *Client {
	return &Client{
		hub:       h,
		sessionID: sessionID,
		send:      make(chan []byte, buffer),
	}
}

// waitForObservers, hub'ın async register işlemesini bekler.
func waitForObservers(t *testing.T, h *Hub, sessionID string, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if h.ObserverCount(sessionID) == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("observer count for %s never reached %d (got %d)", sessionID, want, h.ObserverCount(sessionID))
}

func TestHubRegisterUnregister(t *testing.T) {
	h := NewHub()
	go h.Run()

	client := newTestClient(h, "A1B2C3D4", sendBufferSize)
	h.register <- client
	waitForObservers(t, h, "A1B2C3D4", 1)

	h.unregister <- client
	waitForObservers(t, h, "A1B2C3D4", 0)

	// Unregister send channel'ı kapatır — WritePump bundan çıkışı anlar
	select {
	case _, ok := <-client.send:
		if ok {
			t.Error("send channel received data, want closed")
		}
	case <-time.After(time.Second):
		t.Error("send channel not closed after unregister")
	}
}

func TestPublishToSessionDeliversOnlyToTopic(t *testing.T) {
	h := NewHub()
	go h.Run()

	subscriber := newTestClient(h, "A1B2C3D4", sendBufferSize)
	other := newTestClient(h, "OTHER001", sendBufferSize)
	h.register <- subscriber
	h.register <- other
	waitForObservers(t, h, "A1B2C3D4", 1)
	waitForObservers(t, h, "OTHER001", 1)

	h.PublishToSession("A1B2C3D4", Event{
		Op:   OpCountUpdate,
		Data: CountUpdateData{SessionID: "A1B2C3D4", Count: 3},
	})

	select {
	case raw := <-subscriber.send:
		var event Event
		if err := json.Unmarshal(raw, &event); err != nil {
			t.Fatalf("failed to unmarshal event: %v", err)
		}
		if event.Op != OpCountUpdate {
			t.Errorf("op = %q, want %q", event.Op, OpCountUpdate)
		}
		if event.Seq == 0 {
			t.Error("seq not assigned")
		}
	case <-time.After(time.Second):
		t.Fatal("subscriber did not receive event")
	}

	select {
	case raw := <-other.send:
		t.Errorf("other session received event: %s", raw)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestPublishSeqMonotonic(t *testing.T) {
	h := NewHub()
	go h.Run()

	client := newTestClient(h, "A1B2C3D4", sendBufferSize)
	h.register <- client
	waitForObservers(t, h, "A1B2C3D4", 1)

	for i := 0; i < 3; i++ {
		h.PublishToSession("A1B2C3D4", Event{Op: OpCountUpdate, Data: CountUpdateData{Count: i + 1}})
	}

	var last int64
	for i := 0; i < 3; i++ {
		select {
		case raw := <-client.send:
			var event Event
			if err := json.Unmarshal(raw, &event); err != nil {
				t.Fatalf("failed to unmarshal event: %v", err)
			}
			if event.Seq <= last {
				t.Errorf("seq %d not greater than previous %d", event.Seq, last)
			}
			last = event.Seq
		case <-time.After(time.Second):
			t.Fatalf("event %d not received", i)
		}
	}
}

// Abone olmayan topic'e publish no-op'tur — panic yok, bloklamaz.
func TestPublishWithoutObservers(t *testing.T) {
	h := NewHub()
	go h.Run()

	done := make(chan struct{})
	go func() {
		h.PublishToSession("EMPTY001", Event{Op: OpSessionFinished})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish to empty topic blocked")
	}
}

// Buffer'ı dolu (yavaş) client disconnect edilir, diğerleri etkilenmez.
func TestPublishDropsSlowClient(t *testing.T) {
	h := NewHub()
	go h.Run()

	slow := newTestClient(h, "A1B2C3D4", 1)
	fast := newTestClient(h, "A1B2C3D4", sendBufferSize)
	h.register <- slow
	h.register <- fast
	waitForObservers(t, h, "A1B2C3D4", 2)

	// İlk publish slow'un tek slotunu doldurur, ikincisi taşırır
	h.PublishToSession("A1B2C3D4", Event{Op: OpCountUpdate, Data: CountUpdateData{Count: 1}})
	h.PublishToSession("A1B2C3D4", Event{Op: OpCountUpdate, Data: CountUpdateData{Count: 2}})

	waitForObservers(t, h, "A1B2C3D4", 1)

	// Hızlı client iki event'i de almış olmalı
	for i := 0; i < 2; i++ {
		select {
		case <-fast.send:
		case <-time.After(time.Second):
			t.Fatalf("fast client missing event %d", i)
		}
	}
}

func TestShutdownClosesAllClients(t *testing.T) {
	h := NewHub()
	go h.Run()

	a := newTestClient(h, "A1B2C3D4", sendBufferSize)
	b := newTestClient(h, "OTHER001", sendBufferSize)
	h.register <- a
	h.register <- b
	waitForObservers(t, h, "A1B2C3D4", 1)
	waitForObservers(t, h, "OTHER001", 1)

	h.Shutdown()

	for _, c := range []*Client{a, b} {
		select {
		case _, ok := <-c.send:
			if ok {
				t.Error("send channel received data, want closed")
			}
		case <-time.After(time.Second):
			t.Error("send channel not closed after shutdown")
		}
	}

	if h.ObserverCount("A1B2C3D4") != 0 || h.ObserverCount("OTHER001") != 0 {
		t.Error("observers remain after shutdown")
	}
}
