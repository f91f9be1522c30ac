// Package ws, WebSocket bağlantı yönetimi ve gerçek zamanlı event dağıtımını sağlar.
//
// Mimari:
// - Hub: Havuz (session) topic'lerine abone bağlantıları yöneten merkezi yapı
// - Client: Her WebSocket bağlantısını temsil eder
// - Event: Server → client iletilen mesaj formatı
//
// Event akışı:
// 1. Katılımcı join olur → HTTP POST → Service → DB kayıt
// 2. Service, Hub'ın PublishToSession metodunu çağırır
// 3. Hub, event'i o havuza abone tüm client'lara iletir
// 4. Her client'ın WritePump'ı event'i WebSocket'e yazar
//
// Dağıtım at-most-once ve best-effort'tur: persistence/replay yoktur,
// event'ten sonra bağlanan observer onu görmez — güncel durumu
// GET /api/pools/{id} özetinden almalıdır.
package ws

// Event, WebSocket üzerinden iletilen bir mesajı temsil eder.
//
// Op: Event türü — "count_update", "session_finished" vb.
// Data: Event'e özgü payload.
// Seq: Her outbound event'e verilen artan sayı — frontend eksik event
// tespit etmek için takip eder.
type Event struct {
	Op   string `json:"op"`
	Data any    `json:"d,omitempty"`
	Seq  int64  `json:"seq,omitempty"`
}

// Client → Server operasyonları
const (
	OpHeartbeat = "heartbeat" // Client her 30sn'de gönderir — "hâlâ bağlıyım" sinyali
)

// Server → Client operasyonları
const (
	OpHeartbeatAck = "heartbeat_ack" // Heartbeat'e yanıt

	// OpCountUpdate her başarılı join'de yayınlanır.
	// Payload sadece toplam sayıdır — broadcast kanalına PII sızmaz.
	OpCountUpdate = "count_update"

	// OpSessionFinished havuz kapandığında bir kez yayınlanır.
	OpSessionFinished = "session_finished"
)

// CountUpdateData, count_update event'inin payload'ı.
type CountUpdateData struct {
	SessionID string `json:"session_id"`
	Count     int    `json:"count"`
}

// SessionFinishedData, session_finished event'inin payload'ı.
// DownloadURL, katılımcının VCF indirme sayfasına deep link'tir.
type SessionFinishedData struct {
	SessionID   string `json:"session_id"`
	Count       int    `json:"count"`
	DownloadURL string `json:"download_url"`
}
