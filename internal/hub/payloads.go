package hub

// Wire payloads for the events pushed to WebSocket observers. Producers
// publish them on the bus under Namespace + type; the hub wraps them in
// an Envelope and serializes once per publish.

// Namespace is the bus prefix carrying broadcastable events. The bus
// kind is Namespace plus the wire event type.
const Namespace = "push."

// Wire event types.
const (
	EventStatus         = "status"
	EventMessage        = "message"
	EventMessageSent    = "message_sent"
	EventMessageAck     = "message_ack"
	EventMessageDeleted = "message_deleted"
	EventTyping         = "typing"
	EventChatUpdate     = "chat_update"
)

// Kind returns the bus kind for a wire event type.
func Kind(eventType string) string { return Namespace + eventType }

// Envelope is the frame written to every observer.
type Envelope struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// StatusPayload mirrors GET /api/status.
type StatusPayload struct {
	Connected      bool `json:"connected"`
	HasQR          bool `json:"hasQr"`
	HasPairingCode bool `json:"hasPairingCode"`
}

// MessagePayload announces an inbound message.
type MessagePayload struct {
	ID        string `json:"id"`
	ChatID    string `json:"chatId"`
	ChatName  string `json:"chatName"`
	Body      string `json:"body"`
	FromMe    bool   `json:"fromMe"`
	Timestamp int64  `json:"timestamp"`
	Type      string `json:"type"`
	HasMedia  bool   `json:"hasMedia"`
	IsGroup   bool   `json:"isGroup"`
}

// MessageSentPayload announces an outbound message.
type MessageSentPayload struct {
	ID        string `json:"id"`
	ChatID    string `json:"chatId"`
	Body      string `json:"body"`
	Timestamp int64  `json:"timestamp"`
	Type      string `json:"type"`
}

// AckPayload announces a delivery/read acknowledgment.
type AckPayload struct {
	ID      string `json:"id"`
	ChatID  string `json:"chatId"`
	Ack     int    `json:"ack"`
	AckName string `json:"ackName"`
}

// DeletedPayload announces a message revoked for everyone.
type DeletedPayload struct {
	ID     string `json:"id"`
	ChatID string `json:"chatId"`
}

// TypingPayload announces a chat presence change.
type TypingPayload struct {
	ChatID   string `json:"chatId"`
	IsTyping bool   `json:"isTyping"`
}

// ChatUpdatePayload announces an unread-count change.
type ChatUpdatePayload struct {
	ChatID      string `json:"chatId"`
	UnreadCount int    `json:"unreadCount"`
}
