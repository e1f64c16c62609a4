package client

// Lifecycle and push events emitted on the Events channel. Consumers
// type-switch on these, same shape as whatsmeow's own event stream.

// QRCodeEvent carries a fresh QR challenge payload.
type QRCodeEvent struct {
	Code string
}

// AuthenticatedEvent fires once credentials are accepted.
type AuthenticatedEvent struct{}

// AuthFailureEvent fires when the session cannot authenticate. No
// automatic recovery follows; the operator has to intervene.
type AuthFailureEvent struct {
	Reason string
}

// ReadyEvent fires when the session is fully usable.
type ReadyEvent struct{}

// DisconnectedEvent fires when the session drops.
type DisconnectedEvent struct {
	Reason string
}

// MessageEvent is an inbound message, enriched with the chat context
// the broadcast payload needs.
type MessageEvent struct {
	Message  Message
	ChatName string
	IsGroup  bool
}

// MessageSentEvent is an outbound message echoed by the session.
type MessageSentEvent struct {
	Message Message
}

// Delivery acknowledgment levels, in escalation order.
const (
	AckSent      = 1
	AckDelivered = 2
	AckRead      = 3
	AckPlayed    = 4
)

// AckEvent reports a delivery/read acknowledgment for a message.
type AckEvent struct {
	MessageID string
	ChatID    string
	Level     int
}

// MessageDeletedEvent reports a message revoked for everyone.
type MessageDeletedEvent struct {
	MessageID string
	ChatID    string
}

// TypingEvent reports a chat presence change.
type TypingEvent struct {
	ChatID   string
	IsTyping bool
}

// ChatUpdateEvent reports an unread-count change for a chat.
type ChatUpdateEvent struct {
	ChatID      string
	UnreadCount int
}

// AckName renders an ack level as its wire name.
func AckName(level int) string {
	switch level {
	case AckSent:
		return "sent"
	case AckDelivered:
		return "delivered"
	case AckRead:
		return "read"
	case AckPlayed:
		return "played"
	default:
		return "unknown"
	}
}
