// Package client defines the capability boundary to the WhatsApp
// session. Everything above this interface treats the session as a
// black box with unspecified latency: operations take a context, return
// explicit errors, and lifecycle changes arrive on an event channel.
// The production implementation lives in internal/wa; tests use
// clienttest.Fake.
package client

import "context"

// Session is one authenticated WhatsApp connection.
//
// Messages and Search return messages in ascending timestamp order,
// keeping at most limit entries counted from the most recent.
type Session interface {
	// Connect starts the session's own connect sequence. Lifecycle
	// progress is reported on Events, not through the return value.
	Connect(ctx context.Context) error
	// Disconnect tears the connection down without invalidating
	// credentials.
	Disconnect()
	// Events is the stream of lifecycle and push events. Closed when
	// the session is discarded.
	Events() <-chan any

	// RequestPairingCode asks for an 8-character pairing code for the
	// given phone number (digits only, country code included).
	RequestPairingCode(ctx context.Context, phone string) (string, error)

	Chats(ctx context.Context) ([]Chat, error)
	ChatByID(ctx context.Context, chatID string) (*Chat, error)
	Messages(ctx context.Context, chatID string, limit int) ([]Message, error)
	MessageByID(ctx context.Context, chatID, messageID string) (*Message, error)
	// RequestHistory asks the session to backfill older messages for
	// the chat. Completion is asynchronous and best-effort.
	RequestHistory(ctx context.Context, chatID string) error

	Contact(ctx context.Context, contactID string) (Contact, error)
	AvatarURL(ctx context.Context, contactID string) (string, error)

	SendText(ctx context.Context, chatID, body, quotedID string) error
	SendMedia(ctx context.Context, chatID string, media Media, caption string) error
	DownloadMedia(ctx context.Context, chatID, messageID string) (Media, error)
	MarkRead(ctx context.Context, chatID string) error
	Search(ctx context.Context, query, chatID string, limit int) ([]Message, error)

	GroupInfo(ctx context.Context, chatID string) (*Group, error)
	GroupInviteCode(ctx context.Context, chatID string) (string, error)
	LeaveGroup(ctx context.Context, chatID string) error
	UpdateParticipants(ctx context.Context, chatID string, participantIDs []string, change ParticipantChange) error
	SetGroupSubject(ctx context.Context, chatID, subject string) error
	SetGroupDescription(ctx context.Context, chatID, description string) error
}
