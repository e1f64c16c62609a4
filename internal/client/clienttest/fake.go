// Package clienttest provides a scriptable in-memory client.Session for
// tests: fixed data, injectable latency and failures, and call counters
// for asserting cache and concurrency behavior.
package clienttest

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/wabridge/wabridge/internal/client"
)

// SentText records one SendText call.
type SentText struct {
	ChatID   string
	Body     string
	QuotedID string
}

// SentMedia records one SendMedia call.
type SentMedia struct {
	ChatID  string
	Media   client.Media
	Caption string
}

// Fake implements client.Session against fixed in-memory data.
// Zero value is usable; populate the exported fields before use.
type Fake struct {
	mu sync.Mutex

	ChatsData    []client.Chat
	MessagesData map[string][]client.Message // ascending by timestamp
	ContactsData map[string]client.Contact
	AvatarData   map[string]string
	GroupsData   map[string]*client.Group
	MediaData    map[string]client.Media // keyed by messageID

	ConnectErr  error
	PairingCode string
	PairingErr  error
	HistoryErr  error
	SendTextErr error
	ChatsErr    error

	// Latency injected per operation family.
	ChatLookupDelay time.Duration
	MessagesDelay   time.Duration
	ContactDelay    time.Duration
	HistoryDelay    time.Duration
	PairingDelay    time.Duration

	// Per-identifier failures for resolution calls.
	ContactErrs map[string]error
	AvatarErrs  map[string]error

	// Call accounting.
	ConnectCalls    int
	ContactCalls    map[string]int
	AvatarCalls     map[string]int
	HistoryRequests []string
	SentTexts       []SentText
	SentMedia       []SentMedia
	ReadChats       []string

	// Concurrency tracking across Contact calls.
	inFlight    int
	MaxInFlight int

	events       chan any
	disconnected bool
}

// New creates a Fake with an event channel ready for Emit.
func New() *Fake {
	return &Fake{
		MessagesData: make(map[string][]client.Message),
		ContactsData: make(map[string]client.Contact),
		AvatarData:   make(map[string]string),
		GroupsData:   make(map[string]*client.Group),
		MediaData:    make(map[string]client.Media),
		ContactErrs:  make(map[string]error),
		AvatarErrs:   make(map[string]error),
		ContactCalls: make(map[string]int),
		AvatarCalls:  make(map[string]int),
		events:       make(chan any, 64),
	}
}

// Emit pushes an event onto the fake's event stream.
func (f *Fake) Emit(evt any) {
	f.events <- evt
}

func (f *Fake) Connect(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ConnectCalls++
	return f.ConnectErr
}

func (f *Fake) Disconnect() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disconnected = true
}

// Disconnected reports whether Disconnect was called.
func (f *Fake) Disconnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.disconnected
}

func (f *Fake) Events() <-chan any { return f.events }

func (f *Fake) RequestPairingCode(_ context.Context, _ string) (string, error) {
	if f.PairingDelay > 0 {
		time.Sleep(f.PairingDelay)
	}
	if f.PairingErr != nil {
		return "", f.PairingErr
	}
	return f.PairingCode, nil
}

func (f *Fake) Chats(_ context.Context) ([]client.Chat, error) {
	if f.ChatsErr != nil {
		return nil, f.ChatsErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]client.Chat, len(f.ChatsData))
	copy(out, f.ChatsData)
	return out, nil
}

func (f *Fake) ChatByID(_ context.Context, chatID string) (*client.Chat, error) {
	if f.ChatLookupDelay > 0 {
		time.Sleep(f.ChatLookupDelay)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.ChatsData {
		if f.ChatsData[i].ID == chatID {
			c := f.ChatsData[i]
			return &c, nil
		}
	}
	return nil, fmt.Errorf("chat %s not found", chatID)
}

func (f *Fake) Messages(_ context.Context, chatID string, limit int) ([]client.Message, error) {
	if f.MessagesDelay > 0 {
		time.Sleep(f.MessagesDelay)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	msgs := f.MessagesData[chatID]
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	out := make([]client.Message, len(msgs))
	copy(out, msgs)
	return out, nil
}

func (f *Fake) MessageByID(_ context.Context, chatID, messageID string) (*client.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.MessagesData[chatID] {
		if m.ID == messageID {
			m := m
			return &m, nil
		}
	}
	return nil, fmt.Errorf("message %s not found in %s", messageID, chatID)
}

func (f *Fake) RequestHistory(_ context.Context, chatID string) error {
	if f.HistoryDelay > 0 {
		time.Sleep(f.HistoryDelay)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.HistoryRequests = append(f.HistoryRequests, chatID)
	return f.HistoryErr
}

func (f *Fake) Contact(_ context.Context, contactID string) (client.Contact, error) {
	f.mu.Lock()
	f.ContactCalls[contactID]++
	f.inFlight++
	if f.inFlight > f.MaxInFlight {
		f.MaxInFlight = f.inFlight
	}
	f.mu.Unlock()

	if f.ContactDelay > 0 {
		time.Sleep(f.ContactDelay)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.inFlight--
	if err := f.ContactErrs[contactID]; err != nil {
		return client.Contact{}, err
	}
	return f.ContactsData[contactID], nil
}

func (f *Fake) AvatarURL(_ context.Context, contactID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.AvatarCalls[contactID]++
	if err := f.AvatarErrs[contactID]; err != nil {
		return "", err
	}
	return f.AvatarData[contactID], nil
}

func (f *Fake) SendText(_ context.Context, chatID, body, quotedID string) error {
	if f.SendTextErr != nil {
		return f.SendTextErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.SentTexts = append(f.SentTexts, SentText{ChatID: chatID, Body: body, QuotedID: quotedID})
	// Mirror the send into the chat's message list so a follow-up read
	// sees it, the way the real session echoes sent messages.
	msgs := f.MessagesData[chatID]
	var ts int64 = 1
	if len(msgs) > 0 {
		ts = msgs[len(msgs)-1].Timestamp + 1
	}
	f.MessagesData[chatID] = append(msgs, client.Message{
		ID:        fmt.Sprintf("sent-%d", len(f.SentTexts)),
		ChatID:    chatID,
		Body:      body,
		FromMe:    true,
		Timestamp: ts,
		Kind:      "chat",
		QuotedID:  quotedID,
	})
	return nil
}

func (f *Fake) SendMedia(_ context.Context, chatID string, media client.Media, caption string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.SentMedia = append(f.SentMedia, SentMedia{ChatID: chatID, Media: media, Caption: caption})
	return nil
}

func (f *Fake) DownloadMedia(_ context.Context, chatID, messageID string) (client.Media, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.MediaData[messageID]
	if !ok {
		return client.Media{}, fmt.Errorf("media not available for %s", messageID)
	}
	return m, nil
}

func (f *Fake) MarkRead(_ context.Context, chatID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ReadChats = append(f.ReadChats, chatID)
	return nil
}

func (f *Fake) Search(_ context.Context, query, chatID string, limit int) ([]client.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []client.Message
	for cid, msgs := range f.MessagesData {
		if chatID != "" && cid != chatID {
			continue
		}
		for _, m := range msgs {
			if strings.Contains(strings.ToLower(m.Body), strings.ToLower(query)) {
				out = append(out, m)
				if limit > 0 && len(out) >= limit {
					return out, nil
				}
			}
		}
	}
	return out, nil
}

func (f *Fake) GroupInfo(_ context.Context, chatID string) (*client.Group, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	g, ok := f.GroupsData[chatID]
	if !ok {
		return nil, fmt.Errorf("group %s not found", chatID)
	}
	out := *g
	return &out, nil
}

func (f *Fake) GroupInviteCode(_ context.Context, chatID string) (string, error) {
	return "INVITE" + chatID, nil
}

func (f *Fake) LeaveGroup(_ context.Context, _ string) error { return nil }

func (f *Fake) UpdateParticipants(_ context.Context, _ string, _ []string, _ client.ParticipantChange) error {
	return nil
}

func (f *Fake) SetGroupSubject(_ context.Context, _, _ string) error { return nil }

func (f *Fake) SetGroupDescription(_ context.Context, _, _ string) error { return nil }

var _ client.Session = (*Fake)(nil)
