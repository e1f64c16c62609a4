package wa

import (
	"sort"
	"strings"
	"sync"

	"go.mau.fi/whatsmeow/proto/waE2E"

	"github.com/wabridge/wabridge/internal/client"
)

// DefaultRetention is the per-chat message cap.
const DefaultRetention = 500

type storedMessage struct {
	msg client.Message
	raw *waE2E.Message
}

type chatRecord struct {
	meta client.Chat
	msgs []storedMessage // ascending by timestamp
	byID map[string]struct{}
}

// Archive is the in-memory message store backing reads while the
// process lives. Live and history-synced messages land here; nothing is
// persisted. Oldest messages are evicted once a chat exceeds the
// retention cap.
type Archive struct {
	mu        sync.RWMutex
	retention int
	chats     map[string]*chatRecord
}

// NewArchive creates an archive keeping at most retention messages per
// chat (DefaultRetention when <= 0).
func NewArchive(retention int) *Archive {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &Archive{
		retention: retention,
		chats:     make(map[string]*chatRecord),
	}
}

func (a *Archive) record(chatID string) *chatRecord {
	rec, ok := a.chats[chatID]
	if !ok {
		rec = &chatRecord{
			meta: client.Chat{ID: chatID},
			byID: make(map[string]struct{}),
		}
		a.chats[chatID] = rec
	}
	return rec
}

// Observe updates a chat's displayed metadata without touching its
// messages. Empty name leaves the current name in place.
func (a *Archive) Observe(chatID, name string, isGroup bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	rec := a.record(chatID)
	if name != "" {
		rec.meta.Name = name
	}
	rec.meta.IsGroup = rec.meta.IsGroup || isGroup
}

// Put inserts a message in timestamp order, keeping raw for later media
// download and quoting. Duplicates by id are ignored. Reports whether
// the message was new.
func (a *Archive) Put(msg client.Message, raw *waE2E.Message) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	rec := a.record(msg.ChatID)
	if _, dup := rec.byID[msg.ID]; dup {
		return false
	}
	rec.byID[msg.ID] = struct{}{}

	// History batches arrive out of order; insert sorted so reads never
	// have to sort.
	at := sort.Search(len(rec.msgs), func(i int) bool {
		return rec.msgs[i].msg.Timestamp > msg.Timestamp
	})
	rec.msgs = append(rec.msgs, storedMessage{})
	copy(rec.msgs[at+1:], rec.msgs[at:])
	rec.msgs[at] = storedMessage{msg: msg, raw: raw}

	for len(rec.msgs) > a.retention {
		delete(rec.byID, rec.msgs[0].msg.ID)
		rec.msgs = rec.msgs[1:]
	}

	if msg.Timestamp >= rec.meta.Timestamp {
		rec.meta.Timestamp = msg.Timestamp
		rec.meta.LastMessageBody = msg.Body
	}
	return true
}

// Remove drops a revoked message. Reports whether it was present.
func (a *Archive) Remove(chatID, messageID string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	rec, ok := a.chats[chatID]
	if !ok {
		return false
	}
	if _, present := rec.byID[messageID]; !present {
		return false
	}
	delete(rec.byID, messageID)
	for i := range rec.msgs {
		if rec.msgs[i].msg.ID == messageID {
			rec.msgs = append(rec.msgs[:i], rec.msgs[i+1:]...)
			break
		}
	}
	return true
}

// BumpUnread increments the chat's unread counters and returns the new
// unread count.
func (a *Archive) BumpUnread(chatID string, mentioned bool) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	rec := a.record(chatID)
	rec.meta.UnreadCount++
	if mentioned {
		rec.meta.UnreadMentions++
	}
	return rec.meta.UnreadCount
}

// ClearUnread zeroes the chat's unread counters.
func (a *Archive) ClearUnread(chatID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if rec, ok := a.chats[chatID]; ok {
		rec.meta.UnreadCount = 0
		rec.meta.UnreadMentions = 0
	}
}

// Chats returns chat summaries ordered by most recent activity.
func (a *Archive) Chats() []client.Chat {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]client.Chat, 0, len(a.chats))
	for _, rec := range a.chats {
		out = append(out, rec.meta)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Timestamp != out[j].Timestamp {
			return out[i].Timestamp > out[j].Timestamp
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Chat returns the chat's summary.
func (a *Archive) Chat(chatID string) (client.Chat, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	rec, ok := a.chats[chatID]
	if !ok {
		return client.Chat{}, false
	}
	return rec.meta, true
}

// Messages returns the chat's messages in ascending order, at most
// limit counted from the most recent. limit <= 0 returns everything.
func (a *Archive) Messages(chatID string, limit int) []client.Message {
	a.mu.RLock()
	defer a.mu.RUnlock()
	rec, ok := a.chats[chatID]
	if !ok {
		return nil
	}
	msgs := rec.msgs
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	out := make([]client.Message, len(msgs))
	for i := range msgs {
		out[i] = msgs[i].msg
	}
	return out
}

// Message returns one message by id.
func (a *Archive) Message(chatID, messageID string) (client.Message, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	rec, ok := a.chats[chatID]
	if !ok {
		return client.Message{}, false
	}
	for i := range rec.msgs {
		if rec.msgs[i].msg.ID == messageID {
			return rec.msgs[i].msg, true
		}
	}
	return client.Message{}, false
}

// Raw returns the message's original payload, needed for quoting and
// media download.
func (a *Archive) Raw(chatID, messageID string) (*waE2E.Message, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	rec, ok := a.chats[chatID]
	if !ok {
		return nil, false
	}
	for i := range rec.msgs {
		if rec.msgs[i].msg.ID == messageID {
			return rec.msgs[i].raw, rec.msgs[i].raw != nil
		}
	}
	return nil, false
}

// Oldest returns the chat's oldest retained message, used to anchor
// history backfill requests.
func (a *Archive) Oldest(chatID string) (client.Message, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	rec, ok := a.chats[chatID]
	if !ok || len(rec.msgs) == 0 {
		return client.Message{}, false
	}
	return rec.msgs[0].msg, true
}

// Search scans message bodies case-insensitively. chatID narrows the
// scan to one chat; empty searches everywhere. Results come back in
// ascending timestamp order, capped at limit.
func (a *Archive) Search(query, chatID string, limit int) []client.Message {
	query = strings.ToLower(query)

	a.mu.RLock()
	defer a.mu.RUnlock()
	var out []client.Message
	for id, rec := range a.chats {
		if chatID != "" && id != chatID {
			continue
		}
		for i := range rec.msgs {
			if strings.Contains(strings.ToLower(rec.msgs[i].msg.Body), query) {
				out = append(out, rec.msgs[i].msg)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp < out[j].Timestamp })
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out
}
