package httpapi

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/wabridge/wabridge/internal/client"
	"github.com/wabridge/wabridge/internal/fault"
	"github.com/wabridge/wabridge/internal/messages"
	"github.com/wabridge/wabridge/internal/timeout"
	"go.uber.org/zap"
)

// Chat-list bounds, matching what pollers are known to request.
const (
	defaultChatLimit = 50
	maxChatLimit     = 200

	defaultChatsTimeout = 30 * time.Second
)

// previewLength truncates the last-message preview in chat listings.
const previewLength = 50

type lastMessage struct {
	Body string `json:"body"`
}

type chatEntry struct {
	ID               string       `json:"id"`
	Name             string       `json:"name"`
	IsGroup          bool         `json:"isGroup"`
	UnreadCount      int          `json:"unreadCount"`
	Timestamp        int64        `json:"timestamp"`
	LastMessage      *lastMessage `json:"lastMessage"`
	ParticipantCount int          `json:"participantCount,omitempty"`
}

func (s *Server) handleChats(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w)
	if !ok {
		return
	}

	limit := intQuery(r, "limit", defaultChatLimit)
	if limit > maxChatLimit {
		limit = maxChatLimit
	}
	kind := r.URL.Query().Get("type")
	wait := defaultChatsTimeout
	if ms := intQuery(r, "timeout", 0); ms > 0 {
		wait = time.Duration(ms) * time.Millisecond
	}

	chats, err := timeout.Do(r.Context(), wait, "fetching chats", func(ctx context.Context) ([]client.Chat, error) {
		return sess.Chats(ctx)
	})
	if err != nil {
		s.writeError(w, err)
		return
	}

	var filtered []client.Chat
	for _, c := range chats {
		switch kind {
		case "group":
			if !c.IsGroup {
				continue
			}
		case "direct":
			if c.IsGroup {
				continue
			}
		}
		filtered = append(filtered, c)
	}

	sort.SliceStable(filtered, func(i, j int) bool {
		return filtered[i].Timestamp > filtered[j].Timestamp
	})
	if len(filtered) > limit {
		filtered = filtered[:limit]
	}

	list := make([]chatEntry, 0, len(filtered))
	for _, c := range filtered {
		entry := chatEntry{
			ID:          c.ID,
			Name:        c.Name,
			IsGroup:     c.IsGroup,
			UnreadCount: c.UnreadCount,
			Timestamp:   c.Timestamp,
		}
		if c.LastMessageBody != "" {
			entry.LastMessage = &lastMessage{Body: truncate(c.LastMessageBody, previewLength)}
		}
		if c.IsGroup && len(c.Participants) > 0 {
			entry.ParticipantCount = len(c.Participants)
		}
		list = append(list, entry)
	}

	s.writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w)
	if !ok {
		return
	}
	chatID := normalizeChatID(r.PathValue("id"))

	opts := messages.Options{
		Limit:        intQuery(r, "limit", 0),
		Before:       int64Query(r, "before"),
		Sync:         boolQuery(r, "sync"),
		ResolveNames: fetchNamesQuery(r),
	}
	if ms := intQuery(r, "timeout", 0); ms > 0 {
		opts.Timeout = time.Duration(ms) * time.Millisecond
	}

	page, err := s.pages.Fetch(r.Context(), sess, chatID, opts)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, page)
}

func (s *Server) handleSendText(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w)
	if !ok {
		return
	}
	chatID := normalizeChatID(r.PathValue("id"))

	var body struct {
		Msg             string `json:"msg"`
		Message         string `json:"message"`
		QuotedMessageID string `json:"quotedMessageId"`
	}
	if !s.decode(w, r, &body) {
		return
	}
	text := body.Msg
	if text == "" {
		text = body.Message
	}
	if text == "" {
		s.writeError(w, fault.New(fault.InvalidInput, "message required"))
		return
	}

	sendID := uuid.NewString()
	s.logger.Info("sending message",
		zap.String("sendId", sendID),
		zap.String("chat", chatID),
		zap.Bool("quoted", body.QuotedMessageID != ""))

	if err := sess.SendText(r.Context(), chatID, text, body.QuotedMessageID); err != nil {
		s.logger.Warn("send failed", zap.String("sendId", sendID), zap.Error(err))
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w)
	if !ok {
		return
	}
	chatID := normalizeChatID(r.PathValue("id"))

	if err := sess.MarkRead(r.Context(), chatID); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// handleProfilePic serves {url: string|null} and never errors past the
// readiness gate: lookup failures are cached as negatives and answered
// with null so dashboards can poll it blindly.
func (s *Server) handleProfilePic(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w)
	if !ok {
		return
	}
	chatID := normalizeChatID(r.PathValue("chatId"))

	if url, ok := s.avatars.Get(chatID); ok {
		s.writeJSON(w, http.StatusOK, map[string]*string{"url": nullable(url)})
		return
	}

	url, err := sess.AvatarURL(r.Context(), chatID)
	if err != nil {
		s.logger.Debug("profile pic lookup failed", zap.String("chat", chatID), zap.Error(err))
		url = ""
	}
	s.avatars.Put(chatID, url)
	s.writeJSON(w, http.StatusOK, map[string]*string{"url": nullable(url)})
}

// fetchNamesQuery defaults to true; only an explicit "0" or "false"
// turns session-backed name resolution off.
func fetchNamesQuery(r *http.Request) bool {
	v := r.URL.Query().Get("fetchNames")
	return v != "0" && v != "false"
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
