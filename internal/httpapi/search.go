package httpapi

import (
	"net/http"

	"github.com/wabridge/wabridge/internal/fault"
)

// Search page bounds, matching the message-page limits.
const (
	defaultSearchLimit = 20
	maxSearchLimit     = 50
)

type searchResult struct {
	ID        string `json:"id"`
	MsgID     string `json:"msgId"`
	Body      string `json:"body"`
	From      string `json:"from"`
	FromMe    bool   `json:"fromMe"`
	Timestamp int64  `json:"timestamp"`
	Type      string `json:"type"`
	HasMedia  bool   `json:"hasMedia"`
	ChatID    string `json:"chatId"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w)
	if !ok {
		return
	}

	query := r.URL.Query().Get("query")
	if query == "" {
		s.writeError(w, fault.New(fault.InvalidInput, "query parameter required"))
		return
	}

	limit := intQuery(r, "limit", defaultSearchLimit)
	if limit > maxSearchLimit {
		limit = maxSearchLimit
	}
	var chatID string
	if raw := r.URL.Query().Get("chatId"); raw != "" {
		chatID = normalizeChatID(raw)
	}

	msgs, err := sess.Search(r.Context(), query, chatID, limit)
	if err != nil {
		s.writeError(w, err)
		return
	}

	results := make([]searchResult, 0, len(msgs))
	for _, m := range msgs {
		results = append(results, searchResult{
			ID:        m.ID,
			MsgID:     m.ID,
			Body:      m.Body,
			From:      m.ChatID,
			FromMe:    m.FromMe,
			Timestamp: m.Timestamp,
			Type:      m.Kind,
			HasMedia:  m.HasMedia,
			ChatID:    m.ChatID,
		})
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"query":   query,
		"results": results,
		"count":   len(results),
	})
}
