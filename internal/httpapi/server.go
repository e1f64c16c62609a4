// Package httpapi serves the bridge's HTTP surface: connection status
// and auth challenges, chat and message queries, sends, group
// management, media, search, aggregate stats, and the WebSocket upgrade
// for push events. Every endpoint that touches chat data requires a
// Ready session; status, QR, and pairing-code reads work in any state.
package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/wabridge/wabridge/internal/cache"
	"github.com/wabridge/wabridge/internal/client"
	"github.com/wabridge/wabridge/internal/conn"
	"github.com/wabridge/wabridge/internal/contacts"
	"github.com/wabridge/wabridge/internal/fault"
	"github.com/wabridge/wabridge/internal/messages"
	"go.uber.org/zap"
)

// mediaFetchTimeout caps the whole round-trip when pulling media from a
// caller-supplied URL.
const mediaFetchTimeout = 30 * time.Second

// Server is the HTTP API. Construct with NewServer, mount as an
// http.Handler.
type Server struct {
	manager  *conn.Manager
	pages    *messages.Orchestrator
	resolver *contacts.Resolver
	avatars  *cache.Store[string, string]
	stats    *cache.Store[string, Stats]
	fetch    *http.Client
	logger   *zap.Logger
	mux      *http.ServeMux
}

// NewServer wires the API over the connection manager. The avatar cache
// is the same store the contact resolver writes through, so profile-pic
// lookups and message enrichment share results. push handles the
// WebSocket upgrade.
func NewServer(manager *conn.Manager, pages *messages.Orchestrator, resolver *contacts.Resolver,
	avatars *cache.Store[string, string], stats *cache.Store[string, Stats],
	push http.Handler, logger *zap.Logger) *Server {
	s := &Server{
		manager:  manager,
		pages:    pages,
		resolver: resolver,
		avatars:  avatars,
		stats:    stats,
		fetch:    &http.Client{Timeout: mediaFetchTimeout},
		logger:   logger,
		mux:      http.NewServeMux(),
	}

	s.mux.HandleFunc("GET /api/status", s.handleStatus)
	s.mux.HandleFunc("GET /api/qr", s.handleQR)
	s.mux.HandleFunc("POST /api/pairing-code", s.handleRequestPairingCode)
	s.mux.HandleFunc("GET /api/pairing-code", s.handlePairingCode)
	s.mux.HandleFunc("GET /api/stats", s.handleStats)

	s.mux.HandleFunc("GET /api/chats", s.handleChats)
	s.mux.HandleFunc("GET /api/chats/{id}/messages", s.handleMessages)
	s.mux.HandleFunc("POST /api/chats/{id}/messages", s.handleSendText)
	s.mux.HandleFunc("POST /api/chats/{id}/read", s.handleMarkRead)
	s.mux.HandleFunc("POST /api/chats/{id}/media", s.handleSendMedia)
	s.mux.HandleFunc("POST /api/chats/{id}/media-url", s.handleSendMediaURL)
	s.mux.HandleFunc("GET /api/profile-pic/{chatId}", s.handleProfilePic)

	s.mux.HandleFunc("GET /api/groups/{id}", s.handleGroupInfo)
	s.mux.HandleFunc("GET /api/groups/{id}/invite-code", s.handleGroupInviteCode)
	s.mux.HandleFunc("POST /api/groups/{id}/leave", s.handleLeaveGroup)
	s.mux.HandleFunc("POST /api/groups/{id}/participants", s.participantHandler(client.ParticipantAdd))
	s.mux.HandleFunc("DELETE /api/groups/{id}/participants", s.participantHandler(client.ParticipantRemove))
	s.mux.HandleFunc("POST /api/groups/{id}/promote", s.participantHandler(client.ParticipantPromote))
	s.mux.HandleFunc("POST /api/groups/{id}/demote", s.participantHandler(client.ParticipantDemote))
	s.mux.HandleFunc("PUT /api/groups/{id}/subject", s.handleSetSubject)
	s.mux.HandleFunc("PUT /api/groups/{id}/description", s.handleSetDescription)

	s.mux.HandleFunc("GET /api/messages/search", s.handleSearch)
	s.mux.HandleFunc("GET /api/media/{chatId}/{msgId}", s.handleDownloadMedia)

	s.mux.Handle("GET /ws", push)

	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// session gates a data endpoint on the Ready state. Writes the 503 and
// returns false when the session is unavailable.
func (s *Server) session(w http.ResponseWriter) (client.Session, bool) {
	sess, err := s.manager.Session()
	if err != nil {
		s.writeError(w, err)
		return nil, false
	}
	return sess, true
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("response encode failed", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := fault.HTTPStatus(fault.KindOf(err))
	if status >= http.StatusInternalServerError {
		s.logger.Warn("request failed", zap.Error(err))
	}
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}

// decode parses a JSON request body, answering 400 on malformed input.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		s.writeError(w, fault.New(fault.InvalidInput, "invalid JSON body"))
		return false
	}
	return true
}

// normalizeChatID accepts the URL-safe shorthand some consumers send
// ("123-g.us", "549111234-c.us") and the legacy @c.us user suffix, and
// returns the canonical JID.
func normalizeChatID(raw string) string {
	if !strings.Contains(raw, "@") {
		switch {
		case strings.Contains(raw, "-g.us"):
			raw = strings.Replace(raw, "-g.us", "@g.us", 1)
		case strings.Contains(raw, "-c.us"):
			raw = strings.Replace(raw, "-c.us", "@c.us", 1)
		}
	}
	if strings.HasSuffix(raw, "@c.us") {
		raw = strings.TrimSuffix(raw, "@c.us") + "@s.whatsapp.net"
	}
	return raw
}

func intQuery(r *http.Request, name string, def int) int {
	n, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func int64Query(r *http.Request, name string) int64 {
	n, err := strconv.ParseInt(r.URL.Query().Get(name), 10, 64)
	if err != nil || n <= 0 {
		return 0
	}
	return n
}

func boolQuery(r *http.Request, name string) bool {
	v := r.URL.Query().Get(name)
	return v == "1" || v == "true"
}

// nullable maps an empty string to JSON null, matching consumers that
// distinguish "no value" from "empty value".
func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func nullableInt64(n int64) *int64 {
	if n == 0 {
		return nil
	}
	return &n
}
