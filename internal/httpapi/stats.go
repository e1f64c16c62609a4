package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/wabridge/wabridge/internal/client"
	"github.com/wabridge/wabridge/internal/conn"
	"github.com/wabridge/wabridge/internal/timeout"
	"go.uber.org/zap"
)

// StatsTTL is how long one aggregate is served before recomputing.
// Dashboards poll this endpoint every few seconds; the cache keeps that
// load off the session.
const StatsTTL = 10 * time.Second

const (
	statsKey          = "aggregate"
	statsFetchTimeout = 15 * time.Second
)

// Stats is the dashboard aggregate. Always served with HTTP 200; a
// session that is down or erroring degrades the payload, not the
// status code.
type Stats struct {
	Status         string `json:"status"`
	Error          string `json:"error,omitempty"`
	UnreadTotal    int    `json:"unreadTotal"`
	UnreadChats    int    `json:"unreadChats"`
	UnreadGroups   int    `json:"unreadGroups"`
	UnreadMentions int    `json:"unreadMentions"`
	TotalChats     int    `json:"totalChats"`
	CachedAt       string `json:"cachedAt"`
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("nocache") != "1" {
		if cached, ok := s.stats.Get(statsKey); ok {
			s.writeJSON(w, http.StatusOK, cached)
			return
		}
	}

	stats := s.computeStats(r.Context())
	s.stats.Put(statsKey, stats)
	s.writeJSON(w, http.StatusOK, stats)
}

func (s *Server) computeStats(ctx context.Context) Stats {
	sess, err := s.manager.Session()
	if err != nil {
		status := "connecting"
		if s.manager.Current() == conn.Disconnected {
			status = "disconnected"
		}
		return Stats{Status: status, CachedAt: statsNow()}
	}

	chats, err := timeout.Do(ctx, statsFetchTimeout, "fetching chats", func(ctx context.Context) ([]client.Chat, error) {
		return sess.Chats(ctx)
	})
	if err != nil {
		s.logger.Warn("stats aggregation failed", zap.Error(err))
		return Stats{Status: "error", Error: err.Error(), CachedAt: statsNow()}
	}

	stats := Stats{Status: "connected", TotalChats: len(chats), CachedAt: statsNow()}
	for _, c := range chats {
		if c.UnreadCount == 0 {
			continue
		}
		stats.UnreadTotal += c.UnreadCount
		if c.IsGroup {
			stats.UnreadGroups++
			stats.UnreadMentions += c.UnreadMentions
		} else {
			stats.UnreadChats++
		}
	}
	return stats
}

func statsNow() string {
	return time.Now().UTC().Format(time.RFC3339)
}
