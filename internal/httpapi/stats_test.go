package httpapi

import (
	"net/http"
	"testing"

	"github.com/wabridge/wabridge/internal/client"
)

func TestStatsAggregation(t *testing.T) {
	e := newEnv(t, true)
	e.fake.ChatsData = []client.Chat{
		{ID: "1@s.whatsapp.net", UnreadCount: 3},
		{ID: "2@s.whatsapp.net"},
		{ID: "3@g.us", IsGroup: true, UnreadCount: 5, UnreadMentions: 2},
		{ID: "4@g.us", IsGroup: true},
	}

	var got Stats
	rec := e.do(t, http.MethodGet, "/api/stats", "", &got)
	if rec.Code != http.StatusOK {
		t.Fatalf("stats = %d, want 200", rec.Code)
	}
	if got.Status != "connected" {
		t.Errorf("status = %q, want connected", got.Status)
	}
	if got.UnreadTotal != 8 || got.UnreadChats != 1 || got.UnreadGroups != 1 || got.UnreadMentions != 2 {
		t.Errorf("unread counts = %+v", got)
	}
	if got.TotalChats != 4 || got.CachedAt == "" {
		t.Errorf("totals = %+v", got)
	}
}

func TestStatsServedFromCache(t *testing.T) {
	e := newEnv(t, true)
	e.fake.ChatsData = []client.Chat{{ID: "1@s.whatsapp.net", UnreadCount: 1}}

	var first Stats
	e.do(t, http.MethodGet, "/api/stats", "", &first)

	// Mutating the source must not show through while cached.
	e.fake.ChatsData = append(e.fake.ChatsData, client.Chat{ID: "2@s.whatsapp.net", UnreadCount: 9})

	var second Stats
	e.do(t, http.MethodGet, "/api/stats", "", &second)
	if second.UnreadTotal != first.UnreadTotal {
		t.Errorf("cached unreadTotal = %d, want %d", second.UnreadTotal, first.UnreadTotal)
	}

	var fresh Stats
	e.do(t, http.MethodGet, "/api/stats?nocache=1", "", &fresh)
	if fresh.UnreadTotal != 10 {
		t.Errorf("nocache unreadTotal = %d, want 10", fresh.UnreadTotal)
	}
}

func TestStatsDegradedWhenDisconnected(t *testing.T) {
	e := newEnv(t, false)

	var got Stats
	rec := e.do(t, http.MethodGet, "/api/stats", "", &got)
	if rec.Code != http.StatusOK {
		t.Fatalf("stats = %d, want 200 even when down", rec.Code)
	}
	if got.Status != "disconnected" {
		t.Errorf("status = %q, want disconnected", got.Status)
	}
	if got.UnreadTotal != 0 || got.TotalChats != 0 {
		t.Errorf("degraded payload = %+v", got)
	}
}

func TestStatsErrorPayload(t *testing.T) {
	e := newEnv(t, true)
	e.fake.ChatsErr = errForTest

	var got Stats
	rec := e.do(t, http.MethodGet, "/api/stats?nocache=1", "", &got)
	if rec.Code != http.StatusOK {
		t.Fatalf("stats = %d, want 200 on session error", rec.Code)
	}
	if got.Status != "error" || got.Error == "" {
		t.Errorf("error payload = %+v", got)
	}
}

func TestStatsDegradedPayloadIsCached(t *testing.T) {
	e := newEnv(t, true)
	e.fake.ChatsErr = errForTest

	e.do(t, http.MethodGet, "/api/stats?nocache=1", "", nil)

	// Session recovers, but the error aggregate stays until the TTL.
	e.fake.ChatsErr = nil
	var got Stats
	e.do(t, http.MethodGet, "/api/stats", "", &got)
	if got.Status != "error" {
		t.Errorf("status = %q, want cached error payload", got.Status)
	}
}
