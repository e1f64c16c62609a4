package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/wabridge/wabridge/internal/bus"
	"github.com/wabridge/wabridge/internal/cache"
	"github.com/wabridge/wabridge/internal/client"
	"github.com/wabridge/wabridge/internal/client/clienttest"
	"github.com/wabridge/wabridge/internal/conn"
	"github.com/wabridge/wabridge/internal/contacts"
	"github.com/wabridge/wabridge/internal/messages"
	"go.uber.org/zap"
)

var errForTest = errors.New("induced failure")

type env struct {
	fake *clienttest.Fake
	mgr  *conn.Manager
	srv  *Server
}

// newEnv builds a server over a single fake session. With ready true
// the manager is driven to Ready before returning.
func newEnv(t *testing.T, ready bool) *env {
	t.Helper()
	fake := clienttest.New()
	b := bus.New()
	logger := zap.NewNop()

	factory := func(_ context.Context) (client.Session, error) { return fake, nil }
	mgr := conn.NewManager(factory, b, logger, time.Minute)

	names := cache.New[string, contacts.Info](contacts.IdentityTTL)
	avatars := cache.New[string, string](contacts.AvatarTTL)
	resolver := contacts.NewResolver(names, avatars, 0, logger)
	pages := messages.NewOrchestrator(resolver, logger)
	stats := cache.New[string, Stats](StatsTTL)

	srv := NewServer(mgr, pages, resolver, avatars, stats, http.NotFoundHandler(), logger)

	if ready {
		if err := mgr.Initialize(context.Background()); err != nil {
			t.Fatal(err)
		}
		fake.Emit(client.ReadyEvent{})
		waitFor(t, func() bool { return mgr.Current() == conn.Ready }, "manager ready")
	}

	return &env{fake: fake, mgr: mgr, srv: srv}
}

func waitFor(t *testing.T, cond func() bool, desc string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timeout waiting for %s", desc)
}

// do runs one request through the mux and decodes the JSON response
// into out (which may be nil).
func (e *env) do(t *testing.T, method, target, body string, out any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	rec := httptest.NewRecorder()
	e.srv.ServeHTTP(rec, req)
	if out != nil {
		if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
			t.Fatalf("decode %s %s response: %v (body %q)", method, target, err, rec.Body.String())
		}
	}
	return rec
}

func TestNormalizeChatID(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"123456-g.us", "123456@g.us"},
		{"5491112345678-c.us", "5491112345678@s.whatsapp.net"},
		{"5491112345678@c.us", "5491112345678@s.whatsapp.net"},
		{"123456@g.us", "123456@g.us"},
		{"5491112345678@s.whatsapp.net", "5491112345678@s.whatsapp.net"},
		{"plain", "plain"},
	}
	for _, c := range cases {
		if got := normalizeChatID(c.in); got != c.want {
			t.Errorf("normalizeChatID(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestDataEndpointsRequireReadySession(t *testing.T) {
	e := newEnv(t, false)

	paths := []struct {
		method, target string
	}{
		{http.MethodGet, "/api/chats"},
		{http.MethodGet, "/api/chats/123@g.us/messages"},
		{http.MethodPost, "/api/chats/123@g.us/read"},
		{http.MethodGet, "/api/profile-pic/123@g.us"},
		{http.MethodGet, "/api/groups/123@g.us"},
		{http.MethodGet, "/api/messages/search?query=x"},
		{http.MethodGet, "/api/media/123@g.us/m1"},
	}
	for _, p := range paths {
		rec := e.do(t, p.method, p.target, "", nil)
		if rec.Code != http.StatusServiceUnavailable {
			t.Errorf("%s %s = %d, want 503", p.method, p.target, rec.Code)
		}
	}
}

func TestStatusAlwaysServed(t *testing.T) {
	e := newEnv(t, false)

	var status struct {
		Connected      bool `json:"connected"`
		HasQR          bool `json:"hasQr"`
		HasPairingCode bool `json:"hasPairingCode"`
	}
	rec := e.do(t, http.MethodGet, "/api/status", "", &status)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if status.Connected {
		t.Error("connected = true before any session")
	}
}

func TestStatusReflectsReadySession(t *testing.T) {
	e := newEnv(t, true)

	var status struct {
		Connected bool `json:"connected"`
	}
	e.do(t, http.MethodGet, "/api/status", "", &status)
	if !status.Connected {
		t.Error("connected = false with a ready session")
	}
}

func TestQRNotAvailable(t *testing.T) {
	e := newEnv(t, false)

	var body map[string]string
	rec := e.do(t, http.MethodGet, "/api/qr", "", &body)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("qr = %d, want 404", rec.Code)
	}
	if body["error"] == "" {
		t.Error("missing error message")
	}
}

func TestQRRenderedAsDataURL(t *testing.T) {
	e := newEnv(t, false)
	if err := e.mgr.Initialize(context.Background()); err != nil {
		t.Fatal(err)
	}
	e.fake.Emit(client.QRCodeEvent{Code: "challenge-payload"})
	waitFor(t, func() bool { return e.mgr.Current() == conn.AwaitingQR }, "awaiting QR")

	var body map[string]string
	rec := e.do(t, http.MethodGet, "/api/qr", "", &body)
	if rec.Code != http.StatusOK {
		t.Fatalf("qr = %d, want 200", rec.Code)
	}
	if !strings.HasPrefix(body["qr"], "data:image/png;base64,") {
		t.Errorf("qr payload %q is not a PNG data URL", body["qr"][:min(40, len(body["qr"]))])
	}
}

func TestPairingCodeFlow(t *testing.T) {
	e := newEnv(t, false)
	if err := e.mgr.Initialize(context.Background()); err != nil {
		t.Fatal(err)
	}
	e.fake.PairingCode = "ABCD-1234"

	var got map[string]string
	rec := e.do(t, http.MethodPost, "/api/pairing-code", `{"phoneNumber":"+54 9 11 1234-5678"}`, &got)
	if rec.Code != http.StatusOK {
		t.Fatalf("pairing-code = %d, want 200 (body %s)", rec.Code, rec.Body.String())
	}
	if got["code"] != "ABCD-1234" {
		t.Errorf("code = %q, want ABCD-1234", got["code"])
	}

	got = nil
	rec = e.do(t, http.MethodGet, "/api/pairing-code", "", &got)
	if rec.Code != http.StatusOK || got["code"] != "ABCD-1234" {
		t.Errorf("GET pairing-code = %d %v", rec.Code, got)
	}
}

func TestPairingCodeValidation(t *testing.T) {
	e := newEnv(t, false)
	if err := e.mgr.Initialize(context.Background()); err != nil {
		t.Fatal(err)
	}

	rec := e.do(t, http.MethodPost, "/api/pairing-code", `{}`, nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing phoneNumber = %d, want 400", rec.Code)
	}

	rec = e.do(t, http.MethodPost, "/api/pairing-code", `{"phoneNumber":"12345"}`, nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("short phoneNumber = %d, want 400", rec.Code)
	}
}

func TestPairingCodeRejectedWhenConnected(t *testing.T) {
	e := newEnv(t, true)

	rec := e.do(t, http.MethodPost, "/api/pairing-code", `{"phoneNumber":"5491112345678"}`, nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("pairing while connected = %d, want 400", rec.Code)
	}
}

func TestPairingCodeNotAvailable(t *testing.T) {
	e := newEnv(t, false)

	rec := e.do(t, http.MethodGet, "/api/pairing-code", "", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("GET pairing-code = %d, want 404", rec.Code)
	}
}
