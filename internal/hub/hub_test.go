package hub

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/wabridge/wabridge/internal/bus"
	"go.uber.org/zap"
)

type frame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type harness struct {
	bus    *bus.Bus
	hub    *Hub
	server *httptest.Server
	cancel context.CancelFunc
}

func newHarness(t *testing.T, snapshot Snapshot) *harness {
	t.Helper()
	if snapshot == nil {
		snapshot = func() StatusPayload { return StatusPayload{} }
	}
	b := bus.New()
	h := New(b, snapshot, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)

	server := httptest.NewServer(h)
	t.Cleanup(func() {
		cancel()
		server.Close()
	})
	return &harness{bus: b, hub: h, server: server, cancel: cancel}
}

func (h *harness) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	ws, _, err := websocket.Dial(ctx, h.server.URL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { ws.Close(websocket.StatusNormalClosure, "") })
	return ws
}

func readFrame(t *testing.T, ws *websocket.Conn) frame {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, data, err := ws.Read(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var f frame
	if err := json.Unmarshal(data, &f); err != nil {
		t.Fatalf("unmarshal %q: %v", data, err)
	}
	return f
}

func waitObservers(t *testing.T, h *Hub, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if h.ObserverCount() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("observer count = %d, want %d", h.ObserverCount(), want)
}

func TestAttachSendsStatusSnapshot(t *testing.T) {
	h := newHarness(t, func() StatusPayload {
		return StatusPayload{Connected: true}
	})
	ws := h.dial(t)

	f := readFrame(t, ws)
	if f.Type != EventStatus {
		t.Fatalf("first frame type = %q, want %q", f.Type, EventStatus)
	}
	var status StatusPayload
	if err := json.Unmarshal(f.Data, &status); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if !status.Connected {
		t.Error("snapshot not reflected in hello frame")
	}
}

func TestBroadcastReachesAllObservers(t *testing.T) {
	h := newHarness(t, nil)
	first := h.dial(t)
	second := h.dial(t)
	readFrame(t, first)
	readFrame(t, second)
	waitObservers(t, h.hub, 2)

	h.bus.Publish(bus.Event{
		Kind: Kind(EventMessage),
		Payload: MessagePayload{
			ID:     "m1",
			ChatID: "111@s.whatsapp.net",
			Body:   "hello",
		},
	})

	for _, ws := range []*websocket.Conn{first, second} {
		f := readFrame(t, ws)
		if f.Type != EventMessage {
			t.Fatalf("frame type = %q, want %q", f.Type, EventMessage)
		}
		var msg MessagePayload
		if err := json.Unmarshal(f.Data, &msg); err != nil {
			t.Fatalf("decode message: %v", err)
		}
		if msg.ID != "m1" || msg.Body != "hello" {
			t.Errorf("payload = %+v", msg)
		}
	}
}

func TestNamespaceFiltering(t *testing.T) {
	h := newHarness(t, nil)
	ws := h.dial(t)
	readFrame(t, ws)
	waitObservers(t, h.hub, 1)

	// Internal events must never reach the wire.
	h.bus.Publish(bus.Event{Kind: "conn.state", Payload: "READY"})
	h.bus.Publish(bus.Event{
		Kind:    Kind(EventTyping),
		Payload: TypingPayload{ChatID: "111@s.whatsapp.net", IsTyping: true},
	})

	f := readFrame(t, ws)
	if f.Type != EventTyping {
		t.Fatalf("leaked frame type %q before %q", f.Type, EventTyping)
	}
}

func TestEventsDeliveredInOrder(t *testing.T) {
	h := newHarness(t, nil)
	ws := h.dial(t)
	readFrame(t, ws)
	waitObservers(t, h.hub, 1)

	for ack := 1; ack <= 4; ack++ {
		h.bus.Publish(bus.Event{
			Kind:    Kind(EventMessageAck),
			Payload: AckPayload{ID: "m1", Ack: ack},
		})
	}

	for want := 1; want <= 4; want++ {
		f := readFrame(t, ws)
		var ack AckPayload
		if err := json.Unmarshal(f.Data, &ack); err != nil {
			t.Fatalf("decode ack: %v", err)
		}
		if ack.Ack != want {
			t.Fatalf("ack %d arrived out of order (want %d)", ack.Ack, want)
		}
	}
}

func TestObserverDetachOnClose(t *testing.T) {
	h := newHarness(t, nil)
	ws := h.dial(t)
	readFrame(t, ws)
	waitObservers(t, h.hub, 1)

	ws.Close(websocket.StatusNormalClosure, "")
	waitObservers(t, h.hub, 0)

	// A broadcast with nobody attached must not panic or block.
	h.bus.Publish(bus.Event{
		Kind:    Kind(EventMessageDeleted),
		Payload: DeletedPayload{ID: "m1", ChatID: "111@s.whatsapp.net"},
	})
}

func TestEnvelopeShape(t *testing.T) {
	h := newHarness(t, nil)
	ws := h.dial(t)
	readFrame(t, ws)
	waitObservers(t, h.hub, 1)

	h.bus.Publish(bus.Event{
		Kind:    Kind(EventMessageAck),
		Payload: AckPayload{ID: "m9", ChatID: "111@s.whatsapp.net", Ack: 3, AckName: "READ"},
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, raw, err := ws.Read(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var generic map[string]any
	if err := json.Unmarshal(raw, &generic); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if generic["type"] != EventMessageAck {
		t.Errorf("type = %v", generic["type"])
	}
	data, ok := generic["data"].(map[string]any)
	if !ok {
		t.Fatalf("data = %T", generic["data"])
	}
	if data["ackName"] != "READ" || data["ack"] != float64(3) {
		t.Errorf("data = %v", data)
	}
}
