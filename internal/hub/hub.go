// Package hub fans bus events out to WebSocket observers. Observers are
// write-only: inbound frames are drained and ignored. Each event is
// serialized once and delivered best-effort; an observer that cannot
// keep up is disconnected instead of stalling the rest.
package hub

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/wabridge/wabridge/internal/bus"
	"go.uber.org/zap"
)

const (
	// subscribeBuffer sizes the hub's bus subscription.
	subscribeBuffer = 256

	// observerBuffer is the per-observer outbound queue. A full queue
	// marks the observer as too slow and drops the connection.
	observerBuffer = 64

	writeTimeout = 5 * time.Second
)

// Snapshot supplies the status frame sent to every observer on attach.
type Snapshot func() StatusPayload

type observer struct {
	ws   *websocket.Conn
	out  chan []byte
	stop chan struct{}
	once sync.Once
}

// kick asks the observer's write loop to shut down. Safe to call more
// than once.
func (o *observer) kick() {
	o.once.Do(func() { close(o.stop) })
}

// Hub broadcasts push events to attached WebSocket observers.
type Hub struct {
	bus      *bus.Bus
	snapshot Snapshot
	logger   *zap.Logger

	mu        sync.Mutex
	observers map[*observer]struct{}
}

// New creates a hub. snapshot is invoked once per attaching observer.
func New(b *bus.Bus, snapshot Snapshot, logger *zap.Logger) *Hub {
	return &Hub{
		bus:       b,
		snapshot:  snapshot,
		logger:    logger,
		observers: make(map[*observer]struct{}),
	}
}

// Run subscribes to push events and broadcasts until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	events, cancel := h.bus.Subscribe(Namespace, subscribeBuffer)
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case evt := <-events:
			frame, err := json.Marshal(Envelope{
				Type: strings.TrimPrefix(evt.Kind, Namespace),
				Data: evt.Payload,
			})
			if err != nil {
				h.logger.Error("failed to serialize push event",
					zap.String("kind", evt.Kind), zap.Error(err))
				continue
			}
			h.broadcast(frame)
		}
	}
}

// ObserverCount reports the number of attached observers.
func (h *Hub) ObserverCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.observers)
}

// ServeHTTP upgrades the request and streams push events until the
// observer disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	obs := &observer{
		ws:   ws,
		out:  make(chan []byte, observerBuffer),
		stop: make(chan struct{}),
	}

	// Greet with the current status before any broadcast reaches this
	// observer.
	hello, err := json.Marshal(Envelope{Type: EventStatus, Data: h.snapshot()})
	if err == nil {
		obs.out <- hello
	}

	h.attach(obs)
	h.logger.Info("websocket observer attached", zap.String("remote", r.RemoteAddr))
	defer func() {
		h.detach(obs)
		ws.Close(websocket.StatusNormalClosure, "")
		h.logger.Info("websocket observer detached", zap.String("remote", r.RemoteAddr))
	}()

	// Observers never send data frames; CloseRead keeps control frames
	// flowing and cancels the context when the peer goes away.
	readCtx := ws.CloseRead(r.Context())

	for {
		select {
		case <-readCtx.Done():
			return
		case <-obs.stop:
			return
		case frame := <-obs.out:
			writeCtx, cancel := context.WithTimeout(readCtx, writeTimeout)
			err := ws.Write(writeCtx, websocket.MessageText, frame)
			cancel()
			if err != nil {
				h.logger.Debug("websocket write failed", zap.Error(err))
				return
			}
		}
	}
}

func (h *Hub) attach(obs *observer) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.observers[obs] = struct{}{}
}

func (h *Hub) detach(obs *observer) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.observers, obs)
}

// broadcast queues frame for every observer. Queues are per observer,
// so one slow peer only loses its own connection.
func (h *Hub) broadcast(frame []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for obs := range h.observers {
		select {
		case obs.out <- frame:
		case <-obs.stop:
		default:
			h.logger.Warn("dropping slow websocket observer")
			obs.kick()
		}
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for obs := range h.observers {
		obs.kick()
	}
}
