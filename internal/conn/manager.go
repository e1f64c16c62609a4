// Package conn owns the WhatsApp session lifecycle: at most one live
// session, the current connection state, the latest QR challenge or
// pairing code (mutually exclusive), and the single fixed-delay
// reconnection attempt after a disconnect.
package conn

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/wabridge/wabridge/internal/bus"
	"github.com/wabridge/wabridge/internal/client"
	"github.com/wabridge/wabridge/internal/fault"
	"github.com/wabridge/wabridge/internal/hub"
	"go.uber.org/zap"
)

// DefaultReconnectDelay is how long after a disconnect the manager waits
// before creating a fresh session.
const DefaultReconnectDelay = 5 * time.Second

// Factory creates a fresh session. Called once per Initialize and once
// per reconnection attempt.
type Factory func(ctx context.Context) (client.Session, error)

// Manager is the connection state machine. All mutation happens on
// session events or API calls; readers poll the getters.
type Manager struct {
	factory        Factory
	bus            *bus.Bus
	logger         *zap.Logger
	reconnectDelay time.Duration

	mu          sync.Mutex
	state       State
	sess        client.Session
	qr          string
	pairingCode string
}

// NewManager creates a manager in the Disconnected state. A
// reconnectDelay of zero selects DefaultReconnectDelay.
func NewManager(factory Factory, b *bus.Bus, logger *zap.Logger, reconnectDelay time.Duration) *Manager {
	if reconnectDelay == 0 {
		reconnectDelay = DefaultReconnectDelay
	}
	return &Manager{
		factory:        factory,
		bus:            b,
		logger:         logger,
		reconnectDelay: reconnectDelay,
		state:          Disconnected,
	}
}

// Initialize creates and connects a session. Idempotent: if a session
// is already owned it is left untouched.
func (m *Manager) Initialize(ctx context.Context) error {
	m.mu.Lock()
	if m.sess != nil {
		m.mu.Unlock()
		return nil
	}

	sess, err := m.factory(ctx)
	if err != nil {
		m.mu.Unlock()
		m.logger.Error("session creation failed", zap.Error(err))
		return fault.Wrap(fault.UpstreamFailure, err, "create session")
	}
	m.sess = sess
	m.transitionLocked(Initializing)
	m.mu.Unlock()

	go m.watch(sess)
	go func() {
		if err := sess.Connect(ctx); err != nil {
			m.logger.Error("session connect failed", zap.Error(err))
		}
	}()
	return nil
}

// watch drains one session's event stream until it closes. Events from
// a session the manager no longer owns are dropped.
func (m *Manager) watch(sess client.Session) {
	for evt := range sess.Events() {
		m.handle(sess, evt)
	}
}

func (m *Manager) handle(sess client.Session, evt any) {
	m.mu.Lock()
	if m.sess != sess {
		// A discarded session's late events must not corrupt state.
		m.mu.Unlock()
		return
	}

	switch e := evt.(type) {
	case client.QRCodeEvent:
		m.qr = e.Code
		m.pairingCode = ""
		m.transitionLocked(AwaitingQR)
		m.mu.Unlock()
		m.logger.Info("QR challenge received")

	case client.AuthenticatedEvent:
		m.qr = ""
		m.pairingCode = ""
		m.transitionLocked(Authenticated)
		m.mu.Unlock()
		m.logger.Info("authenticated")

	case client.ReadyEvent:
		m.qr = ""
		m.pairingCode = ""
		m.transitionLocked(Ready)
		snap := m.snapshotLocked()
		m.mu.Unlock()
		m.logger.Info("session ready")
		m.bus.Publish(bus.Event{Kind: hub.Kind(hub.EventStatus), Payload: snap})

	case client.AuthFailureEvent:
		m.qr = ""
		m.pairingCode = ""
		m.transitionLocked(Disconnected)
		m.mu.Unlock()
		// No automatic retry on auth failure; this needs an operator.
		m.logger.Warn("authentication failed", zap.String("reason", e.Reason))

	case client.DisconnectedEvent:
		m.sess = nil
		m.qr = ""
		m.pairingCode = ""
		m.transitionLocked(Disconnected)
		delay := m.reconnectDelay
		m.mu.Unlock()
		// Tear the discarded session down fully. The replacement owns
		// the credential store; the old client must not keep its own
		// reconnect loop alive alongside it.
		sess.Disconnect()
		m.logger.Warn("session disconnected, scheduling reconnect",
			zap.String("reason", e.Reason), zap.Duration("delay", delay))
		time.AfterFunc(delay, func() {
			if err := m.Initialize(context.Background()); err != nil {
				m.logger.Error("reconnect failed", zap.Error(err))
			}
		})

	case client.MessageEvent:
		m.mu.Unlock()
		m.bus.Publish(bus.Event{Kind: hub.Kind(hub.EventMessage), Payload: hub.MessagePayload{
			ID:        e.Message.ID,
			ChatID:    e.Message.ChatID,
			ChatName:  e.ChatName,
			Body:      e.Message.Body,
			FromMe:    e.Message.FromMe,
			Timestamp: e.Message.Timestamp,
			Type:      e.Message.Kind,
			HasMedia:  e.Message.HasMedia,
			IsGroup:   e.IsGroup,
		}})

	case client.MessageSentEvent:
		m.mu.Unlock()
		m.bus.Publish(bus.Event{Kind: hub.Kind(hub.EventMessageSent), Payload: hub.MessageSentPayload{
			ID:        e.Message.ID,
			ChatID:    e.Message.ChatID,
			Body:      e.Message.Body,
			Timestamp: e.Message.Timestamp,
			Type:      e.Message.Kind,
		}})

	case client.AckEvent:
		m.mu.Unlock()
		m.bus.Publish(bus.Event{Kind: hub.Kind(hub.EventMessageAck), Payload: hub.AckPayload{
			ID:      e.MessageID,
			ChatID:  e.ChatID,
			Ack:     e.Level,
			AckName: client.AckName(e.Level),
		}})

	case client.MessageDeletedEvent:
		m.mu.Unlock()
		m.bus.Publish(bus.Event{Kind: hub.Kind(hub.EventMessageDeleted), Payload: hub.DeletedPayload{
			ID:     e.MessageID,
			ChatID: e.ChatID,
		}})

	case client.TypingEvent:
		m.mu.Unlock()
		m.bus.Publish(bus.Event{Kind: hub.Kind(hub.EventTyping), Payload: hub.TypingPayload{
			ChatID:   e.ChatID,
			IsTyping: e.IsTyping,
		}})

	case client.ChatUpdateEvent:
		m.mu.Unlock()
		m.bus.Publish(bus.Event{Kind: hub.Kind(hub.EventChatUpdate), Payload: hub.ChatUpdatePayload{
			ChatID:      e.ChatID,
			UnreadCount: e.UnreadCount,
		}})

	default:
		m.mu.Unlock()
	}
}

// transitionLocked moves to a new state if the transition table allows
// it. Invalid transitions (e.g. a duplicate QR refresh) are logged and
// ignored rather than crashing the event loop.
func (m *Manager) transitionLocked(to State) {
	if m.state == to {
		return
	}
	if !canTransition(m.state, to) {
		m.logger.Warn("ignoring invalid state transition",
			zap.String("from", string(m.state)), zap.String("to", string(to)))
		return
	}
	m.state = to
}

// RequestPairingCode validates and forwards a pairing-code request.
// Only permitted while not Ready.
func (m *Manager) RequestPairingCode(ctx context.Context, rawPhone string) (string, error) {
	digits := stripNonDigits(rawPhone)
	if len(digits) < 10 {
		return "", fault.New(fault.InvalidInput, "invalid phone number (use country code, e.g. 5491112345678)")
	}

	m.mu.Lock()
	if m.state == Ready {
		m.mu.Unlock()
		return "", fault.New(fault.InvalidInput, "already connected")
	}
	sess := m.sess
	m.mu.Unlock()

	if sess == nil {
		return "", fault.New(fault.NotReady, "no active session")
	}

	code, err := sess.RequestPairingCode(ctx, digits)
	if err != nil {
		return "", fault.Wrap(fault.UpstreamFailure, err, "request pairing code")
	}

	m.mu.Lock()
	// The session may have gone Ready while the code was in flight.
	// Storing it then would advertise a pairing challenge on a
	// connected session.
	if m.state == Ready {
		m.mu.Unlock()
		return "", fault.New(fault.InvalidInput, "already connected")
	}
	m.pairingCode = code
	m.qr = ""
	m.transitionLocked(AwaitingPairingCode)
	m.mu.Unlock()

	m.logger.Info("pairing code issued", zap.String("phone", maskPhone(digits)))
	return code, nil
}

// Shutdown disconnects the owned session and disowns it so its
// DisconnectedEvent cannot schedule a reconnect. Used at daemon stop.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	sess := m.sess
	m.sess = nil
	m.qr = ""
	m.pairingCode = ""
	m.transitionLocked(Disconnected)
	m.mu.Unlock()
	if sess != nil {
		sess.Disconnect()
	}
}

// Current returns the connection state.
func (m *Manager) Current() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Session returns the live session, or a NotReady error when the
// connection is not in Ready state.
func (m *Manager) Session() (client.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != Ready || m.sess == nil {
		return nil, fault.New(fault.NotReady, "not connected")
	}
	return m.sess, nil
}

// QR returns the current QR challenge payload.
func (m *Manager) QR() (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.qr, m.qr != ""
}

// PairingCode returns the current pairing code.
func (m *Manager) PairingCode() (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pairingCode, m.pairingCode != ""
}

// Snapshot returns the status payload served to pollers and sent to
// fresh WebSocket observers.
func (m *Manager) Snapshot() hub.StatusPayload {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

func (m *Manager) snapshotLocked() hub.StatusPayload {
	return hub.StatusPayload{
		Connected:      m.state == Ready,
		HasQR:          m.qr != "",
		HasPairingCode: m.pairingCode != "",
	}
}

func stripNonDigits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// maskPhone hides all but the last four digits in logs.
func maskPhone(digits string) string {
	if len(digits) <= 4 {
		return digits
	}
	return strings.Repeat("*", len(digits)-4) + digits[len(digits)-4:]
}
