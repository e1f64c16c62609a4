package conn

import "slices"

// State is the lifecycle position of the WhatsApp session.
type State string

const (
	Disconnected        State = "DISCONNECTED"
	Initializing        State = "INITIALIZING"
	AwaitingQR          State = "AWAITING_QR"
	AwaitingPairingCode State = "AWAITING_PAIRING_CODE"
	Authenticated       State = "AUTHENTICATED"
	Ready               State = "READY"
)

// validTransitions encodes the per-session monotonic lifecycle.
// Disconnected is reachable from everywhere and only leads back through
// a fresh Initializing.
var validTransitions = map[State][]State{
	Disconnected:        {Initializing},
	Initializing:        {AwaitingQR, AwaitingPairingCode, Authenticated, Ready, Disconnected},
	AwaitingQR:          {AwaitingPairingCode, Authenticated, Ready, Disconnected},
	AwaitingPairingCode: {AwaitingQR, Authenticated, Ready, Disconnected},
	Authenticated:       {Ready, Disconnected},
	Ready:               {Disconnected},
}

func canTransition(from, to State) bool {
	return slices.Contains(validTransitions[from], to)
}
