package relay

import (
	"sync"
	"sync/atomic"

	"driftlock/engine/store"
)

// Hub is the reference relay: it accepts participant connections and
// stamps a monotonically increasing sequence number on every outbound
// TICK and SNAPSHOT envelope, broadcasting TICK envelopes to every
// connected participant. Inbound inputs are not sequenced by the Hub. It performs no simulation of its own; the authority
// participant runs STORE and reports snapshots/hashes through it.
// Internally it is a mutex-guarded map of subscribers plus an atomic
// sequence counter.
type Hub struct {
	mu           sync.Mutex
	participants map[store.ClientID]*Conn

	sequence atomic.Uint32
}

// NewHub constructs an empty relay hub.
func NewHub() *Hub {
	return &Hub{participants: make(map[store.ClientID]*Conn)}
}

// Join registers a participant's connection.
func (h *Hub) Join(clientID store.ClientID, conn *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.participants[clientID] = conn
}

// Leave removes a participant's connection.
func (h *Hub) Leave(clientID store.ClientID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.participants, clientID)
}

// Participants returns the currently joined client ids.
func (h *Hub) Participants() []store.ClientID {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]store.ClientID, 0, len(h.participants))
	for c := range h.participants {
		out = append(out, c)
	}
	return out
}

// nextSequence returns the next monotonically increasing sequence number.
func (h *Hub) nextSequence() uint32 {
	return h.sequence.Add(1)
}

// BroadcastTick stamps tick with the next sequence number and fans it out
// to every joined participant, continuing past individual send failures:
// a participant whose connection is dead is reported but does not block
// delivery to the others.
func (h *Hub) BroadcastTick(tick TickMessage) (failed []store.ClientID) {
	tick.Sequence = h.nextSequence()
	payload := EncodeEnvelope(Envelope{Kind: KindTick, Sequence: tick.Sequence, Payload: EncodeTick(tick)})

	h.mu.Lock()
	targets := make(map[store.ClientID]*Conn, len(h.participants))
	for c, conn := range h.participants {
		targets[c] = conn
	}
	h.mu.Unlock()

	for clientID, conn := range targets {
		if err := conn.Send("", payload); err != nil {
			failed = append(failed, clientID)
		}
	}
	return failed
}

// SendSnapshot delivers a SNAPSHOT message to exactly one participant
// (e.g. a late joiner or a resync recovery target).
func (h *Hub) SendSnapshot(clientID store.ClientID, snap SnapshotMessage) error {
	h.mu.Lock()
	conn, ok := h.participants[clientID]
	h.mu.Unlock()
	if !ok {
		return errUnknownParticipant(clientID)
	}
	payload := EncodeEnvelope(Envelope{Kind: KindSnapshot, Sequence: h.nextSequence(), Payload: EncodeSnapshotMessage(snap)})
	return conn.Send("", payload)
}

func errUnknownParticipant(clientID store.ClientID) error {
	return protoErr("unknown participant " + clientID)
}
