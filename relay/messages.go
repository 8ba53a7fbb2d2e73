// Package relay is a reference transport for the wire protocol: a
// length-prefixed binary framing over a websocket connection, carrying
// five message kinds (INPUT, TICK, SNAPSHOT, HASH, TIME-SYNC).
//
// relay is explicitly outside the deterministic core: the store, predict,
// and syncengine packages never import it, and relay never reaches into
// their internals beyond the public Session/World surface.
package relay

import (
	"driftlock/engine/store"
)

// Kind identifies one of five message kinds.
type Kind uint8

const (
	KindInput Kind = iota
	KindTick
	KindSnapshot
	KindHash
	KindTimeSync
)

// InputMessage is participant → relay: one client's opaque input data
// for the local frame it was queued at.
type InputMessage struct {
	ClientID store.ClientID
	Data     store.ActionSet
}

// TickInputRecord is one client's entry inside a TickMessage.
type TickInputRecord struct {
	Sequence uint32
	ClientID store.ClientID
	Data     store.ActionSet
}

// TickMessage is relay → participant: the relay's ordered, sequenced
// fan-out of one frame's inputs plus the majority hash for consensus.
type TickMessage struct {
	Sequence     uint32
	Frame        uint64
	Inputs       []TickInputRecord
	MajorityHash uint32
	ServerTime   int64
}

// SnapshotMessage is authority → relay → one participant: a full
// snapshot for a late joiner or a desync recovery.
type SnapshotMessage struct {
	Bytes    []byte // wire-encoded store.Snapshot, via store.EncodeSnapshot
	Hash     uint32
	PostTick bool
}

// HashMessage is participant → relay: the compact per-tick uplink SYNC
// sends.
type HashMessage struct {
	Frame uint64
	Hash  uint32
}

// TimeSyncMessage is exchanged participant ↔ relay for clock-skew
// estimation.
type TimeSyncMessage struct {
	SentLocal     int64
	ServerTime    int64
	ReceivedLocal int64
}

// Envelope is the outer frame every message travels in: a kind tag plus
// the kind-specific encoded payload, with a relay-assigned sequence
// number that increases monotonically per connection.
type Envelope struct {
	Kind     Kind
	Sequence uint32
	Payload  []byte
}
