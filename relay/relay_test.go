package relay

import (
	"testing"

	"driftlock/engine/fixed"
	"driftlock/engine/store"
)

func TestActionSetRoundTrip(t *testing.T) {
	a := store.ActionSet{
		0: {Kind: store.ActionVector, VecX: fixed.FromInt(3), VecY: fixed.FromInt(-2)},
		1: {Kind: store.ActionButton, Pressed: true},
	}
	encoded := EncodeActionSet(a)
	decoded, err := DecodeActionSet(encoded)
	if err != nil {
		t.Fatalf("DecodeActionSet: %v", err)
	}
	if !a.Equal(decoded) {
		t.Fatalf("action set round trip mismatch: got %+v want %+v", decoded, a)
	}
}

func TestEnvelopeRoundTrip(t *testing.T) {
	env := Envelope{Kind: KindHash, Sequence: 7, Payload: []byte{1, 2, 3, 4}}
	decoded, err := DecodeEnvelope(EncodeEnvelope(env))
	if err != nil {
		t.Fatalf("DecodeEnvelope: %v", err)
	}
	if decoded.Kind != env.Kind || decoded.Sequence != env.Sequence || string(decoded.Payload) != string(env.Payload) {
		t.Fatalf("envelope round trip mismatch: got %+v want %+v", decoded, env)
	}
}

func TestTickMessageRoundTrip(t *testing.T) {
	m := TickMessage{
		Sequence: 10,
		Frame:    42,
		Inputs: []TickInputRecord{
			{Sequence: 1, ClientID: "alice", Data: store.ActionSet{0: {Kind: store.ActionButton, Pressed: true}}},
			{Sequence: 2, ClientID: "bob", Data: store.ActionSet{}},
		},
		MajorityHash: 0xDEADBEEF,
		ServerTime:   1234567890,
	}
	decoded, err := DecodeTick(EncodeTick(m))
	if err != nil {
		t.Fatalf("DecodeTick: %v", err)
	}
	if decoded.Frame != m.Frame || decoded.MajorityHash != m.MajorityHash || decoded.ServerTime != m.ServerTime {
		t.Fatalf("tick header mismatch: got %+v", decoded)
	}
	if len(decoded.Inputs) != len(m.Inputs) {
		t.Fatalf("expected %d inputs, got %d", len(m.Inputs), len(decoded.Inputs))
	}
	for i, rec := range decoded.Inputs {
		if rec.ClientID != m.Inputs[i].ClientID {
			t.Fatalf("client id mismatch at %d: got %s want %s", i, rec.ClientID, m.Inputs[i].ClientID)
		}
	}
}

func TestSnapshotMessageRoundTrip(t *testing.T) {
	m := SnapshotMessage{Bytes: []byte{0xAA, 0xBB, 0xCC}, Hash: 99, PostTick: true}
	decoded, err := DecodeSnapshotMessage(EncodeSnapshotMessage(m))
	if err != nil {
		t.Fatalf("DecodeSnapshotMessage: %v", err)
	}
	if decoded.Hash != m.Hash || decoded.PostTick != m.PostTick || string(decoded.Bytes) != string(m.Bytes) {
		t.Fatalf("snapshot message round trip mismatch: got %+v", decoded)
	}
}

func TestHashMessageRoundTrip(t *testing.T) {
	m := HashMessage{Frame: 100, Hash: 0x1234}
	decoded, err := DecodeHash(EncodeHash(m))
	if err != nil {
		t.Fatalf("DecodeHash: %v", err)
	}
	if decoded != m {
		t.Fatalf("hash message round trip mismatch: got %+v want %+v", decoded, m)
	}
}

func TestTimeSyncMessageRoundTrip(t *testing.T) {
	m := TimeSyncMessage{SentLocal: 100, ServerTime: 250, ReceivedLocal: 150}
	decoded, err := DecodeTimeSync(EncodeTimeSync(m))
	if err != nil {
		t.Fatalf("DecodeTimeSync: %v", err)
	}
	if decoded != m {
		t.Fatalf("time sync round trip mismatch: got %+v want %+v", decoded, m)
	}
}

func TestHubJoinLeaveParticipants(t *testing.T) {
	h := NewHub()
	if len(h.Participants()) != 0 {
		t.Fatal("expected an empty hub initially")
	}
	h.Join("alice", nil)
	if len(h.Participants()) != 1 {
		t.Fatal("expected 1 participant after Join")
	}
	h.Leave("alice")
	if len(h.Participants()) != 0 {
		t.Fatal("expected 0 participants after Leave")
	}
}

func TestHubSequenceMonotonicallyIncreases(t *testing.T) {
	h := NewHub()
	a := h.nextSequence()
	b := h.nextSequence()
	if b <= a {
		t.Fatalf("expected monotonically increasing sequence, got %d then %d", a, b)
	}
}
