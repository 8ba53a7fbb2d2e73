package relay

import (
	"bytes"
	"encoding/binary"
	"io"
	"sort"

	"driftlock/engine/engineerr"
	"driftlock/engine/fixed"
	"driftlock/engine/store"
)

// EncodeEnvelope serializes env to its wire form: u8 kind, u32 sequence,
// u32 payload length, payload bytes.
func EncodeEnvelope(env Envelope) []byte {
	var buf bytes.Buffer
	buf.WriteByte(byte(env.Kind))
	writeU32(&buf, env.Sequence)
	writeU32(&buf, uint32(len(env.Payload)))
	buf.Write(env.Payload)
	return buf.Bytes()
}

// DecodeEnvelope parses the wire form EncodeEnvelope produces.
func DecodeEnvelope(data []byte) (Envelope, error) {
	r := bytes.NewReader(data)
	kindByte, err := r.ReadByte()
	if err != nil {
		return Envelope{}, protoErr("truncated kind")
	}
	seq, err := readU32(r)
	if err != nil {
		return Envelope{}, protoErr("truncated sequence")
	}
	length, err := readU32(r)
	if err != nil {
		return Envelope{}, protoErr("truncated payload length")
	}
	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return Envelope{}, protoErr("truncated payload")
	}
	return Envelope{Kind: Kind(kindByte), Sequence: seq, Payload: payload}, nil
}

// EncodeActionSet serializes an ActionSet: u16 count, then per entry
// (u16 id, u8 kind, i32 scalar, i32 vecX, i32 vecY, u8 pressed).
func EncodeActionSet(a store.ActionSet) []byte {
	var buf bytes.Buffer
	writeU16(&buf, uint16(len(a)))
	ids := make([]store.ActionID, 0, len(a))
	for id := range a {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		v := a[id]
		writeU16(&buf, uint16(id))
		buf.WriteByte(byte(v.Kind))
		writeI32(&buf, int32(v.Scalar))
		writeI32(&buf, int32(v.VecX))
		writeI32(&buf, int32(v.VecY))
		if v.Pressed {
			buf.WriteByte(1)
		} else {
			buf.WriteByte(0)
		}
	}
	return buf.Bytes()
}

// DecodeActionSet parses the wire form EncodeActionSet produces.
func DecodeActionSet(data []byte) (store.ActionSet, error) {
	r := bytes.NewReader(data)
	count, err := readU16(r)
	if err != nil {
		return nil, protoErr("truncated action set count")
	}
	out := make(store.ActionSet, count)
	for i := uint16(0); i < count; i++ {
		id, err := readU16(r)
		if err != nil {
			return nil, protoErr("truncated action id")
		}
		kindByte, err := r.ReadByte()
		if err != nil {
			return nil, protoErr("truncated action kind")
		}
		scalar, err := readI32(r)
		if err != nil {
			return nil, protoErr("truncated action scalar")
		}
		vecX, err := readI32(r)
		if err != nil {
			return nil, protoErr("truncated action vecX")
		}
		vecY, err := readI32(r)
		if err != nil {
			return nil, protoErr("truncated action vecY")
		}
		pressedByte, err := r.ReadByte()
		if err != nil {
			return nil, protoErr("truncated action pressed")
		}
		out[store.ActionID(id)] = store.ActionValue{
			Kind:    store.ActionKind(kindByte),
			Scalar:  fixed.Q(scalar),
			VecX:    fixed.Q(vecX),
			VecY:    fixed.Q(vecY),
			Pressed: pressedByte != 0,
		}
	}
	return out, nil
}

func protoErr(msg string) error {
	return engineerr.New(engineerr.ProtocolError, "relay.Decode", msg)
}

func writeU16(buf *bytes.Buffer, v uint16) {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	buf.Write(b[:])
}
func writeU32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}
func writeI32(buf *bytes.Buffer, v int32) { writeU32(buf, uint32(v)) }
func writeI64(buf *bytes.Buffer, v int64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], uint64(v))
	buf.Write(b[:])
}

func readU16(r *bytes.Reader) (uint16, error) {
	var b [2]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b[:]), nil
}
func readU32(r *bytes.Reader) (uint32, error) {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b[:]), nil
}
func readI32(r *bytes.Reader) (int32, error) {
	v, err := readU32(r)
	return int32(v), err
}
func readI64(r *bytes.Reader) (int64, error) {
	var b [8]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return int64(binary.LittleEndian.Uint64(b[:])), nil
}
