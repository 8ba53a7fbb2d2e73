package relay

import (
	"bytes"
	"io"
)

// EncodeInput serializes an InputMessage payload (for Envelope{Kind: KindInput}).
func EncodeInput(m InputMessage) []byte {
	var buf bytes.Buffer
	writeU16(&buf, uint16(len(m.ClientID)))
	buf.WriteString(m.ClientID)
	buf.Write(EncodeActionSet(m.Data))
	return buf.Bytes()
}

// DecodeInput parses an InputMessage payload.
func DecodeInput(data []byte) (InputMessage, error) {
	r := bytes.NewReader(data)
	length, err := readU16(r)
	if err != nil {
		return InputMessage{}, protoErr("truncated client id length")
	}
	idBytes := make([]byte, length)
	if _, err := io.ReadFull(r, idBytes); err != nil {
		return InputMessage{}, protoErr("truncated client id")
	}
	rest := make([]byte, r.Len())
	if _, err := io.ReadFull(r, rest); err != nil {
		return InputMessage{}, protoErr("truncated action set payload")
	}
	data2, err := DecodeActionSet(rest)
	if err != nil {
		return InputMessage{}, err
	}
	return InputMessage{ClientID: string(idBytes), Data: data2}, nil
}

// EncodeTick serializes a TickMessage payload.
func EncodeTick(m TickMessage) []byte {
	var buf bytes.Buffer
	writeU32(&buf, m.Sequence)
	writeU32(&buf, uint32(m.Frame))
	writeU16(&buf, uint16(len(m.Inputs)))
	for _, rec := range m.Inputs {
		writeU32(&buf, rec.Sequence)
		writeU16(&buf, uint16(len(rec.ClientID)))
		buf.WriteString(rec.ClientID)
		encoded := EncodeActionSet(rec.Data)
		writeU32(&buf, uint32(len(encoded)))
		buf.Write(encoded)
	}
	writeU32(&buf, m.MajorityHash)
	writeI64(&buf, m.ServerTime)
	return buf.Bytes()
}

// DecodeTick parses a TickMessage payload.
func DecodeTick(data []byte) (TickMessage, error) {
	r := bytes.NewReader(data)
	seq, err := readU32(r)
	if err != nil {
		return TickMessage{}, protoErr("truncated sequence")
	}
	frame, err := readU32(r)
	if err != nil {
		return TickMessage{}, protoErr("truncated frame")
	}
	count, err := readU16(r)
	if err != nil {
		return TickMessage{}, protoErr("truncated input count")
	}
	inputs := make([]TickInputRecord, count)
	for i := range inputs {
		recSeq, err := readU32(r)
		if err != nil {
			return TickMessage{}, protoErr("truncated record sequence")
		}
		idLen, err := readU16(r)
		if err != nil {
			return TickMessage{}, protoErr("truncated record client id length")
		}
		idBytes := make([]byte, idLen)
		if _, err := io.ReadFull(r, idBytes); err != nil {
			return TickMessage{}, protoErr("truncated record client id")
		}
		dataLen, err := readU32(r)
		if err != nil {
			return TickMessage{}, protoErr("truncated record data length")
		}
		dataBytes := make([]byte, dataLen)
		if _, err := io.ReadFull(r, dataBytes); err != nil {
			return TickMessage{}, protoErr("truncated record data")
		}
		actionSet, err := DecodeActionSet(dataBytes)
		if err != nil {
			return TickMessage{}, err
		}
		inputs[i] = TickInputRecord{Sequence: recSeq, ClientID: string(idBytes), Data: actionSet}
	}
	majorityHash, err := readU32(r)
	if err != nil {
		return TickMessage{}, protoErr("truncated majority hash")
	}
	serverTime, err := readI64(r)
	if err != nil {
		return TickMessage{}, protoErr("truncated server time")
	}
	return TickMessage{Sequence: seq, Frame: uint64(frame), Inputs: inputs, MajorityHash: majorityHash, ServerTime: serverTime}, nil
}

// EncodeSnapshotMessage serializes a SnapshotMessage payload. m.Bytes is
// expected to already be a store.EncodeSnapshot result.
func EncodeSnapshotMessage(m SnapshotMessage) []byte {
	var buf bytes.Buffer
	writeU32(&buf, m.Hash)
	if m.PostTick {
		buf.WriteByte(1)
	} else {
		buf.WriteByte(0)
	}
	writeU32(&buf, uint32(len(m.Bytes)))
	buf.Write(m.Bytes)
	return buf.Bytes()
}

// DecodeSnapshotMessage parses a SnapshotMessage payload.
func DecodeSnapshotMessage(data []byte) (SnapshotMessage, error) {
	r := bytes.NewReader(data)
	h, err := readU32(r)
	if err != nil {
		return SnapshotMessage{}, protoErr("truncated hash")
	}
	postTickByte, err := r.ReadByte()
	if err != nil {
		return SnapshotMessage{}, protoErr("truncated postTick")
	}
	length, err := readU32(r)
	if err != nil {
		return SnapshotMessage{}, protoErr("truncated snapshot length")
	}
	snapBytes := make([]byte, length)
	if _, err := io.ReadFull(r, snapBytes); err != nil {
		return SnapshotMessage{}, protoErr("truncated snapshot bytes")
	}
	return SnapshotMessage{Bytes: snapBytes, Hash: h, PostTick: postTickByte != 0}, nil
}

// EncodeHash serializes a HashMessage payload.
func EncodeHash(m HashMessage) []byte {
	var buf bytes.Buffer
	writeU32(&buf, uint32(m.Frame))
	writeU32(&buf, m.Hash)
	return buf.Bytes()
}

// DecodeHash parses a HashMessage payload.
func DecodeHash(data []byte) (HashMessage, error) {
	r := bytes.NewReader(data)
	frame, err := readU32(r)
	if err != nil {
		return HashMessage{}, protoErr("truncated frame")
	}
	h, err := readU32(r)
	if err != nil {
		return HashMessage{}, protoErr("truncated hash")
	}
	return HashMessage{Frame: uint64(frame), Hash: h}, nil
}

// EncodeTimeSync serializes a TimeSyncMessage payload.
func EncodeTimeSync(m TimeSyncMessage) []byte {
	var buf bytes.Buffer
	writeI64(&buf, m.SentLocal)
	writeI64(&buf, m.ServerTime)
	writeI64(&buf, m.ReceivedLocal)
	return buf.Bytes()
}

// DecodeTimeSync parses a TimeSyncMessage payload.
func DecodeTimeSync(data []byte) (TimeSyncMessage, error) {
	r := bytes.NewReader(data)
	sentLocal, err := readI64(r)
	if err != nil {
		return TimeSyncMessage{}, protoErr("truncated sent_local")
	}
	serverTime, err := readI64(r)
	if err != nil {
		return TimeSyncMessage{}, protoErr("truncated server_time")
	}
	receivedLocal, err := readI64(r)
	if err != nil {
		return TimeSyncMessage{}, protoErr("truncated received_local")
	}
	return TimeSyncMessage{SentLocal: sentLocal, ServerTime: serverTime, ReceivedLocal: receivedLocal}, nil
}
