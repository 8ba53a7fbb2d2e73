package store

import (
	"bytes"
	"encoding/binary"
	"io"
)

// WireVersion is the current snapshot wire-format version.
const WireVersion int8 = 1

// EncodeSnapshot serializes snap to a fixed byte layout: version, frame,
// seq, postTick, entity_count, per-entity records, per-component columns
// in registration order, interned string tables, RNG state, id-allocator
// state. All multi-byte integers are little-endian.
func EncodeSnapshot(reg *Registry, snap *Snapshot) ([]byte, error) {
	var buf bytes.Buffer

	writeI8(&buf, WireVersion)
	writeU32(&buf, uint32(snap.Frame))
	writeU32(&buf, snap.Sequence)
	writeU8(&buf, boolByte(snap.PostTick))
	writeU32(&buf, uint32(len(snap.Entities)))

	for _, rec := range snap.Entities {
		writeU32(&buf, uint32(rec.ID))
		writeU16(&buf, rec.TypeIndex)
		writeI32(&buf, rec.ClientIDInterned)
	}

	for ci, def := range reg.Components() {
		fields := def.Fields()
		for fi, f := range fields {
			values := snap.ColumnData[ci][fi]
			for _, raw := range values {
				writeScalar(&buf, f.Type, raw)
			}
		}
	}

	for _, domain := range domainOrder {
		strs := snap.Strings[domain]
		writeU16(&buf, uint16(len(strs)))
		for id, s := range strs {
			writeU16(&buf, uint16(len(s)))
			buf.WriteString(s)
			writeU32(&buf, uint32(id))
		}
	}

	writeU32(&buf, snap.RNG.S0)
	writeU32(&buf, snap.RNG.S1)

	writeU32(&buf, snap.Allocator.NextIndex)
	writeU32(&buf, uint32(len(snap.Allocator.FreeList)))
	for _, v := range snap.Allocator.FreeList {
		writeU32(&buf, v)
	}
	writeU16(&buf, uint16(len(snap.Allocator.Generations)))
	for _, v := range snap.Allocator.Generations {
		writeU16(&buf, v)
	}

	return buf.Bytes(), nil
}

// DecodeSnapshot parses the wire layout EncodeSnapshot produces, against
// reg to know each field's declared scalar type and width.
func DecodeSnapshot(reg *Registry, data []byte) (*Snapshot, error) {
	r := bytes.NewReader(data)

	version, err := readI8(r)
	if err != nil {
		return nil, errProtocol("DecodeSnapshot", "truncated version")
	}
	if version != WireVersion {
		return nil, errProtocol("DecodeSnapshot", "unsupported wire version")
	}

	frame, err := readU32(r)
	if err != nil {
		return nil, errProtocol("DecodeSnapshot", "truncated frame")
	}
	seq, err := readU32(r)
	if err != nil {
		return nil, errProtocol("DecodeSnapshot", "truncated sequence")
	}
	postTickByte, err := readU8(r)
	if err != nil {
		return nil, errProtocol("DecodeSnapshot", "truncated postTick")
	}
	entityCount, err := readU32(r)
	if err != nil {
		return nil, errProtocol("DecodeSnapshot", "truncated entity count")
	}

	snap := &Snapshot{
		Frame:    uint64(frame),
		Sequence: seq,
		PostTick: postTickByte != 0,
		Entities: make([]EntityRecord, entityCount),
		Strings:  make(map[InternDomain][]string),
	}

	for i := range snap.Entities {
		id, err := readU32(r)
		if err != nil {
			return nil, errProtocol("DecodeSnapshot", "truncated entity id")
		}
		typeIdx, err := readU16(r)
		if err != nil {
			return nil, errProtocol("DecodeSnapshot", "truncated type index")
		}
		clientID, err := readI32(r)
		if err != nil {
			return nil, errProtocol("DecodeSnapshot", "truncated client id")
		}
		snap.Entities[i] = EntityRecord{ID: EntityID(id), TypeIndex: typeIdx, ClientIDInterned: clientID}
	}

	comps := reg.Components()
	snap.ColumnData = make([][][]uint32, len(comps))
	for ci, def := range comps {
		fields := def.Fields()
		snap.ColumnData[ci] = make([][]uint32, len(fields))
		for fi, f := range fields {
			buf := make([]uint32, entityCount)
			for i := range buf {
				v, err := readScalar(r, f.Type)
				if err != nil {
					return nil, errProtocol("DecodeSnapshot", "truncated column data")
				}
				buf[i] = v
			}
			snap.ColumnData[ci][fi] = buf
		}
	}

	for _, domain := range domainOrder {
		n, err := readU16(r)
		if err != nil {
			return nil, errProtocol("DecodeSnapshot", "truncated string table count")
		}
		strs := make([]string, n)
		for i := uint16(0); i < n; i++ {
			length, err := readU16(r)
			if err != nil {
				return nil, errProtocol("DecodeSnapshot", "truncated string length")
			}
			raw := make([]byte, length)
			if _, err := io.ReadFull(r, raw); err != nil {
				return nil, errProtocol("DecodeSnapshot", "truncated string bytes")
			}
			id, err := readU32(r)
			if err != nil {
				return nil, errProtocol("DecodeSnapshot", "truncated string id")
			}
			if int(id) < len(strs) {
				strs[id] = string(raw)
			}
		}
		snap.Strings[domain] = strs
	}

	s0, err := readU32(r)
	if err != nil {
		return nil, errProtocol("DecodeSnapshot", "truncated rng s0")
	}
	s1, err := readU32(r)
	if err != nil {
		return nil, errProtocol("DecodeSnapshot", "truncated rng s1")
	}
	snap.RNG.S0, snap.RNG.S1 = s0, s1

	nextIndex, err := readU32(r)
	if err != nil {
		return nil, errProtocol("DecodeSnapshot", "truncated allocator next_index")
	}
	freeCount, err := readU32(r)
	if err != nil {
		return nil, errProtocol("DecodeSnapshot", "truncated allocator free_count")
	}
	freeList := make([]uint32, freeCount)
	for i := range freeList {
		v, err := readU32(r)
		if err != nil {
			return nil, errProtocol("DecodeSnapshot", "truncated allocator free list")
		}
		freeList[i] = v
	}
	genCount, err := readU16(r)
	if err != nil {
		return nil, errProtocol("DecodeSnapshot", "truncated allocator gen_count")
	}
	gens := make([]uint16, genCount)
	for i := range gens {
		v, err := readU16(r)
		if err != nil {
			return nil, errProtocol("DecodeSnapshot", "truncated allocator generations")
		}
		gens[i] = v
	}
	snap.Allocator = allocatorState{NextIndex: nextIndex, FreeList: freeList, Generations: gens}

	return snap, nil
}

func boolByte(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}

func writeScalar(buf *bytes.Buffer, typ ScalarType, raw uint32) {
	switch typ.ByteWidth() {
	case 1:
		writeU8(buf, uint8(raw))
	case 2:
		writeU16(buf, uint16(raw))
	default:
		writeU32(buf, raw)
	}
}

func readScalar(r *bytes.Reader, typ ScalarType) (uint32, error) {
	switch typ.ByteWidth() {
	case 1:
		v, err := readU8(r)
		return uint32(v), err
	case 2:
		v, err := readU16(r)
		return uint32(v), err
	default:
		return readU32(r)
	}
}

func writeI8(buf *bytes.Buffer, v int8)  { buf.WriteByte(byte(v)) }
func writeU8(buf *bytes.Buffer, v uint8) { buf.WriteByte(v) }
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

func readI8(r *bytes.Reader) (int8, error) {
	b, err := r.ReadByte()
	return int8(b), err
}
func readU8(r *bytes.Reader) (uint8, error) {
	return r.ReadByte()
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
