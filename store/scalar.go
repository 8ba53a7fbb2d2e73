package store

import "math"

// ScalarType enumerates the fixed set of field types.
type ScalarType uint8

const (
	ScalarI8 ScalarType = iota
	ScalarI16
	ScalarI32 // also used for fixed-point Q16.16 values
	ScalarU8
	ScalarU16
	ScalarU32
	ScalarF32
)

// ByteWidth returns the wire width of the scalar type
func (s ScalarType) ByteWidth() int {
	switch s {
	case ScalarI8, ScalarU8:
		return 1
	case ScalarI16, ScalarU16:
		return 2
	default:
		return 4
	}
}

func (s ScalarType) String() string {
	switch s {
	case ScalarI8:
		return "i8"
	case ScalarI16:
		return "i16"
	case ScalarI32:
		return "i32"
	case ScalarU8:
		return "u8"
	case ScalarU16:
		return "u16"
	case ScalarU32:
		return "u32"
	case ScalarF32:
		return "f32"
	default:
		return "unknown"
	}
}

// Value is a raw scalar field value. It is stored internally as its
// canonical 32-bit bit pattern so a single column type can back every
// scalar type; Raw exposes that pattern. Wire serialization narrows it to
// the declared width, while the state hash folds the full 32-bit pattern.
type Value struct {
	typ ScalarType
	raw uint32
}

// I8/I16/I32/U8/U16/U32/F32 construct a typed Value.
func I8(v int8) Value     { return Value{typ: ScalarI8, raw: uint32(uint8(v))} }
func I16(v int16) Value   { return Value{typ: ScalarI16, raw: uint32(uint16(v))} }
func I32(v int32) Value   { return Value{typ: ScalarI32, raw: uint32(v)} }
func U8(v uint8) Value    { return Value{typ: ScalarU8, raw: uint32(v)} }
func U16(v uint16) Value  { return Value{typ: ScalarU16, raw: uint32(v)} }
func U32(v uint32) Value  { return Value{typ: ScalarU32, raw: v} }
func F32(v float32) Value { return Value{typ: ScalarF32, raw: math.Float32bits(v)} }

// F32FromBits constructs an F32 Value directly from its raw bit pattern,
// for callers (e.g. syncengine's diagnostics) that already hold a column's
// stored uint32 and know it is declared ScalarF32.
func F32FromBits(raw uint32) Value { return Value{typ: ScalarF32, raw: raw} }

// Type reports the value's declared scalar type.
func (v Value) Type() ScalarType { return v.typ }

// Raw returns the canonical 32-bit bit pattern stored for this value.
func (v Value) Raw() uint32 { return v.raw }

// AsI8/AsI16/AsI32/AsU8/AsU16/AsU32/AsF32 narrow the raw bit pattern to the
// requested width, regardless of the value's declared type; callers use
// the accessor matching the field's declared ScalarType.
func (v Value) AsI8() int8     { return int8(uint8(v.raw)) }
func (v Value) AsI16() int16   { return int16(uint16(v.raw)) }
func (v Value) AsI32() int32   { return int32(v.raw) }
func (v Value) AsU8() uint8    { return uint8(v.raw) }
func (v Value) AsU16() uint16  { return uint16(v.raw) }
func (v Value) AsU32() uint32  { return v.raw }
func (v Value) AsF32() float32 { return math.Float32frombits(v.raw) }

func zeroValue(t ScalarType) Value {
	return Value{typ: t, raw: 0}
}
