// Package rng implements the deterministic, serializable PRNG every
// participant advances in lockstep. It must never be replaced by a
// host-provided random source inside simulation code: two participants
// seeded identically and driven by the same number of calls produce the
// same stream, which is the entire point.
package rng

import "driftlock/engine/fixed"

// State is the full PRNG state: two 32-bit words. It is part of every
// snapshot.
type State struct {
	S0 uint32
	S1 uint32
}

// New seeds a PRNG from a 64-bit seed, splitting it into two non-zero
// words so the xorshift step never degenerates to an all-zero state.
func New(seed uint64) *State {
	s0 := uint32(seed)
	s1 := uint32(seed >> 32)
	if s0 == 0 && s1 == 0 {
		s0 = 0x9e3779b9
		s1 = 0x85ebca6b
	}
	if s0 == 0 {
		s0 = 1
	}
	if s1 == 0 {
		s1 = 1
	}
	return &State{S0: s0, S1: s1}
}

// Uint32 advances the stream one step (xorshift128-style, two-word variant)
// and returns the next 32-bit output.
func (s *State) Uint32() uint32 {
	x := s.S0
	y := s.S1
	s.S0 = y
	x ^= x << 23
	x ^= x >> 17
	x ^= y ^ (y >> 26)
	s.S1 = x
	return x + y
}

// Float returns a fixed-point fraction in [0,1) built entirely from integer
// operations: the top 16 bits of the next Uint32 become the fractional
// bits of a Q16.16 value.
func (s *State) Float() fixed.Q {
	v := s.Uint32()
	return fixed.Q(v >> 16)
}

// IntRange returns an integer in [lo, hi) using the integer-only
// construction above; hi must be greater than lo.
func (s *State) IntRange(lo, hi int32) int32 {
	span := uint32(hi - lo)
	if span == 0 {
		return lo
	}
	return lo + int32(s.Uint32()%span)
}

// Save returns a copy of the current state for embedding in a snapshot.
func (s *State) Save() State {
	return State{S0: s.S0, S1: s.S1}
}

// Load restores the state verbatim, e.g. from a loaded snapshot.
func (s *State) Load(saved State) {
	s.S0 = saved.S0
	s.S1 = saved.S1
}
