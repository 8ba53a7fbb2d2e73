// Package inputhist implements a ring buffer of per-frame, per-client
// input records: it distinguishes CONFIRMED from PREDICTED entries and
// supports the repeat-last or idle prediction strategies.
package inputhist

import (
	"sort"

	"driftlock/engine/store"
)

// PredictionStrategy selects how a missing input slot is filled.
type PredictionStrategy int

const (
	// StrategyIdle fills a missing slot with an empty ActionSet.
	StrategyIdle PredictionStrategy = iota
	// StrategyRepeatLast fills a missing slot with the client's
	// last-known data, or empty if there is none yet.
	StrategyRepeatLast
)

// entry is one client's input for one frame.
type entry struct {
	data      store.ActionSet
	confirmed bool
}

// slot is one ring-buffer bucket.
type slot struct {
	frame          uint64
	valid          bool
	entries        map[store.ClientID]entry
	fullyConfirmed bool
}

// History is the ring buffer. Capacity is fixed at
// construction (a power of two, default 128) and never
// reallocated on the hot path.
type History struct {
	capacity    uint64
	slots       []slot
	localClient store.ClientID
	hasLocal    bool
	active      map[store.ClientID]bool
	lastKnown   map[store.ClientID]store.ActionSet
	oldestFrame uint64
	strategy    PredictionStrategy
}

// New constructs a ring buffer with the given capacity (must be a power of
// two; callers pass session.Config's default of 128 unless overridden).
func New(capacity uint64, strategy PredictionStrategy) *History {
	if capacity == 0 || capacity&(capacity-1) != 0 {
		panic("inputhist: capacity must be a power of two")
	}
	h := &History{
		capacity:  capacity,
		slots:     make([]slot, capacity),
		active:    make(map[store.ClientID]bool),
		lastKnown: make(map[store.ClientID]store.ActionSet),
		strategy:  strategy,
	}
	return h
}

func (h *History) slotIndex(frame uint64) uint64 {
	return frame % h.capacity
}

// SetLocalClient designates the local participant's client id and adds it
// to the active set.
func (h *History) SetLocalClient(id store.ClientID) {
	h.localClient = id
	h.hasLocal = true
	h.active[id] = true
}

// AddClient adds a client to the active set.
func (h *History) AddClient(id store.ClientID) {
	h.active[id] = true
}

// RemoveClient removes a client from the active set. Its last-known
// record is dropped too.
func (h *History) RemoveClient(id store.ClientID) {
	delete(h.active, id)
	delete(h.lastKnown, id)
}

// ActiveClients returns the active-client set in lexicographic order.
func (h *History) ActiveClients() []store.ClientID {
	out := make([]store.ClientID, 0, len(h.active))
	for c := range h.active {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// resident returns the slot for frame, allocating/evicting as needed. A
// write at frame f overwrites any resident slot whose stored frame != f
// (B1: this evicts frame f-capacity if it was still resident).
func (h *History) resident(frame uint64) *slot {
	idx := h.slotIndex(frame)
	s := &h.slots[idx]
	if !s.valid || s.frame != frame {
		*s = slot{frame: frame, valid: true, entries: make(map[store.ClientID]entry)}
	}
	return s
}

// StoreLocal writes a CONFIRMED input and updates the client's last-known
// record.
func (h *History) StoreLocal(frame uint64, client store.ClientID, data store.ActionSet) {
	s := h.resident(frame)
	s.entries[client] = entry{data: data.Clone(), confirmed: true}
	h.lastKnown[client] = data.Clone()
	h.recomputeFullyConfirmed(s)
}

// StorePredicted writes a PREDICTED input iff no CONFIRMED input exists
// for that slot already (I4: a prediction never overwrites a confirmation).
func (h *History) StorePredicted(frame uint64, client store.ClientID, data store.ActionSet) {
	s := h.resident(frame)
	if e, ok := s.entries[client]; ok && e.confirmed {
		return
	}
	s.entries[client] = entry{data: data.Clone(), confirmed: false}
	h.recomputeFullyConfirmed(s)
}

// Confirm reconciles a relay-confirmed input against whatever was stored.
// If no prior entry exists it stores data as CONFIRMED and returns false.
// If the prior entry was already CONFIRMED it is left as is and Confirm
// returns false (I4). Otherwise it marks the slot CONFIRMED with the new
// data and returns true iff the data differed from what was predicted (a
// misprediction, R2).
func (h *History) Confirm(frame uint64, client store.ClientID, data store.ActionSet) bool {
	s := h.resident(frame)
	prior, existed := s.entries[client]
	if !existed {
		s.entries[client] = entry{data: data.Clone(), confirmed: true}
		h.lastKnown[client] = data.Clone()
		h.recomputeFullyConfirmed(s)
		return false
	}
	if prior.confirmed {
		return false
	}
	mispredicted := !prior.data.Equal(data)
	s.entries[client] = entry{data: data.Clone(), confirmed: true}
	h.lastKnown[client] = data.Clone()
	h.recomputeFullyConfirmed(s)
	return mispredicted
}

// GetFrameInputs returns, for every active client, its stored entry if
// present, else the prediction strategy's fallback.
func (h *History) GetFrameInputs(frame uint64) map[store.ClientID]store.ActionSet {
	out := make(map[store.ClientID]store.ActionSet)
	idx := h.slotIndex(frame)
	s := &h.slots[idx]
	hasSlot := s.valid && s.frame == frame
	for _, client := range h.ActiveClients() {
		if hasSlot {
			if e, ok := s.entries[client]; ok {
				out[client] = e.data.Clone()
				continue
			}
		}
		out[client] = h.predictFor(client)
	}
	return out
}

// GetPredictedInput returns a single client's value for frame, via the
// same resolution GetFrameInputs uses.
func (h *History) GetPredictedInput(frame uint64, client store.ClientID) store.ActionSet {
	idx := h.slotIndex(frame)
	s := &h.slots[idx]
	if s.valid && s.frame == frame {
		if e, ok := s.entries[client]; ok {
			return e.data.Clone()
		}
	}
	return h.predictFor(client)
}

func (h *History) predictFor(client store.ClientID) store.ActionSet {
	switch h.strategy {
	case StrategyRepeatLast:
		if last, ok := h.lastKnown[client]; ok {
			return last.Clone()
		}
		return store.ActionSet{}
	default:
		return store.ActionSet{}
	}
}

func (h *History) recomputeFullyConfirmed(s *slot) {
	for _, client := range h.ActiveClients() {
		e, ok := s.entries[client]
		if !ok || !e.confirmed {
			s.fullyConfirmed = false
			return
		}
	}
	s.fullyConfirmed = true
}

// MarkFrameConfirmed forces a frame's fully-confirmed flag.
func (h *History) MarkFrameConfirmed(frame uint64) {
	s := h.resident(frame)
	s.fullyConfirmed = true
}

// IsFrameConfirmed reports whether frame is confirmed: either the explicit
// flag is set, or every present entry is CONFIRMED.
func (h *History) IsFrameConfirmed(frame uint64) bool {
	idx := h.slotIndex(frame)
	s := &h.slots[idx]
	if !s.valid || s.frame != frame {
		return false
	}
	if s.fullyConfirmed {
		return true
	}
	for _, e := range s.entries {
		if !e.confirmed {
			return false
		}
	}
	return true
}

// ClearOld drops all slots strictly older than frame and monotonically
// advances oldestFrame (B2: never regresses).
func (h *History) ClearOld(frame uint64) {
	if frame <= h.oldestFrame {
		return
	}
	for f := h.oldestFrame; f < frame; f++ {
		idx := h.slotIndex(f)
		s := &h.slots[idx]
		if s.valid && s.frame == f {
			*s = slot{}
		}
	}
	h.oldestFrame = frame
}

// OldestFrame returns the lowest frame ClearOld will not have evicted.
func (h *History) OldestFrame() uint64 {
	return h.oldestFrame
}

// OldestUnconfirmed returns the lowest live frame with any non-confirmed
// entry. Frames are unsigned, so "none" is reported as (0, false) rather
// than -1.
func (h *History) OldestUnconfirmed() (uint64, bool) {
	type candidate struct {
		frame uint64
	}
	var found []candidate
	for i := range h.slots {
		s := &h.slots[i]
		if !s.valid || s.frame < h.oldestFrame {
			continue
		}
		if s.fullyConfirmed {
			continue
		}
		hasUnconfirmed := false
		for _, e := range s.entries {
			if !e.confirmed {
				hasUnconfirmed = true
				break
			}
		}
		if hasUnconfirmed {
			found = append(found, candidate{frame: s.frame})
		}
	}
	if len(found) == 0 {
		return 0, false
	}
	lowest := found[0].frame
	for _, c := range found[1:] {
		if c.frame < lowest {
			lowest = c.frame
		}
	}
	return lowest, true
}

// Reset clears all state and re-adds the local client (if one was set) to
// the active set.
func (h *History) Reset() {
	h.slots = make([]slot, h.capacity)
	h.active = make(map[store.ClientID]bool)
	h.lastKnown = make(map[store.ClientID]store.ActionSet)
	h.oldestFrame = 0
	if h.hasLocal {
		h.active[h.localClient] = true
	}
}

// Capacity returns the ring's fixed capacity.
func (h *History) Capacity() uint64 { return h.capacity }
