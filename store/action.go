package store

import (
	"sort"

	"driftlock/engine/fixed"
)

// ActionKind distinguishes the three shapes an input value can take: a
// scalar, a 2D vector, or a button.
type ActionKind uint8

const (
	ActionScalar ActionKind = iota
	ActionVector
	ActionButton
)

// ActionID is the compact integer id a game's action is assigned at
// registration, replacing free-form string-keyed input data with a
// fixed, registered schema.
type ActionID uint16

// ActionDef describes one registered action.
type ActionDef struct {
	Name string
	Kind ActionKind
	id   ActionID
}

// ActionValue holds the value for one action slot. Only the fields
// matching Kind are meaningful.
type ActionValue struct {
	Kind    ActionKind
	Scalar  fixed.Q
	VecX    fixed.Q
	VecY    fixed.Q
	Pressed bool
}

// ActionSet is one client's full input for a frame: a packed record keyed
// by compact ActionID, not by string.
type ActionSet map[ActionID]ActionValue

// Clone returns a deep copy of the set.
func (a ActionSet) Clone() ActionSet {
	if a == nil {
		return nil
	}
	out := make(ActionSet, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}

// Equal reports shallow equality: same key set, per-key ==. ActionValue
// has no pointer/slice fields so == is both shallow and correct here.
func (a ActionSet) Equal(b ActionSet) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		bv, ok := b[k]
		if !ok || bv != v {
			return false
		}
	}
	return true
}

// RegisterActionSchema registers a named action independent of entity and
// component registration and returns its compact id.
func (r *Registry) RegisterActionSchema(name string, kind ActionKind) ActionID {
	if id, exists := r.actionIndex[name]; exists {
		return id
	}
	id := ActionID(len(r.actions))
	r.actions = append(r.actions, ActionDef{Name: name, Kind: kind, id: id})
	r.actionIndex[name] = id
	return id
}

// ActionIDByName looks up a previously registered action's compact id.
func (r *Registry) ActionIDByName(name string) (ActionID, bool) {
	id, ok := r.actionIndex[name]
	return id, ok
}

// Actions returns every registered action in registration order.
func (r *Registry) Actions() []ActionDef {
	return r.actions
}

// ClientID is the canonical participant identifier. Inputs must be
// applied in ascending lexicographic order of the client-id string, not
// the interned integer, so ClientID stays a plain string throughout
// inputhist/predict/session; only store's per-entity Player-type field
// interns it for wire compactness.
type ClientID = string

// InputState is the per-client map of action values populated at the
// start of each tick from the frame's confirmed or predicted inputs.
type InputState map[ClientID]ActionSet

// SortedClientIDs returns inputs's keys sorted lexicographically. Any
// system that iterates an entire InputState, rather than indexing a
// single known client, must do so via this ordering: Go map iteration
// order carries no guarantee and would break determinism across
// participants.
func SortedClientIDs(inputs InputState) []ClientID {
	out := make([]ClientID, 0, len(inputs))
	for c := range inputs {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}
