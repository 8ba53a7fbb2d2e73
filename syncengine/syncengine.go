// Package syncengine implements the state-sync engine: a per-tick hash
// exchange, a rolling pass-percentage, a desync state machine, and the
// diagnostics a desync produces. It never runs the simulation itself;
// it observes STORE's state hashes from the outside, the way a resync
// policy watches lost-spawn events without owning the simulation loop.
package syncengine

import (
	"sort"

	"driftlock/engine/hash"
	"driftlock/engine/logging"
	"driftlock/engine/store"
)

// State is one node of the desync state machine.
type State int

const (
	StateInitial State = iota
	StateActive
	StateDrift
	StateDesync
	StateResyncing
)

func (s State) String() string {
	switch s {
	case StateInitial:
		return "Initial"
	case StateActive:
		return "Active"
	case StateDrift:
		return "Drift"
	case StateDesync:
		return "Desync"
	case StateResyncing:
		return "Resyncing"
	default:
		return "Unknown"
	}
}

// Config are the tunables governing the drift→desync escalation.
type Config struct {
	// ConsecutiveMismatchThreshold is M: the number of consecutive
	// mismatches that escalates DRIFT to DESYNC. Every reported frame
	// counts; the engine does not track which frames are confirmed. A
	// small value such as 3 works well in practice.
	ConsecutiveMismatchThreshold int
	// MismatchFractionThreshold escalates DRIFT to DESYNC when the most
	// recent diagnostic diff's fraction of changed (component, field)
	// pairs exceeds this value, independent of the consecutive count.
	MismatchFractionThreshold float64
	// HashWindow is the rolling pass-percentage window size.
	HashWindow int
	// InputHistoryDumpDepth is carried in the config for callers; Engine
	// does not read it. Diagnose stores whatever recentInputs the caller
	// passes, without trimming them.
	InputHistoryDumpDepth int
	Logger                *logging.Router
}

// DefaultConfig matches suggested defaults.
func DefaultConfig() Config {
	return Config{
		ConsecutiveMismatchThreshold: 3,
		MismatchFractionThreshold:    0.1,
		HashWindow:                   120,
		InputHistoryDumpDepth:        8,
	}
}

// FieldDiff is one (component, field) divergence produced by Diagnose.
type FieldDiff struct {
	Entity          store.EntityID
	Component       string
	Field           string
	LocalValue      store.Value
	AuthorityValue  store.Value
	LocalAbsent     bool
	AuthorityAbsent bool
}

// Diagnostics is the structured, diagnostics-only report that Diagnose
// builds. Entering DESYNC does not build one; the caller calls Diagnose.
type Diagnostics struct {
	Frame      uint64
	FieldDiffs []FieldDiff
	// RecentInputs is the last K records dumped from INPUT-HIST, in the
	// caller-supplied shape (syncengine does not depend on inputhist to
	// avoid a cyclic dependency with predict).
	RecentInputs []InputRecord
}

// InputRecord is one input-history entry captured into Diagnostics.
type InputRecord struct {
	Frame  uint64
	Client store.ClientID
	Data   store.ActionSet
}

// Stats are the read-only probes get_sync_stats/get_drift_stats expose.
type Stats struct {
	State               State
	PassPercentage      float64
	ConsecutiveMismatch int
	MismatchCount       uint64
	MatchCount          uint64
}

// Engine tracks hash consensus and the desync state machine for one
// participant.
type Engine struct {
	cfg   Config
	state State

	window       []bool // true = match, ring of size cfg.HashWindow
	windowFilled int
	windowPos    int

	consecutiveMismatch int
	mismatchCount       uint64
	matchCount          uint64

	lastFraction float64
	lastDiag     *Diagnostics

	localClientID store.ClientID
	activeClients map[store.ClientID]bool

	logger *logging.Router
}

// New constructs an Engine for the given local client id.
func New(localClientID store.ClientID, cfg Config) *Engine {
	if cfg.HashWindow <= 0 {
		cfg.HashWindow = 120
	}
	return &Engine{
		cfg:           cfg,
		state:         StateInitial,
		window:        make([]bool, cfg.HashWindow),
		localClientID: localClientID,
		activeClients: make(map[store.ClientID]bool),
		logger:        cfg.Logger,
	}
}

// SetActiveClients installs the current active-client set, used to derive
// the authority.
func (e *Engine) SetActiveClients(clients []store.ClientID) {
	e.activeClients = make(map[store.ClientID]bool, len(clients))
	for _, c := range clients {
		e.activeClients[c] = true
	}
}

// Authority returns the participant with the lowest-sorted client id
// still in the active set. ok is false if the set is empty.
func (e *Engine) Authority() (store.ClientID, bool) {
	if len(e.activeClients) == 0 {
		return "", false
	}
	ids := make([]store.ClientID, 0, len(e.activeClients))
	for c := range e.activeClients {
		ids = append(ids, c)
	}
	sort.Strings(ids)
	return ids[0], true
}

// IsAuthority reports whether the local client is the current authority.
func (e *Engine) IsAuthority() bool {
	auth, ok := e.Authority()
	return ok && auth == e.localClientID
}

// State returns the current desync state.
func (e *Engine) State() State { return e.state }

// ReportLocalHash computes and returns the local state hash for upload to
// the relay; the caller is responsible for the actual wire send.
func (e *Engine) ReportLocalHash(w *store.World) hash.Hash32 {
	return w.GetStateHash()
}

// ReceiveMajorityHash compares the relay-reported majority hash for frame
// against the local hash observed at that same frame and advances the
// desync state machine.
func (e *Engine) ReceiveMajorityHash(frame uint64, localHash, majorityHash hash.Hash32) {
	match := localHash == majorityHash
	e.recordWindow(match)

	if match {
		e.matchCount++
		e.consecutiveMismatch = 0
		if e.state == StateInitial {
			e.state = StateActive
		} else if e.state == StateResyncing {
			e.state = StateActive
		}
		return
	}

	e.mismatchCount++
	e.consecutiveMismatch++

	if e.state == StateActive {
		e.state = StateDrift
		e.logger.Log(logging.SeverityWarn, logging.CategorySyncEngine, "entered drift", map[string]any{
			"frame":         frame,
			"local_hash":    localHash,
			"majority_hash": majorityHash,
		})
	}
	// The escalation check also runs on the mismatch that entered DRIFT, so
	// a threshold of 1 reaches DESYNC on the first mismatch.
	if e.state == StateDrift && (e.consecutiveMismatch >= e.cfg.ConsecutiveMismatchThreshold ||
		e.lastFraction > e.cfg.MismatchFractionThreshold) {
		e.state = StateDesync
		e.logger.Log(logging.SeverityError, logging.CategorySyncEngine, "entered desync", map[string]any{
			"frame":         frame,
			"local_hash":    localHash,
			"majority_hash": majorityHash,
		})
	}
}

func (e *Engine) recordWindow(match bool) {
	e.window[e.windowPos] = match
	e.windowPos = (e.windowPos + 1) % len(e.window)
	if e.windowFilled < len(e.window) {
		e.windowFilled++
	}
}

// PassPercentage reports the match fraction over the rolling window.
func (e *Engine) PassPercentage() float64 {
	if e.windowFilled == 0 {
		return 0
	}
	passes := 0
	for i := 0; i < e.windowFilled; i++ {
		if e.window[i] {
			passes++
		}
	}
	return float64(passes) / float64(e.windowFilled)
}

// Stats returns the engine's read-only sync/drift statistics.
func (e *Engine) Stats() Stats {
	return Stats{
		State:               e.state,
		PassPercentage:      e.PassPercentage(),
		ConsecutiveMismatch: e.consecutiveMismatch,
		MismatchCount:       e.mismatchCount,
		MatchCount:          e.matchCount,
	}
}

// Diagnose builds the field-level diff between local and authority
// snapshots at the point of divergence, and records the mismatch fraction
// used by the DRIFT→DESYNC fraction-threshold rule.
func (e *Engine) Diagnose(frame uint64, reg *store.Registry, local, authority *store.Snapshot, recentInputs []InputRecord) *Diagnostics {
	diffs := diffSnapshots(reg, local, authority)

	total := 0
	for _, def := range reg.Components() {
		total += len(def.Fields())
	}
	maxEntities := len(local.Entities)
	if len(authority.Entities) > maxEntities {
		maxEntities = len(authority.Entities)
	}
	if total > 0 && maxEntities > 0 {
		e.lastFraction = float64(len(diffs)) / float64(total*maxEntities)
	} else {
		e.lastFraction = 0
	}

	diag := &Diagnostics{Frame: frame, FieldDiffs: diffs, RecentInputs: recentInputs}
	e.lastDiag = diag
	return diag
}

// LastDiagnostics returns the most recent Diagnose result, or nil.
func (e *Engine) LastDiagnostics() *Diagnostics { return e.lastDiag }

// RequestResync transitions DESYNC → RESYNCING. It is a
// no-op (returns false) unless the engine is currently in DESYNC.
func (e *Engine) RequestResync() bool {
	if e.state != StateDesync {
		return false
	}
	e.state = StateResyncing
	return true
}

// ResyncTimeout is the hook for a resync that timed out. It changes
// nothing and returns nothing: the engine stays in RESYNCING, and the
// caller decides the retry/backoff timing and re-sends its request.
func (e *Engine) ResyncTimeout() {
	// Remaining in RESYNCING lets the caller re-issue RequestResync's
	// out-of-band message; nothing to mutate here beyond caller-visible
	// state, which is already RESYNCING.
}

func diffSnapshots(reg *store.Registry, local, authority *store.Snapshot) []FieldDiff {
	localByID := make(map[store.EntityID]int, len(local.Entities))
	for i, rec := range local.Entities {
		localByID[rec.ID] = i
	}
	authByID := make(map[store.EntityID]int, len(authority.Entities))
	for i, rec := range authority.Entities {
		authByID[rec.ID] = i
	}

	ids := make(map[store.EntityID]bool)
	for id := range localByID {
		ids[id] = true
	}
	for id := range authByID {
		ids[id] = true
	}
	sorted := make([]store.EntityID, 0, len(ids))
	for id := range ids {
		sorted = append(sorted, id)
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	var diffs []FieldDiff
	comps := reg.Components()
	for _, id := range sorted {
		li, lok := localByID[id]
		ai, aok := authByID[id]

		if !lok || !aok {
			diffs = append(diffs, FieldDiff{
				Entity:          id,
				LocalAbsent:     !lok,
				AuthorityAbsent: !aok,
			})
			continue
		}

		for ci, def := range comps {
			for fi, f := range def.Fields() {
				lv := local.ColumnData[ci][fi][li]
				av := authority.ColumnData[ci][fi][ai]
				if lv != av {
					diffs = append(diffs, FieldDiff{
						Entity:         id,
						Component:      def.Name,
						Field:          f.Name,
						LocalValue:     rawToValue(f.Type, lv),
						AuthorityValue: rawToValue(f.Type, av),
					})
				}
			}
		}
	}
	return diffs
}

func rawToValue(typ store.ScalarType, raw uint32) store.Value {
	switch typ {
	case store.ScalarI8:
		return store.I8(int8(raw))
	case store.ScalarI16:
		return store.I16(int16(raw))
	case store.ScalarU8:
		return store.U8(uint8(raw))
	case store.ScalarU16:
		return store.U16(uint16(raw))
	case store.ScalarU32:
		return store.U32(raw)
	case store.ScalarF32:
		return store.F32FromBits(raw)
	default:
		return store.I32(int32(raw))
	}
}
