// Package predict implements client-side prediction and rollback: it
// advances the local simulation ahead of relay confirmation, reconciles
// confirmed inputs as they arrive, and resimulates from the last confirmed
// snapshot when a misprediction is detected. The time-sync estimator lives
// alongside it in timesync.go.
package predict

import (
	"driftlock/engine/engineerr"
	"driftlock/engine/inputhist"
	"driftlock/engine/logging"
	"driftlock/engine/store"
)

// World is the subset of store.World's surface predict depends on. A real
// session wires in a *store.World; tests substitute a fake.
type World interface {
	Tick(frame uint64, inputs store.InputState) error
	GetSparseSnapshot(postTick bool) *store.Snapshot
	LoadSparseSnapshot(snap *store.Snapshot) error
}

// LifecycleKind distinguishes a client join from a client leave.
type LifecycleKind int

const (
	LifecycleJoin LifecycleKind = iota
	LifecycleLeave
)

// LifecycleEvent is a join/leave notification carried inside a server
// tick, recorded for out-of-band delivery and possible rollback replay.
type LifecycleEvent struct {
	Frame  uint64
	Client store.ClientID
	Kind   LifecycleKind
}

// ServerInputKind distinguishes a lifecycle event from an ordinary game
// input inside a server tick payload.
type ServerInputKind int

const (
	ServerInputGame ServerInputKind = iota
	ServerInputJoin
	ServerInputLeave
)

// ServerInput is one client's payload within a server tick.
type ServerInput struct {
	Kind ServerInputKind
	Data store.ActionSet
}

// Callbacks are the out-of-band hooks execute_rollback and
// receive_server_tick invoke. Every field is optional; a nil
// callback is simply skipped.
type Callbacks struct {
	// OnLifecycleDeliver fires immediately when a lifecycle event arrives
	// for a frame not yet simulated, so the session can add/remove active
	// clients without waiting for that frame to run.
	OnLifecycleDeliver func(ev LifecycleEvent)
	// OnLifecycleUndo fires during rollback, in reverse frame order, for
	// every lifecycle event between the rollback target and local_frame.
	OnLifecycleUndo func(ev LifecycleEvent)
	// OnLifecycleReplay fires during resimulation, in forward order, right
	// before the frame carrying that event is re-ticked.
	OnLifecycleReplay func(ev LifecycleEvent)
	// OnFrameResimulated fires after each re-ticked frame during rollback;
	// syncengine uses this to rebuild its per-frame hash history.
	OnFrameResimulated func(frame uint64)
}

// Config are the tunables.
type Config struct {
	InputDelayFrames    uint64
	MaxPredictionFrames uint64
	Strategy            inputhist.PredictionStrategy
	HistoryCapacity     uint64 // must be a power of two; 0 defaults to 128
	// Resolver reports whether client is currently known to the world.
	// ReceiveServerTick calls it for every game input and rejects the
	// tick if it reports false. Required once any non-lifecycle server
	// input arrives; its absence then is a programmer error.
	Resolver func(client store.ClientID) bool
	Logger   *logging.Router
}

// Stats are the rollback counters.
type Stats struct {
	RollbackCount     uint64
	MaxRollbackDepth  uint64
	FramesResimulated uint64
}

// Manager owns INPUT-HIST, a frame-keyed map of STORE snapshots (pruned
// below the confirmed frame each time a new one is saved), the local
// and confirmed frame counters, and the rollback machinery: restoring a
// past snapshot and resimulating forward to the local frame.
type Manager struct {
	world World
	hist  *inputhist.History
	cb    Callbacks
	cfg   Config

	enabled bool

	localFrame     uint64
	confirmedFrame uint64

	snapshots           map[uint64]*store.Snapshot
	oldestSnapshotFrame uint64
	haveOldest          bool

	pendingLifecycle map[uint64][]LifecycleEvent

	stats Stats

	logger *logging.Router
}

// New constructs a Manager. It starts disabled; callers enable it once the
// world has reached its initial frame.
func New(world World, cfg Config) *Manager {
	capacity := cfg.HistoryCapacity
	if capacity == 0 {
		capacity = 128
	}
	return &Manager{
		world:            world,
		hist:             inputhist.New(capacity, cfg.Strategy),
		cfg:              cfg,
		snapshots:        make(map[uint64]*store.Snapshot),
		pendingLifecycle: make(map[uint64][]LifecycleEvent),
		logger:           cfg.Logger,
	}
}

// SetCallbacks installs the out-of-band hooks.
func (m *Manager) SetCallbacks(cb Callbacks) { m.cb = cb }

// Enable/Disable toggle prediction. While disabled, AdvanceFrame is a
// no-op and ReceiveServerTick always returns false without reconciling.
func (m *Manager) Enable()  { m.enabled = true }
func (m *Manager) Disable() { m.enabled = false }

// History exposes the underlying ring buffer for session wiring (e.g. to
// add/remove active clients).
func (m *Manager) History() *inputhist.History { return m.hist }

// LocalFrame/ConfirmedFrame/Stats are read-only probes.
func (m *Manager) LocalFrame() uint64     { return m.localFrame }
func (m *Manager) ConfirmedFrame() uint64 { return m.confirmedFrame }
func (m *Manager) Stats() Stats           { return m.stats }

// Initialize resets the manager to frame and clears all history; callers
// use this after loading a full resync snapshot.
func (m *Manager) Initialize(frame uint64) {
	m.localFrame = frame
	m.confirmedFrame = frame
	m.hist.Reset()
	m.snapshots = make(map[uint64]*store.Snapshot)
	m.pendingLifecycle = make(map[uint64][]LifecycleEvent)
	m.haveOldest = false
}

// QueueLocalInput stores the local participant's input as CONFIRMED at
// local_frame + input_delay_frames.
func (m *Manager) QueueLocalInput(client store.ClientID, data store.ActionSet) {
	target := m.localFrame + m.cfg.InputDelayFrames
	m.hist.StoreLocal(target, client, data)
}

// AdvanceFrame runs one local prediction step.
func (m *Manager) AdvanceFrame() error {
	if !m.enabled {
		return nil
	}
	if m.localFrame-m.confirmedFrame >= m.cfg.MaxPredictionFrames {
		return nil
	}

	m.saveSnapshot(m.localFrame)
	m.localFrame++

	inputs := m.frameInputsWithPredictions(m.localFrame)
	if err := m.world.Tick(m.localFrame, inputs); err != nil {
		return err
	}
	return nil
}

// frameInputsWithPredictions resolves frame's inputs from INPUT-HIST,
// writing PREDICTED entries back for any client missing a stored value.
func (m *Manager) frameInputsWithPredictions(frame uint64) store.InputState {
	raw := m.hist.GetFrameInputs(frame)
	out := make(store.InputState, len(raw))
	for client, data := range raw {
		m.hist.StorePredicted(frame, client, data)
		out[client] = data
	}
	return out
}

func (m *Manager) saveSnapshot(frame uint64) {
	m.snapshots[frame] = m.world.GetSparseSnapshot(false)
	if !m.haveOldest || frame < m.oldestSnapshotFrame {
		m.oldestSnapshotFrame = frame
		m.haveOldest = true
	}
	m.pruneSnapshotsOlderThan(m.confirmedFrame)
}

func (m *Manager) pruneSnapshotsOlderThan(frame uint64) {
	for f := range m.snapshots {
		if f < frame {
			delete(m.snapshots, f)
		}
	}
	m.recomputeOldestSnapshot()
}

func (m *Manager) recomputeOldestSnapshot() {
	m.haveOldest = false
	for f := range m.snapshots {
		if !m.haveOldest || f < m.oldestSnapshotFrame {
			m.oldestSnapshotFrame = f
			m.haveOldest = true
		}
	}
}

// ReceiveServerTick reconciles one relay-confirmed tick.
// It returns true iff a rollback was executed.
func (m *Manager) ReceiveServerTick(frame uint64, inputs map[store.ClientID]ServerInput) (bool, error) {
	if !m.enabled {
		return false, nil
	}

	var lifecycle []LifecycleEvent
	game := make(map[store.ClientID]store.ActionSet)
	for client, si := range inputs {
		switch si.Kind {
		case ServerInputJoin:
			lifecycle = append(lifecycle, LifecycleEvent{Frame: frame, Client: client, Kind: LifecycleJoin})
		case ServerInputLeave:
			lifecycle = append(lifecycle, LifecycleEvent{Frame: frame, Client: client, Kind: LifecycleLeave})
		default:
			game[client] = si.Data
		}
	}

	if frame > m.localFrame {
		for _, ev := range lifecycle {
			if m.cb.OnLifecycleDeliver != nil {
				m.cb.OnLifecycleDeliver(ev)
			}
			m.pendingLifecycle[frame] = append(m.pendingLifecycle[frame], ev)
		}
		return false, nil
	}

	if len(game) > 0 && m.cfg.Resolver == nil {
		return false, engineerr.New(engineerr.ProgrammerError, "predict.ReceiveServerTick",
			"game input requires a client-id resolver but none is configured")
	}

	needsRollback := false
	for client, data := range game {
		if !m.cfg.Resolver(client) {
			return false, engineerr.New(engineerr.ProtocolError, "predict.ReceiveServerTick",
				"game input for a client the world does not know about")
		}
		if mispredicted := m.hist.Confirm(frame, client, data); mispredicted {
			needsRollback = true
		}
	}
	for _, ev := range lifecycle {
		m.pendingLifecycle[frame] = append(m.pendingLifecycle[frame], ev)
		needsRollback = true
	}

	if frame > m.confirmedFrame {
		m.confirmedFrame = frame
	}

	if needsRollback {
		if frame == 0 {
			return false, engineerr.New(engineerr.ProgrammerError, "predict.ReceiveServerTick",
				"frame 0 can never be mispredicted: nothing was ever ticked ahead of it")
		}
		// snapshots are keyed by the post-Tick state of that frame (saved
		// during AdvanceFrame before the frame counter is incremented), so
		// the snapshot that predates frame's own tick is stored at
		// frame-1. Rolling back to frame-1 and resimulating from frame
		// forward re-runs frame itself with the now-corrected input.
		if err := m.ExecuteRollback(frame - 1); err != nil {
			return false, err
		}
		return true, nil
	}
	return false, nil
}

// ExecuteRollback restores the snapshot taken at toFrame and resimulates
// forward to local_frame.
func (m *Manager) ExecuteRollback(toFrame uint64) error {
	if m.haveOldest && toFrame < m.oldestSnapshotFrame {
		return engineerr.New(engineerr.ResourceExhausted, "predict.ExecuteRollback",
			"rollback target older than the oldest stored snapshot; request a full resync")
	}

	for f := m.localFrame; f > toFrame; f-- {
		for _, ev := range m.pendingLifecycle[f] {
			if m.cb.OnLifecycleUndo != nil {
				m.cb.OnLifecycleUndo(ev)
			}
		}
	}

	snap, ok := m.snapshots[toFrame]
	if !ok {
		return engineerr.New(engineerr.ResourceExhausted, "predict.ExecuteRollback",
			"no snapshot stored for rollback target frame")
	}
	if err := m.world.LoadSparseSnapshot(snap); err != nil {
		return err
	}

	depth := m.localFrame - toFrame
	from := m.localFrame

	for f := toFrame + 1; f <= from; f++ {
		for _, ev := range m.pendingLifecycle[f] {
			if m.cb.OnLifecycleReplay != nil {
				m.cb.OnLifecycleReplay(ev)
			}
		}
		inputs := m.frameInputsWithPredictions(f)
		if err := m.world.Tick(f, inputs); err != nil {
			return err
		}
		if f < from {
			// f is still speculative (older than local_frame), so its
			// snapshot must be refreshed to the corrected state or a
			// later rollback targeting f would restore the stale,
			// pre-correction snapshot saved on the original forward pass.
			m.snapshots[f] = m.world.GetSparseSnapshot(false)
		}
		if m.cb.OnFrameResimulated != nil {
			m.cb.OnFrameResimulated(f)
		}
	}

	m.stats.RollbackCount++
	if depth > m.stats.MaxRollbackDepth {
		m.stats.MaxRollbackDepth = depth
	}
	m.stats.FramesResimulated += depth

	m.logger.Log(logging.SeverityInfo, logging.CategoryPredict, "rollback executed", map[string]any{
		"to_frame": toFrame,
		"depth":    depth,
	})

	return nil
}
