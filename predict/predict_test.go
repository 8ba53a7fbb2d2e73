package predict

import (
	"sort"
	"testing"

	"driftlock/engine/fixed"
	"driftlock/engine/inputhist"
	"driftlock/engine/store"
)

// trackingWorld is a fake World that accumulates each client's scalar
// action value into a running position, used to assert that a
// rollback-and-resimulate run reproduces exactly the state a from-scratch
// run driven by the same confirmed input history would reach.
type trackingWorld struct {
	pos map[store.ClientID]int32
}

func newTrackingWorld() *trackingWorld {
	return &trackingWorld{pos: make(map[store.ClientID]int32)}
}

func (w *trackingWorld) Tick(frame uint64, inputs store.InputState) error {
	for client, set := range inputs {
		for _, v := range set {
			w.pos[client] += fixed.ToInt(v.Scalar)
		}
	}
	return nil
}

func (w *trackingWorld) GetSparseSnapshot(postTick bool) *store.Snapshot {
	clients := make([]string, 0, len(w.pos))
	for c := range w.pos {
		clients = append(clients, c)
	}
	sort.Strings(clients)
	values := make([]uint32, len(clients))
	for i, c := range clients {
		values[i] = uint32(w.pos[c])
	}
	return &store.Snapshot{
		Strings:    map[store.InternDomain][]string{"pos": clients},
		ColumnData: [][][]uint32{{values}},
	}
}

func (w *trackingWorld) LoadSparseSnapshot(snap *store.Snapshot) error {
	w.pos = make(map[store.ClientID]int32)
	clients := snap.Strings["pos"]
	values := snap.ColumnData[0][0]
	for i, c := range clients {
		w.pos[c] = int32(values[i])
	}
	return nil
}

// fakeWorld is a minimal in-memory World for testing rollback semantics
// without a real store.World: it tracks a single counter that Tick bumps
// so resimulation can be asserted against.
type fakeWorld struct {
	counter   int32
	ticked    []uint64
	failFrame uint64
}

func (f *fakeWorld) Tick(frame uint64, inputs store.InputState) error {
	f.ticked = append(f.ticked, frame)
	f.counter++
	return nil
}

func (f *fakeWorld) GetSparseSnapshot(postTick bool) *store.Snapshot {
	return &store.Snapshot{Frame: uint64(f.counter)}
}

func (f *fakeWorld) LoadSparseSnapshot(snap *store.Snapshot) error {
	f.counter = int32(snap.Frame)
	return nil
}

func newManager(w World) *Manager {
	return New(w, Config{
		InputDelayFrames:    0,
		MaxPredictionFrames: 8,
		Strategy:            inputhist.StrategyIdle,
		Resolver:            func(store.ClientID) bool { return true },
	})
}

func TestAdvanceFrameNoOpWhenDisabled(t *testing.T) {
	w := &fakeWorld{}
	m := newManager(w)
	if err := m.AdvanceFrame(); err != nil {
		t.Fatalf("AdvanceFrame: %v", err)
	}
	if len(w.ticked) != 0 {
		t.Fatal("AdvanceFrame must be a no-op while disabled")
	}
}

func TestAdvanceFrameThrottledByMaxPredictionFrames(t *testing.T) {
	w := &fakeWorld{}
	m := newManager(w)
	m.Enable()
	for i := 0; i < 20; i++ {
		if err := m.AdvanceFrame(); err != nil {
			t.Fatalf("AdvanceFrame: %v", err)
		}
	}
	if m.LocalFrame()-m.ConfirmedFrame() > m.cfg.MaxPredictionFrames {
		t.Fatalf("local frame must never run more than max_prediction_frames ahead of confirmed: local=%d confirmed=%d", m.LocalFrame(), m.ConfirmedFrame())
	}
}

func TestReceiveServerTickFalseWhenDisabled(t *testing.T) {
	w := &fakeWorld{}
	m := newManager(w)
	rolled, err := m.ReceiveServerTick(1, map[store.ClientID]ServerInput{})
	if err != nil {
		t.Fatalf("ReceiveServerTick: %v", err)
	}
	if rolled {
		t.Fatal("ReceiveServerTick must return false while disabled")
	}
}

func TestReceiveServerTickFutureFrameRecordsLifecycleWithoutRollback(t *testing.T) {
	w := &fakeWorld{}
	m := newManager(w)
	m.Enable()

	var delivered []LifecycleEvent
	m.SetCallbacks(Callbacks{
		OnLifecycleDeliver: func(ev LifecycleEvent) { delivered = append(delivered, ev) },
	})

	m.AdvanceFrame() // local_frame = 1

	rolled, err := m.ReceiveServerTick(5, map[store.ClientID]ServerInput{
		"alice": {Kind: ServerInputJoin},
	})
	if err != nil {
		t.Fatalf("ReceiveServerTick: %v", err)
	}
	if rolled {
		t.Fatal("a lifecycle event for a future frame must not trigger rollback")
	}
	if len(delivered) != 1 {
		t.Fatalf("expected lifecycle delivery callback, got %d calls", len(delivered))
	}
}

func TestReceiveServerTickMispredictionTriggersRollback(t *testing.T) {
	w := &fakeWorld{}
	m := newManager(w)
	m.Enable()

	for i := 0; i < 5; i++ {
		m.AdvanceFrame()
	}

	var resimulated []uint64
	m.SetCallbacks(Callbacks{
		OnFrameResimulated: func(frame uint64) { resimulated = append(resimulated, frame) },
	})

	m.hist.StorePredicted(2, "bob", store.ActionSet{})

	rolled, err := m.ReceiveServerTick(2, map[store.ClientID]ServerInput{
		"bob": {Kind: ServerInputGame, Data: store.ActionSet{0: {Kind: store.ActionButton, Pressed: true}}},
	})
	if err != nil {
		t.Fatalf("ReceiveServerTick: %v", err)
	}
	if !rolled {
		t.Fatal("a misprediction must trigger a rollback")
	}
	if len(resimulated) == 0 {
		t.Fatal("rollback must resimulate and invoke OnFrameResimulated")
	}
	if m.Stats().RollbackCount != 1 {
		t.Fatalf("expected RollbackCount 1, got %d", m.Stats().RollbackCount)
	}
}

func TestReceiveServerTickMispredictionResimulatesWithCorrectedInput(t *testing.T) {
	// Client "bob" moves by 5 at frame 1, but the local prediction for bob
	// at frame 1 was idle. Confirming frame 1 must roll back to the state
	// before frame 1 and resimulate forward with the corrected input, so
	// the result matches a from-scratch run driven by the same confirmed
	// history rather than one that keeps frame 1's erroneous idle tick.
	w := newTrackingWorld()
	m := newManager(w)
	m.Enable()
	m.hist.AddClient("bob")

	for i := 0; i < 3; i++ {
		if err := m.AdvanceFrame(); err != nil {
			t.Fatalf("AdvanceFrame: %v", err)
		}
	}

	moved := store.ActionSet{0: {Kind: store.ActionScalar, Scalar: fixed.FromInt(5)}}
	rolled, err := m.ReceiveServerTick(1, map[store.ClientID]ServerInput{
		"bob": {Kind: ServerInputGame, Data: moved},
	})
	if err != nil {
		t.Fatalf("ReceiveServerTick: %v", err)
	}
	if !rolled {
		t.Fatal("a misprediction must trigger a rollback")
	}

	fresh := newTrackingWorld()
	fh := inputhist.New(8, inputhist.StrategyIdle)
	fh.AddClient("bob")
	fh.StoreLocal(1, "bob", moved)
	for f := uint64(1); f <= 3; f++ {
		if err := fresh.Tick(f, fh.GetFrameInputs(f)); err != nil {
			t.Fatalf("fresh.Tick: %v", err)
		}
	}

	if w.pos["bob"] != fresh.pos["bob"] {
		t.Fatalf("rollback-corrected state diverged from a from-scratch run: got %d, want %d", w.pos["bob"], fresh.pos["bob"])
	}
}

func TestReceiveServerTickGameInputWithoutResolverIsProgrammerError(t *testing.T) {
	w := &fakeWorld{}
	m := New(w, Config{MaxPredictionFrames: 8, Strategy: inputhist.StrategyIdle})
	m.Enable()
	m.AdvanceFrame()

	_, err := m.ReceiveServerTick(0, map[store.ClientID]ServerInput{
		"carol": {Kind: ServerInputGame, Data: store.ActionSet{}},
	})
	if err == nil {
		t.Fatal("expected a programmer error when no resolver is configured for a game input")
	}
}

func TestExecuteRollbackUnrecoverableBeyondOldestSnapshot(t *testing.T) {
	w := &fakeWorld{}
	m := newManager(w)
	m.Enable()
	for i := 0; i < 3; i++ {
		m.AdvanceFrame()
	}
	m.pruneSnapshotsOlderThan(2)

	if err := m.ExecuteRollback(0); err == nil {
		t.Fatal("expected an unrecoverable error for a rollback target older than the oldest snapshot")
	}
}

func TestInitializeResetsState(t *testing.T) {
	w := &fakeWorld{}
	m := newManager(w)
	m.Enable()
	for i := 0; i < 5; i++ {
		m.AdvanceFrame()
	}
	m.Initialize(100)
	if m.LocalFrame() != 100 || m.ConfirmedFrame() != 100 {
		t.Fatalf("Initialize must reset both frame counters to the given frame, got local=%d confirmed=%d", m.LocalFrame(), m.ConfirmedFrame())
	}
}
