// Package session implements SESSION, the orchestrator of the
// Offline/Local/Connecting/Connected/Stopped state machine, the
// participant-facing registration DSL, the tick loop wiring STORE,
// PREDICT, and SYNC together, and the public read-only probes over them.
// It is one owning type holding every live subsystem behind a
// mutex-free, single-threaded tick loop.
package session

import (
	"sort"

	"driftlock/engine/engineerr"
	"driftlock/engine/hash"
	"driftlock/engine/inputhist"
	"driftlock/engine/logging"
	"driftlock/engine/predict"
	"driftlock/engine/store"
	"driftlock/engine/syncengine"
)

// State is one node of SESSION's state machine.
type State int

const (
	StateOffline State = iota
	StateLocal
	StateConnecting
	StateConnected
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateOffline:
		return "Offline"
	case StateLocal:
		return "Local"
	case StateConnecting:
		return "Connecting"
	case StateConnected:
		return "Connected"
	case StateStopped:
		return "Stopped"
	default:
		return "Unknown"
	}
}

// Config is the closed configuration set.
type Config struct {
	TickRate             int // ticks/sec, default 20
	MaxPredictionFrames  uint64
	InputDelayFrames     uint64
	PredictionStrategy   inputhist.PredictionStrategy
	HashWindow           int
	SnapshotRingCapacity int
	InputHistoryCapacity uint64
	MaxEntities          uint32
	Logger               *logging.Router
}

// DefaultConfig matches stated defaults.
func DefaultConfig() Config {
	return Config{
		TickRate:             20,
		MaxPredictionFrames:  15,
		InputDelayFrames:     2,
		PredictionStrategy:   inputhist.StrategyRepeatLast,
		HashWindow:           120,
		SnapshotRingCapacity: 32,
		InputHistoryCapacity: 128,
		MaxEntities:          1 << 16,
	}
}

// Callbacks is the capability set SESSION depends on, instead of
// arbitrary callback-as-polymorphism.
type Callbacks struct {
	OnRoomCreate func()
	OnConnect    func(localID store.ClientID)
	OnDisconnect func(clientID store.ClientID)
	OnTick       func(frame uint64)
}

// Transport is the minimal surface SESSION needs from a relay connection.
// The relay package provides a concrete websocket-backed implementation;
// SESSION never imports relay directly so the deterministic core stays
// free of transport concerns.
type Transport interface {
	Send(kind string, payload []byte) error
	Close() error
}

// Plugin is an external collaborator (renderer, physics, input) attached
// via AddPlugin. SESSION calls OnAttach once at attach time; plugins are
// otherwise driven by the host, not by SESSION's tick loop.
type Plugin interface {
	OnAttach(s *Session)
}

// Diagnostic is the user-visible failure snapshot:
// the last desync report, the last rollback depth, and the current sync
// percentage.
type Diagnostic struct {
	LastDesync        *syncengine.Diagnostics
	LastRollbackDepth uint64
	SyncPercentage    float64
}

// Session is SESSION: the orchestrator owning STORE, PREDICT, SYNC, and
// INPUT-HIST, and driving them through one single-threaded tick loop.
type Session struct {
	cfg Config
	cb  Callbacks

	reg   *store.Registry
	world *store.World

	predictMgr *predict.Manager
	sync       *syncengine.Engine

	state State

	localClientID store.ClientID
	transport     Transport

	plugins []Plugin

	lastDesync        *syncengine.Diagnostics
	lastRollbackDepth uint64
}

// New constructs a Session bound to a fresh, empty Registry. Callers
// register entity types, components, and action schemas via DefineEntity
// etc. before calling Start.
func New(cfg Config) *Session {
	if cfg.TickRate == 0 {
		cfg = DefaultConfig()
	}
	return &Session{
		cfg:   cfg,
		reg:   store.NewRegistry(),
		state: StateOffline,
	}
}

// DefineEntity delegates to the underlying Registry's fluent DSL:
// define_entity(name).with(component, defaults).syncNone?().register().
func (s *Session) DefineEntity(name string) *store.EntityTypeBuilder {
	return s.reg.DefineEntity(name)
}

// RegisterComponent delegates to the Registry.
func (s *Session) RegisterComponent(name string) *store.ComponentDef {
	return s.reg.RegisterComponent(name)
}

// RegisterActionSchema delegates to the Registry.
func (s *Session) RegisterActionSchema(name string, kind store.ActionKind) store.ActionID {
	return s.reg.RegisterActionSchema(name, kind)
}

// RegisterSystem attaches a simulation system to a phase, delegating to
// the underlying World. Must be called after Start (once the World
// exists).
func (s *Session) RegisterSystem(phase store.Phase, sys store.System) {
	if s.world == nil {
		panic("session: RegisterSystem called before Start")
	}
	s.world.RegisterSystem(phase, sys)
}

// AddPlugin attaches an external collaborator.
func (s *Session) AddPlugin(p Plugin) {
	s.plugins = append(s.plugins, p)
	p.OnAttach(s)
}

// Init stores callbacks without executing them.
func (s *Session) Init(cb Callbacks) *Session {
	s.cb = cb
	return s
}

// Start transitions OFFLINE → LOCAL: constructs the World, the prediction
// manager (disabled, since there is no relay to confirm against), and
// invokes on_room_create then on_connect(local_id).
func (s *Session) Start(cb *Callbacks) error {
	if s.state != StateOffline {
		return engineerr.New(engineerr.ProgrammerError, "session.Start", "Start called outside Offline")
	}
	if cb != nil {
		s.cb = *cb
	}

	s.world = store.NewWorld(s.reg, store.Config{
		MaxEntities: s.cfg.MaxEntities,
		Logger:      s.cfg.Logger,
	})
	s.localClientID = "local-1"

	s.predictMgr = predict.New(s.world, predict.Config{
		InputDelayFrames:    s.cfg.InputDelayFrames,
		MaxPredictionFrames: s.cfg.MaxPredictionFrames,
		Strategy:            s.cfg.PredictionStrategy,
		HistoryCapacity:     s.cfg.InputHistoryCapacity,
		Resolver:            func(store.ClientID) bool { return true },
		Logger:              s.cfg.Logger,
	})
	s.predictMgr.History().SetLocalClient(s.localClientID)
	// PREDICT stays disabled in Local mode: there is no relay to confirm
	// against, so inputs are stored directly as CONFIRMED below.

	s.sync = syncengine.New(s.localClientID, syncengine.Config{
		ConsecutiveMismatchThreshold: 3,
		MismatchFractionThreshold:    0.1,
		HashWindow:                   s.cfg.HashWindow,
		Logger:                       s.cfg.Logger,
	})
	s.sync.SetActiveClients([]store.ClientID{s.localClientID})

	s.state = StateLocal

	if s.cb.OnRoomCreate != nil {
		s.cb.OnRoomCreate()
	}
	if s.cb.OnConnect != nil {
		s.cb.OnConnect(s.localClientID)
	}
	return nil
}

// Connect transitions LOCAL → CONNECTING, and the caller (relay
// integration) is expected to call OnTransportConnected /
// OnSnapshotReceived to reach CONNECTED. transport is kept
// only as an opaque handle for Stop to close; SESSION never inspects its
// payloads directly.
func (s *Session) Connect(transport Transport) error {
	if s.state != StateLocal {
		return engineerr.New(engineerr.ProgrammerError, "session.Connect", "Connect called outside Local")
	}
	s.transport = transport
	s.state = StateConnecting
	return nil
}

// OnTransportConnected notifies SESSION that the transport layer's
// handshake completed. CONNECTED is only reached once the first
// snapshot/tick also arrives, so this alone does not
// transition state; it is recorded implicitly by callers then calling
// OnAuthoritySnapshot or OnFirstTick.
func (s *Session) OnTransportConnected() {}

// OnAuthoritySnapshot installs the authority's snapshot for a late
// joiner: replaces local STORE state, re-derives the active-client set
// from Player-bearing entities, enables PREDICT, and transitions to
// CONNECTED.
func (s *Session) OnAuthoritySnapshot(snap *store.Snapshot) error {
	if s.state != StateConnecting {
		return engineerr.New(engineerr.ProgrammerError, "session.OnAuthoritySnapshot", "called outside Connecting")
	}
	if err := s.world.LoadSparseSnapshot(snap); err != nil {
		return err
	}
	s.predictMgr.Initialize(s.world.Frame())
	s.refreshActiveClientsFromStore()
	s.predictMgr.Enable()
	s.state = StateConnected
	s.cfg.Logger.Log(logging.SeverityInfo, logging.CategorySession, "connected", map[string]any{
		"frame": s.world.Frame(),
	})
	return nil
}

// OnFirstTick notifies SESSION that the room creator's first tick
// arrived: the room-creator path to CONNECTED, with no snapshot to load.
func (s *Session) OnFirstTick() {
	if s.state != StateConnecting {
		return
	}
	s.predictMgr.Enable()
	s.state = StateConnected
	s.cfg.Logger.Log(logging.SeverityInfo, logging.CategorySession, "connected", map[string]any{
		"frame": s.world.Frame(),
	})
}

// refreshActiveClientsFromStore derives the active-client set from
// Player-bearing entities rather than from a separate roster, so the
// active set always matches live simulation state.
func (s *Session) refreshActiveClientsFromStore() {
	entries := s.world.WithClientID()
	clients := make([]store.ClientID, 0, len(entries))
	for _, e := range entries {
		clients = append(clients, e.ClientID)
	}
	sort.Strings(clients)

	s.predictMgr.History().Reset()
	s.predictMgr.History().SetLocalClient(s.localClientID)
	for _, c := range clients {
		if c != s.localClientID {
			s.predictMgr.History().AddClient(c)
		}
	}
	s.sync.SetActiveClients(clients)
}

// Stop halts the tick loop, drains nothing further, closes the
// transport, and transitions to STOPPED from any state.
func (s *Session) Stop() error {
	if s.state == StateStopped {
		return nil
	}
	if s.transport != nil {
		_ = s.transport.Close()
	}
	s.state = StateStopped
	return nil
}

// LocalTick advances the session by one frame in LOCAL mode: the local
// input is stored as CONFIRMED (there is no relay to predict against) and
// STORE ticks directly.
func (s *Session) LocalTick(input store.ActionSet) error {
	if s.state != StateLocal {
		return engineerr.New(engineerr.ProgrammerError, "session.LocalTick", "LocalTick called outside Local")
	}
	frame := s.world.Frame() + 1
	s.predictMgr.History().StoreLocal(frame, s.localClientID, input)
	inputs := s.predictMgr.History().GetFrameInputs(frame)
	if err := s.world.Tick(frame, inputs); err != nil {
		return err
	}
	if s.cb.OnTick != nil {
		s.cb.OnTick(frame)
	}
	return nil
}

// OnlineAdvanceFrame advances PREDICT by one local frame in CONNECTED
// mode.
func (s *Session) OnlineAdvanceFrame() error {
	if s.state != StateConnected {
		return engineerr.New(engineerr.ProgrammerError, "session.OnlineAdvanceFrame", "called outside Connected")
	}
	if err := s.predictMgr.AdvanceFrame(); err != nil {
		return err
	}
	if s.cb.OnTick != nil {
		s.cb.OnTick(s.predictMgr.LocalFrame())
	}
	return nil
}

// ReceiveServerTick reconciles one relay-confirmed tick, recording a
// rollback depth for diagnostics if a rollback occurs.
func (s *Session) ReceiveServerTick(frame uint64, inputs map[store.ClientID]predict.ServerInput) error {
	before := s.predictMgr.LocalFrame()
	rolled, err := s.predictMgr.ReceiveServerTick(frame, inputs)
	if err != nil {
		return err
	}
	if rolled {
		// predict rolls back to frame-1 and resimulates frame..before.
		s.lastRollbackDepth = before - (frame - 1)
	}
	return nil
}

// ReceiveHashReport feeds one relay-reported majority hash into SYNC.
func (s *Session) ReceiveHashReport(frame uint64, majorityHash uint32) {
	local := s.world.GetStateHash()
	s.sync.ReceiveMajorityHash(frame, local, hash.Hash32(majorityHash))
	if s.sync.State() == syncengine.StateDesync {
		s.lastDesync = s.sync.LastDiagnostics()
	}
}

// State returns the current orchestrator state.
func (s *Session) State() State { return s.state }

// Frame returns the current simulation frame.
func (s *Session) Frame() uint64 {
	if s.world == nil {
		return 0
	}
	return s.world.Frame()
}

// Time returns frame * tick_interval, in the same units the caller's
// tick_rate implies.
func (s *Session) Time() float64 {
	if s.cfg.TickRate == 0 {
		return 0
	}
	return float64(s.Frame()) / float64(s.cfg.TickRate)
}

// GetStateHash exposes the current STORE state hash.
func (s *Session) GetStateHash() uint32 {
	if s.world == nil {
		return 0
	}
	return uint32(s.world.GetStateHash())
}

// GetSyncStats exposes SYNC's rolling pass-percentage and mismatch
// counters.
func (s *Session) GetSyncStats() syncengine.Stats {
	if s.sync == nil {
		return syncengine.Stats{}
	}
	return s.sync.Stats()
}

// IsAuthority reports whether the local client is the current authority.
func (s *Session) IsAuthority() bool {
	if s.sync == nil {
		return false
	}
	return s.sync.IsAuthority()
}

// GetDiagnostic exposes the last desync report, last rollback depth, and
// current sync percentage.
func (s *Session) GetDiagnostic() Diagnostic {
	pct := 0.0
	if s.sync != nil {
		pct = s.sync.PassPercentage()
	}
	return Diagnostic{
		LastDesync:        s.lastDesync,
		LastRollbackDepth: s.lastRollbackDepth,
		SyncPercentage:    pct,
	}
}

// World exposes the underlying store for plugins that need direct
// read access (e.g. a renderer interpolating between snapshots). Plugins
// must not mutate it outside a registered system.
func (s *Session) World() *store.World { return s.world }

// PredictManager exposes PREDICT for advanced host integrations (e.g. a
// relay adapter queuing local input through it).
func (s *Session) PredictManager() *predict.Manager { return s.predictMgr }

// SyncEngine exposes SYNC for advanced host integrations.
func (s *Session) SyncEngine() *syncengine.Engine { return s.sync }
