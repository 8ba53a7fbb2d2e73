// Package store implements the deterministic Entity-Component-Store:
// entities, components, queries, snapshots, and state hashing. It is the engine's only owner of simulation state; predict and
// syncengine operate on it from the outside via its public methods.
package store

import (
	"sort"

	"driftlock/engine/logging"
	"driftlock/engine/rng"
)

// Phase is one of the six ordered system-execution phases.
type Phase int

const (
	PhaseInput Phase = iota
	PhaseUpdate
	PhasePrePhysics
	PhasePhysics
	PhasePostPhysics
	PhaseRender
	phaseCount
)

// System is one unit of per-tick logic, registered to a phase. Systems in
// the same phase execute in registration order.
type System interface {
	Name() string
	Run(w *World, frame uint64, inputs InputState) error
}

// Config controls fixed resource allocation at construction time. No
// per-frame allocation happens on the hot path; everything
// sized here is allocated once.
type Config struct {
	MaxEntities uint32
	Seed        uint64
	Logger      *logging.Router
}

// World is STORE: the tuple { id allocator, per-component columns,
// per-entity type/client-id/alive bit, interned-string tables, current
// frame, input-state table, registered systems }.
type World struct {
	reg         *Registry
	maxEntities uint32

	alloc *allocator

	// per-index metadata, parallel arrays addressed by entity index.
	entityType []int32 // -1 if the index is not currently alive
	clientID   []int32 // interned clientId, -1 if none
	alive      []bool

	columns []*componentColumns // parallel to reg.components

	strings *internTables
	rngSt   *rng.State
	seed    uint64

	frame    uint64
	sequence uint32
	input    InputState

	systems [phaseCount][]System

	logger *logging.Router
}

// NewWorld constructs a World bound to reg, with columns for every
// currently-registered component preallocated to cfg.MaxEntities. Register
// all components and entity types on reg before calling NewWorld.
func NewWorld(reg *Registry, cfg Config) *World {
	if cfg.MaxEntities == 0 {
		cfg.MaxEntities = 1 << 16
	}
	w := &World{
		reg:         reg,
		maxEntities: cfg.MaxEntities,
		alloc:       newAllocator(cfg.MaxEntities),
		entityType:  make([]int32, cfg.MaxEntities),
		clientID:    make([]int32, cfg.MaxEntities),
		alive:       make([]bool, cfg.MaxEntities),
		strings:     newInternTables(),
		seed:        cfg.Seed,
		rngSt:       rng.New(cfg.Seed),
		input:       make(InputState),
		logger:      cfg.Logger,
	}
	for i := range w.entityType {
		w.entityType[i] = -1
		w.clientID[i] = -1
	}
	for _, def := range reg.Components() {
		w.columns = append(w.columns, newComponentColumns(def, cfg.MaxEntities))
	}
	return w
}

// Registry returns the registry this world was built from.
func (w *World) Registry() *Registry { return w.reg }

// Frame returns the current simulation frame.
func (w *World) Frame() uint64 { return w.frame }

// Sequence returns the last recorded relay sequence number.
func (w *World) Sequence() uint32 { return w.sequence }

// SetSequence records the relay sequence number to be carried on the next
// snapshot.
func (w *World) SetSequence(seq uint32) { w.sequence = seq }

// RNG exposes the world's deterministic PRNG. Only code paths that run
// identically on every participant may call into it.
func (w *World) RNG() *rng.State { return w.rngSt }

// RegisterSystem appends a system to the given phase's registration-order
// list.
func (w *World) RegisterSystem(phase Phase, sys System) {
	w.systems[phase] = append(w.systems[phase], sys)
}

// Create allocates a new entity of the given type with the given optional
// client id (required iff the type was built WithClientID()). Overrides
// per component, if any, come from the entity type's declared defaults.
func (w *World) Create(typeName string, clientID string) (EntityID, error) {
	et, ok := w.reg.EntityType(typeName)
	if !ok {
		return NilEntity, errProgrammer("Create", "unregistered entity type "+typeName)
	}
	id, err := w.alloc.allocate()
	if err != nil {
		return NilEntity, err
	}
	index := id.Index()
	w.entityType[index] = int32(et.index)
	w.alive[index] = true
	if et.HasClientID {
		w.clientID[index] = w.strings.table(InternDomainClientID).intern(clientID)
	} else {
		w.clientID[index] = -1
	}
	for _, compName := range et.Components {
		ci, _ := w.reg.componentIndexOf(compName)
		w.columns[ci].addSlot(index, et.Overrides[compName])
	}
	return id, nil
}

// createAt recreates an entity at an exact id (used by LoadSparseSnapshot),
// bypassing fresh allocation. Component field values are written
// separately by the snapshot loader immediately afterward; this only
// marks presence so GetField/SetField accept the slot.
func (w *World) createAt(id EntityID, typeIdx int32, clientIDInterned int32) {
	index := id.Index()
	w.entityType[index] = typeIdx
	w.alive[index] = true
	w.clientID[index] = clientIDInterned
	et := w.reg.entityTypeByIndex(int(typeIdx))
	if et == nil {
		return
	}
	for _, compName := range et.Components {
		ci, ok := w.reg.componentIndexOf(compName)
		if !ok {
			continue
		}
		w.columns[ci].present[index] = true
	}
}

// Destroy frees id, bumping the generation for its index so stale
// references are detectable, and clears every component slot it held.
func (w *World) Destroy(id EntityID) error {
	if !w.Alive(id) {
		return errProgrammer("Destroy", "entity is not alive")
	}
	index := id.Index()
	et := w.reg.entityTypeByIndex(int(w.entityType[index]))
	if et != nil {
		for _, compName := range et.Components {
			ci, _ := w.reg.componentIndexOf(compName)
			w.columns[ci].removeSlot(index)
		}
	}
	w.alive[index] = false
	w.entityType[index] = -1
	w.clientID[index] = -1
	w.alloc.free(id)
	return nil
}

// Alive reports whether id currently refers to a live entity (the
// generation matches and the alive bit is set).
func (w *World) Alive(id EntityID) bool {
	index := id.Index()
	if index >= w.maxEntities {
		return false
	}
	if !w.alloc.isCurrent(id) {
		return false
	}
	return w.alive[index]
}

// TypeOf returns the entity type name for a live entity.
func (w *World) TypeOf(id EntityID) (string, bool) {
	if !w.Alive(id) {
		return "", false
	}
	et := w.reg.entityTypeByIndex(int(w.entityType[id.Index()]))
	if et == nil {
		return "", false
	}
	return et.Name, true
}

// ClientIDOf returns the interned client id string for a live entity, if
// its type carries one.
func (w *World) ClientIDOf(id EntityID) (string, bool) {
	if !w.Alive(id) {
		return "", false
	}
	interned := w.clientID[id.Index()]
	if interned < 0 {
		return "", false
	}
	return w.strings.table(InternDomainClientID).lookup(interned)
}

// HasComponent reports whether the live entity currently has a slot for
// the named component.
func (w *World) HasComponent(id EntityID, component string) bool {
	if !w.Alive(id) {
		return false
	}
	ci, ok := w.reg.componentIndexOf(component)
	if !ok {
		return false
	}
	return w.columns[ci].present[id.Index()]
}

// GetField reads a field's raw Value for a live entity. Returns a
// ProgrammerError if the component is unregistered or the entity lacks it.
func (w *World) GetField(id EntityID, component, field string) (Value, error) {
	ci, fi, err := w.resolveField(component, field)
	if err != nil {
		return Value{}, err
	}
	if !w.Alive(id) {
		return Value{}, errProgrammer("GetField", "entity is not alive")
	}
	index := id.Index()
	if !w.columns[ci].present[index] {
		return Value{}, errProgrammer("GetField", "entity lacks component "+component)
	}
	return w.columns[ci].columns[fi].get(index), nil
}

// SetField writes a field's Value for a live entity.
func (w *World) SetField(id EntityID, component, field string, v Value) error {
	ci, fi, err := w.resolveField(component, field)
	if err != nil {
		return err
	}
	if !w.Alive(id) {
		return errProgrammer("SetField", "entity is not alive")
	}
	index := id.Index()
	if !w.columns[ci].present[index] {
		return errProgrammer("SetField", "entity lacks component "+component)
	}
	w.columns[ci].columns[fi].set(index, v)
	return nil
}

func (w *World) resolveField(component, field string) (ci, fi int, err error) {
	cidx, ok := w.reg.componentIndexOf(component)
	if !ok {
		return 0, 0, errProgrammer("resolveField", "unregistered component "+component)
	}
	def := w.reg.components[cidx]
	fields := def.Fields()
	for i, f := range fields {
		if f.Name == field {
			return cidx, i, nil
		}
	}
	return 0, 0, errProgrammer("resolveField", "unregistered field "+field+" on "+component)
}

// InternString interns a string into the given domain and returns its id.
func (w *World) InternString(domain InternDomain, s string) int32 {
	return w.strings.table(domain).intern(s)
}

// LookupString resolves an interned id back to its string within domain.
func (w *World) LookupString(domain InternDomain, id int32) (string, bool) {
	return w.strings.table(domain).lookup(id)
}

// BeginTick installs the per-client input state for the upcoming tick.
func (w *World) BeginTick(inputs InputState) {
	w.input = inputs
}

// CurrentInputs returns the input state installed by the most recent
// BeginTick call.
func (w *World) CurrentInputs() InputState {
	return w.input
}

// Tick runs phases Input through PostPhysics in order for the given frame.
// Render is driven separately by the caller's render loop and must not
// mutate World.
func (w *World) Tick(frame uint64, inputs InputState) error {
	w.frame = frame
	w.BeginTick(inputs)
	for phase := PhaseInput; phase <= PhasePostPhysics; phase++ {
		for _, sys := range w.systems[phase] {
			if err := sys.Run(w, frame, inputs); err != nil {
				w.logger.Log(logging.SeverityError, logging.CategoryStore, "system failed", map[string]any{
					"frame":  frame,
					"system": sys.Name(),
					"error":  err.Error(),
				})
				return errDeterminism("Tick", "system "+sys.Name()+" failed: "+err.Error())
			}
		}
	}
	return nil
}

// RunRender drives the render phase without advancing frame or mutating
// simulation-relevant state; render systems that attempt to call SetField
// will still succeed mechanically, but callers must never register
// mutating systems on PhaseRender.
func (w *World) RunRender(frame uint64) error {
	for _, sys := range w.systems[PhaseRender] {
		if err := sys.Run(w, frame, w.input); err != nil {
			return err
		}
	}
	return nil
}

// liveIndicesAscending returns every currently-alive entity index in
// ascending order, which (by construction of EntityID, see entity.go)
// coincides with ascending EntityID order.
func (w *World) liveIndicesAscending() []uint32 {
	out := make([]uint32, 0, w.maxEntities/4+1)
	for i := uint32(0); i < w.maxEntities; i++ {
		if w.alive[i] {
			out = append(out, i)
		}
	}
	return out
}

func (w *World) idAt(index uint32) EntityID {
	return makeEntityID(index, uint32(w.alloc.generations[index]))
}

// sortedLiveEntities returns every live EntityID in ascending id order,
// materialized at call time so entities created after this call are not
// visible to an in-progress caller loop.
func (w *World) sortedLiveEntities() []EntityID {
	indices := w.liveIndicesAscending()
	out := make([]EntityID, len(indices))
	for i, idx := range indices {
		out[i] = w.idAt(idx)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
