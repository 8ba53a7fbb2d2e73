package store

import "driftlock/engine/rng"

// EntityRecord is one entry in a snapshot's sorted entity-metadata list.
type EntityRecord struct {
	ID               EntityID
	TypeIndex        uint16
	ClientIDInterned int32 // -1 if the entity type carries no client id
}

// Snapshot is the deterministic serialization of a World. It is the
// in-memory shape; wire.go encodes/decodes it to the exact byte layout
// EncodeSnapshot/DecodeSnapshot define.
type Snapshot struct {
	Frame    uint64
	Sequence uint32
	PostTick bool

	Entities []EntityRecord

	// ColumnData[componentIndex][fieldIndex] holds len(Entities) raw
	// values, one per entity in Entities order, packed for exactly the
	// entities present in this snapshot.
	ColumnData [][][]uint32

	Strings map[InternDomain][]string

	RNG       rng.State
	Allocator allocatorState
}

// GetSparseSnapshot produces a snapshot of the world's current live
// entities. postTick records whether the caller took this snapshot
// immediately after Tick completed (so the receiver resumes at Frame+1)
// or before the next tick (resume at Frame); the flag always travels with
// the snapshot since there is no other way to recover that distinction.
func (w *World) GetSparseSnapshot(postTick bool) *Snapshot {
	entities := w.syncedLiveEntitiesAscending()
	snap := &Snapshot{
		Frame:     w.frame,
		Sequence:  w.sequence,
		PostTick:  postTick,
		Entities:  make([]EntityRecord, len(entities)),
		Strings:   make(map[InternDomain][]string),
		RNG:       w.rngSt.Save(),
		Allocator: w.alloc.save(),
	}

	for i, id := range entities {
		index := id.Index()
		snap.Entities[i] = EntityRecord{
			ID:               id,
			TypeIndex:        uint16(w.entityType[index]),
			ClientIDInterned: w.clientID[index],
		}
	}

	snap.ColumnData = make([][][]uint32, len(w.columns))
	for ci, cols := range w.columns {
		fields := cols.columns
		snap.ColumnData[ci] = make([][]uint32, len(fields))
		for fi, col := range fields {
			buf := make([]uint32, len(entities))
			for i, id := range entities {
				buf[i] = col.data[id.Index()]
			}
			snap.ColumnData[ci][fi] = buf
		}
	}

	for _, domain := range domainOrder {
		snap.Strings[domain] = w.strings.table(domain).save()
	}

	return snap
}

// LoadSparseSnapshot clears all current state and reinstalls snap
// verbatim: the id allocator state, every entity at its exact id, every
// field, the interned string tables, and the RNG state.
// After load the live set is exactly snap's entity set and the next
// allocation returns the id the source would have returned next.
func (w *World) LoadSparseSnapshot(snap *Snapshot) error {
	for i := range w.alive {
		w.alive[i] = false
		w.entityType[i] = -1
		w.clientID[i] = -1
	}
	for _, cols := range w.columns {
		for i := range cols.present {
			cols.present[i] = false
		}
	}

	w.alloc.restore(snap.Allocator)

	for _, domain := range domainOrder {
		w.strings.table(domain).restore(snap.Strings[domain])
	}

	for i, rec := range snap.Entities {
		typeIdx := int32(rec.TypeIndex)
		et := w.reg.entityTypeByIndex(int(typeIdx))
		if et == nil {
			return errProtocol("LoadSparseSnapshot", "unknown entity type index in snapshot")
		}
		w.createAt(rec.ID, typeIdx, rec.ClientIDInterned)
		for _, compName := range et.Components {
			idx, ok := w.reg.componentIndexOf(compName)
			if !ok {
				continue
			}
			fields := snap.ColumnData[idx]
			for fi, buf := range fields {
				if i >= len(buf) {
					continue
				}
				w.columns[idx].columns[fi].data[rec.ID.Index()] = buf[i]
			}
		}
	}

	w.rngSt.Load(snap.RNG)
	w.frame = snap.Frame
	w.sequence = snap.Sequence

	return nil
}
