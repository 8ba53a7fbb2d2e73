package store

import "driftlock/engine/hash"

// GetStateHash computes the 32-bit digest over: frame, entity count, then
// for each synced entity in ascending id order,
// its id, then for every component in registration order and every field
// in declared order, the raw stored value. Entities whose type is
// SyncNone are excluded. Pure and O(entities x fields).
func (w *World) GetStateHash() hash.Hash32 {
	entities := w.syncedLiveEntitiesAscending()

	h := hash.Seed
	h = hash.CombineUint64(h, w.frame)
	h = hash.Combine(h, uint32(len(entities)))

	for _, id := range entities {
		h = hash.Combine(h, uint32(id))
		index := id.Index()
		for _, cols := range w.columns {
			if !cols.present[index] {
				continue
			}
			for _, col := range cols.columns {
				h = hash.Combine(h, col.data[index])
			}
		}
	}
	return h
}

// syncedLiveEntitiesAscending is sortedLiveEntities filtered to exclude
// SyncNone entity types.
func (w *World) syncedLiveEntitiesAscending() []EntityID {
	all := w.sortedLiveEntities()
	out := make([]EntityID, 0, len(all))
	for _, id := range all {
		et := w.reg.entityTypeByIndex(int(w.entityType[id.Index()]))
		if et != nil && et.SyncNone {
			continue
		}
		out = append(out, id)
	}
	return out
}
