package store

// indexBits/genBits split a 32-bit entity identifier into a 20-bit index
// and a 12-bit generation. Index occupies the high bits so ascending
// EntityID order coincides with ascending index order, which is what the
// column storage and every ascending-order iteration assumes.
const (
	indexBits = 20
	genBits   = 12
	genMask   = uint32(1)<<genBits - 1
	maxIndex  = uint32(1)<<indexBits - 1
	maxGen    = genMask
)

// EntityID packs a 20-bit index and a 12-bit generation. Freeing an index
// bumps its generation, so a stale EntityID referring to a destroyed
// entity has a generation that no longer matches the allocator's current
// generation for that index and is detectable on dereference.
type EntityID uint32

// NilEntity is never returned by the allocator and can be used as a caller
// sentinel for "no entity".
const NilEntity EntityID = 0xFFFFFFFF

func makeEntityID(index, generation uint32) EntityID {
	return EntityID((index << genBits) | (generation & genMask))
}

// Index returns the 20-bit index component.
func (e EntityID) Index() uint32 {
	return uint32(e) >> genBits
}

// Generation returns the 12-bit generation component.
func (e EntityID) Generation() uint32 {
	return uint32(e) & genMask
}

// allocator tracks id issuance and reuse. Its state (next index, free list,
// generation vector) is part of every snapshot so that id assignment after
// a snapshot load is deterministic.
type allocator struct {
	nextIndex   uint32
	freeList    []uint32
	generations []uint16 // one per ever-used index, current generation
	maxEntities uint32
}

func newAllocator(maxEntities uint32) *allocator {
	return &allocator{maxEntities: maxEntities}
}

func (a *allocator) generationOf(index uint32) uint32 {
	if int(index) >= len(a.generations) {
		return 0
	}
	return uint32(a.generations[index])
}

func (a *allocator) allocate() (EntityID, error) {
	var index uint32
	if n := len(a.freeList); n > 0 {
		index = a.freeList[n-1]
		a.freeList = a.freeList[:n-1]
	} else {
		if a.nextIndex > maxIndex || (a.maxEntities > 0 && a.nextIndex >= a.maxEntities) {
			return NilEntity, errResourceExhausted("allocate", "entity id space exhausted")
		}
		index = a.nextIndex
		a.nextIndex++
	}
	for uint32(len(a.generations)) <= index {
		a.generations = append(a.generations, 0)
	}
	return makeEntityID(index, a.generationOf(index)), nil
}

func (a *allocator) free(id EntityID) {
	index := id.Index()
	if int(index) >= len(a.generations) {
		return
	}
	next := (uint32(a.generations[index]) + 1) & genMask
	a.generations[index] = uint16(next)
	a.freeList = append(a.freeList, index)
}

func (a *allocator) isCurrent(id EntityID) bool {
	index := id.Index()
	if int(index) >= len(a.generations) {
		return false
	}
	return uint32(a.generations[index]) == id.Generation()
}

// allocatorState is the serializable shape of the allocator, matching
// wire layout [next_index, free_count, free[...], gen_count,
// gen[...]].
type allocatorState struct {
	NextIndex   uint32
	FreeList    []uint32
	Generations []uint16
}

func (a *allocator) save() allocatorState {
	return allocatorState{
		NextIndex:   a.nextIndex,
		FreeList:    append([]uint32(nil), a.freeList...),
		Generations: append([]uint16(nil), a.generations...),
	}
}

func (a *allocator) restore(s allocatorState) {
	a.nextIndex = s.NextIndex
	a.freeList = append([]uint32(nil), s.FreeList...)
	a.generations = append([]uint16(nil), s.Generations...)
}
