package store

// QueryByType returns every live entity of the given type, in ascending id
// order, materialized at call time.
func (w *World) QueryByType(typeName string) ([]EntityID, error) {
	et, ok := w.reg.EntityType(typeName)
	if !ok {
		return nil, errProgrammer("QueryByType", "unregistered entity type "+typeName)
	}
	all := w.sortedLiveEntities()
	out := make([]EntityID, 0, len(all))
	for _, id := range all {
		if int(w.entityType[id.Index()]) == et.index {
			out = append(out, id)
		}
	}
	return out, nil
}

// QueryByComponent returns every live entity currently holding the named
// component, in ascending id order, with the same iteration contract as
// QueryByType.
func (w *World) QueryByComponent(component string) ([]EntityID, error) {
	ci, ok := w.reg.componentIndexOf(component)
	if !ok {
		return nil, errProgrammer("QueryByComponent", "unregistered component "+component)
	}
	all := w.sortedLiveEntities()
	cols := w.columns[ci]
	out := make([]EntityID, 0, len(all))
	for _, id := range all {
		if cols.present[id.Index()] {
			out = append(out, id)
		}
	}
	return out, nil
}

// AllLive returns every live entity in ascending id order.
func (w *World) AllLive() []EntityID {
	return w.sortedLiveEntities()
}

// WithClientID returns every live entity whose type carries a client id,
// paired with that client id, in ascending entity-id order. session uses
// this to derive the active-client set from Player-bearing entities after
// a snapshot load.
func (w *World) WithClientID() []struct {
	ID       EntityID
	ClientID string
} {
	all := w.sortedLiveEntities()
	out := make([]struct {
		ID       EntityID
		ClientID string
	}, 0, len(all))
	for _, id := range all {
		cid, ok := w.ClientIDOf(id)
		if ok {
			out = append(out, struct {
				ID       EntityID
				ClientID string
			}{ID: id, ClientID: cid})
		}
	}
	return out
}
