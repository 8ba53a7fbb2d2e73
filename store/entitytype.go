package store

// EntityType is a named composition of components with default field
// values, chosen at definition time. SyncNone marks a type as
// client-local: excluded from snapshots and from the state hash.
type EntityType struct {
	Name        string
	Components  []string
	Overrides   map[string]map[string]Value
	SyncNone    bool
	HasClientID bool
	index       int
}

// EntityTypeBuilder is the fluent registration DSL:
// DefineEntity(name).With(component, defaults).SyncNone().Register().
type EntityTypeBuilder struct {
	reg *Registry
	et  *EntityType
}

// DefineEntity starts building a new entity type.
func (r *Registry) DefineEntity(name string) *EntityTypeBuilder {
	return &EntityTypeBuilder{
		reg: r,
		et:  &EntityType{Name: name, Overrides: make(map[string]map[string]Value)},
	}
}

// With attaches a component to the entity type being built, optionally
// overriding some of its declared field defaults.
func (b *EntityTypeBuilder) With(component string, overrides map[string]Value) *EntityTypeBuilder {
	if _, ok := b.reg.Component(component); !ok {
		panic("store: With references unregistered component " + component)
	}
	b.et.Components = append(b.et.Components, component)
	if len(overrides) > 0 {
		b.et.Overrides[component] = overrides
	}
	return b
}

// WithClientID marks the entity type as carrying a participant identity
// (e.g. a Player type), which session uses to derive the active-client set
// from the live entity set after a snapshot load.
func (b *EntityTypeBuilder) WithClientID() *EntityTypeBuilder {
	b.et.HasClientID = true
	return b
}

// SyncNone marks the entity type as client-local: excluded from snapshots
// and the state hash.
func (b *EntityTypeBuilder) SyncNone() *EntityTypeBuilder {
	b.et.SyncNone = true
	return b
}

// Register finalizes the entity type and adds it to the registry.
func (b *EntityTypeBuilder) Register() *EntityType {
	if _, exists := b.reg.entityTypeIdx[b.et.Name]; exists {
		panic("store: duplicate entity type " + b.et.Name)
	}
	b.et.index = len(b.reg.entityTypes)
	b.reg.entityTypeIdx[b.et.Name] = b.et.index
	b.reg.entityTypes = append(b.reg.entityTypes, b.et)
	return b.et
}

// EntityType looks up a registered entity type by name.
func (r *Registry) EntityType(name string) (*EntityType, bool) {
	idx, ok := r.entityTypeIdx[name]
	if !ok {
		return nil, false
	}
	return r.entityTypes[idx], true
}

// EntityTypes returns every registered entity type in registration order.
func (r *Registry) EntityTypes() []*EntityType {
	return r.entityTypes
}

func (r *Registry) entityTypeByIndex(idx int) *EntityType {
	if idx < 0 || idx >= len(r.entityTypes) {
		return nil
	}
	return r.entityTypes[idx]
}
