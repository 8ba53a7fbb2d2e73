package store

import (
	"github.com/iancoleman/orderedmap"
)

// FieldDef describes one component field: its scalar type and declared
// default value
type FieldDef struct {
	Name    string
	Type    ScalarType
	Default Value
}

// ComponentDef is a named, ordered record of fields. The registration
// order of both components and fields is part of the serialization
// protocol, so fields are kept in an orderedmap.OrderedMap
// (name -> FieldDef) that preserves insertion order for iteration while
// still supporting by-name lookup for the inspector and schema-dump paths.
type ComponentDef struct {
	Name   string
	fields *orderedmap.OrderedMap
	order  []string
}

func newComponentDef(name string) *ComponentDef {
	return &ComponentDef{Name: name, fields: orderedmap.New()}
}

// AddField appends a field to the component's declared order. Re-adding an
// existing field name is a programmer error: field order, once declared,
// is part of the wire protocol and must not silently change.
func (c *ComponentDef) AddField(name string, typ ScalarType, def Value) *ComponentDef {
	if _, exists := c.fields.Get(name); exists {
		panic("store: duplicate field " + name + " on component " + c.Name)
	}
	c.fields.Set(name, FieldDef{Name: name, Type: typ, Default: def})
	c.order = append(c.order, name)
	return c
}

// Fields returns the field definitions in declared order.
func (c *ComponentDef) Fields() []FieldDef {
	out := make([]FieldDef, 0, len(c.order))
	for _, name := range c.order {
		v, _ := c.fields.Get(name)
		out = append(out, v.(FieldDef))
	}
	return out
}

// FieldByName looks up a field definition by name.
func (c *ComponentDef) FieldByName(name string) (FieldDef, bool) {
	v, ok := c.fields.Get(name)
	if !ok {
		return FieldDef{}, false
	}
	return v.(FieldDef), true
}

// Registry owns the closed set of registered components, entity types, and
// action schemas for one engine instance. Registration order for
// components is itself part of the serialization protocol.
type Registry struct {
	components     []*ComponentDef
	componentIndex map[string]int
	entityTypes    []*EntityType
	entityTypeIdx  map[string]int
	actions        []ActionDef
	actionIndex    map[string]ActionID
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		componentIndex: make(map[string]int),
		entityTypeIdx:  make(map[string]int),
		actionIndex:    make(map[string]ActionID),
	}
}

// RegisterComponent registers a new component definition and returns it for
// fluent field declaration. Re-registering an existing name is a
// programmer error.
func (r *Registry) RegisterComponent(name string) *ComponentDef {
	if _, exists := r.componentIndex[name]; exists {
		panic("store: duplicate component " + name)
	}
	def := newComponentDef(name)
	r.componentIndex[name] = len(r.components)
	r.components = append(r.components, def)
	return def
}

// Component looks up a registered component definition by name.
func (r *Registry) Component(name string) (*ComponentDef, bool) {
	idx, ok := r.componentIndex[name]
	if !ok {
		return nil, false
	}
	return r.components[idx], true
}

// Components returns every registered component in registration order.
func (r *Registry) Components() []*ComponentDef {
	return r.components
}

func (r *Registry) componentIndexOf(name string) (int, bool) {
	idx, ok := r.componentIndex[name]
	return idx, ok
}
