package store

// column is one field's contiguous storage, one slot per entity index,
// addressed by entity index. Internally every scalar width
// is stored as its 32-bit canonical bit pattern; Value narrows to the
// declared width on read, and wire serialization packs only the declared
// byte width
type column struct {
	typ  ScalarType
	data []uint32
}

func newColumn(typ ScalarType, capacity uint32, def Value) *column {
	c := &column{typ: typ, data: make([]uint32, capacity)}
	for i := range c.data {
		c.data[i] = def.raw
	}
	return c
}

func (c *column) get(index uint32) Value {
	return Value{typ: c.typ, raw: c.data[index]}
}

func (c *column) set(index uint32, v Value) {
	c.data[index] = v.raw
}

func (c *column) setDefault(index uint32, def Value) {
	c.data[index] = def.raw
}

// componentColumns holds one column per declared field of a component,
// indexed positionally to match ComponentDef.Fields() order.
type componentColumns struct {
	def     *ComponentDef
	columns []*column
	// present marks, per entity index, whether the entity currently has
	// this component.
	present []bool
}

func newComponentColumns(def *ComponentDef, capacity uint32) *componentColumns {
	fields := def.Fields()
	cc := &componentColumns{
		def:     def,
		columns: make([]*column, len(fields)),
		present: make([]bool, capacity),
	}
	for i, f := range fields {
		cc.columns[i] = newColumn(f.Type, capacity, f.Default)
	}
	return cc
}

func (cc *componentColumns) addSlot(index uint32, overrides map[string]Value) {
	cc.present[index] = true
	fields := cc.def.Fields()
	for i, f := range fields {
		if ov, ok := overrides[f.Name]; ok {
			cc.columns[i].set(index, ov)
		} else {
			cc.columns[i].setDefault(index, f.Default)
		}
	}
}

func (cc *componentColumns) removeSlot(index uint32) {
	cc.present[index] = false
}
