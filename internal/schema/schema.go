// Package schema generates machine-readable JSON Schema documents for a
// registered store.Registry: a DTO shape mirroring the runtime
// registration types, reflected into a JSON Schema document via
// github.com/invopop/jsonschema for editor tooling and validation.
package schema

import (
	"driftlock/engine/store"

	"github.com/invopop/jsonschema"
)

// FieldDoc mirrors store.FieldDef for schema reflection.
type FieldDoc struct {
	Name    string `json:"name" jsonschema:"description=Field name within its component"`
	Type    string `json:"type" jsonschema:"description=Declared scalar type"`
	Default uint32 `json:"default" jsonschema:"description=Default raw value applied when an entity type does not override this field"`
}

// ComponentDoc mirrors store.ComponentDef for schema reflection.
type ComponentDoc struct {
	Name   string     `json:"name" jsonschema:"description=Component name, unique within the registry"`
	Fields []FieldDoc `json:"fields" jsonschema:"description=Fields in declared order; order is part of the wire protocol"`
}

// EntityTypeDoc mirrors store.EntityType for schema reflection.
type EntityTypeDoc struct {
	Name        string   `json:"name" jsonschema:"description=Entity type name, unique within the registry"`
	Components  []string `json:"components" jsonschema:"description=Component names attached to this entity type"`
	SyncNone    bool     `json:"syncNone" jsonschema:"description=If true, entities of this type are excluded from snapshots and the state hash"`
	HasClientID bool     `json:"hasClientId" jsonschema:"description=If true, entities of this type carry a participant identity"`
}

// ActionDoc mirrors store.ActionDef for schema reflection.
type ActionDoc struct {
	Name string `json:"name" jsonschema:"description=Action name as declared at registration"`
	Kind string `json:"kind" jsonschema:"enum=scalar,enum=vector,enum=button,description=Shape of the action's value"`
}

// RegistryDocument is the full JSON representation of one store.Registry:
// every registered component, entity type, and action schema, in
// registration order.
type RegistryDocument struct {
	Components  []ComponentDoc  `json:"components"`
	EntityTypes []EntityTypeDoc `json:"entityTypes"`
	Actions     []ActionDoc     `json:"actions"`
}

// BuildDocument converts a live Registry into its JSON-serializable DTO
// form.
func BuildDocument(reg *store.Registry) *RegistryDocument {
	doc := &RegistryDocument{}

	for _, def := range reg.Components() {
		fields := def.Fields()
		fd := make([]FieldDoc, len(fields))
		for i, f := range fields {
			fd[i] = FieldDoc{Name: f.Name, Type: f.Type.String(), Default: f.Default.Raw()}
		}
		doc.Components = append(doc.Components, ComponentDoc{Name: def.Name, Fields: fd})
	}

	for _, et := range reg.EntityTypes() {
		doc.EntityTypes = append(doc.EntityTypes, EntityTypeDoc{
			Name:        et.Name,
			Components:  append([]string(nil), et.Components...),
			SyncNone:    et.SyncNone,
			HasClientID: et.HasClientID,
		})
	}

	for _, a := range reg.Actions() {
		doc.Actions = append(doc.Actions, ActionDoc{Name: a.Name, Kind: actionKindString(a.Kind)})
	}

	return doc
}

func actionKindString(k store.ActionKind) string {
	switch k {
	case store.ActionScalar:
		return "scalar"
	case store.ActionVector:
		return "vector"
	case store.ActionButton:
		return "button"
	default:
		return "unknown"
	}
}

// BuildSchema reflects RegistryDocument's Go type into a JSON Schema
// document.
func BuildSchema() *jsonschema.Schema {
	reflector := jsonschema.Reflector{AllowAdditionalProperties: true}
	s := reflector.Reflect(new(RegistryDocument))
	s.Title = "Driftlock Registry"
	s.Description = "Describes the components, entity types, and action schemas registered with one engine Session"
	return s
}
