package schema

import (
	"testing"

	"driftlock/engine/store"
)

func buildTestRegistry() *store.Registry {
	reg := store.NewRegistry()
	pos := reg.RegisterComponent("Position")
	pos.AddField("x", store.ScalarI32, store.I32(0))
	pos.AddField("y", store.ScalarI32, store.I32(0))
	reg.DefineEntity("Player").With("Position", nil).WithClientID().Register()
	reg.RegisterActionSchema("move", store.ActionVector)
	return reg
}

func TestBuildDocumentReflectsRegisteredDefinitions(t *testing.T) {
	doc := BuildDocument(buildTestRegistry())

	if len(doc.Components) != 1 || doc.Components[0].Name != "Position" {
		t.Fatalf("expected one Position component, got %+v", doc.Components)
	}
	if len(doc.Components[0].Fields) != 2 {
		t.Fatalf("expected 2 fields, got %d", len(doc.Components[0].Fields))
	}
	if len(doc.EntityTypes) != 1 || !doc.EntityTypes[0].HasClientID {
		t.Fatalf("expected one client-bearing entity type, got %+v", doc.EntityTypes)
	}
	if len(doc.Actions) != 1 || doc.Actions[0].Kind != "vector" {
		t.Fatalf("expected one vector action, got %+v", doc.Actions)
	}
}

func TestBuildSchemaProducesNonEmptyDocument(t *testing.T) {
	s := BuildSchema()
	if s.Title == "" {
		t.Fatal("expected a schema title")
	}
	if s.Description == "" {
		t.Fatal("expected a schema description")
	}
}
