package syncengine

import (
	"testing"

	"driftlock/engine/store"
)

func TestStateMachineInitialToActiveOnFirstMatch(t *testing.T) {
	e := New("p1", DefaultConfig())
	if e.State() != StateInitial {
		t.Fatal("engine must start in Initial")
	}
	e.ReceiveMajorityHash(1, 42, 42)
	if e.State() != StateActive {
		t.Fatalf("expected Active after first match, got %v", e.State())
	}
}

func TestStateMachineActiveToDriftOnSingleMismatch(t *testing.T) {
	e := New("p1", DefaultConfig())
	e.ReceiveMajorityHash(1, 1, 1)
	e.ReceiveMajorityHash(2, 1, 2)
	if e.State() != StateDrift {
		t.Fatalf("expected Drift after a single mismatch, got %v", e.State())
	}
}

func TestStateMachineDriftToDesyncOnConsecutiveThreshold(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ConsecutiveMismatchThreshold = 3
	e := New("p1", cfg)
	e.ReceiveMajorityHash(1, 1, 1) // -> Active
	e.ReceiveMajorityHash(2, 1, 2) // -> Drift, consecutive=1
	e.ReceiveMajorityHash(3, 1, 2) // consecutive=2
	if e.State() != StateDrift {
		t.Fatalf("expected still Drift at consecutive=2, got %v", e.State())
	}
	e.ReceiveMajorityHash(4, 1, 2) // consecutive=3 -> Desync
	if e.State() != StateDesync {
		t.Fatalf("expected Desync once consecutive mismatches reach threshold, got %v", e.State())
	}
}

func TestMatchResetsConsecutiveMismatchCounter(t *testing.T) {
	e := New("p1", DefaultConfig())
	e.ReceiveMajorityHash(1, 1, 1)
	e.ReceiveMajorityHash(2, 1, 2)
	e.ReceiveMajorityHash(3, 1, 1)
	if e.Stats().ConsecutiveMismatch != 0 {
		t.Fatal("a match must reset the consecutive mismatch counter")
	}
}

func TestRequestResyncOnlyFromDesync(t *testing.T) {
	e := New("p1", DefaultConfig())
	if e.RequestResync() {
		t.Fatal("RequestResync must be a no-op outside Desync")
	}
	cfg := DefaultConfig()
	cfg.ConsecutiveMismatchThreshold = 1
	e2 := New("p1", cfg)
	e2.ReceiveMajorityHash(1, 1, 1)
	e2.ReceiveMajorityHash(2, 1, 2)
	if e2.State() != StateDesync {
		t.Fatalf("expected Desync, got %v", e2.State())
	}
	if !e2.RequestResync() {
		t.Fatal("RequestResync must succeed from Desync")
	}
	if e2.State() != StateResyncing {
		t.Fatalf("expected Resyncing, got %v", e2.State())
	}
}

func TestResyncingReturnsToActiveOnMatch(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ConsecutiveMismatchThreshold = 1
	e := New("p1", cfg)
	e.ReceiveMajorityHash(1, 1, 1)
	e.ReceiveMajorityHash(2, 1, 2)
	e.RequestResync()
	e.ReceiveMajorityHash(3, 5, 5)
	if e.State() != StateActive {
		t.Fatalf("expected Resyncing to return to Active on the next match, got %v", e.State())
	}
}

func TestAuthorityIsLowestSortedActiveClientID(t *testing.T) {
	e := New("p2", DefaultConfig())
	e.SetActiveClients([]store.ClientID{"p3", "p1", "p2"})
	auth, ok := e.Authority()
	if !ok || auth != "p1" {
		t.Fatalf("expected authority p1, got %v ok=%v", auth, ok)
	}
	if e.IsAuthority() {
		t.Fatal("p2 is not the authority here")
	}
}

func TestPassPercentageOverRollingWindow(t *testing.T) {
	cfg := DefaultConfig()
	cfg.HashWindow = 4
	e := New("p1", cfg)
	e.ReceiveMajorityHash(1, 1, 1)
	e.ReceiveMajorityHash(2, 1, 1)
	e.ReceiveMajorityHash(3, 1, 2)
	e.ReceiveMajorityHash(4, 1, 1)
	if got := e.PassPercentage(); got != 0.75 {
		t.Fatalf("expected pass percentage 0.75, got %v", got)
	}
}

func TestDiagnoseReportsFieldLevelDivergence(t *testing.T) {
	reg := store.NewRegistry()
	transform := reg.RegisterComponent("Transform2D")
	transform.AddField("x", store.ScalarI32, store.I32(0))
	reg.DefineEntity("food").With("Transform2D", nil).Register()

	local := &store.Snapshot{
		Entities:   []store.EntityRecord{{ID: 1, TypeIndex: 0, ClientIDInterned: -1}},
		ColumnData: [][][]uint32{{{10}}},
	}
	authority := &store.Snapshot{
		Entities:   []store.EntityRecord{{ID: 1, TypeIndex: 0, ClientIDInterned: -1}},
		ColumnData: [][][]uint32{{{20}}},
	}

	e := New("p1", DefaultConfig())
	diag := e.Diagnose(5, reg, local, authority, nil)
	if len(diag.FieldDiffs) != 1 {
		t.Fatalf("expected 1 field diff, got %d", len(diag.FieldDiffs))
	}
	d := diag.FieldDiffs[0]
	if d.Component != "Transform2D" || d.Field != "x" {
		t.Fatalf("unexpected diff location: %+v", d)
	}
	if d.LocalValue.AsI32() != 10 || d.AuthorityValue.AsI32() != 20 {
		t.Fatalf("unexpected diff values: %+v", d)
	}
}

func TestDiagnoseFlagsAbsentEntity(t *testing.T) {
	reg := store.NewRegistry()
	transform := reg.RegisterComponent("Transform2D")
	transform.AddField("x", store.ScalarI32, store.I32(0))
	reg.DefineEntity("food").With("Transform2D", nil).Register()

	local := &store.Snapshot{
		Entities:   []store.EntityRecord{{ID: 1, TypeIndex: 0, ClientIDInterned: -1}},
		ColumnData: [][][]uint32{{{10}}},
	}
	authority := &store.Snapshot{
		Entities:   []store.EntityRecord{},
		ColumnData: [][][]uint32{{{}}},
	}

	e := New("p1", DefaultConfig())
	diag := e.Diagnose(5, reg, local, authority, nil)
	if len(diag.FieldDiffs) != 1 || !diag.FieldDiffs[0].AuthorityAbsent {
		t.Fatalf("expected a single authority-absent diff, got %+v", diag.FieldDiffs)
	}
}
