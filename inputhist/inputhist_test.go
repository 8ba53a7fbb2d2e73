package inputhist

import (
	"testing"

	"driftlock/engine/fixed"
	"driftlock/engine/store"
)

func sampleAction(x int32) store.ActionSet {
	return store.ActionSet{
		0: {Kind: store.ActionScalar, Scalar: fixed.FromInt(x)},
	}
}

func TestStoreLocalThenConfirmedLookup(t *testing.T) {
	h := New(64, StrategyIdle)
	h.SetLocalClient("alice")
	h.StoreLocal(10, "alice", sampleAction(1))

	got := h.GetPredictedInput(10, "alice")
	if !got.Equal(sampleAction(1)) {
		t.Fatalf("expected stored value back, got %v", got)
	}
	if !h.IsFrameConfirmed(10) {
		t.Fatal("frame with only confirmed entries should be fully confirmed")
	}
}

func TestPredictedNeverOverwritesConfirmed(t *testing.T) {
	h := New(64, StrategyIdle)
	h.AddClient("bob")
	h.StoreLocal(5, "bob", sampleAction(9))
	h.StorePredicted(5, "bob", sampleAction(999))

	got := h.GetPredictedInput(5, "bob")
	if !got.Equal(sampleAction(9)) {
		t.Fatal("a prediction must never overwrite a confirmation (I4)")
	}
}

func TestConfirmDetectsMisprediction(t *testing.T) {
	h := New(64, StrategyIdle)
	h.AddClient("carol")
	h.StorePredicted(3, "carol", sampleAction(1))

	mispredicted := h.Confirm(3, "carol", sampleAction(2))
	if !mispredicted {
		t.Fatal("Confirm must report a misprediction when data differs")
	}
	got := h.GetPredictedInput(3, "carol")
	if !got.Equal(sampleAction(2)) {
		t.Fatal("Confirm must overwrite with the confirmed data")
	}
}

func TestConfirmNoMispredictionWhenDataMatches(t *testing.T) {
	h := New(64, StrategyIdle)
	h.AddClient("dave")
	h.StorePredicted(3, "dave", sampleAction(5))
	if h.Confirm(3, "dave", sampleAction(5)) {
		t.Fatal("Confirm must not report a misprediction when data matches")
	}
}

func TestConfirmIgnoresAlreadyConfirmed(t *testing.T) {
	h := New(64, StrategyIdle)
	h.AddClient("erin")
	h.StoreLocal(1, "erin", sampleAction(1))
	if h.Confirm(1, "erin", sampleAction(2)) {
		t.Fatal("Confirm on an already-CONFIRMED entry must report no misprediction (I4)")
	}
	got := h.GetPredictedInput(1, "erin")
	if !got.Equal(sampleAction(1)) {
		t.Fatal("an already-confirmed entry must not be overwritten by a later Confirm")
	}
}

func TestRepeatLastStrategyFillsMissingSlot(t *testing.T) {
	h := New(64, StrategyRepeatLast)
	h.AddClient("frank")
	h.StoreLocal(1, "frank", sampleAction(7))

	got := h.GetPredictedInput(2, "frank")
	if !got.Equal(sampleAction(7)) {
		t.Fatal("RepeatLast should fill a missing slot with the last known input")
	}
}

func TestIdleStrategyFillsMissingSlotWithEmpty(t *testing.T) {
	h := New(64, StrategyIdle)
	h.AddClient("gabe")
	h.StoreLocal(1, "gabe", sampleAction(7))

	got := h.GetPredictedInput(2, "gabe")
	if len(got) != 0 {
		t.Fatal("Idle strategy should fill a missing slot with an empty ActionSet")
	}
}

func TestRingBufferEvictsOnWraparound(t *testing.T) {
	// B1: writing at frame capacity evicts frame 0 since they share a slot.
	h := New(4, StrategyIdle)
	h.AddClient("hank")
	h.StoreLocal(0, "hank", sampleAction(1))
	h.StoreLocal(4, "hank", sampleAction(2))

	got := h.GetPredictedInput(0, "hank")
	if got.Equal(sampleAction(1)) {
		t.Fatal("frame 0's slot should have been evicted by frame 4's write")
	}
}

func TestClearOldNeverRegresses(t *testing.T) {
	h := New(64, StrategyIdle)
	h.ClearOld(10)
	h.ClearOld(5)
	if h.OldestFrame() != 10 {
		t.Fatalf("ClearOld must never regress oldestFrame, got %d", h.OldestFrame())
	}
}

func TestOldestUnconfirmedFindsLowestPendingFrame(t *testing.T) {
	h := New(64, StrategyIdle)
	h.AddClient("iris")
	h.StorePredicted(3, "iris", sampleAction(1))
	h.StorePredicted(7, "iris", sampleAction(1))

	frame, ok := h.OldestUnconfirmed()
	if !ok {
		t.Fatal("expected an unconfirmed frame")
	}
	if frame != 3 {
		t.Fatalf("expected lowest unconfirmed frame 3, got %d", frame)
	}
}

func TestOldestUnconfirmedEmptyWhenAllConfirmed(t *testing.T) {
	h := New(64, StrategyIdle)
	h.AddClient("jan")
	h.StoreLocal(1, "jan", sampleAction(1))

	if _, ok := h.OldestUnconfirmed(); ok {
		t.Fatal("expected no unconfirmed frame once all entries are confirmed")
	}
}

func TestActiveClientsLexicographicOrder(t *testing.T) {
	h := New(64, StrategyIdle)
	h.AddClient("charlie")
	h.AddClient("alice")
	h.AddClient("bob")

	got := h.ActiveClients()
	want := []string{"alice", "bob", "charlie"}
	if len(got) != len(want) {
		t.Fatalf("expected %d clients, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected lexicographic order %v, got %v", want, got)
		}
	}
}

func TestRemoveClientDropsFromActiveSet(t *testing.T) {
	h := New(64, StrategyIdle)
	h.AddClient("kay")
	h.RemoveClient("kay")
	if len(h.ActiveClients()) != 0 {
		t.Fatal("RemoveClient should drop the client from the active set")
	}
}

func TestResetClearsHistoryButKeepsLocalClient(t *testing.T) {
	h := New(64, StrategyIdle)
	h.SetLocalClient("leo")
	h.StoreLocal(1, "leo", sampleAction(1))
	h.Reset()

	if h.IsFrameConfirmed(1) {
		t.Fatal("Reset must clear stored frame history")
	}
	got := h.ActiveClients()
	if len(got) != 1 || got[0] != "leo" {
		t.Fatal("Reset must keep the local client registered")
	}
}

func TestFullyConfirmedFlagClearsWhenNewClientJoinsUnconfirmed(t *testing.T) {
	h := New(64, StrategyIdle)
	h.AddClient("olga")
	h.StoreLocal(1, "olga", sampleAction(1))
	if !h.IsFrameConfirmed(1) {
		t.Fatal("frame with only confirmed entries should be fully confirmed")
	}

	h.AddClient("pete")
	h.StorePredicted(1, "pete", sampleAction(0))
	if h.IsFrameConfirmed(1) {
		t.Fatal("a frame must not report fully confirmed once a newly active client has only a PREDICTED entry")
	}
}

func TestGetFrameInputsCoversAllActiveClients(t *testing.T) {
	h := New(64, StrategyIdle)
	h.AddClient("mia")
	h.AddClient("nick")
	h.StoreLocal(1, "mia", sampleAction(1))

	inputs := h.GetFrameInputs(1)
	if len(inputs) != 2 {
		t.Fatalf("expected inputs for 2 active clients, got %d", len(inputs))
	}
	if _, ok := inputs["nick"]; !ok {
		t.Fatal("expected a fallback entry for a client with no stored input")
	}
}
