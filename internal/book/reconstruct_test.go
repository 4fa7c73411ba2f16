package book

import (
	"sort"
	"testing"

	"github.com/rickgao/polymarket-data/internal/model"
)

func snapshotEvent(t *testing.T, ts int64, bids, asks LevelSet) model.Event {
	t.Helper()
	return model.Event{
		Type:      model.EventBook,
		AssetID:   "token-yes",
		Timestamp: ts,
		Bids:      bids,
		Asks:      asks,
	}
}

func deltaEvent(t *testing.T, ts int64, changes ...model.PriceChange) model.Event {
	t.Helper()
	return model.Event{
		Type:      model.EventPriceChange,
		Timestamp: ts,
		Changes:   changes,
	}
}

func change(t *testing.T, price string, side model.Side, size string) model.PriceChange {
	t.Helper()
	return model.PriceChange{
		AssetID: "token-yes",
		Price:   dec(t, price),
		Side:    side,
		Size:    dec(t, size),
	}
}

func requireSorted(t *testing.T, s LevelSet, name string) {
	t.Helper()
	sorted := sort.SliceIsSorted(s, func(i, j int) bool {
		return s[i].Price.LessThan(s[j].Price)
	})
	if !sorted {
		t.Errorf("%s not ascending by price: %v", name, s)
	}
	for i := 1; i < len(s); i++ {
		if s[i].Price.Equal(s[i-1].Price) {
			t.Errorf("%s has duplicate price %s", name, s[i].Price)
		}
	}
	for _, lvl := range s {
		if lvl.Size.IsZero() || lvl.Size.IsNegative() {
			t.Errorf("%s has non-positive size at %s: %s", name, lvl.Price, lvl.Size)
		}
	}
}

func statesEqual(a, b State) bool {
	if a.Timestamp != b.Timestamp || len(a.Bids) != len(b.Bids) || len(a.Asks) != len(b.Asks) {
		return false
	}
	for i := range a.Bids {
		if !a.Bids[i].Price.Equal(b.Bids[i].Price) || !a.Bids[i].Size.Equal(b.Bids[i].Size) {
			return false
		}
	}
	for i := range a.Asks {
		if !a.Asks[i].Price.Equal(b.Asks[i].Price) || !a.Asks[i].Size.Equal(b.Asks[i].Size) {
			return false
		}
	}
	return true
}

func TestApply_SnapshotFromAbsent(t *testing.T) {
	// Wire sends levels unsorted.
	ev := snapshotEvent(t, 1000,
		levels(t, "0.50", "10", "0.40", "20"),
		levels(t, "0.70", "5", "0.60", "15"),
	)

	state, err := Apply(NoPrior(), ev)
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	requireSorted(t, state.Bids, "bids")
	requireSorted(t, state.Asks, "asks")
	if state.Timestamp != 1000 {
		t.Errorf("Timestamp = %d, want 1000", state.Timestamp)
	}
	if state.Bids[0].Price.String() != "0.4" {
		t.Errorf("Bids[0].Price = %s, want 0.4", state.Bids[0].Price)
	}
	if state.Asks[0].Price.String() != "0.6" {
		t.Errorf("Asks[0].Price = %s, want 0.6", state.Asks[0].Price)
	}
}

func TestApply_SnapshotIdempotent(t *testing.T) {
	ev := snapshotEvent(t, 1000,
		levels(t, "0.50", "10", "0.40", "20"),
		levels(t, "0.60", "15"),
	)

	first, err := Apply(NoPrior(), ev)
	if err != nil {
		t.Fatalf("first Apply failed: %v", err)
	}
	second, err := Apply(NoPrior(), ev)
	if err != nil {
		t.Fatalf("second Apply failed: %v", err)
	}

	if !statesEqual(first, second) {
		t.Errorf("states differ:\nfirst  = %+v\nsecond = %+v", first, second)
	}
}

func TestApply_SnapshotIgnoresPrior(t *testing.T) {
	prior := PriorOf(State{
		Bids:      levels(t, "0.10", "999"),
		Asks:      levels(t, "0.90", "999"),
		Timestamp: 500,
	})
	ev := snapshotEvent(t, 1000, levels(t, "0.40", "20"), levels(t, "0.60", "15"))

	state, err := Apply(prior, ev)
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	if len(state.Bids) != 1 || state.Bids[0].Price.String() != "0.4" {
		t.Errorf("Bids = %v, want single level at 0.4", state.Bids)
	}
}

func TestApply_DeltaWithoutPrior(t *testing.T) {
	ev := deltaEvent(t, 1000, change(t, "0.50", model.SideBuy, "10"))

	_, err := Apply(NoPrior(), ev)
	if err != ErrNoPriorState {
		t.Errorf("err = %v, want ErrNoPriorState", err)
	}
}

func TestApply_DeltaSameSideOverwrite(t *testing.T) {
	prior := PriorOf(State{
		Bids: levels(t, "0.40", "20", "0.50", "30"),
		Asks: levels(t, "0.60", "15"),
	})
	ev := deltaEvent(t, 2000, change(t, "0.50", model.SideBuy, "55"))

	state, err := Apply(prior, ev)
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	i, ok := state.Bids.find(dec(t, "0.50"))
	if !ok {
		t.Fatal("bid level at 0.50 missing")
	}
	if !state.Bids[i].Size.Equal(dec(t, "55")) {
		t.Errorf("Size = %s, want 55", state.Bids[i].Size)
	}
}

func TestApply_DeltaZeroSizeRemoves(t *testing.T) {
	prior := PriorOf(State{
		Bids: levels(t, "0.40", "20", "0.50", "30"),
		Asks: levels(t, "0.60", "15"),
	})
	ev := deltaEvent(t, 2000, change(t, "0.50", model.SideBuy, "0"))

	state, err := Apply(prior, ev)
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if _, ok := state.Bids.find(dec(t, "0.50")); ok {
		t.Error("bid level at 0.50 should be removed")
	}

	// Re-applying the same removal is a no-op: no zero-size level appears.
	again, err := Apply(PriorOf(state), ev)
	if err != nil {
		t.Fatalf("second Apply failed: %v", err)
	}
	if !statesEqual(State{Bids: state.Bids, Asks: state.Asks, Timestamp: 2000}, again) {
		t.Errorf("re-applied removal changed state:\nbefore = %+v\nafter  = %+v", state, again)
	}
	requireSorted(t, again.Bids, "bids")
}

func TestApply_OppositeSideInference(t *testing.T) {
	// Buy at a price resting on the ask side shrinks the ask: the level
	// doubles as residual capacity on the complementary outcome.
	prior := PriorOf(State{
		Asks: levels(t, "0.40", "100"),
	})
	ev := deltaEvent(t, 2000, change(t, "0.40", model.SideBuy, "30"))

	state, err := Apply(prior, ev)
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	i, ok := state.Asks.find(dec(t, "0.40"))
	if !ok {
		t.Fatal("ask level at 0.40 missing")
	}
	if !state.Asks[i].Size.Equal(dec(t, "70")) {
		t.Errorf("ask size = %s, want 70", state.Asks[i].Size)
	}
	if len(state.Bids) != 0 {
		t.Errorf("bids = %v, want none (opposite side matched, no fallback)", state.Bids)
	}
}

func TestApply_OppositeSideExactConsumption(t *testing.T) {
	prior := PriorOf(State{
		Asks: levels(t, "0.40", "30"),
	})
	ev := deltaEvent(t, 2000, change(t, "0.40", model.SideBuy, "30"))

	state, err := Apply(prior, ev)
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	if len(state.Asks) != 0 {
		t.Errorf("asks = %v, want empty (exact consumption removes level)", state.Asks)
	}
	if len(state.Bids) != 0 {
		t.Errorf("bids = %v, want empty", state.Bids)
	}
}

func TestApply_Spill(t *testing.T) {
	prior := PriorOf(State{
		Asks: levels(t, "0.40", "20"),
	})
	ev := deltaEvent(t, 2000, change(t, "0.40", model.SideBuy, "30"))

	state, err := Apply(prior, ev)
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	if len(state.Asks) != 0 {
		t.Errorf("asks = %v, want empty (consumed by spill)", state.Asks)
	}
	i, ok := state.Bids.find(dec(t, "0.40"))
	if !ok {
		t.Fatal("spilled bid level at 0.40 missing")
	}
	if !state.Bids[i].Size.Equal(dec(t, "10")) {
		t.Errorf("spilled size = %s, want 10", state.Bids[i].Size)
	}
}

func TestApply_SpillRoundsNoise(t *testing.T) {
	// Float-derived noise in sizes is absorbed by 3-place rounding.
	prior := PriorOf(State{
		Asks: levels(t, "0.40", "30.0000001"),
	})
	ev := deltaEvent(t, 2000, change(t, "0.40", model.SideBuy, "30"))

	state, err := Apply(prior, ev)
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	if len(state.Asks) != 0 {
		t.Errorf("asks = %v, want empty (diff rounds to zero)", state.Asks)
	}
}

func TestApply_FallbackInsertion(t *testing.T) {
	prior := PriorOf(State{
		Bids: levels(t, "0.40", "20"),
		Asks: levels(t, "0.60", "15"),
	})
	ev := deltaEvent(t, 2000, change(t, "0.55", model.SideBuy, "15"))

	state, err := Apply(prior, ev)
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	i, ok := state.Bids.find(dec(t, "0.55"))
	if !ok {
		t.Fatal("fallback bid level at 0.55 missing")
	}
	if !state.Bids[i].Size.Equal(dec(t, "15")) {
		t.Errorf("Size = %s, want 15", state.Bids[i].Size)
	}
	if _, ok := state.Asks.find(dec(t, "0.55")); ok {
		t.Error("0.55 should not appear on the ask side")
	}
}

func TestApply_SellSideDelta(t *testing.T) {
	prior := PriorOf(State{
		Bids: levels(t, "0.45", "50"),
		Asks: levels(t, "0.60", "15"),
	})
	// Sell at a price resting on the bid side: inference runs mirrored.
	ev := deltaEvent(t, 2000, change(t, "0.45", model.SideSell, "20"))

	state, err := Apply(prior, ev)
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	i, ok := state.Bids.find(dec(t, "0.45"))
	if !ok {
		t.Fatal("bid level at 0.45 missing")
	}
	if !state.Bids[i].Size.Equal(dec(t, "30")) {
		t.Errorf("bid size = %s, want 30 (50 - 20)", state.Bids[i].Size)
	}
}

func TestApply_CopyOnWrite(t *testing.T) {
	prior := State{
		Bids:      levels(t, "0.40", "20"),
		Asks:      levels(t, "0.60", "15"),
		Timestamp: 1000,
	}
	ev := deltaEvent(t, 2000, change(t, "0.40", model.SideBuy, "99"))

	if _, err := Apply(PriorOf(prior), ev); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	// Prior state must remain valid for historical indexing.
	if !prior.Bids[0].Size.Equal(dec(t, "20")) {
		t.Errorf("prior bid size = %s, want 20 (mutated in place)", prior.Bids[0].Size)
	}
}

func TestApply_CrossedBookTolerated(t *testing.T) {
	// Crossed books are feed artifacts, surfaced as-is.
	prior := PriorOf(State{
		Bids: levels(t, "0.70", "10"),
		Asks: levels(t, "0.60", "15"),
	})
	ev := deltaEvent(t, 2000, change(t, "0.75", model.SideBuy, "5"))

	state, err := Apply(prior, ev)
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	bid, err := state.BestBid()
	if err != nil {
		t.Fatalf("BestBid failed: %v", err)
	}
	ask, err := state.BestAsk()
	if err != nil {
		t.Fatalf("BestAsk failed: %v", err)
	}
	if !bid.Price.GreaterThan(ask.Price) {
		t.Errorf("expected crossed book, bid %s vs ask %s", bid.Price, ask.Price)
	}
}

func TestApply_MultipleChangesInOrder(t *testing.T) {
	prior := PriorOf(State{
		Asks: levels(t, "0.40", "100"),
	})
	// Two changes on the same price in one event: the second sees the
	// first's effect.
	ev := deltaEvent(t, 2000,
		change(t, "0.40", model.SideBuy, "30"),  // ask shrinks to 70
		change(t, "0.40", model.SideBuy, "70"),  // consumes the rest
		change(t, "0.50", model.SideSell, "12"), // fallback ask insert
	)

	state, err := Apply(prior, ev)
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	if _, ok := state.Asks.find(dec(t, "0.40")); ok {
		t.Error("ask level at 0.40 should be fully consumed")
	}
	i, ok := state.Asks.find(dec(t, "0.50"))
	if !ok {
		t.Fatal("ask level at 0.50 missing")
	}
	if !state.Asks[i].Size.Equal(dec(t, "12")) {
		t.Errorf("ask size = %s, want 12", state.Asks[i].Size)
	}
	requireSorted(t, state.Bids, "bids")
	requireSorted(t, state.Asks, "asks")
}

func TestApply_NonMutatingEventRejected(t *testing.T) {
	ev := model.Event{Type: model.EventTickSizeChange, AssetID: "token-yes", Timestamp: 1000}

	if _, err := Apply(NoPrior(), ev); err == nil {
		t.Error("expected error for non-book-mutating event type")
	}
}
