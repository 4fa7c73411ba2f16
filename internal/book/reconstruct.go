package book

import (
	"fmt"

	"github.com/rickgao/polymarket-data/internal/model"
)

// sizeDiffPlaces is the rounding applied to opposite-side size arithmetic.
// The feed encodes sizes as decimal strings but upstream producers emit
// float-derived noise past three places.
const sizeDiffPlaces = 3

// Apply folds one event into a new State. It is pure and synchronous: safe
// to call concurrently for independent instruments, order-dependent within
// one instrument.
//
// For price_change events the caller must have narrowed ev.Changes to a
// single instrument (Event.ChangesFor); a book snapshot replaces the prior
// state outright and is the only transition out of the absent variant.
func Apply(prior Prior, ev model.Event) (State, error) {
	switch ev.Type {
	case model.EventBook:
		return applySnapshot(ev), nil
	case model.EventPriceChange:
		return applyDelta(prior, ev)
	default:
		return State{}, fmt.Errorf("event type %q is not book-mutating", ev.Type)
	}
}

// applySnapshot builds a fresh state from a full book event. The prior
// state is ignored entirely; the wire sends levels unsorted.
func applySnapshot(ev model.Event) State {
	bids := make(LevelSet, len(ev.Bids))
	copy(bids, ev.Bids)
	asks := make(LevelSet, len(ev.Asks))
	copy(asks, ev.Asks)
	bids.Sort()
	asks.Sort()

	return State{Bids: bids, Asks: asks, Timestamp: ev.Timestamp}
}

// applyDelta applies per-price absolute size changes on top of the prior
// state. Each change runs up to three steps: same-side update, opposite-side
// inference, and a fallback insert when neither side held the price.
func applyDelta(prior Prior, ev model.Event) (State, error) {
	base, ok := prior.State()
	if !ok {
		return State{}, ErrNoPriorState
	}

	bids := base.Bids.Clone()
	asks := base.Asks.Clone()

	for _, c := range ev.Changes {
		same, opp := &bids, &asks
		if c.Side == model.SideSell {
			same, opp = &asks, &bids
		}

		updated := false

		// Same-side update: zero size removes the level, otherwise the new
		// absolute size overwrites it. A missing level is not inserted here;
		// that happens in the fallback only when the opposite side missed too.
		if i, found := same.find(c.Price); found {
			if c.Size.IsZero() {
				same.removeAt(i)
			} else {
				(*same)[i].Size = c.Size
			}
			updated = true
		}

		// Opposite-side inference: the level at this price also represents
		// residual capacity on the complementary outcome.
		if i, found := opp.find(c.Price); found {
			diff := (*opp)[i].Size.Sub(c.Size).Round(sizeDiffPlaces)
			switch {
			case diff.IsZero():
				opp.removeAt(i)
			case diff.IsPositive():
				(*opp)[i].Size = diff
			default:
				// The requested size exceeds the opposite side's resting
				// size: the opposite level is consumed entirely and the
				// remainder spills onto the requested side.
				opp.removeAt(i)
				same.Upsert(c.Price, diff.Neg())
			}
			updated = true
		}

		// Fallback insert when neither side held the price. A zero size
		// targets a level that is already gone; inserting it would plant an
		// empty level, so removal stays idempotent instead.
		if !updated && !c.Size.IsZero() {
			same.Upsert(c.Price, c.Size)
		}
	}

	bids.Sort()
	asks.Sort()

	return State{Bids: bids, Asks: asks, Timestamp: ev.Timestamp}, nil
}
