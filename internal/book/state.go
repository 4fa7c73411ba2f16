package book

import "github.com/rickgao/polymarket-data/internal/model"

// State is an instrument's full two-sided book at one point in the event
// stream. States are values: Apply never mutates its input, so a retained
// State stays valid regardless of later updates.
//
// Crossed or locked books (best bid >= best ask) are valid transient
// artifacts of the source feed and are surfaced as-is.
type State struct {
	Bids      LevelSet
	Asks      LevelSet
	Timestamp int64 // milliseconds, from the event that produced this state
}

// BestBid returns the highest bid level.
func (s State) BestBid() (model.PriceLevel, error) {
	return s.Bids.BestBid()
}

// BestAsk returns the lowest ask level.
func (s State) BestAsk() (model.PriceLevel, error) {
	return s.Asks.BestAsk()
}

// Prior is the tagged prior-state variant threaded through Apply: either
// absent (no snapshot seen yet for the instrument) or a concrete State.
// The zero value is absent.
type Prior struct {
	state   State
	present bool
}

// NoPrior returns the absent variant.
func NoPrior() Prior {
	return Prior{}
}

// PriorOf wraps a concrete state.
func PriorOf(s State) Prior {
	return Prior{state: s, present: true}
}

// Absent reports whether no state exists yet.
func (p Prior) Absent() bool {
	return !p.present
}

// State returns the wrapped state and whether one is present.
func (p Prior) State() (State, bool) {
	return p.state, p.present
}
