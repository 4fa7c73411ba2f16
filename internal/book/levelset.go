package book

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/rickgao/polymarket-data/internal/model"
)

// LevelSet is one side of an instrument's book: price levels kept ascending
// by price, at most one level per distinct price, sizes always positive
// (absence represents zero).
//
// Per-instrument depth is small (tens of levels), so operations are linear
// scans; re-sorting after a batch of changes is cheap and removes any
// ordering ambiguity at the edges.
type LevelSet []model.PriceLevel

// find returns the index of the level at exactly price.
func (s LevelSet) find(price decimal.Decimal) (int, bool) {
	for i, lvl := range s {
		if lvl.Price.Equal(price) {
			return i, true
		}
	}
	return 0, false
}

// Upsert replaces the size of the level at price, or inserts a new level,
// keeping ascending-price order.
func (s *LevelSet) Upsert(price, size decimal.Decimal) {
	if i, ok := s.find(price); ok {
		(*s)[i].Size = size
		return
	}
	*s = append(*s, model.PriceLevel{Price: price, Size: size})
	s.Sort()
}

// Remove deletes the level at price if present; no-op otherwise.
func (s *LevelSet) Remove(price decimal.Decimal) {
	if i, ok := s.find(price); ok {
		s.removeAt(i)
	}
}

func (s *LevelSet) removeAt(i int) {
	*s = append((*s)[:i], (*s)[i+1:]...)
}

// BestBid returns the highest-priced level. Fails with ErrEmptySide when
// the set has zero levels.
func (s LevelSet) BestBid() (model.PriceLevel, error) {
	if len(s) == 0 {
		return model.PriceLevel{}, ErrEmptySide
	}
	return s[len(s)-1], nil
}

// BestAsk returns the lowest-priced level. Fails with ErrEmptySide when
// the set has zero levels.
func (s LevelSet) BestAsk() (model.PriceLevel, error) {
	if len(s) == 0 {
		return model.PriceLevel{}, ErrEmptySide
	}
	return s[0], nil
}

// Clone returns an independent copy. Apply works on clones so that retained
// historical states remain valid after later updates.
func (s LevelSet) Clone() LevelSet {
	if s == nil {
		return nil
	}
	out := make(LevelSet, len(s))
	copy(out, s)
	return out
}

// Sort restores ascending-price order.
func (s LevelSet) Sort() {
	sort.Slice(s, func(i, j int) bool {
		return s[i].Price.LessThan(s[j].Price)
	})
}
