package series

import (
	"errors"
	"fmt"
	"sort"

	"github.com/rickgao/polymarket-data/internal/book"
	"github.com/rickgao/polymarket-data/internal/model"
)

// ErrIndexOutOfRange is returned by indexed queries outside [-Len, Len).
var ErrIndexOutOfRange = errors.New("series index out of range")

// Series is a replayed book history for one instrument. Index 0 is always
// the absent marker; index i > 0 is the state after folding the i-th
// retained event.
type Series struct {
	assetID string
	all     []model.Event // full filtered log, kept for ResetFrom
	events  []model.Event // active window of the log
	states  []book.Prior
}

// Build folds an ordered event log into a Series. Events are filtered to
// the given asset and to book-mutating kinds before folding; multi-asset
// price_change events are narrowed to the asset's own changes. A delta
// preceding the first snapshot fails the build: the caller must ensure the
// log starts with a snapshot for the instrument.
func Build(assetID string, events []model.Event) (*Series, error) {
	filtered := filterLog(assetID, events)

	s := &Series{
		assetID: assetID,
		all:     filtered,
	}
	if err := s.fold(filtered); err != nil {
		return nil, err
	}
	return s, nil
}

// filterLog keeps book-mutating events touching assetID, narrowing
// price_change events to the asset's own changes in wire order.
func filterLog(assetID string, events []model.Event) []model.Event {
	var out []model.Event
	for _, ev := range events {
		if !ev.Type.BookMutating() {
			continue
		}
		if ev.Type == model.EventPriceChange {
			changes := ev.ChangesFor(assetID)
			if len(changes) == 0 {
				continue
			}
			narrowed := ev
			narrowed.AssetID = assetID
			narrowed.Changes = changes
			out = append(out, narrowed)
			continue
		}
		if ev.AssetID == assetID {
			out = append(out, ev)
		}
	}
	return out
}

// fold replays events from the absent state, retaining every result.
func (s *Series) fold(events []model.Event) error {
	states := make([]book.Prior, 1, len(events)+1)
	states[0] = book.NoPrior()

	for i, ev := range events {
		next, err := book.Apply(states[len(states)-1], ev)
		if err != nil {
			return fmt.Errorf("replay %s event %d: %w", s.assetID, i, err)
		}
		states = append(states, book.PriorOf(next))
	}

	s.events = events
	s.states = states
	return nil
}

// Len returns the number of retained states, absent marker included.
func (s *Series) Len() int {
	return len(s.states)
}

// StateAt returns the state at index. Negative indices count from the end,
// so -1 is the state after the full log. The absent marker at index 0
// fails with book.ErrEmptyBook.
func (s *Series) StateAt(index int) (book.State, error) {
	i, err := s.resolve(index)
	if err != nil {
		return book.State{}, err
	}
	state, ok := s.states[i].State()
	if !ok {
		return book.State{}, book.ErrEmptyBook
	}
	return state, nil
}

// StateAtTime returns the latest state whose event timestamp is at or
// before ts. Fails with book.ErrEmptyBook when ts precedes the first event.
func (s *Series) StateAtTime(ts int64) (book.State, error) {
	// states[1:] are ordered by event timestamp; find the last one <= ts.
	n := sort.Search(len(s.events), func(i int) bool {
		return s.events[i].Timestamp > ts
	})
	if n == 0 {
		return book.State{}, book.ErrEmptyBook
	}
	state, _ := s.states[n].State()
	return state, nil
}

// BestBidAt returns the best bid of the state at index.
func (s *Series) BestBidAt(index int) (model.PriceLevel, error) {
	state, err := s.StateAt(index)
	if err != nil {
		return model.PriceLevel{}, err
	}
	return state.BestBid()
}

// BestAskAt returns the best ask of the state at index.
func (s *Series) BestAskAt(index int) (model.PriceLevel, error) {
	state, err := s.StateAt(index)
	if err != nil {
		return model.PriceLevel{}, err
	}
	return state.BestAsk()
}

// ResetFrom refolds the series over the suffix of the log starting at the
// first event whose timestamp is >= ts. Prices resting before the resume
// point are not reconstructed; that is the explicit fidelity tradeoff of
// partial replay, surfaced to the caller rather than hidden. The suffix
// must still begin with a snapshot or the refold fails.
func (s *Series) ResetFrom(ts int64) error {
	start := sort.Search(len(s.all), func(i int) bool {
		return s.all[i].Timestamp >= ts
	})
	return s.fold(s.all[start:])
}

// AssetID returns the instrument this series replays.
func (s *Series) AssetID() string {
	return s.assetID
}

// resolve maps a possibly-negative index into s.states.
func (s *Series) resolve(index int) (int, error) {
	n := len(s.states)
	i := index
	if i < 0 {
		i += n
	}
	if i < 0 || i >= n {
		return 0, fmt.Errorf("%w: %d (len %d)", ErrIndexOutOfRange, index, n)
	}
	return i, nil
}
