package book

import "errors"

var (
	// ErrEmptySide is returned by best-price queries against a side with
	// zero levels.
	ErrEmptySide = errors.New("book side has no levels")

	// ErrEmptyBook is returned by queries against the absent state, before
	// any snapshot has been seen for the instrument.
	ErrEmptyBook = errors.New("book has no state yet")

	// ErrNoPriorState is returned when a delta event arrives while the
	// instrument's state is absent. A snapshot must precede any delta.
	ErrNoPriorState = errors.New("delta event requires a prior book state")

	// ErrUnknownAsset is returned by queries for an asset ID that has never
	// appeared in the event stream.
	ErrUnknownAsset = errors.New("unknown asset id")
)
