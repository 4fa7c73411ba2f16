package engine

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/rickgao/polymarket-data/internal/book"
	"github.com/rickgao/polymarket-data/internal/model"
	"github.com/rickgao/polymarket-data/internal/router"
)

// Engine consumes normalized book-mutating events and answers queries
// against the current state of every tracked instrument.
type Engine interface {
	// Start begins consuming events from the book queue.
	Start(ctx context.Context) error

	// Stop waits for the consumer to drain and exit.
	Stop(ctx context.Context) error

	// State returns the current book state for one instrument.
	State(assetID string) (book.State, error)

	// BestBid returns the highest resting bid for one instrument.
	BestBid(assetID string) (model.PriceLevel, error)

	// BestAsk returns the lowest resting ask for one instrument.
	BestAsk(assetID string) (model.PriceLevel, error)

	// Books returns the current state of every instrument with a book.
	Books() map[string]book.State

	// Stats returns consumer counters.
	Stats() Stats
}

// Stats contains engine runtime counters.
type Stats struct {
	EventsApplied int64
	DeltasSkipped int64 // deltas that arrived before any snapshot
	ApplyErrors   int64
	TrackedAssets int
}

// engine is the internal implementation.
type engine struct {
	logger *slog.Logger
	input  *router.Queue[model.Event]

	mu    sync.RWMutex
	books map[string]book.Prior

	applied int64
	skipped int64
	failed  int64

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates an engine consuming from the given book queue.
func New(input *router.Queue[model.Event], logger *slog.Logger) Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &engine{
		logger: logger,
		input:  input,
		books:  make(map[string]book.Prior),
	}
}

// Start launches the consumer goroutine.
func (e *engine) Start(ctx context.Context) error {
	e.ctx, e.cancel = context.WithCancel(ctx)

	e.wg.Add(1)
	go e.consumeLoop()

	e.logger.Info("book engine started")
	return nil
}

// Stop waits for the consumer to exit. The consumer unblocks when the
// upstream queue is closed; ctx bounds the wait.
func (e *engine) Stop(ctx context.Context) error {
	e.logger.Info("stopping book engine")

	if e.cancel != nil {
		e.cancel()
	}

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		e.logger.Info("book engine stopped")
	case <-ctx.Done():
		e.logger.Warn("book engine stop timed out")
	}
	return nil
}

// State returns the current book state for one instrument.
func (e *engine) State(assetID string) (book.State, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	prior, ok := e.books[assetID]
	if !ok {
		return book.State{}, book.ErrUnknownAsset
	}
	state, ok := prior.State()
	if !ok {
		return book.State{}, book.ErrUnknownAsset
	}
	return state, nil
}

// BestBid returns the highest resting bid for one instrument.
func (e *engine) BestBid(assetID string) (model.PriceLevel, error) {
	state, err := e.State(assetID)
	if err != nil {
		return model.PriceLevel{}, err
	}
	return state.BestBid()
}

// BestAsk returns the lowest resting ask for one instrument.
func (e *engine) BestAsk(assetID string) (model.PriceLevel, error) {
	state, err := e.State(assetID)
	if err != nil {
		return model.PriceLevel{}, err
	}
	return state.BestAsk()
}

// Books returns a snapshot of every instrument's current state. The
// returned states share level slices with the engine; callers must not
// mutate them.
func (e *engine) Books() map[string]book.State {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make(map[string]book.State, len(e.books))
	for assetID, prior := range e.books {
		if state, ok := prior.State(); ok {
			out[assetID] = state
		}
	}
	return out
}

// Stats returns consumer counters.
func (e *engine) Stats() Stats {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return Stats{
		EventsApplied: e.applied,
		DeltasSkipped: e.skipped,
		ApplyErrors:   e.failed,
		TrackedAssets: len(e.books),
	}
}

// consumeLoop drains the book queue until it closes. A single consumer
// keeps event ordering per instrument.
func (e *engine) consumeLoop() {
	defer e.wg.Done()

	for {
		ev, ok := e.input.Pop()
		if !ok {
			e.logger.Info("book queue closed")
			return
		}
		e.apply(ev)
	}
}

// apply folds one event into the affected instruments' books.
func (e *engine) apply(ev model.Event) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, assetID := range ev.AssetIDs() {
		scoped := ev
		if ev.Type == model.EventPriceChange {
			scoped.AssetID = assetID
			scoped.Changes = ev.ChangesFor(assetID)
		}

		next, err := book.Apply(e.books[assetID], scoped)
		switch {
		case errors.Is(err, book.ErrNoPriorState):
			// A delta raced ahead of the instrument's first snapshot; the
			// poller backfills one, so skip rather than guess at a book.
			e.skipped++
			e.logger.Warn("delta before snapshot, skipping",
				"asset_id", assetID, "timestamp", ev.Timestamp)
		case err != nil:
			e.failed++
			e.logger.Warn("failed to apply event",
				"asset_id", assetID, "type", ev.Type, "error", err)
		default:
			e.books[assetID] = book.PriorOf(next)
			e.applied++
		}
	}
}
