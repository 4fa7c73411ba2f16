package router

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rickgao/polymarket-data/internal/connection"
	"github.com/rickgao/polymarket-data/internal/model"
)

// Router parses raw market-channel frames and routes normalized events.
type Router interface {
	// Start begins routing frames from the input channel.
	Start(ctx context.Context) error

	// Stop gracefully shuts down the router and closes its queues.
	Stop(ctx context.Context) error

	// Queues returns the output queues for consumers.
	Queues() Queues

	// Stats returns current routing counters.
	Stats() Stats
}

// router is the internal implementation.
type router struct {
	cfg    Config
	logger *slog.Logger

	input <-chan connection.RawMessage

	bookQ    *Queue[model.Event]
	journalQ *Queue[JournalMsg]

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.RWMutex
	received int64
	routed   int64
	parseErr int64
	unknown  int64
}

// New creates a router reading raw frames from input.
func New(cfg Config, input <-chan connection.RawMessage, logger *slog.Logger) Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &router{
		cfg:      cfg,
		logger:   logger,
		input:    input,
		bookQ:    NewQueue[model.Event](cfg.BookQueueSize),
		journalQ: NewQueue[JournalMsg](cfg.JournalQueueSize),
	}
}

// Start begins routing frames.
func (r *router) Start(ctx context.Context) error {
	r.ctx, r.cancel = context.WithCancel(ctx)

	r.wg.Add(1)
	go r.routeLoop()

	r.logger.Info("router started",
		"book_queue", r.cfg.BookQueueSize,
		"journal_queue", r.cfg.JournalQueueSize,
	)
	return nil
}

// Stop shuts the router down and closes the output queues so consumers can
// drain what remains.
func (r *router) Stop(ctx context.Context) error {
	r.logger.Info("stopping router")

	if r.cancel != nil {
		r.cancel()
	}

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.logger.Info("router stopped")
	case <-ctx.Done():
		r.logger.Warn("router stop timed out")
	}

	r.bookQ.Close()
	r.journalQ.Close()
	return nil
}

// Queues returns the output queues.
func (r *router) Queues() Queues {
	return Queues{Books: r.bookQ, Journal: r.journalQ}
}

// Stats returns current counters.
func (r *router) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return Stats{
		FramesReceived: r.received,
		EventsRouted:   r.routed,
		ParseErrors:    r.parseErr,
		UnknownEvents:  r.unknown,
		BookQueue:      r.bookQ.Stats(),
		JournalQueue:   r.journalQ.Stats(),
	}
}

// routeLoop is the main routing goroutine.
func (r *router) routeLoop() {
	defer r.wg.Done()

	for {
		select {
		case <-r.ctx.Done():
			return
		case raw, ok := <-r.input:
			if !ok {
				r.logger.Info("input channel closed")
				return
			}
			r.routeFrame(raw)
		}
	}
}

// routeFrame splits one frame into events and routes each. The market
// channel batches events into JSON arrays; single-object frames also occur.
func (r *router) routeFrame(raw connection.RawMessage) {
	r.count(&r.received)

	data := bytes.TrimSpace(raw.Data)
	if len(data) == 0 {
		return
	}

	items := []json.RawMessage{data}
	if data[0] == '[' {
		if err := json.Unmarshal(data, &items); err != nil {
			r.logger.Warn("failed to split event frame", "error", err)
			r.count(&r.parseErr)
			return
		}
	}

	for _, item := range items {
		r.routeEvent(item, raw.ReceivedAt)
	}
}

// routeEvent normalizes one event and pushes it to the output queues.
func (r *router) routeEvent(data json.RawMessage, receivedAt time.Time) {
	ev, err := ParseEvent(data, receivedAt)
	switch {
	case errors.Is(err, ErrUnknownEvent):
		r.logger.Debug("skipping event", "error", err)
		r.count(&r.unknown)
		return
	case err != nil:
		r.logger.Warn("dropping malformed event", "error", err)
		r.count(&r.parseErr)
		return
	}

	for _, assetID := range ev.AssetIDs() {
		r.journalQ.Push(JournalMsg{
			AssetID:    assetID,
			Type:       ev.Type,
			Timestamp:  ev.Timestamp,
			ReceivedAt: receivedAt,
			Payload:    data,
		})
	}

	if ev.Type.BookMutating() {
		r.bookQ.Push(ev)
	}
	r.count(&r.routed)
}

// count increments a stats counter under the lock.
func (r *router) count(field *int64) {
	r.mu.Lock()
	*field++
	r.mu.Unlock()
}

// ParseEvent normalizes one wire event. receivedAt backs the timestamp
// when the event carries none. Event types outside the market channel's
// four kinds fail with ErrUnknownEvent; anything else unparseable fails
// with ErrMalformedEvent.
func ParseEvent(data []byte, receivedAt time.Time) (model.Event, error) {
	var envelope eventEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		return model.Event{}, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}

	switch model.EventType(envelope.EventType) {
	case model.EventBook:
		return parseBook(data, receivedAt)
	case model.EventPriceChange:
		return parsePriceChange(data, receivedAt)
	case model.EventTickSizeChange:
		return parseTickSize(data, receivedAt)
	case model.EventLastTradePrice:
		return parseLastTrade(data, receivedAt)
	default:
		return model.Event{}, fmt.Errorf("%w: %q", ErrUnknownEvent, envelope.EventType)
	}
}

// parseBook normalizes a book snapshot event.
func parseBook(data []byte, receivedAt time.Time) (model.Event, error) {
	var wire bookWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return model.Event{}, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if wire.AssetID == "" {
		return model.Event{}, fmt.Errorf("%w: book event missing asset_id", ErrMalformedEvent)
	}

	bidWire, askWire := wire.Bids, wire.Asks
	if bidWire == nil && askWire == nil {
		bidWire, askWire = wire.Buys, wire.Sells
	}

	bids, err := parseLevels(bidWire)
	if err != nil {
		return model.Event{}, err
	}
	asks, err := parseLevels(askWire)
	if err != nil {
		return model.Event{}, err
	}

	return model.Event{
		Type:      model.EventBook,
		AssetID:   wire.AssetID,
		Timestamp: parseEventTimestamp(wire.Timestamp, receivedAt),
		Bids:      bids,
		Asks:      asks,
	}, nil
}

// parsePriceChange normalizes a price_change event across feed revisions.
func parsePriceChange(data []byte, receivedAt time.Time) (model.Event, error) {
	var wire priceChangeWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return model.Event{}, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}

	entries := wire.Changes
	if len(entries) == 0 {
		entries = wire.PriceChanges
	}
	if len(entries) == 0 && wire.Price != "" {
		// Flat single-change form: the change fields sit on the event itself.
		entries = []changeWire{{Price: wire.Price, Side: wire.Side, Size: wire.Size}}
	}
	if len(entries) == 0 {
		return model.Event{}, fmt.Errorf("%w: price_change carries no changes", ErrMalformedEvent)
	}

	changes := make([]model.PriceChange, 0, len(entries))
	for _, c := range entries {
		assetID := c.AssetID
		if assetID == "" {
			assetID = wire.AssetID
		}
		if assetID == "" {
			return model.Event{}, fmt.Errorf("%w: change missing asset_id", ErrMalformedEvent)
		}

		side := model.Side(strings.ToUpper(c.Side))
		if !side.Valid() {
			return model.Event{}, fmt.Errorf("%w: invalid side %q", ErrMalformedEvent, c.Side)
		}
		price, err := parseDecimal("price", c.Price)
		if err != nil {
			return model.Event{}, err
		}
		size, err := parseDecimal("size", c.Size)
		if err != nil {
			return model.Event{}, err
		}

		changes = append(changes, model.PriceChange{
			AssetID: assetID,
			Price:   price,
			Side:    side,
			Size:    size,
		})
	}

	return model.Event{
		Type:      model.EventPriceChange,
		AssetID:   wire.AssetID,
		Timestamp: parseEventTimestamp(wire.Timestamp, receivedAt),
		Changes:   changes,
	}, nil
}

// parseLastTrade normalizes a last_trade_price event.
func parseLastTrade(data []byte, receivedAt time.Time) (model.Event, error) {
	var wire lastTradeWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return model.Event{}, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if wire.AssetID == "" {
		return model.Event{}, fmt.Errorf("%w: last_trade_price missing asset_id", ErrMalformedEvent)
	}

	ev := model.Event{
		Type:      model.EventLastTradePrice,
		AssetID:   wire.AssetID,
		Timestamp: parseEventTimestamp(wire.Timestamp, receivedAt),
	}

	var err error
	if wire.Price != "" {
		if ev.Price, err = parseDecimal("price", wire.Price); err != nil {
			return model.Event{}, err
		}
	}
	if wire.Size != "" {
		if ev.Size, err = parseDecimal("size", wire.Size); err != nil {
			return model.Event{}, err
		}
	}
	return ev, nil
}

// parseTickSize normalizes a tick_size_change event. The tick values
// themselves stay in the journaled payload.
func parseTickSize(data []byte, receivedAt time.Time) (model.Event, error) {
	var wire tickSizeWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return model.Event{}, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if wire.AssetID == "" {
		return model.Event{}, fmt.Errorf("%w: tick_size_change missing asset_id", ErrMalformedEvent)
	}

	return model.Event{
		Type:      model.EventTickSizeChange,
		AssetID:   wire.AssetID,
		Timestamp: parseEventTimestamp(wire.Timestamp, receivedAt),
	}, nil
}

// parseLevels converts wire levels to price levels.
func parseLevels(levels []levelWire) ([]model.PriceLevel, error) {
	out := make([]model.PriceLevel, 0, len(levels))
	for _, l := range levels {
		price, err := parseDecimal("price", l.Price)
		if err != nil {
			return nil, err
		}
		size, err := parseDecimal("size", l.Size)
		if err != nil {
			return nil, err
		}
		out = append(out, model.PriceLevel{Price: price, Size: size})
	}
	return out, nil
}

// parseDecimal parses a wire decimal string, tagging failures malformed.
func parseDecimal(field, s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%w: bad %s %q", ErrMalformedEvent, field, s)
	}
	return d, nil
}

// parseEventTimestamp parses the wire timestamp, falling back to local
// receipt time when the field is absent or unreadable.
func parseEventTimestamp(s string, receivedAt time.Time) int64 {
	if s == "" {
		return receivedAt.UnixMilli()
	}
	ts, err := model.ParseTimestamp(s)
	if err != nil {
		return receivedAt.UnixMilli()
	}
	return ts
}
