package journal

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rickgao/polymarket-data/internal/router"
)

// Writer consumes journal records and persists them to the database and
// per-asset session files. A nil pool disables the database sink; an
// empty directory disables files.
type Writer struct {
	cfg       Config
	logger    *slog.Logger
	sessionID string

	input *router.Queue[router.JournalMsg]
	db    *pgxpool.Pool

	// Database batching
	batchMu sync.Mutex
	batch   []eventRow
	metrics Metrics

	// Session files
	filesMu sync.Mutex
	files   map[string]*bufio.Writer
	handles []*os.File

	flushTicker *time.Ticker

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewWriter creates a journal writer. Each writer gets a fresh session ID
// so restarts never append to an older run's files.
func NewWriter(cfg Config, input *router.Queue[router.JournalMsg], db *pgxpool.Pool, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Writer{
		cfg:       cfg,
		logger:    logger,
		sessionID: uuid.NewString(),
		input:     input,
		db:        db,
		batch:     make([]eventRow, 0, cfg.BatchSize),
		files:     make(map[string]*bufio.Writer),
	}
}

// SessionID returns this run's session identifier.
func (w *Writer) SessionID() string {
	return w.sessionID
}

// Start begins consuming records.
func (w *Writer) Start(ctx context.Context) error {
	if w.cfg.Directory != "" {
		if err := os.MkdirAll(w.cfg.Directory, 0o755); err != nil {
			return fmt.Errorf("create session directory: %w", err)
		}
	}

	w.ctx, w.cancel = context.WithCancel(ctx)
	w.flushTicker = time.NewTicker(w.cfg.FlushInterval)

	w.wg.Add(1)
	go w.consumeLoop()

	w.wg.Add(1)
	go w.flushLoop()

	w.logger.Info("journal writer started",
		"session_id", w.sessionID,
		"batch_size", w.cfg.BatchSize,
		"flush_interval", w.cfg.FlushInterval,
		"directory", w.cfg.Directory,
	)
	return nil
}

// Stop drains, flushes, and closes the session files.
func (w *Writer) Stop(ctx context.Context) error {
	w.logger.Info("stopping journal writer")

	if w.cancel != nil {
		w.cancel()
	}
	if w.flushTicker != nil {
		w.flushTicker.Stop()
	}

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		w.logger.Info("journal writer stopped")
	case <-ctx.Done():
		w.logger.Warn("journal writer stop timed out")
	}

	// The run context is canceled by now, so the final flush uses the
	// shutdown context.
	w.flush(ctx)
	w.closeFiles()
	return nil
}

// Stats returns current metrics.
func (w *Writer) Stats() Metrics {
	w.batchMu.Lock()
	defer w.batchMu.Unlock()
	return w.metrics
}

// consumeLoop reads records from the input queue. On shutdown it drains
// whatever is still queued before returning, so records accepted by the
// router are never dropped.
func (w *Writer) consumeLoop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			w.drain()
			return
		default:
			msg, ok := w.input.TryPop()
			if !ok {
				select {
				case <-w.ctx.Done():
					w.drain()
					return
				case <-time.After(10 * time.Millisecond):
					continue
				}
			}
			w.handleMsg(msg)
		}
	}
}

// drain empties the input queue after cancellation. The drained rows stay
// in the batch for the final flush in Stop.
func (w *Writer) drain() {
	for {
		msg, ok := w.input.TryPop()
		if !ok {
			return
		}
		w.handleMsg(msg)
	}
}

// flushLoop periodically flushes the batch and file buffers.
func (w *Writer) flushLoop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-w.flushTicker.C:
			w.flush(w.ctx)
		}
	}
}

// handleMsg journals one record to both sinks.
func (w *Writer) handleMsg(msg router.JournalMsg) {
	w.appendFile(msg)

	if w.db == nil {
		return
	}

	row := eventRow{
		AssetID:    msg.AssetID,
		EventType:  string(msg.Type),
		Timestamp:  msg.Timestamp,
		ReceivedAt: msg.ReceivedAt.UnixMilli(),
		Payload:    msg.Payload,
	}

	w.batchMu.Lock()
	w.batch = append(w.batch, row)
	shouldFlush := len(w.batch) >= w.cfg.BatchSize
	w.batchMu.Unlock()

	// While draining after cancellation the run context is dead; rows
	// accumulate for the final flush instead.
	if shouldFlush && w.ctx.Err() == nil {
		w.flush(w.ctx)
	}
}

// appendFile writes the raw payload as one JSONL line in the asset's
// session file.
func (w *Writer) appendFile(msg router.JournalMsg) {
	if w.cfg.Directory == "" {
		return
	}

	w.filesMu.Lock()
	defer w.filesMu.Unlock()

	buf, ok := w.files[msg.AssetID]
	if !ok {
		path := w.sessionPath(msg.AssetID)
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			w.logger.Error("failed to open session file",
				"path", path, "error", err)
			return
		}
		buf = bufio.NewWriter(f)
		w.files[msg.AssetID] = buf
		w.handles = append(w.handles, f)
	}

	if _, err := buf.Write(msg.Payload); err != nil {
		w.logger.Error("failed to write session line", "error", err)
		return
	}
	if err := buf.WriteByte('\n'); err != nil {
		w.logger.Error("failed to write session line", "error", err)
		return
	}

	w.batchMu.Lock()
	w.metrics.FileLines++
	w.batchMu.Unlock()
}

// sessionPath builds the session file path for one asset.
func (w *Writer) sessionPath(assetID string) string {
	return filepath.Join(w.cfg.Directory, assetID+"-"+w.sessionID+".jsonl")
}

// flush writes the current batch to the database and syncs file buffers.
func (w *Writer) flush(ctx context.Context) {
	w.flushFiles()

	if w.db == nil {
		return
	}

	w.batchMu.Lock()
	if len(w.batch) == 0 {
		w.batchMu.Unlock()
		return
	}
	batch := w.batch
	w.batch = make([]eventRow, 0, w.cfg.BatchSize)
	w.batchMu.Unlock()

	start := time.Now()

	conflicts, err := w.batchInsert(ctx, batch)
	if err != nil {
		w.logger.Error("batch insert failed", "error", err, "count", len(batch))
		w.batchMu.Lock()
		w.metrics.Errors++
		w.batchMu.Unlock()
		return
	}

	w.batchMu.Lock()
	w.metrics.Inserts += int64(len(batch) - conflicts)
	w.metrics.Conflicts += int64(conflicts)
	w.metrics.Flushes++
	w.batchMu.Unlock()

	w.logger.Debug("flushed events",
		"count", len(batch),
		"conflicts", conflicts,
		"duration", time.Since(start),
	)
}

// batchInsert inserts rows using pgx.Batch with ON CONFLICT DO NOTHING.
func (w *Writer) batchInsert(ctx context.Context, rows []eventRow) (conflicts int, err error) {
	batch := &pgx.Batch{}
	for _, r := range rows {
		batch.Queue(`
			INSERT INTO market_events (asset_id, event_type, ts, received_at, payload)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT DO NOTHING
		`, r.AssetID, r.EventType, r.Timestamp, r.ReceivedAt, r.Payload)
	}

	results := w.db.SendBatch(ctx, batch)
	defer results.Close()

	for range rows {
		ct, err := results.Exec()
		if err != nil {
			return 0, err
		}
		if ct.RowsAffected() == 0 {
			conflicts++
		}
	}

	return conflicts, nil
}

// flushFiles flushes every open session file buffer.
func (w *Writer) flushFiles() {
	w.filesMu.Lock()
	defer w.filesMu.Unlock()

	for assetID, buf := range w.files {
		if err := buf.Flush(); err != nil {
			w.logger.Error("failed to flush session file",
				"asset_id", assetID, "error", err)
		}
	}
}

// closeFiles closes every open session file.
func (w *Writer) closeFiles() {
	w.filesMu.Lock()
	defer w.filesMu.Unlock()

	for _, buf := range w.files {
		buf.Flush()
	}
	for _, f := range w.handles {
		f.Close()
	}
	w.files = make(map[string]*bufio.Writer)
	w.handles = nil
}
