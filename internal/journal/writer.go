package journal

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/rickgao/pairamid-live/internal/lifecycle"
	"github.com/rickgao/pairamid-live/internal/model"
)

// BatchSender sends a pgx batch. *pgxpool.Pool implements it.
type BatchSender interface {
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// FlushObserver is told about every flush. May be nil.
type FlushObserver interface {
	ObserveJournalFlush(records int, err error)
}

// Config holds batch writer configuration.
type Config struct {
	BatchSize     int           // Records per insert batch (default: 100)
	FlushInterval time.Duration // Max time a record waits in the batch (default: 1s)
	BufferSize    int           // Pending records before new ones are dropped (default: 1000)
	InstanceID    string
	TeamID        string
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		BatchSize:     100,
		FlushInterval: time.Second,
		BufferSize:    1000,
	}
}

// Stats contains runtime statistics.
type Stats struct {
	Enqueued int64
	Dropped  int64
	Inserts  int64
	Errors   int64
	Flushes  int64
}

// Writer batches lifecycle records into the lifecycle_events table.
type Writer struct {
	cfg      Config
	db       BatchSender
	observer FlushObserver
	logger   *slog.Logger

	input chan model.LifecycleRecord

	batch   []model.LifecycleRecord
	batchMu sync.Mutex
	stats   Stats

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewWriter creates a new Writer.
func NewWriter(cfg Config, db BatchSender, observer FlushObserver, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultConfig()
	if cfg.BatchSize < 1 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = def.FlushInterval
	}
	if cfg.BufferSize < 1 {
		cfg.BufferSize = def.BufferSize
	}
	return &Writer{
		cfg:      cfg,
		db:       db,
		observer: observer,
		logger:   logger.With("component", "journal"),
		input:    make(chan model.LifecycleRecord, cfg.BufferSize),
		batch:    make([]model.LifecycleRecord, 0, cfg.BatchSize),
	}
}

// Start begins consuming records and writing to the database.
func (w *Writer) Start(ctx context.Context) error {
	w.ctx, w.cancel = context.WithCancel(ctx)

	w.wg.Add(1)
	go w.consumeLoop()

	w.logger.Info("journal writer started",
		"batch_size", w.cfg.BatchSize,
		"flush_interval", w.cfg.FlushInterval,
	)
	return nil
}

// Stop drains pending records, flushes them and shuts the writer down.
func (w *Writer) Stop(ctx context.Context) error {
	w.logger.Info("stopping journal writer")

	if w.cancel != nil {
		w.cancel()
	}

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		w.logger.Warn("journal writer stop timed out")
		return ctx.Err()
	}

	w.drain()
	w.flush(ctx)
	w.logger.Info("journal writer stopped")
	return nil
}

// Stats returns current statistics.
func (w *Writer) Stats() Stats {
	w.batchMu.Lock()
	defer w.batchMu.Unlock()
	return w.stats
}

// Observer returns a lifecycle.Observer that journals events of one
// application generation.
func (w *Writer) Observer(generation uuid.UUID) lifecycle.Observer {
	return lifecycle.ObserverFunc(func(ev lifecycle.Event) {
		w.Enqueue(w.record(generation, ev))
	})
}

// Enqueue hands a record to the writer without blocking. It reports false
// when the buffer is full and the record was dropped.
func (w *Writer) Enqueue(rec model.LifecycleRecord) bool {
	select {
	case w.input <- rec:
		w.batchMu.Lock()
		w.stats.Enqueued++
		w.batchMu.Unlock()
		return true
	default:
		w.batchMu.Lock()
		w.stats.Dropped++
		w.batchMu.Unlock()
		w.logger.Warn("journal buffer full, dropping record", "event", rec.Event)
		return false
	}
}

func (w *Writer) record(generation uuid.UUID, ev lifecycle.Event) model.LifecycleRecord {
	rec := model.LifecycleRecord{
		ID:         uuid.New(),
		Generation: generation,
		InstanceID: w.cfg.InstanceID,
		TeamID:     w.cfg.TeamID,
		Event:      ev.Type.String(),
		FromState:  ev.From.String(),
		ToState:    ev.To.String(),
		Attempt:    ev.Attempt,
		TS:         ev.At.UnixMicro(),
	}
	if ev.Type == lifecycle.EventLost {
		rec.LossKind = ev.Kind.String()
	}
	return rec
}

// consumeLoop accumulates records and flushes on size or interval.
func (w *Writer) consumeLoop() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return
		case rec := <-w.input:
			w.add(rec)
		case <-ticker.C:
			w.flush(w.ctx)
		}
	}
}

// drain moves every buffered record into the batch.
func (w *Writer) drain() {
	for {
		select {
		case rec := <-w.input:
			w.batchMu.Lock()
			w.batch = append(w.batch, rec)
			w.batchMu.Unlock()
		default:
			return
		}
	}
}

func (w *Writer) add(rec model.LifecycleRecord) {
	w.batchMu.Lock()
	w.batch = append(w.batch, rec)
	shouldFlush := len(w.batch) >= w.cfg.BatchSize
	w.batchMu.Unlock()

	if shouldFlush {
		w.flush(w.ctx)
	}
}

// flush writes the current batch to the database.
func (w *Writer) flush(ctx context.Context) {
	w.batchMu.Lock()
	if len(w.batch) == 0 {
		w.batchMu.Unlock()
		return
	}

	// Take ownership of current batch
	batch := w.batch
	w.batch = make([]model.LifecycleRecord, 0, w.cfg.BatchSize)
	w.batchMu.Unlock()

	start := time.Now()
	err := w.batchInsert(ctx, batch)
	if w.observer != nil {
		w.observer.ObserveJournalFlush(len(batch), err)
	}

	w.batchMu.Lock()
	if err != nil {
		w.stats.Errors++
	} else {
		w.stats.Inserts += int64(len(batch))
		w.stats.Flushes++
	}
	w.batchMu.Unlock()

	if err != nil {
		w.logger.Error("batch insert failed", "error", err, "count", len(batch))
		return
	}
	w.logger.Debug("flushed lifecycle events", "count", len(batch), "duration", time.Since(start))
}

// batchInsert inserts rows using pgx.Batch with ON CONFLICT DO NOTHING.
func (w *Writer) batchInsert(ctx context.Context, rows []model.LifecycleRecord) error {
	batch := &pgx.Batch{}
	for _, r := range rows {
		batch.Queue(`
			INSERT INTO lifecycle_events (id, generation, instance_id, team_id, event, from_state, to_state, loss_kind, attempt, ts)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			ON CONFLICT (id) DO NOTHING
		`, r.ID, r.Generation, r.InstanceID, r.TeamID, r.Event, r.FromState, r.ToState, r.LossKind, r.Attempt, r.TS)
	}

	results := w.db.SendBatch(ctx, batch)
	defer results.Close()

	for range rows {
		if _, err := results.Exec(); err != nil {
			return err
		}
	}
	return nil
}
