package device

import (
	"context"
	"sync"
	"time"

	"github.com/nerrad567/graylogic-ha/internal/hass"
)

// Recorder tuning.
const (
	recordBuffer  = 64
	recordTimeout = 5 * time.Second
)

// StateRecord is one state value that was handed to the broker.
type StateRecord struct {
	DeviceID string
	EntityID string
	Domain   hass.Domain
	Unit     string
	Value    float32
	At       time.Time
}

// StateRecorder persists published states. Implementations are called from
// a single background goroutine, never from the run loop, so a slow sink
// cannot delay publishing.
type StateRecorder interface {
	RecordState(ctx context.Context, rec StateRecord) error
}

// StateRecorderFunc adapts a function to StateRecorder.
type StateRecorderFunc func(ctx context.Context, rec StateRecord) error

// RecordState calls f.
func (f StateRecorderFunc) RecordState(ctx context.Context, rec StateRecord) error {
	return f(ctx, rec)
}

// recordWorker fans published states out to the recorders. When its
// buffer is full new records are dropped rather than stalling the run loop.
type recordWorker struct {
	recorders []StateRecorder
	logger    Logger
	metrics   *Metrics

	records chan StateRecord
	wg      sync.WaitGroup
}

// startRecordWorker launches the worker, or returns nil if there are no
// recorders. Records are written with a context detached from ctx so a
// shutdown still flushes what was already published.
func startRecordWorker(ctx context.Context, recorders []StateRecorder, logger Logger, metrics *Metrics) *recordWorker {
	if len(recorders) == 0 {
		return nil
	}
	w := &recordWorker{
		recorders: recorders,
		logger:    logger,
		metrics:   metrics,
		records:   make(chan StateRecord, recordBuffer),
	}
	base := context.WithoutCancel(ctx)

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		for rec := range w.records {
			w.write(base, rec)
		}
	}()
	return w
}

func (w *recordWorker) write(base context.Context, rec StateRecord) {
	for _, r := range w.recorders {
		ctx, cancel := context.WithTimeout(base, recordTimeout)
		err := r.RecordState(ctx, rec)
		cancel()
		if err != nil {
			w.metrics.incRecordErrors()
			w.logger.Warn("recording state failed", "entity_id", rec.EntityID, "error", err)
		}
	}
}

// submit queues rec without blocking. Safe on a nil worker.
func (w *recordWorker) submit(rec StateRecord) {
	if w == nil {
		return
	}
	select {
	case w.records <- rec:
	default:
		w.metrics.incRecordsDropped()
		w.logger.Debug("record buffer full, dropping state", "entity_id", rec.EntityID)
	}
}

// stop flushes queued records and waits for the worker. Safe on a nil worker.
func (w *recordWorker) stop() {
	if w == nil {
		return
	}
	close(w.records)
	w.wg.Wait()
}
