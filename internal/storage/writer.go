package storage

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"
)

// WriteJob queues its statements onto a batch. Each job must queue exactly
// one statement so results can be matched back to jobs.
type WriteJob interface {
	Queue(b *pgx.Batch)
}

// WriteJobFunc adapts a function into a WriteJob.
type WriteJobFunc func(b *pgx.Batch)

func (f WriteJobFunc) Queue(b *pgx.Batch) { f(b) }

// Executor sends a batch in one round trip. *pgxpool.Pool satisfies it.
type Executor interface {
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

type WriterConfig struct {
	BufferSize    int
	BatchSize     int
	FlushInterval time.Duration
}

// WriterStats are cumulative job counts.
type WriterStats struct {
	Enqueued int64
	Dropped  int64
	Written  int64
	Failed   int64
}

// BatchWriter buffers write jobs and flushes them as pgx batches, either when
// BatchSize jobs are pending or every FlushInterval.
type BatchWriter struct {
	exec      Executor
	jobs      chan WriteJob
	batchSize int
	interval  time.Duration
	wg        sync.WaitGroup
	closeOnce sync.Once

	enqueued, dropped, written, failed atomic.Int64
}

func NewBatchWriter(exec Executor, cfg WriterConfig) *BatchWriter {
	w := &BatchWriter{
		exec:      exec,
		jobs:      make(chan WriteJob, cfg.BufferSize),
		batchSize: cfg.BatchSize,
		interval:  cfg.FlushInterval,
	}
	w.wg.Add(1)
	go w.run()
	return w
}

// Enqueue never blocks. It reports false when the buffer is full and the job
// was dropped.
func (w *BatchWriter) Enqueue(job WriteJob) bool {
	select {
	case w.jobs <- job:
		w.enqueued.Add(1)
		return true
	default:
		w.dropped.Add(1)
		log.Warn().Msg("write queue full, dropping job")
		return false
	}
}

func (w *BatchWriter) Stats() WriterStats {
	return WriterStats{
		Enqueued: w.enqueued.Load(),
		Dropped:  w.dropped.Load(),
		Written:  w.written.Load(),
		Failed:   w.failed.Load(),
	}
}

func (w *BatchWriter) run() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	pending := make([]WriteJob, 0, w.batchSize)
	for {
		select {
		case job, ok := <-w.jobs:
			if !ok {
				w.flush(pending)
				return
			}
			pending = append(pending, job)
			if len(pending) >= w.batchSize {
				w.flush(pending)
				pending = pending[:0]
			}
		case <-ticker.C:
			w.flush(pending)
			pending = pending[:0]
		}
	}
}

func (w *BatchWriter) flush(pending []WriteJob) {
	if len(pending) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	b := &pgx.Batch{}
	for _, job := range pending {
		job.Queue(b)
	}

	results := w.exec.SendBatch(ctx, b)
	var failed int64
	for range pending {
		if _, err := results.Exec(); err != nil {
			failed++
			log.Error().Err(err).Msg("write job failed")
		}
	}
	if err := results.Close(); err != nil {
		log.Error().Err(err).Msg("close write batch")
	}

	w.failed.Add(failed)
	w.written.Add(int64(len(pending)) - failed)
	log.Debug().Int("jobs", len(pending)).Int64("failed", failed).Msg("write batch flushed")
}

// Shutdown flushes pending jobs and stops the writer. It is safe to call more
// than once; Enqueue must not be called afterwards.
func (w *BatchWriter) Shutdown() {
	w.closeOnce.Do(func() { close(w.jobs) })
	w.wg.Wait()

	s := w.Stats()
	log.Info().
		Int64("written", s.Written).
		Int64("failed", s.Failed).
		Int64("dropped", s.Dropped).
		Msg("resolution writer stopped")
}
