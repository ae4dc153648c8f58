package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Veraticus/the-spice-must-talk/internal/common"
	"github.com/Veraticus/the-spice-must-talk/internal/model"
	"github.com/Veraticus/the-spice-must-talk/internal/service"
)

// DefaultMirrorBuffer is the number of pending mirror writes before new ones are dropped.
const DefaultMirrorBuffer = 256

type jobKind int

const (
	jobAppend jobKind = iota
	jobClear
)

type mirrorJob struct {
	identityID string
	turns      []model.Turn
	kind       jobKind
}

// mirrorWorker applies queued writes to a HistoryMirror in order.
type mirrorWorker struct {
	mirror  service.HistoryMirror
	logger  *slog.Logger
	queue   chan mirrorJob
	ctx     context.Context
	cancel  context.CancelFunc
	retry   service.RetryOptions
	wg      sync.WaitGroup
	mu      sync.RWMutex
	timeout time.Duration
	closed  bool
}

func newMirrorWorker(m service.HistoryMirror, buffer int, retry service.RetryOptions, logger *slog.Logger) *mirrorWorker {
	if buffer <= 0 {
		buffer = DefaultMirrorBuffer
	}
	ctx, cancel := context.WithCancel(context.Background())
	w := &mirrorWorker{
		mirror:  m,
		logger:  logger,
		queue:   make(chan mirrorJob, buffer),
		ctx:     ctx,
		cancel:  cancel,
		retry:   retry,
		timeout: 5 * time.Second,
	}
	w.wg.Add(1)
	go w.run()
	return w
}

// enqueue never blocks. It reports whether the job was accepted.
func (w *mirrorWorker) enqueue(job mirrorJob) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		return false
	}
	select {
	case w.queue <- job:
		return true
	default:
		w.logger.Warn("history mirror queue full, dropping write",
			"identity", job.identityID,
			"turns", len(job.turns))
		return false
	}
}

func (w *mirrorWorker) run() {
	defer w.wg.Done()
	for job := range w.queue {
		w.apply(job)
	}
}

func (w *mirrorWorker) apply(job mirrorJob) {
	err := common.WithRetry(w.ctx, func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, w.timeout)
		defer cancel()
		switch job.kind {
		case jobClear:
			return w.mirror.ClearTurns(ctx, job.identityID)
		default:
			return w.mirror.AppendTurns(ctx, job.identityID, job.turns)
		}
	}, w.retry)
	if err != nil {
		w.logger.Warn("history mirror write failed",
			"identity", job.identityID,
			"error", err)
	}
}

// close stops accepting jobs and waits for queued ones until ctx ends.
func (w *mirrorWorker) close(ctx context.Context) error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	close(w.queue)
	w.mu.Unlock()

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		w.cancel()
		return nil
	case <-ctx.Done():
		w.cancel()
		<-done
		return ctx.Err()
	}
}
