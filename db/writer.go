package db

import (
	"context"
	"sync"
	"time"

	"github.com/gammazero/deque"
	"go.uber.org/zap"

	"github.com/Roygautam8852/SyncSpace/internal/logx"
	"github.com/Roygautam8852/SyncSpace/internal/metrics"
)

// Job is one read-modify-write against the store. Done runs on the writer
// goroutine right after Run; callers that own other state post from there.
type Job struct {
	Op     string
	RoomID string
	Run    func(ctx context.Context, s Store) error
	Done   func(err error)
}

// Writer runs store jobs one at a time in submission order. Enqueue never
// blocks, so the event loop cannot stall behind a slow store.
type Writer struct {
	store Store

	mu     sync.Mutex
	q      deque.Deque[Job]
	closed bool
	wake   chan struct{}
	done   chan struct{}
}

func NewWriter(s Store) *Writer {
	return &Writer{
		store: s,
		wake:  make(chan struct{}, 1),
		done:  make(chan struct{}),
	}
}

func (w *Writer) Store() Store { return w.store }

// Enqueue reports false once the writer is closed.
func (w *Writer) Enqueue(j Job) bool {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return false
	}
	w.q.PushBack(j)
	w.mu.Unlock()

	select {
	case w.wake <- struct{}{}:
	default:
	}
	return true
}

func (w *Writer) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.q.Len()
}

// Close stops intake; Run finishes the queued jobs and returns.
func (w *Writer) Close() {
	w.mu.Lock()
	w.closed = true
	w.mu.Unlock()

	select {
	case w.wake <- struct{}{}:
	default:
	}
}

// Done is closed when Run has returned.
func (w *Writer) Done() <-chan struct{} { return w.done }

func (w *Writer) Run(ctx context.Context) {
	defer close(w.done)

	for {
		j, ok, closed := w.next()
		if ok {
			w.exec(ctx, j)
			continue
		}
		if closed {
			return
		}

		select {
		case <-w.wake:
		case <-ctx.Done():
			// finish what is queued so broadcasts waiting on Done still fire
			w.Close()
		}
	}
}

func (w *Writer) next() (Job, bool, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.q.Len() == 0 {
		return Job{}, false, w.closed
	}
	return w.q.PopFront(), true, w.closed
}

func (w *Writer) exec(ctx context.Context, j Job) {
	start := time.Now()

	// a cancelled process context must not turn queued saves into errors
	err := j.Run(context.WithoutCancel(ctx), w.store)

	result := "ok"
	if err != nil {
		result = "error"
		logx.Room(j.RoomID, j.Op).Warn("store job failed", zap.Error(err))
	}
	metrics.StoreOps.WithLabelValues(j.Op, result).Observe(time.Since(start).Seconds())

	if j.Done != nil {
		j.Done(err)
	}
}
