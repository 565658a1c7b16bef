package position

import (
	"context"
	"dashboard/internal/engine/geom"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var ErrClosed = errors.New("position writer closed")

// Save is one pending position write
type Save struct {
	PipelineID uint
	NodeID     uint
	Position   geom.Point
}

type saveKey struct {
	pipelineID uint
	nodeID     uint
}

// WriterOptions tunes a Writer. The zero value is valid.
type WriterOptions struct {
	// Timeout of a single Save call, 5s when zero
	Timeout time.Duration
	Logger  *zerolog.Logger
	// OnError is called from the worker goroutine when a save fails
	OnError func(Save, error)
	// OnSaved is called from the worker goroutine after a successful save
	OnSaved func(Save)
}

// Writer performs saves on its own goroutine so callers never wait for the
// store. Writes queued for the same node before the worker reaches them are
// merged, the latest position wins.
type Writer struct {
	store   Store
	timeout time.Duration
	logger  zerolog.Logger
	onError func(Save, error)
	onSaved func(Save)

	mu      sync.Mutex
	pending map[saveKey]geom.Point
	queue   []saveKey
	busy    bool
	closed  bool
	waiters []chan struct{}

	wake     chan struct{}
	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// NewWriter starts the worker goroutine. Close must be called to stop it.
func NewWriter(store Store, opts WriterOptions) *Writer {
	w := &Writer{
		store:   store,
		timeout: opts.Timeout,
		logger:  zerolog.Nop(),
		onError: opts.OnError,
		onSaved: opts.OnSaved,
		pending: make(map[saveKey]geom.Point),
		wake:    make(chan struct{}, 1),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	if w.timeout <= 0 {
		w.timeout = 5 * time.Second
	}
	if opts.Logger != nil {
		w.logger = *opts.Logger
	}
	go w.run()
	return w
}

// Enqueue schedules a save and returns at once
func (w *Writer) Enqueue(s Save) error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return ErrClosed
	}
	k := saveKey{pipelineID: s.PipelineID, nodeID: s.NodeID}
	if _, queued := w.pending[k]; !queued {
		w.queue = append(w.queue, k)
	}
	w.pending[k] = s.Position
	w.mu.Unlock()

	select {
	case w.wake <- struct{}{}:
	default:
	}
	return nil
}

// Pending returns the number of saves not started yet
func (w *Writer) Pending() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.queue)
}

// Flush waits until every queued save has been attempted
func (w *Writer) Flush(ctx context.Context) error {
	w.mu.Lock()
	if len(w.queue) == 0 && !w.busy {
		w.mu.Unlock()
		return nil
	}
	ch := make(chan struct{})
	w.waiters = append(w.waiters, ch)
	w.mu.Unlock()

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting saves, drains the queue and stops the worker
func (w *Writer) Close(ctx context.Context) error {
	w.mu.Lock()
	w.closed = true
	w.mu.Unlock()
	w.stopOnce.Do(func() { close(w.stop) })

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *Writer) run() {
	defer close(w.done)
	for {
		select {
		case <-w.wake:
			w.drain()
		case <-w.stop:
			w.drain()
			return
		}
	}
}

func (w *Writer) drain() {
	for {
		s, ok := w.next()
		if !ok {
			return
		}
		w.write(s)
	}
}

func (w *Writer) next() (Save, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if len(w.queue) == 0 {
		w.busy = false
		for _, ch := range w.waiters {
			close(ch)
		}
		w.waiters = nil
		return Save{}, false
	}

	k := w.queue[0]
	w.queue = w.queue[1:]
	p := w.pending[k]
	delete(w.pending, k)
	w.busy = true
	return Save{PipelineID: k.pipelineID, NodeID: k.nodeID, Position: p}, true
}

func (w *Writer) write(s Save) {
	ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
	defer cancel()

	if err := w.store.Save(ctx, s.PipelineID, s.NodeID, s.Position); err != nil {
		w.logger.Error().
			Err(err).
			Uint("pipelineId", s.PipelineID).
			Uint("nodeId", s.NodeID).
			Msg("Failed to save node position")
		if w.onError != nil {
			w.onError(s, err)
		}
		return
	}

	w.logger.Debug().
		Uint("pipelineId", s.PipelineID).
		Uint("nodeId", s.NodeID).
		Float64("x", s.Position.X).
		Float64("y", s.Position.Y).
		Msg("Node position saved")
	if w.onSaved != nil {
		w.onSaved(s)
	}
}
