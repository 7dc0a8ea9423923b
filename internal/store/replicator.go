package store

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// DefaultWriteTimeout bounds a single replicated write.
const DefaultWriteTimeout = 15 * time.Second

// errReplicatorClosed is logged for writes enqueued after Close.
var errReplicatorClosed = errors.New("replicator closed")

type writeOp struct {
	kind    string // "set", "delete", "clear"
	store   string
	key     string
	value   []byte
	barrier chan struct{}
}

// Replicator applies writes to a Backend on a single background goroutine in
// the order they were enqueued. Enqueue never blocks the caller; the queue is
// unbounded. Failures are logged and dropped.
type Replicator struct {
	backend      Backend
	writeTimeout time.Duration

	mu     sync.Mutex
	queue  []writeOp
	closed bool

	wake chan struct{}
	stop chan struct{}
	done chan struct{}
}

// NewReplicator starts the worker for backend.
func NewReplicator(backend Backend) *Replicator {
	r := &Replicator{
		backend:      backend,
		writeTimeout: DefaultWriteTimeout,
		wake:         make(chan struct{}, 1),
		stop:         make(chan struct{}),
		done:         make(chan struct{}),
	}
	go r.run()
	return r
}

func (r *Replicator) enqueue(op writeOp) bool {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return false
	}
	r.queue = append(r.queue, op)
	r.mu.Unlock()

	select {
	case r.wake <- struct{}{}:
	default:
	}
	return true
}

// Enqueue schedules a write. After Close it logs and drops the write.
func (r *Replicator) Enqueue(kind, store, key string, value []byte) {
	if !r.enqueue(writeOp{kind: kind, store: store, key: key, value: value}) {
		log.Warn().Err(errReplicatorClosed).Str("op", kind).Str("store", store).Str("key", key).Msg("Dropping durable write")
	}
}

// Pending returns the number of queued writes not yet applied.
func (r *Replicator) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, op := range r.queue {
		if op.barrier == nil {
			n++
		}
	}
	return n
}

// Flush blocks until every write enqueued before the call has been applied,
// or ctx is done.
func (r *Replicator) Flush(ctx context.Context) error {
	barrier := make(chan struct{})
	if !r.enqueue(writeOp{barrier: barrier}) {
		return nil
	}
	select {
	case <-barrier:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close flushes outstanding writes and stops the worker. Writes enqueued
// afterwards are dropped.
func (r *Replicator) Close(ctx context.Context) error {
	err := r.Flush(ctx)

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return err
	}
	r.closed = true
	r.mu.Unlock()

	close(r.stop)
	select {
	case <-r.done:
	case <-ctx.Done():
		if err == nil {
			err = ctx.Err()
		}
	}
	return err
}

func (r *Replicator) next() (writeOp, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.queue) == 0 {
		return writeOp{}, false
	}
	op := r.queue[0]
	r.queue[0] = writeOp{}
	r.queue = r.queue[1:]
	return op, true
}

func (r *Replicator) run() {
	defer close(r.done)
	for {
		op, ok := r.next()
		if !ok {
			select {
			case <-r.wake:
				continue
			case <-r.stop:
				// Drain anything that slipped in before closed was set.
				for op, ok := r.next(); ok; op, ok = r.next() {
					r.apply(op)
				}
				return
			}
		}
		r.apply(op)
	}
}

func (r *Replicator) apply(op writeOp) {
	if op.barrier != nil {
		close(op.barrier)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), r.writeTimeout)
	defer cancel()

	start := time.Now()
	var err error
	switch op.kind {
	case "set":
		err = r.backend.Set(ctx, op.store, op.key, op.value)
	case "delete":
		err = r.backend.Delete(ctx, op.store, op.key)
	case "clear":
		err = r.backend.Clear(ctx, op.store)
	}
	if err != nil {
		log.Warn().
			Err(err).
			Str("op", op.kind).
			Str("store", op.store).
			Str("key", op.key).
			Msg("PersistenceError: durable write failed")
		return
	}
	log.Trace().
		Str("op", op.kind).
		Str("store", op.store).
		Str("key", op.key).
		Int("bytes", len(op.value)).
		Dur("duration", time.Since(start)).
		Msg("Durable write applied")
}
