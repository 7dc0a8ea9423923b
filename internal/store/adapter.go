package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"
)

// DefaultReadTimeout bounds a single read from the backend.
const DefaultReadTimeout = 10 * time.Second

// Adapter is the booth's view of durable storage. Reads are synchronous and
// report absent/empty on any failure; writes are handed to a Replicator and
// never block or fail the caller. In-memory state stays the source of truth
// and storage is best-effort replication for the next session.
type Adapter struct {
	backend     Backend
	repl        *Replicator
	available   bool
	readTimeout time.Duration
}

// NewAdapter wraps backend. A nil backend behaves like NopBackend.
func NewAdapter(backend Backend) *Adapter {
	available := true
	if backend == nil {
		backend = NopBackend{}
	}
	if _, ok := backend.(NopBackend); ok {
		available = false
	}
	return &Adapter{
		backend:     backend,
		repl:        NewReplicator(backend),
		available:   available,
		readTimeout: DefaultReadTimeout,
	}
}

// Open builds an Adapter from open. If open fails the error is logged and the
// Adapter runs on NopBackend, so the session continues in memory only.
func Open(name string, open func() (Backend, error)) *Adapter {
	backend, err := open()
	if err != nil {
		log.Error().Err(err).Str("backend", name).Msg("PersistenceError: storage unavailable, continuing in memory only")
		return NewAdapter(NopBackend{})
	}
	log.Debug().Str("backend", name).Msg("Durable storage opened")
	return NewAdapter(backend)
}

// Available reports whether a real backend is attached.
func (a *Adapter) Available() bool {
	return a.available
}

func (a *Adapter) readCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, a.readTimeout)
}

// Get returns the value stored under key, or ok=false if it is absent or the
// read failed.
func (a *Adapter) Get(ctx context.Context, store, key string) ([]byte, bool) {
	ctx, cancel := a.readCtx(ctx)
	defer cancel()
	value, ok, err := a.backend.Get(ctx, store, key)
	if err != nil {
		log.Warn().Err(err).Str("store", store).Str("key", key).Msg("PersistenceError: read failed")
		return nil, false
	}
	return value, ok
}

// GetAll returns every entry of store; empty on failure.
func (a *Adapter) GetAll(ctx context.Context, store string) map[string][]byte {
	ctx, cancel := a.readCtx(ctx)
	defer cancel()
	all, err := a.backend.GetAll(ctx, store)
	if err != nil {
		log.Warn().Err(err).Str("store", store).Msg("PersistenceError: bulk read failed")
		return map[string][]byte{}
	}
	return all
}

// GetAllStrings is GetAll with string values, as payloads are data URLs.
func (a *Adapter) GetAllStrings(ctx context.Context, store string) map[string]string {
	all := a.GetAll(ctx, store)
	out := make(map[string]string, len(all))
	for k, v := range all {
		out[k] = string(v)
	}
	return out
}

// Set replicates value under key.
func (a *Adapter) Set(store, key string, value []byte) {
	a.repl.Enqueue("set", store, key, value)
}

// SetString replicates a string value, typically a data-URL payload.
func (a *Adapter) SetString(store, key, value string) {
	a.Set(store, key, []byte(value))
}

// Delete replicates removal of key.
func (a *Adapter) Delete(store, key string) {
	a.repl.Enqueue("delete", store, key, nil)
}

// Clear replicates removal of every entry in store.
func (a *Adapter) Clear(store string) {
	a.repl.Enqueue("clear", store, "", nil)
}

// GetJSON decodes the settings entry key into v. It returns false if the
// entry is absent, unreadable or not valid JSON for v.
func (a *Adapter) GetJSON(ctx context.Context, key string, v any) bool {
	raw, ok := a.Get(ctx, Settings, key)
	if !ok {
		return false
	}
	if err := json.Unmarshal(raw, v); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("PersistenceError: stored setting is not valid JSON")
		return false
	}
	return true
}

// SetJSON replicates v as JSON under the settings entry key.
func (a *Adapter) SetJSON(key string, v any) {
	raw, err := json.Marshal(v)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("PersistenceError: setting could not be encoded")
		return
	}
	a.Set(Settings, key, raw)
}

// Flush waits until every write enqueued so far has been applied.
func (a *Adapter) Flush(ctx context.Context) error {
	return a.repl.Flush(ctx)
}

// Close drains pending writes and closes the backend.
func (a *Adapter) Close(ctx context.Context) error {
	flushErr := a.repl.Close(ctx)
	if err := a.backend.Close(); err != nil {
		log.Warn().Err(err).Msg("PersistenceError: closing backend failed")
	}
	return flushErr
}
