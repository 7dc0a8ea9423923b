// Package store provides best-effort durable storage for the booth.
//
// Data lives in three logical stores: "inputs" and "outputs" hold one
// data-URL payload per photo id, and "settings" is a flat key-value namespace
// for small JSON documents (photo list, favorites, selection, configuration).
// A Backend implements raw access to those stores; the Adapter wraps a
// Backend so that storage failures are logged and never reach callers.
package store

import (
	"context"
	"fmt"
)

// Logical store names.
const (
	Inputs   = "inputs"
	Outputs  = "outputs"
	Settings = "settings"
)

// Stores lists every logical store in a stable order.
var Stores = []string{Inputs, Outputs, Settings}

// Backend is raw access to the logical stores. Implementations are safe for
// concurrent use and return errors; Get reports absence with ok=false and a
// nil error.
type Backend interface {
	Get(ctx context.Context, store, key string) (value []byte, ok bool, err error)
	Set(ctx context.Context, store, key string, value []byte) error
	Delete(ctx context.Context, store, key string) error
	Clear(ctx context.Context, store string) error
	GetAll(ctx context.Context, store string) (map[string][]byte, error)
	Close() error
}

// checkStore rejects store names outside Stores.
func checkStore(store string) error {
	for _, s := range Stores {
		if s == store {
			return nil
		}
	}
	return fmt.Errorf("unknown store %q", store)
}

// IsPayloadStore reports whether store holds image payloads.
func IsPayloadStore(store string) bool {
	return store == Inputs || store == Outputs
}
