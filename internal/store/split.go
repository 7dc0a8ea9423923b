package store

import (
	"context"
	"errors"
)

// SplitBackend routes the payload stores (inputs, outputs) to one backend and
// settings to another, e.g. S3 for payloads and DynamoDB for settings.
type SplitBackend struct {
	Payloads Backend
	Settings Backend
}

var _ Backend = (*SplitBackend)(nil)

func (s *SplitBackend) route(store string) Backend {
	if IsPayloadStore(store) {
		return s.Payloads
	}
	return s.Settings
}

func (s *SplitBackend) Get(ctx context.Context, store, key string) ([]byte, bool, error) {
	return s.route(store).Get(ctx, store, key)
}

func (s *SplitBackend) Set(ctx context.Context, store, key string, value []byte) error {
	return s.route(store).Set(ctx, store, key, value)
}

func (s *SplitBackend) Delete(ctx context.Context, store, key string) error {
	return s.route(store).Delete(ctx, store, key)
}

func (s *SplitBackend) Clear(ctx context.Context, store string) error {
	return s.route(store).Clear(ctx, store)
}

func (s *SplitBackend) GetAll(ctx context.Context, store string) (map[string][]byte, error) {
	return s.route(store).GetAll(ctx, store)
}

// Close closes both backends.
func (s *SplitBackend) Close() error {
	return errors.Join(s.Payloads.Close(), s.Settings.Close())
}
