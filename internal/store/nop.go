package store

import "context"

// NopBackend is used when durable storage is disabled or failed to open.
// Reads report absent/empty and writes are discarded.
type NopBackend struct{}

var _ Backend = NopBackend{}

func (NopBackend) Get(context.Context, string, string) ([]byte, bool, error) { return nil, false, nil }
func (NopBackend) Set(context.Context, string, string, []byte) error         { return nil }
func (NopBackend) Delete(context.Context, string, string) error              { return nil }
func (NopBackend) Clear(context.Context, string) error                       { return nil }
func (NopBackend) Close() error                                              { return nil }

func (NopBackend) GetAll(context.Context, string) (map[string][]byte, error) {
	return map[string][]byte{}, nil
}
