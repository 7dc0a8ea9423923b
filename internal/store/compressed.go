package store

import (
	"bytes"
	"context"
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// zstdMagic is the little-endian zstd frame magic number 0xFD2FB528.
var zstdMagic = []byte{0x28, 0xB5, 0x2F, 0xFD}

// CompressedBackend zstd-compresses values before they reach the inner
// backend. Values read back without the zstd frame magic are returned as-is,
// so a store written before compression was enabled stays readable.
type CompressedBackend struct {
	inner Backend
	enc   *zstd.Encoder
	dec   *zstd.Decoder
}

var _ Backend = (*CompressedBackend)(nil)

// NewCompressedBackend wraps inner with zstd compression.
func NewCompressedBackend(inner Backend) (*CompressedBackend, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		enc.Close()
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	return &CompressedBackend{inner: inner, enc: enc, dec: dec}, nil
}

func (c *CompressedBackend) encode(value []byte) []byte {
	return c.enc.EncodeAll(value, make([]byte, 0, len(value)/2))
}

func (c *CompressedBackend) decode(value []byte) ([]byte, error) {
	if !bytes.HasPrefix(value, zstdMagic) {
		return value, nil
	}
	out, err := c.dec.DecodeAll(value, nil)
	if err != nil {
		return nil, fmt.Errorf("zstd decode: %w", err)
	}
	return out, nil
}

func (c *CompressedBackend) Get(ctx context.Context, store, key string) ([]byte, bool, error) {
	value, ok, err := c.inner.Get(ctx, store, key)
	if err != nil || !ok {
		return value, ok, err
	}
	out, err := c.decode(value)
	if err != nil {
		return nil, false, fmt.Errorf("%s/%s: %w", store, key, err)
	}
	return out, true, nil
}

func (c *CompressedBackend) Set(ctx context.Context, store, key string, value []byte) error {
	return c.inner.Set(ctx, store, key, c.encode(value))
}

func (c *CompressedBackend) Delete(ctx context.Context, store, key string) error {
	return c.inner.Delete(ctx, store, key)
}

func (c *CompressedBackend) Clear(ctx context.Context, store string) error {
	return c.inner.Clear(ctx, store)
}

func (c *CompressedBackend) GetAll(ctx context.Context, store string) (map[string][]byte, error) {
	all, err := c.inner.GetAll(ctx, store)
	if err != nil {
		return nil, err
	}
	for k, v := range all {
		out, err := c.decode(v)
		if err != nil {
			return nil, fmt.Errorf("%s/%s: %w", store, k, err)
		}
		all[k] = out
	}
	return all, nil
}

// Close releases the codec and closes the inner backend.
func (c *CompressedBackend) Close() error {
	c.dec.Close()
	encErr := c.enc.Close()
	if err := c.inner.Close(); err != nil {
		return err
	}
	return encErr
}
