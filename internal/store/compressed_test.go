package store

import (
	"bytes"
	"context"
	"strings"
	"testing"
)

func TestCompressedBackend_RoundTrip(t *testing.T) {
	ctx := context.Background()
	inner := newTestSQLite(t)
	c, err := NewCompressedBackend(inner)
	if err != nil {
		t.Fatalf("NewCompressedBackend: %v", err)
	}

	payload := []byte("data:image/png;base64," + strings.Repeat("QUJD", 2000))
	if err := c.Set(ctx, Outputs, "p1", payload); err != nil {
		t.Fatalf("Set: %v", err)
	}

	raw, ok, _ := inner.Get(ctx, Outputs, "p1")
	if !ok || !bytes.HasPrefix(raw, zstdMagic) {
		t.Fatal("inner backend should hold a zstd frame")
	}
	if len(raw) >= len(payload) {
		t.Errorf("compressed size %d not smaller than %d", len(raw), len(payload))
	}

	got, ok, err := c.Get(ctx, Outputs, "p1")
	if err != nil || !ok || !bytes.Equal(got, payload) {
		t.Errorf("Get round trip failed: ok=%v err=%v", ok, err)
	}
}

func TestCompressedBackend_ReadsUncompressedValues(t *testing.T) {
	ctx := context.Background()
	inner := newTestSQLite(t)
	if err := inner.Set(ctx, Settings, "photos", []byte(`[{"id":"p1"}]`)); err != nil {
		t.Fatalf("Set: %v", err)
	}

	c, err := NewCompressedBackend(inner)
	if err != nil {
		t.Fatalf("NewCompressedBackend: %v", err)
	}
	got, ok, err := c.Get(ctx, Settings, "photos")
	if err != nil || !ok || string(got) != `[{"id":"p1"}]` {
		t.Errorf("Get = %q, %v, %v", got, ok, err)
	}

	if err := c.Set(ctx, Settings, "favorites", []byte(`["p1"]`)); err != nil {
		t.Fatalf("Set: %v", err)
	}
	all, err := c.GetAll(ctx, Settings)
	if err != nil {
		t.Fatalf("GetAll: %v", err)
	}
	if string(all["photos"]) != `[{"id":"p1"}]` || string(all["favorites"]) != `["p1"]` {
		t.Errorf("GetAll mixed values = %q", all)
	}
}

func TestCompressedBackend_CorruptFrame(t *testing.T) {
	ctx := context.Background()
	inner := newTestSQLite(t)
	corrupt := append(append([]byte{}, zstdMagic...), 0xFF, 0xFF, 0xFF)
	if err := inner.Set(ctx, Outputs, "bad", corrupt); err != nil {
		t.Fatalf("Set: %v", err)
	}
	c, err := NewCompressedBackend(inner)
	if err != nil {
		t.Fatalf("NewCompressedBackend: %v", err)
	}
	if _, _, err := c.Get(ctx, Outputs, "bad"); err == nil {
		t.Error("expected decode error for corrupt frame")
	}
}
