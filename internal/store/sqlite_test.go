package store

import (
	"context"
	"path/filepath"
	"testing"
)

func newTestSQLite(t *testing.T) *SQLiteBackend {
	t.Helper()
	b, err := OpenSQLite(":memory:")
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { b.Close() })
	return b
}

func TestSQLiteBackend_CRUD(t *testing.T) {
	ctx := context.Background()
	b := newTestSQLite(t)

	if _, ok, err := b.Get(ctx, Inputs, "p1"); err != nil || ok {
		t.Fatalf("Get on empty store = ok %v, err %v", ok, err)
	}

	if err := b.Set(ctx, Inputs, "p1", []byte("in-1")); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := b.Set(ctx, Inputs, "p1", []byte("in-1b")); err != nil {
		t.Fatalf("Set overwrite: %v", err)
	}
	if err := b.Set(ctx, Outputs, "p1", []byte("out-1")); err != nil {
		t.Fatalf("Set: %v", err)
	}

	v, ok, err := b.Get(ctx, Inputs, "p1")
	if err != nil || !ok || string(v) != "in-1b" {
		t.Errorf("Get = %q, %v, %v; want in-1b", v, ok, err)
	}

	if err := b.Delete(ctx, Inputs, "p1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok, _ := b.Get(ctx, Inputs, "p1"); ok {
		t.Error("entry should be gone after Delete")
	}
	if _, ok, _ := b.Get(ctx, Outputs, "p1"); !ok {
		t.Error("Delete must not touch other stores")
	}
}

func TestSQLiteBackend_GetAllAndClear(t *testing.T) {
	ctx := context.Background()
	b := newTestSQLite(t)

	for _, k := range []string{"a", "b", "c"} {
		if err := b.Set(ctx, Outputs, k, []byte("v-"+k)); err != nil {
			t.Fatalf("Set: %v", err)
		}
	}
	if err := b.Set(ctx, Settings, "photos", []byte("[]")); err != nil {
		t.Fatalf("Set: %v", err)
	}

	all, err := b.GetAll(ctx, Outputs)
	if err != nil {
		t.Fatalf("GetAll: %v", err)
	}
	if len(all) != 3 || string(all["b"]) != "v-b" {
		t.Errorf("GetAll = %v", all)
	}

	if err := b.Clear(ctx, Outputs); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	all, _ = b.GetAll(ctx, Outputs)
	if len(all) != 0 {
		t.Errorf("expected empty store after Clear, got %d entries", len(all))
	}
	if _, ok, _ := b.Get(ctx, Settings, "photos"); !ok {
		t.Error("Clear must not touch other stores")
	}
}

func TestSQLiteBackend_UnknownStore(t *testing.T) {
	b := newTestSQLite(t)
	if err := b.Set(context.Background(), "thumbnails", "k", []byte("v")); err == nil {
		t.Error("expected error for unknown store")
	}
}

func TestSQLiteBackend_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "booth.db")

	b, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	if err := b.Set(ctx, Settings, "favorites", []byte(`["p1"]`)); err != nil {
		t.Fatalf("Set: %v", err)
	}
	b.Close()

	b, err = OpenSQLite(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer b.Close()
	v, ok, err := b.Get(ctx, Settings, "favorites")
	if err != nil || !ok || string(v) != `["p1"]` {
		t.Errorf("after reopen Get = %q, %v, %v", v, ok, err)
	}
}
