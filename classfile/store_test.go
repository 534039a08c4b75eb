package classfile

import (
	"path/filepath"
	"testing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := OpenStore(filepath.Join(t.TempDir(), "classfiles.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStorePutGet(t *testing.T) {
	store := openTestStore(t)
	cf := sampleClassFile()

	if err := store.Put(cf); err != nil {
		t.Fatalf("put: %v", err)
	}
	back, ok, err := store.Get(cf.Signature)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !ok {
		t.Fatal("stored class file not found")
	}
	if back.Signature != cf.Signature || len(back.Methods) != len(cf.Methods) {
		t.Errorf("got %s with %d methods", back.Signature, len(back.Methods))
	}

	if _, ok, err := store.Get("Lcom/acme/Absent;"); err != nil || ok {
		t.Errorf("absent lookup: ok=%v err=%v", ok, err)
	}
}

func TestStoreUpsert(t *testing.T) {
	store := openTestStore(t)
	cf := &ClassFile{Signature: "Lcom/acme/Point;"}
	if err := store.Put(cf); err != nil {
		t.Fatalf("put: %v", err)
	}

	update := sampleClassFile()
	if err := store.Put(update); err != nil {
		t.Fatalf("put update: %v", err)
	}
	back, ok, err := store.Get(cf.Signature)
	if err != nil || !ok {
		t.Fatalf("get after update: ok=%v err=%v", ok, err)
	}
	if len(back.Methods) != 2 {
		t.Errorf("methods after update = %d, want 2", len(back.Methods))
	}

	sigs, err := store.Signatures()
	if err != nil {
		t.Fatalf("signatures: %v", err)
	}
	if len(sigs) != 1 || sigs[0] != "Lcom/acme/Point;" {
		t.Errorf("signatures = %v", sigs)
	}
}

func TestStoreLoaderReadThrough(t *testing.T) {
	store := openTestStore(t)
	cf := sampleClassFile()
	inner := newCountingLoader(MapLoader{cf.Signature: cf})
	loader := NewStoreLoader(store, inner)

	if _, err := loader.LoadClassFile(cf.Signature); err != nil {
		t.Fatalf("first load: %v", err)
	}
	if inner.calls[cf.Signature] != 1 {
		t.Errorf("inner consulted %d times, want 1", inner.calls[cf.Signature])
	}

	// Second load is served from the store, not the inner loader.
	if _, err := loader.LoadClassFile(cf.Signature); err != nil {
		t.Fatalf("second load: %v", err)
	}
	if inner.calls[cf.Signature] != 1 {
		t.Errorf("inner consulted %d times after store hit, want 1", inner.calls[cf.Signature])
	}

	if _, err := loader.LoadClassFile("Lcom/acme/Absent;"); err == nil {
		t.Error("absent class loaded")
	}
}
