package classfile

import (
	"fmt"
	"testing"
)

// countingLoader records how many times each signature was fetched.
type countingLoader struct {
	inner MapLoader
	calls map[string]int
}

func newCountingLoader(inner MapLoader) *countingLoader {
	return &countingLoader{inner: inner, calls: make(map[string]int)}
}

func (l *countingLoader) LoadClassFile(signature string) (*ClassFile, error) {
	l.calls[signature]++
	return l.inner.LoadClassFile(signature)
}

func TestCacheMetersGenuineLoadsOnly(t *testing.T) {
	cf := &ClassFile{Signature: "Lcom/acme/Point;"}
	loader := newCountingLoader(MapLoader{cf.Signature: cf})
	cache := NewCache(loader)

	got, loaded, err := cache.Load(cf.Signature)
	if err != nil {
		t.Fatalf("first load: %v", err)
	}
	if !loaded {
		t.Error("first load reported as cache hit")
	}
	if got != cf {
		t.Error("wrong class file returned")
	}

	_, loaded, err = cache.Load(cf.Signature)
	if err != nil {
		t.Fatalf("second load: %v", err)
	}
	if loaded {
		t.Error("cache hit reported as genuine load")
	}
	if loader.calls[cf.Signature] != 1 {
		t.Errorf("source consulted %d times, want 1", loader.calls[cf.Signature])
	}
}

func TestCacheDoesNotCacheFailures(t *testing.T) {
	loader := newCountingLoader(MapLoader{})
	cache := NewCache(loader)

	if _, _, err := cache.Load("Lcom/acme/Missing;"); err == nil {
		t.Fatal("missing class loaded")
	}
	if cache.Contains("Lcom/acme/Missing;") {
		t.Error("failed load was cached")
	}

	// The class appears later; a retry must reach the source again.
	loader.inner["Lcom/acme/Missing;"] = &ClassFile{Signature: "Lcom/acme/Missing;"}
	if _, loaded, err := cache.Load("Lcom/acme/Missing;"); err != nil || !loaded {
		t.Errorf("retry after failure: loaded=%v err=%v", loaded, err)
	}
	if loader.calls["Lcom/acme/Missing;"] != 2 {
		t.Errorf("source consulted %d times, want 2", loader.calls["Lcom/acme/Missing;"])
	}
}

func TestCacheLen(t *testing.T) {
	m := make(MapLoader)
	for i := 0; i < 3; i++ {
		sig := fmt.Sprintf("Lcom/acme/C%d;", i)
		m[sig] = &ClassFile{Signature: sig}
	}
	cache := NewCache(m)
	for sig := range m {
		if _, _, err := cache.Load(sig); err != nil {
			t.Fatalf("load %s: %v", sig, err)
		}
	}
	if cache.Len() != 3 {
		t.Errorf("cache size = %d, want 3", cache.Len())
	}
}
