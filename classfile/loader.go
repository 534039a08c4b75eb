package classfile

import (
	"fmt"
	"sync"

	"github.com/tliron/commonlog"

	"github.com/henrybell/cloud-debug-java/jvm"
)

var log = commonlog.GetLogger("classfile")

// Loader fetches class files from wherever the debuggee's bytecode
// lives. Implementations: MapLoader (in-memory, images, tests) and
// StoreLoader (persistent read-through cache).
type Loader interface {
	LoadClassFile(signature string) (*ClassFile, error)
}

// MapLoader serves class files from a map. The zero value is an empty
// source.
type MapLoader map[string]*ClassFile

func (m MapLoader) LoadClassFile(signature string) (*ClassFile, error) {
	cf, ok := m[signature]
	if !ok {
		return nil, fmt.Errorf("no bytecode for class %s", jvm.BinaryName(signature))
	}
	return cf, nil
}

// NewImageLoader decodes an image and serves its class files.
func NewImageLoader(data []byte) (MapLoader, error) {
	classes, err := UnmarshalImage(data)
	if err != nil {
		return nil, err
	}
	m := make(MapLoader, len(classes))
	for _, cf := range classes {
		m[cf.Signature] = cf
	}
	return m, nil
}

// Cache is the metering layer between the orchestrator and a Loader.
// Load reports whether a genuine fetch happened so the caller can charge
// class-load quota for real loads only; cache hits are free. Failed
// loads are not cached. Safe for concurrent use; one cache is shared by
// every orchestrator inspecting the same process.
type Cache struct {
	mu      sync.Mutex
	loader  Loader
	entries map[string]*ClassFile
}

func NewCache(loader Loader) *Cache {
	return &Cache{loader: loader, entries: make(map[string]*ClassFile)}
}

// Load returns the class file for a signature. loaded reports whether
// the bytecode source was actually consulted.
func (c *Cache) Load(signature string) (cf *ClassFile, loaded bool, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cf, ok := c.entries[signature]; ok {
		return cf, false, nil
	}
	cf, err = c.loader.LoadClassFile(signature)
	if err != nil {
		log.Debugf("load %s failed: %v", signature, err)
		return nil, false, err
	}
	c.entries[signature] = cf
	return cf, true, nil
}

// Contains reports whether a signature is already cached.
func (c *Cache) Contains(signature string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[signature]
	return ok
}

// Len returns the number of cached class files.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
