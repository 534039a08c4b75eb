package classfile

import (
	"database/sql"
	"errors"
	"fmt"
	"sync"

	_ "modernc.org/sqlite"
)

// ---------------------------------------------------------------------------
// Store: persistent class-file storage
//
// An agent restart should not refetch bytecode from the debuggee; the
// store keeps encoded class files (hash included) in SQLite keyed by
// class signature.
// ---------------------------------------------------------------------------

// Store is a SQLite-backed class-file store.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// OpenStore opens (creating if needed) the store at the given path.
func OpenStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening class-file store: %w", err)
	}

	// Busy timeout for concurrent agent processes sharing the file.
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS class_files (
		signature TEXT PRIMARY KEY,
		data BLOB NOT NULL
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating table: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Put upserts a class file.
func (s *Store) Put(cf *ClassFile) error {
	data, err := MarshalClassFile(cf)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = s.db.Exec(
		"INSERT OR REPLACE INTO class_files (signature, data) VALUES (?, ?)",
		cf.Signature, data,
	)
	if err != nil {
		return fmt.Errorf("storing class file %s: %w", cf.Signature, err)
	}
	return nil
}

// Get reads a class file back, verifying its content hash. The second
// return is false when the signature is absent.
func (s *Store) Get(signature string) (*ClassFile, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var data []byte
	err := s.db.QueryRow(
		"SELECT data FROM class_files WHERE signature = ?", signature,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("reading class file %s: %w", signature, err)
	}
	cf, err := UnmarshalClassFile(data)
	if err != nil {
		return nil, false, err
	}
	return cf, true, nil
}

// Signatures lists every stored class signature.
func (s *Store) Signatures() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, err := s.db.Query("SELECT signature FROM class_files ORDER BY signature")
	if err != nil {
		return nil, fmt.Errorf("listing class files: %w", err)
	}
	defer rows.Close()
	var sigs []string
	for rows.Next() {
		var sig string
		if err := rows.Scan(&sig); err != nil {
			return nil, err
		}
		sigs = append(sigs, sig)
	}
	return sigs, rows.Err()
}

// StoreLoader is a read-through loader: hits come from the store, misses
// fall through to the inner loader and are written back. A write-back
// failure is logged, not fatal; the fetched class file is still served.
type StoreLoader struct {
	store *Store
	inner Loader
}

func NewStoreLoader(store *Store, inner Loader) *StoreLoader {
	return &StoreLoader{store: store, inner: inner}
}

func (l *StoreLoader) LoadClassFile(signature string) (*ClassFile, error) {
	cf, ok, err := l.store.Get(signature)
	if err != nil {
		log.Errorf("store read for %s: %v", signature, err)
	} else if ok {
		return cf, nil
	}
	cf, err = l.inner.LoadClassFile(signature)
	if err != nil {
		return nil, err
	}
	if err := l.store.Put(cf); err != nil {
		log.Errorf("store write for %s: %v", signature, err)
	}
	return cf, nil
}
