// Package store persists a journal.Book in a plain key-value string store.
//
// Each part of the book lives under its own key, serialized as JSON, or as a
// raw string for scalars. Absent keys load as defaults.
package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sync"
)

// KV is a plain key-value string storage.
type KV interface {
	// Get returns the value of key, ok is false if the key is absent.
	Get(key string) (value string, ok bool, err error)
	Set(key, value string) error
	Delete(key string) error
}

// MemKV is an in memory KV.
type MemKV struct {
	mu sync.Mutex
	m  map[string]string
}

func NewMemKV() *MemKV { return &MemKV{m: make(map[string]string)} }

func (kv *MemKV) Get(key string) (string, bool, error) {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	v, ok := kv.m[key]
	return v, ok, nil
}

func (kv *MemKV) Set(key, value string) error {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	kv.m[key] = value
	return nil
}

func (kv *MemKV) Delete(key string) error {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	delete(kv.m, key)
	return nil
}

// FileKV stores each key in its own file under a directory.
type FileKV struct {
	dir string
}

var validKey = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)

// NewFileKV creates the directory if needed.
func NewFileKV(dir string) (*FileKV, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return &FileKV{dir: dir}, nil
}

func (kv *FileKV) path(key string) (string, error) {
	if !validKey.MatchString(key) {
		return "", fmt.Errorf("invalid key %q", key)
	}
	return filepath.Join(kv.dir, key), nil
}

func (kv *FileKV) Get(key string) (string, bool, error) {
	p, err := kv.path(key)
	if err != nil {
		return "", false, err
	}
	data, err := os.ReadFile(p)
	if errors.Is(err, os.ErrNotExist) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("read %q: %w", key, err)
	}
	return string(data), true, nil
}

// Set writes to a temporary file and renames it, so a value is never half written.
func (kv *FileKV) Set(key, value string) error {
	p, err := kv.path(key)
	if err != nil {
		return err
	}
	f, err := os.CreateTemp(kv.dir, "."+key+"-*")
	if err != nil {
		return fmt.Errorf("write %q: %w", key, err)
	}
	if _, err := f.WriteString(value); err != nil {
		f.Close()
		os.Remove(f.Name())
		return fmt.Errorf("write %q: %w", key, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return fmt.Errorf("write %q: %w", key, err)
	}
	if err := os.Rename(f.Name(), p); err != nil {
		os.Remove(f.Name())
		return fmt.Errorf("write %q: %w", key, err)
	}
	return nil
}

func (kv *FileKV) Delete(key string) error {
	p, err := kv.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete %q: %w", key, err)
	}
	return nil
}
