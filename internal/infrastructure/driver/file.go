package driver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"time"
)

type fileEnvelope struct {
	Value     string `json:"value"`
	ExpiresAt int64  `json:"expires_at,omitempty"`
}

// FileKV KeyValueDB keeping one file per key inside a directory.
//
// Writes go to a temp file first and are renamed into place, so a reader
// never observes a half written value.
type FileKV struct {
	mu  sync.Mutex
	dir string
	now func() time.Time
}

var _ KeyValueDB = &FileKV{}

// NewFileKV create a FileKV rooted at dir, the directory is created if missing
func NewFileKV(dir string) (*FileKV, error) {
	if dir == "" {
		return nil, errors.New("file kv: directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("file kv: %w", err)
	}
	return &FileKV{dir: dir, now: time.Now}, nil
}

func (f *FileKV) path(key string) string {
	return filepath.Join(f.dir, url.QueryEscape(key)+".json")
}

// Set implement KeyValueDB
func (f *FileKV) Set(ctx context.Context, key string, value string) error {
	return f.SetEX(ctx, key, value, 0)
}

// SetEX implement KeyValueDB
func (f *FileKV) SetEX(ctx context.Context, key string, value string, expiration time.Duration) error {
	data, err := json.Marshal(&fileEnvelope{Value: value, ExpiresAt: expiresAt(f.now(), expiration)})
	if err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	tmp, err := os.CreateTemp(f.dir, ".tmp-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), f.path(key))
}

// Get implement KeyValueDB
func (f *FileKV) Get(ctx context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, err := os.ReadFile(f.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return "", ErrKeyNotFound
	}
	if err != nil {
		return "", err
	}
	var env fileEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return "", fmt.Errorf("file kv: corrupted entry %q: %w", key, err)
	}
	if expired(env.ExpiresAt, f.now()) {
		return "", ErrKeyNotFound
	}
	return env.Value, nil
}

// Exists implement KeyValueDB
func (f *FileKV) Exists(ctx context.Context, key string) (bool, error) {
	_, err := f.Get(ctx, key)
	if errors.Is(err, ErrKeyNotFound) {
		return false, nil
	}
	return err == nil, err
}

// Delete implement KeyValueDB
func (f *FileKV) Delete(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	err := os.Remove(f.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// Ping implement KeyValueDB
func (f *FileKV) Ping(ctx context.Context) error {
	_, err := os.Stat(f.dir)
	return err
}

// Close implement KeyValueDB
func (f *FileKV) Close() error {
	return nil
}
