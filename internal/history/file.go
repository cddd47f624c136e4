package history

import (
	"context"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/oakwood-commons/dumpx/pkg/settings"
)

// FileStore keeps one msgpack file per key in a directory.
type FileStore struct {
	mu  sync.RWMutex
	dir string
	ttl time.Duration
}

var _ Store = (*FileStore)(nil)

// NewFileStore creates dir if needed. An empty dir means
// <user cache dir>/dumpx/history; a zero ttl never expires.
func NewFileStore(dir string, ttl time.Duration) (*FileStore, error) {
	if dir == "" {
		base, err := os.UserCacheDir()
		if err != nil {
			return nil, errors.Wrap(err, "locate cache dir")
		}
		dir = filepath.Join(base, settings.CliBinaryName, "history")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, errors.Wrap(err, "create history dir")
	}
	return &FileStore{dir: dir, ttl: ttl}, nil
}

// Dir returns the directory snapshots are written to.
func (s *FileStore) Dir() string { return s.dir }

func (s *FileStore) path(key string) string {
	return filepath.Join(s.dir, url.PathEscape(key)+".msgpack")
}

func (s *FileStore) Get(_ context.Context, key string) (*Snapshot, error) {
	if key == "" {
		return nil, ErrEmptyKey
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(s.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "read snapshot")
	}
	snap, err := Decode(data)
	if err != nil {
		return nil, err
	}
	if s.ttl > 0 && time.Since(snap.Taken) > s.ttl {
		return nil, nil
	}
	return snap, nil
}

// Put writes atomically through a temporary file in the same directory.
func (s *FileStore) Put(_ context.Context, snap *Snapshot) error {
	if snap.Key == "" {
		return ErrEmptyKey
	}
	data, err := Encode(snap)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.CreateTemp(s.dir, "tmp-*")
	if err != nil {
		return errors.Wrap(err, "create snapshot")
	}
	defer os.Remove(f.Name()) //nolint:errcheck // gone after a successful rename
	if _, err := f.Write(data); err != nil {
		f.Close() //nolint:errcheck,gosec // write error wins
		return errors.Wrap(err, "write snapshot")
	}
	if err := f.Close(); err != nil {
		return errors.Wrap(err, "write snapshot")
	}
	return os.Rename(f.Name(), s.path(snap.Key))
}

func (s *FileStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(s.path(key)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return errors.Wrap(err, "remove snapshot")
	}
	return nil
}

func (s *FileStore) Close() error { return nil }
