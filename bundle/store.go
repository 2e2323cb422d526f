package bundle

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	lru "github.com/hashicorp/golang-lru/v2"
)

const defaultCacheSize = 4

// Store caches loaded bundles by path so repeated prediction batches do not
// re-read the file. An fsnotify watcher evicts a cached bundle when a
// retraining run overwrites its file.
type Store struct {
	mu      sync.Mutex
	cache   *lru.Cache[string, *Bundle]
	watcher *fsnotify.Watcher
	watched map[string]struct{} // directories under watch
	done    chan struct{}
}

// NewStore creates a store with an LRU of size bundles.
func NewStore(size int) (*Store, error) {
	if size <= 0 {
		size = defaultCacheSize
	}
	cache, err := lru.New[string, *Bundle](size)
	if err != nil {
		return nil, err
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create bundle watcher: %w", err)
	}
	s := &Store{
		cache:   cache,
		watcher: watcher,
		watched: make(map[string]struct{}),
		done:    make(chan struct{}),
	}
	go s.watchLoop()
	return s, nil
}

func (s *Store) watchLoop() {
	for {
		select {
		case <-s.done:
			return
		case ev, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) != 0 {
				s.mu.Lock()
				s.cache.Remove(ev.Name)
				s.mu.Unlock()
			}
		case _, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
		}
	}
}

// Load returns the bundle at path, from cache when the file has not changed
// since the last read.
func (s *Store) Load(path string) (*Bundle, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	if b, ok := s.cache.Get(abs); ok {
		s.mu.Unlock()
		return b, nil
	}
	s.mu.Unlock()

	b, err := Load(abs)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.watchDir(abs)
	s.cache.Add(abs, b)
	return b, nil
}

// watchDir registers the parent directory of abs. Watching the directory
// rather than the file survives atomic replace-by-rename. Caller holds mu.
func (s *Store) watchDir(abs string) {
	dir := filepath.Dir(abs)
	if _, ok := s.watched[dir]; ok {
		return
	}
	if err := s.watcher.Add(dir); err == nil {
		s.watched[dir] = struct{}{}
	}
}

// Save persists the bundle and primes the cache with it.
func (s *Store) Save(path string, b *Bundle) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	if err := Save(abs, b); err != nil {
		return err
	}
	s.mu.Lock()
	s.watchDir(abs)
	s.cache.Add(abs, b)
	s.mu.Unlock()
	return nil
}

// Close stops the watcher. Cached bundles stay usable.
func (s *Store) Close() error {
	close(s.done)
	return s.watcher.Close()
}
