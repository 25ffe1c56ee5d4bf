package credstore

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/your-org/credguard/internal/service/kdf"
	"github.com/your-org/credguard/pkg/logger"
)

const defaultDebounce = 200 * time.Millisecond

// Store publishes the current credential snapshot.
type Store struct {
	deriver  *kdf.Deriver
	current  atomic.Pointer[Snapshot]
	path     string
	debounce time.Duration
	onSwap   func(*Snapshot)
	onError  func(error)

	mu      sync.Mutex
	watcher *fsnotify.Watcher
	done    chan struct{}
}

// Option configures a Store.
type Option func(*Store)

// WithSeedsFile makes the store load its records from a YAML seeds file.
func WithSeedsFile(path string) Option {
	return func(s *Store) {
		s.path = path
	}
}

// WithDebounce sets the delay between a file event and the reload.
func WithDebounce(d time.Duration) Option {
	return func(s *Store) {
		s.debounce = d
	}
}

// WithSwapHook registers a callback invoked after every successful swap.
func WithSwapHook(fn func(*Snapshot)) Option {
	return func(s *Store) {
		s.onSwap = fn
	}
}

// WithReloadErrorHook registers fn to be called when a watched reload
// fails.
func WithReloadErrorHook(fn func(error)) Option {
	return func(s *Store) {
		s.onError = fn
	}
}

// New builds the initial snapshot. When a seeds file is configured it is
// the only source; otherwise inline seeds are used, falling back to
// DefaultSeeds when none are given.
func New(d *kdf.Deriver, seeds []Seed, opts ...Option) (*Store, error) {
	s := &Store{
		deriver:  d,
		debounce: defaultDebounce,
	}
	for _, opt := range opts {
		opt(s)
	}

	var (
		snap *Snapshot
		err  error
	)
	switch {
	case s.path != "":
		snap, err = s.buildFromFile()
	case len(seeds) > 0:
		snap, err = Build(d, "inline", seeds)
	default:
		snap, err = Build(d, "default", DefaultSeeds())
	}
	if err != nil {
		return nil, err
	}

	s.Swap(snap)
	return s, nil
}

// Snapshot returns the current snapshot. Callers must use one snapshot for
// the whole of a verification.
func (s *Store) Snapshot() *Snapshot {
	return s.current.Load()
}

// Swap publishes snap as the current snapshot.
func (s *Store) Swap(snap *Snapshot) {
	s.current.Store(snap)
	if s.onSwap != nil {
		s.onSwap(snap)
	}
}

// Reload rebuilds the snapshot from the seeds file. On failure the previous
// snapshot stays current.
func (s *Store) Reload() error {
	if s.path == "" {
		return fmt.Errorf("no seeds file configured")
	}

	snap, err := s.buildFromFile()
	if err != nil {
		return err
	}

	s.Swap(snap)
	logger.Info("credential snapshot reloaded",
		logger.String("path", s.path),
		logger.Int("records", snap.Len()),
	)
	return nil
}

func (s *Store) buildFromFile() (*Snapshot, error) {
	seeds, err := LoadSeedsFile(s.path)
	if err != nil {
		return nil, err
	}
	return Build(s.deriver, s.path, seeds)
}

// Watch reloads the snapshot whenever the seeds file changes, until ctx is
// done or Close is called.
func (s *Store) Watch(ctx context.Context) error {
	if s.path == "" {
		return fmt.Errorf("no seeds file configured")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}

	// Watch the directory so atomic renames are seen.
	dir := filepath.Dir(s.path)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	s.mu.Lock()
	s.watcher = watcher
	s.done = make(chan struct{})
	done := s.done
	s.mu.Unlock()

	logger.Info("watching credential seeds file", logger.String("path", s.path))

	go s.watchLoop(ctx, watcher, done)
	return nil
}

func (s *Store) watchLoop(ctx context.Context, watcher *fsnotify.Watcher, done chan struct{}) {
	defer close(done)

	target, _ := filepath.Abs(s.path)

	debounce := time.NewTimer(time.Hour)
	debounce.Stop()
	defer debounce.Stop()

	for {
		select {
		case <-ctx.Done():
			watcher.Close()
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			name, _ := filepath.Abs(event.Name)
			if name != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			debounce.Reset(s.debounce)

		case <-debounce.C:
			if err := s.Reload(); err != nil {
				if s.onError != nil {
					s.onError(err)
				}
				logger.Error("credential reload failed, keeping previous snapshot",
					logger.String("path", s.path),
					logger.Err(err),
				)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			logger.Warn("seeds watcher error", logger.Err(err))
		}
	}
}

// Close stops the watcher, if any, and waits for it to exit.
func (s *Store) Close() error {
	s.mu.Lock()
	watcher, done := s.watcher, s.done
	s.watcher = nil
	s.mu.Unlock()

	if watcher == nil {
		return nil
	}
	err := watcher.Close()
	<-done
	return err
}
