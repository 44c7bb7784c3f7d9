package tree

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/brianly1003/dirfilter/internal/domain"
	"github.com/brianly1003/dirfilter/internal/sync"
	"github.com/rs/zerolog/log"
)

// TreeScanner produces a fresh tree on every call.
type TreeScanner interface {
	Scan(ctx context.Context) (*Directory, error)
}

// Store holds the current tree snapshot and signals structural changes.
//
// Changes() has a buffer of one: signals raised while a previous one is still
// unconsumed collapse into it.
type Store struct {
	scanner TreeScanner

	current atomic.Pointer[Directory]
	changes chan struct{}

	// mu serializes rescans and guards closed
	mu     sync.Mutex
	closed bool
}

// NewStore creates a store holding an initial tree.
func NewStore(scanner TreeScanner, initial *Directory) *Store {
	s := &Store{
		scanner: scanner,
		changes: make(chan struct{}, 1),
	}
	s.current.Store(initial)
	return s
}

// Load performs an initial scan and returns a store holding its result.
func Load(ctx context.Context, scanner TreeScanner) (*Store, error) {
	start := time.Now()
	root, err := scanner.Scan(ctx)
	if err != nil {
		return nil, err
	}

	log.Info().
		Int("files", root.FileCount()).
		Int("directories", root.DirCount()).
		Dur("elapsed", time.Since(start)).
		Msg("directory tree scanned")

	return NewStore(scanner, root), nil
}

// Current returns the latest tree snapshot.
func (s *Store) Current() *Directory {
	return s.current.Load()
}

// Changes returns the channel signalled after each structural change.
// It is closed by Close.
func (s *Store) Changes() <-chan struct{} {
	return s.changes
}

// Replace swaps in a new tree and signals if its shape differs from the
// current one. It returns whether a change was signalled.
func (s *Store) Replace(root *Directory) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.replaceLocked(root)
}

func (s *Store) replaceLocked(root *Directory) bool {
	if s.closed || root == nil {
		return false
	}
	if SameShape(s.current.Load(), root) {
		return false
	}
	s.current.Store(root)

	select {
	case s.changes <- struct{}{}:
	default:
	}
	return true
}

// Rescan builds a new tree and publishes it if anything changed.
func (s *Store) Rescan(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false, domain.ErrNoTreeAvailable
	}

	root, err := s.scanner.Scan(ctx)
	if err != nil {
		return false, err
	}

	changed := s.replaceLocked(root)
	if changed {
		log.Debug().Int("files", root.FileCount()).Msg("directory tree changed")
	}
	return changed, nil
}

// Close closes the change channel. Further rescans are rejected.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.changes)
}
