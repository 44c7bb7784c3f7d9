package filter

import (
	"context"
	"fmt"

	"github.com/brianly1003/dirfilter/internal/domain"
	"github.com/brianly1003/dirfilter/internal/sync"
	"github.com/brianly1003/dirfilter/internal/tree"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

const (
	// DefaultMaxConcurrentDirs bounds the subtrees walked concurrently.
	DefaultMaxConcurrentDirs = 4
	// DefaultFileWorkers is the size of the pool used for flat file lists.
	DefaultFileWorkers = 8
)

// MatcherOptions configures the Matcher. Zero values select the defaults.
type MatcherOptions struct {
	MaxConcurrentDirs int
	FileWorkers       int
}

// Matcher applies a Pattern to a tree or a file list with bounded parallelism.
// Results are sorted by path, so they do not depend on scheduling.
type Matcher struct {
	maxConcurrentDirs int64
	fileWorkers       int
}

// NewMatcher creates a matcher.
func NewMatcher(opts MatcherOptions) *Matcher {
	m := &Matcher{
		maxConcurrentDirs: int64(opts.MaxConcurrentDirs),
		fileWorkers:       opts.FileWorkers,
	}
	if m.maxConcurrentDirs <= 0 {
		m.maxConcurrentDirs = DefaultMaxConcurrentDirs
	}
	if m.fileWorkers <= 0 {
		m.fileWorkers = DefaultFileWorkers
	}
	return m
}

// FindMatches returns every file under root whose path matches p.
//
// A directory below root whose own path matches contributes all of its files
// without testing them. The root itself is never tested since "." is not a
// path of any file. Child subtrees are handed to a goroutine while a semaphore
// slot is free and walked inline otherwise. A panic in any walker fails the
// whole scan with a *domain.ScanError.
func (m *Matcher) FindMatches(root *tree.Directory, p *Pattern) ([]tree.File, error) {
	if root == nil {
		return nil, nil
	}

	w := &treeWalk{
		root:    root,
		pattern: p,
		sem:     semaphore.NewWeighted(m.maxConcurrentDirs),
	}

	rootErr := recoverScan("walk "+root.Path, func() { w.walk(root) })
	// Wait even when the inline walk failed so no walker outlives the scan.
	waitErr := w.group.Wait()
	if rootErr != nil {
		return nil, rootErr
	}
	if waitErr != nil {
		return nil, waitErr
	}
	return w.hits.sorted(), nil
}

// FindFileMatches returns the files of a flat list whose path matches p,
// using a fixed pool of workers.
func (m *Matcher) FindFileMatches(files []tree.File, p *Pattern) ([]tree.File, error) {
	if len(files) == 0 {
		return nil, nil
	}

	var hits collector
	jobs := make(chan tree.File)
	g, ctx := errgroup.WithContext(context.Background())

	for i := 0; i < min(m.fileWorkers, len(files)); i++ {
		g.Go(func() error {
			return recoverScan("filter files", func() {
				var local []tree.File
				for f := range jobs {
					if p.Match(f.Path) {
						local = append(local, f)
					}
				}
				hits.add(local...)
			})
		})
	}

	go func() {
		defer close(jobs)
		for _, f := range files {
			select {
			case jobs <- f:
			case <-ctx.Done():
				return
			}
		}
	}()

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return hits.sorted(), nil
}

type treeWalk struct {
	root    *tree.Directory
	pattern *Pattern
	sem     *semaphore.Weighted
	group   errgroup.Group
	hits    collector
}

func (w *treeWalk) walk(dir *tree.Directory) {
	// The root itself never takes the subtree shortcut. Its path is "." or
	// the configured root, and a pattern such as "." or a prefix of the root
	// path would otherwise select every file in the tree.
	if dir != w.root && w.pattern.Match(dir.Path) {
		w.hits.add(dir.AllFiles()...)
		return
	}

	var local []tree.File
	for _, f := range dir.Files {
		if w.pattern.Match(f.Path) {
			local = append(local, f)
		}
	}
	w.hits.add(local...)

	for _, child := range dir.Dirs {
		if w.sem.TryAcquire(1) {
			w.group.Go(func() error {
				defer w.sem.Release(1)
				return recoverScan("walk "+dir.Path, func() { w.walk(child) })
			})
			continue
		}
		w.walk(child)
	}
}

// collector accumulates matches from any goroutine.
type collector struct {
	mu    sync.Mutex
	files []tree.File
}

func (c *collector) add(files ...tree.File) {
	if len(files) == 0 {
		return
	}
	c.mu.Lock()
	c.files = append(c.files, files...)
	c.mu.Unlock()
}

func (c *collector) sorted() []tree.File {
	c.mu.Lock()
	defer c.mu.Unlock()
	return sortedFiles(c.files)
}

// recoverScan runs fn and converts a panic into a *domain.ScanError.
func recoverScan(op string, fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = domain.NewScanError(op, fmt.Errorf("panic: %v", r))
		}
	}()
	fn()
	return nil
}
