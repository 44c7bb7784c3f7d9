package tree

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/brianly1003/dirfilter/internal/domain"
	"github.com/gobwas/glob"
	"github.com/rs/zerolog/log"
)

// Scanner errors
var (
	ErrTooManyFiles   = errors.New("too many files to scan")
	ErrInvalidPattern = errors.New("invalid ignore pattern")
)

// MaxFilesPerScan is the maximum number of files a single scan will collect.
const MaxFilesPerScan = 1000000

// ScannerOptions configures which entries a Scanner skips.
type ScannerOptions struct {
	// SkipDirectories are directory base names that are never entered.
	SkipDirectories []string

	// IgnorePatterns are glob patterns matched against base names and
	// root-relative paths of both files and directories.
	IgnorePatterns []string

	// IncludeHidden keeps dot-files and dot-directories.
	IncludeHidden bool
}

// Scanner builds immutable Directory trees from the file system.
type Scanner struct {
	rootAbs       string
	skipDirs      map[string]bool
	ignores       []glob.Glob
	includeHidden bool
}

// NewScanner creates a scanner rooted at root.
func NewScanner(root string, opts ScannerOptions) (*Scanner, error) {
	absPath, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(absPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", domain.ErrRootNotFound, absPath)
		}
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", domain.ErrRootNotDirectory, absPath)
	}

	skipDirs := make(map[string]bool, len(opts.SkipDirectories))
	for _, dir := range opts.SkipDirectories {
		skipDirs[dir] = true
	}

	ignores := make([]glob.Glob, 0, len(opts.IgnorePatterns))
	for _, pattern := range opts.IgnorePatterns {
		g, err := glob.Compile(pattern, '/')
		if err != nil {
			return nil, errors.Join(ErrInvalidPattern, err)
		}
		ignores = append(ignores, g)
	}

	return &Scanner{
		rootAbs:       absPath,
		skipDirs:      skipDirs,
		ignores:       ignores,
		includeHidden: opts.IncludeHidden,
	}, nil
}

// RootPath returns the absolute root path.
func (s *Scanner) RootPath() string {
	return s.rootAbs
}

// Scan walks the root and returns a new tree. Paths in the tree are relative
// to the root, which itself has the path ".".
func (s *Scanner) Scan(ctx context.Context) (*Directory, error) {
	count := 0
	root, err := s.scanDir(ctx, s.rootAbs, ".", &count)
	if err != nil {
		return nil, err
	}
	return root, nil
}

func (s *Scanner) scanDir(ctx context.Context, absPath, relPath string, count *int) (*Directory, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	dir := &Directory{Path: relPath}

	entries, err := os.ReadDir(absPath)
	if err != nil {
		// Unreadable directories show up empty rather than failing the scan
		log.Debug().Err(err).Str("path", relPath).Msg("error reading directory")
		return dir, nil
	}

	for _, entry := range entries {
		name := entry.Name()
		childRel := name
		if relPath != "." {
			childRel = filepath.Join(relPath, name)
		}

		if s.shouldIgnore(name, childRel) {
			continue
		}

		if entry.IsDir() {
			if s.skipDirs[name] {
				continue
			}
			child, err := s.scanDir(ctx, filepath.Join(absPath, name), childRel, count)
			if err != nil {
				return nil, err
			}
			dir.Dirs = append(dir.Dirs, child)
			continue
		}

		*count++
		if *count > MaxFilesPerScan {
			return nil, ErrTooManyFiles
		}
		dir.Files = append(dir.Files, File{Path: childRel})
	}

	return dir, nil
}

// shouldIgnore reports whether an entry is hidden or matches an ignore glob.
func (s *Scanner) shouldIgnore(name, relPath string) bool {
	if !s.includeHidden && strings.HasPrefix(name, ".") {
		return true
	}
	for _, g := range s.ignores {
		if g.Match(name) || g.Match(filepath.ToSlash(relPath)) {
			return true
		}
	}
	return false
}

// IsIgnored reports whether a root-relative path would be excluded from a
// scan. Every component of the path is checked.
func (s *Scanner) IsIgnored(relPath string) bool {
	parts := strings.Split(filepath.ToSlash(filepath.Clean(relPath)), "/")
	for i, part := range parts {
		if part == "." || part == "" {
			continue
		}
		prefix := strings.Join(parts[:i+1], "/")
		if s.shouldIgnore(part, prefix) {
			return true
		}
		if s.skipDirs[part] {
			return true
		}
	}
	return false
}
