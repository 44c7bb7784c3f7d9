package filter

import (
	"cmp"
	"slices"

	"github.com/brianly1003/dirfilter/internal/tree"
)

// Snapshot is an immutable copy of a view's match set. It shares no mutable
// state with the view it came from.
type Snapshot struct {
	tree    *tree.Directory
	pattern string
	matches []tree.File
}

func newSnapshot(root *tree.Directory, p *Pattern, matches []tree.File) Snapshot {
	s := Snapshot{
		tree:    root,
		matches: slices.Clone(matches),
	}
	if p != nil {
		s.pattern = p.Raw()
	}
	return s
}

// Matches returns a copy of the matching files, sorted by path.
func (s Snapshot) Matches() []tree.File {
	return slices.Clone(s.matches)
}

// Len returns the number of matches.
func (s Snapshot) Len() int {
	return len(s.matches)
}

// TotalFiles returns the number of files in the tree the snapshot was taken from.
func (s Snapshot) TotalFiles() int {
	return s.tree.FileCount()
}

// Tree returns the tree the matches were computed against.
func (s Snapshot) Tree() *tree.Directory {
	return s.tree
}

// Pattern returns the raw pattern that produced the matches.
func (s Snapshot) Pattern() string {
	return s.pattern
}

// Paths returns the matching paths, optionally truncated to limit entries.
// A limit of zero or less returns all of them.
func (s Snapshot) Paths(limit int) []string {
	n := len(s.matches)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]string, n)
	for i := range out {
		out[i] = s.matches[i].Path
	}
	return out
}

// SameMatches reports whether both snapshots hold the same files in the same order.
func (s Snapshot) SameMatches(other Snapshot) bool {
	return EqualFiles(s.matches, other.matches)
}

// EqualFiles reports whether two match lists have equal content.
func EqualFiles(a, b []tree.File) bool {
	return slices.Equal(a, b)
}

func sortedFiles(files []tree.File) []tree.File {
	slices.SortFunc(files, func(a, b tree.File) int {
		return cmp.Compare(a.Path, b.Path)
	})
	return files
}
