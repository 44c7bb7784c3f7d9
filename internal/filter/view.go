package filter

import (
	"github.com/brianly1003/dirfilter/internal/domain"
	"github.com/brianly1003/dirfilter/internal/tree"
)

// TreeSource provides the current tree snapshot.
type TreeSource interface {
	Current() *tree.Directory
}

// StaticTree is a TreeSource for a tree that never changes.
type StaticTree struct {
	Root *tree.Directory
}

// Current returns the wrapped tree.
func (s StaticTree) Current() *tree.Directory {
	return s.Root
}

// FilteredView holds the active pattern and the files of the current tree that
// match it. It is not safe for concurrent use; callers serialize scans.
type FilteredView struct {
	source  TreeSource
	matcher *Matcher

	tree    *tree.Directory
	pattern *Pattern
	matches []tree.File
}

// NewFilteredView creates a view with the match-all pattern and no matches.
// Call RunFilter to populate it.
func NewFilteredView(source TreeSource, matcher *Matcher) *FilteredView {
	if matcher == nil {
		matcher = NewMatcher(MatcherOptions{})
	}
	return &FilteredView{
		source:  source,
		matcher: matcher,
		pattern: CompilePattern(""),
	}
}

// Pattern returns the active pattern.
func (v *FilteredView) Pattern() *Pattern {
	return v.pattern
}

// Matches returns the current match set. The slice must not be modified.
func (v *FilteredView) Matches() []tree.File {
	return v.matches
}

// Tree returns the tree the current matches were computed against.
func (v *FilteredView) Tree() *tree.Directory {
	return v.tree
}

// RunFilter recomputes the match set from the latest tree. On error the view
// is left unchanged.
func (v *FilteredView) RunFilter() error {
	root := v.source.Current()
	if root == nil {
		return domain.ErrNoTreeAvailable
	}

	if v.pattern.MatchesAll() {
		var all []tree.File
		if err := recoverScan("list "+root.Path, func() { all = root.AllFiles() }); err != nil {
			return err
		}
		v.tree = root
		v.matches = sortedFiles(all)
		return nil
	}

	matches, err := v.matcher.FindMatches(root, v.pattern)
	if err != nil {
		return err
	}
	v.tree = root
	v.matches = matches
	return nil
}

// ReFilter switches to p. When p refines the active pattern only the current
// matches are re-tested; otherwise the whole tree is rescanned. On error the
// view keeps its previous pattern and matches.
func (v *FilteredView) ReFilter(p *Pattern) error {
	if p.Refines(v.pattern) {
		matches, err := v.matcher.FindFileMatches(v.matches, p)
		if err != nil {
			return err
		}
		v.matches = matches
		v.pattern = p
		return nil
	}

	prev := v.pattern
	v.pattern = p
	if err := v.RunFilter(); err != nil {
		v.pattern = prev
		return err
	}
	return nil
}

// Snapshot returns an immutable copy of the view.
func (v *FilteredView) Snapshot() Snapshot {
	return newSnapshot(v.tree, v.pattern, v.matches)
}
