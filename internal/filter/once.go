package filter

import (
	"github.com/brianly1003/dirfilter/internal/tree"
)

// FilterOnce applies raw to root a single time, without a broker or
// listeners. It backs the one-shot find command.
func FilterOnce(root *tree.Directory, raw string, opts MatcherOptions) (Snapshot, error) {
	v := NewFilteredView(StaticTree{Root: root}, NewMatcher(opts))
	if err := v.ReFilter(CompilePattern(raw)); err != nil {
		return Snapshot{}, err
	}
	return v.Snapshot(), nil
}
