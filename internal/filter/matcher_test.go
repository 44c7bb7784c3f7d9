package filter

import (
	"errors"
	"fmt"
	"math/rand"
	"slices"
	"testing"

	"github.com/brianly1003/dirfilter/internal/domain"
	"github.com/brianly1003/dirfilter/internal/testutil"
	"github.com/brianly1003/dirfilter/internal/tree"
)

// referenceMatches is the sequential definition of a tree match: a file
// matches when its own path or the path of any directory below the root that
// contains it matches.
func referenceMatches(root *tree.Directory, p *Pattern) []string {
	var out []string
	var visit func(d *tree.Directory, inherited bool)
	visit = func(d *tree.Directory, inherited bool) {
		in := inherited || (d != root && p.Match(d.Path))
		for _, f := range d.Files {
			if in || p.Match(f.Path) {
				out = append(out, f.Path)
			}
		}
		for _, child := range d.Dirs {
			visit(child, in)
		}
	}
	visit(root, false)
	slices.Sort(out)
	return out
}

// randomTree builds a deterministic pseudo-random tree.
func randomTree(seed int64, files int) *tree.Directory {
	r := rand.New(rand.NewSource(seed))
	names := []string{"src", "lib", "cmd", "internal", "docs", "test", "pkg", "util"}
	exts := []string{".go", ".md", ".txt", ".json", ".yaml"}

	paths := make(map[string]bool, files)
	for len(paths) < files {
		depth := r.Intn(4)
		path := ""
		for range depth {
			path += names[r.Intn(len(names))] + "/"
		}
		path += fmt.Sprintf("f%d%s", r.Intn(files*2), exts[r.Intn(len(exts))])
		paths[path] = true
	}

	list := make([]string, 0, len(paths))
	for p := range paths {
		list = append(list, p)
	}
	return testutil.BuildTree(list...)
}

func TestMatcher_FindMatches(t *testing.T) {
	root := testutil.BuildTree("a/x.txt", "a/y.log", "b/x.log")
	m := NewMatcher(MatcherOptions{})

	tests := []struct {
		pattern string
		want    []string
	}{
		{"x", []string{"a/x.txt", "b/x.log"}},
		{"a", []string{"a/x.txt", "a/y.log"}},
		{"A", nil},
		{"xt", []string{"a/x.txt"}},
		{"log", []string{"a/y.log", "b/x.log"}},
		{".", []string{"a/x.txt", "a/y.log", "b/x.log"}},
		{"zzz", nil},
	}

	for _, tt := range tests {
		t.Run(tt.pattern, func(t *testing.T) {
			got, err := m.FindMatches(root, CompilePattern(tt.pattern))
			if err != nil {
				t.Fatalf("FindMatches() error = %v", err)
			}
			if paths := testutil.FilePaths(got); !slices.Equal(paths, tt.want) {
				t.Errorf("FindMatches(%q) = %v, want %v", tt.pattern, paths, tt.want)
			}
		})
	}
}

func TestMatcher_FindMatches_SubtreeShortcut(t *testing.T) {
	// "ab" matches directory "a/b" but not every file name in it on its own.
	root := testutil.BuildTree("a/b/one", "a/b/c/two", "a/three")

	got, err := NewMatcher(MatcherOptions{}).FindMatches(root, CompilePattern("ab"))
	if err != nil {
		t.Fatalf("FindMatches() error = %v", err)
	}

	want := []string{"a/b/c/two", "a/b/one"}
	if paths := testutil.FilePaths(got); !slices.Equal(paths, want) {
		t.Errorf("FindMatches() = %v, want %v", paths, want)
	}
}

func TestMatcher_FindMatches_RootNeverShortcuts(t *testing.T) {
	// "." matches the root path but no file path below it.
	root := testutil.BuildTree("a/x", "b/y")
	if !CompilePattern(".").Match(root.Path) {
		t.Fatalf("pattern should match root path %q", root.Path)
	}

	got, err := NewMatcher(MatcherOptions{}).FindMatches(root, CompilePattern("."))
	if err != nil {
		t.Fatalf("FindMatches() error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("FindMatches() = %v, want no matches", testutil.FilePaths(got))
	}
}

func TestMatcher_FindMatches_NilRoot(t *testing.T) {
	got, err := NewMatcher(MatcherOptions{}).FindMatches(nil, CompilePattern("a"))
	if err != nil || got != nil {
		t.Errorf("FindMatches(nil) = %v, %v; want nil, nil", got, err)
	}
}

func TestMatcher_FindMatches_AgreesWithReference(t *testing.T) {
	patterns := []string{"s", "src", "go", "f1", "inmd", "docs/f", "Go", "ltj", "tst", "xyz"}

	for _, workers := range []int{1, 2, 4, 16} {
		m := NewMatcher(MatcherOptions{MaxConcurrentDirs: workers, FileWorkers: workers})
		for seed := int64(1); seed <= 3; seed++ {
			root := randomTree(seed, 300)
			for _, raw := range patterns {
				p := CompilePattern(raw)
				got, err := m.FindMatches(root, p)
				if err != nil {
					t.Fatalf("workers=%d seed=%d pattern=%q: %v", workers, seed, raw, err)
				}
				want := referenceMatches(root, p)
				if paths := testutil.FilePaths(got); !slices.Equal(paths, want) {
					t.Errorf("workers=%d seed=%d pattern=%q: got %d matches, want %d",
						workers, seed, raw, len(paths), len(want))
				}
			}
		}
	}
}

func TestMatcher_FindMatches_Deterministic(t *testing.T) {
	root := randomTree(42, 500)
	m := NewMatcher(MatcherOptions{MaxConcurrentDirs: 8})
	p := CompilePattern("i")

	first, err := m.FindMatches(root, p)
	if err != nil {
		t.Fatalf("FindMatches() error = %v", err)
	}
	for range 10 {
		again, err := m.FindMatches(root, p)
		if err != nil {
			t.Fatalf("FindMatches() error = %v", err)
		}
		if !EqualFiles(first, again) {
			t.Fatal("repeated scans returned different results")
		}
	}
}

func TestMatcher_FindMatches_WalkerPanic(t *testing.T) {
	// A nil child makes the walker dereference nil.
	root := &tree.Directory{
		Path: ".",
		Dirs: []*tree.Directory{
			{Path: "ok", Files: []tree.File{{Path: "ok/file"}}},
			nil,
		},
	}

	for _, workers := range []int{1, 4} {
		t.Run(fmt.Sprintf("workers=%d", workers), func(t *testing.T) {
			m := NewMatcher(MatcherOptions{MaxConcurrentDirs: workers})
			got, err := m.FindMatches(root, CompilePattern("zz"))
			if err == nil {
				t.Fatal("expected error from panicking walker")
			}
			var scanErr *domain.ScanError
			if !errors.As(err, &scanErr) {
				t.Errorf("error = %T %v, want *domain.ScanError", err, err)
			}
			if got != nil {
				t.Errorf("expected no matches on failure, got %v", got)
			}
		})
	}
}

func TestMatcher_FindFileMatches(t *testing.T) {
	files := testutil.BuildTree("b.go", "a.go", "c.md", "d/e.go").AllFiles()

	for _, workers := range []int{1, 3, 100} {
		t.Run(fmt.Sprintf("workers=%d", workers), func(t *testing.T) {
			m := NewMatcher(MatcherOptions{FileWorkers: workers})
			got, err := m.FindFileMatches(files, CompilePattern("go"))
			if err != nil {
				t.Fatalf("FindFileMatches() error = %v", err)
			}
			want := []string{"a.go", "b.go", "d/e.go"}
			if paths := testutil.FilePaths(got); !slices.Equal(paths, want) {
				t.Errorf("FindFileMatches() = %v, want %v", paths, want)
			}
		})
	}
}

func TestMatcher_FindFileMatches_Empty(t *testing.T) {
	got, err := NewMatcher(MatcherOptions{}).FindFileMatches(nil, CompilePattern("a"))
	if err != nil || got != nil {
		t.Errorf("FindFileMatches(nil) = %v, %v; want nil, nil", got, err)
	}
}

func TestNewMatcher_Defaults(t *testing.T) {
	m := NewMatcher(MatcherOptions{MaxConcurrentDirs: -1})

	if m.maxConcurrentDirs != DefaultMaxConcurrentDirs {
		t.Errorf("maxConcurrentDirs = %d, want %d", m.maxConcurrentDirs, DefaultMaxConcurrentDirs)
	}
	if m.fileWorkers != DefaultFileWorkers {
		t.Errorf("fileWorkers = %d, want %d", m.fileWorkers, DefaultFileWorkers)
	}
}

func BenchmarkMatcher_FindMatches(b *testing.B) {
	root := randomTree(7, 5000)
	m := NewMatcher(MatcherOptions{})
	p := CompilePattern("srcgo")
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		_, _ = m.FindMatches(root, p)
	}
}
