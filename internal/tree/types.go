// Package tree provides the read-only directory tree model consumed by the
// filter engine, plus the scanner and store that produce it.
//
// A published Directory is never mutated. Structural changes on disk produce a
// brand new tree which replaces the previous one in the Store.
package tree

// File is a single file in the tree. It is a small value type and is meant to
// be copied freely.
type File struct {
	Path string `json:"path"`
}

// String returns the file path.
func (f File) String() string {
	return f.Path
}

// Directory is a node of the tree. Files and Dirs are ordered by name.
type Directory struct {
	Path  string       `json:"path"`
	Files []File       `json:"files,omitempty"`
	Dirs  []*Directory `json:"dirs,omitempty"`
}

// AllFiles returns every file contained in the directory, recursively,
// in depth-first order (own files first, then each child).
func (d *Directory) AllFiles() []File {
	if d == nil {
		return nil
	}
	out := make([]File, 0, d.FileCount())
	return d.appendAll(out)
}

func (d *Directory) appendAll(out []File) []File {
	out = append(out, d.Files...)
	for _, child := range d.Dirs {
		out = child.appendAll(out)
	}
	return out
}

// FileCount returns the number of files contained in the directory, recursively.
func (d *Directory) FileCount() int {
	if d == nil {
		return 0
	}
	n := len(d.Files)
	for _, child := range d.Dirs {
		n += child.FileCount()
	}
	return n
}

// DirCount returns the number of directories below d, excluding d itself.
func (d *Directory) DirCount() int {
	if d == nil {
		return 0
	}
	n := len(d.Dirs)
	for _, child := range d.Dirs {
		n += child.DirCount()
	}
	return n
}

// SameShape reports whether two trees contain exactly the same directories
// and files in the same order.
func SameShape(a, b *Directory) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.Path != b.Path || len(a.Files) != len(b.Files) || len(a.Dirs) != len(b.Dirs) {
		return false
	}
	for i := range a.Files {
		if a.Files[i] != b.Files[i] {
			return false
		}
	}
	for i := range a.Dirs {
		if !SameShape(a.Dirs[i], b.Dirs[i]) {
			return false
		}
	}
	return true
}
