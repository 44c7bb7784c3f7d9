package events

// FileChangeType represents the type of file change.
type FileChangeType string

const (
	FileChangeCreated  FileChangeType = "created"
	FileChangeModified FileChangeType = "modified"
	FileChangeDeleted  FileChangeType = "deleted"
	FileChangeRenamed  FileChangeType = "renamed"
)

// Structural reports whether the change adds or removes a path from the tree.
// Content modifications leave the tree's shape untouched.
func (c FileChangeType) Structural() bool {
	return c != FileChangeModified
}

// FileChangedPayload is the payload for file_changed events.
type FileChangedPayload struct {
	Path    string         `json:"path"`
	Change  FileChangeType `json:"change"`
	OldPath string         `json:"old_path,omitempty"`
}

// TreeChangedPayload is the payload for tree_changed events.
type TreeChangedPayload struct {
	TotalFiles       int `json:"total_files"`
	TotalDirectories int `json:"total_directories"`
}

// NewFileChangedEvent creates a new file_changed event.
func NewFileChangedEvent(path string, change FileChangeType) *BaseEvent {
	return NewEvent(EventTypeFileChanged, FileChangedPayload{
		Path:   path,
		Change: change,
	})
}

// NewFileRenamedEvent creates a new file_changed event for renamed files.
func NewFileRenamedEvent(oldPath, newPath string) *BaseEvent {
	return NewEvent(EventTypeFileChanged, FileChangedPayload{
		Path:    newPath,
		Change:  FileChangeRenamed,
		OldPath: oldPath,
	})
}

// NewTreeChangedEvent creates a new tree_changed event.
func NewTreeChangedEvent(totalFiles, totalDirs int) *BaseEvent {
	return NewEvent(EventTypeTreeChanged, TreeChangedPayload{
		TotalFiles:       totalFiles,
		TotalDirectories: totalDirs,
	})
}
