package ports

import "context"

// FileWatcher keeps the directory tree in step with the disk until stopped.
// Start returns once the initial watches are installed.
type FileWatcher interface {
	Start(ctx context.Context) error
	Stop() error
	IsRunning() bool
}
