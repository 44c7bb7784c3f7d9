package config

// Default values. The matcher defaults mirror filter.DefaultMaxConcurrentDirs
// and filter.DefaultFileWorkers.
const (
	DefaultDebounceMS        = 100
	DefaultMaxConcurrentDirs = 4
	DefaultFileWorkers       = 8
	DefaultServerHost        = "127.0.0.1"
	DefaultServerPort        = 8767
	DefaultMaxResults        = 50
)

// DefaultSkipDirectories are directory names never entered by the scanner or
// the watcher.
//
// Users can override via config.yaml: root.skip_directories
var DefaultSkipDirectories = []string{
	".git",
	".svn",
	".hg",
	"node_modules",
	"vendor",
	"__pycache__",
	".pytest_cache",
	".mypy_cache",
	".tox",
	".venv",
	"venv",
	".idea",
	".vscode",
	"dist",
	"build",
	"target",
	"coverage",
	".next",
	".nuxt",
	".cache",
	".turbo",
}

// DefaultIgnorePatterns are glob patterns for files that never appear in the
// tree. They are matched against base names and root-relative paths.
var DefaultIgnorePatterns = []string{
	"*.pyc",
	".DS_Store",
	"Thumbs.db",
	"*.swp",
	"*.swo",
	"*~",
}
