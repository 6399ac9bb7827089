package installer

import (
	"os"
	"path/filepath"
)

// ConfigDirs are the per-project directories of the supported assistants.
var ConfigDirs = []string{".claude", ".copilot"}

var projectMarkers = []string{".git", "package.json", "go.mod"}

// ResolveProjectRoot finds the project a project-scoped install belongs to.
// In order of preference: the parent of an enclosing assistant config
// directory, the nearest ancestor holding a project marker, the nearest
// ancestor other than home holding an assistant config directory, and
// finally cwd itself.
func ResolveProjectRoot(cwd, home string) string {
	start, err := filepath.Abs(cwd)
	if err != nil {
		start = filepath.Clean(cwd)
	}

	for dir := start; ; {
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		if isConfigDir(filepath.Base(dir)) && isDir(dir) {
			return parent
		}
		dir = parent
	}

	if root, ok := walkUp(start, func(dir string) bool {
		for _, marker := range projectMarkers {
			if exists(filepath.Join(dir, marker)) {
				return true
			}
		}
		return false
	}); ok {
		return root
	}

	if home != "" {
		if abs, err := filepath.Abs(home); err == nil {
			home = abs
		}
	}
	if root, ok := walkUp(start, func(dir string) bool {
		if dir == home {
			return false
		}
		for _, name := range ConfigDirs {
			if isDir(filepath.Join(dir, name)) {
				return true
			}
		}
		return false
	}); ok {
		return root
	}

	return start
}

// walkUp visits start and each of its ancestors up to and including the
// filesystem root, returning the first directory match accepts.
func walkUp(start string, match func(dir string) bool) (string, bool) {
	dir := start
	for {
		if match(dir) {
			return dir, true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}

func isConfigDir(name string) bool {
	for _, d := range ConfigDirs {
		if d == name {
			return true
		}
	}
	return false
}

func exists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}

func isDir(p string) bool {
	info, err := os.Stat(p)
	return err == nil && info.IsDir()
}
