// Package corpus finds vector dump files under a directory tree and tracks
// the set currently known to a running server.
package corpus

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/hyperjump/vecscan/internal/dump"
)

// DiscoverOptions configures Discover.
type DiscoverOptions struct {
	// Extension is the dump file extension including the dot. Defaults to dump.Extension.
	Extension string
	Logger    *zap.Logger
}

// Discover walks root recursively and returns the sorted paths of regular files
// with the dump extension. Hidden entries are skipped, hidden directories entirely.
// An error reading a subtree is logged and that subtree is skipped; only failure
// to access root itself is returned.
func Discover(root string, opts DiscoverOptions) ([]string, error) {
	ext := opts.Extension
	if ext == "" {
		ext = dump.Extension
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("%w: corpus root: %v", dump.ErrIO, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: corpus root %s is not a directory", dump.ErrIO, root)
	}

	var files []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			logger.Warn("Skipping unreadable corpus entry", zap.String("path", path), zap.Error(err))
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if path != root && IsHidden(d.Name()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !dump.HasExtension(d.Name(), ext) {
			return nil
		}
		if !isRegular(path, d) {
			return nil
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: walk corpus: %v", dump.ErrIO, err)
	}
	sort.Strings(files)
	return files, nil
}

// IsHidden reports whether a file or directory name is hidden.
func IsHidden(name string) bool {
	return strings.HasPrefix(name, ".") && name != "." && name != ".."
}

// isRegular accepts regular files and symlinks that resolve to one.
func isRegular(path string, d fs.DirEntry) bool {
	if d.Type().IsRegular() {
		return true
	}
	if d.Type()&fs.ModeSymlink == 0 {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
