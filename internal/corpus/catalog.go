package corpus

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/vecscan/internal/dump"
)

// Entry describes one dump file known to the catalog.
type Entry struct {
	Path      string      `json:"path"`
	Header    dump.Header `json:"header"`
	SizeBytes int64       `json:"size_bytes"`
	ModTime   time.Time   `json:"mod_time"`
}

// Stats summarises the catalog.
type Stats struct {
	Dumps      int    `json:"dumps"`
	Entries    uint64 `json:"entries"`
	TotalBytes int64  `json:"total_bytes"`
}

// Catalog is the set of valid dump files under the configured directories.
// It is safe for concurrent use.
type Catalog struct {
	mu      sync.RWMutex
	entries map[string]Entry
	opts    DiscoverOptions
	logger  *zap.Logger
}

// NewCatalog creates an empty catalog. Files are matched with opts.Extension.
func NewCatalog(opts DiscoverOptions) *Catalog {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Catalog{entries: make(map[string]Entry), opts: opts, logger: logger}
}

// Add opens path, validates its header and records it. Invalid dumps are not recorded.
func (c *Catalog) Add(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	r, err := dump.Open(abs)
	if err != nil {
		c.Remove(abs)
		return err
	}
	hdr := r.Header()
	_ = r.Close()
	info, err := os.Stat(abs)
	if err != nil {
		return fmt.Errorf("%w: %v", dump.ErrIO, err)
	}
	c.mu.Lock()
	c.entries[abs] = Entry{Path: abs, Header: hdr, SizeBytes: info.Size(), ModTime: info.ModTime()}
	c.mu.Unlock()
	c.logger.Debug("catalog added dump", zap.String("path", abs), zap.Uint32("entries", hdr.NumEntries))
	return nil
}

// Remove forgets path. Unknown paths are ignored.
func (c *Catalog) Remove(path string) {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	c.mu.Lock()
	_, ok := c.entries[abs]
	delete(c.entries, abs)
	c.mu.Unlock()
	if ok {
		c.logger.Debug("catalog removed dump", zap.String("path", abs))
	}
}

// RemoveUnder forgets every entry inside dir and returns how many were removed.
func (c *Catalog) RemoveUnder(dir string) int {
	abs, err := filepath.Abs(dir)
	if err != nil {
		abs = dir
	}
	prefix := abs + string(filepath.Separator)
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for path := range c.entries {
		if strings.HasPrefix(path, prefix) {
			delete(c.entries, path)
			n++
		}
	}
	return n
}

// Refresh rebuilds the catalog from the given directories. Files that fail to
// open are logged and left out. Missing directories are skipped.
func (c *Catalog) Refresh(dirs []string) error {
	fresh := NewCatalog(c.opts)
	for _, dir := range dirs {
		files, err := Discover(dir, c.opts)
		if err != nil {
			c.logger.Warn("Skipping corpus directory", zap.String("dir", dir), zap.Error(err))
			continue
		}
		for _, f := range files {
			if err := fresh.Add(f); err != nil {
				c.logger.Warn("Skipping invalid dump", zap.String("path", f), zap.Error(err))
			}
		}
	}
	c.mu.Lock()
	c.entries = fresh.entries
	c.mu.Unlock()
	return nil
}

// Get returns the entry for path.
func (c *Catalog) Get(path string) (Entry, bool) {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[abs]
	return e, ok
}

// List returns all entries sorted by path.
func (c *Catalog) List() []Entry {
	c.mu.RLock()
	out := make([]Entry, 0, len(c.entries))
	for _, e := range c.entries {
		out = append(out, e)
	}
	c.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// Stats returns aggregate counts.
func (c *Catalog) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var s Stats
	for _, e := range c.entries {
		s.Dumps++
		s.Entries += uint64(e.Header.NumEntries)
		s.TotalBytes += e.SizeBytes
	}
	return s
}
