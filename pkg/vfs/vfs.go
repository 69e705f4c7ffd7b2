// Package vfs is an in-memory store of source files that #include can
// resolve against before the host filesystem is consulted.
package vfs

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"sync"
	"time"
)

// MaxDiskBytes bounds the total size of the stored sources (1 MiB).
const MaxDiskBytes = 1 << 20

// validFilename accepts slash-separated relative paths whose components
// never start with a dot, so ".." and absolute paths are rejected.
var validFilename = regexp.MustCompile(`^[a-zA-Z0-9_][a-zA-Z0-9_.\-]*(/[a-zA-Z0-9_][a-zA-Z0-9_.\-]*)*$`)

var (
	ErrFileNotFound    = errors.New("file not found")
	ErrInvalidFilename = errors.New("invalid filename")
	ErrQuotaExceeded   = errors.New("disk quota exceeded")
)

type FileEntry struct {
	Data     []byte
	Modified time.Time
}

// VirtualDisk is safe for concurrent use.
type VirtualDisk struct {
	Mu        sync.RWMutex
	Files     map[string]*FileEntry
	UsedBytes int
}

func NewVirtualDisk() *VirtualDisk {
	return &VirtualDisk{
		Files: make(map[string]*FileEntry),
	}
}

// Write stores a copy of data under filename, replacing any previous
// content and charging the difference against the quota.
func (vd *VirtualDisk) Write(filename string, data []byte) error {
	vd.Mu.Lock()
	defer vd.Mu.Unlock()

	if !validFilename.MatchString(filename) {
		return ErrInvalidFilename
	}

	oldSize := 0
	if existing, ok := vd.Files[filename]; ok {
		oldSize = len(existing.Data)
	}
	if vd.UsedBytes-oldSize+len(data) > MaxDiskBytes {
		return ErrQuotaExceeded
	}

	newData := make([]byte, len(data))
	copy(newData, data)
	vd.Files[filename] = &FileEntry{Data: newData, Modified: time.Now()}
	vd.UsedBytes += len(data) - oldSize
	return nil
}

// Read returns the content stored under filename. The returned slice must
// not be modified.
func (vd *VirtualDisk) Read(filename string) ([]byte, error) {
	vd.Mu.RLock()
	defer vd.Mu.RUnlock()

	if !validFilename.MatchString(filename) {
		return nil, ErrInvalidFilename
	}
	entry, ok := vd.Files[filename]
	if !ok {
		return nil, ErrFileNotFound
	}
	return entry.Data, nil
}

// List returns the stored filenames in sorted order.
func (vd *VirtualDisk) List() []string {
	vd.Mu.RLock()
	defer vd.Mu.RUnlock()

	keys := make([]string, 0, len(vd.Files))
	for k := range vd.Files {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// LoadFrom copies every .h and .c file below the host directory path into
// the disk, keyed by its slash-separated path relative to path. A missing
// directory is not an error.
func (vd *VirtualDisk) LoadFrom(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	return filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := filepath.Ext(p)
		if ext != ".h" && ext != ".c" {
			return nil
		}
		rel, err := filepath.Rel(path, p)
		if err != nil {
			return err
		}
		name := filepath.ToSlash(rel)
		if !validFilename.MatchString(name) {
			return nil
		}
		raw, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		return vd.Write(name, raw)
	})
}
