// Package vfs implements the fixed 3x64 slot virtual filesystem exposed by
// the firmware to both the CPU protocol engine and the admin HTTP surface.
package vfs

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
)

const (
	NumPaths = 3
	NumFiles = 64

	// NoFile is the sentinel file index meaning "invalid" or "no file open".
	NoFile = 0xFF
)

// PathNames are the canonical directory names, indexed by path id.
var PathNames = [NumPaths]string{"SAVE", "ROMS", "USER"}

type cell struct {
	content []byte
	exists  bool
}

// FS is the 3x64 grid of fixed-slot binary files. It carries no locking of
// its own: callers that share an FS across goroutines (the protocol engine
// and the admin HTTP handlers both do) must serialize access themselves, as
// spec'd by the single coarse engine lock.
type FS struct {
	cells [NumPaths][NumFiles]cell
}

func New() *FS {
	return &FS{}
}

// InRange reports whether (path, file) addresses a real cell.
func InRange(path, file int) bool {
	return path >= 0 && path < NumPaths && file >= 0 && file < NumFiles
}

func (fs *FS) Exists(path, file int) bool {
	if !InRange(path, file) {
		return false
	}
	return fs.cells[path][file].exists
}

func (fs *FS) Size(path, file int) int {
	if !InRange(path, file) {
		return 0
	}
	return len(fs.cells[path][file].content)
}

// Open marks the cell present, as FILE_OPEN does. The caller resets its own
// working cursor separately; FS only tracks content and presence.
func (fs *FS) Open(path, file int) {
	if !InRange(path, file) {
		return
	}
	fs.cells[path][file].exists = true
}

func (fs *FS) Delete(path, file int) {
	if !InRange(path, file) {
		return
	}
	fs.cells[path][file] = cell{}
}

// Read returns up to n bytes starting at offset, clamped to the file size.
func (fs *FS) Read(path, file int, offset uint32, n int) []byte {
	if !InRange(path, file) {
		return nil
	}
	c := fs.cells[path][file].content
	if int(offset) >= len(c) {
		return nil
	}
	end := int(offset) + n
	if end > len(c) {
		end = len(c)
	}
	out := make([]byte, end-int(offset))
	copy(out, c[offset:end])
	return out
}

// Write overwrites [offset, offset+len(data)), zero-padding the file if the
// write extends past the current size, and marks the cell present.
func (fs *FS) Write(path, file int, offset uint32, data []byte) {
	if !InRange(path, file) {
		return
	}
	c := &fs.cells[path][file]
	end := int(offset) + len(data)
	if end > len(c.content) {
		grown := make([]byte, end)
		copy(grown, c.content)
		c.content = grown
	}
	copy(c.content[offset:end], data)
	c.exists = true
}

// PathFromIndex renders the canonical HTTP path name for (path, file), e.g.
// "USER/file10.bin".
func PathFromIndex(path, file int) string {
	if path < 0 || path >= NumPaths {
		return ""
	}
	return fmt.Sprintf("%s/file%d.bin", PathNames[path], file)
}

var pathNameRe = regexp.MustCompile(`^/?(SAVE|ROMS|USER)/file([0-9]+)\.bin$`)

// IndexFromPath parses a canonical HTTP path name back into (path, file).
// Non-matching names, and file indices above 255, map to (0, NoFile).
func IndexFromPath(name string) (path, file int) {
	m := pathNameRe.FindStringSubmatch(name)
	if m == nil {
		return 0, NoFile
	}
	n, err := strconv.Atoi(m[2])
	if err != nil || n > 0xff {
		return 0, NoFile
	}
	for i, dir := range PathNames {
		if dir == m[1] {
			return i, n
		}
	}
	return 0, NoFile
}

// FileInfo describes one existing file, for admin listings.
type FileInfo struct {
	ID   int
	Name string
	Size int
}

// List returns every existing file across all paths, ordered by path then
// file index. The admin /api/file/list endpoint ignores its path query
// parameter and always returns this full listing, per the original
// firmware's behaviour.
func (fs *FS) List() []FileInfo {
	var out []FileInfo
	id := 0
	for p := 0; p < NumPaths; p++ {
		for f := 0; f < NumFiles; f++ {
			if fs.cells[p][f].exists {
				out = append(out, FileInfo{ID: id, Name: PathFromIndex(p, f), Size: len(fs.cells[p][f].content)})
				id++
			}
		}
	}
	return out
}

// ListPath returns the sorted ascending indices of existing files on a
// single path, as consumed by GET_FILE_LIST.
func (fs *FS) ListPath(path int) []int {
	if path < 0 || path >= NumPaths {
		return nil
	}
	var out []int
	for f := 0; f < NumFiles; f++ {
		if fs.cells[path][f].exists {
			out = append(out, f)
		}
	}
	sort.Ints(out)
	return out
}

// Rename moves a cell's contents and presence flag to another cell, clearing
// the source. Renaming onto an out-of-range destination is a no-op.
func (fs *FS) Rename(fromPath, fromFile, toPath, toFile int) bool {
	if !InRange(fromPath, fromFile) || !InRange(toPath, toFile) {
		return false
	}
	fs.cells[toPath][toFile] = fs.cells[fromPath][fromFile]
	fs.cells[fromPath][fromFile] = cell{}
	return true
}
