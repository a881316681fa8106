package protocol

import "rainbow-espd/internal/vfs"

// The admin HTTP surface touches the same shared state as the CPU side, so
// every method here takes the engine's single lock, per SPEC_FULL.md §5.

// ListFiles returns every existing file across all paths.
func (e *Engine) ListFiles() []vfs.FileInfo {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.fs.List()
}

// DeleteFile clears the cell addressed by name. It reports whether a file
// was actually present and removed.
func (e *Engine) DeleteFile(name string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	p, f := vfs.IndexFromPath(name)
	if f == vfs.NoFile || !e.fs.Exists(p, f) {
		return false
	}
	e.fs.Delete(p, f)
	return true
}

// RenameFile moves a cell's contents and presence flag to another cell,
// clearing the source.
func (e *Engine) RenameFile(from, to string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	fp, ff := vfs.IndexFromPath(from)
	tp, tf := vfs.IndexFromPath(to)
	if ff == vfs.NoFile || tf == vfs.NoFile {
		return false
	}
	return e.fs.Rename(fp, ff, tp, tf)
}

// DownloadFile returns the full contents of the cell addressed by name.
func (e *Engine) DownloadFile(name string) ([]byte, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	p, f := vfs.IndexFromPath(name)
	if f == vfs.NoFile || !e.fs.Exists(p, f) {
		return nil, false
	}
	return e.fs.Read(p, f, 0, e.fs.Size(p, f)), true
}

// UploadFile stores data into the cell addressed by name, creating it if
// necessary. It reports false when name does not parse to a valid path at
// all, or when its file index is 255, which equals the vfs.NoFile sentinel;
// any other out-of-range file index within a valid path is a silent
// no-op, matching the original firmware's lack of bounds checking on this
// particular endpoint.
func (e *Engine) UploadFile(name string, data []byte) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	p, f := vfs.IndexFromPath(name)
	if f == vfs.NoFile {
		return false
	}
	e.fs.Write(p, f, 0, data)
	return true
}

// LinkOpen reports whether the WebSocket link to the game server is open,
// for the admin diagnostic page.
func (e *Engine) LinkOpen() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.link.IsOpen()
}
