package sai

import (
	"io"
	"io/fs"
	"path"
	"time"
)

// FS adapts a Driver (optionally rooted at a subdirectory) to
// io/fs.FS, so SAI documents can be consumed with the standard
// library's generic filesystem tooling (fs.WalkDir, fs.Glob, and so
// on) instead of the VFS-specific Walk/Get pair.
type FS struct {
	driver *Driver
	root   string // VFS path FS is rooted at; "" means the document root
}

var (
	_ fs.FS        = (*FS)(nil)
	_ fs.ReadDirFS = (*FS)(nil)
	_ fs.StatFS    = (*FS)(nil)
)

// Sub returns an io/fs.FS rooted at dir within d's document.
func (d *Driver) Sub(dir string) (fs.FS, error) {
	clean, err := cleanPath(dir)
	if err != nil {
		return nil, err
	}
	if _, err := d.resolveDir(clean); err != nil {
		return nil, err
	}
	return &FS{driver: d, root: clean}, nil
}

func (f *FS) joined(name string) (string, error) {
	if !fs.ValidPath(name) {
		return "", &fs.PathError{Op: "open", Path: name, Err: fs.ErrInvalid}
	}
	if name == "." {
		return f.root, nil
	}
	if f.root == "" {
		return name, nil
	}
	return f.root + "/" + name, nil
}

// Open implements fs.FS. Directories are returned as an fsDir that
// implements only Stat, Close, and a Read that always fails; it has no
// ReadDir method, so listing goes through FS.ReadDir. Files are
// returned as an fsFile wrapper implementing Read, Close, and Stat.
func (f *FS) Open(name string) (fs.File, error) {
	full, err := f.joined(name)
	if err != nil {
		return nil, err
	}

	if block, derr := f.driver.resolveDir(full); derr == nil {
		return &fsDir{fsys: f, name: name, block: block}, nil
	}

	e, err := f.driver.Get(full)
	if err != nil {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
	}
	fh, err := f.driver.OpenFile(e)
	if err != nil {
		return nil, &fs.PathError{Op: "open", Path: name, Err: err}
	}
	return &fsFile{FileHandle: fh, entry: e}, nil
}

// ReadDir implements fs.ReadDirFS.
func (f *FS) ReadDir(name string) ([]fs.DirEntry, error) {
	full, err := f.joined(name)
	if err != nil {
		return nil, err
	}
	block, err := f.driver.resolveDir(full)
	if err != nil {
		return nil, &fs.PathError{Op: "readdir", Path: name, Err: fs.ErrNotExist}
	}
	entries, err := f.driver.ListDir(block)
	if err != nil {
		return nil, err
	}
	out := make([]fs.DirEntry, len(entries))
	for i, e := range entries {
		out[i] = &fsDirEntry{name: e.Path, fat: e.Fat}
	}
	return out, nil
}

// Stat implements fs.StatFS.
func (f *FS) Stat(name string) (fs.FileInfo, error) {
	full, err := f.joined(name)
	if err != nil {
		return nil, err
	}
	e, err := f.driver.Get(full)
	if err != nil {
		return nil, &fs.PathError{Op: "stat", Path: name, Err: fs.ErrNotExist}
	}
	n, _ := e.Fat.Name()
	return &fsFileInfo{name: n, entry: e.Fat}, nil
}

type fsFile struct {
	*FileHandle
	entry Entry
}

func (ff *fsFile) Stat() (fs.FileInfo, error) {
	n, _ := ff.entry.Fat.Name()
	return &fsFileInfo{name: n, entry: ff.entry.Fat}, nil
}

func (ff *fsFile) Close() error { return nil }

type fsDir struct {
	fsys  *FS
	name  string
	block uint32
}

func (fd *fsDir) Stat() (fs.FileInfo, error) {
	return &dirInfo{name: path.Base(fd.name)}, nil
}
func (fd *fsDir) Read([]byte) (int, error) {
	return 0, &fs.PathError{Op: "read", Path: fd.name, Err: fs.ErrInvalid}
}
func (fd *fsDir) Close() error { return nil }

type dirInfo struct{ name string }

func (di *dirInfo) Name() string       { return di.name }
func (di *dirInfo) Size() int64        { return 0 }
func (di *dirInfo) Mode() fs.FileMode  { return fs.ModeDir | 0o555 }
func (di *dirInfo) ModTime() time.Time { return time.Time{} }
func (di *dirInfo) IsDir() bool        { return true }
func (di *dirInfo) Sys() any           { return nil }

type fsDirEntry struct {
	name string
	fat  FatEntry
}

func (e *fsDirEntry) Name() string { return e.name }
func (e *fsDirEntry) IsDir() bool  { return e.fat.Kind == KindFolder }
func (e *fsDirEntry) Type() fs.FileMode {
	if e.IsDir() {
		return fs.ModeDir
	}
	return 0
}
func (e *fsDirEntry) Info() (fs.FileInfo, error) {
	return &fsFileInfo{name: e.name, entry: e.fat}, nil
}

var _ io.Reader = (*fsDir)(nil)
