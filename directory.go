package sai

import (
	"fmt"
	"path"
	"strings"

	"github.com/bits-and-blooms/bitset"
)

// DirHandle walks the live entries of a directory chain, descending
// into subdirectories depth-first. It produces a finite, lazily-read
// sequence of (path, FatEntry) pairs for every live entry reachable
// from the directory it was opened on — both files and folders.
type DirHandle struct {
	driver *Driver
	seen   *bitset.BitSet // cycle guard over the directory-page chain

	// stack holds one frame per currently-open directory level; the
	// top of the stack is the level being iterated.
	stack []*dirLevel

	err  error
	done bool
}

type dirLevel struct {
	prefix  string
	entries [EntriesPerDirPage]FatEntry
	pos     int
	next    uint32
	hasNext bool
}

// walk opens a DirHandle scoped at block index with the given path
// prefix (used only to build fully-qualified names as it descends).
func (d *Driver) walk(block uint32, prefix string) (*DirHandle, error) {
	dh := &DirHandle{
		driver: d,
		seen:   bitset.New(uint(d.src.PageCount())),
	}
	if err := dh.pushLevel(block, prefix); err != nil {
		return nil, err
	}
	return dh, nil
}

// Walk returns an iterator scoped under dir. "/", "", and "." denote
// the root directory.
func (d *Driver) Walk(dir string) (*DirHandle, error) {
	block, err := d.resolveDir(dir)
	if err != nil {
		return nil, err
	}
	return d.walk(block, "")
}

func (dh *DirHandle) pushLevel(block uint32, prefix string) error {
	if dh.seen.Test(uint(block)) {
		return fmt.Errorf("sai: directory block %d revisited: %w", block, ErrCorruptDirectory)
	}
	dh.seen.Set(uint(block))

	raw, next, hasNext, err := dh.driver.ReadBlock(block)
	if err != nil {
		return err
	}
	db := &DataBlock{Bytes: raw}
	entries, err := db.entries()
	if err != nil {
		return err
	}
	dh.stack = append(dh.stack, &dirLevel{
		prefix:  prefix,
		entries: entries,
		next:    next,
		hasNext: hasNext,
	})
	return nil
}

// Entry is one live FatEntry encountered during traversal, with its
// fully-qualified path relative to the directory the DirHandle was
// opened on.
type Entry struct {
	Path  string
	Block uint32 // first block of this entry's data/children (its FatEntry.NextBlock)
	Fat   FatEntry
}

// Next advances the iterator and returns the next live entry. It
// returns (Entry{}, false, nil) once the subtree is exhausted, or a
// non-nil error on structural corruption.
func (dh *DirHandle) Next() (Entry, bool, error) {
	if dh.done {
		return Entry{}, false, nil
	}
	if dh.err != nil {
		return Entry{}, false, dh.err
	}

	for len(dh.stack) > 0 {
		top := dh.stack[len(dh.stack)-1]

		if top.pos >= EntriesPerDirPage {
			if !top.hasNext {
				dh.stack = dh.stack[:len(dh.stack)-1]
				continue
			}
			if err := dh.advancePage(top); err != nil {
				dh.err = err
				return Entry{}, false, err
			}
			continue
		}

		fe := top.entries[top.pos]
		top.pos++

		if !fe.Live() {
			// A flags==0 entry terminates this directory's entry list;
			// any later pages of the directory are not read.
			dh.stack = dh.stack[:len(dh.stack)-1]
			continue
		}

		name, ok := fe.Name()
		if !ok {
			continue
		}
		full := name
		if top.prefix != "" {
			full = top.prefix + "/" + name
		}

		entry := Entry{Path: full, Block: fe.NextBlock, Fat: fe}

		if fe.Kind == KindFolder {
			if fe.NextBlock != 0 {
				if err := dh.pushLevel(fe.NextBlock, full); err != nil {
					dh.err = err
					return Entry{}, false, err
				}
			}
			return entry, true, nil
		}
		if fe.Kind == KindFile {
			return entry, true, nil
		}
		// Unrecognized kind on a live entry: skip it rather than fail
		// the whole traversal.
	}

	dh.done = true
	return Entry{}, false, nil
}

// advancePage replaces top's entries with its successor page, read via
// the covering table's next_block chain.
func (dh *DirHandle) advancePage(top *dirLevel) error {
	block := top.next
	if dh.seen.Test(uint(block)) {
		return fmt.Errorf("sai: directory block %d revisited: %w", block, ErrCorruptDirectory)
	}
	dh.seen.Set(uint(block))

	raw, next, hasNext, err := dh.driver.ReadBlock(block)
	if err != nil {
		return err
	}
	db := &DataBlock{Bytes: raw}
	entries, err := db.entries()
	if err != nil {
		return err
	}
	top.entries = entries
	top.pos = 0
	top.next = next
	top.hasNext = hasNext
	return nil
}

// ListDir returns the live entries of the single directory at block,
// without descending into subdirectories. It is the primitive
// fs.ReadDirFS needs; DirHandle.Next is a deep, recursive walk and
// isn't the right shape for a single-level listing.
func (d *Driver) ListDir(block uint32) ([]Entry, error) {
	seen := bitset.New(uint(d.src.PageCount()))
	var out []Entry

	for {
		if seen.Test(uint(block)) {
			return nil, fmt.Errorf("sai: directory block %d revisited: %w", block, ErrCorruptDirectory)
		}
		seen.Set(uint(block))

		raw, next, hasNext, err := d.ReadBlock(block)
		if err != nil {
			return nil, err
		}
		db := &DataBlock{Bytes: raw}
		entries, err := db.entries()
		if err != nil {
			return nil, err
		}

		for _, fe := range entries {
			if !fe.Live() {
				return out, nil
			}
			name, ok := fe.Name()
			if !ok {
				continue
			}
			out = append(out, Entry{Path: name, Block: fe.NextBlock, Fat: fe})
		}

		if !hasNext {
			return out, nil
		}
		block = next
	}
}

// Files collects every live File-kind entry in the subtree, in
// traversal order. Iterating Walk twice yields identical sequences.
func (dh *DirHandle) Files() ([]Entry, error) {
	var out []Entry
	for {
		e, ok, err := dh.Next()
		if err != nil {
			return nil, err
		}
		if !ok {
			return out, nil
		}
		if e.Fat.Kind == KindFile {
			out = append(out, e)
		}
	}
}

// resolveDir resolves dir (a "/"-separated path, possibly "/", "", or
// ".") to the block index of the directory it names.
func (d *Driver) resolveDir(dir string) (uint32, error) {
	clean, err := cleanPath(dir)
	if err != nil {
		return 0, err
	}
	if clean == "" {
		return RootBlock, nil
	}

	block := RootBlock
	for _, comp := range strings.Split(clean, "/") {
		entries, err := d.ListDir(block)
		if err != nil {
			return 0, err
		}
		found := false
		for _, e := range entries {
			if e.Path != comp {
				continue
			}
			if e.Fat.Kind != KindFolder {
				return 0, fmt.Errorf("sai: %q is not a directory: %w", comp, ErrInvalidData)
			}
			block = e.Fat.NextBlock
			found = true
			break
		}
		if !found {
			return 0, fmt.Errorf("sai: directory %q: %w", comp, ErrNotFound)
		}
	}
	return uint32(block), nil
}

// Get resolves a path to a single file entry: path.parent() is walked
// as a directory and the first live File-kind entry matching
// path.file_name() is returned.
func (d *Driver) Get(p string) (Entry, error) {
	clean, err := cleanPath(p)
	if err != nil {
		return Entry{}, err
	}
	if clean == "" {
		return Entry{}, fmt.Errorf("sai: empty file name: %w", ErrInvalidData)
	}

	dir, file := path.Split(clean)
	dir = strings.TrimSuffix(dir, "/")

	dirBlock, err := d.resolveDir(dir)
	if err != nil {
		return Entry{}, err
	}

	entries, err := d.ListDir(dirBlock)
	if err != nil {
		return Entry{}, err
	}
	for _, e := range entries {
		if e.Path == file && e.Fat.Kind == KindFile {
			return e, nil
		}
	}
	return Entry{}, fmt.Errorf("sai: %q: %w", p, ErrNotFound)
}

// cleanPath validates and normalizes a VFS path, rejecting drive-letter
// prefixes and ".." components.
func cleanPath(p string) (string, error) {
	if p == "/" || p == "" || p == "." {
		return "", nil
	}
	p = strings.TrimPrefix(p, "/")
	p = strings.TrimSuffix(p, "/")

	if idx := strings.IndexByte(p, ':'); idx >= 0 {
		return "", fmt.Errorf("sai: path prefix in %q: %w", p, ErrUnsupported)
	}
	for _, comp := range strings.Split(p, "/") {
		if comp == ".." {
			return "", fmt.Errorf("sai: %q component in %q: %w", "..", p, ErrUnsupported)
		}
	}
	return p, nil
}
