package sai

import (
	"fmt"
	"io"
)

// FileHandle reads a file's payload across its chained data pages. It
// implements io.Reader; callers wanting the whole payload in one shot
// can use io.ReadAll or ReadAll below.
type FileHandle struct {
	driver *Driver
	size   int64
	read   int64

	page    [PageSize]byte
	pos     int
	hasPage bool

	next    uint32
	hasNext bool

	seen *bitsetGuard
}

// bitsetGuard is the minimal cycle guard FileHandle needs: a plain map
// of visited block indices (not the *bitset.BitSet DirHandle uses),
// scoped per-handle so two FileHandles opened concurrently don't
// interfere.
type bitsetGuard struct {
	seen map[uint32]bool
}

func newBitsetGuard() *bitsetGuard { return &bitsetGuard{seen: make(map[uint32]bool)} }

func (g *bitsetGuard) visit(block uint32) bool {
	if g.seen[block] {
		return false
	}
	g.seen[block] = true
	return true
}

// OpenFile opens e (as returned by Driver.Get or DirHandle.Next) for
// reading. e must name a File-kind entry.
func (d *Driver) OpenFile(e Entry) (*FileHandle, error) {
	if e.Fat.Kind != KindFile {
		return nil, fmt.Errorf("sai: %q is not a file: %w", e.Path, ErrInvalidData)
	}
	fh := &FileHandle{
		driver: d,
		size:   int64(e.Fat.Size),
		seen:   newBitsetGuard(),
	}
	if e.Fat.NextBlock != 0 {
		fh.next = e.Fat.NextBlock
		fh.hasNext = true
	}
	return fh, nil
}

// Size returns the file's declared size in bytes, per its FatEntry.
func (fh *FileHandle) Size() int64 { return fh.size }

func (fh *FileHandle) fillPage() (bool, error) {
	if !fh.hasNext {
		return false, nil
	}
	block := fh.next
	if !fh.seen.visit(block) {
		return false, fmt.Errorf("sai: file block %d revisited: %w", block, ErrCorruptDirectory)
	}
	raw, next, hasNext, err := fh.driver.ReadBlock(block)
	if err != nil {
		return false, err
	}
	fh.page = raw
	fh.pos = 0
	fh.hasPage = true
	fh.next = next
	fh.hasNext = hasNext
	return true, nil
}

// Read implements io.Reader. It stops at the file's declared Size even
// if the underlying page chain would yield more bytes, and returns
// io.EOF once that many bytes have been delivered.
func (fh *FileHandle) Read(p []byte) (int, error) {
	if fh.read >= fh.size {
		return 0, io.EOF
	}

	total := 0
	for total < len(p) && fh.read < fh.size {
		if !fh.hasPage || fh.pos >= PageSize {
			ok, err := fh.fillPage()
			if err != nil {
				return total, err
			}
			if !ok {
				if total == 0 {
					return 0, io.ErrUnexpectedEOF
				}
				return total, nil
			}
		}

		remaining := fh.size - fh.read
		avail := int64(PageSize - fh.pos)
		if avail > remaining {
			avail = remaining
		}
		want := int64(len(p) - total)
		if want > avail {
			want = avail
		}
		n := copy(p[total:total+int(want)], fh.page[fh.pos:fh.pos+int(want)])
		fh.pos += n
		fh.read += int64(n)
		total += n
	}
	return total, nil
}

// ReadAll reads the file's entire payload into memory.
func (fh *FileHandle) ReadAll() ([]byte, error) {
	buf := make([]byte, fh.size)
	_, err := io.ReadFull(fh, buf)
	if err != nil {
		return nil, err
	}
	return buf, nil
}
