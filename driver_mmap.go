//go:build linux || darwin

package sai

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
	times "gopkg.in/djherbis/times.v1"
)

// MmapSource is a Source backed by a read-only memory-mapped file,
// avoiding a read syscall per page for large documents at the cost of
// page faults on first touch.
type MmapSource struct {
	data  []byte
	pages uint32
}

// OpenMmapSource memory-maps path and wraps it as a Source. The
// mapping is released by Close.
func OpenMmapSource(path string) (*MmapSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	size := info.Size()
	if size%PageSize != 0 {
		return nil, fmt.Errorf("sai: source length %d is not a multiple of %d: %w", size, PageSize, ErrInvalidData)
	}
	if size == 0 {
		return nil, fmt.Errorf("sai: empty source: %w", ErrInvalidData)
	}

	data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("sai: mmap %q: %w", path, err)
	}
	return &MmapSource{data: data, pages: uint32(size / PageSize)}, nil
}

func (m *MmapSource) PageCount() uint32 { return m.pages }

func (m *MmapSource) ReadPage(index uint32, out *[PageSize]byte) error {
	if index >= m.pages {
		return fmt.Errorf("sai: block %d: %w", index, ErrNotFound)
	}
	off := int(index) * PageSize
	copy(out[:], m.data[off:off+PageSize])
	return nil
}

// Close unmaps the backing memory. The MmapSource (and any Driver
// using it) must not be used afterward.
func (m *MmapSource) Close() error {
	return unix.Munmap(m.data)
}

// OpenFileMmap opens path as an MmapSource and wraps it in a Driver,
// analogous to OpenFile but avoiding a read syscall per page.
func OpenFileMmap(path string, opts ...OpenOption) (*Driver, error) {
	src, err := OpenMmapSource(path)
	if err != nil {
		return nil, err
	}
	d, err := Open(src, opts...)
	if err != nil {
		src.Close()
		return nil, err
	}
	if ts, err := times.Stat(path); err == nil {
		d.backingTimes = ts
		d.haveBackingTimes = true
	}
	return d, nil
}
