package sai

import (
	"encoding/binary"
	"io"
)

// BinReader is a thin little-endian binary reader over any io.Reader,
// used by the document façade (C8) to parse the typed records layered
// on top of the VFS.
type BinReader struct {
	r io.Reader
}

// NewBinReader wraps r.
func NewBinReader(r io.Reader) *BinReader {
	return &BinReader{r: r}
}

// Read implements io.Reader by delegating to the wrapped reader.
func (b *BinReader) Read(p []byte) (int, error) {
	return b.r.Read(p)
}

// Skip discards n bytes.
func (b *BinReader) Skip(n int) error {
	_, err := io.CopyN(io.Discard, b.r, int64(n))
	return err
}

// ReadFixed reads exactly len(buf) bytes into buf.
func (b *BinReader) ReadFixed(buf []byte) error {
	_, err := io.ReadFull(b.r, buf)
	return err
}

func (b *BinReader) ReadU8() (uint8, error) {
	var buf [1]byte
	if _, err := io.ReadFull(b.r, buf[:]); err != nil {
		return 0, err
	}
	return buf[0], nil
}

func (b *BinReader) ReadU16() (uint16, error) {
	var buf [2]byte
	if _, err := io.ReadFull(b.r, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(buf[:]), nil
}

func (b *BinReader) ReadU32() (uint32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(b.r, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(buf[:]), nil
}

func (b *BinReader) ReadI32() (int32, error) {
	v, err := b.ReadU32()
	return int32(v), err
}

func (b *BinReader) ReadU64() (uint64, error) {
	var buf [8]byte
	if _, err := io.ReadFull(b.r, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(buf[:]), nil
}

// ReadBool reads one byte and reports whether it is >= 1.
func (b *BinReader) ReadBool() (bool, error) {
	v, err := b.ReadU8()
	if err != nil {
		return false, err
	}
	return v >= 1, nil
}

// StreamHeader is the (tag, payload size) prelude of a tagged stream
// entry inside a canvas or layer record.
type StreamHeader struct {
	Tag  [4]byte
	Size uint32
}

// ReadStreamHeader reads one stream header. It returns ok == false
// (with a nil error) when the tag is all-zero, which marks the end of
// the tagged-stream sequence. On-disk tags are stored byte-reversed
// relative to their human spelling; ReadStreamHeader reverses them
// before returning.
func (b *BinReader) ReadStreamHeader() (hdr StreamHeader, ok bool, err error) {
	var tag [4]byte
	if _, err := io.ReadFull(b.r, tag[:]); err != nil {
		return hdr, false, err
	}
	if tag == ([4]byte{}) {
		return hdr, false, nil
	}
	tag[0], tag[1], tag[2], tag[3] = tag[3], tag[2], tag[1], tag[0]

	size, err := b.ReadU32()
	if err != nil {
		return hdr, false, err
	}
	return StreamHeader{Tag: tag, Size: size}, true, nil
}
