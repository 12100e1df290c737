package sai

import (
	"fmt"
	"io"
	"os"

	"github.com/bits-and-blooms/bitset"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	times "gopkg.in/djherbis/times.v1"
)

// log is the package-level logger. It defaults to discarding all
// output; callers that want cache/traversal tracing call SetLogger.
// This is purely diagnostic — errors are always returned, never only
// logged, matching the "library is silent on error" contract.
var log = func() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}()

// SetLogger replaces the package-level trace logger. Pass nil to
// restore the default (discarding) logger.
func SetLogger(l *logrus.Logger) {
	if l == nil {
		l = logrus.New()
		l.SetOutput(io.Discard)
	}
	log = l
}

// Source supplies raw, still-encrypted 4096-byte pages by block index.
// Implementations are not required to be safe for concurrent use by
// multiple goroutines unless they document otherwise (MemSource, which
// only reads its buffer, and FileSource, backed by io.ReaderAt, are).
type Source interface {
	// ReadPage fills out with the raw bytes of the block at index.
	// It returns ErrNotFound if index is beyond the end of the source.
	ReadPage(index uint32, out *[PageSize]byte) error

	// PageCount returns the total number of PageSize blocks available.
	PageCount() uint32
}

// MemSource is a Source backed by an in-memory, page-aligned buffer.
type MemSource struct {
	buf []byte
}

// NewMemSource wraps buf as a page source. buf's length must be a
// multiple of PageSize.
func NewMemSource(buf []byte) (*MemSource, error) {
	if len(buf)%PageSize != 0 {
		return nil, fmt.Errorf("sai: buffer length %d is not a multiple of %d: %w", len(buf), PageSize, ErrInvalidData)
	}
	return &MemSource{buf: buf}, nil
}

func (m *MemSource) PageCount() uint32 { return uint32(len(m.buf) / PageSize) }

func (m *MemSource) ReadPage(index uint32, out *[PageSize]byte) error {
	if index >= m.PageCount() {
		return fmt.Errorf("sai: block %d: %w", index, ErrNotFound)
	}
	off := int(index) * PageSize
	copy(out[:], m.buf[off:off+PageSize])
	return nil
}

// FileSource is a Source backed by an io.ReaderAt, so both *os.File and
// in-memory readers work without a hand-rolled seek cursor. Unlike a
// single-cursor stream driver, a FileSource may be read from
// concurrently by independent Drivers.
type FileSource struct {
	r     io.ReaderAt
	pages uint32
}

// NewFileSource wraps r, whose total size must be size bytes and a
// multiple of PageSize.
func NewFileSource(r io.ReaderAt, size int64) (*FileSource, error) {
	if size%PageSize != 0 {
		return nil, fmt.Errorf("sai: source length %d is not a multiple of %d: %w", size, PageSize, ErrInvalidData)
	}
	return &FileSource{r: r, pages: uint32(size / PageSize)}, nil
}

func (f *FileSource) PageCount() uint32 { return f.pages }

func (f *FileSource) ReadPage(index uint32, out *[PageSize]byte) error {
	if index >= f.pages {
		return fmt.Errorf("sai: block %d: %w", index, ErrNotFound)
	}
	if _, err := f.r.ReadAt(out[:], int64(index)*PageSize); err != nil {
		return fmt.Errorf("sai: reading block %d: %w", index, err)
	}
	return nil
}

// RootBlock is the fixed block index of the document's root directory.
const RootBlock uint32 = 2

// Driver maps block indices to decrypted pages, caching every table
// block it has decoded so a random data block can be served by
// decrypting only its covering table (if not already cached) plus
// itself.
//
// A Driver is not safe for concurrent use; wrap it in a sync.Mutex if
// you need to share one across goroutines, or open independent Drivers
// over the same Source for real parallelism.
type Driver struct {
	id     uuid.UUID
	src    Source
	tables map[uint32]*TableBlock
	seen   *bitset.BitSet
	replay *replayCache

	backingTimes     times.Timespec
	haveBackingTimes bool
}

// OpenOption configures a Driver at construction time.
type OpenOption func(*Driver)

// WithReplay attaches an LRU cache of the last n decrypted data pages,
// compressed with lz4, so repeated reads of the same page (e.g.
// re-decoding a layer for a preview) skip the Source and the cipher.
// It is off by default: Driver.ReadBlock's return value never depends
// on whether a replay cache is attached, only on its latency.
func WithReplay(n int) OpenOption {
	return func(d *Driver) {
		d.replay = newReplayCache(n)
	}
}

// Open constructs a Driver over src.
func Open(src Source, opts ...OpenOption) (*Driver, error) {
	d := &Driver{
		id:     uuid.New(),
		src:    src,
		tables: make(map[uint32]*TableBlock),
		seen:   bitset.New(uint(src.PageCount())),
	}
	for _, opt := range opts {
		opt(d)
	}
	if src.PageCount() == 0 {
		return nil, fmt.Errorf("sai: empty source: %w", ErrInvalidData)
	}
	log.WithField("driver", d.id).Trace("opened sai source")
	return d, nil
}

// OpenFile opens path as a FileSource and wraps it in a Driver. It also
// captures the backing file's OS-level times (distinct from any
// FILETIME fields found inside the document) for diagnostic purposes,
// exposed via BackingFileTimes.
func OpenFile(path string, opts ...OpenOption) (*Driver, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	src, err := NewFileSource(f, info.Size())
	if err != nil {
		f.Close()
		return nil, err
	}
	d, err := Open(src, opts...)
	if err != nil {
		f.Close()
		return nil, err
	}
	if ts, err := times.Stat(path); err == nil {
		d.backingTimes = ts
		d.haveBackingTimes = true
	}
	return d, nil
}

// BackingFileTimes returns the OS-level access/modify/change/birth
// times of the underlying container file, if the Driver was opened via
// OpenFile against a platform that reports them.
func (d *Driver) BackingFileTimes() (times.Timespec, bool) {
	return d.backingTimes, d.haveBackingTimes
}

// ID returns a per-Driver identifier, stable for the Driver's lifetime,
// used only to correlate trace log lines.
func (d *Driver) ID() uuid.UUID { return d.id }

// table returns the decoded table block covering index, decoding and
// caching it on first access.
func (d *Driver) table(index uint32) (*TableBlock, error) {
	tableIndex := index &^ 0x1FF
	if tb, ok := d.tables[tableIndex]; ok {
		log.WithFields(logrus.Fields{"driver": d.id, "table": tableIndex}).Trace("table cache hit")
		return tb, nil
	}

	var raw [PageSize]byte
	if err := d.src.ReadPage(tableIndex, &raw); err != nil {
		return nil, err
	}
	tb, err := DecodeTable(tableIndex, raw)
	if err != nil {
		return nil, fmt.Errorf("sai: table block %d: %w", tableIndex, err)
	}
	d.tables[tableIndex] = tb
	d.seen.Set(uint(tableIndex))
	log.WithFields(logrus.Fields{"driver": d.id, "table": tableIndex}).Trace("table cache miss")
	return tb, nil
}

// ReadBlock decrypts and returns the page at index, along with the
// index of its successor page (for file/directory chains) or false if
// this is a terminal page.
//
// Table blocks (index a multiple of 512) have no user-visible
// successor: ReadBlock returns (page, 0, false) for them.
func (d *Driver) ReadBlock(index uint32) (page [PageSize]byte, next uint32, hasNext bool, err error) {
	if index%SectorBlocks == 0 {
		tb, err := d.table(index)
		if err != nil {
			return page, 0, false, err
		}
		return SerializeTable(tb), 0, false, nil
	}

	if d.replay != nil {
		if cached, nextBlock, ok := d.replay.get(index); ok {
			log.WithFields(logrus.Fields{"driver": d.id, "block": index}).Trace("replay cache hit")
			return cached, nextBlock, nextBlock != 0, nil
		}
	}

	tableIndex := index &^ 0x1FF
	tb, err := d.table(tableIndex)
	if err != nil {
		return page, 0, false, err
	}
	entry := tb.Entries[index%SectorBlocks]

	var raw [PageSize]byte
	if err := d.src.ReadPage(index, &raw); err != nil {
		return page, 0, false, err
	}
	db, err := DecodeData(entry.Checksum, raw)
	if err != nil {
		return page, 0, false, fmt.Errorf("sai: data block %d: %w", index, err)
	}
	d.seen.Set(uint(index))
	if d.replay != nil {
		d.replay.put(index, db.Bytes, entry.NextBlock)
	}
	return db.Bytes, entry.NextBlock, entry.NextBlock != 0, nil
}
