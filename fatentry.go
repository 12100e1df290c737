package sai

import (
	"encoding/binary"
	"io/fs"
	"strings"
	"time"
	"unicode/utf8"
)

// fatEntrySize is the fixed on-disk size of a FatEntry record.
const fatEntrySize = 64

// EntriesPerDirPage is the number of FatEntry records packed into one
// directory data page.
const EntriesPerDirPage = PageSize / fatEntrySize

// FatKind distinguishes a live FatEntry between a folder and a file.
type FatKind uint8

const (
	// KindNone marks bytes that don't carry a recognized kind.
	KindNone FatKind = 0x00
	// KindFolder marks a directory entry.
	KindFolder FatKind = 0x10
	// KindFile marks a file entry.
	KindFile FatKind = 0x80
)

// FatEntry mirrors the on-disk 64-byte directory record.
type FatEntry struct {
	Flags     uint32
	rawName   [32]byte
	Kind      FatKind
	NextBlock uint32
	Size      uint32
	FileTime  uint64 // Windows FILETIME, 100ns ticks since 1601-01-01 UTC
	reserved  uint64
}

// fatEntryFromBytes parses a 64-byte directory record.
func fatEntryFromBytes(b []byte) (FatEntry, error) {
	var e FatEntry
	if len(b) != fatEntrySize {
		return e, ErrInvalidData
	}
	e.Flags = binary.LittleEndian.Uint32(b[0:4])
	copy(e.rawName[:], b[4:36])
	e.Kind = FatKind(b[38])
	e.NextBlock = binary.LittleEndian.Uint32(b[40:44])
	e.Size = binary.LittleEndian.Uint32(b[44:48])
	e.FileTime = binary.LittleEndian.Uint64(b[48:56])
	e.reserved = binary.LittleEndian.Uint64(b[56:64])
	return e, nil
}

// Live reports whether flags marks this entry as in-use. A directory's
// entry list terminates at the first entry for which Live is false.
func (e *FatEntry) Live() bool {
	return e.Flags != 0
}

// filetimeEpochOffset is the number of 100ns ticks between the FILETIME
// epoch (1601-01-01) and the Unix epoch (1970-01-01).
const filetimeEpochOffset = 116444736000000000

// UnixTime converts FileTime to a Unix timestamp in seconds, clamped to
// zero if the conversion would be negative.
func (e *FatEntry) UnixTime() int64 {
	ticks := int64(e.FileTime) - filetimeEpochOffset
	secs := ticks / 10_000_000
	if secs < 0 {
		return 0
	}
	return secs
}

// ModTime is a convenience wrapper around UnixTime.
func (e *FatEntry) ModTime() time.Time {
	return time.Unix(e.UnixTime(), 0).UTC()
}

// Name decodes the entry's name. It returns false if the stored bytes
// are not valid UTF-8 or the resulting name is empty. Names are
// sometimes prefixed by the authoring application with a "#01"-style
// artifact; if the name contains a '.', everything before the first
// '.' is stripped.
func (e *FatEntry) Name() (string, bool) {
	nul := len(e.rawName)
	for i, c := range e.rawName {
		if c == 0 {
			nul = i
			break
		}
	}
	raw := e.rawName[:nul]
	if !utf8.Valid(raw) {
		return "", false
	}
	name := string(raw)
	if name == "" {
		return "", false
	}
	if idx := strings.IndexByte(name, '.'); idx >= 0 {
		name = name[idx:]
	}
	return name, true
}

// fsFileInfo adapts a FatEntry (plus its decoded name) to io/fs.FileInfo,
// the way go-diskfs's qcow2.directoryEntry adapts its own directory
// record to os.FileInfo.
type fsFileInfo struct {
	name  string
	entry FatEntry
}

var _ fs.FileInfo = (*fsFileInfo)(nil)

func (fi *fsFileInfo) Name() string { return fi.name }
func (fi *fsFileInfo) Size() int64  { return int64(fi.entry.Size) }
func (fi *fsFileInfo) Mode() fs.FileMode {
	if fi.entry.Kind == KindFolder {
		return fs.ModeDir | 0o555
	}
	return 0o444
}
func (fi *fsFileInfo) ModTime() time.Time { return fi.entry.ModTime() }
func (fi *fsFileInfo) IsDir() bool        { return fi.entry.Kind == KindFolder }
func (fi *fsFileInfo) Sys() any           { return fi.entry }
