package sai

import (
	"bytes"
	"fmt"
	"time"
)

// Document is the decoded ".smalltext"-style author record found at
// the root directory's single dot-prefixed entry. Its on-disk shape is
// 28 bytes of fixed fields (a u32 id, two u64 FILETIMEs and a u64
// machine hash); FileTime-style fields are converted to
// Unix time the same way FatEntry.ModTime is.
type Document struct {
	ID           uint32
	DateCreated  int64 // Unix seconds
	DateModified int64 // Unix seconds
	MachineHash  uint64
}

// OpenDocument locates the root directory's author record (its VFS
// name begins with ".") and decodes it.
func OpenDocument(d *Driver) (Document, error) {
	entries, err := d.ListDir(RootBlock)
	if err != nil {
		return Document{}, err
	}

	var rec Entry
	found := false
	for _, e := range entries {
		if e.Fat.Kind == KindFile && len(e.Path) > 0 && e.Path[0] == '.' {
			rec = e
			found = true
			break
		}
	}
	if !found {
		return Document{}, fmt.Errorf("sai: no author record in root: %w", ErrNotFound)
	}

	fh, err := d.OpenFile(rec)
	if err != nil {
		return Document{}, err
	}
	raw, err := fh.ReadAll()
	if err != nil {
		return Document{}, err
	}
	if len(raw) < 28 {
		return Document{}, fmt.Errorf("sai: author record too short: %w", ErrInvalidData)
	}

	br := NewBinReader(bytes.NewReader(raw))
	id, err := br.ReadU32()
	if err != nil {
		return Document{}, err
	}
	createdFT, err := br.ReadU64()
	if err != nil {
		return Document{}, err
	}
	modifiedFT, err := br.ReadU64()
	if err != nil {
		return Document{}, err
	}
	hash, err := br.ReadU64()
	if err != nil {
		return Document{}, err
	}

	return Document{
		ID:           id,
		DateCreated:  filetimeToUnix(createdFT),
		DateModified: filetimeToUnix(modifiedFT),
		MachineHash:  hash,
	}, nil
}

// filetimeToUnix converts a raw Windows FILETIME value to Unix
// seconds, clamped to zero if negative, mirroring FatEntry.UnixTime.
func filetimeToUnix(ft uint64) int64 {
	ticks := int64(ft) - filetimeEpochOffset
	secs := ticks / 10_000_000
	if secs < 0 {
		return 0
	}
	return secs
}

// CreatedAt returns DateCreated as a time.Time, mirroring
// FatEntry.ModTime.
func (doc Document) CreatedAt() time.Time {
	return time.Unix(doc.DateCreated, 0).UTC()
}

// ModifiedAt returns DateModified as a time.Time, mirroring
// FatEntry.ModTime.
func (doc Document) ModifiedAt() time.Time {
	return time.Unix(doc.DateModified, 0).UTC()
}
