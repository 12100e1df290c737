package sai

import (
	"encoding/binary"
	"fmt"

	"github.com/painttool/sai/cipher"
)

// PageSize is the size in bytes of a block, both for encryption and for
// virtual-file-system allocation.
const PageSize = cipher.PageSize

// entriesPerTable is the number of TableEntry records packed into a
// TableBlock: 4096 bytes / 8 bytes per entry.
const entriesPerTable = PageSize / 8

// SectorBlocks is the number of blocks covered by one table block,
// including the table block itself.
const SectorBlocks = entriesPerTable

// TableEntry describes one block within a sector: the checksum a data
// block at that slot must carry, and the index of the next block in
// whatever chain owns it.
type TableEntry struct {
	Checksum  uint32
	NextBlock uint32
}

// TableBlock is a sector's index: 512 TableEntry records. Entry 0
// carries the checksum of the table block itself.
type TableBlock struct {
	Entries [entriesPerTable]TableEntry
}

// DecodeTable decrypts and verifies the table block at the given block
// index. raw must be the raw encrypted page content.
func DecodeTable(index uint32, raw [PageSize]byte) (*TableBlock, error) {
	cipher.DecryptTable(&raw, cipher.TableKey(index))

	var expected [4]byte
	copy(expected[:], raw[0:4])
	for i := range raw[0:4] {
		raw[i] = 0
	}

	actual := cipher.Checksum(&raw)
	want := binary.LittleEndian.Uint32(expected[:])

	copy(raw[0:4], expected[:])

	if want != actual {
		return nil, &ChecksumMismatchError{Expected: want, Actual: actual}
	}

	tb := &TableBlock{}
	for i := 0; i < entriesPerTable; i++ {
		off := i * 8
		tb.Entries[i] = TableEntry{
			Checksum:  binary.LittleEndian.Uint32(raw[off : off+4]),
			NextBlock: binary.LittleEndian.Uint32(raw[off+4 : off+8]),
		}
	}
	return tb, nil
}

// ComputeTableChecksum serializes tb with its entry-0 checksum field
// zeroed and returns cipher.Checksum of the result — the value entry 0
// must carry for the table block to verify under DecodeTable. Callers
// assembling a TableBlock from scratch call this before EncodeTable.
func ComputeTableChecksum(tb *TableBlock) uint32 {
	cp := *tb
	cp.Entries[0].Checksum = 0
	var raw [PageSize]byte
	for i, e := range cp.Entries {
		off := i * 8
		binary.LittleEndian.PutUint32(raw[off:off+4], e.Checksum)
		binary.LittleEndian.PutUint32(raw[off+4:off+8], e.NextBlock)
	}
	return cipher.Checksum(&raw)
}

// SerializeTable returns tb's plaintext page bytes, the same bytes
// DecodeTable produces internally before handing back a *TableBlock —
// i.e. the decrypted page content, not ciphertext.
func SerializeTable(tb *TableBlock) [PageSize]byte {
	var raw [PageSize]byte
	for i, e := range tb.Entries {
		off := i * 8
		binary.LittleEndian.PutUint32(raw[off:off+4], e.Checksum)
		binary.LittleEndian.PutUint32(raw[off+4:off+8], e.NextBlock)
	}
	return raw
}

// EncodeTable is the inverse of DecodeTable: re-encrypts tb for the
// given block index, the same index it was originally decoded with.
func EncodeTable(index uint32, tb *TableBlock) [PageSize]byte {
	raw := SerializeTable(tb)
	cipher.EncryptTable(&raw, cipher.TableKey(index))
	return raw
}

// DataBlock is 4096 bytes of plaintext belonging to either a directory
// page (64 FatEntry records) or a slice of a file's payload.
type DataBlock struct {
	Bytes [PageSize]byte
}

// DecodeData decrypts and verifies a data block keyed by the checksum
// recorded for it in its covering table entry.
func DecodeData(expectedChecksum uint32, raw [PageSize]byte) (*DataBlock, error) {
	cipher.DecryptData(&raw, expectedChecksum)

	actual := cipher.Checksum(&raw)
	if actual != expectedChecksum {
		return nil, &ChecksumMismatchError{Expected: expectedChecksum, Actual: actual}
	}
	return &DataBlock{Bytes: raw}, nil
}

// EncodeData is the inverse of DecodeData. If checksum is nil, one is
// computed from db's plaintext first — the safer choice whenever the
// caller didn't obtain the checksum from the covering TableEntry.
func EncodeData(db *DataBlock, checksum *uint32) [PageSize]byte {
	raw := db.Bytes
	var key uint32
	if checksum != nil {
		key = *checksum
	} else {
		key = cipher.Checksum(&raw)
	}
	cipher.EncryptData(&raw, key)
	return raw
}

// entries interprets the data block as 64 FatEntry directory records.
func (db *DataBlock) entries() ([EntriesPerDirPage]FatEntry, error) {
	var out [EntriesPerDirPage]FatEntry
	for i := 0; i < EntriesPerDirPage; i++ {
		off := i * fatEntrySize
		e, err := fatEntryFromBytes(db.Bytes[off : off+fatEntrySize])
		if err != nil {
			return out, fmt.Errorf("sai: directory entry %d: %w", i, err)
		}
		out[i] = e
	}
	return out, nil
}
