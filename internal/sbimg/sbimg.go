// Package sbimg assembles synthetic, correctly-encrypted .sai-shaped
// byte buffers for tests, so the VFS and cipher layers can be
// exercised without a captured real-world fixture on disk.
package sbimg

import (
	"encoding/binary"

	sai "github.com/painttool/sai"
	"github.com/painttool/sai/cipher"
)

const pageSize = sai.PageSize

// fatEntrySize mirrors the on-disk 64-byte directory record layout
// documented for FatEntry; it is duplicated here deliberately so this
// package can build raw directory pages without depending on package
// sai's unexported parsing helpers.
const fatEntrySize = 64

// filetimeEpochOffset is the number of 100ns ticks between the
// FILETIME epoch (1601-01-01) and the Unix epoch (1970-01-01).
const filetimeEpochOffset = 116444736000000000

// FatEntrySpec describes one directory record to embed in a synthetic
// document.
type FatEntrySpec struct {
	Name      string
	IsFolder  bool
	NextBlock uint32
	Size      uint32
	UnixTime  int64
}

func (s FatEntrySpec) encode() [fatEntrySize]byte {
	var b [fatEntrySize]byte
	binary.LittleEndian.PutUint32(b[0:4], 1) // flags: any non-zero marks the entry live
	copy(b[4:36], []byte(s.Name))
	kind := byte(0x80)
	if s.IsFolder {
		kind = 0x10
	}
	b[38] = kind
	binary.LittleEndian.PutUint32(b[40:44], s.NextBlock)
	binary.LittleEndian.PutUint32(b[44:48], s.Size)
	ft := uint64(s.UnixTime*10_000_000 + filetimeEpochOffset)
	binary.LittleEndian.PutUint64(b[48:56], ft)
	return b
}

// Builder assembles the block-indexed plaintext content of a document
// and produces its final encrypted byte image.
type Builder struct {
	blocks  map[uint32][pageSize]byte
	entries map[uint32]sai.TableEntry // block index -> its covering table's slot content
	maxBlk  uint32
}

// NewBuilder returns an empty builder. Block 0 is reserved for the
// first table block; callers add content starting at block 2 (the
// fixed root directory index), matching a real document's layout.
func NewBuilder() *Builder {
	return &Builder{
		blocks:  make(map[uint32][pageSize]byte),
		entries: make(map[uint32]sai.TableEntry),
	}
}

// PutDirectory writes a directory page at block containing specs,
// chained to nextPage (0 if this is the final page of the directory).
func (b *Builder) PutDirectory(block uint32, specs []FatEntrySpec, nextPage uint32) {
	var page [pageSize]byte
	for i, s := range specs {
		off := i * fatEntrySize
		rec := s.encode()
		copy(page[off:off+fatEntrySize], rec[:])
	}
	b.putData(block, page, nextPage)
}

// PutFile writes payload across consecutive blocks starting at
// firstBlock, padding the final page with zeros, and returns the
// number of blocks used.
func (b *Builder) PutFile(firstBlock uint32, payload []byte) uint32 {
	remaining := payload
	block := firstBlock
	count := uint32(0)
	for {
		var page [pageSize]byte
		n := copy(page[:], remaining)
		remaining = remaining[n:]
		count++

		var next uint32
		if len(remaining) > 0 {
			next = block + 1
		}
		b.putData(block, page, next)
		if len(remaining) == 0 {
			break
		}
		block++
	}
	return count
}

func (b *Builder) putData(block uint32, plain [pageSize]byte, next uint32) {
	b.blocks[block] = plain
	checksum := cipher.Checksum(&plain)
	b.entries[block] = sai.TableEntry{Checksum: checksum, NextBlock: next}
	if block > b.maxBlk {
		b.maxBlk = block
	}
}

// Build assembles the final encrypted byte image. Every block from 0
// through the highest block used is emitted; blocks with no content
// assigned are encrypted zero pages (unused table-entry slots point at
// them only if a caller mistakenly chains into them).
func (b *Builder) Build() []byte {
	sectorOf := func(block uint32) uint32 { return block &^ 0x1FF }

	tables := make(map[uint32]*sai.TableBlock)
	tableFor := func(block uint32) *sai.TableBlock {
		ti := sectorOf(block)
		tb, ok := tables[ti]
		if !ok {
			tb = &sai.TableBlock{}
			tables[ti] = tb
		}
		return tb
	}

	for block, entry := range b.entries {
		tb := tableFor(block)
		tb.Entries[block%sai.SectorBlocks] = entry
	}
	// Ensure at least the sector covering block 0 exists, even if the
	// document has no data blocks yet.
	tableFor(0)

	totalBlocks := b.maxBlk + 1
	if totalBlocks%sai.SectorBlocks != 0 {
		totalBlocks = (totalBlocks/sai.SectorBlocks + 1) * sai.SectorBlocks
	}

	out := make([]byte, int(totalBlocks)*pageSize)
	for block := uint32(0); block < totalBlocks; block++ {
		if block%sai.SectorBlocks == 0 {
			continue // filled in the second pass below
		}
		plain := b.blocks[block]
		enc := sai.EncodeData(&sai.DataBlock{Bytes: plain}, entryChecksum(b.entries, block))
		copy(out[int(block)*pageSize:], enc[:])
	}
	for ti, tb := range tables {
		tb.Entries[0].Checksum = sai.ComputeTableChecksum(tb)
		enc := sai.EncodeTable(ti, tb)
		copy(out[int(ti)*pageSize:], enc[:])
	}
	return out
}

func entryChecksum(entries map[uint32]sai.TableEntry, block uint32) *uint32 {
	e, ok := entries[block]
	if !ok {
		return nil
	}
	c := e.Checksum
	return &c
}
