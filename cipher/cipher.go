package cipher

import (
	"encoding/binary"
	"math/bits"
)

// PageSize is the size in bytes of every block in a sai v1 container.
const PageSize = 4096

// words is the number of little-endian uint32 words a page decomposes
// into: PageSize / 4.
const words = PageSize / 4

// TableKey derives the key used to decrypt/encrypt the table block that
// covers block index. Table blocks sit at every index that is a
// multiple of 512; the key clears the low 9 bits of any index that
// falls within the sector, which only matters for the zeroth sector
// where index is already 0.
func TableKey(index uint32) uint32 {
	return index &^ 0x1FF
}

// Checksum folds a decrypted page's 1024 little-endian uint32 words
// into a single 32-bit value. The result always has its low bit set.
func Checksum(page *[PageSize]byte) uint32 {
	var s uint32
	for i := 0; i < words; i++ {
		w := binary.LittleEndian.Uint32(page[i*4 : i*4+4])
		s = bits.RotateLeft32(s, 1) ^ w
	}
	return s | 1
}

// DecryptTable decrypts page in place as a TableBlock keyed by key
// (normally TableKey(index)).
func DecryptTable(page *[PageSize]byte, key uint32) {
	prev := key
	for i := 0; i < words; i++ {
		off := i * 4
		cur := binary.LittleEndian.Uint32(page[off : off+4])
		v := bits.RotateLeft32((prev^cur)^sub(prev), 16)
		binary.LittleEndian.PutUint32(page[off:off+4], v)
		prev = cur
	}
}

// EncryptTable is the inverse of DecryptTable: given the plaintext table
// page and the same key used to decrypt it, it re-encrypts in place.
//
// Unlike data blocks, a table block cannot be re-encrypted from its
// plaintext alone — the key (the block's own index) must be kept
// alongside it.
func EncryptTable(page *[PageSize]byte, key uint32) {
	prev := key
	for i := 0; i < words; i++ {
		off := i * 4
		plain := binary.LittleEndian.Uint32(page[off : off+4])
		cur := prev ^ bits.RotateLeft32(plain, 16) ^ sub(prev)
		binary.LittleEndian.PutUint32(page[off:off+4], cur)
		prev = cur
	}
}

// DecryptData decrypts page in place as a DataBlock keyed by the
// checksum recorded for it in its covering table entry.
func DecryptData(page *[PageSize]byte, checksum uint32) {
	prev := checksum
	for i := 0; i < words; i++ {
		off := i * 4
		cur := binary.LittleEndian.Uint32(page[off : off+4])
		binary.LittleEndian.PutUint32(page[off:off+4], cur-(prev^sub(prev)))
		prev = cur
	}
}

// EncryptData is the inverse of DecryptData. checksum should be the
// value the caller intends the block to carry once re-encrypted; pass
// the plaintext's own Checksum when re-encrypting with an unknown/new
// checksum rather than trusting a possibly-stale table entry.
func EncryptData(page *[PageSize]byte, checksum uint32) {
	prev := checksum
	for i := 0; i < words; i++ {
		off := i * 4
		plain := binary.LittleEndian.Uint32(page[off : off+4])
		cur := plain + (prev ^ sub(prev))
		binary.LittleEndian.PutUint32(page[off:off+4], cur)
		prev = cur
	}
}
