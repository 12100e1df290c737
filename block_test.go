package sai

import (
	"errors"
	"testing"

	"github.com/painttool/sai/cipher"
)

func TestTableBlockRoundTrip(t *testing.T) {
	tb := &TableBlock{}
	tb.Entries[1] = TableEntry{Checksum: 0x1234abcd, NextBlock: 7}
	tb.Entries[0].Checksum = ComputeTableChecksum(tb)

	enc := EncodeTable(512, tb)
	got, err := DecodeTable(512, enc)
	if err != nil {
		t.Fatalf("DecodeTable: %v", err)
	}
	if got.Entries[1] != tb.Entries[1] {
		t.Fatalf("entry 1 mismatch: got %+v, want %+v", got.Entries[1], tb.Entries[1])
	}
}

func TestTableBlockChecksumMismatch(t *testing.T) {
	tb := &TableBlock{}
	tb.Entries[0].Checksum = 0xffffffff // deliberately wrong
	enc := EncodeTable(0, tb)

	_, err := DecodeTable(0, enc)
	var cme *ChecksumMismatchError
	if !errors.As(err, &cme) {
		t.Fatalf("expected *ChecksumMismatchError, got %v", err)
	}
}

func TestDataBlockRoundTrip(t *testing.T) {
	db := &DataBlock{}
	copy(db.Bytes[:], []byte("hello, sai"))

	checksum := cipher.Checksum(&db.Bytes)
	enc := EncodeData(db, &checksum)

	got, err := DecodeData(checksum, enc)
	if err != nil {
		t.Fatalf("DecodeData: %v", err)
	}
	if got.Bytes != db.Bytes {
		t.Fatalf("data block round trip mismatch")
	}
}

func TestDataBlockEncodeWithNilChecksumComputesOwn(t *testing.T) {
	db := &DataBlock{}
	copy(db.Bytes[:], []byte("round trip without a known checksum"))

	enc := EncodeData(db, nil)
	checksum := cipher.Checksum(&db.Bytes)

	got, err := DecodeData(checksum, enc)
	if err != nil {
		t.Fatalf("DecodeData: %v", err)
	}
	if got.Bytes != db.Bytes {
		t.Fatalf("data block round trip mismatch")
	}
}

func TestDirectoryEntriesParsesFixedRecords(t *testing.T) {
	db := &DataBlock{}
	name := "Layer1"
	copy(db.Bytes[4:36], name)
	db.Bytes[0] = 1 // flags: live
	db.Bytes[38] = byte(KindFile)

	entries, err := db.entries()
	if err != nil {
		t.Fatalf("entries: %v", err)
	}
	if !entries[0].Live() {
		t.Fatalf("expected entry 0 to be live")
	}
	got, ok := entries[0].Name()
	if !ok || got != name {
		t.Fatalf("Name() = %q, %v; want %q, true", got, ok, name)
	}
	if entries[1].Live() {
		t.Fatalf("expected entry 1 to be non-live (all zero)")
	}
}
