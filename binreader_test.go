package sai

import (
	"bytes"
	"io"
	"testing"
)

func TestBinReaderPrimitives(t *testing.T) {
	buf := []byte{
		0x2a,       // u8
		0x34, 0x12, // u16 = 0x1234
		0x78, 0x56, 0x34, 0x12, // u32 = 0x12345678
		0x01, // bool true
		0x00, // bool false
	}
	br := NewBinReader(bytes.NewReader(buf))

	if v, err := br.ReadU8(); err != nil || v != 0x2a {
		t.Fatalf("ReadU8() = %#x, %v", v, err)
	}
	if v, err := br.ReadU16(); err != nil || v != 0x1234 {
		t.Fatalf("ReadU16() = %#x, %v", v, err)
	}
	if v, err := br.ReadU32(); err != nil || v != 0x12345678 {
		t.Fatalf("ReadU32() = %#x, %v", v, err)
	}
	if v, err := br.ReadBool(); err != nil || v != true {
		t.Fatalf("ReadBool() = %v, %v", v, err)
	}
	if v, err := br.ReadBool(); err != nil || v != false {
		t.Fatalf("ReadBool() = %v, %v", v, err)
	}
}

func TestBinReaderStreamHeaderReversesTag(t *testing.T) {
	// On-disk "name" tag is stored byte-reversed: 'e','m','a','n'.
	buf := []byte{'e', 'm', 'a', 'n', 0x10, 0x00, 0x00, 0x00}
	br := NewBinReader(bytes.NewReader(buf))

	hdr, ok, err := br.ReadStreamHeader()
	if err != nil {
		t.Fatalf("ReadStreamHeader: %v", err)
	}
	if !ok {
		t.Fatalf("expected ok=true")
	}
	if string(hdr.Tag[:]) != "name" {
		t.Fatalf("Tag = %q, want %q", hdr.Tag, "name")
	}
	if hdr.Size != 0x10 {
		t.Fatalf("Size = %d, want 16", hdr.Size)
	}
}

func TestBinReaderStreamHeaderZeroTagEndsSequence(t *testing.T) {
	buf := []byte{0, 0, 0, 0}
	br := NewBinReader(bytes.NewReader(buf))

	_, ok, err := br.ReadStreamHeader()
	if err != nil {
		t.Fatalf("ReadStreamHeader: %v", err)
	}
	if ok {
		t.Fatalf("expected ok=false for all-zero tag")
	}
}

func TestBinReaderSkip(t *testing.T) {
	buf := []byte{1, 2, 3, 4, 5}
	br := NewBinReader(bytes.NewReader(buf))
	if err := br.Skip(3); err != nil {
		t.Fatalf("Skip: %v", err)
	}
	v, err := br.ReadU8()
	if err != nil || v != 4 {
		t.Fatalf("ReadU8() after Skip = %v, %v; want 4", v, err)
	}
}

func TestBinReaderShortReadReturnsUnexpectedEOF(t *testing.T) {
	br := NewBinReader(bytes.NewReader([]byte{1, 2}))
	if _, err := br.ReadU32(); err != io.ErrUnexpectedEOF {
		t.Fatalf("ReadU32() error = %v, want io.ErrUnexpectedEOF", err)
	}
}
