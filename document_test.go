package sai

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/painttool/sai/internal/sbimg"
)

func le32(v uint32) []byte {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	return b[:]
}

func le64(v uint64) []byte {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	return b[:]
}

// reversedTag returns a stream tag as it is stored on disk: byte-order
// reversed relative to its human spelling.
func reversedTag(tag string) []byte {
	b := []byte(tag)
	return []byte{b[3], b[2], b[1], b[0]}
}

func buildDocumentFixture(t *testing.T) *Driver {
	t.Helper()

	var author bytes.Buffer
	author.Write(le32(42))                                                  // id
	author.Write(le64(uint64(1566984405*10_000_000 + filetimeEpochOffset))) // date_created
	author.Write(le64(uint64(1567531929*10_000_000 + filetimeEpochOffset))) // date_modified
	author.Write(le64(0x73851dcd1203b24d))                                  // machine_hash

	var canvas bytes.Buffer
	canvas.Write(le32(16))   // alignment
	canvas.Write(le32(2250)) // width
	canvas.Write(le32(2250)) // height
	canvas.Write(reversedTag("reso"))
	canvas.Write(le32(8)) // stream size: u32 + u16 + u16
	canvas.Write(le32(72 << 16))
	canvas.Write(le32(0)[:2]) // size_unit = Pixels
	canvas.Write(le32(0)[:2]) // resolution_unit = PixelsInch
	canvas.Write(reversedTag("layr"))
	canvas.Write(le32(4))
	canvas.Write(le32(2))            // selected_layer = 2
	canvas.Write([]byte{0, 0, 0, 0}) // terminating all-zero tag

	b := sbimg.NewBuilder()
	b.PutDirectory(RootBlock, []sbimg.FatEntrySpec{
		{Name: "#01.author", NextBlock: 10, Size: uint32(author.Len())},
		{Name: "canvas", NextBlock: 20, Size: uint32(canvas.Len())},
	}, 0)
	b.PutFile(10, author.Bytes())
	b.PutFile(20, canvas.Bytes())

	src, err := NewMemSource(b.Build())
	if err != nil {
		t.Fatalf("NewMemSource: %v", err)
	}
	d, err := Open(src)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return d
}

func TestOpenDocumentDecodesAuthorRecord(t *testing.T) {
	d := buildDocumentFixture(t)

	doc, err := OpenDocument(d)
	if err != nil {
		t.Fatalf("OpenDocument: %v", err)
	}
	if doc.DateCreated != 1566984405 {
		t.Errorf("DateCreated = %d, want 1566984405", doc.DateCreated)
	}
	if doc.DateModified != 1567531929 {
		t.Errorf("DateModified = %d, want 1567531929", doc.DateModified)
	}
	if doc.MachineHash != 0x73851dcd1203b24d {
		t.Errorf("MachineHash = %#x, want 0x73851dcd1203b24d", doc.MachineHash)
	}
}

func TestOpenCanvasDecodesFixedAndTaggedFields(t *testing.T) {
	d := buildDocumentFixture(t)

	c, err := OpenCanvas(d)
	if err != nil {
		t.Fatalf("OpenCanvas: %v", err)
	}
	if c.Alignment != 16 || c.Width != 2250 || c.Height != 2250 {
		t.Errorf("fixed fields = %+v, want alignment=16 width=2250 height=2250", c)
	}
	if !c.HasResolution || c.DotsPerInch != 72.0 {
		t.Errorf("resolution = %v %f, want true 72.0", c.HasResolution, c.DotsPerInch)
	}
	if !c.HasSelectedLayer || c.SelectedLayer != 2 {
		t.Errorf("selected layer = %v %d, want true 2", c.HasSelectedLayer, c.SelectedLayer)
	}
	if c.HasSelectionSource {
		t.Errorf("expected no selection source")
	}
}
