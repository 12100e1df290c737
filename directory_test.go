package sai

import (
	"bytes"
	"testing"

	"github.com/painttool/sai/internal/sbimg"
)

func buildSingleFileDoc(t *testing.T, name string, payload []byte) *Driver {
	t.Helper()
	return buildSingleFileDocWithOpts(t, name, payload)
}

func buildSingleFileDocWithOpts(t *testing.T, name string, payload []byte, opts ...OpenOption) *Driver {
	t.Helper()

	b := sbimg.NewBuilder()
	b.PutDirectory(RootBlock, []sbimg.FatEntrySpec{
		{Name: name, NextBlock: 3, Size: uint32(len(payload)), UnixTime: 1566984405},
	}, 0)
	b.PutFile(3, payload)

	src, err := NewMemSource(b.Build())
	if err != nil {
		t.Fatalf("NewMemSource: %v", err)
	}
	d, err := Open(src, opts...)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return d
}

func TestGetAndReadFile(t *testing.T) {
	payload := bytes.Repeat([]byte("paint"), 1000) // spans multiple pages
	d := buildSingleFileDoc(t, "Layer1", payload)

	e, err := d.Get("Layer1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	fh, err := d.OpenFile(e)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	got, err := fh.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("read payload mismatch: got %d bytes, want %d", len(got), len(payload))
	}
}

func TestGetMissingFile(t *testing.T) {
	d := buildSingleFileDoc(t, "Layer1", []byte("x"))
	if _, err := d.Get("NoSuchFile"); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestWalkCountsLiveFiles(t *testing.T) {
	d := buildSingleFileDoc(t, "Layer1", []byte("x"))
	dh, err := d.Walk("/")
	if err != nil {
		t.Fatalf("Walk: %v", err)
	}
	files, err := dh.Files()
	if err != nil {
		t.Fatalf("Files: %v", err)
	}
	if len(files) != 1 {
		t.Fatalf("len(files) = %d, want 1", len(files))
	}
	if name := files[0].Path; name != "Layer1" {
		t.Fatalf("files[0].Path = %q, want %q", name, "Layer1")
	}
}

func TestWalkTwiceYieldsSameSequence(t *testing.T) {
	d := buildSingleFileDoc(t, "Layer1", []byte("x"))

	dh1, err := d.Walk("/")
	if err != nil {
		t.Fatalf("Walk: %v", err)
	}
	first, err := dh1.Files()
	if err != nil {
		t.Fatalf("Files: %v", err)
	}

	dh2, err := d.Walk("/")
	if err != nil {
		t.Fatalf("Walk: %v", err)
	}
	second, err := dh2.Files()
	if err != nil {
		t.Fatalf("Files: %v", err)
	}

	if len(first) != len(second) {
		t.Fatalf("lengths differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].Path != second[i].Path {
			t.Fatalf("entry %d differs: %q vs %q", i, first[i].Path, second[i].Path)
		}
	}
}

func TestCleanPathRejectsDotDot(t *testing.T) {
	if _, err := cleanPath("../etc"); err == nil {
		t.Fatalf("expected error for .. component")
	}
}

func TestCleanPathRejectsDriveLetter(t *testing.T) {
	if _, err := cleanPath("C:/foo"); err == nil {
		t.Fatalf("expected error for drive-letter prefix")
	}
}

// TestResolveDirMatchesDirectChildrenOnly builds a root directory with
// two direct children: folder "A" (which itself contains a decoy
// folder also named "Target", nested inside A rather than under root) and
// folder "Target" (the real, direct child). resolveDir("/Target") must
// resolve to the direct child, never to "A"'s same-named descendant —
// a deep/recursive search over root's subtree would find "A"'s
// descendant first and resolve to the wrong block.
func TestResolveDirMatchesDirectChildrenOnly(t *testing.T) {
	b := sbimg.NewBuilder()

	// Root (block 2): "A" -> block 3, "Target" -> block 5.
	b.PutDirectory(RootBlock, []sbimg.FatEntrySpec{
		{Name: "A", IsFolder: true, NextBlock: 3},
		{Name: "Target", IsFolder: true, NextBlock: 5},
	}, 0)

	// A's directory (block 3): decoy folder also named "Target", but
	// nested under A, not a direct child of root.
	b.PutDirectory(3, []sbimg.FatEntrySpec{
		{Name: "Target", IsFolder: true, NextBlock: 4},
	}, 0)

	// The decoy Target's own (empty) directory page.
	b.PutDirectory(4, nil, 0)

	// The real, direct-child Target's directory (block 5): one file,
	// "Marker".
	payload := []byte("marker contents")
	b.PutDirectory(5, []sbimg.FatEntrySpec{
		{Name: "Marker", NextBlock: 6, Size: uint32(len(payload))},
	}, 0)
	b.PutFile(6, payload)

	src, err := NewMemSource(b.Build())
	if err != nil {
		t.Fatalf("NewMemSource: %v", err)
	}
	d, err := Open(src)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	block, err := d.resolveDir("/Target")
	if err != nil {
		t.Fatalf("resolveDir: %v", err)
	}
	if block != 5 {
		t.Fatalf("resolveDir(\"/Target\") = block %d, want 5 (the direct child, not A's decoy descendant)", block)
	}

	e, err := d.Get("/Target/Marker")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	fh, err := d.OpenFile(e)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	got, err := fh.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if string(got) != string(payload) {
		t.Fatalf("got %q, want %q", got, payload)
	}
}

func TestCleanPathRootForms(t *testing.T) {
	for _, p := range []string{"/", "", "."} {
		got, err := cleanPath(p)
		if err != nil || got != "" {
			t.Errorf("cleanPath(%q) = %q, %v; want \"\", nil", p, got, err)
		}
	}
}
