package sai

import (
	"bytes"
	"fmt"
)

// Thumbnail is the document's embedded BGRA preview image, decoded
// from the "thumbnail" VFS entry and converted to RGBA.
type Thumbnail struct {
	Width  uint32
	Height uint32
	RGBA   []byte
}

var thumbnailMagic = [4]byte{'B', 'M', '3', '2'}

// OpenThumbnail decodes the root directory's "thumbnail" entry.
func OpenThumbnail(d *Driver) (Thumbnail, error) {
	e, err := d.Get("thumbnail")
	if err != nil {
		return Thumbnail{}, err
	}
	fh, err := d.OpenFile(e)
	if err != nil {
		return Thumbnail{}, err
	}
	raw, err := fh.ReadAll()
	if err != nil {
		return Thumbnail{}, err
	}
	return decodeThumbnail(raw)
}

func decodeThumbnail(raw []byte) (Thumbnail, error) {
	br := NewBinReader(bytes.NewReader(raw))

	width, err := br.ReadU32()
	if err != nil {
		return Thumbnail{}, err
	}
	height, err := br.ReadU32()
	if err != nil {
		return Thumbnail{}, err
	}
	var magic [4]byte
	if err := br.ReadFixed(magic[:]); err != nil {
		return Thumbnail{}, err
	}
	if magic != thumbnailMagic {
		return Thumbnail{}, fmt.Errorf("sai: thumbnail magic %q: %w", magic, ErrInvalidData)
	}

	n := int(width) * int(height) * 4
	bgra := make([]byte, n)
	if err := br.ReadFixed(bgra); err != nil {
		return Thumbnail{}, err
	}

	rgba := make([]byte, n)
	for i := 0; i+4 <= n; i += 4 {
		rgba[i+0] = bgra[i+2]
		rgba[i+1] = bgra[i+1]
		rgba[i+2] = bgra[i+0]
		rgba[i+3] = bgra[i+3]
	}

	return Thumbnail{Width: width, Height: height, RGBA: rgba}, nil
}
