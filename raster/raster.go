// Package raster decodes a layer's per-tile RLE-compressed pixel
// region (C7), the format consumed downstream of the VFS and the
// binary stream reader.
package raster

import (
	"fmt"
	"io"

	"github.com/bits-and-blooms/bitset"
)

const tileSize = 32

// maxRLEChunk is the largest permitted per-channel compressed size,
// in bytes, for one tile.
const maxRLEChunk = 2048

// destSamples is the number of destination samples (pixels) a single
// channel's RLE stream must produce per tile: one 32x32 tile.
const destSamples = tileSize * tileSize

var (
	// ErrOverrun reports an RLE stream that produced more destination
	// samples than a tile holds, or a chunk length over maxRLEChunk.
	ErrOverrun = fmt.Errorf("sai/raster: malformed RLE stream")
)

// Decode reads a BPP-channel tile-mapped raster region of the given
// width and height (both required to be multiples of 32) from r, and
// returns the assembled width*height*BPP output buffer.
//
// BPP must be 4 (BGRA source, swapped to RGBA on output, premultiplied
// alpha preserved as-is) or 1 (an 8-bit mask, expanded to display
// range via min(s*4, 255)).
func Decode(r io.Reader, width, height, bpp int) ([]byte, *bitset.BitSet, error) {
	if bpp != 1 && bpp != 4 {
		return nil, nil, fmt.Errorf("sai/raster: unsupported bpp %d", bpp)
	}
	if width%tileSize != 0 || height%tileSize != 0 {
		return nil, nil, fmt.Errorf("sai/raster: dimensions %dx%d not multiples of %d", width, height, tileSize)
	}

	tilesX := width / tileSize
	tilesY := height / tileSize

	tileMap := make([]byte, tilesX*tilesY)
	if _, err := io.ReadFull(r, tileMap); err != nil {
		return nil, nil, err
	}

	active := bitset.New(uint(tilesX * tilesY))
	out := make([]byte, width*height*bpp)

	work := make([]byte, destSamples*bpp) // one tile's worth of RLE-decoded samples, channel-interleaved
	staging := make([]byte, maxRLEChunk)

	for ty := 0; ty < tilesY; ty++ {
		for tx := 0; tx < tilesX; tx++ {
			idx := ty*tilesX + tx
			if tileMap[idx] == 0 {
				continue
			}
			active.Set(uint(idx))

			if err := decodeTile(r, work, staging, bpp); err != nil {
				return nil, nil, err
			}
			placeTile(out, work, width, bpp, tx, ty)
		}
	}
	return out, active, nil
}

// decodeTile reads one tile's worth of per-channel RLE streams into
// work, which must be destSamples*bpp bytes, channel-interleaved at
// stride bpp. staging is a scratch buffer reused across calls, must be
// at least maxRLEChunk bytes.
func decodeTile(r io.Reader, work, staging []byte, bpp int) error {
	for ch := 0; ch < 2*bpp; ch++ {
		var sizeBuf [2]byte
		if _, err := io.ReadFull(r, sizeBuf[:]); err != nil {
			return err
		}
		size := int(sizeBuf[0]) | int(sizeBuf[1])<<8
		if size > maxRLEChunk {
			return ErrOverrun
		}
		chunk := staging[:size]
		if _, err := io.ReadFull(r, chunk); err != nil {
			return err
		}
		if ch >= bpp {
			// Auxiliary channel data: consumed, not stored.
			continue
		}
		if err := rleDecode(chunk, work[ch:], bpp); err != nil {
			return err
		}
	}
	return nil
}

// rleDecode expands src into dst (stride-interleaved, starting at
// dst[0]) until destSamples samples have been produced.
func rleDecode(src []byte, dst []byte, stride int) error {
	si := 0
	produced := 0
	di := 0

	for produced < destSamples {
		if si >= len(src) {
			return ErrOverrun
		}
		l := src[si]
		si++

		switch {
		case l < 128:
			n := int(l) + 1
			if produced+n > destSamples {
				return ErrOverrun
			}
			if si+n > len(src) {
				return ErrOverrun
			}
			for i := 0; i < n; i++ {
				dst[di] = src[si+i]
				di += stride
			}
			si += n
			produced += n
		case l > 128:
			if si >= len(src) {
				return ErrOverrun
			}
			v := src[si]
			si++
			n := int(l^0xFF) + 2
			if produced+n > destSamples {
				return ErrOverrun
			}
			for i := 0; i < n; i++ {
				dst[di] = v
				di += stride
			}
			produced += n
		default: // l == 128: no-op
		}
	}
	return nil
}

// placeTile copies a decoded 32x32xbpp tile (channel order as produced
// by decodeTile: BGRA for bpp==4) into out's pixel grid at tile
// coordinate (tx, ty), applying the output channel-order transform.
func placeTile(out, tile []byte, width, bpp, tx, ty int) {
	originX := tx * tileSize
	originY := ty * tileSize

	for row := 0; row < tileSize; row++ {
		srcRow := tile[row*tileSize*bpp : (row+1)*tileSize*bpp]
		dstOff := ((originY+row)*width + originX) * bpp
		dstRow := out[dstOff : dstOff+tileSize*bpp]

		switch bpp {
		case 4:
			for px := 0; px < tileSize; px++ {
				b := srcRow[px*4+0]
				g := srcRow[px*4+1]
				r := srcRow[px*4+2]
				a := srcRow[px*4+3]
				dstRow[px*4+0] = r
				dstRow[px*4+1] = g
				dstRow[px*4+2] = b
				dstRow[px*4+3] = a
			}
		case 1:
			for px := 0; px < tileSize; px++ {
				s := int(srcRow[px])
				v := s * 4
				if v > 255 {
					v = 255
				}
				dstRow[px] = byte(v)
			}
		}
	}
}
