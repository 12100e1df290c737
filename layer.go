package sai

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/bits-and-blooms/bitset"
	"github.com/painttool/sai/raster"
)

// BlendingMode is the exact-match ASCII string recorded in a layer's
// fixed header, just before its opacity byte.
type BlendingMode string

const (
	BlendNormal   BlendingMode = "pass"
	BlendMultiply BlendingMode = "mul "
	BlendScreen   BlendingMode = "scrn"
	BlendOverlay  BlendingMode = "over"
	BlendAdd      BlendingMode = "add "
	BlendSubtract BlendingMode = "sub "
	BlendAddSub   BlendingMode = "adsb"
	BlendBinary   BlendingMode = "cbin"
	blendNorm2    BlendingMode = "norm"
)

var validBlendingModes = map[BlendingMode]bool{
	BlendNormal: true, blendNorm2: true, BlendMultiply: true, BlendScreen: true,
	BlendOverlay: true, BlendAdd: true, BlendSubtract: true, BlendAddSub: true,
	BlendBinary: true,
}

// TextureName is the exact-match ASCII string recorded in a "texn"
// stream.
type TextureName string

const (
	TextureWatercolorA TextureName = "Watercolor A"
	TextureWatercolorB TextureName = "Watercolor B"
	TexturePaper       TextureName = "Paper"
	TextureCanvas      TextureName = "Canvas"
)

var validTextureNames = map[TextureName]bool{
	TextureWatercolorA: true, TextureWatercolorB: true, TexturePaper: true, TextureCanvas: true,
}

// Layer is a single decoded entry from the "layers"/"sublayers"
// directory: its fixed header plus whatever optional tagged streams
// were present.
type Layer struct {
	ID       uint32
	Kind     LayerKind
	X, Y     int32
	Width    uint32
	Height   uint32
	Opacity  uint8
	Visible  bool
	Blending BlendingMode

	Name       string
	HasName    bool
	ParentSet  uint32
	ParentLink uint32
	IsOpen     bool

	TextureName    TextureName
	HasTexture     bool
	TextureScale   uint16
	TextureOpacity uint8

	MaskActive bool
	MaskLinked bool

	entry        Entry
	rasterOffset int64 // byte offset within entry's payload where the raster region begins
}

// Bounds returns the layer's pixel-space bounding rectangle as
// (x, y, width, height).
func (l *Layer) Bounds() (x, y int32, width, height uint32) {
	return l.X, l.Y, l.Width, l.Height
}

// layerFixedHeaderSize is the size of the fixed portion of a layer
// record, before its tagged-stream sequence begins.
const layerFixedHeaderSize = 32

// OpenLayers decodes every entry of dirName ("layers" or "sublayers")
// into Layer values, in VFS order.
func OpenLayers(d *Driver, dirName string) ([]Layer, error) {
	block, err := d.resolveDir(dirName)
	if err != nil {
		return nil, err
	}
	entries, err := d.ListDir(block)
	if err != nil {
		return nil, err
	}

	out := make([]Layer, 0, len(entries))
	for _, e := range entries {
		if e.Fat.Kind != KindFile {
			continue
		}
		fh, err := d.OpenFile(e)
		if err != nil {
			return nil, err
		}
		raw, err := fh.ReadAll()
		if err != nil {
			return nil, err
		}
		l, err := decodeLayer(raw)
		if err != nil {
			return nil, fmt.Errorf("sai: layer %q: %w", e.Path, err)
		}
		l.entry = e
		out = append(out, l)
	}
	return out, nil
}

func decodeLayer(raw []byte) (Layer, error) {
	if len(raw) < layerFixedHeaderSize {
		return Layer{}, fmt.Errorf("sai: layer header too short: %w", ErrInvalidData)
	}
	rd := bytes.NewReader(raw)
	br := NewBinReader(rd)

	var l Layer
	kind, err := br.ReadU16()
	if err != nil {
		return l, err
	}
	l.Kind = LayerKind(kind)

	if err := br.Skip(2); err != nil { // alignment / reserved
		return l, err
	}
	if id, err := br.ReadU32(); err != nil {
		return l, err
	} else {
		l.ID = id
	}
	if x, err := br.ReadI32(); err != nil {
		return l, err
	} else {
		l.X = x
	}
	if y, err := br.ReadI32(); err != nil {
		return l, err
	} else {
		l.Y = y
	}
	if w, err := br.ReadU32(); err != nil {
		return l, err
	} else {
		l.Width = w
	}
	if h, err := br.ReadU32(); err != nil {
		return l, err
	} else {
		l.Height = h
	}
	var blend [4]byte
	if err := br.ReadFixed(blend[:]); err != nil {
		return l, err
	}
	l.Blending = BlendingMode(blend[:])
	if !validBlendingModes[l.Blending] {
		return l, fmt.Errorf("sai: blending mode %q: %w", l.Blending, ErrInvalidData)
	}
	opacity, err := br.ReadU8()
	if err != nil {
		return l, err
	}
	l.Opacity = opacity
	visible, err := br.ReadBool()
	if err != nil {
		return l, err
	}
	l.Visible = visible
	if err := br.Skip(2); err != nil { // padding to layerFixedHeaderSize
		return l, err
	}

	for {
		hdr, ok, err := br.ReadStreamHeader()
		if err != nil {
			return l, err
		}
		if !ok {
			break
		}
		if err := decodeLayerStream(br, &l, hdr); err != nil {
			return l, err
		}
	}

	l.rasterOffset = int64(len(raw)) - int64(rd.Len())
	return l, nil
}

func decodeLayerStream(br *BinReader, l *Layer, hdr StreamHeader) error {
	switch string(hdr.Tag[:]) {
	case "name":
		buf := make([]byte, hdr.Size)
		if err := br.ReadFixed(buf); err != nil {
			return err
		}
		l.Name = cString(buf)
		l.HasName = true
	case "pfid":
		v, err := br.ReadU32()
		if err != nil {
			return err
		}
		l.ParentSet = v
	case "plid":
		v, err := br.ReadU32()
		if err != nil {
			return err
		}
		l.ParentLink = v
	case "fopn":
		v, err := br.ReadBool()
		if err != nil {
			return err
		}
		l.IsOpen = v
	case "texn":
		buf := make([]byte, hdr.Size)
		if err := br.ReadFixed(buf); err != nil {
			return err
		}
		name := TextureName(cString(buf))
		if !validTextureNames[name] {
			return fmt.Errorf("sai: texture name %q: %w", name, ErrInvalidData)
		}
		l.TextureName = name
		l.HasTexture = true
	case "texp":
		scale, err := br.ReadU16()
		if err != nil {
			return err
		}
		opacity, err := br.ReadU8()
		if err != nil {
			return err
		}
		l.TextureScale = scale
		l.TextureOpacity = opacity
	case "peff":
		if err := br.Skip(3); err != nil { // enabled, opacity, width: diagnostic-only fields not modeled
			return err
		}
	case "lmfl":
		v, err := br.ReadU32()
		if err != nil {
			return err
		}
		l.MaskActive = v&0x1 != 0
		l.MaskLinked = v&0x2 != 0
	default:
		return br.Skip(int(hdr.Size))
	}
	return nil
}

// cString trims a fixed-width, NUL-terminated byte buffer to a Go
// string.
func cString(buf []byte) string {
	for i, c := range buf {
		if c == 0 {
			return string(buf[:i])
		}
	}
	return string(buf)
}

// DecodeRaster decodes this layer's pixel region via the raster
// package. Only Regular and Mask layers carry a raster region;
// calling this on any other kind returns ErrUnsupported.
func (l *Layer) DecodeRaster(d *Driver) ([]byte, *bitset.BitSet, error) {
	if l.Kind != LayerKindRegular && l.Kind != LayerKindMask {
		return nil, nil, fmt.Errorf("sai: layer kind %#x has no raster region: %w", l.Kind, ErrUnsupported)
	}
	fh, err := d.OpenFile(l.entry)
	if err != nil {
		return nil, nil, err
	}
	if _, err := io.CopyN(io.Discard, fh, l.rasterOffset); err != nil {
		return nil, nil, err
	}

	bpp := 4
	if l.Kind == LayerKindMask {
		bpp = 1
	}
	out, active, err := raster.Decode(fh, int(l.Width), int(l.Height), bpp)
	if errors.Is(err, raster.ErrOverrun) {
		return nil, nil, fmt.Errorf("sai: layer %d raster: %w: %w", l.ID, ErrInvalidData, err)
	}
	return out, active, err
}
