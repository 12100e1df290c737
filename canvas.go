package sai

import (
	"bytes"
)

// SizeUnit and ResolutionUnit enumerate the canvas's "reso" stream
// fields; only the values actually produced by the authoring
// application are recognized.
type SizeUnit uint16

const (
	SizeUnitPixels SizeUnit = 0
)

type ResolutionUnit uint16

const (
	ResolutionUnitPixelsInch ResolutionUnit = 0
)

// Canvas is the decoded "canvas" VFS entry: fixed alignment/width/
// height fields plus whichever optional tagged streams the document
// carries.
type Canvas struct {
	Alignment uint32
	Width     uint32
	Height    uint32

	HasResolution  bool
	DotsPerInch    float64
	SizeUnit       SizeUnit
	ResolutionUnit ResolutionUnit

	HasSelectionSource bool
	SelectionSource    uint32

	HasSelectedLayer bool
	SelectedLayer    uint32
}

// OpenCanvas decodes the root directory's "canvas" entry.
func OpenCanvas(d *Driver) (Canvas, error) {
	e, err := d.Get("canvas")
	if err != nil {
		return Canvas{}, err
	}
	fh, err := d.OpenFile(e)
	if err != nil {
		return Canvas{}, err
	}
	raw, err := fh.ReadAll()
	if err != nil {
		return Canvas{}, err
	}
	return decodeCanvas(raw)
}

func decodeCanvas(raw []byte) (Canvas, error) {
	br := NewBinReader(bytes.NewReader(raw))

	var c Canvas
	var err error
	if c.Alignment, err = br.ReadU32(); err != nil {
		return c, err
	}
	if c.Width, err = br.ReadU32(); err != nil {
		return c, err
	}
	if c.Height, err = br.ReadU32(); err != nil {
		return c, err
	}

	for {
		hdr, ok, err := br.ReadStreamHeader()
		if err != nil {
			return c, err
		}
		if !ok {
			break
		}
		switch string(hdr.Tag[:]) {
		case "reso":
			fixed, err := br.ReadU32()
			if err != nil {
				return c, err
			}
			sizeUnit, err := br.ReadU16()
			if err != nil {
				return c, err
			}
			resUnit, err := br.ReadU16()
			if err != nil {
				return c, err
			}
			c.HasResolution = true
			c.DotsPerInch = float64(fixed) / 65536.0
			c.SizeUnit = SizeUnit(sizeUnit)
			c.ResolutionUnit = ResolutionUnit(resUnit)
		case "wsrc":
			v, err := br.ReadU32()
			if err != nil {
				return c, err
			}
			c.HasSelectionSource = true
			c.SelectionSource = v
		case "layr":
			v, err := br.ReadU32()
			if err != nil {
				return c, err
			}
			c.HasSelectedLayer = true
			c.SelectedLayer = v
		default:
			if err := br.Skip(int(hdr.Size)); err != nil {
				return c, err
			}
		}
	}
	return c, nil
}
