package sai

import "bytes"

// LayerKind enumerates the layer kinds a layer table or layer record
// can declare.
type LayerKind uint16

const (
	LayerKindRoot     LayerKind = 0x00
	LayerKindRegular  LayerKind = 0x03
	LayerKindUnknown4 LayerKind = 0x04
	LayerKindLinework LayerKind = 0x05
	LayerKindMask     LayerKind = 0x06
	LayerKindUnknown7 LayerKind = 0x07
	LayerKindSet      LayerKind = 0x08
)

// LayerTableEntry is one row of the "laytbl"/"subtbl" index: an id,
// its declared kind, and the tile height of its raster region.
type LayerTableEntry struct {
	ID         uint32
	Kind       LayerKind
	TileHeight uint16
}

// LayerTable is the decoded count-prefixed layer index.
type LayerTable struct {
	Entries []LayerTableEntry
}

// IndexOf returns the position of id within the table, or (-1, false)
// if absent.
func (lt *LayerTable) IndexOf(id uint32) (int, bool) {
	for i, e := range lt.Entries {
		if e.ID == id {
			return i, true
		}
	}
	return -1, false
}

// Order returns the table's entries in on-disk order, which is also
// the document's bottom-to-top stacking order. It's a thin accessor
// kept for callers that want stacking order without re-deriving it
// from IndexOf.
func (lt *LayerTable) Order() []LayerTableEntry {
	return lt.Entries
}

// OpenLayerTable decodes either "laytbl" or "subtbl" from the root
// directory.
func OpenLayerTable(d *Driver, name string) (LayerTable, error) {
	e, err := d.Get(name)
	if err != nil {
		return LayerTable{}, err
	}
	fh, err := d.OpenFile(e)
	if err != nil {
		return LayerTable{}, err
	}
	raw, err := fh.ReadAll()
	if err != nil {
		return LayerTable{}, err
	}
	return decodeLayerTable(raw)
}

func decodeLayerTable(raw []byte) (LayerTable, error) {
	br := NewBinReader(bytes.NewReader(raw))

	count, err := br.ReadU32()
	if err != nil {
		return LayerTable{}, err
	}
	lt := LayerTable{Entries: make([]LayerTableEntry, 0, count)}
	for i := uint32(0); i < count; i++ {
		id, err := br.ReadU32()
		if err != nil {
			return LayerTable{}, err
		}
		kind, err := br.ReadU16()
		if err != nil {
			return LayerTable{}, err
		}
		tileHeight, err := br.ReadU16()
		if err != nil {
			return LayerTable{}, err
		}
		lt.Entries = append(lt.Entries, LayerTableEntry{
			ID:         id,
			Kind:       LayerKind(kind),
			TileHeight: tileHeight,
		})
	}
	return lt, nil
}
