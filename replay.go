package sai

import (
	"container/list"

	"github.com/pierrec/lz4/v4"
)

// replayCache is a fixed-capacity, least-recently-used cache of
// decrypted data pages, keyed by block index. Pages are kept
// lz4-compressed: the replay cache exists precisely for callers that
// re-decode the same layer region repeatedly (preview regeneration,
// re-running C7 over a region already visited), so trading a cheap
// decompression for a much smaller resident set is the right tradeoff.
type replayCache struct {
	capacity int
	ll       *list.List
	index    map[uint32]*list.Element
}

type replayEntry struct {
	block      uint32
	nextBlock  uint32
	compressed []byte
}

func newReplayCache(capacity int) *replayCache {
	if capacity <= 0 {
		capacity = 1
	}
	return &replayCache{
		capacity: capacity,
		ll:       list.New(),
		index:    make(map[uint32]*list.Element),
	}
}

func (c *replayCache) get(block uint32) (page [PageSize]byte, nextBlock uint32, ok bool) {
	el, found := c.index[block]
	if !found {
		return page, 0, false
	}
	c.ll.MoveToFront(el)
	entry := el.Value.(*replayEntry)

	var plain [PageSize]byte
	n, err := lz4.UncompressBlock(entry.compressed, plain[:])
	if err != nil || n != PageSize {
		// Treat a corrupted cache entry as a miss; the caller will
		// re-read and re-populate it.
		delete(c.index, block)
		c.ll.Remove(el)
		return page, 0, false
	}
	return plain, entry.nextBlock, true
}

func (c *replayCache) put(block uint32, page [PageSize]byte, nextBlock uint32) {
	if el, found := c.index[block]; found {
		c.ll.MoveToFront(el)
		return
	}

	buf := make([]byte, lz4.CompressBlockBound(PageSize))
	n, err := lz4.CompressBlock(page[:], buf, nil)
	if err != nil || n == 0 {
		// Incompressible or failed: the page is not cached at all,
		// since UncompressBlock on a raw, uncompressed page would fail.
		return
	}

	entry := &replayEntry{block: block, nextBlock: nextBlock, compressed: buf[:n]}
	el := c.ll.PushFront(entry)
	c.index[block] = el

	for c.ll.Len() > c.capacity {
		oldest := c.ll.Back()
		if oldest == nil {
			break
		}
		c.ll.Remove(oldest)
		delete(c.index, oldest.Value.(*replayEntry).block)
	}
}
