/*
 * Copyright 2025 CloudWeGo Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package ffit implements the first-fit method (Knuth, TAOCP Vol. 1,
// Sec. 2.5) over a caller-supplied byte region.
//
// The region is managed as a sequence of adjacent, self-describing
// blocks. Each block starts with a 32-bit word holding its total size
// and an in-use tag, and ends with a one-byte copy of the tag, so both
// neighbours of a block can be classified in O(1) during coalescing.
// Free blocks are linked into a doubly linked available list ordered
// by ascending size; Get takes the first (hence smallest) sufficient
// entry. Per-block overhead is 5 bytes.
//
// The heap is not safe for concurrent use. Callers that share a Heap
// across goroutines must hold an external lock around each operation.
package ffit

import (
	"errors"
	"fmt"

	"github.com/cloudwego/heapx/region"
)

// MinSize is the minimum total block size. Requests are rounded up so
// that a block can always hold the list links it needs while free.
const MinSize = 32

// blockOverhead is the per-block cost: 4-byte size/tag word plus the
// trailer tag byte.
const blockOverhead = 5

var (
	// ErrNotFound reports a pointer that is not a live block of this
	// heap: never allocated, already freed, or outside the region.
	ErrNotFound = errors.New("ffit: block not found")

	// ErrInternal reports a broken heap invariant. A heap returning it
	// must be considered corrupted.
	ErrInternal = errors.New("ffit: heap corrupted")
)

// Heap is a first-fit allocator over a fixed byte region. Use New to
// create one.
type Heap struct {
	r region.Region

	// first and last bound the size-ordered available list. Both are
	// NoBlock exactly when the list is empty.
	first uint32
	last  uint32
}

// New creates a heap over buf and formats it as one free block. The
// buffer must be longer than MinSize and addressable with 32-bit
// offsets.
func New(buf []byte) (*Heap, error) {
	r, err := region.New(buf)
	if err != nil {
		return nil, err
	}
	if r.Size() <= MinSize {
		return nil, fmt.Errorf("ffit: region size %d too small, need > %d", r.Size(), MinSize)
	}
	h := &Heap{r: r}
	h.Reset()
	return h, nil
}

// Reset discards all allocations and reformats the region as a single
// free block. Outstanding blocks become invalid.
func (h *Heap) Reset() {
	h.setBlock(0, h.r.Size())
	h.untag(0)
	h.setNext(0, region.NoBlock)
	h.setPrev(0, region.NoBlock)
	h.first = 0
	h.last = 0
}

// Arena returns the backing region.
func (h *Heap) Arena() []byte { return h.r.Raw() }

// Contains reports whether block points into this heap's region.
func (h *Heap) Contains(block []byte) bool {
	if len(block) == 0 {
		return false
	}
	return h.r.Contains(region.DataPtr(block))
}

// Get allocates size bytes. It returns nil when size is zero or no
// sufficiently large block is available. The returned slice has length
// size; its capacity spans the usable part of the block.
func (h *Heap) Get(size int) []byte {
	if size <= 0 || uint64(size)+blockOverhead >= uint64(h.r.Size()) {
		return nil
	}
	s := uint32(size) + blockOverhead
	if s < MinSize {
		s = MinSize
	}
	if s >= h.r.Size() {
		return nil
	}
	b := h.getblock(s)
	if b == region.NoBlock {
		return nil
	}
	return h.payload(b, uint32(size))
}

// Free releases a block returned by Get or Extend. It returns
// ErrNotFound if the block is not a live allocation of this heap and
// ErrInternal if coalescing detects a corrupted available list.
//
// Free cannot reliably reject every invalid pointer: a pointer into
// the middle of the region reads whatever bytes happen to be there as
// a block header. This is an accepted weakness of the first-fit
// layout; the buddy heap detects such pointers via its size area.
func (h *Heap) Free(block []byte) error {
	b, ok := h.blockOf(block)
	if !ok {
		return ErrNotFound
	}
	return h.freeblock(b)
}

// Extend resizes a block, the realloc of this heap.
//
// A nil block behaves like Get; size zero behaves like Free and
// returns a nil slice together with Free's result. A block whose
// effective size does not change stays in place and is returned with
// the new length. Otherwise a block
// of the new size is acquired, min(old, new) payload bytes are copied
// and the old block is released; the returned error is the result of
// that release. When no memory is available Extend returns nil with a
// nil error and the original block stays valid.
func (h *Heap) Extend(block []byte, size int) ([]byte, error) {
	if block == nil {
		return h.Get(size), nil
	}
	if size == 0 {
		return nil, h.Free(block)
	}
	if size < 0 {
		return nil, nil
	}
	b, ok := h.blockOf(block)
	if !ok {
		return nil, ErrNotFound
	}
	if uint64(size)+blockOverhead >= uint64(h.r.Size()) {
		return nil, nil
	}
	s := uint32(size) + blockOverhead
	if s < MinSize {
		s = MinSize
	}
	os := h.blockSize(b)
	if os == s {
		return h.payload(b, uint32(size)), nil
	}
	nb := h.Get(size)
	if nb == nil {
		return nil, nil
	}
	n := os - blockOverhead
	if n > uint32(size) {
		n = uint32(size)
	}
	copy(nb[:n], h.r.Bytes(b+4, n))
	return nb, h.freeblock(b)
}

// getblock finds the first available block of at least s bytes, splits
// off the slack when it pays for a block of its own, tags the result
// and returns its offset.
func (h *Heap) getblock(s uint32) uint32 {
	for p := h.first; p != region.NoBlock; p = h.next(p) {
		ps := h.blockSize(p)
		if ps < s {
			continue
		}
		if ps > s+MinSize {
			// split off the tail as a new free block
			q := p + s
			h.setBlock(q, ps-s)
			h.untag(q)
			h.setBlock(p, s)
			h.remove(p)
			h.insertSorted(q)
		} else {
			h.remove(p)
		}
		h.tag(p)
		return p
	}
	return region.NoBlock
}

// freeblock coalesces the block at b with its free neighbours and
// returns it to the available list.
func (h *Heap) freeblock(b uint32) error {
	s := h.blockSize(b)
	if !h.tagged(b) {
		return ErrNotFound
	}

	// previous neighbour: its trailer tag is the byte right before b
	if b > 0 && h.r.Byte(b-1)&1 == 0 {
		p := h.findBefore(b)
		if p == region.NoBlock {
			// a free neighbour missing from the available list
			return ErrInternal
		}
		h.setBlock(p, h.blockSize(p)+s)
		h.remove(p)
		b = p
	}

	// following neighbour
	q := b + h.blockSize(b)
	if q < h.r.Size() && !h.tagged(q) {
		h.setBlock(b, h.blockSize(b)+h.blockSize(q))
		h.remove(q)
	}

	h.untag(b)
	h.insertSorted(b)
	return nil
}

// blockOf maps a caller-visible slice back to its block offset.
func (h *Heap) blockOf(block []byte) (uint32, bool) {
	if len(block) == 0 {
		return 0, false
	}
	p := region.DataPtr(block)
	if !h.r.Contains(p) {
		return 0, false
	}
	off := h.r.Off(p)
	if off < 4 || off+blockOverhead >= h.r.Size() {
		return 0, false
	}
	return off - 4, true
}

// payload returns the caller-visible slice of a tagged block: length n,
// capacity up to the trailer byte.
func (h *Heap) payload(b uint32, n uint32) []byte {
	return h.r.Bytes(b+4, h.blockSize(b)-blockOverhead)[:n]
}

// Block header accessors. The first word of a block holds
// size<<1 | tag; the last byte of the block repeats the tag.

func (h *Heap) blockSize(b uint32) uint32 { return h.r.U32(b) >> 1 }

func (h *Heap) tagged(b uint32) bool { return h.r.U32(b)&1 == 1 }

// setBlock stores a new size, clearing the tag bit.
func (h *Heap) setBlock(b, size uint32) { h.r.PutU32(b, size<<1) }

func (h *Heap) tag(b uint32) {
	s := h.blockSize(b)
	h.r.PutU32(b, s<<1|1)
	h.r.PutByte(b+s-1, 1)
}

func (h *Heap) untag(b uint32) {
	s := h.blockSize(b)
	h.r.PutU32(b, s<<1)
	h.r.PutByte(b+s-1, 0)
}

func (h *Heap) next(b uint32) uint32 { return h.r.U32(b + 4) }
func (h *Heap) setNext(b, v uint32)  { h.r.PutU32(b+4, v) }
func (h *Heap) prev(b uint32) uint32 { return h.r.U32(b + 8) }
func (h *Heap) setPrev(b, v uint32)  { h.r.PutU32(b+8, v) }
