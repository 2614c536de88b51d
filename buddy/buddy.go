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

// Package buddy implements the buddy system (Knuth, TAOCP Vol. 1,
// Sec. 2.5) over a caller-supplied byte region.
//
// The region is split in two halves. The first half, whose size must
// be a power of two, is the main heap: blocks are powers of two, at
// least MinSize bytes, and aligned to their own size, except for those
// that stem from the tail Extend releases when it shrinks a block by
// four or more size classes. The second half
// hosts the bookkeeping (one available-list head per size class and a
// bit-packed size area recording the class of every live block) and,
// optionally, an emergency heap managed by package ffit that serves
// requests the main heap cannot.
//
// Free blocks carry their list links in their own first 8 bytes, so an
// allocated block has zero bookkeeping overhead inside the main heap.
// The out-of-band size area is what lets Free reject pointers that
// were never handed out.
//
// The heap is not safe for concurrent use. Callers that share a Heap
// across goroutines must hold an external lock around each operation.
package buddy

import (
	"errors"
	"fmt"
	"math/bits"

	"github.com/cloudwego/heapx/ffit"
	"github.com/cloudwego/heapx/region"
)

// MinSize is the minimum block size and the alignment of every block
// in the main heap. It cannot be smaller than the 8 bytes a free block
// needs for its list links.
const MinSize = 8

var (
	// ErrNotFound reports a pointer that is not a live block of this
	// heap: never allocated, already freed, misaligned, or outside the
	// region.
	ErrNotFound = errors.New("buddy: block not found")

	// ErrInternal reports a broken heap invariant. A heap returning it
	// must be considered corrupted.
	ErrInternal = errors.New("buddy: heap corrupted")
)

// Heap is a buddy allocator over a fixed byte region. Use New or
// NewWithEmergency to create one.
type Heap struct {
	r region.Region

	msize uint32 // main heap size, power of two
	esize uint32 // emergency sub-region size
	amax  uint8  // largest size-class exponent, log2(msize)

	availOff uint32 // offset of the available-list heads
	sizeOff  uint32 // offset of the size area

	ff *ffit.Heap // emergency heap, nil unless enabled
}

// New creates a buddy heap over buf. Half of the buffer becomes the
// main heap and must be a power of two; the other half is used for
// bookkeeping. Requests the main heap cannot satisfy fail.
func New(buf []byte) (*Heap, error) {
	return newHeap(buf, false)
}

// NewWithEmergency is like New but additionally formats the unused
// part of the bookkeeping half as a first-fit emergency heap that
// serves requests when the main heap is exhausted.
func NewWithEmergency(buf []byte) (*Heap, error) {
	return newHeap(buf, true)
}

func newHeap(buf []byte, emergency bool) (*Heap, error) {
	r, err := region.New(buf)
	if err != nil {
		return nil, err
	}
	msize := r.Size() / 2
	if msize < MinSize || msize&(msize-1) != 0 {
		return nil, fmt.Errorf("buddy: main heap size %d must be a power of two >= %d", msize, MinSize)
	}
	amax := log2(msize)
	asize := (uint32(amax) + 1) * 4
	ssize := (msize/MinSize + 1) * 6 / 8
	if asize+ssize >= msize {
		return nil, fmt.Errorf("buddy: region size %d leaves no room after %d bookkeeping bytes", r.Size(), asize+ssize)
	}
	esize := msize - (asize + ssize)

	h := &Heap{
		r:        r,
		msize:    msize,
		esize:    esize,
		amax:     amax,
		availOff: msize + esize,
		sizeOff:  msize + esize + asize,
	}
	if err = h.format(emergency); err != nil {
		return nil, err
	}
	return h, nil
}

// format writes the initial bookkeeping state. The 0xFF fill of the
// main heap doubles as list initialisation: every embedded link reads
// as NoBlock.
func (h *Heap) format(emergency bool) error {
	h.r.Fill(0, h.msize, 0xFF)
	h.r.Fill(h.sizeOff, h.sizeArea(), 0)
	h.r.Fill(h.availOff, h.sizeOff-h.availOff, 0xFF)
	h.binsert(0, h.amax)
	if emergency {
		ff, err := ffit.New(h.r.Bytes(h.msize, h.esize))
		if err != nil {
			return err
		}
		h.ff = ff
	}
	return nil
}

// Reset discards all allocations and returns the heap to its freshly
// initialised state. Outstanding blocks become invalid.
func (h *Heap) Reset() {
	h.r.Fill(0, h.msize, 0xFF)
	h.r.Fill(h.sizeOff, h.sizeArea(), 0)
	h.r.Fill(h.availOff, h.sizeOff-h.availOff, 0xFF)
	h.binsert(0, h.amax)
	if h.ff != nil {
		h.ff.Reset()
	}
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

// Get allocates size bytes, rounded up to the next power of two of at
// least MinSize. It returns nil when size is zero or too large for the
// main heap. When the main heap cannot satisfy the request and the
// emergency heap is enabled, the block comes from there instead. The
// returned slice has length size; its capacity spans the whole block.
func (h *Heap) Get(size int) []byte {
	if size <= 0 || uint64(size) >= uint64(h.msize) {
		return nil
	}
	s := ceilClass(uint32(size))
	if s >= h.msize {
		return nil
	}
	if b := h.getblock(s); b != region.NoBlock {
		return h.r.Bytes(b, s)[:size]
	}
	if h.ff != nil {
		return h.ff.Get(size)
	}
	return nil
}

// Free releases a block returned by Get or Extend. Pointers are routed
// by range: blocks in the main heap are validated against the size
// area, blocks in the emergency sub-region are handed to the embedded
// first-fit heap. Returns ErrNotFound for pointers this heap does not
// own, including double frees.
func (h *Heap) Free(block []byte) error {
	if len(block) == 0 {
		return ErrNotFound
	}
	p := region.DataPtr(block)
	if !h.r.Contains(p) {
		return ErrNotFound
	}
	off := h.r.Off(p)
	if off >= h.msize {
		if h.ff != nil && off < h.msize+h.esize {
			return mapFFErr(h.ff.Free(block))
		}
		return ErrNotFound
	}
	return h.freeblock(off)
}

// Extend resizes a block, the realloc of this heap.
//
// A nil block behaves like Get; size zero behaves like Free and
// returns a nil slice together with Free's result. A block whose size
// class does not change stays in place and is returned with the new
// length. Growing first tries to
// absorb free buddies to the right of the block in place; otherwise a
// fresh block is allocated and the old contents copied. Shrinking is
// always in place, returning the tail to the available lists. When no
// memory is available Extend returns nil with a nil error and the
// original block stays valid.
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
	p := region.DataPtr(block)
	if !h.r.Contains(p) {
		return nil, ErrNotFound
	}
	off := h.r.Off(p)
	if off >= h.msize {
		if h.ff != nil && off < h.msize+h.esize {
			nb, err := h.ff.Extend(block, size)
			return nb, mapFFErr(err)
		}
		return nil, ErrNotFound
	}
	if uint64(size) >= uint64(h.msize) {
		return nil, nil
	}
	s := ceilClass(uint32(size))
	if s >= h.msize {
		return nil, nil
	}
	nb, err := h.extendblock(off, s)
	if err != nil || nb == region.NoBlock {
		return nil, err
	}
	return h.r.Bytes(nb, s)[:size], nil
}

// getblock implements allocation inside the main heap: scan the
// available lists upward from the wanted class, split the found block
// down, then stamp the class into the size area.
func (h *Heap) getblock(s uint32) uint32 {
	k := log2(s)
	b := region.NoBlock

	i := k
	for ; i <= h.amax; i++ {
		if h.availHead(i) != region.NoBlock {
			b = h.availHead(i)
			break
		}
	}
	if i <= h.amax {
		for ; i > k; i-- {
			b = h.availHead(i)
			if b == region.NoBlock {
				break
			}
			h.bsplit(b, i)
		}
	}
	if i != k || b == region.NoBlock {
		return region.NoBlock
	}
	h.bremove(b, k)
	h.putsize(unitIndex(b), k)
	return b
}

// freeblock validates a main-heap offset against the size area, then
// joins the block with its buddies as far as possible.
func (h *Heap) freeblock(b uint32) error {
	if b&(MinSize-1) != 0 {
		return ErrNotFound
	}
	k := h.getsize(unitIndex(b))
	if k == 0 {
		return ErrNotFound
	}
	h.erasesize(unitIndex(b))
	if !h.bjoin(b, k) {
		h.binsert(b, k)
	}
	return nil
}

// extendblock reallocates a main-heap block to class size s. It
// returns NoBlock with a nil error when out of memory, leaving the
// original block untouched.
func (h *Heap) extendblock(b, s uint32) (uint32, error) {
	if b&(MinSize-1) != 0 {
		return region.NoBlock, ErrNotFound
	}
	cs := h.getsize(unitIndex(b))
	if cs == 0 {
		return region.NoBlock, ErrNotFound
	}
	csz := uint32(1) << cs

	switch {
	case csz == s:
		return b, nil
	case csz < s:
		if h.bextend(b, cs, log2(s)) {
			return b, nil
		}
		nb := h.getblock(s)
		if nb == region.NoBlock {
			return region.NoBlock, nil
		}
		h.r.Copy(nb, b, csz)
		if err := h.freeblock(b); err != nil {
			return nb, ErrInternal
		}
		return nb, nil
	default:
		h.bshrink(b, cs, log2(s))
		return b, nil
	}
}

func mapFFErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ffit.ErrNotFound):
		return ErrNotFound
	default:
		return ErrInternal
	}
}

// unitIndex maps a block offset to its index in the size area, one
// entry per MinSize bytes.
func unitIndex(b uint32) uint32 { return b >> 3 }

func log2(n uint32) uint8 { return uint8(bits.Len32(n) - 1) }

// ceilClass rounds a request up to the next power of two, at least
// MinSize.
func ceilClass(n uint32) uint32 {
	if n <= MinSize {
		return MinSize
	}
	return 1 << bits.Len32(n-1)
}

// findbuddy locates the companion of a block of class s: the next
// block when aligned to the doubled size, the previous one otherwise.
func findbuddy(b uint32, s uint8) uint32 {
	k := uint32(1) << s
	if b&(k<<1-1) == 0 {
		return b + k
	}
	return b - k
}
