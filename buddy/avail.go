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

package buddy

import "github.com/cloudwego/heapx/region"

// Available lists, one per size class. The heads live in the avail
// table at availOff; the links live in the first 8 bytes of the free
// blocks themselves ({next, prev}, 32-bit each). Insertion pushes at
// the head; removal scans the single list for its predecessor, which
// stays cheap because blocks are maximally coalesced. Removed blocks
// get their link bytes reset to 0xFF so a stale link can never read as
// a list member.

func (h *Heap) availHead(k uint8) uint32 {
	return h.r.U32(h.availOff + 4*uint32(k))
}

func (h *Heap) setAvailHead(k uint8, v uint32) {
	h.r.PutU32(h.availOff+4*uint32(k), v)
}

func (h *Heap) nodeNext(b uint32) uint32 { return h.r.U32(b) }
func (h *Heap) nodePrev(b uint32) uint32 { return h.r.U32(b + 4) }

// blockClean resets the embedded links of a block leaving a list.
func (h *Heap) blockClean(b uint32) {
	h.r.PutU32(b, region.NoBlock)
	h.r.PutU32(b+4, region.NoBlock)
}

// binsert pushes block b onto the list of class k.
func (h *Heap) binsert(b uint32, k uint8) {
	head := h.availHead(k)
	h.r.PutU32(b, head)
	h.r.PutU32(b+4, region.NoBlock)
	if head != region.NoBlock {
		h.r.PutU32(head+4, b)
	}
	h.setAvailHead(k, b)
}

// bremove takes block b off the list of class k. Removing a block
// that is not on the list is a no-op.
func (h *Heap) bremove(b uint32, k uint8) {
	head := h.availHead(k)
	if head == b {
		nxt := h.nodeNext(b)
		h.setAvailHead(k, nxt)
		if nxt != region.NoBlock {
			h.r.PutU32(nxt+4, region.NoBlock)
		}
		h.blockClean(b)
		return
	}
	for p := head; p != region.NoBlock; p = h.nodeNext(p) {
		if h.nodeNext(p) == b {
			nxt := h.nodeNext(b)
			h.r.PutU32(p, nxt)
			if nxt != region.NoBlock {
				h.r.PutU32(nxt+4, p)
			}
			h.blockClean(b)
			return
		}
	}
}

// bisin reports whether block b is on the list of class k.
func (h *Heap) bisin(b uint32, k uint8) bool {
	for p := h.availHead(k); p != region.NoBlock; p = h.nodeNext(p) {
		if p == b {
			return true
		}
	}
	return false
}

// bsplit halves the block at the head of list k and pushes both
// halves one class down.
func (h *Heap) bsplit(b uint32, k uint8) {
	h.bremove(b, k)
	k--
	s := uint32(1) << k
	h.binsert(b+s, k)
	h.binsert(b, k)
}

// bjoin repeatedly merges block b of class k with its buddy while the
// buddy is free, pushing the merged block one class up each round.
// Reports whether at least one merge happened; if not, the caller
// still owns the insertion of b.
func (h *Heap) bjoin(b uint32, k uint8) bool {
	merged := false
	for s := k; s < h.amax; s++ {
		buddy := findbuddy(b, s)
		if !h.bisin(buddy, s) {
			break
		}
		h.bremove(buddy, s)
		if merged {
			h.bremove(b, s)
		}
		if buddy < b {
			b = buddy
		}
		h.binsert(b, s+1)
		merged = true
	}
	return merged
}

// bextend grows block b from class c to class s in place by absorbing
// its free buddies. Each step requires the buddy to sit to the right
// of b and to be on its list; a dry run checks the whole ladder before
// anything is removed, so a failed attempt has no effect.
func (h *Heap) bextend(b uint32, c, s uint8) bool {
	i := c
	for ; i < s; i++ {
		buddy := findbuddy(b, i)
		if buddy < b || !h.bisin(buddy, i) {
			break
		}
	}
	if i != s {
		return false
	}
	for i = c; i < s; i++ {
		h.bremove(findbuddy(b, i), i)
	}
	h.erasesize(unitIndex(b))
	h.putsize(unitIndex(b), s)
	return true
}

// bshrink cuts block b from class c down to class s in place. The cut
// first frees the sibling of the kept half, then releases the rest
// piece by piece: the remainder itself when it is a power of two,
// otherwise a quarter of the next power of two above it. All class
// sizes are multiples of MinSize, so the remainder always reaches
// zero. For a cut of four or more classes some of these pieces are
// not aligned to their own size.
func (h *Heap) bshrink(b uint32, c, s uint8) {
	cz := uint32(1) << c
	sz := uint32(1) << s

	h.erasesize(unitIndex(b))
	h.putsize(unitIndex(b), s)

	p := b + sz
	h.binsert(p, s)
	p += sz
	cz -= sz << 1

	for cz > 0 {
		k := ceilClass(cz)
		if k != cz {
			k >>= 2
		}
		h.binsert(p, log2(k))
		cz -= k
		p += k
	}
}
