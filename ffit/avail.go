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

package ffit

import "github.com/cloudwego/heapx/region"

// Available-list maintenance. The list is doubly linked through the
// next/prev words of the free blocks themselves and kept ordered by
// ascending block size. first and last are NoBlock exactly when the
// list is empty.

// remove unlinks p from the available list.
func (h *Heap) remove(p uint32) {
	nxt, prv := h.next(p), h.prev(p)
	if prv != region.NoBlock {
		h.setNext(prv, nxt)
	} else {
		h.first = nxt
	}
	if nxt != region.NoBlock {
		h.setPrev(nxt, prv)
	} else {
		h.last = prv
	}
}

// insertBefore links q into the list directly before p.
func (h *Heap) insertBefore(p, q uint32) {
	prv := h.prev(p)
	if prv != region.NoBlock {
		h.setNext(prv, q)
	} else {
		h.first = q
	}
	h.setPrev(q, prv)
	h.setPrev(p, q)
	h.setNext(q, p)
}

// insertSorted places b at its position in the size order.
func (h *Heap) insertSorted(b uint32) {
	if h.first == region.NoBlock {
		h.first = b
		h.last = b
		h.setNext(b, region.NoBlock)
		h.setPrev(b, region.NoBlock)
		return
	}
	s := h.blockSize(b)
	for p := h.first; ; p = h.next(p) {
		if h.blockSize(p) >= s {
			h.insertBefore(p, b)
			return
		}
		if h.next(p) == region.NoBlock {
			// b is the largest block, append
			h.setNext(p, b)
			h.setPrev(b, p)
			h.setNext(b, region.NoBlock)
			h.last = b
			return
		}
	}
}

// findBefore scans the list for the free block that ends at offset
// end, i.e. the left neighbour of the block starting there. Returns
// NoBlock if no list entry matches.
func (h *Heap) findBefore(end uint32) uint32 {
	for p := h.first; p != region.NoBlock; p = h.next(p) {
		if p+h.blockSize(p) == end {
			return p
		}
	}
	return region.NoBlock
}
