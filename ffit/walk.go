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

import (
	"io"

	"github.com/cloudwego/heapx/internal/colorblock"
)

// walk visits every block in region order. The visitor receives the
// block offset, its total size and whether it is in use.
func (h *Heap) walk(visit func(off, size uint32, used bool)) {
	for off := uint32(0); off < h.r.Size(); {
		s := h.blockSize(off)
		visit(off, s, h.tagged(off))
		off += s
	}
}

// Stats returns the region size and the number of bytes currently
// held by allocated and by available blocks. used+free == mem unless
// the heap is corrupted.
func (h *Heap) Stats() (mem, used, free uint32) {
	mem = h.r.Size()
	h.walk(func(_, size uint32, u bool) {
		if u {
			used += size
		} else {
			free += size
		}
	})
	return
}

// PrintHeap writes a coloured visualisation of all blocks and the
// usage totals to w.
func (h *Heap) PrintHeap(w io.Writer) {
	var used, free uint32
	h.walk(func(_, size uint32, u bool) {
		if u {
			used += size
			colorblock.Used(w, size)
		} else {
			free += size
			colorblock.Free(w, size)
		}
	})
	colorblock.Totals(w, h.r.Size(), used, free)
}
