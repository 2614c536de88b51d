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

import (
	"fmt"
	"io"

	"github.com/cloudwego/heapx/internal/colorblock"
)

// walk visits every block of the main heap in region order. An
// allocated block is recognised by its size-area entry; a free block
// by its membership in an available list. The walk stops early at a
// block that is neither, reporting its offset; such a lost block
// means the partition is broken.
func (h *Heap) walk(visit func(off, size uint32, used bool)) (lost uint32, ok bool) {
	for off := uint32(0); off < h.msize; {
		used := true
		s := h.getsize(unitIndex(off))
		if s == 0 {
			used = false
			for ; s <= h.amax; s++ {
				if h.bisin(off, s) {
					break
				}
			}
			if s > h.amax {
				return off, false
			}
		}
		sz := uint32(1) << s
		visit(off, sz, used)
		off += sz
	}
	return 0, true
}

// Stats returns the main heap size and the number of bytes currently
// held by allocated and by available blocks. used+free == mem unless
// the heap is corrupted. The emergency heap, if any, keeps its own
// stats.
func (h *Heap) Stats() (mem, used, free uint32) {
	mem = h.msize
	_, _ = h.walk(func(_, size uint32, u bool) {
		if u {
			used += size
		} else {
			free += size
		}
	})
	return
}

// PrintHeap writes a coloured visualisation of all blocks and the
// usage totals to w, followed by the emergency heap when enabled.
func (h *Heap) PrintHeap(w io.Writer) {
	var used, free uint32
	lost, ok := h.walk(func(_, size uint32, u bool) {
		if u {
			used += size
			colorblock.Used(w, size)
		} else {
			free += size
			colorblock.Free(w, size)
		}
	})
	if !ok {
		colorblock.Lost(w, lost)
	}
	colorblock.Totals(w, h.msize, used, free)
	if h.ff != nil {
		fmt.Fprintln(w, "### EMERGENCY ##############")
		h.ff.PrintHeap(w)
	}
}
