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

// The size area records, for every MinSize unit of the main heap, the
// class exponent of the block starting there, or 0 if no allocated
// block starts there. Entries are 6 bits wide and packed back to back,
// so entry i occupies bits [6i, 6i+6) of the byte stream, value in the
// high bits of the field. Unit indexes are multiples of MinSize/8, so
// the in-byte bit offset is always 0, 2, 4 or 6; the field spills into
// the following byte only for offsets 4 and 6.

// sizeArea returns the byte length of the size area.
func (h *Heap) sizeArea() uint32 { return h.r.Size() - h.sizeOff }

// putsize stores class exponent v (1..63) for unit index i. The entry
// must currently be 0.
func (h *Heap) putsize(i uint32, v uint8) {
	p := i * 6
	y := h.sizeOff + p/8
	b := p & 7
	h.r.PutByte(y, h.r.Byte(y)|(v<<2)>>b)
	if b > 2 {
		h.r.PutByte(y+1, h.r.Byte(y+1)|byte(uint16(v)<<2<<(8-b)))
	}
}

// getsize reads the class exponent for unit index i.
func (h *Heap) getsize(i uint32) uint8 {
	p := i * 6
	y := h.sizeOff + p/8
	b := p & 7
	x := h.r.Byte(y) << b
	if b > 2 {
		x |= h.r.Byte(y+1) >> (8 - b)
	}
	return x >> 2
}

// erasesize clears the 6-bit entry for unit index i without touching
// its neighbours.
func (h *Heap) erasesize(i uint32) {
	p := i * 6
	y := h.sizeOff + p/8
	b := p & 7
	if b == 0 {
		h.r.PutByte(y, h.r.Byte(y)&(0xFF>>6))
		return
	}
	h.r.PutByte(y, h.r.Byte(y)&(0xFF<<(8-b)))
	if b > 2 {
		h.r.PutByte(y+1, h.r.Byte(y+1)&(0xFF>>(b-2)))
	}
}
