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

// Package colorblock renders heap visualisations: one decimal size per
// block, coloured with ANSI SGR codes (31 = used, 32 = free), tokens
// separated by '|', followed by the usage totals.
package colorblock

import (
	"fmt"
	"io"
)

const (
	red   = "\x1b[31m"
	green = "\x1b[32m"
	reset = "\x1b[0m"
)

// Used writes the token for an allocated block of the given size.
func Used(w io.Writer, size uint32) {
	fmt.Fprintf(w, "%s%d%s|", red, size, reset)
}

// Free writes the token for an available block of the given size.
func Free(w io.Writer, size uint32) {
	fmt.Fprintf(w, "%s%d%s|", green, size, reset)
}

// Totals writes the summary below a block line. A missing line is
// emitted when used and free do not add up to mem, which indicates an
// inconsistent block partition.
func Totals(w io.Writer, mem, used, free uint32) {
	var pct uint64
	if mem > 0 {
		pct = 100 * uint64(used) / uint64(mem)
	}
	fmt.Fprintf(w, "\nTotal    : %09d\n", mem)
	fmt.Fprintf(w, "%sUsed     : %09d%s%s (%d%%)%s\n", red, used, reset, red, pct, reset)
	fmt.Fprintf(w, "%sFree     : %09d%s\n", green, free, reset)
	if used+free != mem {
		fmt.Fprintf(w, "%smissing: %09d%s\n", red, mem-(used+free), reset)
	}
}

// Lost writes the diagnostic for a block that is neither allocated nor
// on any available list.
func Lost(w io.Writer, off uint32) {
	fmt.Fprintf(w, "LOST BLOCK: %d\n", off)
}
