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

// Package heappool caches initialised buddy heaps so that short-lived
// consumers do not pay region allocation and formatting on every use.
//
// Backing regions come from mcache and recycling goes through
// sync.Pool, which keeps reuse local to the current P. Handing each
// scheduling core its own heap this way also gives callers the
// recommended locking story: a heap taken from the pool is owned by
// one goroutine until it is put back.
package heappool

import (
	"sync"

	"github.com/bytedance/gopkg/lang/mcache"
	"github.com/cloudwego/heapx/buddy"
)

// Pool hands out buddy heaps of a fixed geometry.
type Pool struct {
	size      int
	emergency bool
	p         sync.Pool
}

// New creates a pool of heaps over regions of size bytes, with or
// without an emergency heap. The geometry is validated once here, so
// Get never fails.
func New(size int, emergency bool) (*Pool, error) {
	p := &Pool{size: size, emergency: emergency}
	h, err := p.make()
	if err != nil {
		return nil, err
	}
	p.p.New = func() interface{} {
		h, _ := p.make()
		return h
	}
	p.p.Put(h)
	return p, nil
}

func (p *Pool) make() (*buddy.Heap, error) {
	buf := mcache.Malloc(p.size)
	var h *buddy.Heap
	var err error
	if p.emergency {
		h, err = buddy.NewWithEmergency(buf)
	} else {
		h, err = buddy.New(buf)
	}
	if err != nil {
		mcache.Free(buf)
		return nil, err
	}
	return h, nil
}

// Get returns a ready, empty heap owned by the caller.
func (p *Pool) Get() *buddy.Heap {
	return p.p.Get().(*buddy.Heap)
}

// Put resets h and caches it for reuse. The caller must not use h or
// any block allocated from it afterwards.
func (p *Pool) Put(h *buddy.Heap) {
	h.Reset()
	p.p.Put(h)
}

// Release returns h's backing region to mcache instead of caching the
// heap. Use it for heaps that will not be needed again soon.
func (p *Pool) Release(h *buddy.Heap) {
	mcache.Free(h.Arena())
}
