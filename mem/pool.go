// Copyright 2024 Dominik Honnef and contributors
// SPDX-License-Identifier: Apache-2.0 OR MIT

// Package mem provides a size-bucketed slab pool. Render buffers and
// filter scratch storage are acquired from a pool and returned to it when
// a tile finishes, so steady-state scheduling does not allocate.
package mem

import (
	"math/bits"
	"sync"
)

type Pool struct {
	mu sync.Mutex
	// Free slabs, bucketed by power-of-two size class.
	slabs map[int][][]byte
}

func NewPool() *Pool {
	return &Pool{slabs: make(map[int][][]byte)}
}

// sizeClass returns the bucket index for a request of n bytes. Slabs in
// bucket c have capacity 1<<c.
func sizeClass(n int) int {
	if n <= 1 {
		return 0
	}
	return bits.Len(uint(n - 1))
}

// Get returns a slab of length n. The slab's contents are zeroed.
func (p *Pool) Get(n int) []byte {
	if n == 0 {
		return nil
	}
	class := sizeClass(n)

	p.mu.Lock()
	free := p.slabs[class]
	if len(free) > 0 {
		slab := free[len(free)-1]
		p.slabs[class] = free[:len(free)-1]
		p.mu.Unlock()
		slab = slab[:n]
		clear(slab)
		return slab
	}
	p.mu.Unlock()

	return make([]byte, n, 1<<class)
}

// Put returns a slab previously obtained from Get. The caller must not
// use the slab afterwards.
func (p *Pool) Put(slab []byte) {
	if cap(slab) == 0 {
		return
	}
	class := bits.Len(uint(cap(slab) - 1))
	if 1<<class != cap(slab) {
		// Foreign slab; don't adopt it, the buckets assume exact
		// power-of-two capacities.
		return
	}
	p.mu.Lock()
	p.slabs[class] = append(p.slabs[class], slab[:cap(slab)])
	p.mu.Unlock()
}
