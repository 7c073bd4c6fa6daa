/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

// Package bufpool implements the fixed-capacity buffer pool spec.md §4.1
// describes: N pre-allocated buffers of size S, handed out through
// Checkout and returned through Checkin. Overflow allocations (once the
// pool is empty) are plain heap buffers, tagged so Checkin drops them
// instead of growing the pool past N.
//
// The teacher's runtime (the JVM) distinguishes pool-backed buffers from
// overflow ones because the former are allocated off-heap (java.nio
// DirectByteBuffer) and therefore invisible to GC-driven memory
// accounting - the whole point of the pool is back-pressure on native
// memory the GC can't see. Go has no such off-heap/on-heap split; every
// []byte here lives on the Go heap. What ksah preserves is the *discipline*
// spec.md actually tests: a hard cap of N buffers that are ever reused,
// with every overflow buffer identifiable and never re-pooled.
package bufpool

// Buffer is one fixed-size slot handed out by a Pool.
type Buffer struct {
	Bytes  []byte
	pooled bool // true if Checkin should return this slot to its Pool
	pool   *Pool
}

// Pooled reports whether this buffer originated from the pool's fixed
// capacity (spec.md's "direct" buffer) as opposed to an overflow
// allocation that Checkin will simply drop.
func (b *Buffer) Pooled() bool { return b.pooled }

// Reset zeroes the buffer's length without touching its capacity or
// contents, so it reads as empty to the next owner.
func (b *Buffer) Reset() { b.Bytes = b.Bytes[:0] }

// Pool is a fixed-capacity pool of N buffers of size S. It is safe for
// concurrent use by multiple connections.
type Pool struct {
	size int
	n    int
	free chan *Buffer
}

// New builds a Pool sized to hold N = totalBytes / size pre-allocated
// buffers of size bytes each. If totalBytes < 1024, N is 0 and every
// Checkout allocates on the heap - per spec.md §4.1, a pool this small
// isn't worth the bookkeeping.
func New(totalBytes, size int) *Pool {
	if size <= 0 {
		size = 1
	}
	n := 0
	if totalBytes >= 1024 {
		n = totalBytes / size
	}
	p := &Pool{size: size, n: n, free: make(chan *Buffer, n)}
	for i := 0; i < n; i++ {
		p.free <- &Buffer{Bytes: make([]byte, 0, size), pooled: true, pool: p}
	}
	return p
}

// Size returns the fixed buffer size S.
func (p *Pool) Size() int { return p.size }

// Capacity returns N, the pool's fixed buffer count.
func (p *Pool) Capacity() int { return p.n }

// Checkout removes a buffer from the pool. If the pool is empty, it
// returns a freshly heap-allocated buffer of the same size that Checkin
// will not return to the pool.
func (p *Pool) Checkout() *Buffer {
	select {
	case b := <-p.free:
		b.Reset()
		return b
	default:
		return &Buffer{Bytes: make([]byte, 0, p.size), pooled: false, pool: p}
	}
}

// Checkin returns b to the pool. It is a no-op for overflow buffers not
// originally drawn from this pool.
func (p *Pool) Checkin(b *Buffer) {
	if b == nil || !b.pooled || b.pool != p {
		return
	}
	select {
	case p.free <- b:
	default:
		// Capacity never exceeded in practice (every pooled buffer came
		// from this same channel), but don't block the caller if it did.
	}
}
