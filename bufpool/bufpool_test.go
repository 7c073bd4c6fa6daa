/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package bufpool

import "testing"

func TestNewComputesCapacity(t *testing.T) {
	p := New(65536, 16384)
	if p.Capacity() != 4 {
		t.Fatalf("Capacity() = %d, want 4", p.Capacity())
	}
}

func TestNewBelowThresholdDisablesPool(t *testing.T) {
	p := New(1023, 256)
	if p.Capacity() != 0 {
		t.Fatalf("Capacity() = %d, want 0 for totalBytes < 1024", p.Capacity())
	}
	b := p.Checkout()
	if b.Pooled() {
		t.Fatalf("buffer from a zero-capacity pool must not be pooled")
	}
}

func TestCheckoutCheckinRoundTrip(t *testing.T) {
	p := New(2048, 1024)
	if p.Capacity() != 2 {
		t.Fatalf("Capacity() = %d, want 2", p.Capacity())
	}
	a := p.Checkout()
	b := p.Checkout()
	if !a.Pooled() || !b.Pooled() {
		t.Fatalf("both buffers should be pooled")
	}
	// pool exhausted: next checkout must overflow onto the heap
	c := p.Checkout()
	if c.Pooled() {
		t.Fatalf("third checkout should overflow, pool capacity is 2")
	}
	p.Checkin(c) // no-op, never re-pooled
	p.Checkin(a)
	p.Checkin(b)

	seen := 0
	for i := 0; i < p.Capacity(); i++ {
		buf := p.Checkout()
		if !buf.Pooled() {
			t.Fatalf("expected a pooled buffer back after checkin")
		}
		seen++
	}
	if seen != 2 {
		t.Fatalf("got %d pooled buffers back, want 2", seen)
	}
}

func TestBufferBytesCapMatchesSize(t *testing.T) {
	p := New(4096, 1024)
	b := p.Checkout()
	if cap(b.Bytes) != 1024 {
		t.Fatalf("cap(Bytes) = %d, want 1024", cap(b.Bytes))
	}
	if len(b.Bytes) != 0 {
		t.Fatalf("len(Bytes) = %d, want 0 on checkout", len(b.Bytes))
	}
}
