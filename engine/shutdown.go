/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package engine

import (
	"time"

	"code.cloudfoundry.org/clock"
)

// shutdown is the graceful-shutdown coordinator spec.md §4.5 names
// separately from the Acceptor: it only knows how to watch the
// open-sockets set drain, polling rather than blocking on a WaitGroup so
// it can honor a wall-clock timeout measured against an injectable
// clock.Clock (real in production, fake in tests - see SPEC_FULL.md §8.3).
type shutdown struct {
	sockets *connSet
	clk     clock.Clock
}

func newShutdown(sockets *connSet, clk clock.Clock) *shutdown {
	return &shutdown{sockets: sockets, clk: clk}
}

// awaitClose polls until sockets.Len() reaches zero or timeout elapses.
func (s *shutdown) awaitClose(timeout time.Duration) bool {
	deadline := s.clk.Now().Add(timeout)
	for s.sockets.Len() > 0 {
		if s.clk.Now().After(deadline) {
			return false
		}
		s.clk.Sleep(5 * time.Millisecond)
	}
	return true
}
