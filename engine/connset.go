/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package engine

import "sync"

// connSet is the open-sockets set spec.md §5 calls a "concurrent map".
// It uses a mutex-guarded map rather than sync.Map: Len() is called on
// every accept for the maxConnections check, and sync.Map has no Len,
// only Range, which would make that check an O(n) walk under exactly the
// contention (many connections opening/closing) it's meant to guard.
type connSet struct {
	mu    sync.Mutex
	conns map[*Conn]struct{}
}

func newConnSet() *connSet {
	return &connSet{conns: make(map[*Conn]struct{})}
}

func (s *connSet) Add(c *Conn) {
	s.mu.Lock()
	s.conns[c] = struct{}{}
	s.mu.Unlock()
}

func (s *connSet) Remove(c *Conn) {
	s.mu.Lock()
	delete(s.conns, c)
	s.mu.Unlock()
}

func (s *connSet) Len() int {
	s.mu.Lock()
	n := len(s.conns)
	s.mu.Unlock()
	return n
}

// CloseAll closes every tracked socket, best-effort, per spec.md §4.5.
// Each Conn.closeSocket removes itself from the set, so it's unsafe to
// range the live map while closing; snapshot first.
func (s *connSet) CloseAll() {
	s.mu.Lock()
	snapshot := make([]*Conn, 0, len(s.conns))
	for c := range s.conns {
		snapshot = append(snapshot, c)
	}
	s.mu.Unlock()

	for _, c := range snapshot {
		c.raw.Close()
	}
}
