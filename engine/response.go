/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package engine

import (
	"strconv"
	"strings"

	"github.com/karlpauls/ksah/hdr"
	"github.com/karlpauls/ksah/httputil"
)

// Response is the writer a Handler uses to produce a reply. Setting the
// status or a header is a local mutation until the first Write or End
// commits the prelude, exactly as spec.md §4.3 describes.
type Response struct {
	conn   *Conn
	req    *Request
	status int
	header *hdr.Header

	committed bool
	ended     bool
	closeConn bool
}

func newResponse(c *Conn, r *Request) *Response {
	return &Response{conn: c, req: r, status: 200, header: hdr.NewHeader()}
}

// SetStatus sets the numeric status code for the eventual status line.
// The reason phrase comes from httputil.Reason, so code must be one of
// the codes ksah ever emits (spec.md §6); an unrecognized code is a
// handler bug and SetStatus panics rather than write a malformed prelude.
func (w *Response) SetStatus(code int) {
	httputil.Reason(code) // panics on an unknown code
	w.status = code
}

// Status returns the status code set so far.
func (w *Response) Status() int { return w.status }

// Header returns the response's mutable header map. Lookups are
// case-insensitive, but the writer never canonicalizes or reorders what
// the handler sets here: names go out spelled as the handler set them.
func (w *Response) Header() *hdr.Header { return w.header }

// Committed reports whether the prelude has already been handed to the
// transport.
func (w *Response) Committed() bool { return w.committed }

// Write commits the response on its first call (gathering the prelude
// and p into a single transport write when possible) and emits only body
// bytes thereafter.
func (w *Response) Write(p []byte) (int, error) {
	if err := w.flush(p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// End commits the response if nothing has been written yet (prelude
// only, no body) and marks the request finished. Calling End more than
// once is a no-op, matching spec.md's "destroyed on end()" lifecycle.
func (w *Response) End() error {
	if w.ended {
		return nil
	}
	w.ended = true
	return w.flush(nil)
}

func (w *Response) flush(body []byte) error {
	if w.committed {
		if len(body) == 0 {
			return nil
		}
		return w.conn.writeGathered(body)
	}
	w.committed = true
	w.closeConn = w.decideClose()
	return w.conn.writeGathered(w.buildPrelude(), body)
}

// decideClose implements spec.md §4.3's Connection decision exactly: the
// status-code list, the maxConnectionTime budget, and the request-side
// rule, in that order.
func (w *Response) decideClose() bool {
	switch w.status {
	case 400, 413, 503:
		return true
	}
	if w.conn.maxConnectionTime <= 0 {
		return true
	}
	if w.conn.clk.Now().Sub(w.conn.connStart) > w.conn.maxConnectionTime {
		return true
	}
	if w.req == nil {
		return true
	}
	return w.req.wantsClose()
}

var defaultCacheHeaders = [3][2]string{
	{hdr.CacheControl, "no-cache, no-store, must-revalidate"},
	{hdr.Pragma, "no-cache"},
	{hdr.Expires, "0"},
}

func (w *Response) buildPrelude() []byte {
	var b strings.Builder
	b.WriteString("HTTP/1.1 ")
	b.WriteString(strconv.Itoa(w.status))
	b.WriteByte(' ')
	b.WriteString(httputil.Reason(w.status))
	b.WriteString("\r\n")

	b.WriteString(hdr.Server)
	b.WriteString(": ksah/")
	b.WriteString(Version)
	b.WriteString("\r\n")

	b.WriteString(hdr.Connection)
	b.WriteString(": ")
	if w.closeConn {
		b.WriteString(hdr.DoClose)
	} else {
		b.WriteString(hdr.DoKeepAlive)
	}
	b.WriteString("\r\n")

	b.WriteString(hdr.Date)
	b.WriteString(": ")
	b.WriteString(httputil.FormatDate(w.conn.clk.Now()))
	b.WriteString("\r\n")

	for _, kv := range defaultCacheHeaders {
		if !w.header.Has(kv[0]) {
			b.WriteString(kv[0])
			b.WriteString(": ")
			b.WriteString(kv[1])
			b.WriteString("\r\n")
		}
	}

	w.header.WriteTo(&b)
	b.WriteString("\r\n")
	return []byte(b.String())
}

// wantsClose implements the request-side half of spec.md §4.3's
// Connection decision: HTTP/1.0 without an explicit keep-alive, or any
// version with "Connection: close", wants the socket closed.
func (r *Request) wantsClose() bool {
	conn := strings.ToLower(r.Header.Get(hdr.Connection))
	if conn == hdr.DoClose {
		return true
	}
	if r.Version == "HTTP/1.0" {
		return conn != hdr.DoKeepAlive
	}
	return false
}
