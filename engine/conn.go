/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package engine

import (
	"io"
	"net"
	"strconv"
	"time"

	"code.cloudfoundry.org/clock"
	"github.com/karlpauls/ksah/bufpool"
	"github.com/karlpauls/ksah/httputil"
	"github.com/karlpauls/ksah/ksahlog"
	"github.com/uber-go/zap"
)

// Conn drives one accepted socket through the state machine spec.md §4.4
// describes: RECV_HEADERS -> (HANDLE | SEND_ERROR | SEND_100 -> RECV_BODY)
// -> SEND_RESPONSE -> (CLOSE | RECV_HEADERS). It owns exactly one parser
// and one Request/Response pair at a time; all transitions for a given
// Conn run serially on the one goroutine that runs its serve loop, so the "at most
// one outstanding read, at most one outstanding write" invariant needs no
// locking - see SPEC_FULL.md §1.
type Conn struct {
	raw               net.Conn
	pool              *bufpool.Pool
	timeout           time.Duration
	maxConnectionTime time.Duration
	handler           Handler
	clk               clock.Clock
	log               ksahlog.Logger

	server    *Server
	parser    *parser
	connStart time.Time
	curReq    *Request
}

// ServeConn runs one connection's whole lifetime synchronously against an
// already-established net.Conn, outside of a Server/accept loop. It runs
// the same newConn/serve path Server starts for each accepted socket;
// enginetest calls it against one end of a net.Pipe to exercise the
// state machine without a real listener.
func ServeConn(raw net.Conn, pool *bufpool.Pool, timeout, maxConnectionTime time.Duration, handler Handler, clk clock.Clock, log ksahlog.Logger) {
	if log == nil {
		log = ksahlog.Discard()
	}
	newConn(raw, pool, timeout, maxConnectionTime, handler, clk, log, nil).serve()
}

func newConn(raw net.Conn, pool *bufpool.Pool, timeout, maxConnectionTime time.Duration, handler Handler, clk clock.Clock, log ksahlog.Logger, server *Server) *Conn {
	return &Conn{
		raw:               raw,
		pool:              pool,
		timeout:           timeout,
		maxConnectionTime: maxConnectionTime,
		handler:           handler,
		clk:               clk,
		log:               log,
		server:            server,
		parser:            newParser(pool.Size()),
	}
}

// serve runs the connection's whole lifetime: every kept-alive request
// until the socket closes. It never returns an error; all failures are
// logged and the socket is closed.
func (c *Conn) serve() {
	defer c.closeSocket()
	c.connStart = c.clk.Now()

	for {
		head, bodyPrefix, verdict, err := c.recvHeaders()
		if err != nil {
			c.logClose(err)
			return
		}

		switch verdict {
		case EntityTooLarge:
			writeErrorResponse(c, 413)
			return
		case BadRequest:
			writeErrorResponse(c, 400)
			return
		case OK:
			req := c.newRequest(head, bodyPrefix)
			resp := newResponse(c, req)
			c.curReq = req
			c.dispatch(resp, req)
			c.curReq = nil
			if !resp.ended {
				// A handler that forgot to end its response is an
				// InternalError; force a 500 if nothing went out yet.
				if !resp.committed {
					resp.SetStatus(500)
				}
				resp.End()
			}
			if resp.closeConn {
				return
			}
			c.parser.reset()
		default:
			// NeedMore cannot reach here: recvHeaders loops internally
			// until a terminal verdict. Continue is never produced by
			// feed (see Verdict.Continue's doc comment).
			return
		}
	}
}

func (c *Conn) logClose(err error) {
	if ee, ok := err.(*Error); ok && (ee.Kind == Timeout || ee.Kind == PeerReset) {
		c.log.Debug("connection closed", zap.String("kind", ee.Kind.String()))
		return
	}
	c.log.Error("connection closed", zap.Error(err))
}

// recvHeaders implements RECV_HEADERS: check out a pool buffer, read with
// the configured timeout, feed the parser, always check the buffer back
// in. Loops on NEED_MORE.
func (c *Conn) recvHeaders() (*requestHead, []byte, Verdict, error) {
	for {
		buf := c.pool.Checkout()
		full := buf.Bytes[:cap(buf.Bytes)]
		c.raw.SetReadDeadline(c.clk.Now().Add(c.timeout))
		n, err := c.raw.Read(full)
		if err != nil {
			c.pool.Checkin(buf)
			return nil, nil, 0, classifyReadErr(err)
		}
		if n == 0 {
			c.pool.Checkin(buf)
			return nil, nil, 0, newError(PeerReset, "read returned 0 bytes", nil)
		}

		data := full[:n]
		bufferFull := n == cap(full)
		verdict, head, bodyPrefix := c.parser.feed(data, bufferFull)

		var prebufCopy []byte
		if verdict == OK && len(bodyPrefix) > 0 {
			prebufCopy = append([]byte(nil), bodyPrefix...)
		}
		c.pool.Checkin(buf)

		if verdict == NeedMore {
			continue
		}
		return head, prebufCopy, verdict, nil
	}
}

func classifyReadErr(err error) error {
	if ne, ok := err.(net.Error); ok && ne.Timeout() {
		return newError(Timeout, "read deadline exceeded", err)
	}
	if err == io.EOF {
		return newError(PeerReset, "peer closed connection", err)
	}
	return newError(PeerReset, "read failed", err)
}

func (c *Conn) newRequest(h *requestHead, bodyPrefix []byte) *Request {
	r := &Request{
		Method:                h.method,
		Target:                h.target,
		Path:                  h.path,
		Version:               h.version,
		Header:                h.header,
		ContentLength:         h.contentLength,
		expectContinuePending: h.expectContinuePending,
	}
	r.body = newBodyReader(c, h.contentLength, bodyPrefix)
	return r
}

func (c *Conn) dispatch(resp *Response, req *Request) {
	defer func() {
		if rec := recover(); rec != nil {
			c.log.Error("handler panic", zap.Object("recover", rec))
			if !resp.committed {
				resp.SetStatus(500)
			}
		}
	}()
	c.handler.ServeHTTP(resp, req)
}

// pumpBody is BodyReader's hook back into the connection: send the
// deferred 100-continue response if one is pending, then issue the next
// blocking socket read for the body (spec.md §4.2's "read(dst, cb)").
func (c *Conn) pumpBody(dst []byte, remaining int64) (int, error) {
	if c.curReq != nil && c.curReq.expectContinuePending {
		c.curReq.expectContinuePending = false
		if err := c.send100(); err != nil {
			return 0, err
		}
	}
	if remaining <= 0 {
		return 0, io.EOF
	}
	if int64(len(dst)) > remaining {
		dst = dst[:remaining]
	}
	c.raw.SetReadDeadline(c.clk.Now().Add(c.timeout))
	n, err := c.raw.Read(dst)
	if err != nil {
		return n, classifyReadErr(err)
	}
	if n == 0 {
		return 0, newError(PeerReset, "peer reset during body read", nil)
	}
	return n, nil
}

func (c *Conn) send100() error {
	return c.writeGathered([]byte("HTTP/1.1 100 Continue\r\nContent-Length: 0\r\n\r\n"))
}

// writeGathered sends one or more slices as a single transport write when
// the platform supports vectored I/O (net.Buffers.WriteTo does this via
// writev on the platforms Go supports it for), falling back to sequential
// writes otherwise. Partial writes are retried internally by
// net.Buffers.WriteTo until every byte is flushed, per spec.md §4.4.
func (c *Conn) writeGathered(parts ...[]byte) error {
	var bufs net.Buffers
	for _, p := range parts {
		if len(p) > 0 {
			bufs = append(bufs, p)
		}
	}
	if len(bufs) == 0 {
		return nil
	}
	c.raw.SetWriteDeadline(c.clk.Now().Add(c.timeout))
	_, err := bufs.WriteTo(c.raw)
	return err
}

func (c *Conn) closeSocket() {
	c.raw.Close()
	if c.server != nil {
		c.server.connClosed(c)
	}
}

// writeErrorResponse emits one of the canned error bodies (spec.md §6)
// as a self-contained, always-closing response: used for BAD_REQUEST,
// ENTITY_TOO_LARGE and BackpressureRefused, none of which have a parsed
// Request to build a normal Response around.
func writeErrorResponse(c *Conn, code int) error {
	body := httputil.ErrorBody(code)
	var b []byte
	b = append(b, "HTTP/1.1 "...)
	b = append(b, strconv.Itoa(code)...)
	b = append(b, ' ')
	b = append(b, httputil.Reason(code)...)
	b = append(b, "\r\n"...)
	b = append(b, "Server: ksah/"+Version+"\r\n"...)
	b = append(b, "Connection: close\r\n"...)
	b = append(b, "Date: "+httputil.FormatDate(c.clk.Now())+"\r\n"...)
	b = append(b, "Content-Type: text/html; charset=utf-8\r\n"...)
	b = append(b, "Content-Length: "+strconv.Itoa(len(body))+"\r\n"...)
	b = append(b, "\r\n"...)
	return c.writeGathered(b, body)
}
