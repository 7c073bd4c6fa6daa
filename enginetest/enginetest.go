/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

// Package enginetest drives engine.Conn's state machine over an in-memory
// net.Pipe, the way the teacher's th package builds a fake *http.Request
// directly instead of going through a real listener. Tests write raw
// request bytes on the client side of the pipe and read raw response
// bytes back, exercising the real parser/response/conn code instead of a
// recorder that bypasses the wire format.
package enginetest

import (
	"bufio"
	"net"
	"strconv"
	"strings"
	"time"

	"code.cloudfoundry.org/clock/fakeclock"
	"github.com/karlpauls/ksah/bufpool"
	"github.com/karlpauls/ksah/engine"
)

// Harness wires one engine.Conn to the client end of a net.Pipe and runs
// it on its own goroutine. Clock is a fakeclock.FakeClock so tests can
// advance past maxConnectionTime deterministically. The connection reads
// its start time from Clock when its goroutine starts, which is certain
// to have happened once the first request has been read.
type Harness struct {
	Client net.Conn
	Clock  *fakeclock.FakeClock

	server net.Conn
	done   chan struct{}
}

// Options bundles the small set of knobs most tests need to vary; zero
// values pick the same defaults config.Default does, without importing
// the config package (engine must not depend on its own external
// collaborator - see SPEC_FULL.md §6).
type Options struct {
	RcvBuf            int
	BufferCache       int
	Timeout           time.Duration
	MaxConnectionTime time.Duration
}

func (o Options) withDefaults() Options {
	if o.RcvBuf == 0 {
		o.RcvBuf = 65536
	}
	if o.BufferCache == 0 {
		o.BufferCache = 16 << 20
	}
	if o.Timeout == 0 {
		o.Timeout = 2 * time.Second
	}
	if o.MaxConnectionTime == 0 {
		o.MaxConnectionTime = 10 * time.Second
	}
	return o
}

// New starts a Harness running handler against one end of a fresh
// net.Pipe. Call Close when done to release the goroutine.
func New(handler engine.Handler, opts Options) *Harness {
	opts = opts.withDefaults()
	client, server := net.Pipe()
	clk := fakeclock.NewFakeClock(time.Unix(0, 0))
	pool := bufpool.New(opts.BufferCache, opts.RcvBuf)

	h := &Harness{Client: client, Clock: clk, server: server, done: make(chan struct{})}
	go func() {
		defer close(h.done)
		engine.ServeConn(server, pool, opts.Timeout, opts.MaxConnectionTime, handler, clk, nil)
	}()
	return h
}

// Close closes the client side, which unblocks the server goroutine's
// next read with an error and lets it exit.
func (h *Harness) Close() {
	h.Client.Close()
	<-h.done
}

// Send writes raw, already-CRLF-terminated request bytes to the
// connection.
func (h *Harness) Send(raw string) error {
	_, err := h.Client.Write([]byte(raw))
	return err
}

// Response is a parsed wire-format HTTP response, for assertions.
type Response struct {
	Status  int
	Reason  string
	Header  map[string][]string
	Body    []byte
}

// ReadResponse reads one status line, header block, and a body of
// exactly the length its Content-Length header states (none if the
// header is absent). It does not know the request method, so for a HEAD
// response with a non-zero Content-Length it waits for body bytes that
// never come.
func ReadResponse(r *bufio.Reader) (*Response, error) {
	statusLine, err := r.ReadString('\n')
	if err != nil {
		return nil, err
	}
	statusLine = strings.TrimRight(statusLine, "\r\n")
	parts := strings.SplitN(statusLine, " ", 3)
	resp := &Response{Header: map[string][]string{}}
	if len(parts) >= 2 {
		resp.Status, _ = strconv.Atoi(parts[1])
	}
	if len(parts) == 3 {
		resp.Reason = parts[2]
	}

	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return nil, err
		}
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			break
		}
		name, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		name = strings.TrimSpace(name)
		value = strings.TrimSpace(value)
		resp.Header[strings.ToLower(name)] = append(resp.Header[strings.ToLower(name)], value)
	}

	if cl := resp.Header["content-length"]; len(cl) == 1 {
		n, err := strconv.Atoi(cl[0])
		if err == nil && n > 0 {
			body := make([]byte, n)
			if _, err := readFull(r, body); err != nil {
				return nil, err
			}
			resp.Body = body
		}
	}
	return resp, nil
}

func readFull(r *bufio.Reader, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := r.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}
