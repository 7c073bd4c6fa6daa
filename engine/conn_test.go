/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package engine_test

import (
	"bufio"
	"io"
	"strconv"
	"testing"
	"time"

	"github.com/karlpauls/ksah/engine"
	"github.com/karlpauls/ksah/enginetest"
)

func echoHandler(w *engine.Response, r *engine.Request) {
	body, _ := io.ReadAll(r.Body())
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.Header().Set("Content-Type", "text/plain")
	w.Write(body)
}

func TestConnGetKeepAlive(t *testing.T) {
	h := enginetest.New(engine.HandlerFunc(echoHandler), enginetest.Options{})
	defer h.Close()

	if err := h.Send("GET /a HTTP/1.1\r\nHost: x\r\n\r\n"); err != nil {
		t.Fatal(err)
	}
	r := bufio.NewReader(h.Client)
	resp, err := enginetest.ReadResponse(r)
	if err != nil {
		t.Fatal(err)
	}
	if resp.Status != 200 {
		t.Fatalf("status = %d", resp.Status)
	}
	if got := resp.Header["connection"]; len(got) != 1 || got[0] != "keep-alive" {
		t.Fatalf("connection header = %v", got)
	}

	if err := h.Send("GET /b HTTP/1.1\r\nHost: x\r\n\r\n"); err != nil {
		t.Fatal(err)
	}
	resp2, err := enginetest.ReadResponse(r)
	if err != nil {
		t.Fatal(err)
	}
	if resp2.Status != 200 {
		t.Fatalf("second response status = %d", resp2.Status)
	}
}

func TestConnHTTP10ClosesByDefault(t *testing.T) {
	h := enginetest.New(engine.HandlerFunc(echoHandler), enginetest.Options{})
	defer h.Close()

	h.Send("GET /a HTTP/1.0\r\n\r\n")
	resp, err := enginetest.ReadResponse(bufio.NewReader(h.Client))
	if err != nil {
		t.Fatal(err)
	}
	if got := resp.Header["connection"]; len(got) != 1 || got[0] != "close" {
		t.Fatalf("connection header = %v", got)
	}
}

func TestConnPutWithBody(t *testing.T) {
	var got []byte
	h := enginetest.New(engine.HandlerFunc(func(w *engine.Response, r *engine.Request) {
		got, _ = io.ReadAll(r.Body())
		w.SetStatus(204)
		w.End()
	}), enginetest.Options{})
	defer h.Close()

	h.Send("PUT /f HTTP/1.1\r\nHost: x\r\nContent-Length: 5\r\n\r\nhello")
	resp, err := enginetest.ReadResponse(bufio.NewReader(h.Client))
	if err != nil {
		t.Fatal(err)
	}
	if resp.Status != 204 {
		t.Fatalf("status = %d", resp.Status)
	}
	if string(got) != "hello" {
		t.Fatalf("body read by handler = %q", got)
	}
}

func TestConnExpectContinue(t *testing.T) {
	h := enginetest.New(engine.HandlerFunc(func(w *engine.Response, r *engine.Request) {
		body, _ := io.ReadAll(r.Body())
		w.SetStatus(204)
		_ = body
		w.End()
	}), enginetest.Options{})
	defer h.Close()

	h.Send("PUT /f HTTP/1.1\r\nHost: x\r\nContent-Length: 5\r\nExpect: 100-continue\r\n\r\n")

	r := bufio.NewReader(h.Client)
	line, err := r.ReadString('\n')
	if err != nil {
		t.Fatal(err)
	}
	if line != "HTTP/1.1 100 Continue\r\n" {
		t.Fatalf("expected 100 Continue, got %q", line)
	}
	// consume the rest of the 100-continue prelude (Content-Length: 0 + blank line)
	r.ReadString('\n')
	r.ReadString('\n')

	h.Send("hello")
	resp, err := enginetest.ReadResponse(r)
	if err != nil {
		t.Fatal(err)
	}
	if resp.Status != 204 {
		t.Fatalf("status = %d", resp.Status)
	}
}

func TestConnBadRequestClosesWithFour00(t *testing.T) {
	h := enginetest.New(engine.HandlerFunc(echoHandler), enginetest.Options{})
	defer h.Close()

	h.Send("GET / HTTP/9.9\r\nHost: x\r\n\r\n")
	resp, err := enginetest.ReadResponse(bufio.NewReader(h.Client))
	if err != nil {
		t.Fatal(err)
	}
	if resp.Status != 400 {
		t.Fatalf("status = %d", resp.Status)
	}
	if got := resp.Header["connection"]; len(got) != 1 || got[0] != "close" {
		t.Fatalf("connection header = %v", got)
	}
}

func TestConnMaxConnectionTimeForcesClose(t *testing.T) {
	h := enginetest.New(engine.HandlerFunc(echoHandler), enginetest.Options{
		MaxConnectionTime: time.Second,
	})
	defer h.Close()

	// The connection records its start time before reading its first
	// request, so serve one request before advancing the clock.
	r := bufio.NewReader(h.Client)
	h.Send("GET /a HTTP/1.1\r\nHost: x\r\n\r\n")
	if _, err := enginetest.ReadResponse(r); err != nil {
		t.Fatal(err)
	}

	h.Clock.Increment(2 * time.Second)
	h.Send("GET /b HTTP/1.1\r\nHost: x\r\n\r\n")
	resp, err := enginetest.ReadResponse(r)
	if err != nil {
		t.Fatal(err)
	}
	if got := resp.Header["connection"]; len(got) != 1 || got[0] != "close" {
		t.Fatalf("connection header = %v, want close once maxConnectionTime elapsed", got)
	}
}
