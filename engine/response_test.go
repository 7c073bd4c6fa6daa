/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package engine_test

import (
	"bufio"
	"testing"

	"github.com/karlpauls/ksah/engine"
	"github.com/karlpauls/ksah/enginetest"
)

func TestResponseHandlerCanOverrideDefaultCacheHeaders(t *testing.T) {
	h := enginetest.New(engine.HandlerFunc(func(w *engine.Response, r *engine.Request) {
		w.Header().Set("Cache-Control", "public, max-age=3600")
		w.Header().Set("Content-Length", "0")
		w.End()
	}), enginetest.Options{})
	defer h.Close()

	h.Send("GET /a HTTP/1.1\r\nHost: x\r\n\r\n")
	resp, err := enginetest.ReadResponse(bufio.NewReader(h.Client))
	if err != nil {
		t.Fatal(err)
	}
	if got := resp.Header["cache-control"]; len(got) != 1 || got[0] != "public, max-age=3600" {
		t.Fatalf("cache-control = %v, want handler override preserved", got)
	}
}

func TestResponseDefaultCacheHeadersInjectedWhenUnset(t *testing.T) {
	h := enginetest.New(engine.HandlerFunc(func(w *engine.Response, r *engine.Request) {
		w.Header().Set("Content-Length", "0")
		w.End()
	}), enginetest.Options{})
	defer h.Close()

	h.Send("GET /a HTTP/1.1\r\nHost: x\r\n\r\n")
	resp, err := enginetest.ReadResponse(bufio.NewReader(h.Client))
	if err != nil {
		t.Fatal(err)
	}
	if got := resp.Header["cache-control"]; len(got) != 1 || got[0] != "no-cache, no-store, must-revalidate" {
		t.Fatalf("cache-control = %v", got)
	}
	if got := resp.Header["pragma"]; len(got) != 1 || got[0] != "no-cache" {
		t.Fatalf("pragma = %v", got)
	}
}

func TestResponseServerHeaderReported(t *testing.T) {
	h := enginetest.New(engine.HandlerFunc(func(w *engine.Response, r *engine.Request) {
		w.Header().Set("Content-Length", "0")
		w.End()
	}), enginetest.Options{})
	defer h.Close()

	h.Send("GET /a HTTP/1.1\r\nHost: x\r\n\r\n")
	resp, err := enginetest.ReadResponse(bufio.NewReader(h.Client))
	if err != nil {
		t.Fatal(err)
	}
	if got := resp.Header["server"]; len(got) != 1 || got[0] != "ksah/"+engine.Version {
		t.Fatalf("server = %v", got)
	}
}
