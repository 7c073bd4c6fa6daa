/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package hdr

import (
	"strings"
	"testing"
)

func TestHeaderCaseInsensitiveLookup(t *testing.T) {
	h := NewHeader()
	h.Add("Content-Type", "text/plain")
	if got := h.Get("content-type"); got != "text/plain" {
		t.Fatalf("Get(content-type) = %q, want text/plain", got)
	}
	if got := h.Get("CONTENT-TYPE"); got != "text/plain" {
		t.Fatalf("Get(CONTENT-TYPE) = %q, want text/plain", got)
	}
}

func TestHeaderPreservesFirstSeenOrder(t *testing.T) {
	h := NewHeader()
	h.Add("Host", "example.com")
	h.Add("Accept", "*/*")
	h.Add("Host", "example.org") // second value, same entry, same position

	var order []string
	h.Range(func(name string, _ []string) bool {
		order = append(order, name)
		return true
	})
	if want := []string{"Host", "Accept"}; !equal(order, want) {
		t.Fatalf("Range order = %v, want %v", order, want)
	}
	if vs := h.Values("host"); !equal(vs, []string{"example.com", "example.org"}) {
		t.Fatalf("Values(host) = %v", vs)
	}
}

func TestHeaderSetReplacesCasing(t *testing.T) {
	h := NewHeader()
	h.Set("connection", "close")
	h.Set("Connection", "keep-alive")
	if h.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", h.Len())
	}
	var name string
	h.Range(func(n string, _ []string) bool { name = n; return true })
	if name != "Connection" {
		t.Fatalf("stored name = %q, want Connection", name)
	}
}

func TestHeaderDel(t *testing.T) {
	h := NewHeader()
	h.Add("A", "1")
	h.Add("B", "2")
	h.Add("C", "3")
	h.Del("b")
	if h.Has("B") {
		t.Fatalf("B should be gone")
	}
	if got := h.Get("C"); got != "3" {
		t.Fatalf("Get(C) = %q after deleting B, want 3 (index must shift)", got)
	}
}

func TestHeaderWriteTo(t *testing.T) {
	h := NewHeader()
	h.Add("Host", "example.com")
	h.Add("X-Token", "abc")
	var sb strings.Builder
	if err := h.WriteTo(&sb); err != nil {
		t.Fatal(err)
	}
	want := "Host: example.com\r\nX-Token: abc\r\n"
	if sb.String() != want {
		t.Fatalf("WriteTo = %q, want %q", sb.String(), want)
	}
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
