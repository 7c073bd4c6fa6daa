/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package hdr

import (
	"io"
	"strings"
)

// Header is an insertion-ordered, case-insensitive multimap of header
// fields. Unlike the teacher's map[string][]string fork (whose iteration
// order is the random order Go gives maps, and which canonicalizes every
// key it's handed), Header preserves first-seen order for Range and never
// rewrites the caller's spelling of a name - spec.md requires both: request
// headers are looked up case-insensitively but iterated in arrival order,
// and response headers are emitted exactly as the handler set them.
type Header struct {
	entries []entry
	index   map[string]int // lowercased name -> index into entries
}

type entry struct {
	name   string
	values []string
}

// NewHeader returns an empty Header ready to use.
func NewHeader() *Header {
	return &Header{index: make(map[string]int)}
}

func (h *Header) lazyInit() {
	if h.index == nil {
		h.index = make(map[string]int)
	}
}

// Add appends value under name, preserving name's first-seen casing.
func (h *Header) Add(name, value string) {
	h.lazyInit()
	key := strings.ToLower(name)
	if i, ok := h.index[key]; ok {
		h.entries[i].values = append(h.entries[i].values, value)
		return
	}
	h.index[key] = len(h.entries)
	h.entries = append(h.entries, entry{name: name, values: []string{value}})
}

// Set replaces any existing values for name with value alone. If name was
// not present, it is appended at the end, becoming the new last-seen entry.
func (h *Header) Set(name, value string) {
	h.lazyInit()
	key := strings.ToLower(name)
	if i, ok := h.index[key]; ok {
		h.entries[i].name = name
		h.entries[i].values = []string{value}
		return
	}
	h.index[key] = len(h.entries)
	h.entries = append(h.entries, entry{name: name, values: []string{value}})
}

// Get returns the first value for name, case-insensitively, or "".
func (h *Header) Get(name string) string {
	if h == nil || h.index == nil {
		return ""
	}
	if i, ok := h.index[strings.ToLower(name)]; ok {
		if vs := h.entries[i].values; len(vs) > 0 {
			return vs[0]
		}
	}
	return ""
}

// Values returns every value for name, case-insensitively, or nil.
func (h *Header) Values(name string) []string {
	if h == nil || h.index == nil {
		return nil
	}
	if i, ok := h.index[strings.ToLower(name)]; ok {
		return h.entries[i].values
	}
	return nil
}

// Has reports whether name is present, case-insensitively.
func (h *Header) Has(name string) bool {
	if h == nil || h.index == nil {
		return false
	}
	_, ok := h.index[strings.ToLower(name)]
	return ok
}

// Del removes every value for name, case-insensitively.
func (h *Header) Del(name string) {
	if h == nil || h.index == nil {
		return
	}
	key := strings.ToLower(name)
	i, ok := h.index[key]
	if !ok {
		return
	}
	h.entries = append(h.entries[:i], h.entries[i+1:]...)
	delete(h.index, key)
	for k, v := range h.index {
		if v > i {
			h.index[k] = v - 1
		}
	}
}

// Len reports the number of distinct header names.
func (h *Header) Len() int {
	if h == nil {
		return 0
	}
	return len(h.entries)
}

// Range calls fn for every header in first-seen order, stopping early if
// fn returns false.
func (h *Header) Range(fn func(name string, values []string) bool) {
	if h == nil {
		return
	}
	for _, e := range h.entries {
		if !fn(e.name, e.values) {
			return
		}
	}
}

// Clone returns a deep copy of h.
func (h *Header) Clone() *Header {
	c := NewHeader()
	h.Range(func(name string, values []string) bool {
		vv := make([]string, len(values))
		copy(vv, values)
		c.entries = append(c.entries, entry{name: name, values: vv})
		c.index[strings.ToLower(name)] = len(c.entries) - 1
		return true
	})
	return c
}

// WriteTo serializes h in wire format (CRLF-terminated "Name: value"
// lines, no trailing blank line) in first-seen order.
func (h *Header) WriteTo(w io.Writer) error {
	var err error
	h.Range(func(name string, values []string) bool {
		for _, v := range values {
			v = TrimString(v)
			if _, err = io.WriteString(w, name); err != nil {
				return false
			}
			if _, err = io.WriteString(w, ": "); err != nil {
				return false
			}
			if _, err = io.WriteString(w, v); err != nil {
				return false
			}
			if _, err = io.WriteString(w, "\r\n"); err != nil {
				return false
			}
		}
		return true
	})
	return err
}
