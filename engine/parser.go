/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package engine

import (
	"strconv"
	"strings"

	"github.com/karlpauls/ksah/hdr"
	"github.com/karlpauls/ksah/url"
)

// requestHead is everything the parser can determine from the header
// block alone - every Request field except its BodyReader, which conn.go
// attaches once it knows which socket the body (if any) will be pulled
// from.
type requestHead struct {
	method                string
	target                string
	path                  string
	version               string
	header                *hdr.Header
	contentLength         int64
	expectContinuePending bool
}

// parser is the incremental request-line-and-header parser spec.md §4.2
// describes. One parser instance is reused across every kept-alive
// request on a connection; reset clears it between requests.
type parser struct {
	maxHeaderBytes int
	buf            []byte
}

func newParser(maxHeaderBytes int) *parser {
	return &parser{maxHeaderBytes: maxHeaderBytes}
}

// reset clears accumulated header bytes, readying the parser for the next
// request on the same connection.
func (p *parser) reset() {
	p.buf = p.buf[:0]
}

// feed appends data (one network read's worth of bytes) to the header
// buffer and looks for the CRLFCRLF terminator. bufferFull should be true
// when data filled the caller's entire read buffer (i.e. more bytes may
// already be waiting on the socket) - per spec.md §4.2, failing to find
// the terminator in that situation is itself grounds for ENTITY_TOO_LARGE,
// since the header block is bounded by exactly one rcvBuf-sized read.
//
// On OK, bodyPrefix is the slice of data (if any) that followed the
// terminator within this same feed call - the pre-buffer spec.md's body
// reader consumes before issuing any further recv.
func (p *parser) feed(data []byte, bufferFull bool) (verdict Verdict, head *requestHead, bodyPrefix []byte) {
	if p.maxHeaderBytes > 0 && len(p.buf)+len(data) > p.maxHeaderBytes {
		return EntityTooLarge, nil, nil
	}
	p.buf = append(p.buf, data...)

	idx := indexCRLFCRLF(p.buf)
	if idx < 0 {
		if bufferFull {
			return EntityTooLarge, nil, nil
		}
		return NeedMore, nil, nil
	}

	headerBlock := p.buf[:idx]
	bodyPrefix = p.buf[idx+4:]

	h, ok := parseHead(headerBlock)
	if !ok {
		return BadRequest, nil, nil
	}
	if len(bodyPrefix) > 0 {
		// Body bytes already arrived with the headers: no 100 Continue is owed.
		h.expectContinuePending = false
	}
	return OK, h, bodyPrefix
}

func indexCRLFCRLF(b []byte) int {
	for i := 0; i+3 < len(b); i++ {
		if b[i] == '\r' && b[i+1] == '\n' && b[i+2] == '\r' && b[i+3] == '\n' {
			return i
		}
	}
	return -1
}

// parseHead splits the header block into the request line and header
// fields and validates every rule spec.md §4.2 lists. A false return
// means BAD_REQUEST.
func parseHead(block []byte) (*requestHead, bool) {
	lines := strings.Split(string(block), "\r\n")

	var requestLine string
	var fieldLines []string
	for _, line := range lines {
		if line == "" {
			continue
		}
		if requestLine == "" {
			requestLine = line
			continue
		}
		fieldLines = append(fieldLines, line)
	}
	if requestLine == "" {
		return nil, false
	}

	parts := strings.Split(requestLine, " ")
	if len(parts) != 3 {
		return nil, false
	}
	method, target, version := parts[0], parts[1], parts[2]
	if method == "" {
		return nil, false
	}
	if version != "HTTP/1.0" && version != "HTTP/1.1" {
		return nil, false
	}

	path, ok := normalizeTarget(target)
	if !ok || path == "" {
		return nil, false
	}

	header := hdr.NewHeader()
	for _, line := range fieldLines {
		name, value, ok := strings.Cut(line, ":")
		if !ok {
			return nil, false
		}
		name = hdr.TrimString(name)
		value = hdr.TrimString(value)
		if !hdr.ValidFieldName(name) || !hdr.ValidFieldValue(value) {
			return nil, false
		}
		header.Add(name, value)
	}

	if version == "HTTP/1.1" && !header.Has(hdr.Host) {
		return nil, false
	}

	var contentLength int64
	if cl := header.Get(hdr.ContentLength); cl != "" {
		n, err := strconv.ParseInt(cl, 10, 64)
		if err != nil || n < 0 {
			return nil, false
		}
		contentLength = n
	}

	expectPending := version == "HTTP/1.1" &&
		contentLength > 0 &&
		strings.EqualFold(header.Get(hdr.Expect), hdr.DoContinue)

	return &requestHead{
		method:                strings.ToUpper(method),
		target:                target,
		path:                  path,
		version:               version,
		header:                header,
		contentLength:         contentLength,
		expectContinuePending: expectPending,
	}, true
}

// normalizeTarget implements spec.md §4.2's request-target normalization:
// an absolute-form target (scheme://authority/...) is reduced to its path
// component (defaulting to "/"); an origin-form target is left as-is but
// guaranteed a leading "/". The decoded path is then the URI's path
// component, percent-decoded, with any query string discarded.
func normalizeTarget(target string) (string, bool) {
	t := target
	if i := strings.Index(t, "://"); i >= 0 {
		rest := t[i+3:]
		if slash := strings.IndexByte(rest, '/'); slash >= 0 {
			t = rest[slash:]
		} else {
			t = "/"
		}
	} else if !strings.HasPrefix(t, "/") {
		t = "/" + t
	}

	u, err := url.ParseRequestURI(t)
	if err != nil {
		return "", false
	}
	return u.Path, true
}
