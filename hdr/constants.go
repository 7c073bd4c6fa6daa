/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

// Package hdr provides the header map ksah uses for both requests and
// responses, plus the small set of stateless helpers (token/value
// validation, whitespace trimming) the engine and static handler need.
package hdr

// Header names the engine and static handler actually touch. Unlike the
// teacher's fork (which interned the full MIME header vocabulary), ksah
// only names what spec.md's wire protocol references.
const (
	Host            = "Host"
	Connection      = "Connection"
	ContentLength   = "Content-Length"
	ContentType     = "Content-Type"
	ContentEncoding = "Content-Encoding"
	TransferEncoding = "Transfer-Encoding"
	Expect          = "Expect"
	Server          = "Server"
	Date            = "Date"
	LastModified    = "Last-Modified"
	Allow           = "Allow"
	Location        = "Location"
	CacheControl    = "Cache-Control"
	Pragma          = "Pragma"
	Expires         = "Expires"

	// TimeFormat is RFC 1123 with a hard-coded GMT zone, the format every
	// Date / Last-Modified header on the wire must use.
	TimeFormat = "Mon, 02 Jan 2006 15:04:05 GMT"

	DoClose     = "close"
	DoKeepAlive = "keep-alive"
	DoIdentity  = "identity"
	DoContinue  = "100-continue"
)

// isTokenTable is a copy of net/http/lex.go's isTokenTable: the set of
// bytes legal in an RFC 7230 token (header names, method names).
var isTokenTable = [127]bool{
	'0': true, '1': true, '2': true, '3': true, '4': true, '5': true, '6': true, '7': true,
	'8': true, '9': true,

	'a': true, 'b': true, 'c': true, 'd': true, 'e': true, 'f': true, 'g': true, 'h': true,
	'i': true, 'j': true, 'k': true, 'l': true, 'm': true, 'n': true, 'o': true, 'p': true,
	'q': true, 'r': true, 's': true, 't': true, 'u': true, 'v': true, 'w': true, 'x': true,
	'y': true, 'z': true,

	'A': true, 'B': true, 'C': true, 'D': true, 'E': true, 'F': true, 'G': true, 'H': true,
	'I': true, 'J': true, 'K': true, 'L': true, 'M': true, 'N': true, 'O': true, 'P': true,
	'Q': true, 'R': true, 'S': true, 'T': true, 'U': true, 'V': true, 'W': true, 'X': true,
	'Y': true, 'Z': true,

	'!': true, '#': true, '$': true, '%': true, '&': true, '\'': true, '*': true, '+': true,
	'-': true, '.': true, '^': true, '_': true, '`': true, '|': true, '~': true,
}

func isTokenRune(r rune) bool {
	i := int(r)
	return i < len(isTokenTable) && isTokenTable[i]
}

// ValidFieldName reports whether v is a legal RFC 7230 header field name.
func ValidFieldName(v string) bool {
	if len(v) == 0 {
		return false
	}
	for _, r := range v {
		if !isTokenRune(r) {
			return false
		}
	}
	return true
}

func isCTL(b byte) bool { return b < ' ' || b == 0x7f }
func isLWS(b byte) bool { return b == ' ' || b == '\t' }

// ValidFieldValue reports whether v contains no illegal control bytes.
func ValidFieldValue(v string) bool {
	for i := 0; i < len(v); i++ {
		b := v[i]
		if isCTL(b) && !isLWS(b) {
			return false
		}
	}
	return true
}

func isASCIISpace(b byte) bool { return b == ' ' || b == '\t' || b == '\r' || b == '\n' }

// TrimString returns s without leading and trailing ASCII space.
func TrimString(s string) string {
	for len(s) > 0 && isASCIISpace(s[0]) {
		s = s[1:]
	}
	for len(s) > 0 && isASCIISpace(s[len(s)-1]) {
		s = s[:len(s)-1]
	}
	return s
}
