/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package httputil

import "fmt"

// Reason returns the canonical reason phrase for the status codes ksah
// emits (spec.md §6). It panics on an unknown code - every status ksah
// can ever produce is in this table, so an unknown code is a bug.
func Reason(code int) string {
	switch code {
	case 100:
		return "Continue"
	case 200:
		return "OK"
	case 201:
		return "Created"
	case 204:
		return "No Content"
	case 301:
		return "Moved Permanently"
	case 400:
		return "Bad Request"
	case 403:
		return "Forbidden"
	case 404:
		return "File Not Found"
	case 405:
		return "Method Not Allowed"
	case 413:
		return "Request Entity Too Large"
	case 500:
		return "Internal Server Error"
	case 503:
		return "Service Unavailable"
	default:
		panic(fmt.Sprintf("httputil: no reason phrase registered for status %d", code))
	}
}

// ErrorBody returns the canned HTML document for code, UTF-8 encoded; its
// len is the value callers put in the Content-Length header.
func ErrorBody(code int) []byte {
	title := fmt.Sprintf("%d %s", code, Reason(code))
	body := "<!DOCTYPE html>\n<html><head><title>" + title + "</title></head>\n" +
		"<body><h1>" + title + "</h1></body></html>\n"
	return []byte(body)
}
