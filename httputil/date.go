/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package httputil

import (
	"time"

	"github.com/karlpauls/ksah/hdr"
)

// FormatDate formats t as an RFC-1123 GMT date, the form every Date and
// Last-Modified header on the wire must take (spec.md §4.3, §4.6).
func FormatDate(t time.Time) string {
	return t.UTC().Format(hdr.TimeFormat)
}
