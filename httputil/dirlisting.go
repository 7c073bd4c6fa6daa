/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package httputil

import (
	"sort"
	"strconv"
	"strings"

	"github.com/karlpauls/ksah/url"
)

// DirEntry is one row of a directory listing: name as it appears on
// disk, and whether it is itself a directory (suffixed with "/" in the
// listing per spec.md §4.6).
type DirEntry struct {
	Name  string
	IsDir bool
}

// DirListingHTML renders the canonical directory listing spec.md §4.6
// and §8 scenario 6 describe: DOCTYPE, a <title>/<h1> of "/" for the
// root or the directory's own name otherwise, a <ul> whose first <li>
// links to ".." (or "/" at the root) followed by one <li> per entry in
// lexicographic order.
func DirListingHTML(dirName string, isRoot bool, entries []DirEntry) string {
	heading := dirName
	if isRoot {
		heading = "/"
	}

	sorted := make([]DirEntry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n<html>\n<head><title>")
	b.WriteString(htmlEscape(heading))
	b.WriteString("</title></head>\n<body>\n<h1>")
	b.WriteString(htmlEscape(heading))
	b.WriteString("</h1>\n<ul>\n")

	parentHref := ".."
	if isRoot {
		parentHref = "/"
	}
	b.WriteString("<li><a href=\"")
	b.WriteString(hrefEscape(parentHref))
	b.WriteString("\">..</a></li>\n")

	for _, e := range sorted {
		display := e.Name
		href := e.Name
		if e.IsDir {
			display += "/"
			href += "/"
		}
		b.WriteString("<li><a href=\"")
		b.WriteString(hrefEscape(href))
		b.WriteString("\">")
		b.WriteString(htmlEscape(display))
		b.WriteString("</a></li>\n")
	}
	b.WriteString("</ul>\n</body>\n</html>\n")
	return b.String()
}

// hrefEscape reconstructs the link target through a URI -> URL round
// trip, exactly as spec.md §4.6 specifies, so the href carries the
// percent-encoded path ksah's own request-target parser would accept.
func hrefEscape(name string) string {
	u := &url.URL{Path: name}
	return u.EscapedPath()
}

// htmlEscape escapes '"', '<', '>', '&' and represents any code point
// above 127 as a numeric character reference, per spec.md §4.6.
func htmlEscape(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '"':
			b.WriteString("&#34;")
		case '<':
			b.WriteString("&lt;")
		case '>':
			b.WriteString("&gt;")
		case '&':
			b.WriteString("&amp;")
		default:
			if r > 127 {
				b.WriteString("&#")
				b.WriteString(strconv.Itoa(int(r)))
				b.WriteByte(';')
			} else {
				b.WriteRune(r)
			}
		}
	}
	return b.String()
}
