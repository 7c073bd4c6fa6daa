/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package statichandler_test

import (
	"bufio"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/karlpauls/ksah/enginetest"
	"github.com/karlpauls/ksah/statichandler"
)

func newTestHandler(t *testing.T, write, list bool) (*statichandler.Handler, string) {
	t.Helper()
	root := t.TempDir()
	h := statichandler.New(statichandler.Options{
		Root:              root,
		List:              list,
		Write:             write,
		Charset:           "utf-8",
		BufferSize:        4096,
		StaticBufferCache: 1 << 20,
	}, nil)
	return h, root
}

func TestGetDirIndex(t *testing.T) {
	h, root := newTestHandler(t, false, true)
	if err := os.Mkdir(filepath.Join(root, "dir1"), 0o755); err != nil {
		t.Fatal(err)
	}
	body := "<html><body>Test Index</body></html>\n"
	if err := os.WriteFile(filepath.Join(root, "dir1", "index.html"), []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	harness := enginetest.New(h, enginetest.Options{})
	defer harness.Close()
	harness.Send("GET /dir1/ HTTP/1.1\r\nHost: x\r\n\r\n")

	resp, err := enginetest.ReadResponse(bufio.NewReader(harness.Client))
	if err != nil {
		t.Fatal(err)
	}
	if resp.Status != 200 {
		t.Fatalf("status = %d", resp.Status)
	}
	if got := resp.Header["content-length"]; len(got) != 1 || got[0] != "37" {
		t.Fatalf("content-length = %v", got)
	}
	if string(resp.Body) != body {
		t.Fatalf("body = %q", resp.Body)
	}
}

func TestGetMissingFileIsNotFound(t *testing.T) {
	h, _ := newTestHandler(t, false, true)
	harness := enginetest.New(h, enginetest.Options{})
	defer harness.Close()
	harness.Send("GET /foo/bar/baz.html HTTP/1.1\r\nHost: x\r\n\r\n")

	resp, err := enginetest.ReadResponse(bufio.NewReader(harness.Client))
	if err != nil {
		t.Fatal(err)
	}
	if resp.Status != 404 {
		t.Fatalf("status = %d", resp.Status)
	}
}

func TestPutGetDeleteRoundTrip(t *testing.T) {
	h, _ := newTestHandler(t, true, true)
	harness := enginetest.New(h, enginetest.Options{})
	defer harness.Close()
	r := bufio.NewReader(harness.Client)

	body := strings.Repeat("a", 43008)
	harness.Send("PUT /test.txt HTTP/1.1\r\nHost: x\r\nContent-Length: " + strconv.Itoa(len(body)) + "\r\n\r\n" + body)
	resp, err := enginetest.ReadResponse(r)
	if err != nil {
		t.Fatal(err)
	}
	if resp.Status != 201 {
		t.Fatalf("PUT status = %d", resp.Status)
	}

	harness.Send("GET /test.txt HTTP/1.1\r\nHost: x\r\n\r\n")
	resp, err = enginetest.ReadResponse(r)
	if err != nil {
		t.Fatal(err)
	}
	if resp.Status != 200 {
		t.Fatalf("GET status = %d", resp.Status)
	}
	if got := resp.Header["content-length"]; len(got) != 1 || got[0] != strconv.Itoa(len(body)) {
		t.Fatalf("content-length = %v", got)
	}
	if string(resp.Body) != body {
		t.Fatal("GET body does not match PUT body")
	}

	harness.Send("DELETE /test.txt HTTP/1.1\r\nHost: x\r\n\r\n")
	resp, err = enginetest.ReadResponse(r)
	if err != nil {
		t.Fatal(err)
	}
	if resp.Status != 204 {
		t.Fatalf("DELETE status = %d", resp.Status)
	}

	harness.Send("GET /test.txt HTTP/1.1\r\nHost: x\r\n\r\n")
	resp, err = enginetest.ReadResponse(r)
	if err != nil {
		t.Fatal(err)
	}
	if resp.Status != 404 {
		t.Fatalf("GET after DELETE status = %d", resp.Status)
	}
}

func TestPutRejectsNonIdentityContentEncoding(t *testing.T) {
	h, _ := newTestHandler(t, true, true)
	harness := enginetest.New(h, enginetest.Options{})
	defer harness.Close()
	r := bufio.NewReader(harness.Client)

	harness.Send("PUT /test.txt HTTP/1.1\r\nHost: x\r\nContent-Length: 2\r\nContent-Encoding: gzip\r\n\r\nhi")
	resp, err := enginetest.ReadResponse(r)
	if err != nil {
		t.Fatal(err)
	}
	if resp.Status != 405 {
		t.Fatalf("status = %d, want 405", resp.Status)
	}
}

func TestOptionsOnExistingFile(t *testing.T) {
	h, root := newTestHandler(t, true, true)
	os.WriteFile(filepath.Join(root, "f.txt"), []byte("x"), 0o644)

	harness := enginetest.New(h, enginetest.Options{})
	defer harness.Close()
	harness.Send("OPTIONS /f.txt HTTP/1.1\r\nHost: x\r\n\r\n")

	resp, err := enginetest.ReadResponse(bufio.NewReader(harness.Client))
	if err != nil {
		t.Fatal(err)
	}
	if resp.Status != 200 {
		t.Fatalf("status = %d", resp.Status)
	}
	if got := resp.Header["allow"]; len(got) != 1 || got[0] != "GET, HEAD, PUT, DELETE, OPTIONS" {
		t.Fatalf("allow = %v", got)
	}
}

func TestDirectoryListing(t *testing.T) {
	h, root := newTestHandler(t, false, true)
	os.WriteFile(filepath.Join(root, "test.html"), []byte("hi"), 0o644)

	harness := enginetest.New(h, enginetest.Options{})
	defer harness.Close()
	harness.Send("GET / HTTP/1.1\r\nHost: x\r\n\r\n")

	resp, err := enginetest.ReadResponse(bufio.NewReader(harness.Client))
	if err != nil {
		t.Fatal(err)
	}
	if resp.Status != 200 {
		t.Fatalf("status = %d", resp.Status)
	}
	if !strings.Contains(string(resp.Body), "test.html") {
		t.Fatalf("listing missing entry: %s", resp.Body)
	}
}

func TestPathTraversalIsForbidden(t *testing.T) {
	h, _ := newTestHandler(t, false, true)
	harness := enginetest.New(h, enginetest.Options{})
	defer harness.Close()
	harness.Send("GET /../../etc/passwd HTTP/1.1\r\nHost: x\r\n\r\n")

	resp, err := enginetest.ReadResponse(bufio.NewReader(harness.Client))
	if err != nil {
		t.Fatal(err)
	}
	if resp.Status == 200 {
		t.Fatal("path traversal must never return 200")
	}
}
