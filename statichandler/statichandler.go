/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

// Package statichandler implements the reference file-serving
// engine.Handler spec.md §4.6 describes: path resolution under a
// document root, GET/HEAD/OPTIONS/PUT/DELETE dispatch, and directory
// listings. It is grounded on the teacher's filetransport package for
// the shape of the problem (a FileSystem-rooted handler) but filetransport
// itself only forwards to net/http's fs.go, which the teacher never
// forked - the method dispatch, path containment check, and PUT/DELETE
// semantics below are built fresh against SPEC_FULL.md §4.6.
package statichandler

import (
	"io"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/karlpauls/ksah/bufpool"
	"github.com/karlpauls/ksah/engine"
	"github.com/karlpauls/ksah/hdr"
	"github.com/karlpauls/ksah/httputil"
	"github.com/karlpauls/ksah/ksahlog"
	"github.com/uber-go/zap"
)

// Options configures a Handler; field names mirror config.Config's
// static-handler-relevant options directly (SPEC_FULL.md §6).
type Options struct {
	Root              string
	List              bool
	Write             bool
	Charset           string
	BufferSize        int // file-read/write buffer size
	StaticBufferCache int // total bytes in the file-side buffer pool
}

// Handler is the reference StaticHandler. It is safe for concurrent use
// by multiple connections, the same way engine.Server expects any
// engine.Handler to be.
type Handler struct {
	opts Options
	pool *bufpool.Pool
	log  ksahlog.Logger
}

// New builds a Handler. The file-side buffer pool is sized exactly as
// spec.md §4.6 specifies: staticbuffercache / bufferSize buffers.
func New(opts Options, log ksahlog.Logger) *Handler {
	if log == nil {
		log = ksahlog.Discard()
	}
	if opts.BufferSize <= 0 {
		opts.BufferSize = 65536
	}
	return &Handler{
		opts: opts,
		pool: bufpool.New(opts.StaticBufferCache, opts.BufferSize),
		log:  log.Session("statichandler"),
	}
}

type methodHandlerFunc func(h *Handler, w *engine.Response, r *engine.Request)

// methodHandlers dispatches by exact method name. A map, not a switch, by
// construction rules out the teacher's LINK/UNLINK fall-through bug
// (SPEC_FULL.md §10): every method, known or not, yields exactly one
// response.
var methodHandlers = map[string]methodHandlerFunc{
	"GET":     (*Handler).handleGet,
	"HEAD":    (*Handler).handleHead,
	"OPTIONS": (*Handler).handleOptions,
	"PUT":     (*Handler).handlePut,
	"DELETE":  (*Handler).handleDelete,
}

// ServeHTTP implements engine.Handler.
func (h *Handler) ServeHTTP(w *engine.Response, r *engine.Request) {
	fn, ok := methodHandlers[r.Method]
	if !ok {
		h.writeMethodNotAllowed(w, r)
		return
	}
	fn(h, w, r)
}

// resolve joins root with reqPath, normalizes it, and requires the
// result to be a descendant of root - spec.md §4.6's path-resolution
// rule and §8's "path resolution never escapes root" invariant.
func resolve(root, reqPath string) (string, bool) {
	cleanRoot := filepath.Clean(root)
	joined := filepath.Join(cleanRoot, filepath.FromSlash(path.Clean("/"+reqPath)))
	if joined == cleanRoot {
		return joined, true
	}
	if strings.HasPrefix(joined, cleanRoot+string(filepath.Separator)) {
		return joined, true
	}
	return "", false
}

func (h *Handler) handleGet(w *engine.Response, r *engine.Request) { h.serve(w, r, false) }

func (h *Handler) handleHead(w *engine.Response, r *engine.Request) { h.serve(w, r, true) }

func (h *Handler) serve(w *engine.Response, r *engine.Request, headOnly bool) {
	resolved, ok := resolve(h.opts.Root, r.Path)
	if !ok {
		writeForbidden(w)
		return
	}

	info, err := os.Stat(resolved)
	wantsDir := strings.HasSuffix(r.Path, "/")
	if err != nil {
		if os.IsNotExist(err) {
			writeNotFound(w)
			return
		}
		writeInternalError(w, h.log, err)
		return
	}
	if wantsDir && !info.IsDir() {
		writeNotFound(w)
		return
	}

	if info.IsDir() {
		h.serveDir(w, r, resolved, info, headOnly)
		return
	}
	h.serveFile(w, resolved, info, headOnly)
}

func (h *Handler) serveDir(w *engine.Response, r *engine.Request, dirPath string, dirInfo os.FileInfo, headOnly bool) {
	indexPath := filepath.Join(dirPath, "index.html")
	if idxInfo, err := os.Stat(indexPath); err == nil && !idxInfo.IsDir() {
		h.serveFile(w, indexPath, idxInfo, headOnly)
		return
	}
	if !h.opts.List {
		writeForbidden(w)
		return
	}
	if !strings.HasSuffix(r.Path, "/") {
		w.SetStatus(301)
		w.Header().Set(hdr.Location, r.Path+"/")
		w.Header().Set(hdr.ContentLength, "0")
		w.End()
		return
	}

	entries, err := os.ReadDir(dirPath)
	if err != nil {
		writeInternalError(w, h.log, err)
		return
	}
	dirEntries := make([]httputil.DirEntry, 0, len(entries))
	for _, e := range entries {
		dirEntries = append(dirEntries, httputil.DirEntry{Name: e.Name(), IsDir: e.IsDir()})
	}
	isRoot := filepath.Clean(dirPath) == filepath.Clean(h.opts.Root)
	body := []byte(httputil.DirListingHTML(filepath.Base(dirPath), isRoot, dirEntries))

	w.SetStatus(200)
	w.Header().Set(hdr.ContentType, "text/html; charset=utf-8")
	w.Header().Set(hdr.ContentLength, strconv.Itoa(len(body)))
	w.Header().Set(hdr.LastModified, httputil.FormatDate(dirInfo.ModTime()))
	if headOnly {
		w.End()
		return
	}
	w.Write(body)
}

func (h *Handler) serveFile(w *engine.Response, filePath string, info os.FileInfo, headOnly bool) {
	f, err := os.Open(filePath)
	if err != nil {
		writeInternalError(w, h.log, err)
		return
	}
	defer f.Close()

	buf := h.pool.Checkout()
	defer h.pool.Checkin(buf)
	head := buf.Bytes[:cap(buf.Bytes)]
	n, _ := f.Read(head)
	head = head[:n]
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		writeInternalError(w, h.log, err)
		return
	}

	ct := httputil.ContentType(filePath, head, h.opts.Charset)
	w.SetStatus(200)
	w.Header().Set(hdr.ContentType, ct)
	w.Header().Set(hdr.ContentLength, strconv.FormatInt(info.Size(), 10))
	w.Header().Set(hdr.LastModified, httputil.FormatDate(info.ModTime()))
	if headOnly {
		w.End()
		return
	}

	buf.Bytes = buf.Bytes[:cap(buf.Bytes)]
	for {
		n, err := f.Read(buf.Bytes)
		if n > 0 {
			w.Write(buf.Bytes[:n])
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			h.log.Error("file read failed mid-response", zap.Error(err))
			break
		}
	}
	w.End()
}

func (h *Handler) handleOptions(w *engine.Response, r *engine.Request) {
	resolved, ok := resolve(h.opts.Root, r.Path)
	if !ok {
		writeForbidden(w)
		return
	}
	info, err := os.Stat(resolved)
	switch {
	case os.IsNotExist(err):
		parent := filepath.Dir(resolved)
		if pinfo, perr := os.Stat(parent); perr == nil && pinfo.IsDir() {
			w.Header().Set(hdr.Allow, "PUT, OPTIONS")
		} else {
			writeNotFound(w)
			return
		}
	case err != nil:
		writeInternalError(w, h.log, err)
		return
	case info.IsDir():
		w.Header().Set(hdr.Allow, "GET, HEAD, OPTIONS")
	default:
		w.Header().Set(hdr.Allow, "GET, HEAD, PUT, DELETE, OPTIONS")
	}
	w.SetStatus(200)
	w.Header().Set(hdr.ContentLength, "0")
	w.End()
}

// putHeadersValid reports whether a PUT carries only the Content-*
// headers spec.md §4.6 permits (Content-Length, Content-Type, and
// Content-Encoding: identity) and no non-identity Transfer-Encoding;
// anything else fails with 405.
func putHeadersValid(r *engine.Request) bool {
	valid := true
	r.Header.Range(func(name string, values []string) bool {
		lower := strings.ToLower(name)
		if !strings.HasPrefix(lower, "content-") {
			return true
		}
		switch lower {
		case "content-length", "content-type":
			return true
		case "content-encoding":
			for _, v := range values {
				if !strings.EqualFold(v, hdr.DoIdentity) {
					valid = false
					return false
				}
			}
			return true
		default:
			valid = false
			return false
		}
	})
	if te := r.Header.Get(hdr.TransferEncoding); te != "" && !strings.EqualFold(te, hdr.DoIdentity) {
		valid = false
	}
	return valid
}

func (h *Handler) handlePut(w *engine.Response, r *engine.Request) {
	if !h.opts.Write {
		h.writeMethodNotAllowed(w, r)
		return
	}
	if !putHeadersValid(r) {
		h.writeMethodNotAllowed(w, r)
		return
	}

	resolved, ok := resolve(h.opts.Root, r.Path)
	if !ok {
		writeForbidden(w)
		return
	}
	existingInfo, statErr := os.Stat(resolved)
	existed := statErr == nil
	if existed && existingInfo.IsDir() {
		writeForbidden(w)
		return
	}
	parent := filepath.Dir(resolved)
	if pinfo, err := os.Stat(parent); err != nil || !pinfo.IsDir() {
		writeForbidden(w)
		return
	}

	if err := h.writeAtomic(resolved, r.Body()); err != nil {
		writeInternalError(w, h.log, err)
		return
	}

	if existed {
		w.SetStatus(204)
	} else {
		w.SetStatus(201)
	}
	w.Header().Set(hdr.ContentLength, "0")
	w.End()
}

// writeAtomic implements the PUT-atomicity fix from spec.md's open
// question (SPEC_FULL.md §10): write to a temp file in the same
// directory, fsync and rename on success, remove the temp file on any
// failure, so a failed PUT never corrupts an existing target.
func (h *Handler) writeAtomic(target string, body io.Reader) error {
	dir := filepath.Dir(target)
	tmp, err := os.CreateTemp(dir, filepath.Base(target)+".ksah-tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	succeeded := false
	defer func() {
		if !succeeded {
			tmp.Close()
			os.Remove(tmpName)
		}
	}()

	buf := h.pool.Checkout()
	defer h.pool.Checkin(buf)
	buf.Bytes = buf.Bytes[:cap(buf.Bytes)]
	if _, err := io.CopyBuffer(tmp, body, buf.Bytes); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpName, target); err != nil {
		return err
	}
	succeeded = true
	return nil
}

func (h *Handler) handleDelete(w *engine.Response, r *engine.Request) {
	if !h.opts.Write {
		h.writeMethodNotAllowed(w, r)
		return
	}
	resolved, ok := resolve(h.opts.Root, r.Path)
	if !ok {
		writeForbidden(w)
		return
	}
	info, err := os.Stat(resolved)
	if os.IsNotExist(err) {
		writeNotFound(w)
		return
	}
	if err != nil {
		writeInternalError(w, h.log, err)
		return
	}
	if info.IsDir() {
		writeForbidden(w)
		return
	}
	if err := os.Remove(resolved); err != nil {
		writeInternalError(w, h.log, err)
		return
	}
	w.SetStatus(204)
	w.Header().Set(hdr.ContentLength, "0")
	w.End()
}

func (h *Handler) writeMethodNotAllowed(w *engine.Response, r *engine.Request) {
	allow := "GET, HEAD, OPTIONS"
	if h.opts.Write {
		allow = "GET, HEAD, PUT, DELETE, OPTIONS"
	}
	w.SetStatus(405)
	w.Header().Set(hdr.Allow, allow)
	body := httputil.ErrorBody(405)
	w.Header().Set(hdr.ContentType, "text/html; charset=utf-8")
	w.Header().Set(hdr.ContentLength, strconv.Itoa(len(body)))
	w.Write(body)
}

func writeForbidden(w *engine.Response) { writeCanned(w, 403) }
func writeNotFound(w *engine.Response)  { writeCanned(w, 404) }

func writeCanned(w *engine.Response, code int) {
	w.SetStatus(code)
	body := httputil.ErrorBody(code)
	w.Header().Set(hdr.ContentType, "text/html; charset=utf-8")
	w.Header().Set(hdr.ContentLength, strconv.Itoa(len(body)))
	w.Write(body)
}

func writeInternalError(w *engine.Response, log ksahlog.Logger, err error) {
	log.Error("internal error serving request", zap.Error(err))
	writeCanned(w, 500)
}
