/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package engine

import (
	"fmt"
	"net"
	"os"
	"sync/atomic"
	"time"

	"code.cloudfoundry.org/clock"
	"github.com/karlpauls/ksah/bufpool"
	"github.com/karlpauls/ksah/ksahlog"
	"github.com/uber-go/zap"
	"golang.org/x/sys/unix"
)

// Options configures a Server. It is the engine-level mirror of the
// socket and pool-sizing fields config.Config exposes to the launcher;
// the config package (an external collaborator, see SPEC_FULL.md §6) is
// what turns CLI/env input into one of these.
type Options struct {
	Address           string
	Port              int
	Backlog           int
	KeepAlive         bool
	NoDelay           bool
	ReuseAddress      bool
	RcvBuf            int
	SndBuf            int
	BufferCache       int // total bytes in the request-side pool
	Timeout           time.Duration
	MaxConnections    int
	MaxConnectionTime time.Duration

	Clock  clock.Clock // nil defaults to clock.NewClock()
	Logger ksahlog.Logger
}

// Server is the Acceptor spec.md §4.5 describes: it binds the listening
// socket, accepts connections, enforces maxConnections, and hands each
// accepted socket to a new Conn running on its own goroutine.
type Server struct {
	opts    Options
	handler Handler
	pool    *bufpool.Pool
	clk     clock.Clock
	log     ksahlog.Logger

	listener net.Listener
	sockets  *connSet

	closing int32
}

// NewServer constructs a Server. The listening socket is not bound until
// Serve is called.
func NewServer(opts Options, handler Handler) *Server {
	if opts.Clock == nil {
		opts.Clock = clock.NewClock()
	}
	if opts.Logger == nil {
		opts.Logger = ksahlog.Discard()
	}
	return &Server{
		opts:    opts,
		handler: handler,
		pool:    bufpool.New(opts.BufferCache, opts.RcvBuf),
		clk:     opts.Clock,
		log:     opts.Logger.Session("acceptor"),
		sockets: newConnSet(),
	}
}

// Serve binds the listening socket and runs the accept loop until Close
// is called. It blocks. Accept errors while the server is not closing are
// logged and the loop keeps accepting.
func (s *Server) Serve() error {
	ln, err := s.listen()
	if err != nil {
		return err
	}
	s.listener = ln
	s.log.Info("listening", zap.String("addr", ln.Addr().String()), zap.Int("backlog", s.backlog()))

	for {
		raw, err := ln.Accept()
		if err != nil {
			if atomic.LoadInt32(&s.closing) != 0 {
				return nil
			}
			s.log.Error("accept failed", zap.Error(err))
			continue
		}
		s.handleAccepted(raw)
	}
}

func (s *Server) backlog() int {
	if s.opts.Backlog <= 0 {
		return 1024
	}
	return s.opts.Backlog
}

// listen builds the listening socket by hand via golang.org/x/sys/unix
// (socket/setsockopt/bind/listen) instead of net.Listen, because
// net.ListenConfig has no backlog knob: the listen(2) backlog argument
// isn't exposed portably through the net package, only the OS default.
// Going through unix directly lets opts.Backlog actually reach listen(2),
// the same tcplisten-style pattern fasthttp uses for its own listener
// construction.
func (s *Server) listen() (net.Listener, error) {
	ip := net.ParseIP(s.opts.Address)
	if ip == nil {
		ips, err := net.LookupIP(s.opts.Address)
		if err != nil || len(ips) == 0 {
			return nil, fmt.Errorf("engine: cannot resolve address %q: %w", s.opts.Address, err)
		}
		ip = ips[0]
	}

	var domain int
	var sa unix.Sockaddr
	if ip4 := ip.To4(); ip4 != nil {
		domain = unix.AF_INET
		sa4 := &unix.SockaddrInet4{Port: s.opts.Port}
		copy(sa4.Addr[:], ip4)
		sa = sa4
	} else {
		domain = unix.AF_INET6
		sa6 := &unix.SockaddrInet6{Port: s.opts.Port}
		copy(sa6.Addr[:], ip.To16())
		sa = sa6
	}

	fd, err := unix.Socket(domain, unix.SOCK_STREAM, 0)
	if err != nil {
		return nil, err
	}
	if s.opts.ReuseAddress {
		if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
			unix.Close(fd)
			return nil, err
		}
	}
	if s.opts.RcvBuf > 0 {
		if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_RCVBUF, s.opts.RcvBuf); err != nil {
			unix.Close(fd)
			return nil, err
		}
	}
	if err := unix.Bind(fd, sa); err != nil {
		unix.Close(fd)
		return nil, err
	}
	if err := unix.Listen(fd, s.backlog()); err != nil {
		unix.Close(fd)
		return nil, err
	}

	// net.FileListener dups fd internally, so the original must still be
	// closed here once wrapped.
	f := os.NewFile(uintptr(fd), "ksah-listener")
	ln, err := net.FileListener(f)
	f.Close()
	if err != nil {
		return nil, err
	}
	return ln, nil
}

func (s *Server) handleAccepted(raw net.Conn) {
	if tcp, ok := raw.(*net.TCPConn); ok {
		tcp.SetKeepAlive(s.opts.KeepAlive)
		tcp.SetNoDelay(s.opts.NoDelay)
		if s.opts.SndBuf > 0 {
			tcp.SetWriteBuffer(s.opts.SndBuf)
		}
	}

	if s.opts.MaxConnections > 0 && s.sockets.Len() >= s.opts.MaxConnections {
		s.log.Debug("refusing connection", zap.String("reason", BackpressureRefused.String()))
		conn := newConn(raw, s.pool, s.opts.Timeout, s.opts.MaxConnectionTime, s.handler, s.clk, s.log, s)
		go func() {
			writeErrorResponse(conn, 503)
			conn.raw.Close()
		}()
		return
	}

	conn := newConn(raw, s.pool, s.opts.Timeout, s.opts.MaxConnectionTime, s.handler, s.clk, s.log, s)
	s.sockets.Add(conn)
	go conn.serve()
}

// connClosed removes conn from the open-sockets set. Called from
// Conn.closeSocket, which runs exactly once per connection's lifetime.
func (s *Server) connClosed(c *Conn) {
	s.sockets.Remove(c)
}

// Close closes the listening socket and every currently-open connection
// (best-effort), per spec.md §4.5, then hands off to the shutdown
// coordinator for AwaitClose.
func (s *Server) Close() error {
	atomic.StoreInt32(&s.closing, 1)
	var err error
	if s.listener != nil {
		err = s.listener.Close()
	}
	s.sockets.CloseAll()
	return err
}

// AwaitClose blocks until every open connection has closed or timeout
// elapses, returning true in the former case. It implements spec.md
// §4.5's awaitClose(timeout), delegating the actual polling to the
// shutdown coordinator.
func (s *Server) AwaitClose(timeout time.Duration) bool {
	return newShutdown(s.sockets, s.clk).awaitClose(timeout)
}
