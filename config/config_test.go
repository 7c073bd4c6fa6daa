/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package config

import (
	"testing"
	"time"
)

func noEnv(string) (string, bool) { return "", false }

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load([]string{"port", "8080"}, noEnv)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Port != 8080 {
		t.Fatalf("Port = %d, want 8080", cfg.Port)
	}
	if cfg.Address != "0.0.0.0" || cfg.Backlog != 1024 || !cfg.KeepAlive {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.BufferCache != 16<<20 {
		t.Fatalf("BufferCache = %d, want power-of-two default", cfg.BufferCache)
	}
}

func TestLoadRequiresPort(t *testing.T) {
	if _, err := Load(nil, noEnv); err == nil {
		t.Fatal("expected error for missing port")
	}
}

func TestLoadRejectsOddArgs(t *testing.T) {
	if _, err := Load([]string{"port"}, noEnv); err == nil {
		t.Fatal("expected error for odd-length args")
	}
}

func TestLoadUnknownNameIgnored(t *testing.T) {
	cfg, err := Load([]string{"port", "80", "bogus", "value"}, noEnv)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Port != 80 {
		t.Fatalf("Port = %d, want 80", cfg.Port)
	}
}

func TestLoadCLIOverridesEnv(t *testing.T) {
	env := func(k string) (string, bool) {
		switch k {
		case "KSAH_PORT":
			return "9000", true
		case "KSAH_ROOT":
			return "/env/www", true
		}
		return "", false
	}
	cfg, err := Load([]string{"port", "8080"}, env)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Port != 8080 {
		t.Fatalf("Port = %d, want CLI value 8080", cfg.Port)
	}
	if cfg.Root != "/env/www" {
		t.Fatalf("Root = %q, want env value", cfg.Root)
	}
}

func TestTimeoutGrammar(t *testing.T) {
	cfg, err := Load([]string{"port", "80", "timeout", "5:SECONDS"}, noEnv)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Timeout != 5*time.Second {
		t.Fatalf("Timeout = %v, want 5s", cfg.Timeout)
	}
	if _, err := Load([]string{"port", "80", "timeout", "garbage"}, noEnv); err == nil {
		t.Fatal("expected error for malformed timeout")
	}
}

func TestBacklogIgnoresNonPositive(t *testing.T) {
	cfg, err := Load([]string{"port", "80", "backlog", "0"}, noEnv)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Backlog != 1024 {
		t.Fatalf("Backlog = %d, want default 1024 preserved for non-positive input", cfg.Backlog)
	}
}

func TestBufferCacheRoundedDownToPowerOfTwo(t *testing.T) {
	cfg, err := Load([]string{"port", "80", "buffercache", "1000000"}, noEnv)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.BufferCache != 1<<19 {
		t.Fatalf("BufferCache = %d, want %d", cfg.BufferCache, 1<<19)
	}
}

func TestCharsetValidation(t *testing.T) {
	cfg, err := Load([]string{"port", "80", "charset", "UTF-8"}, noEnv)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Charset != "utf-8" {
		t.Fatalf("Charset = %q, want normalized utf-8", cfg.Charset)
	}
	if _, err := Load([]string{"port", "80", "charset", "klingon"}, noEnv); err == nil {
		t.Fatal("expected error for unknown charset")
	}
}
