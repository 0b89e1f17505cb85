// Copyright (c) F-Secure Corporation
// https://foundry.f-secure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

//go:build tamago && arm64
// +build tamago,arm64

package main

import (
	"log"
	"runtime"
	"time"

	"github.com/f-secure-foundry/fastbooted/internal/arm64"
	"github.com/f-secure-foundry/fastbooted/internal/fastboot"
	"github.com/f-secure-foundry/fastbooted/internal/reg"
	"github.com/f-secure-foundry/fastbooted/internal/se"
)

func main() {
	log.Printf("%s", version())

	cache := &arm64.Cache{}

	engine, err := se.New(se.Config{
		Bus:        &reg.MMIO{},
		Cache:      cache,
		Translator: &arm64.Translator{},
		Memory:     &dmaMemory{},
	})

	if err != nil {
		log.Fatal(err)
	}

	if !engine.IsIdle() {
		log.Fatal("se: engine busy at startup")
	}

	transport, err := newUSBF(cache)

	if err != nil {
		log.Fatal(err)
	}

	srv := &fastboot.Server{
		Transport: transport,
	}

	cmds := &fastboot.Commands{
		AES:     engine,
		Power:   &arm64.Power{Delay: 25 * time.Millisecond},
		Version: version(),
	}
	cmds.Register(srv)

	for {
		// a faulted engine is unusable until the next reset
		if err := srv.Serve(); err != nil {
			log.Fatalf("fatal error, %v", err)
		}

		log.Printf("fastboot: device dropped")

		runtime.Gosched()
		time.Sleep(100 * time.Millisecond)
	}
}
