// Copyright (c) F-Secure Corporation
// https://foundry.f-secure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

//go:build tamago && arm64
// +build tamago,arm64

package main

import (
	"github.com/f-secure-foundry/tamago/dma"
)

// Security Engine descriptors and buffers must reside in memory identity
// mapped by the boot stage page tables.
var dmaStart uint32 = 0xf0000000

// 16MB
var dmaSize = 0x1000000

func init() {
	dma.Init(dmaStart, dmaSize)
}

// dmaMemory implements se.Memory over the global DMA region.
type dmaMemory struct{}

func (m *dmaMemory) Reserve(size int, align int) (addr uint64, buf []byte) {
	a, buf := dma.Reserve(size, align)
	return uint64(a), buf
}

func (m *dmaMemory) Release(addr uint64) {
	dma.Release(uint32(addr))
}
