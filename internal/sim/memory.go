// Copyright (c) F-Secure Corporation
// https://foundry.f-secure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package sim provides simulated hardware backends for the Security Engine
// driver: physical memory behind a write-back data cache, page translation
// and a register level engine model.
package sim

import (
	"bytes"
)

const (
	// LineSize is the simulated cache line size.
	LineSize = 64
	// PageSize is the simulated translation granule.
	PageSize = 0x1000
)

// Memory represents a DMA arena as seen by both the CPU, through a
// write-back cache, and the engine, which only accesses physical memory.
//
// CPU writes to reserved buffers stay in the cache view until the covering
// lines are cleaned, engine writes only become visible to the CPU once the
// covering lines are invalidated.
type Memory struct {
	// Base is the arena virtual address.
	Base uint64

	// PhysBase is the arena physical address.
	PhysBase uint64

	// Flushes counts range clean+invalidate requests.
	Flushes int

	// Invalidations counts whole cache invalidations.
	Invalidations int

	// Barriers counts memory barriers.
	Barriers int

	cpu   []byte
	clean []byte
	phys  []byte

	next     int
	reserved map[uint64]int
}

// NewMemory returns a simulated arena of size bytes, mapped at the page
// aligned virtual and physical addresses base and phys.
func NewMemory(base uint64, phys uint64, size int) *Memory {
	if base%PageSize != 0 || phys%PageSize != 0 {
		panic("sim: unaligned arena")
	}

	return &Memory{
		Base:     base,
		PhysBase: phys,
		cpu:      make([]byte, size),
		clean:    make([]byte, size),
		phys:     make([]byte, size),
		reserved: make(map[uint64]int),
	}
}

// Reserve implements se.Memory, it returns a slice over the CPU view.
func (m *Memory) Reserve(size int, align int) (addr uint64, buf []byte) {
	if align <= 0 {
		align = 1
	}

	off := m.next

	if r := int(m.Base+uint64(off)) % align; r != 0 {
		off += align - r
	}

	if off+size > len(m.cpu) {
		panic("sim: arena exhausted")
	}

	m.next = off + size
	addr = m.Base + uint64(off)
	m.reserved[addr] = size

	return addr, m.cpu[off : off+size : off+size]
}

// Release implements se.Memory.
func (m *Memory) Release(addr uint64) {
	delete(m.reserved, addr)

	if len(m.reserved) == 0 {
		m.next = 0
	}
}

// Reserved returns the number of outstanding reservations.
func (m *Memory) Reserved() int {
	return len(m.reserved)
}

func (m *Memory) lines(addr uint64, size int) (start int, end int) {
	if addr < m.Base {
		return 0, 0
	}

	start = int(addr-m.Base) &^ (LineSize - 1)
	end = (int(addr-m.Base) + size + LineSize - 1) &^ (LineSize - 1)

	if end > len(m.cpu) {
		end = len(m.cpu)
	}

	return
}

// sync writes back a dirty line, then drops it from the cache.
func (m *Memory) sync(off int) {
	end := off + LineSize

	if !bytes.Equal(m.cpu[off:end], m.clean[off:end]) {
		copy(m.phys[off:end], m.cpu[off:end])
	}

	copy(m.cpu[off:end], m.phys[off:end])
	copy(m.clean[off:end], m.phys[off:end])
}

// FlushInvalidate implements se.Cache.
func (m *Memory) FlushInvalidate(addr uint64, size int) {
	m.Flushes++

	start, end := m.lines(addr, size)

	for off := start; off < end; off += LineSize {
		m.sync(off)
	}
}

// InvalidateAll implements se.Cache, every line is discarded without write
// back, dirty data not previously cleaned is lost.
func (m *Memory) InvalidateAll() {
	m.Invalidations++

	copy(m.cpu, m.phys)
	copy(m.clean, m.phys)
}

// Barrier implements se.Cache.
func (m *Memory) Barrier() {
	m.Barriers++
}

// Translate implements se.Translator, returning the physical page mapped at
// addr.
func (m *Memory) Translate(addr uint64) (pa uint64, ok bool) {
	if addr < m.Base || addr >= m.Base+uint64(len(m.cpu)) {
		return
	}

	return (m.PhysBase + (addr - m.Base)) &^ (PageSize - 1), true
}

// ReadPhys returns a copy of size bytes of physical memory at pa.
func (m *Memory) ReadPhys(pa uint64, size int) (buf []byte, ok bool) {
	if pa < m.PhysBase || pa+uint64(size) > m.PhysBase+uint64(len(m.phys)) {
		return
	}

	off := pa - m.PhysBase

	return append([]byte{}, m.phys[off:off+uint64(size)]...), true
}

// WritePhys stores buf in physical memory at pa.
func (m *Memory) WritePhys(pa uint64, buf []byte) (ok bool) {
	if pa < m.PhysBase || pa+uint64(len(buf)) > m.PhysBase+uint64(len(m.phys)) {
		return
	}

	copy(m.phys[pa-m.PhysBase:], buf)

	return true
}
