// Copyright (c) F-Secure Corporation
// https://foundry.f-secure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package se implements a driver for the Security Engine (SE) AES
// accelerator, through direct register access and DMA linked list
// submission.
//
// The engine is a single shared hardware resource: the driver performs no
// locking and expects exactly one owner of the Engine instance, which must
// serialize all calls.
package se

import (
	"fmt"
	"time"

	"github.com/f-secure-foundry/fastbooted/internal/reg"
)

// Cache represents the data cache maintenance required around engine DMA.
type Cache interface {
	// FlushInvalidate cleans and invalidates every cache line covering
	// the addr, addr+size range.
	FlushInvalidate(addr uint64, size int)
	// InvalidateAll invalidates all data and unified cache levels and
	// the instruction cache.
	InvalidateAll()
	// Barrier issues a full (inner shareable) data synchronization
	// barrier.
	Barrier()
}

// Translator resolves virtual addresses to physical ones.
type Translator interface {
	// Translate returns the physical page mapped at addr, ok is false
	// when no valid mapping exists.
	Translate(addr uint64) (pa uint64, ok bool)
}

// Memory allocates buffers visible to the engine DMA.
type Memory interface {
	// Reserve allocates size bytes aligned to align, returning their
	// virtual address and a slice over them.
	Reserve(size int, align int) (addr uint64, buf []byte)
	// Release frees a reserved buffer.
	Release(addr uint64)
}

// Status represents the status registers sampled after completion.
type Status struct {
	Int    uint32
	Engine uint32
	Err    uint32
}

// Faulted is the default completion check, it reports an error on a pending
// error interrupt, a non idle engine or any sticky error flag.
func Faulted(s Status) bool {
	return s.Int&(1<<INT_ERR) != 0 || s.Engine&0b11 != 0 || s.Err != 0
}

// Config holds the Security Engine instance configuration.
type Config struct {
	// Base is the register base address (default: SE_BASE).
	Base uint64

	// Bus performs register access.
	Bus reg.Bus

	Cache      Cache
	Translator Translator
	Memory     Memory

	// PollInterval is the sleep interval between completion polls.
	PollInterval time.Duration

	// PollLimit bounds the number of completion polls, 0 polls forever
	// as the hardware is expected to always complete.
	PollLimit int

	// Faulted checks completion status (default: Faulted).
	Faulted func(Status) bool
}

// Engine represents the Security Engine instance, it must not be copied nor
// shared between concurrent callers.
type Engine struct {
	base  uint64
	bus   reg.Bus
	cache Cache
	at    Translator
	mem   Memory

	pollInterval time.Duration
	pollLimit    int
	faulted      func(Status) bool

	// first fault, latched
	fault error
}

// New returns the Security Engine instance described by conf.
func New(conf Config) (e *Engine, err error) {
	if conf.Bus == nil || conf.Cache == nil || conf.Translator == nil || conf.Memory == nil {
		return nil, fmt.Errorf("se: incomplete configuration")
	}

	e = &Engine{
		base:         conf.Base,
		bus:          conf.Bus,
		cache:        conf.Cache,
		at:           conf.Translator,
		mem:          conf.Memory,
		pollInterval: conf.PollInterval,
		pollLimit:    conf.PollLimit,
		faulted:      conf.Faulted,
	}

	if e.base == 0 {
		e.base = SE_BASE
	}

	if e.faulted == nil {
		e.faulted = Faulted
	}

	return
}

// Err returns the latched fault, if any.
func (e *Engine) Err() error {
	return e.fault
}

// IsIdle returns whether the engine reports no operation in progress.
func (e *Engine) IsIdle() bool {
	return e.get(SE_STATUS, STATUS_STATE, 0b111) == 0
}

func (e *Engine) halt(kind FaultKind, op string, format string, args ...interface{}) error {
	if e.fault == nil {
		e.fault = &Fault{
			Kind: kind,
			Op:   op,
			Msg:  fmt.Sprintf(format, args...),
		}
	}

	return e.fault
}

func (e *Engine) read(off uint32) uint32 {
	return reg.Read(e.bus, e.base, off)
}

func (e *Engine) write(off uint32, val uint32) {
	reg.Write(e.bus, e.base, off, val)
}

func (e *Engine) get(off uint32, pos int, mask int) uint32 {
	return reg.Get(e.bus, e.base, off, pos, mask)
}

func (e *Engine) checkSlot(op string, slot int) error {
	if slot < 0 || slot >= KEYSLOTS {
		return e.halt(SizeFault, op, "invalid keyslot %d", slot)
	}

	return nil
}

// translate converts a virtual address into the physical form required by
// engine registers and descriptors, retaining the address bits selected by
// mask from the original address.
func (e *Engine) translate(op string, addr uint64, mask uint64) (uint32, error) {
	pa, ok := e.at.Translate(addr)

	if !ok {
		return 0, e.halt(TranslationFault, op, "no mapping for %#x", addr)
	}

	return uint32((pa & 0xfffff000) | (addr & mask)), nil
}

// buffer represents a reserved DMA buffer.
type buffer struct {
	addr uint64
	data []byte
}

func (e *Engine) reserve(op string, size int, align int) (b *buffer, err error) {
	addr, data := e.mem.Reserve(size, align)

	if addr&uint64(align-1) != 0 {
		e.mem.Release(addr)
		return nil, e.halt(AlignmentFault, op, "buffer %#x not aligned to %d", addr, align)
	}

	if len(data) < size {
		e.mem.Release(addr)
		return nil, e.halt(SizeFault, op, "short reservation (%d < %d)", len(data), size)
	}

	return &buffer{addr: addr, data: data[:size]}, nil
}

func (e *Engine) release(b *buffer) {
	if b != nil {
		e.mem.Release(b.addr)
	}
}
