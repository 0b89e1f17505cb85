// Copyright (c) F-Secure Corporation
// https://foundry.f-secure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package reg provides primitives for 32-bit register access at a
// caller supplied base address and offset.
//
// No validation is performed, correctness of base and offset is entirely up
// to the caller.
package reg

import (
	"github.com/f-secure-foundry/tamago/bits"
)

// Bus performs 32-bit loads and stores at absolute addresses.
type Bus interface {
	Read(addr uint64) uint32
	Write(addr uint64, val uint32)
}

// Read returns the register value at base+off.
func Read(b Bus, base uint64, off uint32) uint32 {
	return b.Read(base + uint64(off))
}

// Write stores val at base+off.
func Write(b Bus, base uint64, off uint32, val uint32) {
	b.Write(base+uint64(off), val)
}

// Or performs a read-modify-write setting the bits of val.
func Or(b Bus, base uint64, off uint32, val uint32) {
	Write(b, base, off, Read(b, base, off)|val)
}

// And performs a read-modify-write retaining only the bits of mask.
func And(b Bus, base uint64, off uint32, mask uint32) {
	Write(b, base, off, Read(b, base, off)&mask)
}

// Get returns the register field at pos, masked with mask.
func Get(b Bus, base uint64, off uint32, pos int, mask int) uint32 {
	val := Read(b, base, off)
	return bits.Get(&val, pos, mask)
}

// Set sets the register bit at pos.
func Set(b Bus, base uint64, off uint32, pos int) {
	val := Read(b, base, off)
	bits.Set(&val, pos)
	Write(b, base, off, val)
}

// Clear clears the register bit at pos.
func Clear(b Bus, base uint64, off uint32, pos int) {
	val := Read(b, base, off)
	bits.Clear(&val, pos)
	Write(b, base, off, val)
}

// SetN modifies the register field at pos, masked with mask, to val.
func SetN(b Bus, base uint64, off uint32, pos int, mask int, val uint32) {
	r := Read(b, base, off)
	bits.SetN(&r, pos, mask, val)
	Write(b, base, off, r)
}
