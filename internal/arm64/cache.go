// Copyright (c) F-Secure Corporation
// https://foundry.f-secure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

//go:build tamago && arm64
// +build tamago,arm64

package arm64

import (
	"math/bits"
)

// CACHE_LINE is the data cache line size used for range maintenance.
const CACHE_LINE = 64

// defined in cache.s
func readCLIDR() uint64
func writeCSSELR(val uint64)
func readCCSIDR() uint64
func dcCISW(val uint64)
func dcCIVAC(addr uint64)
func icIALLU()
func dsb()
func isb()

// Cache implements data cache maintenance by virtual address and by
// set/way.
type Cache struct{}

// FlushInvalidate cleans and invalidates, to the point of coherency, every
// data cache line covering the addr, addr+size range.
func (c *Cache) FlushInvalidate(addr uint64, size int) {
	start := addr &^ (CACHE_LINE - 1)
	end := (addr + uint64(size) + CACHE_LINE - 1) &^ (CACHE_LINE - 1)

	for ptr := start; ptr < end; ptr += CACHE_LINE {
		dcCIVAC(ptr)
	}

	dsb()
}

// InvalidateAll cleans and invalidates, by set/way, all data and unified
// cache levels up to the level of coherency, followed by instruction cache
// invalidation.
func (c *Cache) InvalidateAll() {
	loc := (readCLIDR() >> 24) & 0b111

	for level := uint64(0); level < loc; level++ {
		writeCSSELR(level << 1)
		isb()

		ccsidr := readCCSIDR()

		lineShift := (ccsidr & 0b111) + 4
		ways := (ccsidr >> 3) & 0x3ff
		sets := (ccsidr >> 13) & 0x7fff

		wayShift := uint64(bits.LeadingZeros32(uint32(ways)))

		for way := uint64(0); way <= ways; way++ {
			for set := uint64(0); set <= sets; set++ {
				dcCISW(way<<wayShift | set<<lineShift | level<<1)
			}
		}
	}

	dsb()
	icIALLU()
	dsb()
	isb()
}

// Barrier issues a full inner shareable data synchronization barrier.
func (c *Cache) Barrier() {
	dsb()
}
