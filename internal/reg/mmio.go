// Copyright (c) F-Secure Corporation
// https://foundry.f-secure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package reg

import (
	"sync/atomic"
	"unsafe"
)

// MMIO accesses memory mapped registers, it must only be used on the target
// where addresses passed to it are mapped device memory.
type MMIO struct{}

func (MMIO) Read(addr uint64) uint32 {
	r := (*uint32)(unsafe.Pointer(uintptr(addr)))
	return atomic.LoadUint32(r)
}

func (MMIO) Write(addr uint64, val uint32) {
	r := (*uint32)(unsafe.Pointer(uintptr(addr)))
	atomic.StoreUint32(r, val)
}
