// Copyright (c) F-Secure Corporation
// https://foundry.f-secure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

//go:build tamago && arm64
// +build tamago,arm64

package arm64

// defined in call.s
func call(fn uint64, a0 uint64, a1 uint64, a2 uint64) (ret uint64)

// Call invokes a function, following the AAPCS64 calling convention, at a
// fixed address of boot ROM or firmware code.
func Call(fn uint64, args ...uint64) uint64 {
	var a [3]uint64

	if len(args) > len(a) {
		panic("arm64: too many arguments")
	}

	copy(a[:], args)

	return call(fn, a[0], a[1], a[2])
}
