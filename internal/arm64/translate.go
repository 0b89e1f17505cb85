// Copyright (c) F-Secure Corporation
// https://foundry.f-secure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

//go:build tamago && arm64
// +build tamago,arm64

package arm64

// PAR_EL1 fields
const (
	PAR_F  = 0
	PAR_PA = 0x0000fffffffff000
)

// defined in translate.s
func at(addr uint64) (par uint64)

// Translator performs EL3 stage 1 address translation.
type Translator struct{}

// Translate returns the physical page mapped at addr, for EL3 reads.
func (t *Translator) Translate(addr uint64) (pa uint64, ok bool) {
	par := at(addr)

	if par&(1<<PAR_F) != 0 {
		return
	}

	return par & PAR_PA, true
}
