// Copyright (c) F-Secure Corporation
// https://foundry.f-secure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

//go:build tamago && arm64
// +build tamago,arm64

package arm64

import (
	"fmt"
	"time"
)

// PSCI function identifiers
const (
	PSCI_SYSTEM_OFF   = 0x84000008
	PSCI_SYSTEM_RESET = 0x84000009
)

// defined in psci.s
func smc(fn uint64) (ret uint64)

// Power implements platform reset and power off through PSCI calls to the
// secure monitor.
type Power struct {
	// Delay is waited before the call, to let pending USB transfers
	// complete.
	Delay time.Duration
}

func (p *Power) call(fn uint64) error {
	time.Sleep(p.Delay)

	ret := smc(fn)

	return fmt.Errorf("psci: call %#x returned %#x", fn, ret)
}

// Reboot requests a system reset, it only returns on failure.
func (p *Power) Reboot() error {
	return p.call(PSCI_SYSTEM_RESET)
}

// PowerOff requests a system shutdown, it only returns on failure.
func (p *Power) PowerOff() error {
	return p.call(PSCI_SYSTEM_OFF)
}
