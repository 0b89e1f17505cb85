// Copyright (c) F-Secure Corporation
// https://foundry.f-secure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package arm64 provides the ARMv8-A processor primitives required to drive
// DMA capable peripherals from EL3: data cache maintenance, stage 1 address
// translation, PSCI power control and calls into boot ROM code.
//
// This package is only meant to be used with `GOOS=tamago GOARCH=arm64`.
package arm64
